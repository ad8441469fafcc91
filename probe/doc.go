// Package probe extracts clip metadata under a concurrency bound.
//
// A Gatekeeper admits at most a fixed number of probe workers at once.
// Each probe runs its fast phase (duration, video size, thumbnail) while
// holding a permit and releases the permit before its slow phase
// (waveform, audio extraction), so clips imported later still get their
// thumbnails promptly.
//
// MP4 and MOV headers are read in-process with mp4ff. Ogg Opus streams are
// demuxed and decoded in pure Go with pion's oggreader and opus packages.
// Everything else goes through the ffmpeg command line tools.
package probe
