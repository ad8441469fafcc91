// Package playback decodes ahead of wall-clock playback and gates frame
// promotion on presentation time.
//
// The Scheduler runs on its own goroutine with its own decode session. It
// burns through to the exact start frame before delivering anything, then
// pushes frames into a bounded channel; a full channel blocks the decoder,
// which is the only rate limiting. The consumer drains that channel through
// a Gate, which holds one pending frame and releases it only when its
// timestamp is due.
package playback
