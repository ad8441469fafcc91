// Package ffmpeg implements the codec interfaces by driving the ffmpeg and
// ffprobe binaries as subprocesses.
//
// Stream metadata comes from `ffprobe -print_format json`. Decoding starts
// an ffmpeg process that writes raw yuv420p pictures to a pipe; a Seek
// restarts that process with an input-side `-ss`. Encoding pipes raw
// pictures into an ffmpeg process running libx264.
//
// Both binaries are located with exec.LookPath on first use. A missing ffmpeg
// binary surfaces as codec.ErrEncoderUnavailable when creating an output.
package ffmpeg
