package ffmpeg

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/opd-ai/velocut/codec"
)

// Backend opens inputs and creates outputs through ffmpeg subprocesses.
type Backend struct{}

// NewBackend returns an ffmpeg backend.
func NewBackend() *Backend {
	return &Backend{}
}

// Name returns "ffmpeg".
func (b *Backend) Name() string { return "ffmpeg" }

// Open probes and opens path.
func (b *Backend) Open(path string) (codec.Input, error) {
	in, err := Open(path)
	if err != nil {
		return nil, err
	}
	return in, nil
}

// Create prepares an H.264 output at path.
func (b *Backend) Create(path string) (codec.Output, error) {
	out, err := Create(path)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DecodeAudio decodes the trim window of path's first audio stream.
func (b *Backend) DecodeAudio(ctx context.Context, path string, start, duration float64, cfg codec.AudioConfig) ([]float32, error) {
	res, err := Probe(ctx, path)
	if err != nil {
		return nil, err
	}
	if !res.HasAudio() {
		return nil, fmt.Errorf("%w: audio in %s", codec.ErrNoStream, path)
	}
	return DecodePCM(ctx, path, start, duration, cfg.SampleRate, cfg.Channels)
}

// Available reports whether both ffmpeg and ffprobe are on PATH.
func Available() bool {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return false
	}
	_, err := exec.LookPath("ffprobe")
	return err == nil
}
