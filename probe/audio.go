package probe

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/opd-ai/velocut/codec/ffmpeg"
	"github.com/sirupsen/logrus"
)

// AudioSource decodes the audio track of a file.
type AudioSource interface {
	// PCM returns interleaved float32 samples at rate with the given
	// channel count.
	PCM(ctx context.Context, path string, rate, channels int) ([]float32, error)
	// ExtractWAV writes the audio track to dest as 16-bit PCM WAV.
	ExtractWAV(ctx context.Context, path, dest string, rate, channels int) error
}

// FFmpegAudio decodes audio by running ffmpeg.
type FFmpegAudio struct{}

// PCM decodes mono audio through ffmpeg. Multi-channel output goes through
// ExtractWAV instead.
func (FFmpegAudio) PCM(ctx context.Context, path string, rate, channels int) ([]float32, error) {
	if channels != 1 {
		return nil, fmt.Errorf("ffmpeg pcm: %d channels requested, only mono is piped", channels)
	}
	return ffmpeg.DecodeMonoPCM(ctx, path, rate)
}

// ExtractWAV transcodes the audio track to dest.
func (FFmpegAudio) ExtractWAV(ctx context.Context, path, dest string, rate, channels int) error {
	return ffmpeg.ExtractWAV(ctx, path, dest, rate, channels)
}

// RoutedAudio sends Ogg Opus files to the in-process opus decoder and
// everything else to Fallback. A failing opus decode is retried on Fallback.
type RoutedAudio struct {
	Opus     AudioSource
	Fallback AudioSource
}

// NewRoutedAudio pairs the pure-Go opus decoder with ffmpeg.
func NewRoutedAudio() *RoutedAudio {
	return &RoutedAudio{Opus: OpusAudio{}, Fallback: FFmpegAudio{}}
}

func (r *RoutedAudio) primary(path string) AudioSource {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".opus", ".ogg", ".oga":
		if r.Opus != nil {
			return r.Opus
		}
	}
	return nil
}

// PCM implements AudioSource.
func (r *RoutedAudio) PCM(ctx context.Context, path string, rate, channels int) ([]float32, error) {
	if src := r.primary(path); src != nil {
		samples, err := src.PCM(ctx, path, rate, channels)
		if err == nil && len(samples) > 0 {
			return samples, nil
		}
		r.logFallback("RoutedAudio.PCM", path, err)
	}
	return r.Fallback.PCM(ctx, path, rate, channels)
}

// ExtractWAV implements AudioSource.
func (r *RoutedAudio) ExtractWAV(ctx context.Context, path, dest string, rate, channels int) error {
	if src := r.primary(path); src != nil {
		err := src.ExtractWAV(ctx, path, dest, rate, channels)
		if err == nil {
			return nil
		}
		r.logFallback("RoutedAudio.ExtractWAV", path, err)
	}
	return r.Fallback.ExtractWAV(ctx, path, dest, rate, channels)
}

func (r *RoutedAudio) logFallback(function, path string, err error) {
	fields := logrus.Fields{
		"function": function,
		"path":     path,
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	logrus.WithFields(fields).Warn("Opus decode failed, falling back to ffmpeg")
}
