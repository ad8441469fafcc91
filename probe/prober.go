package probe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/opd-ai/velocut/codec"
	"github.com/opd-ai/velocut/decode"
	"github.com/opd-ai/velocut/frame"
	"github.com/sirupsen/logrus"
)

// Audio extraction output format.
const (
	ExtractRate     = 44100
	ExtractChannels = 2
)

// Prober answers one-shot metadata questions about a source file.
type Prober struct {
	backend codec.Backend
	audio   AudioSource
	tempDir string
}

// ProberConfig configures a Prober.
type ProberConfig struct {
	Backend codec.Backend
	// Audio defaults to NewRoutedAudio().
	Audio AudioSource
	// TempDir receives extracted audio. It defaults to os.TempDir().
	TempDir string
}

// NewProber creates a Prober.
func NewProber(cfg ProberConfig) *Prober {
	if cfg.Audio == nil {
		cfg.Audio = NewRoutedAudio()
	}
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	return &Prober{backend: cfg.Backend, audio: cfg.Audio, tempDir: cfg.TempDir}
}

// headerInfo runs the in-process header probe, logging real failures.
func (p *Prober) headerInfo(path string) (ContainerInfo, bool) {
	info, err := ProbeContainer(path)
	if err != nil {
		if !errors.Is(err, errNoHeaderProbe) {
			logrus.WithFields(logrus.Fields{
				"function": "Prober.headerInfo",
				"path":     path,
				"error":    err.Error(),
			}).Debug("Header probe failed, using decoder")
		}
		return ContainerInfo{}, false
	}
	return info, true
}

// Duration returns the clip length in seconds. The container duration is
// preferred; the best video stream, then the best audio stream, are the
// fallbacks.
func (p *Prober) Duration(path string) (float64, error) {
	if info, ok := p.headerInfo(path); ok && info.Duration > 0 {
		return info.Duration, nil
	}

	in, err := p.backend.Open(path)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	if d := in.Duration(); d > 0 {
		return d, nil
	}
	for _, kind := range []codec.MediaType{codec.MediaVideo, codec.MediaAudio} {
		s, err := in.BestStream(kind)
		if err != nil {
			continue
		}
		if d := s.DurationSeconds(); d > 0 {
			return d, nil
		}
	}
	return 0, ErrDurationUnknown
}

// VideoSize returns the native dimensions of the best video stream.
func (p *Prober) VideoSize(path string) (width, height int, err error) {
	if info, ok := p.headerInfo(path); ok && info.HasVideo && info.Width > 0 && info.Height > 0 {
		return info.Width, info.Height, nil
	}

	in, err := p.backend.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer in.Close()

	s, err := in.BestStream(codec.MediaVideo)
	if err != nil {
		return 0, 0, ErrNoVideo
	}
	if s.Width <= 0 || s.Height <= 0 {
		return 0, 0, ErrNoVideo
	}
	return s.Width, s.Height, nil
}

// Thumbnail decodes the still at ThumbnailTime(duration) and scales it to
// ThumbnailWidth.
func (p *Prober) Thumbnail(id uuid.UUID, path string, duration float64) (*Thumbnail, error) {
	f, err := decode.DecodeFrame(p.backend, id, decode.Params{
		Path:   path,
		Start:  ThumbnailTime(duration),
		Format: frame.FormatRGBA,
	})
	if err != nil {
		return nil, err
	}
	img, err := frame.ToImage(f)
	if err != nil {
		return nil, err
	}
	return resizeThumbnail(img), nil
}

// Waveform returns WaveformColumns peaks computed from mono audio.
func (p *Prober) Waveform(ctx context.Context, path string) ([]float32, error) {
	samples, err := p.audio.PCM(ctx, path, WaveformRate, 1)
	if err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, ErrNoAudio
	}
	return Peaks(samples, WaveformColumns), nil
}

// AudioPath is where ExtractAudio writes the track for id.
func (p *Prober) AudioPath(id uuid.UUID) string {
	return filepath.Join(p.tempDir, fmt.Sprintf("velocut_audio_%s.wav", id))
}

// ExtractAudio writes the audio track as a 44.1 kHz stereo WAV and returns
// its path.
func (p *Prober) ExtractAudio(ctx context.Context, id uuid.UUID, path string) (string, error) {
	dest := p.AudioPath(id)
	if err := p.audio.ExtractWAV(ctx, path, dest, ExtractRate, ExtractChannels); err != nil {
		return "", err
	}
	return dest, nil
}
