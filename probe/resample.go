package probe

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Resampler converts interleaved float32 PCM between sample rates by
// linear interpolation. It keeps the last input frame between calls, so a
// stream may be fed in chunks.
type Resampler struct {
	inputRate  int
	outputRate int
	channels   int
	position   float64
	last       []float32
	primed     bool
}

// ResamplerConfig describes a conversion.
type ResamplerConfig struct {
	InputRate  int
	OutputRate int
	Channels   int
}

// NewResampler validates cfg and returns a resampler.
func NewResampler(cfg ResamplerConfig) (*Resampler, error) {
	if cfg.InputRate <= 0 || cfg.OutputRate <= 0 {
		return nil, fmt.Errorf("invalid sample rates: input=%d, output=%d", cfg.InputRate, cfg.OutputRate)
	}
	if cfg.Channels < 1 || cfg.Channels > 2 {
		return nil, fmt.Errorf("unsupported channel count: %d (must be 1 or 2)", cfg.Channels)
	}

	logrus.WithFields(logrus.Fields{
		"function":    "NewResampler",
		"input_rate":  cfg.InputRate,
		"output_rate": cfg.OutputRate,
		"channels":    cfg.Channels,
	}).Debug("Created audio resampler")

	return &Resampler{
		inputRate:  cfg.InputRate,
		outputRate: cfg.OutputRate,
		channels:   cfg.Channels,
		last:       make([]float32, cfg.Channels),
	}, nil
}

// Resample converts one chunk. The input length must be a multiple of the
// channel count.
func (r *Resampler) Resample(input []float32) ([]float32, error) {
	if len(input)%r.channels != 0 {
		return nil, fmt.Errorf("input samples (%d) not aligned to channel count (%d)", len(input), r.channels)
	}
	if len(input) == 0 {
		return nil, nil
	}
	if r.inputRate == r.outputRate {
		return append([]float32(nil), input...), nil
	}

	frames := len(input) / r.channels
	step := float64(r.inputRate) / float64(r.outputRate)
	out := make([]float32, 0, int(float64(frames)/step+1)*r.channels)

	// sample returns input frame i for channel ch, where i == -1 is the
	// final frame of the previous chunk.
	sample := func(i, ch int) float32 {
		if i < 0 {
			if !r.primed {
				return input[ch]
			}
			return r.last[ch]
		}
		return input[i*r.channels+ch]
	}

	for r.position < float64(frames-1) {
		idx := int(r.position)
		if r.position < 0 {
			idx = -1
		}
		frac := float32(r.position - float64(idx))
		for ch := 0; ch < r.channels; ch++ {
			a, b := sample(idx, ch), sample(idx+1, ch)
			out = append(out, a+(b-a)*frac)
		}
		r.position += step
	}

	// Carry the fractional position into the next chunk, measured from its
	// first frame; -1 addresses the frame saved below.
	r.position -= float64(frames)
	copy(r.last, input[len(input)-r.channels:])
	r.primed = true
	return out, nil
}

// ResampleAll converts a complete buffer in one call.
func ResampleAll(input []float32, from, to, channels int) ([]float32, error) {
	r, err := NewResampler(ResamplerConfig{InputRate: from, OutputRate: to, Channels: channels})
	if err != nil {
		return nil, err
	}
	return r.Resample(input)
}
