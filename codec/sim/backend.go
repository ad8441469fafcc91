package sim

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/opd-ai/velocut/codec"
)

// DefaultTimeBase is the 90 kHz clock used by MPEG transport streams.
var DefaultTimeBase = codec.Rational{Num: 1, Den: 90000}

// Clip describes one simulated source file.
type Clip struct {
	Path   string
	Width  int
	Height int
	FPS    int
	Frames int
	// GOP is the keyframe interval in frames; 0 or 1 means every frame.
	GOP int
	// StartPTS offsets every timestamp, in time base units.
	StartPTS int64
	// TimeBase defaults to DefaultTimeBase.
	TimeBase codec.Rational
	// SeekFails makes every Seek return an error without moving.
	SeekFails bool
	// Malformed lists frame indices whose packets fail to decode.
	Malformed map[int]bool
	// NoPTS lists frame indices decoded without a timestamp.
	NoPTS map[int]bool
	// HasAudio adds an audio stream to the stream list.
	HasAudio bool
	// AudioLevel is the value of every decoded sample; 0.5 by default.
	AudioLevel float32
}

func (c Clip) withDefaults() Clip {
	if c.Width == 0 {
		c.Width = 16
	}
	if c.Height == 0 {
		c.Height = 8
	}
	if c.FPS == 0 {
		c.FPS = 30
	}
	if c.GOP <= 0 {
		c.GOP = 1
	}
	if !c.TimeBase.Valid() {
		c.TimeBase = DefaultTimeBase
	}
	if c.AudioLevel == 0 {
		c.AudioLevel = 0.5
	}
	return c
}

// frameDuration is the spacing between frames in time base units.
func (c Clip) frameDuration() int64 {
	return c.TimeBase.Den / (c.TimeBase.Num * int64(c.FPS))
}

// Stats counts backend activity across all handles.
type Stats struct {
	Opens        int
	Seeks        int
	Decodes      int
	AudioDecodes int
}

// Backend is an in-memory codec.Backend.
type Backend struct {
	mu         sync.Mutex
	clips      map[string]Clip
	recordings map[string]*Recording
	stats      Stats

	// OnOpen runs at the start of every Open, outside the lock. Tests use
	// it to block a worker mid-request.
	OnOpen func(path string)
	// OnDecode runs before every decoded picture is returned.
	OnDecode func(path string, index int)
	// EncoderUnavailable makes Create fail with codec.ErrEncoderUnavailable.
	EncoderUnavailable bool
	// FailEncodeAt makes Encode fail on the given picture count (1-based).
	FailEncodeAt int
}

// NewBackend returns an empty simulated backend.
func NewBackend() *Backend {
	return &Backend{
		clips:      make(map[string]Clip),
		recordings: make(map[string]*Recording),
	}
}

// Name returns "sim".
func (b *Backend) Name() string { return "sim" }

// AddClip registers a clip, replacing any clip at the same path.
func (b *Backend) AddClip(c Clip) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clips[c.Path] = c.withDefaults()
}

// Stats returns a snapshot of activity counters.
func (b *Backend) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}

// Recording returns the output recorded at path, or nil.
func (b *Backend) Recording(path string) *Recording {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.recordings[path]
}

// Open opens a registered clip.
func (b *Backend) Open(path string) (codec.Input, error) {
	if hook := b.OnOpen; hook != nil {
		hook(path)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.clips[path]
	if !ok {
		return nil, fmt.Errorf("open %s: %w", path, os.ErrNotExist)
	}
	b.stats.Opens++
	return &input{backend: b, clip: c}, nil
}

// Create starts a new in-memory recording at path.
func (b *Backend) Create(path string) (codec.Output, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.EncoderUnavailable {
		return nil, codec.ErrEncoderUnavailable
	}
	rec := &Recording{Path: path}
	b.recordings[path] = rec
	return &output{backend: b, rec: rec, failAt: b.FailEncodeAt}, nil
}

// DecodeAudio returns constant AudioLevel samples for the part of the
// window that lies inside the clip.
func (b *Backend) DecodeAudio(ctx context.Context, path string, start, duration float64, cfg codec.AudioConfig) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.clips[path]
	if !ok {
		return nil, fmt.Errorf("decode audio %s: %w", path, os.ErrNotExist)
	}
	if !c.HasAudio {
		return nil, fmt.Errorf("%w: audio in %s", codec.ErrNoStream, path)
	}
	b.stats.AudioDecodes++

	length := float64(c.Frames) / float64(c.FPS)
	avail := min(duration, length-start)
	if avail <= 0 {
		return nil, nil
	}
	out := make([]float32, cfg.SamplesFor(avail)*cfg.Channels)
	for i := range out {
		out[i] = c.AudioLevel
	}
	return out, nil
}

func (b *Backend) countSeek() {
	b.mu.Lock()
	b.stats.Seeks++
	b.mu.Unlock()
}

func (b *Backend) countDecode() {
	b.mu.Lock()
	b.stats.Decodes++
	b.mu.Unlock()
}
