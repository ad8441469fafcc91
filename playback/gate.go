package playback

import (
	"github.com/google/uuid"
	"github.com/opd-ai/velocut/frame"
)

// Gate defaults, in seconds.
const (
	DefaultFrameInterval  = 1.0 / 30.0
	DefaultLead           = 1.0 / 60.0
	DefaultStaleTolerance = 3.0
)

// GateConfig controls promotion windows. Zero fields take the defaults.
type GateConfig struct {
	// FrameInterval is how far behind the position a pending frame may be
	// before newer frames are pulled to replace it.
	FrameInterval float64
	// Lead is how far ahead of the position a frame may be promoted.
	Lead float64
	// StaleTolerance is how far behind a frame may be and still be shown.
	// It covers the longest expected burn-through after a start.
	StaleTolerance float64
	Observer       Observer
}

// Gate holds at most one pending playback frame and promotes it when due.
// It is used from a single consumer goroutine.
type Gate struct {
	src     <-chan *frame.Frame
	pending *frame.Frame
	cfg     GateConfig
}

// NewGate reads frames from src.
func NewGate(src <-chan *frame.Frame, cfg GateConfig) *Gate {
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = DefaultFrameInterval
	}
	if cfg.Lead <= 0 {
		cfg.Lead = DefaultLead
	}
	if cfg.StaleTolerance <= 0 {
		cfg.StaleTolerance = DefaultStaleTolerance
	}
	return &Gate{src: src, cfg: cfg}
}

// Pending returns the held frame, if any.
func (g *Gate) Pending() *frame.Frame { return g.pending }

// Reset drops the held frame.
func (g *Gate) Reset() { g.pending = nil }

// Tick advances the gate for clip owner at position seconds and returns
// the frame to display, or nil when nothing is due.
func (g *Gate) Tick(owner uuid.UUID, position float64) *frame.Frame {
	if g.pending == nil {
		g.pending = g.pull()
	}

	// Drop frames from another clip or too far behind to ever be due.
	for g.pending != nil && g.unusable(owner, position) {
		g.discarded()
		g.pending = g.pull()
	}

	// The consumer fell behind the decoder; skip to the newest overdue frame.
	for g.pending != nil && g.pending.Timestamp < position-g.cfg.FrameInterval {
		next := g.pull()
		if next == nil {
			break
		}
		g.discarded()
		g.pending = next
		for g.pending != nil && g.unusable(owner, position) {
			g.discarded()
			g.pending = g.pull()
		}
	}

	if g.pending == nil || g.pending.Timestamp > position+g.cfg.Lead {
		return nil
	}

	out := g.pending
	g.pending = g.pull()
	if g.cfg.Observer != nil {
		g.cfg.Observer.PlaybackPromoted()
	}
	return out
}

func (g *Gate) unusable(owner uuid.UUID, position float64) bool {
	return g.pending.OwnerID != owner || g.pending.Timestamp < position-g.cfg.StaleTolerance
}

func (g *Gate) discarded() {
	if g.cfg.Observer != nil {
		g.cfg.Observer.PlaybackDiscarded()
	}
}

func (g *Gate) pull() *frame.Frame {
	select {
	case f, ok := <-g.src:
		if !ok {
			return nil
		}
		return f
	default:
		return nil
	}
}
