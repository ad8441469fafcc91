package probe

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Sink receives probe results. Each method may be called from any probe
// goroutine.
type Sink interface {
	Duration(id uuid.UUID, seconds float64)
	VideoSize(id uuid.UUID, width, height int)
	Thumbnail(id uuid.UUID, thumb *Thumbnail)
	Waveform(id uuid.UUID, peaks []float32)
	AudioPath(id uuid.UUID, path string)
	Error(id uuid.UUID, err error)
}

// Service runs full clip probes through a Gatekeeper.
type Service struct {
	prober  *Prober
	gate    *Gatekeeper
	sink    Sink
	ctx     context.Context
	cancel  context.CancelFunc

	// mu orders Submit against Shutdown so no probe is added to the gate
	// after Shutdown starts waiting on it.
	mu      sync.Mutex
	closing atomic.Bool
}

// NewService wires a prober, a gatekeeper and a result sink.
func NewService(prober *Prober, gate *Gatekeeper, sink Sink) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{prober: prober, gate: gate, sink: sink, ctx: ctx, cancel: cancel}
}

// Probe queues a full probe of path. Results arrive on the sink in order:
// duration, video size, thumbnail, waveform, audio path. The permit is
// returned after the thumbnail, before the slow audio work.
func (s *Service) Probe(id uuid.UUID, path string) {
	s.mu.Lock()
	if s.closing.Load() {
		s.mu.Unlock()
		s.sink.Error(id, ErrShuttingDown)
		return
	}
	s.gate.Submit(s.ctx, func(ctx context.Context, release func()) {
		s.run(ctx, id, path, release)
	})
	s.mu.Unlock()
}

func (s *Service) stopped(id uuid.UUID, phase string) bool {
	if !s.closing.Load() {
		return false
	}
	logrus.WithFields(logrus.Fields{
		"function": "Service.run",
		"clip_id":  id.String(),
		"phase":    phase,
	}).Debug("Probe abandoned for shutdown")
	return true
}

func (s *Service) run(ctx context.Context, id uuid.UUID, path string, release func()) {
	fields := logrus.Fields{
		"function": "Service.run",
		"clip_id":  id.String(),
		"path":     path,
	}
	logrus.WithFields(fields).Info("Probe admitted")

	if s.stopped(id, "duration") {
		return
	}
	dur, err := s.prober.Duration(path)
	if err != nil {
		s.sink.Error(id, err)
	} else {
		s.sink.Duration(id, dur)
	}

	if s.stopped(id, "thumbnail") {
		return
	}
	s.videoPhase(id, path, dur)
	release()

	if s.stopped(id, "waveform") {
		return
	}
	if peaks, err := s.prober.Waveform(ctx, path); err != nil {
		logrus.WithFields(fields).WithField("error", err.Error()).Warn("Waveform extraction failed")
	} else {
		s.sink.Waveform(id, peaks)
	}

	if s.stopped(id, "audio") || dur <= 0 {
		return
	}
	if dest, err := s.prober.ExtractAudio(ctx, id, path); err != nil {
		logrus.WithFields(fields).WithField("error", err.Error()).Warn("Audio extraction failed")
	} else {
		s.sink.AudioPath(id, dest)
	}
}

// videoPhase reports the size and thumbnail. Audio-only sources report
// neither; thumbnail failures are logged only.
func (s *Service) videoPhase(id uuid.UUID, path string, dur float64) {
	fields := logrus.Fields{
		"function": "Service.videoPhase",
		"clip_id":  id.String(),
		"path":     path,
	}
	w, h, err := s.prober.VideoSize(path)
	if err != nil {
		logrus.WithFields(fields).WithField("error", err.Error()).Debug("No video size")
		return
	}
	s.sink.VideoSize(id, w, h)

	thumb, err := s.prober.Thumbnail(id, path, dur)
	if err != nil {
		logrus.WithFields(fields).WithField("error", err.Error()).Warn("Thumbnail decode failed")
		return
	}
	s.sink.Thumbnail(id, thumb)
}

// Shutdown stops admitting probes, abandons queued ones and waits for
// running probes to reach their next phase boundary.
func (s *Service) Shutdown() {
	s.mu.Lock()
	if !s.closing.CompareAndSwap(false, true) {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	s.cancel()
	s.gate.Wait()
}
