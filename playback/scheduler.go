package playback

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/google/uuid"
	"github.com/opd-ai/velocut/codec"
	"github.com/opd-ai/velocut/decode"
	"github.com/opd-ai/velocut/frame"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultLookahead is the frame channel capacity.
	DefaultLookahead = 32
	// DefaultCommandBuffer is the command channel capacity.
	DefaultCommandBuffer = 4
)

// StartRequest begins playback of ID at Timestamp seconds into Path.
type StartRequest struct {
	ID        uuid.UUID
	Path      string
	Timestamp float64
	Aspect    float64
}

type command struct {
	stop     bool
	shutdown bool
	start    StartRequest
}

// Observer receives playback activity. The metrics package implements it.
type Observer interface {
	PlaybackDecoded()
	PlaybackPromoted()
	PlaybackDiscarded()
}

// Config controls a Scheduler.
type Config struct {
	Backend codec.Backend
	// Lookahead defaults to DefaultLookahead.
	Lookahead int
	// CommandBuffer defaults to DefaultCommandBuffer.
	CommandBuffer int
	PreviewWidth  int
	// OnError is called from the scheduler goroutine when a session cannot
	// be opened or fails mid-stream. End of stream is not an error.
	OnError  func(id uuid.UUID, err error)
	Observer Observer
}

// Scheduler is the playback decode worker.
type Scheduler struct {
	cfg     Config
	cmds    chan command
	frames  chan *frame.Frame
	stopped chan struct{}
	once    sync.Once

	// Owned by the Run goroutine.
	session *decode.Session
	id      uuid.UUID
}

// NewScheduler returns a scheduler. Call Run on its own goroutine.
func NewScheduler(cfg Config) *Scheduler {
	if cfg.Lookahead <= 0 {
		cfg.Lookahead = DefaultLookahead
	}
	if cfg.CommandBuffer <= 0 {
		cfg.CommandBuffer = DefaultCommandBuffer
	}
	return &Scheduler{
		cfg:     cfg,
		cmds:    make(chan command, cfg.CommandBuffer),
		frames:  make(chan *frame.Frame, cfg.Lookahead),
		stopped: make(chan struct{}),
	}
}

// Frames is the lookahead channel. Frames are in strictly increasing
// timestamp order within one Start.
func (s *Scheduler) Frames() <-chan *frame.Frame { return s.frames }

// Start drains frames left from earlier playback and queues a start
// command. It never blocks and reports false if the command queue is full.
func (s *Scheduler) Start(req StartRequest) bool {
	s.Flush()
	select {
	case s.cmds <- command{start: req}:
		return true
	default:
		logrus.WithFields(logrus.Fields{
			"function": "Scheduler.Start",
			"path":     req.Path,
		}).Warn("Playback command queue full, start dropped")
		return false
	}
}

// Stop queues a stop command without blocking.
func (s *Scheduler) Stop() bool {
	select {
	case s.cmds <- command{stop: true}:
		return true
	default:
		return false
	}
}

// Flush discards every frame waiting in the lookahead channel.
func (s *Scheduler) Flush() int {
	n := 0
	for {
		select {
		case <-s.frames:
			n++
		default:
			return n
		}
	}
}

// Shutdown sends the shutdown command and waits for Run to return. It is
// safe to call more than once, provided Run is eventually called.
func (s *Scheduler) Shutdown() {
	s.once.Do(func() {
		select {
		case s.cmds <- command{shutdown: true}:
		case <-s.stopped:
		}
	})
	<-s.stopped
}

// Run decodes until ctx is cancelled or Shutdown is called. It closes any
// open session on return.
func (s *Scheduler) Run(ctx context.Context) error {
	defer close(s.stopped)
	defer s.drop()

	for {
		if s.session == nil {
			select {
			case <-ctx.Done():
				return nil
			case cmd := <-s.cmds:
				if !s.handle(cmd) {
					return nil
				}
			}
			continue
		}

		select {
		case <-ctx.Done():
			return nil
		case cmd := <-s.cmds:
			if !s.handle(cmd) {
				return nil
			}
			continue
		default:
		}

		f, err := s.session.NextFrame()
		if err != nil {
			s.fail(err)
			continue
		}
		f.OwnerID = s.id
		if s.cfg.Observer != nil {
			s.cfg.Observer.PlaybackDecoded()
		}

		select {
		case s.frames <- f:
		case cmd := <-s.cmds:
			// A command arrived while the consumer was behind; the frame
			// belongs to the session being replaced.
			if !s.handle(cmd) {
				return nil
			}
		case <-ctx.Done():
			return nil
		}
	}
}

// handle applies cmd and reports whether the scheduler keeps running.
func (s *Scheduler) handle(cmd command) bool {
	s.drop()
	if cmd.shutdown {
		logrus.WithFields(logrus.Fields{
			"function": "Scheduler.handle",
		}).Debug("Playback worker received shutdown")
		return false
	}
	if cmd.stop {
		logrus.WithFields(logrus.Fields{
			"function": "Scheduler.handle",
		}).Debug("Playback stopped")
		return true
	}

	req := cmd.start
	sess, err := decode.Open(s.cfg.Backend, req.ID, decode.Params{
		Path:         req.Path,
		Start:        req.Timestamp,
		Aspect:       req.Aspect,
		PreviewWidth: s.cfg.PreviewWidth,
	})
	if err != nil {
		s.report(req.ID, err)
		return true
	}
	// Burn through before the first send so the first delivered frame is
	// the one at the requested position.
	if err := sess.BurnTo(req.Timestamp); err != nil {
		sess.Close()
		s.report(req.ID, err)
		return true
	}
	s.session, s.id = sess, req.ID

	logrus.WithFields(logrus.Fields{
		"function":  "Scheduler.handle",
		"path":      req.Path,
		"timestamp": req.Timestamp,
	}).Debug("Playback started")
	return true
}

func (s *Scheduler) fail(err error) {
	id := s.id
	s.drop()
	if errors.Is(err, io.EOF) {
		logrus.WithFields(logrus.Fields{
			"function": "Scheduler.Run",
			"id":       id.String(),
		}).Debug("Playback reached end of stream")
		return
	}
	s.report(id, err)
}

func (s *Scheduler) report(id uuid.UUID, err error) {
	logrus.WithFields(logrus.Fields{
		"function": "Scheduler",
		"id":       id.String(),
		"error":    err.Error(),
	}).Warn("Playback decode failed")
	if s.cfg.OnError != nil {
		s.cfg.OnError(id, err)
	}
}

func (s *Scheduler) drop() {
	if s.session != nil {
		s.session.Close()
		s.session = nil
	}
	s.id = uuid.Nil
}
