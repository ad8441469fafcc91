package scrub

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/opd-ai/velocut/codec"
	"github.com/opd-ai/velocut/decode"
	"github.com/opd-ai/velocut/frame"
	"github.com/sirupsen/logrus"
)

// DefaultReopenThreshold is how far ahead, in seconds, a request may land
// and still be served by decoding forward instead of reopening.
const DefaultReopenThreshold = 2.0

// DefaultResultBuffer is the capacity of the result channel.
const DefaultResultBuffer = 8

// Result is the outcome of one serviced request. Exactly one of Frame and
// Err is set.
type Result struct {
	Request Request
	Frame   *frame.Frame
	Err     error
}

// Observer receives arbiter activity. The metrics package implements it.
type Observer interface {
	ScrubServiced(reopened bool, elapsed time.Duration)
	ScrubFailed()
}

// Config controls an Arbiter.
type Config struct {
	Backend codec.Backend
	// ReopenThreshold defaults to DefaultReopenThreshold.
	ReopenThreshold float64
	// PreviewWidth is passed to each session; zero uses the decode default.
	PreviewWidth int
	// ResultBuffer defaults to DefaultResultBuffer.
	ResultBuffer int
	Observer     Observer
}

// Arbiter owns the scrub worker and its retained decode session.
type Arbiter struct {
	cfg     Config
	slot    *Slot
	results chan Result
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once

	// session is touched only by the Run goroutine.
	session *decode.Session
}

// NewArbiter returns an arbiter. Call Run on its own goroutine.
func NewArbiter(cfg Config) *Arbiter {
	if cfg.ReopenThreshold <= 0 {
		cfg.ReopenThreshold = DefaultReopenThreshold
	}
	if cfg.ResultBuffer <= 0 {
		cfg.ResultBuffer = DefaultResultBuffer
	}
	return &Arbiter{
		cfg:     cfg,
		slot:    NewSlot(),
		results: make(chan Result, cfg.ResultBuffer),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// Request queues r, superseding any request the worker has not started.
// A request with a nil id is ignored; use Shutdown.
func (a *Arbiter) Request(r Request) {
	if r.IsShutdown() {
		return
	}
	a.slot.Put(r)
}

// Results delivers decoded frames and per-request errors.
func (a *Arbiter) Results() <-chan Result { return a.results }

// Superseded counts requests dropped because a newer one arrived first.
func (a *Arbiter) Superseded() uint64 { return a.slot.Superseded() }

// Run services requests until Shutdown. It closes the retained session
// before returning.
func (a *Arbiter) Run() error {
	defer close(a.stopped)
	defer a.dropSession()

	for {
		req := a.slot.Take()
		if req.IsShutdown() {
			logrus.WithFields(logrus.Fields{
				"function": "Arbiter.Run",
			}).Debug("Scrub worker received shutdown")
			return nil
		}

		res := a.service(req)
		select {
		case a.results <- res:
		case <-a.done:
			return nil
		}
	}
}

// Shutdown stops the worker and waits for it to close its session. It is
// safe to call more than once and before Run has started, provided Run is
// eventually called.
func (a *Arbiter) Shutdown() {
	a.once.Do(func() {
		close(a.done)
		a.slot.Close()
	})
	<-a.stopped
}

func (a *Arbiter) service(req Request) Result {
	start := time.Now()
	params := decode.Params{
		Path:         req.Path,
		Start:        req.Timestamp,
		Aspect:       req.Aspect,
		PreviewWidth: a.cfg.PreviewWidth,
	}
	decision := decode.Decide(a.session, params, a.cfg.ReopenThreshold)

	var (
		f   *frame.Frame
		err error
	)
	if decision == decode.Reopen {
		f, err = a.reopen(req, params)
	} else {
		f, err = a.session.AdvanceTo(req.Timestamp)
	}

	if err != nil {
		a.dropSession()
		logrus.WithFields(logrus.Fields{
			"function":  "Arbiter.service",
			"path":      req.Path,
			"timestamp": req.Timestamp,
			"error":     err.Error(),
		}).Warn("Scrub decode failed")
		if a.cfg.Observer != nil {
			a.cfg.Observer.ScrubFailed()
		}
		return Result{Request: req, Err: err}
	}

	f.OwnerID = req.ID
	if a.cfg.Observer != nil {
		a.cfg.Observer.ScrubServiced(decision == decode.Reopen, time.Since(start))
	}
	logrus.WithFields(logrus.Fields{
		"function":  "Arbiter.service",
		"path":      req.Path,
		"timestamp": req.Timestamp,
		"decision":  decision.String(),
		"frame_ts":  f.Timestamp,
	}).Debug("Scrub frame decoded")
	return Result{Request: req, Frame: f}
}

func (a *Arbiter) reopen(req Request, params decode.Params) (*frame.Frame, error) {
	a.dropSession()
	s, err := decode.Open(a.cfg.Backend, req.ID, params)
	if err != nil {
		return nil, err
	}
	a.session = s
	s.SkipUntil(req.Timestamp)
	f, err := s.NextFrame()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %s at %.3fs", decode.ErrNoFrame, req.Path, req.Timestamp)
	}
	return f, err
}

func (a *Arbiter) dropSession() {
	if a.session != nil {
		a.session.Close()
		a.session = nil
	}
}
