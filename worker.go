package velocut

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/opd-ai/velocut/cache"
	"github.com/opd-ai/velocut/codec"
	"github.com/opd-ai/velocut/decode"
	"github.com/opd-ai/velocut/encode"
	"github.com/opd-ai/velocut/factory"
	"github.com/opd-ai/velocut/frame"
	"github.com/opd-ai/velocut/metrics"
	"github.com/opd-ai/velocut/playback"
	"github.com/opd-ai/velocut/preview"
	"github.com/opd-ai/velocut/probe"
	"github.com/opd-ai/velocut/scrub"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var cancelledMessage = encode.ErrCancelled.Error()

// MediaWorker is the command-in, results-out facade over the decode, probe
// and encode workers. Commands never block the caller.
type MediaWorker struct {
	opts    *Options
	backend codec.Backend
	metrics *metrics.Metrics

	arbiter   *scrub.Arbiter
	scheduler *playback.Scheduler
	probes    *probe.Service
	encoder   *encode.Encoder
	jobs      *encode.CancelRegistry

	scrubResults chan MediaResult
	results      chan MediaResult

	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group
	tasks  sync.WaitGroup
	closed atomic.Bool
	once   sync.Once

	// mu orders task registration and result delivery against Shutdown.
	mu     sync.RWMutex
	sealed bool
}

// NewMediaWorker starts the scrub and playback workers. A nil backend is
// created by name from opts.Backend. m may be nil.
func NewMediaWorker(opts *Options, backend codec.Backend, m *metrics.Metrics) (*MediaWorker, error) {
	if opts == nil {
		opts = NewOptions()
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if backend == nil {
		b, err := factory.NewBackendFactory().Create(opts.Backend)
		if err != nil {
			return nil, fmt.Errorf("create backend: %w", err)
		}
		backend = b
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &MediaWorker{
		opts:         opts,
		backend:      backend,
		metrics:      m,
		jobs:         encode.NewCancelRegistry(),
		scrubResults: make(chan MediaResult, opts.ScrubResultBuffer),
		results:      make(chan MediaResult, opts.ResultBuffer),
		ctx:          ctx,
		cancel:       cancel,
	}

	w.arbiter = scrub.NewArbiter(scrub.Config{
		Backend:         backend,
		ReopenThreshold: opts.ReopenThreshold,
		PreviewWidth:    opts.PreviewShortSide,
		ResultBuffer:    opts.ScrubResultBuffer,
		Observer:        m,
	})
	m.WatchSuperseded(w.arbiter.Superseded)

	w.scheduler = playback.NewScheduler(playback.Config{
		Backend:       backend,
		Lookahead:     opts.LookaheadFrames,
		CommandBuffer: opts.PlaybackCommandBuffer,
		PreviewWidth:  opts.PreviewShortSide,
		OnError:       w.clipError,
		Observer:      m,
	})

	prober := probe.NewProber(probe.ProberConfig{Backend: backend, TempDir: opts.TempDir})
	w.probes = probe.NewService(prober, probe.NewGatekeeper(opts.ProbeConcurrency, m), sink{w})

	w.encoder = encode.NewEncoder(encode.Config{
		Backend:          backend,
		ProgressInterval: opts.ProgressInterval,
		Observer:         m,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(w.arbiter.Run)
	g.Go(func() error { return w.scheduler.Run(gctx) })
	g.Go(func() error { return w.forwardScrub(gctx) })
	w.group = g

	logrus.WithFields(logrus.Fields{
		"function":    "NewMediaWorker",
		"backend":     backend.Name(),
		"lookahead":   opts.LookaheadFrames,
		"probe_limit": opts.ProbeConcurrency,
	}).Info("Media worker started")
	return w, nil
}

// ScrubResults carries VideoFrame and Error results for scrub requests.
// It is separate from Results so probe and encode traffic cannot delay it.
func (w *MediaWorker) ScrubResults() <-chan MediaResult { return w.scrubResults }

// Results carries every other result.
func (w *MediaWorker) Results() <-chan MediaResult { return w.results }

// PlaybackFrames is the playback lookahead channel.
func (w *MediaWorker) PlaybackFrames() <-chan *frame.Frame { return w.scheduler.Frames() }

// NewPreview builds a preview controller driven by this worker, with its
// own frame cache and PTS gate.
func (w *MediaWorker) NewPreview(clock preview.TimeProvider) *preview.Controller {
	c := cache.New(cache.Config{
		CeilingBytes: w.opts.CacheCeiling(),
		EvictBatch:   w.opts.EvictBatch,
		Observer:     w.metrics,
	})
	gate := playback.NewGate(w.PlaybackFrames(), playback.GateConfig{
		StaleTolerance: w.opts.StaleTolerance,
		Observer:       w.metrics,
	})
	return preview.NewController(preview.Config{
		Cache:        c,
		Requester:    w,
		Gate:         gate,
		IdleDebounce: w.opts.IdleDebounce,
		Clock:        clock,
	})
}

// RequestFrame asks for one preview frame. Pending requests that have not
// started are replaced.
func (w *MediaWorker) RequestFrame(id uuid.UUID, path string, timestamp, aspect float64) {
	if w.closed.Load() {
		return
	}
	w.arbiter.Request(scrub.Request{ID: id, Path: path, Timestamp: timestamp, Aspect: aspect})
}

// StartPlayback begins streaming frames from timestamp. Frames left in
// the lookahead channel from earlier playback are discarded first.
func (w *MediaWorker) StartPlayback(id uuid.UUID, path string, timestamp, aspect float64) {
	if w.closed.Load() {
		return
	}
	w.scheduler.Start(playback.StartRequest{ID: id, Path: path, Timestamp: timestamp, Aspect: aspect})
}

// StopPlayback ends streaming.
func (w *MediaWorker) StopPlayback() {
	if w.closed.Load() {
		return
	}
	if !w.scheduler.Stop() {
		logrus.WithFields(logrus.Fields{
			"function": "MediaWorker.StopPlayback",
		}).Warn("Playback command queue full, stop dropped")
	}
}

// ProbeClip queues a metadata probe. Results arrive on Results in order:
// Duration, VideoSize, Thumbnail, Waveform, AudioPath.
func (w *MediaWorker) ProbeClip(id uuid.UUID, path string) {
	w.probes.Probe(id, path)
}

// ExtractFrame decodes the frame at timestamp at native size and writes it
// to dest. The image format follows the file extension. FrameSaved or
// Error is delivered on Results.
func (w *MediaWorker) ExtractFrame(id uuid.UUID, path string, timestamp float64, dest string) {
	if !w.track() {
		w.emit(Error{ID: id, Message: ErrWorkerClosed.Error()})
		return
	}
	go func() {
		defer w.tasks.Done()
		if err := w.saveFrame(id, path, timestamp, dest); err != nil {
			w.clipError(id, err)
			return
		}
		w.emit(FrameSaved{Path: dest})
	}()
}

func (w *MediaWorker) saveFrame(id uuid.UUID, path string, timestamp float64, dest string) error {
	f, err := decode.DecodeFrame(w.backend, id, decode.Params{Path: path, Start: timestamp})
	if err != nil {
		return err
	}
	img, err := frame.ToImage(f)
	if err != nil {
		return err
	}
	if err := imaging.Save(img, dest); err != nil {
		return fmt.Errorf("save frame %s: %w", dest, err)
	}

	logrus.WithFields(logrus.Fields{
		"function":  "MediaWorker.ExtractFrame",
		"path":      path,
		"timestamp": timestamp,
		"dest":      dest,
	}).Info("Saved frame")
	return nil
}

// StartEncode runs job on its own goroutine. Progress, and then exactly
// one EncodeDone or EncodeError, are delivered on Results.
func (w *MediaWorker) StartEncode(job *encode.Job) {
	if !w.track() {
		w.emit(EncodeError{JobID: job.ID, Message: encode.ErrShuttingDown.Error()})
		return
	}
	flag, err := w.jobs.Register(job.ID)
	if err != nil {
		w.tasks.Done()
		w.emit(EncodeError{JobID: job.ID, Message: err.Error()})
		return
	}

	go func() {
		defer w.tasks.Done()

		err := w.encoder.Run(job, flag, func(n, total int) {
			w.emit(EncodeProgress{JobID: job.ID, Frame: n, Total: total})
		})
		w.jobs.Done(job.ID)
		switch {
		case err == nil:
			w.emit(EncodeDone{JobID: job.ID, OutputPath: job.Output})
		case errors.Is(err, encode.ErrCancelled):
			w.emit(EncodeError{JobID: job.ID, Message: cancelledMessage})
		default:
			w.emit(EncodeError{JobID: job.ID, Message: err.Error()})
		}
	}()
}

// CancelEncode asks a running job to stop. It reports whether the job was
// found.
func (w *MediaWorker) CancelEncode(id uuid.UUID) bool {
	return w.jobs.Cancel(id)
}

// Shutdown cancels running encodes, stops every worker and closes the
// result channels. Results not yet consumed may be dropped. It is safe to
// call more than once.
func (w *MediaWorker) Shutdown() error {
	var err error
	w.once.Do(func() {
		// Cancel first so emitters blocked on a full channel let go of mu.
		w.jobs.CancelAll()
		w.cancel()
		w.mu.Lock()
		w.closed.Store(true)
		w.mu.Unlock()

		w.scheduler.Shutdown()
		w.arbiter.Shutdown()
		w.probes.Shutdown()
		err = w.group.Wait()
		w.tasks.Wait()

		w.mu.Lock()
		w.sealed = true
		close(w.scrubResults)
		close(w.results)
		w.mu.Unlock()

		logrus.WithFields(logrus.Fields{
			"function": "MediaWorker.Shutdown",
		}).Info("Media worker stopped")
	})
	return err
}

func (w *MediaWorker) forwardScrub(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case res := <-w.arbiter.Results():
			var out MediaResult
			if res.Err != nil {
				out = Error{ID: res.Request.ID, Message: res.Err.Error()}
			} else {
				out = videoFrame(res.Frame)
			}
			select {
			case w.scrubResults <- out:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

func (w *MediaWorker) clipError(id uuid.UUID, err error) {
	w.emit(Error{ID: id, Message: err.Error()})
}

// track registers a background task unless the worker is closed.
func (w *MediaWorker) track() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed.Load() {
		return false
	}
	w.tasks.Add(1)
	return true
}

// emit delivers r unless the worker is shutting down.
func (w *MediaWorker) emit(r MediaResult) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.sealed {
		return
	}
	select {
	case w.results <- r:
	case <-w.ctx.Done():
		logrus.WithFields(logrus.Fields{
			"function": "MediaWorker.emit",
			"result":   fmt.Sprintf("%T", r),
		}).Debug("Result dropped during shutdown")
	}
}

func videoFrame(f *frame.Frame) VideoFrame {
	return VideoFrame{
		ID:        f.OwnerID,
		Timestamp: f.Timestamp,
		Width:     f.Width,
		Height:    f.Height,
		Pixels:    f.Pixels,
	}
}

// Frame rebuilds the decoded frame carried by v.
func (v VideoFrame) Frame() (*frame.Frame, error) {
	return frame.Wrap(v.ID, v.Timestamp, v.Width, v.Height, frame.FormatRGBA, v.Pixels)
}

// sink adapts probe results onto the shared result channel.
type sink struct{ w *MediaWorker }

func (s sink) Duration(id uuid.UUID, seconds float64) {
	s.w.emit(Duration{ID: id, Seconds: seconds})
}

func (s sink) VideoSize(id uuid.UUID, width, height int) {
	s.w.emit(VideoSize{ID: id, Width: width, Height: height})
}

func (s sink) Thumbnail(id uuid.UUID, thumb *probe.Thumbnail) {
	s.w.emit(Thumbnail{ID: id, Width: thumb.Width, Height: thumb.Height, RGBA: thumb.RGBA})
}

func (s sink) Waveform(id uuid.UUID, peaks []float32) {
	s.w.emit(Waveform{ID: id, Peaks: peaks})
}

func (s sink) AudioPath(id uuid.UUID, path string) {
	s.w.emit(AudioPath{ID: id, Path: path})
}

func (s sink) Error(id uuid.UUID, err error) { s.w.clipError(id, err) }
