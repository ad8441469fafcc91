package encode

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/opd-ai/velocut/codec"
	"github.com/opd-ai/velocut/decode"
	"github.com/opd-ai/velocut/frame"
	"github.com/opd-ai/velocut/transition"
	"github.com/sirupsen/logrus"
)

// DefaultProgressInterval is how many output frames pass between progress
// reports.
const DefaultProgressInterval = 15

// Outcome classifies how a job ended.
type Outcome string

const (
	OutcomeDone      Outcome = "done"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeFailed    Outcome = "failed"
)

// ProgressFunc receives the number of frames written so far and the
// expected total.
type ProgressFunc func(frame, total int)

// Observer receives encode activity. The metrics package implements it.
type Observer interface {
	EncodeFrame()
	EncodeFinished(outcome Outcome)
}

// Config configures an Encoder.
type Config struct {
	Backend codec.Backend
	// ProgressInterval defaults to DefaultProgressInterval.
	ProgressInterval int
	Observer         Observer
}

// Encoder renders jobs. One Encoder may run several jobs, each on its own
// goroutine.
type Encoder struct {
	backend  codec.Backend
	interval int
	observer Observer
}

// NewEncoder creates an Encoder.
func NewEncoder(cfg Config) *Encoder {
	if cfg.ProgressInterval <= 0 {
		cfg.ProgressInterval = DefaultProgressInterval
	}
	return &Encoder{backend: cfg.Backend, interval: cfg.ProgressInterval, observer: cfg.Observer}
}

// Run encodes job to its output path. When the output carries audio the
// whole track is staged before the header. cancel is polled after every
// frame; when it is set the encoder is drained, the trailer written and
// ErrCancelled returned. progress may be nil.
func (e *Encoder) Run(job *Job, cancel *Flag, progress ProgressFunc) (err error) {
	started := time.Now()
	fields := logrus.Fields{
		"function": "Encoder.Run",
		"job_id":   job.ID.String(),
		"output":   job.Output,
	}
	defer func() {
		outcome := OutcomeDone
		switch {
		case errors.Is(err, ErrCancelled):
			outcome = OutcomeCancelled
			logrus.WithFields(fields).Info("Encode cancelled")
		case err != nil:
			outcome = OutcomeFailed
			logrus.WithFields(fields).WithField("error", err.Error()).Error("Encode failed")
		default:
			logrus.WithFields(fields).WithField("elapsed", time.Since(started).String()).Info("Encode finished")
		}
		if e.observer != nil {
			e.observer.EncodeFinished(outcome)
		}
	}()

	if err := job.Validate(); err != nil {
		return err
	}
	if cancel == nil {
		cancel = new(Flag)
	}

	out, err := e.backend.Create(job.Output)
	if err != nil {
		return fmt.Errorf("create output %s: %w", job.Output, err)
	}
	defer out.Close()

	crf, preset := job.CRF, job.Preset
	if crf <= 0 {
		crf = DefaultCRF
	}
	if preset == "" {
		preset = DefaultPreset
	}
	if err := out.AddStream(codec.VideoConfig{
		Width: job.Width, Height: job.Height, FPS: job.FPS, CRF: crf, Preset: preset,
	}); err != nil {
		return fmt.Errorf("add video stream: %w", err)
	}
	if audio, ok := out.(codec.AudioOutput); ok {
		if err := e.stageAudio(job, audio, cancel); err != nil {
			return err
		}
	} else {
		logrus.WithFields(fields).Info("Output container has no audio track")
	}
	if err := out.WriteHeader(); err != nil {
		return fmt.Errorf("write output header: %w", err)
	}

	m := &muxer{
		out:      out,
		cancel:   cancel,
		progress: progress,
		interval: e.interval,
		total:    job.TotalFrames(),
		observer: e.observer,
	}
	logrus.WithFields(fields).WithFields(logrus.Fields{
		"clips":        len(job.Clips),
		"transitions":  len(job.Transitions),
		"total_frames": m.total,
	}).Info("Encode started")

	if err := e.encodeTimeline(job, m); err != nil {
		// Whatever was written stays playable.
		if ferr := m.finish(); ferr != nil {
			logrus.WithFields(fields).WithField("error", ferr.Error()).Warn("Flush after abort failed")
		}
		return err
	}
	return m.finish()
}

func (e *Encoder) encodeTimeline(job *Job, m *muxer) error {
	var tail []*frame.Frame
	var blend transition.Algorithm
	for i := range job.Clips {
		if m.cancel.Load() {
			return ErrCancelled
		}
		outgoing := job.BlendFrames(i)
		var next transition.Algorithm
		if outgoing > 0 {
			t, _ := job.transitionAt(i)
			alg, err := transition.Lookup(t.Kind)
			if err != nil {
				return err
			}
			next = alg
		}

		var err error
		tail, err = e.encodeClip(job, i, m, tail, blend, outgoing)
		if err != nil {
			return err
		}
		blend = next
	}
	return nil
}

// encodeClip writes clip i. incoming holds the previous clip's tail, which
// is blended with this clip's first len(incoming) frames. The clip's own
// last outgoing frames are held back and returned instead of written.
func (e *Encoder) encodeClip(job *Job, i int, m *muxer, incoming []*frame.Frame, blend transition.Algorithm, outgoing int) ([]*frame.Frame, error) {
	clip := job.Clips[i]
	s, err := decode.Open(e.backend, job.ID, decode.Params{
		Path:   clip.Path,
		Start:  clip.SourceOffset,
		Width:  job.Width,
		Height: job.Height,
		Format: frame.FormatYUV420P,
	})
	if err != nil {
		return nil, err
	}
	defer s.Close()

	halfFrame := 0.5 / float64(job.FPS)
	begin, end := clip.SourceOffset-halfFrame, clip.SourceOffset+clip.Duration
	s.SkipUntil(begin)

	var (
		head  int
		queue []*frame.Frame
	)
	for {
		f, err := s.NextFrame()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", clip.Path, err)
		}
		if f.Timestamp < begin {
			continue
		}
		if f.Timestamp >= end {
			break
		}

		if head < len(incoming) {
			out := make([]byte, len(f.Pixels))
			if err := transition.ApplyInto(blend, out, incoming[head].Pixels, f.Pixels, f.Width, f.Height,
				transition.Alpha(head, len(incoming))); err != nil {
				return nil, err
			}
			f.Pixels = out
			head++
			if err := m.write(f); err != nil {
				return nil, err
			}
			continue
		}

		queue = append(queue, f)
		if len(queue) > outgoing {
			if err := m.write(queue[0]); err != nil {
				return nil, err
			}
			queue = queue[1:]
		}
	}

	if head < len(incoming) {
		logrus.WithFields(logrus.Fields{
			"function": "Encoder.encodeClip",
			"path":     clip.Path,
			"dropped":  len(incoming) - head,
		}).Warn("Incoming clip ended inside its transition")
	}
	return queue, nil
}

// muxer stamps frames with the output frame counter and writes them.
type muxer struct {
	out      codec.Output
	cancel   *Flag
	progress ProgressFunc
	interval int
	total    int
	next     int64
	observer Observer
	finished bool
}

func (m *muxer) write(f *frame.Frame) error {
	packets, err := m.out.Encode(&codec.Picture{
		PTS:    m.next,
		HasPTS: true,
		Width:  f.Width,
		Height: f.Height,
		Data:   f.Pixels,
	})
	if err != nil {
		return fmt.Errorf("encode frame %d: %w", m.next, err)
	}
	if err := m.writePackets(packets); err != nil {
		return err
	}
	m.next++
	if m.observer != nil {
		m.observer.EncodeFrame()
	}
	if m.progress != nil && m.next%int64(m.interval) == 0 {
		m.progress(int(m.next), m.total)
	}
	if m.cancel.Load() {
		return ErrCancelled
	}
	return nil
}

func (m *muxer) writePackets(packets []codec.Packet) error {
	for _, pkt := range packets {
		if err := m.out.WritePacket(pkt); err != nil {
			return fmt.Errorf("write packet %d: %w", pkt.PTS, err)
		}
	}
	return nil
}

// finish drains the encoder and writes the trailer once.
func (m *muxer) finish() error {
	if m.finished {
		return nil
	}
	m.finished = true
	packets, err := m.out.Encode(nil)
	if err != nil {
		return fmt.Errorf("flush encoder: %w", err)
	}
	if err := m.writePackets(packets); err != nil {
		return err
	}
	if err := m.out.WriteTrailer(); err != nil {
		return fmt.Errorf("write trailer: %w", err)
	}
	return nil
}
