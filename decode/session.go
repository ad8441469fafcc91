package decode

import (
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/opd-ai/velocut/codec"
	"github.com/opd-ai/velocut/frame"
	"github.com/sirupsen/logrus"
)

// State is the position of a Session in its lifecycle.
type State int

const (
	StateIdle State = iota
	StateSeeking
	StateDecoding
	StateBurnThrough
	StateEOF
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSeeking:
		return "seeking"
	case StateDecoding:
		return "decoding"
	case StateBurnThrough:
		return "burn-through"
	case StateEOF:
		return "eof"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Session is a retained decoder for one clip. It is not safe for
// concurrent use; each worker owns its own.
type Session struct {
	owner  uuid.UUID
	path   string
	input  codec.Input
	stream codec.Stream
	scaler *frame.Scaler
	width  int
	height int
	format frame.Format

	lastPTS   int64
	skipUntil int64
	state     State

	// held is the picture BurnTo stopped on. It is returned by the next
	// decode so the target frame itself is not lost.
	held    *codec.Picture
	heldPTS int64
}

// Open opens path on backend, seeks near p.Start and prepares the output
// scaler. Frames produced by the session carry owner as their OwnerID.
func Open(backend codec.Backend, owner uuid.UUID, p Params) (*Session, error) {
	in, err := backend.Open(p.Path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", p.Path, err)
	}

	stream, err := in.BestStream(codec.MediaVideo)
	if err != nil {
		in.Close()
		return nil, fmt.Errorf("%w: %s: %v", ErrNoVideo, p.Path, err)
	}

	s := &Session{
		owner:  owner,
		path:   p.Path,
		input:  in,
		stream: stream,
		scaler: frame.NewScaler(),
		format: p.Format,
		state:  StateIdle,
	}
	s.width, s.height = s.sizeFor(p)

	seekTS := stream.SecondsToPTS(p.Start)
	if seekTS > 0 {
		s.state = StateSeeking
		if err := in.Seek(seekTS); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "decode.Open",
				"path":     p.Path,
				"target":   p.Start,
				"error":    err.Error(),
			}).Warn("Seek failed, relying on timestamp filtering")
		}
	}

	// The landing position is the keyframe at or before seekTS, which can be
	// well before it. seekTS-1 keeps AdvanceTo(p.Start) from short-circuiting.
	s.lastPTS = seekTS - 1
	s.state = StateDecoding

	logrus.WithFields(logrus.Fields{
		"function": "decode.Open",
		"path":     p.Path,
		"start":    p.Start,
		"width":    s.width,
		"height":   s.height,
		"format":   s.format.String(),
	}).Debug("Opened decode session")

	return s, nil
}

// sizeFor is the output size a session opened with p would produce.
func (s *Session) sizeFor(p Params) (width, height int) {
	width, height = TargetSize(p, s.stream.Width, s.stream.Height)
	if s.format == frame.FormatYUV420P {
		width, height = width&^1, height&^1
	}
	return width, height
}

// Path returns the source path.
func (s *Session) Path() string { return s.path }

// Owner returns the id stamped on produced frames.
func (s *Session) Owner() uuid.UUID { return s.owner }

// Stream returns the decoded video stream.
func (s *Session) Stream() codec.Stream { return s.stream }

// State returns the current lifecycle state.
func (s *Session) State() State { return s.state }

// LastPTS is the timestamp of the most recently decoded picture.
func (s *Session) LastPTS() int64 { return s.lastPTS }

// Size returns the output dimensions.
func (s *Session) Size() (width, height int) { return s.width, s.height }

// ToPTS converts seconds to the stream time base.
func (s *Session) ToPTS(seconds float64) int64 { return s.stream.SecondsToPTS(seconds) }

// ToSeconds converts a stream timestamp to seconds.
func (s *Session) ToSeconds(pts int64) float64 { return s.stream.PTSToSeconds(pts) }

// SkipUntil makes the next NextFrame discard, without scaling, every
// picture before the given position.
func (s *Session) SkipUntil(seconds float64) {
	s.skipUntil = s.ToPTS(seconds)
}

// decodePicture returns the next decodable picture, skipping malformed
// packets, and advances lastPTS.
func (s *Session) decodePicture() (*codec.Picture, int64, error) {
	if s.held != nil {
		pic, pts := s.held, s.heldPTS
		s.held = nil
		return pic, pts, nil
	}
	for {
		pic, err := s.input.Decode()
		if err != nil {
			if errors.Is(err, codec.ErrMalformedPacket) {
				logrus.WithFields(logrus.Fields{
					"function": "Session.decodePicture",
					"path":     s.path,
					"error":    err.Error(),
				}).Debug("Skipping malformed packet")
				continue
			}
			if errors.Is(err, io.EOF) {
				s.state = StateEOF
			}
			return nil, 0, err
		}
		pts := s.lastPTS + 1
		if pic.HasPTS {
			pts = pic.PTS
		}
		s.lastPTS = pts
		return pic, pts, nil
	}
}

// convert scales a native picture into the session's output format.
func (s *Session) convert(pic *codec.Picture, pts int64) (*frame.Frame, error) {
	src, err := frame.Wrap(s.owner, s.ToSeconds(pts), pic.Width, pic.Height, frame.FormatYUV420P, pic.Data)
	if err != nil {
		return nil, fmt.Errorf("decoded picture: %w", err)
	}
	switch s.format {
	case frame.FormatYUV420P:
		if src.Width == s.width && src.Height == s.height {
			return src, nil
		}
		return s.scaler.Scale(src, s.width, s.height)
	case frame.FormatRGBA:
		return s.scaler.ScaleToRGBA(src, s.width, s.height)
	default:
		return nil, fmt.Errorf("%w: %s", frame.ErrUnsupportedFormat, s.format)
	}
}

// NextFrame decodes sequentially and returns the next presentable frame.
// It returns io.EOF at end of stream.
func (s *Session) NextFrame() (*frame.Frame, error) {
	for {
		pic, pts, err := s.decodePicture()
		if err != nil {
			return nil, err
		}
		if s.skipUntil > 0 && pts < s.skipUntil {
			s.state = StateBurnThrough
			continue
		}
		s.skipUntil = 0
		s.state = StateDecoding
		return s.convert(pic, pts)
	}
}

// AdvanceTo decodes forward and returns the first frame at or past target
// seconds. If the stream ends first, the last decoded frame is returned.
func (s *Session) AdvanceTo(target float64) (*frame.Frame, error) {
	tpts := s.ToPTS(target)
	return s.advance(func(pts int64) bool { return pts >= tpts })
}

// FrameAt is AdvanceTo with a tolerance of one 60 Hz tick, used for
// one-shot decodes where a keyframe-aligned seek may land slightly early.
func (s *Session) FrameAt(target float64) (*frame.Frame, error) {
	return s.advance(func(pts int64) bool {
		return s.ToSeconds(pts) >= target-1.0/60.0
	})
}

func (s *Session) advance(due func(pts int64) bool) (*frame.Frame, error) {
	var (
		lastPic *codec.Picture
		lastPTS int64
	)
	for {
		pic, pts, err := s.decodePicture()
		if err != nil {
			if errors.Is(err, io.EOF) && lastPic != nil {
				return s.convert(lastPic, lastPTS)
			}
			if errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("%w: %s", ErrNoFrame, s.path)
			}
			return nil, err
		}
		if due(pts) {
			return s.convert(pic, pts)
		}
		lastPic, lastPTS = pic, pts
	}
}

// BurnTo decodes without scaling until the last decoded timestamp reaches
// target seconds. The picture that reaches the target is held and becomes
// the next frame returned. BurnTo is a no-op when the target is at or
// before zero or already behind the session. Reaching end of stream is not
// an error.
func (s *Session) BurnTo(target float64) error {
	tpts := s.ToPTS(target)
	if tpts <= 0 || tpts <= s.lastPTS {
		return nil
	}
	s.state = StateBurnThrough
	burned := 0
	for {
		pic, pts, err := s.decodePicture()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if pts >= tpts {
			s.held, s.heldPTS = pic, pts
			break
		}
		burned++
	}
	s.state = StateDecoding

	logrus.WithFields(logrus.Fields{
		"function": "Session.BurnTo",
		"path":     s.path,
		"target":   target,
		"burned":   burned,
	}).Debug("Burned through to target")
	return nil
}

// Close releases the input. The session must not be used afterwards.
func (s *Session) Close() error {
	if s == nil || s.input == nil {
		return nil
	}
	err := s.input.Close()
	s.input = nil
	s.state = StateIdle
	return err
}
