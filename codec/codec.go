package codec

import (
	"context"
	"fmt"
)

// MediaType is the kind of an elementary stream.
type MediaType int

const (
	MediaVideo MediaType = iota
	MediaAudio
)

func (m MediaType) String() string {
	switch m {
	case MediaVideo:
		return "video"
	case MediaAudio:
		return "audio"
	default:
		return fmt.Sprintf("media(%d)", int(m))
	}
}

// Rational is a fraction such as a time base or frame rate.
type Rational struct {
	Num int64
	Den int64
}

// Float returns the value of the fraction, or 0 for a zero denominator.
func (r Rational) Float() float64 {
	if r.Den == 0 {
		return 0
	}
	return float64(r.Num) / float64(r.Den)
}

// Valid reports whether both terms are positive.
func (r Rational) Valid() bool {
	return r.Num > 0 && r.Den > 0
}

// Stream describes one elementary stream of an Input.
type Stream struct {
	Index    int
	Type     MediaType
	TimeBase Rational
	// FrameRate is the nominal rate for video streams.
	FrameRate Rational
	Width     int
	Height    int
	// Duration is expressed in TimeBase units; 0 means unknown.
	Duration int64
}

// SecondsToPTS converts seconds into this stream's time base, truncating.
func (s Stream) SecondsToPTS(seconds float64) int64 {
	if !s.TimeBase.Valid() {
		return 0
	}
	return int64(seconds * float64(s.TimeBase.Den) / float64(s.TimeBase.Num))
}

// PTSToSeconds converts a timestamp in this stream's time base to seconds.
func (s Stream) PTSToSeconds(pts int64) float64 {
	if !s.TimeBase.Valid() {
		return 0
	}
	return float64(pts) * float64(s.TimeBase.Num) / float64(s.TimeBase.Den)
}

// DurationSeconds returns the stream duration in seconds, 0 if unknown.
func (s Stream) DurationSeconds() float64 {
	return s.PTSToSeconds(s.Duration)
}

// Picture is a decoded video picture in its native size. Data is packed
// YUV420P as described in package frame.
type Picture struct {
	// PTS is in the stream's time base.
	PTS int64
	// HasPTS is false when the decoder could not attach a timestamp.
	HasPTS bool
	Width  int
	Height int
	Data   []byte
}

// Packet is one encoded unit ready for the muxer.
type Packet struct {
	// PTS is in the output stream's time base.
	PTS      int64
	Keyframe bool
	Data     []byte
}

// VideoConfig configures the single video stream of an Output.
type VideoConfig struct {
	Width  int
	Height int
	// FPS is the constant output frame rate; the output time base is 1/FPS.
	FPS int
	// CRF and Preset tune encoders that support them.
	CRF    int
	Preset string
}

// AudioConfig configures an audio stream. Samples are interleaved float32.
type AudioConfig struct {
	SampleRate int
	Channels   int
	// BitRate is in bits per second for lossy encoders.
	BitRate int
}

// SamplesFor is the per-channel sample count of the given seconds.
func (c AudioConfig) SamplesFor(seconds float64) int {
	return int(seconds * float64(c.SampleRate))
}

// Input is an open source container with a decoder attached to its best
// video stream.
type Input interface {
	// Streams lists every elementary stream in the container.
	Streams() []Stream
	// BestStream selects the preferred stream of the given type.
	BestStream(kind MediaType) (Stream, error)
	// Duration is the container duration in seconds, 0 if unknown.
	Duration() float64
	// Seek positions the decoder at the last keyframe at or before pts
	// (in the best video stream's time base).
	Seek(pts int64) error
	// Decode returns the next decoded picture, io.EOF at end of stream,
	// or an error wrapping ErrMalformedPacket for a skippable packet.
	Decode() (*Picture, error)
	Close() error
}

// Output is an open destination container.
type Output interface {
	AddStream(cfg VideoConfig) error
	WriteHeader() error
	// Encode compresses one picture. A nil picture drains buffered
	// packets from the encoder.
	Encode(pic *Picture) ([]Packet, error)
	WritePacket(pkt Packet) error
	WriteTrailer() error
	Close() error
}

// AudioOutput is implemented by outputs that carry an audio track. The
// whole track is staged with WriteAudio between AddAudioStream and
// WriteHeader.
type AudioOutput interface {
	AddAudioStream(cfg AudioConfig) error
	WriteAudio(samples []float32) error
}

// AudioDecoder is implemented by backends that decode audio. DecodeAudio
// returns interleaved PCM for [start, start+duration) of path, converted
// to cfg, or an error wrapping ErrNoStream when path has no audio.
type AudioDecoder interface {
	DecodeAudio(ctx context.Context, path string, start, duration float64, cfg AudioConfig) ([]float32, error)
}

// Backend opens inputs and creates outputs.
type Backend interface {
	Name() string
	Open(path string) (Input, error)
	Create(path string) (Output, error)
}
