package velocut

import (
	"github.com/google/uuid"
)

// MediaResult is implemented by every value delivered on the worker's
// result channels.
type MediaResult interface {
	mediaResult()
}

// VideoFrame is a decoded RGBA frame for clip ID.
type VideoFrame struct {
	ID        uuid.UUID
	Timestamp float64
	Width     int
	Height    int
	Pixels    []byte
}

// Duration reports a clip's length in seconds.
type Duration struct {
	ID      uuid.UUID
	Seconds float64
}

// VideoSize reports a clip's native dimensions.
type VideoSize struct {
	ID     uuid.UUID
	Width  int
	Height int
}

// Thumbnail is a small RGBA still for the media library.
type Thumbnail struct {
	ID     uuid.UUID
	Width  int
	Height int
	RGBA   []byte
}

// Waveform holds normalized peak values, one per display column.
type Waveform struct {
	ID    uuid.UUID
	Peaks []float32
}

// AudioPath names the WAV file extracted for a clip.
type AudioPath struct {
	ID   uuid.UUID
	Path string
}

// FrameSaved reports a still written by ExtractFrame.
type FrameSaved struct {
	Path string
}

// EncodeProgress reports frames written so far for a job.
type EncodeProgress struct {
	JobID uuid.UUID
	Frame int
	Total int
}

// EncodeDone reports a finished job.
type EncodeDone struct {
	JobID      uuid.UUID
	OutputPath string
}

// EncodeError reports a failed or cancelled job. Message is exactly
// "cancelled" for user cancellation.
type EncodeError struct {
	JobID   uuid.UUID
	Message string
}

// Cancelled reports whether the job was stopped by the user.
func (e EncodeError) Cancelled() bool { return e.Message == cancelledMessage }

// Error reports a per-clip open or decode failure.
type Error struct {
	ID      uuid.UUID
	Message string
}

func (VideoFrame) mediaResult()     {}
func (Duration) mediaResult()       {}
func (VideoSize) mediaResult()      {}
func (Thumbnail) mediaResult()      {}
func (Waveform) mediaResult()       {}
func (AudioPath) mediaResult()      {}
func (FrameSaved) mediaResult()     {}
func (EncodeProgress) mediaResult() {}
func (EncodeDone) mediaResult()     {}
func (EncodeError) mediaResult()    {}
func (Error) mediaResult()          {}
