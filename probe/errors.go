package probe

import "errors"

var (
	// ErrDurationUnknown indicates neither the container nor any stream
	// reports a positive duration.
	ErrDurationUnknown = errors.New("duration unknown")

	// ErrNoAudio indicates the source has no decodable audio.
	ErrNoAudio = errors.New("no audio stream")

	// ErrNoVideo indicates the source has no video stream, so no size or
	// thumbnail is available.
	ErrNoVideo = errors.New("no video stream")

	// ErrShuttingDown is reported for probes submitted after Shutdown.
	ErrShuttingDown = errors.New("probe service shutting down")
)
