package decode

import "errors"

var (
	// ErrNoFrame indicates the stream ended before any frame was decoded.
	ErrNoFrame = errors.New("no frame decoded")

	// ErrNoVideo indicates the source has no video stream.
	ErrNoVideo = errors.New("source has no video stream")
)
