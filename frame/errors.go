package frame

import "errors"

// Buffer validation errors.
var (
	// ErrBufferSize indicates the pixel buffer length does not match the
	// declared format and dimensions.
	ErrBufferSize = errors.New("pixel buffer size does not match format and dimensions")

	// ErrInvalidDimensions indicates a zero, negative or (for YUV420P) odd dimension.
	ErrInvalidDimensions = errors.New("invalid frame dimensions")

	// ErrUnsupportedFormat indicates an operation was given a pixel format it
	// cannot handle.
	ErrUnsupportedFormat = errors.New("unsupported pixel format")
)
