package transition

import "errors"

var (
	// ErrUnknownKind indicates a kind with no registered algorithm.
	ErrUnknownKind = errors.New("unknown transition kind")

	// ErrBufferMismatch indicates input buffers that do not match each other
	// or the declared YUV420P dimensions.
	ErrBufferMismatch = errors.New("transition buffer size mismatch")
)
