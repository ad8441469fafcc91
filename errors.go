package velocut

import "errors"

var (
	// ErrInvalidOptions is wrapped by Options.Validate.
	ErrInvalidOptions = errors.New("invalid options")
	// ErrWorkerClosed is returned by commands issued after Shutdown.
	ErrWorkerClosed = errors.New("media worker closed")
)
