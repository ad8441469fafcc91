package encode

import "errors"

var (
	// ErrCancelled is the distinguished outcome of a user cancellation.
	// Its message is the literal the UI matches on.
	ErrCancelled = errors.New("cancelled")

	// ErrEmptyTimeline indicates a job with no clips.
	ErrEmptyTimeline = errors.New("nothing to encode: timeline is empty")

	// ErrShuttingDown is returned when a job starts after the worker
	// began shutting down.
	ErrShuttingDown = errors.New("worker shutting down")

	// ErrInvalidJob wraps every other validation failure.
	ErrInvalidJob = errors.New("invalid encode job")

	// ErrDuplicateJob indicates a job id that is already running.
	ErrDuplicateJob = errors.New("encode job already running")
)
