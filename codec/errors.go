package codec

import "errors"

// Input errors.
var (
	// ErrNoStream indicates the container has no stream of the requested type.
	ErrNoStream = errors.New("no stream of requested type")

	// ErrMalformedPacket indicates one packet could not be decoded. Callers
	// skip it and keep decoding.
	ErrMalformedPacket = errors.New("malformed packet")

	// ErrSeekUnsupported indicates the input cannot seek to the target.
	ErrSeekUnsupported = errors.New("seek not supported")

	// ErrClosed indicates the handle was already closed.
	ErrClosed = errors.New("handle closed")
)

// Output errors.
var (
	// ErrEncoderUnavailable indicates no suitable encoder exists on the
	// host. This is the one setup failure that aborts a job outright.
	ErrEncoderUnavailable = errors.New("no suitable encoder available")

	// ErrHeaderNotWritten indicates packets were written before the header.
	ErrHeaderNotWritten = errors.New("output header not written")

	// ErrStreamNotConfigured indicates WriteHeader was called before AddStream.
	ErrStreamNotConfigured = errors.New("output stream not configured")

	// ErrAudioAfterHeader indicates audio was staged after WriteHeader.
	ErrAudioAfterHeader = errors.New("audio written after output header")
)
