package y4m

import "github.com/opd-ai/velocut/codec"

// Backend opens and creates YUV4MPEG2 files.
type Backend struct{}

// NewBackend returns a YUV4MPEG2 backend.
func NewBackend() *Backend {
	return &Backend{}
}

// Name returns "y4m".
func (b *Backend) Name() string { return "y4m" }

// Open opens a YUV4MPEG2 input.
func (b *Backend) Open(path string) (codec.Input, error) {
	in, err := Open(path)
	if err != nil {
		return nil, err
	}
	return in, nil
}

// Create creates a YUV4MPEG2 output.
func (b *Backend) Create(path string) (codec.Output, error) {
	out, err := Create(path)
	if err != nil {
		return nil, err
	}
	return out, nil
}
