package decode

import (
	"github.com/google/uuid"
	"github.com/opd-ai/velocut/codec"
	"github.com/opd-ai/velocut/frame"
)

// DecodeFrame opens a throwaway session and returns the frame at the
// requested position. Frames landing more than one 60 Hz tick before the
// target are skipped; at end of stream the last decoded frame is returned.
func DecodeFrame(backend codec.Backend, owner uuid.UUID, p Params) (*frame.Frame, error) {
	s, err := Open(backend, owner, p)
	if err != nil {
		return nil, err
	}
	defer s.Close()
	return s.FrameAt(p.Start)
}
