package sim

import (
	"fmt"
	"io"

	"github.com/opd-ai/velocut/codec"
)

type input struct {
	backend *Backend
	clip    Clip
	cursor  int
	closed  bool
}

func (in *input) videoStream() codec.Stream {
	c := in.clip
	return codec.Stream{
		Index:     0,
		Type:      codec.MediaVideo,
		TimeBase:  c.TimeBase,
		FrameRate: codec.Rational{Num: int64(c.FPS), Den: 1},
		Width:     c.Width,
		Height:    c.Height,
		Duration:  int64(c.Frames) * c.frameDuration(),
	}
}

func (in *input) Streams() []codec.Stream {
	streams := []codec.Stream{in.videoStream()}
	if in.clip.HasAudio {
		streams = append(streams, codec.Stream{
			Index:    1,
			Type:     codec.MediaAudio,
			TimeBase: codec.Rational{Num: 1, Den: 48000},
		})
	}
	return streams
}

func (in *input) BestStream(kind codec.MediaType) (codec.Stream, error) {
	for _, s := range in.Streams() {
		if s.Type == kind {
			return s, nil
		}
	}
	return codec.Stream{}, fmt.Errorf("%w: %s", codec.ErrNoStream, kind)
}

func (in *input) Duration() float64 {
	return in.videoStream().DurationSeconds()
}

// Seek lands on the keyframe at or before pts. Seeking past the end lands
// on the keyframe before the last frame.
func (in *input) Seek(pts int64) error {
	if in.closed {
		return codec.ErrClosed
	}
	in.backend.countSeek()
	if in.clip.SeekFails {
		return fmt.Errorf("%w: simulated failure", codec.ErrSeekUnsupported)
	}
	idx := int((pts - in.clip.StartPTS) / in.clip.frameDuration())
	if idx < 0 {
		idx = 0
	}
	if idx >= in.clip.Frames {
		idx = max(in.clip.Frames-1, 0)
	}
	in.cursor = idx - idx%in.clip.GOP
	return nil
}

func (in *input) Decode() (*codec.Picture, error) {
	if in.closed {
		return nil, codec.ErrClosed
	}
	if in.cursor >= in.clip.Frames {
		return nil, io.EOF
	}
	idx := in.cursor
	in.cursor++

	if in.clip.Malformed[idx] {
		return nil, fmt.Errorf("%w: simulated corrupt frame %d", codec.ErrMalformedPacket, idx)
	}
	in.backend.countDecode()
	if hook := in.backend.OnDecode; hook != nil {
		hook(in.clip.Path, idx)
	}

	pic := &codec.Picture{
		PTS:    in.clip.StartPTS + int64(idx)*in.clip.frameDuration(),
		HasPTS: !in.clip.NoPTS[idx],
		Width:  in.clip.Width,
		Height: in.clip.Height,
		Data:   FrameData(in.clip.Width, in.clip.Height, idx),
	}
	if !pic.HasPTS {
		pic.PTS = 0
	}
	return pic, nil
}

func (in *input) Close() error {
	in.closed = true
	return nil
}

// FrameData builds the YUV420P picture for frame index idx: luma is filled
// with the index modulo 256 and chroma is neutral.
func FrameData(width, height, idx int) []byte {
	ySize := width * height
	uvSize := (width / 2) * (height / 2)
	data := make([]byte, ySize+2*uvSize)
	for i := 0; i < ySize; i++ {
		data[i] = byte(idx)
	}
	for i := ySize; i < len(data); i++ {
		data[i] = 128
	}
	return data
}
