package frame

import (
	"fmt"

	"github.com/google/uuid"
)

// Format identifies the pixel layout of a Frame.
type Format int

const (
	// FormatRGBA is interleaved 8-bit RGBA, 4 bytes per pixel.
	FormatRGBA Format = iota
	// FormatYUV420P is planar Y, U, V with chroma subsampled 2x2.
	FormatYUV420P
)

// String returns the conventional name of the format.
func (f Format) String() string {
	switch f {
	case FormatRGBA:
		return "rgba"
	case FormatYUV420P:
		return "yuv420p"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// Frame is a decoded picture owned by a clip.
type Frame struct {
	// OwnerID is the id of the clip or request this frame belongs to.
	OwnerID uuid.UUID
	// Timestamp is the presentation time in seconds within the source.
	Timestamp float64
	Width     int
	Height    int
	Format    Format
	Pixels    []byte
}

// ByteSize returns the exact buffer length for the given layout.
func ByteSize(width, height int, format Format) int {
	switch format {
	case FormatRGBA:
		return width * height * 4
	case FormatYUV420P:
		return width*height + 2*(width/2)*(height/2)
	default:
		return 0
	}
}

// PlaneSizes returns the luma and per-chroma-plane lengths of a YUV420P buffer.
func PlaneSizes(width, height int) (ySize, uvSize int) {
	return width * height, (width / 2) * (height / 2)
}

func checkDimensions(width, height int, format Format) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}
	switch format {
	case FormatRGBA:
		return nil
	case FormatYUV420P:
		if width%2 != 0 || height%2 != 0 {
			return fmt.Errorf("%w: %dx%d must be even for yuv420p", ErrInvalidDimensions, width, height)
		}
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

// New allocates a zeroed frame of the given layout.
func New(owner uuid.UUID, timestamp float64, width, height int, format Format) (*Frame, error) {
	if err := checkDimensions(width, height, format); err != nil {
		return nil, err
	}
	return &Frame{
		OwnerID:   owner,
		Timestamp: timestamp,
		Width:     width,
		Height:    height,
		Format:    format,
		Pixels:    make([]byte, ByteSize(width, height, format)),
	}, nil
}

// Wrap builds a frame around an existing buffer without copying it.
func Wrap(owner uuid.UUID, timestamp float64, width, height int, format Format, pixels []byte) (*Frame, error) {
	f := &Frame{
		OwnerID:   owner,
		Timestamp: timestamp,
		Width:     width,
		Height:    height,
		Format:    format,
		Pixels:    pixels,
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// Validate reports whether the buffer matches the declared format and size.
func (f *Frame) Validate() error {
	if f == nil {
		return fmt.Errorf("%w: nil frame", ErrBufferSize)
	}
	if err := checkDimensions(f.Width, f.Height, f.Format); err != nil {
		return err
	}
	if want := ByteSize(f.Width, f.Height, f.Format); len(f.Pixels) != want {
		return fmt.Errorf("%w: %s %dx%d wants %d bytes, have %d",
			ErrBufferSize, f.Format, f.Width, f.Height, want, len(f.Pixels))
	}
	return nil
}

// Size is the buffer length in bytes, used for cache accounting.
func (f *Frame) Size() int {
	return len(f.Pixels)
}

// Planes slices a YUV420P buffer into its three planes. The slices alias
// the frame's buffer.
func (f *Frame) Planes() (y, u, v []byte, err error) {
	if f.Format != FormatYUV420P {
		return nil, nil, nil, fmt.Errorf("%w: planes requested from %s", ErrUnsupportedFormat, f.Format)
	}
	if err := f.Validate(); err != nil {
		return nil, nil, nil, err
	}
	ySize, uvSize := PlaneSizes(f.Width, f.Height)
	y = f.Pixels[:ySize]
	u = f.Pixels[ySize : ySize+uvSize]
	v = f.Pixels[ySize+uvSize:]
	return y, u, v, nil
}

// Clone returns a deep copy of the frame.
func (f *Frame) Clone() *Frame {
	c := *f
	c.Pixels = append([]byte(nil), f.Pixels...)
	return &c
}

// Fill sets every byte of each YUV420P plane to the given values. It is a
// no-op for other formats.
func (f *Frame) Fill(y, u, v byte) {
	yp, up, vp, err := f.Planes()
	if err != nil {
		return
	}
	fillBytes(yp, y)
	fillBytes(up, u)
	fillBytes(vp, v)
}

func fillBytes(b []byte, value byte) {
	for i := range b {
		b[i] = value
	}
}
