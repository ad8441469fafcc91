package frame

import (
	"fmt"
	"image"

	"github.com/google/uuid"
)

// Scaler resizes YUV420P frames.
//
// Each plane is resampled independently with bilinear interpolation, so the
// chroma planes keep their 2x2 subsampling relative to luma.
type Scaler struct{}

// NewScaler creates a new frame scaler.
func NewScaler() *Scaler {
	return &Scaler{}
}

// Scale resizes a YUV420P frame to the given even dimensions. The result
// keeps the source owner and timestamp.
func (s *Scaler) Scale(src *Frame, width, height int) (*Frame, error) {
	if src == nil {
		return nil, fmt.Errorf("source frame cannot be nil")
	}
	sy, su, sv, err := src.Planes()
	if err != nil {
		return nil, err
	}
	dst, err := New(src.OwnerID, src.Timestamp, width, height, FormatYUV420P)
	if err != nil {
		return nil, err
	}
	if src.Width == width && src.Height == height {
		copy(dst.Pixels, src.Pixels)
		return dst, nil
	}

	dy, du, dv, _ := dst.Planes()
	scalePlane(sy, src.Width, src.Height, dy, width, height)
	scalePlane(su, src.Width/2, src.Height/2, du, width/2, height/2)
	scalePlane(sv, src.Width/2, src.Height/2, dv, width/2, height/2)
	return dst, nil
}

// ScaleToRGBA resizes a YUV420P frame and converts it to RGBA in one step.
// Unlike Scale, odd target dimensions are accepted.
func (s *Scaler) ScaleToRGBA(src *Frame, width, height int) (*Frame, error) {
	if src == nil {
		return nil, fmt.Errorf("source frame cannot be nil")
	}
	sy, su, sv, err := src.Planes()
	if err != nil {
		return nil, err
	}
	dst, err := New(src.OwnerID, src.Timestamp, width, height, FormatRGBA)
	if err != nil {
		return nil, err
	}

	cw, ch := (width+1)/2, (height+1)/2
	ly := make([]byte, width*height)
	lu := make([]byte, cw*ch)
	lv := make([]byte, cw*ch)
	scalePlane(sy, src.Width, src.Height, ly, width, height)
	scalePlane(su, src.Width/2, src.Height/2, lu, cw, ch)
	scalePlane(sv, src.Width/2, src.Height/2, lv, cw, ch)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			ci := (y/2)*cw + x/2
			r, g, b := yuvToRGB(ly[y*width+x], lu[ci], lv[ci])
			o := (y*width + x) * 4
			dst.Pixels[o] = r
			dst.Pixels[o+1] = g
			dst.Pixels[o+2] = b
			dst.Pixels[o+3] = 0xff
		}
	}
	return dst, nil
}

// scalePlane resamples one tightly packed plane with bilinear interpolation.
func scalePlane(src []byte, srcWidth, srcHeight int, dst []byte, dstWidth, dstHeight int) {
	if srcWidth == dstWidth && srcHeight == dstHeight {
		copy(dst, src)
		return
	}

	xRatio := float64(srcWidth) / float64(dstWidth)
	yRatio := float64(srcHeight) / float64(dstHeight)

	for y := 0; y < dstHeight; y++ {
		srcY := float64(y) * yRatio
		y1 := int(srcY)
		y2 := y1 + 1
		if y2 >= srcHeight {
			y2 = srcHeight - 1
		}
		fy := srcY - float64(y1)

		for x := 0; x < dstWidth; x++ {
			srcX := float64(x) * xRatio
			x1 := int(srcX)
			x2 := x1 + 1
			if x2 >= srcWidth {
				x2 = srcWidth - 1
			}
			fx := srcX - float64(x1)

			p11 := float64(src[y1*srcWidth+x1])
			p12 := float64(src[y1*srcWidth+x2])
			p21 := float64(src[y2*srcWidth+x1])
			p22 := float64(src[y2*srcWidth+x2])

			top := p11*(1-fx) + p12*fx
			bottom := p21*(1-fx) + p22*fx
			dst[y*dstWidth+x] = byte(top*(1-fy) + bottom*fy + 0.5)
		}
	}
}

// yuvToRGB converts one limited-range BT.601 sample.
func yuvToRGB(y, u, v byte) (r, g, b byte) {
	c := int(y) - 16
	d := int(u) - 128
	e := int(v) - 128
	r = clampByte((298*c + 409*e + 128) >> 8)
	g = clampByte((298*c - 100*d - 208*e + 128) >> 8)
	b = clampByte((298*c + 516*d + 128) >> 8)
	return r, g, b
}

// rgbToYUV is the inverse of yuvToRGB, used when importing still images.
func rgbToYUV(r, g, b byte) (y, u, v byte) {
	ri, gi, bi := int(r), int(g), int(b)
	y = clampByte(((66*ri + 129*gi + 25*bi + 128) >> 8) + 16)
	u = clampByte(((-38*ri - 74*gi + 112*bi + 128) >> 8) + 128)
	v = clampByte(((112*ri - 94*gi - 18*bi + 128) >> 8) + 128)
	return y, u, v
}

func clampByte(v int) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}

// ToImage exposes an RGBA frame as an image.RGBA sharing the pixel buffer.
func ToImage(f *Frame) (*image.RGBA, error) {
	if f.Format != FormatRGBA {
		return nil, fmt.Errorf("%w: image from %s", ErrUnsupportedFormat, f.Format)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &image.RGBA{
		Pix:    f.Pixels,
		Stride: f.Width * 4,
		Rect:   image.Rect(0, 0, f.Width, f.Height),
	}, nil
}

// FromImage converts an image into a YUV420P frame. Odd image dimensions
// are truncated to the nearest even size.
func FromImage(img image.Image) (*Frame, error) {
	bounds := img.Bounds()
	w, h := bounds.Dx()&^1, bounds.Dy()&^1
	f, err := New(uuid.Nil, 0, w, h, FormatYUV420P)
	if err != nil {
		return nil, err
	}
	py, pu, pv, _ := f.Planes()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			yy, uu, vv := rgbToYUV(byte(r>>8), byte(g>>8), byte(b>>8))
			py[y*w+x] = yy
			if x%2 == 0 && y%2 == 0 {
				ci := (y/2)*(w/2) + x/2
				pu[ci] = uu
				pv[ci] = vv
			}
		}
	}
	return f, nil
}
