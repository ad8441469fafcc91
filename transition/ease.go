package transition

import (
	"math"

	"github.com/opd-ai/velocut/frame"
)

// Alpha returns the blend weight of frame i out of n blended frames. The
// result lies strictly inside (0, 1): the pure A and pure B frames are
// written by the encoder on either side of the blend.
func Alpha(i, n int) float64 {
	return float64(i+1) / float64(n+1)
}

func clamp01(v float64) float64 {
	return math.Min(math.Max(v, 0), 1)
}

// Smoothstep is the cubic ease with zero slope at both ends.
func Smoothstep(t float64) float64 {
	t = clamp01(t)
	return t * t * (3 - 2*t)
}

// EaseInOutCubic accelerates through the first half and decelerates
// through the second.
func EaseInOutCubic(t float64) float64 {
	t = clamp01(t)
	if t < 0.5 {
		return 4 * t * t * t
	}
	return 1 - math.Pow(-2*t+2, 3)/2
}

// blendByte mixes a and b in gamma-encoded byte space.
func blendByte(a, b byte, alpha float64) byte {
	return byte(math.Round((1-alpha)*float64(a) + alpha*float64(b)))
}

// edgeAlpha maps a coordinate to a 0..1 weight across a feathered edge
// centred on edge. A zero feather is a hard step.
func edgeAlpha(coord, edge, feather float64) float64 {
	if feather <= 0 {
		if coord >= edge {
			return 1
		}
		return 0
	}
	return clamp01((coord - (edge - feather/2)) / feather)
}

// plane is one image plane with its own dimensions.
type plane struct {
	a, b, out []byte
	w, h      int
}

// planes splits three packed buffers into their Y, U and V planes.
func planes(a, b, out []byte, width, height int) [3]plane {
	ySize, uvSize := frame.PlaneSizes(width, height)
	cw, ch := width/2, height/2
	cut := func(buf []byte, off, n int) []byte { return buf[off : off+n] }
	return [3]plane{
		{cut(a, 0, ySize), cut(b, 0, ySize), cut(out, 0, ySize), width, height},
		{cut(a, ySize, uvSize), cut(b, ySize, uvSize), cut(out, ySize, uvSize), cw, ch},
		{cut(a, ySize+uvSize, uvSize), cut(b, ySize+uvSize, uvSize), cut(out, ySize+uvSize, uvSize), cw, ch},
	}
}
