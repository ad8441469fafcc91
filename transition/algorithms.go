package transition

import "math"

const (
	irisFeather   = 0.04
	irisMaxRadius = 0.75
	wipeFeather   = 0.02
)

type crossfade struct{}

func (crossfade) Kind() Kind               { return Crossfade }
func (crossfade) Label() string            { return "Dissolve" }
func (crossfade) Icon() string             { return "🌫️" }
func (crossfade) DefaultDuration() float64 { return 0.5 }

func (c crossfade) Build(duration float64) Type { return Type{Kind: c.Kind(), Duration: duration} }

func (crossfade) Apply(a, b, out []byte, _, _ int, alpha float64) {
	t := Smoothstep(alpha)
	for i := range out {
		out[i] = blendByte(a[i], b[i], t)
	}
}

// dipToBlack fades A to black over the first half and B up from black over
// the second. The two clips never appear in the same frame.
type dipToBlack struct{}

func (dipToBlack) Kind() Kind               { return DipToBlack }
func (dipToBlack) Label() string            { return "Dip to Black" }
func (dipToBlack) Icon() string             { return "⬛️" }
func (dipToBlack) DefaultDuration() float64 { return 0.8 }

func (d dipToBlack) Build(duration float64) Type { return Type{Kind: d.Kind(), Duration: duration} }

func (dipToBlack) Apply(a, b, out []byte, _, _ int, alpha float64) {
	if alpha <= 0.5 {
		ramp := Smoothstep(alpha * 2)
		for i := range out {
			out[i] = blendByte(a[i], 0, ramp)
		}
		return
	}
	ramp := Smoothstep((alpha - 0.5) * 2)
	for i := range out {
		out[i] = blendByte(0, b[i], ramp)
	}
}

// iris opens a circular aperture from the frame centre showing B inside.
type iris struct{}

func (iris) Kind() Kind               { return Iris }
func (iris) Label() string            { return "Iris" }
func (iris) Icon() string             { return "⭕️" }
func (iris) DefaultDuration() float64 { return 0.7 }

func (r iris) Build(duration float64) Type { return Type{Kind: r.Kind(), Duration: duration} }

func (iris) Apply(a, b, out []byte, width, height int, alpha float64) {
	radius := EaseInOutCubic(alpha) * irisMaxRadius
	for _, p := range planes(a, b, out, width, height) {
		for y := 0; y < p.h; y++ {
			ny := (float64(y)+0.5)/float64(p.h) - 0.5
			for x := 0; x < p.w; x++ {
				nx := (float64(x)+0.5)/float64(p.w) - 0.5
				wa := edgeAlpha(radius, math.Hypot(nx, ny), irisFeather)
				i := y*p.w + x
				p.out[i] = blendByte(p.a[i], p.b[i], wa)
			}
		}
	}
}

// push slides B in from the right while A slides out to the left. Each
// output byte is copied from exactly one source.
type push struct{}

func (push) Kind() Kind               { return Push }
func (push) Label() string            { return "Push" }
func (push) Icon() string             { return "➡️" }
func (push) DefaultDuration() float64 { return 2.0 }

func (p push) Build(duration float64) Type { return Type{Kind: p.Kind(), Duration: duration} }

func (push) Apply(a, b, out []byte, width, height int, alpha float64) {
	progress := EaseInOutCubic(alpha)
	boundaryF := (1 - progress) * float64(width)
	shiftF := progress * float64(width)

	for n, p := range planes(a, b, out, width, height) {
		boundary := int(math.Round(boundaryF))
		shift := int(math.Round(shiftF))
		if n > 0 {
			boundary = int(math.Round(boundaryF * 0.5))
			shift = int(math.Round(shiftF * 0.5))
		}
		for y := 0; y < p.h; y++ {
			row := y * p.w
			for x := 0; x < p.w; x++ {
				if x < boundary {
					p.out[row+x] = p.a[row+min(x+shift, p.w-1)]
				} else {
					p.out[row+x] = p.b[row+x-boundary]
				}
			}
		}
	}
}

// wipe sweeps a feathered vertical edge left to right, uncovering B behind it.
type wipe struct{}

func (wipe) Kind() Kind               { return Wipe }
func (wipe) Label() string            { return "Wipe" }
func (wipe) Icon() string             { return "▶️" }
func (wipe) DefaultDuration() float64 { return 0.5 }

func (w wipe) Build(duration float64) Type { return Type{Kind: w.Kind(), Duration: duration} }

func (wipe) Apply(a, b, out []byte, width, height int, alpha float64) {
	edge := Smoothstep(alpha)
	for _, p := range planes(a, b, out, width, height) {
		for x := 0; x < p.w; x++ {
			wa := edgeAlpha((float64(x)+0.5)/float64(p.w), edge, wipeFeather)
			for y := 0; y < p.h; y++ {
				i := y*p.w + x
				p.out[i] = blendByte(p.b[i], p.a[i], wa)
			}
		}
	}
}
