package transition

import (
	"fmt"
	"sort"

	"github.com/opd-ai/velocut/frame"
)

// Algorithm blends two YUV420P frames. Implementations hold no per-clip
// state and are safe for concurrent use.
type Algorithm interface {
	Kind() Kind
	// Label is the human-readable name shown in pickers.
	Label() string
	Icon() string
	// DefaultDuration is the suggested length in seconds.
	DefaultDuration() float64
	// Build returns a Type of this kind configured for duration seconds.
	Build(duration float64) Type
	// Apply writes the blend of a and b at alpha into out. All three
	// buffers have already been checked against width and height.
	Apply(a, b, out []byte, width, height int, alpha float64)
}

var registry = func() map[Kind]Algorithm {
	m := make(map[Kind]Algorithm)
	for _, alg := range []Algorithm{crossfade{}, dipToBlack{}, iris{}, push{}, wipe{}} {
		m[alg.Kind()] = alg
	}
	return m
}()

// Lookup returns the algorithm registered for kind. Cut has none.
func Lookup(kind Kind) (Algorithm, error) {
	alg, ok := registry[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	return alg, nil
}

// Kinds lists every kind with a registered algorithm in declaration order.
func Kinds() []Kind {
	kinds := make([]Kind, 0, len(registry))
	for k := range registry {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Apply blends a and b with the kind's algorithm and returns a new buffer.
// Both inputs must be packed YUV420P frames of width x height.
func Apply(kind Kind, a, b []byte, width, height int, alpha float64) ([]byte, error) {
	alg, err := Lookup(kind)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(a))
	if err := ApplyInto(alg, out, a, b, width, height, alpha); err != nil {
		return nil, err
	}
	return out, nil
}

// ApplyInto is Apply with a caller-provided output buffer, letting the
// encoder reuse one buffer across every blended frame of a boundary.
func ApplyInto(alg Algorithm, out, a, b []byte, width, height int, alpha float64) error {
	if width <= 0 || height <= 0 || width%2 != 0 || height%2 != 0 {
		return fmt.Errorf("%w: %dx%d", frame.ErrInvalidDimensions, width, height)
	}
	want := frame.ByteSize(width, height, frame.FormatYUV420P)
	if len(a) != want || len(b) != want || len(out) != want {
		return fmt.Errorf("%w: want %d bytes for %dx%d, got a=%d b=%d out=%d",
			ErrBufferMismatch, want, width, height, len(a), len(b), len(out))
	}
	alg.Apply(a, b, out, width, height, clamp01(alpha))
	return nil
}

// Frames blends two frames of the same size into a new frame that takes
// its owner and timestamp from a.
func Frames(kind Kind, a, b *frame.Frame, alpha float64) (*frame.Frame, error) {
	if a.Format != frame.FormatYUV420P || b.Format != frame.FormatYUV420P {
		return nil, fmt.Errorf("%w: transitions need %s", frame.ErrUnsupportedFormat, frame.FormatYUV420P)
	}
	if a.Width != b.Width || a.Height != b.Height {
		return nil, fmt.Errorf("%w: %dx%d vs %dx%d", ErrBufferMismatch, a.Width, a.Height, b.Width, b.Height)
	}
	pixels, err := Apply(kind, a.Pixels, b.Pixels, a.Width, a.Height, alpha)
	if err != nil {
		return nil, err
	}
	return frame.Wrap(a.OwnerID, a.Timestamp, a.Width, a.Height, frame.FormatYUV420P, pixels)
}
