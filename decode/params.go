package decode

import (
	"github.com/opd-ai/velocut/frame"
)

// DefaultPreviewWidth is the fixed output width for aspect-sized previews.
const DefaultPreviewWidth = 640

// Params configures a Session.
type Params struct {
	Path string
	// Start is the initial position in seconds.
	Start float64
	// Aspect selects a preview size: <= 0 keeps the native size, otherwise
	// the width is PreviewWidth and the height follows the aspect ratio.
	Aspect float64
	// Width and Height, when both positive, override Aspect.
	Width  int
	Height int
	// Format is the output pixel layout. The zero value is RGBA.
	Format frame.Format
	// PreviewWidth defaults to DefaultPreviewWidth.
	PreviewWidth int
}

// TargetSize computes the output dimensions for a source of the given
// native size. Heights derived from an aspect ratio are rounded down to an
// even number and never below 2.
func TargetSize(p Params, nativeWidth, nativeHeight int) (width, height int) {
	if p.Width > 0 && p.Height > 0 {
		return p.Width, p.Height
	}
	if p.Aspect <= 0 {
		return max(nativeWidth, 2), max(nativeHeight, 2)
	}
	width = p.PreviewWidth
	if width <= 0 {
		width = DefaultPreviewWidth
	}
	height = max(int(float64(width)/max(p.Aspect, 0.01)), 2) &^ 1
	return width, height
}
