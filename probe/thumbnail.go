package probe

import (
	"image"

	"github.com/disintegration/imaging"
)

// ThumbnailWidth is the fixed width of clip thumbnails.
const ThumbnailWidth = 320

// Thumbnail is a packed RGBA still, 4 bytes per pixel.
type Thumbnail struct {
	Width  int
	Height int
	RGBA   []byte
}

// ThumbnailSize returns the thumbnail dimensions for a source size. The
// height keeps the aspect ratio, rounded down to even and at least 2.
func ThumbnailSize(width, height int) (int, int) {
	h := int(float64(ThumbnailWidth)*float64(height)/float64(max(width, 1))) &^ 1
	return ThumbnailWidth, max(h, 2)
}

// ThumbnailTime picks the still position: a tenth of the way in, but at
// least one second, for clips longer than two seconds; otherwise the start.
func ThumbnailTime(duration float64) float64 {
	if duration > 2 {
		return max(duration*0.1, 1)
	}
	return 0
}

// resizeThumbnail scales img to the thumbnail box with bilinear filtering.
func resizeThumbnail(img image.Image) *Thumbnail {
	b := img.Bounds()
	w, h := ThumbnailSize(b.Dx(), b.Dy())
	scaled := imaging.Resize(img, w, h, imaging.Linear)
	return &Thumbnail{Width: w, Height: h, RGBA: scaled.Pix}
}
