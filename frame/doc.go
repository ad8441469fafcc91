// Package frame defines the decoded picture buffers that flow between the
// decode, cache, transition and encode layers.
//
// # Pixel Layouts
//
// Two layouts are supported and both are tightly packed with no row padding:
//
//	FormatRGBA:    [R G B A][R G B A]...           width*height*4 bytes
//	FormatYUV420P: [Y: w*h][U: (w/2)*(h/2)][V: (w/2)*(h/2)]
//
// RGBA frames are produced for display. YUV420P frames are produced for the
// blend and encode paths, where the transition algorithms operate on each
// plane independently.
//
// # Invariant
//
// A Frame's pixel buffer always has exactly ByteSize(width, height, format)
// bytes. Constructors enforce this, and Validate re-checks it for buffers
// that arrive from outside the package:
//
//	f, err := frame.Wrap(owner, 1.25, 640, 360, frame.FormatYUV420P, buf)
//	if err != nil {
//	    return fmt.Errorf("wrap decoded picture: %w", err)
//	}
//
// # Scaling
//
// Scaler resizes YUV420P frames with bilinear interpolation per plane, and
// ScaleToRGBA combines the resize with a BT.601 colour conversion so display
// frames are produced in a single pass over the target pixels.
package frame
