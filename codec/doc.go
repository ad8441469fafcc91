// Package codec defines the narrow interface through which the media core
// consumes a codec/container library.
//
// The core never decodes bitstreams itself. It opens an Input, picks the
// best video stream, seeks, and pulls decoded pictures one at a time. For
// output it opens an Output, adds one video stream, writes the header,
// encodes pictures into packets, writes packets, and finishes with the
// trailer:
//
//	in, err := backend.Open(path)
//	if err != nil {
//	    return err
//	}
//	defer in.Close()
//
//	stream, err := in.BestStream(codec.MediaVideo)
//	...
//	pic, err := in.Decode()
//	if errors.Is(err, io.EOF) {
//	    // end of stream
//	}
//
// Implementations live in sub-packages: codec/y4m is a pure-Go YUV4MPEG2
// demuxer and muxer, codec/ffmpeg drives the ffmpeg and ffprobe binaries,
// and codec/sim is an in-memory simulation used by tests. The factory
// package selects among them.
package codec
