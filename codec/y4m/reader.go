package y4m

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/opd-ai/velocut/codec"
	"github.com/opd-ai/velocut/frame"
	"github.com/sirupsen/logrus"
)

const (
	streamMagic = "YUV4MPEG2"
	frameMagic  = "FRAME"
)

// ErrBadHeader indicates the stream header could not be parsed.
var ErrBadHeader = errors.New("invalid yuv4mpeg2 header")

// Header holds the parsed stream header fields.
type Header struct {
	Width     int
	Height    int
	FrameRate codec.Rational
	Chroma    string
}

// Input reads a YUV4MPEG2 file. Frame offsets are indexed on open so Seek
// is a table lookup.
type Input struct {
	file    *os.File
	header  Header
	stream  codec.Stream
	offsets []int64
	cursor  int
	closed  bool
}

// Open opens and indexes a YUV4MPEG2 file.
func Open(path string) (*Input, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	in := &Input{file: f}
	if err := in.index(); err != nil {
		f.Close()
		return nil, fmt.Errorf("index %s: %w", path, err)
	}

	logrus.WithFields(logrus.Fields{
		"function": "y4m.Open",
		"path":     path,
		"width":    in.header.Width,
		"height":   in.header.Height,
		"frames":   len(in.offsets),
	}).Debug("Opened yuv4mpeg2 input")

	return in, nil
}

func (in *Input) index() error {
	r := bufio.NewReader(in.file)
	line, err := r.ReadString('\n')
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadHeader, err)
	}
	h, err := ParseHeader(strings.TrimSuffix(line, "\n"))
	if err != nil {
		return err
	}
	in.header = h

	frameSize := int64(frame.ByteSize(h.Width, h.Height, frame.FormatYUV420P))
	pos := int64(len(line))
	for {
		tag, err := r.ReadString('\n')
		if err != nil {
			break
		}
		if !strings.HasPrefix(tag, frameMagic) {
			logrus.WithFields(logrus.Fields{
				"function": "y4m.index",
				"offset":   pos,
			}).Warn("Unexpected frame marker, truncating index")
			break
		}
		dataPos := pos + int64(len(tag))
		n, err := r.Discard(int(frameSize))
		if int64(n) < frameSize || err != nil {
			break
		}
		in.offsets = append(in.offsets, dataPos)
		pos = dataPos + frameSize
	}

	// Time base is the reciprocal of the frame rate, one tick per frame.
	in.stream = codec.Stream{
		Index:     0,
		Type:      codec.MediaVideo,
		TimeBase:  codec.Rational{Num: h.FrameRate.Den, Den: h.FrameRate.Num},
		FrameRate: h.FrameRate,
		Width:     h.Width,
		Height:    h.Height,
		Duration:  int64(len(in.offsets)),
	}
	return nil
}

// ParseHeader parses a YUV4MPEG2 stream header line without the newline.
func ParseHeader(line string) (Header, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 || fields[0] != streamMagic {
		return Header{}, fmt.Errorf("%w: missing %s magic", ErrBadHeader, streamMagic)
	}

	h := Header{FrameRate: codec.Rational{Num: 25, Den: 1}, Chroma: "420jpeg"}
	for _, field := range fields[1:] {
		if len(field) < 2 {
			continue
		}
		key, value := field[0], field[1:]
		switch key {
		case 'W':
			h.Width, _ = strconv.Atoi(value)
		case 'H':
			h.Height, _ = strconv.Atoi(value)
		case 'F':
			rate, err := parseRatio(value)
			if err != nil {
				return Header{}, fmt.Errorf("%w: frame rate %q", ErrBadHeader, value)
			}
			h.FrameRate = rate
		case 'C':
			h.Chroma = value
		}
	}

	if h.Width <= 0 || h.Height <= 0 || h.Width%2 != 0 || h.Height%2 != 0 {
		return Header{}, fmt.Errorf("%w: dimensions %dx%d", ErrBadHeader, h.Width, h.Height)
	}
	if !strings.HasPrefix(h.Chroma, "420") {
		return Header{}, fmt.Errorf("%w: chroma %s is not 4:2:0", ErrBadHeader, h.Chroma)
	}
	return h, nil
}

func parseRatio(s string) (codec.Rational, error) {
	num, den, ok := strings.Cut(s, ":")
	if !ok {
		return codec.Rational{}, fmt.Errorf("ratio %q has no separator", s)
	}
	n, err1 := strconv.ParseInt(num, 10, 64)
	d, err2 := strconv.ParseInt(den, 10, 64)
	if err1 != nil || err2 != nil || n <= 0 || d <= 0 {
		return codec.Rational{}, fmt.Errorf("ratio %q is not positive", s)
	}
	return codec.Rational{Num: n, Den: d}, nil
}

// Header returns the parsed stream header.
func (in *Input) Header() Header {
	return in.header
}

// Streams returns the single video stream.
func (in *Input) Streams() []codec.Stream {
	return []codec.Stream{in.stream}
}

// BestStream returns the video stream, or codec.ErrNoStream for audio.
func (in *Input) BestStream(kind codec.MediaType) (codec.Stream, error) {
	if kind != codec.MediaVideo {
		return codec.Stream{}, fmt.Errorf("%w: %s", codec.ErrNoStream, kind)
	}
	return in.stream, nil
}

// Duration is the frame count over the frame rate.
func (in *Input) Duration() float64 {
	return in.stream.DurationSeconds()
}

// Seek moves to the frame whose index equals pts. Every frame is a
// keyframe, so the landing position is exact.
func (in *Input) Seek(pts int64) error {
	if in.closed {
		return codec.ErrClosed
	}
	if pts < 0 {
		pts = 0
	}
	if pts > int64(len(in.offsets)) {
		pts = int64(len(in.offsets))
	}
	in.cursor = int(pts)
	return nil
}

// Decode reads the frame at the cursor.
func (in *Input) Decode() (*codec.Picture, error) {
	if in.closed {
		return nil, codec.ErrClosed
	}
	if in.cursor >= len(in.offsets) {
		return nil, io.EOF
	}

	size := frame.ByteSize(in.header.Width, in.header.Height, frame.FormatYUV420P)
	data := make([]byte, size)
	if _, err := in.file.ReadAt(data, in.offsets[in.cursor]); err != nil {
		in.cursor++
		return nil, fmt.Errorf("%w: read frame: %v", codec.ErrMalformedPacket, err)
	}

	pic := &codec.Picture{
		PTS:    int64(in.cursor),
		HasPTS: true,
		Width:  in.header.Width,
		Height: in.header.Height,
		Data:   data,
	}
	in.cursor++
	return pic, nil
}

// Close releases the file handle.
func (in *Input) Close() error {
	if in.closed {
		return nil
	}
	in.closed = true
	return in.file.Close()
}
