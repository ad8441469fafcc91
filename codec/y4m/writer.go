package y4m

import (
	"bufio"
	"fmt"
	"os"

	"github.com/opd-ai/velocut/codec"
	"github.com/opd-ai/velocut/frame"
	"github.com/sirupsen/logrus"
)

// Output writes a YUV4MPEG2 file. Encoding is the identity: each picture
// becomes one keyframe packet carrying the raw planes.
type Output struct {
	path          string
	file          *os.File
	w             *bufio.Writer
	cfg           codec.VideoConfig
	configured    bool
	headerWritten bool
	lastPTS       int64
	frames        int
}

// Create opens path for writing, truncating any existing file.
func Create(path string) (*Output, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	return &Output{path: path, file: f, w: bufio.NewWriter(f), lastPTS: -1}, nil
}

// AddStream configures the single video stream.
func (o *Output) AddStream(cfg codec.VideoConfig) error {
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width%2 != 0 || cfg.Height%2 != 0 {
		return fmt.Errorf("%w: %dx%d", frame.ErrInvalidDimensions, cfg.Width, cfg.Height)
	}
	if cfg.FPS <= 0 {
		return fmt.Errorf("invalid frame rate %d", cfg.FPS)
	}
	o.cfg = cfg
	o.configured = true
	return nil
}

// WriteHeader writes the stream header line.
func (o *Output) WriteHeader() error {
	if !o.configured {
		return codec.ErrStreamNotConfigured
	}
	if _, err := fmt.Fprintf(o.w, "%s W%d H%d F%d:1 Ip A1:1 C420jpeg\n",
		streamMagic, o.cfg.Width, o.cfg.Height, o.cfg.FPS); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	o.headerWritten = true
	return nil
}

// Encode wraps the picture in a single packet. A nil picture flushes
// nothing because no frames are ever buffered.
func (o *Output) Encode(pic *codec.Picture) ([]codec.Packet, error) {
	if pic == nil {
		return nil, nil
	}
	if pic.Width != o.cfg.Width || pic.Height != o.cfg.Height {
		return nil, fmt.Errorf("picture %dx%d does not match stream %dx%d",
			pic.Width, pic.Height, o.cfg.Width, o.cfg.Height)
	}
	if len(pic.Data) != frame.ByteSize(pic.Width, pic.Height, frame.FormatYUV420P) {
		return nil, frame.ErrBufferSize
	}
	return []codec.Packet{{PTS: pic.PTS, Keyframe: true, Data: pic.Data}}, nil
}

// WritePacket appends one frame. Timestamps must strictly increase.
func (o *Output) WritePacket(pkt codec.Packet) error {
	if !o.headerWritten {
		return codec.ErrHeaderNotWritten
	}
	if pkt.PTS <= o.lastPTS {
		return fmt.Errorf("non-monotonic pts %d after %d", pkt.PTS, o.lastPTS)
	}
	if _, err := o.w.WriteString(frameMagic + "\n"); err != nil {
		return fmt.Errorf("write frame marker: %w", err)
	}
	if _, err := o.w.Write(pkt.Data); err != nil {
		return fmt.Errorf("write frame data: %w", err)
	}
	o.lastPTS = pkt.PTS
	o.frames++
	return nil
}

// WriteTrailer flushes buffered bytes. YUV4MPEG2 has no trailer.
func (o *Output) WriteTrailer() error {
	if err := o.w.Flush(); err != nil {
		return fmt.Errorf("flush %s: %w", o.path, err)
	}
	logrus.WithFields(logrus.Fields{
		"function": "y4m.Output.WriteTrailer",
		"path":     o.path,
		"frames":   o.frames,
	}).Debug("Finished yuv4mpeg2 output")
	return nil
}

// Close closes the file. Unflushed data is discarded.
func (o *Output) Close() error {
	if o.file == nil {
		return nil
	}
	err := o.file.Close()
	o.file = nil
	return err
}
