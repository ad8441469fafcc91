package ffmpeg

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"

	"github.com/opd-ai/velocut/codec"
	"github.com/opd-ai/velocut/frame"
	"github.com/sirupsen/logrus"
)

// Input decodes the best video stream of a file through an ffmpeg pipe.
type Input struct {
	path     string
	probe    *ProbeResult
	video    codec.Stream
	width    int
	height   int
	frameDur float64 // seconds

	startSec float64
	index    int64
	cmd      *exec.Cmd
	cancel   context.CancelFunc
	stdout   *bufio.Reader
	closed   bool
}

// Open probes path and prepares a decoder for its best video stream. No
// decoding process starts until the first Decode.
func Open(path string) (*Input, error) {
	res, err := Probe(context.Background(), path)
	if err != nil {
		return nil, err
	}
	in := &Input{path: path, probe: res}
	for _, s := range res.Streams {
		if s.Type == codec.MediaVideo {
			in.video = s
			break
		}
	}
	if in.video.Type == codec.MediaVideo && in.video.Width > 0 {
		in.width = in.video.Width &^ 1
		in.height = in.video.Height &^ 1
		if rate := in.video.FrameRate.Float(); rate > 0 {
			in.frameDur = 1 / rate
		} else {
			in.frameDur = 1.0 / 30
		}
	}
	return in, nil
}

// Streams lists the probed streams.
func (in *Input) Streams() []codec.Stream {
	return in.probe.Streams
}

// BestStream returns the first stream of the given type.
func (in *Input) BestStream(kind codec.MediaType) (codec.Stream, error) {
	for _, s := range in.probe.Streams {
		if s.Type == kind {
			return s, nil
		}
	}
	return codec.Stream{}, fmt.Errorf("%w: %s in %s", codec.ErrNoStream, kind, in.path)
}

// Duration is the container duration reported by ffprobe.
func (in *Input) Duration() float64 {
	return in.probe.Duration
}

// Seek restarts decoding at pts. ffmpeg performs an accurate input seek, so
// the first picture after a Seek is already at the target.
func (in *Input) Seek(pts int64) error {
	if in.closed {
		return codec.ErrClosed
	}
	in.stop()
	in.startSec = in.video.PTSToSeconds(pts)
	in.index = 0
	return nil
}

func (in *Input) start() error {
	bin, err := exec.LookPath("ffmpeg")
	if err != nil {
		return fmt.Errorf("locate ffmpeg: %w", err)
	}
	args := []string{"-hide_banner", "-loglevel", "error"}
	if in.startSec > 0 {
		args = append(args, "-ss", strconv.FormatFloat(in.startSec, 'f', 6, 64))
	}
	args = append(args,
		"-i", in.path,
		"-map", "0:v:0",
		"-vf", "scale=trunc(iw/2)*2:trunc(ih/2)*2",
		"-f", "rawvideo",
		"-pix_fmt", "yuv420p",
		"pipe:1",
	)

	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, bin, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("ffmpeg stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("start ffmpeg decode: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"function": "ffmpeg.Input.start",
		"path":     in.path,
		"start":    in.startSec,
	}).Debug("Started ffmpeg decode process")

	in.cmd = cmd
	in.cancel = cancel
	in.stdout = bufio.NewReaderSize(stdout, 1<<20)
	return nil
}

func (in *Input) stop() {
	if in.cmd == nil {
		return
	}
	in.cancel()
	_ = in.cmd.Wait()
	in.cmd = nil
	in.stdout = nil
}

// Decode reads the next raw picture from the decode process.
func (in *Input) Decode() (*codec.Picture, error) {
	if in.closed {
		return nil, codec.ErrClosed
	}
	if in.width == 0 {
		return nil, fmt.Errorf("%w: video in %s", codec.ErrNoStream, in.path)
	}
	if in.cmd == nil {
		if err := in.start(); err != nil {
			return nil, err
		}
	}

	data := make([]byte, frame.ByteSize(in.width, in.height, frame.FormatYUV420P))
	if _, err := io.ReadFull(in.stdout, data); err != nil {
		in.stop()
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("read decoded picture: %w", err)
	}

	secs := in.startSec + float64(in.index)*in.frameDur
	in.index++
	return &codec.Picture{
		PTS:    in.video.SecondsToPTS(secs),
		HasPTS: true,
		Width:  in.width,
		Height: in.height,
		Data:   data,
	}, nil
}

// Close stops any running decode process.
func (in *Input) Close() error {
	if in.closed {
		return nil
	}
	in.closed = true
	in.stop()
	return nil
}
