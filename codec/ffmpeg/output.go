package ffmpeg

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/opd-ai/velocut/codec"
	"github.com/opd-ai/velocut/frame"
	"github.com/sirupsen/logrus"
)

// DefaultAudioBitRate is used when AudioConfig.BitRate is zero.
const DefaultAudioBitRate = 128000

// Output encodes raw pictures to H.264 through an ffmpeg process. An
// optional audio track is staged as raw f32le in a temporary file and
// encoded to AAC alongside the video.
type Output struct {
	path    string
	bin     string
	cfg     codec.VideoConfig
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	stderr  bytes.Buffer
	lastPTS int64
	done    bool

	audio     codec.AudioConfig
	audioFile *os.File
	audioBuf  *bufio.Writer
}

// Create locates ffmpeg and prepares an output at path.
func Create(path string) (*Output, error) {
	bin, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("%w: ffmpeg not found in PATH", codec.ErrEncoderUnavailable)
	}
	return &Output{path: path, bin: bin, lastPTS: -1}, nil
}

// AddStream records the video stream parameters.
func (o *Output) AddStream(cfg codec.VideoConfig) error {
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width%2 != 0 || cfg.Height%2 != 0 {
		return fmt.Errorf("%w: %dx%d", frame.ErrInvalidDimensions, cfg.Width, cfg.Height)
	}
	if cfg.CRF == 0 {
		cfg.CRF = 18
	}
	if cfg.Preset == "" {
		cfg.Preset = "fast"
	}
	o.cfg = cfg
	return nil
}

// AddAudioStream opens the staging file for an AAC audio track.
func (o *Output) AddAudioStream(cfg codec.AudioConfig) error {
	if cfg.SampleRate <= 0 || cfg.Channels <= 0 {
		return fmt.Errorf("invalid audio stream %d Hz x %d", cfg.SampleRate, cfg.Channels)
	}
	if o.cmd != nil {
		return codec.ErrAudioAfterHeader
	}
	if cfg.BitRate <= 0 {
		cfg.BitRate = DefaultAudioBitRate
	}
	f, err := os.CreateTemp("", "velocut-audio-*.f32le")
	if err != nil {
		return fmt.Errorf("create audio staging file: %w", err)
	}
	o.removeAudio()
	o.audio = cfg
	o.audioFile = f
	o.audioBuf = bufio.NewWriter(f)
	return nil
}

// WriteAudio appends interleaved samples to the staged track.
func (o *Output) WriteAudio(samples []float32) error {
	if o.cmd != nil {
		return codec.ErrAudioAfterHeader
	}
	if o.audioBuf == nil {
		return codec.ErrStreamNotConfigured
	}
	if _, err := o.audioBuf.Write(float32ToBytes(samples)); err != nil {
		return fmt.Errorf("stage audio: %w", err)
	}
	return nil
}

// encodeArgs builds the ffmpeg command line. Input 0 is raw video on
// stdin; input 1, when present, is the staged audio.
func (o *Output) encodeArgs() []string {
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-y",
		"-f", "rawvideo",
		"-pix_fmt", "yuv420p",
		"-s", fmt.Sprintf("%dx%d", o.cfg.Width, o.cfg.Height),
		"-r", strconv.Itoa(o.cfg.FPS),
		"-i", "pipe:0",
	}
	if o.audioFile != nil {
		args = append(args,
			"-f", "f32le",
			"-ar", strconv.Itoa(o.audio.SampleRate),
			"-ac", strconv.Itoa(o.audio.Channels),
			"-i", o.audioFile.Name(),
			"-map", "0:v:0",
			"-map", "1:a:0",
		)
	}
	args = append(args,
		"-c:v", "libx264",
		"-preset", o.cfg.Preset,
		"-crf", strconv.Itoa(o.cfg.CRF),
		"-pix_fmt", "yuv420p",
	)
	if o.audioFile != nil {
		args = append(args,
			"-c:a", "aac",
			"-b:a", strconv.Itoa(o.audio.BitRate),
			"-ar", strconv.Itoa(o.audio.SampleRate),
			"-ac", strconv.Itoa(o.audio.Channels),
			"-shortest",
		)
	}
	return append(args, "-movflags", "+faststart", o.path)
}

// WriteHeader starts the encoder process. The container header is written
// by ffmpeg as soon as the first picture arrives.
func (o *Output) WriteHeader() error {
	if o.cfg.Width == 0 {
		return codec.ErrStreamNotConfigured
	}
	if o.audioFile != nil {
		if err := o.audioBuf.Flush(); err != nil {
			return fmt.Errorf("flush audio staging file: %w", err)
		}
		if err := o.audioFile.Sync(); err != nil {
			return fmt.Errorf("sync audio staging file: %w", err)
		}
	}
	o.cmd = exec.Command(o.bin, o.encodeArgs()...)
	o.cmd.Stderr = &o.stderr
	stdin, err := o.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg stdin pipe: %w", err)
	}
	if err := o.cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg encode: %w", err)
	}
	o.stdin = stdin

	logrus.WithFields(logrus.Fields{
		"function": "ffmpeg.Output.WriteHeader",
		"path":     o.path,
		"width":    o.cfg.Width,
		"height":   o.cfg.Height,
		"fps":      o.cfg.FPS,
		"audio":    o.audioFile != nil,
	}).Info("Started ffmpeg encode process")
	return nil
}

// Encode hands the raw picture through as a packet; compression happens
// inside the ffmpeg process.
func (o *Output) Encode(pic *codec.Picture) ([]codec.Packet, error) {
	if pic == nil {
		return nil, nil
	}
	if pic.Width != o.cfg.Width || pic.Height != o.cfg.Height {
		return nil, fmt.Errorf("picture %dx%d does not match stream %dx%d",
			pic.Width, pic.Height, o.cfg.Width, o.cfg.Height)
	}
	return []codec.Packet{{PTS: pic.PTS, Data: pic.Data}}, nil
}

// WritePacket writes one raw picture to the encoder's stdin.
func (o *Output) WritePacket(pkt codec.Packet) error {
	if o.stdin == nil {
		return codec.ErrHeaderNotWritten
	}
	if pkt.PTS <= o.lastPTS {
		return fmt.Errorf("non-monotonic pts %d after %d", pkt.PTS, o.lastPTS)
	}
	if _, err := o.stdin.Write(pkt.Data); err != nil {
		return fmt.Errorf("write to ffmpeg: %w (stderr: %s)", err, o.stderrTail())
	}
	o.lastPTS = pkt.PTS
	return nil
}

// WriteTrailer closes the encoder input and waits for ffmpeg to finalise
// the container.
func (o *Output) WriteTrailer() error {
	if o.stdin == nil {
		return codec.ErrHeaderNotWritten
	}
	if err := o.stdin.Close(); err != nil {
		return fmt.Errorf("close ffmpeg stdin: %w", err)
	}
	err := o.cmd.Wait()
	o.done = true
	o.removeAudio()
	if err != nil {
		return fmt.Errorf("ffmpeg encode: %w (stderr: %s)", err, o.stderrTail())
	}
	return nil
}

// Close kills the encoder if the trailer was never written.
func (o *Output) Close() error {
	defer o.removeAudio()
	if o.cmd == nil || o.done {
		return nil
	}
	if o.stdin != nil {
		o.stdin.Close()
	}
	if o.cmd.Process != nil {
		_ = o.cmd.Process.Kill()
	}
	_ = o.cmd.Wait()
	o.done = true
	return nil
}

func (o *Output) removeAudio() {
	if o.audioFile == nil {
		return
	}
	name := o.audioFile.Name()
	o.audioFile.Close()
	if err := os.Remove(name); err != nil && !os.IsNotExist(err) {
		logrus.WithFields(logrus.Fields{
			"function": "ffmpeg.Output.removeAudio",
			"file":     name,
			"error":    err.Error(),
		}).Warn("Failed to remove audio staging file")
	}
	o.audioFile = nil
	o.audioBuf = nil
}

func (o *Output) stderrTail() string {
	s := strings.TrimSpace(o.stderr.String())
	if len(s) > 512 {
		s = s[len(s)-512:]
	}
	return s
}
