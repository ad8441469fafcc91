package ffmpeg

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/opd-ai/velocut/codec"
)

// ProbeTimeout bounds a single ffprobe invocation.
var ProbeTimeout = 10 * time.Second

type probeStream struct {
	Index      int    `json:"index"`
	CodecType  string `json:"codec_type"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	TimeBase   string `json:"time_base"`
	RFrameRate string `json:"r_frame_rate"`
	DurationTS int64  `json:"duration_ts"`
	Duration   string `json:"duration"`
}

type probeFormat struct {
	Duration string `json:"duration"`
}

type probeOutput struct {
	Streams []probeStream `json:"streams"`
	Format  probeFormat   `json:"format"`
}

// ProbeResult is the parsed ffprobe view of a container.
type ProbeResult struct {
	Streams  []codec.Stream
	Duration float64
}

// HasAudio reports whether any probed stream is audio.
func (r *ProbeResult) HasAudio() bool {
	for _, s := range r.Streams {
		if s.Type == codec.MediaAudio {
			return true
		}
	}
	return false
}

// Probe runs ffprobe on path.
func Probe(ctx context.Context, path string) (*ProbeResult, error) {
	bin, err := exec.LookPath("ffprobe")
	if err != nil {
		return nil, fmt.Errorf("locate ffprobe: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, ProbeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, bin,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffprobe %s: %w (stderr: %s)", path, err, strings.TrimSpace(stderr.String()))
	}
	return parseProbe(stdout.Bytes())
}

func parseProbe(data []byte) (*ProbeResult, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode ffprobe output: %w", err)
	}

	res := &ProbeResult{}
	res.Duration, _ = strconv.ParseFloat(out.Format.Duration, 64)

	for _, ps := range out.Streams {
		s := codec.Stream{
			Index:     ps.Index,
			TimeBase:  parseRational(ps.TimeBase),
			FrameRate: parseRational(ps.RFrameRate),
			Width:     ps.Width,
			Height:    ps.Height,
			Duration:  ps.DurationTS,
		}
		switch ps.CodecType {
		case "video":
			s.Type = codec.MediaVideo
		case "audio":
			s.Type = codec.MediaAudio
		default:
			continue
		}
		if s.Duration == 0 && s.TimeBase.Valid() {
			if secs, err := strconv.ParseFloat(ps.Duration, 64); err == nil {
				s.Duration = s.SecondsToPTS(secs)
			}
		}
		res.Streams = append(res.Streams, s)
	}
	return res, nil
}

// parseRational handles "num/den" and plain decimal forms. Decimals are
// scaled by 1000 to keep three digits of precision.
func parseRational(s string) codec.Rational {
	s = strings.TrimSpace(s)
	if num, den, ok := strings.Cut(s, "/"); ok {
		n, err1 := strconv.ParseInt(num, 10, 64)
		d, err2 := strconv.ParseInt(den, 10, 64)
		if err1 == nil && err2 == nil && d > 0 {
			return codec.Rational{Num: n, Den: d}
		}
		return codec.Rational{}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f <= 0 {
		return codec.Rational{}
	}
	return codec.Rational{Num: int64(f * 1000), Den: 1000}
}
