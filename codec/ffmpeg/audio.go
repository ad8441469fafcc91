package ffmpeg

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// DecodeMonoPCM decodes the first audio stream of path to mono float32
// samples at the given rate.
func DecodeMonoPCM(ctx context.Context, path string, rate int) ([]float32, error) {
	return decodePCM(ctx, path, []string{"-i", path}, rate, 1)
}

// DecodePCM decodes [start, start+duration) of the first audio stream of
// path to interleaved float32 samples.
func DecodePCM(ctx context.Context, path string, start, duration float64, rate, channels int) ([]float32, error) {
	return decodePCM(ctx, path, []string{
		"-ss", strconv.FormatFloat(start, 'f', 6, 64),
		"-t", strconv.FormatFloat(duration, 'f', 6, 64),
		"-i", path,
	}, rate, channels)
}

func decodePCM(ctx context.Context, path string, input []string, rate, channels int) ([]float32, error) {
	bin, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("locate ffmpeg: %w", err)
	}
	args := append([]string{"-hide_banner", "-loglevel", "error"}, input...)
	args = append(args,
		"-vn",
		"-ac", strconv.Itoa(channels),
		"-ar", strconv.Itoa(rate),
		"-f", "f32le",
		"pipe:1",
	)
	cmd := exec.CommandContext(ctx, bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg pcm %s: %w (stderr: %s)", path, err, strings.TrimSpace(stderr.String()))
	}
	return bytesToFloat32(stdout.Bytes()), nil
}

func float32ToBytes(samples []float32) []byte {
	raw := make([]byte, len(samples)*4)
	for i, v := range samples {
		binary.LittleEndian.PutUint32(raw[i*4:], math.Float32bits(v))
	}
	return raw
}

func bytesToFloat32(raw []byte) []float32 {
	samples := make([]float32, len(raw)/4)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return samples
}

// ExtractWAV writes the first audio stream of path to dest as 16-bit PCM
// WAV with the given rate and channel count.
func ExtractWAV(ctx context.Context, path, dest string, rate, channels int) error {
	bin, err := exec.LookPath("ffmpeg")
	if err != nil {
		return fmt.Errorf("locate ffmpeg: %w", err)
	}
	cmd := exec.CommandContext(ctx, bin,
		"-hide_banner",
		"-loglevel", "error",
		"-y",
		"-i", path,
		"-vn",
		"-ac", strconv.Itoa(channels),
		"-ar", strconv.Itoa(rate),
		"-c:a", "pcm_s16le",
		dest,
	)
	var stderr bytes.Buffer
	cmd.Stdout = io.Discard
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg wav %s: %w (stderr: %s)", path, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}
