package probe

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/pion/opus"
	"github.com/pion/webrtc/v3/pkg/media/oggreader"
	"github.com/sirupsen/logrus"
)

// maxOpusPacketSamples is 120 ms of stereo audio at 48 kHz.
const maxOpusPacketSamples = 5760 * 2

// silkDurations, hybridDurations and celtDurations are the frame lengths in
// 48 kHz samples selected by the TOC configuration number.
var (
	silkDurations   = [4]int{480, 960, 1920, 2880}
	hybridDurations = [2]int{480, 960}
	celtDurations   = [4]int{120, 240, 480, 960}
)

// OpusAudio decodes Ogg Opus files in process with pion/opus. Each Ogg page
// is expected to carry one packet, the layout written by WebRTC recorders.
type OpusAudio struct{}

// packetSamples returns the per-channel sample count of an Opus packet
// decoded at rate.
func packetSamples(packet []byte, rate int) int {
	if len(packet) == 0 {
		return 0
	}
	toc := packet[0]
	config := int(toc >> 3)

	var dur48 int
	switch {
	case config < 12:
		dur48 = silkDurations[config%4]
	case config < 16:
		dur48 = hybridDurations[config%2]
	default:
		dur48 = celtDurations[config%4]
	}

	frames := 1
	switch toc & 0x3 {
	case 1, 2:
		frames = 2
	case 3:
		if len(packet) < 2 {
			return 0
		}
		frames = int(packet[1] & 0x3f)
	}
	return frames * dur48 * rate / opusRate
}

// PCM implements AudioSource.
func (OpusAudio) PCM(ctx context.Context, path string, rate, channels int) ([]float32, error) {
	if channels < 1 || channels > 2 {
		return nil, fmt.Errorf("unsupported channel count: %d", channels)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader, header, err := oggreader.NewWith(f)
	if err != nil {
		return nil, fmt.Errorf("parse ogg %s: %w", path, err)
	}

	dec := opus.NewDecoder()
	buf := make([]byte, maxOpusPacketSamples*2)
	var (
		out       []float32
		resampler *Resampler
		srcRate   int
		skipped   int
	)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		packet, _, err := reader.ParseNextPage()
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read ogg page %s: %w", path, err)
		}
		if len(packet) == 0 || bytes.HasPrefix(packet, []byte("OpusTags")) {
			continue
		}

		bw, stereo, err := dec.Decode(packet, buf)
		if err != nil {
			skipped++
			continue
		}
		decodedRate := bw.SampleRate()
		srcChannels := 1
		if stereo {
			srcChannels = 2
		}
		n := min(packetSamples(packet, decodedRate)*srcChannels, len(buf)/2)
		pcm := remix(buf[:n*2], srcChannels, channels)

		if resampler == nil || decodedRate != srcRate {
			srcRate = decodedRate
			if resampler, err = NewResampler(ResamplerConfig{InputRate: srcRate, OutputRate: rate, Channels: channels}); err != nil {
				return nil, err
			}
		}
		chunk, err := resampler.Resample(pcm)
		if err != nil {
			return nil, err
		}
		out = append(out, chunk...)
	}

	logrus.WithFields(logrus.Fields{
		"function":    "OpusAudio.PCM",
		"path":        path,
		"samples":     len(out),
		"skipped":     skipped,
		"source_rate": srcRate,
		"channels":    header.Channels,
	}).Debug("Decoded ogg opus audio")

	if len(out) == 0 {
		return nil, ErrNoAudio
	}
	return out, nil
}

// ExtractWAV implements AudioSource.
func (o OpusAudio) ExtractWAV(ctx context.Context, path, dest string, rate, channels int) error {
	samples, err := o.PCM(ctx, path, rate, channels)
	if err != nil {
		return err
	}
	return WriteWAVFile(dest, samples, rate, channels)
}

// remix converts little-endian int16 PCM to float32 with the requested
// channel count, averaging stereo down to mono or duplicating mono.
func remix(raw []byte, from, to int) []float32 {
	frames := len(raw) / 2 / from
	out := make([]float32, 0, frames*to)
	at := func(i int) float32 {
		return s16ToFloat(int16(binary.LittleEndian.Uint16(raw[i*2:])))
	}
	for i := 0; i < frames; i++ {
		switch {
		case from == to:
			for ch := 0; ch < from; ch++ {
				out = append(out, at(i*from+ch))
			}
		case from == 2:
			out = append(out, (at(i*2)+at(i*2+1))/2)
		default:
			v := at(i)
			out = append(out, v, v)
		}
	}
	return out
}
