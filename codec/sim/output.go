package sim

import (
	"fmt"

	"github.com/opd-ai/velocut/codec"
)

// Recording captures everything written to a simulated output.
type Recording struct {
	Path           string
	Config         codec.VideoConfig
	AudioConfig    codec.AudioConfig
	Audio          []float32
	HeaderWritten  bool
	Packets        []codec.Packet
	Flushed        bool
	TrailerWritten bool
	Closed         bool
}

// AudioSamples is the per-channel length of the recorded audio track.
func (r *Recording) AudioSamples() int {
	if r.AudioConfig.Channels == 0 {
		return 0
	}
	return len(r.Audio) / r.AudioConfig.Channels
}

// PTS lists the timestamps of the recorded packets in write order.
func (r *Recording) PTS() []int64 {
	out := make([]int64, len(r.Packets))
	for i, p := range r.Packets {
		out[i] = p.PTS
	}
	return out
}

type output struct {
	backend *Backend
	rec     *Recording
	encoded int
	failAt  int
	// pending holds one picture to mimic encoder delay; it is emitted on the
	// next Encode call or on flush.
	pending *codec.Packet
}

func (o *output) AddStream(cfg codec.VideoConfig) error {
	o.backend.mu.Lock()
	defer o.backend.mu.Unlock()
	o.rec.Config = cfg
	return nil
}

func (o *output) AddAudioStream(cfg codec.AudioConfig) error {
	if cfg.SampleRate <= 0 || cfg.Channels <= 0 {
		return fmt.Errorf("invalid audio stream %d Hz x %d", cfg.SampleRate, cfg.Channels)
	}
	o.backend.mu.Lock()
	defer o.backend.mu.Unlock()
	o.rec.AudioConfig = cfg
	return nil
}

func (o *output) WriteAudio(samples []float32) error {
	o.backend.mu.Lock()
	defer o.backend.mu.Unlock()
	if o.rec.AudioConfig.Channels == 0 {
		return codec.ErrStreamNotConfigured
	}
	if o.rec.HeaderWritten {
		return codec.ErrAudioAfterHeader
	}
	o.rec.Audio = append(o.rec.Audio, samples...)
	return nil
}

func (o *output) WriteHeader() error {
	o.backend.mu.Lock()
	defer o.backend.mu.Unlock()
	if o.rec.Config.Width == 0 {
		return codec.ErrStreamNotConfigured
	}
	o.rec.HeaderWritten = true
	return nil
}

func (o *output) Encode(pic *codec.Picture) ([]codec.Packet, error) {
	if pic == nil {
		o.backend.mu.Lock()
		o.rec.Flushed = true
		o.backend.mu.Unlock()
		if o.pending == nil {
			return nil, nil
		}
		p := *o.pending
		o.pending = nil
		return []codec.Packet{p}, nil
	}

	o.encoded++
	if o.failAt > 0 && o.encoded == o.failAt {
		return nil, fmt.Errorf("simulated encoder failure at picture %d", o.encoded)
	}
	if pic.Width != o.rec.Config.Width || pic.Height != o.rec.Config.Height {
		return nil, fmt.Errorf("picture %dx%d does not match stream %dx%d",
			pic.Width, pic.Height, o.rec.Config.Width, o.rec.Config.Height)
	}

	next := codec.Packet{PTS: pic.PTS, Keyframe: o.encoded == 1, Data: append([]byte(nil), pic.Data...)}
	if o.pending == nil {
		o.pending = &next
		return nil, nil
	}
	out := []codec.Packet{*o.pending}
	o.pending = &next
	return out, nil
}

func (o *output) WritePacket(pkt codec.Packet) error {
	o.backend.mu.Lock()
	defer o.backend.mu.Unlock()
	if !o.rec.HeaderWritten {
		return codec.ErrHeaderNotWritten
	}
	o.rec.Packets = append(o.rec.Packets, pkt)
	return nil
}

func (o *output) WriteTrailer() error {
	o.backend.mu.Lock()
	defer o.backend.mu.Unlock()
	o.rec.TrailerWritten = true
	return nil
}

func (o *output) Close() error {
	o.backend.mu.Lock()
	defer o.backend.mu.Unlock()
	o.rec.Closed = true
	return nil
}
