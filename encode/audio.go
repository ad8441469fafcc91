package encode

import (
	"context"
	"errors"
	"fmt"

	"github.com/opd-ai/velocut/codec"
	"github.com/opd-ai/velocut/transition"
	"github.com/sirupsen/logrus"
)

// Audio track format of every render.
const (
	AudioSampleRate = 44100
	AudioChannels   = 2
	AudioBitRate    = 128000
)

// AudioConfig is the output audio stream configuration.
var AudioConfig = codec.AudioConfig{
	SampleRate: AudioSampleRate,
	Channels:   AudioChannels,
	BitRate:    AudioBitRate,
}

// clipStarts returns the output frame at which each clip begins. Clip i+1
// starts BlendFrames(i) frames before clip i ends.
func (j *Job) clipStarts() []int {
	starts := make([]int, len(j.Clips))
	plan := j.blendPlan()
	for i := 1; i < len(j.Clips); i++ {
		starts[i] = starts[i-1] + j.clipFrames(i-1) - plan[i-1]
	}
	return starts
}

// AudioSamples is the per-channel length of the rendered audio track. It
// matches the video duration.
func (j *Job) AudioSamples() int {
	if len(j.Clips) == 0 {
		return 0
	}
	return j.sampleAt(j.TotalFrames())
}

// sampleAt converts an output frame index to a per-channel sample index.
func (j *Job) sampleAt(frame int) int {
	return int(int64(frame) * AudioSampleRate / int64(j.FPS))
}

// stageAudio writes the timeline's audio track to out. Each clip
// contributes its own trim window; a clip without audio contributes
// silence. Where a transition overlaps two clips their audio is
// crossfaded over the same frames.
func (e *Encoder) stageAudio(job *Job, out codec.AudioOutput, cancel *Flag) error {
	if err := out.AddAudioStream(AudioConfig); err != nil {
		return fmt.Errorf("add audio stream: %w", err)
	}
	dec, _ := e.backend.(codec.AudioDecoder)
	if dec == nil {
		logrus.WithFields(logrus.Fields{
			"function": "Encoder.stageAudio",
			"backend":  e.backend.Name(),
		}).Warn("Backend cannot decode audio, rendering silence")
	}

	ch := AudioChannels
	starts := job.clipStarts()
	var held []float32
	for i, clip := range job.Clips {
		if cancel.Load() {
			return ErrCancelled
		}
		begin := job.sampleAt(starts[i])
		end := job.sampleAt(starts[i] + job.clipFrames(i))
		next := end
		if i+1 < len(job.Clips) {
			next = job.sampleAt(starts[i+1])
		}

		pcm, err := e.clipAudio(dec, clip, end-begin)
		if err != nil {
			return err
		}
		crossfadeAudio(pcm, held, ch)

		if err := out.WriteAudio(pcm[:(next-begin)*ch]); err != nil {
			return fmt.Errorf("write audio for clip %d: %w", i, err)
		}
		held = pcm[(next-begin)*ch:]
	}
	return nil
}

// clipAudio returns exactly samples frames of interleaved PCM for clip
// with its gain applied, padding with silence when the source is short or
// has no audio.
func (e *Encoder) clipAudio(dec codec.AudioDecoder, clip ClipSpec, samples int) ([]float32, error) {
	out := make([]float32, samples*AudioChannels)
	gain := clip.gain()
	if dec == nil || samples == 0 || gain == 0 {
		return out, nil
	}
	seconds := float64(samples) / AudioSampleRate
	pcm, err := dec.DecodeAudio(context.Background(), clip.Path, clip.SourceOffset, seconds, AudioConfig)
	if errors.Is(err, codec.ErrNoStream) {
		logrus.WithFields(logrus.Fields{
			"function": "Encoder.clipAudio",
			"path":     clip.Path,
		}).Debug("Clip has no audio, rendering silence")
		return out, nil
	}
	if err != nil {
		return nil, fmt.Errorf("decode audio %s: %w", clip.Path, err)
	}
	n := copy(out, pcm)
	if gain != 1 {
		for i := range out[:n] {
			out[i] *= gain
		}
	}
	return out, nil
}

// crossfadeAudio mixes the outgoing tail into the head of pcm.
func crossfadeAudio(pcm, tail []float32, channels int) {
	n := len(tail) / channels
	for k := 0; k < n; k++ {
		a := float32(transition.Alpha(k, n))
		for c := 0; c < channels; c++ {
			idx := k*channels + c
			pcm[idx] = tail[idx]*(1-a) + pcm[idx]*a
		}
	}
}
