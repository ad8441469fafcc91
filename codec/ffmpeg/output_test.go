package ffmpeg

import (
	"os"
	"strings"
	"testing"

	"github.com/opd-ai/velocut/codec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOutput(t *testing.T) *Output {
	t.Helper()
	o := &Output{path: "out.mp4", bin: "ffmpeg", lastPTS: -1}
	require.NoError(t, o.AddStream(codec.VideoConfig{Width: 16, Height: 8, FPS: 30}))
	t.Cleanup(func() { _ = o.Close() })
	return o
}

func TestOutput_EncodeArgs(t *testing.T) {
	t.Run("video only", func(t *testing.T) {
		args := strings.Join(newTestOutput(t).encodeArgs(), " ")
		assert.Contains(t, args, "-s 16x8 -r 30 -i pipe:0")
		assert.Contains(t, args, "-c:v libx264 -preset fast -crf 18")
		assert.NotContains(t, args, "-c:a")
		assert.True(t, strings.HasSuffix(args, "-movflags +faststart out.mp4"))
	})

	t.Run("with audio", func(t *testing.T) {
		o := newTestOutput(t)
		require.NoError(t, o.AddAudioStream(codec.AudioConfig{SampleRate: 44100, Channels: 2}))
		args := strings.Join(o.encodeArgs(), " ")
		assert.Contains(t, args, "-f f32le -ar 44100 -ac 2 -i "+o.audioFile.Name())
		assert.Contains(t, args, "-map 0:v:0 -map 1:a:0")
		assert.Contains(t, args, "-c:a aac -b:a 128000 -ar 44100 -ac 2")
	})
}

func TestOutput_StagesAudio(t *testing.T) {
	o := newTestOutput(t)
	assert.ErrorIs(t, o.WriteAudio([]float32{1}), codec.ErrStreamNotConfigured)
	assert.Error(t, o.AddAudioStream(codec.AudioConfig{SampleRate: 0, Channels: 2}))

	require.NoError(t, o.AddAudioStream(codec.AudioConfig{SampleRate: 44100, Channels: 2}))
	require.NoError(t, o.WriteAudio([]float32{1, -0.5}))
	require.NoError(t, o.audioBuf.Flush())

	name := o.audioFile.Name()
	raw, err := os.ReadFile(name)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, -0.5}, bytesToFloat32(raw))

	require.NoError(t, o.Close())
	_, err = os.Stat(name)
	assert.True(t, os.IsNotExist(err), "staging file removed on close")
}
