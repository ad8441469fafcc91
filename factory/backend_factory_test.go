package factory

import (
	"context"
	"testing"

	"github.com/opd-ai/velocut/codec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBackendFactory_EnvironmentOverride(t *testing.T) {
	tests := []struct {
		name string
		env  string
		want string
	}{
		{"unset", "", BackendAuto},
		{"sim", "sim", BackendSim},
		{"case insensitive", " Y4M ", BackendY4M},
		{"invalid keeps default", "gstreamer", BackendAuto},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvBackend, tt.env)
			f := NewBackendFactory()
			assert.Equal(t, tt.want, f.DefaultName())
		})
	}
}

func TestBackendFactory_Create(t *testing.T) {
	t.Setenv(EnvBackend, "")
	f := NewBackendFactory()

	for _, name := range []string{BackendAuto, BackendFFmpeg, BackendY4M, BackendSim} {
		b, err := f.Create(name)
		require.NoError(t, err)
		assert.Equal(t, name, b.Name())
	}

	_, err := f.Create("vlc")
	assert.Error(t, err)

	require.NoError(t, f.SetDefault(BackendSim))
	b, err := f.Create("")
	require.NoError(t, err)
	assert.Equal(t, BackendSim, b.Name())
	assert.Error(t, f.SetDefault("nope"))
}

func TestAutoBackend_Routing(t *testing.T) {
	a := NewAutoBackend()
	assert.Equal(t, "y4m", a.route("/media/clip.Y4M").Name())
	assert.Equal(t, "ffmpeg", a.route("/media/clip.mp4").Name())
	assert.Equal(t, "ffmpeg", a.route("noext").Name())
}

func TestAutoBackend_DecodeAudio(t *testing.T) {
	var dec codec.AudioDecoder = NewAutoBackend()
	_, err := dec.DecodeAudio(context.Background(), "clip.Y4M", 0, 1, codec.AudioConfig{SampleRate: 44100, Channels: 2})
	assert.ErrorIs(t, err, codec.ErrNoStream)
}
