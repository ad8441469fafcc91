package decode

import (
	"testing"

	"github.com/google/uuid"
	"github.com/opd-ai/velocut/codec/sim"
	"github.com/opd-ai/velocut/frame"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fps = 30.0

func newBackend(clips ...sim.Clip) *sim.Backend {
	b := sim.NewBackend()
	for _, c := range clips {
		b.AddClip(c)
	}
	return b
}

func frameIndex(f *frame.Frame) int {
	return int(f.Timestamp*fps + 0.5)
}

func TestTargetSize(t *testing.T) {
	tests := []struct {
		name         string
		params       Params
		nativeW      int
		nativeH      int
		wantW, wantH int
	}{
		{"native when aspect unset", Params{}, 1920, 1080, 1920, 1080},
		{"native clamps tiny sources", Params{Aspect: -1}, 1, 1, 2, 2},
		{"16:9 preview", Params{Aspect: 16.0 / 9.0}, 1920, 1080, 640, 360},
		{"odd height rounds down to even", Params{Aspect: 2.39}, 1920, 800, 640, 266},
		{"portrait preview", Params{Aspect: 9.0 / 16.0}, 1080, 1920, 640, 1136},
		{"explicit size wins", Params{Aspect: 1, Width: 320, Height: 180}, 1920, 1080, 320, 180},
		{"custom preview width", Params{Aspect: 2, PreviewWidth: 100}, 1920, 1080, 100, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := TargetSize(tt.params, tt.nativeW, tt.nativeH)
			assert.Equal(t, tt.wantW, w)
			assert.Equal(t, tt.wantH, h)
		})
	}
}

func TestOpen_SkipsSeekToZero(t *testing.T) {
	b := newBackend(sim.Clip{Path: "a", Frames: 30})

	s, err := Open(b, uuid.New(), Params{Path: "a", Start: 0})
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, 0, b.Stats().Seeks)
	assert.Equal(t, StateDecoding, s.State())

	s2, err := Open(b, uuid.New(), Params{Path: "a", Start: 0.5})
	require.NoError(t, err)
	defer s2.Close()
	assert.Equal(t, 1, b.Stats().Seeks)
	assert.Equal(t, s2.ToPTS(0.5)-1, s2.LastPTS())
}

func TestOpen_Errors(t *testing.T) {
	b := newBackend()
	_, err := Open(b, uuid.New(), Params{Path: "missing"})
	assert.Error(t, err)
}

func TestNextFrame_Sequential(t *testing.T) {
	b := newBackend(sim.Clip{Path: "a", Frames: 5, Width: 32, Height: 16})
	owner := uuid.New()

	s, err := Open(b, owner, Params{Path: "a", Aspect: 2})
	require.NoError(t, err)
	defer s.Close()

	w, h := s.Size()
	assert.Equal(t, 640, w)
	assert.Equal(t, 320, h)

	prev := -1.0
	for i := 0; i < 5; i++ {
		f, err := s.NextFrame()
		require.NoError(t, err)
		require.NoError(t, f.Validate())
		assert.Equal(t, owner, f.OwnerID)
		assert.Equal(t, frame.FormatRGBA, f.Format)
		assert.Greater(t, f.Timestamp, prev)
		prev = f.Timestamp
	}
	_, err = s.NextFrame()
	assert.Error(t, err)
	assert.Equal(t, StateEOF, s.State())
}

func TestNextFrame_SkipUntilBurnsGOP(t *testing.T) {
	b := newBackend(sim.Clip{Path: "a", Frames: 90, GOP: 10})

	s, err := Open(b, uuid.New(), Params{Path: "a", Start: 1.5, Format: frame.FormatYUV420P})
	require.NoError(t, err)
	defer s.Close()

	s.SkipUntil(1.5)
	f, err := s.NextFrame()
	require.NoError(t, err)
	assert.Equal(t, 45, frameIndex(f), "keyframe 40 is burned through")
	assert.Equal(t, byte(45), f.Pixels[0])
}

func TestAdvanceTo(t *testing.T) {
	b := newBackend(sim.Clip{Path: "a", Frames: 30})

	s, err := Open(b, uuid.New(), Params{Path: "a", Format: frame.FormatYUV420P})
	require.NoError(t, err)
	defer s.Close()

	f, err := s.AdvanceTo(0.5)
	require.NoError(t, err)
	assert.Equal(t, 15, frameIndex(f))

	f, err = s.AdvanceTo(0.6)
	require.NoError(t, err)
	assert.Equal(t, 18, frameIndex(f))

	// Past the end the last decoded frame is the fallback.
	f, err = s.AdvanceTo(10)
	require.NoError(t, err)
	assert.Equal(t, 29, frameIndex(f))

	_, err = s.AdvanceTo(11)
	assert.ErrorIs(t, err, ErrNoFrame)
}

func TestAdvanceTo_SeekFailureFallsBackToFiltering(t *testing.T) {
	b := newBackend(sim.Clip{Path: "a", Frames: 60, SeekFails: true})

	s, err := Open(b, uuid.New(), Params{Path: "a", Start: 1.0, Format: frame.FormatYUV420P})
	require.NoError(t, err)
	defer s.Close()

	f, err := s.AdvanceTo(1.0)
	require.NoError(t, err)
	assert.Equal(t, 30, frameIndex(f))
}

func TestMalformedPacketsAreSkipped(t *testing.T) {
	b := newBackend(sim.Clip{Path: "a", Frames: 4, Malformed: map[int]bool{1: true, 2: true}})

	s, err := Open(b, uuid.New(), Params{Path: "a", Format: frame.FormatYUV420P})
	require.NoError(t, err)
	defer s.Close()

	f, err := s.NextFrame()
	require.NoError(t, err)
	assert.Equal(t, 0, frameIndex(f))
	f, err = s.NextFrame()
	require.NoError(t, err)
	assert.Equal(t, 3, frameIndex(f))
}

func TestBurnTo(t *testing.T) {
	b := newBackend(sim.Clip{Path: "a", Frames: 90, GOP: 30})

	s, err := Open(b, uuid.New(), Params{Path: "a", Start: 1.5, Format: frame.FormatYUV420P})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.BurnTo(2.0))
	assert.Equal(t, s.ToPTS(2.0), s.LastPTS())
	assert.Equal(t, 31, b.Stats().Decodes, "keyframe 30 through 60 decoded")

	f, err := s.NextFrame()
	require.NoError(t, err)
	assert.Equal(t, 60, frameIndex(f), "the target frame itself is delivered first")

	before := b.Stats().Decodes
	require.NoError(t, s.BurnTo(1.0), "behind the session is a no-op")
	require.NoError(t, s.BurnTo(0), "zero is a no-op")
	assert.Equal(t, before, b.Stats().Decodes)
}

func TestBurnTo_EOFIsNotAnError(t *testing.T) {
	b := newBackend(sim.Clip{Path: "a", Frames: 10})

	s, err := Open(b, uuid.New(), Params{Path: "a", Format: frame.FormatYUV420P})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.BurnTo(5))
	assert.Equal(t, StateEOF, s.State())
}

func TestDecide(t *testing.T) {
	b := newBackend(sim.Clip{Path: "a", Frames: 300}, sim.Clip{Path: "b", Frames: 300})

	s, err := Open(b, uuid.New(), Params{Path: "a", Format: frame.FormatYUV420P})
	require.NoError(t, err)
	defer s.Close()
	_, err = s.AdvanceTo(3.0)
	require.NoError(t, err)

	yuv := func(path string, ts float64) Params {
		return Params{Path: path, Start: ts, Format: frame.FormatYUV420P}
	}
	withAspect := yuv("a", 3.5)
	withAspect.Aspect = 2
	nativeSize := yuv("a", 3.5)
	nativeSize.Width, nativeSize.Height = 16, 8
	rgba := yuv("a", 3.5)
	rgba.Format = frame.FormatRGBA

	tests := []struct {
		name   string
		sess   *Session
		params Params
		want   Decision
	}{
		{"no session", nil, yuv("a", 1), Reopen},
		{"different path", s, yuv("b", 3.5), Reopen},
		{"same position", s, yuv("a", 3.0), Reopen},
		{"backward", s, yuv("a", 2.0), Reopen},
		{"slightly ahead", s, yuv("a", 3.5), Reuse},
		{"at threshold", s, yuv("a", 5.0), Reuse},
		{"past threshold", s, yuv("a", 5.5), Reopen},
		{"aspect changes output size", s, withAspect, Reopen},
		{"explicit size matching session", s, nativeSize, Reuse},
		{"different format", s, rgba, Reopen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decide(tt.sess, tt.params, 2.0))
			assert.Equal(t, tt.want == Reopen, NeedsReopen(tt.sess, tt.params, 2.0))
		})
	}
}

func TestDecodeFrame(t *testing.T) {
	b := newBackend(sim.Clip{Path: "a", Frames: 60, GOP: 15})

	f, err := DecodeFrame(b, uuid.New(), Params{Path: "a", Start: 1.2, Format: frame.FormatYUV420P})
	require.NoError(t, err)
	assert.Equal(t, 36, frameIndex(f))

	f, err = DecodeFrame(b, uuid.New(), Params{Path: "a", Start: 30, Format: frame.FormatYUV420P})
	require.NoError(t, err)
	assert.Equal(t, 59, frameIndex(f), "end of stream falls back to the last frame")
}
