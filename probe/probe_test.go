package probe

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/opd-ai/velocut/codec/sim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGatekeeper_BoundsConcurrency(t *testing.T) {
	g := NewGatekeeper(2, nil)
	var running, peak, done atomic.Int64

	for i := 0; i < 8; i++ {
		g.Submit(context.Background(), func(ctx context.Context, release func()) {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			running.Add(-1)
			done.Add(1)
		})
	}
	g.Wait()

	assert.Equal(t, int64(8), done.Load())
	assert.LessOrEqual(t, peak.Load(), int64(2))
	assert.Equal(t, 0, g.Active())
}

func TestGatekeeper_EarlyReleaseAdmitsNext(t *testing.T) {
	g := NewGatekeeper(1, nil)
	slow := make(chan struct{})
	fast := make(chan struct{})

	g.Submit(context.Background(), func(ctx context.Context, release func()) {
		release()
		release()
		<-slow
	})
	g.Submit(context.Background(), func(ctx context.Context, release func()) {
		close(fast)
	})

	select {
	case <-fast:
	case <-time.After(2 * time.Second):
		t.Fatal("second probe was not admitted while the first ran its slow phase")
	}
	close(slow)
	g.Wait()
	assert.Equal(t, 0, g.Active())
}

func TestGatekeeper_CancelledBeforeAdmission(t *testing.T) {
	g := NewGatekeeper(1, nil)
	hold := make(chan struct{})
	started := make(chan struct{})
	g.Submit(context.Background(), func(ctx context.Context, release func()) {
		close(started)
		<-hold
	})
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	var ran atomic.Bool
	g.Submit(ctx, func(ctx context.Context, release func()) { ran.Store(true) })
	cancel()
	close(hold)
	g.Wait()
	assert.False(t, ran.Load())
}

type activeRecorder struct {
	mu   sync.Mutex
	seen []int
}

func (r *activeRecorder) ProbeActive(n int) {
	r.mu.Lock()
	r.seen = append(r.seen, n)
	r.mu.Unlock()
}

func TestGatekeeper_ReportsActive(t *testing.T) {
	rec := &activeRecorder{}
	g := NewGatekeeper(0, rec)
	assert.Equal(t, DefaultConcurrency, g.Limit())

	g.Submit(context.Background(), func(ctx context.Context, release func()) {})
	g.Wait()
	assert.Equal(t, []int{1, 0}, rec.seen)
}

func TestResampler(t *testing.T) {
	t.Run("rejects bad config", func(t *testing.T) {
		_, err := NewResampler(ResamplerConfig{InputRate: 0, OutputRate: 100, Channels: 1})
		assert.Error(t, err)
		_, err = NewResampler(ResamplerConfig{InputRate: 100, OutputRate: 100, Channels: 3})
		assert.Error(t, err)
	})

	t.Run("downsample count", func(t *testing.T) {
		in := make([]float32, 48000)
		out, err := ResampleAll(in, 48000, 2000, 1)
		require.NoError(t, err)
		assert.Len(t, out, 2000)
	})

	t.Run("upsample interpolates", func(t *testing.T) {
		out, err := ResampleAll([]float32{0, 1, 0}, 1, 2, 1)
		require.NoError(t, err)
		assert.InDeltaSlice(t, []float32{0, 0.5, 1, 0.5}, out, 1e-6)
	})

	t.Run("chunked matches whole", func(t *testing.T) {
		in := make([]float32, 300)
		for i := range in {
			in[i] = float32(i%17) / 17
		}
		whole, err := ResampleAll(in, 3, 2, 1)
		require.NoError(t, err)

		r, err := NewResampler(ResamplerConfig{InputRate: 3, OutputRate: 2, Channels: 1})
		require.NoError(t, err)
		var chunked []float32
		for i := 0; i < len(in); i += 37 {
			part, err := r.Resample(in[i:min(i+37, len(in))])
			require.NoError(t, err)
			chunked = append(chunked, part...)
		}
		assert.InDeltaSlice(t, whole, chunked, 1e-5)
	})

	t.Run("stereo alignment", func(t *testing.T) {
		r, err := NewResampler(ResamplerConfig{InputRate: 8000, OutputRate: 16000, Channels: 2})
		require.NoError(t, err)
		_, err = r.Resample([]float32{1, 2, 3})
		assert.Error(t, err)
	})
}

func TestWriteWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	require.NoError(t, WriteWAVFile(path, []float32{0, 1, -1, 2}, 44100, 2))

	data := readFile(t, path)
	require.Len(t, data, 44+8)
	assert.Equal(t, "RIFF", string(data[0:4]))
	assert.Equal(t, uint32(36+8), binary.LittleEndian.Uint32(data[4:8]))
	assert.Equal(t, "WAVEfmt ", string(data[8:16]))
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(data[20:22]))
	assert.Equal(t, uint16(2), binary.LittleEndian.Uint16(data[22:24]))
	assert.Equal(t, uint32(44100), binary.LittleEndian.Uint32(data[24:28]))
	assert.Equal(t, uint32(44100*4), binary.LittleEndian.Uint32(data[28:32]))
	assert.Equal(t, uint16(16), binary.LittleEndian.Uint16(data[34:36]))
	assert.Equal(t, "data", string(data[36:40]))

	samples := []int16{
		int16(binary.LittleEndian.Uint16(data[44:])),
		int16(binary.LittleEndian.Uint16(data[46:])),
		int16(binary.LittleEndian.Uint16(data[48:])),
		int16(binary.LittleEndian.Uint16(data[50:])),
	}
	assert.Equal(t, []int16{0, 32767, -32767, 32767}, samples)

	assert.Error(t, WriteWAVFile(path, nil, 0, 2))
}

func TestPeaks(t *testing.T) {
	tests := []struct {
		name    string
		samples []float32
		columns int
		want    []float32
	}{
		{"empty", nil, 10, nil},
		{"fewer samples than columns", []float32{0.1, -0.5}, 10, []float32{0.1, 0.5}},
		{"blocks take max abs", []float32{0.1, -0.4, 0.3, 0.2}, 2, []float32{0.4, 0.3}},
		{"partial tail block dropped past columns", []float32{1, 0, 0, 0, 0.5}, 2, []float32{1, 0}},
		{"clamped", []float32{-3}, 1, []float32{1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDeltaSlice(t, tt.want, Peaks(tt.samples, tt.columns), 1e-6)
		})
	}

	long := make([]float32, WaveformRate*10)
	assert.Len(t, Peaks(long, WaveformColumns), WaveformColumns)
}

func TestPacketSamples(t *testing.T) {
	tests := []struct {
		name   string
		packet []byte
		rate   int
		want   int
	}{
		{"empty", nil, 48000, 0},
		{"silk 10ms narrowband", []byte{0 << 3}, 8000, 80},
		{"silk 20ms two frames", []byte{1<<3 | 1}, 16000, 640},
		{"hybrid 20ms", []byte{13 << 3}, 48000, 960},
		{"celt 20ms arbitrary count", []byte{31<<3 | 3, 3}, 48000, 2880},
		{"truncated code 3", []byte{31<<3 | 3}, 48000, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, packetSamples(tt.packet, tt.rate))
		})
	}
}

func TestRemix(t *testing.T) {
	raw := make([]byte, 8)
	binary.LittleEndian.PutUint16(raw[0:], uint16(32767))
	binary.LittleEndian.PutUint16(raw[2:], 0)
	binary.LittleEndian.PutUint16(raw[4:], uint16(0))
	binary.LittleEndian.PutUint16(raw[6:], 0)

	assert.InDeltaSlice(t, []float32{0.5, 0}, remix(raw, 2, 1), 1e-4)
	assert.InDeltaSlice(t, []float32{1, 1, 0, 0}, remix(raw[:4], 1, 2), 1e-4)
	assert.Len(t, remix(raw, 2, 2), 4)
}

func TestThumbnailGeometry(t *testing.T) {
	tests := []struct {
		w, h  int
		wantH int
	}{
		{1920, 1080, 180},
		{1080, 1920, 568},
		{640, 267, 132},
		{4000, 10, 2},
		{0, 0, 2},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%dx%d", tt.w, tt.h), func(t *testing.T) {
			w, h := ThumbnailSize(tt.w, tt.h)
			assert.Equal(t, ThumbnailWidth, w)
			assert.Equal(t, tt.wantH, h)
		})
	}

	assert.Equal(t, 0.0, ThumbnailTime(2))
	assert.Equal(t, 1.0, ThumbnailTime(5))
	assert.Equal(t, 3.0, ThumbnailTime(30))
}

func TestProbeContainer_UnknownExtension(t *testing.T) {
	_, err := ProbeContainer("clip.y4m")
	assert.ErrorIs(t, err, errNoHeaderProbe)

	_, err = ProbeContainer(filepath.Join(t.TempDir(), "missing.mp4"))
	assert.Error(t, err)
}

// fakeAudio returns a fixed PCM buffer and records extraction requests.
type fakeAudio struct {
	samples []float32
	err     error
	mu      sync.Mutex
	wavs    []string
}

func (f *fakeAudio) PCM(ctx context.Context, path string, rate, channels int) ([]float32, error) {
	return f.samples, f.err
}

func (f *fakeAudio) ExtractWAV(ctx context.Context, path, dest string, rate, channels int) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	f.wavs = append(f.wavs, dest)
	f.mu.Unlock()
	return WriteWAVFile(dest, f.samples, rate, channels)
}

func TestRoutedAudio_FallsBack(t *testing.T) {
	fallback := &fakeAudio{samples: []float32{0.5}}
	r := &RoutedAudio{Opus: &fakeAudio{err: errors.New("not opus")}, Fallback: fallback}

	got, err := r.PCM(context.Background(), "song.opus", 2000, 1)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5}, got)

	dest := filepath.Join(t.TempDir(), "a.wav")
	require.NoError(t, r.ExtractWAV(context.Background(), "song.ogg", dest, 44100, 2))
	assert.Equal(t, []string{dest}, fallback.wavs)

	got, err = r.PCM(context.Background(), "clip.mp4", 2000, 1)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5}, got)
}

func newProber(t *testing.T, audio AudioSource, clips ...sim.Clip) *Prober {
	b := sim.NewBackend()
	for _, c := range clips {
		b.AddClip(c)
	}
	return NewProber(ProberConfig{Backend: b, Audio: audio, TempDir: t.TempDir()})
}

func TestProber_Duration(t *testing.T) {
	p := newProber(t, &fakeAudio{},
		sim.Clip{Path: "three", Frames: 90},
		sim.Clip{Path: "empty", Frames: 0},
	)

	d, err := p.Duration("three")
	require.NoError(t, err)
	assert.InDelta(t, 3.0, d, 1e-9)

	_, err = p.Duration("empty")
	assert.ErrorIs(t, err, ErrDurationUnknown)

	_, err = p.Duration("missing")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrDurationUnknown)
}

func TestProber_VideoSizeAndThumbnail(t *testing.T) {
	p := newProber(t, &fakeAudio{}, sim.Clip{Path: "a", Width: 64, Height: 32, Frames: 90})

	w, h, err := p.VideoSize("a")
	require.NoError(t, err)
	assert.Equal(t, 64, w)
	assert.Equal(t, 32, h)

	thumb, err := p.Thumbnail(uuid.New(), "a", 3)
	require.NoError(t, err)
	assert.Equal(t, 320, thumb.Width)
	assert.Equal(t, 160, thumb.Height)
	assert.Len(t, thumb.RGBA, 320*160*4)
}

func TestProber_WaveformAndAudio(t *testing.T) {
	audio := &fakeAudio{samples: []float32{0.25, -0.75, 0.5}}
	p := newProber(t, audio)

	peaks, err := p.Waveform(context.Background(), "x")
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{0.25, 0.75, 0.5}, peaks, 1e-6)

	id := uuid.New()
	dest, err := p.ExtractAudio(context.Background(), id, "x")
	require.NoError(t, err)
	assert.Equal(t, "velocut_audio_"+id.String()+".wav", filepath.Base(dest))

	_, err = newProber(t, &fakeAudio{}).Waveform(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNoAudio)
}

type event struct {
	kind string
	id   uuid.UUID
	err  error
}

type recordingSink struct {
	mu     sync.Mutex
	events []event
}

func (s *recordingSink) add(e event) {
	s.mu.Lock()
	s.events = append(s.events, e)
	s.mu.Unlock()
}

func (s *recordingSink) Duration(id uuid.UUID, _ float64) { s.add(event{kind: "duration", id: id}) }
func (s *recordingSink) VideoSize(id uuid.UUID, _, _ int) { s.add(event{kind: "size", id: id}) }
func (s *recordingSink) Thumbnail(id uuid.UUID, _ *Thumbnail) {
	s.add(event{kind: "thumbnail", id: id})
}
func (s *recordingSink) Waveform(id uuid.UUID, _ []float32) { s.add(event{kind: "waveform", id: id}) }
func (s *recordingSink) AudioPath(id uuid.UUID, _ string)   { s.add(event{kind: "audio", id: id}) }
func (s *recordingSink) Error(id uuid.UUID, err error)      { s.add(event{kind: "error", id: id, err: err}) }

func (s *recordingSink) kinds(id uuid.UUID) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, e := range s.events {
		if e.id == id {
			out = append(out, e.kind)
		}
	}
	return out
}

func TestService_PipelineOrder(t *testing.T) {
	p := newProber(t, &fakeAudio{samples: []float32{0.5, 0.5}},
		sim.Clip{Path: "video", Width: 32, Height: 16, Frames: 90},
		sim.Clip{Path: "blank", Frames: 0},
	)
	sink := &recordingSink{}
	svc := NewService(p, NewGatekeeper(2, nil), sink)

	video, blank := uuid.New(), uuid.New()
	svc.Probe(video, "video")
	svc.Probe(blank, "blank")
	svc.gate.Wait()

	assert.Equal(t, []string{"duration", "size", "thumbnail", "waveform", "audio"}, sink.kinds(video))
	// No duration means no audio extraction, and the thumbnail decode of
	// an empty clip fails quietly.
	assert.Equal(t, []string{"error", "size", "waveform"}, sink.kinds(blank))

	svc.Shutdown()
	svc.Shutdown()

	late := uuid.New()
	svc.Probe(late, "video")
	assert.Equal(t, []string{"error"}, sink.kinds(late))
}

func TestService_ProbeDuringShutdown(t *testing.T) {
	p := newProber(t, &fakeAudio{samples: []float32{0.5}}, sim.Clip{Path: "video", Frames: 30})
	sink := &recordingSink{}
	svc := NewService(p, NewGatekeeper(2, nil), sink)

	var callers sync.WaitGroup
	for i := 0; i < 8; i++ {
		callers.Add(1)
		go func() {
			defer callers.Done()
			for j := 0; j < 10; j++ {
				svc.Probe(uuid.New(), "video")
			}
		}()
	}
	svc.Shutdown()
	callers.Wait()

	drained := make(chan struct{})
	go func() {
		svc.gate.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(5 * time.Second):
		t.Fatal("probes still running after shutdown")
	}

	late := uuid.New()
	svc.Probe(late, "video")
	sink.mu.Lock()
	defer sink.mu.Unlock()
	last := sink.events[len(sink.events)-1]
	assert.Equal(t, late, last.id)
	assert.ErrorIs(t, last.err, ErrShuttingDown)
}

func readFile(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}
