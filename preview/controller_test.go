package preview

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/opd-ai/velocut/cache"
	"github.com/opd-ai/velocut/frame"
	"github.com/opd-ai/velocut/playback"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type manualClock struct{ now time.Time }

func (m *manualClock) Now() time.Time          { return m.now }
func (m *manualClock) Advance(d time.Duration) { m.now = m.now.Add(d) }

type call struct {
	op string
	id uuid.UUID
	ts float64
}

type fakeRequester struct{ calls []call }

func (f *fakeRequester) RequestFrame(id uuid.UUID, path string, ts, aspect float64) {
	f.calls = append(f.calls, call{"frame", id, ts})
}

func (f *fakeRequester) StartPlayback(id uuid.UUID, path string, ts, aspect float64) {
	f.calls = append(f.calls, call{"start", id, ts})
}

func (f *fakeRequester) StopPlayback() { f.calls = append(f.calls, call{op: "stop"}) }

func (f *fakeRequester) take() []call {
	out := f.calls
	f.calls = nil
	return out
}

type fixture struct {
	ctrl  *Controller
	req   *fakeRequester
	clock *manualClock
	cache *cache.Cache
	clip  uuid.UUID
}

func newFixture(t *testing.T, gate *playback.Gate) *fixture {
	t.Helper()
	fx := &fixture{
		req:   &fakeRequester{},
		clock: &manualClock{now: time.Unix(1000, 0)},
		cache: cache.New(cache.Config{CeilingBytes: 1 << 20}),
		clip:  uuid.New(),
	}
	fx.ctrl = NewController(Config{Cache: fx.cache, Requester: fx.req, Gate: gate, Clock: fx.clock})
	return fx
}

func (fx *fixture) at(ts float64) *Clip {
	return &Clip{ID: fx.clip, Path: "clip.mp4", LocalTime: ts, Aspect: 16.0 / 9.0}
}

func newFrame(t *testing.T, owner uuid.UUID, ts float64) *frame.Frame {
	t.Helper()
	f, err := frame.New(owner, ts, 4, 2, frame.FormatRGBA)
	require.NoError(t, err)
	return f
}

func TestController_MoveSendsCoarseThenExact(t *testing.T) {
	fx := newFixture(t, nil)

	fx.ctrl.Tick(fx.at(1.3), false)
	assert.Equal(t, []call{{"frame", fx.clip, 0}, {"frame", fx.clip, 1.3}}, fx.req.take())

	// Within the move threshold nothing is sent.
	fx.ctrl.Tick(fx.at(1.305), false)
	assert.Empty(t, fx.req.take())

	// Same coarse bucket: exact only.
	fx.ctrl.Tick(fx.at(1.8), false)
	assert.Equal(t, []call{{"frame", fx.clip, 1.8}}, fx.req.take())

	// New coarse bucket.
	fx.ctrl.Tick(fx.at(2.5), false)
	assert.Equal(t, []call{{"frame", fx.clip, 2}, {"frame", fx.clip, 2.5}}, fx.req.take())
}

func TestController_NearestCachedStandIn(t *testing.T) {
	fx := newFixture(t, nil)
	cached := newFrame(t, fx.clip, 0.75)
	fx.cache.Insert(cache.KeyFor(cached), cached)

	fx.ctrl.Tick(fx.at(1.3), false)
	got, ok := fx.ctrl.Current(fx.clip)
	require.True(t, ok)
	assert.Same(t, cached, got)

	other := newFixture(t, nil)
	far := newFrame(t, other.clip, 0.75)
	other.cache.Insert(cache.KeyFor(far), far)
	other.ctrl.Tick(other.at(5), false)
	_, ok = other.ctrl.Current(other.clip)
	assert.False(t, ok, "bucket 3 is more than 8 buckets behind bucket 20")
}

func TestController_IdleRefine(t *testing.T) {
	fx := newFixture(t, nil)
	fx.ctrl.Tick(fx.at(1.3), false)
	fx.req.take()

	// Nothing shown yet: no refine.
	fx.clock.Advance(time.Second)
	fx.ctrl.Tick(fx.at(1.3), false)
	assert.Empty(t, fx.req.take())

	// Show a frame from another bucket; refine waits for the debounce.
	fx.ctrl.Ingest(newFrame(t, fx.clip, 1.0))
	fx.ctrl.Tick(fx.at(1.3), false)
	assert.Equal(t, []call{{"frame", fx.clip, 1.25}}, fx.req.take())

	fx.ctrl.Tick(fx.at(2.0), false)
	fx.req.take()
	fx.clock.Advance(100 * time.Millisecond)
	fx.ctrl.Tick(fx.at(2.0), false)
	assert.Empty(t, fx.req.take(), "debounce not elapsed")

	fx.clock.Advance(60 * time.Millisecond)
	fx.ctrl.Tick(fx.at(2.0), false)
	assert.Equal(t, []call{{"frame", fx.clip, 2.0}}, fx.req.take())

	// Once the bucket is cached the refine stops.
	fx.ctrl.Ingest(newFrame(t, fx.clip, 2.0))
	fx.ctrl.Tick(fx.at(2.0), false)
	assert.Empty(t, fx.req.take())
}

func TestController_ClipSwitchDropsPreviousFrame(t *testing.T) {
	fx := newFixture(t, nil)
	fx.ctrl.Tick(fx.at(3), false)
	fx.ctrl.Ingest(newFrame(t, fx.clip, 3))
	fx.req.take()

	next := &Clip{ID: uuid.New(), Path: "b.mp4", LocalTime: 3}
	fx.ctrl.Tick(next, false)
	_, ok := fx.ctrl.Current(fx.clip)
	assert.False(t, ok)
	// The coarse request is re-sent for the new clip even though the
	// coarse bucket number is the same.
	assert.Equal(t, []call{{"frame", next.ID, 2}, {"frame", next.ID, 3}}, fx.req.take())
}

func TestController_Playback(t *testing.T) {
	fx := newFixture(t, nil)
	fx.ctrl.Tick(fx.at(1), false)
	fx.ctrl.Ingest(newFrame(t, fx.clip, 1))
	fx.req.take()

	fx.ctrl.Tick(fx.at(1), true)
	assert.Equal(t, []call{{"start", fx.clip, 1}}, fx.req.take())
	_, ok := fx.ctrl.Current(fx.clip)
	assert.False(t, ok, "start clears the current frame")

	fx.ctrl.Tick(fx.at(1.5), true)
	assert.Empty(t, fx.req.take())

	// Late scrub results fill the cache but leave the display alone.
	late := newFrame(t, fx.clip, 1.5)
	fx.ctrl.Ingest(late)
	_, ok = fx.ctrl.Current(fx.clip)
	assert.False(t, ok)
	assert.True(t, fx.cache.Contains(cache.KeyFor(late)))

	next := &Clip{ID: uuid.New(), Path: "b.mp4", LocalTime: 0}
	fx.ctrl.Tick(next, true)
	assert.Equal(t, []call{{"start", next.ID, 0}}, fx.req.take())

	fx.ctrl.Tick(next, false)
	assert.Equal(t, []call{{op: "stop"}, {"frame", next.ID, 0}, {"frame", next.ID, 0}}, fx.req.take())
}

func TestController_NoClip(t *testing.T) {
	fx := newFixture(t, nil)
	fx.ctrl.Tick(fx.at(1), false)
	fx.req.take()
	fx.ctrl.Tick(nil, false)
	fx.ctrl.Tick(fx.at(1), false)
	assert.Len(t, fx.req.take(), 2, "leaving the timeline resets the move tracking")
	assert.Nil(t, fx.ctrl.PollPlayback(fx.at(1)))
}

func TestController_PollPlayback(t *testing.T) {
	frames := make(chan *frame.Frame, 4)
	gate := playback.NewGate(frames, playback.GateConfig{})
	fx := newFixture(t, gate)

	first := newFrame(t, fx.clip, 1.0)
	second := newFrame(t, fx.clip, 1.0+1.0/30)
	frames <- first
	frames <- second

	fx.ctrl.Tick(fx.at(1), true)
	assert.Same(t, first, fx.ctrl.PollPlayback(fx.at(1)))
	got, ok := fx.ctrl.Current(fx.clip)
	require.True(t, ok)
	assert.Same(t, first, got)

	assert.Nil(t, fx.ctrl.PollPlayback(fx.at(1)), "next frame is not due yet")
	assert.Same(t, second, fx.ctrl.PollPlayback(fx.at(1.04)))
}
