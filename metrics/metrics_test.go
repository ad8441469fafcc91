package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/opd-ai/velocut/cache"
	"github.com/opd-ai/velocut/encode"
	"github.com/opd-ai/velocut/playback"
	"github.com/opd-ai/velocut/probe"
	"github.com/opd-ai/velocut/scrub"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ cache.Observer     = (*Metrics)(nil)
	_ scrub.Observer     = (*Metrics)(nil)
	_ playback.Observer  = (*Metrics)(nil)
	_ probe.GateObserver = (*Metrics)(nil)
	_ encode.Observer    = (*Metrics)(nil)
)

func TestMetrics_Observers(t *testing.T) {
	m := New()

	m.CacheResident(4096, 3)
	m.CacheEvicted(2)
	m.CacheEvicted(1)
	assert.Equal(t, 4096.0, testutil.ToFloat64(m.CacheBytes))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.CacheEntries))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.CacheEvictions))

	m.ScrubServiced(true, 10*time.Millisecond)
	m.ScrubServiced(false, time.Millisecond)
	m.ScrubServiced(false, time.Millisecond)
	m.ScrubFailed()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ScrubRequests.WithLabelValues("reopen")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ScrubRequests.WithLabelValues("reuse")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ScrubFailures))

	m.PlaybackDecoded()
	m.PlaybackDecoded()
	m.PlaybackPromoted()
	m.PlaybackDiscarded()
	assert.Equal(t, 2.0, testutil.ToFloat64(m.PlaybackFrames.WithLabelValues("decoded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PlaybackFrames.WithLabelValues("promoted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PlaybackFrames.WithLabelValues("discarded")))

	m.ProbeActive(3)
	m.ProbeActive(2)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ProbeWorkers))

	m.EncodeFrame()
	m.EncodeFinished(encode.OutcomeCancelled)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EncodeFrames))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EncodeJobs.WithLabelValues("cancelled")))
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.CacheResident(1, 1)
		m.CacheEvicted(1)
		m.ScrubServiced(true, time.Second)
		m.ScrubFailed()
		m.PlaybackDecoded()
		m.PlaybackPromoted()
		m.PlaybackDiscarded()
		m.ProbeActive(1)
		m.EncodeFrame()
		m.EncodeFinished(encode.OutcomeDone)
		m.WatchSuperseded(func() uint64 { return 1 })
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	var superseded uint64 = 7
	m.WatchSuperseded(func() uint64 { return superseded })
	m.CacheResident(100, 1)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "velocut_frame_cache_bytes 100"))
	assert.True(t, strings.Contains(body, "velocut_scrub_superseded_total 7"))
	assert.True(t, strings.Contains(body, "go_goroutines"))
}
