package metrics

import (
	"net/http"
	"time"

	"github.com/opd-ai/velocut/encode"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "velocut"

// Metrics holds every collector.
type Metrics struct {
	registry *prometheus.Registry

	// Cache metrics
	CacheBytes     prometheus.Gauge
	CacheEntries   prometheus.Gauge
	CacheEvictions prometheus.Counter

	// Scrub metrics
	ScrubRequests *prometheus.CounterVec
	ScrubFailures prometheus.Counter
	ScrubLatency  prometheus.Histogram

	// Playback metrics
	PlaybackFrames *prometheus.CounterVec

	// Probe metrics
	ProbeWorkers prometheus.Gauge

	// Encode metrics
	EncodeFrames prometheus.Counter
	EncodeJobs   *prometheus.CounterVec
}

// New creates the collectors on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		CacheBytes: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "frame_cache_bytes",
			Help:      "Resident bytes in the frame cache",
		}),
		CacheEntries: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "frame_cache_entries",
			Help:      "Resident frames in the frame cache",
		}),
		CacheEvictions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frame_cache_evictions_total",
			Help:      "Frames evicted to stay under the byte ceiling",
		}),

		ScrubRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scrub_requests_total",
			Help:      "Scrub requests serviced, by decode session decision",
		}, []string{"decision"}),
		ScrubFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scrub_failures_total",
			Help:      "Scrub requests that produced no frame",
		}),
		ScrubLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scrub_latency_seconds",
			Help:      "Time to service one scrub request",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),

		PlaybackFrames: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "playback_frames_total",
			Help:      "Playback frames by stage",
		}, []string{"stage"}), // decoded, promoted, discarded

		ProbeWorkers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "probe_active",
			Help:      "Probe workers currently holding a permit",
		}),

		EncodeFrames: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "encode_frames_total",
			Help:      "Frames written by the timeline encoder",
		}),
		EncodeJobs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "encode_jobs_total",
			Help:      "Finished encode jobs by outcome",
		}, []string{"outcome"}),
	}
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// WatchSuperseded exposes a running count of scrub requests replaced
// before they were serviced.
func (m *Metrics) WatchSuperseded(count func() uint64) {
	if m == nil {
		return
	}
	m.registry.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "scrub_superseded_total",
		Help:      "Scrub requests overwritten by a newer request",
	}, func() float64 { return float64(count()) }))
}

// CacheResident implements cache.Observer.
func (m *Metrics) CacheResident(bytes, entries int) {
	if m == nil {
		return
	}
	m.CacheBytes.Set(float64(bytes))
	m.CacheEntries.Set(float64(entries))
}

// CacheEvicted implements cache.Observer.
func (m *Metrics) CacheEvicted(entries int) {
	if m == nil {
		return
	}
	m.CacheEvictions.Add(float64(entries))
}

// ScrubServiced implements scrub.Observer.
func (m *Metrics) ScrubServiced(reopened bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	decision := "reuse"
	if reopened {
		decision = "reopen"
	}
	m.ScrubRequests.WithLabelValues(decision).Inc()
	m.ScrubLatency.Observe(elapsed.Seconds())
}

// ScrubFailed implements scrub.Observer.
func (m *Metrics) ScrubFailed() {
	if m == nil {
		return
	}
	m.ScrubFailures.Inc()
}

// PlaybackDecoded implements playback.Observer.
func (m *Metrics) PlaybackDecoded() { m.playback("decoded") }

// PlaybackPromoted implements playback.Observer.
func (m *Metrics) PlaybackPromoted() { m.playback("promoted") }

// PlaybackDiscarded implements playback.Observer.
func (m *Metrics) PlaybackDiscarded() { m.playback("discarded") }

func (m *Metrics) playback(stage string) {
	if m == nil {
		return
	}
	m.PlaybackFrames.WithLabelValues(stage).Inc()
}

// ProbeActive implements probe.GateObserver.
func (m *Metrics) ProbeActive(n int) {
	if m == nil {
		return
	}
	m.ProbeWorkers.Set(float64(n))
}

// EncodeFrame implements encode.Observer.
func (m *Metrics) EncodeFrame() {
	if m == nil {
		return
	}
	m.EncodeFrames.Inc()
}

// EncodeFinished implements encode.Observer.
func (m *Metrics) EncodeFinished(outcome encode.Outcome) {
	if m == nil {
		return
	}
	m.EncodeJobs.WithLabelValues(string(outcome)).Inc()
}
