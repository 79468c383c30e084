// Package monitoring holds the adapter's Prometheus metrics.
package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics registers and exposes all adapter metrics on a private registry so
// independent instances (and tests) never collide.
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal     *prometheus.CounterVec
	RequestDuration   *prometheus.HistogramVec
	PhaseDuration     *prometheus.HistogramVec
	RevealCacheHits   prometheus.Counter
	RevealCacheMisses prometheus.Counter
	RevealCacheSize   prometheus.Gauge
	InflightRejected  prometheus.Counter
}

// NewMetrics creates and registers all adapter metrics.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adapter_requests_total",
				Help: "Total oracle requests processed",
			},
			[]string{"mode", "status"},
		),

		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "adapter_request_duration_seconds",
				Help:    "End-to-end oracle request duration",
				Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"mode"},
		),

		PhaseDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "adapter_phase_duration_seconds",
				Help:    "Duration of individual pipeline phases",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"phase"}, // phase: resolve, jury, publish
		),

		RevealCacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "adapter_reveal_cache_hits_total",
			Help: "Reveal requests served from the commit cache",
		}),

		RevealCacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "adapter_reveal_cache_misses_total",
			Help: "Reveal requests that fell through to a full evaluation",
		}),

		RevealCacheSize: factory.NewGauge(prometheus.GaugeOpts{
			Name: "adapter_reveal_cache_entries",
			Help: "Commit records currently cached",
		}),

		InflightRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "adapter_inflight_rejected_total",
			Help: "Requests rejected by the inflight limiter",
		}),
	}
}

// Handler serves the registry for GET /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordRequest records one completed oracle request.
func (m *Metrics) RecordRequest(mode, status string, seconds float64) {
	m.RequestsTotal.WithLabelValues(mode, status).Inc()
	m.RequestDuration.WithLabelValues(mode).Observe(seconds)
}

// RecordPhase records the duration of one pipeline phase.
func (m *Metrics) RecordPhase(phase string, seconds float64) {
	m.PhaseDuration.WithLabelValues(phase).Observe(seconds)
}
