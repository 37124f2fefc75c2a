package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "civic"

// labelHandler partitions HTTP metrics by route name, not raw path.
const labelHandler = "handler"

// serverMetrics is created once per Server so tests can pass a private
// registry.
type serverMetrics struct {
	// Chat outcomes are "ok", "timeout" or "error".
	chatRequestsTotal   *prometheus.CounterVec
	chatDurationSeconds *prometheus.HistogramVec
	chatActiveStreams   prometheus.Gauge

	httpRequestsTotal   *prometheus.CounterVec
	httpDurationSeconds *prometheus.HistogramVec

	rateLimitedTotal *prometheus.CounterVec

	// probeFailuresTotal counts failed /api/ready probes per dependency.
	probeFailuresTotal *prometheus.CounterVec
}

func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	f := promauto.With(reg)

	return &serverMetrics{
		chatRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "chat",
			Name:      "requests_total",
			Help:      "Completed /api/chat streams by outcome.",
		}, []string{"outcome"}),

		chatDurationSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "chat",
			Name:      "duration_seconds",
			Help:      "Duration of /api/chat streams by outcome.",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
		}, []string{"outcome"}),

		chatActiveStreams: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "chat",
			Name:      "active_streams",
			Help:      "Open /api/chat streams.",
		}),

		httpRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, handler and status code.",
		}, []string{"method", labelHandler, "code"}),

		httpDurationSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "duration_seconds",
			Help:      "HTTP request latency by method and handler.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", labelHandler}),

		rateLimitedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Requests rejected with 429 by handler.",
		}, []string{labelHandler}),

		probeFailuresTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "ready",
			Name:      "probe_failures_total",
			Help:      "Failed readiness probes by dependency.",
		}, []string{"dependency"}),
	}
}
