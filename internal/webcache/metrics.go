package webcache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Fetch outcomes recorded in the result label.
const (
	resultHit     = "hit"
	resultRefresh = "refresh"
	resultStale   = "stale"
	resultFailed  = "failed"
)

type cacheMetrics struct {
	// fetches counts Fetch calls by key and outcome.
	fetches *prometheus.CounterVec

	// refreshDuration records how long source refreshes take.
	refreshDuration prometheus.Histogram
}

func newCacheMetrics(reg prometheus.Registerer) *cacheMetrics {
	factory := promauto.With(reg)
	return &cacheMetrics{
		fetches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "civic",
			Subsystem: "webcache",
			Name:      "fetches_total",
			Help:      "Web cache fetches by key and result (hit, refresh, stale, failed).",
		}, []string{"key", "result"}),
		refreshDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "civic",
			Subsystem: "webcache",
			Name:      "refresh_duration_seconds",
			Help:      "Duration of web source refreshes.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
	}
}

type scraperMetrics struct {
	// pageFailures counts target pages skipped after retries or for
	// insufficient content.
	pageFailures prometheus.Counter
}

func newScraperMetrics(reg prometheus.Registerer) *scraperMetrics {
	return &scraperMetrics{
		pageFailures: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "civic",
			Subsystem: "webcache",
			Name:      "page_failures_total",
			Help:      "Website pages skipped during a scrape.",
		}),
	}
}
