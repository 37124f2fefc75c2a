package index

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// indexMetrics holds the Prometheus metrics owned by the index.
type indexMetrics struct {
	// chunksAdded counts chunks written through Add.
	chunksAdded prometheus.Counter

	// searches counts searches, partitioned by whether a domain filter was
	// requested ("true"/"false").
	searches *prometheus.CounterVec

	// filterBypassed counts filtered searches that matched nothing and fell
	// back to unfiltered results.
	filterBypassed *prometheus.CounterVec

	// searchDuration records end-to-end search latency including embedding.
	searchDuration prometheus.Histogram
}

func newIndexMetrics(reg prometheus.Registerer) *indexMetrics {
	factory := promauto.With(reg)
	return &indexMetrics{
		chunksAdded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "civic",
			Subsystem: "index",
			Name:      "chunks_added_total",
			Help:      "Total number of chunks upserted into the index.",
		}),
		searches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "civic",
			Subsystem: "index",
			Name:      "searches_total",
			Help:      "Total number of index searches, partitioned by whether a domain filter was applied.",
		}, []string{"filtered"}),
		filterBypassed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "civic",
			Subsystem: "index",
			Name:      "filter_bypassed_total",
			Help:      "Filtered searches that matched no chunk in the requested domain and returned unfiltered results.",
		}, []string{"domain"}),
		searchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "civic",
			Subsystem: "index",
			Name:      "search_duration_seconds",
			Help:      "Latency of index searches including query embedding.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}
