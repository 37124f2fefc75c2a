package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type orchestratorMetrics struct {
	// routes counts processed queries by route.
	routes *prometheus.CounterVec

	// failures counts branch handlers that returned an error or panicked.
	failures *prometheus.CounterVec

	// duration records end-to-end graph execution time.
	duration prometheus.Histogram
}

func newOrchestratorMetrics(reg prometheus.Registerer) *orchestratorMetrics {
	factory := promauto.With(reg)
	return &orchestratorMetrics{
		routes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "civic",
			Subsystem: "orchestrator",
			Name:      "routes_total",
			Help:      "Queries processed, partitioned by the route they were classified to.",
		}, []string{"route"}),
		failures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "civic",
			Subsystem: "orchestrator",
			Name:      "handler_failures_total",
			Help:      "Branch handler failures converted to an apologetic response.",
		}, []string{"route"}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "civic",
			Subsystem: "orchestrator",
			Name:      "process_duration_seconds",
			Help:      "Time to classify, route and answer a query.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}
