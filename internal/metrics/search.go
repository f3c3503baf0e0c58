package metrics

import "github.com/prometheus/client_golang/prometheus"

// Leg label values for hybrid search metrics.
const (
	LegVector = "vector"
	LegText   = "text"
)

// Status label values for hybrid search metrics.
const (
	LegStatusOK       = "ok"
	LegStatusSoftFail = "soft_fail"
)

// Hybrid search Prometheus metrics.
var (
	SearchLegTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mediadex",
			Name:      "search_leg_total",
			Help:      "Retrieval leg outcomes by leg and status",
		},
		[]string{"leg", "status"},
	)

	SearchLegDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mediadex",
			Name:      "search_leg_duration_seconds",
			Help:      "Retrieval leg duration in seconds",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"leg"},
	)

	SearchFusedResults = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "mediadex",
			Name:      "search_fused_results",
			Help:      "Number of results after fusion and truncation",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50, 100},
		},
	)
)

var searchMetricsRegistered bool

// RegisterSearchMetrics registers Prometheus search metrics. Must be called
// once from main.
func RegisterSearchMetrics() {
	if searchMetricsRegistered {
		return
	}
	prometheus.MustRegister(SearchLegTotal)
	prometheus.MustRegister(SearchLegDuration)
	prometheus.MustRegister(SearchFusedResults)
	searchMetricsRegistered = true
}
