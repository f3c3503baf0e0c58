package metrics

import "github.com/prometheus/client_golang/prometheus"

// Embedding Prometheus metrics.
var (
	EmbeddingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mediadex",
			Name:      "embedding_requests_total",
			Help:      "Embedding API calls by outcome",
		},
		[]string{"provider", "model", "status"},
	)

	EmbeddingRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mediadex",
			Name:      "embedding_request_duration_seconds",
			Help:      "Latency of embedding API calls",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"provider", "model"},
	)

	EmbeddingTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mediadex",
			Name:      "embedding_tokens_total",
			Help:      "Token usage reported by the embedding provider",
		},
		[]string{"provider", "model", "type"},
	)

	EmbeddingErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mediadex",
			Name:      "embedding_errors_total",
			Help:      "Embedding failures by error class",
		},
		[]string{"provider", "model", "error_type"},
	)

	EmbeddingCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mediadex",
			Name:      "embedding_cache_total",
			Help:      "Embedding cache lookups by result",
		},
		[]string{"result"}, // "hit" / "miss"
	)
)

var embeddingRegistered bool

// RegisterEmbeddingMetrics registers Prometheus embedding metrics. Must be
// called once from main.
func RegisterEmbeddingMetrics() {
	if embeddingRegistered {
		return
	}
	embeddingRegistered = true
	prometheus.MustRegister(
		EmbeddingRequestsTotal,
		EmbeddingRequestDuration,
		EmbeddingTokensTotal,
		EmbeddingErrorsTotal,
		EmbeddingCacheTotal,
	)
}
