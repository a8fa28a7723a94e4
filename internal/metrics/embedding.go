// Package metrics holds the librarian's prometheus collectors. Nothing registers at import time;
// the composition root calls RegisterAll.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "librarian"

// Embedding provider metrics, labelled by provider (openai, groq, ollama, ...) and model.
var (
	EmbeddingRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "embedding", Name: "requests_total",
		Help: "Embedding API calls by outcome; one batch call counts once.",
	}, []string{"provider", "model", "status"})

	EmbeddingRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: "embedding", Name: "request_duration_seconds",
		Help:    "Embedding API call latency.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"provider", "model"})

	// EmbeddingTokensTotal has type "prompt" or "total".
	EmbeddingTokensTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "embedding", Name: "tokens_total",
		Help: "Tokens billed by the embedding provider.",
	}, []string{"provider", "model", "type"})

	EmbeddingErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "embedding", Name: "errors_total",
		Help: "Failed embedding calls by cause (api_error or count_mismatch).",
	}, []string{"provider", "model", "error_type"})

	// EmbeddingCacheTotal has result "hit" or "miss".
	EmbeddingCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "embedding", Name: "cache_total",
		Help: "Embedding cache lookups for book descriptions and queries.",
	}, []string{"result"})
)

var embeddingRegistered bool

func RegisterEmbeddingMetrics() {
	registerOnce(&embeddingRegistered,
		EmbeddingRequestsTotal, EmbeddingRequestDuration, EmbeddingTokensTotal, EmbeddingErrorsTotal, EmbeddingCacheTotal)
}

// registerOnce registers cs on the default registry unless *done is already set.
func registerOnce(done *bool, cs ...prometheus.Collector) {
	if *done {
		return
	}
	prometheus.MustRegister(cs...)
	*done = true
}
