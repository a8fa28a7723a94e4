package metrics

import "github.com/prometheus/client_golang/prometheus"

// IndexerDocumentsTotal counts documents per indexing outcome
// ("indexed", "skipped", "embed_failed", "persist_failed").
var IndexerDocumentsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "indexer_documents_total",
		Help:      "Documents processed by the embedding indexer, by outcome",
	},
	[]string{"outcome"},
)

// IndexerRunsTotal counts indexing runs by status.
var IndexerRunsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "indexer_runs_total",
		Help:      "Embedding indexer runs by status",
	},
	[]string{"status"},
)

var indexerMetricsRegistered bool

// RegisterIndexerMetrics registers indexer metrics. Must be called once from main.
func RegisterIndexerMetrics() {
	registerOnce(&indexerMetricsRegistered, IndexerDocumentsTotal, IndexerRunsTotal)
}

// RegisterAll registers every librarian collector on the default registry.
func RegisterAll() {
	RegisterHTTPMetrics()
	RegisterEmbeddingMetrics()
	RegisterRetrievalMetrics()
	RegisterGenerationMetrics()
	RegisterIndexerMetrics()
}
