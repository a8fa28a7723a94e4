// Package retrieval ranks documents for a query, either in process memory or through the store's vector index.
package retrieval

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kailas-cloud/librarian/internal/domain"
	"github.com/kailas-cloud/librarian/internal/domain/search/result"
	"github.com/kailas-cloud/librarian/internal/metrics"
)

// Strategy selects the ranking backend.
type Strategy string

const (
	// StrategyMemory ranks an in-memory snapshot by exact cosine similarity.
	StrategyMemory Strategy = "memory"
	// StrategyServer uses the store's approximate vector index.
	StrategyServer Strategy = "server"
)

// Defaults for RouterConfig.
const (
	DefaultTopK = 5
	DefaultMaxK = 50
)

// RouterConfig bounds result sizes.
type RouterConfig struct {
	TopK int
	MaxK int
}

// Router is the single retrieval entry point. Callers see only the Retriever contract.
type Router struct {
	strategy Strategy
	backend  Retriever
	topK     int
	maxK     int
}

// NewRouter wraps backend, labelled by strategy for metrics.
func NewRouter(strategy Strategy, backend Retriever, cfg RouterConfig) *Router {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.MaxK <= 0 {
		cfg.MaxK = DefaultMaxK
	}
	return &Router{strategy: strategy, backend: backend, topK: cfg.TopK, maxK: cfg.MaxK}
}

// Strategy reports the active backend.
func (r *Router) Strategy() Strategy { return r.strategy }

// Search validates k, applies defaults and delegates to the backend.
// k == 0 means the configured default.
func (r *Router) Search(ctx context.Context, query string, k int) ([]result.Ranked, error) {
	switch {
	case k < 0:
		return nil, fmt.Errorf("k must be positive, got %d: %w", k, domain.ErrInvalidRequest)
	case k == 0:
		k = r.topK
	case k > r.maxK:
		return nil, fmt.Errorf("k must be at most %d, got %d: %w", r.maxK, k, domain.ErrInvalidRequest)
	}
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}

	label := string(r.strategy)
	start := time.Now()
	hits, err := r.backend.Search(ctx, query, k)
	metrics.RetrievalDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RetrievalErrorsTotal.WithLabelValues(label).Inc()
		return nil, err //nolint:wrapcheck // backends already wrap with context
	}
	metrics.RetrievalResults.WithLabelValues(label).Observe(float64(len(hits)))
	return hits, nil
}

// ParseStrategy validates a configured strategy name.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case StrategyMemory, "":
		return StrategyMemory, nil
	case StrategyServer:
		return StrategyServer, nil
	default:
		return "", fmt.Errorf("unknown retrieval strategy %q (want memory or server): %w", s, domain.ErrInvalidRequest)
	}
}
