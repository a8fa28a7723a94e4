package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/kailas-cloud/librarian/internal/domain"
	"github.com/kailas-cloud/librarian/internal/domain/search/result"
)

// DefaultCandidatePool is the ANN candidate list size when none is configured.
const DefaultCandidatePool = 200

// ServerRetriever delegates ranking to the store's vector index.
type ServerRetriever struct {
	store VectorSearcher
	query domain.Embedder
	pool  int
}

// NewServerRetriever creates a store-native retriever. pool <= 0 uses DefaultCandidatePool.
func NewServerRetriever(store VectorSearcher, queryEmbed domain.Embedder, pool int) *ServerRetriever {
	if pool <= 0 {
		pool = DefaultCandidatePool
	}
	return &ServerRetriever{store: store, query: queryEmbed, pool: pool}
}

// Search embeds query and runs KNN on the store with a candidate pool of at least k.
func (r *ServerRetriever) Search(ctx context.Context, query string, k int) ([]result.Ranked, error) {
	if strings.TrimSpace(query) == "" || k <= 0 {
		return nil, nil
	}

	q, err := r.query.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	hits, err := r.store.VectorSearch(ctx, q.Embedding, k, max(r.pool, k))
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}
