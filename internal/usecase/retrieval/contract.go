package retrieval

import (
	"context"

	"github.com/kailas-cloud/librarian/internal/domain/book"
	"github.com/kailas-cloud/librarian/internal/domain/search/result"
)

// Retriever returns up to k documents ranked by descending relevance to query.
type Retriever interface {
	Search(ctx context.Context, query string, k int) ([]result.Ranked, error)
}

// DocumentSource lists documents for the in-memory engine.
type DocumentSource interface {
	FetchAllWithField(ctx context.Context, field string) ([]book.Book, error)
}

// VectorSearcher runs store-native approximate nearest-neighbour search.
type VectorSearcher interface {
	VectorSearch(ctx context.Context, vector []float32, k, candidatePool int) ([]result.Ranked, error)
}
