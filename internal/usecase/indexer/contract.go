package indexer

import (
	"context"

	"github.com/kailas-cloud/librarian/internal/domain/book"
)

// Store reads candidate documents and writes embeddings back.
type Store interface {
	FetchAllWithField(ctx context.Context, field string) ([]book.Book, error)
	UpsertField(ctx context.Context, id, field string, value any) error
}
