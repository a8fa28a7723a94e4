package redisbook

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/librarian/internal/db"
	"github.com/kailas-cloud/librarian/internal/domain"
	"github.com/kailas-cloud/librarian/internal/domain/book"
)

// EnsureIndex creates the HNSW COSINE index over book hashes when it does not exist.
// With rebuild set the index is dropped first, which is needed after a model change alters the dimension.
// Dropping an FT index keeps the hashes.
func (r *Repo) EnsureIndex(ctx context.Context, rebuild bool) error {
	if rebuild {
		if err := r.store.DropIndex(ctx, r.cfg.IndexName); err != nil && !errors.Is(err, db.ErrIndexNotFound) {
			return fmt.Errorf("drop index %s: %w: %w", r.cfg.IndexName, domain.ErrStore, err)
		}
	} else {
		exists, err := r.store.IndexExists(ctx, r.cfg.IndexName)
		if err != nil {
			return fmt.Errorf("check index %s: %w: %w", r.cfg.IndexName, domain.ErrStore, err)
		}
		if exists {
			return nil
		}
	}

	def, err := r.indexDefinition(ctx)
	if err != nil {
		return err
	}
	if err := r.store.CreateIndex(ctx, def); err != nil {
		if errors.Is(err, db.ErrIndexExists) {
			return nil
		}
		return fmt.Errorf("create index %s: %w: %w", r.cfg.IndexName, domain.ErrStore, err)
	}
	return nil
}

func (r *Repo) indexDefinition(ctx context.Context) (*db.IndexDefinition, error) {
	if r.cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("vector dimensions must be positive: %w", domain.ErrInvalidRequest)
	}

	b := db.NewIndex(r.cfg.IndexName).Prefix(r.cfg.KeyPrefix)
	if r.store.SupportsTextSearch(ctx) {
		b = b.Text(book.FieldTitle).Text(book.FieldAuthor)
	} else {
		b = b.Tag(book.FieldTitle, "").Tag(book.FieldAuthor, "")
	}
	b = b.Tag(book.FieldCategory, ",").
		Numeric(book.FieldYear).
		Numeric(book.FieldRating).
		Vector(book.FieldEmbedding, r.cfg.Dimensions, r.cfg.HNSWM, r.cfg.EFConstruction)

	def, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("build index definition: %w", err)
	}
	return def, nil
}
