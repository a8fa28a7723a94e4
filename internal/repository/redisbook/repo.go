package redisbook

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/kailas-cloud/librarian/internal/db"
	"github.com/kailas-cloud/librarian/internal/domain"
	"github.com/kailas-cloud/librarian/internal/domain/book"
	"github.com/kailas-cloud/librarian/internal/domain/search/result"
)

const (
	backendName   = "redis"
	fetchPageSize = 500
)

// store is the consumer interface for book hashes and their vector index (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SupportsTextSearch(ctx context.Context) bool
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchCount(ctx context.Context, index, query string) (int, error)
}

// Config holds key layout and vector index parameters.
type Config struct {
	KeyPrefix      string // default "book:"
	IndexName      string // default "idx:books"
	Dimensions     int
	HNSWM          int
	EFConstruction int
}

// Repo stores books as Redis/Valkey hashes, one key per book.
type Repo struct {
	store store
	cfg   Config
}

// New creates a book repository.
func New(s store, cfg Config) *Repo {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "book:"
	}
	if cfg.IndexName == "" {
		cfg.IndexName = "idx:books"
	}
	return &Repo{store: s, cfg: cfg}
}

// FetchAllWithField returns every book whose field is present and non-empty, in key order.
func (r *Repo) FetchAllWithField(ctx context.Context, field string) ([]book.Book, error) {
	keys, err := r.store.Scan(ctx, r.cfg.KeyPrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("scan books: %w: %w", domain.ErrStore, err)
	}
	slices.Sort(keys)

	books := make([]book.Book, 0, len(keys))
	for start := 0; start < len(keys); start += fetchPageSize {
		page := keys[start:min(start+fetchPageSize, len(keys))]

		hashes, err := r.store.HGetAllMulti(ctx, page)
		if err != nil {
			return nil, fmt.Errorf("fetch books: %w: %w", domain.ErrStore, err)
		}
		for i, m := range hashes {
			if !hasValue(m, field) {
				continue
			}
			books = append(books, parseHashFields(r.bookID(page[i]), m))
		}
	}
	return books, nil
}

// UpsertField sets a single field on a book hash, creating the hash if absent.
func (r *Repo) UpsertField(ctx context.Context, id, field string, value any) error {
	encoded, err := encodeValue(field, value)
	if err != nil {
		return err
	}
	key := r.bookKey(id)
	if err := r.store.HSet(ctx, key, map[string]string{field: encoded}); err != nil {
		return fmt.Errorf("hset %s.%s: %w: %w", key, field, domain.ErrStore, err)
	}
	return nil
}

// VectorSearch runs FT.SEARCH KNN over the HNSW index; candidatePool maps to EF_RUNTIME.
func (r *Repo) VectorSearch(ctx context.Context, vector []float32, k, candidatePool int) ([]result.Ranked, error) {
	res, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    r.cfg.IndexName,
		VectorField:  book.FieldEmbedding,
		Vector:       vector,
		K:            k,
		EFRuntime:    max(candidatePool, k),
		ReturnFields: displayFields,
	})
	if err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return nil, domain.NewVectorIndexError(backendName, r.cfg.IndexName, err)
		}
		return nil, fmt.Errorf("knn search %s: %w: %w", r.cfg.IndexName, domain.ErrStore, err)
	}

	ranked := make([]result.Ranked, 0, len(res.Entries))
	for _, e := range res.Entries {
		ranked = append(ranked, result.New(parseHashFields(r.bookID(e.Key), e.Fields), e.Score))
	}
	return ranked, nil
}

// Count returns the number of books covered by the vector index.
func (r *Repo) Count(ctx context.Context) (int, error) {
	n, err := r.store.SearchCount(ctx, r.cfg.IndexName, "*")
	if err != nil {
		return 0, fmt.Errorf("search count %s: %w: %w", r.cfg.IndexName, domain.ErrStore, err)
	}
	return n, nil
}

func (r *Repo) bookKey(id string) string {
	return r.cfg.KeyPrefix + id
}

func (r *Repo) bookID(key string) string {
	return strings.TrimPrefix(key, r.cfg.KeyPrefix)
}

// hasValue reports a present, non-blank field. Vector blobs are binary and only need to be non-empty.
func hasValue(m map[string]string, field string) bool {
	if field == book.FieldEmbedding {
		return m[field] != ""
	}
	return strings.TrimSpace(m[field]) != ""
}
