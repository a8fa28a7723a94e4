package pgbook

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/kailas-cloud/librarian/internal/domain"
)

// EnsureSchema creates the books table and its HNSW cosine index when absent.
// With rebuild set the vector index is dropped and recreated.
func (r *Repo) EnsureSchema(ctx context.Context, rebuild bool) error {
	if r.cfg.Dimensions <= 0 {
		return fmt.Errorf("vector dimensions must be positive: %w", domain.ErrInvalidRequest)
	}

	rows, err := r.db.Query(ctx, "SELECT EXISTS(SELECT 1 FROM pg_extension WHERE extname = 'vector')")
	if err != nil {
		return fmt.Errorf("check pgvector extension: %w: %w", domain.ErrStore, err)
	}
	extExists, err := pgx.CollectExactlyOneRow(rows, pgx.RowTo[bool])
	if err != nil {
		return fmt.Errorf("check pgvector extension: %w: %w", domain.ErrStore, err)
	}
	if !extExists {
		return domain.NewVectorIndexError(backendName, "vector extension", fmt.Errorf("run: CREATE EXTENSION vector"))
	}

	index := pgx.Identifier{r.cfg.TableName + "_embedding_idx"}.Sanitize()
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			title TEXT,
			author TEXT,
			category TEXT,
			description TEXT,
			year INTEGER,
			rating DOUBLE PRECISION,
			embedding vector(%d),
			embedding_model TEXT
		)`, r.table, r.cfg.Dimensions),
	}
	if rebuild {
		stmts = append(stmts, "DROP INDEX IF EXISTS "+index)
	}
	stmts = append(stmts, fmt.Sprintf(
		"CREATE INDEX IF NOT EXISTS %s ON %s USING hnsw (embedding vector_cosine_ops)%s",
		index, r.table, r.hnswOptions()))

	for _, stmt := range stmts {
		if _, err := r.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w: %w", domain.ErrStore, err)
		}
	}
	return nil
}

func (r *Repo) hnswOptions() string {
	if r.cfg.HNSWM <= 0 || r.cfg.EFConstruction <= 0 {
		return ""
	}
	return fmt.Sprintf(" WITH (m = %d, ef_construction = %d)", r.cfg.HNSWM, r.cfg.EFConstruction)
}
