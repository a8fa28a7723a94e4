package pgbook

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"

	"github.com/kailas-cloud/librarian/internal/domain"
	"github.com/kailas-cloud/librarian/internal/domain/book"
	"github.com/kailas-cloud/librarian/internal/domain/search/result"
)

const backendName = "postgres-pgvector"

// pool is the consumer interface over *pgxpool.Pool (ISP).
type pool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
}

// Repo stores books in a PostgreSQL table with a pgvector column.
type Repo struct {
	db    pool
	table string
	cfg   Config
}

// New creates a book repository over an open pool.
func New(db pool, cfg Config) *Repo {
	if cfg.TableName == "" {
		cfg.TableName = "books"
	}
	return &Repo{db: db, table: pgx.Identifier{cfg.TableName}.Sanitize(), cfg: cfg}
}

// FetchAllWithField returns every book whose column is not null and not blank, ordered by id.
func (r *Repo) FetchAllWithField(ctx context.Context, field string) ([]book.Book, error) {
	col, ok := columns[field]
	if !ok {
		return nil, fmt.Errorf("unknown field %q: %w", field, domain.ErrInvalidRequest)
	}

	cond := col + " IS NOT NULL"
	if textColumns[field] {
		cond += " AND btrim(" + col + ") <> ''"
	}
	sql := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY id", selectList, r.table, cond)

	rows, err := r.db.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("select books: %w: %w", domain.ErrStore, err)
	}
	defer rows.Close()

	var books []book.Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("scan book: %w: %w", domain.ErrStore, err)
		}
		books = append(books, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate books: %w: %w", domain.ErrStore, err)
	}
	return books, nil
}

// UpsertField writes one column, inserting the row when the id is new.
func (r *Repo) UpsertField(ctx context.Context, id, field string, value any) error {
	col, ok := columns[field]
	if !ok {
		return fmt.Errorf("unknown field %q: %w", field, domain.ErrInvalidRequest)
	}
	if vec, isVec := value.([]float32); isVec {
		if field != book.FieldEmbedding {
			return fmt.Errorf("vector value for field %q: %w", field, domain.ErrInvalidRequest)
		}
		value = pgvector.NewVector(vec)
	}

	sql := fmt.Sprintf(
		"INSERT INTO %s (id, %s) VALUES ($1, $2) ON CONFLICT (id) DO UPDATE SET %s = EXCLUDED.%s",
		r.table, col, col, col)
	if _, err := r.db.Exec(ctx, sql, id, value); err != nil {
		if isDimensionError(err) {
			return fmt.Errorf("upsert %s.%s: %w: %w", id, col, domain.NewDimMismatch(r.cfg.Dimensions, len(asVector(value))), err)
		}
		return fmt.Errorf("upsert %s.%s: %w: %w", id, col, domain.ErrStore, err)
	}
	return nil
}

// VectorSearch orders by cosine distance inside a transaction that sets hnsw.ef_search to the candidate pool.
// Score is 1 - cosine distance.
func (r *Repo) VectorSearch(ctx context.Context, vector []float32, k, candidatePool int) (_ []result.Ranked, err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin vector search: %w: %w", domain.ErrStore, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL hnsw.ef_search = %d", max(candidatePool, k))); err != nil {
		return nil, r.searchError(err)
	}

	sql := fmt.Sprintf(
		"SELECT %s, 1 - (embedding <=> $1) AS score FROM %s WHERE embedding IS NOT NULL ORDER BY embedding <=> $1 LIMIT $2",
		displayList, r.table)
	rows, err := tx.Query(ctx, sql, pgvector.NewVector(vector), k)
	if err != nil {
		return nil, r.searchError(err)
	}

	var ranked []result.Ranked
	for rows.Next() {
		var score float64
		b, scanErr := scanDisplay(rows, &score)
		if scanErr != nil {
			rows.Close()
			return nil, fmt.Errorf("scan hit: %w: %w", domain.ErrStore, scanErr)
		}
		ranked = append(ranked, result.New(b, score))
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, r.searchError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit vector search: %w: %w", domain.ErrStore, err)
	}
	return ranked, nil
}

// Ping checks connectivity.
func (r *Repo) Ping(ctx context.Context) error {
	if err := r.db.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

func (r *Repo) searchError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "42P01", "42703", "42704", "42883": // undefined table, column, object, function
			return domain.NewVectorIndexError(backendName, r.cfg.TableName+".embedding", err)
		}
	}
	if isDimensionError(err) {
		return fmt.Errorf("vector search: %w: %w: %w", domain.ErrStore, domain.ErrVectorDimMismatch, err)
	}
	return fmt.Errorf("vector search: %w: %w", domain.ErrStore, err)
}

// isDimensionError matches pgvector's dimension data exceptions.
func isDimensionError(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "22000" && strings.Contains(pgErr.Message, "dimensions")
}

func asVector(v any) []float32 {
	if pv, ok := v.(pgvector.Vector); ok {
		return pv.Slice()
	}
	return nil
}
