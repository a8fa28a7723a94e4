package pgbook

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"
)

// fakeRows serves canned rows; unimplemented pgx.Rows methods panic.
type fakeRows struct {
	pgx.Rows
	data   [][]any
	pos    int
	err    error
	closed bool
}

func rowsOf(data ...[]any) *fakeRows { return &fakeRows{data: data, pos: -1} }

func (r *fakeRows) Next() bool {
	if r.closed {
		return false
	}
	r.pos++
	return r.pos < len(r.data)
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.data[r.pos]
	if len(dest) != len(row) {
		return fmt.Errorf("scan: %d dest for %d columns", len(dest), len(row))
	}
	for i, v := range row {
		if err := assign(dest[i], v); err != nil {
			return fmt.Errorf("column %d: %w", i, err)
		}
	}
	return nil
}

func (r *fakeRows) Err() error { return r.err }
func (r *fakeRows) Close()     { r.closed = true }

// assign mimics pgx NULL handling: a nil value leaves pointer destinations nil.
func assign(dest, v any) error {
	switch d := dest.(type) {
	case *string:
		*d = v.(string)
	case **string:
		if v != nil {
			s := v.(string)
			*d = &s
		}
	case **int32:
		if v != nil {
			n := v.(int32)
			*d = &n
		}
	case **float64:
		if v != nil {
			f := v.(float64)
			*d = &f
		}
	case *float64:
		*d = v.(float64)
	case *bool:
		*d = v.(bool)
	case **pgvector.Vector:
		if v != nil {
			vec := pgvector.NewVector(v.([]float32))
			*d = &vec
		}
	default:
		return fmt.Errorf("unsupported dest %T", dest)
	}
	return nil
}

type execCall struct {
	sql  string
	args []any
}

// fakeTx records statements; unimplemented pgx.Tx methods panic.
type fakeTx struct {
	pgx.Tx
	execs      []execCall
	execErr    error
	queryFn    func(sql string, args ...any) (pgx.Rows, error)
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	t.execs = append(t.execs, execCall{sql: sql, args: args})
	return pgconn.CommandTag{}, t.execErr
}

func (t *fakeTx) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	return t.queryFn(sql, args...)
}

func (t *fakeTx) Commit(_ context.Context) error {
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(_ context.Context) error {
	t.rolledBack = true
	return nil
}

// fakePool implements the consumer interface for tests.
type fakePool struct {
	queryFn func(sql string, args ...any) (pgx.Rows, error)
	execFn  func(sql string, args ...any) error
	tx      *fakeTx
	pingErr error
	execs   []execCall
}

func (p *fakePool) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	return p.queryFn(sql, args...)
}

func (p *fakePool) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	p.execs = append(p.execs, execCall{sql: sql, args: args})
	if p.execFn != nil {
		return pgconn.CommandTag{}, p.execFn(sql, args...)
	}
	return pgconn.CommandTag{}, nil
}

func (p *fakePool) Begin(_ context.Context) (pgx.Tx, error) {
	if p.tx == nil {
		return nil, fmt.Errorf("no tx configured")
	}
	return p.tx, nil
}

func (p *fakePool) Ping(_ context.Context) error { return p.pingErr }

func newTestRepo(t *testing.T) (*Repo, *fakePool) {
	t.Helper()
	p := &fakePool{}
	return New(p, Config{Dimensions: 3, HNSWM: 16, EFConstruction: 64}), p
}
