package redis

import (
	"context"

	"github.com/kailas-cloud/librarian/internal/db"
)

const unknownIndex = "unknown index name"

// CreateIndex returns db.ErrIndexExists when the name is taken.
func (s *Store) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	args, err := def.CreateArgs()
	if err != nil {
		return &db.Error{Op: db.OpCreateIndex, Err: err}
	}
	err = s.exec(ctx, db.OpCreateIndex, s.b().Arbitrary("FT.CREATE").Args(args...).Build())
	if serverSaid(err, "index already exists") {
		return db.ErrIndexExists
	}
	return err
}

// DropIndex removes the index only; book hashes stay.
func (s *Store) DropIndex(ctx context.Context, name string) error {
	err := s.exec(ctx, db.OpDropIndex, s.b().Arbitrary("FT.DROPINDEX").Args(name).Build())
	if serverSaid(err, unknownIndex) {
		return db.ErrIndexNotFound
	}
	return err
}

func (s *Store) IndexExists(ctx context.Context, name string) (bool, error) {
	err := s.exec(ctx, db.OpIndexInfo, s.b().Arbitrary("FT.INFO").Args(name).Build())
	switch {
	case err == nil:
		return true, nil
	case serverSaid(err, unknownIndex):
		return false, nil
	default:
		return false, err
	}
}

// SupportsTextSearch is false on valkey-search, which only indexes TAG, NUMERIC and VECTOR.
func (s *Store) SupportsTextSearch(context.Context) bool {
	return s.flavor != FlavorValkey
}
