// Package bookstore opens the configured document store behind one contract.
package bookstore

import (
	"context"
	"fmt"
	"time"

	"github.com/kailas-cloud/librarian/internal/db"
	dbRedis "github.com/kailas-cloud/librarian/internal/db/redis"
	"github.com/kailas-cloud/librarian/internal/domain"
	"github.com/kailas-cloud/librarian/internal/domain/book"
	"github.com/kailas-cloud/librarian/internal/domain/search/result"
	"github.com/kailas-cloud/librarian/internal/repository/mongobook"
	"github.com/kailas-cloud/librarian/internal/repository/pgbook"
	"github.com/kailas-cloud/librarian/internal/repository/redisbook"
)

// Supported drivers.
const (
	DriverRedis    = "redis"
	DriverValkey   = "valkey"
	DriverMongoDB  = "mongodb"
	DriverPostgres = "postgres"
)

const defaultReadinessTimeout = 10 * time.Second

// Books is the document store contract shared by every driver.
type Books interface {
	FetchAllWithField(ctx context.Context, field string) ([]book.Book, error)
	UpsertField(ctx context.Context, id, field string, value any) error
	VectorSearch(ctx context.Context, vector []float32, k, candidatePool int) ([]result.Ranked, error)
}

// Config selects the driver and its connection parameters.
// Addrs/Password apply to redis and valkey, URI to mongodb and postgres.
type Config struct {
	Driver           string
	Addrs            []string
	Password         string
	URI              string
	Database         string
	Collection       string
	Table            string
	KeyPrefix        string
	IndexName        string
	Dimensions       int
	HNSWM            int
	EFConstruction   int
	ReadinessTimeout time.Duration
	// CheckIndex verifies the server-side vector index at open time.
	CheckIndex bool
}

// Handle is an open document store.
type Handle struct {
	Books  Books
	Pinger db.Pinger
	// KV is the underlying key-value store for redis and valkey, nil otherwise.
	KV      db.KVStore
	closeFn func(ctx context.Context) error
}

// Close releases the store connection.
func (h *Handle) Close(ctx context.Context) error {
	if h.closeFn == nil {
		return nil
	}
	return h.closeFn(ctx)
}

// Open connects to the configured store and prepares its vector index where the store allows it.
func Open(ctx context.Context, cfg Config) (*Handle, error) {
	if cfg.ReadinessTimeout <= 0 {
		cfg.ReadinessTimeout = defaultReadinessTimeout
	}
	hnsw := domain.HNSWParams{M: cfg.HNSWM, EFConstruction: cfg.EFConstruction}.WithDefaults()
	cfg.HNSWM, cfg.EFConstruction = hnsw.M, hnsw.EFConstruction

	switch cfg.Driver {
	case DriverRedis, DriverValkey:
		return openRedis(ctx, cfg)
	case DriverMongoDB:
		return openMongo(ctx, cfg)
	case DriverPostgres:
		return openPostgres(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

// OpenKV connects to a standalone redis/valkey key-value store.
func OpenKV(ctx context.Context, addrs []string, password string, readiness time.Duration) (*dbRedis.Store, error) {
	if readiness <= 0 {
		readiness = defaultReadinessTimeout
	}
	s, err := dbRedis.NewStore(dbRedis.Config{Addrs: addrs, Password: password})
	if err != nil {
		return nil, fmt.Errorf("create kv store: %w", err)
	}
	if err := s.WaitForReady(ctx, readiness); err != nil {
		s.Close()
		return nil, fmt.Errorf("kv store not ready: %w", err)
	}
	return s, nil
}

func openRedis(ctx context.Context, cfg Config) (*Handle, error) {
	flavor := dbRedis.FlavorRedis
	if cfg.Driver == DriverValkey {
		flavor = dbRedis.FlavorValkey
	}
	s, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Addrs,
		Password: cfg.Password,
		Flavor:   flavor,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s store: %w: %w", cfg.Driver, domain.ErrStore, err)
	}
	if err := s.WaitForReady(ctx, cfg.ReadinessTimeout); err != nil {
		s.Close()
		return nil, fmt.Errorf("%s not ready: %w: %w", cfg.Driver, domain.ErrStore, err)
	}

	repo := redisbook.New(s, redisbook.Config{
		KeyPrefix:      cfg.KeyPrefix,
		IndexName:      cfg.IndexName,
		Dimensions:     cfg.Dimensions,
		HNSWM:          cfg.HNSWM,
		EFConstruction: cfg.EFConstruction,
	})
	if cfg.Dimensions > 0 {
		if err := repo.EnsureIndex(ctx, false); err != nil {
			s.Close()
			return nil, err
		}
	}

	return &Handle{
		Books:  repo,
		Pinger: s,
		KV:     s,
		closeFn: func(context.Context) error {
			s.Close()
			return nil
		},
	}, nil
}

func openMongo(ctx context.Context, cfg Config) (*Handle, error) {
	repo, err := mongobook.Open(ctx, mongobook.Config{
		URI:        cfg.URI,
		Database:   cfg.Database,
		Collection: cfg.Collection,
		IndexName:  cfg.IndexName,
	})
	if err != nil {
		return nil, fmt.Errorf("open mongodb: %w: %w", domain.ErrStore, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ReadinessTimeout)
	defer cancel()
	if err := repo.Ping(pingCtx); err != nil {
		_ = repo.Close(ctx)
		return nil, fmt.Errorf("mongodb not ready: %w: %w", domain.ErrStore, err)
	}
	if cfg.CheckIndex {
		if err := repo.CheckIndex(ctx); err != nil {
			_ = repo.Close(ctx)
			return nil, err
		}
	}

	return &Handle{Books: repo, Pinger: repo, closeFn: repo.Close}, nil
}

func openPostgres(ctx context.Context, cfg Config) (*Handle, error) {
	repo, pool, err := pgbook.Open(ctx, pgbook.Config{
		ConnectionString: cfg.URI,
		TableName:        cfg.Table,
		Dimensions:       cfg.Dimensions,
		HNSWM:            cfg.HNSWM,
		EFConstruction:   cfg.EFConstruction,
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w: %w", domain.ErrStore, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ReadinessTimeout)
	defer cancel()
	if err := repo.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres not ready: %w: %w", domain.ErrStore, err)
	}
	if err := repo.EnsureSchema(ctx, false); err != nil {
		pool.Close()
		return nil, err
	}

	return &Handle{
		Books:  repo,
		Pinger: repo,
		closeFn: func(context.Context) error {
			pool.Close()
			return nil
		},
	}, nil
}
