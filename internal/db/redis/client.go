// Package redis implements db.Store on rueidis for Redis Stack and Valkey with valkey-search.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/rueidis"

	"github.com/kailas-cloud/librarian/internal/db"
)

var _ db.Store = (*Store)(nil)

// Flavor picks the server dialect; both speak RESP and FT.*.
type Flavor string

const (
	FlavorRedis  Flavor = "redis"  // Redis 8 or Redis Stack with RediSearch
	FlavorValkey Flavor = "valkey" // Valkey with valkey-search, which rejects TEXT fields
)

type Config struct {
	Addrs    []string
	Username string
	Password string
	DB       int
	Flavor   Flavor
}

type Store struct {
	client rueidis.Client
	flavor Flavor
}

// NewStore connects lazily; call WaitForReady before serving.
func NewStore(cfg Config) (*Store, error) {
	if len(cfg.Addrs) == 0 {
		return nil, errors.New("redis: at least one address is required")
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		DisableCache: true,
		AlwaysRESP2:  true, // FT.SEARCH replies are parsed as flat RESP2 arrays
	})
	if err != nil {
		return nil, fmt.Errorf("redis: connect %v: %w", cfg.Addrs, err)
	}
	return newStore(client, cfg.Flavor), nil
}

func newStore(c rueidis.Client, flavor Flavor) *Store {
	if flavor == "" {
		flavor = FlavorRedis
	}
	return &Store{client: c, flavor: flavor}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.exec(ctx, db.OpPing, s.b().Ping().Build())
}

func (s *Store) Close() {
	s.client.Close()
}

// WaitForReady retries Ping with exponential backoff until it succeeds or timeout elapses.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 50 * time.Millisecond
	policy.MaxInterval = time.Second
	policy.MaxElapsedTime = 0 // bounded by ctx

	err := backoff.Retry(func() error { return s.Ping(ctx) }, backoff.WithContext(policy, ctx))
	if err != nil {
		return fmt.Errorf("redis not ready after %s: %w", timeout, err)
	}
	return nil
}

// exec runs a command whose reply only matters for its error.
func (s *Store) exec(ctx context.Context, op string, cmd rueidis.Completed) error {
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: op, Err: err}
	}
	return nil
}

func (s *Store) do(ctx context.Context, cmd rueidis.Completed) rueidis.RedisResult {
	return s.client.Do(ctx, cmd)
}

func (s *Store) b() rueidis.Builder {
	return s.client.B()
}

// serverSaid reports whether err is a server-side error whose text contains any of msgs.
func serverSaid(err error, msgs ...string) bool {
	var re *rueidis.RedisError
	if !errors.As(err, &re) {
		return false
	}
	text := strings.ToLower(re.Error())
	for _, m := range msgs {
		if strings.Contains(text, m) {
			return true
		}
	}
	return false
}
