// Package embcache memoises embeddings in the redis key-value store, so re-indexing an unchanged
// catalogue or reloading the in-memory snapshot does not pay the provider again.
package embcache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/librarian/internal/db"
	"github.com/kailas-cloud/librarian/internal/domain"
)

const cacheKeyPrefix = "librarian:emb_cache:"

type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// CachedEmbedder wraps a provider embedder. Keys hash the model name with the text, so
// changing embedding.model never serves vectors from the previous model.
// Store failures are logged and treated as misses.
type CachedEmbedder struct {
	inner   domain.Embedder
	store   store
	model   string
	ttl     time.Duration
	lookups *prometheus.CounterVec // label "result": hit or miss; may be nil
	logger  *zap.Logger
}

// New returns a CachedEmbedder. ttl 0 keeps entries until evicted by the server.
func New(
	inner domain.Embedder,
	s store,
	model string,
	ttl time.Duration,
	lookups *prometheus.CounterVec,
	logger *zap.Logger,
) *CachedEmbedder {
	return &CachedEmbedder{inner: inner, store: s, model: model, ttl: ttl, lookups: lookups, logger: logger}
}

// Embed serves a hit with zero tokens, otherwise embeds and stores the vector.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	key := c.cacheKey(text)
	if vec := c.lookup(ctx, key); vec != nil {
		return domain.EmbeddingResult{Embedding: vec}, nil
	}

	res, err := c.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed text: %w", err)
	}
	c.remember(ctx, key, res.Embedding)
	return res, nil
}

// BatchEmbed resolves hits from the store and embeds all misses in a single inner call.
// Token counts cover the misses only.
func (c *CachedEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}

	out := domain.BatchEmbeddingResult{Embeddings: make([][]float32, len(texts))}
	keys := make([]string, len(texts))
	var misses []int
	for i, text := range texts {
		keys[i] = c.cacheKey(text)
		if out.Embeddings[i] = c.lookup(ctx, keys[i]); out.Embeddings[i] == nil {
			misses = append(misses, i)
		}
	}
	if len(misses) == 0 {
		return out, nil
	}

	missTexts := make([]string, len(misses))
	for j, i := range misses {
		missTexts[j] = texts[i]
	}
	fresh, err := domain.EmbedAll(ctx, c.inner, missTexts)
	if err != nil {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("embed %d cache misses: %w", len(misses), err)
	}
	for j, i := range misses {
		out.Embeddings[i] = fresh.Embeddings[j]
		c.remember(ctx, keys[i], fresh.Embeddings[j])
	}
	out.PromptTokens, out.TotalTokens = fresh.PromptTokens, fresh.TotalTokens
	return out, nil
}

func (c *CachedEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := c.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx) //nolint:wrapcheck // transparent decorator
	}
	return nil
}

func (c *CachedEmbedder) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(c.model + "\x00" + text))
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}

// lookup returns the cached vector or nil, counting the outcome.
func (c *CachedEmbedder) lookup(ctx context.Context, key string) []float32 {
	vec, err := c.read(ctx, key)
	if err != nil && !errors.Is(err, db.ErrKeyNotFound) {
		c.logger.Warn("Embedding cache read failed", zap.String("key", key), zap.Error(err))
	}
	result := "hit"
	if vec == nil {
		result = "miss"
	}
	if c.lookups != nil {
		c.lookups.WithLabelValues(result).Inc()
	}
	return vec
}

func (c *CachedEmbedder) read(ctx context.Context, key string) ([]float32, error) {
	raw, err := c.store.Get(ctx, key)
	if err != nil {
		return nil, err //nolint:wrapcheck // classified by lookup
	}
	if len(raw) == 0 {
		return nil, nil
	}
	return decodeVector(raw)
}

func (c *CachedEmbedder) remember(ctx context.Context, key string, vec []float32) {
	if len(vec) == 0 {
		return
	}
	raw := encodeVector(vec)
	var err error
	if c.ttl > 0 {
		err = c.store.SetWithTTL(ctx, key, raw, c.ttl)
	} else {
		err = c.store.Set(ctx, key, raw)
	}
	if err != nil {
		c.logger.Warn("Embedding cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// encodeVector packs v as little-endian float32, the same layout the redis book hashes use.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(raw []byte) ([]float32, error) {
	if len(raw)%4 != 0 {
		return nil, fmt.Errorf("cached embedding has %d bytes, not a multiple of 4", len(raw))
	}
	v := make([]float32, len(raw)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[4*i:]))
	}
	return v, nil
}
