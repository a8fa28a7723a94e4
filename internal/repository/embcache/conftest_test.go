package embcache

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/librarian/internal/db"
	"github.com/kailas-cloud/librarian/internal/domain"
)

const testModel = "bge-m3"

// fakeProvider returns the same vector for every text and records what it was asked.
type fakeProvider struct {
	vec        []float32
	tokens     int
	err        error
	batchErr   error
	embedded   []string
	batchCalls int
}

func (f *fakeProvider) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	if f.err != nil {
		return domain.EmbeddingResult{}, f.err
	}
	f.embedded = append(f.embedded, text)
	return domain.EmbeddingResult{Embedding: f.vec, PromptTokens: f.tokens, TotalTokens: f.tokens}, nil
}

func (f *fakeProvider) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	f.batchCalls++
	if f.batchErr != nil {
		return domain.BatchEmbeddingResult{}, f.batchErr
	}
	f.embedded = append(f.embedded, texts...)
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vec
	}
	n := f.tokens * len(texts)
	return domain.BatchEmbeddingResult{Embeddings: out, PromptTokens: n, TotalTokens: n}, nil
}

// memKV is an in-memory stand-in for the redis KV store.
type memKV struct {
	data   map[string][]byte
	getErr error
	setErr error
	ttls   []time.Duration
}

func newMemKV() *memKV { return &memKV{data: map[string][]byte{}} }

func (m *memKV) Get(_ context.Context, key string) ([]byte, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (m *memKV) Set(_ context.Context, key string, value []byte) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = value
	return nil
}

func (m *memKV) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.ttls = append(m.ttls, ttl)
	return m.Set(ctx, key, value)
}

func newCache(t *testing.T, p *fakeProvider) (*CachedEmbedder, *memKV) {
	t.Helper()
	kv := newMemKV()
	return New(p, kv, testModel, 0, nil, zap.NewNop()), kv
}

// seed stores vec under the key the cache would use for text.
func seed(c *CachedEmbedder, kv *memKV, text string, vec []float32) {
	kv.data[c.cacheKey(text)] = encodeVector(vec)
}
