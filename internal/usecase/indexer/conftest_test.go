package indexer

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/librarian/internal/domain"
	"github.com/kailas-cloud/librarian/internal/domain/book"
	"github.com/kailas-cloud/librarian/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.RegisterIndexerMetrics()
	os.Exit(m.Run())
}

type upsert struct {
	id, field string
	value     any
}

// mockStore implements Store for tests.
type mockStore struct {
	mu       sync.Mutex
	docs     []book.Book
	fetchErr error
	upsertFn func(id, field string, value any) error
	upserts  []upsert
}

func (m *mockStore) FetchAllWithField(_ context.Context, _ string) ([]book.Book, error) {
	return m.docs, m.fetchErr
}

func (m *mockStore) UpsertField(_ context.Context, id, field string, value any) error {
	m.mu.Lock()
	m.upserts = append(m.upserts, upsert{id: id, field: field, value: value})
	m.mu.Unlock()
	if m.upsertFn != nil {
		return m.upsertFn(id, field, value)
	}
	return nil
}

func (m *mockStore) vectorsFor(id string) int {
	n := 0
	for _, u := range m.upserts {
		if u.id == id && u.field == book.FieldEmbedding {
			n++
		}
	}
	return n
}

// hashEmbedder returns a deterministic 3-dim vector per text; texts in bad fail.
type hashEmbedder struct {
	bad        map[string]bool
	batchCalls int
	embedCalls int
}

func (e *hashEmbedder) vector(text string) []float32 {
	var sum float32
	for _, r := range text {
		sum += float32(r)
	}
	return []float32{sum, float32(len(text)), 1}
}

func (e *hashEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	e.embedCalls++
	if e.bad[text] {
		return domain.EmbeddingResult{}, errors.New("cannot embed: " + text)
	}
	return domain.EmbeddingResult{Embedding: e.vector(text), TotalTokens: 1}, nil
}

func (e *hashEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	e.batchCalls++
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if e.bad[t] {
			return domain.BatchEmbeddingResult{}, errors.New("batch rejected")
		}
		out[i] = e.vector(t)
	}
	return domain.BatchEmbeddingResult{Embeddings: out, TotalTokens: len(texts)}, nil
}

func doc(id, description string, emb []float32, model string) book.Book {
	return book.Reconstruct(id, book.Fields{
		Title:          "T" + id,
		Description:    description,
		Embedding:      emb,
		EmbeddingModel: model,
	})
}

func newTestService(t *testing.T, store *mockStore, emb domain.Embedder) *Service {
	t.Helper()
	return New(store, emb, Config{
		Model:          "m1",
		Dimensions:     3,
		BatchSize:      2,
		PersistRetries: 1,
		RetryInterval:  time.Millisecond,
	}, zap.NewNop())
}
