package rag

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/librarian/internal/domain"
	"github.com/kailas-cloud/librarian/internal/domain/book"
	"github.com/kailas-cloud/librarian/internal/domain/search/result"
)

// mockChat records the last request.
type mockChat struct {
	result  domain.ChatResult
	err     error
	calls   int
	lastReq domain.ChatRequest
}

func (m *mockChat) Complete(_ context.Context, req domain.ChatRequest) (domain.ChatResult, error) {
	m.calls++
	m.lastReq = req
	return m.result, m.err
}

// mockRetriever returns canned hits.
type mockRetriever struct {
	hits  []result.Ranked
	err   error
	lastK int
}

func (m *mockRetriever) Search(_ context.Context, _ string, k int) ([]result.Ranked, error) {
	m.lastK = k
	return m.hits, m.err
}

func manga(id, title, author, category, description string) book.Book {
	return book.Reconstruct(id, book.Fields{
		Title: title, Author: author, Category: category, Description: description,
	})
}

func newTestGenerator(t *testing.T, chat *mockChat, cfg GeneratorConfig) *Generator {
	t.Helper()
	return NewGenerator(chat, cfg, zap.NewNop())
}
