package librarian

import (
	"context"

	"github.com/kailas-cloud/librarian/internal/domain/book"
	"github.com/kailas-cloud/librarian/internal/domain/search/result"
	healthuc "github.com/kailas-cloud/librarian/internal/usecase/health"
	"github.com/kailas-cloud/librarian/internal/usecase/indexer"
	"github.com/kailas-cloud/librarian/internal/usecase/rag"
	"github.com/kailas-cloud/librarian/internal/usecase/retrieval"
)

// --- searchUseCase mock ---

type mockSearchUC struct {
	searchFn func(ctx context.Context, query string, k int) ([]result.Ranked, error)
	strategy retrieval.Strategy
}

func (m *mockSearchUC) Search(ctx context.Context, query string, k int) ([]result.Ranked, error) {
	return m.searchFn(ctx, query, k)
}

func (m *mockSearchUC) Strategy() retrieval.Strategy { return m.strategy }

// --- askUseCase mock ---

type mockAskUC struct {
	askFn func(ctx context.Context, query string, k int) (rag.Answer, error)
}

func (m *mockAskUC) Ask(ctx context.Context, query string, k int) (rag.Answer, error) {
	return m.askFn(ctx, query, k)
}

// --- indexUseCase mock ---

type mockIndexUC struct {
	runFn func(ctx context.Context, opts indexer.Options) (indexer.Report, error)
}

func (m *mockIndexUC) Run(ctx context.Context, opts indexer.Options) (indexer.Report, error) {
	return m.runFn(ctx, opts)
}

// --- healthUseCase mock ---

type mockHealthUC struct {
	report healthuc.Report
}

func (m *mockHealthUC) Check(context.Context) healthuc.Report { return m.report }

// --- snapshot mock ---

type mockSnapshot struct {
	invalidated int
}

func (m *mockSnapshot) Invalidate() { m.invalidated++ }

// --- pinger mock ---

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(context.Context) error { return m.err }

// --- provider mocks ---

type mockEmbedder struct {
	fn func(ctx context.Context, text string) (EmbeddingResult, error)
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	return m.fn(ctx, text)
}

type mockBatchEmbedder struct {
	mockEmbedder
	batchFn func(ctx context.Context, texts []string) (BatchEmbeddingResult, error)
}

func (m *mockBatchEmbedder) BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error) {
	return m.batchFn(ctx, texts)
}

type mockChat struct {
	fn func(ctx context.Context, req ChatRequest) (ChatResult, error)
}

func (m *mockChat) Complete(ctx context.Context, req ChatRequest) (ChatResult, error) {
	return m.fn(ctx, req)
}

type healthyChat struct {
	mockChat
	err error
}

func (h *healthyChat) HealthCheck(context.Context) error { return h.err }

// --- helpers ---

func rankedBook(id, title string, score float64) result.Ranked {
	year := 1994
	return result.New(book.Reconstruct(id, book.Fields{Title: title, Year: &year}), score)
}
