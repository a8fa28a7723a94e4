package chi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kailas-cloud/librarian/internal/domain/book"
	"github.com/kailas-cloud/librarian/internal/domain/search/result"
	healthuc "github.com/kailas-cloud/librarian/internal/usecase/health"
	"github.com/kailas-cloud/librarian/internal/usecase/indexer"
	"github.com/kailas-cloud/librarian/internal/usecase/rag"
	"github.com/kailas-cloud/librarian/internal/usecase/retrieval"
)

type fakeSearcher struct {
	searchFn func(ctx context.Context, query string, k int) ([]result.Ranked, error)
	gotQuery string
	gotK     int
}

func (f *fakeSearcher) Search(ctx context.Context, query string, k int) ([]result.Ranked, error) {
	f.gotQuery, f.gotK = query, k
	if f.searchFn != nil {
		return f.searchFn(ctx, query, k)
	}
	return nil, nil
}

func (f *fakeSearcher) Strategy() retrieval.Strategy { return retrieval.StrategyMemory }

type fakeAsker struct {
	askFn func(ctx context.Context, query string, k int) (rag.Answer, error)
	gotK  int
}

func (f *fakeAsker) Ask(ctx context.Context, query string, k int) (rag.Answer, error) {
	f.gotK = k
	if f.askFn != nil {
		return f.askFn(ctx, query, k)
	}
	return rag.Answer{}, nil
}

type fakeIndexer struct {
	runFn   func(ctx context.Context, opts indexer.Options) (indexer.Report, error)
	gotOpts indexer.Options
	calls   int
}

func (f *fakeIndexer) Run(ctx context.Context, opts indexer.Options) (indexer.Report, error) {
	f.calls++
	f.gotOpts = opts
	if f.runFn != nil {
		return f.runFn(ctx, opts)
	}
	return indexer.Report{}, nil
}

type fakeSnapshot struct {
	invalidated int
}

func (f *fakeSnapshot) Invalidate() { f.invalidated++ }

type fakeHealth struct {
	report healthuc.Report
}

func (f *fakeHealth) Check(context.Context) healthuc.Report { return f.report }

type testServer struct {
	search   *fakeSearcher
	ask      *fakeAsker
	index    *fakeIndexer
	snapshot *fakeSnapshot
	health   *fakeHealth
	router   chi.Router
}

func newTestServer(t *testing.T, withSnapshot bool) *testServer {
	t.Helper()
	ts := &testServer{
		search: &fakeSearcher{},
		ask:    &fakeAsker{},
		index:  &fakeIndexer{},
		health: &fakeHealth{report: healthuc.Report{
			Status: healthuc.Healthy,
			Checks: map[string]healthuc.CheckResult{"database": healthuc.CheckOK},
		}},
	}

	var snap SnapshotInvalidator
	if withSnapshot {
		ts.snapshot = &fakeSnapshot{}
		snap = ts.snapshot
	}

	srv := NewServer(ts.search, ts.ask, ts.index, snap, ts.health, zap.NewNop())
	ts.router = chi.NewRouter()
	srv.Register(ts.router)
	return ts
}

func (ts *testServer) do(method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, http.NoBody)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	ts.router.ServeHTTP(rr, req)
	return rr
}

func rankedBook(id, title string, score float64) result.Ranked {
	year := 1994
	return result.New(book.Reconstruct(id, book.Fields{
		Title:       title,
		Author:      "Naoki Urasawa",
		Description: "A surgeon hunts a killer.",
		Year:        &year,
	}), score)
}
