package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/kailas-cloud/librarian/internal/domain"
	"github.com/kailas-cloud/librarian/internal/domain/search/result"
	healthuc "github.com/kailas-cloud/librarian/internal/usecase/health"
	"github.com/kailas-cloud/librarian/internal/usecase/indexer"
	"github.com/kailas-cloud/librarian/internal/usecase/rag"
)

func decodeError(t *testing.T, body []byte) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("decode error response: %v (%s)", err, body)
	}
	return resp
}

func TestSearch_OK(t *testing.T) {
	ts := newTestServer(t, true)
	ts.search.searchFn = func(ctx context.Context, _ string, _ int) ([]result.Ranked, error) {
		domain.UsageFromContext(ctx).AddEmbeddingTokens(7)
		return []result.Ranked{rankedBook("m1", "Monster", 0.91), rankedBook("m2", "", 0.42)}, nil
	}

	rr := ts.do("GET", "/v1/search?q=psychological+thriller&k=2", "")

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if ts.search.gotQuery != "psychological thriller" || ts.search.gotK != 2 {
		t.Errorf("searcher got (%q, %d)", ts.search.gotQuery, ts.search.gotK)
	}
	if got := rr.Header().Get("X-Embedding-Tokens"); got != "7" {
		t.Errorf("X-Embedding-Tokens = %q, want 7", got)
	}

	var resp SearchResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Strategy != "memory" {
		t.Errorf("strategy = %q", resp.Strategy)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(resp.Results))
	}
	first := resp.Results[0]
	if first.ID != "m1" || first.Title != "Monster" || first.Score != 0.91 {
		t.Errorf("unexpected first result: %+v", first)
	}
	if first.Year == nil || *first.Year != 1994 {
		t.Errorf("expected year 1994, got %v", first.Year)
	}
	if first.Rating != nil {
		t.Errorf("expected missing rating, got %v", *first.Rating)
	}
	if resp.Results[1].Title != "Unknown title" {
		t.Errorf("expected display default for missing title, got %q", resp.Results[1].Title)
	}
}

func TestSearch_DefaultK(t *testing.T) {
	ts := newTestServer(t, true)

	rr := ts.do("GET", "/v1/search?q=manga", "")

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if ts.search.gotK != 0 {
		t.Errorf("expected k=0 (router default), got %d", ts.search.gotK)
	}
	var resp SearchResponse
	_ = json.NewDecoder(rr.Body).Decode(&resp)
	if resp.Results == nil || len(resp.Results) != 0 {
		t.Errorf("expected empty results array, got %v", resp.Results)
	}
}

func TestSearch_NonIntegerK(t *testing.T) {
	ts := newTestServer(t, true)

	rr := ts.do("GET", "/v1/search?q=manga&k=ten", "")

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	if resp := decodeError(t, rr.Body.Bytes()); resp.Code != ErrorCodeBadRequest {
		t.Errorf("code = %q", resp.Code)
	}
}

func TestSearch_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   ErrorCode
		wantMsg    string
	}{
		{
			name:       "invalid k",
			err:        fmt.Errorf("k must be at most 50, got 99: %w", domain.ErrInvalidRequest),
			wantStatus: http.StatusBadRequest,
			wantCode:   ErrorCodeInvalidRequest,
			wantMsg:    "k must be at most 50",
		},
		{
			name:       "dimension mismatch",
			err:        fmt.Errorf("memory search: %w", domain.NewDimMismatch(384, 1536)),
			wantStatus: http.StatusConflict,
			wantCode:   ErrorCodeReindexRequired,
			wantMsg:    "re-index",
		},
		{
			name:       "vector index missing",
			err:        domain.NewVectorIndexError("mongodb", "vector_index", errors.New("$vectorSearch: index not found")),
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   ErrorCodeVectorIndexMissing,
			wantMsg:    `"vector_index"`,
		},
		{
			name:       "store unreachable",
			err:        fmt.Errorf("fetch: %w: %w", domain.ErrStore, errors.New("dial tcp 10.0.0.1:27017")),
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   ErrorCodeStoreError,
			wantMsg:    "document store error",
		},
		{
			name:       "embedding provider",
			err:        fmt.Errorf("embed query: %w", domain.ErrEmbeddingProviderError),
			wantStatus: http.StatusBadGateway,
			wantCode:   ErrorCodeProviderError,
		},
		{
			name:       "empty corpus",
			err:        domain.ErrEmptyCorpus,
			wantStatus: http.StatusNotFound,
			wantCode:   ErrorCodeEmptyCorpus,
		},
		{
			name:       "unknown",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   ErrorCodeInternalError,
			wantMsg:    "internal error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, true)
			ts.search.searchFn = func(context.Context, string, int) ([]result.Ranked, error) {
				return nil, tt.err
			}

			rr := ts.do("GET", "/v1/search?q=x", "")

			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			resp := decodeError(t, rr.Body.Bytes())
			if resp.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", resp.Code, tt.wantCode)
			}
			if tt.wantMsg != "" && !strings.Contains(resp.Message, tt.wantMsg) {
				t.Errorf("message %q does not contain %q", resp.Message, tt.wantMsg)
			}
		})
	}
}

func TestSearch_StoreErrorHidesCause(t *testing.T) {
	ts := newTestServer(t, true)
	ts.search.searchFn = func(context.Context, string, int) ([]result.Ranked, error) {
		return nil, fmt.Errorf("fetch: %w: %w", domain.ErrStore, errors.New("password=hunter2"))
	}

	rr := ts.do("GET", "/v1/search?q=x", "")

	if strings.Contains(rr.Body.String(), "hunter2") {
		t.Errorf("response leaked internal detail: %s", rr.Body.String())
	}
}

func TestAsk_OK(t *testing.T) {
	ts := newTestServer(t, true)
	ts.ask.askFn = func(ctx context.Context, query string, _ int) (rag.Answer, error) {
		u := domain.UsageFromContext(ctx)
		u.AddEmbeddingTokens(5)
		u.AddCompletion(120, 40)
		return rag.Answer{
			Text:    "Try Monster by Naoki Urasawa.",
			Sources: []result.Ranked{rankedBook("m1", "Monster", 0.9)},
		}, nil
	}

	rr := ts.do("POST", "/v1/ask", `{"question":"a dark thriller manga?","k":3}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if ts.ask.gotK != 3 {
		t.Errorf("k = %d, want 3", ts.ask.gotK)
	}
	if rr.Header().Get("X-Prompt-Tokens") != "120" || rr.Header().Get("X-Completion-Tokens") != "40" {
		t.Errorf("usage headers: prompt=%q completion=%q",
			rr.Header().Get("X-Prompt-Tokens"), rr.Header().Get("X-Completion-Tokens"))
	}
	if rr.Header().Get("X-Embedding-Tokens") != "5" {
		t.Errorf("X-Embedding-Tokens = %q", rr.Header().Get("X-Embedding-Tokens"))
	}

	var resp AskResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Answer != "Try Monster by Naoki Urasawa." || resp.NoRelevantContext {
		t.Errorf("unexpected response: %+v", resp)
	}
	if len(resp.Sources) != 1 || resp.Sources[0].ID != "m1" {
		t.Errorf("unexpected sources: %+v", resp.Sources)
	}
}

func TestAsk_NoRelevantContext(t *testing.T) {
	ts := newTestServer(t, true)
	ts.ask.askFn = func(context.Context, string, int) (rag.Answer, error) {
		return rag.Answer{}, domain.ErrNoRelevantContext
	}

	rr := ts.do("POST", "/v1/ask", `{"question":"unknown topic"}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var resp AskResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.NoRelevantContext || resp.Answer != "" || len(resp.Sources) != 0 {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestAsk_ChatProviderError(t *testing.T) {
	ts := newTestServer(t, true)
	ts.ask.askFn = func(context.Context, string, int) (rag.Answer, error) {
		return rag.Answer{}, fmt.Errorf("complete: %w", domain.ErrChatProviderError)
	}

	rr := ts.do("POST", "/v1/ask", `{"question":"anything"}`)

	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rr.Code)
	}
}

func TestAsk_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
		code ErrorCode
	}{
		{"malformed json", `{"question":`, ErrorCodeBadRequest},
		{"unknown field", `{"q":"x"}`, ErrorCodeBadRequest},
		{"blank question", `{"question":"   "}`, ErrorCodeInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, true)

			rr := ts.do("POST", "/v1/ask", tt.body)

			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rr.Code)
			}
			if resp := decodeError(t, rr.Body.Bytes()); resp.Code != tt.code {
				t.Errorf("code = %q, want %q", resp.Code, tt.code)
			}
		})
	}
}

func TestIndex_EmptyBody(t *testing.T) {
	ts := newTestServer(t, true)
	ts.index.runFn = func(context.Context, indexer.Options) (indexer.Report, error) {
		return indexer.Report{Scanned: 10, Selected: 4, Indexed: 4, Skipped: 6, Duration: 1500 * time.Millisecond}, nil
	}

	rr := ts.do("POST", "/v1/index", "")

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if ts.index.gotOpts.Force {
		t.Error("expected force=false by default")
	}
	var resp IndexResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Indexed != 4 || resp.Skipped != 6 || resp.DurationMs != 1500 {
		t.Errorf("unexpected report: %+v", resp)
	}
	if ts.snapshot.invalidated != 1 {
		t.Errorf("expected snapshot invalidated after indexing, got %d", ts.snapshot.invalidated)
	}
}

func TestIndex_Force(t *testing.T) {
	ts := newTestServer(t, true)

	rr := ts.do("POST", "/v1/index", `{"force":true}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if !ts.index.gotOpts.Force {
		t.Error("expected force=true")
	}
	if ts.snapshot.invalidated != 0 {
		t.Error("nothing indexed, snapshot should be kept")
	}
}

func TestIndex_PartialFailureReported(t *testing.T) {
	ts := newTestServer(t, false)
	ts.index.runFn = func(context.Context, indexer.Options) (indexer.Report, error) {
		return indexer.Report{Scanned: 3, Selected: 3, Indexed: 2, EmbedFailed: 1, FailedIDs: []string{"b"}}, nil
	}

	rr := ts.do("POST", "/v1/index", "")

	var resp IndexResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rr.Code != http.StatusOK || resp.EmbedFailed != 1 || len(resp.FailedIDs) != 1 || resp.FailedIDs[0] != "b" {
		t.Errorf("status=%d resp=%+v", rr.Code, resp)
	}
}

func TestIndex_InterruptedRunStillInvalidates(t *testing.T) {
	ts := newTestServer(t, true)
	ts.index.runFn = func(context.Context, indexer.Options) (indexer.Report, error) {
		return indexer.Report{Selected: 5, Indexed: 2}, fmt.Errorf("index: %w", context.Canceled)
	}

	rr := ts.do("POST", "/v1/index", "")

	if rr.Code == http.StatusOK {
		t.Errorf("interrupted run reported success")
	}
	if ts.snapshot.invalidated != 1 {
		t.Errorf("snapshot must be dropped once any document was indexed, invalidated = %d", ts.snapshot.invalidated)
	}
}

func TestIndex_EmptyCorpus(t *testing.T) {
	ts := newTestServer(t, true)
	ts.index.runFn = func(context.Context, indexer.Options) (indexer.Report, error) {
		return indexer.Report{}, fmt.Errorf("index: %w", domain.ErrEmptyCorpus)
	}

	rr := ts.do("POST", "/v1/index", "")

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
	if resp := decodeError(t, rr.Body.Bytes()); resp.Code != ErrorCodeEmptyCorpus {
		t.Errorf("code = %q", resp.Code)
	}
}

func TestInvalidateSnapshot(t *testing.T) {
	ts := newTestServer(t, true)

	rr := ts.do("POST", "/v1/snapshot/invalidate", "")

	if rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rr.Code)
	}
	if ts.snapshot.invalidated != 1 {
		t.Errorf("invalidated = %d", ts.snapshot.invalidated)
	}
}

func TestInvalidateSnapshot_ServerStrategy(t *testing.T) {
	ts := newTestServer(t, false)

	rr := ts.do("POST", "/v1/snapshot/invalidate", "")

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		name       string
		report     healthuc.Report
		wantStatus int
	}{
		{
			name: "healthy",
			report: healthuc.Report{Status: healthuc.Healthy, Checks: map[string]healthuc.CheckResult{
				"database": healthuc.CheckOK, "embedding": healthuc.CheckOK,
			}},
			wantStatus: http.StatusOK,
		},
		{
			name: "degraded",
			report: healthuc.Report{Status: healthuc.Degraded, Checks: map[string]healthuc.CheckResult{
				"database": healthuc.CheckOK, "generation": healthuc.CheckError,
			}},
			wantStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, true)
			ts.health.report = tt.report

			rr := ts.do("GET", "/health", "")

			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			var resp HealthResponse
			if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Status != string(tt.report.Status) || len(resp.Checks) != len(tt.report.Checks) {
				t.Errorf("unexpected response: %+v", resp)
			}
		})
	}
}

func TestMetricsRoute(t *testing.T) {
	ts := newTestServer(t, true)

	rr := ts.do("GET", "/metrics", "")

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
}
