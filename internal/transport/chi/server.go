package chi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/librarian/internal/domain"
	"github.com/kailas-cloud/librarian/internal/domain/search/result"
	healthuc "github.com/kailas-cloud/librarian/internal/usecase/health"
	"github.com/kailas-cloud/librarian/internal/usecase/indexer"
	"github.com/kailas-cloud/librarian/internal/usecase/rag"
	"github.com/kailas-cloud/librarian/internal/usecase/retrieval"
)

const maxBodyBytes = 1 << 20

// Searcher ranks documents for a query.
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]result.Ranked, error)
	Strategy() retrieval.Strategy
}

// Asker answers questions grounded on retrieved documents.
type Asker interface {
	Ask(ctx context.Context, query string, k int) (rag.Answer, error)
}

// Indexer embeds documents that lack a usable embedding.
type Indexer interface {
	Run(ctx context.Context, opts indexer.Options) (indexer.Report, error)
}

// SnapshotInvalidator drops the in-memory snapshot so the next query reloads it.
type SnapshotInvalidator interface {
	Invalidate()
}

// HealthChecker aggregates component checks.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}


// Server serves the librarian HTTP API.
type Server struct {
	search   Searcher
	ask      Asker
	index    Indexer
	snapshot SnapshotInvalidator
	health   HealthChecker
	logger   *zap.Logger
}

// NewServer creates an HTTP API server. snapshot is nil under the server-side strategy.
func NewServer(
	search Searcher,
	ask Asker,
	index Indexer,
	snapshot SnapshotInvalidator,
	health HealthChecker,
	logger *zap.Logger,
) *Server {
	return &Server{
		search:   search,
		ask:      ask,
		index:    index,
		snapshot: snapshot,
		health:   health,
		logger:   logger,
	}
}

// Register mounts the API routes on r.
func (s *Server) Register(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/search", s.Search)
		r.Post("/ask", s.Ask)
		r.Post("/index", s.Index)
		r.Post("/snapshot/invalidate", s.InvalidateSnapshot)
	})
}

// Search handles GET /v1/search?q=&k=.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	k, ok := parseK(w, r.URL.Query().Get("k"))
	if !ok {
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	hits, err := s.search.Search(ctx, query, k)
	setUsageHeaders(w, usage)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, SearchResponse{
		Query:    query,
		Strategy: string(s.search.Strategy()),
		Results:  bookItems(hits),
	})
}

// Ask handles POST /v1/ask.
func (s *Server) Ask(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "question is required")
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	answer, err := s.ask.Ask(ctx, req.Question, req.K)
	setUsageHeaders(w, usage)
	if errors.Is(err, domain.ErrNoRelevantContext) {
		writeJSON(w, http.StatusOK, AskResponse{Sources: []BookItem{}, NoRelevantContext: true})
		return
	}
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, AskResponse{
		Answer:  answer.Text,
		Sources: bookItems(answer.Sources),
	})
}

// Index handles POST /v1/index. The body is optional.
func (s *Server) Index(w http.ResponseWriter, r *http.Request) {
	var req IndexRequest
	if err := decodeBody(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	rep, err := s.index.Run(ctx, indexer.Options{Force: req.Force})
	setUsageHeaders(w, usage)
	// Interrupted runs may still have persisted vectors; the snapshot would otherwise keep serving stale ones.
	if s.snapshot != nil && rep.Indexed > 0 {
		s.snapshot.Invalidate()
	}
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, indexResponse(rep))
}

// InvalidateSnapshot handles POST /v1/snapshot/invalidate.
func (s *Server) InvalidateSnapshot(w http.ResponseWriter, _ *http.Request) {
	if s.snapshot == nil {
		writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest,
			"snapshot invalidation requires the memory retrieval strategy")
		return
	}
	s.snapshot.Invalidate()
	w.WriteHeader(http.StatusNoContent)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// parseK reads the optional k parameter; 0 selects the configured default.
func parseK(w http.ResponseWriter, raw string) (int, bool) {
	if raw == "" {
		return 0, true
	}
	k, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "k must be an integer")
		return 0, false
	}
	return k, true
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v) //nolint:wrapcheck // surfaced to the client as-is
}

func setUsageHeaders(w http.ResponseWriter, usage *domain.Usage) {
	if usage == nil {
		return
	}
	if usage.EmbeddingTokens > 0 {
		w.Header().Set("X-Embedding-Tokens", strconv.Itoa(usage.EmbeddingTokens))
	}
	if usage.PromptTokens > 0 || usage.CompletionTokens > 0 {
		w.Header().Set("X-Prompt-Tokens", strconv.Itoa(usage.PromptTokens))
		w.Header().Set("X-Completion-Tokens", strconv.Itoa(usage.CompletionTokens))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}
