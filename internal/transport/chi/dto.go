package chi

import (
	"github.com/kailas-cloud/librarian/internal/domain/search/result"
	"github.com/kailas-cloud/librarian/internal/usecase/indexer"
)

// ErrorCode is a machine-readable error class in error responses.
type ErrorCode string

// Error codes.
const (
	ErrorCodeBadRequest         ErrorCode = "bad_request"
	ErrorCodeUnauthorized       ErrorCode = "unauthorized"
	ErrorCodeInvalidRequest     ErrorCode = "invalid_request"
	ErrorCodeProviderError      ErrorCode = "provider_error"
	ErrorCodeStoreError         ErrorCode = "store_error"
	ErrorCodeVectorIndexMissing ErrorCode = "vector_index_missing"
	ErrorCodeReindexRequired    ErrorCode = "reindex_required"
	ErrorCodeEmptyCorpus        ErrorCode = "empty_corpus"
	ErrorCodeInternalError      ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// BookItem is a ranked document in search and ask responses.
type BookItem struct {
	ID          string   `json:"id"`
	Score       float64  `json:"score"`
	Title       string   `json:"title"`
	Author      string   `json:"author"`
	Category    string   `json:"category"`
	Description string   `json:"description,omitempty"`
	Year        *int     `json:"year,omitempty"`
	Rating      *float64 `json:"rating,omitempty"`
}

// SearchResponse is the body of GET /v1/search.
type SearchResponse struct {
	Query    string     `json:"query"`
	Strategy string     `json:"strategy"`
	Results  []BookItem `json:"results"`
}

// AskRequest is the body of POST /v1/ask.
type AskRequest struct {
	Question string `json:"question"`
	K        int    `json:"k,omitempty"`
}

// AskResponse is the body of POST /v1/ask.
type AskResponse struct {
	Answer            string     `json:"answer"`
	Sources           []BookItem `json:"sources"`
	NoRelevantContext bool       `json:"no_relevant_context"`
}

// IndexRequest is the optional body of POST /v1/index.
type IndexRequest struct {
	Force bool `json:"force"`
}

// IndexResponse is the body of POST /v1/index.
type IndexResponse struct {
	Scanned         int      `json:"scanned"`
	Selected        int      `json:"selected"`
	Indexed         int      `json:"indexed"`
	Skipped         int      `json:"skipped"`
	EmbedFailed     int      `json:"embed_failed"`
	PersistFailed   int      `json:"persist_failed"`
	FailedIDs       []string `json:"failed_ids,omitempty"`
	DurationMs      int64    `json:"duration_ms"`
	EmbeddingTokens int      `json:"embedding_tokens"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func bookItems(rs []result.Ranked) []BookItem {
	items := make([]BookItem, len(rs))
	for i := range rs {
		items[i] = bookItem(&rs[i])
	}
	return items
}

func bookItem(r *result.Ranked) BookItem {
	b := r.Book()
	item := BookItem{
		ID:          r.ID(),
		Score:       r.Score(),
		Title:       b.Title(),
		Author:      b.Author(),
		Category:    b.Category(),
		Description: b.Description(),
	}
	if y, ok := b.Year(); ok {
		item.Year = &y
	}
	if v, ok := b.Rating(); ok {
		item.Rating = &v
	}
	return item
}

func indexResponse(rep indexer.Report) IndexResponse {
	return IndexResponse{
		Scanned:         rep.Scanned,
		Selected:        rep.Selected,
		Indexed:         rep.Indexed,
		Skipped:         rep.Skipped,
		EmbedFailed:     rep.EmbedFailed,
		PersistFailed:   rep.PersistFailed,
		FailedIDs:       rep.FailedIDs,
		DurationMs:      rep.Duration.Milliseconds(),
		EmbeddingTokens: rep.EmbeddingTokens,
	}
}
