package chi

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/kailas-cloud/librarian/internal/domain"
	logpkg "github.com/kailas-cloud/librarian/internal/logger"
)

// errorMapping translates a domain sentinel into an HTTP status and API code.
// Order matters: the first sentinel matched by errors.Is wins.
type errorMapping struct {
	sentinel error
	status   int
	code     ErrorCode
}

var errorMappings = []errorMapping{
	{domain.ErrInvalidRequest, http.StatusBadRequest, ErrorCodeInvalidRequest},
	{domain.ErrVectorDimMismatch, http.StatusConflict, ErrorCodeReindexRequired},
	{domain.ErrVectorIndexMissing, http.StatusServiceUnavailable, ErrorCodeVectorIndexMissing},
	{domain.ErrStore, http.StatusServiceUnavailable, ErrorCodeStoreError},
	{domain.ErrEmbeddingProviderError, http.StatusBadGateway, ErrorCodeProviderError},
	{domain.ErrChatProviderError, http.StatusBadGateway, ErrorCodeProviderError},
	{domain.ErrEmptyCorpus, http.StatusNotFound, ErrorCodeEmptyCorpus},
}

// clientMessage hides wrapped internals. Input errors, dimension mismatches and missing
// index errors carry an actionable hint and pass through; the rest collapse to the sentinel text.
func clientMessage(err error, m errorMapping) string {
	if errors.Is(err, domain.ErrInvalidRequest) {
		return err.Error()
	}
	if dim := new(domain.DimMismatchError); errors.As(err, &dim) {
		return dim.Error()
	}
	if idx := new(domain.VectorIndexError); errors.As(err, &idx) {
		return (&domain.VectorIndexError{Backend: idx.Backend, Index: idx.Index}).Error()
	}
	return m.sentinel.Error()
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logpkg.FromContextOr(r.Context(), s.logger)
	for _, m := range errorMappings {
		if errors.Is(err, m.sentinel) {
			log.Warn("Request failed", zap.String("code", string(m.code)), zap.Error(err))
			writeError(w, m.status, m.code, clientMessage(err, m))
			return
		}
	}
	log.Error("Unhandled error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal error")
}
