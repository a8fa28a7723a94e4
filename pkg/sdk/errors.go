package librarian

import "github.com/kailas-cloud/librarian/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrInvalidRequest         = domain.ErrInvalidRequest
	ErrEmbeddingProviderError = domain.ErrEmbeddingProviderError
	ErrChatProviderError      = domain.ErrChatProviderError
	ErrStore                  = domain.ErrStore
	ErrVectorIndexMissing     = domain.ErrVectorIndexMissing
	ErrVectorDimMismatch      = domain.ErrVectorDimMismatch
	ErrEmptyCorpus            = domain.ErrEmptyCorpus
	ErrNoRelevantContext      = domain.ErrNoRelevantContext
)
