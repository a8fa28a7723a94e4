package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRequest signals malformed caller input (bad k, unknown field).
	ErrInvalidRequest = errors.New("invalid request")

	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrChatProviderError signals a language-model backend failure.
	ErrChatProviderError = errors.New("chat provider error")

	// ErrStore signals a document store failure (unreachable, malformed query, bad index).
	ErrStore = errors.New("document store error")
	// ErrDocumentNotFound signals an update addressed to a document the store does not hold.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrVectorIndexMissing signals a missing or misconfigured server-side vector index.
	ErrVectorIndexMissing = errors.New("vector index missing or misconfigured")
	// ErrVectorDimMismatch signals embeddings of different dimensionality in one search space.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")

	// ErrEmptyCorpus signals that no documents are available to search.
	ErrEmptyCorpus = errors.New("empty corpus")
	// ErrNoRelevantContext signals a successful retrieval with zero matches.
	// Generation is never attempted in that case.
	ErrNoRelevantContext = errors.New("no relevant context")
)

// VectorIndexError names the index a server-side search could not use.
type VectorIndexError struct {
	Backend string
	Index   string
	Err     error
}

func (e *VectorIndexError) Error() string {
	msg := fmt.Sprintf("%s: vector index %q on %s is missing or misconfigured; create it and re-run indexing",
		ErrVectorIndexMissing.Error(), e.Index, e.Backend)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the store sentinel and the index sentinel.
func (e *VectorIndexError) Unwrap() []error {
	errs := []error{ErrStore, ErrVectorIndexMissing}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// NewVectorIndexError creates a VectorIndexError.
func NewVectorIndexError(backend, index string, cause error) error {
	return &VectorIndexError{Backend: backend, Index: index, Err: cause}
}

// DimMismatchError reports an embedding whose length disagrees with the search space.
type DimMismatchError struct {
	Want int
	Got  int
}

func (e *DimMismatchError) Error() string {
	return fmt.Sprintf("%s: expected %d dimensions, got %d; re-index embeddings with the current model",
		ErrVectorDimMismatch.Error(), e.Want, e.Got)
}

// Unwrap classifies a dimension mismatch as a store error.
func (e *DimMismatchError) Unwrap() []error { return []error{ErrStore, ErrVectorDimMismatch} }

// NewDimMismatch creates a dimension mismatch error.
func NewDimMismatch(want, got int) error {
	return &DimMismatchError{Want: want, Got: got}
}
