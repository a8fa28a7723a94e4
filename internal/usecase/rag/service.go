package rag

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/librarian/internal/domain/search/result"
)

// Retriever returns ranked documents for a query.
type Retriever interface {
	Search(ctx context.Context, query string, k int) ([]result.Ranked, error)
}

// Answer is a generated reply with the documents it was grounded on.
type Answer struct {
	Text    string
	Sources []result.Ranked
}

// Service answers questions by retrieval followed by generation.
type Service struct {
	retriever Retriever
	generator *Generator
}

// NewService creates a RAG service.
func NewService(r Retriever, g *Generator) *Service {
	return &Service{retriever: r, generator: g}
}

// Ask retrieves up to k documents and generates an answer from them.
// Retrieval errors propagate unchanged; zero hits yields domain.ErrNoRelevantContext.
func (s *Service) Ask(ctx context.Context, query string, k int) (Answer, error) {
	hits, err := s.retriever.Search(ctx, query, k)
	if err != nil {
		return Answer{}, fmt.Errorf("retrieve context: %w", err)
	}

	text, err := s.generator.Generate(ctx, query, result.Books(hits))
	if err != nil {
		return Answer{Sources: hits}, err
	}
	return Answer{Text: text, Sources: hits}, nil
}
