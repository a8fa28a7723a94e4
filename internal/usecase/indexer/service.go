// Package indexer computes and persists description embeddings for documents that lack a usable one.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/kailas-cloud/librarian/internal/domain"
	"github.com/kailas-cloud/librarian/internal/domain/book"
	"github.com/kailas-cloud/librarian/internal/metrics"
)

// Defaults for Config.
const (
	DefaultBatchSize      = 64
	DefaultPersistRetries = 1
)

// Config tunes an indexing run.
type Config struct {
	Model          string
	Dimensions     int // 0 skips the length check
	BatchSize      int
	PersistRetries int
	// RetryInterval is the first backoff delay between persist attempts.
	RetryInterval time.Duration
}

// Options control a single run.
type Options struct {
	// Force recomputes embeddings for every document with a description.
	Force bool
}

// Report summarizes a run.
type Report struct {
	Scanned         int
	Selected        int
	Indexed         int
	Skipped         int
	EmbedFailed     int
	PersistFailed   int
	FailedIDs       []string
	Duration        time.Duration
	EmbeddingTokens int
}

// Service runs the embedding indexer.
type Service struct {
	store  Store
	embed  domain.Embedder
	cfg    Config
	logger *zap.Logger
}

// New creates an indexer service.
func New(store Store, embed domain.Embedder, cfg Config, logger *zap.Logger) *Service {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.PersistRetries < 0 {
		cfg.PersistRetries = 0
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 200 * time.Millisecond
	}
	return &Service{store: store, embed: embed, cfg: cfg, logger: logger}
}

// Run embeds every selected document and persists the vector and model name.
// Per-document failures are counted and skipped; only a fetch failure,
// an empty corpus or cancellation aborts the run.
func (s *Service) Run(ctx context.Context, opts Options) (Report, error) {
	start := time.Now()
	var rep Report

	docs, err := s.store.FetchAllWithField(ctx, book.FieldDescription)
	if err != nil {
		metrics.IndexerRunsTotal.WithLabelValues("error").Inc()
		return rep, fmt.Errorf("fetch documents: %w", err)
	}
	rep.Scanned = len(docs)
	if rep.Scanned == 0 {
		metrics.IndexerRunsTotal.WithLabelValues("empty").Inc()
		return rep, fmt.Errorf("no documents with a description: %w", domain.ErrEmptyCorpus)
	}

	selected := s.selectDocs(docs, opts.Force)
	rep.Selected = len(selected)
	rep.Skipped = rep.Scanned - rep.Selected
	metrics.IndexerDocumentsTotal.WithLabelValues("skipped").Add(float64(rep.Skipped))

	for offset := 0; offset < len(selected); offset += s.cfg.BatchSize {
		if err := ctx.Err(); err != nil {
			return s.finish(rep, start, fmt.Errorf("indexing interrupted: %w", err))
		}
		end := min(offset+s.cfg.BatchSize, len(selected))
		s.indexChunk(ctx, selected[offset:end], &rep)
	}

	return s.finish(rep, start, nil)
}

func (s *Service) finish(rep Report, start time.Time, err error) (Report, error) {
	rep.Duration = time.Since(start)

	status := "success"
	if err != nil {
		status = "interrupted"
	} else if len(rep.FailedIDs) > 0 {
		status = "partial"
	}
	metrics.IndexerRunsTotal.WithLabelValues(status).Inc()

	s.logger.Info("Indexing finished",
		zap.String("status", status),
		zap.Int("scanned", rep.Scanned),
		zap.Int("selected", rep.Selected),
		zap.Int("indexed", rep.Indexed),
		zap.Int("skipped", rep.Skipped),
		zap.Int("embed_failed", rep.EmbedFailed),
		zap.Int("persist_failed", rep.PersistFailed),
		zap.Int("embedding_tokens", rep.EmbeddingTokens),
		zap.Duration("duration", rep.Duration),
	)
	return rep, err
}

// selectDocs keeps documents without a usable embedding for the current model.
func (s *Service) selectDocs(docs []book.Book, force bool) []book.Book {
	if force {
		return docs
	}
	out := make([]book.Book, 0, len(docs))
	for i := range docs {
		if !docs[i].EmbeddingUsable(s.cfg.Model, s.cfg.Dimensions) {
			out = append(out, docs[i])
		}
	}
	return out
}

// indexChunk embeds a chunk in one batch call, falling back to one call per
// document when the batch fails so a single bad text only skips itself.
func (s *Service) indexChunk(ctx context.Context, chunk []book.Book, rep *Report) {
	texts := make([]string, len(chunk))
	for i := range chunk {
		texts[i] = chunk[i].Description()
	}

	vectors := make([][]float32, len(chunk))
	res, err := domain.EmbedAll(ctx, s.embed, texts)
	if err == nil {
		vectors = res.Embeddings
		rep.EmbeddingTokens += res.TotalTokens
	} else {
		s.logger.Warn("Batch embedding failed, falling back to per-document",
			zap.Int("chunk_size", len(chunk)), zap.Error(err))
		for i := range chunk {
			single, err := s.embed.Embed(ctx, texts[i])
			if err != nil {
				s.logger.Warn("Embedding failed, skipping document",
					zap.String("id", chunk[i].ID()), zap.Error(err))
				continue
			}
			vectors[i] = single.Embedding
			rep.EmbeddingTokens += single.TotalTokens
		}
	}

	for i := range chunk {
		id := chunk[i].ID()
		vec := vectors[i]
		if vec == nil {
			s.fail(rep, id, "embed_failed")
			continue
		}
		if s.cfg.Dimensions > 0 && len(vec) != s.cfg.Dimensions {
			s.logger.Warn("Embedding has unexpected dimensions, skipping document",
				zap.String("id", id), zap.Int("want", s.cfg.Dimensions), zap.Int("got", len(vec)))
			s.fail(rep, id, "embed_failed")
			continue
		}
		if err := s.persist(ctx, id, vec); err != nil {
			s.logger.Warn("Persisting embedding failed, skipping document",
				zap.String("id", id), zap.Error(err))
			s.fail(rep, id, "persist_failed")
			continue
		}
		rep.Indexed++
		metrics.IndexerDocumentsTotal.WithLabelValues("indexed").Inc()
	}
}

func (s *Service) fail(rep *Report, id, outcome string) {
	if outcome == "persist_failed" {
		rep.PersistFailed++
	} else {
		rep.EmbedFailed++
	}
	rep.FailedIDs = append(rep.FailedIDs, id)
	metrics.IndexerDocumentsTotal.WithLabelValues(outcome).Inc()
}

// persist writes the vector then the model name, retrying with exponential backoff.
// Both writes are idempotent so a retry may repeat the first one.
func (s *Service) persist(ctx context.Context, id string, vec []float32) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.cfg.RetryInterval
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(s.cfg.PersistRetries)), ctx)

	err := backoff.Retry(func() error {
		if err := s.store.UpsertField(ctx, id, book.FieldEmbedding, vec); err != nil {
			return classify(err)
		}
		if err := s.store.UpsertField(ctx, id, book.FieldEmbeddingModel, s.cfg.Model); err != nil {
			return classify(err)
		}
		return nil
	}, policy)
	if err != nil {
		return fmt.Errorf("persist %s: %w", id, err)
	}
	return nil
}

// classify stops retrying on errors a second attempt cannot fix.
func classify(err error) error {
	if errors.Is(err, domain.ErrInvalidRequest) ||
		errors.Is(err, domain.ErrVectorDimMismatch) ||
		errors.Is(err, domain.ErrDocumentNotFound) {
		return backoff.Permanent(err)
	}
	return err
}
