// Package embedding holds embedder decorators that sit between the provider transports and the use cases.
package embedding

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/librarian/internal/domain"
)

// DefaultMaxAPIBatchSize caps the number of texts sent in one provider request.
const DefaultMaxAPIBatchSize = 256

// InstrumentedEmbedder logs every provider round trip and charges the tokens to the
// request's domain.Usage. Provider metrics are recorded by the transports themselves.
type InstrumentedEmbedder struct {
	inner    domain.Embedder
	provider string
	model    string
	maxBatch int
	logger   *zap.Logger
}

func NewInstrumentedEmbedder(inner domain.Embedder, provider, model string, logger *zap.Logger) *InstrumentedEmbedder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InstrumentedEmbedder{
		inner:    inner,
		provider: provider,
		model:    model,
		maxBatch: DefaultMaxAPIBatchSize,
		logger:   logger.With(zap.String("provider", provider), zap.String("model", model)),
	}
}

// Embed embeds a single text, usually a search query.
func (p *InstrumentedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	start := time.Now()
	res, err := p.inner.Embed(ctx, text)
	if err != nil {
		p.logger.Error("Query embedding failed", zap.Duration("duration", time.Since(start)), zap.Error(err))
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}

	p.charge(ctx, "Query embedded", start, 1, res.PromptTokens, res.TotalTokens)
	return res, nil
}

// BatchEmbed embeds book descriptions in chunks of at most maxBatch texts.
// Any failed chunk fails the whole call; callers decide how to fall back.
func (p *InstrumentedEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}

	start := time.Now()
	out := domain.BatchEmbeddingResult{Embeddings: make([][]float32, 0, len(texts))}
	for lo := 0; lo < len(texts); lo += p.maxBatch {
		hi := min(lo+p.maxBatch, len(texts))
		chunk, err := domain.EmbedAll(ctx, p.inner, texts[lo:hi])
		if err != nil {
			p.logger.Error("Description batch embedding failed",
				zap.Int("chunk_offset", lo),
				zap.Int("chunk_size", hi-lo),
				zap.Int("batch_size", len(texts)),
				zap.Error(err),
			)
			return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed [%d:%d]: %w", lo, hi, err)
		}
		out.Embeddings = append(out.Embeddings, chunk.Embeddings...)
		out.PromptTokens += chunk.PromptTokens
		out.TotalTokens += chunk.TotalTokens
	}

	p.charge(ctx, "Descriptions embedded", start, len(texts), out.PromptTokens, out.TotalTokens)
	return out, nil
}

// HealthCheck delegates to the inner embedder when it can report health.
func (p *InstrumentedEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := p.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx) //nolint:wrapcheck // transparent decorator
	}
	return nil
}

func (p *InstrumentedEmbedder) charge(ctx context.Context, msg string, start time.Time, texts, prompt, total int) {
	domain.UsageFromContext(ctx).AddEmbeddingTokens(total)
	p.logger.Debug(msg,
		zap.Duration("duration", time.Since(start)),
		zap.Int("texts", texts),
		zap.Int("prompt_tokens", prompt),
		zap.Int("total_tokens", total),
	)
}
