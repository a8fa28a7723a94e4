// Package openai adapts OpenAI-compatible APIs (OpenAI, Groq, Nebius) to the
// embedding and chat contracts.
package openai

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/librarian/internal/domain"
	"github.com/kailas-cloud/librarian/internal/metrics"
)

// Config holds the embedding provider settings.
type Config struct {
	APIKey     string
	BaseURL    string // empty = api.openai.com
	Model      string
	Dimensions int // requested output size; 0 = model default
	User       string
	Provider   string // metrics label
	Logger     *zap.Logger
}

// Embedder calls the /embeddings endpoint.
type Embedder struct {
	client *openai.Client
	cfg    Config
	logger *zap.Logger
}

// NewEmbedder creates an OpenAI-compatible embedding provider.
func NewEmbedder(cfg *Config) *Embedder {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	e := &Embedder{client: openai.NewClientWithConfig(clientCfg), cfg: *cfg, logger: cfg.Logger}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	return e
}

func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	res, err := e.create(ctx, []string{text})
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	return domain.EmbeddingResult{
		Embedding:    res.Embeddings[0],
		PromptTokens: res.PromptTokens,
		TotalTokens:  res.TotalTokens,
	}, nil
}

// BatchEmbed sends all texts in one request and returns vectors in input order.
// A vector count that differs from len(texts) is a provider error.
func (e *Embedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}
	res, err := e.create(ctx, texts)
	if err != nil {
		return domain.BatchEmbeddingResult{}, err
	}
	e.logger.Debug("Batch embedded", zap.Int("texts", len(texts)), zap.Int("total_tokens", res.TotalTokens))
	return res, nil
}

func (e *Embedder) create(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	start := time.Now()
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:          texts,
		Model:          openai.EmbeddingModel(e.cfg.Model),
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
		User:           e.cfg.User,
		Dimensions:     e.cfg.Dimensions,
	})
	switch {
	case err != nil:
		e.countFailure("api_error")
		return domain.BatchEmbeddingResult{}, apiError("embedding", domain.ErrEmbeddingProviderError, err)
	case len(resp.Data) != len(texts):
		e.countFailure("count_mismatch")
		return domain.BatchEmbeddingResult{}, fmt.Errorf("%w: embedding API returned %d vectors for %d inputs",
			domain.ErrEmbeddingProviderError, len(resp.Data), len(texts))
	}
	e.countSuccess(time.Since(start), resp.Usage)

	// Providers may answer out of order; Index is authoritative.
	slices.SortStableFunc(resp.Data, func(a, b openai.Embedding) int { return cmp.Compare(a.Index, b.Index) })
	out := domain.BatchEmbeddingResult{
		Embeddings:   make([][]float32, len(resp.Data)),
		PromptTokens: resp.Usage.PromptTokens,
		TotalTokens:  resp.Usage.TotalTokens,
	}
	for i, d := range resp.Data {
		out.Embeddings[i] = d.Embedding
	}
	return out, nil
}

func (e *Embedder) countSuccess(took time.Duration, usage openai.Usage) {
	p, m := e.cfg.Provider, e.cfg.Model
	metrics.EmbeddingRequestsTotal.WithLabelValues(p, m, "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(p, m).Observe(took.Seconds())
	if usage.TotalTokens == 0 {
		return
	}
	metrics.EmbeddingTokensTotal.WithLabelValues(p, m, "prompt").Add(float64(usage.PromptTokens))
	metrics.EmbeddingTokensTotal.WithLabelValues(p, m, "total").Add(float64(usage.TotalTokens))
}

func (e *Embedder) countFailure(reason string) {
	p, m := e.cfg.Provider, e.cfg.Model
	metrics.EmbeddingRequestsTotal.WithLabelValues(p, m, "error").Inc()
	metrics.EmbeddingErrorsTotal.WithLabelValues(p, m, reason).Inc()
}

// HealthCheck lists models, which costs no tokens.
func (e *Embedder) HealthCheck(ctx context.Context) error {
	if _, err := e.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}
