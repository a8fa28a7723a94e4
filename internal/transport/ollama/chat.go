package ollama

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
	"go.uber.org/zap"

	"github.com/kailas-cloud/librarian/internal/domain"
	"github.com/kailas-cloud/librarian/internal/metrics"
)

// Chat is a non-streaming chat model served by Ollama.
type Chat struct {
	client *api.Client
	model  string
	logger *zap.Logger
}

// NewChat creates an Ollama chat model.
func NewChat(cfg *Config) (*Chat, error) {
	c, err := newClient(cfg.Host)
	if err != nil {
		return nil, err
	}
	return &Chat{client: c, model: cfg.Model, logger: cfg.Logger}, nil
}

// Complete implements domain.ChatModel.
func (c *Chat) Complete(ctx context.Context, req domain.ChatRequest) (domain.ChatResult, error) {
	msgs := make([]api.Message, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = api.Message{Role: string(m.Role), Content: m.Content}
	}

	stream := false
	options := map[string]any{"temperature": req.Temperature}
	if req.MaxTokens > 0 {
		options["num_predict"] = req.MaxTokens
	}

	var (
		text  strings.Builder
		final api.ChatResponse
	)
	start := time.Now()
	err := c.client.Chat(ctx, &api.ChatRequest{
		Model:    c.model,
		Messages: msgs,
		Stream:   &stream,
		Options:  options,
	}, func(resp api.ChatResponse) error {
		text.WriteString(resp.Message.Content)
		if resp.Done {
			final = resp
		}
		return nil
	})
	duration := time.Since(start)

	if err != nil {
		metrics.GenerationRequestsTotal.WithLabelValues(provider, c.model, "error").Inc()
		return domain.ChatResult{}, fmt.Errorf("%s: %w", describe(err), domain.ErrChatProviderError)
	}

	metrics.GenerationRequestsTotal.WithLabelValues(provider, c.model, "success").Inc()
	metrics.GenerationDuration.WithLabelValues(provider, c.model).Observe(duration.Seconds())
	metrics.GenerationTokensTotal.WithLabelValues(provider, c.model, "prompt").Add(float64(final.PromptEvalCount))
	metrics.GenerationTokensTotal.WithLabelValues(provider, c.model, "completion").Add(float64(final.EvalCount))

	c.logger.Debug("Ollama chat",
		zap.String("model", c.model),
		zap.Duration("duration", duration))

	return domain.ChatResult{
		Text:             text.String(),
		Model:            c.model,
		PromptTokens:     final.PromptEvalCount,
		CompletionTokens: final.EvalCount,
	}, nil
}

// HealthCheck pings the Ollama server.
func (c *Chat) HealthCheck(ctx context.Context) error {
	if err := c.client.Heartbeat(ctx); err != nil {
		return fmt.Errorf("ollama heartbeat: %w", err)
	}
	return nil
}
