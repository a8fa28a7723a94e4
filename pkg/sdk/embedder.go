package librarian

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/librarian/internal/domain"
)

// Embedder converts text to vector embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// BatchEmbedder vectorizes multiple texts in a single API call.
// Optional: if the provided Embedder also implements BatchEmbedder,
// indexing and snapshot loading use it for much better throughput.
type BatchEmbedder interface {
	BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error)
}

// EmbeddingResult carries the embedding vector and token counts.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// BatchEmbeddingResult carries multiple embedding vectors and aggregate token usage.
type BatchEmbeddingResult struct {
	Embeddings   [][]float32
	PromptTokens int
	TotalTokens  int
}

// Role tags a chat message.
type Role string

// Chat roles.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is one role-tagged message.
type ChatMessage struct {
	Role    Role
	Content string
}

// ChatRequest is a stateless completion request.
type ChatRequest struct {
	Messages    []ChatMessage
	Temperature float32
	MaxTokens   int
}

// ChatResult carries the completion text and token usage.
type ChatResult struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
}

// ChatModel produces one completion per request.
type ChatModel interface {
	Complete(ctx context.Context, req ChatRequest) (ChatResult, error)
}

// embedderAdapter wraps public Embedder to satisfy internal domain.Embedder and domain.BatchEmbedder.
type embedderAdapter struct {
	inner Embedder
}

func (a *embedderAdapter) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	r, err := a.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w: %w", domain.ErrEmbeddingProviderError, err)
	}
	return domain.EmbeddingResult{
		Embedding:    r.Embedding,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}

func (a *embedderAdapter) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	be, ok := a.inner.(BatchEmbedder)
	if !ok {
		return domain.BatchFallback(ctx, a, texts)
	}
	r, err := be.BatchEmbed(ctx, texts)
	if err != nil {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed: %w: %w", domain.ErrEmbeddingProviderError, err)
	}
	return domain.BatchEmbeddingResult{
		Embeddings:   r.Embeddings,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}

// chatAdapter wraps public ChatModel to satisfy internal domain.ChatModel.
type chatAdapter struct {
	inner ChatModel
}

func (a *chatAdapter) Complete(ctx context.Context, req domain.ChatRequest) (domain.ChatResult, error) {
	msgs := make([]ChatMessage, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = ChatMessage{Role: Role(m.Role), Content: m.Content}
	}
	r, err := a.inner.Complete(ctx, ChatRequest{
		Messages:    msgs,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return domain.ChatResult{}, fmt.Errorf("complete: %w: %w", domain.ErrChatProviderError, err)
	}
	return domain.ChatResult{
		Text:             r.Text,
		PromptTokens:     r.PromptTokens,
		CompletionTokens: r.CompletionTokens,
	}, nil
}

// noopChat returns an error on Complete (used when no chat model is configured).
type noopChat struct{}

func (noopChat) Complete(context.Context, domain.ChatRequest) (domain.ChatResult, error) {
	return domain.ChatResult{}, fmt.Errorf("%w: %w", domain.ErrChatProviderError,
		errors.New("librarian: chat model not configured (use WithChatModel)"))
}
