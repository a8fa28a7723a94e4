package rag

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/librarian/internal/domain"
	"github.com/kailas-cloud/librarian/internal/domain/book"
)

// DefaultTemperature favours faithful, repeatable answers.
const DefaultTemperature float32 = 0.4

// GeneratorConfig holds prompt and decoding settings.
type GeneratorConfig struct {
	Persona     string
	Language    string
	Temperature *float32 // nil = DefaultTemperature; 0 is a valid setting
	MaxTokens   int
}

// Generator prompts the chat model with retrieved documents as grounding.
type Generator struct {
	chat        domain.ChatModel
	cfg         GeneratorConfig
	temperature float32
	logger      *zap.Logger
}

// NewGenerator creates a generator. A nil temperature uses DefaultTemperature.
func NewGenerator(chat domain.ChatModel, cfg GeneratorConfig, logger *zap.Logger) *Generator {
	g := &Generator{chat: chat, cfg: cfg, temperature: DefaultTemperature, logger: logger}
	if cfg.Temperature != nil {
		g.temperature = *cfg.Temperature
	}
	return g
}

// Generate answers query from docs with a single completion.
// Zero docs returns domain.ErrNoRelevantContext without calling the model.
func (g *Generator) Generate(ctx context.Context, query string, docs []book.Book) (string, error) {
	if len(docs) == 0 {
		return "", domain.ErrNoRelevantContext
	}

	system, user := BuildPrompt(query, ComposeContext(docs), PromptOptions{
		Persona:  g.cfg.Persona,
		Language: g.cfg.Language,
	})

	res, err := g.chat.Complete(ctx, domain.ChatRequest{
		Messages: []domain.Message{
			{Role: domain.RoleSystem, Content: system},
			{Role: domain.RoleUser, Content: user},
		},
		Temperature: g.temperature,
		MaxTokens:   g.cfg.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("generate answer: %w", err)
	}

	domain.UsageFromContext(ctx).AddCompletion(res.PromptTokens, res.CompletionTokens)
	g.logger.Debug("Answer generated",
		zap.String("model", res.Model),
		zap.Int("context_documents", len(docs)),
		zap.Int("prompt_tokens", res.PromptTokens),
		zap.Int("completion_tokens", res.CompletionTokens))

	return res.Text, nil
}
