package domain

import "context"

// Role tags a chat message.
type Role string

const (
	// RoleSystem carries persona and grounding instructions.
	RoleSystem Role = "system"
	// RoleUser carries the user turn.
	RoleUser Role = "user"
	// RoleAssistant carries a model turn.
	RoleAssistant Role = "assistant"
)

// Message is a single role-tagged chat message.
type Message struct {
	Role    Role
	Content string
}

// ChatRequest is a stateless completion request.
type ChatRequest struct {
	Messages    []Message
	Temperature float32
	MaxTokens   int // 0 = backend default
}

// ChatResult carries the completion text and token usage.
type ChatResult struct {
	Text             string
	Model            string
	PromptTokens     int
	CompletionTokens int
}

// ChatModel is the language-model backend contract.
type ChatModel interface {
	Complete(ctx context.Context, req ChatRequest) (ChatResult, error)
}
