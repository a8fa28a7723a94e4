package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/librarian/internal/domain"
)

func TestChat_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}

		var body struct {
			Model       string  `json:"model"`
			Temperature float32 `json:"temperature"`
			Messages    []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if body.Model != "llama-3.1-8b-instant" {
			t.Errorf("model = %q", body.Model)
		}
		if len(body.Messages) != 2 || body.Messages[0].Role != "system" || body.Messages[1].Role != "user" {
			t.Errorf("unexpected messages: %+v", body.Messages)
		}
		if body.Temperature != 0.4 {
			t.Errorf("temperature = %v", body.Temperature)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "cmpl-1",
			"object": "chat.completion",
			"model":  "llama-3.1-8b-instant",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": "  Try Dune.\n"},
				"finish_reason": "stop",
			}},
			"usage": map[string]any{"prompt_tokens": 120, "completion_tokens": 8, "total_tokens": 128},
		})
	}))
	defer server.Close()

	chat := NewChat(&ChatConfig{
		APIKey: "k", BaseURL: server.URL, Model: "llama-3.1-8b-instant", Provider: "groq", Logger: zap.NewNop(),
	})

	res, err := chat.Complete(context.Background(), domain.ChatRequest{
		Messages: []domain.Message{
			{Role: domain.RoleSystem, Content: "You are a librarian."},
			{Role: domain.RoleUser, Content: "Recommend a book."},
		},
		Temperature: 0.4,
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if res.Text != "  Try Dune.\n" {
		t.Errorf("Text = %q", res.Text)
	}
	if res.PromptTokens != 120 || res.CompletionTokens != 8 {
		t.Errorf("usage = %d/%d", res.PromptTokens, res.CompletionTokens)
	}
	if res.Model != "llama-3.1-8b-instant" {
		t.Errorf("Model = %q", res.Model)
	}
}

func TestChat_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "x", "choices": []any{}})
	}))
	defer server.Close()

	chat := NewChat(&ChatConfig{APIKey: "k", BaseURL: server.URL, Model: "m", Provider: "test", Logger: zap.NewNop()})

	_, err := chat.Complete(context.Background(), domain.ChatRequest{})
	if !errors.Is(err, domain.ErrChatProviderError) {
		t.Errorf("expected ErrChatProviderError, got %v", err)
	}
}

func TestChat_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "invalid api key", "type": "auth_error"},
		})
	}))
	defer server.Close()

	chat := NewChat(&ChatConfig{APIKey: "bad", BaseURL: server.URL, Model: "m", Provider: "test", Logger: zap.NewNop()})

	_, err := chat.Complete(context.Background(), domain.ChatRequest{
		Messages: []domain.Message{{Role: domain.RoleUser, Content: "hi"}},
	})
	if !errors.Is(err, domain.ErrChatProviderError) {
		t.Fatalf("expected ErrChatProviderError, got %v", err)
	}
	if errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Error("chat failures must not be classified as embedding failures")
	}
}

func TestChat_ZeroTemperatureIsSent(t *testing.T) {
	var sent *float32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Temperature *float32 `json:"temperature"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		sent = body.Temperature
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]any{"role": "assistant", "content": "Monster."}}},
		})
	}))
	defer server.Close()

	chat := NewChat(&ChatConfig{APIKey: "k", BaseURL: server.URL, Model: "m", Provider: "test", Logger: zap.NewNop()})
	if _, err := chat.Complete(context.Background(), domain.ChatRequest{
		Messages: []domain.Message{{Role: domain.RoleUser, Content: "thriller manga?"}},
	}); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if sent == nil || *sent < 0 || *sent > 1e-6 {
		t.Errorf("temperature on the wire = %v, want present and effectively 0", sent)
	}
}
