// Package ollama adapts a local Ollama server to the embedding and chat contracts.
package ollama

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ollama/ollama/api"
	"go.uber.org/zap"
)

const provider = "ollama"

// Config holds the Ollama connection settings.
type Config struct {
	// Host is the server URL; empty falls back to OLLAMA_HOST.
	Host   string
	Model  string
	Logger *zap.Logger
}

func newClient(host string) (*api.Client, error) {
	if host == "" {
		c, err := api.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("ollama client from environment: %w", err)
		}
		return c, nil
	}
	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama host %q: %w", host, err)
	}
	return api.NewClient(u, http.DefaultClient), nil
}

// describe renders an Ollama status error with its server message.
func describe(err error) string {
	var se api.StatusError
	if errors.As(err, &se) {
		return fmt.Sprintf("ollama error %d: %s", se.StatusCode, se.ErrorMessage)
	}
	return "ollama request failed: " + err.Error()
}
