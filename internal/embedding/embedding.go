package embedding

import (
	"context"
	"fmt"
)

// Provider generates vector embeddings from text.
//
// Embed returns one vector per input, in input order. Callers that need
// batching, pacing or dimension checks wrap a Provider in a Batcher.
type Provider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// Config holds embedding provider configuration.
type Config struct {
	Provider  string `json:"provider"` // "gemini" or "openai"
	Endpoint  string `json:"endpoint"`
	Model     string `json:"model"`
	APIKey    string `json:"api_key"`
	Dimension int    `json:"dimension"`
	TaskType  string `json:"task_type"`
}

// NewProvider builds the Provider named by cfg.Provider.
func NewProvider(ctx context.Context, cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "", "gemini":
		return NewGeminiProvider(ctx, cfg)
	case "openai":
		return NewAPIProvider(cfg), nil
	default:
		return nil, fmt.Errorf("embedding: unknown provider %q", cfg.Provider)
	}
}
