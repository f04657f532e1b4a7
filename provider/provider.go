// Package provider supplies the embedding and reranking model clients used
// by indexing and retrieval. Both are optional collaborators: a nil Embedder
// indexes without vectors, a nil Reranker leaves the boosted ordering as is.
package provider

import (
	"context"
	"fmt"
)

// Embedder turns a batch of texts into fixed-width vectors, one per input.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Reranker scores documents against a query. The returned slice is parallel
// to docs; higher means more relevant.
type Reranker interface {
	Rerank(ctx context.Context, query string, docs []string) ([]float64, error)
}

// Config configures a model provider.
type Config struct {
	Provider    string  `json:"provider"` // none, local, ollama, openai, custom
	Model       string  `json:"model"`
	RerankModel string  `json:"rerank_model"`
	BaseURL     string  `json:"base_url"`
	APIKey      string  `json:"api_key"`
	Dim         int     `json:"dim"` // vector width for the local embedder
	RPS         float64 `json:"rps"` // request rate cap, 0 = unlimited
}

// NewEmbedder creates an embedder from configuration. Provider "none" (or
// empty) returns nil: indexing then proceeds without embeddings.
func NewEmbedder(cfg Config) (Embedder, error) {
	switch cfg.Provider {
	case "", "none":
		return nil, nil
	case "local":
		return NewLocal(cfg.Dim), nil
	case "ollama":
		return NewOllama(cfg), nil
	case "openai":
		if cfg.BaseURL == "" {
			cfg.BaseURL = "https://api.openai.com"
		}
		return NewOpenAICompat(cfg), nil
	case "custom":
		return NewOpenAICompat(cfg), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
	}
}

// NewReranker creates a reranker from configuration. Providers without a
// rerank model configured return nil: retrieval then keeps the boosted
// ordering.
func NewReranker(cfg Config) (Reranker, error) {
	if cfg.RerankModel == "" {
		return nil, nil
	}
	switch cfg.Provider {
	case "", "none", "local":
		return nil, nil
	case "ollama", "openai", "custom":
		if cfg.Provider == "openai" && cfg.BaseURL == "" {
			cfg.BaseURL = "https://api.openai.com"
		}
		return NewOpenAICompat(cfg), nil
	default:
		return nil, fmt.Errorf("unknown rerank provider: %s", cfg.Provider)
	}
}
