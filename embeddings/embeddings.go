// Package embeddings turns chunk and query text into vectors for semantic
// search. Every provider checks the configured dimension so vectors always
// fit the store's column.
package embeddings

import (
	"context"
	"fmt"

	"github.com/fabfab/support-agent/config"
)

type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

type Options struct {
	Provider  string
	Model     string
	Dimension int

	OllamaHost    string
	OpenAIAPIKey  string
	OpenAIBaseURL string
}

func NewEmbedder(cfg config.Config) (Embedder, error) {
	opts := Options{
		Provider:      cfg.Embeddings.Provider,
		Model:         cfg.Embeddings.Model,
		Dimension:     cfg.Embeddings.Dimension,
		OllamaHost:    cfg.OllamaHost,
		OpenAIAPIKey:  cfg.OpenAIAPIKey,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
	}

	switch opts.Provider {
	case config.ProviderOllama:
		return NewOllamaEmbedder(opts), nil
	case config.ProviderOpenAI:
		if opts.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai provider selected but OPENAI_API_KEY not set")
		}
		return NewOpenAIEmbedder(opts)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", opts.Provider)
	}
}

func checkDimensions(provider string, vectors [][]float32, want int) error {
	if want <= 0 {
		return nil
	}
	for i, vec := range vectors {
		if len(vec) == 0 {
			return fmt.Errorf("%s returned an empty embedding at %d", provider, i)
		}
		if len(vec) != want {
			return fmt.Errorf("%s embedding dimension mismatch: expected %d, got %d", provider, want, len(vec))
		}
	}
	return nil
}

// EmbedOne embeds a single text, typically a search query.
func EmbedOne(ctx context.Context, embedder Embedder, text string) ([]float32, error) {
	vectors, err := embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, fmt.Errorf("embedder returned no vectors")
	}
	return vectors[0], nil
}
