package embeddings

import (
	"context"
	"fmt"

	lcembeddings "github.com/tmc/langchaingo/embeddings"
	lcopenai "github.com/tmc/langchaingo/llms/openai"
)

// openAIEmbedder serves any OpenAI-compatible embeddings endpoint through
// langchaingo, which batches and strips newlines before the call.
type openAIEmbedder struct {
	inner     lcembeddings.Embedder
	dimension int
}

func NewOpenAIEmbedder(opts Options) (Embedder, error) {
	clientOpts := []lcopenai.Option{
		lcopenai.WithToken(opts.OpenAIAPIKey),
		lcopenai.WithEmbeddingModel(opts.Model),
	}
	if opts.OpenAIBaseURL != "" {
		clientOpts = append(clientOpts, lcopenai.WithBaseURL(opts.OpenAIBaseURL))
	}

	client, err := lcopenai.New(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create openai embedding client: %w", err)
	}
	inner, err := lcembeddings.NewEmbedder(client, lcembeddings.WithStripNewLines(true))
	if err != nil {
		return nil, fmt.Errorf("create openai embedder: %w", err)
	}

	return &openAIEmbedder{inner: inner, dimension: opts.Dimension}, nil
}

func (e *openAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := e.inner.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("create openai embeddings: %w", err)
	}
	if err := checkDimensions("openai", vectors, e.dimension); err != nil {
		return nil, err
	}
	return vectors, nil
}
