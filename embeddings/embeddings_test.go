package embeddings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabfab/support-agent/config"
)

func TestNewEmbedderRejectsUnknownProvider(t *testing.T) {
	_, err := NewEmbedder(config.Config{Embeddings: config.EmbeddingConfig{Provider: "cohere"}})
	require.Error(t, err)
}

func TestNewEmbedderOpenAIRequiresKey(t *testing.T) {
	_, err := NewEmbedder(config.Config{Embeddings: config.EmbeddingConfig{Provider: config.ProviderOpenAI}})
	require.Error(t, err)
}

func TestOllamaEmbedderChecksDimension(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)
		var req ollamaEmbedRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"gateway setup"}, req.Input)
		_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{Embeddings: [][]float32{{0.1, 0.2}}})
	}))
	defer server.Close()

	ok := NewOllamaEmbedder(Options{Model: "nomic-embed-text", Dimension: 2, OllamaHost: server.URL})
	vec, err := EmbedOne(context.Background(), ok, "gateway setup")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2}, vec)

	mismatch := NewOllamaEmbedder(Options{Model: "nomic-embed-text", Dimension: 3, OllamaHost: server.URL})
	_, err = mismatch.Embed(context.Background(), []string{"gateway setup"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dimension mismatch")
}

func TestOllamaEmbedderBatchesTexts(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		var req ollamaEmbedRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		out := make([][]float32, len(req.Input))
		for i := range out {
			out[i] = []float32{float32(i), 1}
		}
		_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{Embeddings: out})
	}))
	defer server.Close()

	embedder := NewOllamaEmbedder(Options{Dimension: 2, OllamaHost: server.URL})
	vectors, err := embedder.Embed(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Len(t, vectors, 3)
	assert.Equal(t, []float32{2, 1}, vectors[2])
	assert.Equal(t, 1, calls)
}

func TestOllamaEmbedderCountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{Embeddings: [][]float32{{1}}})
	}))
	defer server.Close()

	embedder := NewOllamaEmbedder(Options{OllamaHost: server.URL})
	_, err := embedder.Embed(context.Background(), []string{"a", "b"})
	require.Error(t, err)
}

func TestOpenAIEmbedderBuildsWithKey(t *testing.T) {
	embedder, err := NewEmbedder(config.Config{
		Embeddings:   config.EmbeddingConfig{Provider: config.ProviderOpenAI, Model: "text-embedding-3-small"},
		OpenAIAPIKey: "sk-test",
	})
	require.NoError(t, err)
	assert.NotNil(t, embedder)
}

func TestCheckDimensions(t *testing.T) {
	assert.NoError(t, checkDimensions("x", [][]float32{{1, 2}}, 0))
	assert.NoError(t, checkDimensions("x", [][]float32{{1, 2}}, 2))
	assert.Error(t, checkDimensions("x", [][]float32{{1}}, 2))
	assert.Error(t, checkDimensions("x", [][]float32{{}}, 2))
}

func TestOllamaEmbedderReportsStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{Error: "model not found"})
	}))
	defer server.Close()

	embedder := NewOllamaEmbedder(Options{OllamaHost: server.URL})
	_, err := embedder.Embed(context.Background(), []string{"x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model not found")
}
