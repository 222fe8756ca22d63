package app

import (
	"context"
	"io"
	"log"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabfab/support-agent/config"
	"github.com/fabfab/support-agent/keyword"
)

func offlineConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	return config.Config{
		ProductName:  "DVSum",
		DataDir:      dir,
		LLM:          config.LLMConfig{Provider: config.ProviderGroq, Model: "llama-3.3-70b-versatile"},
		Embeddings:   config.EmbeddingConfig{Provider: config.ProviderOllama, Model: "nomic-embed-text", Dimension: 768},
		OllamaHost:   "http://127.0.0.1:1",
		VectorStore:  config.VectorStoreNone,
		ArticlesDB:   filepath.Join(dir, "articles.db"),
		ArticlesJSON: filepath.Join(dir, "articles.json"),
	}
}

func TestBuildSeedsArticleStoreFromJSON(t *testing.T) {
	cfg := offlineConfig(t)
	require.NoError(t, keyword.WriteJSON(cfg.ArticlesJSON, []keyword.Article{
		{Title: "Configure SAWS gateway", URL: "https://help.example.com/1", Content: "Install the gateway and open port 443.", ScrapedAt: "2025-01-01"},
		{Title: "Reset password", URL: "https://help.example.com/2", Content: "Use the login page reset link.", ScrapedAt: "2025-01-01"},
	}))

	ctx := context.Background()
	a, err := Build(ctx, cfg, log.New(io.Discard, "", 0))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	assert.True(t, a.Keyword.Available())
	assert.Equal(t, 2, a.Keyword.ArticleCount())

	count, err := a.Articles.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	assert.False(t, a.Chat.Ready(), "llm without api key stays disabled")
	assert.False(t, a.Semantic.Available())
}

func TestBuildWithoutOptionalComponents(t *testing.T) {
	cfg := offlineConfig(t)

	a, err := Build(context.Background(), cfg, log.New(io.Discard, "", 0))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	assert.False(t, a.Keyword.Available())

	deps := a.API()
	assert.Nil(t, deps.Tickets)
	assert.Nil(t, deps.Ingest)
	assert.Nil(t, deps.Clear)
	assert.NotNil(t, deps.Chat)
	assert.Equal(t, config.VectorStoreNone, deps.SemanticStore)

	assert.Error(t, a.Clear(context.Background()))
}

func TestBuildWithBadgerStoreEnablesIngestion(t *testing.T) {
	cfg := offlineConfig(t)
	cfg.VectorStore = config.VectorStoreBadger
	cfg.BadgerDir = filepath.Join(cfg.DataDir, "vectors")
	cfg.Freshservice = config.FreshserviceConfig{Domain: "example", APIKey: "key"}

	a, err := Build(context.Background(), cfg, log.New(io.Discard, "", 0))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	assert.True(t, a.Semantic.Available())
	chunks, err := a.Semantic.ChunkCount(context.Background())
	require.NoError(t, err)
	assert.Zero(t, chunks)

	deps := a.API()
	assert.NotNil(t, deps.Ingest)
	assert.NotNil(t, deps.Clear)
	assert.NotNil(t, deps.Tickets)
	assert.NoError(t, a.Clear(context.Background()))
}

func TestBuildRejectsInvalidVocabulary(t *testing.T) {
	cfg := offlineConfig(t)
	cfg.VocabularyFile = filepath.Join(cfg.DataDir, "missing.yaml")

	_, err := Build(context.Background(), cfg, log.New(io.Discard, "", 0))
	assert.Error(t, err)
}
