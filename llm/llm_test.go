package llm

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

func TestNewClientDefaults(t *testing.T) {
	cfg := config.Config{
		LLM: config.LLMConfig{
			Provider: config.ProviderOllama,
			Model:    "llama3.1:8b",
		},
		OllamaHost: "http://localhost:11434",
	}

	client, err := NewClient(cfg)
	require.NoError(t, err)
	require.NotNil(t, client)
}

func TestNewClientGroqRequiresAPIKey(t *testing.T) {
	cfg := config.Config{
		LLM: config.LLMConfig{
			Provider: config.ProviderGroq,
			Model:    "llama-3.3-70b-versatile",
		},
	}

	_, err := NewClient(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GROQ_API_KEY")
}

func TestNewClientUnknownProvider(t *testing.T) {
	_, err := NewClient(config.Config{LLM: config.LLMConfig{Provider: "bard"}})
	require.Error(t, err)
}

func TestOpenAIClientSendsModelSettings(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer gsk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"Restart the gateway."},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	client := NewOpenAIClient(Options{
		Model:       "llama-3.3-70b-versatile",
		Temperature: 0.3,
		MaxTokens:   2048,
		APIKey:      "gsk-test",
		BaseURL:     server.URL,
	})

	answer, err := Prompt(context.Background(), client, "How do I fix the gateway?")
	require.NoError(t, err)
	assert.Equal(t, "Restart the gateway.", answer)
	assert.Equal(t, "llama-3.3-70b-versatile", captured["model"])
	assert.EqualValues(t, 2048, captured["max_tokens"])
}

func TestOllamaClientReportsAPIErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	client := NewOllamaClient(Options{Model: "missing", OllamaHost: server.URL})
	_, err := client.Generate(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model not found")
}

func TestOllamaClientReturnsMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)
		assert.Len(t, req.Messages, 2)
		_ = json.NewEncoder(w).Encode(ollamaChatResponse{
			Message: ollamaChatMessage{Role: RoleAssistant, Content: "hello"},
			Done:    true,
		})
	}))
	defer server.Close()

	client := NewOllamaClient(Options{Model: "llama3", OllamaHost: server.URL})
	answer, err := client.Generate(context.Background(), []Message{
		{Role: RoleSystem, Content: "be brief"},
		{Role: RoleUser, Content: "hi"},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", answer)
}

func TestOpenAIClientMapsRateLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limit reached","type":"tokens"}}`))
	}))
	defer server.Close()

	client := NewOpenAIClient(Options{Model: "llama-3.3-70b-versatile", APIKey: "gsk-test", BaseURL: server.URL})
	_, err := Prompt(context.Background(), client, "hi")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRateLimited)
}
