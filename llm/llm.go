package llm

import (
	"context"
	"fmt"

	"github.com/fabfab/support-agent/config"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string
	Content string
}

type Client interface {
	Generate(ctx context.Context, messages []Message) (string, error)
}

type Options struct {
	Provider    string
	Model       string
	Temperature float64
	MaxTokens   int

	OllamaHost string
	APIKey     string
	BaseURL    string
}

func optionsFromConfig(cfg config.Config) Options {
	return Options{
		Provider:    cfg.LLM.Provider,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		OllamaHost:  cfg.OllamaHost,
		APIKey:      cfg.LLMAPIKey(),
		BaseURL:     cfg.LLMBaseURL(),
	}
}

func NewClient(cfg config.Config) (Client, error) {
	opts := optionsFromConfig(cfg)

	switch opts.Provider {
	case config.ProviderOllama:
		return NewOllamaClient(opts), nil
	case config.ProviderGroq:
		if opts.APIKey == "" {
			return nil, fmt.Errorf("groq provider selected but GROQ_API_KEY not set")
		}
		return NewOpenAIClient(opts), nil
	case config.ProviderOpenAI:
		if opts.APIKey == "" {
			return nil, fmt.Errorf("openai provider selected but OPENAI_API_KEY not set")
		}
		return NewOpenAIClient(opts), nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", opts.Provider)
	}
}

// Prompt sends a single user message.
func Prompt(ctx context.Context, client Client, prompt string) (string, error) {
	return client.Generate(ctx, []Message{{Role: RoleUser, Content: prompt}})
}
