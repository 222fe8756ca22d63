package llm

import (
	"fmt"

	"github.com/tmc/langchaingo/llms"
	lcollama "github.com/tmc/langchaingo/llms/ollama"
	lcopenai "github.com/tmc/langchaingo/llms/openai"

	"github.com/fabfab/support-agent/config"
)

// NewChainModel builds the langchaingo model backing the fallback retrieval
// chain. It targets the same provider and model as NewClient.
func NewChainModel(cfg config.Config) (llms.Model, error) {
	opts := optionsFromConfig(cfg)

	switch opts.Provider {
	case config.ProviderOllama:
		model, err := lcollama.New(
			lcollama.WithServerURL(opts.OllamaHost),
			lcollama.WithModel(opts.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("create ollama chain model: %w", err)
		}
		return model, nil
	case config.ProviderGroq, config.ProviderOpenAI:
		if opts.APIKey == "" {
			return nil, fmt.Errorf("%s provider selected but API key not set", opts.Provider)
		}
		lcOpts := []lcopenai.Option{
			lcopenai.WithToken(opts.APIKey),
			lcopenai.WithModel(opts.Model),
		}
		if opts.BaseURL != "" {
			lcOpts = append(lcOpts, lcopenai.WithBaseURL(opts.BaseURL))
		}
		model, err := lcopenai.New(lcOpts...)
		if err != nil {
			return nil, fmt.Errorf("create openai chain model: %w", err)
		}
		return model, nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", opts.Provider)
	}
}
