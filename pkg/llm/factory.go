package llm

import (
	"context"
	"fmt"

	"github.com/valentinpelus/voiceboard/internal/logger"
)

// Factory creates LLM providers based on configuration
type Factory struct {
	config Config
}

// NewFactory creates a new provider factory
func NewFactory(config Config) *Factory {
	return &Factory{config: config}
}

// CreateProvider creates the configured LLM provider
func (f *Factory) CreateProvider(ctx context.Context) (Provider, error) {
	opts := Options{Temperature: f.config.Temperature, MaxTokens: f.config.MaxTokens}

	switch f.config.Provider {
	case "deepseek", "":
		if f.config.DeepSeekAPIKey == "" {
			return nil, fmt.Errorf("deepseek API key not configured")
		}
		p := NewDeepSeekProvider(f.config.DeepSeekURL, f.config.DeepSeekAPIKey, f.config.DeepSeekModel, opts)
		logger.Info("Using DeepSeek provider", "model", p.model, "endpoint", p.endpoint)
		return p, nil

	case "openai":
		if f.config.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openAI API key not configured")
		}
		p := NewOpenAIProvider(f.config.OpenAIURL, f.config.OpenAIAPIKey, f.config.OpenAIModel, opts)
		logger.Info("Using OpenAI provider", "model", p.model, "endpoint", p.endpoint)
		return p, nil

	case "ollama":
		if f.config.OllamaURL == "" {
			return nil, fmt.Errorf("ollama URL not configured")
		}
		p := NewOllamaProvider(f.config.OllamaURL, f.config.OllamaModel, opts)
		logger.Info("Using Ollama provider", "model", p.model, "url", p.baseURL)
		return p, nil

	case "anthropic", "claude":
		if f.config.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("anthropic API key not configured")
		}
		p := NewAnthropicProvider(f.config.AnthropicURL, f.config.AnthropicAPIKey, f.config.AnthropicModel, opts)
		logger.Info("Using Anthropic provider", "model", p.model)
		return p, nil

	case "bedrock", "aws":
		p, err := NewBedrockProvider(ctx, f.config.BedrockRegion, f.config.BedrockModel, opts)
		if err != nil {
			return nil, err
		}
		logger.Info("Using AWS Bedrock provider", "model", p.model, "region", p.region)
		return p, nil

	default:
		return nil, fmt.Errorf("unknown provider: %s (supported: deepseek, openai, ollama, anthropic, bedrock)", f.config.Provider)
	}
}
