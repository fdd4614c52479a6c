package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/hoanghai1803/minernews/internal/models"
)

// AIProvider is the interface that all LLM providers must implement.
type AIProvider interface {
	// Analyze returns the model's free-text analysis of the article.
	// Failures are reported as *RequestError.
	Analyze(ctx context.Context, article models.Article) (string, error)

	// Model returns the model identifier recorded in reports.
	Model() string
}

// ProviderConfig holds the configuration needed to create an AI provider.
type ProviderConfig struct {
	Provider string // "gemini" | "anthropic" | "openai"
	APIKey   string
	Model    string
	BaseURL  string        // optional endpoint override
	Timeout  time.Duration // HTTP client timeout, 0 means 60s
}

const defaultHTTPTimeout = 60 * time.Second

// Default model per provider, used when none is configured.
var defaultModels = map[string]string{
	"gemini":    "gemini-2.5-flash",
	"anthropic": "claude-haiku-4-5",
	"openai":    "gpt-4o-mini",
}

// DefaultModel returns the default model for a provider, or "" if unknown.
func DefaultModel(provider string) string {
	return defaultModels[provider]
}

// NewProvider creates the appropriate provider based on config. An empty
// API key yields ErrMissingCredentials.
func NewProvider(ctx context.Context, cfg ProviderConfig) (AIProvider, error) {
	if _, ok := defaultModels[cfg.Provider]; !ok {
		return nil, fmt.Errorf("unsupported AI provider: %q", cfg.Provider)
	}
	if cfg.APIKey == "" {
		return nil, ErrMissingCredentials
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel(cfg.Provider)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultHTTPTimeout
	}

	switch cfg.Provider {
	case "anthropic":
		return NewAnthropicProvider(cfg), nil
	case "openai":
		return NewOpenAIProvider(cfg), nil
	default:
		return NewGeminiProvider(ctx, cfg)
	}
}
