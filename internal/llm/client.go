// Package llm provides completion clients for the language model providers
// the engine can route turns through. All providers implement the same
// narrow Client interface; provider selection happens once at startup.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Client defines the interface for LLM providers.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// ErrNotConfigured reports a client that cannot reach its provider because
// no API key was supplied. Callers surface this as a configuration problem
// rather than a transient failure.
var ErrNotConfigured = errors.New("api key not configured")

// Options selects and configures a provider client.
type Options struct {
	Provider string // openai, openrouter, anthropic, gemini
	APIKey   string
	Model    string
	BaseURL  string
	Timeout  time.Duration
	Retries  int
	Logger   *zap.Logger
}

// New builds the provider client named by opts.Provider. The returned
// client is safe for concurrent use.
func New(ctx context.Context, opts Options) (Client, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Provider)) {
	case "openai", "openrouter", "":
		return NewOpenAIClientWithConfig(OpenAIConfig{
			APIKey:  opts.APIKey,
			BaseURL: opts.BaseURL,
			Model:   opts.Model,
			Timeout: opts.Timeout,
			Retries: opts.Retries,
			Logger:  opts.Logger,
		}), nil
	case "anthropic":
		return NewAnthropicClientWithConfig(AnthropicConfig{
			APIKey:  opts.APIKey,
			BaseURL: opts.BaseURL,
			Model:   opts.Model,
			Timeout: opts.Timeout,
			Logger:  opts.Logger,
		}), nil
	case "gemini":
		return NewGeminiClient(ctx, GeminiConfig{
			APIKey:  opts.APIKey,
			Model:   opts.Model,
			Timeout: opts.Timeout,
			Logger:  opts.Logger,
		})
	default:
		return nil, fmt.Errorf("unknown llm provider: %q", opts.Provider)
	}
}
