package llm

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/seo-forecaster/backend/config"
)

// FromConfig returns the configured chat client, or nil when no provider
// has credentials. Callers treat nil as "use deterministic fallbacks".
func FromConfig(cfg config.LLMConfig, logger *zap.Logger) Client {
	switch strings.ToLower(cfg.Provider) {
	case "claude", "anthropic":
		if cfg.AnthropicAPIKey != "" {
			return WithTimeout(NewAnthropicClient(cfg.AnthropicAPIKey, cfg.AnthropicModel, logger), cfg.Timeout)
		}
		if cfg.OpenAIAPIKey != "" {
			logger.Warn("anthropic key missing, falling back to openai")
			return WithTimeout(NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel, logger), cfg.Timeout)
		}
	case "openai":
		if cfg.OpenAIAPIKey != "" {
			return WithTimeout(NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel, logger), cfg.Timeout)
		}
	}
	return nil
}

type timeoutClient struct {
	Client
	timeout time.Duration
}

func (c timeoutClient) Complete(ctx context.Context, system, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.Client.Complete(ctx, system, prompt)
}

// WithTimeout bounds every completion of c by d. A non-positive d returns
// c unchanged.
func WithTimeout(c Client, d time.Duration) Client {
	if d <= 0 {
		return c
	}
	return timeoutClient{Client: c, timeout: d}
}
