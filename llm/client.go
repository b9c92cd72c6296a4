// Package llm wraps the chat completion providers used for intent
// classification and brief copywriting.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/liushuangls/go-anthropic/v2"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// ErrEmptyResponse is returned when the provider replies without text.
var ErrEmptyResponse = errors.New("llm returned no content")

// Client sends one system + user prompt and returns the reply text.
type Client interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// OpenAIClient talks to an OpenAI-compatible chat endpoint.
type OpenAIClient struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// NewOpenAIClient creates a client. baseURL may be empty for the public API.
func NewOpenAIClient(apiKey, baseURL, model string, logger *zap.Logger) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimSuffix(baseURL, "/")
	}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		logger: logger.Named("llm"),
	}
}

// Complete implements Client.
func (c *OpenAIClient) Complete(ctx context.Context, system, prompt string) (string, error) {
	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0.3,
	})
	if err != nil {
		c.logger.Warn("chat completion failed", zap.Duration("elapsed", time.Since(start)), zap.Error(err))
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", ErrEmptyResponse
	}

	c.logger.Debug("chat completion",
		zap.String("model", c.model),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Duration("elapsed", time.Since(start)))
	return resp.Choices[0].Message.Content, nil
}

// AnthropicClient talks to the Anthropic messages API.
type AnthropicClient struct {
	client    *anthropic.Client
	model     string
	maxTokens int
	logger    *zap.Logger
}

// NewAnthropicClient creates a client for model.
func NewAnthropicClient(apiKey, model string, logger *zap.Logger, opts ...anthropic.ClientOption) *AnthropicClient {
	return &AnthropicClient{
		client:    anthropic.NewClient(apiKey, opts...),
		model:     model,
		maxTokens: 4000,
		logger:    logger.Named("llm"),
	}
}

// Complete implements Client. The system prompt leads the user turn.
func (c *AnthropicClient) Complete(ctx context.Context, system, prompt string) (string, error) {
	text := prompt
	if system != "" {
		text = system + "\n\n" + prompt
	}

	start := time.Now()
	resp, err := c.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages: []anthropic.Message{
			{Role: anthropic.RoleUser, Content: []anthropic.MessageContent{
				{Type: "text", Text: &text},
			}},
		},
	})
	if err != nil {
		c.logger.Warn("messages request failed", zap.Duration("elapsed", time.Since(start)), zap.Error(err))
		return "", fmt.Errorf("anthropic messages: %w", err)
	}

	for _, block := range resp.Content {
		if block.Type == "text" && block.Text != nil && *block.Text != "" {
			c.logger.Debug("messages request", zap.String("model", c.model), zap.Duration("elapsed", time.Since(start)))
			return *block.Text, nil
		}
	}
	return "", ErrEmptyResponse
}
