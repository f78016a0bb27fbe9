package generation

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/upb/character-chat/services"
	"github.com/upb/character-chat/services/providers"
)

// DefaultModel is the completion model served by the local Ollama endpoint
const DefaultModel = "gemma2"

// Client sends a rendered prompt to a completion provider as a single user
// message and returns the first choice verbatim. It performs one attempt
// per call; retries belong to the caller.
type Client struct {
	provider providers.Provider
	model    string
	timeout  time.Duration
	logger   *zap.Logger
}

// NewClient creates a generation client
func NewClient(provider providers.Provider, model string, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		provider: provider,
		model:    model,
		timeout:  timeout,
		logger:   logger,
	}
}

// Model returns the configured completion model
func (c *Client) Model() string {
	return c.model
}

// Complete returns the model's answer to prompt. Every failure, including a
// timeout or an empty choice list, is reported as GenerationFailure.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.provider.ChatCompletion(ctx, &providers.ChatRequest{
		Model: c.model,
		Messages: []providers.Message{
			{Role: providers.RoleUser, Content: prompt},
		},
	})
	if err != nil {
		c.logger.Warn("chat completion failed",
			zap.String("provider", c.provider.Name()),
			zap.String("model", c.model),
			zap.Error(err),
		)
		return "", services.NewGenerationFailure("chat completion failed", err, providers.IsRetryable(err))
	}
	if len(resp.Choices) == 0 {
		return "", services.NewGenerationFailure("completion returned no choices", nil, false)
	}

	c.logger.Debug("chat completion succeeded",
		zap.String("model", resp.Model),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
		zap.Duration("latency", resp.Latency),
	)
	return resp.Choices[0].Message.Content, nil
}
