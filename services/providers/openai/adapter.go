package openai

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/upb/character-chat/services/providers"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	providerName   = "openai"
)

// OpenAIAdapter implements the Provider interface for any OpenAI-compatible
// chat completion endpoint, including Ollama's /v1 API.
type OpenAIAdapter struct {
	config providers.ProviderConfig
	client *goopenai.Client
}

// NewOpenAIAdapter creates a new OpenAI adapter
func NewOpenAIAdapter(config providers.ProviderConfig) *OpenAIAdapter {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}

	clientConfig := goopenai.DefaultConfig(config.APIKey)
	clientConfig.BaseURL = config.BaseURL
	if config.OrgID != "" {
		clientConfig.OrgID = config.OrgID
	}
	clientConfig.HTTPClient = &http.Client{Timeout: config.Timeout}

	return &OpenAIAdapter{
		config: config,
		client: goopenai.NewClientWithConfig(clientConfig),
	}
}

// Name returns the provider name
func (a *OpenAIAdapter) Name() string {
	return providerName
}

// ChatCompletion performs exactly one chat completion request
func (a *OpenAIAdapter) ChatCompletion(ctx context.Context, req *providers.ChatRequest) (*providers.ChatResponse, error) {
	startTime := time.Now()

	resp, err := a.client.CreateChatCompletion(ctx, a.buildOpenAIRequest(req))
	if err != nil {
		return nil, a.classifyError(err)
	}

	return a.convertToUnifiedResponse(&resp, time.Since(startTime)), nil
}

// IsAvailable checks if the provider is currently available
func (a *OpenAIAdapter) IsAvailable(ctx context.Context) bool {
	_, err := a.client.ListModels(ctx)
	return err == nil
}

// buildOpenAIRequest converts a unified request to the SDK format
func (a *OpenAIAdapter) buildOpenAIRequest(req *providers.ChatRequest) goopenai.ChatCompletionRequest {
	messages := make([]goopenai.ChatCompletionMessage, len(req.Messages))
	for i, msg := range req.Messages {
		messages[i] = goopenai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}

	return goopenai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
}

// convertToUnifiedResponse converts an SDK response to unified format
func (a *OpenAIAdapter) convertToUnifiedResponse(resp *goopenai.ChatCompletionResponse, latency time.Duration) *providers.ChatResponse {
	out := &providers.ChatResponse{
		ID:       resp.ID,
		Model:    resp.Model,
		Provider: a.Name(),
		Choices:  make([]providers.Choice, len(resp.Choices)),
		Usage: providers.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
		Latency: latency,
	}

	for i, choice := range resp.Choices {
		out.Choices[i] = providers.Choice{
			Index: choice.Index,
			Message: providers.Message{
				Role:    choice.Message.Role,
				Content: choice.Message.Content,
			},
			FinishReason: string(choice.FinishReason),
		}
	}

	return out
}

// classifyError turns SDK and transport failures into provider errors.
// Server errors, rate limits and timeouts are retryable.
func (a *OpenAIAdapter) classifyError(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		status := apiErr.HTTPStatusCode
		code := apiErr.Type
		if code == "" {
			code = "API_ERROR"
		}
		return providers.NewProviderError(a.Name(), code, apiErr.Message, status, isRetryableStatus(status), err)
	}

	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		status := reqErr.HTTPStatusCode
		return providers.NewProviderError(a.Name(), "REQUEST_ERROR", "request failed", status, isRetryableStatus(status), err)
	}

	if errors.Is(err, context.Canceled) {
		return providers.NewProviderError(a.Name(), "CANCELED", "request canceled", 0, false, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return providers.NewProviderError(a.Name(), "TIMEOUT", "request timed out", 0, true, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return providers.NewProviderError(a.Name(), "HTTP_ERROR", "HTTP request failed", 0, true, err)
	}

	return providers.NewProviderError(a.Name(), "UNKNOWN_ERROR", "chat completion failed", 0, false, err)
}

func isRetryableStatus(status int) bool {
	return status >= 500 || status == http.StatusTooManyRequests
}
