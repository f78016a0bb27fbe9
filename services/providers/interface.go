package providers

import (
	"context"
	"errors"
	"time"
)

// Provider represents a chat completion backend
type Provider interface {
	// Name returns the provider name (e.g., "openai", "ollama")
	Name() string

	// ChatCompletion performs a single chat completion request. Implementations
	// must not retry internally.
	ChatCompletion(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// IsAvailable checks if the provider is currently reachable
	IsAvailable(ctx context.Context) bool
}

// Message roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatRequest represents a chat completion request
type ChatRequest struct {
	// Model identifier (e.g., "gemma2", "gpt-4o-mini")
	Model string `json:"model"`

	// Messages in the conversation
	Messages []Message `json:"messages"`

	// MaxTokens limits the response length
	MaxTokens int `json:"max_tokens,omitempty"`

	// Temperature controls randomness (0.0 to 2.0)
	Temperature float32 `json:"temperature,omitempty"`
}

// Message represents a single message in a conversation
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatResponse represents a chat completion response
type ChatResponse struct {
	ID       string        `json:"id"`
	Model    string        `json:"model"`
	Choices  []Choice      `json:"choices"`
	Usage    Usage         `json:"usage"`
	Provider string        `json:"provider"`
	Latency  time.Duration `json:"latency"`
}

// Choice represents a completion choice
type Choice struct {
	Index int `json:"index"`

	Message Message `json:"message"`

	// Values: "stop", "length", "content_filter"
	FinishReason string `json:"finish_reason"`
}

// Usage represents token usage statistics
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ProviderConfig holds common configuration for providers
type ProviderConfig struct {
	// APIKey for authentication
	APIKey string

	// BaseURL for the API (optional override, e.g. an Ollama /v1 endpoint)
	BaseURL string

	// Timeout bounds a single request
	Timeout time.Duration

	// OrgID for organization-specific endpoints
	OrgID string
}

// ProviderError represents an error from a provider
type ProviderError struct {
	// Provider that generated the error
	Provider string

	// Code is the error code
	Code string

	// Message is the error message
	Message string

	// StatusCode is the HTTP status code (if applicable)
	StatusCode int

	// Retryable indicates if the request can be retried
	Retryable bool

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface
func (e *ProviderError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap implements error unwrapping
func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// NewProviderError creates a new provider error
func NewProviderError(provider, code, message string, statusCode int, retryable bool, cause error) *ProviderError {
	return &ProviderError{
		Provider:   provider,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Retryable:  retryable,
		Cause:      cause,
	}
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr.Retryable
	}
	return false
}
