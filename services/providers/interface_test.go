package providers

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProviderError(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewProviderError("openai", "HTTP_ERROR", "request failed", 0, true, cause)

	assert.Equal(t, "request failed: connection reset", err.Error())
	assert.Equal(t, cause, errors.Unwrap(err))
	assert.True(t, errors.Is(err, cause))
}

func TestProviderError_NoCause(t *testing.T) {
	err := NewProviderError("openai", "EMPTY_RESPONSE", "no choices returned", 200, false, nil)
	assert.Equal(t, "no choices returned", err.Error())
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"retryable provider error", NewProviderError("openai", "server_error", "boom", 503, true, nil), true},
		{"non-retryable provider error", NewProviderError("openai", "invalid_request", "bad", 400, false, nil), false},
		{"wrapped retryable", fmt.Errorf("generate: %w", NewProviderError("openai", "TIMEOUT", "t", 0, true, nil)), true},
		{"plain error", errors.New("plain"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}
