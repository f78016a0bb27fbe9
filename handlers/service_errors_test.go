package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/upb/character-chat/services"
	"github.com/upb/character-chat/utils"
)

func TestHandleServiceError(t *testing.T) {
	logger := zap.NewNop()

	tests := []struct {
		name            string
		err             error
		expectedStatus  int
		expectedError   string
		expectedMessage string
	}{
		{
			name:           "character not found",
			err:            services.ErrCharacterNotFound,
			expectedStatus: http.StatusNotFound,
			expectedError:  "not_found",
		},
		{
			name:           "knowledge collection not found",
			err:            services.NewKnowledgeNotFound("nobody_info", nil),
			expectedStatus: http.StatusNotFound,
			expectedError:  "not_found",
		},
		{
			name:           "validation error",
			err:            services.ErrEmptyQuestion,
			expectedStatus: http.StatusBadRequest,
			expectedError:  "bad_request",
		},
		{
			name:           "unauthorized error",
			err:            services.ErrUnauthorized,
			expectedStatus: http.StatusUnauthorized,
			expectedError:  "unauthorized",
		},
		{
			name:           "character not owned",
			err:            services.ErrCharacterNotOwned,
			expectedStatus: http.StatusForbidden,
			expectedError:  "forbidden",
		},
		{
			name:           "concurrent update",
			err:            services.ErrConcurrentUpdate,
			expectedStatus: http.StatusConflict,
			expectedError:  "conflict",
		},
		{
			name:           "encoding failure",
			err:            services.NewEncodingError("embedding endpoint failed", errors.New("boom")),
			expectedStatus: http.StatusUnprocessableEntity,
			expectedError:  "unprocessable_entity",
		},
		{
			name:           "vector store unreachable",
			err:            services.NewRetrievalUnavailable("vector search failed", errors.New("dial tcp")),
			expectedStatus: http.StatusServiceUnavailable,
			expectedError:  "service_unavailable",
		},
		{
			name:           "generation failure",
			err:            services.NewGenerationFailure("chat completion failed", errors.New("502"), true),
			expectedStatus: http.StatusBadGateway,
			expectedError:  "bad_gateway",
		},
		{
			name:            "template error is hidden",
			err:             services.NewTemplateMissing("prompts/character.txt", errors.New("no such file")),
			expectedStatus:  http.StatusInternalServerError,
			expectedError:   "internal_error",
			expectedMessage: "An internal error occurred",
		},
		{
			name:            "internal error is hidden",
			err:             services.WrapInternal("failed to load user", errors.New("connection reset")),
			expectedStatus:  http.StatusInternalServerError,
			expectedError:   "internal_error",
			expectedMessage: "An internal error occurred",
		},
		{
			name:            "plain error",
			err:             errors.New("something odd"),
			expectedStatus:  http.StatusInternalServerError,
			expectedError:   "internal_error",
			expectedMessage: "An internal error occurred",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			HandleServiceError(w, tt.err, logger)

			assert.Equal(t, tt.expectedStatus, w.Code)

			var response utils.ErrorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
			assert.Equal(t, tt.expectedError, response.Error)
			if tt.expectedMessage != "" {
				assert.Equal(t, tt.expectedMessage, response.Message)
			} else {
				assert.Equal(t, tt.err.Error(), response.Message)
			}
		})
	}
}

func TestHandleServiceError_Details(t *testing.T) {
	w := httptest.NewRecorder()
	HandleServiceError(w, services.NewKnowledgeNotFound("nobody_info", nil), zap.NewNop())

	var response utils.ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "nobody_info", response.Details["collection"])
}

func TestHandleServiceError_RetryAfter(t *testing.T) {
	w := httptest.NewRecorder()
	HandleServiceError(w, services.NewRetrievalUnavailable("vector search timed out", nil), zap.NewNop())
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}

func TestHandleServiceError_Nil(t *testing.T) {
	w := httptest.NewRecorder()
	HandleServiceError(w, nil, zap.NewNop())
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestHandleValidationError(t *testing.T) {
	t.Run("field errors", func(t *testing.T) {
		w := httptest.NewRecorder()
		err := utils.ValidateStruct(ChatRequest{})
		HandleValidationError(w, err, zap.NewNop())

		assert.Equal(t, http.StatusBadRequest, w.Code)
		var response utils.ErrorResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, "Validation failed", response.Message)
		assert.Contains(t, response.Details, "question")
		assert.Contains(t, response.Details, "character_id")
	})

	t.Run("generic error", func(t *testing.T) {
		w := httptest.NewRecorder()
		HandleValidationError(w, errors.New("limit must be a non-negative integer"), zap.NewNop())

		var response utils.ErrorResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, "limit must be a non-negative integer", response.Message)
		assert.Nil(t, response.Details)
	})
}
