package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/upb/character-chat/services"
	"github.com/upb/character-chat/utils"
)

// statusForError maps a domain error type to its HTTP status
func statusForError(err error) int {
	switch {
	case services.IsKnowledgeNotFoundError(err), services.IsNotFoundError(err):
		return http.StatusNotFound
	case services.IsValidationError(err):
		return http.StatusBadRequest
	case services.IsUnauthorizedError(err):
		return http.StatusUnauthorized
	case services.IsForbiddenError(err):
		return http.StatusForbidden
	case services.IsConflictError(err):
		return http.StatusConflict
	case services.IsEncodingError(err):
		return http.StatusUnprocessableEntity
	case services.IsRetrievalUnavailableError(err):
		return http.StatusServiceUnavailable
	case services.IsGenerationError(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// HandleServiceError maps domain errors to HTTP responses
func HandleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	status := statusForError(err)
	message := err.Error()
	details := services.GetErrorDetails(err)

	if status == http.StatusInternalServerError {
		// Template, internal and unknown errors: log the cause, return a generic message
		logger.Error("internal server error",
			zap.String("error_type", string(services.GetErrorType(err))),
			zap.Error(err))
		message = "An internal error occurred"
		details = nil
	} else {
		logger.Debug("handled service error",
			zap.Int("status", status),
			zap.String("error_type", string(services.GetErrorType(err))),
			zap.Any("details", details))
	}

	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}

	if err := utils.WriteError(w, status, message, details); err != nil {
		logger.Error("failed to write error response", zap.Error(err))
	}
}

// HandleValidationError handles validation errors from request parsing
func HandleValidationError(w http.ResponseWriter, err error, logger *zap.Logger) {
	message := err.Error()
	if utils.IsValidationError(err) {
		message = "Validation failed"
	}
	if err := utils.WriteBadRequest(w, message, utils.FieldDetails(err)); err != nil {
		logger.Error("failed to write validation error response", zap.Error(err))
	}
}
