package services

import (
	"errors"
	"fmt"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeUnauthorized ErrorType = "unauthorized"
	ErrorTypeForbidden    ErrorType = "forbidden"
	ErrorTypeConflict     ErrorType = "conflict"
	ErrorTypeInternal     ErrorType = "internal"

	// Pipeline errors
	ErrorTypeKnowledgeNotFound    ErrorType = "knowledge_not_found"
	ErrorTypeEncoding             ErrorType = "encoding"
	ErrorTypeRetrievalUnavailable ErrorType = "retrieval_unavailable"
	ErrorTypeGeneration           ErrorType = "generation"
	ErrorTypeTemplate             ErrorType = "template"
)

// detailRetryable marks a pipeline error whose cause is transient.
const detailRetryable = "retryable"

// DomainError represents a structured error with additional context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WithDetail adds a detail to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// Domain error variables. These are comparison targets for errors.Is;
// never attach details to them, build a fresh error with the New* helpers.

var (
	// Not Found Errors
	ErrUserNotFound       = NewDomainError(ErrorTypeNotFound, "user not found", nil)
	ErrCharacterNotFound  = NewDomainError(ErrorTypeNotFound, "character not found", nil)
	ErrHistoryLogNotFound = NewDomainError(ErrorTypeNotFound, "history log not found", nil)

	// Validation Errors
	ErrInvalidInput    = NewDomainError(ErrorTypeValidation, "invalid input", nil)
	ErrEmptyQuestion   = NewDomainError(ErrorTypeValidation, "question cannot be empty", nil)
	ErrInvalidFeedback = NewDomainError(ErrorTypeValidation, "feedback must be 'like' or 'dislike'", nil)

	// Authorization Errors
	ErrUnauthorized = NewDomainError(ErrorTypeUnauthorized, "unauthorized", nil)
	ErrInvalidToken = NewDomainError(ErrorTypeUnauthorized, "invalid authentication token", nil)
	ErrTokenExpired = NewDomainError(ErrorTypeUnauthorized, "authentication token expired", nil)

	// Permission Errors
	ErrForbidden               = NewDomainError(ErrorTypeForbidden, "access forbidden", nil)
	ErrCharacterNotOwned       = NewDomainError(ErrorTypeForbidden, "user does not own this character", nil)
	ErrInsufficientPermissions = NewDomainError(ErrorTypeForbidden, "insufficient permissions", nil)

	// Conflict Errors
	ErrConcurrentUpdate      = NewDomainError(ErrorTypeConflict, "concurrent update detected", nil)
	ErrUserExists            = NewDomainError(ErrorTypeConflict, "user already exists", nil)
	ErrCharacterExists       = NewDomainError(ErrorTypeConflict, "character short name already taken", nil)
	ErrCharacterAlreadyOwned = NewDomainError(ErrorTypeConflict, "user already owns this character", nil)

	// Internal Errors
	ErrInternal      = NewDomainError(ErrorTypeInternal, "internal server error", nil)
	ErrDatabaseError = NewDomainError(ErrorTypeInternal, "database error", nil)

	// Pipeline Errors
	ErrCharacterKnowledgeNotFound = NewDomainError(ErrorTypeKnowledgeNotFound, "no knowledge base for character", nil)
	ErrEncoding                   = NewDomainError(ErrorTypeEncoding, "failed to encode text", nil)
	ErrRetrievalUnavailable       = NewDomainError(ErrorTypeRetrievalUnavailable, "vector store unavailable", nil)
	ErrGenerationFailure          = NewDomainError(ErrorTypeGeneration, "generation failed", nil)
	ErrPromptTemplateMissing      = NewDomainError(ErrorTypeTemplate, "prompt template missing", nil)
)

// Pipeline error constructors

// NewKnowledgeNotFound reports that a character has no indexed knowledge collection.
func NewKnowledgeNotFound(collection string, err error) *DomainError {
	return NewDomainError(ErrorTypeKnowledgeNotFound, "no knowledge base for character", err).
		WithDetail("collection", collection)
}

// NewEncodingError reports an embedding failure.
func NewEncodingError(message string, err error) *DomainError {
	return NewDomainError(ErrorTypeEncoding, message, err)
}

// NewRetrievalUnavailable reports a transient vector store failure.
func NewRetrievalUnavailable(message string, err error) *DomainError {
	return NewDomainError(ErrorTypeRetrievalUnavailable, message, err).
		WithDetail(detailRetryable, true)
}

// NewGenerationFailure reports a completion endpoint failure. retryable
// should be true only for transient causes (timeouts, 5xx, 429).
func NewGenerationFailure(message string, err error, retryable bool) *DomainError {
	return NewDomainError(ErrorTypeGeneration, message, err).
		WithDetail(detailRetryable, retryable)
}

// NewTemplateMissing reports an unloadable or malformed prompt template.
func NewTemplateMissing(path string, err error) *DomainError {
	return NewDomainError(ErrorTypeTemplate, "prompt template missing", err).
		WithDetail("path", path)
}

// Error type checking helper functions

func isType(err error, errType ErrorType) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == errType
	}
	return false
}

// IsNotFoundError checks if an error is a not found error
func IsNotFoundError(err error) bool {
	return isType(err, ErrorTypeNotFound)
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return isType(err, ErrorTypeValidation)
}

// IsUnauthorizedError checks if an error is an unauthorized error
func IsUnauthorizedError(err error) bool {
	return isType(err, ErrorTypeUnauthorized)
}

// IsForbiddenError checks if an error is a forbidden error
func IsForbiddenError(err error) bool {
	return isType(err, ErrorTypeForbidden)
}

// IsConflictError checks if an error is a conflict error
func IsConflictError(err error) bool {
	return isType(err, ErrorTypeConflict)
}

// IsInternalError checks if an error is an internal error
func IsInternalError(err error) bool {
	return isType(err, ErrorTypeInternal)
}

// IsKnowledgeNotFoundError checks if an error reports a missing character knowledge base
func IsKnowledgeNotFoundError(err error) bool {
	return isType(err, ErrorTypeKnowledgeNotFound)
}

// IsEncodingError checks if an error is an embedding failure
func IsEncodingError(err error) bool {
	return isType(err, ErrorTypeEncoding)
}

// IsRetrievalUnavailableError checks if an error is a vector store failure
func IsRetrievalUnavailableError(err error) bool {
	return isType(err, ErrorTypeRetrievalUnavailable)
}

// IsGenerationError checks if an error is a completion endpoint failure
func IsGenerationError(err error) bool {
	return isType(err, ErrorTypeGeneration)
}

// IsTemplateError checks if an error is a prompt template failure
func IsTemplateError(err error) bool {
	return isType(err, ErrorTypeTemplate)
}

// IsRetryable reports whether a pipeline error was caused by a transient condition.
func IsRetryable(err error) bool {
	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		return false
	}
	retryable, _ := domainErr.Details[detailRetryable].(bool)
	return retryable
}

// GetErrorType returns the ErrorType of a domain error, or empty string if not a domain error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

// GetErrorDetails returns the details map of a domain error, or nil if not a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

// WrapError wraps an error with additional context
func WrapError(errType ErrorType, message string, err error) error {
	return NewDomainError(errType, message, err)
}

// WrapInternal wraps an error as an internal error
func WrapInternal(message string, err error) error {
	return NewDomainError(ErrorTypeInternal, message, err)
}
