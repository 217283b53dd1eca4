// Package errors provides the standardized error taxonomy shared by the HTTP API
// and the Zeebe workers.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden    ErrorCode = "FORBIDDEN"

	ErrCodeSuggestionNotFound  ErrorCode = "SUGGESTION_NOT_FOUND"
	ErrCodeChatNotFound        ErrorCode = "CHAT_NOT_FOUND"
	ErrCodeFeaturesUnavailable ErrorCode = "FEATURES_UNAVAILABLE"

	ErrCodeInvalidRequest    ErrorCode = "INVALID_REQUEST"
	ErrCodeSuggestionExpired ErrorCode = "SUGGESTION_EXPIRED"
	ErrCodeRateLimited       ErrorCode = "RATE_LIMITED"

	ErrCodeUpstreamFailure    ErrorCode = "UPSTREAM_FAILURE"
	ErrCodePersistenceFailure ErrorCode = "PERSISTENCE_FAILURE"
	ErrCodeConcurrentUpdate   ErrorCode = "CONCURRENT_UPDATE"
	ErrCodeTimeout            ErrorCode = "TIMEOUT"
	ErrCodeInternal           ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

func newError(code ErrorCode, message, details string, retryable bool, cause error) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// NewUnauthorizedError is returned when no verified session is present.
func NewUnauthorizedError(details string) *StandardError {
	return newError(ErrCodeUnauthorized, "Authentication required", details, false, nil)
}

// NewForbiddenError is returned when the acting user may not touch the resource.
func NewForbiddenError(details string) *StandardError {
	return newError(ErrCodeForbidden, "Not allowed to act on this resource", details, false, nil)
}

func NewSuggestionNotFoundError(suggestionID string) *StandardError {
	return newError(ErrCodeSuggestionNotFound, "Suggestion not found",
		fmt.Sprintf("suggestionId: %s", suggestionID), false, nil)
}

func NewChatNotFoundError(chatID string) *StandardError {
	return newError(ErrCodeChatNotFound, "Chat not found",
		fmt.Sprintf("chatId: %s", chatID), false, nil)
}

func NewFeaturesUnavailableError(userID string) *StandardError {
	return newError(ErrCodeFeaturesUnavailable, "Compatibility features unavailable for member",
		fmt.Sprintf("userId: %s", userID), false, nil)
}

// NewInvalidRequestError covers malformed bodies, self-matches and duplicate members.
func NewInvalidRequestError(details string) *StandardError {
	return newError(ErrCodeInvalidRequest, "Invalid request", details, false, nil)
}

func NewSuggestionExpiredError(suggestionID string) *StandardError {
	return newError(ErrCodeSuggestionExpired, "Suggestion has expired",
		fmt.Sprintf("suggestionId: %s", suggestionID), false, nil)
}

// NewRateLimitedError carries the retry-after hint in Metadata["retryAfterSeconds"].
func NewRateLimitedError(retryAfter time.Duration) *StandardError {
	e := newError(ErrCodeRateLimited, "Too many requests, try again later",
		fmt.Sprintf("retryAfter: %s", retryAfter), false, nil)
	e.Metadata = map[string]interface{}{"retryAfterSeconds": int(retryAfter.Seconds() + 0.999)}
	return e
}

// NewUpstreamFailureError wraps a failed call to chat, notification, blocklist or event sinks.
func NewUpstreamFailureError(service string, err error) *StandardError {
	return newError(ErrCodeUpstreamFailure, fmt.Sprintf("Upstream service %s failed", service),
		err.Error(), true, err)
}

// NewPersistenceFailureError wraps a failed Suggestion Store call.
func NewPersistenceFailureError(operation string, err error) *StandardError {
	return newError(ErrCodePersistenceFailure, "Storage operation failed",
		fmt.Sprintf("operation: %s, error: %s", operation, err.Error()), true, err)
}

func NewConcurrentUpdateError(details string) *StandardError {
	return newError(ErrCodeConcurrentUpdate, "Concurrent update, retry the request", details, true, nil)
}

func NewTimeoutError(service string, err error) *StandardError {
	return newError(ErrCodeTimeout, fmt.Sprintf("%s timed out", service), err.Error(), true, err)
}

func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Unexpected error", err.Error(), false, err)
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// GetRetryCount returns the recommended job retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodePersistenceFailure,
		ErrCodeUpstreamFailure:
		return 3

	case ErrCodeConcurrentUpdate,
		ErrCodeTimeout:
		return 2

	default:
		return 0 // Business errors: no retry
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      string(stdErr.Code),
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// ==========================
// 5. HTTP Mapping
// ==========================

// ErrorBody is the JSON envelope returned by the HTTP API.
type ErrorBody struct {
	Error ErrorPayload `json:"error"`
}

type ErrorPayload struct {
	Code     ErrorCode              `json:"code"`
	Message  string                 `json:"message"`
	Details  string                 `json:"details,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// HTTPStatus maps a code to the response status.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeSuggestionNotFound, ErrCodeChatNotFound, ErrCodeFeaturesUnavailable:
		return http.StatusNotFound
	case ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case ErrCodeSuggestionExpired:
		return http.StatusGone
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case ErrCodeConcurrentUpdate:
		return http.StatusConflict
	case ErrCodeUpstreamFailure:
		return http.StatusBadGateway
	case ErrCodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// ToResponse renders the error for callers. Server-side failures collapse to a
// generic message and details are only kept in development mode.
func (e *StandardError) ToResponse(devMode bool) ErrorBody {
	payload := ErrorPayload{Code: e.Code, Message: e.Message, Metadata: e.Metadata}
	if HTTPStatus(e.Code) >= http.StatusInternalServerError {
		payload.Message = "Failed to process request"
	}
	if devMode {
		payload.Details = e.Details
	}
	return ErrorBody{Error: payload}
}

// ==========================
// 6. Utility Functions
// ==========================

// As extracts a StandardError from an error chain.
func As(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// Normalize always returns a StandardError, wrapping unknown errors as internal.
func Normalize(err error) *StandardError {
	if stdErr, ok := As(err); ok {
		return stdErr
	}
	return NewInternalError(err)
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	stdErr, ok := As(err)
	return ok && stdErr.Code == code
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case codeStr == string(ErrCodeUnauthorized) || codeStr == string(ErrCodeForbidden):
		return "AUTH"
	case strings.Contains(codeStr, "NOT_FOUND") || strings.Contains(codeStr, "UNAVAILABLE"):
		return "LOOKUP"
	case strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "EXPIRED"):
		return "VALIDATION"
	case strings.Contains(codeStr, "RATE"):
		return "THROTTLING"
	case strings.Contains(codeStr, "PERSISTENCE") || strings.Contains(codeStr, "CONCURRENT"):
		return "STORAGE"
	case strings.Contains(codeStr, "UPSTREAM") || strings.Contains(codeStr, "TIMEOUT"):
		return "UPSTREAM"
	default:
		return "OTHER"
	}
}
