package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeUnauthorized, http.StatusUnauthorized},
		{ErrCodeForbidden, http.StatusForbidden},
		{ErrCodeSuggestionNotFound, http.StatusNotFound},
		{ErrCodeChatNotFound, http.StatusNotFound},
		{ErrCodeInvalidRequest, http.StatusBadRequest},
		{ErrCodeSuggestionExpired, http.StatusGone},
		{ErrCodeRateLimited, http.StatusTooManyRequests},
		{ErrCodeConcurrentUpdate, http.StatusConflict},
		{ErrCodePersistenceFailure, http.StatusInternalServerError},
		{ErrCodeInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.code))
		})
	}
}

func TestToResponse_HidesDetailsOutsideDevelopment(t *testing.T) {
	err := NewPersistenceFailureError("update suggestion", fmt.Errorf("pq: connection refused"))

	prod := err.ToResponse(false)
	assert.Equal(t, ErrCodePersistenceFailure, prod.Error.Code)
	assert.Equal(t, "Failed to process request", prod.Error.Message)
	assert.Empty(t, prod.Error.Details)

	dev := err.ToResponse(true)
	assert.Contains(t, dev.Error.Details, "connection refused")
}

func TestToResponse_KeepsClientMessages(t *testing.T) {
	body := NewInvalidRequestError("cannot match with yourself").ToResponse(false)
	assert.Equal(t, "Invalid request", body.Error.Message)
	assert.Empty(t, body.Error.Details)
}

func TestRateLimitedError_RetryAfter(t *testing.T) {
	err := NewRateLimitedError(90 * time.Second)
	assert.Equal(t, 90, err.Metadata["retryAfterSeconds"])
	assert.False(t, err.Retryable)
}

func TestAsAndNormalize(t *testing.T) {
	cause := stderrors.New("boom")
	wrapped := fmt.Errorf("accept: %w", NewPersistenceFailureError("load", cause))

	stdErr, ok := As(wrapped)
	require.True(t, ok)
	assert.Equal(t, ErrCodePersistenceFailure, stdErr.Code)
	assert.True(t, stderrors.Is(wrapped, cause))
	assert.True(t, HasCode(wrapped, ErrCodePersistenceFailure))

	internal := Normalize(stderrors.New("plain"))
	assert.Equal(t, ErrCodeInternal, internal.Code)
	assert.Equal(t, "plain", internal.Details)
}

func TestConvertToBPMNError(t *testing.T) {
	retryable := ConvertToBPMNError(NewPersistenceFailureError("save", stderrors.New("x")))
	assert.Equal(t, "PERSISTENCE_FAILURE", retryable.Code)
	assert.Equal(t, 3, retryable.Retries)
	assert.Equal(t, "PERSISTENCE_FAILURE", retryable.ToErrorVariables()["originalErrorCode"])

	business := ConvertToBPMNError(NewForbiddenError("not a member"))
	assert.Equal(t, 0, business.Retries)
	assert.False(t, business.Retryable)
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "AUTH", GetErrorCategory(ErrCodeForbidden))
	assert.Equal(t, "LOOKUP", GetErrorCategory(ErrCodeSuggestionNotFound))
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeSuggestionExpired))
	assert.Equal(t, "THROTTLING", GetErrorCategory(ErrCodeRateLimited))
	assert.Equal(t, "STORAGE", GetErrorCategory(ErrCodeConcurrentUpdate))
	assert.Equal(t, "UPSTREAM", GetErrorCategory(ErrCodeUpstreamFailure))
	assert.Equal(t, "OTHER", GetErrorCategory(ErrCodeInternal))
	assert.True(t, IsRetryableErrorCode(ErrCodeTimeout))
	assert.False(t, IsRetryableErrorCode(ErrCodeInvalidRequest))
}
