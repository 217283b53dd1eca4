package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "roommate-match-workers/internal/common/errors"
)

func TestWriteError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		devMode    bool
		wantStatus int
		wantCode   apperrors.ErrorCode
		retryAfter string
		details    bool
	}{
		{"forbidden", apperrors.NewForbiddenError("not a member"), false, http.StatusForbidden, apperrors.ErrCodeForbidden, "", false},
		{"rate limited", apperrors.NewRateLimitedError(30 * time.Minute), false, http.StatusTooManyRequests, apperrors.ErrCodeRateLimited, "1800", false},
		{"plain error", errors.New("boom"), true, http.StatusInternalServerError, apperrors.ErrCodeInternal, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			status := WriteError(rec, tt.err, tt.devMode)

			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.retryAfter, rec.Header().Get("Retry-After"))

			var body apperrors.ErrorBody
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantCode, body.Error.Code)
			assert.Equal(t, tt.details, body.Error.Details != "")
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}

	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"valid", `{"name":"x"}`, ""},
		{"empty", ``, "request body is empty"},
		{"unknown field", `{"name":"x","admin":true}`, "malformed JSON"},
		{"two objects", `{"name":"x"}{"name":"y"}`, "single JSON object"},
		{"too large", `{"name":"` + strings.Repeat("a", MaxBodyBytes) + `"}`, "exceeds"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var p payload
			err := DecodeJSON(req, httptest.NewRecorder(), &p)
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, "x", p.Name)
				return
			}
			require.Error(t, err)
			assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidRequest))
			stdErr, _ := apperrors.As(err)
			assert.Contains(t, stdErr.Details, tt.wantErr)
		})
	}
}
