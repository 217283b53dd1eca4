// internal/workers/matching/respond-suggestion/handler_test.go
package respondsuggestion

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roommate-match-workers/internal/common/config"
	apperrors "roommate-match-workers/internal/common/errors"
	"roommate-match-workers/internal/common/logger"
	"roommate-match-workers/internal/matching/reconcile"
	"roommate-match-workers/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

type stubResponder struct {
	got    Input
	result *reconcile.Result
	err    error
}

func (s *stubResponder) Respond(_ context.Context, id, user string, action reconcile.Action) (*reconcile.Result, error) {
	s.got = Input{SuggestionID: id, UserID: user, Action: string(action)}
	return s.result, s.err
}

func newTestHandler(t *testing.T, r Responder) *Handler {
	return NewHandler(LoadConfig(config.WorkerConfig{Timeout: 5000}), r, logger.NewTestLogger(t))
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_Confirmed(t *testing.T) {
	r := &stubResponder{result: &reconcile.Result{
		Suggestion: &models.Suggestion{ID: "s1", Status: models.StatusConfirmed},
		Match:      &models.MatchRecord{ID: "m1"},
		State:      reconcile.StateConfirmed,
	}}
	h := newTestHandler(t, r)

	out, err := h.Execute(context.Background(), &Input{SuggestionID: "s1", UserID: "u1", Action: "accept"})
	require.NoError(t, err)
	assert.Equal(t, Input{SuggestionID: "s1", UserID: "u1", Action: "accept"}, r.got)
	assert.Equal(t, "confirmed", out.SuggestionStatus)
	assert.Equal(t, "m1", out.MatchID)
	assert.True(t, out.Matched)
}

func TestHandler_Execute_Pending(t *testing.T) {
	r := &stubResponder{result: &reconcile.Result{
		Suggestion: &models.Suggestion{ID: "s1", Status: models.StatusAccepted},
		State:      reconcile.StatePending,
	}}

	out, err := newTestHandler(t, r).Execute(context.Background(), &Input{SuggestionID: "s1", UserID: "u1", Action: "accept"})
	require.NoError(t, err)
	assert.False(t, out.Matched)
	assert.Empty(t, out.MatchID)
	assert.Equal(t, "pending", out.State)
}

func TestHandler_Execute_PropagatesErrors(t *testing.T) {
	r := &stubResponder{err: apperrors.NewSuggestionExpiredError("s1")}

	_, err := newTestHandler(t, r).Execute(context.Background(), &Input{SuggestionID: "s1", UserID: "u1", Action: "accept"})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeSuggestionExpired))
}

// ==========================
// Input Validation Tests
// ==========================

func TestInputSchema(t *testing.T) {
	tests := []struct {
		name  string
		input string
		valid bool
	}{
		{"accept", `{"suggestionId":"s1","userId":"u1","action":"accept"}`, true},
		{"decline", `{"suggestionId":"s1","userId":"u1","action":"decline"}`, true},
		{"missing user", `{"suggestionId":"s1","action":"accept"}`, false},
		{"empty id", `{"suggestionId":"","userId":"u1","action":"accept"}`, false},
		{"unknown action", `{"suggestionId":"s1","userId":"u1","action":"later"}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := schema.Validate(tt.input)
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidRequest))
		})
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	assert.Equal(t, 30*time.Second, LoadConfig(config.WorkerConfig{}).Timeout)
	assert.Equal(t, 2*time.Second, LoadConfig(config.WorkerConfig{Timeout: 2000}).Timeout)
}
