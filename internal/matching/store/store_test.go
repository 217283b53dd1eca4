package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roommate-match-workers/internal/models"
)

// ==========================
// Test Helpers
// ==========================

func setupMockDB(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresStore(db), mock
}

var suggestionCols = []string{
	"id", "kind", "member_ids", "fit_index", "section_scores", "reasons", "status",
	"accepted_by", "run_id", "expires_at", "created_at",
}

// ==========================
// Suggestions
// ==========================

func TestGetSuggestionByID(t *testing.T) {
	s, mock := setupMockDB(t)
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	expires := created.Add(7 * 24 * time.Hour)

	mock.ExpectQuery("SELECT .+ FROM match_suggestions WHERE id = \\$1").
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows(suggestionCols).AddRow(
			"s1", "pair", "{a,b}", 82, []byte(`{"lifestyle":0.9}`), "{\"quiet evenings\"}", "accepted",
			"{a}", "run-1", expires, created,
		))

	got, err := s.GetSuggestionByID(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, models.KindPair, got.Kind)
	assert.Equal(t, []string{"a", "b"}, got.MemberIDs)
	assert.Equal(t, []string{"a"}, got.AcceptedBy)
	assert.Equal(t, []string{"quiet evenings"}, got.Reasons)
	assert.Equal(t, models.StatusAccepted, got.Status)
	assert.InDelta(t, 0.9, got.SectionScores["lifestyle"], 1e-9)
	require.NotNil(t, got.ExpiresAt)
	assert.True(t, got.ExpiresAt.Equal(expires))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSuggestionByID_NotFound(t *testing.T) {
	s, mock := setupMockDB(t)
	mock.ExpectQuery("SELECT .+ FROM match_suggestions").WillReturnError(sql.ErrNoRows)

	_, err := s.GetSuggestionByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetSuggestionsForMembers(t *testing.T) {
	tests := []struct {
		name            string
		includeResolved bool
		wantStatusSQL   bool
	}{
		{name: "open only", includeResolved: false, wantStatusSQL: true},
		{name: "resolved included", includeResolved: true, wantStatusSQL: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := setupMockDB(t)
			now := time.Now()

			pattern := "cardinality\\(member_ids\\) = \\$2 ORDER BY"
			if tt.wantStatusSQL {
				pattern = "cardinality\\(member_ids\\) = \\$2 AND status IN \\('pending', 'accepted'\\) ORDER BY"
			}
			mock.ExpectQuery(pattern).
				WithArgs(sqlmock.AnyArg(), 2).
				WillReturnRows(sqlmock.NewRows(suggestionCols).
					AddRow("s1", "pair", "{a,b}", 70, nil, "{}", "pending", "{}", "run-1", nil, now).
					AddRow("s2", "pair", "{b,a}", 75, nil, "{}", "accepted", "{b}", "run-2", nil, now))

			got, err := s.GetSuggestionsForMembers(context.Background(), []string{"b", "a"}, tt.includeResolved)
			require.NoError(t, err)
			require.Len(t, got, 2)
			assert.Equal(t, "s2", got[1].ID)
			assert.Equal(t, []string{}, got[0].AcceptedBy)
			assert.Nil(t, got[0].ExpiresAt)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUpdateSuggestionAcceptedByAndStatus(t *testing.T) {
	s, mock := setupMockDB(t)

	mock.ExpectExec("UPDATE match_suggestions").
		WithArgs("s1", sqlmock.AnyArg(), "confirmed").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE match_suggestions").
		WithArgs("gone", sqlmock.AnyArg(), "declined").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("UPDATE match_suggestions").
		WillReturnError(errors.New("connection reset"))

	ctx := context.Background()
	require.NoError(t, s.UpdateSuggestionAcceptedByAndStatus(ctx, "s1", []string{"a", "b"}, models.StatusConfirmed))
	assert.ErrorIs(t, s.UpdateSuggestionAcceptedByAndStatus(ctx, "gone", nil, models.StatusDeclined), ErrNotFound)
	assert.Error(t, s.UpdateSuggestion(ctx, &models.Suggestion{ID: "s3", Status: models.StatusAccepted}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Matches
// ==========================

func TestSaveMatches_Transaction(t *testing.T) {
	s, mock := setupMockDB(t)
	m := models.NewMatchRecord("m1", &models.Suggestion{
		Kind: models.KindPair, MemberIDs: []string{"a", "b"}, FitIndex: 90, RunID: "run-1",
	}, time.Now())

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO match_records .+ ON CONFLICT \\(id\\) DO NOTHING").
		WithArgs("m1", "run-1", "pair", sqlmock.AnyArg(), 0.9, 90, sqlmock.AnyArg(), sqlmock.AnyArg(), true, m.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, s.SaveMatches(context.Background(), []*models.MatchRecord{m}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveMatches_RollsBackOnError(t *testing.T) {
	s, mock := setupMockDB(t)
	m := models.NewMatchRecord("m1", &models.Suggestion{Kind: models.KindPair, MemberIDs: []string{"a", "b"}}, time.Now())

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO match_records").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := s.SaveMatches(context.Background(), []*models.MatchRecord{m})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert match m1")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveMatches_Empty(t *testing.T) {
	s, mock := setupMockDB(t)
	require.NoError(t, s.SaveMatches(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockAndMarkMatched(t *testing.T) {
	s, mock := setupMockDB(t)
	mock.ExpectExec("UPDATE match_records SET locked = TRUE").
		WithArgs(sqlmock.AnyArg(), "run-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE profiles SET matched_run_id").
		WithArgs(sqlmock.AnyArg(), "run-1").
		WillReturnResult(sqlmock.NewResult(0, 2))

	ctx := context.Background()
	require.NoError(t, s.LockMatch(ctx, []string{"b", "a"}, "run-1"))
	require.NoError(t, s.MarkUsersMatched(ctx, []string{"a", "b"}, "run-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddToBlocklist_IsUpsert(t *testing.T) {
	s, mock := setupMockDB(t)
	mock.ExpectExec("INSERT INTO match_blocklist .+ ON CONFLICT \\(user_id, blocked_user_id\\) DO NOTHING").
		WithArgs("a", "b").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.AddToBlocklist(context.Background(), "a", "b"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Pair aggregate
// ==========================

func TestLoadPairAcceptance_CreatesThenReads(t *testing.T) {
	s, mock := setupMockDB(t)
	now := time.Now()

	mock.ExpectExec("INSERT INTO pair_acceptances .+ ON CONFLICT \\(pair_key\\) DO NOTHING").
		WithArgs("a::b", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT pair_key, member_ids, accepted_by, status").
		WithArgs("a::b").
		WillReturnRows(sqlmock.NewRows([]string{"pair_key", "member_ids", "accepted_by", "status", "match_id", "version", "updated_at"}).
			AddRow("a::b", "{a,b}", "{b}", "open", "", int64(3), now))

	agg, err := s.LoadPairAcceptance(context.Background(), []string{"b", "a"})
	require.NoError(t, err)
	assert.Equal(t, "a::b", agg.PairKey)
	assert.Equal(t, []string{"b"}, agg.AcceptedBy)
	assert.Equal(t, models.AggregateOpen, agg.Status)
	assert.Equal(t, int64(3), agg.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompareAndSwapPairAcceptance(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		want     bool
	}{
		{name: "winner", affected: 1, want: true},
		{name: "stale version", affected: 0, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := setupMockDB(t)
			mock.ExpectExec("UPDATE pair_acceptances .+ WHERE pair_key = \\$1 AND version = \\$5").
				WithArgs("a::b", sqlmock.AnyArg(), "confirmed", "m1", int64(4)).
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			ok, err := s.CompareAndSwapPairAcceptance(context.Background(), &models.PairAcceptance{
				PairKey: "a::b", AcceptedBy: []string{"a", "b"}, Status: models.AggregateConfirmed, MatchID: "m1",
			}, 4)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
