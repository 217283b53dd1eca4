// Package store is the Postgres-backed Suggestion Store.
package store

import (
	"context"
	"database/sql"
	"errors"

	"roommate-match-workers/internal/models"
)

// ErrNotFound is returned by single-row lookups with no match.
var ErrNotFound = errors.New("not found")

// Store is the persistence contract of the reconciliation service.
type Store interface {
	GetSuggestionByID(ctx context.Context, id string) (*models.Suggestion, error)
	GetSuggestionsForPair(ctx context.Context, userA, userB string, includeResolved bool) ([]*models.Suggestion, error)
	GetSuggestionsForMembers(ctx context.Context, memberIDs []string, includeResolved bool) ([]*models.Suggestion, error)
	ListOpenPairSuggestions(ctx context.Context) ([]*models.Suggestion, error)
	UpdateSuggestion(ctx context.Context, s *models.Suggestion) error
	UpdateSuggestionAcceptedByAndStatus(ctx context.Context, id string, acceptedBy []string, status models.SuggestionStatus) error

	SaveMatches(ctx context.Context, records []*models.MatchRecord) error
	GetMatchByID(ctx context.Context, id string) (*models.MatchRecord, error)
	LockMatch(ctx context.Context, memberIDs []string, runID string) error
	MarkUsersMatched(ctx context.Context, memberIDs []string, runID string) error

	AddToBlocklist(ctx context.Context, userID, otherID string) error
	GetBlocklist(ctx context.Context, userID string) ([]string, error)

	LoadPairAcceptance(ctx context.Context, memberIDs []string) (*models.PairAcceptance, error)
	CompareAndSwapPairAcceptance(ctx context.Context, next *models.PairAcceptance, expectedVersion int64) (bool, error)

	RecordSideEffectFailure(ctx context.Context, f models.SideEffectFailure) error
}

// PostgresStore implements Store with lib/pq.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

var _ Store = (*PostgresStore)(nil)
