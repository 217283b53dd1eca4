package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"roommate-match-workers/internal/models"
)

// LoadPairAcceptance returns the aggregate row for a member set, creating an
// empty open row on first use.
func (p *PostgresStore) LoadPairAcceptance(ctx context.Context, memberIDs []string) (*models.PairAcceptance, error) {
	ids := models.SortedIDs(memberIDs)
	key := models.PairKey(ids)

	_, err := p.db.ExecContext(ctx, `
		INSERT INTO pair_acceptances (pair_key, member_ids, accepted_by, status, version, updated_at)
		VALUES ($1, $2, '{}', 'open', 0, NOW())
		ON CONFLICT (pair_key) DO NOTHING`,
		key, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("init pair acceptance %s: %w", key, err)
	}

	var (
		agg    models.PairAcceptance
		status string
	)
	err = p.db.QueryRowContext(ctx, `
		SELECT pair_key, member_ids, accepted_by, status, COALESCE(match_id::text, ''), version, updated_at
		FROM pair_acceptances WHERE pair_key = $1`, key).
		Scan(&agg.PairKey, pq.Array(&agg.MemberIDs), pq.Array(&agg.AcceptedBy), &status,
			&agg.MatchID, &agg.Version, &agg.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load pair acceptance %s: %w", key, err)
	}
	agg.Status = models.AggregateStatus(status)
	return &agg, nil
}

// CompareAndSwapPairAcceptance writes next only if the stored version still
// equals expectedVersion. It reports false when another writer got there first.
func (p *PostgresStore) CompareAndSwapPairAcceptance(ctx context.Context, next *models.PairAcceptance, expectedVersion int64) (bool, error) {
	var matchID interface{}
	if next.MatchID != "" {
		matchID = next.MatchID
	}

	res, err := p.db.ExecContext(ctx, `
		UPDATE pair_acceptances
		SET accepted_by = $2, status = $3, match_id = $4, version = version + 1, updated_at = NOW()
		WHERE pair_key = $1 AND version = $5`,
		next.PairKey, pq.Array(next.AcceptedBy), string(next.Status), matchID, expectedVersion)
	if err != nil {
		return false, fmt.Errorf("cas pair acceptance %s: %w", next.PairKey, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("cas pair acceptance %s: %w", next.PairKey, err)
	}
	return n == 1, nil
}
