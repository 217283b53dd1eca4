package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"roommate-match-workers/internal/common/database"
	"roommate-match-workers/internal/models"
)

// SaveMatches inserts match records in one transaction. Records are keyed by the
// id fixed on the pair aggregate, so a repeated save is a no-op.
func (p *PostgresStore) SaveMatches(ctx context.Context, records []*models.MatchRecord) error {
	if len(records) == 0 {
		return nil
	}
	return database.WithTx(ctx, p.db, func(tx *sql.Tx) error {
		for _, m := range records {
			sections, err := json.Marshal(m.SectionScores)
			if err != nil {
				return fmt.Errorf("encode section_scores: %w", err)
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO match_records
					(id, run_id, kind, user_ids, fit_score, fit_index, section_scores, reasons, locked, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
				ON CONFLICT (id) DO NOTHING`,
				m.ID, m.RunID, string(m.Kind), pq.Array(m.MemberIDs), m.Fit, m.FitIndex,
				sections, pq.Array(m.Reasons), m.Locked, m.CreatedAt)
			if err != nil {
				return fmt.Errorf("insert match %s: %w", m.ID, err)
			}
		}
		return nil
	})
}

func (p *PostgresStore) GetMatchByID(ctx context.Context, id string) (*models.MatchRecord, error) {
	var (
		m        models.MatchRecord
		kind     string
		sections []byte
	)
	err := p.db.QueryRowContext(ctx, `
		SELECT id, run_id, kind, user_ids, fit_score, fit_index, section_scores, reasons, locked, created_at
		FROM match_records WHERE id = $1`, id).
		Scan(&m.ID, &m.RunID, &kind, pq.Array(&m.MemberIDs), &m.Fit, &m.FitIndex,
			&sections, pq.Array(&m.Reasons), &m.Locked, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get match %s: %w", id, err)
	}

	m.Kind = models.SuggestionKind(kind)
	if len(sections) > 0 {
		_ = json.Unmarshal(sections, &m.SectionScores)
	}
	return &m, nil
}

func (p *PostgresStore) LockMatch(ctx context.Context, memberIDs []string, runID string) error {
	ids := models.SortedIDs(memberIDs)
	_, err := p.db.ExecContext(ctx, `
		UPDATE match_records SET locked = TRUE
		WHERE user_ids @> $1 AND user_ids <@ $1 AND run_id = $2`,
		pq.Array(ids), runID)
	if err != nil {
		return fmt.Errorf("lock match: %w", err)
	}
	return nil
}

func (p *PostgresStore) MarkUsersMatched(ctx context.Context, memberIDs []string, runID string) error {
	_, err := p.db.ExecContext(ctx, `
		UPDATE profiles SET matched_run_id = $2, updated_at = NOW()
		WHERE user_id = ANY($1)`,
		pq.Array(memberIDs), runID)
	if err != nil {
		return fmt.Errorf("mark users matched: %w", err)
	}
	return nil
}

func (p *PostgresStore) AddToBlocklist(ctx context.Context, userID, otherID string) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO match_blocklist (user_id, blocked_user_id, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id, blocked_user_id) DO NOTHING`,
		userID, otherID)
	if err != nil {
		return fmt.Errorf("add to blocklist %s->%s: %w", userID, otherID, err)
	}
	return nil
}

func (p *PostgresStore) GetBlocklist(ctx context.Context, userID string) ([]string, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT blocked_user_id FROM match_blocklist WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("get blocklist: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("get blocklist: scan: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (p *PostgresStore) RecordSideEffectFailure(ctx context.Context, f models.SideEffectFailure) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO match_side_effect_failures (match_id, effect, member_ids, error, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		f.MatchID, f.Effect, pq.Array(f.MemberIDs), f.Error, f.CreatedAt)
	if err != nil {
		return fmt.Errorf("record side effect failure: %w", err)
	}
	return nil
}
