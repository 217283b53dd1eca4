package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"roommate-match-workers/internal/models"
)

const suggestionColumns = `id, kind, member_ids, fit_index, section_scores, reasons, status,
	accepted_by, run_id, expires_at, created_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSuggestion(row rowScanner) (*models.Suggestion, error) {
	var (
		s         models.Suggestion
		kind      string
		status    string
		sections  []byte
		expiresAt sql.NullTime
	)
	err := row.Scan(
		&s.ID, &kind, pq.Array(&s.MemberIDs), &s.FitIndex, &sections, pq.Array(&s.Reasons),
		&status, pq.Array(&s.AcceptedBy), &s.RunID, &expiresAt, &s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	s.Kind = models.SuggestionKind(kind)
	s.Status = models.SuggestionStatus(status)
	if expiresAt.Valid {
		t := expiresAt.Time
		s.ExpiresAt = &t
	}
	if len(sections) > 0 {
		if err := json.Unmarshal(sections, &s.SectionScores); err != nil {
			return nil, fmt.Errorf("decode section_scores for %s: %w", s.ID, err)
		}
	}
	if s.AcceptedBy == nil {
		s.AcceptedBy = []string{}
	}
	return &s, nil
}

func (p *PostgresStore) GetSuggestionByID(ctx context.Context, id string) (*models.Suggestion, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT `+suggestionColumns+` FROM match_suggestions WHERE id = $1`, id)

	s, err := scanSuggestion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get suggestion %s: %w", id, err)
	}
	return s, nil
}

func (p *PostgresStore) GetSuggestionsForPair(ctx context.Context, userA, userB string, includeResolved bool) ([]*models.Suggestion, error) {
	return p.GetSuggestionsForMembers(ctx, []string{userA, userB}, includeResolved)
}

// GetSuggestionsForMembers returns every record whose member set equals memberIDs,
// across runs, oldest first.
func (p *PostgresStore) GetSuggestionsForMembers(ctx context.Context, memberIDs []string, includeResolved bool) ([]*models.Suggestion, error) {
	query := `SELECT ` + suggestionColumns + ` FROM match_suggestions
		WHERE member_ids @> $1 AND member_ids <@ $1 AND cardinality(member_ids) = $2`
	if !includeResolved {
		query += ` AND status IN ('pending', 'accepted')`
	}
	query += ` ORDER BY created_at ASC`

	ids := models.SortedIDs(memberIDs)
	return p.querySuggestions(ctx, "get suggestions for members", query, pq.Array(ids), len(ids))
}

// ListOpenPairSuggestions feeds the confirm-pending sweep.
func (p *PostgresStore) ListOpenPairSuggestions(ctx context.Context) ([]*models.Suggestion, error) {
	return p.querySuggestions(ctx, "list open pair suggestions", `SELECT `+suggestionColumns+`
		FROM match_suggestions
		WHERE kind = 'pair' AND status IN ('pending', 'accepted')
		ORDER BY created_at ASC`)
}

func (p *PostgresStore) querySuggestions(ctx context.Context, op, query string, args ...interface{}) ([]*models.Suggestion, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var out []*models.Suggestion
	for rows.Next() {
		s, err := scanSuggestion(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

func (p *PostgresStore) UpdateSuggestion(ctx context.Context, s *models.Suggestion) error {
	return p.UpdateSuggestionAcceptedByAndStatus(ctx, s.ID, s.AcceptedBy, s.Status)
}

func (p *PostgresStore) UpdateSuggestionAcceptedByAndStatus(ctx context.Context, id string, acceptedBy []string, status models.SuggestionStatus) error {
	if acceptedBy == nil {
		acceptedBy = []string{}
	}
	res, err := p.db.ExecContext(ctx, `
		UPDATE match_suggestions
		SET accepted_by = $2, status = $3, updated_at = NOW()
		WHERE id = $1`,
		id, pq.Array(acceptedBy), string(status))
	if err != nil {
		return fmt.Errorf("update suggestion %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
