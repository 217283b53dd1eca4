package compatibility

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"roommate-match-workers/internal/models"
)

var (
	ErrScoreNotFound = errors.New("compatibility score not found")
	ErrChatNotFound  = errors.New("chat not found")
)

// ScoreStore persists snapshots and resolves cohorts from chats.
type ScoreStore interface {
	Save(ctx context.Context, score *models.GroupCompatibilityScore) error
	Get(ctx context.Context, chatID string) (*models.GroupCompatibilityScore, error)
	LoadCohort(ctx context.Context, chatID string) (models.Cohort, error)
}

// deviationsDocument is the member_deviations column layout.
type deviationsDocument struct {
	Deviations  []models.MemberDeviation `json:"deviations"`
	Explanation models.Explanation       `json:"explanation"`
}

type PostgresScoreStore struct {
	db *sql.DB
}

func NewPostgresScoreStore(db *sql.DB) *PostgresScoreStore {
	return &PostgresScoreStore{db: db}
}

// Save overwrites the snapshot of the chat.
func (p *PostgresScoreStore) Save(ctx context.Context, score *models.GroupCompatibilityScore) error {
	weights, err := json.Marshal(score.CategoryWeights)
	if err != nil {
		return fmt.Errorf("encode category_weights: %w", err)
	}
	deviations, err := json.Marshal(deviationsDocument{
		Deviations:  score.MemberDeviations,
		Explanation: score.Explanation,
	})
	if err != nil {
		return fmt.Errorf("encode member_deviations: %w", err)
	}

	_, err = p.db.ExecContext(ctx, `
		INSERT INTO group_compatibility_scores
			(chat_id, group_intent, overall_score, personality_score, schedule_score, lifestyle_score,
			 social_score, academic_score, category_weights, member_deviations, calculated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (chat_id) DO UPDATE SET
			group_intent      = EXCLUDED.group_intent,
			overall_score     = EXCLUDED.overall_score,
			personality_score = EXCLUDED.personality_score,
			schedule_score    = EXCLUDED.schedule_score,
			lifestyle_score   = EXCLUDED.lifestyle_score,
			social_score      = EXCLUDED.social_score,
			academic_score    = EXCLUDED.academic_score,
			category_weights  = EXCLUDED.category_weights,
			member_deviations = EXCLUDED.member_deviations,
			calculated_at     = EXCLUDED.calculated_at`,
		score.ChatID, string(score.GroupIntent), score.OverallScore, score.Personality, score.Schedule,
		score.Lifestyle, score.Social, score.Academic, weights, deviations, score.CalculatedAt)
	if err != nil {
		return fmt.Errorf("upsert compatibility score for %s: %w", score.ChatID, err)
	}
	return nil
}

func (p *PostgresScoreStore) Get(ctx context.Context, chatID string) (*models.GroupCompatibilityScore, error) {
	var (
		s                   models.GroupCompatibilityScore
		intent              string
		weights, deviations []byte
	)
	err := p.db.QueryRowContext(ctx, `
		SELECT chat_id, group_intent, overall_score, personality_score, schedule_score, lifestyle_score,
		       social_score, academic_score, category_weights, member_deviations, calculated_at
		FROM group_compatibility_scores WHERE chat_id = $1`, chatID).
		Scan(&s.ChatID, &intent, &s.OverallScore, &s.Personality, &s.Schedule, &s.Lifestyle,
			&s.Social, &s.Academic, &weights, &deviations, &s.CalculatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrScoreNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get compatibility score for %s: %w", chatID, err)
	}

	s.GroupIntent = models.GroupIntent(intent)
	if err := json.Unmarshal(weights, &s.CategoryWeights); err != nil {
		return nil, fmt.Errorf("decode category_weights: %w", err)
	}
	var doc deviationsDocument
	if err := json.Unmarshal(deviations, &doc); err != nil {
		return nil, fmt.Errorf("decode member_deviations: %w", err)
	}
	s.MemberDeviations = doc.Deviations
	s.Explanation = doc.Explanation
	return &s, nil
}

// LoadCohort reads the chat's intent and its active members.
func (p *PostgresScoreStore) LoadCohort(ctx context.Context, chatID string) (models.Cohort, error) {
	cohort := models.Cohort{ChatID: chatID}

	var intent string
	err := p.db.QueryRowContext(ctx, `SELECT COALESCE(group_intent, '') FROM chats WHERE id = $1`, chatID).Scan(&intent)
	if errors.Is(err, sql.ErrNoRows) {
		return cohort, ErrChatNotFound
	}
	if err != nil {
		return cohort, fmt.Errorf("load chat %s: %w", chatID, err)
	}
	cohort.GroupIntent = models.GroupIntent(intent)

	rows, err := p.db.QueryContext(ctx, `
		SELECT user_id FROM chat_members
		WHERE chat_id = $1 AND status = 'active'
		ORDER BY user_id`, chatID)
	if err != nil {
		return cohort, fmt.Errorf("load members of %s: %w", chatID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return cohort, fmt.Errorf("scan member: %w", err)
		}
		cohort.MemberIDs = append(cohort.MemberIDs, id)
	}
	return cohort, rows.Err()
}
