package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"roommate-match-workers/internal/models"
)

// PostgresSink appends events to the app_events table.
type PostgresSink struct {
	db *sql.DB
}

func NewPostgresSink(db *sql.DB) *PostgresSink {
	return &PostgresSink{db: db}
}

func (s *PostgresSink) Emit(ctx context.Context, event models.Event) error {
	props, err := json.Marshal(event.Properties)
	if err != nil {
		return fmt.Errorf("marshal properties: %w", err)
	}

	var userID interface{}
	if event.UserID != "" {
		userID = event.UserID
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO app_events (id, name, user_id, properties, occurred_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING`,
		event.ID, event.Name, userID, props, event.OccurredAt)
	if err != nil {
		return fmt.Errorf("insert app_event: %w", err)
	}
	return nil
}
