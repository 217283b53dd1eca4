// Package chat drives the chat subsystem tables for confirmed matches.
package chat

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// WelcomeMessage is posted to every newly created match chat.
const WelcomeMessage = "You're matched! Start your conversation 👋"

// Service is the chat contract the confirmation coordinator drives.
type Service interface {
	FindSharedChat(ctx context.Context, userA, userB string) (string, bool, error)
	CreateChat(ctx context.Context, creatorID string) (string, error)
	AddMembers(ctx context.Context, chatID string, userIDs []string) error
	PostSystemMessage(ctx context.Context, chatID, authorID, text string) error
	TouchChat(ctx context.Context, chatID string) error
}

type PostgresService struct {
	db *sql.DB
}

func NewPostgresService(db *sql.DB) *PostgresService {
	return &PostgresService{db: db}
}

var _ Service = (*PostgresService)(nil)

// FindSharedChat intersects both users' direct chat memberships.
func (s *PostgresService) FindSharedChat(ctx context.Context, userA, userB string) (string, bool, error) {
	var chatID string
	err := s.db.QueryRowContext(ctx, `
		SELECT a.chat_id
		FROM chat_members a
		JOIN chat_members b ON b.chat_id = a.chat_id
		JOIN chats c ON c.id = a.chat_id
		WHERE a.user_id = $1 AND b.user_id = $2 AND c.is_group = FALSE
		ORDER BY c.created_at ASC
		LIMIT 1`, userA, userB).Scan(&chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("find shared chat: %w", err)
	}
	return chatID, true, nil
}

func (s *PostgresService) CreateChat(ctx context.Context, creatorID string) (string, error) {
	chatID := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chats (id, is_group, created_by, created_at, updated_at)
		VALUES ($1, FALSE, $2, NOW(), NOW())`, chatID, creatorID)
	if err != nil {
		return "", fmt.Errorf("create chat: %w", err)
	}
	return chatID, nil
}

func (s *PostgresService) AddMembers(ctx context.Context, chatID string, userIDs []string) error {
	for _, userID := range userIDs {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO chat_members (chat_id, user_id, status, joined_at)
			VALUES ($1, $2, 'active', NOW())
			ON CONFLICT (chat_id, user_id) DO NOTHING`, chatID, userID)
		if err != nil {
			return fmt.Errorf("add chat member %s: %w", userID, err)
		}
	}
	return nil
}

func (s *PostgresService) PostSystemMessage(ctx context.Context, chatID, authorID, text string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, chat_id, user_id, content, created_at)
		VALUES ($1, $2, $3, $4, NOW())`, uuid.NewString(), chatID, authorID, text)
	if err != nil {
		return fmt.Errorf("post system message: %w", err)
	}
	return nil
}

func (s *PostgresService) TouchChat(ctx context.Context, chatID string) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE chats SET updated_at = NOW() WHERE id = $1`, chatID); err != nil {
		return fmt.Errorf("touch chat: %w", err)
	}
	return nil
}
