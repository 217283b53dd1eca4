// Package notify delivers match notifications: an in-app row always, plus
// optional SES email and SNS push fan-out.
package notify

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"roommate-match-workers/internal/common/logger"
	"roommate-match-workers/internal/common/metrics"
	"roommate-match-workers/internal/models"
)

const defaultName = "Someone"

var templates = map[string]models.NotificationTemplate{
	models.NotificationMatchConfirmed: {
		Type:    models.NotificationMatchConfirmed,
		Title:   "Match Confirmed!",
		Body:    "It's official! You and %s are now matched.",
		Subject: "You have a new roommate match",
	},
	models.NotificationMatchAccepted: {
		Type:    models.NotificationMatchAccepted,
		Title:   "Match Accepted!",
		Body:    "%s accepted your match request!",
		Subject: "Someone accepted your match request",
	},
}

// Notifier is the notification contract of the reconciliation core.
type Notifier interface {
	NotifyMatchConfirmed(ctx context.Context, userA, userB, matchID, chatID string) error
	NotifyMatchAccepted(ctx context.Context, recipientID, actorID, suggestionID string) error
}

type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type Config struct {
	EmailEnabled bool
	FromEmail    string
	PushEnabled  bool
	TopicARN     string
}

type Service struct {
	config    Config
	db        *sql.DB
	sesClient SESService
	snsClient SNSService
	logger    logger.Logger
}

// NewService builds the notifier. sesClient and snsClient may be nil when the
// matching channel is disabled.
func NewService(config Config, db *sql.DB, sesClient SESService, snsClient SNSService, log logger.Logger) *Service {
	return &Service{
		config:    config,
		db:        db,
		sesClient: sesClient,
		snsClient: snsClient,
		logger:    log.WithFields(map[string]interface{}{"component": "notify"}),
	}
}

var _ Notifier = (*Service)(nil)

type recipient struct {
	name  string
	email string
}

// NotifyMatchConfirmed tells both members about the confirmed match.
func (s *Service) NotifyMatchConfirmed(ctx context.Context, userA, userB, matchID, chatID string) error {
	if userA == userB {
		s.logger.Warn("ignoring self-match notification", map[string]interface{}{"userId": userA})
		return nil
	}

	people, err := s.lookup(ctx, userA, userB)
	if err != nil {
		return err
	}

	tmpl := templates[models.NotificationMatchConfirmed]
	for _, pair := range [][2]string{{userA, userB}, {userB, userA}} {
		self, other := pair[0], pair[1]
		metadata := map[string]interface{}{
			"match_id":      matchID,
			"chat_id":       chatID,
			"other_user_id": other,
		}
		message := fmt.Sprintf(tmpl.Body, people[other].name)
		if err := s.deliver(ctx, self, people[self], tmpl, message, metadata, "match_id", matchID); err != nil {
			return err
		}
	}
	return nil
}

// NotifyMatchAccepted tells recipientID that actorID accepted. Only the
// recipient is notified.
func (s *Service) NotifyMatchAccepted(ctx context.Context, recipientID, actorID, suggestionID string) error {
	people, err := s.lookup(ctx, recipientID, actorID)
	if err != nil {
		return err
	}

	tmpl := templates[models.NotificationMatchAccepted]
	metadata := map[string]interface{}{
		"suggestion_id": suggestionID,
		"other_user_id": actorID,
	}
	message := fmt.Sprintf(tmpl.Body, people[actorID].name)
	return s.deliver(ctx, recipientID, people[recipientID], tmpl, message, metadata, "suggestion_id", suggestionID)
}

func (s *Service) lookup(ctx context.Context, userIDs ...string) (map[string]recipient, error) {
	out := make(map[string]recipient, len(userIDs))
	for _, id := range userIDs {
		out[id] = recipient{name: defaultName}
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, COALESCE(first_name, ''), COALESCE(email, '')
		FROM profiles WHERE user_id = ANY($1)`, pq.Array(userIDs))
	if err != nil {
		return nil, fmt.Errorf("load profiles: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, name, email string
		if err := rows.Scan(&id, &name, &email); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		r := recipient{name: name, email: email}
		if r.name == "" {
			r.name = defaultName
		}
		out[id] = r
	}
	return out, rows.Err()
}

// deliver writes the in-app row (skipped when one already exists for the same
// dedupe key) and then attempts the optional channels.
func (s *Service) deliver(ctx context.Context, userID string, to recipient, tmpl models.NotificationTemplate,
	message string, metadata map[string]interface{}, dedupeField, dedupeValue string) error {

	raw, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, type, title, message, metadata, created_at)
		SELECT $1, $2, $3, $4, $5, $6, NOW()
		WHERE NOT EXISTS (
			SELECT 1 FROM notifications
			WHERE user_id = $2 AND type = $3 AND metadata->>$7 = $8
		)`,
		uuid.NewString(), userID, tmpl.Type, tmpl.Title, message, raw, dedupeField, dedupeValue)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		s.logger.Debug("notification already delivered", map[string]interface{}{
			"userId": userID,
			"type":   tmpl.Type,
		})
		return nil
	}

	if s.config.EmailEnabled && s.sesClient != nil && to.email != "" {
		if err := s.sendEmail(ctx, to.email, tmpl.Subject, message); err != nil {
			metrics.SideEffectFailures.WithLabelValues("email").Inc()
			s.logger.Error("email send failed", map[string]interface{}{"userId": userID, "error": err})
		}
	}

	if s.config.PushEnabled && s.snsClient != nil && s.config.TopicARN != "" {
		if err := s.publish(ctx, userID, tmpl, message, metadata); err != nil {
			metrics.SideEffectFailures.WithLabelValues("push").Inc()
			s.logger.Error("push publish failed", map[string]interface{}{"userId": userID, "error": err})
		}
	}
	return nil
}

func (s *Service) sendEmail(ctx context.Context, to, subject, body string) error {
	_, err := s.sesClient.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body)},
			},
		},
		Source: aws.String(s.config.FromEmail),
	})
	return err
}

func (s *Service) publish(ctx context.Context, userID string, tmpl models.NotificationTemplate, message string, metadata map[string]interface{}) error {
	payload, err := json.Marshal(map[string]interface{}{
		"userId":   userID,
		"type":     tmpl.Type,
		"title":    tmpl.Title,
		"message":  message,
		"metadata": metadata,
	})
	if err != nil {
		return err
	}
	_, err = s.snsClient.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(s.config.TopicARN),
		Message:  aws.String(string(payload)),
		MessageAttributes: map[string]snstypes.MessageAttributeValue{
			"type": {DataType: aws.String("String"), StringValue: aws.String(tmpl.Type)},
		},
	})
	return err
}
