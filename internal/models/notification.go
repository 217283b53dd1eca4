// internal/models/notification.go
package models

import "time"

const (
	NotificationMatchConfirmed = "match_confirmed"
	NotificationMatchAccepted  = "match_accepted"
)

// Notification is an in-app notification row.
type Notification struct {
	ID        string                 `json:"id"`
	UserID    string                 `json:"userId"`
	Type      string                 `json:"type"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt time.Time              `json:"createdAt"`
}

type NotificationTemplate struct {
	Type    string `json:"type"`
	Title   string `json:"title"`
	Body    string `json:"body"` // fmt verb %s receives the other member's name
	Subject string `json:"subject"`
}
