// internal/models/event.go
package models

import "time"

const (
	EventMatchBlocked     = "match_blocked"
	EventMatchRejected    = "match_rejected"
	EventMatchAccepted    = "match_accepted"
	EventMatchConfirmed   = "match_confirmed"
	EventGroupCompatScore = "group_compatibility_calculated"
)

// Event is an analytics record emitted by the reconciliation and scoring paths.
type Event struct {
	ID         string                 `json:"id"`
	Name       string                 `json:"name"`
	UserID     string                 `json:"userId,omitempty"`
	Properties map[string]interface{} `json:"properties,omitempty"`
	OccurredAt time.Time              `json:"occurredAt"`
}
