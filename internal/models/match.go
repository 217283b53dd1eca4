// internal/models/match.go
package models

import "time"

// MatchRecord is written once per confirmed member set and never updated.
type MatchRecord struct {
	ID            string             `json:"id"`
	Kind          SuggestionKind     `json:"kind"`
	MemberIDs     []string           `json:"memberIds"`
	Fit           float64            `json:"fit"`
	FitIndex      int                `json:"fitIndex"`
	SectionScores map[string]float64 `json:"sectionScores,omitempty"`
	Reasons       []string           `json:"reasons,omitempty"`
	RunID         string             `json:"runId"`
	Locked        bool               `json:"locked"`
	CreatedAt     time.Time          `json:"createdAt"`
}

// NewMatchRecord derives the record from the suggestion that triggered confirmation.
func NewMatchRecord(id string, s *Suggestion, now time.Time) *MatchRecord {
	return &MatchRecord{
		ID:            id,
		Kind:          s.Kind,
		MemberIDs:     SortedIDs(s.MemberIDs),
		Fit:           float64(s.FitIndex) / 100,
		FitIndex:      s.FitIndex,
		SectionScores: s.SectionScores,
		Reasons:       s.Reasons,
		RunID:         s.RunID,
		Locked:        true,
		CreatedAt:     now,
	}
}

type AggregateStatus string

const (
	AggregateOpen      AggregateStatus = "open"
	AggregateConfirmed AggregateStatus = "confirmed"
	AggregateDeclined  AggregateStatus = "declined"
)

// PairAcceptance is the per member-set aggregate row. Every change goes through
// a compare-and-swap on Version.
type PairAcceptance struct {
	PairKey    string          `json:"pairKey"`
	MemberIDs  []string        `json:"memberIds"`
	AcceptedBy []string        `json:"acceptedBy"`
	Status     AggregateStatus `json:"status"`
	MatchID    string          `json:"matchId,omitempty"`
	Version    int64           `json:"version"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

type BlocklistEntry struct {
	UserID        string    `json:"userId"`
	BlockedUserID string    `json:"blockedUserId"`
	CreatedAt     time.Time `json:"createdAt"`
}

// SideEffectFailure records a confirmation side effect that needs manual follow-up.
type SideEffectFailure struct {
	MatchID   string    `json:"matchId"`
	Effect    string    `json:"effect"`
	MemberIDs []string  `json:"memberIds"`
	Error     string    `json:"error"`
	CreatedAt time.Time `json:"createdAt"`
}
