// internal/models/suggestion.go
package models

import (
	"sort"
	"strings"
	"time"
)

type SuggestionKind string

const (
	KindPair  SuggestionKind = "pair"
	KindGroup SuggestionKind = "group"
)

type SuggestionStatus string

const (
	StatusPending   SuggestionStatus = "pending"
	StatusAccepted  SuggestionStatus = "accepted"
	StatusDeclined  SuggestionStatus = "declined"
	StatusConfirmed SuggestionStatus = "confirmed"
	StatusExpired   SuggestionStatus = "expired"
)

// IsResolved reports whether no further accepts may change the status.
func (s SuggestionStatus) IsResolved() bool {
	return s == StatusDeclined || s == StatusConfirmed || s == StatusExpired
}

// Suggestion is one proposal from one generation run. Several records may
// share the same member set.
type Suggestion struct {
	ID            string             `json:"id"`
	Kind          SuggestionKind     `json:"kind"`
	MemberIDs     []string           `json:"memberIds"`
	FitIndex      int                `json:"fitIndex"`
	SectionScores map[string]float64 `json:"sectionScores,omitempty"`
	Reasons       []string           `json:"reasons,omitempty"`
	Status        SuggestionStatus   `json:"status"`
	AcceptedBy    []string           `json:"acceptedBy"`
	RunID         string             `json:"runId"`
	ExpiresAt     *time.Time         `json:"expiresAt,omitempty"`
	CreatedAt     time.Time          `json:"createdAt"`
}

func (s *Suggestion) IsMember(userID string) bool {
	for _, m := range s.MemberIDs {
		if m == userID {
			return true
		}
	}
	return false
}

// HasDuplicateMembers reports whether any member id appears twice.
func (s *Suggestion) HasDuplicateMembers() bool {
	seen := make(map[string]struct{}, len(s.MemberIDs))
	for _, m := range s.MemberIDs {
		if _, ok := seen[m]; ok {
			return true
		}
		seen[m] = struct{}{}
	}
	return false
}

// IsExpired is true for the expired status or a past expiry time.
func (s *Suggestion) IsExpired(now time.Time) bool {
	if s.Status == StatusExpired {
		return true
	}
	return s.ExpiresAt != nil && s.ExpiresAt.Before(now)
}

// OtherMembers returns every member except userID, in member order.
func (s *Suggestion) OtherMembers(userID string) []string {
	out := make([]string, 0, len(s.MemberIDs))
	for _, m := range s.MemberIDs {
		if m != userID {
			out = append(out, m)
		}
	}
	return out
}

func (s *Suggestion) Key() string {
	return PairKey(s.MemberIDs)
}

// PairKey is the canonical identity of an unordered member set: sorted ids joined by "::".
func PairKey(memberIDs []string) string {
	sorted := SortedIDs(memberIDs)
	return strings.Join(sorted, "::")
}

func SortedIDs(ids []string) []string {
	out := append([]string(nil), ids...)
	sort.Strings(out)
	return out
}

// UnionIDs merges id sets, dropping duplicates. The result is sorted.
func UnionIDs(sets ...[]string) []string {
	seen := make(map[string]struct{})
	for _, set := range sets {
		for _, id := range set {
			seen[id] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Covers reports whether every member appears in accepted.
func Covers(accepted, members []string) bool {
	set := make(map[string]struct{}, len(accepted))
	for _, id := range accepted {
		set[id] = struct{}{}
	}
	for _, m := range members {
		if _, ok := set[m]; !ok {
			return false
		}
	}
	return true
}
