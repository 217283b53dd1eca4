package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPairKey_IsOrderIndependent(t *testing.T) {
	assert.Equal(t, "a::b", PairKey([]string{"b", "a"}))
	assert.Equal(t, PairKey([]string{"c", "a", "b"}), PairKey([]string{"a", "b", "c"}))
}

func TestUnionIDsAndCovers(t *testing.T) {
	union := UnionIDs([]string{"b"}, nil, []string{"a", "b"})
	assert.Equal(t, []string{"a", "b"}, union)
	assert.True(t, Covers(union, []string{"b", "a"}))
	assert.False(t, Covers([]string{"a"}, []string{"a", "b"}))
}

func TestSuggestion_Helpers(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	s := &Suggestion{MemberIDs: []string{"a", "b", "a"}, Status: StatusPending, ExpiresAt: &past}

	assert.True(t, s.IsMember("a"))
	assert.False(t, s.IsMember("z"))
	assert.True(t, s.HasDuplicateMembers())
	assert.True(t, s.IsExpired(time.Now()))
	assert.Equal(t, []string{"b"}, s.OtherMembers("a"))

	s.ExpiresAt = nil
	assert.False(t, s.IsExpired(time.Now()))
	s.Status = StatusExpired
	assert.True(t, s.IsExpired(time.Now()))
}

func TestNewMatchRecord(t *testing.T) {
	now := time.Now()
	s := &Suggestion{Kind: KindPair, MemberIDs: []string{"b", "a"}, FitIndex: 82, RunID: "run-1"}
	m := NewMatchRecord("m1", s, now)

	assert.Equal(t, []string{"a", "b"}, m.MemberIDs)
	assert.InDelta(t, 0.82, m.Fit, 1e-9)
	assert.True(t, m.Locked)
	assert.Equal(t, "run-1", m.RunID)
}

func TestStatus_IsResolved(t *testing.T) {
	assert.False(t, StatusPending.IsResolved())
	assert.False(t, StatusAccepted.IsResolved())
	assert.True(t, StatusDeclined.IsResolved())
	assert.True(t, StatusConfirmed.IsResolved())
	assert.True(t, StatusExpired.IsResolved())
}
