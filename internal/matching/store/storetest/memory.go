// Package storetest provides an in-memory store.Store for tests.
package storetest

import (
	"context"
	"sort"
	"sync"
	"time"

	"roommate-match-workers/internal/matching/store"
	"roommate-match-workers/internal/models"
)

// Memory is a goroutine-safe store.Store. Fail hooks let tests inject errors
// by operation name.
type Memory struct {
	mu          sync.Mutex
	suggestions map[string]*models.Suggestion
	matches     map[string]*models.MatchRecord
	aggregates  map[string]*models.PairAcceptance
	blocklist   map[[2]string]time.Time
	matched     map[string]string
	failures    []models.SideEffectFailure
	order       []string

	Fail func(op string) error
}

func NewMemory(suggestions ...*models.Suggestion) *Memory {
	m := &Memory{
		suggestions: make(map[string]*models.Suggestion),
		matches:     make(map[string]*models.MatchRecord),
		aggregates:  make(map[string]*models.PairAcceptance),
		blocklist:   make(map[[2]string]time.Time),
		matched:     make(map[string]string),
	}
	for _, s := range suggestions {
		m.Put(s)
	}
	return m
}

var _ store.Store = (*Memory)(nil)

func (m *Memory) fail(op string) error {
	if m.Fail == nil {
		return nil
	}
	return m.Fail(op)
}

func clone(s *models.Suggestion) *models.Suggestion {
	c := *s
	c.MemberIDs = append([]string(nil), s.MemberIDs...)
	c.AcceptedBy = append([]string{}, s.AcceptedBy...)
	c.Reasons = append([]string(nil), s.Reasons...)
	return &c
}

// Put inserts or replaces a suggestion.
func (m *Memory) Put(s *models.Suggestion) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.suggestions[s.ID]; !ok {
		m.order = append(m.order, s.ID)
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	m.suggestions[s.ID] = clone(s)
}

// Suggestion returns a copy of the stored record.
func (m *Memory) Suggestion(id string) *models.Suggestion {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.suggestions[id]; ok {
		return clone(s)
	}
	return nil
}

func (m *Memory) Matches() []*models.MatchRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.MatchRecord, 0, len(m.matches))
	for _, r := range m.matches {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *Memory) Blocked(userID, otherID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.blocklist[[2]string{userID, otherID}]
	return ok
}

func (m *Memory) BlocklistSize() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.blocklist)
}

func (m *Memory) MatchedRun(userID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.matched[userID]
}

func (m *Memory) SideEffectFailures() []models.SideEffectFailure {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.SideEffectFailure(nil), m.failures...)
}

func (m *Memory) GetSuggestionByID(_ context.Context, id string) (*models.Suggestion, error) {
	if err := m.fail("GetSuggestionByID"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.suggestions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return clone(s), nil
}

func (m *Memory) GetSuggestionsForPair(ctx context.Context, userA, userB string, includeResolved bool) ([]*models.Suggestion, error) {
	return m.GetSuggestionsForMembers(ctx, []string{userA, userB}, includeResolved)
}

func (m *Memory) GetSuggestionsForMembers(_ context.Context, memberIDs []string, includeResolved bool) ([]*models.Suggestion, error) {
	if err := m.fail("GetSuggestionsForMembers"); err != nil {
		return nil, err
	}
	key := models.PairKey(memberIDs)
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Suggestion
	for _, id := range m.order {
		s := m.suggestions[id]
		if s.Key() != key || len(s.MemberIDs) != len(memberIDs) {
			continue
		}
		if !includeResolved && s.Status != models.StatusPending && s.Status != models.StatusAccepted {
			continue
		}
		out = append(out, clone(s))
	}
	return out, nil
}

func (m *Memory) ListOpenPairSuggestions(_ context.Context) ([]*models.Suggestion, error) {
	if err := m.fail("ListOpenPairSuggestions"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Suggestion
	for _, id := range m.order {
		s := m.suggestions[id]
		if s.Kind == models.KindPair && (s.Status == models.StatusPending || s.Status == models.StatusAccepted) {
			out = append(out, clone(s))
		}
	}
	return out, nil
}

func (m *Memory) UpdateSuggestion(ctx context.Context, s *models.Suggestion) error {
	return m.UpdateSuggestionAcceptedByAndStatus(ctx, s.ID, s.AcceptedBy, s.Status)
}

func (m *Memory) UpdateSuggestionAcceptedByAndStatus(_ context.Context, id string, acceptedBy []string, status models.SuggestionStatus) error {
	if err := m.fail("UpdateSuggestionAcceptedByAndStatus"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.suggestions[id]
	if !ok {
		return store.ErrNotFound
	}
	s.AcceptedBy = append([]string{}, acceptedBy...)
	s.Status = status
	return nil
}

func (m *Memory) SaveMatches(_ context.Context, records []*models.MatchRecord) error {
	if err := m.fail("SaveMatches"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		if _, ok := m.matches[r.ID]; !ok {
			c := *r
			m.matches[r.ID] = &c
		}
	}
	return nil
}

func (m *Memory) GetMatchByID(_ context.Context, id string) (*models.MatchRecord, error) {
	if err := m.fail("GetMatchByID"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.matches[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	c := *r
	return &c, nil
}

func (m *Memory) LockMatch(_ context.Context, memberIDs []string, runID string) error {
	if err := m.fail("LockMatch"); err != nil {
		return err
	}
	key := models.PairKey(memberIDs)
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.matches {
		if models.PairKey(r.MemberIDs) == key && r.RunID == runID {
			r.Locked = true
		}
	}
	return nil
}

func (m *Memory) MarkUsersMatched(_ context.Context, memberIDs []string, runID string) error {
	if err := m.fail("MarkUsersMatched"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range memberIDs {
		m.matched[id] = runID
	}
	return nil
}

func (m *Memory) AddToBlocklist(_ context.Context, userID, otherID string) error {
	if err := m.fail("AddToBlocklist:" + userID + "->" + otherID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	k := [2]string{userID, otherID}
	if _, ok := m.blocklist[k]; !ok {
		m.blocklist[k] = time.Now()
	}
	return nil
}

func (m *Memory) GetBlocklist(_ context.Context, userID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for k := range m.blocklist {
		if k[0] == userID {
			out = append(out, k[1])
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *Memory) LoadPairAcceptance(_ context.Context, memberIDs []string) (*models.PairAcceptance, error) {
	if err := m.fail("LoadPairAcceptance"); err != nil {
		return nil, err
	}
	key := models.PairKey(memberIDs)
	m.mu.Lock()
	defer m.mu.Unlock()
	agg, ok := m.aggregates[key]
	if !ok {
		agg = &models.PairAcceptance{
			PairKey:    key,
			MemberIDs:  models.SortedIDs(memberIDs),
			AcceptedBy: []string{},
			Status:     models.AggregateOpen,
			UpdatedAt:  time.Now(),
		}
		m.aggregates[key] = agg
	}
	c := *agg
	c.AcceptedBy = append([]string{}, agg.AcceptedBy...)
	return &c, nil
}

func (m *Memory) CompareAndSwapPairAcceptance(_ context.Context, next *models.PairAcceptance, expectedVersion int64) (bool, error) {
	if err := m.fail("CompareAndSwapPairAcceptance"); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.aggregates[next.PairKey]
	if !ok || cur.Version != expectedVersion {
		return false, nil
	}
	c := *next
	c.AcceptedBy = append([]string{}, next.AcceptedBy...)
	c.Version = expectedVersion + 1
	c.UpdatedAt = time.Now()
	m.aggregates[next.PairKey] = &c
	return true, nil
}

// Aggregate returns the stored aggregate for a member set, or nil.
func (m *Memory) Aggregate(memberIDs []string) *models.PairAcceptance {
	m.mu.Lock()
	defer m.mu.Unlock()
	if agg, ok := m.aggregates[models.PairKey(memberIDs)]; ok {
		c := *agg
		return &c
	}
	return nil
}

func (m *Memory) RecordSideEffectFailure(_ context.Context, f models.SideEffectFailure) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, f)
	return nil
}
