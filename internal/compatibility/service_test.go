package compatibility

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "roommate-match-workers/internal/common/errors"
	"roommate-match-workers/internal/common/logger"
	"roommate-match-workers/internal/models"
)

// ==========================
// Fakes
// ==========================

type mapProvider map[string]*MemberFeatures

func (m mapProvider) Features(_ context.Context, userID string) (*MemberFeatures, error) {
	f, ok := m[userID]
	if !ok {
		return nil, ErrFeaturesNotFound
	}
	return f, nil
}

type memoryScores struct {
	mu      sync.Mutex
	saved   map[string]*models.GroupCompatibilityScore
	cohorts map[string]models.Cohort
	loads   int32
	gate    chan struct{}
	saveErr error
}

func newMemoryScores() *memoryScores {
	return &memoryScores{
		saved:   map[string]*models.GroupCompatibilityScore{},
		cohorts: map[string]models.Cohort{},
	}
}

func (m *memoryScores) Save(_ context.Context, s *models.GroupCompatibilityScore) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved[s.ChatID] = s
	return nil
}

func (m *memoryScores) Get(_ context.Context, chatID string) (*models.GroupCompatibilityScore, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.saved[chatID]
	if !ok {
		return nil, ErrScoreNotFound
	}
	return s, nil
}

func (m *memoryScores) LoadCohort(_ context.Context, chatID string) (models.Cohort, error) {
	atomic.AddInt32(&m.loads, 1)
	if m.gate != nil {
		<-m.gate
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cohorts[chatID]
	if !ok {
		return models.Cohort{}, ErrChatNotFound
	}
	return c, nil
}

type eventSink struct {
	mu     sync.Mutex
	events []models.Event
}

func (e *eventSink) Emit(_ context.Context, ev models.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
	return nil
}

func newTestService(t *testing.T, provider FeatureProvider, scores ScoreStore, sink *eventSink) *Service {
	t.Helper()
	return NewService(newTestEngine(t), provider, scores, sink, nil, logger.NewTestLogger(t))
}

func threeMembers() mapProvider {
	s := ScheduleData{SleepStart: 23, SleepEnd: 7, StudyIntensity: 3}
	return mapProvider{"a": member("a", s), "b": member("b", s), "c": member("c", s)}
}

// ==========================
// Tests
// ==========================

func TestCalculate_SavesAndEmits(t *testing.T) {
	scores := newMemoryScores()
	sink := &eventSink{}
	svc := newTestService(t, threeMembers(), scores, sink)

	got, err := svc.Calculate(context.Background(), models.Cohort{ChatID: "chat-1", MemberIDs: []string{"a", "b", "c"}, GroupIntent: "unknown"})
	require.NoError(t, err)

	assert.Equal(t, models.IntentGeneral, got.GroupIntent)
	assert.Same(t, got, scores.saved["chat-1"])
	require.Len(t, sink.events, 1)
	assert.Equal(t, models.EventGroupCompatScore, sink.events[0].Name)
	assert.Equal(t, "chat-1", sink.events[0].Properties["chatId"])
}

func TestCalculate_Failures(t *testing.T) {
	tests := []struct {
		name    string
		members []string
		saveErr error
		want    apperrors.ErrorCode
	}{
		{"too few members", []string{"a"}, nil, apperrors.ErrCodeInvalidRequest},
		{"unknown member", []string{"a", "zed"}, nil, apperrors.ErrCodeFeaturesUnavailable},
		{"store down", []string{"a", "b"}, errors.New("disk full"), apperrors.ErrCodePersistenceFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scores := newMemoryScores()
			scores.saveErr = tt.saveErr
			svc := newTestService(t, threeMembers(), scores, &eventSink{})

			_, err := svc.Calculate(context.Background(), models.Cohort{ChatID: "chat-1", MemberIDs: tt.members})
			require.Error(t, err)
			assert.True(t, apperrors.HasCode(err, tt.want), "got %v", err)
			assert.Empty(t, scores.saved)
		})
	}
}

func TestRecalculateForChat(t *testing.T) {
	scores := newMemoryScores()
	scores.cohorts["chat-1"] = models.Cohort{ChatID: "chat-1", MemberIDs: []string{"a", "b"}, GroupIntent: models.IntentStudy}
	scores.cohorts["lonely"] = models.Cohort{ChatID: "lonely", MemberIDs: []string{"a"}}
	svc := newTestService(t, threeMembers(), scores, &eventSink{})
	ctx := context.Background()

	got, err := svc.RecalculateForChat(ctx, "chat-1")
	require.NoError(t, err)
	assert.Equal(t, models.IntentStudy, got.GroupIntent)

	stored, err := svc.Get(ctx, "chat-1")
	require.NoError(t, err)
	assert.Equal(t, got.OverallScore, stored.OverallScore)

	_, err = svc.RecalculateForChat(ctx, "missing")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeChatNotFound))

	_, err = svc.RecalculateForChat(ctx, "lonely")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidRequest))

	_, err = svc.Get(ctx, "missing")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeChatNotFound))
}

func TestRecalculateForChat_CollapsesConcurrentCalls(t *testing.T) {
	scores := newMemoryScores()
	scores.cohorts["chat-1"] = models.Cohort{ChatID: "chat-1", MemberIDs: []string{"a", "b", "c"}}
	scores.gate = make(chan struct{})
	svc := newTestService(t, threeMembers(), scores, &eventSink{})

	var wg sync.WaitGroup
	results := make([]*models.GroupCompatibilityScore, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := svc.RecalculateForChat(context.Background(), "chat-1")
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}

	time.Sleep(100 * time.Millisecond)
	close(scores.gate)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&scores.loads))
	for _, r := range results {
		assert.Same(t, results[0], r)
	}
}
