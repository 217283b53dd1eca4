package compatibility

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	apperrors "roommate-match-workers/internal/common/errors"
	"roommate-match-workers/internal/common/logger"
	"roommate-match-workers/internal/common/metrics"
	"roommate-match-workers/internal/common/observability"
	"roommate-match-workers/internal/events"
	"roommate-match-workers/internal/models"
)

// Service loads features, runs the engine and stores the snapshot.
type Service struct {
	engine   *Engine
	provider FeatureProvider
	scores   ScoreStore
	events   events.Emitter
	obs      *observability.Observability
	logger   logger.Logger

	inflight singleflight.Group
}

func NewService(engine *Engine, provider FeatureProvider, scores ScoreStore, emitter events.Emitter, obs *observability.Observability, log logger.Logger) *Service {
	if emitter == nil {
		emitter = events.Nop{}
	}
	return &Service{
		engine:   engine,
		provider: provider,
		scores:   scores,
		events:   emitter,
		obs:      obs,
		logger:   log.WithFields(map[string]interface{}{"component": "compatibility"}),
	}
}

// Calculate scores cohort and overwrites the stored snapshot for its chat.
func (s *Service) Calculate(ctx context.Context, cohort models.Cohort) (*models.GroupCompatibilityScore, error) {
	ctx, span := s.obs.StartSpan(ctx, "compatibility.calculate",
		attribute.String("chat.id", cohort.ChatID),
		attribute.Int("cohort.size", len(cohort.MemberIDs)),
	)
	defer span.End()

	intent := NormalizeIntent(cohort.GroupIntent)
	score, err := s.calculate(ctx, cohort)
	if err != nil {
		metrics.CompatibilityCalculations.WithLabelValues(string(intent), string(apperrors.Normalize(err).Code)).Inc()
		return nil, err
	}
	metrics.CompatibilityCalculations.WithLabelValues(string(intent), "ok").Inc()
	metrics.CompatibilityOverallScore.Observe(score.OverallScore)
	return score, nil
}

func (s *Service) calculate(ctx context.Context, cohort models.Cohort) (*models.GroupCompatibilityScore, error) {
	if len(cohort.MemberIDs) < 2 {
		return nil, apperrors.NewInvalidRequestError("group must have at least 2 members")
	}

	features := make(map[string]*MemberFeatures, len(cohort.MemberIDs))
	for _, id := range cohort.MemberIDs {
		f, err := s.provider.Features(ctx, id)
		if errors.Is(err, ErrFeaturesNotFound) {
			return nil, apperrors.NewFeaturesUnavailableError(id)
		}
		if err != nil {
			return nil, apperrors.NewPersistenceFailureError("load member features", err)
		}
		features[id] = f
	}

	score, err := s.engine.Compute(cohort, features)
	if err != nil {
		return nil, err
	}
	if err := s.scores.Save(ctx, score); err != nil {
		return nil, apperrors.NewPersistenceFailureError("save compatibility score", err)
	}

	s.logger.Info("group compatibility calculated", map[string]interface{}{
		"chatId":       score.ChatID,
		"intent":       string(score.GroupIntent),
		"overallScore": score.OverallScore,
		"members":      len(cohort.MemberIDs),
	})
	if err := s.events.Emit(ctx, events.New(models.EventGroupCompatScore, "", map[string]interface{}{
		"chatId":       score.ChatID,
		"groupIntent":  string(score.GroupIntent),
		"overallScore": score.OverallScore,
		"memberCount":  len(cohort.MemberIDs),
	})); err != nil {
		s.logger.Warn("analytics event failed", map[string]interface{}{"chatId": score.ChatID, "error": err})
	}
	return score, nil
}

// Cohort returns the chat's intent and active members.
func (s *Service) Cohort(ctx context.Context, chatID string) (models.Cohort, error) {
	cohort, err := s.scores.LoadCohort(ctx, chatID)
	if errors.Is(err, ErrChatNotFound) {
		return cohort, apperrors.NewChatNotFoundError(chatID)
	}
	if err != nil {
		return cohort, apperrors.NewPersistenceFailureError("load cohort", err)
	}
	return cohort, nil
}

// RecalculateForChat rescores the chat's active members. Concurrent calls for
// the same chat share one computation.
func (s *Service) RecalculateForChat(ctx context.Context, chatID string) (*models.GroupCompatibilityScore, error) {
	v, err, _ := s.inflight.Do(chatID, func() (interface{}, error) {
		cohort, err := s.Cohort(ctx, chatID)
		if err != nil {
			return nil, err
		}
		if len(cohort.MemberIDs) < 2 {
			return nil, apperrors.NewInvalidRequestError("group must have at least 2 active members")
		}
		return s.Calculate(ctx, cohort)
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.GroupCompatibilityScore), nil
}

// Get returns the stored snapshot of a chat.
func (s *Service) Get(ctx context.Context, chatID string) (*models.GroupCompatibilityScore, error) {
	score, err := s.scores.Get(ctx, chatID)
	if errors.Is(err, ErrScoreNotFound) {
		return nil, apperrors.NewChatNotFoundError(chatID)
	}
	if err != nil {
		return nil, apperrors.NewPersistenceFailureError("get compatibility score", err)
	}
	return score, nil
}
