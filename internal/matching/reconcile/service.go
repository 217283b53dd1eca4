// Package reconcile turns member accept/decline actions into confirmed matches.
//
// Acceptance for a member set is the union of AcceptedBy over every suggestion
// record sharing that set, folded into a versioned pair_acceptances row. Only
// the caller whose compare-and-swap moves that row to confirmed creates the
// match record, so concurrent accepts converge on exactly one match.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	apperrors "roommate-match-workers/internal/common/errors"
	"roommate-match-workers/internal/common/logger"
	"roommate-match-workers/internal/common/metrics"
	"roommate-match-workers/internal/common/observability"
	"roommate-match-workers/internal/events"
	"roommate-match-workers/internal/matching/blocklist"
	"roommate-match-workers/internal/matching/confirm"
	"roommate-match-workers/internal/matching/notify"
	"roommate-match-workers/internal/matching/store"
	"roommate-match-workers/internal/models"
)

type Action string

const (
	ActionAccept  Action = "accept"
	ActionDecline Action = "decline"
)

type State string

const (
	StateConfirmed State = "confirmed"
	StatePending   State = "pending"
	StateUnchanged State = "unchanged"
	StateDeclined  State = "declined"
)

// Result is returned by Accept and Decline.
type Result struct {
	Suggestion *models.Suggestion  `json:"suggestion"`
	Match      *models.MatchRecord `json:"match,omitempty"`
	State      State               `json:"state"`
}

// SideEffects runs after a pair is confirmed.
type SideEffects interface {
	OnPairConfirmed(ctx context.Context, c confirm.Confirmation) (confirm.Outcome, error)
}

// Blocker writes both blocklist directions.
type Blocker interface {
	Add(ctx context.Context, userID, otherID string) blocklist.Result
}

type Config struct {
	CASRetries        int
	SideEffectTimeout time.Duration
	SweepLockTTL      time.Duration
}

type Service struct {
	config      Config
	store       store.Store
	blocker     Blocker
	sideEffects SideEffects
	notifier    notify.Notifier
	events      events.Emitter
	sweepLock   SweepLocker
	obs         *observability.Observability
	logger      logger.Logger
	now         func() time.Time
	newID       func() string
}

type Options struct {
	Config        Config
	Store         store.Store
	Blocker       Blocker
	SideEffects   SideEffects
	Notifier      notify.Notifier
	Events        events.Emitter
	SweepLock     SweepLocker
	Observability *observability.Observability
	Logger        logger.Logger
	NewID         func() string
}

func NewService(opts Options) *Service {
	cfg := opts.Config
	if cfg.CASRetries <= 0 {
		cfg.CASRetries = 5
	}
	if cfg.SideEffectTimeout <= 0 {
		cfg.SideEffectTimeout = 10 * time.Second
	}
	if cfg.SweepLockTTL <= 0 {
		cfg.SweepLockTTL = 5 * time.Minute
	}
	emitter := opts.Events
	if emitter == nil {
		emitter = events.Nop{}
	}
	newID := opts.NewID
	if newID == nil {
		newID = defaultID
	}
	return &Service{
		config:      cfg,
		store:       opts.Store,
		blocker:     opts.Blocker,
		sideEffects: opts.SideEffects,
		notifier:    opts.Notifier,
		events:      emitter,
		sweepLock:   opts.SweepLock,
		obs:         opts.Observability,
		logger:      opts.Logger.WithFields(map[string]interface{}{"component": "reconcile"}),
		now:         time.Now,
		newID:       newID,
	}
}

// Respond dispatches a caller action.
func (s *Service) Respond(ctx context.Context, suggestionID, actingUser string, action Action) (*Result, error) {
	switch action {
	case ActionAccept:
		return s.Accept(ctx, suggestionID, actingUser)
	case ActionDecline:
		return s.Decline(ctx, suggestionID, actingUser)
	default:
		return nil, apperrors.NewInvalidRequestError(fmt.Sprintf("unknown action %q", action))
	}
}

// count records the outcome of a caller action.
func count(action Action, res *Result, err error) {
	outcome := "error"
	switch {
	case err != nil:
		outcome = string(apperrors.Normalize(err).Code)
	case res != nil:
		outcome = string(res.State)
	}
	metrics.MatchResponses.WithLabelValues(string(action), outcome).Inc()
}

func (s *Service) span(ctx context.Context, name, suggestionID, actingUser string) (context.Context, func()) {
	ctx, span := s.obs.StartSpan(ctx, name,
		attribute.String("suggestion.id", suggestionID),
		attribute.String("user.id", actingUser),
	)
	return ctx, func() { span.End() }
}

func (s *Service) load(ctx context.Context, suggestionID string) (*models.Suggestion, error) {
	sug, err := s.store.GetSuggestionByID(ctx, suggestionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.NewSuggestionNotFoundError(suggestionID)
	}
	if err != nil {
		return nil, apperrors.NewPersistenceFailureError("get suggestion", err)
	}
	return sug, nil
}

// validate runs the checks shared by accept and decline, before any mutation.
func validate(sug *models.Suggestion, actingUser string) error {
	if actingUser == "" {
		return apperrors.NewUnauthorizedError("no acting user")
	}
	if !sug.IsMember(actingUser) {
		return apperrors.NewForbiddenError("acting user is not a member of this suggestion")
	}
	if sug.HasDuplicateMembers() {
		return apperrors.NewInvalidRequestError("suggestion lists the same member twice")
	}
	if len(sug.MemberIDs) < 2 {
		return apperrors.NewInvalidRequestError("suggestion needs at least two members")
	}
	if sug.Kind == models.KindPair && len(sug.MemberIDs) != 2 {
		return apperrors.NewInvalidRequestError("pair suggestion must have exactly two members")
	}
	return nil
}

// fetchAll returns every record for the suggestion's member set, resolved ones
// included, and guarantees the triggering record is among them.
func (s *Service) fetchAll(ctx context.Context, sug *models.Suggestion) ([]*models.Suggestion, error) {
	records, err := s.store.GetSuggestionsForMembers(ctx, sug.MemberIDs, true)
	if err != nil {
		return nil, apperrors.NewPersistenceFailureError("get suggestions for members", err)
	}
	for _, r := range records {
		if r.ID == sug.ID {
			return records, nil
		}
	}
	return append(records, sug), nil
}

func acceptedSets(records []*models.Suggestion) [][]string {
	sets := make([][]string, 0, len(records))
	for _, r := range records {
		sets = append(sets, r.AcceptedBy)
	}
	return sets
}

func find(records []*models.Suggestion, id string) *models.Suggestion {
	for _, r := range records {
		if r.ID == id {
			return r
		}
	}
	return nil
}

func (s *Service) emit(ctx context.Context, name, userID string, props map[string]interface{}) {
	if err := s.events.Emit(ctx, events.New(name, userID, props)); err != nil {
		s.logger.Warn("analytics event failed", map[string]interface{}{"event": name, "error": err})
	}
}

// sideEffectContext detaches from the caller so a dropped request cannot cut
// side effects short once the match is durable.
func (s *Service) sideEffectContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), s.config.SideEffectTimeout)
}
