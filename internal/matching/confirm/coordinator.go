// Package confirm runs the side effects of a confirmed pair match.
package confirm

import (
	"context"
	"errors"
	"time"

	apperrors "roommate-match-workers/internal/common/errors"
	"roommate-match-workers/internal/common/lock"
	"roommate-match-workers/internal/common/logger"
	"roommate-match-workers/internal/common/metrics"
	"roommate-match-workers/internal/matching/chat"
	"roommate-match-workers/internal/matching/notify"
	"roommate-match-workers/internal/models"
)

// Confirmation identifies a just-confirmed pair.
type Confirmation struct {
	UserA        string
	UserB        string
	SuggestionID string
	MatchID      string
}

// Outcome reports what the coordinator did.
type Outcome struct {
	ChatID      string
	ChatCreated bool
	ChatErr     error
	NotifyErr   error
}

// FailureRecorder stores side effects that need manual follow-up.
type FailureRecorder interface {
	RecordSideEffectFailure(ctx context.Context, f models.SideEffectFailure) error
}

// PairLocker serializes coordinators for the same pair across processes.
type PairLocker interface {
	AcquireWait(ctx context.Context, name string, ttl, poll time.Duration) (*lock.Lease, error)
}

type Coordinator struct {
	chats    chat.Service
	notifier notify.Notifier
	failures FailureRecorder
	locker   PairLocker
	lockTTL  time.Duration
	logger   logger.Logger
	now      func() time.Time
}

// NewCoordinator wires the coordinator. locker may be nil, in which case no
// cross-process serialization is attempted.
func NewCoordinator(chats chat.Service, notifier notify.Notifier, failures FailureRecorder, locker PairLocker, lockTTL time.Duration, log logger.Logger) *Coordinator {
	return &Coordinator{
		chats:    chats,
		notifier: notifier,
		failures: failures,
		locker:   locker,
		lockTTL:  lockTTL,
		logger:   log.WithFields(map[string]interface{}{"component": "confirm"}),
		now:      time.Now,
	}
}

// OnPairConfirmed ensures one direct chat exists for the pair and notifies both
// members. Only identical member ids are an error; every side-effect failure is
// logged, recorded and reported in the outcome.
func (c *Coordinator) OnPairConfirmed(ctx context.Context, conf Confirmation) (Outcome, error) {
	if conf.UserA == conf.UserB {
		return Outcome{}, apperrors.NewInvalidRequestError("cannot confirm a match with yourself")
	}

	log := c.logger.WithFields(map[string]interface{}{
		"matchId": conf.MatchID,
		"userA":   conf.UserA,
		"userB":   conf.UserB,
	})

	release := c.lockPair(ctx, conf, log)
	var out Outcome
	out.ChatID, out.ChatCreated, out.ChatErr = c.ensureChat(ctx, conf)
	release()

	if out.ChatErr != nil {
		c.recordFailure(ctx, conf, "chat", out.ChatErr, log)
	} else {
		log.Info("match chat ready", map[string]interface{}{"chatId": out.ChatID, "created": out.ChatCreated})
	}

	if out.NotifyErr = c.notifier.NotifyMatchConfirmed(ctx, conf.UserA, conf.UserB, conf.MatchID, out.ChatID); out.NotifyErr != nil {
		metrics.SideEffectFailures.WithLabelValues("notification").Inc()
		log.Warn("match confirmed notification failed", map[string]interface{}{"error": out.NotifyErr})
	}
	return out, nil
}

func (c *Coordinator) lockPair(ctx context.Context, conf Confirmation, log logger.Logger) func() {
	if c.locker == nil {
		return func() {}
	}
	waitCtx, cancel := context.WithTimeout(ctx, c.lockTTL)
	defer cancel()

	lease, err := c.locker.AcquireWait(waitCtx, "chat:"+models.PairKey([]string{conf.UserA, conf.UserB}), c.lockTTL, 50*time.Millisecond)
	if err != nil {
		// Proceed unlocked; FindSharedChat still covers sequential retries.
		log.Warn("pair lock unavailable, continuing without it", map[string]interface{}{"error": err})
		return func() {}
	}
	return func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			log.Warn("pair lock release failed", map[string]interface{}{"error": err})
		}
	}
}

func (c *Coordinator) ensureChat(ctx context.Context, conf Confirmation) (string, bool, error) {
	chatID, found, err := c.chats.FindSharedChat(ctx, conf.UserA, conf.UserB)
	if err != nil {
		return "", false, err
	}
	if found {
		return chatID, false, nil
	}

	chatID, err = c.chats.CreateChat(ctx, conf.UserA)
	if err != nil {
		return "", false, err
	}
	if err := c.chats.AddMembers(ctx, chatID, []string{conf.UserA, conf.UserB}); err != nil {
		return chatID, true, err
	}
	if err := c.chats.PostSystemMessage(ctx, chatID, conf.UserA, chat.WelcomeMessage); err != nil {
		return chatID, true, err
	}
	if err := c.chats.TouchChat(ctx, chatID); err != nil {
		return chatID, true, err
	}
	return chatID, true, nil
}

func (c *Coordinator) recordFailure(ctx context.Context, conf Confirmation, effect string, cause error, log logger.Logger) {
	metrics.SideEffectFailures.WithLabelValues(effect).Inc()
	log.Error("match side effect failed", map[string]interface{}{"effect": effect, "error": cause})

	if c.failures == nil {
		return
	}
	err := c.failures.RecordSideEffectFailure(context.WithoutCancel(ctx), models.SideEffectFailure{
		MatchID:   conf.MatchID,
		Effect:    effect,
		MemberIDs: []string{conf.UserA, conf.UserB},
		Error:     cause.Error(),
		CreatedAt: c.now().UTC(),
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("could not record side effect failure", map[string]interface{}{"error": err})
	}
}
