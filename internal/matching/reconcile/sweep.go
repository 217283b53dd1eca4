package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	apperrors "roommate-match-workers/internal/common/errors"
	"roommate-match-workers/internal/common/lock"
	"roommate-match-workers/internal/models"
)

const (
	sweepLockName  = "sweep:confirm-pending"
	maxSweepErrors = 10
)

// SweepLocker guards ConfirmPending so only one sweep runs at a time.
type SweepLocker interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (*lock.Lease, error)
}

// SweepResult summarises one ConfirmPending run. Errors holds at most ten
// messages; ErrorCount has the full count.
type SweepResult struct {
	Processed  int      `json:"processed"`
	Skipped    int      `json:"skipped"`
	TotalPairs int      `json:"totalPairs"`
	Errors     []string `json:"errors"`
	ErrorCount int      `json:"errorCount"`
}

// ConfirmPending confirms every open pair whose records are jointly accepted
// by both members. Pairs go through the same confirmation as Accept, so
// running it twice is harmless.
func (s *Service) ConfirmPending(ctx context.Context) (*SweepResult, error) {
	ctx, span := s.obs.StartSpan(ctx, "reconcile.confirm_pending")
	defer span.End()

	if s.sweepLock != nil {
		lease, err := s.sweepLock.Acquire(ctx, sweepLockName, s.config.SweepLockTTL)
		if errors.Is(err, lock.ErrNotAcquired) {
			return nil, apperrors.NewConcurrentUpdateError("another confirm-pending sweep is running")
		}
		if err != nil {
			return nil, apperrors.NewUpstreamFailureError("redis", err)
		}
		defer func() {
			if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
				s.logger.Warn("failed to release sweep lock", map[string]interface{}{"error": err})
			}
		}()
	}

	open, err := s.store.ListOpenPairSuggestions(ctx)
	if err != nil {
		return nil, apperrors.NewPersistenceFailureError("list open pair suggestions", err)
	}

	groups := make(map[string][]*models.Suggestion)
	for _, sug := range open {
		groups[sug.Key()] = append(groups[sug.Key()], sug)
	}
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := &SweepResult{TotalPairs: len(keys), Errors: []string{}}
	for _, key := range keys {
		group := groups[key]
		first := group[0]
		if len(first.MemberIDs) != 2 || first.HasDuplicateMembers() {
			result.Skipped++
			continue
		}
		if !models.Covers(models.UnionIDs(acceptedSets(group)...), first.MemberIDs) {
			result.Skipped++
			continue
		}

		if _, err := s.reconcile(ctx, first, "", triggerSweep); err != nil {
			result.ErrorCount++
			if len(result.Errors) < maxSweepErrors {
				result.Errors = append(result.Errors, fmt.Sprintf("Error processing pair %s: %s", key, describe(err)))
			}
			continue
		}
		result.Processed++
	}

	s.logger.Info("confirm-pending sweep finished", map[string]interface{}{
		"processed":  result.Processed,
		"skipped":    result.Skipped,
		"totalPairs": result.TotalPairs,
		"errors":     result.ErrorCount,
	})
	return result, nil
}

func describe(err error) string {
	stdErr, ok := apperrors.As(err)
	if !ok {
		return err.Error()
	}
	if stdErr.Details == "" {
		return stdErr.Message
	}
	return stdErr.Message + " (" + stdErr.Details + ")"
}
