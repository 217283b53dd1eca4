package reconcile

import (
	"context"

	apperrors "roommate-match-workers/internal/common/errors"
	"roommate-match-workers/internal/common/metrics"
	"roommate-match-workers/internal/models"
)

// Decline rejects the suggestion for the whole member set and blocks the acting
// user against every other member in both directions. Repeating it is safe.
func (s *Service) Decline(ctx context.Context, suggestionID, actingUser string) (*Result, error) {
	ctx, end := s.span(ctx, "reconcile.decline", suggestionID, actingUser)
	defer end()

	res, err := s.decline(ctx, suggestionID, actingUser)
	count(ActionDecline, res, err)
	return res, err
}

func (s *Service) decline(ctx context.Context, suggestionID, actingUser string) (*Result, error) {
	sug, err := s.load(ctx, suggestionID)
	if err != nil {
		return nil, err
	}
	if err := validate(sug, actingUser); err != nil {
		return nil, err
	}
	if sug.Status == models.StatusConfirmed {
		return nil, apperrors.NewInvalidRequestError("confirmed suggestions cannot be declined")
	}

	if err := s.declineAggregate(ctx, sug); err != nil {
		return nil, err
	}
	if sug.Status != models.StatusDeclined {
		if err := s.store.UpdateSuggestionAcceptedByAndStatus(ctx, sug.ID, sug.AcceptedBy, models.StatusDeclined); err != nil {
			return nil, apperrors.NewPersistenceFailureError("update suggestion", err)
		}
		sug.Status = models.StatusDeclined
	}

	for _, other := range sug.OtherMembers(actingUser) {
		res := s.blocker.Add(ctx, actingUser, other)
		succeeded := res.Succeeded()
		if len(succeeded) == 0 {
			continue
		}
		s.emit(ctx, models.EventMatchBlocked, actingUser, map[string]interface{}{
			"suggestionId":  sug.ID,
			"blockedUserId": other,
			"directions":    len(succeeded),
		})
	}

	s.emit(ctx, models.EventMatchRejected, actingUser, map[string]interface{}{
		"suggestionId": sug.ID,
		"pairKey":      sug.Key(),
		"memberIds":    sug.MemberIDs,
	})
	s.logger.Info("suggestion declined", map[string]interface{}{
		"suggestionId": sug.ID,
		"userId":       actingUser,
	})

	return &Result{Suggestion: sug, State: StateDeclined}, nil
}

// declineAggregate closes the member set so no other record of it can confirm.
func (s *Service) declineAggregate(ctx context.Context, sug *models.Suggestion) error {
	for attempt := 0; attempt < s.config.CASRetries; attempt++ {
		agg, err := s.store.LoadPairAcceptance(ctx, sug.MemberIDs)
		if err != nil {
			return apperrors.NewPersistenceFailureError("load pair acceptance", err)
		}
		switch agg.Status {
		case models.AggregateDeclined:
			return nil
		case models.AggregateConfirmed:
			return apperrors.NewInvalidRequestError("member set is already confirmed")
		}

		next := *agg
		next.Status = models.AggregateDeclined
		won, err := s.store.CompareAndSwapPairAcceptance(ctx, &next, agg.Version)
		if err != nil {
			return apperrors.NewPersistenceFailureError("update pair acceptance", err)
		}
		if won {
			return nil
		}
		metrics.AggregateConflicts.Inc()
	}
	return apperrors.NewConcurrentUpdateError("pair " + sug.Key() + " kept changing, retries exhausted")
}
