package reconcile

import (
	"context"
	"errors"

	apperrors "roommate-match-workers/internal/common/errors"
	"roommate-match-workers/internal/common/metrics"
	"roommate-match-workers/internal/matching/confirm"
	"roommate-match-workers/internal/matching/store"
	"roommate-match-workers/internal/models"
)

const (
	triggerAccept = "accept"
	triggerSweep  = "sweep"
	triggerRepair = "repair"
)

// Accept records actingUser's acceptance and confirms the member set once
// every member has accepted on any of its records.
func (s *Service) Accept(ctx context.Context, suggestionID, actingUser string) (*Result, error) {
	ctx, end := s.span(ctx, "reconcile.accept", suggestionID, actingUser)
	defer end()

	res, err := s.accept(ctx, suggestionID, actingUser)
	count(ActionAccept, res, err)
	return res, err
}

func (s *Service) accept(ctx context.Context, suggestionID, actingUser string) (*Result, error) {
	sug, err := s.load(ctx, suggestionID)
	if err != nil {
		return nil, err
	}
	if err := validate(sug, actingUser); err != nil {
		return nil, err
	}

	switch {
	case sug.Status == models.StatusDeclined:
		return nil, apperrors.NewInvalidRequestError("suggestion was declined")
	case sug.Status == models.StatusConfirmed:
		return s.existing(ctx, sug)
	case sug.IsExpired(s.now()):
		s.markExpired(ctx, sug)
		return nil, apperrors.NewSuggestionExpiredError(sug.ID)
	}

	return s.reconcile(ctx, sug, actingUser, triggerAccept)
}

// existing answers an accept on an already confirmed record.
func (s *Service) existing(ctx context.Context, sug *models.Suggestion) (*Result, error) {
	agg, err := s.store.LoadPairAcceptance(ctx, sug.MemberIDs)
	if err != nil {
		return nil, apperrors.NewPersistenceFailureError("load pair acceptance", err)
	}
	if agg.Status == models.AggregateConfirmed {
		return s.alreadyConfirmed(ctx, sug, agg, "")
	}
	return &Result{Suggestion: sug, State: StateUnchanged}, nil
}

func (s *Service) markExpired(ctx context.Context, sug *models.Suggestion) {
	if sug.Status == models.StatusExpired {
		return
	}
	if err := s.store.UpdateSuggestionAcceptedByAndStatus(ctx, sug.ID, sug.AcceptedBy, models.StatusExpired); err != nil {
		s.logger.Warn("failed to mark suggestion expired", map[string]interface{}{
			"suggestionId": sug.ID,
			"error":        err,
		})
	}
}

func actorSet(actingUser string) []string {
	if actingUser == "" {
		return nil
	}
	return []string{actingUser}
}

// reconcile folds the acceptance union into the aggregate row and confirms
// when it covers every member. actingUser is empty for the sweep.
func (s *Service) reconcile(ctx context.Context, sug *models.Suggestion, actingUser, trigger string) (*Result, error) {
	for attempt := 0; attempt < s.config.CASRetries; attempt++ {
		agg, err := s.store.LoadPairAcceptance(ctx, sug.MemberIDs)
		if err != nil {
			return nil, apperrors.NewPersistenceFailureError("load pair acceptance", err)
		}
		switch agg.Status {
		case models.AggregateConfirmed:
			return s.alreadyConfirmed(ctx, sug, agg, actingUser)
		case models.AggregateDeclined:
			return nil, apperrors.NewInvalidRequestError("member set was declined")
		}

		records, err := s.fetchAll(ctx, sug)
		if err != nil {
			return nil, err
		}
		union := models.UnionIDs(append(acceptedSets(records), agg.AcceptedBy, actorSet(actingUser))...)

		if models.Covers(union, sug.MemberIDs) {
			next := *agg
			next.AcceptedBy = union
			next.Status = models.AggregateConfirmed
			next.MatchID = s.newID()
			won, err := s.store.CompareAndSwapPairAcceptance(ctx, &next, agg.Version)
			if err != nil {
				return nil, apperrors.NewPersistenceFailureError("update pair acceptance", err)
			}
			if !won {
				metrics.AggregateConflicts.Inc()
				continue
			}
			return s.confirm(ctx, sug, records, union, next.MatchID, actingUser, trigger)
		}

		aggChanged := !models.Covers(agg.AcceptedBy, union)
		if aggChanged {
			next := *agg
			next.AcceptedBy = union
			won, err := s.store.CompareAndSwapPairAcceptance(ctx, &next, agg.Version)
			if err != nil {
				return nil, apperrors.NewPersistenceFailureError("update pair acceptance", err)
			}
			if !won {
				metrics.AggregateConflicts.Inc()
				continue
			}
		}

		written, err := s.markAccepted(ctx, records, actingUser)
		if err != nil {
			return nil, err
		}

		// The writes above may have landed on records another caller resolved
		// after our read. The aggregate tells us whether that happened.
		after, err := s.store.LoadPairAcceptance(ctx, sug.MemberIDs)
		if err != nil {
			return nil, apperrors.NewPersistenceFailureError("load pair acceptance", err)
		}
		switch after.Status {
		case models.AggregateConfirmed:
			continue
		case models.AggregateDeclined:
			s.restoreDeclined(ctx, written)
			return nil, apperrors.NewInvalidRequestError("member set was declined")
		}

		fresh, err := s.fetchAll(ctx, sug)
		if err != nil {
			return nil, err
		}
		if models.Covers(models.UnionIDs(append(acceptedSets(fresh), union)...), sug.MemberIDs) {
			// another member accepted in between; go round again to confirm
			continue
		}

		current := find(fresh, sug.ID)
		if !aggChanged && len(written) == 0 {
			return &Result{Suggestion: current, State: StateUnchanged}, nil
		}
		if actingUser != "" {
			s.announceAccept(ctx, current, actingUser)
		}
		return &Result{Suggestion: current, State: StatePending}, nil
	}

	return nil, apperrors.NewConcurrentUpdateError("pair " + sug.Key() + " kept changing, retries exhausted")
}

// markAccepted adds actingUser to every open record of the member set and
// returns the records it wrote.
func (s *Service) markAccepted(ctx context.Context, records []*models.Suggestion, actingUser string) ([]*models.Suggestion, error) {
	if actingUser == "" {
		return nil, nil
	}
	var written []*models.Suggestion
	for _, r := range records {
		if r.Status.IsResolved() {
			continue
		}
		next := models.UnionIDs(r.AcceptedBy, []string{actingUser})
		if r.Status == models.StatusAccepted && models.Covers(r.AcceptedBy, next) {
			continue
		}
		if err := s.store.UpdateSuggestionAcceptedByAndStatus(ctx, r.ID, next, models.StatusAccepted); err != nil {
			return written, apperrors.NewPersistenceFailureError("update suggestion", err)
		}
		w := *r
		w.AcceptedBy = next
		w.Status = models.StatusAccepted
		written = append(written, &w)
	}
	return written, nil
}

// restoreDeclined closes records written after a concurrent decline.
func (s *Service) restoreDeclined(ctx context.Context, written []*models.Suggestion) {
	for _, r := range written {
		if err := s.store.UpdateSuggestionAcceptedByAndStatus(ctx, r.ID, r.AcceptedBy, models.StatusDeclined); err != nil {
			s.logger.Warn("failed to restore declined status", map[string]interface{}{
				"suggestionId": r.ID,
				"error":        err,
			})
		}
	}
}

// alreadyConfirmed handles an aggregate some earlier caller confirmed. A
// missing match record means that caller stopped before persisting it, so the
// confirmation is finished here under the same match id.
func (s *Service) alreadyConfirmed(ctx context.Context, sug *models.Suggestion, agg *models.PairAcceptance, actingUser string) (*Result, error) {
	records, err := s.fetchAll(ctx, sug)
	if err != nil {
		return nil, err
	}

	match, err := s.store.GetMatchByID(ctx, agg.MatchID)
	if errors.Is(err, store.ErrNotFound) {
		union := models.UnionIDs(append(acceptedSets(records), agg.AcceptedBy)...)
		return s.confirm(ctx, sug, records, union, agg.MatchID, actingUser, triggerRepair)
	}
	if err != nil {
		return nil, apperrors.NewPersistenceFailureError("get match", err)
	}

	// records from a later generation run still read open
	for _, r := range records {
		if r.Status.IsResolved() {
			continue
		}
		union := models.UnionIDs(r.AcceptedBy, agg.AcceptedBy)
		if err := s.store.UpdateSuggestionAcceptedByAndStatus(ctx, r.ID, union, models.StatusConfirmed); err != nil {
			return nil, apperrors.NewPersistenceFailureError("update suggestion", err)
		}
		r.AcceptedBy = union
		r.Status = models.StatusConfirmed
	}

	return &Result{Suggestion: find(records, sug.ID), Match: match, State: StateUnchanged}, nil
}

// confirm persists the confirmation, then runs side effects. Store failures
// abort; side-effect failures never do.
func (s *Service) confirm(ctx context.Context, sug *models.Suggestion, records []*models.Suggestion, union []string, matchID, actingUser, trigger string) (*Result, error) {
	for _, r := range records {
		if r.Status == models.StatusDeclined {
			continue
		}
		if r.Status == models.StatusConfirmed && models.Covers(r.AcceptedBy, union) {
			continue
		}
		if err := s.store.UpdateSuggestionAcceptedByAndStatus(ctx, r.ID, union, models.StatusConfirmed); err != nil {
			return nil, apperrors.NewPersistenceFailureError("update suggestion", err)
		}
	}

	match := models.NewMatchRecord(matchID, sug, s.now().UTC())
	if err := s.store.SaveMatches(ctx, []*models.MatchRecord{match}); err != nil {
		return nil, apperrors.NewPersistenceFailureError("save match", err)
	}
	if err := s.store.LockMatch(ctx, match.MemberIDs, match.RunID); err != nil {
		return nil, apperrors.NewPersistenceFailureError("lock match", err)
	}
	if err := s.store.MarkUsersMatched(ctx, match.MemberIDs, match.RunID); err != nil {
		return nil, apperrors.NewPersistenceFailureError("mark users matched", err)
	}

	metrics.MatchConfirmations.WithLabelValues(string(sug.Kind), trigger).Inc()
	s.logger.Info("match confirmed", map[string]interface{}{
		"matchId":      matchID,
		"pairKey":      sug.Key(),
		"suggestionId": sug.ID,
		"trigger":      trigger,
	})
	s.emit(ctx, models.EventMatchConfirmed, actingUser, map[string]interface{}{
		"suggestionId": sug.ID,
		"matchId":      matchID,
		"pairKey":      sug.Key(),
		"memberIds":    match.MemberIDs,
		"kind":         string(sug.Kind),
		"trigger":      trigger,
	})

	if sug.Kind == models.KindPair {
		s.pairConfirmed(ctx, sug, matchID, actingUser)
	}

	confirmed := *sug
	confirmed.AcceptedBy = union
	confirmed.Status = models.StatusConfirmed
	return &Result{Suggestion: &confirmed, Match: match, State: StateConfirmed}, nil
}

func (s *Service) pairConfirmed(ctx context.Context, sug *models.Suggestion, matchID, actingUser string) {
	if s.sideEffects == nil {
		return
	}
	ids := models.SortedIDs(sug.MemberIDs)
	conf := confirm.Confirmation{UserA: ids[0], UserB: ids[1], SuggestionID: sug.ID, MatchID: matchID}
	if actingUser != "" {
		conf.UserA = actingUser
		conf.UserB = sug.OtherMembers(actingUser)[0]
	}

	sctx, cancel := s.sideEffectContext(ctx)
	defer cancel()
	out, err := s.sideEffects.OnPairConfirmed(sctx, conf)
	if err != nil {
		s.logger.Warn("confirmation side effects rejected", map[string]interface{}{
			"matchId": matchID,
			"error":   err,
		})
		return
	}
	s.logger.Debug("confirmation side effects done", map[string]interface{}{
		"matchId":     matchID,
		"chatId":      out.ChatID,
		"chatCreated": out.ChatCreated,
	})
}

// announceAccept tells the other members that actingUser accepted.
func (s *Service) announceAccept(ctx context.Context, sug *models.Suggestion, actingUser string) {
	s.emit(ctx, models.EventMatchAccepted, actingUser, map[string]interface{}{
		"suggestionId": sug.ID,
		"pairKey":      sug.Key(),
		"acceptedBy":   sug.AcceptedBy,
	})
	if s.notifier == nil {
		return
	}

	sctx, cancel := s.sideEffectContext(ctx)
	defer cancel()
	for _, other := range sug.OtherMembers(actingUser) {
		if err := s.notifier.NotifyMatchAccepted(sctx, other, actingUser, sug.ID); err != nil {
			metrics.SideEffectFailures.WithLabelValues("notification").Inc()
			s.logger.Warn("accept notification failed", map[string]interface{}{
				"suggestionId": sug.ID,
				"recipient":    other,
				"error":        err,
			})
		}
	}
}
