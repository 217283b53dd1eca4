package api

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gorilla/mux"

	"roommate-match-workers/internal/common/auth"
	apperrors "roommate-match-workers/internal/common/errors"
	apihttp "roommate-match-workers/internal/common/http"
	"roommate-match-workers/internal/common/validation"
	"roommate-match-workers/internal/matching/reconcile"
)

type respondRequest struct {
	SuggestionID string `json:"suggestionId" validate:"required,uuid"`
	Action       string `json:"action" validate:"required,oneof=accept decline"`
}

func (s *Server) handleRespond(w http.ResponseWriter, r *http.Request) {
	session, _ := auth.SessionFromContext(r.Context())

	var req respondRequest
	if err := apihttp.DecodeJSON(r, w, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if err := validation.Struct(req); err != nil {
		s.writeError(w, err)
		return
	}

	res, err := s.matcher.Respond(r.Context(), req.SuggestionID, session.UserID, reconcile.Action(req.Action))
	if err != nil {
		s.writeError(w, err)
		return
	}
	apihttp.WriteJSON(w, http.StatusOK, res)
}

func (s *Server) handleConfirmPending(w http.ResponseWriter, r *http.Request) {
	res, err := s.matcher.ConfirmPending(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	apihttp.WriteJSON(w, http.StatusOK, res)
}

// authorizeChat lets admins and active members of the chat through.
func (s *Server) authorizeChat(r *http.Request) (string, error) {
	chatID := mux.Vars(r)["chatId"]
	session, _ := auth.SessionFromContext(r.Context())
	if session.IsAdmin() {
		return chatID, nil
	}
	cohort, err := s.compat.Cohort(r.Context(), chatID)
	if err != nil {
		return chatID, err
	}
	for _, id := range cohort.MemberIDs {
		if id == session.UserID {
			return chatID, nil
		}
	}
	return chatID, apperrors.NewForbiddenError("not a member of this chat")
}

func (s *Server) handleRecalculate(w http.ResponseWriter, r *http.Request) {
	chatID, err := s.authorizeChat(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	score, err := s.compat.RecalculateForChat(r.Context(), chatID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	apihttp.WriteJSON(w, http.StatusOK, score)
}

func (s *Server) handleGetCompatibility(w http.ResponseWriter, r *http.Request) {
	chatID, err := s.authorizeChat(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	score, err := s.compat.Get(r.Context(), chatID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	apihttp.WriteJSON(w, http.StatusOK, score)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	apihttp.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	failed := []string{}
	for name, p := range s.readiness {
		if err := p.Ping(ctx); err != nil {
			s.logger.Warn("readiness check failed", map[string]interface{}{"dependency": name, "error": err})
			failed = append(failed, name)
		}
	}
	if len(failed) > 0 {
		sort.Strings(failed)
		apihttp.WriteJSON(w, http.StatusServiceUnavailable, map[string]interface{}{"status": "unavailable", "failed": failed})
		return
	}
	apihttp.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
