package api

import (
	"fmt"
	"net/http"
	"time"

	"roommate-match-workers/internal/common/auth"
	apperrors "roommate-match-workers/internal/common/errors"
	apihttp "roommate-match-workers/internal/common/http"
	"roommate-match-workers/internal/common/metrics"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		fields := map[string]interface{}{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     rec.status,
			"durationMs": time.Since(start).Milliseconds(),
		}
		if rec.status >= http.StatusInternalServerError {
			s.logger.Error("request failed", fields)
			return
		}
		s.logger.Debug("request served", fields)
	})
}

func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				s.logger.Error("panic in handler", map[string]interface{}{
					"path":  r.URL.Path,
					"panic": fmt.Sprint(p),
				})
				apihttp.WriteError(w, apperrors.NewInternalError(fmt.Errorf("panic: %v", p)), s.devMode)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// authenticate resolves the bearer token into a session on the request context.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, err := s.sessions.Verify(r.Header.Get("Authorization"))
		if err != nil {
			s.writeError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithSession(r.Context(), session)))
	})
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, ok := auth.SessionFromContext(r.Context())
		if !ok || !session.IsAdmin() {
			s.writeError(w, apperrors.NewForbiddenError("admin role required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// rateLimited applies the per-user limiter. Limiter outages let requests through.
func (s *Server) rateLimited(scope string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, _ := auth.SessionFromContext(r.Context())
		if s.limiter != nil {
			res, err := s.limiter.Allow(r.Context(), scope+":"+session.UserID)
			if err != nil {
				s.logger.Warn("rate limiter unavailable, allowing request", map[string]interface{}{
					"scope": scope,
					"error": err,
				})
			}
			if !res.Allowed {
				metrics.RateLimited.WithLabelValues(scope).Inc()
				s.writeError(w, apperrors.NewRateLimitedError(res.RetryAfter))
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	if status := apihttp.WriteError(w, err, s.devMode); status >= http.StatusInternalServerError {
		s.logger.Error("request error", map[string]interface{}{"error": err})
	}
}
