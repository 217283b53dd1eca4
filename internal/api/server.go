// Package api exposes the reconciliation and compatibility services over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"roommate-match-workers/internal/common/auth"
	"roommate-match-workers/internal/common/logger"
	"roommate-match-workers/internal/common/ratelimit"
	"roommate-match-workers/internal/matching/reconcile"
	"roommate-match-workers/internal/models"
)

// Matcher is the reconciliation surface used by the handlers.
type Matcher interface {
	Respond(ctx context.Context, suggestionID, actingUser string, action reconcile.Action) (*reconcile.Result, error)
	ConfirmPending(ctx context.Context) (*reconcile.SweepResult, error)
}

// Compatibility is the group scoring surface used by the handlers.
type Compatibility interface {
	Cohort(ctx context.Context, chatID string) (models.Cohort, error)
	RecalculateForChat(ctx context.Context, chatID string) (*models.GroupCompatibilityScore, error)
	Get(ctx context.Context, chatID string) (*models.GroupCompatibilityScore, error)
}

type RateLimiter interface {
	Allow(ctx context.Context, key string) (ratelimit.Result, error)
}

type SessionVerifier interface {
	Verify(token string) (auth.Session, error)
}

// Pinger is a dependency checked by /ready.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Options struct {
	Matcher        Matcher
	Compatibility  Compatibility
	Sessions       SessionVerifier
	RespondLimiter RateLimiter
	Readiness      map[string]Pinger
	AllowedOrigins []string
	DevMode        bool
	Logger         logger.Logger
}

// Server holds the handler dependencies.
type Server struct {
	matcher   Matcher
	compat    Compatibility
	sessions  SessionVerifier
	limiter   RateLimiter
	readiness map[string]Pinger
	devMode   bool
	logger    logger.Logger
}

// NewHandler builds the routed, CORS-wrapped API handler.
func NewHandler(opts Options) http.Handler {
	s := &Server{
		matcher:   opts.Matcher,
		compat:    opts.Compatibility,
		sessions:  opts.Sessions,
		limiter:   opts.RespondLimiter,
		readiness: opts.Readiness,
		devMode:   opts.DevMode,
		logger:    opts.Logger.WithFields(map[string]interface{}{"component": "api"}),
	}

	r := mux.NewRouter()
	r.Use(s.recoverer, s.requestLogger)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/ready", s.handleReady).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.authenticate)

	matchRouter := api.PathPrefix("/match").Subrouter()
	matchRouter.Handle("/suggestions/respond",
		s.rateLimited("respond", http.HandlerFunc(s.handleRespond))).Methods(http.MethodPost)

	adminRouter := api.PathPrefix("/admin").Subrouter()
	adminRouter.Use(s.requireAdmin)
	adminRouter.HandleFunc("/confirm-pending-matches", s.handleConfirmPending).Methods(http.MethodPost)

	chatRouter := api.PathPrefix("/chats/{chatId}").Subrouter()
	chatRouter.HandleFunc("/compatibility", s.handleRecalculate).Methods(http.MethodPost)
	chatRouter.HandleFunc("/compatibility", s.handleGetCompatibility).Methods(http.MethodGet)

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: true,
		MaxAge:           int((10 * time.Minute).Seconds()),
	}).Handler(r)
}
