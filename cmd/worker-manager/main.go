// cmd/worker-manager/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"go.uber.org/zap"

	"roommate-match-workers/internal/api"
	"roommate-match-workers/internal/common/auth"
	"roommate-match-workers/internal/common/aws"
	"roommate-match-workers/internal/common/camunda"
	"roommate-match-workers/internal/common/config"
	"roommate-match-workers/internal/common/database"
	"roommate-match-workers/internal/common/lock"
	"roommate-match-workers/internal/common/logger"
	"roommate-match-workers/internal/common/observability"
	"roommate-match-workers/internal/common/ratelimit"
	"roommate-match-workers/internal/compatibility"
	"roommate-match-workers/internal/events"
	"roommate-match-workers/internal/matching/blocklist"
	"roommate-match-workers/internal/matching/chat"
	"roommate-match-workers/internal/matching/confirm"
	"roommate-match-workers/internal/matching/notify"
	"roommate-match-workers/internal/matching/reconcile"
	"roommate-match-workers/internal/matching/store"
	"roommate-match-workers/pkg/registry"

	cgc "roommate-match-workers/internal/workers/compatibility/calculate-group-compatibility"
	cpm "roommate-match-workers/internal/workers/matching/confirm-pending-matches"
	rs "roommate-match-workers/internal/workers/matching/respond-suggestion"
)

func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log logger.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName), map[string]interface{}{
				"error":       err,
				"attempt":     i + 1,
				"maxRetries":  maxRetries,
				"nextRetryIn": delay.String(),
			})
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

type esPinger struct{ client *database.ElasticsearchClient }

func (p esPinger) Ping(context.Context) error { return p.client.Ping() }

type zeebePinger struct{ client *camunda.Client }

func (p zeebePinger) Ping(ctx context.Context) error { return p.client.HealthCheck(ctx) }

// checkRegistry warns about job types that process modellers cannot see.
func checkRegistry(taskTypes []string, log logger.Logger) {
	catalog, err := registry.Load(registry.DefaultPath)
	if err != nil {
		log.Warn("worker registry unavailable", map[string]interface{}{"error": err})
		return
	}
	if missing := catalog.Missing(taskTypes); len(missing) > 0 {
		log.Warn("workers missing from registry", map[string]interface{}{"taskTypes": missing})
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.NewWithOutput(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog).WithFields(map[string]interface{}{
		"service": cfg.App.Name,
		"version": cfg.App.Version,
	})
	log.Info("Starting worker manager...", map[string]interface{}{"environment": cfg.App.Environment})

	obs, err := observability.New(cfg.App.Name, 1.0)
	if err != nil {
		zapLog.Fatal("observability init failed", zap.Error(err))
	}
	defer obs.Shutdown()

	ctx := context.Background()
	readiness := map[string]api.Pinger{}

	// --- PostgreSQL ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, log, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	readiness["postgres"] = pg
	log.Info("PostgreSQL connected successfully", nil)

	// --- Redis ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, log, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	readiness["redis"] = rdb
	log.Info("Redis connected successfully", nil)

	fanout := events.NewFanout(log)
	if cfg.Analytics.PostgresEvents {
		fanout.Add("postgres", events.NewPostgresSink(pg.DB))
	}

	// --- Elasticsearch (optional analytics sink) ---
	if cfg.Database.Elasticsearch.Enabled {
		var esClient *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping()
		}, 15, 2*time.Second, log, "Elasticsearch connection")
		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		fanout.Add("elasticsearch", events.NewElasticsearchSink(esClient.Client, cfg.Analytics.Index))
		readiness["elasticsearch"] = esPinger{client: esClient}
		log.Info("Elasticsearch connected successfully", nil)
	}

	// --- Zeebe ---
	var zeebe *camunda.Client
	if cfg.Camunda.Enabled {
		err = retryWithBackoff(func() error {
			var err error
			zeebe, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
				GatewayAddress:         cfg.Camunda.BrokerAddress,
				UsePlaintextConnection: true,
				ConnectionTimeout:      10 * time.Second,
				RequestTimeout:         ms(cfg.Camunda.RequestTimeout),
			})
			return err
		}, 10, 2*time.Second, log, "Zeebe client initialization")
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		readiness["zeebe"] = zeebePinger{client: zeebe}
		if len(cfg.Analytics.WorkflowEvents) > 0 {
			fanout.Add("workflow", events.NewWorkflowSink(zeebe, cfg.Analytics.WorkflowEvents))
		}
		log.Info("Zeebe client connected successfully", nil)
	}

	// --- Notifications ---
	var sesClient notify.SESService
	var snsClient notify.SNSService
	if cfg.Notifications.Email.Enabled || cfg.Notifications.Push.Enabled {
		clients, err := aws.NewClients(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			zapLog.Fatal("aws clients init failed", zap.Error(err))
		}
		sesClient, snsClient = clients.SES, clients.SNS
	}
	notifier := notify.NewService(notify.Config{
		EmailEnabled: cfg.Notifications.Email.Enabled,
		FromEmail:    cfg.Notifications.Email.FromEmail,
		PushEnabled:  cfg.Notifications.Push.Enabled,
		TopicARN:     cfg.Notifications.Push.TopicARN,
	}, pg.DB, sesClient, snsClient, log)

	// --- Matching ---
	locker := lock.New(rdb.Client, "match-lock")
	suggestions := store.NewPostgresStore(pg.DB)
	coordinator := confirm.NewCoordinator(
		chat.NewPostgresService(pg.DB),
		notifier,
		suggestions,
		locker,
		ms(cfg.Matching.PairLockTTL),
		log,
	)
	matcher := reconcile.NewService(reconcile.Options{
		Config: reconcile.Config{
			CASRetries:        cfg.Matching.CASRetries,
			SideEffectTimeout: ms(cfg.Matching.SideEffectTimeout),
			SweepLockTTL:      ms(cfg.Matching.SweepLockTTL),
		},
		Store:         suggestions,
		Blocker:       blocklist.NewManager(suggestions, log),
		SideEffects:   coordinator,
		Notifier:      notifier,
		Events:        fanout,
		SweepLock:     locker,
		Observability: obs,
		Logger:        log,
	})

	// --- Compatibility ---
	layout, err := compatibility.LayoutFor(cfg.Compatibility.LayoutVersion)
	if err != nil {
		zapLog.Fatal("embedding layout", zap.Error(err))
	}
	if layout.Size != cfg.Compatibility.EmbeddingSize {
		zapLog.Fatal("embedding size does not match layout",
			zap.Int("configured", cfg.Compatibility.EmbeddingSize),
			zap.Int("layout", layout.Size),
		)
	}
	engine, err := compatibility.NewEngine(layout)
	if err != nil {
		zapLog.Fatal("compatibility engine", zap.Error(err))
	}
	var features compatibility.FeatureProvider = compatibility.NewPostgresFeatureProvider(pg.DB)
	if cfg.Compatibility.CacheTTL > 0 {
		features = compatibility.NewCachedProvider(features, rdb.Client, ms(cfg.Compatibility.CacheTTL), log)
	}
	scorer := compatibility.NewService(engine, features, compatibility.NewPostgresScoreStore(pg.DB), fanout, obs, log)

	// --- Workers ---
	var jobWorkers []worker.JobWorker
	if zeebe != nil {
		zc := zeebe.GetClient()
		start := func(taskType string, handler camunda.JobHandler) {
			if w := camunda.StartWorker(zc, taskType, cfg.Workers[taskType], handler, obs, log); w != nil {
				jobWorkers = append(jobWorkers, w)
			}
		}
		start(rs.TaskType, rs.NewHandler(rs.LoadConfig(cfg.Workers[rs.TaskType]), matcher, log))
		start(cpm.TaskType, cpm.NewHandler(cpm.LoadConfig(cfg.Workers[cpm.TaskType]), matcher, log))
		start(cgc.TaskType, cgc.NewHandler(cgc.LoadConfig(cfg.Workers[cgc.TaskType]), scorer, log))
		log.Info("workers registered", map[string]interface{}{"count": len(jobWorkers)})
		checkRegistry([]string{rs.TaskType, cpm.TaskType, cgc.TaskType}, log)
	}

	// --- HTTP API ---
	server := &http.Server{
		Addr: cfg.HTTP.Address,
		Handler: api.NewHandler(api.Options{
			Matcher:        matcher,
			Compatibility:  scorer,
			Sessions:       auth.NewSessionVerifier(cfg.HTTP.JWTSecret),
			RespondLimiter: ratelimit.New(rdb.Client, "rl", cfg.Matching.RateLimit, ms(cfg.Matching.RateLimitWindow)),
			Readiness:      readiness,
			AllowedOrigins: cfg.HTTP.AllowedOrigins,
			DevMode:        cfg.App.IsDevelopment(),
			Logger:         log,
		}),
		ReadTimeout:  ms(cfg.HTTP.ReadTimeout),
		WriteTimeout: ms(cfg.HTTP.WriteTimeout),
	}
	go func() {
		log.Info("HTTP server listening", map[string]interface{}{"address": cfg.HTTP.Address})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("Shutdown signal received, stopping workers...", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown failed", map[string]interface{}{"error": err})
	}
	for _, w := range jobWorkers {
		w.Close()
		w.AwaitClose()
	}
	if zeebe != nil {
		if err := zeebe.Close(); err != nil {
			log.Error("Error closing Zeebe client", map[string]interface{}{"error": err})
		}
	}

	log.Info("Worker manager stopped gracefully", nil)
}
