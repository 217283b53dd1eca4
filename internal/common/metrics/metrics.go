// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	MatchResponses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "match_responses_total",
			Help: "Accept/decline calls by outcome",
		},
		[]string{"action", "outcome"},
	)

	MatchConfirmations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "match_confirmations_total",
			Help: "Confirmed matches by kind and trigger",
		},
		[]string{"kind", "trigger"},
	)

	AggregateConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "match_aggregate_cas_conflicts_total",
			Help: "Compare-and-swap conflicts on the per-pair acceptance row",
		},
	)

	SideEffectFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "match_side_effect_failures_total",
			Help: "Best-effort side effects that failed (blocklist, chat, notification, event)",
		},
		[]string{"effect"},
	)

	RateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limited_requests_total",
			Help: "Requests rejected by the rate limiter",
		},
		[]string{"scope"},
	)

	CompatibilityCalculations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "group_compatibility_calculations_total",
			Help: "Group compatibility computations by intent and outcome",
		},
		[]string{"intent", "outcome"},
	)

	CompatibilityOverallScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "group_compatibility_overall_score",
			Help:    "Distribution of overall group compatibility scores",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		},
	)
)
