// internal/workers/matching/confirm-pending-matches/handler.go
package confirmpendingmatches

import (
	"context"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	apperrors "roommate-match-workers/internal/common/errors"
	"roommate-match-workers/internal/common/logger"
	"roommate-match-workers/internal/common/metrics"
	"roommate-match-workers/internal/matching/reconcile"
)

const TaskType = "match-confirm-pending"

type Sweeper interface {
	ConfirmPending(ctx context.Context) (*reconcile.SweepResult, error)
}

// Handler runs the pending-pair sweep from a timer-started process.
type Handler struct {
	config  *Config
	sweeper Sweeper
	errors  *apperrors.ErrorHandler
	logger  logger.Logger
}

func NewHandler(config *Config, sweeper Sweeper, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:  config,
		sweeper: sweeper,
		errors:  apperrors.NewErrorHandler(log),
		logger:  log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.Execute(ctx)
	if err != nil {
		h.errors.HandleJobError(ctx, client, job, err)
		return
	}

	cmd, err := client.NewCompleteJobCommand().JobKey(job.Key).VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{"error": err})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{"error": err})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	h.logger.Info("job completed successfully", map[string]interface{}{
		"jobKey":    job.Key,
		"processed": output.Processed,
		"errors":    output.ErrorCount,
	})
}

func (h *Handler) Execute(ctx context.Context) (*Output, error) {
	res, err := h.sweeper.ConfirmPending(ctx)
	if err != nil {
		return nil, err
	}
	return &Output{
		Processed:  res.Processed,
		Skipped:    res.Skipped,
		TotalPairs: res.TotalPairs,
		Errors:     res.Errors,
		ErrorCount: res.ErrorCount,
		HasErrors:  res.ErrorCount > 0,
	}, nil
}
