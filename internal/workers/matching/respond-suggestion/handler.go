// internal/workers/matching/respond-suggestion/handler.go
package respondsuggestion

import (
	"context"
	"encoding/json"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	apperrors "roommate-match-workers/internal/common/errors"
	"roommate-match-workers/internal/common/logger"
	"roommate-match-workers/internal/common/metrics"
	"roommate-match-workers/internal/common/validation"
	"roommate-match-workers/internal/matching/reconcile"
)

const TaskType = "match-suggestion-respond"

var schema = validation.MustCompile(TaskType, inputSchema)

// Responder is the reconciliation entry point the worker drives.
type Responder interface {
	Respond(ctx context.Context, suggestionID, actingUser string, action reconcile.Action) (*reconcile.Result, error)
}

// Handler records a user's accept or decline raised from a workflow, e.g. a
// reply to a match notification.
type Handler struct {
	config    *Config
	responder Responder
	errors    *apperrors.ErrorHandler
	logger    logger.Logger
}

func NewHandler(config *Config, responder Responder, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:    config,
		responder: responder,
		errors:    apperrors.NewErrorHandler(log),
		logger:    log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	if err := schema.Validate(job.Variables); err != nil {
		h.errors.HandleJobError(ctx, client, job, err)
		return
	}
	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.errors.HandleJobError(ctx, client, job, apperrors.NewInvalidRequestError(err.Error()))
		return
	}

	output, err := h.Execute(ctx, &input)
	if err != nil {
		h.errors.HandleJobError(ctx, client, job, err)
		return
	}
	h.completeJob(ctx, client, job, output)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	res, err := h.responder.Respond(ctx, input.SuggestionID, input.UserID, reconcile.Action(input.Action))
	if err != nil {
		return nil, err
	}

	out := &Output{
		SuggestionID:     input.SuggestionID,
		SuggestionStatus: string(res.Suggestion.Status),
		State:            string(res.State),
	}
	if res.Match != nil {
		out.MatchID = res.Match.ID
		out.Matched = true
	}
	return out, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
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
		"jobKey": job.Key,
		"state":  output.State,
	})
}
