// internal/workers/compatibility/calculate-group-compatibility/handler.go
package calculategroupcompatibility

import (
	"context"
	"encoding/json"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	apperrors "roommate-match-workers/internal/common/errors"
	"roommate-match-workers/internal/common/logger"
	"roommate-match-workers/internal/common/metrics"
	"roommate-match-workers/internal/common/validation"
	"roommate-match-workers/internal/models"
)

const TaskType = "group-compatibility-calculate"

var schema = validation.MustCompile(TaskType, inputSchema)

type Calculator interface {
	RecalculateForChat(ctx context.Context, chatID string) (*models.GroupCompatibilityScore, error)
}

// Handler recomputes a chat's score when membership changes.
type Handler struct {
	config     *Config
	calculator Calculator
	errors     *apperrors.ErrorHandler
	logger     logger.Logger
}

func NewHandler(config *Config, calculator Calculator, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:     config,
		calculator: calculator,
		errors:     apperrors.NewErrorHandler(log),
		logger:     log,
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
		"jobKey":       job.Key,
		"chatId":       output.ChatID,
		"overallScore": output.OverallScore,
	})
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	score, err := h.calculator.RecalculateForChat(ctx, input.ChatID)
	if err != nil {
		return nil, err
	}

	outliers := []string{}
	for _, d := range score.MemberDeviations {
		if d.IsOutlier {
			outliers = append(outliers, d.UserID)
		}
	}
	return &Output{
		ChatID:       score.ChatID,
		GroupIntent:  string(score.GroupIntent),
		OverallScore: score.OverallScore,
		Outliers:     outliers,
		TopStrength:  score.Explanation.TopStrength,
		WatchOuts:    score.Explanation.WatchOuts,
	}, nil
}
