package events

import (
	"context"

	"roommate-match-workers/internal/models"
)

// MessagePublisher is implemented by camunda.Client.
type MessagePublisher interface {
	PublishMessage(ctx context.Context, name, correlationKey, messageID string, variables interface{}) error
}

// WorkflowSink publishes selected events as Zeebe messages so running process
// instances (for example onboarding follow-ups) can react to them.
type WorkflowSink struct {
	publisher MessagePublisher
	names     map[string]struct{}
}

func NewWorkflowSink(publisher MessagePublisher, names []string) *WorkflowSink {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return &WorkflowSink{publisher: publisher, names: set}
}

func (s *WorkflowSink) Emit(ctx context.Context, event models.Event) error {
	if _, ok := s.names[event.Name]; !ok {
		return nil
	}

	correlationKey := event.UserID
	if key, ok := event.Properties["pairKey"].(string); ok && key != "" {
		correlationKey = key
	}

	vars := map[string]interface{}{
		"eventId":    event.ID,
		"userId":     event.UserID,
		"occurredAt": event.OccurredAt,
	}
	for k, v := range event.Properties {
		vars[k] = v
	}
	return s.publisher.PublishMessage(ctx, event.Name, correlationKey, event.ID, vars)
}
