// Package events records analytics events for match decisions and scoring.
package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"roommate-match-workers/internal/common/logger"
	"roommate-match-workers/internal/models"
)

// Emitter delivers one event to a sink.
type Emitter interface {
	Emit(ctx context.Context, event models.Event) error
}

// New builds an event with a fresh id and timestamp.
func New(name, userID string, props map[string]interface{}) models.Event {
	return models.Event{
		ID:         uuid.NewString(),
		Name:       name,
		UserID:     userID,
		Properties: props,
		OccurredAt: time.Now().UTC(),
	}
}

// Fanout sends each event to every sink. A failing sink does not stop the others.
type Fanout struct {
	sinks  []namedSink
	logger logger.Logger
}

type namedSink struct {
	name string
	sink Emitter
}

func NewFanout(log logger.Logger) *Fanout {
	return &Fanout{logger: log.WithFields(map[string]interface{}{"component": "events"})}
}

// Add registers a sink. Nil sinks are ignored so optional backends can be passed directly.
func (f *Fanout) Add(name string, sink Emitter) *Fanout {
	if sink != nil {
		f.sinks = append(f.sinks, namedSink{name: name, sink: sink})
	}
	return f
}

func (f *Fanout) Emit(ctx context.Context, event models.Event) error {
	var errs []error
	for _, s := range f.sinks {
		if err := s.sink.Emit(ctx, event); err != nil {
			f.logger.Warn("event sink failed", map[string]interface{}{
				"sink":    s.name,
				"event":   event.Name,
				"eventId": event.ID,
				"error":   err,
			})
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop drops every event.
type Nop struct{}

func (Nop) Emit(context.Context, models.Event) error { return nil }
