package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestObservability_Lifecycle(t *testing.T) {
	obs, err := New("roommate-match-workers-test", 1.0)
	require.NoError(t, err)
	defer obs.Shutdown()

	ctx, span := obs.StartSpan(context.Background(), "reconcile.accept", attribute.String("suggestion.id", "s1"))
	assert.True(t, span.SpanContext().IsValid())
	assert.True(t, span.IsRecording())
	span.End()

	obs.RecordJobProcessed(ctx, "match-suggestion-respond", "completed")
	obs.RecordJobDuration(ctx, "match-suggestion-respond", 25*time.Millisecond, "completed")
}

func TestObservability_NilSafe(t *testing.T) {
	var obs *Observability

	_, span := obs.StartSpan(context.Background(), "noop")
	span.End()

	obs.RecordJobProcessed(context.Background(), "x", "failed")
	obs.RecordJobDuration(context.Background(), "x", time.Second, "failed")
	obs.Shutdown()
}
