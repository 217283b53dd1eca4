// Package blocklist writes mutual exclusion pairs after a decline.
package blocklist

import (
	"context"

	"roommate-match-workers/internal/common/logger"
	"roommate-match-workers/internal/common/metrics"
)

// Writer is the store operation the manager needs.
type Writer interface {
	AddToBlocklist(ctx context.Context, userID, otherID string) error
}

// Direction is the outcome of one blocklist row write.
type Direction struct {
	UserID        string
	BlockedUserID string
	Err           error
}

// Result holds both directions of an Add.
type Result struct {
	Forward Direction
	Reverse Direction
}

// Succeeded returns the directions that were written.
func (r Result) Succeeded() []Direction {
	var out []Direction
	for _, d := range []Direction{r.Forward, r.Reverse} {
		if d.Err == nil {
			out = append(out, d)
		}
	}
	return out
}

type Manager struct {
	writer Writer
	logger logger.Logger
}

func NewManager(writer Writer, log logger.Logger) *Manager {
	return &Manager{
		writer: writer,
		logger: log.WithFields(map[string]interface{}{"component": "blocklist"}),
	}
}

// Add blocks userID and otherID from each other. Each direction is attempted
// independently; failures are logged and reported in the result only.
func (m *Manager) Add(ctx context.Context, userID, otherID string) Result {
	return Result{
		Forward: m.write(ctx, userID, otherID),
		Reverse: m.write(ctx, otherID, userID),
	}
}

func (m *Manager) write(ctx context.Context, userID, otherID string) Direction {
	d := Direction{UserID: userID, BlockedUserID: otherID}
	if d.Err = m.writer.AddToBlocklist(ctx, userID, otherID); d.Err != nil {
		metrics.SideEffectFailures.WithLabelValues("blocklist").Inc()
		m.logger.Warn("blocklist write failed", map[string]interface{}{
			"userId":        userID,
			"blockedUserId": otherID,
			"error":         d.Err,
		})
	}
	return d
}
