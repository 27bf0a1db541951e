package driving

import (
	"context"

	"github.com/custodia-labs/carebot/internal/core/domain"
)

// Scheduler runs background maintenance: failed-chunk retry and idle
// session expiry.
type Scheduler interface {
	// Start runs due tasks until ctx is cancelled or Stop is called.
	Start(ctx context.Context) error

	// Stop waits for in-flight tasks and ends Start.
	Stop() error

	// Tasks returns the persisted state of every known task.
	Tasks(ctx context.Context) ([]domain.ScheduledTask, error)

	// History returns up to limit recent runs of a task, newest first.
	History(ctx context.Context, taskID string, limit int) ([]domain.TaskResult, error)
}
