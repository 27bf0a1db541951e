package driven

import (
	"context"

	"github.com/custodia-labs/carebot/internal/core/domain"
)

// SchedulerStore persists background task state and run history so the
// retry and sweep schedules survive restarts.
type SchedulerStore interface {
	// GetTask returns nil, nil for an unknown id.
	GetTask(ctx context.Context, taskID string) (*domain.ScheduledTask, error)
	ListTasks(ctx context.Context) ([]domain.ScheduledTask, error)

	// SaveTask inserts or replaces the task with the same id.
	SaveTask(ctx context.Context, task *domain.ScheduledTask) error

	// DeleteTask removes the task and its history.
	DeleteTask(ctx context.Context, taskID string) error

	RecordResult(ctx context.Context, result *domain.TaskResult) error

	// GetTaskHistory returns up to limit results, newest first.
	GetTaskHistory(ctx context.Context, taskID string, limit int) ([]domain.TaskResult, error)

	// PruneHistory keeps the newest keep results of each task.
	PruneHistory(ctx context.Context, keep int) error
}
