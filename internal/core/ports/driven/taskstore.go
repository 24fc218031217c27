package driven

import (
	"context"

	"github.com/baisethomas/tabletnotes-sync/internal/core/domain"
)

// TaskStore persists background task state for crash recovery.
// It stores task state and execution history.
type TaskStore interface {
	// GetTask retrieves a task by ID.
	// Returns nil and no error if the task does not exist.
	GetTask(ctx context.Context, taskID string) (*domain.BackgroundTask, error)

	// ListTasks returns all tasks.
	ListTasks(ctx context.Context) ([]domain.BackgroundTask, error)

	// SaveTask persists a task's state.
	// Creates or updates the task based on ID.
	SaveTask(ctx context.Context, task *domain.BackgroundTask) error

	// RecordResult logs a task execution result.
	RecordResult(ctx context.Context, result *domain.TaskResult) error

	// GetTaskHistory returns recent results for a task.
	// Results are ordered by start time descending (most recent first).
	GetTaskHistory(ctx context.Context, taskID string, limit int) ([]domain.TaskResult, error)

	// PruneHistory removes old task results beyond the retention limit.
	// Keeps the most recent 'keep' results per task.
	PruneHistory(ctx context.Context, keep int) error
}
