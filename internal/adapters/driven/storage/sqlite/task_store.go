package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/baisethomas/tabletnotes-sync/internal/core/domain"
	"github.com/baisethomas/tabletnotes-sync/internal/core/ports/driven"
)

// taskStore implements driven.TaskStore.
type taskStore struct {
	store *Store
}

var _ driven.TaskStore = (*taskStore)(nil)

// GetTask retrieves a task by ID.
// Returns nil and no error if the task does not exist.
func (s *taskStore) GetTask(ctx context.Context, taskID string) (*domain.BackgroundTask, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, name, interval_seconds, last_run, next_run, last_error, last_success, enabled
		FROM background_tasks WHERE id = ?
	`, taskID)

	task, err := scanBackgroundTask(row)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil // Per interface: return nil and no error if not found
	}
	if err != nil {
		return nil, err
	}
	return task, nil
}

// ListTasks returns all tasks.
func (s *taskStore) ListTasks(ctx context.Context) ([]domain.BackgroundTask, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, name, interval_seconds, last_run, next_run, last_error, last_success, enabled
		FROM background_tasks
	`)
	if err != nil {
		return nil, fmt.Errorf("querying background tasks: %w", err)
	}
	defer rows.Close()

	var tasks []domain.BackgroundTask //nolint:prealloc // size unknown from query
	for rows.Next() {
		task, err := scanBackgroundTaskRows(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating background tasks: %w", err)
	}
	return tasks, nil
}

// SaveTask persists a task's state. Creates or updates based on ID.
func (s *taskStore) SaveTask(ctx context.Context, task *domain.BackgroundTask) error {
	if task == nil {
		return domain.ErrInvalidInput
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO background_tasks (id, name, interval_seconds, last_run, next_run, last_error, last_success, enabled)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			interval_seconds = excluded.interval_seconds,
			last_run = excluded.last_run,
			next_run = excluded.next_run,
			last_error = excluded.last_error,
			last_success = excluded.last_success,
			enabled = excluded.enabled
	`, task.ID, task.Name, int64(task.Interval.Seconds()),
		formatNullableTime(task.LastRun), formatNullableTime(task.NextRun),
		nullString(task.LastError), formatNullableTime(task.LastSuccess),
		boolToInt(task.Enabled))
	if err != nil {
		return fmt.Errorf("saving background task: %w", err)
	}
	return nil
}

// RecordResult logs a task execution result.
func (s *taskStore) RecordResult(ctx context.Context, result *domain.TaskResult) error {
	if result == nil {
		return domain.ErrInvalidInput
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO task_results (task_id, started_at, ended_at, success, error)
		VALUES (?, ?, ?, ?, ?)
	`, result.TaskID,
		result.StartedAt.UTC().Format(time.RFC3339Nano),
		result.EndedAt.UTC().Format(time.RFC3339Nano),
		boolToInt(result.Success),
		nullString(result.Error))
	if err != nil {
		return fmt.Errorf("recording task result: %w", err)
	}
	return nil
}

// GetTaskHistory returns recent results for a task, most recent first.
func (s *taskStore) GetTaskHistory(ctx context.Context, taskID string, limit int) ([]domain.TaskResult, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT task_id, started_at, ended_at, success, error
		FROM task_results
		WHERE task_id = ?
		ORDER BY started_at DESC
		LIMIT ?
	`, taskID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying task history: %w", err)
	}
	defer rows.Close()

	var results []domain.TaskResult //nolint:prealloc // size unknown from query
	for rows.Next() {
		var result domain.TaskResult
		var startedAt, endedAt string
		var success int
		var errMsg sql.NullString

		if err := rows.Scan(&result.TaskID, &startedAt, &endedAt, &success, &errMsg); err != nil {
			return nil, fmt.Errorf("scanning task result: %w", err)
		}
		if t, err := time.Parse(time.RFC3339Nano, startedAt); err == nil {
			result.StartedAt = t
		}
		if t, err := time.Parse(time.RFC3339Nano, endedAt); err == nil {
			result.EndedAt = t
		}
		result.Success = success == 1
		if errMsg.Valid {
			result.Error = errMsg.String
		}
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating task history: %w", err)
	}
	return results, nil
}

// PruneHistory keeps the most recent 'keep' results per task.
func (s *taskStore) PruneHistory(ctx context.Context, keep int) error {
	_, err := s.store.db.ExecContext(ctx, `
		DELETE FROM task_results
		WHERE id NOT IN (
			SELECT id FROM (
				SELECT id, ROW_NUMBER() OVER (PARTITION BY task_id ORDER BY started_at DESC) as rn
				FROM task_results
			) WHERE rn <= ?
		)
	`, keep)
	if err != nil {
		return fmt.Errorf("pruning task history: %w", err)
	}
	return nil
}

func scanBackgroundTask(row *sql.Row) (*domain.BackgroundTask, error) {
	var task domain.BackgroundTask
	var intervalSeconds int64
	var lastRun, nextRun, lastError, lastSuccess sql.NullString
	var enabled int

	if err := row.Scan(&task.ID, &task.Name, &intervalSeconds,
		&lastRun, &nextRun, &lastError, &lastSuccess, &enabled); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning background task: %w", err)
	}
	fillBackgroundTask(&task, intervalSeconds, lastRun, nextRun, lastError, lastSuccess, enabled)
	return &task, nil
}

func scanBackgroundTaskRows(rows *sql.Rows) (*domain.BackgroundTask, error) {
	var task domain.BackgroundTask
	var intervalSeconds int64
	var lastRun, nextRun, lastError, lastSuccess sql.NullString
	var enabled int

	if err := rows.Scan(&task.ID, &task.Name, &intervalSeconds,
		&lastRun, &nextRun, &lastError, &lastSuccess, &enabled); err != nil {
		return nil, fmt.Errorf("scanning background task: %w", err)
	}
	fillBackgroundTask(&task, intervalSeconds, lastRun, nextRun, lastError, lastSuccess, enabled)
	return &task, nil
}

func fillBackgroundTask(task *domain.BackgroundTask, intervalSeconds int64,
	lastRun, nextRun, lastError, lastSuccess sql.NullString, enabled int) {
	task.Interval = time.Duration(intervalSeconds) * time.Second
	task.LastRun = parseNullableTime(lastRun)
	task.NextRun = parseNullableTime(nextRun)
	if lastError.Valid {
		task.LastError = lastError.String
	}
	task.LastSuccess = parseNullableTime(lastSuccess)
	task.Enabled = enabled == 1
}
