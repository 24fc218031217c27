package domain

import "time"

// BackgroundTask is the persisted state of a recurring background task
// owned by the background execution manager.
type BackgroundTask struct {
	// ID is the unique identifier for the task.
	ID string

	// Name is a human-readable name.
	Name string

	// Interval defines how often the task should run.
	Interval time.Duration

	// LastRun is when the task last ran.
	LastRun time.Time

	// NextRun is when the task should run next.
	NextRun time.Time

	// LastError contains the last error message, if any.
	LastError string

	// LastSuccess is when the task last completed successfully.
	LastSuccess time.Time

	// Enabled indicates whether the task is active.
	Enabled bool
}

// TaskResult records one task execution.
type TaskResult struct {
	// TaskID identifies which task was run.
	TaskID string

	// StartedAt is when the task started.
	StartedAt time.Time

	// EndedAt is when the task completed.
	EndedAt time.Time

	// Success indicates whether the task completed without error.
	Success bool

	// Error contains the error message if Success is false.
	Error string
}

// Task IDs for built-in background tasks.
const (
	TaskIDPeriodicSync = "periodic-sync"
	TaskIDQueueSweep   = "queue-sweep"
)
