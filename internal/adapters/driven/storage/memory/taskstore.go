package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/baisethomas/tabletnotes-sync/internal/core/domain"
	"github.com/baisethomas/tabletnotes-sync/internal/core/ports/driven"
)

// Ensure TaskStore implements the interface.
var _ driven.TaskStore = (*TaskStore)(nil)

// TaskStore is an in-memory implementation of driven.TaskStore for
// testing.
type TaskStore struct {
	mu      sync.RWMutex
	tasks   map[string]domain.BackgroundTask
	history []domain.TaskResult
}

// NewTaskStore creates a new in-memory task store.
func NewTaskStore() *TaskStore {
	return &TaskStore{
		tasks: make(map[string]domain.BackgroundTask),
	}
}

// GetTask retrieves a task by ID. Returns nil when absent.
func (s *TaskStore) GetTask(_ context.Context, taskID string) (*domain.BackgroundTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, ok := s.tasks[taskID]
	if !ok {
		return nil, nil
	}
	return &task, nil
}

// ListTasks returns all tasks sorted by ID.
func (s *TaskStore) ListTasks(_ context.Context) ([]domain.BackgroundTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.BackgroundTask, 0, len(s.tasks))
	for _, task := range s.tasks {
		result = append(result, task)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// SaveTask creates or updates a task by ID.
func (s *TaskStore) SaveTask(_ context.Context, task *domain.BackgroundTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[task.ID] = *task
	return nil
}

// RecordResult logs a task execution result.
func (s *TaskStore) RecordResult(_ context.Context, result *domain.TaskResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, *result)
	return nil
}

// GetTaskHistory returns recent results for a task, most recent first.
func (s *TaskStore) GetTaskHistory(_ context.Context, taskID string, limit int) ([]domain.TaskResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.TaskResult
	for i := len(s.history) - 1; i >= 0 && len(result) < limit; i-- {
		if s.history[i].TaskID == taskID {
			result = append(result, s.history[i])
		}
	}
	return result, nil
}

// PruneHistory keeps the most recent 'keep' results per task.
func (s *TaskStore) PruneHistory(_ context.Context, keep int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[string]int)
	var kept []domain.TaskResult
	for i := len(s.history) - 1; i >= 0; i-- {
		r := s.history[i]
		if counts[r.TaskID] < keep {
			counts[r.TaskID]++
			kept = append([]domain.TaskResult{r}, kept...)
		}
	}
	s.history = kept
	return nil
}
