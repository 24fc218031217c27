package memory

import (
	"context"
	"sync"

	"github.com/baisethomas/tabletnotes-sync/internal/core/domain"
	"github.com/baisethomas/tabletnotes-sync/internal/core/ports/driven"
)

// Ensure JobStore implements the interface.
var _ driven.JobStore = (*JobStore)(nil)

// JobStore is an in-memory implementation of driven.JobStore for
// testing. It keeps the same replace-the-whole-list semantics as the
// durable store.
type JobStore struct {
	mu   sync.RWMutex
	jobs []domain.SummaryJob

	// SaveCount tracks persistence calls so tests can assert the queue
	// is serialized after every mutation.
	SaveCount int
}

// NewJobStore creates a new in-memory job store.
func NewJobStore() *JobStore {
	return &JobStore{}
}

// Load reads the queued jobs in FIFO order.
func (s *JobStore) Load(_ context.Context) ([]domain.SummaryJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.SummaryJob, len(s.jobs))
	copy(out, s.jobs)
	return out, nil
}

// Save replaces the persisted queue with the given ordered list.
func (s *JobStore) Save(_ context.Context, jobs []domain.SummaryJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.jobs = make([]domain.SummaryJob, len(jobs))
	copy(s.jobs, jobs)
	s.SaveCount++
	return nil
}
