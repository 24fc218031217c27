package driven

import (
	"context"

	"github.com/baisethomas/tabletnotes-sync/internal/core/domain"
)

// JobStore persists the summary retry queue. The whole ordered list is
// serialized under a single durable key after every queue mutation and
// reloaded at process start, so pending jobs survive restarts.
type JobStore interface {
	// Load reads the queued jobs in FIFO order.
	// Returns an empty slice when nothing has been persisted yet.
	Load(ctx context.Context) ([]domain.SummaryJob, error)

	// Save replaces the persisted queue with the given ordered list.
	Save(ctx context.Context, jobs []domain.SummaryJob) error
}
