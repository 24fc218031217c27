package driving

import (
	"context"

	"github.com/baisethomas/tabletnotes-sync/internal/core/domain"
)

// SummaryQueue guarantees that every summary-generation request for a
// sermon eventually reaches completion, via the AI service or the
// degraded local fallback.
type SummaryQueue interface {
	// Enqueue adds a job for a sermon unless one is already queued for
	// it or a backoff re-insertion is pending. Returns the queued job
	// (the existing one on duplicate, nil when a backoff owns it).
	Enqueue(ctx context.Context, sermonID, transcriptText, serviceType string) (*domain.SummaryJob, error)

	// Process drains the queue serially, one job at a time, while the
	// network is available. Re-entrant calls return immediately.
	Process(ctx context.Context) error

	// Recover enqueues sermons left in processing or failed status by
	// a killed process, without waiting out the stuck-job timeout.
	// Called once at process start.
	Recover(ctx context.Context) error

	// Sweep enqueues sermons stuck in processing status longer than the
	// stuck-job timeout, and sermons left in processing or failed
	// status with no queued job. Duplicate-suppressed per sermon.
	Sweep(ctx context.Context) error

	// Cleanup purges queued jobs older than the retention window.
	Cleanup(ctx context.Context) error

	// Jobs returns a snapshot of the queued jobs in FIFO order.
	Jobs(ctx context.Context) ([]domain.SummaryJob, error)
}
