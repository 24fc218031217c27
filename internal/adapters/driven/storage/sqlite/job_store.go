package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/baisethomas/tabletnotes-sync/internal/core/domain"
	"github.com/baisethomas/tabletnotes-sync/internal/core/ports/driven"
)

// summaryQueueKey is the durable key the serialized job list lives
// under.
const summaryQueueKey = "summary_queue"

// jobStore implements driven.JobStore: the whole queue is serialized
// as a JSON list under a single key, replaced on every mutation.
type jobStore struct {
	store *Store
}

var _ driven.JobStore = (*jobStore)(nil)

// Load reads the queued jobs in FIFO order. A missing key is an empty
// queue.
func (s *jobStore) Load(ctx context.Context) ([]domain.SummaryJob, error) {
	var raw string
	row := s.store.db.QueryRowContext(ctx,
		"SELECT value FROM kv_store WHERE key = ?", summaryQueueKey)
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("loading job queue: %w", err)
	}

	var jobs []domain.SummaryJob
	if err := json.Unmarshal([]byte(raw), &jobs); err != nil {
		return nil, fmt.Errorf("%w: job queue: %v", domain.ErrDataCorruption, err)
	}
	return jobs, nil
}

// Save replaces the persisted queue with the given ordered list.
func (s *jobStore) Save(ctx context.Context, jobs []domain.SummaryJob) error {
	if jobs == nil {
		jobs = []domain.SummaryJob{}
	}
	raw, err := json.Marshal(jobs)
	if err != nil {
		return fmt.Errorf("marshalling job queue: %w", err)
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO kv_store (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, summaryQueueKey, string(raw))
	if err != nil {
		return fmt.Errorf("saving job queue: %w", err)
	}
	return nil
}
