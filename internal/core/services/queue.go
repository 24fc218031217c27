package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/baisethomas/tabletnotes-sync/internal/core/domain"
	"github.com/baisethomas/tabletnotes-sync/internal/core/ports/driven"
	"github.com/baisethomas/tabletnotes-sync/internal/core/ports/driving"
	"github.com/baisethomas/tabletnotes-sync/internal/logger"
)

// Ensure SummaryQueue implements the interface.
var _ driving.SummaryQueue = (*SummaryQueue)(nil)

// SummaryQueue is the durable retry queue for summary generation.
// It processes strictly one job at a time, backs off exponentially on
// failure, and degrades to a local extractive fallback once retries
// are exhausted, so every job eventually resolves.
type SummaryQueue struct {
	store      driven.SermonStore
	jobs       driven.JobStore
	summarizer driven.Summarizer
	netmon     driven.NetworkMonitor
	notifier   driven.Notifier
	clock      driven.Clock
	fallback   *FallbackSummarizer
	userID     string

	// processing is the re-entrancy guard: the network monitor only
	// triggers processing, never two passes at once. backingOff holds
	// sermons owned by an in-flight backoff timer; while a sermon is in
	// it the sweep must not enqueue a fresh zero-retry job for it.
	mu         sync.Mutex
	processing bool
	backingOff map[string]struct{}

	// requeues tracks in-flight backoff timers so tests and shutdown
	// can wait for them.
	requeues sync.WaitGroup
}

// NewSummaryQueue creates a summary retry queue for the given user.
// The notifier may be nil.
func NewSummaryQueue(
	store driven.SermonStore,
	jobs driven.JobStore,
	summarizer driven.Summarizer,
	netmon driven.NetworkMonitor,
	notifier driven.Notifier,
	clock driven.Clock,
	userID string,
) *SummaryQueue {
	return &SummaryQueue{
		store:      store,
		jobs:       jobs,
		summarizer: summarizer,
		netmon:     netmon,
		notifier:   notifier,
		clock:      clock,
		fallback:   NewFallbackSummarizer(),
		userID:     userID,
		backingOff: make(map[string]struct{}),
	}
}

// Enqueue adds a job for a sermon unless one is already queued for it
// or the sermon is awaiting a backoff re-insertion that carries its
// retry progress. Returns nil without error when suppressed by a
// pending backoff. The queue is persisted immediately.
func (q *SummaryQueue) Enqueue(ctx context.Context, sermonID, transcriptText, serviceType string) (*domain.SummaryJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.backingOff[sermonID]; ok {
		logger.Debug("Sermon %s is backing off, suppressing duplicate", sermonID)
		return nil, nil
	}

	queued, err := q.jobs.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load queue: %w", err)
	}

	for i := range queued {
		if queued[i].SermonID == sermonID {
			logger.Debug("Job for sermon %s already queued, suppressing duplicate", sermonID)
			return &queued[i], nil
		}
	}

	job := domain.SummaryJob{
		ID:             uuid.NewString(),
		SermonID:       sermonID,
		TranscriptText: transcriptText,
		ServiceType:    serviceType,
		CreatedAt:      q.clock.Now(),
	}
	queued = append(queued, job)

	if err := q.jobs.Save(ctx, queued); err != nil {
		return nil, fmt.Errorf("persist queue: %w", err)
	}
	logger.Info("Enqueued summary job for sermon %s (%d queued)", sermonID, len(queued))
	return &job, nil
}

// Process drains the queue serially while the network is available.
// A re-entrant call returns immediately; only one pass runs at a time.
func (q *SummaryQueue) Process(ctx context.Context) error {
	q.mu.Lock()
	if q.processing {
		q.mu.Unlock()
		return nil
	}
	q.processing = true
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		q.processing = false
		q.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if !q.netmon.Current().Online() {
			logger.Debug("Network offline, pausing queue processing")
			return nil
		}

		head, err := q.peekHead(ctx)
		if err != nil {
			return err
		}
		if head == nil {
			return nil
		}

		if err := q.processJob(ctx, head); err != nil {
			return err
		}
	}
}

// peekHead returns the head job, or nil when the queue is empty. The
// head stays persisted until its outcome is known.
func (q *SummaryQueue) peekHead(ctx context.Context) (*domain.SummaryJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	queued, err := q.jobs.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load queue: %w", err)
	}
	if len(queued) == 0 {
		return nil, nil
	}
	head := queued[0]
	return &head, nil
}

// removeJob deletes a job by ID, preserving the order of the rest.
// Loading and saving under the lock keeps concurrent Enqueues intact.
func (q *SummaryQueue) removeJob(ctx context.Context, jobID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	queued, err := q.jobs.Load(ctx)
	if err != nil {
		return fmt.Errorf("load queue: %w", err)
	}
	kept := queued[:0]
	for _, j := range queued {
		if j.ID != jobID {
			kept = append(kept, j)
		}
	}
	if err := q.jobs.Save(ctx, kept); err != nil {
		return fmt.Errorf("persist queue: %w", err)
	}
	return nil
}

// processJob runs one generation attempt and applies the outcome:
// success writes the summary; failure either schedules a backoff
// re-insertion or degrades to the fallback.
func (q *SummaryQueue) processJob(ctx context.Context, job *domain.SummaryJob) error {
	now := q.clock.Now()
	job.LastAttemptAt = &now

	logger.Debug("Processing summary job %s (sermon %s, retry %d)", job.ID, job.SermonID, job.RetryCount)
	result, err := q.summarizer.Generate(ctx, job.TranscriptText, job.ServiceType)
	if err == nil {
		if err := q.completeJob(ctx, job, result, false); err != nil {
			return err
		}
		return q.removeJob(ctx, job.ID)
	}

	logger.Warn("Summary generation failed for sermon %s: %v", job.SermonID, err)

	if job.RetriesExhausted() {
		fallback := q.fallback.Summarize(job.TranscriptText)
		if err := q.completeJob(ctx, job, fallback, true); err != nil {
			return err
		}
		return q.removeJob(ctx, job.ID)
	}
	job.RetryCount++

	// Remove now, re-insert at the tail after the backoff delay.
	if err := q.removeJob(ctx, job.ID); err != nil {
		return err
	}

	delay := job.BackoffDelay()
	var rateErr *domain.RateLimitError
	if errors.As(err, &rateErr) && rateErr.RetryAfter > delay {
		delay = rateErr.RetryAfter
	}
	q.scheduleRequeue(ctx, *job, delay)
	return nil
}

// scheduleRequeue re-inserts a failed job at the queue tail after the
// backoff delay elapses, then kicks processing again. The sermon is
// held in backingOff for the whole window so a concurrent sweep cannot
// replace the progressed job with a fresh zero-retry one.
func (q *SummaryQueue) scheduleRequeue(ctx context.Context, job domain.SummaryJob, delay time.Duration) {
	logger.Info("Re-queueing sermon %s in %s (retry %d/%d)", job.SermonID, delay, job.RetryCount, domain.MaxSummaryRetries)

	q.mu.Lock()
	q.backingOff[job.SermonID] = struct{}{}
	q.mu.Unlock()

	q.requeues.Add(1)
	go func() {
		defer q.requeues.Done()
		select {
		case <-ctx.Done():
			q.mu.Lock()
			delete(q.backingOff, job.SermonID)
			q.mu.Unlock()
			return
		case <-q.clock.After(delay):
		}

		q.mu.Lock()
		delete(q.backingOff, job.SermonID)
		queued, err := q.jobs.Load(ctx)
		if err == nil {
			// An enqueue may have slipped in before the timer was
			// registered; keep whichever retry count is further along.
			merged := false
			for i := range queued {
				if queued[i].SermonID == job.SermonID {
					if job.RetryCount > queued[i].RetryCount {
						queued[i].RetryCount = job.RetryCount
					}
					merged = true
					break
				}
			}
			if !merged {
				queued = append(queued, job)
			}
			err = q.jobs.Save(ctx, queued)
		}
		q.mu.Unlock()
		if err != nil {
			logger.Error("Failed to re-queue job for sermon %s: %v", job.SermonID, err)
			return
		}

		if err := q.Process(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("Queue processing after re-queue failed: %v", err)
		}
	}()
}

// completeJob writes the summary into the local store, marks the
// aggregate for push, and notifies observers.
func (q *SummaryQueue) completeJob(ctx context.Context, job *domain.SummaryJob, result *driven.SummaryResult, fallback bool) error {
	sermon, err := q.store.Get(ctx, job.SermonID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Sermon deleted while queued: drop the job silently.
			logger.Warn("Sermon %s gone, dropping summary job", job.SermonID)
			return nil
		}
		return fmt.Errorf("get sermon: %w", err)
	}

	now := q.clock.Now()
	if sermon.Summary == nil {
		sermon.Summary = &domain.Summary{
			ID:       uuid.NewString(),
			SermonID: sermon.ID,
		}
	}
	sermon.Summary.Title = result.Title
	sermon.Summary.Text = result.Text
	sermon.Summary.Fallback = fallback
	sermon.Summary.NeedsSync = true
	sermon.Summary.UpdatedAt = now
	sermon.SummaryStatus = domain.SummaryComplete
	sermon.Touch(now)

	if err := q.store.Save(ctx, sermon); err != nil {
		return fmt.Errorf("save summary: %w", err)
	}

	if q.notifier != nil {
		q.notifier.SummaryReady(sermon.ID)
	}
	logger.Info("Summary complete for sermon %s (fallback=%v)", sermon.ID, fallback)
	return nil
}

// Sweep enqueues abandoned work: sermons stuck in processing status
// past the stuck-job timeout, and sermons left in failed status with
// no queued entry. Duplicate-suppressed per sermon by Enqueue.
func (q *SummaryQueue) Sweep(ctx context.Context) error {
	sermons, err := q.store.List(ctx, q.userID)
	if err != nil {
		return fmt.Errorf("list sermons: %w", err)
	}

	now := q.clock.Now()
	for i := range sermons {
		s := &sermons[i]
		stuck := s.SummaryStatus == domain.SummaryProcessing &&
			now.Sub(s.UpdatedAt) > domain.StuckSummaryTimeout
		failed := s.SummaryStatus == domain.SummaryFailed

		if !stuck && !failed {
			continue
		}
		if s.Transcript == nil || s.Transcript.Text == "" {
			continue
		}

		logger.Debug("Sweep found sermon %s (status=%s)", s.ID, s.SummaryStatus)
		if _, err := q.Enqueue(ctx, s.ID, s.Transcript.Text, s.ServiceType); err != nil {
			return fmt.Errorf("enqueue swept sermon %s: %w", s.ID, err)
		}
	}
	return nil
}

// Recover scans at process start for sermons whose generation was
// interrupted by a kill: processing or failed status with nothing
// queued. Unlike Sweep it does not wait out the stuck-job timeout.
func (q *SummaryQueue) Recover(ctx context.Context) error {
	sermons, err := q.store.List(ctx, q.userID)
	if err != nil {
		return fmt.Errorf("list sermons: %w", err)
	}

	for i := range sermons {
		s := &sermons[i]
		if s.SummaryStatus != domain.SummaryProcessing && s.SummaryStatus != domain.SummaryFailed {
			continue
		}
		if s.Transcript == nil || s.Transcript.Text == "" {
			continue
		}
		if _, err := q.Enqueue(ctx, s.ID, s.Transcript.Text, s.ServiceType); err != nil {
			return fmt.Errorf("recover sermon %s: %w", s.ID, err)
		}
	}
	return nil
}

// Cleanup purges queued jobs older than the retention window,
// regardless of retry state.
func (q *SummaryQueue) Cleanup(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	queued, err := q.jobs.Load(ctx)
	if err != nil {
		return fmt.Errorf("load queue: %w", err)
	}

	now := q.clock.Now()
	kept := queued[:0]
	for _, job := range queued {
		if job.Expired(now) {
			logger.Info("Purging expired summary job for sermon %s", job.SermonID)
			continue
		}
		kept = append(kept, job)
	}

	if len(kept) == len(queued) {
		return nil
	}
	return q.jobs.Save(ctx, kept)
}

// Jobs returns a snapshot of the queued jobs in FIFO order.
func (q *SummaryQueue) Jobs(ctx context.Context) ([]domain.SummaryJob, error) {
	return q.jobs.Load(ctx)
}

// WaitRequeues blocks until all scheduled backoff re-insertions have
// fired or been cancelled. Used in tests and at shutdown.
func (q *SummaryQueue) WaitRequeues() {
	q.requeues.Wait()
}
