package domain

import (
	"time"
)

// Retry policy for summary generation jobs.
const (
	// MaxSummaryRetries is the retry ceiling before the fallback
	// summariser takes over.
	MaxSummaryRetries = 3

	// SummaryJobMaxAge is how long a queued job may live before the
	// cleanup routine purges it unconditionally.
	SummaryJobMaxAge = 7 * 24 * time.Hour

	// StuckSummaryTimeout is how long a sermon may sit in "processing"
	// before the sweep treats the job as abandoned.
	StuckSummaryTimeout = 10 * time.Minute
)

// SummaryJob is a durable request to (re)generate a summary for a
// sermon. At most one job exists per sermon while queued.
type SummaryJob struct {
	// ID is the unique job identifier.
	ID string `json:"id"`

	// SermonID is the sermon this job belongs to.
	SermonID string `json:"sermon_id"`

	// TranscriptText is a snapshot of the transcript at enqueue time.
	TranscriptText string `json:"transcript_text"`

	// ServiceType is carried through to the summariser for prompt
	// selection.
	ServiceType string `json:"service_type"`

	// CreatedAt is when the job was first enqueued.
	CreatedAt time.Time `json:"created_at"`

	// RetryCount is the number of failed attempts so far.
	RetryCount int `json:"retry_count"`

	// LastAttemptAt is when the job was last tried. Nil before the
	// first attempt.
	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty"`
}

// BackoffDelay returns how long to wait before re-inserting the job
// after its current failure count: 2^retryCount minutes (2, 4, 8).
func (j *SummaryJob) BackoffDelay() time.Duration {
	return time.Duration(1<<uint(j.RetryCount)) * time.Minute
}

// Expired reports whether the job is older than the retention window.
func (j *SummaryJob) Expired(now time.Time) bool {
	return now.Sub(j.CreatedAt) > SummaryJobMaxAge
}

// RetriesExhausted reports whether the job should degrade to the
// fallback summariser instead of being retried again.
func (j *SummaryJob) RetriesExhausted() bool {
	return j.RetryCount >= MaxSummaryRetries
}
