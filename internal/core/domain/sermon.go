package domain

import (
	"time"
)

// TranscriptionStatus tracks progress of audio transcription for a sermon.
type TranscriptionStatus string

// Transcription states.
const (
	TranscriptionPending    TranscriptionStatus = "pending"
	TranscriptionProcessing TranscriptionStatus = "processing"
	TranscriptionComplete   TranscriptionStatus = "complete"
	TranscriptionFailed     TranscriptionStatus = "failed"
)

// SummaryStatus tracks progress of AI summary generation for a sermon.
type SummaryStatus string

// Summary generation states.
const (
	SummaryPending    SummaryStatus = "pending"
	SummaryProcessing SummaryStatus = "processing"
	SummaryComplete   SummaryStatus = "complete"
	SummaryFailed     SummaryStatus = "failed"
)

// SyncStatus tracks where a sermon aggregate stands relative to the
// remote backend.
type SyncStatus string

// Sync states. Legal transitions:
// local_only -> pending -> syncing -> {synced, error}.
// error returns to pending on the next retry attempt, never directly
// to synced.
const (
	SyncLocalOnly SyncStatus = "local_only"
	SyncPending   SyncStatus = "pending"
	SyncSyncing   SyncStatus = "syncing"
	SyncSynced    SyncStatus = "synced"
	SyncError     SyncStatus = "error"
)

// IsValid returns true if the sync status is recognised.
func (s SyncStatus) IsValid() bool {
	switch s {
	case SyncLocalOnly, SyncPending, SyncSyncing, SyncSynced, SyncError:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether moving to next is a legal transition.
func (s SyncStatus) CanTransitionTo(next SyncStatus) bool {
	switch s {
	case SyncLocalOnly:
		return next == SyncPending
	case SyncPending:
		return next == SyncSyncing
	case SyncSyncing:
		return next == SyncSynced || next == SyncError
	case SyncError:
		return next == SyncPending
	case SyncSynced:
		return next == SyncPending
	default:
		return false
	}
}

// Sermon is the aggregate root for a recorded service. Its children
// (transcript, notes, summary) are synchronised with the remote backend
// as one unit, never independently.
type Sermon struct {
	// ID is the local identifier, assigned at creation.
	ID string

	// RemoteID is the backend identifier. Empty until the first
	// successful create. Once assigned it never changes.
	RemoteID string

	// UserID is the owning user.
	UserID string

	// Title is the sermon title.
	Title string

	// AudioPath is the local filesystem path of the recording.
	AudioPath string

	// AudioURL is the public URL of the uploaded recording.
	AudioURL string

	// AudioFileName is the asset name used for upload slots.
	AudioFileName string

	// AudioSizeBytes is the recording size in bytes.
	AudioSizeBytes int64

	// Duration is the recording length.
	Duration time.Duration

	// Date is when the service took place.
	Date time.Time

	// ServiceType tags the kind of service (e.g. "sunday-morning").
	ServiceType string

	// Speaker is the optional speaker name.
	Speaker string

	// IsArchived hides the sermon from default listings.
	IsArchived bool

	// TranscriptionStatus tracks transcription progress.
	TranscriptionStatus TranscriptionStatus

	// SummaryStatus tracks summary generation progress.
	SummaryStatus SummaryStatus

	// SyncStatus tracks sync progress for the whole aggregate.
	SyncStatus SyncStatus

	// NeedsSync marks the aggregate as having unpushed mutations.
	NeedsSync bool

	// UpdatedAt is the last local mutation time. Drives last-write-wins
	// comparison against the remote copy.
	UpdatedAt time.Time

	// LastSyncedAt is the last successful push or pull time. Nil until
	// first sync.
	LastSyncedAt *time.Time

	// Transcript is the optional child transcript.
	Transcript *Transcript

	// Notes are the child notes.
	Notes []Note

	// Summary is the optional child summary.
	Summary *Summary
}

// Transcript is the transcription text for a sermon. Synced only as
// part of its parent aggregate.
type Transcript struct {
	ID        string
	RemoteID  string
	SermonID  string
	Text      string
	NeedsSync bool
	UpdatedAt time.Time
}

// Note is a user-authored note attached to a sermon.
type Note struct {
	ID        string
	RemoteID  string
	SermonID  string
	Text      string
	Timestamp time.Duration // offset into the recording
	NeedsSync bool
	UpdatedAt time.Time
}

// Summary is the AI (or fallback) generated summary for a sermon.
type Summary struct {
	ID        string
	RemoteID  string
	SermonID  string
	Title     string
	Text      string
	Fallback  bool // true when produced by the local extractive fallback
	NeedsSync bool
	UpdatedAt time.Time
}

// Touch records a local mutation: bumps UpdatedAt and marks the
// aggregate for push.
func (s *Sermon) Touch(now time.Time) {
	s.UpdatedAt = now
	s.NeedsSync = true
	if s.SyncStatus == SyncLocalOnly || s.SyncStatus == SyncSynced {
		s.SyncStatus = SyncPending
	}
}

// MarkSynced records a successful push or pull at the given time.
func (s *Sermon) MarkSynced(now time.Time) {
	t := now
	s.LastSyncedAt = &t
	s.NeedsSync = false
	s.SyncStatus = SyncSynced
}
