package driven

import (
	"context"
	"time"
)

// SermonPayload is the field set sent to the backend on create and
// update. Child entities travel in the same payload under the parent.
type SermonPayload struct {
	LocalID             string           `json:"local_id"`
	Title               string           `json:"title"`
	AudioFilePath       string           `json:"audio_file_path"`
	AudioFileURL        string           `json:"audio_file_url"`
	AudioFileName       string           `json:"audio_file_name"`
	AudioFileSizeBytes  int64            `json:"audio_file_size_bytes"`
	Duration            float64          `json:"duration"`
	Date                string           `json:"date"` // ISO-8601
	ServiceType         string           `json:"service_type"`
	Speaker             string           `json:"speaker,omitempty"`
	TranscriptionStatus string           `json:"transcription_status"`
	SummaryStatus       string           `json:"summary_status"`
	IsArchived          bool             `json:"is_archived"`
	UpdatedAt           string           `json:"updated_at"` // ISO-8601
	Transcript          *ChildPayload    `json:"transcript,omitempty"`
	Notes               []NotePayload    `json:"notes,omitempty"`
	Summary             *SummaryPayload  `json:"summary,omitempty"`
}

// ChildPayload carries a transcript in a sermon payload.
type ChildPayload struct {
	LocalID   string `json:"local_id"`
	RemoteID  string `json:"remote_id,omitempty"`
	Text      string `json:"text"`
	UpdatedAt string `json:"updated_at"`
}

// NotePayload carries a note in a sermon payload.
type NotePayload struct {
	LocalID   string  `json:"local_id"`
	RemoteID  string  `json:"remote_id,omitempty"`
	Text      string  `json:"text"`
	Timestamp float64 `json:"timestamp"`
	UpdatedAt string  `json:"updated_at"`
}

// SummaryPayload carries a summary in a sermon payload.
type SummaryPayload struct {
	LocalID   string `json:"local_id"`
	RemoteID  string `json:"remote_id,omitempty"`
	Title     string `json:"title,omitempty"`
	Text      string `json:"text"`
	UpdatedAt string `json:"updated_at"`
}

// RemoteSermon is a sermon aggregate as returned by the backend,
// including nested children.
type RemoteSermon struct {
	RemoteID            string
	LocalID             string
	Title               string
	AudioFileURL        string
	AudioFileName       string
	AudioFileSizeBytes  int64
	Duration            float64
	Date                time.Time
	ServiceType         string
	Speaker             string
	TranscriptionStatus string
	SummaryStatus       string
	IsArchived          bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
	Transcript          *RemoteChild
	Notes               []RemoteNote
	Summary             *RemoteSummary
}

// RemoteChild is a transcript as returned by the backend.
type RemoteChild struct {
	RemoteID  string
	LocalID   string
	Text      string
	UpdatedAt time.Time
}

// RemoteNote is a note as returned by the backend.
type RemoteNote struct {
	RemoteID  string
	LocalID   string
	Text      string
	Timestamp float64
	UpdatedAt time.Time
}

// RemoteSummary is a summary as returned by the backend.
type RemoteSummary struct {
	RemoteID  string
	LocalID   string
	Title     string
	Text      string
	UpdatedAt time.Time
}

// CreateResult is the backend's answer to a successful create.
type CreateResult struct {
	RemoteID  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UploadSlot is a signed, time-limited destination for an audio asset.
type UploadSlot struct {
	UploadURL   string
	StoragePath string
}

// RemoteBackend abstracts authenticated HTTP access to the cloud
// backend. Implementations map HTTP 409 on create to
// domain.ErrAlreadyExists, transport failures to domain.ErrNetwork,
// malformed responses to domain.ErrDataCorruption, and perform one
// silent credential refresh before returning domain.ErrAuthExpired.
type RemoteBackend interface {
	// CreateSermon creates a new aggregate remotely.
	CreateSermon(ctx context.Context, payload SermonPayload) (*CreateResult, error)

	// UpdateSermon updates an existing aggregate by remote ID.
	UpdateSermon(ctx context.Context, remoteID string, payload SermonPayload) error

	// FetchSermons returns all aggregates owned by the user, with
	// nested children.
	FetchSermons(ctx context.Context, userID string) ([]RemoteSermon, error)

	// GetUploadSlot requests a signed upload destination for an asset.
	GetUploadSlot(ctx context.Context, assetName, contentType string, sizeBytes int64) (*UploadSlot, error)

	// UploadAsset streams a local file to a signed upload URL.
	UploadAsset(ctx context.Context, localPath, uploadURL string) error

	// PublicAssetURL resolves a storage path to a permanent public URL.
	PublicAssetURL(ctx context.Context, storagePath string) (string, error)

	// DownloadAsset fetches a remote asset into local storage and
	// returns the local path.
	DownloadAsset(ctx context.Context, url string) (string, error)

	// DeleteAllUserData issues a remote wipe for the user.
	DeleteAllUserData(ctx context.Context, userID string) error
}
