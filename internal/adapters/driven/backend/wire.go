package backend

import (
	"fmt"
	"time"

	"github.com/baisethomas/tabletnotes-sync/internal/core/domain"
	"github.com/baisethomas/tabletnotes-sync/internal/core/ports/driven"
)

// Wire shapes for the sync backend API. Timestamps travel as ISO-8601
// strings and are validated on decode.

type createResponse struct {
	ID        string `json:"id"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type uploadSlotRequest struct {
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
}

type uploadSlotResponse struct {
	UploadURL   string `json:"upload_url"`
	StoragePath string `json:"storage_path"`
}

type publicURLResponse struct {
	URL string `json:"url"`
}

type remoteSermonDTO struct {
	ID                  string            `json:"id"`
	LocalID             string            `json:"local_id"`
	Title               string            `json:"title"`
	AudioFileURL        string            `json:"audio_file_url"`
	AudioFileName       string            `json:"audio_file_name"`
	AudioFileSizeBytes  int64             `json:"audio_file_size_bytes"`
	Duration            float64           `json:"duration"`
	Date                string            `json:"date"`
	ServiceType         string            `json:"service_type"`
	Speaker             string            `json:"speaker"`
	TranscriptionStatus string            `json:"transcription_status"`
	SummaryStatus       string            `json:"summary_status"`
	IsArchived          bool              `json:"is_archived"`
	CreatedAt           string            `json:"created_at"`
	UpdatedAt           string            `json:"updated_at"`
	Transcript          *remoteChildDTO   `json:"transcript"`
	Notes               []remoteNoteDTO   `json:"notes"`
	Summary             *remoteSummaryDTO `json:"summary"`
}

type remoteChildDTO struct {
	ID        string `json:"id"`
	LocalID   string `json:"local_id"`
	Text      string `json:"text"`
	UpdatedAt string `json:"updated_at"`
}

type remoteNoteDTO struct {
	ID        string  `json:"id"`
	LocalID   string  `json:"local_id"`
	Text      string  `json:"text"`
	Timestamp float64 `json:"timestamp"`
	UpdatedAt string  `json:"updated_at"`
}

type remoteSummaryDTO struct {
	ID        string `json:"id"`
	LocalID   string `json:"local_id"`
	Title     string `json:"title"`
	Text      string `json:"text"`
	UpdatedAt string `json:"updated_at"`
}

func (d *remoteSermonDTO) toDomain() (*driven.RemoteSermon, error) {
	if d.ID == "" {
		return nil, fmt.Errorf("%w: sermon missing id", domain.ErrDataCorruption)
	}

	date, err := parseWireTime(d.Date, "sermon date")
	if err != nil {
		return nil, err
	}
	createdAt, err := parseWireTime(d.CreatedAt, "sermon created_at")
	if err != nil {
		return nil, err
	}
	updatedAt, err := parseWireTime(d.UpdatedAt, "sermon updated_at")
	if err != nil {
		return nil, err
	}

	s := &driven.RemoteSermon{
		RemoteID:            d.ID,
		LocalID:             d.LocalID,
		Title:               d.Title,
		AudioFileURL:        d.AudioFileURL,
		AudioFileName:       d.AudioFileName,
		AudioFileSizeBytes:  d.AudioFileSizeBytes,
		Duration:            d.Duration,
		Date:                date,
		ServiceType:         d.ServiceType,
		Speaker:             d.Speaker,
		TranscriptionStatus: d.TranscriptionStatus,
		SummaryStatus:       d.SummaryStatus,
		IsArchived:          d.IsArchived,
		CreatedAt:           createdAt,
		UpdatedAt:           updatedAt,
	}

	if d.Transcript != nil {
		t, err := parseWireTime(d.Transcript.UpdatedAt, "transcript updated_at")
		if err != nil {
			return nil, err
		}
		s.Transcript = &driven.RemoteChild{
			RemoteID:  d.Transcript.ID,
			LocalID:   d.Transcript.LocalID,
			Text:      d.Transcript.Text,
			UpdatedAt: t,
		}
	}

	for i := range d.Notes {
		n := &d.Notes[i]
		t, err := parseWireTime(n.UpdatedAt, "note updated_at")
		if err != nil {
			return nil, err
		}
		s.Notes = append(s.Notes, driven.RemoteNote{
			RemoteID:  n.ID,
			LocalID:   n.LocalID,
			Text:      n.Text,
			Timestamp: n.Timestamp,
			UpdatedAt: t,
		})
	}

	if d.Summary != nil {
		t, err := parseWireTime(d.Summary.UpdatedAt, "summary updated_at")
		if err != nil {
			return nil, err
		}
		s.Summary = &driven.RemoteSummary{
			RemoteID:  d.Summary.ID,
			LocalID:   d.Summary.LocalID,
			Title:     d.Summary.Title,
			Text:      d.Summary.Text,
			UpdatedAt: t,
		}
	}

	return s, nil
}

func parseWireTime(value, field string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid %s %q", domain.ErrDataCorruption, field, value)
	}
	return t, nil
}
