package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/baisethomas/tabletnotes-sync/internal/core/domain"
	"github.com/baisethomas/tabletnotes-sync/internal/core/ports/driven"
)

// sermonStore implements driven.SermonStore.
type sermonStore struct {
	store *Store
}

var _ driven.SermonStore = (*sermonStore)(nil)

const sermonColumns = `id, remote_id, user_id, title, audio_path, audio_url,
	audio_file_name, audio_size_bytes, duration_ms, date, service_type,
	speaker, is_archived, transcription_status, summary_status, sync_status,
	needs_sync, updated_at, last_synced_at`

// Save stores or updates a sermon aggregate with its children in one
// transaction.
func (s *sermonStore) Save(ctx context.Context, sermon *domain.Sermon) error {
	if sermon == nil || sermon.ID == "" {
		return domain.ErrInvalidInput
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sermons (`+sermonColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			remote_id = excluded.remote_id,
			user_id = excluded.user_id,
			title = excluded.title,
			audio_path = excluded.audio_path,
			audio_url = excluded.audio_url,
			audio_file_name = excluded.audio_file_name,
			audio_size_bytes = excluded.audio_size_bytes,
			duration_ms = excluded.duration_ms,
			date = excluded.date,
			service_type = excluded.service_type,
			speaker = excluded.speaker,
			is_archived = excluded.is_archived,
			transcription_status = excluded.transcription_status,
			summary_status = excluded.summary_status,
			sync_status = excluded.sync_status,
			needs_sync = excluded.needs_sync,
			updated_at = excluded.updated_at,
			last_synced_at = excluded.last_synced_at
	`, sermon.ID, sermon.RemoteID, sermon.UserID, sermon.Title,
		sermon.AudioPath, sermon.AudioURL, sermon.AudioFileName, sermon.AudioSizeBytes,
		sermon.Duration.Milliseconds(), formatNullableTime(sermon.Date),
		sermon.ServiceType, sermon.Speaker, boolToInt(sermon.IsArchived),
		string(sermon.TranscriptionStatus), string(sermon.SummaryStatus), string(sermon.SyncStatus),
		boolToInt(sermon.NeedsSync), sermon.UpdatedAt.UTC().Format(time.RFC3339Nano),
		nullableTimePtr(sermon.LastSyncedAt))
	if err != nil {
		return fmt.Errorf("saving sermon: %w", err)
	}

	// Children are replaced wholesale; the aggregate is the unit of
	// persistence.
	for _, table := range []string{"transcripts", "notes", "summaries"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE sermon_id = ?", sermon.ID); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}

	if tr := sermon.Transcript; tr != nil {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO transcripts (id, sermon_id, remote_id, text, needs_sync, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, tr.ID, sermon.ID, tr.RemoteID, tr.Text, boolToInt(tr.NeedsSync), formatNullableTime(tr.UpdatedAt))
		if err != nil {
			return fmt.Errorf("saving transcript: %w", err)
		}
	}

	for i, n := range sermon.Notes {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO notes (id, sermon_id, remote_id, text, timestamp_ms, needs_sync, updated_at, position)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, n.ID, sermon.ID, n.RemoteID, n.Text, n.Timestamp.Milliseconds(),
			boolToInt(n.NeedsSync), formatNullableTime(n.UpdatedAt), i)
		if err != nil {
			return fmt.Errorf("saving note: %w", err)
		}
	}

	if sm := sermon.Summary; sm != nil {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO summaries (id, sermon_id, remote_id, title, text, fallback, needs_sync, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, sm.ID, sermon.ID, sm.RemoteID, sm.Title, sm.Text,
			boolToInt(sm.Fallback), boolToInt(sm.NeedsSync), formatNullableTime(sm.UpdatedAt))
		if err != nil {
			return fmt.Errorf("saving summary: %w", err)
		}
	}

	return tx.Commit()
}

// Get retrieves a sermon by local ID, including children.
func (s *sermonStore) Get(ctx context.Context, id string) (*domain.Sermon, error) {
	row := s.store.db.QueryRowContext(ctx,
		"SELECT "+sermonColumns+" FROM sermons WHERE id = ?", id)
	sermon, err := scanSermon(row)
	if err != nil {
		return nil, err
	}
	if err := s.loadChildren(ctx, sermon); err != nil {
		return nil, err
	}
	return sermon, nil
}

// GetByRemoteID retrieves a sermon by its backend ID.
func (s *sermonStore) GetByRemoteID(ctx context.Context, remoteID string) (*domain.Sermon, error) {
	if remoteID == "" {
		return nil, domain.ErrNotFound
	}
	row := s.store.db.QueryRowContext(ctx,
		"SELECT "+sermonColumns+" FROM sermons WHERE remote_id = ?", remoteID)
	sermon, err := scanSermon(row)
	if err != nil {
		return nil, err
	}
	if err := s.loadChildren(ctx, sermon); err != nil {
		return nil, err
	}
	return sermon, nil
}

// List returns all sermons for a user in insertion order.
func (s *sermonStore) List(ctx context.Context, userID string) ([]domain.Sermon, error) {
	return s.list(ctx, "SELECT "+sermonColumns+" FROM sermons WHERE user_id = ? ORDER BY rowid", userID)
}

// ListNeedingSync returns all sermons with unpushed mutations.
func (s *sermonStore) ListNeedingSync(ctx context.Context, userID string) ([]domain.Sermon, error) {
	return s.list(ctx, "SELECT "+sermonColumns+" FROM sermons WHERE user_id = ? AND needs_sync = 1 ORDER BY rowid", userID)
}

func (s *sermonStore) list(ctx context.Context, query, userID string) ([]domain.Sermon, error) {
	rows, err := s.store.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("querying sermons: %w", err)
	}
	defer rows.Close()

	var sermons []domain.Sermon //nolint:prealloc // size unknown from query
	for rows.Next() {
		sermon, err := scanSermonRows(rows)
		if err != nil {
			return nil, err
		}
		sermons = append(sermons, *sermon)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sermons: %w", err)
	}

	for i := range sermons {
		if err := s.loadChildren(ctx, &sermons[i]); err != nil {
			return nil, err
		}
	}
	return sermons, nil
}

// Delete removes a sermon; children cascade.
func (s *sermonStore) Delete(ctx context.Context, id string) error {
	result, err := s.store.db.ExecContext(ctx, "DELETE FROM sermons WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting sermon: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// loadChildren attaches transcript, notes, and summary to a sermon.
func (s *sermonStore) loadChildren(ctx context.Context, sermon *domain.Sermon) error {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, remote_id, text, needs_sync, updated_at
		FROM transcripts WHERE sermon_id = ?
	`, sermon.ID)
	tr, err := scanTranscript(row, sermon.ID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	sermon.Transcript = tr

	noteRows, err := s.store.db.QueryContext(ctx, `
		SELECT id, remote_id, text, timestamp_ms, needs_sync, updated_at
		FROM notes WHERE sermon_id = ? ORDER BY position
	`, sermon.ID)
	if err != nil {
		return fmt.Errorf("querying notes: %w", err)
	}
	defer noteRows.Close()

	sermon.Notes = nil
	for noteRows.Next() {
		var n domain.Note
		var timestampMS int64
		var needsSync int
		var updatedAt sql.NullString
		if err := noteRows.Scan(&n.ID, &n.RemoteID, &n.Text, &timestampMS, &needsSync, &updatedAt); err != nil {
			return fmt.Errorf("scanning note: %w", err)
		}
		n.SermonID = sermon.ID
		n.Timestamp = time.Duration(timestampMS) * time.Millisecond
		n.NeedsSync = needsSync == 1
		n.UpdatedAt = parseNullableTime(updatedAt)
		sermon.Notes = append(sermon.Notes, n)
	}
	if err := noteRows.Err(); err != nil {
		return fmt.Errorf("iterating notes: %w", err)
	}

	sumRow := s.store.db.QueryRowContext(ctx, `
		SELECT id, remote_id, title, text, fallback, needs_sync, updated_at
		FROM summaries WHERE sermon_id = ?
	`, sermon.ID)
	sm, err := scanSummary(sumRow, sermon.ID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	sermon.Summary = sm
	return nil
}

// ==================== Scan Helpers ====================

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSermonFields(sc rowScanner) (*domain.Sermon, error) {
	var sermon domain.Sermon
	var durationMS int64
	var date, lastSyncedAt sql.NullString
	var isArchived, needsSync int
	var transcriptionStatus, summaryStatus, syncStatus, updatedAt string

	err := sc.Scan(&sermon.ID, &sermon.RemoteID, &sermon.UserID, &sermon.Title,
		&sermon.AudioPath, &sermon.AudioURL, &sermon.AudioFileName, &sermon.AudioSizeBytes,
		&durationMS, &date, &sermon.ServiceType, &sermon.Speaker, &isArchived,
		&transcriptionStatus, &summaryStatus, &syncStatus, &needsSync,
		&updatedAt, &lastSyncedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning sermon: %w", err)
	}

	sermon.Duration = time.Duration(durationMS) * time.Millisecond
	sermon.Date = parseNullableTime(date)
	sermon.IsArchived = isArchived == 1
	sermon.TranscriptionStatus = domain.TranscriptionStatus(transcriptionStatus)
	sermon.SummaryStatus = domain.SummaryStatus(summaryStatus)
	sermon.SyncStatus = domain.SyncStatus(syncStatus)
	sermon.NeedsSync = needsSync == 1
	if t, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
		sermon.UpdatedAt = t
	}
	if synced := parseNullableTime(lastSyncedAt); !synced.IsZero() {
		sermon.LastSyncedAt = &synced
	}
	return &sermon, nil
}

func scanSermon(row *sql.Row) (*domain.Sermon, error) {
	return scanSermonFields(row)
}

func scanSermonRows(rows *sql.Rows) (*domain.Sermon, error) {
	return scanSermonFields(rows)
}

func scanTranscript(row *sql.Row, sermonID string) (*domain.Transcript, error) {
	var tr domain.Transcript
	var needsSync int
	var updatedAt sql.NullString

	if err := row.Scan(&tr.ID, &tr.RemoteID, &tr.Text, &needsSync, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning transcript: %w", err)
	}
	tr.SermonID = sermonID
	tr.NeedsSync = needsSync == 1
	tr.UpdatedAt = parseNullableTime(updatedAt)
	return &tr, nil
}

func scanSummary(row *sql.Row, sermonID string) (*domain.Summary, error) {
	var sm domain.Summary
	var fallback, needsSync int
	var updatedAt sql.NullString

	if err := row.Scan(&sm.ID, &sm.RemoteID, &sm.Title, &sm.Text, &fallback, &needsSync, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning summary: %w", err)
	}
	sm.SermonID = sermonID
	sm.Fallback = fallback == 1
	sm.NeedsSync = needsSync == 1
	sm.UpdatedAt = parseNullableTime(updatedAt)
	return &sm, nil
}

// nullableTimePtr formats a *time.Time, nil staying NULL.
func nullableTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}
