package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baisethomas/tabletnotes-sync/internal/core/domain"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) (*Store, func()) {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "tnsync-test-*")
	require.NoError(t, err)

	store, err := NewStore(tempDir)
	require.NoError(t, err)
	require.NotNil(t, store)

	cleanup := func() {
		assert.NoError(t, store.Close())
		assert.NoError(t, os.RemoveAll(tempDir))
	}
	return store, cleanup
}

func TestNewStore_CreatesDatabase(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "tnsync-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tempDir)

	store, err := NewStore(tempDir)
	require.NoError(t, err)
	defer store.Close()

	assert.Equal(t, filepath.Join(tempDir, "sync.db"), store.Path())
	_, statErr := os.Stat(store.Path())
	assert.NoError(t, statErr)
}

func TestNewStore_MigrationsAreIdempotent(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "tnsync-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tempDir)

	store, err := NewStore(tempDir)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	// Reopening must not re-run applied migrations
	store, err = NewStore(tempDir)
	require.NoError(t, err)
	assert.NoError(t, store.Close())
}

func testSermon(id string) *domain.Sermon {
	synced := time.Date(2026, 4, 1, 10, 30, 0, 0, time.UTC)
	return &domain.Sermon{
		ID:                  id,
		RemoteID:            "remote-" + id,
		UserID:              "user-1",
		Title:               "Sunday Service",
		AudioPath:           "/recordings/" + id + ".m4a",
		AudioURL:            "https://cdn.example.com/" + id + ".m4a",
		AudioFileName:       id + ".m4a",
		AudioSizeBytes:      2048,
		Duration:            45*time.Minute + 30*time.Second,
		Date:                time.Date(2026, 3, 29, 10, 0, 0, 0, time.UTC),
		ServiceType:         "sunday-morning",
		Speaker:             "Pastor Jones",
		TranscriptionStatus: domain.TranscriptionComplete,
		SummaryStatus:       domain.SummaryComplete,
		SyncStatus:          domain.SyncSynced,
		NeedsSync:           false,
		UpdatedAt:           time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC),
		LastSyncedAt:        &synced,
		Transcript: &domain.Transcript{
			ID:        "tr-" + id,
			RemoteID:  "rtr-" + id,
			SermonID:  id,
			Text:      "In the beginning was the Word.",
			UpdatedAt: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC),
		},
		Notes: []domain.Note{
			{ID: "n1-" + id, SermonID: id, Text: "first note", Timestamp: 90 * time.Second},
			{ID: "n2-" + id, SermonID: id, Text: "second note", Timestamp: 5 * time.Minute},
		},
		Summary: &domain.Summary{
			ID:       "sm-" + id,
			SermonID: id,
			Title:    "Key Points",
			Text:     "A summary of the message.",
			Fallback: false,
		},
	}
}

func TestSermonStore_SaveAndGet_RoundTrip(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	sermons := store.SermonStore()
	original := testSermon("ser-1")
	require.NoError(t, sermons.Save(ctx, original))

	saved, err := sermons.Get(ctx, "ser-1")
	require.NoError(t, err)
	assert.Equal(t, original.Title, saved.Title)
	assert.Equal(t, original.RemoteID, saved.RemoteID)
	assert.Equal(t, original.Duration, saved.Duration)
	assert.Equal(t, original.Date, saved.Date)
	assert.Equal(t, original.SyncStatus, saved.SyncStatus)
	require.NotNil(t, saved.LastSyncedAt)
	assert.Equal(t, *original.LastSyncedAt, *saved.LastSyncedAt)

	require.NotNil(t, saved.Transcript)
	assert.Equal(t, original.Transcript.Text, saved.Transcript.Text)
	assert.Equal(t, "ser-1", saved.Transcript.SermonID)

	require.Len(t, saved.Notes, 2)
	assert.Equal(t, "first note", saved.Notes[0].Text)
	assert.Equal(t, 90*time.Second, saved.Notes[0].Timestamp)
	assert.Equal(t, "second note", saved.Notes[1].Text)

	require.NotNil(t, saved.Summary)
	assert.Equal(t, "Key Points", saved.Summary.Title)
	assert.False(t, saved.Summary.Fallback)
}

func TestSermonStore_Save_ReplacesChildren(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	sermons := store.SermonStore()
	s := testSermon("ser-1")
	require.NoError(t, sermons.Save(ctx, s))

	// Drop a note and the summary; save again
	s.Notes = s.Notes[:1]
	s.Summary = nil
	require.NoError(t, sermons.Save(ctx, s))

	saved, err := sermons.Get(ctx, "ser-1")
	require.NoError(t, err)
	assert.Len(t, saved.Notes, 1)
	assert.Nil(t, saved.Summary)
}

func TestSermonStore_Get_NotFound(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	_, err := store.SermonStore().Get(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSermonStore_GetByRemoteID(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	sermons := store.SermonStore()
	require.NoError(t, sermons.Save(ctx, testSermon("ser-1")))

	found, err := sermons.GetByRemoteID(ctx, "remote-ser-1")
	require.NoError(t, err)
	assert.Equal(t, "ser-1", found.ID)

	// Empty remote ID must not match local-only rows
	localOnly := testSermon("ser-2")
	localOnly.RemoteID = ""
	require.NoError(t, sermons.Save(ctx, localOnly))

	_, err = sermons.GetByRemoteID(ctx, "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSermonStore_ListNeedingSync(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	sermons := store.SermonStore()

	pending := testSermon("ser-1")
	pending.NeedsSync = true
	require.NoError(t, sermons.Save(ctx, pending))

	clean := testSermon("ser-2")
	require.NoError(t, sermons.Save(ctx, clean))

	otherUser := testSermon("ser-3")
	otherUser.UserID = "user-2"
	otherUser.NeedsSync = true
	require.NoError(t, sermons.Save(ctx, otherUser))

	list, err := sermons.ListNeedingSync(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "ser-1", list[0].ID)
}

func TestSermonStore_List_InsertionOrder(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	sermons := store.SermonStore()
	for _, id := range []string{"ser-c", "ser-a", "ser-b"} {
		require.NoError(t, sermons.Save(ctx, testSermon(id)))
	}

	list, err := sermons.List(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "ser-c", list[0].ID)
	assert.Equal(t, "ser-a", list[1].ID)
	assert.Equal(t, "ser-b", list[2].ID)
}

func TestSermonStore_Delete_CascadesChildren(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	sermons := store.SermonStore()
	require.NoError(t, sermons.Save(ctx, testSermon("ser-1")))

	require.NoError(t, sermons.Delete(ctx, "ser-1"))

	_, err := sermons.Get(ctx, "ser-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	var count int
	row := store.db.QueryRow("SELECT COUNT(*) FROM notes WHERE sermon_id = ?", "ser-1")
	require.NoError(t, row.Scan(&count))
	assert.Zero(t, count)
}

func TestSermonStore_Delete_NotFound(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	err := store.SermonStore().Delete(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestJobStore_Load_EmptyQueue(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	jobs, err := store.JobStore().Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestJobStore_SaveAndLoad_RoundTrip(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	attempt := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	in := []domain.SummaryJob{
		{
			ID: "job-1", SermonID: "ser-1", TranscriptText: "text one",
			ServiceType: "sunday-morning",
			CreatedAt:   time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC),
			RetryCount:  2, LastAttemptAt: &attempt,
		},
		{
			ID: "job-2", SermonID: "ser-2", TranscriptText: "text two",
			CreatedAt: time.Date(2026, 4, 1, 9, 5, 0, 0, time.UTC),
		},
	}
	require.NoError(t, store.JobStore().Save(ctx, in))

	out, err := store.JobStore().Load(ctx)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "job-1", out[0].ID)
	assert.Equal(t, 2, out[0].RetryCount)
	require.NotNil(t, out[0].LastAttemptAt)
	assert.True(t, attempt.Equal(*out[0].LastAttemptAt))
	assert.Equal(t, "job-2", out[1].ID)
}

func TestJobStore_Save_EmptyListClearsQueue(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, store.JobStore().Save(ctx, []domain.SummaryJob{{ID: "job-1"}}))
	require.NoError(t, store.JobStore().Save(ctx, nil))

	out, err := store.JobStore().Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestJobStore_SurvivesReopen(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "tnsync-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tempDir)
	ctx := context.Background()

	store, err := NewStore(tempDir)
	require.NoError(t, err)
	require.NoError(t, store.JobStore().Save(ctx, []domain.SummaryJob{
		{ID: "job-1", SermonID: "ser-1", RetryCount: 1},
		{ID: "job-2", SermonID: "ser-2"},
	}))
	require.NoError(t, store.Close())

	store, err = NewStore(tempDir)
	require.NoError(t, err)
	defer store.Close()

	out, err := store.JobStore().Load(ctx)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "job-1", out[0].ID)
	assert.Equal(t, 1, out[0].RetryCount)
	assert.Equal(t, "job-2", out[1].ID)
}
