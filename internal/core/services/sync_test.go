package services

import (
	"context"
	"errors"
	"fmt"
	stdsync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baisethomas/tabletnotes-sync/internal/adapters/driven/storage/memory"
	"github.com/baisethomas/tabletnotes-sync/internal/core/domain"
	"github.com/baisethomas/tabletnotes-sync/internal/core/ports/driven"
)

// --- Mock implementations for sync testing ---
// Note: These are prefixed with "sync" to avoid conflicts with queue_test.go mocks

// syncMockBackend implements driven.RemoteBackend for testing.
type syncMockBackend struct {
	mu stdsync.Mutex

	created    []driven.SermonPayload
	createErr  error
	nextRemote int

	updated   map[string]driven.SermonPayload
	updateErr error

	fetch      []driven.RemoteSermon
	fetchErr   error
	fetchCalls int

	slotErr   error
	uploads   []string
	uploadErr error
	publicURL string

	downloads    []string
	downloadPath string

	deletedUsers []string
	deleteErr    error
}

func newSyncMockBackend() *syncMockBackend {
	return &syncMockBackend{
		updated:      make(map[string]driven.SermonPayload),
		publicURL:    "https://cdn.example.com/audio.m4a",
		downloadPath: "/tmp/downloaded.m4a",
	}
}

func (m *syncMockBackend) CreateSermon(_ context.Context, payload driven.SermonPayload) (*driven.CreateResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.nextRemote++
	m.created = append(m.created, payload)
	return &driven.CreateResult{RemoteID: fmt.Sprintf("remote-%d", m.nextRemote)}, nil
}

func (m *syncMockBackend) UpdateSermon(_ context.Context, remoteID string, payload driven.SermonPayload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	m.updated[remoteID] = payload
	return nil
}

func (m *syncMockBackend) FetchSermons(_ context.Context, _ string) ([]driven.RemoteSermon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchCalls++
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	return m.fetch, nil
}

func (m *syncMockBackend) GetUploadSlot(_ context.Context, assetName, _ string, _ int64) (*driven.UploadSlot, error) {
	if m.slotErr != nil {
		return nil, m.slotErr
	}
	return &driven.UploadSlot{
		UploadURL:   "https://upload.example.com/" + assetName,
		StoragePath: "audio/" + assetName,
	}, nil
}

func (m *syncMockBackend) UploadAsset(_ context.Context, localPath, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.uploadErr != nil {
		return m.uploadErr
	}
	m.uploads = append(m.uploads, localPath)
	return nil
}

func (m *syncMockBackend) PublicAssetURL(_ context.Context, _ string) (string, error) {
	return m.publicURL, nil
}

func (m *syncMockBackend) DownloadAsset(_ context.Context, url string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.downloads = append(m.downloads, url)
	return m.downloadPath, nil
}

func (m *syncMockBackend) DeleteAllUserData(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deletedUsers = append(m.deletedUsers, userID)
	return nil
}

// syncMockEntitlements implements driven.EntitlementChecker.
type syncMockEntitlements struct {
	ok  bool
	err error

	// block, when non-nil, makes CanSync wait until the channel closes.
	block chan struct{}
}

func (m *syncMockEntitlements) CanSync(_ context.Context, _ string) (bool, error) {
	if m.block != nil {
		<-m.block
	}
	return m.ok, m.err
}

func newSyncFixture(t *testing.T) (*SyncOrchestrator, *memory.SermonStore, *syncMockBackend, *fakeClock) {
	t.Helper()
	store := memory.NewSermonStore()
	backend := newSyncMockBackend()
	clock := newFakeClock(time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC))
	orch := NewSyncOrchestrator(store, backend, &syncMockEntitlements{ok: true}, clock, "user-1")
	return orch, store, backend, clock
}

func pendingSermon(id string) *domain.Sermon {
	return &domain.Sermon{
		ID:          id,
		UserID:      "user-1",
		Title:       "Test Sermon",
		ServiceType: "sunday-morning",
		SyncStatus:  domain.SyncPending,
		NeedsSync:   true,
		UpdatedAt:   time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestSyncOrchestrator_SyncAll_CreatesNewSermon(t *testing.T) {
	orch, store, backend, clock := newSyncFixture(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, pendingSermon("ser-1")))

	err := orch.SyncAll(ctx)
	require.NoError(t, err)

	require.Len(t, backend.created, 1)
	assert.Equal(t, "ser-1", backend.created[0].LocalID)
	assert.Equal(t, "Test Sermon", backend.created[0].Title)

	saved, err := store.Get(ctx, "ser-1")
	require.NoError(t, err)
	assert.Equal(t, "remote-1", saved.RemoteID)
	assert.Equal(t, domain.SyncSynced, saved.SyncStatus)
	assert.False(t, saved.NeedsSync)
	require.NotNil(t, saved.LastSyncedAt)
	assert.Equal(t, clock.Now(), *saved.LastSyncedAt)

	status := orch.Status()
	assert.Equal(t, 1, status.Pushed)
	assert.Empty(t, status.LastError)
	assert.False(t, status.Running)
}

func TestSyncOrchestrator_SyncAll_UploadsAudioForNewSermon(t *testing.T) {
	orch, store, backend, _ := newSyncFixture(t)
	ctx := context.Background()

	s := pendingSermon("ser-1")
	s.AudioPath = "/recordings/sermon.m4a"
	s.AudioFileName = "sermon.m4a"
	s.AudioSizeBytes = 1024
	require.NoError(t, store.Save(ctx, s))

	require.NoError(t, orch.SyncAll(ctx))

	require.Len(t, backend.uploads, 1)
	assert.Equal(t, "/recordings/sermon.m4a", backend.uploads[0])

	saved, err := store.Get(ctx, "ser-1")
	require.NoError(t, err)
	assert.Equal(t, backend.publicURL, saved.AudioURL)
	// The payload carried the resolved URL
	assert.Equal(t, backend.publicURL, backend.created[0].AudioFileURL)
}

func TestSyncOrchestrator_SyncAll_UpdatesExistingSermon(t *testing.T) {
	orch, store, backend, _ := newSyncFixture(t)
	ctx := context.Background()

	s := pendingSermon("ser-1")
	s.RemoteID = "remote-9"
	require.NoError(t, store.Save(ctx, s))

	require.NoError(t, orch.SyncAll(ctx))

	assert.Empty(t, backend.created)
	require.Contains(t, backend.updated, "remote-9")
	assert.Equal(t, "ser-1", backend.updated["remote-9"].LocalID)
}

func TestSyncOrchestrator_SyncAll_Idempotent(t *testing.T) {
	orch, store, backend, _ := newSyncFixture(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, pendingSermon("ser-1")))

	require.NoError(t, orch.SyncAll(ctx))
	require.NoError(t, orch.SyncAll(ctx))

	// Second pass found nothing to push
	assert.Len(t, backend.created, 1)
	assert.Empty(t, backend.updated)
	assert.Equal(t, 0, orch.Status().Pushed)
}

func TestSyncOrchestrator_SyncAll_ConflictOnCreateResolvedByPull(t *testing.T) {
	orch, store, backend, _ := newSyncFixture(t)
	ctx := context.Background()

	s := pendingSermon("ser-1")
	require.NoError(t, store.Save(ctx, s))

	// The backend already holds this aggregate from a half-landed
	// create, and echoes back the local ID.
	backend.createErr = domain.ErrAlreadyExists
	backend.fetch = []driven.RemoteSermon{{
		RemoteID:  "remote-7",
		LocalID:   "ser-1",
		Title:     "Stale Remote Title",
		UpdatedAt: s.UpdatedAt.Add(-time.Hour),
	}}

	require.NoError(t, orch.SyncAll(ctx))

	saved, err := store.Get(ctx, "ser-1")
	require.NoError(t, err)
	assert.Equal(t, "remote-7", saved.RemoteID)
	// Local copy is newer, so its fields survive the pull
	assert.Equal(t, "Test Sermon", saved.Title)
	// Still pending push; the next pass takes the update path
	assert.True(t, saved.NeedsSync)

	backend.createErr = nil
	require.NoError(t, orch.SyncAll(ctx))
	require.Contains(t, backend.updated, "remote-7")

	final, err := store.Get(ctx, "ser-1")
	require.NoError(t, err)
	assert.Equal(t, domain.SyncSynced, final.SyncStatus)
	assert.False(t, final.NeedsSync)
}

func TestSyncOrchestrator_SyncAll_PushErrorAbortsAndMarksError(t *testing.T) {
	orch, store, backend, _ := newSyncFixture(t)
	ctx := context.Background()

	s := pendingSermon("ser-1")
	s.RemoteID = "remote-1"
	require.NoError(t, store.Save(ctx, s))
	backend.updateErr = domain.ErrNetwork

	err := orch.SyncAll(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNetwork)

	saved, getErr := store.Get(ctx, "ser-1")
	require.NoError(t, getErr)
	assert.Equal(t, domain.SyncError, saved.SyncStatus)
	assert.True(t, saved.NeedsSync)

	// Pull never ran
	assert.Equal(t, 0, backend.fetchCalls)
	assert.NotEmpty(t, orch.Status().LastError)
}

func TestSyncOrchestrator_SyncAll_PartialProgressSurvivesFailure(t *testing.T) {
	orch, store, backend, _ := newSyncFixture(t)
	ctx := context.Background()

	first := pendingSermon("ser-1")
	first.RemoteID = "remote-1"
	require.NoError(t, store.Save(ctx, first))

	second := pendingSermon("ser-2")
	require.NoError(t, store.Save(ctx, second))
	backend.createErr = domain.ErrNetwork

	err := orch.SyncAll(ctx)
	require.Error(t, err)

	// The first item committed before the failure stays committed
	saved, getErr := store.Get(ctx, "ser-1")
	require.NoError(t, getErr)
	assert.Equal(t, domain.SyncSynced, saved.SyncStatus)
	assert.False(t, saved.NeedsSync)

	failed, getErr := store.Get(ctx, "ser-2")
	require.NoError(t, getErr)
	assert.Equal(t, domain.SyncError, failed.SyncStatus)
}

func TestSyncOrchestrator_SyncAll_PullRemoteWins(t *testing.T) {
	orch, store, backend, _ := newSyncFixture(t)
	ctx := context.Background()

	s := pendingSermon("ser-1")
	s.RemoteID = "remote-1"
	s.NeedsSync = false
	s.SyncStatus = domain.SyncSynced
	require.NoError(t, store.Save(ctx, s))

	backend.fetch = []driven.RemoteSermon{{
		RemoteID:  "remote-1",
		LocalID:   "ser-1",
		Title:     "Edited On Another Device",
		Speaker:   "Guest Speaker",
		UpdatedAt: s.UpdatedAt.Add(time.Hour),
		Transcript: &driven.RemoteChild{
			RemoteID:  "rt-1",
			LocalID:   "tr-1",
			Text:      "remote transcript",
			UpdatedAt: s.UpdatedAt.Add(time.Hour),
		},
	}}

	require.NoError(t, orch.SyncAll(ctx))

	saved, err := store.Get(ctx, "ser-1")
	require.NoError(t, err)
	assert.Equal(t, "Edited On Another Device", saved.Title)
	assert.Equal(t, "Guest Speaker", saved.Speaker)
	require.NotNil(t, saved.Transcript)
	assert.Equal(t, "remote transcript", saved.Transcript.Text)
	assert.Equal(t, domain.SyncSynced, saved.SyncStatus)
	assert.Equal(t, 1, orch.Status().Pulled)
}

func TestSyncOrchestrator_SyncAll_PullLocalWins(t *testing.T) {
	orch, store, backend, _ := newSyncFixture(t)
	ctx := context.Background()

	s := pendingSermon("ser-1")
	s.RemoteID = "remote-1"
	s.NeedsSync = false
	s.SyncStatus = domain.SyncSynced
	require.NoError(t, store.Save(ctx, s))

	backend.fetch = []driven.RemoteSermon{{
		RemoteID:  "remote-1",
		LocalID:   "ser-1",
		Title:     "Older Remote Title",
		UpdatedAt: s.UpdatedAt.Add(-time.Hour),
	}}

	require.NoError(t, orch.SyncAll(ctx))

	saved, err := store.Get(ctx, "ser-1")
	require.NoError(t, err)
	assert.Equal(t, "Test Sermon", saved.Title)
	assert.Equal(t, domain.SyncSynced, saved.SyncStatus)
	require.NotNil(t, saved.LastSyncedAt)
}

func TestSyncOrchestrator_SyncAll_PullMaterializesUnknownRemote(t *testing.T) {
	orch, store, backend, _ := newSyncFixture(t)
	ctx := context.Background()

	backend.fetch = []driven.RemoteSermon{{
		RemoteID:     "remote-1",
		LocalID:      "ser-new",
		Title:        "From Another Device",
		AudioFileURL: "https://cdn.example.com/other.m4a",
		Duration:     125.5,
		UpdatedAt:    time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC),
	}}

	require.NoError(t, orch.SyncAll(ctx))

	saved, err := store.Get(ctx, "ser-new")
	require.NoError(t, err)
	assert.Equal(t, "remote-1", saved.RemoteID)
	assert.Equal(t, "From Another Device", saved.Title)
	assert.Equal(t, backend.downloadPath, saved.AudioPath)
	assert.Equal(t, 125500*time.Millisecond, saved.Duration)
	assert.Equal(t, domain.SyncSynced, saved.SyncStatus)
	assert.False(t, saved.NeedsSync)

	require.Len(t, backend.downloads, 1)
	assert.Equal(t, "https://cdn.example.com/other.m4a", backend.downloads[0])
}

func TestSyncOrchestrator_SyncAll_NoEntitlement(t *testing.T) {
	store := memory.NewSermonStore()
	backend := newSyncMockBackend()
	clock := newFakeClock(time.Now())
	orch := NewSyncOrchestrator(store, backend, &syncMockEntitlements{ok: false}, clock, "user-1")
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, pendingSermon("ser-1")))

	err := orch.SyncAll(ctx)
	assert.ErrorIs(t, err, domain.ErrSubscriptionRequired)

	// Fails fast: no backend traffic at all
	assert.Empty(t, backend.created)
	assert.Equal(t, 0, backend.fetchCalls)
}

func TestSyncOrchestrator_SyncAll_NoUser(t *testing.T) {
	store := memory.NewSermonStore()
	backend := newSyncMockBackend()
	orch := NewSyncOrchestrator(store, backend, &syncMockEntitlements{ok: true}, newFakeClock(time.Now()), "")

	err := orch.SyncAll(context.Background())
	assert.ErrorIs(t, err, domain.ErrSubscriptionRequired)
}

func TestSyncOrchestrator_SyncAll_RejectsOverlap(t *testing.T) {
	store := memory.NewSermonStore()
	backend := newSyncMockBackend()
	block := make(chan struct{})
	ent := &syncMockEntitlements{ok: true, block: block}
	orch := NewSyncOrchestrator(store, backend, ent, newFakeClock(time.Now()), "user-1")
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- orch.SyncAll(ctx) }()

	// Wait until the first pass holds the guard
	require.Eventually(t, func() bool {
		return orch.Status().Running
	}, time.Second, 5*time.Millisecond)

	err := orch.SyncAll(ctx)
	assert.ErrorIs(t, err, domain.ErrSyncInProgress)

	close(block)
	require.NoError(t, <-done)
}

func TestSyncOrchestrator_DeleteAllCloudData_ResetsLocalState(t *testing.T) {
	orch, store, backend, _ := newSyncFixture(t)
	ctx := context.Background()

	synced := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	s := pendingSermon("ser-1")
	s.RemoteID = "remote-1"
	s.AudioURL = "https://cdn.example.com/audio.m4a"
	s.NeedsSync = false
	s.SyncStatus = domain.SyncSynced
	s.LastSyncedAt = &synced
	s.Transcript = &domain.Transcript{ID: "tr-1", RemoteID: "rt-1", SermonID: "ser-1", Text: "text"}
	s.Notes = []domain.Note{{ID: "note-1", RemoteID: "rn-1", SermonID: "ser-1"}}
	require.NoError(t, store.Save(ctx, s))

	require.NoError(t, orch.DeleteAllCloudData(ctx))

	assert.Equal(t, []string{"user-1"}, backend.deletedUsers)

	saved, err := store.Get(ctx, "ser-1")
	require.NoError(t, err)
	assert.Empty(t, saved.RemoteID)
	assert.Empty(t, saved.AudioURL)
	assert.Nil(t, saved.LastSyncedAt)
	assert.Equal(t, domain.SyncLocalOnly, saved.SyncStatus)
	assert.Empty(t, saved.Transcript.RemoteID)
	assert.Empty(t, saved.Notes[0].RemoteID)
	// Transcript text itself is untouched
	assert.Equal(t, "text", saved.Transcript.Text)
}

func TestSyncOrchestrator_DeleteAllCloudData_FailureLeavesStateUntouched(t *testing.T) {
	orch, store, backend, _ := newSyncFixture(t)
	ctx := context.Background()

	s := pendingSermon("ser-1")
	s.RemoteID = "remote-1"
	s.SyncStatus = domain.SyncSynced
	require.NoError(t, store.Save(ctx, s))
	backend.deleteErr = domain.ErrNetwork

	err := orch.DeleteAllCloudData(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNetwork)

	saved, getErr := store.Get(ctx, "ser-1")
	require.NoError(t, getErr)
	assert.Equal(t, "remote-1", saved.RemoteID)
	assert.Equal(t, domain.SyncSynced, saved.SyncStatus)
}

func TestSyncOrchestrator_SyncAll_PullErrorSurfaced(t *testing.T) {
	orch, _, backend, _ := newSyncFixture(t)

	backend.fetchErr = errors.New("boom")

	err := orch.SyncAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch sermons")
	assert.NotEmpty(t, orch.Status().LastError)
}
