package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncStatus_IsValid(t *testing.T) {
	valid := []SyncStatus{SyncLocalOnly, SyncPending, SyncSyncing, SyncSynced, SyncError}
	for _, s := range valid {
		assert.True(t, s.IsValid(), "expected %q to be valid", s)
	}

	assert.False(t, SyncStatus("uploading").IsValid())
	assert.False(t, SyncStatus("").IsValid())
}

func TestSyncStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		name string
		from SyncStatus
		to   SyncStatus
		ok   bool
	}{
		{"local_only to pending", SyncLocalOnly, SyncPending, true},
		{"pending to syncing", SyncPending, SyncSyncing, true},
		{"syncing to synced", SyncSyncing, SyncSynced, true},
		{"syncing to error", SyncSyncing, SyncError, true},
		{"error back to pending", SyncError, SyncPending, true},
		{"error never straight to synced", SyncError, SyncSynced, false},
		{"local_only cannot skip to synced", SyncLocalOnly, SyncSynced, false},
		{"pending cannot skip to synced", SyncPending, SyncSynced, false},
		{"synced to pending on new mutation", SyncSynced, SyncPending, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.ok, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestSermon_Touch(t *testing.T) {
	now := time.Now().UTC()
	s := &Sermon{
		ID:         "sermon-1",
		SyncStatus: SyncSynced,
		NeedsSync:  false,
	}

	s.Touch(now)

	assert.True(t, s.NeedsSync)
	assert.Equal(t, now, s.UpdatedAt)
	assert.Equal(t, SyncPending, s.SyncStatus)
}

func TestSermon_Touch_LocalOnly(t *testing.T) {
	now := time.Now().UTC()
	s := &Sermon{ID: "sermon-1", SyncStatus: SyncLocalOnly}

	s.Touch(now)

	assert.Equal(t, SyncPending, s.SyncStatus)
	assert.True(t, s.NeedsSync)
}

func TestSermon_MarkSynced(t *testing.T) {
	now := time.Now().UTC()
	s := &Sermon{
		ID:         "sermon-1",
		SyncStatus: SyncSyncing,
		NeedsSync:  true,
		UpdatedAt:  now.Add(-time.Minute),
	}

	s.MarkSynced(now)

	require.NotNil(t, s.LastSyncedAt)
	assert.Equal(t, now, *s.LastSyncedAt)
	assert.False(t, s.NeedsSync)
	assert.Equal(t, SyncSynced, s.SyncStatus)

	// Invariant: needsSync == false implies updatedAt <= lastSyncedAt.
	assert.False(t, s.UpdatedAt.After(*s.LastSyncedAt))
}
