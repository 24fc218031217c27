package services

import (
	"context"
	stdsync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baisethomas/tabletnotes-sync/internal/adapters/driven/storage/memory"
	"github.com/baisethomas/tabletnotes-sync/internal/core/domain"
	"github.com/baisethomas/tabletnotes-sync/internal/core/ports/driving"
)

// --- Mock implementations for background manager testing ---

// bgMockSync implements driving.SyncOrchestrator.
type bgMockSync struct {
	mu       stdsync.Mutex
	calls    int
	err      error
	deadline bool // whether the last call's context carried a deadline
}

func (m *bgMockSync) SyncAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	_, m.deadline = ctx.Deadline()
	return m.err
}

func (m *bgMockSync) DeleteAllCloudData(_ context.Context) error { return nil }
func (m *bgMockSync) Status() driving.SyncStatus                 { return driving.SyncStatus{} }

func (m *bgMockSync) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *bgMockSync) lastHadDeadline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deadline
}

// bgMockQueue implements driving.SummaryQueue.
type bgMockQueue struct {
	mu       stdsync.Mutex
	process  int
	sweeps   int
	cleanups int
}

func (m *bgMockQueue) Enqueue(_ context.Context, _, _, _ string) (*domain.SummaryJob, error) {
	return &domain.SummaryJob{}, nil
}

func (m *bgMockQueue) Process(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.process++
	return nil
}

func (m *bgMockQueue) Sweep(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweeps++
	return nil
}

func (m *bgMockQueue) Cleanup(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleanups++
	return nil
}

func (m *bgMockQueue) Jobs(_ context.Context) ([]domain.SummaryJob, error) { return nil, nil }

func (m *bgMockQueue) Recover(_ context.Context) error { return nil }

func (m *bgMockQueue) processCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.process
}

// bgMockNetmon implements driven.NetworkMonitor with a pushable
// transition channel.
type bgMockNetmon struct {
	mu          stdsync.Mutex
	state       domain.NetworkState
	transitions chan domain.NetworkState
}

func newBgMockNetmon(state domain.NetworkState) *bgMockNetmon {
	return &bgMockNetmon{
		state:       state,
		transitions: make(chan domain.NetworkState, 4),
	}
}

func (m *bgMockNetmon) Current() domain.NetworkState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *bgMockNetmon) Subscribe() <-chan domain.NetworkState { return m.transitions }
func (m *bgMockNetmon) Start(_ context.Context) error         { return nil }

// push changes the current state and emits the transition.
func (m *bgMockNetmon) push(state domain.NetworkState) {
	m.mu.Lock()
	m.state = state
	m.mu.Unlock()
	m.transitions <- state
}

type bgFixture struct {
	manager  *BackgroundManager
	settings *SettingsService
	syncOrch *bgMockSync
	queue    *bgMockQueue
	netmon   *bgMockNetmon
	tasks    *memory.TaskStore
	clock    *fakeClock
}

func newBgFixture(t *testing.T, state domain.NetworkState) *bgFixture {
	t.Helper()
	f := &bgFixture{
		settings: NewSettingsService(memory.NewConfigStore()),
		syncOrch: &bgMockSync{},
		queue:    &bgMockQueue{},
		netmon:   newBgMockNetmon(state),
		tasks:    memory.NewTaskStore(),
		clock:    newFakeClock(time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)),
	}
	f.manager = NewBackgroundManager(f.settings, f.syncOrch, f.queue, f.netmon, f.tasks, f.clock)
	return f
}

func TestBackgroundManager_CanSyncNow(t *testing.T) {
	tests := []struct {
		name         string
		state        domain.NetworkState
		allowMetered bool
		want         bool
	}{
		{"offline", domain.NetworkDisconnected, true, false},
		{"connected", domain.NetworkConnected, false, true},
		{"metered disallowed", domain.NetworkExpensive, false, false},
		{"metered allowed", domain.NetworkExpensive, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newBgFixture(t, tt.state)
			require.NoError(t, f.settings.SetAllowMetered(tt.allowMetered))
			assert.Equal(t, tt.want, f.manager.CanSyncNow())
		})
	}
}

func TestBackgroundManager_EnterForeground_TriggersSync(t *testing.T) {
	f := newBgFixture(t, domain.NetworkConnected)

	f.manager.EnterForeground(context.Background())

	require.Eventually(t, func() bool {
		return f.syncOrch.callCount() == 1
	}, time.Second, 5*time.Millisecond)
}

func TestBackgroundManager_EnterForeground_OfflineDoesNothing(t *testing.T) {
	f := newBgFixture(t, domain.NetworkDisconnected)

	f.manager.EnterForeground(context.Background())

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, f.syncOrch.callCount())
}

func TestBackgroundManager_EnterBackground_SyncsWithinWindow(t *testing.T) {
	f := newBgFixture(t, domain.NetworkConnected)

	f.manager.EnterBackground(context.Background())

	require.Eventually(t, func() bool {
		return f.syncOrch.callCount() == 1
	}, time.Second, 5*time.Millisecond)
	// The attempt ran under the finite background window
	assert.True(t, f.syncOrch.lastHadDeadline())
}

func TestBackgroundManager_EnterBackground_OfflineDoesNothing(t *testing.T) {
	f := newBgFixture(t, domain.NetworkDisconnected)

	f.manager.EnterBackground(context.Background())

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, f.syncOrch.callCount())
}

func TestBackgroundManager_NetworkRecovery_TriggersSyncAndQueue(t *testing.T) {
	f := newBgFixture(t, domain.NetworkDisconnected)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- f.manager.Start(ctx) }()

	// Connectivity returns
	f.netmon.push(domain.NetworkConnected)

	require.Eventually(t, func() bool {
		return f.syncOrch.callCount() >= 1 && f.queue.processCount() >= 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, f.manager.Stop())
	require.NoError(t, <-done)
}

func TestBackgroundManager_TransitionToOffline_DoesNothing(t *testing.T) {
	f := newBgFixture(t, domain.NetworkConnected)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- f.manager.Start(ctx) }()

	f.netmon.push(domain.NetworkDisconnected)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, f.syncOrch.callCount())
	assert.Equal(t, 0, f.queue.processCount())

	require.NoError(t, f.manager.Stop())
	require.NoError(t, <-done)
}

func TestBackgroundManager_Start_RunsDueTaskAtStartup(t *testing.T) {
	f := newBgFixture(t, domain.NetworkConnected)
	ctx := context.Background()

	// A persisted task whose schedule lapsed while the process was down
	require.NoError(t, f.tasks.SaveTask(ctx, &domain.BackgroundTask{
		ID:       domain.TaskIDPeriodicSync,
		Name:     "Periodic Sync",
		Interval: 5 * time.Minute,
		Enabled:  true,
		NextRun:  f.clock.Now().Add(-time.Minute),
	}))

	done := make(chan error, 1)
	go func() { done <- f.manager.Start(ctx) }()

	require.Eventually(t, func() bool {
		return f.syncOrch.callCount() == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, f.manager.Stop())
	require.NoError(t, <-done)

	// Task state was advanced and the run recorded
	task, err := f.tasks.GetTask(ctx, domain.TaskIDPeriodicSync)
	require.NoError(t, err)
	assert.Equal(t, f.clock.Now().Add(5*time.Minute), task.NextRun)
	assert.Equal(t, f.clock.Now(), task.LastRun)
	assert.Empty(t, task.LastError)

	history, err := f.tasks.GetTaskHistory(ctx, domain.TaskIDPeriodicSync, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.True(t, history[0].Success)
}

func TestBackgroundManager_QueueSweepTask(t *testing.T) {
	f := newBgFixture(t, domain.NetworkConnected)
	ctx := context.Background()

	require.NoError(t, f.tasks.SaveTask(ctx, &domain.BackgroundTask{
		ID:       domain.TaskIDQueueSweep,
		Name:     "Summary Queue Sweep",
		Interval: domain.StuckSummaryTimeout,
		Enabled:  true,
		NextRun:  f.clock.Now().Add(-time.Minute),
	}))

	done := make(chan error, 1)
	go func() { done <- f.manager.Start(ctx) }()

	require.Eventually(t, func() bool {
		f.queue.mu.Lock()
		defer f.queue.mu.Unlock()
		return f.queue.cleanups == 1 && f.queue.sweeps == 1 && f.queue.process == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, f.manager.Stop())
	require.NoError(t, <-done)
}

func TestBackgroundManager_PeriodicSync_DeclinesWhileOffline(t *testing.T) {
	f := newBgFixture(t, domain.NetworkDisconnected)
	ctx := context.Background()

	require.NoError(t, f.tasks.SaveTask(ctx, &domain.BackgroundTask{
		ID:       domain.TaskIDPeriodicSync,
		Name:     "Periodic Sync",
		Interval: 5 * time.Minute,
		Enabled:  true,
		NextRun:  f.clock.Now().Add(-time.Minute),
	}))

	done := make(chan error, 1)
	go func() { done <- f.manager.Start(ctx) }()

	// The task runs, succeeds, and declines to sync
	require.Eventually(t, func() bool {
		history, err := f.tasks.GetTaskHistory(ctx, domain.TaskIDPeriodicSync, 1)
		return err == nil && len(history) == 1 && history[0].Success
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, f.syncOrch.callCount())

	require.NoError(t, f.manager.Stop())
	require.NoError(t, <-done)
}

func TestBackgroundManager_Stop_Idempotent(t *testing.T) {
	f := newBgFixture(t, domain.NetworkConnected)

	require.NoError(t, f.manager.Stop())

	done := make(chan error, 1)
	go func() { done <- f.manager.Start(context.Background()) }()

	require.Eventually(t, func() bool {
		f.manager.mu.Lock()
		defer f.manager.mu.Unlock()
		return f.manager.running
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, f.manager.Stop())
	require.NoError(t, <-done)
	require.NoError(t, f.manager.Stop())
}

func TestBackgroundManager_NoTaskStore_HonoursSettings(t *testing.T) {
	f := newBgFixture(t, domain.NetworkConnected)
	f.manager = NewBackgroundManager(f.settings, f.syncOrch, f.queue, f.netmon, nil, f.clock)
	ctx := context.Background()

	require.NoError(t, f.settings.SetAutoSync(false))
	f.manager.checkAndRunDueTasks(ctx)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, f.syncOrch.callCount())

	require.NoError(t, f.settings.SetAutoSync(true))
	f.manager.checkAndRunDueTasks(ctx)
	require.Eventually(t, func() bool {
		return f.syncOrch.callCount() == 1
	}, time.Second, 5*time.Millisecond)

	// Within the interval: the tick must not fire again
	f.manager.checkAndRunDueTasks(ctx)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, f.syncOrch.callCount())

	f.clock.Advance(5 * time.Minute)
	f.manager.checkAndRunDueTasks(ctx)
	require.Eventually(t, func() bool {
		return f.syncOrch.callCount() == 2
	}, time.Second, 5*time.Millisecond)
}
