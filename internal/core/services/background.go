package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/baisethomas/tabletnotes-sync/internal/core/domain"
	"github.com/baisethomas/tabletnotes-sync/internal/core/ports/driven"
	"github.com/baisethomas/tabletnotes-sync/internal/core/ports/driving"
	"github.com/baisethomas/tabletnotes-sync/internal/logger"
)

// Ensure BackgroundManager implements the interface.
var _ driving.BackgroundManager = (*BackgroundManager)(nil)

// taskHistoryKeep is how many execution results are retained per task.
const taskHistoryKeep = 100

// tickInterval is how often the manager checks for due tasks.
const tickInterval = time.Minute

// BackgroundManager gates and schedules sync runs from three signals:
// connectivity transitions, app lifecycle transitions, and a
// fixed-interval timer. It carries no retry logic; a failed attempt is
// retried at the next opportunity.
type BackgroundManager struct {
	settings driving.SettingsService
	syncOrch driving.SyncOrchestrator
	queue    driving.SummaryQueue
	netmon   driven.NetworkMonitor
	store    driven.TaskStore // optional
	clock    driven.Clock

	mu       sync.Mutex
	running  bool
	stopCh   chan struct{}
	wg       sync.WaitGroup
	bgCancel context.CancelFunc // outstanding background window

	// nextDegradedSync is the in-memory periodic-sync schedule used
	// when no task store was provided.
	nextDegradedSync time.Time
}

// NewBackgroundManager creates a background execution manager.
// The task store may be nil; state is then kept in memory only.
func NewBackgroundManager(
	settings driving.SettingsService,
	syncOrch driving.SyncOrchestrator,
	queue driving.SummaryQueue,
	netmon driven.NetworkMonitor,
	store driven.TaskStore,
	clock driven.Clock,
) *BackgroundManager {
	return &BackgroundManager{
		settings: settings,
		syncOrch: syncOrch,
		queue:    queue,
		netmon:   netmon,
		store:    store,
		clock:    clock,
	}
}

// Start begins the manager loop. This method blocks until Stop is
// called or the context is cancelled.
func (m *BackgroundManager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return nil // Already running
	}
	m.running = true
	m.stopCh = make(chan struct{})
	m.mu.Unlock()

	if err := m.initialiseTasks(ctx); err != nil {
		logger.Warn("Failed to initialise background tasks: %v", err)
	}

	return m.run(ctx)
}

// Stop gracefully shuts down the manager.
func (m *BackgroundManager) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = false
	close(m.stopCh)
	if m.bgCancel != nil {
		m.bgCancel()
		m.bgCancel = nil
	}
	m.mu.Unlock()

	// Wait for running attempts to complete
	m.wg.Wait()
	return nil
}

// CanSyncNow combines connectivity state with the metered-network
// policy. Entitlement is enforced by the orchestrator's own guard.
func (m *BackgroundManager) CanSyncNow() bool {
	state := m.netmon.Current()
	if !state.Online() {
		return false
	}
	if state == domain.NetworkExpensive {
		settings, err := m.settings.Get()
		if err != nil || !settings.AllowMetered {
			return false
		}
	}
	return true
}

// EnterBackground requests a finite execution window and attempts one
// best-effort sync inside it. If the window expires the attempt is
// abandoned; needsSync flags are untouched by interruption, so the
// next opportunity retries from the same starting point.
func (m *BackgroundManager) EnterBackground(ctx context.Context) {
	settings, err := m.settings.Get()
	if err != nil {
		logger.Warn("Failed to load settings: %v", err)
		return
	}

	m.mu.Lock()
	if m.bgCancel != nil {
		m.bgCancel()
	}
	windowCtx, cancel := context.WithTimeout(ctx, settings.BackgroundWindow)
	m.bgCancel = cancel
	m.mu.Unlock()

	if !m.CanSyncNow() {
		cancel()
		return
	}

	logger.Info("Entering background, sync window %s", settings.BackgroundWindow)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer cancel()
		if err := m.syncOrch.SyncAll(windowCtx); err != nil &&
			!errors.Is(err, context.DeadlineExceeded) &&
			!errors.Is(err, domain.ErrSyncInProgress) {
			logger.Warn("Background sync attempt failed: %v", err)
		}
	}()
}

// EnterForeground ends any outstanding background window and triggers
// an immediate sync.
func (m *BackgroundManager) EnterForeground(ctx context.Context) {
	m.mu.Lock()
	if m.bgCancel != nil {
		m.bgCancel()
		m.bgCancel = nil
	}
	m.mu.Unlock()

	if m.CanSyncNow() {
		m.triggerSync(ctx)
	}
}

// initialiseTasks ensures the built-in tasks exist in the store.
func (m *BackgroundManager) initialiseTasks(ctx context.Context) error {
	if m.store == nil {
		return nil
	}

	settings, err := m.settings.Get()
	if err != nil {
		return err
	}

	if err := m.ensureTask(ctx, domain.TaskIDPeriodicSync, "Periodic Sync", settings.Interval, settings.AutoSync); err != nil {
		return err
	}
	return m.ensureTask(ctx, domain.TaskIDQueueSweep, "Summary Queue Sweep", domain.StuckSummaryTimeout, true)
}

// ensureTask creates or updates a task in the store.
func (m *BackgroundManager) ensureTask(ctx context.Context, id, name string, interval time.Duration, enabled bool) error {
	task, err := m.store.GetTask(ctx, id)
	if err != nil {
		return err
	}

	if task == nil {
		task = &domain.BackgroundTask{
			ID:       id,
			Name:     name,
			Interval: interval,
			Enabled:  enabled,
			NextRun:  m.clock.Now().Add(interval),
		}
	} else {
		if task.Interval != interval {
			task.Interval = interval
			task.NextRun = m.clock.Now().Add(interval)
		}
		task.Enabled = enabled
	}

	return m.store.SaveTask(ctx, task)
}

// run is the main manager loop: network transitions trigger immediate
// work, the ticker fires due tasks.
func (m *BackgroundManager) run(ctx context.Context) error {
	transitions := m.netmon.Subscribe()

	// Check for due tasks immediately on startup
	m.checkAndRunDueTasks(ctx)

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.stopCh:
			return nil
		case state, ok := <-transitions:
			if !ok {
				transitions = nil
				continue
			}
			m.onTransition(ctx, state)
		case <-ticker.C:
			m.checkAndRunDueTasks(ctx)
		}
	}
}

// onTransition reacts to a connectivity change: recovery triggers an
// immediate sync and a queue drain.
func (m *BackgroundManager) onTransition(ctx context.Context, state domain.NetworkState) {
	logger.Info("Network transition: %s", state)
	if !state.Online() || !m.CanSyncNow() {
		return
	}

	m.triggerSync(ctx)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := m.queue.Process(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("Queue processing on reconnect failed: %v", err)
		}
	}()
}

// checkAndRunDueTasks finds and executes tasks that are due.
func (m *BackgroundManager) checkAndRunDueTasks(ctx context.Context) {
	if m.store == nil {
		m.runDegradedTick(ctx)
		return
	}

	tasks, err := m.store.ListTasks(ctx)
	if err != nil {
		logger.Warn("Failed to list background tasks: %v", err)
		return
	}

	now := m.clock.Now()
	for i := range tasks {
		task := &tasks[i]
		if !task.Enabled {
			continue
		}
		if task.NextRun.IsZero() || !task.NextRun.After(now) {
			m.runTask(ctx, task)
		}
	}
}

// runDegradedTick schedules the periodic sync without persisted task
// state. The auto-sync gate and the configured interval still apply;
// the schedule just does not survive a restart.
func (m *BackgroundManager) runDegradedTick(ctx context.Context) {
	settings, err := m.settings.Get()
	if err != nil {
		logger.Warn("Failed to load settings: %v", err)
		return
	}
	if !settings.AutoSync || !m.CanSyncNow() {
		return
	}

	now := m.clock.Now()
	m.mu.Lock()
	if m.nextDegradedSync.After(now) {
		m.mu.Unlock()
		return
	}
	m.nextDegradedSync = now.Add(settings.Interval)
	m.mu.Unlock()

	m.triggerSync(ctx)
}

// runTask executes a single task and records the result.
func (m *BackgroundManager) runTask(ctx context.Context, task *domain.BackgroundTask) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		result := &domain.TaskResult{
			TaskID:    task.ID,
			StartedAt: m.clock.Now(),
		}

		var err error
		switch task.ID {
		case domain.TaskIDPeriodicSync:
			err = m.runPeriodicSync(ctx)
		case domain.TaskIDQueueSweep:
			err = m.runQueueSweep(ctx)
		default:
			logger.Warn("Unknown background task ID: %s", task.ID)
			return
		}

		result.EndedAt = m.clock.Now()
		if err != nil {
			result.Success = false
			result.Error = err.Error()
			task.LastError = err.Error()
		} else {
			result.Success = true
			task.LastError = ""
			task.LastSuccess = result.EndedAt
		}

		task.LastRun = result.StartedAt
		task.NextRun = result.EndedAt.Add(task.Interval)

		if saveErr := m.store.SaveTask(ctx, task); saveErr != nil {
			logger.Warn("Failed to save task %s: %v", task.ID, saveErr)
		}
		if recordErr := m.store.RecordResult(ctx, result); recordErr != nil {
			logger.Warn("Failed to record result for %s: %v", task.ID, recordErr)
		}
		if pruneErr := m.store.PruneHistory(ctx, taskHistoryKeep); pruneErr != nil {
			logger.Warn("Failed to prune task history: %v", pruneErr)
		}
	}()
}

// runPeriodicSync runs the foreground interval sync when settings and
// connectivity allow it.
func (m *BackgroundManager) runPeriodicSync(ctx context.Context) error {
	settings, err := m.settings.Get()
	if err != nil {
		return err
	}
	if !settings.AutoSync || !m.CanSyncNow() {
		return nil
	}

	err = m.syncOrch.SyncAll(ctx)
	if errors.Is(err, domain.ErrSyncInProgress) {
		return nil // a manual sync is already running
	}
	return err
}

// runQueueSweep runs the stuck-job sweep and the age-based cleanup.
func (m *BackgroundManager) runQueueSweep(ctx context.Context) error {
	if err := m.queue.Cleanup(ctx); err != nil {
		return err
	}
	if err := m.queue.Sweep(ctx); err != nil {
		return err
	}
	if m.netmon.Current().Online() {
		return m.queue.Process(ctx)
	}
	return nil
}

// triggerSync fires one asynchronous sync attempt.
func (m *BackgroundManager) triggerSync(ctx context.Context) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		err := m.syncOrch.SyncAll(ctx)
		if err != nil && !errors.Is(err, domain.ErrSyncInProgress) && !errors.Is(err, context.Canceled) {
			logger.Warn("Triggered sync failed: %v", err)
		}
	}()
}
