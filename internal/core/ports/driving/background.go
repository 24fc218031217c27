package driving

import "context"

// BackgroundManager decides when sync may run, combining connectivity
// transitions, app lifecycle transitions, and a fixed-interval timer.
// It carries no retry logic of its own: a failed attempt is simply
// retried at the next scheduled or triggered opportunity.
type BackgroundManager interface {
	// Start begins the manager loop. Blocks until Stop is called or the
	// context is cancelled.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the manager, waiting for any running
	// attempt to finish.
	Stop() error

	// EnterBackground requests a finite execution window and attempts
	// one best-effort sync inside it. Window expiry abandons the
	// attempt; needsSync flags are unaffected by interruption.
	EnterBackground(ctx context.Context)

	// EnterForeground cancels any outstanding background window and
	// triggers an immediate sync.
	EnterForeground(ctx context.Context)

	// CanSyncNow is a pure predicate combining connectivity state and
	// the metered-network policy. Entitlement is enforced by the
	// orchestrator's own guard.
	CanSyncNow() bool
}
