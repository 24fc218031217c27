package driving

import "context"

// SyncOrchestrator reconciles local aggregates with the remote backend.
type SyncOrchestrator interface {
	// SyncAll attempts one full reconciliation pass: push of every
	// aggregate with unpushed mutations, then pull of all remote
	// aggregates. Returns domain.ErrSyncInProgress if a pass is
	// already running and domain.ErrSubscriptionRequired when the
	// user lacks a sync entitlement.
	SyncAll(ctx context.Context) error

	// DeleteAllCloudData issues a remote wipe for the current user and,
	// only on success, resets local sync metadata. Failure leaves local
	// state untouched.
	DeleteAllCloudData(ctx context.Context) error

	// Status returns the current sync status.
	Status() SyncStatus
}

// SyncStatus is the single (status, error) pair observed by the UI
// layer. Per-item errors are retained only in logs.
type SyncStatus struct {
	// Running indicates if a sync pass is currently in progress.
	Running bool

	// Pushed is the count of aggregates pushed in the last/current pass.
	Pushed int

	// Pulled is the count of aggregates pulled in the last/current pass.
	Pulled int

	// LastError is the error message from the last failed pass, empty
	// after a clean pass.
	LastError string
}
