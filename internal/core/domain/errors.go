package domain

import (
	"errors"
	"fmt"
	"time"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists. The backend
	// adapter maps HTTP 409 responses to this error; the orchestrator
	// treats it as a success-equivalent outcome resolved by the next
	// pull.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrSubscriptionRequired indicates sync was attempted without a
	// known user or a sync entitlement. Not retryable by the
	// orchestrator itself.
	ErrSubscriptionRequired = errors.New("subscription required")

	// ErrNetwork indicates a transient transport failure. Safe to retry
	// on the next sync opportunity or queue pass.
	ErrNetwork = errors.New("network error")

	// ErrDataCorruption indicates a malformed or unexpected server
	// response shape. Not retryable without intervention; kept distinct
	// from ErrNetwork so it is never silently retried forever.
	ErrDataCorruption = errors.New("data corruption")

	// ErrConflictResolution is reserved for conflicts beyond
	// last-write-wins. Currently nothing produces it: field-level
	// conflicts are resolved by whole-aggregate timestamp comparison.
	ErrConflictResolution = errors.New("conflict resolution required")

	// ErrAuthExpired indicates the backend credential expired and the
	// silent refresh attempt failed.
	ErrAuthExpired = errors.New("authentication expired")

	// ErrSyncInProgress indicates a sync is already running.
	// Overlapping SyncAll invocations are rejected, not queued.
	ErrSyncInProgress = errors.New("sync in progress")

	// ErrRateLimited indicates the summariser rate limit was exceeded.
	ErrRateLimited = errors.New("rate limited")
)

// RateLimitError carries the server-advised retry delay alongside
// ErrRateLimited semantics.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

// Is allows errors.Is(err, ErrRateLimited) to match.
func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}

// IsTransient reports whether the error is safe to retry: network
// failures and rate limits, but not corruption, entitlement, or auth
// failures.
func IsTransient(err error) bool {
	return errors.Is(err, ErrNetwork) || errors.Is(err, ErrRateLimited)
}
