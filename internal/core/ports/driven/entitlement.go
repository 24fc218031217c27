package driven

import "context"

// EntitlementChecker answers whether a user may sync. The decision is
// made by an external auth/billing collaborator; the sync engine only
// consumes the boolean gate.
type EntitlementChecker interface {
	// CanSync returns true when the user holds a sync entitlement.
	CanSync(ctx context.Context, userID string) (bool, error)
}
