package driven

import (
	"context"

	"github.com/baisethomas/tabletnotes-sync/internal/core/domain"
)

// SermonStore persists sermon aggregates and their children locally.
// Children are loaded and saved with their parent, never independently.
type SermonStore interface {
	// Save stores or updates a sermon aggregate, including children.
	// The orchestrator calls this after every per-item sync step so
	// partial progress survives a mid-batch failure.
	Save(ctx context.Context, sermon *domain.Sermon) error

	// Get retrieves a sermon by local ID.
	Get(ctx context.Context, id string) (*domain.Sermon, error)

	// GetByRemoteID retrieves a sermon by its backend ID.
	// Returns domain.ErrNotFound if no local copy exists.
	GetByRemoteID(ctx context.Context, remoteID string) (*domain.Sermon, error)

	// List returns all sermons for a user.
	List(ctx context.Context, userID string) ([]domain.Sermon, error)

	// ListNeedingSync returns all sermons with unpushed mutations.
	ListNeedingSync(ctx context.Context, userID string) ([]domain.Sermon, error)

	// Delete removes a sermon and cascades to its children.
	Delete(ctx context.Context, id string) error
}
