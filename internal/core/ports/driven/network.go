package driven

import (
	"context"

	"github.com/baisethomas/tabletnotes-sync/internal/core/domain"
)

// NetworkMonitor observes the connectivity path. Implementations run
// on their own goroutine, de-duplicate repeated identical states, and
// emit only on transitions.
type NetworkMonitor interface {
	// Current returns the last observed state.
	Current() domain.NetworkState

	// Subscribe returns a channel receiving state transitions. The
	// channel is closed when the monitor stops.
	Subscribe() <-chan domain.NetworkState

	// Start begins monitoring until the context is cancelled.
	Start(ctx context.Context) error
}
