// Package notify publishes user-facing events. The CLI build logs
// them; subscribers (e.g. the TUI) can also receive them on a channel.
package notify

import (
	"sync"

	"github.com/baisethomas/tabletnotes-sync/internal/core/ports/driven"
	"github.com/baisethomas/tabletnotes-sync/internal/logger"
)

// Ensure Hub implements the interface.
var _ driven.Notifier = (*Hub)(nil)

// Event is a published notification.
type Event struct {
	// Kind names the event, e.g. "summary_ready".
	Kind string

	// SermonID identifies the affected sermon.
	SermonID string
}

// Hub logs events and fans them out to subscribers.
type Hub struct {
	mu   sync.Mutex
	subs []chan Event
}

// New creates a notification hub.
func New() *Hub {
	return &Hub{}
}

// SummaryReady fires when a summary completes.
func (h *Hub) SummaryReady(sermonID string) {
	logger.Info("Summary ready for sermon %s", sermonID)
	h.publish(Event{Kind: "summary_ready", SermonID: sermonID})
}

// Subscribe returns a channel receiving future events.
func (h *Hub) Subscribe() <-chan Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan Event, 16)
	h.subs = append(h.subs, ch)
	return ch
}

func (h *Hub) publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			// Slow subscriber; drop rather than block the queue worker.
		}
	}
}
