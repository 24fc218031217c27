package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_SummaryReadyReachesSubscribers(t *testing.T) {
	h := New()
	a := h.Subscribe()
	b := h.Subscribe()

	h.SummaryReady("sermon-1")

	for _, ch := range []<-chan Event{a, b} {
		select {
		case ev := <-ch:
			assert.Equal(t, "summary_ready", ev.Kind)
			assert.Equal(t, "sermon-1", ev.SermonID)
		default:
			t.Fatal("subscriber did not receive event")
		}
	}
}

func TestHub_SlowSubscriberDoesNotBlock(t *testing.T) {
	h := New()
	_ = h.Subscribe() // never drained

	// Overflow the buffer; publish must not block.
	for i := 0; i < 100; i++ {
		h.SummaryReady("sermon-1")
	}
}

func TestHub_NoSubscribers(t *testing.T) {
	h := New()
	require.NotPanics(t, func() { h.SummaryReady("sermon-1") })
}
