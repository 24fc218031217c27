package services

import (
	"time"

	"github.com/baisethomas/tabletnotes-sync/internal/core/ports/driven"
)

// Ensure SystemClock implements the interface.
var _ driven.Clock = (*SystemClock)(nil)

// SystemClock is the production Clock backed by the wall clock.
type SystemClock struct{}

// NewSystemClock creates a wall-clock Clock.
func NewSystemClock() *SystemClock {
	return &SystemClock{}
}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// After returns a channel that fires once after d elapses.
func (SystemClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}
