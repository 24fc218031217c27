package driven

import "time"

// Clock abstracts wall-clock time and timer scheduling so backoff and
// stuck-job-timeout logic are deterministically testable without real
// sleeps.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that fires once after d elapses.
	After(d time.Duration) <-chan time.Time
}
