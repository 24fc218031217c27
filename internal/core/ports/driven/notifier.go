package driven

// Notifier publishes user-facing events to the notification
// collaborator (e.g. to drive a "summary ready" banner).
type Notifier interface {
	// SummaryReady fires when a summary completes, whether generated
	// by the AI service or the local fallback.
	SummaryReady(sermonID string)
}
