package domain

import "time"

// SyncSettings holds user-facing sync preferences.
type SyncSettings struct {
	// AutoSync enables the periodic foreground sync timer.
	AutoSync bool

	// Interval is how often the background manager triggers a sync
	// while the app is foregrounded.
	Interval time.Duration

	// AllowMetered permits sync over expensive (metered) networks.
	AllowMetered bool

	// BackgroundWindow is the maximum duration granted to a sync
	// attempt after the app moves to the background.
	BackgroundWindow time.Duration
}

// DefaultSyncSettings returns the defaults applied before any user
// configuration exists.
func DefaultSyncSettings() SyncSettings {
	return SyncSettings{
		AutoSync:         true,
		Interval:         5 * time.Minute,
		AllowMetered:     false,
		BackgroundWindow: 25 * time.Second,
	}
}
