package driving

import "github.com/baisethomas/tabletnotes-sync/internal/core/domain"

// SettingsService manages sync preferences.
type SettingsService interface {
	// Get retrieves the current sync settings, applying defaults for
	// unset keys.
	Get() (*domain.SyncSettings, error)

	// Save persists sync settings.
	Save(settings *domain.SyncSettings) error

	// SetAllowMetered toggles sync over expensive networks.
	SetAllowMetered(allow bool) error

	// SetAutoSync toggles the periodic foreground sync timer.
	SetAutoSync(enabled bool) error

	// GetDefaults returns default settings.
	GetDefaults() domain.SyncSettings
}
