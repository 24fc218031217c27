package services

import (
	"fmt"
	"time"

	"github.com/baisethomas/tabletnotes-sync/internal/core/domain"
	"github.com/baisethomas/tabletnotes-sync/internal/core/ports/driven"
	"github.com/baisethomas/tabletnotes-sync/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
const (
	keyAutoSync         = "sync.auto"
	keyIntervalMinutes  = "sync.interval_minutes"
	keyAllowMetered     = "sync.allow_metered"
	keyBackgroundWindow = "sync.background_window_seconds"
)

// SettingsService manages sync preferences on top of the config store.
type SettingsService struct {
	configStore driven.ConfigStore
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore) *SettingsService {
	return &SettingsService{configStore: configStore}
}

// Get retrieves the current sync settings, applying defaults for
// unset keys.
func (s *SettingsService) Get() (*domain.SyncSettings, error) {
	defaults := domain.DefaultSyncSettings()
	settings := defaults

	if _, ok := s.configStore.Get(keyAutoSync); ok {
		settings.AutoSync = s.configStore.GetBool(keyAutoSync)
	}
	if v := s.configStore.GetInt(keyIntervalMinutes); v > 0 {
		settings.Interval = time.Duration(v) * time.Minute
	}
	if _, ok := s.configStore.Get(keyAllowMetered); ok {
		settings.AllowMetered = s.configStore.GetBool(keyAllowMetered)
	}
	if v := s.configStore.GetInt(keyBackgroundWindow); v > 0 {
		settings.BackgroundWindow = time.Duration(v) * time.Second
	}

	return &settings, nil
}

// Save persists sync settings.
func (s *SettingsService) Save(settings *domain.SyncSettings) error {
	if settings.Interval <= 0 {
		return fmt.Errorf("%w: interval must be positive", domain.ErrInvalidInput)
	}

	if err := s.configStore.Set(keyAutoSync, settings.AutoSync); err != nil {
		return fmt.Errorf("save auto sync: %w", err)
	}
	if err := s.configStore.Set(keyIntervalMinutes, int(settings.Interval.Minutes())); err != nil {
		return fmt.Errorf("save interval: %w", err)
	}
	if err := s.configStore.Set(keyAllowMetered, settings.AllowMetered); err != nil {
		return fmt.Errorf("save metered policy: %w", err)
	}
	if err := s.configStore.Set(keyBackgroundWindow, int(settings.BackgroundWindow.Seconds())); err != nil {
		return fmt.Errorf("save background window: %w", err)
	}
	return nil
}

// SetAllowMetered toggles sync over expensive networks.
func (s *SettingsService) SetAllowMetered(allow bool) error {
	return s.configStore.Set(keyAllowMetered, allow)
}

// SetAutoSync toggles the periodic foreground sync timer.
func (s *SettingsService) SetAutoSync(enabled bool) error {
	return s.configStore.Set(keyAutoSync, enabled)
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.SyncSettings {
	return domain.DefaultSyncSettings()
}
