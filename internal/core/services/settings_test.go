package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baisethomas/tabletnotes-sync/internal/adapters/driven/storage/memory"
	"github.com/baisethomas/tabletnotes-sync/internal/core/domain"
)

func TestSettingsService_Get_Defaults(t *testing.T) {
	svc := NewSettingsService(memory.NewConfigStore())

	settings, err := svc.Get()
	require.NoError(t, err)
	assert.True(t, settings.AutoSync)
	assert.Equal(t, 5*time.Minute, settings.Interval)
	assert.False(t, settings.AllowMetered)
	assert.Equal(t, 25*time.Second, settings.BackgroundWindow)
}

func TestSettingsService_SaveAndGet_RoundTrip(t *testing.T) {
	svc := NewSettingsService(memory.NewConfigStore())

	in := &domain.SyncSettings{
		AutoSync:         false,
		Interval:         15 * time.Minute,
		AllowMetered:     true,
		BackgroundWindow: 30 * time.Second,
	}
	require.NoError(t, svc.Save(in))

	out, err := svc.Get()
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestSettingsService_Save_RejectsNonPositiveInterval(t *testing.T) {
	svc := NewSettingsService(memory.NewConfigStore())

	err := svc.Save(&domain.SyncSettings{Interval: 0})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSettingsService_SetAllowMetered(t *testing.T) {
	svc := NewSettingsService(memory.NewConfigStore())

	require.NoError(t, svc.SetAllowMetered(true))

	settings, err := svc.Get()
	require.NoError(t, err)
	assert.True(t, settings.AllowMetered)

	require.NoError(t, svc.SetAllowMetered(false))
	settings, err = svc.Get()
	require.NoError(t, err)
	assert.False(t, settings.AllowMetered)
}

func TestSettingsService_SetAutoSync(t *testing.T) {
	svc := NewSettingsService(memory.NewConfigStore())

	require.NoError(t, svc.SetAutoSync(false))

	settings, err := svc.Get()
	require.NoError(t, err)
	assert.False(t, settings.AutoSync)
}

func TestSettingsService_GetDefaults(t *testing.T) {
	svc := NewSettingsService(memory.NewConfigStore())

	defaults := svc.GetDefaults()
	assert.Equal(t, domain.DefaultSyncSettings(), defaults)
}
