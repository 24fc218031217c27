package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimitError_Is(t *testing.T) {
	err := &RateLimitError{RetryAfter: 30 * time.Second}

	assert.True(t, errors.Is(err, ErrRateLimited))
	assert.False(t, errors.Is(err, ErrNetwork))
	assert.Contains(t, err.Error(), "30s")
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(ErrNetwork))
	assert.True(t, IsTransient(fmt.Errorf("push sermon: %w", ErrNetwork)))
	assert.True(t, IsTransient(&RateLimitError{RetryAfter: time.Second}))

	assert.False(t, IsTransient(ErrDataCorruption))
	assert.False(t, IsTransient(ErrSubscriptionRequired))
	assert.False(t, IsTransient(ErrAuthExpired))
	assert.False(t, IsTransient(errors.New("boom")))
}
