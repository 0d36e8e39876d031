package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_AllowWithinBurst(t *testing.T) {
	limiter := New(Config{RequestsPerSecond: 1, BurstSize: 3})

	for i := 0; i < 3; i++ {
		assert.True(t, limiter.Allow(), "burst request %d", i+1)
	}
	assert.False(t, limiter.Allow(), "burst exhausted")
}

func TestLimiter_WaitHonoursBackoff(t *testing.T) {
	limiter := New(Config{RequestsPerSecond: 100, BurstSize: 10})
	limiter.RecordRateLimited(50 * time.Millisecond)

	assert.False(t, limiter.Allow(), "backoff blocks immediate requests")

	start := time.Now()
	require.NoError(t, limiter.Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestLimiter_WaitObservesCancellation(t *testing.T) {
	limiter := New(Config{RequestsPerSecond: 100, BurstSize: 10})
	limiter.RecordRateLimited(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := limiter.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLimiter_ZeroConfigGetsDefaults(t *testing.T) {
	limiter := New(Config{})
	assert.True(t, limiter.Allow())
}
