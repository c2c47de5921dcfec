package ratelimiter

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Unlimited(t *testing.T) {
	limiter := New(0, 0)

	assert.False(t, limiter.Limited())
	for i := 0; i < 10_000; i++ {
		require.True(t, limiter.Allow())
	}
	assert.True(t, math.IsInf(limiter.Tokens(), 1))
}

func TestNilLimiter(t *testing.T) {
	var limiter *RateLimiter

	assert.False(t, limiter.Limited())
	assert.True(t, limiter.Allow())
	assert.NoError(t, limiter.Wait(context.Background()))
}

func TestAllow_Burst(t *testing.T) {
	limiter := New(1, 3)

	assert.True(t, limiter.Allow())
	assert.True(t, limiter.Allow())
	assert.True(t, limiter.Allow())
	assert.False(t, limiter.Allow(), "bucket should be empty after burst")
}

func TestNew_BurstFloor(t *testing.T) {
	limiter := New(5, 0)

	assert.True(t, limiter.Limited())
	assert.True(t, limiter.Allow())
}

func TestWait_Refills(t *testing.T) {
	limiter := New(100, 1)
	require.True(t, limiter.Allow())

	start := time.Now()
	require.NoError(t, limiter.Wait(context.Background()))
	assert.Less(t, time.Since(start), time.Second)
}

func TestWait_Cancelled(t *testing.T) {
	limiter := New(0.001, 1)
	require.True(t, limiter.Allow())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, limiter.Wait(ctx))
}

func TestThrottle_CallsHookOnlyWhenEmpty(t *testing.T) {
	limiter := New(100, 1)
	calls := 0
	hook := func() { calls++ }

	require.NoError(t, limiter.Throttle(context.Background(), hook))
	assert.Equal(t, 0, calls)

	require.NoError(t, limiter.Throttle(context.Background(), hook))
	assert.Equal(t, 1, calls)
}

func TestTokens_Limited(t *testing.T) {
	limiter := New(1, 2)
	assert.InDelta(t, 2.0, limiter.Tokens(), 0.01)

	limiter.Allow()
	assert.InDelta(t, 1.0, limiter.Tokens(), 0.1)
}
