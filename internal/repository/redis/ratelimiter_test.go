package redis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRateLimiter_Allow_UnlimitedWhenDailyLimitZero(t *testing.T) {
	client, _ := newTestClient(t)
	limiter := NewRateLimiter(client)

	for i := 0; i < 5; i++ {
		allowed, err := limiter.Allow(context.Background(), "u-1", 0)
		require.NoError(t, err)
		require.True(t, allowed)
	}
}

func TestRateLimiter_Allow_WithinLimit(t *testing.T) {
	client, _ := newTestClient(t)
	limiter := NewRateLimiter(client)

	for i := 0; i < 3; i++ {
		allowed, err := limiter.Allow(context.Background(), "u-1", 3)
		require.NoError(t, err)
		require.True(t, allowed)
	}
}

func TestRateLimiter_Allow_ExceedsLimitRejectsFurtherCalls(t *testing.T) {
	client, _ := newTestClient(t)
	limiter := NewRateLimiter(client)

	for i := 0; i < 3; i++ {
		_, err := limiter.Allow(context.Background(), "u-1", 3)
		require.NoError(t, err)
	}

	allowed, err := limiter.Allow(context.Background(), "u-1", 3)
	require.NoError(t, err)
	require.False(t, allowed)
}

func TestRateLimiter_Allow_CountersAreIsolatedPerUser(t *testing.T) {
	client, _ := newTestClient(t)
	limiter := NewRateLimiter(client)

	for i := 0; i < 3; i++ {
		_, err := limiter.Allow(context.Background(), "u-1", 3)
		require.NoError(t, err)
	}

	allowed, err := limiter.Allow(context.Background(), "u-2", 3)
	require.NoError(t, err)
	require.True(t, allowed, "a different user's counter must not be affected by u-1's usage")
}
