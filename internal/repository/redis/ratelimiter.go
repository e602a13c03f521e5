package redis

import (
	"context"
	"fmt"
	"time"
)

const rateLimitKeyPrefix = "ratelimit:daily:"

// RateLimiter implements domain.RateLimiter using a per-user-per-day
// counter in Redis (SPEC_FULL "Pre-enrichment rate gate"). The teacher's
// sliding-window sorted-set shape is traded for a plain INCR counter since
// the gate here is daily volume, not per-second throughput.
type RateLimiter struct {
	client *Client
}

// NewRateLimiter creates a new RateLimiter.
func NewRateLimiter(client *Client) *RateLimiter {
	return &RateLimiter{client: client}
}

func rateLimitKey(userID string, day string) string {
	return rateLimitKeyPrefix + userID + ":" + day
}

// Allow increments today's counter for userID and reports whether it is
// still within dailyLimit. A dailyLimit <= 0 means unlimited.
func (r *RateLimiter) Allow(ctx context.Context, userID string, dailyLimit int) (bool, error) {
	if dailyLimit <= 0 {
		return true, nil
	}

	key := rateLimitKey(userID, time.Now().UTC().Format("2006-01-02"))

	count, err := r.client.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}
	if count == 1 {
		r.client.client.Expire(ctx, key, 26*time.Hour)
	}

	return count <= int64(dailyLimit), nil
}
