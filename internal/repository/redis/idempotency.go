package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const idempotencyKeyPrefix = "idempotency:"

// IdempotencyStore implements domain.IdempotencyStore as the cache fast
// path of spec.md §4.1/§5. The datastore's unique constraint on
// idempotency_key remains the only authoritative deduplication point; a
// miss here never rules out a duplicate.
type IdempotencyStore struct {
	client *Client
	ttl    time.Duration
}

// NewIdempotencyStore creates a new IdempotencyStore.
func NewIdempotencyStore(client *Client, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{client: client, ttl: ttl}
}

// Reserve atomically claims key for correlationID via SET NX. If another
// request already holds the key, its correlation id is returned instead
// and won is false.
func (s *IdempotencyStore) Reserve(ctx context.Context, key, correlationID string) (string, bool, error) {
	redisKey := idempotencyKeyPrefix + key

	won, err := s.client.client.SetNX(ctx, redisKey, correlationID, s.ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("failed to reserve idempotency key: %w", err)
	}
	if won {
		return correlationID, true, nil
	}

	existing, found, err := s.Lookup(ctx, key)
	if err != nil {
		return "", false, err
	}
	if !found {
		// Key expired between the failed SETNX and this lookup; treat as won.
		return correlationID, true, nil
	}
	return existing, false, nil
}

// Lookup returns the correlation id bound to key, if any.
func (s *IdempotencyStore) Lookup(ctx context.Context, key string) (string, bool, error) {
	redisKey := idempotencyKeyPrefix + key

	value, err := s.client.client.Get(ctx, redisKey).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to look up idempotency key: %w", err)
	}
	return value, true, nil
}
