package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/insider-one/notification-orchestrator/internal/domain"
)

const statusKeyPrefix = "notification:status:"

// StatusCache implements domain.StatusCache, the asynchronous polling
// surface keyed by correlation id (spec.md §4.6).
type StatusCache struct {
	client *Client
	ttl    time.Duration
}

// NewStatusCache creates a new StatusCache.
func NewStatusCache(client *Client, ttl time.Duration) *StatusCache {
	return &StatusCache{client: client, ttl: ttl}
}

// SetStatus overwrites the snapshot for correlationID, refreshing its TTL.
func (s *StatusCache) SetStatus(ctx context.Context, correlationID string, snapshot domain.StatusSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal status snapshot: %w", err)
	}

	if err := s.client.client.Set(ctx, statusKeyPrefix+correlationID, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write status snapshot: %w", err)
	}
	return nil
}

// GetStatus returns the cached snapshot for correlationID, if present.
func (s *StatusCache) GetStatus(ctx context.Context, correlationID string) (*domain.StatusSnapshot, bool, error) {
	data, err := s.client.client.Get(ctx, statusKeyPrefix+correlationID).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read status snapshot: %w", err)
	}

	var snapshot domain.StatusSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal status snapshot: %w", err)
	}
	return &snapshot, true, nil
}
