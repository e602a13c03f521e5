package domain

import (
	"context"
	"time"
)

// RateLimiter gates per-user daily send volume against the preference
// fetched from the User service (SPEC_FULL "Pre-enrichment rate gate").
type RateLimiter interface {
	// Allow reports whether userID may send one more notification today
	// given dailyLimit. A call with a positive dailyLimit counts toward
	// today's total whether or not it is allowed.
	Allow(ctx context.Context, userID string, dailyLimit int) (bool, error)
}

// IdempotencyStore implements the cache-side fast path of spec.md §4.1/§4.6:
// SET-if-absent keyed on the caller's idempotency key, resolving to the
// correlation id of whichever request won the race.
type IdempotencyStore interface {
	// Reserve attempts to atomically claim key for correlationID. It
	// returns the correlation id actually holding the reservation (which
	// may be a different, earlier request) and whether the caller won it.
	Reserve(ctx context.Context, key, correlationID string) (winningCorrelationID string, won bool, err error)
	// Lookup returns the correlation id bound to key, if any.
	Lookup(ctx context.Context, key string) (correlationID string, found bool, err error)
}

// StatusSnapshot is the cached view of a Notification's asynchronous
// progress, keyed by correlation id (spec.md §4.6).
type StatusSnapshot struct {
	Status    Status  `json:"status"`
	Error     *string `json:"error,omitempty"`
	UpdatedAt string  `json:"updated_at"`
}

// StatusCache publishes/reads the status-snapshot side channel clients poll
// via correlation id.
type StatusCache interface {
	SetStatus(ctx context.Context, correlationID string, snapshot StatusSnapshot) error
	GetStatus(ctx context.Context, correlationID string) (*StatusSnapshot, bool, error)
}

// EnrichedNotification is the wire document published onto the broker
// (spec.md §4.4).
type EnrichedNotification struct {
	NotificationID  string         `json:"notification_id"`
	CorrelationID   string         `json:"correlation_id"`
	IdempotencyKey  string         `json:"idempotency_key"`
	UserID          string         `json:"user_id"`
	TemplateCode    string         `json:"template_code"`
	Channel         Channel        `json:"channel"`
	Priority        Priority       `json:"priority"`
	UserPreferences UserPreferences  `json:"user_preferences"`
	Template        ResolvedTemplate `json:"template"`
	Variables       map[string]any `json:"variables"`
	Metadata        map[string]any `json:"metadata"`
	CreatedAt       string         `json:"created_at"`
}

// Publisher is the Broker Gateway's publish-side contract (spec.md §4.4).
type Publisher interface {
	Publish(ctx context.Context, channel Channel, msg EnrichedNotification) error
}

// MetricsRecorder observes orchestrator outcomes (SPEC_FULL "Health &
// Observability").
type MetricsRecorder interface {
	RecordQueued(channel string, latency time.Duration)
	RecordFailed(channel, errorCode string)
}
