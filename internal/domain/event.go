package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventType enumerates the NotificationEvent audit-log entries (spec.md §3).
type EventType string

const (
	EventCreated      EventType = "created"
	EventEnriched     EventType = "enriched"
	EventQueued       EventType = "queued"
	EventSent         EventType = "sent"
	EventDelivered    EventType = "delivered"
	EventFailed       EventType = "failed"
	EventOpened       EventType = "opened"
	EventClicked      EventType = "clicked"
	EventBounced      EventType = "bounced"
	EventUnsubscribed EventType = "unsubscribed"
	EventCancelled    EventType = "cancelled"
	EventRetried      EventType = "retried"
)

// NotificationEvent is an immutable, append-only audit-trail row.
type NotificationEvent struct {
	ID             uuid.UUID      `json:"id"`
	NotificationID uuid.UUID      `json:"notification_id"`
	CorrelationID  string         `json:"correlation_id"`
	EventType      EventType      `json:"event_type"`
	Channel        Channel        `json:"channel"`
	EventData      map[string]any `json:"event_data,omitempty"`
	Provider       *string        `json:"provider,omitempty"`
	UserAgent      *string        `json:"user_agent,omitempty"`
	IP             *string        `json:"ip,omitempty"`
	EventAt        time.Time      `json:"event_at"`
}

// NewNotificationEvent builds an event row stamped with the current time.
func NewNotificationEvent(notificationID uuid.UUID, correlationID string, eventType EventType, channel Channel, data map[string]any) *NotificationEvent {
	return &NotificationEvent{
		ID:             uuid.New(),
		NotificationID: notificationID,
		CorrelationID:  correlationID,
		EventType:      eventType,
		Channel:        channel,
		EventData:      data,
		EventAt:        time.Now().UTC(),
	}
}

// NotificationEventRepository persists and queries the audit log.
type NotificationEventRepository interface {
	CreateEvent(ctx context.Context, e *NotificationEvent) error
	ListByNotificationID(ctx context.Context, notificationID uuid.UUID) ([]*NotificationEvent, error)
	ListByCorrelationID(ctx context.Context, correlationID string) ([]*NotificationEvent, error)
}
