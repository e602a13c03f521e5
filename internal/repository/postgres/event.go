package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/insider-one/notification-orchestrator/internal/domain"
)

// EventRepository implements domain.NotificationEventRepository, the
// append-only audit trail that runs alongside the mutable Notification
// aggregate (spec.md §3, §4.5).
type EventRepository struct {
	db *DB
}

// NewEventRepository creates a new EventRepository.
func NewEventRepository(db *DB) *EventRepository {
	return &EventRepository{db: db}
}

const eventColumns = `
	id, notification_id, correlation_id, event_type, channel, event_data,
	provider, user_agent, ip, event_at
`

// CreateEvent appends a row; events are never updated or deleted.
func (r *EventRepository) CreateEvent(ctx context.Context, e *domain.NotificationEvent) error {
	data := marshalJSON(e.EventData)

	query := `
		INSERT INTO notification_events (
			id, notification_id, correlation_id, event_type, channel, event_data,
			provider, user_agent, ip, event_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		e.ID, e.NotificationID, e.CorrelationID, e.EventType, e.Channel, data,
		e.Provider, e.UserAgent, e.IP, e.EventAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create notification event: %w", err)
	}
	return nil
}

func (r *EventRepository) ListByNotificationID(ctx context.Context, notificationID uuid.UUID) ([]*domain.NotificationEvent, error) {
	query := fmt.Sprintf(`SELECT %s FROM notification_events WHERE notification_id = $1 ORDER BY event_at ASC`, eventColumns)
	return r.scanMany(ctx, query, notificationID)
}

func (r *EventRepository) ListByCorrelationID(ctx context.Context, correlationID string) ([]*domain.NotificationEvent, error) {
	query := fmt.Sprintf(`SELECT %s FROM notification_events WHERE correlation_id = $1 ORDER BY event_at ASC`, eventColumns)
	return r.scanMany(ctx, query, correlationID)
}

func (r *EventRepository) scanMany(ctx context.Context, query string, args ...any) ([]*domain.NotificationEvent, error) {
	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query notification events: %w", err)
	}
	defer rows.Close()

	events := make([]*domain.NotificationEvent, 0)
	for rows.Next() {
		e := &domain.NotificationEvent{}
		var data []byte

		if err := rows.Scan(
			&e.ID, &e.NotificationID, &e.CorrelationID, &e.EventType, &e.Channel, &data,
			&e.Provider, &e.UserAgent, &e.IP, &e.EventAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan notification event: %w", err)
		}

		if len(data) > 0 {
			json.Unmarshal(data, &e.EventData)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notification events: %w", err)
	}
	return events, nil
}
