package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/insider-one/notification-orchestrator/internal/domain"
)

// NotificationRepository implements domain.NotificationRepository using
// PostgreSQL (spec.md §4.5). Rows live in the monthly range-partitioned
// `notifications` table; this layer addresses rows by id only and lets
// partition pruning happen on created_at predicates where present.
type NotificationRepository struct {
	db *DB
}

// NewNotificationRepository creates a new NotificationRepository.
func NewNotificationRepository(db *DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

const notificationColumns = `
	id, user_id, template_code, correlation_id, idempotency_key, channel,
	status, priority, variables, metadata, enriched_payload,
	created_at, updated_at, enriched_at, queued_at, sent_at, delivered_at, failed_at,
	error_code, error_message, retry_count, max_retries, provider, provider_message_id
`

// Create inserts the initial pending row (spec.md §4.2 step 2). An existing
// row with the same idempotency_key created within the last 24 hours, or a
// unique violation on idempotency_key, is surfaced as
// domain.ErrIdempotencyConflict so callers can fall back to the existing
// row — the authoritative deduplication point (spec.md §5).
func (r *NotificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	existing, err := r.GetByIdempotencyKey(ctx, n.IdempotencyKey)
	if err != nil {
		return fmt.Errorf("failed to check idempotency key: %w", err)
	}
	if existing != nil {
		return domain.ErrIdempotencyConflict
	}

	variables, metadata := marshalJSON(n.Variables), marshalJSON(n.Metadata)

	query := `
		INSERT INTO notifications (
			id, user_id, template_code, correlation_id, idempotency_key, channel,
			status, priority, variables, metadata,
			created_at, updated_at, retry_count, max_retries
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14
		)
	`

	_, err = r.db.Pool.Exec(ctx, query,
		n.ID, n.UserID, n.TemplateCode, n.CorrelationID, n.IdempotencyKey, n.Channel,
		n.Status, n.Priority, variables, metadata,
		n.CreatedAt, n.UpdatedAt, n.RetryCount, n.MaxRetries,
	)
	if err != nil {
		if isUniqueViolation(err, "idempotency_key") {
			return domain.ErrIdempotencyConflict
		}
		return fmt.Errorf("failed to create notification: %w", err)
	}

	return nil
}

func (r *NotificationRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Notification, error) {
	query := fmt.Sprintf(`SELECT %s FROM notifications WHERE id = $1 AND deleted_at IS NULL`, notificationColumns)
	return r.scanOne(ctx, query, id)
}

func (r *NotificationRepository) GetByCorrelationID(ctx context.Context, correlationID string) (*domain.Notification, error) {
	query := fmt.Sprintf(`SELECT %s FROM notifications WHERE correlation_id = $1 AND deleted_at IS NULL`, notificationColumns)
	return r.scanOne(ctx, query, correlationID)
}

// GetByIdempotencyKey returns nil (not an error) when absent, per spec.md §4.5.
func (r *NotificationRepository) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Notification, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM notifications
		WHERE idempotency_key = $1 AND deleted_at IS NULL AND created_at > now() - interval '24 hours'
	`, notificationColumns)

	n, err := r.scanOne(ctx, query, key)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	return n, err
}

// phaseColumn maps a target status to the phase-timestamp column that must
// be set first-write-wins alongside it (spec.md §4.3).
func phaseColumn(status domain.Status) string {
	switch status {
	case domain.StatusQueued:
		return "queued_at"
	case domain.StatusSent:
		return "sent_at"
	case domain.StatusDelivered:
		return "delivered_at"
	case domain.StatusFailed:
		return "failed_at"
	}
	return ""
}

// UpdateStatus writes the new status and, if applicable, its matching
// phase timestamp via COALESCE so it is never overwritten once set.
func (r *NotificationRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.Status) error {
	column := phaseColumn(status)

	var query string
	if column == "" {
		query = `UPDATE notifications SET status = $2, updated_at = now() WHERE id = $1 AND deleted_at IS NULL`
	} else {
		query = fmt.Sprintf(
			`UPDATE notifications SET status = $2, updated_at = now(), %s = COALESCE(%s, now()) WHERE id = $1 AND deleted_at IS NULL`,
			column, column,
		)
	}

	result, err := r.db.Pool.Exec(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("failed to update notification status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// UpdateEnrichedPayload persists the enrichment snapshot and sets
// enriched_at first-write-wins (spec.md §3 invariants).
func (r *NotificationRepository) UpdateEnrichedPayload(ctx context.Context, id uuid.UUID, payload *domain.EnrichedPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal enriched payload: %w", err)
	}

	query := `
		UPDATE notifications SET
			enriched_payload = $2,
			enriched_at = COALESCE(enriched_at, now()),
			updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
	`

	result, err := r.db.Pool.Exec(ctx, query, id, data)
	if err != nil {
		return fmt.Errorf("failed to update enriched payload: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// UpdateFailure marks the row terminally failed, incrementing retry_count
// so GetFailedForRetry's budget check converges (spec.md §4.5).
func (r *NotificationRepository) UpdateFailure(ctx context.Context, id uuid.UUID, code domain.ErrorCode, message string) error {
	query := `
		UPDATE notifications SET
			status = 'failed',
			error_code = $2,
			error_message = $3,
			retry_count = retry_count + 1,
			failed_at = COALESCE(failed_at, now()),
			updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
	`

	result, err := r.db.Pool.Exec(ctx, query, id, code, message)
	if err != nil {
		return fmt.Errorf("failed to record notification failure: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// GetFailedForRetry selects retry-eligible rows with FOR UPDATE SKIP LOCKED
// so concurrent retry workers never double-process a row (spec.md §4.5/§5).
func (r *NotificationRepository) GetFailedForRetry(ctx context.Context, limit int) ([]*domain.Notification, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM notifications
		WHERE status = 'failed'
			AND retry_count < max_retries
			AND failed_at > now() - interval '24 hours'
			AND deleted_at IS NULL
		ORDER BY
			CASE priority
				WHEN 'urgent' THEN 0 WHEN 'high' THEN 1 WHEN 'normal' THEN 2 ELSE 3
			END ASC,
			created_at ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, notificationColumns)

	return r.scanMany(ctx, query, limit)
}

// GetPendingOlderThan backs the orchestrator recovery loop (spec.md §9).
func (r *NotificationRepository) GetPendingOlderThan(ctx context.Context, age time.Duration, limit int) ([]*domain.Notification, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM notifications
		WHERE status = 'pending' AND created_at < $1 AND deleted_at IS NULL
		ORDER BY created_at ASC
		LIMIT $2
	`, notificationColumns)

	return r.scanMany(ctx, query, time.Now().UTC().Add(-age), limit)
}

// GetUserNotificationsWithCursor implements keyset pagination on created_at
// (spec.md §4.5).
func (r *NotificationRepository) GetUserNotificationsWithCursor(ctx context.Context, userID string, limit int, cursor *time.Time) (*domain.NotificationPage, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var (
		rows []*domain.Notification
		err  error
	)
	if cursor != nil {
		query := fmt.Sprintf(`
			SELECT %s FROM notifications
			WHERE user_id = $1 AND created_at < $2 AND deleted_at IS NULL
			ORDER BY created_at DESC
			LIMIT $3
		`, notificationColumns)
		rows, err = r.scanMany(ctx, query, userID, *cursor, limit+1)
	} else {
		query := fmt.Sprintf(`
			SELECT %s FROM notifications
			WHERE user_id = $1 AND deleted_at IS NULL
			ORDER BY created_at DESC
			LIMIT $2
		`, notificationColumns)
		rows, err = r.scanMany(ctx, query, userID, limit+1)
	}
	if err != nil {
		return nil, err
	}

	page := &domain.NotificationPage{Notifications: rows}
	if len(rows) > limit {
		page.Notifications = rows[:limit]
		page.HasMore = true
		next := page.Notifications[len(page.Notifications)-1].CreatedAt
		page.NextCursor = &next
	}
	return page, nil
}

// SoftDelete sets deleted_at without removing the row (spec.md §3 lifecycles).
func (r *NotificationRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE notifications SET deleted_at = now(), updated_at = now() WHERE id = $1 AND deleted_at IS NULL`

	result, err := r.db.Pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to soft delete notification: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Helpers

func marshalJSON(v any) []byte {
	if v == nil {
		return []byte("{}")
	}
	data, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return data
}

func isUniqueViolation(err error, column string) bool {
	return strings.Contains(err.Error(), "duplicate key") && strings.Contains(err.Error(), column)
}

func (r *NotificationRepository) scanOne(ctx context.Context, query string, args ...any) (*domain.Notification, error) {
	row := r.db.Pool.QueryRow(ctx, query, args...)
	n, err := scanNotificationRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan notification: %w", err)
	}
	return n, nil
}

func (r *NotificationRepository) scanMany(ctx context.Context, query string, args ...any) ([]*domain.Notification, error) {
	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	notifications := make([]*domain.Notification, 0)
	for rows.Next() {
		n, err := scanNotificationRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notifications: %w", err)
	}
	return notifications, nil
}

// row is satisfied by both pgx.Row and pgx.Rows.
type row interface {
	Scan(dest ...any) error
}

func scanNotificationRow(r row) (*domain.Notification, error) {
	n := &domain.Notification{}
	var variables, metadata, enrichedPayload []byte
	var errorCode *domain.ErrorCode

	err := r.Scan(
		&n.ID, &n.UserID, &n.TemplateCode, &n.CorrelationID, &n.IdempotencyKey, &n.Channel,
		&n.Status, &n.Priority, &variables, &metadata, &enrichedPayload,
		&n.CreatedAt, &n.UpdatedAt, &n.EnrichedAt, &n.QueuedAt, &n.SentAt, &n.DeliveredAt, &n.FailedAt,
		&errorCode, &n.ErrorMessage, &n.RetryCount, &n.MaxRetries, &n.Provider, &n.ProviderMessageID,
	)
	if err != nil {
		return nil, err
	}

	if len(variables) > 0 {
		json.Unmarshal(variables, &n.Variables)
	}
	if len(metadata) > 0 {
		json.Unmarshal(metadata, &n.Metadata)
	}
	if len(enrichedPayload) > 0 {
		var payload domain.EnrichedPayload
		if json.Unmarshal(enrichedPayload, &payload) == nil {
			n.EnrichedPayload = &payload
		}
	}
	n.ErrorCode = errorCode

	return n, nil
}
