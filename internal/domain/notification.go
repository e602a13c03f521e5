package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Channel represents the notification delivery channel.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelPush  Channel = "push"
)

func (c Channel) IsValid() bool {
	switch c {
	case ChannelEmail, ChannelPush:
		return true
	}
	return false
}

// Priority represents the relative urgency of a notification.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Weight returns the priority ordering weight; lower sorts first.
func (p Priority) Weight() int {
	switch p {
	case PriorityUrgent:
		return 0
	case PriorityHigh:
		return 1
	case PriorityNormal:
		return 2
	case PriorityLow:
		return 3
	}
	return 2
}

// Status is a state in the Notification lifecycle state machine (spec.md §4.3).
type Status string

const (
	StatusPending    Status = "pending"
	StatusEnriching  Status = "enriching"
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusSent       Status = "sent"
	StatusFailed     Status = "failed"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

// transitions enumerates the allowed From->To edges of the state machine
// (spec.md §4.3). Every non-terminal status also edges to cancelled, per
// the table's "any non-terminal -> cancelled" row.
var transitions = map[Status]map[Status]bool{
	StatusPending:    {StatusEnriching: true, StatusFailed: true, StatusCancelled: true},
	StatusEnriching:  {StatusFailed: true, StatusQueued: true, StatusCancelled: true},
	StatusQueued:     {StatusProcessing: true, StatusCancelled: true, StatusFailed: true},
	StatusProcessing: {StatusSent: true, StatusFailed: true, StatusCancelled: true},
	StatusSent:       {StatusDelivered: true, StatusFailed: true, StatusCancelled: true},
	StatusFailed:     {StatusEnriching: true},
}

// CanTransition reports whether moving from to is an allowed edge.
func CanTransition(from, to Status) bool {
	return transitions[from][to]
}

// IsTerminal reports whether status has no further outbound transitions
// other than the explicit failed->enriching retry path.
func IsTerminal(s Status) bool {
	switch s {
	case StatusDelivered, StatusCancelled:
		return true
	case StatusFailed:
		return true
	}
	return false
}

// ErrorCode classifies why a Notification ended in StatusFailed (spec.md §7).
type ErrorCode string

const (
	ErrorCodeUserFetch     ErrorCode = "USER_FETCH_ERROR"
	ErrorCodeTemplateFetch ErrorCode = "TEMPLATE_FETCH_ERROR"
	ErrorCodeParse         ErrorCode = "PARSE_ERROR"
	ErrorCodeQueue         ErrorCode = "QUEUE_ERROR"
	ErrorCodeTimeout       ErrorCode = "TIMEOUT"
	ErrorCodeRateLimit     ErrorCode = "RATE_LIMIT_EXCEEDED"
)

// EnrichedPayload is the snapshot captured at enrichment time: resolved user
// preferences, the resolved template version (its body not yet rendered with
// the variables), and the caller-supplied variables. It
// is persisted as an opaque JSON document (Design Notes §9).
type EnrichedPayload struct {
	UserPreferences UserPreferences   `json:"user_preferences"`
	Template        ResolvedTemplate  `json:"template"`
	Variables       map[string]any    `json:"variables"`
}

// Notification is the root record: one per accepted, non-duplicate request.
type Notification struct {
	ID             uuid.UUID        `json:"id"`
	UserID         string           `json:"user_id"`
	TemplateCode   string           `json:"template_code"`
	CorrelationID  string           `json:"correlation_id"`
	IdempotencyKey string           `json:"idempotency_key"`
	Channel        Channel          `json:"channel"`
	Status         Status           `json:"status"`
	Priority       Priority         `json:"priority"`
	Variables      map[string]any   `json:"variables,omitempty"`
	Metadata       map[string]any   `json:"metadata,omitempty"`
	EnrichedPayload *EnrichedPayload `json:"enriched_payload,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	EnrichedAt  *time.Time `json:"enriched_at,omitempty"`
	QueuedAt    *time.Time `json:"queued_at,omitempty"`
	SentAt      *time.Time `json:"sent_at,omitempty"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
	FailedAt    *time.Time `json:"failed_at,omitempty"`

	ErrorCode    *ErrorCode `json:"error_code,omitempty"`
	ErrorMessage *string    `json:"error_message,omitempty"`

	RetryCount int `json:"retry_count"`
	MaxRetries int `json:"max_retries"`

	Provider          *string `json:"provider,omitempty"`
	ProviderMessageID *string `json:"provider_message_id,omitempty"`

	DeletedAt *time.Time `json:"-"`
}

const DefaultMaxRetries = 3

// NewNotification builds the initial pending row for an accepted request
// (spec.md §4.2 step 1).
func NewNotification(userID, templateCode, correlationID, idempotencyKey string, channel Channel, priority Priority, variables, metadata map[string]any) *Notification {
	now := time.Now().UTC()
	return &Notification{
		ID:             uuid.New(),
		UserID:         userID,
		TemplateCode:   templateCode,
		CorrelationID:  correlationID,
		IdempotencyKey: idempotencyKey,
		Channel:        channel,
		Status:         StatusPending,
		Priority:       priority,
		Variables:      variables,
		Metadata:       metadata,
		CreatedAt:      now,
		UpdatedAt:      now,
		MaxRetries:     DefaultMaxRetries,
	}
}

func (n *Notification) touch() { n.UpdatedAt = time.Now().UTC() }

// MarkEnriching moves the row into the enriching phase. No phase timestamp
// is set here; enriched_at is written only on successful enrichment.
func (n *Notification) MarkEnriching() {
	n.Status = StatusEnriching
	n.touch()
}

// MarkEnriched records the resolved payload and the first-write-wins
// enriched_at timestamp.
func (n *Notification) MarkEnriched(payload *EnrichedPayload) {
	n.EnrichedPayload = payload
	if n.EnrichedAt == nil {
		now := time.Now().UTC()
		n.EnrichedAt = &now
	}
	n.touch()
}

// MarkQueued transitions to queued after a successful broker publish.
func (n *Notification) MarkQueued() {
	n.Status = StatusQueued
	if n.QueuedAt == nil {
		now := time.Now().UTC()
		n.QueuedAt = &now
	}
	n.touch()
}

// MarkFailed records a terminal failure with its error taxonomy code.
func (n *Notification) MarkFailed(code ErrorCode, message string) {
	n.Status = StatusFailed
	n.ErrorCode = &code
	n.ErrorMessage = &message
	if n.FailedAt == nil {
		now := time.Now().UTC()
		n.FailedAt = &now
	}
	n.touch()
}

// MarkProcessing reflects a worker picking the message up off the broker.
func (n *Notification) MarkProcessing() {
	n.Status = StatusProcessing
	n.touch()
}

// MarkSent reflects a worker's successful hand-off to its provider.
func (n *Notification) MarkSent(provider, providerMessageID string) {
	n.Status = StatusSent
	n.Provider = &provider
	n.ProviderMessageID = &providerMessageID
	if n.SentAt == nil {
		now := time.Now().UTC()
		n.SentAt = &now
	}
	n.touch()
}

// MarkDelivered reflects a positive provider delivery webhook.
func (n *Notification) MarkDelivered() {
	n.Status = StatusDelivered
	if n.DeliveredAt == nil {
		now := time.Now().UTC()
		n.DeliveredAt = &now
	}
	n.touch()
}

// MarkCancelled cancels a non-terminal notification.
func (n *Notification) MarkCancelled() {
	n.Status = StatusCancelled
	n.touch()
}

// NotificationFilter narrows a List query.
type NotificationFilter struct {
	UserID    *string
	Status    *Status
	Channel   *Channel
	StartDate *time.Time
	EndDate   *time.Time
	Cursor    *time.Time
	Limit     int
}

// NotificationPage is a keyset-paginated slice of Notifications (spec.md §4.5).
type NotificationPage struct {
	Notifications []*Notification
	NextCursor    *time.Time
	HasMore       bool
}

// NotificationRepository is the typed persistence surface for Notification
// rows (spec.md §4.5).
type NotificationRepository interface {
	Create(ctx context.Context, n *Notification) error
	GetByID(ctx context.Context, id uuid.UUID) (*Notification, error)
	GetByCorrelationID(ctx context.Context, correlationID string) (*Notification, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*Notification, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error
	UpdateEnrichedPayload(ctx context.Context, id uuid.UUID, payload *EnrichedPayload) error
	UpdateFailure(ctx context.Context, id uuid.UUID, code ErrorCode, message string) error
	GetFailedForRetry(ctx context.Context, limit int) ([]*Notification, error)
	GetPendingOlderThan(ctx context.Context, age time.Duration, limit int) ([]*Notification, error)
	GetUserNotificationsWithCursor(ctx context.Context, userID string, limit int, cursor *time.Time) (*NotificationPage, error)
	SoftDelete(ctx context.Context, id uuid.UUID) error
}
