package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/insider-one/notification-orchestrator/internal/domain"
	"github.com/insider-one/notification-orchestrator/internal/middleware"
	"github.com/insider-one/notification-orchestrator/internal/orchestrator"
)

const idempotencyHeader = "X-Idempotency-Key"

// enrichAndPublisher is the subset of *orchestrator.Orchestrator the
// handler drives; EnrichAndPublish is launched detached so the HTTP
// response never waits on enrichment (spec.md §4.1, §4.2).
type enrichAndPublisher interface {
	EnrichAndPublish(ctx context.Context, req orchestrator.Request)
}

// NotificationHandler implements the ingest boundary of spec.md §4.1.
type NotificationHandler struct {
	repo         domain.NotificationRepository
	events       domain.NotificationEventRepository
	idempotency  domain.IdempotencyStore
	status       domain.StatusCache
	orchestrator enrichAndPublisher
	validate     *validator.Validate
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(
	repo domain.NotificationRepository,
	events domain.NotificationEventRepository,
	idempotency domain.IdempotencyStore,
	status domain.StatusCache,
	orch enrichAndPublisher,
) *NotificationHandler {
	return &NotificationHandler{
		repo:         repo,
		events:       events,
		idempotency:  idempotency,
		status:       status,
		orchestrator: orch,
		validate:     validator.New(),
	}
}

// RegisterRoutes registers notification routes.
func (h *NotificationHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/{id}", h.GetByID)
	r.Get("/{id}/events", h.ListEvents)
	r.Get("/status/{correlationId}", h.GetStatus)
	r.Get("/", h.ListByUser)
}

// CreateNotificationRequest is the accepted body of POST /notification
// (spec.md §4.1).
type CreateNotificationRequest struct {
	NotificationType string         `json:"notification_type" validate:"required,oneof=email push"`
	UserID           string         `json:"user_id" validate:"required"`
	TemplateCode     string         `json:"template_code" validate:"required"`
	Variables        map[string]any `json:"variables,omitempty"`
	RequestID        string         `json:"request_id,omitempty"`
	Priority         int            `json:"priority,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
}

// CreateResponse is the body returned on both the accepted and duplicate
// paths.
type CreateResponse struct {
	CorrelationID  string `json:"correlation_id"`
	IdempotencyKey string `json:"idempotency_key"`
	Status         string `json:"status"`
}

// Create accepts a notification request, enforces idempotency at the
// cache fast path, and hands the rest off to the orchestrator
// asynchronously (spec.md §4.1).
func (h *NotificationHandler) Create(w http.ResponseWriter, r *http.Request) {
	idempotencyKey := r.Header.Get(idempotencyHeader)
	if idempotencyKey == "" {
		JSONError(w, http.StatusBadRequest, "MISSING_IDEMPOTENCY_KEY", idempotencyHeader+" header is required", nil)
		return
	}

	correlationID := r.Header.Get(middleware.CorrelationIDHeader)
	if correlationID == "" {
		correlationID = uuid.New().String()
	}

	var req CreateNotificationRequest
	if err := DecodeJSON(r, &req); err != nil {
		HandleError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}

	channel := domain.Channel(req.NotificationType)
	if !channel.IsValid() {
		JSONError(w, http.StatusBadRequest, "INVALID_CHANNEL", "Unknown notification channel", nil)
		return
	}

	winningCorrelationID, won, err := h.idempotency.Reserve(r.Context(), idempotencyKey, correlationID)
	if err != nil {
		JSONError(w, http.StatusInternalServerError, "CACHE_UNAVAILABLE", "Failed to check idempotency", nil)
		return
	}
	if !won {
		JSONMessage(w, http.StatusOK, CreateResponse{
			CorrelationID:  winningCorrelationID,
			IdempotencyKey: idempotencyKey,
			Status:         "duplicate",
		}, "request already accepted")
		return
	}

	priority := domain.PriorityNormal
	if p := priorityFromInt(req.Priority); p.IsValid() {
		priority = p
	}

	go h.orchestrator.EnrichAndPublish(context.Background(), orchestrator.Request{
		UserID:         req.UserID,
		TemplateCode:   req.TemplateCode,
		Channel:        channel,
		Priority:       priority,
		Variables:      req.Variables,
		Metadata:       req.Metadata,
		CorrelationID:  correlationID,
		IdempotencyKey: idempotencyKey,
	})

	JSON(w, http.StatusAccepted, CreateResponse{
		CorrelationID:  correlationID,
		IdempotencyKey: idempotencyKey,
		Status:         "processing",
	})
}

// priorityFromInt maps the DTO's numeric priority (lower is more urgent,
// mirroring the teacher's queue ordering convention) onto domain.Priority.
func priorityFromInt(p int) domain.Priority {
	switch {
	case p <= 0:
		return domain.PriorityUrgent
	case p == 1:
		return domain.PriorityHigh
	case p == 2:
		return domain.PriorityNormal
	default:
		return domain.PriorityLow
	}
}

// GetByID retrieves a notification by ID.
func (h *NotificationHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		JSONError(w, http.StatusBadRequest, "INVALID_ID", "Invalid notification ID", nil)
		return
	}

	notification, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		HandleError(w, err)
		return
	}

	JSON(w, http.StatusOK, notification)
}

// GetStatus serves the asynchronous status-poll surface keyed on
// correlation id (spec.md §4.6).
func (h *NotificationHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	correlationID := chi.URLParam(r, "correlationId")

	snapshot, found, err := h.status.GetStatus(r.Context(), correlationID)
	if err != nil {
		JSONError(w, http.StatusInternalServerError, "CACHE_UNAVAILABLE", "Failed to read status", nil)
		return
	}
	if !found {
		notification, err := h.repo.GetByCorrelationID(r.Context(), correlationID)
		if err != nil {
			HandleError(w, err)
			return
		}
		JSON(w, http.StatusOK, domain.StatusSnapshot{
			Status:    notification.Status,
			Error:     notification.ErrorMessage,
			UpdatedAt: notification.UpdatedAt.Format(time.RFC3339),
		})
		return
	}

	JSON(w, http.StatusOK, snapshot)
}

// ListEvents returns the audit trail for a notification (SPEC_FULL
// "Event query surface").
func (h *NotificationHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		JSONError(w, http.StatusBadRequest, "INVALID_ID", "Invalid notification ID", nil)
		return
	}

	events, err := h.events.ListByNotificationID(r.Context(), id)
	if err != nil {
		HandleError(w, err)
		return
	}

	JSON(w, http.StatusOK, events)
}

// ListByUser returns a keyset-paginated page of a user's notifications
// (spec.md §4.5).
func (h *NotificationHandler) ListByUser(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		JSONError(w, http.StatusBadRequest, "MISSING_USER_ID", "user_id query parameter is required", nil)
		return
	}

	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 || parsed > 100 {
			JSONError(w, http.StatusBadRequest, "INVALID_LIMIT", "limit must be between 1 and 100", nil)
			return
		}
		limit = parsed
	}

	var cursor *time.Time
	if cursorStr := r.URL.Query().Get("cursor"); cursorStr != "" {
		parsed, err := time.Parse(time.RFC3339, cursorStr)
		if err != nil {
			JSONError(w, http.StatusBadRequest, "INVALID_CURSOR", "cursor must be RFC3339", nil)
			return
		}
		cursor = &parsed
	}

	page, err := h.repo.GetUserNotificationsWithCursor(r.Context(), userID, limit, cursor)
	if err != nil {
		HandleError(w, err)
		return
	}

	meta := &PaginationMeta{HasMore: page.HasMore}
	if page.NextCursor != nil {
		meta.NextCursor = page.NextCursor.Format(time.RFC3339)
	}

	JSONWithMeta(w, http.StatusOK, page.Notifications, meta)
}
