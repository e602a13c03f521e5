package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/insider-one/notification-orchestrator/internal/domain"
)

const timeLayout = time.RFC3339

// CallbackHandler implements the status-callback interface through which
// the out-of-scope worker services report delivery outcomes back to the
// orchestrator (spec.md §1 "Out of scope", §4.3 processing->sent->delivered
// transitions).
type CallbackHandler struct {
	repo     domain.NotificationRepository
	events   domain.NotificationEventRepository
	status   domain.StatusCache
	validate *validator.Validate
}

// NewCallbackHandler creates a new CallbackHandler.
func NewCallbackHandler(repo domain.NotificationRepository, events domain.NotificationEventRepository, status domain.StatusCache) *CallbackHandler {
	return &CallbackHandler{repo: repo, events: events, status: status, validate: validator.New()}
}

// RegisterRoutes registers callback routes.
func (h *CallbackHandler) RegisterRoutes(r chi.Router) {
	r.Post("/{id}/callback", h.Report)
}

// CallbackRequest is the body a worker service posts to report progress.
type CallbackRequest struct {
	Status            string  `json:"status" validate:"required,oneof=processing sent delivered failed"`
	Provider          *string `json:"provider,omitempty"`
	ProviderMessageID *string `json:"provider_message_id,omitempty"`
	ErrorCode         *string `json:"error_code,omitempty"`
	ErrorMessage      *string `json:"error_message,omitempty"`
	UserAgent         *string `json:"user_agent,omitempty"`
	IP                *string `json:"ip,omitempty"`
}

// Report applies a worker-reported status transition, validating it
// against the state machine before persisting (spec.md §4.3).
func (h *CallbackHandler) Report(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		JSONError(w, http.StatusBadRequest, "INVALID_ID", "Invalid notification ID", nil)
		return
	}

	var req CallbackRequest
	if err := DecodeJSON(r, &req); err != nil {
		HandleError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}

	notification, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		HandleError(w, err)
		return
	}

	newStatus := domain.Status(req.Status)
	if !domain.CanTransition(notification.Status, newStatus) {
		HandleError(w, domain.ErrInvalidStatus)
		return
	}

	// StatusProcessing has no corresponding EventType (spec.md §3); only
	// the status column moves, mirroring the pending->enriching step.
	var eventType domain.EventType
	skipEvent := false

	switch newStatus {
	case domain.StatusProcessing:
		notification.MarkProcessing()
		skipEvent = true
		if err := h.repo.UpdateStatus(r.Context(), id, domain.StatusProcessing); err != nil {
			HandleError(w, err)
			return
		}
	case domain.StatusSent:
		provider, messageID := "", ""
		if req.Provider != nil {
			provider = *req.Provider
		}
		if req.ProviderMessageID != nil {
			messageID = *req.ProviderMessageID
		}
		notification.MarkSent(provider, messageID)
		eventType = domain.EventSent
		if err := h.repo.UpdateStatus(r.Context(), id, domain.StatusSent); err != nil {
			HandleError(w, err)
			return
		}
	case domain.StatusDelivered:
		notification.MarkDelivered()
		eventType = domain.EventDelivered
		if err := h.repo.UpdateStatus(r.Context(), id, domain.StatusDelivered); err != nil {
			HandleError(w, err)
			return
		}
	case domain.StatusFailed:
		code := domain.ErrorCodeQueue
		message := "worker reported failure"
		if req.ErrorCode != nil {
			code = domain.ErrorCode(*req.ErrorCode)
		}
		if req.ErrorMessage != nil {
			message = *req.ErrorMessage
		}
		notification.MarkFailed(code, message)
		eventType = domain.EventFailed
		if err := h.repo.UpdateFailure(r.Context(), id, code, message); err != nil {
			HandleError(w, err)
			return
		}
	}

	if !skipEvent {
		event := domain.NewNotificationEvent(notification.ID, notification.CorrelationID, eventType, notification.Channel, nil)
		event.Provider = req.Provider
		event.UserAgent = req.UserAgent
		event.IP = req.IP
		if err := h.events.CreateEvent(r.Context(), event); err != nil {
			HandleError(w, err)
			return
		}
	}

	snapshot := domain.StatusSnapshot{Status: notification.Status, Error: notification.ErrorMessage, UpdatedAt: notification.UpdatedAt.Format(timeLayout)}
	_ = h.status.SetStatus(r.Context(), notification.CorrelationID, snapshot)

	JSON(w, http.StatusOK, notification)
}
