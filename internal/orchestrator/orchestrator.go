package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/insider-one/notification-orchestrator/internal/config"
	"github.com/insider-one/notification-orchestrator/internal/domain"
)

// Orchestrator drives a Notification through enrichment and publish, the
// core state machine of spec.md §4.2.
type Orchestrator struct {
	repo      domain.NotificationRepository
	events    domain.NotificationEventRepository
	users     domain.UserPreferencesClient
	templates domain.TemplateClient
	limiter   domain.RateLimiter
	publisher domain.Publisher
	status    domain.StatusCache
	metrics   domain.MetricsRecorder
	logger    *slog.Logger
	deadline  time.Duration
}

// New creates an Orchestrator. metrics may be nil.
func New(
	repo domain.NotificationRepository,
	events domain.NotificationEventRepository,
	users domain.UserPreferencesClient,
	templates domain.TemplateClient,
	limiter domain.RateLimiter,
	publisher domain.Publisher,
	status domain.StatusCache,
	metrics domain.MetricsRecorder,
	logger *slog.Logger,
	cfg config.OrchestratorConfig,
) *Orchestrator {
	return &Orchestrator{
		repo:      repo,
		events:    events,
		users:     users,
		templates: templates,
		limiter:   limiter,
		publisher: publisher,
		status:    status,
		metrics:   metrics,
		logger:    logger,
		deadline:  cfg.Deadline,
	}
}

// Request carries the validated fields accepted off the HTTP boundary
// (spec.md §4.1).
type Request struct {
	UserID         string
	TemplateCode   string
	Channel        domain.Channel
	Priority       domain.Priority
	Variables      map[string]any
	Metadata       map[string]any
	CorrelationID  string
	IdempotencyKey string
}

// enrichResult is the join record for the two concurrent remote fetches
// (spec.md Design Notes: "Concurrent fan-out").
type enrichResult struct {
	preferences *domain.UserPreferences
	template    *domain.Template
}

// EnrichAndPublish runs the full orchestration algorithm (spec.md §4.2
// steps 1-10) as a detached task. It never returns an error to its
// caller: every failure is terminal for the Notification row and is
// recorded there instead.
func (o *Orchestrator) EnrichAndPublish(ctx context.Context, req Request) {
	ctx, cancel := context.WithTimeout(ctx, o.deadline)
	defer cancel()

	notification := domain.NewNotification(
		req.UserID, req.TemplateCode, req.CorrelationID, req.IdempotencyKey,
		req.Channel, req.Priority, req.Variables, req.Metadata,
	)

	if err := o.repo.Create(ctx, notification); err != nil {
		if errors.Is(err, domain.ErrIdempotencyConflict) {
			// Another task already owns this idempotency key; it will
			// publish (or already has). Nothing further to do here.
			o.logger.Info("idempotency conflict on create, deferring to existing row",
				"idempotency_key", req.IdempotencyKey,
			)
			return
		}
		o.logger.Error("failed to persist notification", "error", err, "correlation_id", req.CorrelationID)
		return
	}

	o.appendEvent(ctx, notification, domain.EventCreated, nil)

	o.reenrich(ctx, notification, req)
}

// reenrich drives an already-persisted row through enrichment onward
// (steps 4-10 of spec.md §4.2). It is shared by the initial accept path
// and the recovery loop, which reruns stale pending rows in place rather
// than through Create (spec.md §9).
func (o *Orchestrator) reenrich(ctx context.Context, notification *domain.Notification, req Request) {
	notification.MarkEnriching()
	if err := o.repo.UpdateStatus(ctx, notification.ID, domain.StatusEnriching); err != nil {
		o.logger.Error("failed to mark enriching", "error", err, "notification_id", notification.ID)
		return
	}

	result, err := o.fetchConcurrently(ctx, req)
	if err != nil {
		o.fail(ctx, notification, classifyFetchError(err), err.Error())
		return
	}

	if !result.preferences.AllowsChannel(req.Channel) {
		o.fail(ctx, notification, domain.ErrorCodeUserFetch,
			fmt.Sprintf("user has not opted in to %s notifications", req.Channel))
		return
	}
	if !result.template.SupportsChannel(req.Channel) {
		o.fail(ctx, notification, domain.ErrorCodeTemplateFetch,
			fmt.Sprintf("template %s does not support channel %s", req.TemplateCode, req.Channel))
		return
	}
	if !result.template.IsActive {
		o.fail(ctx, notification, domain.ErrorCodeTemplateFetch,
			fmt.Sprintf("template %s is not active", req.TemplateCode))
		return
	}

	version, ok := result.template.LatestVersion()
	if !ok {
		o.fail(ctx, notification, domain.ErrorCodeTemplateFetch,
			fmt.Sprintf("template %s has no versions", req.TemplateCode))
		return
	}

	if o.limiter != nil {
		allowed, err := o.limiter.Allow(ctx, req.UserID, result.preferences.DailyLimit)
		if err != nil {
			o.logger.Warn("rate limiter unavailable, allowing send", "error", err, "user_id", req.UserID)
		} else if !allowed {
			o.fail(ctx, notification, domain.ErrorCodeRateLimit,
				fmt.Sprintf("user %s exceeded daily limit of %d", req.UserID, result.preferences.DailyLimit))
			return
		}
	}

	resolved := domain.ResolvedTemplate{
		Code:    req.TemplateCode,
		Name:    result.template.Name,
		Version: version.Version,
		Subject: version.Subject,
		Title:   version.Title,
		Body:    version.Body,
	}

	payload := &domain.EnrichedPayload{
		UserPreferences: *result.preferences,
		Template:        resolved,
		Variables:       req.Variables,
	}

	notification.MarkEnriched(payload)
	if err := o.repo.UpdateEnrichedPayload(ctx, notification.ID, payload); err != nil {
		o.logger.Error("failed to persist enriched payload", "error", err, "notification_id", notification.ID)
		o.fail(ctx, notification, domain.ErrorCodeParse, err.Error())
		return
	}
	o.appendEvent(ctx, notification, domain.EventEnriched, map[string]any{"template_version": version.Version})

	message := domain.EnrichedNotification{
		NotificationID:  notification.ID.String(),
		CorrelationID:   notification.CorrelationID,
		IdempotencyKey:  notification.IdempotencyKey,
		UserID:          notification.UserID,
		TemplateCode:    notification.TemplateCode,
		Channel:         notification.Channel,
		Priority:        notification.Priority,
		UserPreferences: *result.preferences,
		Template:        resolved,
		Variables:       notification.Variables,
		Metadata:        notification.Metadata,
		CreatedAt:       notification.CreatedAt.Format(time.RFC3339),
	}

	if err := o.publisher.Publish(ctx, req.Channel, message); err != nil {
		o.fail(ctx, notification, domain.ErrorCodeQueue, err.Error())
		return
	}

	notification.MarkQueued()
	if err := o.repo.UpdateStatus(ctx, notification.ID, domain.StatusQueued); err != nil {
		o.logger.Error("failed to mark queued", "error", err, "notification_id", notification.ID)
		return
	}
	o.appendEvent(ctx, notification, domain.EventQueued, nil)

	o.snapshot(ctx, notification)

	if o.metrics != nil {
		o.metrics.RecordQueued(string(notification.Channel), notification.UpdatedAt.Sub(notification.CreatedAt))
	}

	o.logger.Info("notification queued",
		"notification_id", notification.ID,
		"correlation_id", notification.CorrelationID,
		"channel", notification.Channel,
	)
}

// fetchConcurrently joins the two remote fetches required for enrichment
// (spec.md §4.2 step 5, §5 "Concurrent fan-out"). Both run to completion
// or failure before either result is consulted.
func (o *Orchestrator) fetchConcurrently(ctx context.Context, req Request) (*enrichResult, error) {
	group, gctx := errgroup.WithContext(ctx)
	result := &enrichResult{}

	group.Go(func() error {
		prefs, err := o.users.FetchUserPreferences(gctx, req.UserID)
		if err != nil {
			return &userFetchError{cause: err}
		}
		result.preferences = prefs
		return nil
	})

	group.Go(func() error {
		tmpl, err := o.templates.FetchTemplateByID(gctx, req.TemplateCode)
		if err != nil {
			return &templateFetchError{cause: err}
		}
		result.template = tmpl
		return nil
	})

	if err := group.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

// userFetchError and templateFetchError tag which of the two concurrent
// fetches in fetchConcurrently failed, so classifyFetchError can attribute
// the right ErrorCode without pattern-matching a sentinel that is shared
// between services (domain.ErrNotFound is also what UserClient returns on
// a 404, so matching on it alone misattributes user failures to templates).
type userFetchError struct{ cause error }

func (e *userFetchError) Error() string { return fmt.Sprintf("user preferences: %s", e.cause) }
func (e *userFetchError) Unwrap() error { return e.cause }

type templateFetchError struct{ cause error }

func (e *templateFetchError) Error() string { return fmt.Sprintf("template: %s", e.cause) }
func (e *templateFetchError) Unwrap() error { return e.cause }

func classifyFetchError(err error) domain.ErrorCode {
	var templateErr *templateFetchError
	if errors.As(err, &templateErr) {
		return domain.ErrorCodeTemplateFetch
	}
	return domain.ErrorCodeUserFetch
}

// fail records a terminal failure: status, error event, and cache
// snapshot (spec.md §4.2 step 6, §7).
func (o *Orchestrator) fail(ctx context.Context, n *domain.Notification, code domain.ErrorCode, message string) {
	if ctx.Err() != nil {
		code = domain.ErrorCodeTimeout
		message = "orchestration deadline exceeded"
		// ctx is already done, so the failure is recorded on a fresh,
		// bounded context; writes issued on ctx itself would be refused.
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
	}

	n.MarkFailed(code, message)
	if err := o.repo.UpdateFailure(ctx, n.ID, code, message); err != nil {
		o.logger.Error("failed to record failure", "error", err, "notification_id", n.ID)
	}
	o.appendEvent(ctx, n, domain.EventFailed, map[string]any{"error_code": string(code), "error_message": message})
	o.snapshot(ctx, n)

	if o.metrics != nil {
		o.metrics.RecordFailed(string(n.Channel), string(code))
	}

	o.logger.Warn("notification failed",
		"notification_id", n.ID,
		"correlation_id", n.CorrelationID,
		"error_code", code,
	)
}

func (o *Orchestrator) appendEvent(ctx context.Context, n *domain.Notification, eventType domain.EventType, data map[string]any) {
	event := domain.NewNotificationEvent(n.ID, n.CorrelationID, eventType, n.Channel, data)
	if err := o.events.CreateEvent(ctx, event); err != nil {
		o.logger.Error("failed to append event", "error", err, "event_type", eventType, "notification_id", n.ID)
	}
}

func (o *Orchestrator) snapshot(ctx context.Context, n *domain.Notification) {
	snapshot := domain.StatusSnapshot{Status: n.Status, UpdatedAt: n.UpdatedAt.Format(time.RFC3339)}
	if n.ErrorMessage != nil {
		snapshot.Error = n.ErrorMessage
	}
	if err := o.status.SetStatus(ctx, n.CorrelationID, snapshot); err != nil {
		o.logger.Warn("failed to write status snapshot", "error", err, "correlation_id", n.CorrelationID)
	}
}
