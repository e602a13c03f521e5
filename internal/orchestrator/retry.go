package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/insider-one/notification-orchestrator/internal/config"
	"github.com/insider-one/notification-orchestrator/internal/domain"
)

// RetryLoop periodically drives failed, retry-eligible notifications
// back through enrichment (SPEC_FULL "Retry-eligible listing", resolving
// the open question "Retry of failed notifications ... no component
// drives it"). Rows are selected with FOR UPDATE SKIP LOCKED so multiple
// instances of this loop never double-process a row (spec.md §5).
type RetryLoop struct {
	repo         domain.NotificationRepository
	events       domain.NotificationEventRepository
	orchestrator *Orchestrator
	interval     time.Duration
	batchSize    int

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
}

// NewRetryLoop creates a RetryLoop.
func NewRetryLoop(repo domain.NotificationRepository, events domain.NotificationEventRepository, orchestrator *Orchestrator, cfg config.OrchestratorConfig) *RetryLoop {
	return &RetryLoop{
		repo:         repo,
		events:       events,
		orchestrator: orchestrator,
		interval:     cfg.RetryInterval,
		batchSize:    cfg.RetryBatchSize,
	}
}

// Start launches the retry loop in the background.
func (l *RetryLoop) Start(ctx context.Context) {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return
	}
	l.running = true
	l.stopChan = make(chan struct{})
	l.mu.Unlock()

	go l.run(ctx)
}

// Stop signals the loop to exit.
func (l *RetryLoop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.running {
		return
	}
	close(l.stopChan)
	l.running = false
}

func (l *RetryLoop) run(ctx context.Context) {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-l.stopChan:
			return
		case <-ticker.C:
			l.RetryFailed(ctx)
		}
	}
}

// RetryFailed selects retry-eligible rows and reruns enrichment for each,
// transitioning failed -> enriching per the state machine's explicit
// retry edge (spec.md §4.3).
func (l *RetryLoop) RetryFailed(ctx context.Context) {
	candidates, err := l.repo.GetFailedForRetry(ctx, l.batchSize)
	if err != nil {
		l.orchestrator.logger.Error("retry loop: failed to list retry-eligible rows", "error", err)
		return
	}
	if len(candidates) == 0 {
		return
	}

	l.orchestrator.logger.Info("retry loop: retrying failed notifications", "count", len(candidates))

	for _, n := range candidates {
		if !domain.CanTransition(n.Status, domain.StatusEnriching) {
			continue
		}

		event := domain.NewNotificationEvent(n.ID, n.CorrelationID, domain.EventRetried, n.Channel,
			map[string]any{"retry_count": n.RetryCount})
		if err := l.events.CreateEvent(ctx, event); err != nil {
			l.orchestrator.logger.Error("retry loop: failed to append retried event", "error", err, "notification_id", n.ID)
		}

		req := Request{
			UserID:         n.UserID,
			TemplateCode:   n.TemplateCode,
			Channel:        n.Channel,
			Priority:       n.Priority,
			Variables:      n.Variables,
			Metadata:       n.Metadata,
			CorrelationID:  n.CorrelationID,
			IdempotencyKey: n.IdempotencyKey,
		}
		l.orchestrator.reenrich(ctx, n, req)
	}
}
