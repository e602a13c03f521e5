package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/insider-one/notification-orchestrator/internal/config"
	"github.com/insider-one/notification-orchestrator/internal/domain"
)

// RecoveryLoop periodically reruns stale pending rows (spec.md §9: "A
// background recovery loop periodically selects status='pending' rows
// older than T and reruns the enrichment"). Combined with the
// idempotency constraint this yields at-least-once progress without
// duplicate side effects.
type RecoveryLoop struct {
	repo         domain.NotificationRepository
	orchestrator *Orchestrator
	interval     time.Duration
	staleAfter   time.Duration
	batchSize    int

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
}

// NewRecoveryLoop creates a RecoveryLoop.
func NewRecoveryLoop(repo domain.NotificationRepository, orchestrator *Orchestrator, cfg config.OrchestratorConfig) *RecoveryLoop {
	return &RecoveryLoop{
		repo:         repo,
		orchestrator: orchestrator,
		interval:     cfg.RecoveryInterval,
		staleAfter:   cfg.RecoveryStaleAfter,
		batchSize:    cfg.RetryBatchSize,
	}
}

// Start launches the recovery loop in the background.
func (l *RecoveryLoop) Start(ctx context.Context) {
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
func (l *RecoveryLoop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.running {
		return
	}
	close(l.stopChan)
	l.running = false
}

func (l *RecoveryLoop) run(ctx context.Context) {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-l.stopChan:
			return
		case <-ticker.C:
			l.recoverStale(ctx)
		}
	}
}

func (l *RecoveryLoop) recoverStale(ctx context.Context) {
	stale, err := l.repo.GetPendingOlderThan(ctx, l.staleAfter, l.batchSize)
	if err != nil {
		l.orchestrator.logger.Error("recovery loop: failed to list stale pending rows", "error", err)
		return
	}
	if len(stale) == 0 {
		return
	}

	l.orchestrator.logger.Info("recovery loop: rerunning stale notifications", "count", len(stale))

	for _, n := range stale {
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
		// EnrichAndPublish's own Create call will hit the idempotency
		// conflict for this row and defer, so recovery proceeds by
		// driving the existing row through enrichment directly.
		l.orchestrator.reenrich(ctx, n, req)
	}
}
