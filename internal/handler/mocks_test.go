package handler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/insider-one/notification-orchestrator/internal/domain"
	"github.com/insider-one/notification-orchestrator/internal/orchestrator"
)

type mockNotificationRepository struct {
	mock.Mock
}

func (m *mockNotificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

func (m *mockNotificationRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Notification, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Notification), args.Error(1)
}

func (m *mockNotificationRepository) GetByCorrelationID(ctx context.Context, correlationID string) (*domain.Notification, error) {
	args := m.Called(ctx, correlationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Notification), args.Error(1)
}

func (m *mockNotificationRepository) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Notification, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Notification), args.Error(1)
}

func (m *mockNotificationRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.Status) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *mockNotificationRepository) UpdateEnrichedPayload(ctx context.Context, id uuid.UUID, payload *domain.EnrichedPayload) error {
	args := m.Called(ctx, id, payload)
	return args.Error(0)
}

func (m *mockNotificationRepository) UpdateFailure(ctx context.Context, id uuid.UUID, code domain.ErrorCode, message string) error {
	args := m.Called(ctx, id, code, message)
	return args.Error(0)
}

func (m *mockNotificationRepository) GetFailedForRetry(ctx context.Context, limit int) ([]*domain.Notification, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Notification), args.Error(1)
}

func (m *mockNotificationRepository) GetPendingOlderThan(ctx context.Context, age time.Duration, limit int) ([]*domain.Notification, error) {
	args := m.Called(ctx, age, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Notification), args.Error(1)
}

func (m *mockNotificationRepository) GetUserNotificationsWithCursor(ctx context.Context, userID string, limit int, cursor *time.Time) (*domain.NotificationPage, error) {
	args := m.Called(ctx, userID, limit, cursor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.NotificationPage), args.Error(1)
}

func (m *mockNotificationRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type mockEventRepository struct {
	mock.Mock
}

func (m *mockEventRepository) CreateEvent(ctx context.Context, e *domain.NotificationEvent) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

func (m *mockEventRepository) ListByNotificationID(ctx context.Context, notificationID uuid.UUID) ([]*domain.NotificationEvent, error) {
	args := m.Called(ctx, notificationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.NotificationEvent), args.Error(1)
}

func (m *mockEventRepository) ListByCorrelationID(ctx context.Context, correlationID string) ([]*domain.NotificationEvent, error) {
	args := m.Called(ctx, correlationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.NotificationEvent), args.Error(1)
}

type mockIdempotencyStore struct {
	mock.Mock
}

func (m *mockIdempotencyStore) Reserve(ctx context.Context, key, correlationID string) (string, bool, error) {
	args := m.Called(ctx, key, correlationID)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *mockIdempotencyStore) Lookup(ctx context.Context, key string) (string, bool, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Bool(1), args.Error(2)
}

type mockStatusCache struct {
	mock.Mock
}

func (m *mockStatusCache) SetStatus(ctx context.Context, correlationID string, snapshot domain.StatusSnapshot) error {
	args := m.Called(ctx, correlationID, snapshot)
	return args.Error(0)
}

func (m *mockStatusCache) GetStatus(ctx context.Context, correlationID string) (*domain.StatusSnapshot, bool, error) {
	args := m.Called(ctx, correlationID)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*domain.StatusSnapshot), args.Bool(1), args.Error(2)
}

// mockOrchestrator satisfies enrichAndPublisher without running the real
// enrichment pipeline. Create launches EnrichAndPublish in its own
// goroutine, so tests read done to know the mock call has landed before
// asserting on it.
type mockOrchestrator struct {
	mock.Mock
	done chan struct{}
}

func newMockOrchestrator() *mockOrchestrator {
	return &mockOrchestrator{done: make(chan struct{}, 1)}
}

func (m *mockOrchestrator) EnrichAndPublish(ctx context.Context, req orchestrator.Request) {
	m.Called(ctx, req)
	m.done <- struct{}{}
}
