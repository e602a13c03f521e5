package orchestrator

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/insider-one/notification-orchestrator/internal/domain"
)

// mockNotificationRepository mocks domain.NotificationRepository in the
// teacher's style (testify/mock, one typed wrapper method per call).
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

// mockEventRepository mocks domain.NotificationEventRepository.
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

// mockUsers mocks domain.UserPreferencesClient.
type mockUsers struct {
	mock.Mock
}

func (m *mockUsers) FetchUserPreferences(ctx context.Context, userID string) (*domain.UserPreferences, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.UserPreferences), args.Error(1)
}

// mockTemplates mocks domain.TemplateClient.
type mockTemplates struct {
	mock.Mock
}

func (m *mockTemplates) FetchTemplateByID(ctx context.Context, templateCode string) (*domain.Template, error) {
	args := m.Called(ctx, templateCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Template), args.Error(1)
}

// mockLimiter mocks domain.RateLimiter.
type mockLimiter struct {
	mock.Mock
}

func (m *mockLimiter) Allow(ctx context.Context, userID string, dailyLimit int) (bool, error) {
	args := m.Called(ctx, userID, dailyLimit)
	return args.Bool(0), args.Error(1)
}

// mockPublisher mocks domain.Publisher.
type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, channel domain.Channel, msg domain.EnrichedNotification) error {
	args := m.Called(ctx, channel, msg)
	return args.Error(0)
}

// mockStatusCache mocks domain.StatusCache.
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

// mockMetrics mocks domain.MetricsRecorder.
type mockMetrics struct {
	mock.Mock
}

func (m *mockMetrics) RecordQueued(channel string, latency time.Duration) {
	m.Called(channel, latency)
}

func (m *mockMetrics) RecordFailed(channel, errorCode string) {
	m.Called(channel, errorCode)
}
