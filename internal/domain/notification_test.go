package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChannel_IsValid(t *testing.T) {
	tests := []struct {
		name    string
		channel Channel
		want    bool
	}{
		{"valid email", ChannelEmail, true},
		{"valid push", ChannelPush, true},
		{"invalid channel", Channel("sms"), false},
		{"empty channel", Channel(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.channel.IsValid())
		})
	}
}

func TestPriority_Weight(t *testing.T) {
	tests := []struct {
		name     string
		priority Priority
		want     int
	}{
		{"urgent first", PriorityUrgent, 0},
		{"high second", PriorityHigh, 1},
		{"normal third", PriorityNormal, 2},
		{"low last", PriorityLow, 3},
		{"invalid defaults to normal", Priority("invalid"), 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.priority.Weight())
		})
	}
}

func TestNewNotification(t *testing.T) {
	n := NewNotification("u-1", "t-1", "corr-1", "idem-1", ChannelEmail, PriorityNormal,
		map[string]any{"name": "A"}, map[string]any{"source": "api"})

	assert.NotNil(t, n)
	assert.NotEmpty(t, n.ID)
	assert.Equal(t, "u-1", n.UserID)
	assert.Equal(t, "t-1", n.TemplateCode)
	assert.Equal(t, "corr-1", n.CorrelationID)
	assert.Equal(t, "idem-1", n.IdempotencyKey)
	assert.Equal(t, ChannelEmail, n.Channel)
	assert.Equal(t, StatusPending, n.Status)
	assert.Equal(t, DefaultMaxRetries, n.MaxRetries)
	assert.Equal(t, 0, n.RetryCount)
	assert.NotZero(t, n.CreatedAt)
	assert.NotZero(t, n.UpdatedAt)
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from Status
		to   Status
		want bool
	}{
		{"pending to enriching", StatusPending, StatusEnriching, true},
		{"pending to cancelled", StatusPending, StatusCancelled, true},
		{"enriching to queued", StatusEnriching, StatusQueued, true},
		{"enriching to cancelled", StatusEnriching, StatusCancelled, true},
		{"queued to processing", StatusQueued, StatusProcessing, true},
		{"queued to cancelled", StatusQueued, StatusCancelled, true},
		{"processing to sent", StatusProcessing, StatusSent, true},
		{"processing to cancelled", StatusProcessing, StatusCancelled, true},
		{"sent to delivered", StatusSent, StatusDelivered, true},
		{"sent to failed", StatusSent, StatusFailed, true},
		{"sent to cancelled", StatusSent, StatusCancelled, true},
		{"failed to enriching (retry)", StatusFailed, StatusEnriching, true},
		{"delivered is terminal", StatusDelivered, StatusEnriching, false},
		{"cancelled is terminal", StatusCancelled, StatusEnriching, false},
		{"pending cannot skip to queued", StatusPending, StatusQueued, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestIsTerminal(t *testing.T) {
	tests := []struct {
		status Status
		want   bool
	}{
		{StatusDelivered, true},
		{StatusCancelled, true},
		{StatusFailed, true},
		{StatusPending, false},
		{StatusEnriching, false},
		{StatusQueued, false},
		{StatusProcessing, false},
		{StatusSent, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.want, IsTerminal(tt.status))
		})
	}
}

func TestNotification_MarkEnriching(t *testing.T) {
	n := NewNotification("u-1", "t-1", "corr-1", "idem-1", ChannelEmail, PriorityNormal, nil, nil)
	before := n.UpdatedAt

	n.MarkEnriching()

	assert.Equal(t, StatusEnriching, n.Status)
	assert.Nil(t, n.EnrichedAt)
	assert.True(t, !n.UpdatedAt.Before(before))
}

func TestNotification_MarkEnriched_FirstWriteWins(t *testing.T) {
	n := NewNotification("u-1", "t-1", "corr-1", "idem-1", ChannelEmail, PriorityNormal, nil, nil)
	payload := &EnrichedPayload{Template: ResolvedTemplate{Code: "t-1"}}

	n.MarkEnriched(payload)
	firstEnrichedAt := n.EnrichedAt
	assert.NotNil(t, firstEnrichedAt)
	assert.Equal(t, payload, n.EnrichedPayload)

	n.MarkEnriched(&EnrichedPayload{Template: ResolvedTemplate{Code: "t-2"}})
	assert.Equal(t, firstEnrichedAt, n.EnrichedAt)
}

func TestNotification_MarkQueued_FirstWriteWins(t *testing.T) {
	n := NewNotification("u-1", "t-1", "corr-1", "idem-1", ChannelEmail, PriorityNormal, nil, nil)

	n.MarkQueued()
	assert.Equal(t, StatusQueued, n.Status)
	assert.NotNil(t, n.QueuedAt)

	first := n.QueuedAt
	n.MarkQueued()
	assert.Equal(t, first, n.QueuedAt)
}

func TestNotification_MarkFailed(t *testing.T) {
	n := NewNotification("u-1", "t-1", "corr-1", "idem-1", ChannelEmail, PriorityNormal, nil, nil)

	n.MarkFailed(ErrorCodeUserFetch, "opted out")

	assert.Equal(t, StatusFailed, n.Status)
	assert.Equal(t, ErrorCodeUserFetch, *n.ErrorCode)
	assert.Equal(t, "opted out", *n.ErrorMessage)
	assert.NotNil(t, n.FailedAt)
}

func TestNotification_MarkSent(t *testing.T) {
	n := NewNotification("u-1", "t-1", "corr-1", "idem-1", ChannelEmail, PriorityNormal, nil, nil)

	n.MarkSent("ses", "msg-123")

	assert.Equal(t, StatusSent, n.Status)
	assert.Equal(t, "ses", *n.Provider)
	assert.Equal(t, "msg-123", *n.ProviderMessageID)
	assert.NotNil(t, n.SentAt)
}

func TestUserPreferences_AllowsChannel(t *testing.T) {
	p := UserPreferences{EmailOptIn: true, PushOptIn: false}

	assert.True(t, p.AllowsChannel(ChannelEmail))
	assert.False(t, p.AllowsChannel(ChannelPush))
}

func TestTemplate_SupportsChannel(t *testing.T) {
	tmpl := Template{Channel: []string{"email", "push"}}

	assert.True(t, tmpl.SupportsChannel(ChannelEmail))
	assert.True(t, tmpl.SupportsChannel(ChannelPush))
}

func TestTemplate_LatestVersion(t *testing.T) {
	tmpl := Template{Versions: []TemplateVersion{
		{Version: 1, Subject: "old"},
		{Version: 3, Subject: "newest"},
		{Version: 2, Subject: "middle"},
	}}

	v, ok := tmpl.LatestVersion()
	assert.True(t, ok)
	assert.Equal(t, 3, v.Version)
	assert.Equal(t, "newest", v.Subject)

	empty := Template{}
	_, ok = empty.LatestVersion()
	assert.False(t, ok)
}
