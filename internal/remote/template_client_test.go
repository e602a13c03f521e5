package remote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insider-one/notification-orchestrator/internal/config"
	"github.com/insider-one/notification-orchestrator/internal/domain"
)

func TestTemplateClient_FetchTemplateByID_BuildsExpectedPath(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"success":true,"data":{"id":"t-1","isActive":true,"channel":["email"]}}`))
	}))
	defer server.Close()

	client := NewTemplateClient(config.ExternalServicesConfig{TemplateServiceBase: server.URL})

	tmpl, err := client.FetchTemplateByID(context.Background(), "t-1")
	require.NoError(t, err)
	assert.Equal(t, "/template/t-1", gotPath)
	assert.True(t, tmpl.IsActive)
	assert.True(t, tmpl.SupportsChannel(domain.ChannelEmail))
}

func TestTemplateClient_FetchTemplateByID_NotFoundMapsToTemplateNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewTemplateClient(config.ExternalServicesConfig{TemplateServiceBase: server.URL})

	_, err := client.FetchTemplateByID(context.Background(), "missing")
	require.ErrorIs(t, err, domain.ErrTemplateNotFound)
}
