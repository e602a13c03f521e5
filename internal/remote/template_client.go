package remote

import (
	"context"
	"fmt"
	"net/http"

	"github.com/insider-one/notification-orchestrator/internal/config"
	"github.com/insider-one/notification-orchestrator/internal/domain"
)

// TemplateClient implements domain.TemplateClient against the external
// Template service (spec.md §6).
type TemplateClient struct {
	client  *http.Client
	baseURL string
}

// NewTemplateClient creates a new TemplateClient.
func NewTemplateClient(cfg config.ExternalServicesConfig) *TemplateClient {
	return &TemplateClient{
		client:  &http.Client{Timeout: cfg.RequestTimeout},
		baseURL: cfg.TemplateServiceBase,
	}
}

// FetchTemplateByID retrieves a template definition by its code.
func (c *TemplateClient) FetchTemplateByID(ctx context.Context, templateCode string) (*domain.Template, error) {
	url := fmt.Sprintf("%s/template/%s", c.baseURL, templateCode)
	return httpGetJSON[domain.Template](ctx, c.client, url, domain.ErrTemplateNotFound)
}
