package remote

import (
	"context"
	"fmt"
	"net/http"

	"github.com/insider-one/notification-orchestrator/internal/config"
	"github.com/insider-one/notification-orchestrator/internal/domain"
)

// UserClient implements domain.UserPreferencesClient against the external
// User service (spec.md §6).
type UserClient struct {
	client  *http.Client
	baseURL string
}

// NewUserClient creates a new UserClient.
func NewUserClient(cfg config.ExternalServicesConfig) *UserClient {
	return &UserClient{
		client:  &http.Client{Timeout: cfg.RequestTimeout},
		baseURL: cfg.UserServiceBase,
	}
}

// FetchUserPreferences retrieves the recipient's channel opt-ins, daily
// send limit, and language.
func (c *UserClient) FetchUserPreferences(ctx context.Context, userID string) (*domain.UserPreferences, error) {
	url := fmt.Sprintf("%s/users/preference/%s", c.baseURL, userID)
	return httpGetJSON[domain.UserPreferences](ctx, c.client, url, domain.ErrNotFound)
}
