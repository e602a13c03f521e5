package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/insider-one/notification-orchestrator/internal/domain"
)

// httpGetJSON performs a GET against url, unmarshalling a successful
// response body into a domain.RemoteEnvelope[T] and retrying transient
// failures with exponential backoff. Each wait is randomised by ±50%
// around the current interval (the backoff library's default
// randomisation factor); waits are not drawn from the full range between
// zero and the interval. A 4xx response is treated as permanent and
// returned immediately without retry (spec.md §4.2 step 5).
func httpGetJSON[T any](ctx context.Context, client *http.Client, url string, notFoundErr error) (*T, error) {
	var envelope domain.RemoteEnvelope[T]

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to build request: %w", err))
		}
		req.Header.Set("Accept", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return backoff.Permanent(notFoundErr)
		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			return backoff.Permanent(fmt.Errorf("remote returned %d: %s", resp.StatusCode, string(body)))
		case resp.StatusCode >= 500:
			return fmt.Errorf("remote returned %d: %s", resp.StatusCode, string(body))
		}

		if err := json.Unmarshal(body, &envelope); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode response: %w", err))
		}
		if !envelope.Success {
			return backoff.Permanent(fmt.Errorf("remote reported failure: %s", envelope.Error))
		}

		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 500 * time.Millisecond
	policy.Multiplier = 2
	policy.MaxElapsedTime = 30 * time.Second

	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		return nil, err
	}

	return &envelope.Data, nil
}
