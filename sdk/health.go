package orgscope

import (
	"context"
	"fmt"

	"github.com/orgscope/orgscope-go/pkg/core"
)

// HealthService probes backend and AI-provider availability. It satisfies
// load.HealthProber so the startup health check can run against the real
// client.
type HealthService struct {
	client *Client
}

// HealthStatus is the full backend health response. Component values are
// human-readable strings; anything prefixed "available" counts as healthy.
type HealthStatus struct {
	Status     string            `json:"status"`
	Timestamp  string            `json:"timestamp"`
	Components map[string]string `json:"components"`
}

// Status fetches the full backend health report.
func (s *HealthService) Status(ctx context.Context) (*HealthStatus, error) {
	var status HealthStatus
	if err := s.client.getJSON(ctx, s.client.endpoint("/api/health"), &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Health returns the per-component status map.
func (s *HealthService) Health(ctx context.Context) (map[string]string, error) {
	status, err := s.Status(ctx)
	if err != nil {
		return nil, err
	}
	return status.Components, nil
}

type providerVersionResponse struct {
	Version string `json:"version"`
}

// AIProviderStatus reports the local AI provider's version string.
func (s *HealthService) AIProviderStatus(ctx context.Context) (string, error) {
	var resp providerVersionResponse
	if err := s.client.getJSON(ctx, s.client.providerEndpoint("/api/version"), &resp); err != nil {
		return "", err
	}
	if resp.Version == "" {
		return "", core.NewParseError("provider version", fmt.Errorf("empty version field"))
	}
	return resp.Version, nil
}

// AIProviderConnectionTest verifies the provider answers its model listing
// endpoint. The body is discarded; reachability is the only signal.
func (s *HealthService) AIProviderConnectionTest(ctx context.Context) error {
	return s.client.getJSON(ctx, s.client.providerEndpoint("/api/tags"), nil)
}
