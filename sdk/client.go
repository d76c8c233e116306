// Package orgscope provides the OrgScope dashboard API client.
//
// The client talks to the dashboard backend over plain request/response
// HTTP; live updates travel separately over the push channel owned by
// pkg/core/push.
package orgscope

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/orgscope/orgscope-go/pkg/core"
)

const (
	defaultBaseURL       = "http://localhost:8000"
	defaultAIProviderURL = "http://localhost:11434"
)

// Client is the main entry point for the dashboard API.
type Client struct {
	AI        *AIService
	Dashboard *DashboardService
	Reports   *ReportsService
	Health    *HealthService
	Voice     *VoiceService

	baseURL       string
	aiProviderURL string
	httpClient    *http.Client
	logger        *slog.Logger
}

// NewClient creates a client. The base URL defaults to the local backend.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:       defaultBaseURL,
		aiProviderURL: defaultAIProviderURL,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = newDefaultHTTPClient()
	}
	c.baseURL = strings.TrimRight(c.baseURL, "/")
	c.aiProviderURL = strings.TrimRight(c.aiProviderURL, "/")

	c.AI = &AIService{client: c}
	c.Dashboard = &DashboardService{client: c}
	c.Reports = &ReportsService{client: c}
	c.Health = &HealthService{client: c}
	c.Voice = &VoiceService{client: c}
	return c
}

// BaseURL returns the configured backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// getJSON issues a GET and decodes the response body into out.
func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return core.NewInvalidRequestError(err.Error())
	}
	return c.doJSON(req, out)
}

// postJSON issues a POST with a JSON body and decodes the response into out.
func (c *Client) postJSON(ctx context.Context, url string, in, out any) error {
	var body io.Reader
	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return core.NewInvalidRequestError(err.Error())
		}
		body = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return core.NewInvalidRequestError(err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	return c.doJSON(req, out)
}

func (c *Client) doJSON(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Op: req.Method, URL: req.URL.String(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Drain a little of the body for context; backends here return
		// short error strings.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return core.NewTransportError(
			fmt.Sprintf("%s %s", req.Method, req.URL.Path),
			fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))),
		)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return core.NewParseError(fmt.Sprintf("%s %s", req.Method, req.URL.Path), err)
	}
	return nil
}

// endpoint joins the backend base URL with a path.
func (c *Client) endpoint(path string) string {
	return c.baseURL + path
}

// providerEndpoint joins the AI provider base URL with a path.
func (c *Client) providerEndpoint(path string) string {
	return c.aiProviderURL + path
}
