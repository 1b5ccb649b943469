package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPCatalog talks to the catalog service over its REST API.
type HTTPCatalog struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPCatalog creates a catalog client. A zero timeout leaves the request
// bounded only by the caller's context.
func NewHTTPCatalog(baseURL, token string, timeout time.Duration) *HTTPCatalog {
	return &HTTPCatalog{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

type listResponse[T any] struct {
	Items []T `json:"items"`
}

// ResolveTask fetches a task definition by name
func (c *HTTPCatalog) ResolveTask(ctx context.Context, name string) (*Task, error) {
	var resp listResponse[Task]
	if err := c.get(ctx, "/pc-api/v1/tasks", url.Values{"name": {name}}, &resp); err != nil {
		return nil, err
	}
	for i := range resp.Items {
		if resp.Items[i].Name == name {
			return &resp.Items[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, name)
}

// ResolveApplicationsByType lists applications registered for appType
func (c *HTTPCatalog) ResolveApplicationsByType(ctx context.Context, appType string) ([]Application, error) {
	var resp listResponse[Application]
	if err := c.get(ctx, "/pc-api/v1/applications", url.Values{"appType": {appType}}, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func (c *HTTPCatalog) get(ctx context.Context, path string, query url.Values, out any) error {
	endpoint := c.baseURL + path + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to build catalog request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("catalog request %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("catalog request %s returned %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode catalog response: %w", err)
	}
	return nil
}
