// Package client is a small typed HTTP client for the daemon's ops API,
// shared by the CLI and the terminal dashboard.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// APIError is a non-2xx response from the daemon. Code carries the
// machine-readable reason from the JSON error envelope when one was sent.
type APIError struct {
	Status int
	Code   string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("daemon returned %d (%s)", e.Status, e.Code)
	}
	return fmt.Sprintf("daemon returned %d", e.Status)
}

// Client talks to one daemon's ops API.
type Client struct {
	endpoint string
	token    string
	http     *http.Client
}

// NewClient creates a client for the given endpoint. An empty endpoint
// falls back to the local daemon default; an empty token sends no auth.
func NewClient(endpoint, token string) *Client {
	if endpoint == "" {
		endpoint = "http://127.0.0.1:8091"
	}
	return &Client{
		endpoint: endpoint,
		token:    token,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Ping checks the health of the daemon.
func (c *Client) Ping(ctx context.Context) (Health, error) {
	var health Health
	err := c.get(ctx, "/v1/health", nil, &health)
	return health, err
}

// ListWorkflows returns every workflow in the session in creation order.
func (c *Client) ListWorkflows(ctx context.Context) ([]WorkflowSummary, error) {
	var list []WorkflowSummary
	err := c.get(ctx, "/v1/workflows", nil, &list)
	return list, err
}

// GetWorkflow returns the full view of one workflow.
func (c *Client) GetWorkflow(ctx context.Context, id string) (WorkflowDetail, error) {
	var detail WorkflowDetail
	err := c.get(ctx, "/v1/workflows/"+url.PathEscape(id), nil, &detail)
	return detail, err
}

// GetPortable returns the portable JSON document of one workflow. The raw
// bytes are returned untouched so that node ordering survives a file write.
func (c *Client) GetPortable(ctx context.Context, id string) (json.RawMessage, error) {
	return c.getRaw(ctx, "/v1/workflows/"+url.PathEscape(id)+"/portable", nil)
}

// Validate runs structural validation on one workflow.
func (c *Client) Validate(ctx context.Context, id string) (ValidationReport, error) {
	var report ValidationReport
	err := c.get(ctx, "/v1/workflows/"+url.PathEscape(id)+"/validate", nil, &report)
	return report, err
}

// Catalog lists every registered node type.
func (c *Client) Catalog(ctx context.Context) ([]NodeType, error) {
	var types []NodeType
	err := c.get(ctx, "/v1/catalog", nil, &types)
	return types, err
}

// DescribeType returns one catalog entry.
func (c *Client) DescribeType(ctx context.Context, name string) (NodeType, error) {
	var t NodeType
	err := c.get(ctx, "/v1/catalog/"+url.PathEscape(name), nil, &t)
	return t, err
}

// GetLogs fetches recent operation log entries, newest first.
func (c *Client) GetLogs(ctx context.Context, opts LogOptions) ([]LogEntry, error) {
	q := url.Values{}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Level != "" {
		q.Set("level", opts.Level)
	}
	if opts.WorkflowID != "" {
		q.Set("workflow_id", opts.WorkflowID)
	}
	var entries []LogEntry
	err := c.get(ctx, "/v1/logs", q, &entries)
	return entries, err
}

// get performs a GET and decodes the JSON response into out.
func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	data, err := c.getRaw(ctx, path, query)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) getRaw(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	target := c.endpoint + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach daemon: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Status: resp.StatusCode, Code: decodeErrorCode(data)}
	}
	return data, nil
}
