// Package engine defines the workflow-engine collaborator. The engine's
// execution semantics are external: core validation never calls it, only the
// orchestrator's caller does (deploy after finalize).
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/weavekit/weaver/internal/template"
)

// Execution is one past run of a deployed workflow.
type Execution struct {
	ID         string    `json:"id"`
	WorkflowID string    `json:"workflow_id"`
	Status     string    `json:"status"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// WorkflowEngineClient deploys and manages workflows on the external engine.
type WorkflowEngineClient interface {
	Deploy(ctx context.Context, wf *template.Workflow) (string, error)
	Activate(ctx context.Context, id string) error
	ListExecutions(ctx context.Context, id string, limit int) ([]Execution, error)
}

// Config for the REST client.
type Config struct {
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

// HTTPClient implements WorkflowEngineClient against the engine's REST API.
type HTTPClient struct {
	config Config
	http   *http.Client
}

// NewHTTPClient creates an engine client.
func NewHTTPClient(config Config) *HTTPClient {
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}
	return &HTTPClient{
		config: config,
		http:   &http.Client{Timeout: config.Timeout},
	}
}

type deployResponse struct {
	ID    string `json:"id"`
	Error string `json:"error,omitempty"`
}

// Deploy creates the workflow on the engine and returns its ID.
func (c *HTTPClient) Deploy(ctx context.Context, wf *template.Workflow) (string, error) {
	body, err := json.Marshal(wf)
	if err != nil {
		return "", fmt.Errorf("failed to marshal workflow: %w", err)
	}

	var resp deployResponse
	if err := c.do(ctx, http.MethodPost, "/api/workflows", body, &resp); err != nil {
		return "", err
	}
	if resp.Error != "" {
		return "", fmt.Errorf("engine rejected workflow: %s", resp.Error)
	}
	if resp.ID == "" {
		return "", fmt.Errorf("engine returned no workflow id")
	}
	return resp.ID, nil
}

// Activate enables a deployed workflow.
func (c *HTTPClient) Activate(ctx context.Context, id string) error {
	path := fmt.Sprintf("/api/workflows/%s/activate", id)
	return c.do(ctx, http.MethodPost, path, nil, nil)
}

// ListExecutions returns recent runs of a workflow, newest first.
func (c *HTTPClient) ListExecutions(ctx context.Context, id string, limit int) ([]Execution, error) {
	if limit <= 0 {
		limit = 10
	}
	path := fmt.Sprintf("/api/workflows/%s/executions?limit=%d", id, limit)
	var out []Execution
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body []byte, out any) error {
	endpoint := strings.TrimRight(c.config.BaseURL, "/") + path
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to build engine request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("engine request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fmt.Errorf("engine returned %d for %s %s", res.StatusCode, method, path)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode engine response: %w", err)
	}
	return nil
}
