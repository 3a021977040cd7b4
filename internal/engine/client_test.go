package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/weavekit/weaver/internal/template"
)

func testWorkflow() *template.Workflow {
	return &template.Workflow{
		Name: "Test",
		Nodes: []template.Node{
			{ID: "t", Type: template.ActionWebhookTrigger, Parameters: map[string]any{"path": "x"}},
			{ID: "a", Type: template.ActionHTTP, Parameters: map[string]any{"url": "https://example.com", "method": "GET"}},
		},
		Connections: []template.Connection{{From: "t", To: "a"}},
	}
}

func TestDeploy(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/workflows" {
			t.Errorf("Unexpected request %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")

		var wf template.Workflow
		if err := json.NewDecoder(r.Body).Decode(&wf); err != nil {
			t.Errorf("Bad body: %v", err)
		}
		if wf.Name != "Test" {
			t.Errorf("Workflow name = %s", wf.Name)
		}
		json.NewEncoder(w).Encode(deployResponse{ID: "wf-123"})
	}))
	defer srv.Close()

	c := NewHTTPClient(Config{BaseURL: srv.URL, APIKey: "secret", Timeout: time.Second})
	id, err := c.Deploy(context.Background(), testWorkflow())
	if err != nil {
		t.Fatalf("Deploy() error = %v", err)
	}
	if id != "wf-123" {
		t.Errorf("ID = %s, want wf-123", id)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("Authorization = %q, want bearer token", gotAuth)
	}
}

func TestDeployEngineRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(deployResponse{Error: "invalid trigger"})
	}))
	defer srv.Close()

	c := NewHTTPClient(Config{BaseURL: srv.URL, Timeout: time.Second})
	if _, err := c.Deploy(context.Background(), testWorkflow()); err == nil {
		t.Fatal("Expected error for engine rejection")
	}
}

func TestDeployHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewHTTPClient(Config{BaseURL: srv.URL, Timeout: time.Second})
	if _, err := c.Deploy(context.Background(), testWorkflow()); err == nil {
		t.Fatal("Expected error for 502 response")
	}
}

func TestActivate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/workflows/wf-123/activate" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewHTTPClient(Config{BaseURL: srv.URL, Timeout: time.Second})
	if err := c.Activate(context.Background(), "wf-123"); err != nil {
		t.Fatalf("Activate() error = %v", err)
	}
}

func TestListExecutions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/workflows/wf-123/executions" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("limit") != "2" {
			t.Errorf("limit = %s, want 2", r.URL.Query().Get("limit"))
		}
		json.NewEncoder(w).Encode([]Execution{
			{ID: "e2", WorkflowID: "wf-123", Status: "success"},
			{ID: "e1", WorkflowID: "wf-123", Status: "error", Error: "node failed"},
		})
	}))
	defer srv.Close()

	c := NewHTTPClient(Config{BaseURL: srv.URL, Timeout: time.Second})
	execs, err := c.ListExecutions(context.Background(), "wf-123", 2)
	if err != nil {
		t.Fatalf("ListExecutions() error = %v", err)
	}
	if len(execs) != 2 || execs[1].Error != "node failed" {
		t.Errorf("Unexpected executions: %+v", execs)
	}
}
