// Package catalogue queries the public workflow-template catalogue. The
// catalogue is a best-effort collaborator: every failure is logged and
// surfaces as an empty result, never as a pipeline error.
package catalogue

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/weavekit/weaver/internal/template"
)

// Client searches an external catalogue for candidate templates.
type Client interface {
	Search(ctx context.Context, keywords []string, limit int) ([]*template.Template, error)
}

// Config for the HTTP catalogue client.
type Config struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
	Limit   int           `yaml:"limit"`
}

// DefaultConfig returns catalogue defaults: short timeout, small result set.
func DefaultConfig() Config {
	return Config{
		Timeout: 3 * time.Second,
		Limit:   5,
	}
}

// HTTPClient implements Client against a REST search endpoint. Transient
// failures retry with exponential backoff bounded well under the request
// deadline.
type HTTPClient struct {
	config Config
	http   *http.Client
}

// NewHTTPClient creates a catalogue client. An empty base URL yields a
// client whose searches always return nothing; the catalogue is optional.
func NewHTTPClient(config Config) *HTTPClient {
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	if config.Limit <= 0 {
		config.Limit = DefaultConfig().Limit
	}
	return &HTTPClient{
		config: config,
		http:   &http.Client{Timeout: config.Timeout},
	}
}

// searchResponse is the catalogue's wire shape.
type searchResponse struct {
	Templates []catalogueTemplate `json:"templates"`
}

type catalogueTemplate struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Category    string             `json:"category"`
	Keywords    []string           `json:"keywords"`
	Graph       *template.Workflow `json:"graph"`
	Downloads   int                `json:"downloads"`
}

// Search queries the catalogue. Results are tagged SourceCommunity and carry
// no success history; scoring gives them the no-history default.
func (c *HTTPClient) Search(ctx context.Context, keywords []string, limit int) ([]*template.Template, error) {
	if c.config.BaseURL == "" {
		return nil, nil
	}
	if limit <= 0 || limit > c.config.Limit {
		limit = c.config.Limit
	}

	query := url.Values{}
	query.Set("q", strings.Join(keywords, " "))
	query.Set("limit", fmt.Sprintf("%d", limit))
	endpoint := fmt.Sprintf("%s/api/templates/search?%s", strings.TrimRight(c.config.BaseURL, "/"), query.Encode())

	var resp searchResponse
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		res, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer res.Body.Close()
		if res.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("catalogue rate limited")
		}
		if res.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("catalogue returned %d", res.StatusCode))
		}
		if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode catalogue response: %w", err))
		}
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 200 * time.Millisecond
	policy.MaxElapsedTime = c.config.Timeout
	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		return nil, fmt.Errorf("catalogue search failed: %w", err)
	}

	out := make([]*template.Template, 0, len(resp.Templates))
	for _, ct := range resp.Templates {
		if ct.ID == "" || ct.Graph == nil {
			continue
		}
		out = append(out, &template.Template{
			ID:          "community-" + ct.ID,
			Name:        ct.Name,
			Description: ct.Description,
			Category:    ct.Category,
			Keywords:    ct.Keywords,
			Graph:       ct.Graph,
			Complexity:  complexityForGraph(ct.Graph),
			Source:      template.SourceCommunity,
		})
	}
	return out, nil
}

func complexityForGraph(wf *template.Workflow) template.Complexity {
	switch {
	case len(wf.Nodes) <= 3:
		return template.ComplexitySimple
	case len(wf.Nodes) <= 6:
		return template.ComplexityModerate
	default:
		return template.ComplexityComplex
	}
}
