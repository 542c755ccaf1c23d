// Package client is an HTTP client for the decision engine API, used by the
// decisionctl command-line tool.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/anakin-skynnet/payment-analysis-sub000/internal/rules"
)

// Client is an HTTP client for the decision engine API
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a new API client
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// EngineStatus is the read-only view of the engine's active snapshot.
type EngineStatus struct {
	ETag             string    `json:"etag"`
	FetchedAt        time.Time `json:"fetched_at"`
	StalenessSeconds float64   `json:"staleness_seconds"`
	Routes           []string  `json:"routes"`
	DeclineCodeCount int       `json:"decline_code_count"`
	Params           any       `json:"params"`
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any, okCodes ...int) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	ok := false
	for _, code := range okCodes {
		if resp.StatusCode == code {
			ok = true
			break
		}
	}
	if !ok {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(bodyBytes))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// ListRules retrieves all rules
func (c *Client) ListRules(ctx context.Context) ([]rules.Rule, error) {
	var result struct {
		Rules []rules.Rule `json:"rules"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/rules/", nil, &result, http.StatusOK); err != nil {
		return nil, err
	}
	return result.Rules, nil
}

// GetRule retrieves a single rule by id
func (c *Client) GetRule(ctx context.Context, id string) (*rules.Rule, error) {
	var rule rules.Rule
	if err := c.do(ctx, http.MethodGet, "/v1/rules/"+id, nil, &rule, http.StatusOK); err != nil {
		return nil, err
	}
	return &rule, nil
}

// CreateRule creates a rule and returns the stored version
func (c *Client) CreateRule(ctx context.Context, rule rules.Rule) (*rules.Rule, error) {
	var created rules.Rule
	err := c.do(ctx, http.MethodPost, "/v1/rules/", rule, &created, http.StatusOK, http.StatusCreated)
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateRule applies a partial update to an existing rule. Only the fields
// present in patch are changed; the server bumps the version.
func (c *Client) UpdateRule(ctx context.Context, id string, patch map[string]any) (*rules.Rule, error) {
	var updated rules.Rule
	err := c.do(ctx, http.MethodPatch, "/v1/rules/"+id, patch, &updated, http.StatusOK)
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteRule deletes a rule
func (c *Client) DeleteRule(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/v1/rules/"+id, nil, nil, http.StatusOK, http.StatusNoContent)
}

// Status retrieves the engine's active snapshot summary
func (c *Client) Status(ctx context.Context) (*EngineStatus, error) {
	var status EngineStatus
	if err := c.do(ctx, http.MethodGet, "/v1/decisions/config", nil, &status, http.StatusOK); err != nil {
		return nil, err
	}
	return &status, nil
}
