// Package scoring provides thin, swappable clients for the external model
// serving endpoints (approval propensity, risk, retry success, routing).
//
// Failure contract: every call returns either a typed result or one of the
// typed failures ErrTimeout, ErrUnavailable, ErrInvalidResponse. Clients make
// at most one bounded retry; retry storms under load are the orchestrator's
// problem to avoid, not something to paper over here.
package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/anakin-skynnet/payment-analysis-sub000/internal/feature"
)

// Typed failures. The caller decides whether absence is acceptable.
var (
	ErrTimeout         = errors.New("scoring: endpoint timed out")
	ErrUnavailable     = errors.New("scoring: endpoint unavailable")
	ErrInvalidResponse = errors.New("scoring: invalid endpoint response")
)

// ApprovalScore is the approval propensity model output.
type ApprovalScore struct {
	Probability   float64 `json:"approval_probability"`
	ShouldApprove bool    `json:"should_approve"`
	ModelVersion  string  `json:"model_version"`
}

// RiskScore is the risk model output.
type RiskScore struct {
	Score      float64 `json:"risk_score"`
	IsHighRisk bool    `json:"is_high_risk"`
	Tier       string  `json:"risk_tier"`
}

// RetryScore is the retry-success model output.
type RetryScore struct {
	ShouldRetry        bool    `json:"should_retry"`
	SuccessProbability float64 `json:"retry_success_probability"`
	RetryDelaySeconds  int     `json:"retry_delay_seconds,omitempty"`
	ModelVersion       string  `json:"model_version"`
}

// RoutingScore is the smart-routing model output.
type RoutingScore struct {
	RecommendedRoute string   `json:"recommended_solution"`
	Confidence       float64  `json:"confidence"`
	Alternatives     []string `json:"alternatives,omitempty"`
}

// Client is the scoring adapter consumed by the enrichment orchestrator.
// Implementations must honor the context deadline.
type Client interface {
	ScoreApproval(ctx context.Context, vec feature.Vector) (*ApprovalScore, error)
	ScoreRisk(ctx context.Context, vec feature.Vector) (*RiskScore, error)
	ScoreRetry(ctx context.Context, vec feature.Vector) (*RetryScore, error)
	ScoreRouting(ctx context.Context, vec feature.Vector) (*RoutingScore, error)
}

// ClientOptions configures the HTTP scoring client.
type ClientOptions struct {
	BaseURL        string
	RequestTimeout time.Duration
}

// HTTPClient calls model serving endpoints over HTTP. Each model is exposed
// under BaseURL/<model>/invocations and receives the feature vector in
// column-split form, preserving the training column order.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewHTTPClient creates a scoring client for the given serving base URL.
func NewHTTPClient(options ClientOptions) *HTTPClient {
	timeout := options.RequestTimeout
	if timeout == 0 {
		timeout = 2 * time.Second
	}
	return &HTTPClient{
		baseURL:    options.BaseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     log.With().Str("component", "scoring_client").Logger(),
	}
}

func (c *HTTPClient) ScoreApproval(ctx context.Context, vec feature.Vector) (*ApprovalScore, error) {
	var out ApprovalScore
	if err := c.invoke(ctx, "approval", vec, &out); err != nil {
		return nil, err
	}
	if out.Probability < 0 || out.Probability > 1 {
		return nil, fmt.Errorf("%w: approval_probability=%v", ErrInvalidResponse, out.Probability)
	}
	return &out, nil
}

func (c *HTTPClient) ScoreRisk(ctx context.Context, vec feature.Vector) (*RiskScore, error) {
	var out RiskScore
	if err := c.invoke(ctx, "risk", vec, &out); err != nil {
		return nil, err
	}
	if out.Score < 0 || out.Score > 1 {
		return nil, fmt.Errorf("%w: risk_score=%v", ErrInvalidResponse, out.Score)
	}
	return &out, nil
}

func (c *HTTPClient) ScoreRetry(ctx context.Context, vec feature.Vector) (*RetryScore, error) {
	var out RetryScore
	if err := c.invoke(ctx, "retry", vec, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) ScoreRouting(ctx context.Context, vec feature.Vector) (*RoutingScore, error) {
	var out RoutingScore
	if err := c.invoke(ctx, "routing", vec, &out); err != nil {
		return nil, err
	}
	if out.RecommendedRoute == "" {
		return nil, fmt.Errorf("%w: empty recommended_solution", ErrInvalidResponse)
	}
	return &out, nil
}

// invocationRequest carries the feature vector in column order.
type invocationRequest struct {
	Columns []string `json:"columns"`
	Data    [][]any  `json:"data"`
}

func (c *HTTPClient) invoke(ctx context.Context, model string, vec feature.Vector, out any) error {
	body, err := json.Marshal(invocationRequest{
		Columns: vec.Columns(),
		Data:    [][]any{vec.Row()},
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	url := c.baseURL + "/" + model + "/invocations"

	operation := func() error {
		return c.doOnce(ctx, url, body, out)
	}

	// One bounded retry, only for transient unavailability. Timeouts and
	// malformed responses are surfaced immediately.
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(50*time.Millisecond), 1), ctx)
	err = backoff.Retry(operation, policy)
	if err != nil {
		c.logger.Debug().Str("model", model).Err(err).Msg("scoring call failed")
	}
	return err
}

func (c *HTTPClient) doOnce(ctx context.Context, url string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("%w: %v", ErrInvalidResponse, err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return backoff.Permanent(ErrTimeout)
		}
		return ErrUnavailable
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		_, _ = io.Copy(io.Discard, resp.Body)
		return ErrUnavailable
	case resp.StatusCode != http.StatusOK:
		_, _ = io.Copy(io.Discard, resp.Body)
		return backoff.Permanent(fmt.Errorf("%w: status %d", ErrInvalidResponse, resp.StatusCode))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return backoff.Permanent(fmt.Errorf("%w: %v", ErrInvalidResponse, err))
	}
	return nil
}
