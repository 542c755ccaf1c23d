// Package similarity retrieves the K most similar historical transactions
// and their outcomes from the vector search service. Like the scoring
// clients, it is a thin, swappable adapter with typed failures; the caller
// decides whether absence of a similarity signal is acceptable.
package similarity

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

	"github.com/anakin-skynnet/payment-analysis-sub000/internal/decision"
)

var (
	ErrTimeout         = errors.New("similarity: service timed out")
	ErrUnavailable     = errors.New("similarity: service unavailable")
	ErrInvalidResponse = errors.New("similarity: invalid service response")
)

// Case is one historical transaction returned by the search, with its known
// outcome.
type Case struct {
	TransactionID   string  `json:"transaction_id"`
	Score           float64 `json:"score"`
	Outcome         string  `json:"outcome"`
	Route           string  `json:"payment_solution,omitempty"`
	ApprovalRatePct float64 `json:"approval_rate_pct"`
	FraudScore      float64 `json:"avg_fraud_score"`
}

// Matches is the ranked result set plus the aggregates the policy engines
// consume.
type Matches struct {
	Cases []Case `json:"cases"`

	Count           int     `json:"similar_count"`
	AvgApprovalRate float64 `json:"similar_avg_approval_rate"`
	TopRoute        string  `json:"similar_top_route,omitempty"`
	AvgFraudScore   float64 `json:"similar_avg_fraud_score"`
}

// Client is the similarity adapter consumed by the enrichment orchestrator.
type Client interface {
	FindSimilar(ctx context.Context, dctx *decision.Context, k int) (*Matches, error)
}

// ClientOptions configures the HTTP similarity client.
type ClientOptions struct {
	BaseURL        string
	RequestTimeout time.Duration
}

// HTTPClient queries the vector search service with a textual description of
// the transaction, the same representation the historical index was built on.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

func NewHTTPClient(options ClientOptions) *HTTPClient {
	timeout := options.RequestTimeout
	if timeout == 0 {
		timeout = 3 * time.Second
	}
	return &HTTPClient{
		baseURL:    options.BaseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     log.With().Str("component", "similarity_client").Logger(),
	}
}

type searchRequest struct {
	Query      string `json:"query"`
	NumResults int    `json:"num_results"`
}

type searchResponse struct {
	Results []Case `json:"results"`
}

// Describe renders the context into the indexed text representation.
func Describe(dctx *decision.Context) string {
	fraud := 0.0
	if dctx.FraudScore != nil {
		fraud = *dctx.FraudScore
	}
	country := dctx.IssuerCountry
	if country == "" {
		country = "unknown"
	}
	network := dctx.Network
	if network == "" {
		network = "unknown"
	}
	return fmt.Sprintf("Payment of %.2f from %s merchant %s network %s risk %.2f",
		float64(dctx.AmountMinor)/100.0, country, dctx.MerchantID, network, fraud)
}

func (c *HTTPClient) FindSimilar(ctx context.Context, dctx *decision.Context, k int) (*Matches, error) {
	if k <= 0 {
		k = 5
	}
	body, err := json.Marshal(searchRequest{Query: Describe(dctx), NumResults: k})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	var sr searchResponse
	operation := func() error {
		return c.doOnce(ctx, body, &sr)
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(50*time.Millisecond), 1), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		c.logger.Debug().Err(err).Msg("similarity lookup failed")
		return nil, err
	}

	return Aggregate(sr.Results), nil
}

// Aggregate summarizes ranked cases into the signal the policy engines use:
// agreement among similar historical cases reduces uncertainty.
func Aggregate(cases []Case) *Matches {
	m := &Matches{Cases: cases, Count: len(cases)}
	if len(cases) == 0 {
		return m
	}
	var approvalSum, fraudSum float64
	for _, s := range cases {
		approvalSum += s.ApprovalRatePct
		fraudSum += s.FraudScore
	}
	m.AvgApprovalRate = approvalSum / float64(len(cases))
	m.AvgFraudScore = fraudSum / float64(len(cases))
	m.TopRoute = cases[0].Route
	return m
}

func (c *HTTPClient) doOnce(ctx context.Context, body []byte, out *searchResponse) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
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
