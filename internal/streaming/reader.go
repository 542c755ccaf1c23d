// Package streaming reads short-window behavioral aggregates (rolling
// approval rate, retry rate, fraud score, transaction velocity) computed by
// the continuous processor for a subject such as a merchant.
//
// The reader has its own timeout, distinct from the scoring timeout. On
// timeout or error it reports "unavailable" rather than a stale or zero
// value, so downstream consumers can tell "no signal" from "zero signal".
package streaming

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/anakin-skynnet/payment-analysis-sub000/internal/store"
)

// Feature names written by the streaming aggregation job.
const (
	FeatureApprovalRate5m = "approval_rate_5m"
	FeatureRetryRate5m    = "retry_rate_5m"
	FeatureAvgFraud5m     = "avg_fraud_5m"
	FeatureTxVelocity5m   = "tx_velocity_5m"
)

// Aggregates holds the rolling-window values for one subject. Nil fields mean
// the aggregation job has not produced that feature for the subject.
type Aggregates struct {
	ApprovalRate5m *float64
	RetryRate5m    *float64
	AvgFraud5m     *float64
	TxVelocity5m   *float64
}

// Empty reports whether no feature is present at all.
func (a *Aggregates) Empty() bool {
	return a == nil ||
		(a.ApprovalRate5m == nil && a.RetryRate5m == nil && a.AvgFraud5m == nil && a.TxVelocity5m == nil)
}

// Reader fetches aggregates for a subject key. Implementations must honor
// the context deadline and return (nil, error) when the source is
// unavailable, never a fabricated zero.
type Reader interface {
	Read(ctx context.Context, subjectKey string) (*Aggregates, error)
}

// StoreReader reads aggregates from the online features table via the store.
type StoreReader struct {
	store   store.Store
	timeout time.Duration
	logger  zerolog.Logger
}

// NewStoreReader creates a reader with its own per-call timeout.
func NewStoreReader(s store.Store, timeout time.Duration) *StoreReader {
	if timeout == 0 {
		timeout = 150 * time.Millisecond
	}
	return &StoreReader{
		store:   s,
		timeout: timeout,
		logger:  log.With().Str("component", "streaming_reader").Logger(),
	}
}

// Read fetches the latest aggregates for the subject. A subject with no rows
// yields (nil, nil): the source answered, there is just no signal.
func (r *StoreReader) Read(ctx context.Context, subjectKey string) (*Aggregates, error) {
	if subjectKey == "" {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	features, err := r.store.StreamingFeatures(ctx, subjectKey)
	if err != nil {
		r.logger.Debug().Str("subject", subjectKey).Err(err).Msg("streaming features unavailable")
		return nil, err
	}
	if len(features) == 0 {
		return nil, nil
	}

	agg := &Aggregates{}
	if v, ok := features[FeatureApprovalRate5m]; ok {
		agg.ApprovalRate5m = &v
	}
	if v, ok := features[FeatureRetryRate5m]; ok {
		agg.RetryRate5m = &v
	}
	if v, ok := features[FeatureAvgFraud5m]; ok {
		agg.AvgFraud5m = &v
	}
	if v, ok := features[FeatureTxVelocity5m]; ok {
		agg.TxVelocity5m = &v
	}
	return agg, nil
}
