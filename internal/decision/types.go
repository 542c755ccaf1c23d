// Package decision defines the core domain types shared across the decision
// engine: the immutable request context, the decision output, and the
// later-arriving outcome record used by the feedback loop.
package decision

import (
	"time"
)

// Kind identifies which policy engine handles a request.
type Kind string

const (
	KindAuthentication Kind = "authentication"
	KindRetry          Kind = "retry"
	KindRouting        Kind = "routing"
)

// Valid reports whether k is one of the three supported decision kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindAuthentication, KindRetry, KindRouting:
		return true
	}
	return false
}

// Action is the final outcome of a decision.
type Action string

const (
	// Authentication actions.
	ActionApprove Action = "approve"
	ActionDecline Action = "decline"
	ActionStepUp  Action = "step_up"

	// Retry actions.
	ActionRetryNow      Action = "retry_now"
	ActionRetryLater    Action = "retry_later"
	ActionDoNotRetryNow Action = "do_not_retry_now"

	// Routing action.
	ActionRouteTo Action = "route_to"
)

// Context is the immutable input for a single decision request. It is owned
// by the request; nothing in the engine mutates it after construction.
type Context struct {
	TransactionID string `json:"transaction_id"`
	MerchantID    string `json:"merchant_id"`
	AmountMinor   int64  `json:"amount_minor"`
	Currency      string `json:"currency"`

	Network       string `json:"network,omitempty"`
	CardBin       string `json:"card_bin,omitempty"`
	IssuerCountry string `json:"issuer_country,omitempty"`
	EntryMode     string `json:"entry_mode,omitempty"`

	MerchantSegment string `json:"merchant_segment,omitempty"`

	// Caller-supplied risk signals; nil means the caller has no signal,
	// which is distinct from a zero score.
	FraudScore       *float64 `json:"fraud_score,omitempty"`
	DeviceTrustScore *float64 `json:"device_trust_score,omitempty"`

	Uses3DS     bool `json:"uses_3ds"`
	IsRecurring bool `json:"is_recurring"`

	// Retry-specific attributes.
	IsRetry       bool   `json:"is_retry"`
	AttemptNumber int    `json:"attempt_number"`
	DeclineCode   string `json:"decline_code,omitempty"`
	DeclineReason string `json:"decline_reason,omitempty"`

	// SubjectKey is the experiment bucketing key; defaults to MerchantID.
	SubjectKey string `json:"subject_key,omitempty"`
	Experiment string `json:"experiment,omitempty"`

	OccurredAt time.Time `json:"occurred_at,omitempty"`
}

// Subject returns the experiment bucketing key for this context.
func (c *Context) Subject() string {
	if c.SubjectKey != "" {
		return c.SubjectKey
	}
	return c.MerchantID
}

// Decision is the output of a policy engine. Immutable once produced; the
// same value is returned to the caller and handed to the outcome recorder.
type Decision struct {
	ID   string `json:"decision_id"`
	Kind Kind   `json:"decision_type"`

	Action     Action  `json:"action"`
	Confidence float64 `json:"confidence"`

	// Explanation lists which inputs drove the outcome, for auditability.
	Explanation string `json:"explanation"`

	ContributingRuleID string             `json:"contributing_rule_id,omitempty"`
	ModelScores        map[string]float64 `json:"model_scores,omitempty"`
	Variant            string             `json:"variant,omitempty"`

	// Route is set for routing decisions (action route_to).
	Route string `json:"route,omitempty"`
	// BackoffSeconds is set for retry_later decisions.
	BackoffSeconds int `json:"backoff_seconds,omitempty"`

	// Degraded marks a decision made without any ML or similarity signal.
	Degraded bool `json:"degraded"`

	CreatedAt time.Time `json:"created_at"`
}

// OutcomeRecord is the later-arriving ground truth for a decision, keyed by
// the original decision id. It is only consumed by the feedback loop and is
// never read back synchronously by a decision request.
type OutcomeRecord struct {
	DecisionID    string    `json:"decision_id"`
	Kind          Kind      `json:"decision_type"`
	Outcome       string    `json:"outcome"`
	OutcomeCode   string    `json:"outcome_code,omitempty"`
	OutcomeReason string    `json:"outcome_reason,omitempty"`
	LatencyMs     int64     `json:"latency_ms,omitempty"`
	RecordedAt    time.Time `json:"recorded_at"`
}
