// Package store persists the authoritative decisioning data: business rules,
// tunable decision config, retryable decline codes, route performance, and
// the decision/outcome feedback records. Implementations must be safe for
// concurrent use.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/anakin-skynnet/payment-analysis-sub000/internal/decision"
	"github.com/anakin-skynnet/payment-analysis-sub000/internal/rules"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("store: not found")

// ConfigEntry is one tunable decision parameter, stored as a key/value row so
// thresholds can be changed without a redeploy.
type ConfigEntry struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Decline code categories.
const (
	DeclineCategorySoft      = "soft"
	DeclineCategoryTransient = "transient"
	DeclineCategoryIssuer    = "issuer"
)

// DeclineCode maps a decline code to its retry characteristics. Managed by
// operators; consumed by the retry policy.
type DeclineCode struct {
	Code           string `json:"code"`
	Label          string `json:"label"`
	Category       string `json:"category"`
	BackoffSeconds int    `json:"default_backoff_seconds"`
	MaxAttempts    int    `json:"max_attempts"`
	Active         bool   `json:"is_active"`
}

// RouteScore is a route performance snapshot (approval rate, latency, cost)
// per payment route, refreshed from streaming aggregates.
type RouteScore struct {
	RouteName       string  `json:"route_name"`
	ApprovalRatePct float64 `json:"approval_rate_pct"`
	AvgLatencyMs    float64 `json:"avg_latency_ms"`
	CostScore       float64 `json:"cost_score"` // 0 = cheapest, 1 = most expensive
	Active          bool    `json:"is_active"`
}

// DecisionRecord links a decision to the request that produced it, for audit
// and experiment analysis.
type DecisionRecord struct {
	Decision decision.Decision `json:"decision"`
	Request  decision.Context  `json:"request"`
}

// AuditEvent is one rule administration event (create, update, delete).
// State payloads are pre-marshaled JSON so the store stays schema-agnostic.
type AuditEvent struct {
	OccurredAt   time.Time `json:"occurred_at"`
	RequestID    string    `json:"request_id,omitempty"`
	Actor        string    `json:"actor"`
	IPAddress    string    `json:"ip_address,omitempty"`
	UserAgent    string    `json:"user_agent,omitempty"`
	Action       string    `json:"action"`
	RuleID       string    `json:"rule_id"`
	RuleName     string    `json:"rule_name,omitempty"`
	BeforeState  []byte    `json:"before_state,omitempty"`
	AfterState   []byte    `json:"after_state,omitempty"`
	Changes      []byte    `json:"changes,omitempty"`
	Status       string    `json:"status"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

// Store is the persistence interface for decisioning data.
type Store interface {
	// ListRules returns all rules ordered by priority then id.
	ListRules(ctx context.Context) ([]rules.Rule, error)
	// GetRule returns a single rule by id, or ErrNotFound.
	GetRule(ctx context.Context, id string) (*rules.Rule, error)
	// UpsertRule creates or replaces a rule.
	UpsertRule(ctx context.Context, r rules.Rule) error
	// DeleteRule removes a rule by id. Idempotent.
	DeleteRule(ctx context.Context, id string) error

	// ListConfig returns the decision config key/value rows.
	ListConfig(ctx context.Context) ([]ConfigEntry, error)
	// ListDeclineCodes returns the active retryable decline codes.
	ListDeclineCodes(ctx context.Context) ([]DeclineCode, error)
	// ListRoutes returns the active route performance rows.
	ListRoutes(ctx context.Context) ([]RouteScore, error)

	// StreamingFeatures returns the latest short-window aggregates for an
	// entity (merchant), as feature name -> value. An entity with no rows
	// yields an empty map, which readers treat as unavailable.
	StreamingFeatures(ctx context.Context, entityID string) (map[string]float64, error)

	// InsertDecision persists a decision record (async, via the recorder).
	InsertDecision(ctx context.Context, rec DecisionRecord) error
	// InsertOutcome persists a later-arriving outcome for a decision.
	InsertOutcome(ctx context.Context, rec decision.OutcomeRecord) error
	// InsertAuditEvent persists a rule administration audit event.
	InsertAuditEvent(ctx context.Context, e AuditEvent) error

	// Close releases any resources held by the store.
	Close() error
}
