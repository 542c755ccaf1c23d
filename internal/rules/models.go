// Package rules defines the business-rule model and its deterministic
// evaluator. A rule is a named, versioned JSON Logic predicate over the
// decision document, bound to a typed action. Rules are validated when they
// are written or loaded, never at evaluation time.
package rules

import (
	"errors"
	"fmt"
	"strings"

	"github.com/anakin-skynnet/payment-analysis-sub000/internal/decision"
)

// Rule is one business rule. Rules are ordered by Priority (lower value wins)
// and are never mutated in place once loaded into a snapshot; the whole set
// is replaced on refresh.
type Rule struct {
	ID      string        `json:"id"`
	Name    string        `json:"name"`
	Kind    decision.Kind `json:"rule_type"`
	Version int           `json:"version"`

	// Condition is a JSON Logic expression over the decision document.
	Condition string `json:"condition_expression"`

	Action decision.Action `json:"action"`
	// RouteTo names the target route for route_to actions.
	RouteTo string `json:"route_to,omitempty"`
	// BackoffSeconds applies to retry_later actions.
	BackoffSeconds int `json:"backoff_seconds,omitempty"`

	// Summary is the operator-facing description quoted in explanations.
	Summary string `json:"action_summary"`

	Priority int  `json:"priority"`
	Active   bool `json:"is_active"`
}

var actionsByKind = map[decision.Kind][]decision.Action{
	decision.KindAuthentication: {decision.ActionApprove, decision.ActionDecline, decision.ActionStepUp},
	decision.KindRetry:          {decision.ActionRetryNow, decision.ActionRetryLater, decision.ActionDoNotRetryNow},
	decision.KindRouting:        {decision.ActionRouteTo},
}

// Validate checks structural correctness of the rule, including that its
// condition parses as JSON Logic and its action is legal for its kind.
// It is called on every write and on snapshot load, so evaluation can assume
// well-formed rules.
func (r *Rule) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return errors.New("rule id is required")
	}
	if strings.TrimSpace(r.Name) == "" {
		return errors.New("rule name is required")
	}
	if !r.Kind.Valid() {
		return fmt.Errorf("rule %s: unknown kind %q", r.ID, r.Kind)
	}
	if r.Priority < 0 {
		return fmt.Errorf("rule %s: priority must be >= 0", r.ID)
	}
	allowed := actionsByKind[r.Kind]
	ok := false
	for _, a := range allowed {
		if r.Action == a {
			ok = true
			break
		}
	}
	if !ok {
		return fmt.Errorf("rule %s: action %q is not valid for kind %q", r.ID, r.Action, r.Kind)
	}
	if r.Action == decision.ActionRouteTo && strings.TrimSpace(r.RouteTo) == "" {
		return fmt.Errorf("rule %s: route_to action requires a target route", r.ID)
	}
	if r.BackoffSeconds < 0 {
		return fmt.Errorf("rule %s: backoff_seconds must be >= 0", r.ID)
	}
	if err := ValidateExpression(r.Condition); err != nil {
		return fmt.Errorf("rule %s: %w", r.ID, err)
	}
	return nil
}
