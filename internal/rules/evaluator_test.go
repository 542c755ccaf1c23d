package rules

import (
	"errors"
	"reflect"
	"testing"

	"github.com/anakin-skynnet/payment-analysis-sub000/internal/decision"
)

func authRule(id string, priority int, condition string) Rule {
	return Rule{
		ID:        id,
		Name:      "rule " + id,
		Kind:      decision.KindAuthentication,
		Version:   1,
		Condition: condition,
		Action:    decision.ActionDecline,
		Summary:   "decline it",
		Priority:  priority,
		Active:    true,
	}
}

func TestEvaluateMatchesInPriorityOrder(t *testing.T) {
	ruleSet := []Rule{
		authRule("b", 20, `{">": [{"var": "amount"}, 100]}`),
		authRule("a", 10, `{">": [{"var": "fraud_score"}, 0.5]}`),
		authRule("c", 10, `{">": [{"var": "amount"}, 0]}`),
	}
	doc := Document{"amount": 500.0, "fraud_score": 0.8}

	matches, err := Evaluate(doc, ruleSet, decision.KindAuthentication)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	var ids []string
	for _, m := range matches {
		ids = append(ids, m.Rule.ID)
	}
	want := []string{"a", "c", "b"}
	if !reflect.DeepEqual(ids, want) {
		t.Errorf("match order = %v, want %v", ids, want)
	}
}

func TestEvaluateDeterministic(t *testing.T) {
	ruleSet := []Rule{
		authRule("r1", 5, `{"and": [{">": [{"var": "amount"}, 100]}, {"<": [{"var": "fraud_score"}, 0.9]}]}`),
		authRule("r2", 5, `{"==": [{"var": "network"}, "visa"]}`),
	}
	doc := Document{"amount": 250.0, "fraud_score": 0.3, "network": "visa"}

	first, err := Evaluate(doc, ruleSet, decision.KindAuthentication)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	for i := 0; i < 50; i++ {
		again, err := Evaluate(doc, ruleSet, decision.KindAuthentication)
		if err != nil {
			t.Fatalf("Evaluate run %d: %v", i, err)
		}
		if len(again) != len(first) {
			t.Fatalf("run %d returned %d matches, first returned %d", i, len(again), len(first))
		}
		for j := range again {
			if again[j].Rule.ID != first[j].Rule.ID {
				t.Fatalf("run %d order differs at %d", i, j)
			}
		}
	}
}

func TestEvaluateSkipsOtherKindsAndInactive(t *testing.T) {
	inactive := authRule("off", 1, "")
	inactive.Active = false
	retry := Rule{
		ID: "retry-1", Name: "retry rule", Kind: decision.KindRetry, Version: 1,
		Action: decision.ActionRetryNow, Summary: "retry", Priority: 1, Active: true,
	}
	ruleSet := []Rule{inactive, retry, authRule("on", 2, "")}

	matches, err := Evaluate(Document{}, ruleSet, decision.KindAuthentication)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(matches) != 1 || matches[0].Rule.ID != "on" {
		t.Fatalf("matches = %v, want only rule 'on'", matches)
	}
}

func TestEvaluateEmptyConditionAlwaysMatches(t *testing.T) {
	matches, err := Evaluate(Document{"amount": 1.0}, []Rule{authRule("kill", 0, "")}, decision.KindAuthentication)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(matches))
	}
}

func TestEvaluateErrorIsFatal(t *testing.T) {
	bad := authRule("bad", 1, `{"unknown_op": [1, 2]}`)
	_, err := Evaluate(Document{"amount": 1.0}, []Rule{bad}, decision.KindAuthentication)
	if err == nil {
		t.Skip("jsonlogic accepted the operator; nothing to assert")
	}
	var evalErr *EvaluationError
	if !errors.As(err, &evalErr) {
		t.Fatalf("want EvaluationError, got %T", err)
	}
	if evalErr.RuleID != "bad" {
		t.Errorf("RuleID = %q, want bad", evalErr.RuleID)
	}
}

func TestValidateExpression(t *testing.T) {
	tests := []struct {
		name    string
		expr    string
		wantErr bool
	}{
		{"empty is allowed", "", false},
		{"whitespace is allowed", "   ", false},
		{"simple comparison", `{">": [{"var": "amount"}, 100]}`, false},
		{"not json", "amount > 100", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateExpression(tt.expr)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateExpression(%q) = %v, wantErr %v", tt.expr, err, tt.wantErr)
			}
		})
	}
}

func TestRuleValidate(t *testing.T) {
	valid := authRule("ok", 1, "")

	tests := []struct {
		name    string
		mutate  func(*Rule)
		wantErr bool
	}{
		{"valid", func(r *Rule) {}, false},
		{"missing id", func(r *Rule) { r.ID = "" }, true},
		{"missing name", func(r *Rule) { r.Name = "" }, true},
		{"bad kind", func(r *Rule) { r.Kind = "scoring" }, true},
		{"negative priority", func(r *Rule) { r.Priority = -1 }, true},
		{"retry action on auth rule", func(r *Rule) { r.Action = decision.ActionRetryNow }, true},
		{"route_to without target", func(r *Rule) {
			r.Kind = decision.KindRouting
			r.Action = decision.ActionRouteTo
			r.RouteTo = ""
		}, true},
		{"route_to with target", func(r *Rule) {
			r.Kind = decision.KindRouting
			r.Action = decision.ActionRouteTo
			r.RouteTo = "acquirer_a"
		}, false},
		{"negative backoff", func(r *Rule) { r.BackoffSeconds = -1 }, true},
		{"invalid expression", func(r *Rule) { r.Condition = "not json" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid
			tt.mutate(&r)
			err := r.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
