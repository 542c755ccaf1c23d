package policy

import (
	"testing"

	"github.com/anakin-skynnet/payment-analysis-sub000/internal/decision"
	"github.com/anakin-skynnet/payment-analysis-sub000/internal/enrichment"
	"github.com/anakin-skynnet/payment-analysis-sub000/internal/rules"
	"github.com/anakin-skynnet/payment-analysis-sub000/internal/scoring"
	"github.com/anakin-skynnet/payment-analysis-sub000/internal/similarity"
	"github.com/anakin-skynnet/payment-analysis-sub000/internal/snapshot"
	"github.com/anakin-skynnet/payment-analysis-sub000/internal/store"
)

func floatPtr(v float64) *float64 { return &v }

func defaultSnapshot() *snapshot.Snapshot {
	return snapshot.Default()
}

func authContext(fraud, trust float64) *decision.Context {
	return &decision.Context{
		TransactionID: "tx-1", MerchantID: "m-1", AmountMinor: 50000,
		Currency: "BRL", Network: "visa", IssuerCountry: "BR",
		FraudScore: floatPtr(fraud), DeviceTrustScore: floatPtr(trust),
	}
}

// Low-amount, low-risk transaction with healthy similar history approves.
func TestAuthenticationApprovesLowRisk(t *testing.T) {
	res := &enrichment.Result{
		Risk:    &scoring.RiskScore{Score: 0.1, Tier: "low"},
		Similar: &similarity.Matches{Count: 5, AvgApprovalRate: 95},
	}
	d := decideAuthentication(authContext(0.1, 0.95), defaultSnapshot(), res, nil)

	if d.Action != decision.ActionApprove {
		t.Fatalf("action = %s, want approve", d.Action)
	}
	if d.Confidence <= 0.5 {
		t.Errorf("confidence = %v, want > 0.5", d.Confidence)
	}
	if d.Degraded {
		t.Error("decision marked degraded with signals present")
	}
	if d.Explanation == "" {
		t.Error("empty explanation")
	}
}

func TestAuthenticationDeclinesHighRisk(t *testing.T) {
	res := &enrichment.Result{Risk: &scoring.RiskScore{Score: 0.85, Tier: "high"}}
	d := decideAuthentication(authContext(0.85, 0.95), defaultSnapshot(), res, nil)
	if d.Action != decision.ActionDecline {
		t.Fatalf("action = %s, want decline", d.Action)
	}
}

func TestAuthenticationStepUpOnMediumRiskLowTrust(t *testing.T) {
	res := &enrichment.Result{Risk: &scoring.RiskScore{Score: 0.50, Tier: "medium"}}
	d := decideAuthentication(authContext(0.50, 0.60), defaultSnapshot(), res, nil)
	if d.Action != decision.ActionStepUp {
		t.Fatalf("action = %s, want step_up", d.Action)
	}

	// Same risk but a trusted device approves.
	d = decideAuthentication(authContext(0.50, 0.95), defaultSnapshot(), res, nil)
	if d.Action != decision.ActionApprove {
		t.Fatalf("trusted device action = %s, want approve", d.Action)
	}
}

func TestAuthenticationDegradedFallsBackToCallerScore(t *testing.T) {
	d := decideAuthentication(authContext(0.2, 0.9), defaultSnapshot(), nil, nil)
	if d.Action != decision.ActionApprove {
		t.Fatalf("action = %s, want approve", d.Action)
	}
	if !d.Degraded {
		t.Error("no-signal decision not marked degraded")
	}
}

func TestRuleWinsOverModel(t *testing.T) {
	res := &enrichment.Result{Risk: &scoring.RiskScore{Score: 0.05, Tier: "low"}}
	matched := []rules.Match{{Rule: rules.Rule{
		ID: "block-1", Name: "block segment", Kind: decision.KindAuthentication,
		Action: decision.ActionDecline, Summary: "blocked merchant segment", Priority: 1, Active: true,
	}}}
	d := decideAuthentication(authContext(0.05, 0.99), defaultSnapshot(), res, matched)

	if d.Action != decision.ActionDecline {
		t.Fatalf("action = %s, want rule's decline", d.Action)
	}
	if d.ContributingRuleID != "block-1" {
		t.Errorf("ContributingRuleID = %q, want block-1", d.ContributingRuleID)
	}
}

func retrySnapshot() *snapshot.Snapshot {
	snap := snapshot.Default()
	snap.DeclineCodes = map[string]store.DeclineCode{
		"insufficient_funds": {Code: "insufficient_funds", Category: store.DeclineCategorySoft, Active: true},
		"timeout":            {Code: "timeout", Category: store.DeclineCategoryTransient, Active: true},
		"do_not_honor":       {Code: "do_not_honor", Category: store.DeclineCategoryIssuer, Active: true},
	}
	return snap
}

func retryContext(code string, attempt int) *decision.Context {
	ctx := authContext(0.2, 0.9)
	ctx.IsRetry = true
	ctx.DeclineCode = code
	ctx.AttemptNumber = attempt
	return ctx
}

// insufficient_funds with the retry model down must not retry immediately,
// and must still answer.
func TestRetryInsufficientFundsModelDown(t *testing.T) {
	d := decideRetry(retryContext("insufficient_funds", 1), retrySnapshot(), nil, nil, "control")
	if d.Action != decision.ActionDoNotRetryNow {
		t.Fatalf("action = %s, want do_not_retry_now", d.Action)
	}
	if !d.Degraded {
		t.Error("model-down retry decision not marked degraded")
	}
}

func TestRetryTransientRetriesNow(t *testing.T) {
	d := decideRetry(retryContext("timeout", 1), retrySnapshot(), nil, nil, "control")
	if d.Action != decision.ActionRetryNow {
		t.Fatalf("action = %s, want retry_now", d.Action)
	}
}

func TestRetryRecurringSoftDeclineWaits(t *testing.T) {
	ctx := retryContext("insufficient_funds", 1)
	ctx.IsRecurring = true

	d := decideRetry(ctx, retrySnapshot(), nil, nil, "control")
	if d.Action != decision.ActionRetryLater {
		t.Fatalf("action = %s, want retry_later", d.Action)
	}
	if d.BackoffSeconds != 900 {
		t.Errorf("backoff = %d, want control's 900", d.BackoffSeconds)
	}

	d = decideRetry(ctx, retrySnapshot(), nil, nil, "treatment")
	if d.BackoffSeconds != 300 {
		t.Errorf("treatment backoff = %d, want 300", d.BackoffSeconds)
	}
}

func TestRetryAttemptCapPerVariant(t *testing.T) {
	d := decideRetry(retryContext("timeout", 3), retrySnapshot(), nil, nil, "control")
	if d.Action != decision.ActionDoNotRetryNow {
		t.Fatalf("control attempt 3 = %s, want do_not_retry_now", d.Action)
	}

	d = decideRetry(retryContext("timeout", 3), retrySnapshot(), nil, nil, "treatment")
	if d.Action != decision.ActionRetryNow {
		t.Fatalf("treatment attempt 3 = %s, want retry_now (cap is 4)", d.Action)
	}
}

func TestRetryUnknownCodeDoesNotRetry(t *testing.T) {
	d := decideRetry(retryContext("some_new_code", 1), retrySnapshot(), nil, nil, "control")
	if d.Action != decision.ActionDoNotRetryNow {
		t.Fatalf("action = %s, want do_not_retry_now", d.Action)
	}
}

func TestRetryModelVeto(t *testing.T) {
	res := &enrichment.Result{Retry: &scoring.RetryScore{ShouldRetry: false, SuccessProbability: 0.10}}
	d := decideRetry(retryContext("timeout", 1), retrySnapshot(), res, nil, "control")
	if d.Action != decision.ActionDoNotRetryNow {
		t.Fatalf("action = %s, want model veto do_not_retry_now", d.Action)
	}
}

func TestRetryModelDelayHint(t *testing.T) {
	ctx := retryContext("insufficient_funds", 1)
	ctx.IsRecurring = true
	res := &enrichment.Result{Retry: &scoring.RetryScore{ShouldRetry: true, SuccessProbability: 0.8, RetryDelaySeconds: 120}}

	d := decideRetry(ctx, retrySnapshot(), res, nil, "control")
	if d.Action != decision.ActionRetryLater {
		t.Fatalf("action = %s, want retry_later", d.Action)
	}
	if d.BackoffSeconds != 120 {
		t.Errorf("backoff = %d, want model's 120", d.BackoffSeconds)
	}
}

func routingSnapshot() *snapshot.Snapshot {
	snap := snapshot.Default()
	snap.Routes = []store.RouteScore{
		{RouteName: "acquirer_a", ApprovalRatePct: 94, AvgLatencyMs: 300, CostScore: 0.4, Active: true},
		{RouteName: "acquirer_b", ApprovalRatePct: 88, AvgLatencyMs: 200, CostScore: 0.2, Active: true},
	}
	return snap
}

func TestRoutingModelRecommendationWins(t *testing.T) {
	res := &enrichment.Result{Routing: &scoring.RoutingScore{RecommendedRoute: "acquirer_b", Confidence: 0.85}}
	d := decideRouting(authContext(0.2, 0.9), routingSnapshot(), res, nil)

	if d.Action != decision.ActionRouteTo || d.Route != "acquirer_b" {
		t.Fatalf("decision = %s/%s, want route_to acquirer_b", d.Action, d.Route)
	}
}

func TestRoutingLowConfidenceFallsBackToBestRoute(t *testing.T) {
	res := &enrichment.Result{Routing: &scoring.RoutingScore{RecommendedRoute: "acquirer_b", Confidence: 0.30}}
	d := decideRouting(authContext(0.2, 0.9), routingSnapshot(), res, nil)

	if d.Route != "acquirer_a" {
		t.Fatalf("route = %s, want best-scored acquirer_a", d.Route)
	}
}

func TestRoutingInactiveRecommendationIgnored(t *testing.T) {
	res := &enrichment.Result{Routing: &scoring.RoutingScore{RecommendedRoute: "acquirer_gone", Confidence: 0.95}}
	d := decideRouting(authContext(0.2, 0.9), routingSnapshot(), res, nil)
	if d.Route != "acquirer_a" {
		t.Fatalf("route = %s, want acquirer_a", d.Route)
	}
}

func TestRoutingSimilarTopRoutePreferredForDomestic(t *testing.T) {
	res := &enrichment.Result{Similar: &similarity.Matches{Count: 4, TopRoute: "acquirer_b", AvgApprovalRate: 90}}
	d := decideRouting(authContext(0.2, 0.9), routingSnapshot(), res, nil)
	if d.Route != "acquirer_b" {
		t.Fatalf("route = %s, want similar traffic's acquirer_b", d.Route)
	}

	// Cross-border traffic sticks to performance ranking.
	ctx := authContext(0.2, 0.9)
	ctx.IssuerCountry = "US"
	d = decideRouting(ctx, routingSnapshot(), res, nil)
	if d.Route != "acquirer_a" {
		t.Fatalf("cross-border route = %s, want acquirer_a", d.Route)
	}
}

func TestRoutingNoDataUsesDefaultRoute(t *testing.T) {
	d := decideRouting(authContext(0.2, 0.9), snapshot.Default(), nil, nil)
	if d.Route != defaultRoute {
		t.Fatalf("route = %s, want %s", d.Route, defaultRoute)
	}
	if !d.Degraded {
		t.Error("no-signal routing not marked degraded")
	}
}
