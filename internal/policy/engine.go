// Package policy turns an enriched decision context into a concrete action.
// One engine per decision kind; all three share the same shape: matched
// business rules win outright, then model scores adjusted by short-window
// behavior, then snapshot thresholds. When every external signal is absent
// the engines still answer from rules and heuristics, flagged as degraded.
package policy

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/anakin-skynnet/payment-analysis-sub000/internal/decision"
	"github.com/anakin-skynnet/payment-analysis-sub000/internal/enrichment"
	"github.com/anakin-skynnet/payment-analysis-sub000/internal/experiment"
	"github.com/anakin-skynnet/payment-analysis-sub000/internal/feature"
	"github.com/anakin-skynnet/payment-analysis-sub000/internal/rules"
	"github.com/anakin-skynnet/payment-analysis-sub000/internal/snapshot"
	"github.com/anakin-skynnet/payment-analysis-sub000/internal/telemetry"
)

// Engine produces decisions for all three kinds. It owns no mutable state;
// the snapshot cache and enricher are shared, concurrency-safe components.
type Engine struct {
	cache    *snapshot.Cache
	enricher *enrichment.Enricher
	salt     string
	logger   zerolog.Logger
}

func NewEngine(cache *snapshot.Cache, enricher *enrichment.Enricher, salt string) *Engine {
	return &Engine{
		cache:    cache,
		enricher: enricher,
		salt:     salt,
		logger:   log.With().Str("component", "policy").Logger(),
	}
}

// Decide runs the full pipeline for one request: assign variant, build the
// feature vector, enrich, evaluate rules, apply the kind's policy.
//
// A feature.MissingFeatureError means the request itself is unusable; a
// rules.EvaluationError means loaded policy could not be applied. Everything
// else degrades instead of failing.
func (e *Engine) Decide(ctx context.Context, kind decision.Kind, dctx *decision.Context) (*decision.Decision, error) {
	start := time.Now()
	snap := e.cache.Current()
	params := snap.Params

	variant := experiment.Assign(dctx.Subject(), dctx.Experiment, e.salt, experiment.ControlTreatment)

	at := dctx.OccurredAt
	if at.IsZero() {
		at = time.Now().UTC()
	}

	var (
		vec feature.Vector
		err error
	)
	switch kind {
	case decision.KindAuthentication:
		vec, err = feature.BuildAuthentication(dctx, at, params.RoutingDomesticCountry)
	case decision.KindRetry:
		vec, err = feature.BuildRetry(dctx, at, params.RoutingDomesticCountry)
	case decision.KindRouting:
		vec, err = feature.BuildRouting(dctx, at, params.RoutingDomesticCountry)
	default:
		return nil, fmt.Errorf("unknown decision kind %q", kind)
	}
	if err != nil {
		return nil, err
	}

	var res *enrichment.Result
	if params.MLEnrichmentEnabled {
		switch kind {
		case decision.KindAuthentication:
			res = e.enricher.EnrichAuthentication(ctx, dctx, vec)
		case decision.KindRetry:
			res = e.enricher.EnrichRetry(ctx, dctx, vec)
		case decision.KindRouting:
			res = e.enricher.EnrichRouting(ctx, dctx, vec)
		}
	}

	var matched []rules.Match
	if params.RuleEngineEnabled {
		doc := BuildDocument(dctx, res, params)
		matched, err = rules.Evaluate(doc, snap.Rules, kind)
		if err != nil {
			return nil, err
		}
	}

	var d *decision.Decision
	switch kind {
	case decision.KindAuthentication:
		d = decideAuthentication(dctx, snap, res, matched)
	case decision.KindRetry:
		d = decideRetry(dctx, snap, res, matched, variant)
	case decision.KindRouting:
		d = decideRouting(dctx, snap, res, matched)
	}

	d.ID = uuid.NewString()
	d.Kind = kind
	d.Variant = variant
	d.CreatedAt = time.Now().UTC()
	if res != nil {
		d.ModelScores = res.ModelScores()
	}

	telemetry.Decisions.WithLabelValues(string(kind), string(d.Action)).Inc()
	telemetry.DecisionDur.WithLabelValues(string(kind)).Observe(time.Since(start).Seconds())
	if d.Degraded {
		telemetry.DecisionsDegraded.WithLabelValues(string(kind)).Inc()
		e.logger.Warn().
			Str("kind", string(kind)).
			Str("transaction_id", dctx.TransactionID).
			Msg("decision made without external signals")
	}
	return d, nil
}

// ruleDecision converts the winning matched rule into a decision. The rule's
// action applies outright, regardless of what the models say.
func ruleDecision(m rules.Match) *decision.Decision {
	r := m.Rule
	d := &decision.Decision{
		Action:             r.Action,
		Confidence:         1.0,
		Explanation:        fmt.Sprintf("[Rule: %s] %s", r.Name, r.Summary),
		ContributingRuleID: r.ID,
	}
	if r.Action == decision.ActionRouteTo {
		d.Route = r.RouteTo
	}
	if r.Action == decision.ActionRetryLater {
		d.BackoffSeconds = r.BackoffSeconds
	}
	return d
}

// degraded reports whether no model and no similarity signal arrived.
func degraded(res *enrichment.Result) bool {
	if res == nil {
		return true
	}
	return res.Approval == nil && res.Risk == nil && res.Retry == nil &&
		res.Routing == nil && res.Similar == nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
