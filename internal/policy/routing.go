package policy

import (
	"fmt"
	"strings"

	"github.com/anakin-skynnet/payment-analysis-sub000/internal/decision"
	"github.com/anakin-skynnet/payment-analysis-sub000/internal/enrichment"
	"github.com/anakin-skynnet/payment-analysis-sub000/internal/rules"
	"github.com/anakin-skynnet/payment-analysis-sub000/internal/snapshot"
)

// defaultRoute answers when no performance data has been loaded yet.
const defaultRoute = "primary"

// decideRouting picks the route for a transaction.
//
// The routing model's recommendation wins when its confidence clears the
// snapshot threshold and the route is active. Otherwise the best route by
// composite performance score is used; for domestic traffic the route that
// worked for similar transactions takes precedence over raw performance when
// similarity answered.
func decideRouting(dctx *decision.Context, snap *snapshot.Snapshot, res *enrichment.Result, matched []rules.Match) *decision.Decision {
	if len(matched) > 0 {
		d := ruleDecision(matched[0])
		d.Degraded = degraded(res)
		return d
	}

	params := snap.Params
	isDegraded := degraded(res)

	if res != nil && res.Routing != nil &&
		res.Routing.Confidence >= params.RoutingMLConfidence &&
		routeActive(snap, res.Routing.RecommendedRoute) {
		return &decision.Decision{
			Action:     decision.ActionRouteTo,
			Route:      res.Routing.RecommendedRoute,
			Confidence: clamp(res.Routing.Confidence, 0, 0.99),
			Explanation: fmt.Sprintf("model recommends %s with %.0f%% confidence",
				res.Routing.RecommendedRoute, res.Routing.Confidence*100),
			Degraded: isDegraded,
		}
	}

	var inputs []string
	domestic := dctx.IssuerCountry == "" || strings.EqualFold(dctx.IssuerCountry, params.RoutingDomesticCountry)
	if domestic && res != nil && res.Similar != nil &&
		res.Similar.TopRoute != "" && routeActive(snap, res.Similar.TopRoute) {
		inputs = append(inputs, fmt.Sprintf("%d similar domestic transactions routed via %s",
			res.Similar.Count, res.Similar.TopRoute))
		return &decision.Decision{
			Action:      decision.ActionRouteTo,
			Route:       res.Similar.TopRoute,
			Confidence:  0.70,
			Explanation: strings.Join(inputs, "; "),
			Degraded:    isDegraded,
		}
	}

	if len(snap.Routes) == 0 {
		return &decision.Decision{
			Action:      decision.ActionRouteTo,
			Route:       defaultRoute,
			Confidence:  0.40,
			Explanation: "no route performance data, using default route",
			Degraded:    isDegraded,
		}
	}

	best := snap.Routes[0]
	inputs = append(inputs, fmt.Sprintf("best performing route %s (%.1f%% approval, %.0fms)",
		best.RouteName, best.ApprovalRatePct, best.AvgLatencyMs))
	confidence := clamp(0.50+best.ApprovalRatePct/200, 0.50, 0.90)
	if isDegraded {
		inputs = append(inputs, "no external signals, performance data only")
	}
	return &decision.Decision{
		Action:      decision.ActionRouteTo,
		Route:       best.RouteName,
		Confidence:  confidence,
		Explanation: strings.Join(inputs, "; "),
		Degraded:    isDegraded,
	}
}

func routeActive(snap *snapshot.Snapshot, name string) bool {
	for _, r := range snap.Routes {
		if strings.EqualFold(r.RouteName, name) {
			return true
		}
	}
	return false
}
