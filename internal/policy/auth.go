package policy

import (
	"fmt"
	"strings"

	"github.com/anakin-skynnet/payment-analysis-sub000/internal/decision"
	"github.com/anakin-skynnet/payment-analysis-sub000/internal/enrichment"
	"github.com/anakin-skynnet/payment-analysis-sub000/internal/rules"
	"github.com/anakin-skynnet/payment-analysis-sub000/internal/snapshot"
)

// decideAuthentication maps risk to approve / step_up / decline.
//
// The risk score comes from the risk model when it answered, otherwise from
// the caller-supplied fraud score. Rolling 5-minute behavior nudges the score
// before thresholding: sustained fraud in the window pushes risk up, a
// healthy approval rate pulls it down. Device trust gates the step_up band.
func decideAuthentication(dctx *decision.Context, snap *snapshot.Snapshot, res *enrichment.Result, matched []rules.Match) *decision.Decision {
	if len(matched) > 0 {
		d := ruleDecision(matched[0])
		d.Degraded = degraded(res)
		return d
	}

	params := snap.Params
	var inputs []string

	risk := *dctx.FraudScore
	inputs = append(inputs, fmt.Sprintf("caller fraud score %.2f", risk))
	if res != nil && res.Risk != nil {
		risk = res.Risk.Score
		inputs[0] = fmt.Sprintf("model risk score %.2f (%s)", risk, res.Risk.Tier)
	}

	if res != nil && res.Streaming != nil {
		if v := res.Streaming.AvgFraud5m; v != nil && *v >= params.RiskThresholdHigh {
			risk = clamp(risk+0.05, 0, 1)
			inputs = append(inputs, fmt.Sprintf("elevated rolling fraud %.2f", *v))
		}
		if v := res.Streaming.ApprovalRate5m; v != nil && *v >= 0.90 {
			risk = clamp(risk-0.05, 0, 1)
			inputs = append(inputs, fmt.Sprintf("healthy rolling approval %.0f%%", *v*100))
		}
	}

	trust := *dctx.DeviceTrustScore
	var (
		action   decision.Action
		distance float64
	)
	switch {
	case risk >= params.RiskThresholdHigh:
		action = decision.ActionDecline
		distance = risk - params.RiskThresholdHigh
		inputs = append(inputs, fmt.Sprintf("risk above %.2f", params.RiskThresholdHigh))
	case risk >= params.RiskThresholdMedium && trust < params.DeviceTrustLowRisk:
		action = decision.ActionStepUp
		distance = risk - params.RiskThresholdMedium
		inputs = append(inputs, fmt.Sprintf("medium risk with device trust %.2f", trust))
	default:
		action = decision.ActionApprove
		distance = params.RiskThresholdMedium - risk
		if risk >= params.RiskThresholdMedium {
			// Medium risk but trusted device.
			distance = trust - params.DeviceTrustLowRisk
			inputs = append(inputs, fmt.Sprintf("trusted device %.2f", trust))
		}
	}

	confidence := clamp(0.50+2*distance, 0.50, 0.95)
	if res != nil && res.Similar != nil && res.Similar.Count > 0 {
		agrees := (action == decision.ActionApprove && res.Similar.AvgApprovalRate >= 80) ||
			(action == decision.ActionDecline && res.Similar.AvgApprovalRate < 50)
		if agrees {
			confidence = clamp(confidence+0.04, 0, 0.99)
			inputs = append(inputs, fmt.Sprintf("%d similar transactions agree (%.0f%% approval)",
				res.Similar.Count, res.Similar.AvgApprovalRate))
		}
	}

	isDegraded := degraded(res)
	if isDegraded {
		confidence = clamp(confidence-0.10, 0.30, 0.95)
		inputs = append(inputs, "no external signals, heuristic only")
	}

	return &decision.Decision{
		Action:      action,
		Confidence:  confidence,
		Explanation: strings.Join(inputs, "; "),
		Degraded:    isDegraded,
	}
}
