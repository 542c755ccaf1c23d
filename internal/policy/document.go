package policy

import (
	"github.com/anakin-skynnet/payment-analysis-sub000/internal/decision"
	"github.com/anakin-skynnet/payment-analysis-sub000/internal/enrichment"
	"github.com/anakin-skynnet/payment-analysis-sub000/internal/rules"
	"github.com/anakin-skynnet/payment-analysis-sub000/internal/snapshot"
)

// BuildDocument flattens the decision context and enrichment results into the
// document rule conditions are written against. Keys are stable names that
// rule authors rely on; enrichment values appear only when the source
// answered, so conditions can test for presence.
func BuildDocument(dctx *decision.Context, res *enrichment.Result, params snapshot.Params) rules.Document {
	doc := rules.Document{
		"transaction_id":   dctx.TransactionID,
		"merchant_id":      dctx.MerchantID,
		"amount":           float64(dctx.AmountMinor) / 100.0,
		"amount_minor":     dctx.AmountMinor,
		"currency":         dctx.Currency,
		"network":          dctx.Network,
		"card_bin":         dctx.CardBin,
		"issuer_country":   dctx.IssuerCountry,
		"entry_mode":       dctx.EntryMode,
		"merchant_segment": dctx.MerchantSegment,
		"uses_3ds":         dctx.Uses3DS,
		"is_recurring":     dctx.IsRecurring,
		"is_retry":         dctx.IsRetry,
		"attempt_number":   dctx.AttemptNumber,
		"decline_code":     dctx.DeclineCode,
		"is_cross_border":  dctx.IssuerCountry != "" && dctx.IssuerCountry != params.RoutingDomesticCountry,
	}
	if dctx.FraudScore != nil {
		doc["fraud_score"] = *dctx.FraudScore
	}
	if dctx.DeviceTrustScore != nil {
		doc["device_trust_score"] = *dctx.DeviceTrustScore
	}

	if res == nil {
		return doc
	}
	if res.Approval != nil {
		doc["ml_approval_probability"] = res.Approval.Probability
		doc["ml_should_approve"] = res.Approval.ShouldApprove
	}
	if res.Risk != nil {
		doc["ml_risk_score"] = res.Risk.Score
		doc["ml_is_high_risk"] = res.Risk.IsHighRisk
		doc["ml_risk_tier"] = res.Risk.Tier
	}
	if res.Retry != nil {
		doc["ml_retry_probability"] = res.Retry.SuccessProbability
		doc["ml_should_retry"] = res.Retry.ShouldRetry
	}
	if res.Routing != nil {
		doc["ml_recommended_route"] = res.Routing.RecommendedRoute
		doc["ml_route_confidence"] = res.Routing.Confidence
	}
	if res.Similar != nil {
		doc["similar_count"] = res.Similar.Count
		doc["similar_avg_approval_rate"] = res.Similar.AvgApprovalRate
		doc["similar_top_route"] = res.Similar.TopRoute
		doc["similar_avg_fraud_score"] = res.Similar.AvgFraudScore
	}
	if res.Streaming != nil {
		if v := res.Streaming.ApprovalRate5m; v != nil {
			doc["approval_rate_5m"] = *v
		}
		if v := res.Streaming.RetryRate5m; v != nil {
			doc["retry_rate_5m"] = *v
		}
		if v := res.Streaming.AvgFraud5m; v != nil {
			doc["avg_fraud_5m"] = *v
		}
		if v := res.Streaming.TxVelocity5m; v != nil {
			doc["tx_velocity_5m"] = *v
		}
	}
	return doc
}
