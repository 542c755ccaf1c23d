package policy

import (
	"fmt"
	"strings"

	"github.com/anakin-skynnet/payment-analysis-sub000/internal/decision"
	"github.com/anakin-skynnet/payment-analysis-sub000/internal/enrichment"
	"github.com/anakin-skynnet/payment-analysis-sub000/internal/rules"
	"github.com/anakin-skynnet/payment-analysis-sub000/internal/snapshot"
	"github.com/anakin-skynnet/payment-analysis-sub000/internal/store"
)

// decideRetry maps a declined attempt to retry_now / retry_later /
// do_not_retry_now.
//
// The decline-code table drives the heuristic: transient codes retry
// immediately, soft codes wait (recurring merchants get scheduled retries,
// one-off traffic only in the treatment arm), issuer codes never retry on
// this attempt. The variant-dependent attempt cap applies before anything
// else. A retry model answer can veto a heuristic retry when its success
// probability is below the snapshot threshold.
func decideRetry(dctx *decision.Context, snap *snapshot.Snapshot, res *enrichment.Result, matched []rules.Match, variant string) *decision.Decision {
	if len(matched) > 0 {
		d := ruleDecision(matched[0])
		d.Degraded = degraded(res)
		return d
	}

	params := snap.Params
	isDegraded := degraded(res)
	var inputs []string

	maxAttempts := params.MaxRetryAttempts(variant)
	if dctx.AttemptNumber >= maxAttempts {
		return finishRetry(&decision.Decision{
			Action:      decision.ActionDoNotRetryNow,
			Confidence:  0.95,
			Explanation: fmt.Sprintf("attempt %d reached the %s cap of %d", dctx.AttemptNumber, variant, maxAttempts),
			Degraded:    isDegraded,
		}, res, params)
	}

	code, known := snap.DeclineCodes[strings.ToLower(strings.TrimSpace(dctx.DeclineCode))]
	if !known {
		return finishRetry(&decision.Decision{
			Action:      decision.ActionDoNotRetryNow,
			Confidence:  0.60,
			Explanation: fmt.Sprintf("decline code %q is not in the retryable set", dctx.DeclineCode),
			Degraded:    isDegraded,
		}, res, params)
	}
	if code.MaxAttempts > 0 && dctx.AttemptNumber >= code.MaxAttempts {
		return finishRetry(&decision.Decision{
			Action:      decision.ActionDoNotRetryNow,
			Confidence:  0.90,
			Explanation: fmt.Sprintf("code %s allows at most %d attempts", code.Code, code.MaxAttempts),
			Degraded:    isDegraded,
		}, res, params)
	}

	d := &decision.Decision{Degraded: isDegraded}
	switch code.Category {
	case store.DeclineCategoryTransient:
		d.Action = decision.ActionRetryNow
		d.Confidence = 0.80
		inputs = append(inputs, fmt.Sprintf("transient decline %s, immediate retry", code.Code))
	case store.DeclineCategorySoft:
		switch {
		case dctx.IsRecurring:
			d.Action = decision.ActionRetryLater
			d.BackoffSeconds = recurringBackoff(params, variant)
			d.Confidence = 0.75
			inputs = append(inputs, fmt.Sprintf("soft decline %s on recurring payment, retry in %ds", code.Code, d.BackoffSeconds))
		case variant == "treatment":
			d.Action = decision.ActionRetryLater
			d.BackoffSeconds = backoffOrDefault(code, params.RetryBackoffSoftTreatment)
			d.Confidence = 0.65
			inputs = append(inputs, fmt.Sprintf("soft decline %s, scheduled retry in %ds", code.Code, d.BackoffSeconds))
		default:
			d.Action = decision.ActionDoNotRetryNow
			d.Confidence = 0.70
			inputs = append(inputs, fmt.Sprintf("soft decline %s, immediate retry unlikely to succeed", code.Code))
		}
	default:
		// Issuer declines: the issuer said no and will keep saying no.
		d.Action = decision.ActionDoNotRetryNow
		d.Confidence = 0.85
		inputs = append(inputs, fmt.Sprintf("issuer decline %s", code.Code))
	}

	d.Explanation = strings.Join(inputs, "; ")
	return finishRetry(d, res, params)
}

// finishRetry applies the retry model's veto and delay hint on top of the
// heuristic outcome.
func finishRetry(d *decision.Decision, res *enrichment.Result, params snapshot.Params) *decision.Decision {
	if res == nil || res.Retry == nil {
		return d
	}
	r := res.Retry

	retrying := d.Action == decision.ActionRetryNow || d.Action == decision.ActionRetryLater
	if retrying && r.SuccessProbability < params.RetryMLThreshold {
		d.Action = decision.ActionDoNotRetryNow
		d.BackoffSeconds = 0
		d.Confidence = clamp(1-r.SuccessProbability, 0.70, 0.95)
		d.Explanation += fmt.Sprintf("; model predicts %.0f%% retry success, below %.0f%%",
			r.SuccessProbability*100, params.RetryMLThreshold*100)
		return d
	}
	if d.Action == decision.ActionRetryLater && r.RetryDelaySeconds > 0 {
		d.BackoffSeconds = r.RetryDelaySeconds
		d.Explanation += fmt.Sprintf("; model suggests %ds delay", r.RetryDelaySeconds)
	}
	if retrying {
		d.Confidence = clamp((d.Confidence+r.SuccessProbability)/2+0.10, 0.50, 0.95)
	}
	return d
}

func recurringBackoff(params snapshot.Params, variant string) int {
	if variant == "treatment" {
		return params.RetryBackoffRecurringTreatment
	}
	return params.RetryBackoffRecurringControl
}

func backoffOrDefault(code store.DeclineCode, fallback int) int {
	if code.BackoffSeconds > 0 {
		return code.BackoffSeconds
	}
	return fallback
}
