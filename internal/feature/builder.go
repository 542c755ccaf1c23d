// Package feature builds model feature vectors from a decision context.
//
// The scoring models are trained offline against a fixed feature schema; the
// vector built here must match that schema field-for-field, in both order and
// count. A mismatch is a correctness bug (silently shifted columns), so the
// schema is declared once as an ordered list and every builder goes through it.
//
// Builders are pure functions: no I/O, no side effects, no clock access (the
// evaluation time is an explicit argument so temporal features are testable).
package feature

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/anakin-skynnet/payment-analysis-sub000/internal/decision"
)

// MissingFeatureError reports a context that lacks a field the target model
// requires. The request is rejected; ambiguous business fields are never
// silently defaulted.
type MissingFeatureError struct {
	Field string
}

func (e *MissingFeatureError) Error() string {
	return fmt.Sprintf("missing required feature: %s", e.Field)
}

// Schema is the ordered list of feature columns a model was trained against.
type Schema []string

// TrainingSchema is the shared 14-column schema of the approval, risk, retry
// and routing models. All four are trained from the same offline pipeline, so
// the columns coincide; per-model builders still validate kind-specific
// requirements before producing a vector.
var TrainingSchema = Schema{
	"amount",
	"fraud_score",
	"device_trust_score",
	"is_cross_border",
	"retry_count",
	"uses_3ds",
	"merchant_segment",
	"card_network",
	"log_amount",
	"hour_of_day",
	"day_of_week",
	"is_weekend",
	"network_encoded",
	"risk_amount_interaction",
}

// networkEncoding matches the label encoding used at training time.
// Unknown networks encode to 5.
var networkEncoding = map[string]int{
	"visa":       0,
	"mastercard": 1,
	"amex":       2,
	"elo":        3,
	"hipercard":  4,
}

const unknownNetworkCode = 5

// Vector is an ordered feature vector bound to a schema. Columns and Row are
// index-aligned; serving payloads are built from both so column order is
// preserved on the wire.
type Vector struct {
	schema Schema
	values []any
}

// Columns returns the schema column names in order.
func (v Vector) Columns() []string { return v.schema }

// Row returns the feature values, index-aligned with Columns.
func (v Vector) Row() []any { return v.values }

// Len returns the number of features in the vector.
func (v Vector) Len() int { return len(v.values) }

// Get returns the value for a named column, for use in explanations and rule
// documents. Lookup is linear; vectors are small.
func (v Vector) Get(name string) (any, bool) {
	for i, c := range v.schema {
		if c == name {
			return v.values[i], true
		}
	}
	return nil, false
}

// BuildAuthentication builds the feature vector for the approval and risk
// models. domesticCountry is the issuer country treated as domestic when
// deriving is_cross_border.
func BuildAuthentication(ctx *decision.Context, at time.Time, domesticCountry string) (Vector, error) {
	return build(ctx, at, domesticCountry)
}

// BuildRetry builds the feature vector for the retry-success model. A retry
// context must carry the decline code that caused the original failure.
func BuildRetry(ctx *decision.Context, at time.Time, domesticCountry string) (Vector, error) {
	if ctx.IsRetry && ctx.DeclineCode == "" && ctx.DeclineReason == "" {
		return Vector{}, &MissingFeatureError{Field: "decline_code"}
	}
	return build(ctx, at, domesticCountry)
}

// BuildRouting builds the feature vector for the smart-routing model.
func BuildRouting(ctx *decision.Context, at time.Time, domesticCountry string) (Vector, error) {
	return build(ctx, at, domesticCountry)
}

func build(ctx *decision.Context, at time.Time, domesticCountry string) (Vector, error) {
	if ctx.MerchantID == "" {
		return Vector{}, &MissingFeatureError{Field: "merchant_id"}
	}
	if ctx.AmountMinor <= 0 {
		return Vector{}, &MissingFeatureError{Field: "amount_minor"}
	}
	if ctx.Network == "" {
		return Vector{}, &MissingFeatureError{Field: "network"}
	}
	if ctx.FraudScore == nil {
		return Vector{}, &MissingFeatureError{Field: "fraud_score"}
	}
	if ctx.DeviceTrustScore == nil {
		return Vector{}, &MissingFeatureError{Field: "device_trust_score"}
	}

	amount := float64(ctx.AmountMinor) / 100.0
	fraud := *ctx.FraudScore
	logAmount := math.Log1p(math.Max(0, amount))

	network := strings.ToLower(ctx.Network)
	code, ok := networkEncoding[network]
	if !ok {
		code = unknownNetworkCode
	}

	segment := ctx.MerchantSegment
	if segment == "" {
		segment = "retail"
	}

	crossBorder := ctx.IssuerCountry != "" &&
		!strings.EqualFold(ctx.IssuerCountry, domesticCountry)

	at = at.UTC()
	// Training used Monday=0..Sunday=6 for day_of_week.
	weekday := (int(at.Weekday()) + 6) % 7

	values := []any{
		amount,
		fraud,
		*ctx.DeviceTrustScore,
		boolFeature(crossBorder),
		ctx.AttemptNumber, // genuinely optional behavioral counter, zero default
		boolFeature(ctx.Uses3DS),
		segment,
		network,
		logAmount,
		at.Hour(),
		weekday,
		boolFeature(weekday >= 5),
		code,
		fraud * logAmount,
	}
	return Vector{schema: TrainingSchema, values: values}, nil
}

func boolFeature(b bool) int {
	if b {
		return 1
	}
	return 0
}
