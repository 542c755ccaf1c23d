// Package snapshot holds the current rule set and decision parameters as an
// immutable, fully-formed snapshot. Decision requests read the latest
// snapshot without locking; a single background refresher replaces the whole
// snapshot atomically, so readers never observe a partially-updated rule set.
package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/anakin-skynnet/payment-analysis-sub000/internal/rules"
	"github.com/anakin-skynnet/payment-analysis-sub000/internal/store"
)

// Params are the tunable decision parameters, loaded from the decision
// config table. Thresholds live here, never hard-coded in policies.
type Params struct {
	RiskThresholdHigh   float64 `json:"risk_threshold_high"`
	RiskThresholdMedium float64 `json:"risk_threshold_medium"`
	DeviceTrustLowRisk  float64 `json:"device_trust_low_risk"`

	RetryMaxAttemptsControl   int `json:"retry_max_attempts_control"`
	RetryMaxAttemptsTreatment int `json:"retry_max_attempts_treatment"`
	RetryBackoffRecurringControl   int `json:"retry_backoff_recurring_control"`
	RetryBackoffRecurringTreatment int `json:"retry_backoff_recurring_treatment"`
	RetryBackoffTransient          int `json:"retry_backoff_transient"`
	RetryBackoffSoftTreatment      int `json:"retry_backoff_soft_treatment"`

	// RetryMLThreshold is the retry-success probability below which the ML
	// signal vetoes a heuristic retry.
	RetryMLThreshold float64 `json:"retry_ml_threshold"`
	// RoutingMLConfidence is the minimum model confidence for the ML route
	// recommendation to override the performance-based choice.
	RoutingMLConfidence float64 `json:"routing_ml_confidence"`

	RoutingDomesticCountry string `json:"routing_domestic_country"`

	MLEnrichmentEnabled bool `json:"ml_enrichment_enabled"`
	RuleEngineEnabled   bool `json:"rule_engine_enabled"`
}

// DefaultParams returns the parameter defaults used when the config table is
// empty or a value fails to parse.
func DefaultParams() Params {
	return Params{
		RiskThresholdHigh:              0.75,
		RiskThresholdMedium:            0.35,
		DeviceTrustLowRisk:             0.90,
		RetryMaxAttemptsControl:        3,
		RetryMaxAttemptsTreatment:      4,
		RetryBackoffRecurringControl:   900,
		RetryBackoffRecurringTreatment: 300,
		RetryBackoffTransient:          60,
		RetryBackoffSoftTreatment:      1800,
		RetryMLThreshold:               0.30,
		RoutingMLConfidence:            0.60,
		RoutingDomesticCountry:         "BR",
		MLEnrichmentEnabled:            true,
		RuleEngineEnabled:              true,
	}
}

// MaxRetryAttempts returns the attempt cap for the given experiment variant.
func (p Params) MaxRetryAttempts(variant string) int {
	if variant == "treatment" {
		return p.RetryMaxAttemptsTreatment
	}
	return p.RetryMaxAttemptsControl
}

// Snapshot is one immutable view of the decisioning configuration. Once
// built it is never mutated; refresh swaps the whole snapshot.
type Snapshot struct {
	ETag   string `json:"etag"`
	Params Params `json:"params"`

	// Rules are the validated active rules, ordered by priority then id.
	Rules []rules.Rule `json:"rules"`

	// DeclineCodes maps lowercased decline codes to retry characteristics.
	DeclineCodes map[string]store.DeclineCode `json:"decline_codes"`

	// Routes are active routes ordered best-first by composite score:
	// higher approval rate, then lower latency, then lower cost.
	Routes []store.RouteScore `json:"routes"`

	FetchedAt time.Time `json:"fetched_at"`
}

// ParamsFromConfig builds Params from key/value config rows. Unknown keys
// are ignored; unparseable values keep their defaults.
func ParamsFromConfig(entries []store.ConfigEntry) Params {
	kv := make(map[string]string, len(entries))
	for _, e := range entries {
		k := strings.TrimSpace(e.Key)
		v := strings.TrimSpace(e.Value)
		if k != "" && v != "" {
			kv[k] = v
		}
	}

	p := DefaultParams()
	getFloat := func(key string, dst *float64) {
		if raw, ok := kv[key]; ok {
			if f, err := strconv.ParseFloat(raw, 64); err == nil {
				*dst = f
			}
		}
	}
	getInt := func(key string, dst *int) {
		if raw, ok := kv[key]; ok {
			if f, err := strconv.ParseFloat(raw, 64); err == nil {
				*dst = int(f)
			}
		}
	}
	getBool := func(key string, dst *bool) {
		if raw, ok := kv[key]; ok {
			switch strings.ToLower(raw) {
			case "true", "1", "yes":
				*dst = true
			case "false", "0", "no":
				*dst = false
			}
		}
	}

	getFloat("risk_threshold_high", &p.RiskThresholdHigh)
	getFloat("risk_threshold_medium", &p.RiskThresholdMedium)
	getFloat("device_trust_low_risk", &p.DeviceTrustLowRisk)
	getInt("retry_max_attempts_control", &p.RetryMaxAttemptsControl)
	getInt("retry_max_attempts_treatment", &p.RetryMaxAttemptsTreatment)
	getInt("retry_backoff_recurring_control", &p.RetryBackoffRecurringControl)
	getInt("retry_backoff_recurring_treatment", &p.RetryBackoffRecurringTreatment)
	getInt("retry_backoff_transient", &p.RetryBackoffTransient)
	getInt("retry_backoff_soft_treatment", &p.RetryBackoffSoftTreatment)
	getFloat("retry_ml_threshold", &p.RetryMLThreshold)
	getFloat("routing_ml_confidence", &p.RoutingMLConfidence)
	if v, ok := kv["routing_domestic_country"]; ok {
		p.RoutingDomesticCountry = v
	}
	getBool("ml_enrichment_enabled", &p.MLEnrichmentEnabled)
	getBool("rule_engine_enabled", &p.RuleEngineEnabled)
	return p
}

// Build assembles a snapshot from store rows. Rules failing validation are
// excluded (they were validated on write; a bad row here means manual edits)
// and reported back so the refresher can log them.
func Build(entries []store.ConfigEntry, ruleRows []rules.Rule, codes []store.DeclineCode, routes []store.RouteScore) (*Snapshot, []error) {
	var invalid []error

	valid := make([]rules.Rule, 0, len(ruleRows))
	for _, r := range ruleRows {
		if !r.Active {
			continue
		}
		if err := r.Validate(); err != nil {
			invalid = append(invalid, err)
			continue
		}
		valid = append(valid, r)
	}
	sort.SliceStable(valid, func(i, j int) bool {
		if valid[i].Priority != valid[j].Priority {
			return valid[i].Priority < valid[j].Priority
		}
		return valid[i].ID < valid[j].ID
	})

	codeMap := make(map[string]store.DeclineCode, len(codes))
	for _, c := range codes {
		code := strings.ToLower(strings.TrimSpace(c.Code))
		if code == "" || !c.Active {
			continue
		}
		codeMap[code] = c
	}

	active := make([]store.RouteScore, 0, len(routes))
	for _, r := range routes {
		if r.Active {
			active = append(active, r)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		a, b := active[i], active[j]
		if a.ApprovalRatePct != b.ApprovalRatePct {
			return a.ApprovalRatePct > b.ApprovalRatePct
		}
		if a.AvgLatencyMs != b.AvgLatencyMs {
			return a.AvgLatencyMs < b.AvgLatencyMs
		}
		return a.CostScore < b.CostScore
	})

	s := &Snapshot{
		Params:       ParamsFromConfig(entries),
		Rules:        valid,
		DeclineCodes: codeMap,
		Routes:       active,
		FetchedAt:    time.Now().UTC(),
	}
	s.ETag = etag(s)
	return s, invalid
}

// Default returns an empty snapshot with default parameters, used before the
// first successful refresh so requests never block on configuration.
func Default() *Snapshot {
	s := &Snapshot{
		Params:       DefaultParams(),
		DeclineCodes: map[string]store.DeclineCode{},
		FetchedAt:    time.Now().UTC(),
	}
	s.ETag = etag(s)
	return s
}

func etag(s *Snapshot) string {
	blob, _ := json.Marshal(struct {
		Params       Params
		Rules        []rules.Rule
		DeclineCodes map[string]store.DeclineCode
		Routes       []store.RouteScore
	}{s.Params, s.Rules, s.DeclineCodes, s.Routes})
	sum := sha256.Sum256(blob)
	return `W/"` + hex.EncodeToString(sum[:]) + `"`
}
