package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/anakin-skynnet/payment-analysis-sub000/internal/decision"
	"github.com/anakin-skynnet/payment-analysis-sub000/internal/feature"
	"github.com/anakin-skynnet/payment-analysis-sub000/internal/rules"
)

const (
	decisionKindAuthentication = decision.KindAuthentication
	decisionKindRetry          = decision.KindRetry
	decisionKindRouting        = decision.KindRouting
)

// handleDecision runs one decision request through the engine. Missing
// required features are the caller's fault (400); a rule evaluation failure
// means loaded policy could not be applied (500). Everything else degrades
// inside the engine instead of erroring here.
func (s *Server) handleDecision(kind decision.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var dctx decision.Context
		if err := json.NewDecoder(r.Body).Decode(&dctx); err != nil {
			BadRequestError(w, r, ErrCodeInvalidJSON, "invalid JSON")
			return
		}
		if strings.TrimSpace(dctx.TransactionID) == "" {
			BadRequestErrorWithFields(w, r, ErrCodeValidation, "transaction_id is required",
				map[string]string{"transaction_id": "required"})
			return
		}

		d, err := s.engine.Decide(r.Context(), kind, &dctx)
		if err != nil {
			var missing *feature.MissingFeatureError
			if errors.As(err, &missing) {
				BadRequestErrorWithFields(w, r, ErrCodeMissingFeature, err.Error(),
					map[string]string{missing.Field: "required"})
				return
			}
			var evalErr *rules.EvaluationError
			if errors.As(err, &evalErr) {
				InternalError(w, r, ErrCodeRuleEvaluation, err.Error())
				return
			}
			InternalError(w, r, ErrCodeInternal, "decision failed")
			return
		}

		s.recorder.RecordDecision(*d, dctx)
		writeJSON(w, http.StatusOK, d)
	}
}

type outcomeResponse struct {
	Accepted   bool   `json:"accepted"`
	DecisionID string `json:"decision_id"`
}

// handleOutcome accepts the later-arriving ground truth for a decision. The
// write is queued; the caller never waits on the store.
func (s *Server) handleOutcome(w http.ResponseWriter, r *http.Request) {
	var rec decision.OutcomeRecord
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		BadRequestError(w, r, ErrCodeInvalidJSON, "invalid JSON")
		return
	}

	fields := map[string]string{}
	if strings.TrimSpace(rec.DecisionID) == "" {
		fields["decision_id"] = "required"
	}
	if !rec.Kind.Valid() {
		fields["decision_type"] = "must be authentication, retry, or routing"
	}
	if strings.TrimSpace(rec.Outcome) == "" {
		fields["outcome"] = "required"
	}
	if len(fields) > 0 {
		BadRequestErrorWithFields(w, r, ErrCodeValidation, "invalid outcome record", fields)
		return
	}

	s.recorder.RecordOutcome(rec)
	writeJSON(w, http.StatusAccepted, outcomeResponse{Accepted: true, DecisionID: rec.DecisionID})
}

type configResponse struct {
	ETag             string        `json:"etag"`
	FetchedAt        time.Time     `json:"fetched_at"`
	StalenessSeconds float64       `json:"staleness_seconds"`
	Params           any           `json:"params"`
	Rules            []ruleSummary `json:"rules"`
	Routes           []string      `json:"routes"`
	DeclineCodeCount int           `json:"decline_code_count"`
}

type ruleSummary struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Kind     string `json:"rule_type"`
	Priority int    `json:"priority"`
	Action   string `json:"action"`
}

// handleConfig is a read-only reflection of the active snapshot, for
// operators verifying what the engine is deciding with.
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	snap := s.cache.Current()
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == snap.ETag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	resp := configResponse{
		ETag:             snap.ETag,
		FetchedAt:        snap.FetchedAt,
		StalenessSeconds: s.cache.Staleness().Seconds(),
		Params:           snap.Params,
		DeclineCodeCount: len(snap.DeclineCodes),
	}
	for _, rl := range snap.Rules {
		resp.Rules = append(resp.Rules, ruleSummary{
			ID:       rl.ID,
			Name:     rl.Name,
			Kind:     string(rl.Kind),
			Priority: rl.Priority,
			Action:   string(rl.Action),
		})
	}
	for _, rt := range snap.Routes {
		resp.Routes = append(resp.Routes, rt.RouteName)
	}

	w.Header().Set("ETag", snap.ETag)
	writeJSON(w, http.StatusOK, resp)
}
