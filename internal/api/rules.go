package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/anakin-skynnet/payment-analysis-sub000/internal/audit"
	"github.com/anakin-skynnet/payment-analysis-sub000/internal/decision"
	"github.com/anakin-skynnet/payment-analysis-sub000/internal/rules"
	"github.com/anakin-skynnet/payment-analysis-sub000/internal/store"
	"github.com/anakin-skynnet/payment-analysis-sub000/internal/webhook"
)

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.ListRules(r.Context())
	if err != nil {
		InternalError(w, r, ErrCodeInternal, "failed to list rules")
		return
	}
	if list == nil {
		list = []rules.Rule{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"rules": list, "count": len(list)})
}

func (s *Server) handleGetRule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rule, err := s.store.GetRule(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			NotFoundError(w, r, "rule not found")
			return
		}
		InternalError(w, r, ErrCodeInternal, "failed to load rule")
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

type createRuleRequest struct {
	ID             string `json:"id,omitempty"`
	Name           string `json:"name"`
	Kind           string `json:"rule_type"`
	Condition      string `json:"condition_expression"`
	Action         string `json:"action"`
	RouteTo        string `json:"route_to,omitempty"`
	BackoffSeconds int    `json:"backoff_seconds,omitempty"`
	Summary        string `json:"action_summary"`
	Priority       int    `json:"priority"`
	Active         *bool  `json:"is_active,omitempty"`
}

func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var req createRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequestError(w, r, ErrCodeInvalidJSON, "invalid JSON")
		return
	}

	rule := rules.Rule{
		ID:             strings.TrimSpace(req.ID),
		Name:           req.Name,
		Kind:           decision.Kind(req.Kind),
		Version:        1,
		Condition:      req.Condition,
		Action:         decision.Action(req.Action),
		RouteTo:        req.RouteTo,
		BackoffSeconds: req.BackoffSeconds,
		Summary:        req.Summary,
		Priority:       req.Priority,
		Active:         true,
	}
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	if req.Active != nil {
		rule.Active = *req.Active
	}
	if err := rule.Validate(); err != nil {
		BadRequestError(w, r, ErrCodeInvalidRule, err.Error())
		return
	}

	if err := s.store.UpsertRule(r.Context(), rule); err != nil {
		InternalError(w, r, ErrCodeInternal, "failed to save rule")
		return
	}
	s.refreshSnapshot(r.Context())
	s.recordRuleChange(r, audit.ActionCreated, nil, &rule)
	writeJSON(w, http.StatusCreated, rule)
}

type updateRuleRequest struct {
	Name           *string `json:"name,omitempty"`
	Condition      *string `json:"condition_expression,omitempty"`
	Action         *string `json:"action,omitempty"`
	RouteTo        *string `json:"route_to,omitempty"`
	BackoffSeconds *int    `json:"backoff_seconds,omitempty"`
	Summary        *string `json:"action_summary,omitempty"`
	Priority       *int    `json:"priority,omitempty"`
	Active         *bool   `json:"is_active,omitempty"`
}

func (s *Server) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rule, err := s.store.GetRule(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			NotFoundError(w, r, "rule not found")
			return
		}
		InternalError(w, r, ErrCodeInternal, "failed to load rule")
		return
	}

	var req updateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequestError(w, r, ErrCodeInvalidJSON, "invalid JSON")
		return
	}

	updated := *rule
	if req.Name != nil {
		updated.Name = *req.Name
	}
	if req.Condition != nil {
		updated.Condition = *req.Condition
	}
	if req.Action != nil {
		updated.Action = decision.Action(*req.Action)
	}
	if req.RouteTo != nil {
		updated.RouteTo = *req.RouteTo
	}
	if req.BackoffSeconds != nil {
		updated.BackoffSeconds = *req.BackoffSeconds
	}
	if req.Summary != nil {
		updated.Summary = *req.Summary
	}
	if req.Priority != nil {
		updated.Priority = *req.Priority
	}
	if req.Active != nil {
		updated.Active = *req.Active
	}
	updated.Version = rule.Version + 1

	if err := updated.Validate(); err != nil {
		BadRequestError(w, r, ErrCodeInvalidRule, err.Error())
		return
	}
	if err := s.store.UpsertRule(r.Context(), updated); err != nil {
		InternalError(w, r, ErrCodeInternal, "failed to save rule")
		return
	}
	s.refreshSnapshot(r.Context())
	s.recordRuleChange(r, audit.ActionUpdated, rule, &updated)
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	// Fetch first so the audit trail keeps the deleted rule's last state.
	// Deleting an unknown id stays idempotent.
	existing, err := s.store.GetRule(r.Context(), id)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		InternalError(w, r, ErrCodeInternal, "failed to load rule")
		return
	}

	if err := s.store.DeleteRule(r.Context(), id); err != nil {
		InternalError(w, r, ErrCodeInternal, "failed to delete rule")
		return
	}
	s.refreshSnapshot(r.Context())
	if existing != nil {
		s.recordRuleChange(r, audit.ActionDeleted, existing, nil)
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
}

// ruleState renders a rule as the generic state map carried by audit events
// and webhook payloads.
func ruleState(r rules.Rule) map[string]any {
	raw, err := json.Marshal(r)
	if err != nil {
		return nil
	}
	var state map[string]any
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil
	}
	return state
}

// recordRuleChange emits the audit event and webhook notification for one
// rule write. Both are fire and forget; the write has already succeeded.
func (s *Server) recordRuleChange(r *http.Request, action string, before, after *rules.Rule) {
	if s.audit == nil && s.hooks == nil {
		return
	}

	var beforeState, afterState map[string]any
	var id, name string
	if before != nil {
		beforeState = ruleState(*before)
		id, name = before.ID, before.Name
	}
	if after != nil {
		afterState = ruleState(*after)
		id, name = after.ID, after.Name
	}
	changes := audit.ComputeChanges(beforeState, afterState)

	if s.audit != nil {
		s.audit.Log(audit.NewEventBuilder(r).
			ForRule(id, name).
			WithAction(action).
			WithBeforeState(beforeState).
			WithAfterState(afterState).
			WithChanges(changes).
			Build())
	}

	if s.hooks != nil {
		s.hooks.Dispatch(webhook.Event{
			Type:      "rule." + action,
			Timestamp: time.Now().UTC(),
			Resource:  webhook.Resource{Type: "rule", ID: id, Name: name},
			Data:      webhook.EventData{Before: beforeState, After: afterState, Changes: changes},
			Metadata: webhook.Metadata{
				RequestID: middleware.GetReqID(r.Context()),
				IPAddress: r.RemoteAddr,
			},
		})
	}
}

// refreshSnapshot makes rule writes visible immediately instead of waiting
// for the next refresh tick. A failed refresh is not an error for the write;
// the background loop will retry on schedule.
func (s *Server) refreshSnapshot(ctx context.Context) {
	if err := s.cache.Refresh(ctx); err != nil {
		log.Warn().Err(err).Msg("snapshot refresh after rule write failed")
	}
}
