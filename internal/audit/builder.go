package audit

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

// EventBuilder provides a fluent API for constructing audit events.
//
// Usage:
//
//	event := audit.NewEventBuilder(r).
//		ForRule(rule.ID, rule.Name).
//		WithAction(audit.ActionCreated).
//		WithAfterState(state).
//		Build()
//
//	service.Log(event)
type EventBuilder struct {
	event Event
}

// NewEventBuilder creates a builder initialized from the HTTP request: the
// chi request id, the caller address, and the user agent. Rule writes only
// happen through the authenticated admin surface, so the actor is "admin".
func NewEventBuilder(r *http.Request) *EventBuilder {
	return &EventBuilder{
		event: Event{
			RequestID: middleware.GetReqID(r.Context()),
			Actor:     "admin",
			Source: Source{
				IPAddress: r.RemoteAddr,
				UserAgent: r.UserAgent(),
			},
			Status: StatusSuccess,
		},
	}
}

// ForRule sets the rule id and name for the event.
func (b *EventBuilder) ForRule(id, name string) *EventBuilder {
	b.event.RuleID = id
	b.event.RuleName = name
	return b
}

// WithAction sets the action for the event (created, updated, deleted).
func (b *EventBuilder) WithAction(action string) *EventBuilder {
	b.event.Action = action
	return b
}

// WithBeforeState sets the before state for the event.
func (b *EventBuilder) WithBeforeState(state map[string]any) *EventBuilder {
	if state != nil {
		b.event.BeforeState = state
	}
	return b
}

// WithAfterState sets the after state for the event.
func (b *EventBuilder) WithAfterState(state map[string]any) *EventBuilder {
	if state != nil {
		b.event.AfterState = state
	}
	return b
}

// WithChanges sets the field-level changes for the event.
func (b *EventBuilder) WithChanges(changes map[string]any) *EventBuilder {
	if changes != nil {
		b.event.Changes = changes
	}
	return b
}

// Failure marks the event as failed and sets an error message.
func (b *EventBuilder) Failure(errorMsg string) *EventBuilder {
	b.event.Status = StatusFailure
	b.event.ErrorMessage = errorMsg
	return b
}

// Build returns the constructed Event, ready for service.Log.
func (b *EventBuilder) Build() Event {
	return b.event
}
