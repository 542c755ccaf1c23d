package audit

import (
	"context"
	"encoding/json"

	"github.com/anakin-skynnet/payment-analysis-sub000/internal/store"
)

// StoreSink persists audit events through the store.
type StoreSink struct {
	store store.Store
}

// NewStoreSink creates a sink backed by the given store.
func NewStoreSink(s store.Store) *StoreSink {
	return &StoreSink{store: s}
}

// Write persists one audit event. State maps are marshaled here so the store
// only deals with opaque JSON payloads.
func (s *StoreSink) Write(ctx context.Context, event Event) error {
	rec := store.AuditEvent{
		OccurredAt:   event.OccurredAt,
		RequestID:    event.RequestID,
		Actor:        event.Actor,
		IPAddress:    event.Source.IPAddress,
		UserAgent:    event.Source.UserAgent,
		Action:       event.Action,
		RuleID:       event.RuleID,
		RuleName:     event.RuleName,
		Status:       event.Status,
		ErrorMessage: event.ErrorMessage,
	}

	if event.BeforeState != nil {
		if b, err := json.Marshal(event.BeforeState); err == nil {
			rec.BeforeState = b
		}
	}
	if event.AfterState != nil {
		if b, err := json.Marshal(event.AfterState); err == nil {
			rec.AfterState = b
		}
	}
	if event.Changes != nil {
		if b, err := json.Marshal(event.Changes); err == nil {
			rec.Changes = b
		}
	}

	return s.store.InsertAuditEvent(ctx, rec)
}
