// Package webhook notifies downstream systems when a business rule changes.
// Risk and operations teams subscribe their own services to rule changes so
// a mistyped threshold is noticed before the next incident review.
package webhook

import (
	"time"
)

// Event types that trigger notifications
const (
	EventRuleCreated = "rule.created"
	EventRuleUpdated = "rule.updated"
	EventRuleDeleted = "rule.deleted"
)

// Event is the payload delivered to subscribed endpoints.
type Event struct {
	Type      string    `json:"event"`
	Timestamp time.Time `json:"timestamp"`
	Resource  Resource  `json:"resource"`
	Data      EventData `json:"data"`
	Metadata  Metadata  `json:"metadata"`
}

// Resource identifies the rule that triggered the event
type Resource struct {
	Type string `json:"type"` // always "rule"
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// EventData contains the before/after state and changes
type EventData struct {
	Before  map[string]any `json:"before,omitempty"`
	After   map[string]any `json:"after,omitempty"`
	Changes map[string]any `json:"changes,omitempty"`
}

// Metadata contains additional context about the event
type Metadata struct {
	RequestID string `json:"request_id,omitempty"`
	IPAddress string `json:"ip_address,omitempty"`
}
