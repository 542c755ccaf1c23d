package store

import (
	"context"
	"sort"
	"sync"

	"github.com/anakin-skynnet/payment-analysis-sub000/internal/decision"
	"github.com/anakin-skynnet/payment-analysis-sub000/internal/rules"
)

// MemoryStore is an in-memory implementation of the Store interface, suitable
// for development, testing, and single-instance deployments. It uses a
// RWMutex for thread-safe concurrent access.
type MemoryStore struct {
	mu        sync.RWMutex
	rules     map[string]rules.Rule
	config    map[string]ConfigEntry
	codes     map[string]DeclineCode
	routes    map[string]RouteScore
	streaming map[string]map[string]float64 // entity -> feature -> value
	decisions []DecisionRecord
	outcomes  []decision.OutcomeRecord
	audits    []AuditEvent
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rules:     make(map[string]rules.Rule),
		config:    make(map[string]ConfigEntry),
		codes:     make(map[string]DeclineCode),
		routes:    make(map[string]RouteScore),
		streaming: make(map[string]map[string]float64),
	}
}

func (m *MemoryStore) ListRules(ctx context.Context) ([]rules.Rule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]rules.Rule, 0, len(m.rules))
	for _, r := range m.rules {
		result = append(result, r)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Priority != result[j].Priority {
			return result[i].Priority < result[j].Priority
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (m *MemoryStore) GetRule(ctx context.Context, id string) (*rules.Rule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.rules[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (m *MemoryStore) UpsertRule(ctx context.Context, r rules.Rule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules[r.ID] = r
	return nil
}

func (m *MemoryStore) DeleteRule(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rules, id)
	return nil
}

func (m *MemoryStore) ListConfig(ctx context.Context) ([]ConfigEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]ConfigEntry, 0, len(m.config))
	for _, e := range m.config {
		result = append(result, e)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	return result, nil
}

// SetConfig stores one config entry (test/seed helper).
func (m *MemoryStore) SetConfig(e ConfigEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config[e.Key] = e
}

func (m *MemoryStore) ListDeclineCodes(ctx context.Context) ([]DeclineCode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]DeclineCode, 0, len(m.codes))
	for _, c := range m.codes {
		if c.Active {
			result = append(result, c)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Code < result[j].Code })
	return result, nil
}

// SetDeclineCode stores one decline code (test/seed helper).
func (m *MemoryStore) SetDeclineCode(c DeclineCode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes[c.Code] = c
}

func (m *MemoryStore) ListRoutes(ctx context.Context) ([]RouteScore, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]RouteScore, 0, len(m.routes))
	for _, r := range m.routes {
		if r.Active {
			result = append(result, r)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].RouteName < result[j].RouteName })
	return result, nil
}

// SetRoute stores one route score (test/seed helper).
func (m *MemoryStore) SetRoute(r RouteScore) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routes[r.RouteName] = r
}

func (m *MemoryStore) StreamingFeatures(ctx context.Context, entityID string) (map[string]float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	features, ok := m.streaming[entityID]
	if !ok {
		return map[string]float64{}, nil
	}
	out := make(map[string]float64, len(features))
	for k, v := range features {
		out[k] = v
	}
	return out, nil
}

// SetStreamingFeatures stores the aggregates for an entity (test/seed helper).
func (m *MemoryStore) SetStreamingFeatures(entityID string, features map[string]float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streaming[entityID] = features
}

func (m *MemoryStore) InsertDecision(ctx context.Context, rec DecisionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decisions = append(m.decisions, rec)
	return nil
}

func (m *MemoryStore) InsertOutcome(ctx context.Context, rec decision.OutcomeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, rec)
	return nil
}

func (m *MemoryStore) InsertAuditEvent(ctx context.Context, e AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audits = append(m.audits, e)
	return nil
}

// Decisions returns a copy of the recorded decisions (test helper).
func (m *MemoryStore) Decisions() []DecisionRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]DecisionRecord(nil), m.decisions...)
}

// Outcomes returns a copy of the recorded outcomes (test helper).
func (m *MemoryStore) Outcomes() []decision.OutcomeRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]decision.OutcomeRecord(nil), m.outcomes...)
}

// AuditEvents returns a copy of the recorded audit events (test helper).
func (m *MemoryStore) AuditEvents() []AuditEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]AuditEvent(nil), m.audits...)
}

// Close is a no-op for MemoryStore.
func (m *MemoryStore) Close() error { return nil }
