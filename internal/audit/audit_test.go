package audit

import (
	"context"
	"net/http/httptest"
	"reflect"
	"sync"
	"testing"
	"time"
)

type memSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *memSink) Write(ctx context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *memSink) all() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

type fixedClock struct{ at time.Time }

func (c fixedClock) Now() time.Time { return c.at }

func TestLogDefaultsAndPersists(t *testing.T) {
	sink := &memSink{}
	now := time.Date(2025, 6, 18, 14, 30, 0, 0, time.UTC)
	svc := NewService(sink, fixedClock{now}, 16)

	svc.Log(Event{
		Action:   ActionCreated,
		RuleID:   "r-1",
		RuleName: "block-high-fraud",
		Actor:    "admin",
	})
	if err := svc.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	events := sink.all()
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	e := events[0]
	if !e.OccurredAt.Equal(now) {
		t.Errorf("occurred_at = %v, want clock time %v", e.OccurredAt, now)
	}
	if e.Status != StatusSuccess {
		t.Errorf("status = %q, want default %q", e.Status, StatusSuccess)
	}
	if e.RuleID != "r-1" || e.Action != ActionCreated {
		t.Errorf("event = %+v", e)
	}
}

func TestCloseDrainsQueue(t *testing.T) {
	sink := &memSink{}
	svc := NewService(sink, nil, 64)

	for i := 0; i < 20; i++ {
		svc.Log(Event{Action: ActionUpdated, RuleID: "r-1"})
	}
	if err := svc.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if got := len(sink.all()); got != 20 {
		t.Errorf("persisted %d events, want 20", got)
	}

	// Idempotent.
	if err := svc.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
}

type blockingSink struct {
	release chan struct{}
}

func (s *blockingSink) Write(ctx context.Context, event Event) error {
	select {
	case <-s.release:
	case <-ctx.Done():
	}
	return nil
}

func TestLogNeverBlocksCaller(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	svc := NewService(sink, nil, 4)
	defer func() {
		close(sink.release)
		_ = svc.Close()
	}()

	start := time.Now()
	for i := 0; i < 100; i++ {
		svc.Log(Event{Action: ActionDeleted, RuleID: "r-1"})
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("100 logs against a stalled sink took %v", elapsed)
	}
}

func TestComputeChanges(t *testing.T) {
	tests := []struct {
		name   string
		before map[string]any
		after  map[string]any
		want   map[string]any
	}{
		{"both nil", nil, nil, nil},
		{
			"no difference",
			map[string]any{"priority": 5},
			map[string]any{"priority": 5},
			nil,
		},
		{
			"value changed",
			map[string]any{"priority": 5},
			map[string]any{"priority": 1},
			map[string]any{"priority": map[string]any{"before": 5, "after": 1}},
		},
		{
			"key added",
			map[string]any{},
			map[string]any{"route_to": "acquirer_a"},
			map[string]any{"route_to": map[string]any{"before": nil, "after": "acquirer_a"}},
		},
		{
			"key removed",
			map[string]any{"route_to": "acquirer_a"},
			map[string]any{},
			map[string]any{"route_to": map[string]any{"before": "acquirer_a", "after": nil}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeChanges(tt.before, tt.after)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ComputeChanges() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEventBuilder(t *testing.T) {
	r := httptest.NewRequest("POST", "/v1/rules/", nil)
	r.Header.Set("User-Agent", "decisionctl/1.0")
	r.RemoteAddr = "10.1.2.3:4567"

	event := NewEventBuilder(r).
		ForRule("r-9", "retry-cap").
		WithAction(ActionUpdated).
		WithBeforeState(map[string]any{"priority": 5}).
		WithAfterState(map[string]any{"priority": 2}).
		WithChanges(ComputeChanges(map[string]any{"priority": 5}, map[string]any{"priority": 2})).
		Build()

	if event.RuleID != "r-9" || event.RuleName != "retry-cap" {
		t.Errorf("rule = %q/%q", event.RuleID, event.RuleName)
	}
	if event.Actor != "admin" {
		t.Errorf("actor = %q, want admin", event.Actor)
	}
	if event.Source.IPAddress != "10.1.2.3:4567" || event.Source.UserAgent != "decisionctl/1.0" {
		t.Errorf("source = %+v", event.Source)
	}
	if event.Status != StatusSuccess {
		t.Errorf("status = %q", event.Status)
	}
	if event.Changes == nil {
		t.Error("changes not set")
	}

	failed := NewEventBuilder(r).
		ForRule("r-9", "retry-cap").
		WithAction(ActionDeleted).
		Failure("store unavailable").
		Build()
	if failed.Status != StatusFailure || failed.ErrorMessage != "store unavailable" {
		t.Errorf("failure event = %+v", failed)
	}
}
