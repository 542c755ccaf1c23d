// Package audit records who changed which business rule, when, and what the
// rule looked like before and after. Rule changes steer live payment
// decisions, so every write through the admin API leaves a trail.
//
// Logging is asynchronous: events are queued and persisted by a background
// worker, so a slow audit sink never blocks a rule write.
package audit

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Action constants for audit events
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// Status constants for audit events
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

const persistTimeout = 5 * time.Second

// Source represents request metadata
type Source struct {
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent"`
}

// Event represents one rule administration event
type Event struct {
	OccurredAt   time.Time      `json:"occurred_at"`
	RequestID    string         `json:"request_id"`
	Actor        string         `json:"actor"`
	Source       Source         `json:"source"`
	Action       string         `json:"action"`
	RuleID       string         `json:"rule_id"`
	RuleName     string         `json:"rule_name,omitempty"`
	BeforeState  map[string]any `json:"before_state,omitempty"`
	AfterState   map[string]any `json:"after_state,omitempty"`
	Changes      map[string]any `json:"changes,omitempty"`
	Status       string         `json:"status"`
	ErrorMessage string         `json:"error_message,omitempty"`
}

// Sink persists audit events.
type Sink interface {
	Write(ctx context.Context, event Event) error
}

// Clock interface for testable time operations
type Clock interface {
	Now() time.Time
}

// SystemClock implements Clock using time.Now()
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// Service queues audit events and persists them in the background.
type Service struct {
	sink   Sink
	clock  Clock
	queue  chan Event
	stopCh chan struct{}
	done   chan struct{}
	closed int32
	logger zerolog.Logger
}

// NewService creates an audit service and starts its background worker.
func NewService(sink Sink, clock Clock, queueSize int) *Service {
	if clock == nil {
		clock = SystemClock{}
	}
	if queueSize <= 0 {
		queueSize = 256
	}

	s := &Service{
		sink:   sink,
		clock:  clock,
		queue:  make(chan Event, queueSize),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
		logger: log.With().Str("component", "audit").Logger(),
	}

	go s.worker()

	return s
}

func (s *Service) worker() {
	defer close(s.done)
	for {
		select {
		case event := <-s.queue:
			s.persist(event)
		case <-s.stopCh:
			// Drain remaining events before stopping.
			for {
				select {
				case event := <-s.queue:
					s.persist(event)
				default:
					return
				}
			}
		}
	}
}

func (s *Service) persist(event Event) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := s.sink.Write(ctx, event); err != nil {
		s.logger.Error().
			Str("action", event.Action).
			Str("rule_id", event.RuleID).
			Err(err).
			Msg("failed to write audit event")
	}
}

// Log queues an audit event for asynchronous persistence. When the queue is
// full the event is dropped; auditing never blocks a rule write.
func (s *Service) Log(event Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.clock.Now()
	}
	if event.Status == "" {
		event.Status = StatusSuccess
	}

	select {
	case s.queue <- event:
	default:
		s.logger.Warn().
			Str("action", event.Action).
			Str("rule_id", event.RuleID).
			Msg("audit queue full, dropping event")
	}
}

// Close stops the worker after draining queued events. Safe to call more
// than once.
func (s *Service) Close() error {
	if !atomic.CompareAndSwapInt32(&s.closed, 0, 1) {
		return nil
	}
	close(s.stopCh)
	<-s.done
	return nil
}

// ComputeChanges computes the difference between before and after states
func ComputeChanges(before, after map[string]any) map[string]any {
	if before == nil && after == nil {
		return nil
	}
	if before == nil {
		before = make(map[string]any)
	}
	if after == nil {
		after = make(map[string]any)
	}

	changes := make(map[string]any)

	for key, afterVal := range after {
		beforeVal, existedBefore := before[key]

		beforeJSON, _ := json.Marshal(beforeVal)
		afterJSON, _ := json.Marshal(afterVal)

		if !existedBefore || string(beforeJSON) != string(afterJSON) {
			changes[key] = map[string]any{
				"before": beforeVal,
				"after":  afterVal,
			}
		}
	}

	for key, beforeVal := range before {
		if _, existsAfter := after[key]; !existsAfter {
			changes[key] = map[string]any{
				"before": beforeVal,
				"after":  nil,
			}
		}
	}

	if len(changes) == 0 {
		return nil
	}

	return changes
}
