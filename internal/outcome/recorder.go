// Package outcome persists decisions and their later-arriving outcomes off
// the request path. Enqueueing is non-blocking; a single worker drains a
// bounded queue into the store. When the queue is full the oldest record is
// dropped so the freshest feedback survives backpressure.
package outcome

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/anakin-skynnet/payment-analysis-sub000/internal/decision"
	"github.com/anakin-skynnet/payment-analysis-sub000/internal/store"
	"github.com/anakin-skynnet/payment-analysis-sub000/internal/telemetry"
)

const (
	// queueSize is the buffer size for the record queue
	queueSize = 1000

	// persistTimeout bounds each store write so a stuck backend cannot
	// stall the worker forever.
	persistTimeout = 5 * time.Second
)

// record is one queued unit of work: exactly one of the two fields is set.
type record struct {
	decision *store.DecisionRecord
	outcome  *decision.OutcomeRecord
}

// Recorder is the async feedback writer.
type Recorder struct {
	store  store.Store
	queue  chan record
	done   chan struct{}
	closed int32 // atomic flag to prevent double-close
	logger zerolog.Logger
}

func NewRecorder(s store.Store) *Recorder {
	return &Recorder{
		store:  s,
		queue:  make(chan record, queueSize),
		done:   make(chan struct{}),
		logger: log.With().Str("component", "outcome_recorder").Logger(),
	}
}

// Start begins draining the queue.
func (r *Recorder) Start() {
	go r.worker()
}

// Close stops the recorder after draining queued records. Safe to call more
// than once.
func (r *Recorder) Close() error {
	if !atomic.CompareAndSwapInt32(&r.closed, 0, 1) {
		return nil
	}
	close(r.queue)
	<-r.done
	return nil
}

// RecordDecision queues a decision and the request that produced it.
// Non-blocking; returns immediately even when the store is slow or down.
func (r *Recorder) RecordDecision(d decision.Decision, req decision.Context) {
	r.enqueue(record{decision: &store.DecisionRecord{Decision: d, Request: req}})
}

// RecordOutcome queues a later-arriving outcome for a decision.
func (r *Recorder) RecordOutcome(o decision.OutcomeRecord) {
	if o.RecordedAt.IsZero() {
		o.RecordedAt = time.Now().UTC()
	}
	r.enqueue(record{outcome: &o})
}

// enqueue never blocks: when the queue is full the oldest queued record is
// discarded to make room, so recent feedback is what survives.
func (r *Recorder) enqueue(rec record) {
	if atomic.LoadInt32(&r.closed) == 1 {
		return
	}
	for {
		select {
		case r.queue <- rec:
			telemetry.RecorderQueue.Set(float64(len(r.queue)))
			return
		default:
		}
		select {
		case dropped := <-r.queue:
			telemetry.RecorderDrops.Inc()
			r.logger.Warn().
				Str("decision_id", droppedID(dropped)).
				Int("queue_size", queueSize).
				Msg("queue full, dropping oldest record")
		default:
		}
	}
}

func droppedID(rec record) string {
	if rec.decision != nil {
		return rec.decision.Decision.ID
	}
	if rec.outcome != nil {
		return rec.outcome.DecisionID
	}
	return ""
}

// worker drains the queue. Persistence failures are logged and dropped; the
// feedback loop tolerates gaps, requests must never feel them.
func (r *Recorder) worker() {
	defer close(r.done)

	for rec := range r.queue {
		telemetry.RecorderQueue.Set(float64(len(r.queue)))
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)

		var err error
		switch {
		case rec.decision != nil:
			err = r.store.InsertDecision(ctx, *rec.decision)
			if err != nil {
				r.logger.Error().Err(err).
					Str("decision_id", rec.decision.Decision.ID).
					Msg("failed to persist decision")
			}
		case rec.outcome != nil:
			err = r.store.InsertOutcome(ctx, *rec.outcome)
			if err != nil {
				r.logger.Error().Err(err).
					Str("decision_id", rec.outcome.DecisionID).
					Msg("failed to persist outcome")
			}
		}
		cancel()
	}
}
