package outcome

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/anakin-skynnet/payment-analysis-sub000/internal/decision"
	"github.com/anakin-skynnet/payment-analysis-sub000/internal/store"
)

// slowStore blocks every write until released.
type slowStore struct {
	*store.MemoryStore
	release chan struct{}
	mu      sync.Mutex
	writes  int
}

func newSlowStore() *slowStore {
	return &slowStore{MemoryStore: store.NewMemoryStore(), release: make(chan struct{})}
}

func (s *slowStore) InsertDecision(ctx context.Context, rec store.DecisionRecord) error {
	select {
	case <-s.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	s.mu.Lock()
	s.writes++
	s.mu.Unlock()
	return s.MemoryStore.InsertDecision(ctx, rec)
}

func (s *slowStore) writeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

func TestEnqueueDoesNotBlockOnSlowBackend(t *testing.T) {
	st := newSlowStore()
	r := NewRecorder(st)
	r.Start()
	defer r.Close()

	start := time.Now()
	for i := 0; i < 100; i++ {
		r.RecordDecision(decision.Decision{ID: "d"}, decision.Context{TransactionID: "t"})
	}
	elapsed := time.Since(start)

	// 100 enqueues against a fully stalled store must be near-instant.
	if elapsed > 100*time.Millisecond {
		t.Fatalf("enqueue of 100 records took %v with a stalled store", elapsed)
	}

	close(st.release)
}

func TestWorkerPersistsRecords(t *testing.T) {
	st := store.NewMemoryStore()
	r := NewRecorder(st)
	r.Start()

	r.RecordDecision(
		decision.Decision{ID: "d-1", Kind: decision.KindAuthentication, Action: decision.ActionApprove},
		decision.Context{TransactionID: "tx-1"},
	)
	r.RecordOutcome(decision.OutcomeRecord{
		DecisionID: "d-1", Kind: decision.KindAuthentication, Outcome: "approved",
	})

	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	decisions := st.Decisions()
	if len(decisions) != 1 || decisions[0].Decision.ID != "d-1" {
		t.Fatalf("decisions = %+v, want one d-1 record", decisions)
	}
	outcomes := st.Outcomes()
	if len(outcomes) != 1 || outcomes[0].DecisionID != "d-1" {
		t.Fatalf("outcomes = %+v, want one d-1 record", outcomes)
	}
	if outcomes[0].RecordedAt.IsZero() {
		t.Error("RecordedAt not defaulted")
	}
}

// When the queue overflows the oldest record goes, not the newest.
func TestOverflowDropsOldest(t *testing.T) {
	st := newSlowStore()
	r := NewRecorder(st)
	// No Start: nothing drains, so the queue fills deterministically.

	total := queueSize + 10
	for i := 0; i < total; i++ {
		r.RecordOutcome(decision.OutcomeRecord{
			DecisionID: "d", Kind: decision.KindRetry, Outcome: "retried",
			LatencyMs: int64(i),
		})
	}

	if got := len(r.queue); got != queueSize {
		t.Fatalf("queue depth = %d, want %d", got, queueSize)
	}

	// The head of the queue must be record 10, the first survivor.
	first := <-r.queue
	if first.outcome.LatencyMs != 10 {
		t.Errorf("oldest surviving record = %d, want 10", first.outcome.LatencyMs)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	r := NewRecorder(store.NewMemoryStore())
	r.Start()
	if err := r.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
