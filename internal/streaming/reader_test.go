package streaming

import (
	"context"
	"testing"
	"time"

	"github.com/anakin-skynnet/payment-analysis-sub000/internal/store"
)

func TestReadNoSubject(t *testing.T) {
	r := NewStoreReader(store.NewMemoryStore(), 0)
	agg, err := r.Read(context.Background(), "")
	if err != nil || agg != nil {
		t.Fatalf("Read(\"\") = %v, %v; want nil, nil", agg, err)
	}
}

func TestReadNoRowsMeansNoSignal(t *testing.T) {
	r := NewStoreReader(store.NewMemoryStore(), 0)
	agg, err := r.Read(context.Background(), "m-1")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if agg != nil {
		t.Fatalf("agg = %+v, want nil for absent subject", agg)
	}
}

func TestReadMapsFeatures(t *testing.T) {
	st := store.NewMemoryStore()
	st.SetStreamingFeatures("m-1", map[string]float64{
		FeatureApprovalRate5m: 0.91,
		FeatureAvgFraud5m:     0.12,
	})

	r := NewStoreReader(st, 0)
	agg, err := r.Read(context.Background(), "m-1")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if agg.ApprovalRate5m == nil || *agg.ApprovalRate5m != 0.91 {
		t.Errorf("ApprovalRate5m = %v, want 0.91", agg.ApprovalRate5m)
	}
	if agg.AvgFraud5m == nil || *agg.AvgFraud5m != 0.12 {
		t.Errorf("AvgFraud5m = %v, want 0.12", agg.AvgFraud5m)
	}
	// Features the job never produced stay nil, not zero.
	if agg.RetryRate5m != nil || agg.TxVelocity5m != nil {
		t.Errorf("absent features materialized: %+v", agg)
	}
	if agg.Empty() {
		t.Error("Empty() with features present")
	}
}

type hangingStore struct {
	*store.MemoryStore
}

func (h *hangingStore) StreamingFeatures(ctx context.Context, entityID string) (map[string]float64, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestReadHonorsOwnTimeout(t *testing.T) {
	r := NewStoreReader(&hangingStore{store.NewMemoryStore()}, 30*time.Millisecond)

	start := time.Now()
	_, err := r.Read(context.Background(), "m-1")
	if err == nil {
		t.Fatal("Read against hanging store succeeded")
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("Read took %v, want ~30ms", elapsed)
	}
}

func TestAggregatesEmpty(t *testing.T) {
	var nilAgg *Aggregates
	if !nilAgg.Empty() {
		t.Error("nil aggregates should be empty")
	}
	if !(&Aggregates{}).Empty() {
		t.Error("zero aggregates should be empty")
	}
}
