package snapshot

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/anakin-skynnet/payment-analysis-sub000/internal/decision"
	"github.com/anakin-skynnet/payment-analysis-sub000/internal/rules"
	"github.com/anakin-skynnet/payment-analysis-sub000/internal/store"
)

func TestCacheServesDefaultBeforeFirstRefresh(t *testing.T) {
	c := NewCache(store.NewMemoryStore(), time.Minute)
	snap := c.Current()
	if snap == nil {
		t.Fatal("Current returned nil")
	}
	if snap.Params != DefaultParams() {
		t.Error("pre-refresh snapshot does not carry defaults")
	}
}

func TestCacheRefresh(t *testing.T) {
	st := store.NewMemoryStore()
	st.SetConfig(store.ConfigEntry{Key: "risk_threshold_high", Value: "0.60"})
	if err := st.UpsertRule(context.Background(), rules.Rule{
		ID: "r1", Name: "r1", Kind: decision.KindAuthentication,
		Action: decision.ActionDecline, Priority: 1, Active: true,
	}); err != nil {
		t.Fatal(err)
	}

	c := NewCache(st, time.Minute)
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	snap := c.Current()
	if snap.Params.RiskThresholdHigh != 0.60 {
		t.Errorf("RiskThresholdHigh = %v, want 0.60", snap.Params.RiskThresholdHigh)
	}
	if len(snap.Rules) != 1 {
		t.Errorf("rules = %d, want 1", len(snap.Rules))
	}
}

// Readers must always observe a complete snapshot: either the old rule set or
// the new one, never a mix, while refreshes race with reads.
func TestCacheAtomicUnderConcurrentRefresh(t *testing.T) {
	st := store.NewMemoryStore()
	c := NewCache(st, time.Minute)

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			// Each generation writes a matched pair of rules so torn reads
			// are detectable.
			gen := fmt.Sprintf("gen-%d", i)
			_ = st.UpsertRule(context.Background(), rules.Rule{
				ID: "a", Name: gen, Kind: decision.KindAuthentication,
				Action: decision.ActionApprove, Priority: 1, Active: true,
			})
			_ = st.UpsertRule(context.Background(), rules.Rule{
				ID: "b", Name: gen, Kind: decision.KindAuthentication,
				Action: decision.ActionApprove, Priority: 2, Active: true,
			})
			_ = c.Refresh(context.Background())
		}
	}()

	for r := 0; r < 8; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 2000; i++ {
				snap := c.Current()
				if snap == nil {
					t.Error("nil snapshot during refresh")
					return
				}
				if len(snap.Rules) == 2 && snap.Rules[0].Name != snap.Rules[1].Name {
					t.Errorf("torn snapshot: %s vs %s", snap.Rules[0].Name, snap.Rules[1].Name)
					return
				}
			}
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(stop)
	wg.Wait()
}

type failingStore struct {
	*store.MemoryStore
}

func (f *failingStore) ListConfig(ctx context.Context) ([]store.ConfigEntry, error) {
	return nil, fmt.Errorf("backend down")
}

func TestCacheKeepsLastGoodSnapshotOnFailure(t *testing.T) {
	st := store.NewMemoryStore()
	st.SetConfig(store.ConfigEntry{Key: "risk_threshold_high", Value: "0.55"})

	c := NewCache(st, time.Minute)
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	good := c.Current()

	c.store = &failingStore{MemoryStore: st}
	if err := c.Refresh(context.Background()); err == nil {
		t.Fatal("Refresh with failing store succeeded")
	}
	if c.Current() != good {
		t.Error("failed refresh replaced the last good snapshot")
	}
}
