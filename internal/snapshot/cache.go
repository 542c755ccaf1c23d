package snapshot

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/anakin-skynnet/payment-analysis-sub000/internal/store"
	"github.com/anakin-skynnet/payment-analysis-sub000/internal/telemetry"
)

// Cache holds the current snapshot behind an atomic pointer. Reads on the
// decision hot path never take a lock; the background refresh loop is the
// single writer and swaps the whole snapshot at once.
//
// Failure policy: a failed refresh keeps the last good snapshot in place and
// raises a staleness warning; decision requests are never blocked on a
// refresh.
type Cache struct {
	store    store.Store
	interval time.Duration
	current  atomic.Pointer[Snapshot]
	logger   zerolog.Logger
}

// NewCache creates a cache seeded with the default snapshot. Call Refresh
// once at startup to load real configuration, then Run for periodic refresh.
func NewCache(s store.Store, interval time.Duration) *Cache {
	if interval == 0 {
		interval = 60 * time.Second
	}
	c := &Cache{
		store:    s,
		interval: interval,
		logger:   log.With().Str("component", "snapshot_cache").Logger(),
	}
	c.current.Store(Default())
	return c
}

// Current returns the latest snapshot. Non-blocking; never nil.
func (c *Cache) Current() *Snapshot {
	return c.current.Load()
}

// Staleness returns how long ago the current snapshot was fetched.
func (c *Cache) Staleness() time.Duration {
	return time.Since(c.Current().FetchedAt)
}

// Refresh loads a fresh snapshot from the store and swaps it in. On failure
// the previous snapshot stays current and the error is returned.
func (c *Cache) Refresh(ctx context.Context) error {
	entries, err := c.store.ListConfig(ctx)
	if err != nil {
		return err
	}
	ruleRows, err := c.store.ListRules(ctx)
	if err != nil {
		return err
	}
	codes, err := c.store.ListDeclineCodes(ctx)
	if err != nil {
		return err
	}
	routes, err := c.store.ListRoutes(ctx)
	if err != nil {
		return err
	}

	snap, invalid := Build(entries, ruleRows, codes, routes)
	for _, verr := range invalid {
		c.logger.Warn().Err(verr).Msg("rule excluded from snapshot")
	}

	c.current.Store(snap)
	telemetry.SnapshotRules.Set(float64(len(snap.Rules)))
	telemetry.SnapshotStale.Set(0)
	c.logger.Debug().
		Int("rules", len(snap.Rules)).
		Int("routes", len(snap.Routes)).
		Str("etag", snap.ETag).
		Msg("snapshot refreshed")
	return nil
}

// Run refreshes the snapshot on the configured interval until ctx is
// cancelled. It runs on its own schedule, independent of request handling.
func (c *Cache) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			refreshCtx, cancel := context.WithTimeout(ctx, c.interval/2)
			err := c.Refresh(refreshCtx)
			cancel()
			if err != nil {
				telemetry.SnapshotStale.Set(c.Staleness().Seconds())
				c.logger.Warn().
					Err(err).
					Dur("staleness", c.Staleness()).
					Msg("snapshot refresh failed, serving last good snapshot")
			}
		}
	}
}
