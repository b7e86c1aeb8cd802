// Package threshold implements the Threshold Controller (spec §4.7):
// static or volume-driven dynamic gating of alert candidates against the
// configured buy_gross requirement.
package threshold

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/sawpanic/xbtalert/internal/config"
)

// VolumeFetcher returns the 24h volume (in base-asset units) used to
// drive the dynamic threshold, implemented by the Market Data Client.
type VolumeFetcher func(ctx context.Context) (decimal.Decimal, error)

// Controller holds the current threshold value and refreshes it on a
// fixed interval when dynamic mode is enabled (spec §4.7).
type Controller struct {
	store       *config.Store
	fetchVolume VolumeFetcher

	mu        sync.RWMutex
	threshold decimal.Decimal
}

// NewController builds a Controller seeded from the store's current
// static value_require.
func NewController(store *config.Store, fetchVolume VolumeFetcher) *Controller {
	c := &Controller{store: store, fetchVolume: fetchVolume}
	c.threshold = decimal.NewFromFloat(store.Get().ValueRequire)
	return c
}

// Threshold returns the current gross-value threshold.
func (c *Controller) Threshold() decimal.Decimal {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.threshold
}

// Passes reports whether gross meets or exceeds the current threshold.
func (c *Controller) Passes(gross decimal.Decimal) bool {
	return gross.GreaterThanOrEqual(c.Threshold())
}

// Run refreshes the dynamic threshold on the configured interval until
// ctx is cancelled. It is a no-op loop (but still runs, to pick up a
// live config toggle) when dynamic_threshold.enabled is false.
func (c *Controller) Run(ctx context.Context) {
	for {
		cfg := c.store.Get()
		interval := time.Duration(cfg.DynamicThreshold.RefreshIntervalSecs) * time.Second
		if interval <= 0 {
			interval = time.Hour
		}

		if cfg.DynamicThreshold.Enabled {
			c.refresh(ctx, cfg)
		} else {
			c.mu.Lock()
			c.threshold = decimal.NewFromFloat(cfg.ValueRequire)
			c.mu.Unlock()
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}

func (c *Controller) refresh(ctx context.Context, cfg config.Config) {
	if c.fetchVolume == nil {
		return
	}
	volume, err := c.fetchVolume(ctx)
	if err != nil {
		log.Error().Err(err).Msg("dynamic threshold volume fetch failed, keeping previous threshold")
		return
	}

	dyn := cfg.DynamicThreshold
	newThreshold := dyn.Base + volume.InexactFloat64()*dyn.Multiplier
	newThreshold = math.Max(dyn.Min, math.Min(dyn.Max, newThreshold))
	rounded := math.Round(newThreshold)

	c.mu.Lock()
	c.threshold = decimal.NewFromFloat(rounded)
	c.mu.Unlock()

	log.Info().
		Float64("volume_24h", volume.InexactFloat64()).
		Float64("new_threshold", rounded).
		Msg("dynamic threshold updated")

	if err := c.store.Update(func(cfg *config.Config) { cfg.ValueRequire = rounded }); err != nil {
		log.Warn().Err(err).Msg("failed to persist dynamic threshold to config store")
	}
}
