package normalize

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/sawpanic/xbtalert/internal/model"
)

// RateFetcher fetches a fresh reference rate from the Market Data Client
// when the cache is cold or stale; implemented by marketdata.ReferenceRate.
type RateFetcher func(ctx context.Context) (decimal.Decimal, error)

// Normalizer converts trades denominated in a non-canonical quote into
// the canonical quote currency (spec §4.5). CanonicalQuote is "USDT"
// throughout this pipeline.
type Normalizer struct {
	CanonicalQuote string

	cache   *RateCache
	fetch   RateFetcher
	refresh time.Duration

	mu          sync.Mutex
	lastFetched time.Time
	lastRate    decimal.Decimal
	haveRate    bool
}

// NewNormalizer builds a Normalizer backed by cache and fetch, refreshing
// the in-process rate at most once per refresh interval.
func NewNormalizer(canonicalQuote string, cache *RateCache, fetch RateFetcher, refresh time.Duration) *Normalizer {
	return &Normalizer{
		CanonicalQuote: canonicalQuote,
		cache:          cache,
		fetch:          fetch,
		refresh:        refresh,
	}
}

// Normalize converts t into the canonical quote. If t is already
// canonical-quoted, it passes through unchanged. If a conversion is
// required and no reference rate is available, Normalize returns
// ok=false and the caller must drop the trade (spec §4.5's explicit
// fail-closed rule: never guess a rate).
func (n *Normalizer) Normalize(ctx context.Context, t model.TradeEvent) (model.NormalizedTrade, bool) {
	if t.Pair.IsCanonicalQuote(n.CanonicalQuote) {
		return model.NormalizedTrade{
			TradeEvent:     t,
			CanonicalPrice: t.Price,
			CanonicalGross: t.Gross,
		}, true
	}

	rate, ok := n.rate(ctx)
	if !ok {
		log.Warn().
			Str("venue", t.Venue).
			Str("pair", t.Pair.String()).
			Msg("no reference rate available, dropping trade rather than guessing a conversion")
		return model.NormalizedTrade{}, false
	}

	return model.NormalizedTrade{
		TradeEvent:        t,
		CanonicalPrice:    t.Price.Mul(rate),
		CanonicalGross:    t.Gross.Mul(rate),
		ReferenceRate:     rate,
		ReferenceRateUsed: true,
	}, true
}

// rate returns the current reference rate, refreshing it from the cache
// or the market data client when stale.
func (n *Normalizer) rate(ctx context.Context) (decimal.Decimal, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.haveRate && time.Since(n.lastFetched) < n.refresh {
		return n.lastRate, true
	}

	if n.cache != nil {
		if rate, ok := n.cache.Get(ctx); ok {
			n.lastRate, n.haveRate, n.lastFetched = rate, true, time.Now()
			return rate, true
		}
	}

	if n.fetch == nil {
		return n.fallback()
	}

	rate, err := n.fetch(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("reference rate fetch failed")
		return n.fallback()
	}

	n.lastRate, n.haveRate, n.lastFetched = rate, true, time.Now()
	if n.cache != nil {
		if err := n.cache.Set(ctx, rate); err != nil {
			log.Warn().Err(err).Msg("reference rate cache write failed")
		}
	}
	return rate, true
}

// fallback returns the last known-good rate even if stale, per spec
// §4.5's preference for a stale rate over none when a fresh fetch fails;
// returns ok=false only when no rate has ever been observed.
func (n *Normalizer) fallback() (decimal.Decimal, bool) {
	if n.haveRate {
		return n.lastRate, true
	}
	return decimal.Decimal{}, false
}
