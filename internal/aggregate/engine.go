// Package aggregate implements the Aggregation Engine (spec §4.6): it
// groups normalized trades into per-(venue, pair, window) buckets,
// computes a volume-weighted average price on close, and emits
// AlertRecord values on either the immediate or windowed path.
package aggregate

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/sawpanic/xbtalert/internal/metrics"
	"github.com/sawpanic/xbtalert/internal/model"
)

// Clock abstracts time for deterministic tests.
type Clock func() time.Time

// Engine holds open buckets keyed by (venue, pair, bucket_id) and closes
// them once their window has elapsed, emitting AlertRecord candidates on
// Alerts(). The threshold decision itself belongs to the Threshold
// Controller; the Engine only emits candidates with their computed
// buy_gross so the controller can gate them.
type Engine struct {
	windowSeconds int
	now           Clock

	mu      sync.Mutex
	buckets map[model.BucketKey]*model.AggregationBucket

	alerts  chan model.AlertRecord
	metrics *metrics.Registry
}

// NewEngine builds an Engine with a fixed aggregation window.
// windowSeconds <= 0 disables windowing: every trade is emitted
// immediately as its own single-trade candidate (spec §4.6). reg is
// optional; pass nil to disable bucket-closure instrumentation.
func NewEngine(windowSeconds int, now Clock, reg *metrics.Registry) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{
		windowSeconds: windowSeconds,
		now:           now,
		buckets:       make(map[model.BucketKey]*model.AggregationBucket),
		alerts:        make(chan model.AlertRecord, 256),
		metrics:       reg,
	}
}

// Alerts returns the channel of AlertRecord candidates the engine emits.
func (e *Engine) Alerts() <-chan model.AlertRecord {
	return e.alerts
}

// Add ingests one normalized trade. A sell trade never reaches either
// alert path (spec §4.6's buy-only filtering rule; every AlertRecord's
// side is buy, spec §3). Per spec §4.6: if windowing is disabled, the
// trade is emitted immediately as a single-trade candidate; otherwise it
// is appended to its bucket, which is later closed by Sweep.
func (e *Engine) Add(t model.NormalizedTrade) {
	if !t.Side.CountsTowardBuyVolume() {
		return
	}

	if e.windowSeconds <= 0 {
		e.emitSingle(t)
		return
	}

	bucketID := t.EventTimeMs / 1000 / int64(e.windowSeconds)
	key := model.BucketKey{Venue: t.Venue, Pair: t.Pair, BucketID: bucketID}

	e.mu.Lock()
	b, ok := e.buckets[key]
	if !ok {
		b = &model.AggregationBucket{
			Key:           key,
			OpenedAt:      e.now(),
			WindowSeconds: e.windowSeconds,
		}
		e.buckets[key] = b
	}
	b.Trades = append(b.Trades, t)
	if t.EventTimeMs > b.LatestEventTime {
		b.LatestEventTime = t.EventTimeMs
	}
	e.mu.Unlock()
}

// Sweep closes any bucket whose window has elapsed since it was opened,
// emitting one AlertRecord candidate per closed bucket. Call this on a
// fixed cadence (the teacher and the original bot both check once per
// second).
func (e *Engine) Sweep() {
	now := e.now()

	e.mu.Lock()
	var ready []*model.AggregationBucket
	for key, b := range e.buckets {
		if now.Sub(b.OpenedAt) >= time.Duration(b.WindowSeconds)*time.Second {
			ready = append(ready, b)
			delete(e.buckets, key)
		}
	}
	e.mu.Unlock()

	if e.metrics != nil && len(ready) > 0 {
		e.metrics.BucketsClosed.Add(float64(len(ready)))
	}
	for _, b := range ready {
		e.emitBucket(b)
	}
}

func (e *Engine) emitSingle(t model.NormalizedTrade) {
	rec := model.AlertRecord{
		ID:               uuid.NewString(),
		Pair:             t.Pair,
		Side:             model.SideBuy,
		Kind:             model.AlertSingle,
		CanonicalGross:   t.CanonicalGross,
		Quantity:         t.Quantity,
		WeightedAvgPrice: t.CanonicalPrice,
		VenueLabel:       t.Venue,
		NumTrades:        1,
		LatestEventTime:  t.EventTimeMs,
		ReferenceRate:    t.ReferenceRate,
		HasCrossRate:     t.ReferenceRateUsed,
	}
	e.alerts <- rec
}

func (e *Engine) emitBucket(b *model.AggregationBucket) {
	if len(b.Trades) == 0 {
		return
	}
	if len(b.Trades) == 1 {
		e.emitSingle(b.Trades[0])
		return
	}

	var totalQty, totalGross, buyGross decimal.Decimal
	for _, t := range b.Trades {
		totalQty = totalQty.Add(t.Quantity)
		totalGross = totalGross.Add(t.CanonicalGross)
		if t.Side.CountsTowardBuyVolume() {
			buyGross = buyGross.Add(t.CanonicalGross)
		}
	}

	var avgPrice decimal.Decimal
	if totalQty.IsPositive() {
		avgPrice = totalGross.Div(totalQty)
	} else {
		avgPrice = b.Trades[0].CanonicalPrice
	}

	validateAggregation(b.Key, avgPrice, totalQty, totalGross)

	breakdown := make([]model.TradeBreakdownLine, 0, min(len(b.Trades), 5))
	for i, t := range b.Trades {
		if i >= 5 {
			break
		}
		breakdown = append(breakdown, model.TradeBreakdownLine{
			Price:    t.CanonicalPrice,
			Quantity: t.Quantity,
			Gross:    t.CanonicalGross,
			Venue:    t.Venue,
		})
	}
	tail := len(b.Trades) - len(breakdown)

	first := b.Trades[0]
	rec := model.AlertRecord{
		ID:               uuid.NewString(),
		Pair:             b.Key.Pair,
		Side:             model.SideBuy,
		Kind:             model.AlertAggregated,
		CanonicalGross:   buyGross,
		Quantity:         totalQty,
		WeightedAvgPrice: avgPrice,
		VenueLabel:       b.Key.Venue + " (Aggregated)",
		NumTrades:        len(b.Trades),
		LatestEventTime:  b.LatestEventTime,
		Breakdown:        breakdown,
		TailCount:        tail,
		ReferenceRate:    first.ReferenceRate,
		HasCrossRate:     first.ReferenceRateUsed,
	}
	e.alerts <- rec
}

// validateAggregation re-derives avgPrice*totalQty and logs at error
// level if it drifts from totalGross beyond the quote's tolerance,
// mirroring the original bot's mathematical_calculation_audit check
// (spec §7 DataInvariantViolation: logged, never dropped).
func validateAggregation(key model.BucketKey, avgPrice, totalQty, totalGross decimal.Decimal) {
	recomputed := avgPrice.Mul(totalQty)
	tol := model.AggregationTolerance(key.Pair.Quote)
	if recomputed.Sub(totalGross).Abs().GreaterThan(tol) {
		log.Error().
			Str("venue", key.Venue).
			Str("pair", key.Pair.String()).
			Str("avg_price", avgPrice.String()).
			Str("total_quantity", totalQty.String()).
			Str("recomputed", recomputed.String()).
			Str("total_gross", totalGross.String()).
			Msg("aggregation weighted-average calculation mismatch")
	}
}
