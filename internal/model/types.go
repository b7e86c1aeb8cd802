// Package model holds the canonical data types shared across the
// ingestion, aggregation and alerting pipeline: trades, buckets and
// alert records.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the trusted trade direction reported by a venue.
type Side string

const (
	SideBuy     Side = "buy"
	SideSell    Side = "sell"
	SideUnknown Side = "unknown"
)

// NormalizeSide maps venue-specific side tokens onto the canonical Side
// values per the venue wire conventions in spec §4.4: {"buy","b"} -> buy,
// {"sell","s"} -> sell, anything else -> unknown.
func NormalizeSide(raw string) Side {
	switch raw {
	case "buy", "b", "Buy", "BUY", "B":
		return SideBuy
	case "sell", "s", "Sell", "SELL", "S":
		return SideSell
	default:
		return SideUnknown
	}
}

// CountsTowardBuyVolume reports whether a side contributes to the
// threshold/buy_gross sum. Per spec §4.6 and the Open Question in
// spec.md §9, this implementation keeps the source behavior of treating
// "unknown" as buy-eligible.
func (s Side) CountsTowardBuyVolume() bool {
	return s == SideBuy || s == SideUnknown
}

// Pair identifies an ordered asset/quote market, e.g. "XBT/USDT".
type Pair struct {
	Base  string
	Quote string
}

func (p Pair) String() string {
	return p.Base + "/" + p.Quote
}

// IsCanonicalQuote reports whether trades in this pair are already
// denominated in the canonical quote currency and need no cross-rate
// conversion.
func (p Pair) IsCanonicalQuote(canonicalQuote string) bool {
	return p.Quote == canonicalQuote
}

// ParsePair splits a "BASE/QUOTE" string into a Pair. Malformed input
// yields a Pair with an empty Quote, which IsCanonicalQuote will treat as
// non-canonical (forcing normalization to fail closed, never silently
// guessing a rate).
func ParsePair(s string) Pair {
	for i := 0; i < len(s); i++ {
		if s[i] == '/' {
			return Pair{Base: s[:i], Quote: s[i+1:]}
		}
	}
	return Pair{Base: s}
}

// QuotePrecision returns the number of fractional digits a quote
// currency is carried at, per spec §3: 6 for USDT, 8 for BTC.
func QuotePrecision(quote string) int32 {
	switch quote {
	case "BTC":
		return 8
	default:
		return 6
	}
}

// GrossTolerance returns the maximum allowed |gross - price*quantity|
// deviation for a quote currency, per spec §3 and §8 property 2:
// max(ulp_of_quote, 0.1% of gross).
func GrossTolerance(quote string, gross decimal.Decimal) decimal.Decimal {
	ulp := decimal.New(1, -QuotePrecision(quote))
	pct := gross.Abs().Mul(decimal.NewFromFloat(0.001))
	if pct.GreaterThan(ulp) {
		return pct
	}
	return ulp
}

// AggregationTolerance returns the fixed tolerance used for the §8
// property-1 aggregated-alert invariant: 1e-8 for a BTC-quoted bucket,
// 0.01 for a USDT-quoted bucket.
func AggregationTolerance(quote string) decimal.Decimal {
	if quote == "BTC" {
		return decimal.New(1, -8)
	}
	return decimal.NewFromFloat(0.01)
}

// TradeEvent is a single observed trade as reported by a venue, already
// canonicalized into the shared wire shape described in spec §3.
type TradeEvent struct {
	Venue       string
	Pair        Pair
	Side        Side
	Price       decimal.Decimal
	Quantity    decimal.Decimal
	Gross       decimal.Decimal
	EventTimeMs int64
	ReceiveTime time.Time
	VenueURL    string

	// Synthetic marks events produced by the order-book sweep detector
	// rather than observed directly on the trade feed (spec §4.4).
	Synthetic bool
}

// Validate checks the TradeEvent invariants from spec §3: price > 0,
// quantity > 0, and |gross - price*quantity| within tolerance. It never
// rejects an event outright (per §7, DataInvariantViolation is a logged
// correction, not a drop); callers should substitute the computed gross
// when ok is false.
func (t TradeEvent) Validate() (computedGross decimal.Decimal, ok bool) {
	computedGross = t.Price.Mul(t.Quantity)
	if t.Price.Sign() <= 0 || t.Quantity.Sign() <= 0 {
		return computedGross, false
	}
	tol := GrossTolerance(t.Pair.Quote, computedGross)
	diff := t.Gross.Sub(computedGross).Abs()
	return computedGross, diff.LessThanOrEqual(tol)
}

// NormalizedTrade augments a TradeEvent with canonical-quote values once
// it has passed through the Cross-Pair Normalizer (spec §4.5).
type NormalizedTrade struct {
	TradeEvent

	CanonicalPrice decimal.Decimal
	CanonicalGross decimal.Decimal

	// ReferenceRate is present only for trades that required conversion;
	// native-quote trades leave it as the zero value.
	ReferenceRate     decimal.Decimal
	ReferenceRateUsed bool
}

// BucketKey identifies an AggregationBucket by venue, pair and aligned
// time window (spec §3, §4.6).
type BucketKey struct {
	Venue    string
	Pair     Pair
	BucketID int64
}

// AggregationBucket is the set of trades sharing one (venue, pair,
// window) per spec §3.
type AggregationBucket struct {
	Key              BucketKey
	Trades           []NormalizedTrade
	OpenedAt         time.Time
	LatestEventTime  int64
	WindowSeconds    int
}

// AlertKind distinguishes the two alert-emission paths of spec §4.6.
type AlertKind string

const (
	AlertSingle     AlertKind = "single"
	AlertAggregated AlertKind = "aggregated"
)

// TradeBreakdownLine is one member trade surfaced in an aggregated
// AlertRecord (spec §4.8: up to 5 lines plus a tail summary).
type TradeBreakdownLine struct {
	Price    decimal.Decimal
	Quantity decimal.Decimal
	Gross    decimal.Decimal
	Venue    string
}

// MarketContext is the footer data for a formatted alert (spec §4.8):
// current canonical-pair price, market cap if known, rolling volumes and
// two market links.
type MarketContext struct {
	CanonicalPairPrice decimal.Decimal
	MarketCapUSD       decimal.Decimal
	HasMarketCap       bool
	Volume15m          decimal.Decimal
	Volume1h           decimal.Decimal
	Volume4h           decimal.Decimal
	Volume24h          decimal.Decimal
	LinkPrimary        string
	LinkSecondary      string
}

// AlertRecord is the payload handed to the dispatcher (spec §3, §4.8).
type AlertRecord struct {
	ID               string
	Pair             Pair
	Side             Side
	Kind             AlertKind
	CanonicalGross   decimal.Decimal
	Quantity         decimal.Decimal
	WeightedAvgPrice decimal.Decimal
	VenueLabel       string
	NumTrades        int
	LatestEventTime  int64

	Breakdown     []TradeBreakdownLine
	TailCount     int
	ReferenceRate decimal.Decimal
	HasCrossRate  bool

	Market MarketContext
}
