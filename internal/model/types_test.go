package model

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/shopspring/decimal"
)

func TestNormalizeSideTable(t *testing.T) {
	cases := []struct {
		raw  string
		want Side
	}{
		{"buy", SideBuy},
		{"b", SideBuy},
		{"BUY", SideBuy},
		{"sell", SideSell},
		{"s", SideSell},
		{"SELL", SideSell},
		{"", SideUnknown},
		{"maker", SideUnknown},
	}
	for _, c := range cases {
		if got := NormalizeSide(c.raw); got != c.want {
			t.Errorf("NormalizeSide(%q) = %v, want %v", c.raw, got, c.want)
		}
	}
}

func TestCountsTowardBuyVolume(t *testing.T) {
	for _, s := range []Side{SideBuy, SideUnknown} {
		if !s.CountsTowardBuyVolume() {
			t.Errorf("%v should count toward buy volume", s)
		}
	}
	if SideSell.CountsTowardBuyVolume() {
		t.Error("sell should never count toward buy volume")
	}
}

func TestPairString(t *testing.T) {
	p := Pair{Base: "XBT", Quote: "USDT"}
	if got := p.String(); got != "XBT/USDT" {
		t.Errorf("Pair.String() = %q, want XBT/USDT", got)
	}
	if !p.IsCanonicalQuote("USDT") {
		t.Error("expected XBT/USDT to be canonical-quote")
	}
	if (Pair{Base: "XBT", Quote: "BTC"}).IsCanonicalQuote("USDT") {
		t.Error("expected XBT/BTC not to be canonical-quote")
	}
}

// decimal.Decimal carries unexported internal state, so two AlertRecords
// built independently from equal inputs are compared via their decimal
// string forms rather than reflect.DeepEqual, which would spuriously
// fail on differing internal representations of the same value.
func decimalTransformer() cmp.Option {
	return cmp.Transformer("decimal.String", func(d decimal.Decimal) string { return d.String() })
}

func TestAlertRecordEqualityIgnoresDecimalRepresentation(t *testing.T) {
	a := AlertRecord{
		Pair:           Pair{Base: "XBT", Quote: "USDT"},
		Kind:           AlertAggregated,
		CanonicalGross: decimal.NewFromFloat(165.0),
		NumTrades:      3,
		Breakdown: []TradeBreakdownLine{
			{Price: decimal.NewFromInt(15).Div(decimal.NewFromInt(100)), Quantity: decimal.NewFromInt(100)},
		},
	}
	b := AlertRecord{
		Pair:           Pair{Base: "XBT", Quote: "USDT"},
		Kind:           AlertAggregated,
		CanonicalGross: decimal.RequireFromString("165.00"),
		NumTrades:      3,
		Breakdown: []TradeBreakdownLine{
			{Price: decimal.RequireFromString("0.15"), Quantity: decimal.RequireFromString("100")},
		},
	}

	if diff := cmp.Diff(a, b, decimalTransformer(), cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("AlertRecord mismatch (-want +got):\n%s", diff)
	}
}
