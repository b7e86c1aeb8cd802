package normalize

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/xbtalert/internal/model"
)

func TestNormalizePassesThroughCanonicalQuote(t *testing.T) {
	n := NewNormalizer("USDT", nil, nil, time.Minute)

	trade := model.TradeEvent{
		Pair:     model.Pair{Base: "XBT", Quote: "USDT"},
		Price:    decimal.NewFromInt(100),
		Quantity: decimal.NewFromInt(2),
		Gross:    decimal.NewFromInt(200),
	}

	nt, ok := n.Normalize(context.Background(), trade)
	require.True(t, ok)
	assert.True(t, nt.CanonicalPrice.Equal(decimal.NewFromInt(100)))
	assert.False(t, nt.ReferenceRateUsed)
}

func TestNormalizeConvertsNonCanonicalQuote(t *testing.T) {
	fetch := func(ctx context.Context) (decimal.Decimal, error) {
		return decimal.NewFromInt(60000), nil
	}
	n := NewNormalizer("USDT", nil, fetch, time.Minute)

	trade := model.TradeEvent{
		Pair:     model.Pair{Base: "XBT", Quote: "BTC"},
		Price:    decimal.NewFromFloat(0.5),
		Quantity: decimal.NewFromInt(1),
		Gross:    decimal.NewFromFloat(0.5),
	}

	nt, ok := n.Normalize(context.Background(), trade)
	require.True(t, ok)
	assert.True(t, nt.ReferenceRateUsed)
	assert.True(t, nt.CanonicalPrice.Equal(decimal.NewFromInt(30000)))
}

func TestNormalizeDropsWhenNoRateAvailable(t *testing.T) {
	n := NewNormalizer("USDT", nil, nil, time.Minute)

	trade := model.TradeEvent{
		Pair:     model.Pair{Base: "XBT", Quote: "BTC"},
		Price:    decimal.NewFromFloat(0.5),
		Quantity: decimal.NewFromInt(1),
		Gross:    decimal.NewFromFloat(0.5),
	}

	_, ok := n.Normalize(context.Background(), trade)
	assert.False(t, ok)
}

func TestNormalizeFallsBackToStaleRateOnFetchFailure(t *testing.T) {
	calls := 0
	fetch := func(ctx context.Context) (decimal.Decimal, error) {
		calls++
		if calls == 1 {
			return decimal.NewFromInt(60000), nil
		}
		return decimal.Decimal{}, assertErr
	}
	n := NewNormalizer("USDT", nil, fetch, time.Millisecond)

	trade := model.TradeEvent{
		Pair:     model.Pair{Base: "XBT", Quote: "BTC"},
		Price:    decimal.NewFromFloat(0.5),
		Quantity: decimal.NewFromInt(1),
		Gross:    decimal.NewFromFloat(0.5),
	}

	_, ok := n.Normalize(context.Background(), trade)
	require.True(t, ok)

	time.Sleep(2 * time.Millisecond)

	nt, ok := n.Normalize(context.Background(), trade)
	require.True(t, ok)
	assert.True(t, nt.ReferenceRate.Equal(decimal.NewFromInt(60000)))
}

var assertErr = errTest("fetch failed")

type errTest string

func (e errTest) Error() string { return string(e) }
