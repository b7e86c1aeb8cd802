package venue

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/sawpanic/xbtalert/internal/model"
)

// sweepDetector watches consecutive order-book updates for a venue's
// sweep feed (spec §4.4): when at least minLevels ask levels vanish or
// shrink between two increasing sequence numbers, it treats the consumed
// liquidity as a buy sweep and synthesizes a TradeEvent covering the
// consumed volume at the volume-weighted price of the consumed quantity.
type sweepDetector struct {
	minLevels int

	haveLast bool
	lastSeq  int64
	lastAsks map[string]decimal.Decimal // price string -> size
}

// observe processes one orderbook update's ask side. It returns a
// synthesized TradeEvent and ok=true when this update qualifies as a
// sweep.
func (d *sweepDetector) observe(seq int64, asks [][2]string) (model.TradeEvent, bool) {
	current := make(map[string]decimal.Decimal, len(asks))
	for _, lvl := range asks {
		size, err := decimal.NewFromString(lvl[1])
		if err != nil {
			continue
		}
		current[lvl[0]] = size
	}

	defer func() {
		d.lastAsks = current
		d.lastSeq = seq
		d.haveLast = true
	}()

	if !d.haveLast || seq <= d.lastSeq {
		return model.TradeEvent{}, false
	}

	var consumedLevels int
	var consumedQty decimal.Decimal
	var consumedGross decimal.Decimal

	for priceStr, prevSize := range d.lastAsks {
		price, err := decimal.NewFromString(priceStr)
		if err != nil {
			continue
		}
		newSize, stillThere := current[priceStr]
		switch {
		case !stillThere:
			consumedLevels++
			consumedQty = consumedQty.Add(prevSize)
			consumedGross = consumedGross.Add(prevSize.Mul(price))
		case newSize.LessThan(prevSize):
			diff := prevSize.Sub(newSize)
			consumedLevels++
			consumedQty = consumedQty.Add(diff)
			consumedGross = consumedGross.Add(diff.Mul(price))
		}
	}

	if consumedLevels < d.minLevels || consumedQty.IsZero() {
		return model.TradeEvent{}, false
	}

	avgPrice := consumedGross.Div(consumedQty)
	return model.TradeEvent{
		Side:        model.SideBuy,
		Price:       avgPrice,
		Quantity:    consumedQty,
		Gross:       consumedGross,
		EventTimeMs: time.Now().UnixMilli(),
		ReceiveTime: time.Now(),
		Synthetic:   true,
	}, true
}
