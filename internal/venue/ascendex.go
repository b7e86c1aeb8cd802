package venue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sawpanic/xbtalert/internal/model"
)

// AscendEXProtocol implements AscendEX's {op:"sub"}/{m:"trades"} wire
// format (spec §6): trades carry a boolean "bm" treated directly as buy.
type AscendEXProtocol struct {
	Symbol string // e.g. "XBT/USDT"
	Pair   model.Pair
}

func NewAscendEXProtocol(symbol string, pair model.Pair) *AscendEXProtocol {
	return &AscendEXProtocol{Symbol: symbol, Pair: pair}
}

func (p *AscendEXProtocol) Name() string { return "ascendex" }

func (p *AscendEXProtocol) SubscribeFrames() ([][]byte, error) {
	f, err := json.Marshal(map[string]any{
		"op": "sub",
		"ch": fmt.Sprintf("trades:%s", p.Symbol),
	})
	if err != nil {
		return nil, err
	}
	return [][]byte{f}, nil
}

func (p *AscendEXProtocol) PingFrame() []byte {
	f, _ := json.Marshal(map[string]any{"op": "ping"})
	return f
}

type ascendEXTradeMessage struct {
	M      string `json:"m"`
	Symbol string `json:"symbol"`
	Data   []struct {
		Price     string `json:"p"`
		Quantity  string `json:"q"`
		Timestamp int64  `json:"ts"`
		BuyMaker  bool   `json:"bm"`
	} `json:"data"`
}

func (p *AscendEXProtocol) Decode(raw []byte) ([]model.TradeEvent, error) {
	var msg ascendEXTradeMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("envelope: %w", err)
	}
	if msg.M != "trades" {
		return nil, nil
	}

	now := time.Now()
	events := make([]model.TradeEvent, 0, len(msg.Data))
	for _, d := range msg.Data {
		price, err := decimal.NewFromString(d.Price)
		if err != nil {
			continue
		}
		qty, err := decimal.NewFromString(d.Quantity)
		if err != nil {
			continue
		}
		side := model.SideSell
		if d.BuyMaker {
			side = model.SideBuy
		}
		events = append(events, model.TradeEvent{
			Venue:       p.Name(),
			Pair:        p.Pair,
			Side:        side,
			Price:       price,
			Quantity:    qty,
			Gross:       price.Mul(qty),
			EventTimeMs: d.Timestamp,
			ReceiveTime: now,
			VenueURL:    "wss://ascendex.com/api/pro/v1/stream",
		})
	}
	return events, nil
}
