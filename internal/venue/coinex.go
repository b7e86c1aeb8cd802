package venue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sawpanic/xbtalert/internal/model"
)

// CoinExProtocol implements CoinEx's deals.subscribe/deals.update wire
// format (spec §6).
type CoinExProtocol struct {
	Market string // e.g. "XBTUSDT"
	Pair   model.Pair
}

func NewCoinExProtocol(market string, pair model.Pair) *CoinExProtocol {
	return &CoinExProtocol{Market: market, Pair: pair}
}

func (p *CoinExProtocol) Name() string { return "coinex" }

type coinExRequestFrame struct {
	Method string `json:"method"`
	Params []any  `json:"params"`
	ID     int    `json:"id"`
}

func (p *CoinExProtocol) SubscribeFrames() ([][]byte, error) {
	f, err := json.Marshal(coinExRequestFrame{
		Method: "deals.subscribe",
		Params: []any{p.Market},
		ID:     1,
	})
	if err != nil {
		return nil, err
	}
	return [][]byte{f}, nil
}

func (p *CoinExProtocol) PingFrame() []byte {
	f, _ := json.Marshal(coinExRequestFrame{Method: "server.ping", Params: []any{}, ID: 0})
	return f
}

type coinExUpdateFrame struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// coinExDeal is one deal of a deals.update message, whose params are a
// two-element array: [market, [deals...]].
type coinExDeal struct {
	Price     string `json:"price"`
	Amount    string `json:"amount"`
	Type      string `json:"type"` // "buy" or "sell"
	Timestamp int64  `json:"date_ms"`
}

func (p *CoinExProtocol) Decode(raw []byte) ([]model.TradeEvent, error) {
	var env coinExUpdateFrame
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("envelope: %w", err)
	}
	if env.Method != "deals.update" {
		return nil, nil
	}

	var params []json.RawMessage
	if err := json.Unmarshal(env.Params, &params); err != nil || len(params) < 2 {
		return nil, fmt.Errorf("deals.update params: %w", err)
	}

	var deals []coinExDeal
	if err := json.Unmarshal(params[1], &deals); err != nil {
		return nil, fmt.Errorf("deals payload: %w", err)
	}

	now := time.Now()
	events := make([]model.TradeEvent, 0, len(deals))
	for _, d := range deals {
		price, err := decimal.NewFromString(d.Price)
		if err != nil {
			continue
		}
		qty, err := decimal.NewFromString(d.Amount)
		if err != nil {
			continue
		}
		eventTime := d.Timestamp
		if eventTime == 0 {
			eventTime = now.UnixMilli()
		}
		events = append(events, model.TradeEvent{
			Venue:       p.Name(),
			Pair:        p.Pair,
			Side:        model.NormalizeSide(d.Type),
			Price:       price,
			Quantity:    qty,
			Gross:       price.Mul(qty),
			EventTimeMs: eventTime,
			ReceiveTime: now,
			VenueURL:    "wss://socket.coinex.com/",
		})
	}
	return events, nil
}
