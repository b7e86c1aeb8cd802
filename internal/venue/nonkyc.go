package venue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sawpanic/xbtalert/internal/model"
)

// NonKYCProtocol implements the NonKYC JSON-RPC/WebSocket wire format
// (spec §6): subscribeTrades/updateTrades for the trade feed and
// subscribeOrderbook/updateOrderbook (with a monotonic sequence number)
// for the sweep feed.
type NonKYCProtocol struct {
	Symbol string // e.g. "XBT/USDT"
	Pair   model.Pair

	// Sweep detection (spec §4.4): an order-book update that, compared
	// with the previous one, consumes (removes or shrinks) at least
	// minOrdersFilled ask levels is treated as a sweep and surfaced as a
	// synthetic TradeEvent.
	Sweep sweepDetector
}

// NewNonKYCProtocol builds the NonKYC Protocol for one trading pair.
func NewNonKYCProtocol(symbol string, pair model.Pair, minOrdersFilled int) *NonKYCProtocol {
	return &NonKYCProtocol{
		Symbol: symbol,
		Pair:   pair,
		Sweep:  sweepDetector{minLevels: minOrdersFilled},
	}
}

func (p *NonKYCProtocol) Name() string { return "nonkyc" }

type nonKYCSubscribeFrame struct {
	Method string         `json:"method"`
	Params map[string]any `json:"params"`
	ID     int            `json:"id"`
}

func (p *NonKYCProtocol) SubscribeFrames() ([][]byte, error) {
	trades, err := json.Marshal(nonKYCSubscribeFrame{
		Method: "subscribeTrades",
		Params: map[string]any{"symbol": p.Symbol},
		ID:     1,
	})
	if err != nil {
		return nil, err
	}
	book, err := json.Marshal(nonKYCSubscribeFrame{
		Method: "subscribeOrderbook",
		Params: map[string]any{"symbol": p.Symbol, "limit": 20},
		ID:     2,
	})
	if err != nil {
		return nil, err
	}
	return [][]byte{trades, book}, nil
}

func (p *NonKYCProtocol) PingFrame() []byte {
	f, _ := json.Marshal(map[string]any{"method": "ping", "id": 0})
	return f
}

type nonKYCEnvelope struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

type nonKYCUpdateTrades struct {
	Symbol string `json:"symbol"`
	Data   []struct {
		Price     string `json:"price"`
		Quantity  string `json:"quantity"`
		Side      string `json:"side"`
		Timestamp int64  `json:"timestamp"`
	} `json:"data"`
}

type nonKYCUpdateOrderbook struct {
	Symbol   string `json:"symbol"`
	Sequence int64  `json:"sequence"`
	Asks     [][2]string `json:"asks"`
	Bids     [][2]string `json:"bids"`
}

func (p *NonKYCProtocol) Decode(raw []byte) ([]model.TradeEvent, error) {
	var env nonKYCEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("envelope: %w", err)
	}

	switch env.Method {
	case "updateTrades":
		var payload nonKYCUpdateTrades
		if err := json.Unmarshal(env.Params, &payload); err != nil {
			return nil, fmt.Errorf("updateTrades payload: %w", err)
		}
		now := time.Now()
		events := make([]model.TradeEvent, 0, len(payload.Data))
		for _, d := range payload.Data {
			price, err := decimal.NewFromString(d.Price)
			if err != nil {
				continue
			}
			qty, err := decimal.NewFromString(d.Quantity)
			if err != nil {
				continue
			}
			events = append(events, model.TradeEvent{
				Venue:       p.Name(),
				Pair:        p.Pair,
				Side:        model.NormalizeSide(d.Side),
				Price:       price,
				Quantity:    qty,
				Gross:       price.Mul(qty),
				EventTimeMs: d.Timestamp,
				ReceiveTime: now,
				VenueURL:    "wss://api.nonkyc.io/ws",
			})
		}
		return events, nil

	case "updateOrderbook":
		var payload nonKYCUpdateOrderbook
		if err := json.Unmarshal(env.Params, &payload); err != nil {
			return nil, fmt.Errorf("updateOrderbook payload: %w", err)
		}
		synth, ok := p.Sweep.observe(payload.Sequence, payload.Asks)
		if !ok {
			return nil, nil
		}
		synth.Venue = p.Name()
		synth.Pair = p.Pair
		synth.VenueURL = "wss://api.nonkyc.io/ws"
		return []model.TradeEvent{synth}, nil

	default:
		return nil, nil
	}
}
