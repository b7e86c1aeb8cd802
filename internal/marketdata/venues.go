package marketdata

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// nonKYCTickerResponse mirrors NonKYC's GET /api/v2/ticker/:symbol shape
// (spec §6).
type nonKYCTickerResponse struct {
	LastPriceNumber string `json:"lastPriceNumber"`
	VolumeNumber    string `json:"volumeNumber"`
}

// NonKYCTicker fetches the last price and 24h volume for symbol
// (e.g. "XBT_USDT") from NonKYC.
func NonKYCTicker(ctx context.Context, c *Client, symbol string) (Ticker, error) {
	var resp nonKYCTickerResponse
	if err := c.GetJSON(ctx, fmt.Sprintf("/api/v2/ticker/%s", symbol), &resp); err != nil {
		return Ticker{}, err
	}
	return decodeTicker(c.Venue, resp.LastPriceNumber, resp.VolumeNumber)
}

// nonKYCTradeResponse mirrors a single element of NonKYC's recent-trades
// REST response, used by the availability probe as a liveness fallback.
type nonKYCTradeResponse struct {
	Price     string `json:"price"`
	Quantity  string `json:"quantity"`
	Side      string `json:"side"`
	Timestamp int64  `json:"timestamp"`
}

// NonKYCRecentTrades fetches the most recent trades for symbol.
func NonKYCRecentTrades(ctx context.Context, c *Client, symbol string) ([]nonKYCTradeResponse, error) {
	var resp []nonKYCTradeResponse
	if err := c.GetJSON(ctx, fmt.Sprintf("/api/v2/trades/%s", symbol), &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// coinExTickerResponse mirrors CoinEx's GET /v2/spot/ticker response.
type coinExTickerResponse struct {
	Data []struct {
		Last   string `json:"last"`
		Volume string `json:"volume"`
	} `json:"data"`
}

// CoinExTicker fetches the last price and 24h volume from CoinEx.
func CoinExTicker(ctx context.Context, c *Client, market string) (Ticker, error) {
	var resp coinExTickerResponse
	if err := c.GetJSON(ctx, fmt.Sprintf("/v2/spot/ticker?market=%s", market), &resp); err != nil {
		return Ticker{}, err
	}
	if len(resp.Data) == 0 {
		return Ticker{}, &RequestError{Venue: c.Venue, Kind: ErrKindOther, Err: fmt.Errorf("empty ticker data for %s", market)}
	}
	return decodeTicker(c.Venue, resp.Data[0].Last, resp.Data[0].Volume)
}

// ascendExTickerResponse mirrors AscendEX's GET /api/pro/v1/ticker response.
type ascendExTickerResponse struct {
	Data struct {
		Close string `json:"close"`
		Vol   string `json:"volume"`
	} `json:"data"`
}

// AscendEXTicker fetches the last price and 24h volume from AscendEX.
func AscendEXTicker(ctx context.Context, c *Client, symbol string) (Ticker, error) {
	var resp ascendExTickerResponse
	if err := c.GetJSON(ctx, fmt.Sprintf("/api/pro/v1/ticker?symbol=%s", symbol), &resp); err != nil {
		return Ticker{}, err
	}
	return decodeTicker(c.Venue, resp.Data.Close, resp.Data.Vol)
}

func decodeTicker(venue, price, volume string) (Ticker, error) {
	p, err := decimal.NewFromString(price)
	if err != nil {
		return Ticker{}, &RequestError{Venue: venue, Kind: ErrKindOther, Err: fmt.Errorf("parse price %q: %w", price, err)}
	}
	v, err := decimal.NewFromString(volume)
	if err != nil {
		return Ticker{}, &RequestError{Venue: venue, Kind: ErrKindOther, Err: fmt.Errorf("parse volume %q: %w", volume, err)}
	}
	return Ticker{LastPrice: p, Volume24h: v}, nil
}

// ReferenceRate fetches the BTC/USDT reference rate used by the
// Cross-Pair Normalizer (spec §4.5), sourced from NonKYC per SPEC_FULL §4.2.
func ReferenceRate(ctx context.Context, c *Client) (decimal.Decimal, error) {
	t, err := NonKYCTicker(ctx, c, "BTC_USDT")
	if err != nil {
		return decimal.Decimal{}, err
	}
	return t.LastPrice, nil
}
