// Package marketdata is the Market Data Client (spec §4.2): a
// gobreaker-wrapped HTTP client used for venue ticker/trade REST calls,
// reference-rate lookups and 24h volume reads feeding the threshold
// controller.
package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/sawpanic/xbtalert/infra/breakers"
)

// ErrorKind classifies a failed request per spec §4.2 so callers (the
// availability probe, the threshold controller) can react differently to
// a timeout than to a hard 401.
type ErrorKind int

const (
	ErrKindNone ErrorKind = iota
	ErrKindTimeout
	ErrKindConnection
	ErrKindRateLimited
	ErrKindUnauthorized
	ErrKindOther
)

// RequestError wraps a failed venue call with its classified kind.
type RequestError struct {
	Venue string
	Kind  ErrorKind
	Err   error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("marketdata: %s: %v", e.Venue, e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }

func classify(resp *http.Response, err error) ErrorKind {
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return ErrKindTimeout
		}
		return ErrKindConnection
	}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrKindRateLimited
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrKindUnauthorized
	case resp.StatusCode >= 400:
		return ErrKindOther
	default:
		return ErrKindNone
	}
}

// Ticker is the normalized response shape across venues for a last-price
// and 24h-volume read.
type Ticker struct {
	LastPrice decimal.Decimal
	Volume24h decimal.Decimal
}

// Client issues REST calls against a single venue, protected by a
// circuit breaker (per infra/breakers) and a token-bucket rate limiter
// sized to the venue's published limit (spec §4.4).
type Client struct {
	Venue   string
	BaseURL string

	httpClient *http.Client
	breaker    *breakers.Breaker
	limiter    *rate.Limiter
}

// NewClient builds a Market Data Client for one venue. rps/burst size the
// venue's REST rate-limit budget; timeout bounds every request.
func NewClient(venue, baseURL string, rps float64, burst int, timeout time.Duration) *Client {
	return &Client{
		Venue:      venue,
		BaseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		breaker:    breakers.New(venue),
		limiter:    rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// GetJSON issues a GET request against path, waits on the rate limiter,
// routes the call through the circuit breaker, and decodes the JSON body
// into out. Errors are RequestError values classified per spec §4.2.
func (c *Client) GetJSON(ctx context.Context, path string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &RequestError{Venue: c.Venue, Kind: ErrKindTimeout, Err: err}
	}

	raw, err := c.breaker.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
		if err != nil {
			return nil, err
		}
		resp, err := c.httpClient.Do(req)
		kind := classify(resp, err)
		if err != nil {
			return nil, &RequestError{Venue: c.Venue, Kind: kind, Err: err}
		}
		defer resp.Body.Close()
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return nil, &RequestError{Venue: c.Venue, Kind: ErrKindOther, Err: readErr}
		}
		if kind != ErrKindNone {
			return nil, &RequestError{Venue: c.Venue, Kind: kind, Err: fmt.Errorf("status %d: %s", resp.StatusCode, body)}
		}
		return body, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) {
			return &RequestError{Venue: c.Venue, Kind: ErrKindConnection, Err: err}
		}
		return err
	}

	body, _ := raw.([]byte)
	if err := json.Unmarshal(body, out); err != nil {
		return &RequestError{Venue: c.Venue, Kind: ErrKindOther, Err: fmt.Errorf("decode: %w", err)}
	}
	return nil
}
