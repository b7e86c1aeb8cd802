package marketdata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNonKYCTickerDecodesPriceAndVolume(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"lastPriceNumber":"61234.50","volumeNumber":"12.5"}`))
	}))
	defer srv.Close()

	c := NewClient("nonkyc", srv.URL, 10, 10, time.Second)
	ticker, err := NonKYCTicker(context.Background(), c, "BTC_USDT")
	require.NoError(t, err)
	assert.Equal(t, "61234.5", ticker.LastPrice.String())
	assert.Equal(t, "12.5", ticker.Volume24h.String())
}

func TestGetJSONClassifiesUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient("coinex", srv.URL, 10, 10, time.Second)
	var out map[string]any
	err := c.GetJSON(context.Background(), "/v2/spot/ticker", &out)
	require.Error(t, err)

	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, ErrKindUnauthorized, reqErr.Kind)
}

func TestGetJSONClassifiesRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient("ascendex", srv.URL, 10, 10, time.Second)
	var out map[string]any
	err := c.GetJSON(context.Background(), "/api/pro/v1/ticker", &out)
	require.Error(t, err)

	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, ErrKindRateLimited, reqErr.Kind)
}
