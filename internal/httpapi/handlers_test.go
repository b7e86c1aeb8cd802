package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/xbtalert/internal/config"
	"github.com/sawpanic/xbtalert/internal/model"
	"github.com/sawpanic/xbtalert/internal/venue"
)

type fakeSupervisor struct {
	running   bool
	injected  []model.TradeEvent
	injectOK  bool
	startedAt bool
}

func (f *fakeSupervisor) Start(ctx context.Context)                          { f.running = true; f.startedAt = true }
func (f *fakeSupervisor) Stop()                                              { f.running = false }
func (f *fakeSupervisor) Running() bool                                      { return f.running }
func (f *fakeSupervisor) VenueStates() map[string]venue.State {
	return map[string]venue.State{"nonkyc": venue.StateSubscribed}
}
func (f *fakeSupervisor) InjectSyntheticTrade(ctx context.Context, t model.TradeEvent) bool {
	f.injected = append(f.injected, t)
	return f.injectOK
}

func newTestHandlers(t *testing.T) (*Handlers, *fakeSupervisor) {
	t.Helper()
	store, err := config.Load(filepath.Join(t.TempDir(), "config.yaml"), nil)
	require.NoError(t, err)
	sup := &fakeSupervisor{injectOK: true}
	return NewHandlers(store, sup), sup
}

func TestStatusReportsVenueStates(t *testing.T) {
	h, sup := newTestHandlers(t)
	sup.running = true

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	h.Status(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Running)
	assert.Equal(t, "subscribed", resp.Venues["nonkyc"])
}

func TestControlTestInjectsSyntheticTrade(t *testing.T) {
	h, sup := newTestHandlers(t)

	body, _ := json.Marshal(SyntheticTradeRequest{
		Venue: "nonkyc", Base: "XBT", Quote: "USDT", Side: "buy", Price: 100, Quantity: 5,
	})
	req := httptest.NewRequest(http.MethodPost, "/control/test", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.ControlTest(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, sup.injected, 1)
	assert.Equal(t, "nonkyc", sup.injected[0].Venue)
}

func TestControlTestReportsRejectionWhenDropped(t *testing.T) {
	h, sup := newTestHandlers(t)
	sup.injectOK = false

	body, _ := json.Marshal(SyntheticTradeRequest{Venue: "coinex", Base: "XBT", Quote: "EUR", Side: "buy", Price: 1, Quantity: 1})
	req := httptest.NewRequest(http.MethodPost, "/control/test", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.ControlTest(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestDebugReportsConfigSnapshot(t *testing.T) {
	h, _ := newTestHandlers(t)

	req := httptest.NewRequest(http.MethodGet, "/debug", nil)
	rec := httptest.NewRecorder()
	h.Debug(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp DebugResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Threshold)
	assert.WithinDuration(t, resp.WallClock, resp.WallClock, 0)
}

func TestControlThresholdRejectsInvalidValue(t *testing.T) {
	h, _ := newTestHandlers(t)

	body, _ := json.Marshal(ThresholdPatchRequest{ValueRequire: -5})
	req := httptest.NewRequest(http.MethodPost, "/control/threshold", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.ControlThreshold(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}
