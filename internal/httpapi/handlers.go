package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sawpanic/xbtalert/internal/config"
	"github.com/sawpanic/xbtalert/internal/model"
	"github.com/sawpanic/xbtalert/internal/venue"
)

type requestIDKey struct{}

// Handlers implements the pipeline's control and observability surface
// (spec §4.9): status, health, and runtime control of the Supervisor.
type Handlers struct {
	store      *config.Store
	supervisor Supervisor
}

// Supervisor is the subset of *supervisor.Supervisor the control surface
// drives, kept narrow so httpapi never imports the supervisor package's
// other dependencies.
type Supervisor interface {
	Start(ctx context.Context)
	Stop()
	Running() bool
	InjectSyntheticTrade(ctx context.Context, t model.TradeEvent) bool
	VenueStates() map[string]venue.State
}

// NewHandlers builds the Handlers bound to store and supervisor.
func NewHandlers(store *config.Store, supervisor Supervisor) *Handlers {
	return &Handlers{store: store, supervisor: supervisor}
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, `{"error":"json_encoding_failed"}`, http.StatusInternalServerError)
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	requestID, _ := r.Context().Value(requestIDKey{}).(string)
	if requestID == "" {
		requestID = "unknown"
	}
	h.writeJSON(w, status, ErrorResponse{
		Error:     http.StatusText(status),
		Message:   message,
		Code:      code,
		RequestID: requestID,
		Timestamp: time.Now().UTC(),
	})
}

// NotFound handles unmatched routes.
func (h *Handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	h.writeError(w, r, http.StatusNotFound, "endpoint_not_found", "the requested endpoint does not exist")
}

// Health is the liveness probe.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Status reports the Supervisor's run state and venue connectivity.
func (h *Handlers) Status(w http.ResponseWriter, r *http.Request) {
	cfg := h.store.Get()
	venues := make(map[string]string)
	for name, st := range h.supervisor.VenueStates() {
		venues[name] = st.String()
	}
	h.writeJSON(w, http.StatusOK, StatusResponse{
		Running:       h.supervisor.Running(),
		Venues:        venues,
		Threshold:     decimal.NewFromFloat(cfg.ValueRequire).StringFixed(2),
		DynamicActive: cfg.DynamicThreshold.Enabled,
	})
}

// Debug returns the administration-layer debug() snapshot (spec §6):
// threshold, destination count, aggregation state, window_seconds,
// dynamic threshold band, whether an alert image is configured, and the
// current wall-clock time.
func (h *Handlers) Debug(w http.ResponseWriter, r *http.Request) {
	cfg := h.store.Get()
	h.writeJSON(w, http.StatusOK, DebugResponse{
		Threshold:          decimal.NewFromFloat(cfg.ValueRequire).StringFixed(2),
		DestinationCount:   len(cfg.ActiveChatIDs),
		AggregationEnabled: cfg.TradeAggregation.Enabled,
		WindowSeconds:      cfg.TradeAggregation.WindowSeconds,
		DynamicEnabled:     cfg.DynamicThreshold.Enabled,
		DynamicMin:         decimal.NewFromFloat(cfg.DynamicThreshold.Min).StringFixed(2),
		DynamicMax:         decimal.NewFromFloat(cfg.DynamicThreshold.Max).StringFixed(2),
		ImageConfigured:    cfg.ImagePath != "",
		WallClock:          time.Now().UTC(),
	})
}

// ControlStart starts the Supervisor if it is not already running.
func (h *Handlers) ControlStart(w http.ResponseWriter, r *http.Request) {
	if h.supervisor.Running() {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "already_running"})
		return
	}
	h.supervisor.Start(context.Background())
	h.writeJSON(w, http.StatusAccepted, map[string]string{"status": "starting"})
}

// ControlStop stops the Supervisor if it is running.
func (h *Handlers) ControlStop(w http.ResponseWriter, r *http.Request) {
	h.supervisor.Stop()
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

// ControlThreshold applies a one-off static threshold override.
func (h *Handlers) ControlThreshold(w http.ResponseWriter, r *http.Request) {
	var req ThresholdPatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	err := h.store.Update(func(cfg *config.Config) { cfg.ValueRequire = req.ValueRequire })
	if err != nil {
		h.writeError(w, r, http.StatusUnprocessableEntity, "rejected", err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// ControlAggregationToggle sets trade_aggregation.enabled to the request's
// enabled value and optionally resizes its window. It does not invert the
// current setting: a request without "enabled" disables aggregation.
func (h *Handlers) ControlAggregationToggle(w http.ResponseWriter, r *http.Request) {
	var req AggregationToggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	err := h.store.Update(func(cfg *config.Config) {
		cfg.TradeAggregation.Enabled = req.Enabled
		if req.WindowSeconds > 0 {
			cfg.TradeAggregation.WindowSeconds = req.WindowSeconds
		}
	})
	if err != nil {
		h.writeError(w, r, http.StatusUnprocessableEntity, "rejected", err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// ControlTest injects a synthetic trade directly into the aggregation
// engine without a live venue connection (SPEC_FULL.md §5).
func (h *Handlers) ControlTest(w http.ResponseWriter, r *http.Request) {
	var req SyntheticTradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}

	eventTime := req.EventTimeMs
	if eventTime == 0 {
		eventTime = time.Now().UnixMilli()
	}
	trade := model.TradeEvent{
		Venue:       req.Venue,
		Pair:        model.Pair{Base: req.Base, Quote: req.Quote},
		Side:        model.NormalizeSide(req.Side),
		Price:       decimal.NewFromFloat(req.Price),
		Quantity:    decimal.NewFromFloat(req.Quantity),
		Gross:       decimal.NewFromFloat(req.Price * req.Quantity),
		EventTimeMs: eventTime,
		ReceiveTime: time.Now(),
	}

	accepted := h.supervisor.InjectSyntheticTrade(r.Context(), trade)
	if !accepted {
		h.writeError(w, r, http.StatusUnprocessableEntity, "no_reference_rate", "trade dropped: no reference rate available for cross-pair conversion")
		return
	}
	h.writeJSON(w, http.StatusAccepted, map[string]string{"status": "injected"})
}
