package httpapi

import "time"

// ErrorResponse is the standard JSON error envelope for every failed
// control-surface request.
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Code      string    `json:"code"`
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// StatusResponse reports the Supervisor's current run state.
type StatusResponse struct {
	Running       bool              `json:"running"`
	Venues        map[string]string `json:"venues"`
	Threshold     string            `json:"threshold"`
	DynamicActive bool              `json:"dynamic_threshold_active"`
}

// HealthResponse is the liveness probe body.
type HealthResponse struct {
	Status string `json:"status"`
}

// DebugResponse is the body of GET /debug: the administration-layer
// debug() snapshot named in spec §6 (threshold, destination count,
// aggregation state, window_seconds, dynamic state, whether an alert
// image is configured, wall-clock time). The image field is a flag, not
// an image count.
type DebugResponse struct {
	Threshold          string    `json:"threshold"`
	DestinationCount   int       `json:"destination_count"`
	AggregationEnabled bool      `json:"aggregation_enabled"`
	WindowSeconds      int       `json:"window_seconds"`
	DynamicEnabled     bool      `json:"dynamic_threshold_enabled"`
	DynamicMin         string    `json:"dynamic_threshold_min"`
	DynamicMax         string    `json:"dynamic_threshold_max"`
	ImageConfigured    bool      `json:"image_configured"`
	WallClock          time.Time `json:"wall_clock"`
}

// ThresholdPatchRequest is the body of POST /control/threshold.
type ThresholdPatchRequest struct {
	ValueRequire float64 `json:"value_require"`
}

// AggregationToggleRequest is the body of POST /control/aggregation/toggle.
type AggregationToggleRequest struct {
	Enabled       bool `json:"enabled"`
	WindowSeconds int  `json:"window_seconds,omitempty"`
}

// SyntheticTradeRequest is the body of POST /control/test, used to inject
// a synthetic trade directly into the aggregation engine without a live
// venue connection (SPEC_FULL.md §5).
type SyntheticTradeRequest struct {
	Venue       string  `json:"venue"`
	Base        string  `json:"base"`
	Quote       string  `json:"quote"`
	Side        string  `json:"side"`
	Price       float64 `json:"price"`
	Quantity    float64 `json:"quantity"`
	EventTimeMs int64   `json:"event_time_ms,omitempty"`
}
