// Package metrics centralizes the pipeline's Prometheus instrumentation
// outside the alert dispatcher's own delivery counters, following the
// teacher's MetricsRegistry-plus-MustRegister-once convention.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the pipeline-wide gauges and counters exposed on
// /metrics, independent of the alert dispatcher's per-destination
// delivery counters.
type Registry struct {
	BucketsClosed  prometheus.Counter
	TradesDropped  *prometheus.CounterVec
	ActiveVenues   *prometheus.GaugeVec
	ThresholdGauge prometheus.Gauge
}

// NewRegistry builds and registers every pipeline metric against reg in
// one call, matching the teacher's "construct everything, then
// MustRegister the whole set" pattern.
func NewRegistry(reg prometheus.Registerer) *Registry {
	r := &Registry{
		BucketsClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "xbtalert_aggregation_buckets_closed_total",
			Help: "Total aggregation buckets closed and emitted as alert candidates",
		}),
		TradesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "xbtalert_trades_dropped_total",
			Help: "Total trades dropped before reaching aggregation, by reason",
		}, []string{"reason"}),
		ActiveVenues: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "xbtalert_venue_subscribed",
			Help: "1 if the venue stream adapter is subscribed, 0 otherwise",
		}, []string{"venue"}),
		ThresholdGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "xbtalert_current_threshold",
			Help: "Current buy-gross alert threshold in USDT",
		}),
	}
	reg.MustRegister(r.BucketsClosed, r.TradesDropped, r.ActiveVenues, r.ThresholdGauge)
	return r
}

// Handler exposes the default Prometheus registry over HTTP.
func Handler() http.Handler {
	return promhttp.Handler()
}
