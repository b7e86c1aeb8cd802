// Package supervisor owns the pipeline's runtime lifecycle (spec §4.9):
// starting every venue adapter, the availability probe, the threshold
// controller and the aggregation sweep loop, fanning their output into
// the alert dispatcher, and shutting everything down cooperatively when
// its context is cancelled.
package supervisor

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/xbtalert/internal/aggregate"
	"github.com/sawpanic/xbtalert/internal/alert"
	"github.com/sawpanic/xbtalert/internal/availability"
	"github.com/sawpanic/xbtalert/internal/config"
	"github.com/sawpanic/xbtalert/internal/metrics"
	"github.com/sawpanic/xbtalert/internal/model"
	"github.com/sawpanic/xbtalert/internal/normalize"
	"github.com/sawpanic/xbtalert/internal/threshold"
	"github.com/sawpanic/xbtalert/internal/venue"
)

// VenueAdapter is the subset of *venue.Adapter the Supervisor drives.
type VenueAdapter interface {
	Run(ctx context.Context)
	State() venue.State
}

// Supervisor wires the pipeline's long-running components together and
// drives their lifecycle.
type Supervisor struct {
	store      *config.Store
	probe      *availability.Probe
	controller *threshold.Controller
	normalizer *normalize.Normalizer
	engine     *aggregate.Engine
	dispatcher *alert.Dispatcher
	adapters   map[string]VenueAdapter
	metrics    *metrics.Registry

	sweepInterval time.Duration
	gaugeInterval time.Duration

	mu      sync.RWMutex
	running bool
	runCtx  context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Option configures optional Supervisor behavior.
type Option func(*Supervisor)

// WithSweepInterval overrides the default 1s aggregation-bucket sweep cadence.
func WithSweepInterval(d time.Duration) Option {
	return func(s *Supervisor) { s.sweepInterval = d }
}

// WithMetrics attaches a pipeline metrics registry; without it, venue and
// threshold gauges simply aren't published.
func WithMetrics(reg *metrics.Registry) Option {
	return func(s *Supervisor) { s.metrics = reg }
}

// New builds a Supervisor from its already-constructed component parts.
func New(
	store *config.Store,
	probe *availability.Probe,
	controller *threshold.Controller,
	normalizer *normalize.Normalizer,
	engine *aggregate.Engine,
	dispatcher *alert.Dispatcher,
	adapters map[string]VenueAdapter,
	opts ...Option,
) *Supervisor {
	s := &Supervisor{
		store:         store,
		probe:         probe,
		controller:    controller,
		normalizer:    normalizer,
		engine:        engine,
		dispatcher:    dispatcher,
		adapters:      adapters,
		sweepInterval: time.Second,
		gaugeInterval: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// VenueStates returns a snapshot of each adapter's current connection
// state, keyed by venue name, for the /status control-surface endpoint.
func (s *Supervisor) VenueStates() map[string]venue.State {
	out := make(map[string]venue.State, len(s.adapters))
	for name, a := range s.adapters {
		out[name] = a.State()
	}
	return out
}

// Running reports whether the Supervisor is currently driving its
// component goroutines.
func (s *Supervisor) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Start launches every long-running component in its own goroutine. It
// is a no-op if already running.
func (s *Supervisor) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.runCtx = runCtx
	s.cancel = cancel
	s.running = true
	s.mu.Unlock()

	s.spawn(func(ctx context.Context) { s.probe.Run(ctx) })
	s.spawn(func(ctx context.Context) { s.controller.Run(ctx) })
	s.spawn(s.runSweepLoop)
	s.spawn(s.runAlertLoop)
	if s.metrics != nil {
		s.spawn(s.runGaugeLoop)
	}

	for venueName, a := range s.adapters {
		name := venueName
		adapter := a
		s.spawn(func(ctx context.Context) {
			log.Info().Str("venue", name).Msg("starting venue adapter")
			adapter.Run(ctx)
		})
	}

	log.Info().Int("venues", len(s.adapters)).Msg("supervisor started")
}

func (s *Supervisor) spawn(fn func(ctx context.Context)) {
	s.mu.RLock()
	ctx := s.runCtx
	s.mu.RUnlock()
	if ctx == nil {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn(ctx)
	}()
}

func (s *Supervisor) runSweepLoop(ctx context.Context) {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.engine.Sweep()
		}
	}
}

func (s *Supervisor) runGaugeLoop(ctx context.Context) {
	ticker := time.NewTicker(s.gaugeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for name, st := range s.VenueStates() {
				val := 0.0
				if st == venue.StateSubscribed {
					val = 1.0
				}
				s.metrics.ActiveVenues.WithLabelValues(name).Set(val)
			}
			thresh, _ := s.controller.Threshold().Float64()
			s.metrics.ThresholdGauge.Set(thresh)
		}
	}
}

func (s *Supervisor) runAlertLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case rec, ok := <-s.engine.Alerts():
			if !ok {
				return
			}
			s.deliver(ctx, rec)
		}
	}
}

func (s *Supervisor) deliver(ctx context.Context, rec model.AlertRecord) {
	if !s.controller.Passes(rec.CanonicalGross) {
		log.Debug().Str("pair", rec.Pair.String()).Msg("alert below threshold, dropped")
		s.countDrop("below_threshold")
		return
	}
	cfg := s.store.Get()
	if cfg.BotToken == "" || len(cfg.ActiveChatIDs) == 0 {
		log.Warn().Msg("no chat destinations configured, alert dropped")
		s.countDrop("no_destinations")
		return
	}
	s.dispatcher.Send(ctx, rec, cfg.ActiveChatIDs)
}

func (s *Supervisor) countDrop(reason string) {
	if s.metrics != nil {
		s.metrics.TradesDropped.WithLabelValues(reason).Inc()
	}
}

// InjectSyntheticTrade feeds a synthetic NormalizedTrade directly into
// the aggregation engine, bypassing venue ingestion. It backs the
// control-plane test endpoint (SPEC_FULL.md §5).
func (s *Supervisor) InjectSyntheticTrade(ctx context.Context, t model.TradeEvent) bool {
	t.Synthetic = true
	nt, ok := s.normalizer.Normalize(ctx, t)
	if !ok {
		s.countDrop("no_reference_rate")
		return false
	}
	s.engine.Add(nt)
	return true
}

// Stop cancels every running component goroutine and waits for them to
// exit.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	s.running = false
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
	log.Info().Msg("supervisor stopped")
}
