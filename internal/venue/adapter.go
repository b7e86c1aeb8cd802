// Package venue implements the Venue Stream Adapter framework (spec
// §4.4): a reconnecting WebSocket client per venue with a fixed backoff
// ladder, a liveness ping, duplicate-trade suppression and order-book
// sweep detection, feeding normalized model.TradeEvent values to the
// Aggregation Engine.
package venue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/sawpanic/xbtalert/internal/model"
)

// State is the adapter's connection lifecycle state (spec §4.4).
type State int

const (
	StateIdle State = iota
	StateDisconnected
	StateConnecting
	StateSubscribed
	StateDegraded
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateSubscribed:
		return "subscribed"
	case StateDegraded:
		return "degraded"
	default:
		return "disconnected"
	}
}

// BackoffLadder is the fixed reconnect delay sequence from spec §4.4:
// 5s, 10s, 20s, 40s, then 60s repeating.
var BackoffLadder = []time.Duration{
	5 * time.Second,
	10 * time.Second,
	20 * time.Second,
	40 * time.Second,
	60 * time.Second,
}

// BackoffDelay returns the delay for the attempt'th reconnect (0-based),
// clamped to the last ladder rung once exhausted.
func BackoffDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= len(BackoffLadder) {
		attempt = len(BackoffLadder) - 1
	}
	return BackoffLadder[attempt]
}

// Protocol is the venue-specific wire logic an Adapter drives: how to
// build the subscribe frame(s), how to decode an incoming message into
// trade events, and how to build a liveness ping frame.
type Protocol interface {
	// Name identifies the venue, e.g. "nonkyc".
	Name() string
	// SubscribeFrames returns the JSON frames to send right after connect.
	SubscribeFrames() ([][]byte, error)
	// Decode parses one inbound message. A message that carries no trade
	// (an ack, a heartbeat reply) returns a nil slice and no error.
	Decode(raw []byte) ([]model.TradeEvent, error)
	// PingFrame returns the liveness ping frame, or nil if the venue
	// relies on WebSocket-protocol pings instead of an app-level one.
	PingFrame() []byte
}

// TradeHandler receives each decoded, deduplicated trade event.
type TradeHandler func(model.TradeEvent)

// Availability reports whether a venue is currently tradable, backing the
// Idle->Connecting gate (spec §4.4). *availability.Probe satisfies this.
type Availability interface {
	IsAvailable(ctx context.Context, venue string) bool
}

// Adapter drives one venue's WebSocket connection through its lifecycle,
// emitting decoded trades to a TradeHandler and reconnecting on the fixed
// backoff ladder when the connection drops.
type Adapter struct {
	proto   Protocol
	wsURL   string
	handler TradeHandler
	limiter *rate.Limiter

	pingInterval time.Duration

	availability    Availability
	recheckInterval time.Duration

	mu    sync.Mutex
	state State

	dedupe *dedupeWindow
}

// Option configures an Adapter at construction time.
type Option func(*Adapter)

// WithRateLimit bounds reconnect/subscribe attempts to rps with the given
// burst, grounded on spec §4.4's per-venue rate-limit requirement.
func WithRateLimit(rps float64, burst int) Option {
	return func(a *Adapter) { a.limiter = rate.NewLimiter(rate.Limit(rps), burst) }
}

// WithPingInterval overrides the default 15s liveness ping cadence.
func WithPingInterval(d time.Duration) Option {
	return func(a *Adapter) { a.pingInterval = d }
}

// WithAvailability gates connection attempts on check, rechecking every
// recheck while the venue is unavailable (spec §1/§2/§4.4: Idle only
// transitions to Connecting once the venue is reported available).
func WithAvailability(check Availability, recheck time.Duration) Option {
	return func(a *Adapter) {
		a.availability = check
		a.recheckInterval = recheck
	}
}

// NewAdapter builds an Adapter for proto against wsURL.
func NewAdapter(proto Protocol, wsURL string, handler TradeHandler, opts ...Option) *Adapter {
	a := &Adapter{
		proto:           proto,
		wsURL:           wsURL,
		handler:         handler,
		limiter:         rate.NewLimiter(rate.Limit(5), 5),
		pingInterval:    15 * time.Second,
		recheckInterval: 60 * time.Second,
		dedupe:          newDedupeWindow(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// State returns the adapter's current lifecycle state.
func (a *Adapter) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *Adapter) setState(s State) {
	a.mu.Lock()
	prev := a.state
	a.state = s
	a.mu.Unlock()
	if prev != s {
		log.Info().Str("venue", a.proto.Name()).Str("from", prev.String()).Str("to", s.String()).Msg("adapter state transition")
	}
}

// Run drives the connect/subscribe/read/reconnect loop until ctx is
// cancelled. Each failed attempt advances the backoff ladder; a
// successful, stably-subscribed connection resets it.
func (a *Adapter) Run(ctx context.Context) {
	attempt := 0
	for {
		if ctx.Err() != nil {
			a.setState(StateDisconnected)
			return
		}

		if !a.waitUntilAvailable(ctx) {
			return
		}

		if err := a.limiter.Wait(ctx); err != nil {
			return
		}

		connectedAt := time.Now()
		err := a.runOnce(ctx)
		if ctx.Err() != nil {
			a.setState(StateDisconnected)
			return
		}

		if err != nil {
			log.Warn().Str("venue", a.proto.Name()).Err(err).Msg("adapter connection lost")
		}

		// A connection that stayed healthy for a while resets the ladder;
		// a connection that dies immediately keeps climbing it (spec §4.4).
		if time.Since(connectedAt) > 2*time.Minute {
			attempt = 0
		}

		a.setState(StateDegraded)
		delay := BackoffDelay(attempt)
		attempt++
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// waitUntilAvailable blocks in the Idle state, rechecking on recheckInterval,
// until the Availability Probe reports the venue tradable. It returns false
// only when ctx is cancelled first. With no Availability configured the
// venue is treated as always available.
func (a *Adapter) waitUntilAvailable(ctx context.Context) bool {
	if a.availability == nil {
		return true
	}
	for {
		if a.availability.IsAvailable(ctx, a.proto.Name()) {
			return true
		}
		a.setState(StateIdle)
		select {
		case <-ctx.Done():
			return false
		case <-time.After(a.recheckInterval):
		}
	}
}

func (a *Adapter) runOnce(ctx context.Context) error {
	a.setState(StateConnecting)

	dialer := websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second
	conn, _, err := dialer.DialContext(ctx, a.wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	frames, err := a.proto.SubscribeFrames()
	if err != nil {
		return fmt.Errorf("build subscribe frames: %w", err)
	}
	for _, f := range frames {
		if err := conn.WriteMessage(websocket.TextMessage, f); err != nil {
			return fmt.Errorf("send subscribe frame: %w", err)
		}
	}
	a.setState(StateSubscribed)

	stop := make(chan struct{})
	defer close(stop)
	if ping := a.proto.PingFrame(); ping != nil {
		go a.pingLoop(ctx, conn, ping, stop)
	}

	for {
		if ctx.Err() != nil {
			return nil
		}
		_, message, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}

		trades, err := a.proto.Decode(message)
		if err != nil {
			log.Debug().Str("venue", a.proto.Name()).Err(err).RawJSON("message", message).Msg("failed to decode venue message")
			continue
		}
		for _, t := range trades {
			if !a.dedupe.admit(dedupeKey(t), t.EventTimeMs) {
				continue
			}
			a.handler(t)
		}
	}
}

func (a *Adapter) pingLoop(ctx context.Context, conn *websocket.Conn, frame []byte, stop <-chan struct{}) {
	ticker := time.NewTicker(a.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		}
	}
}

func dedupeKey(t model.TradeEvent) string {
	return t.Venue + "|" + t.Pair.String()
}

// dedupeWindow enforces spec §4.4's duplicate-suppression rule: a trade is
// admitted only if its event_time is strictly greater than the last one
// seen for its (venue, pair) key. Replays and out-of-order redeliveries on
// reconnect carry a non-increasing event_time and are dropped, which is
// also what keeps the Aggregation Engine's bucket_id derivation (spec §8
// property 4) fed a strictly increasing timeline.
type dedupeWindow struct {
	mu       sync.Mutex
	lastSeen map[string]int64
}

func newDedupeWindow() *dedupeWindow {
	return &dedupeWindow{lastSeen: make(map[string]int64)}
}

// admit reports whether eventTimeMs is strictly greater than the last
// admitted event_time for key, recording it as the new high-water mark if so.
func (d *dedupeWindow) admit(key string, eventTimeMs int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if last, ok := d.lastSeen[key]; ok && eventTimeMs <= last {
		return false
	}
	d.lastSeen[key] = eventTimeMs
	return true
}
