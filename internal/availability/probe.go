// Package availability implements the Venue Availability Probe (spec
// §4.3): a periodic health check per venue, cached so repeated callers
// don't hammer the REST endpoint, publishing gained/lost transitions to
// subscribers such as the stream adapters.
package availability

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Transition is a single gained/lost availability event for a venue.
type Transition struct {
	Venue     string
	Available bool
	At        time.Time
}

// Prober is a venue health check, e.g. a lightweight ticker fetch.
type Prober func(ctx context.Context, venue string) bool

// Probe runs the periodic health checks for a fixed venue set, caching
// results in Redis with a 5-minute TTL (spec §4.3) and fanning out
// transitions on Transitions().
type Probe struct {
	venues   []string
	check    Prober
	interval time.Duration
	cacheTTL time.Duration

	redis *redis.Client

	mu     sync.Mutex
	state  map[string]bool
	subs   []chan Transition
}

// NewProbe builds a Probe for venues, using redisClient for the shared
// availability cache (nil disables caching and falls back to a pure
// in-process probe).
func NewProbe(venues []string, check Prober, interval, cacheTTL time.Duration, redisClient *redis.Client) *Probe {
	return &Probe{
		venues:   venues,
		check:    check,
		interval: interval,
		cacheTTL: cacheTTL,
		redis:    redisClient,
		state:    make(map[string]bool),
	}
}

// Transitions returns a channel of gained/lost events. The channel is
// buffered; a slow subscriber drops events rather than blocking probes.
func (p *Probe) Transitions() <-chan Transition {
	ch := make(chan Transition, 32)
	p.mu.Lock()
	p.subs = append(p.subs, ch)
	p.mu.Unlock()
	return ch
}

// Run executes probes on a fixed interval until ctx is cancelled.
func (p *Probe) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.probeAll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.probeAll(ctx)
		}
	}
}

// IsAvailable returns the last known availability for venue, consulting
// the shared cache first so multiple process instances agree.
func (p *Probe) IsAvailable(ctx context.Context, venue string) bool {
	if p.redis != nil {
		val, err := p.redis.Get(ctx, cacheKey(venue)).Result()
		if err == nil {
			return val == "1"
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state[venue]
}

func (p *Probe) probeAll(ctx context.Context) {
	for _, venue := range p.venues {
		available := p.check(ctx, venue)
		p.record(ctx, venue, available)
	}
}

func (p *Probe) record(ctx context.Context, venue string, available bool) {
	p.mu.Lock()
	prev, known := p.state[venue]
	p.state[venue] = available
	subs := append([]chan Transition(nil), p.subs...)
	p.mu.Unlock()

	if p.redis != nil {
		val := "0"
		if available {
			val = "1"
		}
		if err := p.redis.Set(ctx, cacheKey(venue), val, p.cacheTTL).Err(); err != nil {
			log.Warn().Err(err).Str("venue", venue).Msg("availability cache write failed")
		}
	}

	if known && prev == available {
		return
	}

	t := Transition{Venue: venue, Available: available, At: time.Now()}
	log.Info().Str("venue", venue).Bool("available", available).Msg("venue availability transition")
	for _, ch := range subs {
		select {
		case ch <- t:
		default:
			log.Warn().Str("venue", venue).Msg("availability subscriber channel full, dropping transition")
		}
	}
}

func cacheKey(venue string) string {
	return "xbtalert:availability:" + venue
}
