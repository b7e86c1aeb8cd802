// Package config owns the single mutable Config document (spec §3, §4.1):
// loaded at startup, read by every pipeline stage, and mutated only
// through a validating replace-all.
package config

import (
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// DynamicThreshold is the volume-driven threshold adjustment block
// (spec §3, §4.7).
type DynamicThreshold struct {
	Enabled             bool    `yaml:"enabled"`
	Base                float64 `yaml:"base_value"`
	Multiplier          float64 `yaml:"volume_multiplier"`
	Min                 float64 `yaml:"min_threshold"`
	Max                 float64 `yaml:"max_threshold"`
	RefreshIntervalSecs int     `yaml:"price_check_interval"`
}

// TradeAggregation toggles and sizes the windowed-aggregation path
// (spec §3, §4.6).
type TradeAggregation struct {
	Enabled       bool `yaml:"enabled"`
	WindowSeconds int  `yaml:"window_seconds"`
}

// SweepOrders holds the order-book sweep settings (spec §4.4). They are
// validated and persisted, but the running pipeline does not read them:
// the NonKYC sweep detector is always on, uses a fixed two-level minimum,
// and applies no value floor or check interval.
type SweepOrders struct {
	Enabled         bool    `yaml:"enabled"`
	MinValue        float64 `yaml:"min_value"`
	CheckInterval   int     `yaml:"check_interval"`
	MinOrdersFilled int     `yaml:"min_orders_filled"`
}

// VenueCredentials holds optional per-venue API keys (spec §6). These are
// merged in from the environment (see env.go) and are never written back
// to the YAML document.
type VenueCredentials struct {
	CoinExAccessID   string `yaml:"-"`
	CoinExSecretKey  string `yaml:"-"`
	AscendExAccessID string `yaml:"-"`
	AscendExSecret   string `yaml:"-"`
}

// Config is the single mutable document described in spec §3 and §6. It
// preserves the field names of the original config.json one-for-one:
// bot_token, value_require, active_chat_ids, bot_owner, by_pass,
// image_path, dynamic_threshold, trade_aggregation, sweep_orders.
type Config struct {
	BotToken         string           `yaml:"bot_token"`
	ValueRequire     float64          `yaml:"value_require"`
	ActiveChatIDs    []int64          `yaml:"active_chat_ids"`
	BotOwner         int64            `yaml:"bot_owner"`
	ByPass           int64            `yaml:"by_pass"`
	ImagePath        string           `yaml:"image_path"`
	DynamicThreshold DynamicThreshold `yaml:"dynamic_threshold"`
	TradeAggregation TradeAggregation `yaml:"trade_aggregation"`
	SweepOrders      SweepOrders      `yaml:"sweep_orders"`

	Credentials VenueCredentials `yaml:"-"`
}

// Default returns the default document created when no config file
// exists yet, mirroring the original bot's load_config() default.
func Default() Config {
	return Config{
		BotToken:      "",
		ValueRequire:  300,
		ActiveChatIDs: []int64{},
		BotOwner:      0,
		ByPass:        0,
		ImagePath:     "xbt_buy_alert.gif",
		DynamicThreshold: DynamicThreshold{
			Enabled:             true,
			Base:                300,
			Multiplier:          0.05,
			Min:                 100,
			Max:                 1000,
			RefreshIntervalSecs: 3600,
		},
		TradeAggregation: TradeAggregation{
			Enabled:       true,
			WindowSeconds: 8,
		},
		SweepOrders: SweepOrders{
			Enabled:         true,
			MinValue:        80,
			CheckInterval:   2,
			MinOrdersFilled: 2,
		},
	}
}

// Store is the process-lifetime singleton holding the Config document
// (spec §4.1). Readers take a point-in-time copy; writers serialize
// through mu and persist before publishing (write-first-persist-then-
// publish, the default REQUIRED by spec §4.1).
type Store struct {
	mu   sync.RWMutex
	cfg  Config
	path string

	audit AuditSink // optional, best-effort
}

// AuditSink records a validated update for durable audit purposes
// (§3 of SPEC_FULL.md). A nil sink disables auditing.
type AuditSink interface {
	RecordRevision(cfg Config) error
}

// Load reads the config document from path, creating a default document
// if absent (spec §4.1 load()).
func Load(path string, audit AuditSink) (*Store, error) {
	s := &Store{path: path, audit: audit}

	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		cfg := Default()
		if err := writeYAML(path, cfg); err != nil {
			return nil, fmt.Errorf("write default config: %w", err)
		}
		log.Info().Str("path", path).Msg("created default configuration file")
		cfg.Credentials = VenueCredentialsFromEnv()
		s.cfg = cfg
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg.Credentials = VenueCredentialsFromEnv()
	s.cfg = cfg
	log.Info().Str("path", path).Msg("configuration loaded")
	return s, nil
}

// Get returns a consistent snapshot of the current document. Callers
// must treat the result as immutable (spec §4.1 get()).
func (s *Store) Get() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Update applies patch to a copy of the current document, validates it,
// and on success writes it to disk before publishing it in memory (spec
// §4.1 update()). On validation failure the previous document is
// preserved and a rejection error is returned.
func (s *Store) Update(patch func(*Config)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	candidate := s.cfg
	patch(&candidate)

	if err := Validate(candidate); err != nil {
		return fmt.Errorf("rejected: %w", err)
	}

	if err := writeYAML(s.path, candidate); err != nil {
		return fmt.Errorf("persist config: %w", err)
	}

	s.cfg = candidate

	if s.audit != nil {
		if err := s.audit.RecordRevision(candidate); err != nil {
			log.Warn().Err(err).Msg("config audit trail write failed (best-effort, document already persisted)")
		}
	}

	return nil
}

func writeYAML(path string, cfg Config) error {
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
