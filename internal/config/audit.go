package config

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// DBConfig holds the Postgres connection settings for the audit trail,
// grounded on the teacher's infrastructure/db.Config pattern.
type DBConfig struct {
	DSN             string        `yaml:"dsn" env:"PG_DSN"`
	Enabled         bool          `yaml:"enabled" env:"PG_ENABLED"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"PG_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"PG_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"PG_CONN_MAX_LIFETIME"`
	QueryTimeout    time.Duration `yaml:"query_timeout" env:"PG_QUERY_TIMEOUT"`
}

// DefaultDBConfig mirrors the teacher's DefaultConfig: disabled unless the
// operator opts in, since the audit trail is a best-effort side channel.
func DefaultDBConfig() DBConfig {
	return DBConfig{
		Enabled:         false,
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: 30 * time.Minute,
		QueryTimeout:    5 * time.Second,
	}
}

// PostgresAudit persists a revision row to config_revisions on every
// validated Config update. It implements AuditSink.
type PostgresAudit struct {
	db      *sqlx.DB
	timeout time.Duration
}

const createRevisionsTable = `
CREATE TABLE IF NOT EXISTS config_revisions (
	id SERIAL PRIMARY KEY,
	recorded_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	value_require DOUBLE PRECISION NOT NULL,
	dynamic_threshold_enabled BOOLEAN NOT NULL,
	aggregation_enabled BOOLEAN NOT NULL,
	window_seconds INT NOT NULL,
	active_chat_count INT NOT NULL
)`

const insertRevision = `
INSERT INTO config_revisions
	(value_require, dynamic_threshold_enabled, aggregation_enabled, window_seconds, active_chat_count)
VALUES ($1, $2, $3, $4, $5)`

// NewPostgresAudit opens the audit-trail connection and ensures the
// revisions table exists. A disabled config yields a nil, nil result:
// callers pass that nil AuditSink straight to Load/Update, which treat a
// nil sink as "no audit trail" per spec §4.1.
func NewPostgresAudit(cfg DBConfig) (*PostgresAudit, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("config audit: DSN required when enabled")
	}

	db, err := sqlx.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("config audit: open: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.QueryTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("config audit: ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, createRevisionsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("config audit: create table: %w", err)
	}

	return &PostgresAudit{db: db, timeout: cfg.QueryTimeout}, nil
}

// RecordRevision writes one audit row. Callers treat failures as
// non-fatal (spec §4.1: the YAML write is the system of record).
func (a *PostgresAudit) RecordRevision(cfg Config) error {
	if a == nil || a.db == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()
	_, err := a.db.ExecContext(ctx, insertRevision,
		cfg.ValueRequire,
		cfg.DynamicThreshold.Enabled,
		cfg.TradeAggregation.Enabled,
		cfg.TradeAggregation.WindowSeconds,
		len(cfg.ActiveChatIDs),
	)
	if err != nil {
		return fmt.Errorf("config audit: insert: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (a *PostgresAudit) Close() error {
	if a == nil || a.db == nil {
		return nil
	}
	return a.db.Close()
}
