// Package store persists run records in PostgreSQL through a pgx connection pool.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/JonMunkholm/esgmap/internal/config"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS reconcile_runs (
	id            uuid PRIMARY KEY,
	status        text        NOT NULL,
	started_at    timestamptz NOT NULL,
	duration_ms   bigint      NOT NULL DEFAULT 0,
	primary_file  text,
	source_files  jsonb,
	total_rows    integer,
	counts        jsonb,
	warnings      jsonb,
	error         text,
	ip_address    inet,
	user_agent    text,
	created_at    timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS reconcile_runs_started_at_idx ON reconcile_runs (started_at DESC);
`

// Store reads and writes run records.
type Store struct {
	pool         *pgxpool.Pool
	historyLimit int
}

// New connects to the database described by cfg and verifies the connection.
func New(ctx context.Context, cfg config.DatabaseConfig) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if u, err := url.Parse(cfg.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}

	return &Store{pool: pool, historyLimit: cfg.HistoryLimit}, nil
}

// Migrate creates the runs table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// RetentionConfig controls the background purge of old runs.
type RetentionConfig struct {
	Days     int           // Runs older than this are deleted; 0 disables
	Interval time.Duration // How often to purge (default: 24h)
}

// StartRetention purges old runs immediately and then every Interval until ctx
// ends. It returns at once when retention is disabled.
func (s *Store) StartRetention(ctx context.Context, cfg RetentionConfig) {
	if cfg.Days <= 0 {
		slog.Info("run retention disabled")
		return
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 24 * time.Hour
	}

	slog.Info("run retention started", "retention_days", cfg.Days, "interval", cfg.Interval)

	s.purge(ctx, cfg.Days)

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("run retention stopped")
			return
		case <-ticker.C:
			s.purge(ctx, cfg.Days)
		}
	}
}

func (s *Store) purge(ctx context.Context, days int) {
	start := time.Now()
	n, err := s.PurgeRuns(ctx, days)
	if err != nil {
		slog.Error("run purge failed", "error", err)
		return
	}
	slog.Info("purged old runs", "runs_purged", n, "duration_ms", time.Since(start).Milliseconds())
}

// PurgeRuns deletes runs that started more than days ago.
func (s *Store) PurgeRuns(ctx context.Context, days int) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM reconcile_runs WHERE started_at < now() - make_interval(days => $1)`, days)
	if err != nil {
		return 0, fmt.Errorf("purge runs: %w", err)
	}
	return tag.RowsAffected(), nil
}
