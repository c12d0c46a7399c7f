package repository

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"nba_altprops/ingestion/internal/metrics"
)

// Database owns the pgx pool behind the odds line store
type Database struct {
	Pool  *pgxpool.Pool
	Lines *OddsLineRepository
}

// Config holds Postgres connection settings
type Config struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string
}

// DSN renders the settings as a postgres:// URL with credentials escaped
func (c Config) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   net.JoinHostPort(c.Host, c.Port),
		Path:   "/" + c.Database,
	}
	if c.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {c.SSLMode}}.Encode()
	}
	return u.String()
}

// NewDatabase opens the pool, applies the odds_lines_current schema and
// publishes the initial pool gauges. The returned Database is ready for upserts.
func NewDatabase(ctx context.Context, cfg Config) (*Database, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	// One ingest run writes sequentially; the rest is dashboard reads
	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	db := &Database{Pool: pool}
	db.Lines = &OddsLineRepository{db: db}

	if err := db.Health(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if err := db.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	stats := db.RefreshPoolMetrics()
	log.Info().
		Str("host", cfg.Host).
		Str("database", cfg.Database).
		Int32("max_conns", stats.Max).
		Msg("Odds line store ready")

	return db, nil
}

// Close releases the pool
func (db *Database) Close() {
	if db.Pool != nil {
		db.Pool.Close()
		log.Info().Msg("Odds line store closed")
	}
}

// Health pings Postgres with a short deadline
func (db *Database) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := db.Pool.Ping(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

// PoolStats is a snapshot of pgxpool connection counts
type PoolStats struct {
	Total    int32 `json:"total_conns"`
	Acquired int32 `json:"acquired_conns"`
	Idle     int32 `json:"idle_conns"`
	Max      int32 `json:"max_conns"`
}

// RefreshPoolMetrics copies the pool counts into the connection gauges
func (db *Database) RefreshPoolMetrics() PoolStats {
	stat := db.Pool.Stat()
	metrics.UpdateDBConnectionStats(stat.AcquiredConns(), stat.IdleConns())

	return PoolStats{
		Total:    stat.TotalConns(),
		Acquired: stat.AcquiredConns(),
		Idle:     stat.IdleConns(),
		Max:      stat.MaxConns(),
	}
}
