package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"nba_altprops/ingestion/internal/metrics"
	"nba_altprops/ingestion/internal/models"
)

const (
	keyLatest  = "altprops:odds:latest"
	keyLastRun = "altprops:run:last"

	// LastRunTTL keeps the status around well past a missed schedule
	LastRunTTL = 7 * 24 * time.Hour

	defaultLatestTTL = time.Minute
)

// Config holds Redis configuration
type Config struct {
	Host      string
	Port      int
	Password  string
	DB        int
	LatestTTL time.Duration
}

// RedisCache caches dashboard reads and the last ingest run status
type RedisCache struct {
	client    *redis.Client
	latestTTL time.Duration
}

// NewRedisCache connects to Redis and verifies the connection
func NewRedisCache(ctx context.Context, cfg Config) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	ttl := cfg.LatestTTL
	if ttl <= 0 {
		ttl = defaultLatestTTL
	}

	log.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Int("db", cfg.DB).
		Msg("Successfully connected to redis")

	return &RedisCache{client: client, latestTTL: ttl}, nil
}

// GetLatest returns the cached unfiltered latest rows; ok is false on a miss
func (c *RedisCache) GetLatest(ctx context.Context) ([]models.OddsLine, bool, error) {
	start := time.Now()
	defer func() { metrics.RecordCacheOperation("get_latest", time.Since(start).Seconds()) }()

	data, err := c.client.Get(ctx, keyLatest).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.RecordCacheMiss()
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read latest rows: %w", err)
	}

	var lines []models.OddsLine
	if err := json.Unmarshal(data, &lines); err != nil {
		return nil, false, fmt.Errorf("unmarshaling latest rows: %w", err)
	}

	metrics.RecordCacheHit()
	return lines, true, nil
}

// SetLatest caches the unfiltered latest rows
func (c *RedisCache) SetLatest(ctx context.Context, lines []models.OddsLine) error {
	start := time.Now()
	defer func() { metrics.RecordCacheOperation("set_latest", time.Since(start).Seconds()) }()

	data, err := json.Marshal(lines)
	if err != nil {
		return fmt.Errorf("marshaling latest rows: %w", err)
	}

	return c.client.Set(ctx, keyLatest, data, c.latestTTL).Err()
}

// InvalidateLatest drops the cached latest rows
func (c *RedisCache) InvalidateLatest(ctx context.Context) error {
	return c.client.Del(ctx, keyLatest).Err()
}

// SetLastRun stores the summary of the most recent ingest run
func (c *RedisCache) SetLastRun(ctx context.Context, summary *models.RunSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshaling run summary: %w", err)
	}

	return c.client.Set(ctx, keyLastRun, data, LastRunTTL).Err()
}

// GetLastRun returns the most recent run summary, or nil when none is stored
func (c *RedisCache) GetLastRun(ctx context.Context) (*models.RunSummary, error) {
	data, err := c.client.Get(ctx, keyLastRun).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read last run: %w", err)
	}

	var summary models.RunSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, fmt.Errorf("unmarshaling run summary: %w", err)
	}

	return &summary, nil
}

// Health checks if redis is reachable
func (c *RedisCache) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}

// Close closes the redis client
func (c *RedisCache) Close() error {
	return c.client.Close()
}
