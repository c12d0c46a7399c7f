// Package app wires configuration into the ingest pipeline and its stores.
package app

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	s3blob "nba_altprops/ingestion/internal/blob/s3"
	"nba_altprops/ingestion/internal/cache"
	"nba_altprops/ingestion/internal/client"
	"nba_altprops/ingestion/internal/config"
	"nba_altprops/ingestion/internal/ingest"
	"nba_altprops/ingestion/internal/models"
	"nba_altprops/ingestion/internal/repository"
)

// App holds the long-lived dependencies shared by the binaries
type App struct {
	Config   *config.Config
	DB       *repository.Database
	Cache    *cache.RedisCache // nil when Redis is unreachable
	Archive  *s3blob.Writer    // nil when archiving is disabled
	Ingester *ingest.Ingester
}

// New connects to every configured backend and builds the ingester.
// Postgres is required; Redis and S3 are optional and only logged when unavailable.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	policy, err := cfg.SidePolicy()
	if err != nil {
		return nil, err
	}

	db, err := repository.NewDatabase(ctx, repository.Config{
		Host:     cfg.DatabaseHost,
		Port:     strconv.Itoa(cfg.DatabasePort),
		User:     cfg.DatabaseUser,
		Password: cfg.DatabasePassword,
		Database: cfg.DatabaseName,
		SSLMode:  cfg.DatabaseSSLMode,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	a := &App{Config: cfg, DB: db}

	redisCache, err := cache.NewRedisCache(ctx, cache.Config{
		Host:      cfg.RedisHost,
		Port:      cfg.RedisPort,
		Password:  cfg.RedisPassword,
		DB:        cfg.RedisDB,
		LatestTTL: time.Duration(cfg.CacheTTLOdds) * time.Second,
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to connect to Redis - continuing without cache")
	} else {
		a.Cache = redisCache
		log.Info().Msg("Redis cache connected")
	}

	if cfg.ArchiveEnabled() {
		blob, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3Endpoint,
			Region:         cfg.S3Region,
			Bucket:         cfg.S3Bucket,
			AccessKey:      cfg.S3AccessKey,
			SecretKey:      cfg.S3SecretKey,
			UseSSL:         !strings.HasPrefix(cfg.S3Endpoint, "http://"),
			ForcePathStyle: cfg.S3ForcePathStyle,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to create snapshot archive client: %w", err)
		}
		if err := blob.Health(ctx); err != nil {
			log.Warn().Err(err).Msg("Snapshot bucket not reachable - archives will be retried every run")
		}
		a.Archive = s3blob.NewWriter(blob)
		log.Info().Str("bucket", blob.Bucket()).Msg("Snapshot archiving enabled")
	}

	oddsClient := client.NewClient(client.Config{
		BaseURL:    cfg.OddsAPIBaseURL,
		APIKey:     cfg.OddsAPIKey,
		Timeout:    cfg.OddsAPITimeout,
		Regions:    cfg.OddsAPIRegions,
		Markets:    models.AltMarkets,
		Bookmakers: cfg.Bookmakers(),
	})

	var opts []ingest.Option
	if a.Cache != nil {
		opts = append(opts, ingest.WithCache(a.Cache))
	}
	if a.Archive != nil {
		opts = append(opts, ingest.WithArchiver(a.Archive))
	}

	a.Ingester = ingest.NewIngester(ingest.Config{
		Lookahead:  cfg.EventsLookahead(),
		MaxEvents:  cfg.MaxEventsPerRun,
		Markets:    models.AltMarkets,
		SidePolicy: policy,
	}, oddsClient, db.Lines, opts...)

	return a, nil
}

// Close releases every backend connection
func (a *App) Close() {
	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close Redis client")
		}
	}
	if a.DB != nil {
		a.DB.Close()
	}
}
