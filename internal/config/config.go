package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"nba_altprops/ingestion/internal/normalize"
)

// Config holds all application configuration
type Config struct {
	// The Odds API
	OddsAPIKey        string        `envconfig:"ODDS_API_KEY" required:"true"`
	OddsAPIBaseURL    string        `envconfig:"ODDS_API_BASE_URL" default:"https://api.the-odds-api.com/v4"`
	OddsAPITimeout    time.Duration `envconfig:"ODDS_API_TIMEOUT" default:"30s"`
	OddsAPIRegions    string        `envconfig:"ODDS_API_REGIONS" default:"us"`
	OddsAPIBookmakers string        `envconfig:"ODDS_API_BOOKMAKERS" default:""`

	// Event selection
	EventsLookaheadHours int `envconfig:"EVENTS_LOOKAHEAD_HOURS" default:"48"`
	MaxEventsPerRun      int `envconfig:"MAX_EVENTS_PER_RUN" default:"30"`

	// Which grouped lines reach storage: keep_all, drop_empty, two_sided
	LineSidePolicy string `envconfig:"LINE_SIDE_POLICY" default:"two_sided"`

	// Database
	DatabaseHost     string `envconfig:"DATABASE_HOST" default:"localhost"`
	DatabasePort     int    `envconfig:"DATABASE_PORT" default:"5432"`
	DatabaseName     string `envconfig:"DATABASE_NAME" default:"nba_altprops"`
	DatabaseUser     string `envconfig:"DATABASE_USER" default:"altprops_user"`
	DatabasePassword string `envconfig:"DATABASE_PASSWORD" required:"true"`
	DatabaseSSLMode  string `envconfig:"DATABASE_SSL_MODE" default:"disable"`

	// Redis
	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	// Application
	AppEnv   string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Dashboard API
	HTTPPort           int      `envconfig:"HTTP_PORT" default:"8080"`
	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`

	// Scheduler
	EnableScheduler bool   `envconfig:"ENABLE_SCHEDULER" default:"true"`
	FetchCron       string `envconfig:"FETCH_CRON" default:"*/10 * * * *"`
	RunOnStart      bool   `envconfig:"RUN_ON_START" default:"true"`

	// Caching TTL (in seconds)
	CacheTTLOdds int `envconfig:"CACHE_TTL_ODDS" default:"60"`

	// Snapshot archive (disabled when S3_BUCKET is empty)
	S3Endpoint       string `envconfig:"S3_ENDPOINT" default:""`
	S3Region         string `envconfig:"S3_REGION" default:"us-east-1"`
	S3Bucket         string `envconfig:"S3_BUCKET" default:""`
	S3AccessKey      string `envconfig:"S3_ACCESS_KEY" default:""`
	S3SecretKey      string `envconfig:"S3_SECRET_KEY" default:""`
	S3ForcePathStyle bool   `envconfig:"S3_FORCE_PATH_STYLE" default:"true"`

	// Monitoring
	EnableMetrics bool `envconfig:"ENABLE_METRICS" default:"true"`
	MetricsPort   int  `envconfig:"METRICS_PORT" default:"9090"`
}

// Load loads configuration from environment variables
// It first attempts to load from .env file if in development mode
func Load() (*Config, error) {
	// Try to load .env file (ignore error if doesn't exist)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.OddsAPIKey == "" {
		return fmt.Errorf("ODDS_API_KEY is required")
	}

	if c.DatabasePassword == "" {
		return fmt.Errorf("DATABASE_PASSWORD is required")
	}

	if _, err := c.SidePolicy(); err != nil {
		return fmt.Errorf("LINE_SIDE_POLICY: %w", err)
	}

	if c.EventsLookaheadHours <= 0 {
		return fmt.Errorf("EVENTS_LOOKAHEAD_HOURS must be positive")
	}

	if c.MaxEventsPerRun <= 0 {
		return fmt.Errorf("MAX_EVENTS_PER_RUN must be positive")
	}

	if c.S3Bucket != "" && (c.S3AccessKey == "" || c.S3SecretKey == "") {
		return fmt.Errorf("S3_ACCESS_KEY and S3_SECRET_KEY are required when S3_BUCKET is set")
	}

	return nil
}

// SidePolicy parses LINE_SIDE_POLICY
func (c *Config) SidePolicy() (normalize.SidePolicy, error) {
	return normalize.ParseSidePolicy(c.LineSidePolicy)
}

// EventsLookahead returns the event selection horizon as a duration
func (c *Config) EventsLookahead() time.Duration {
	return time.Duration(c.EventsLookaheadHours) * time.Hour
}

// Bookmakers returns the configured bookmaker filter, trimmed
func (c *Config) Bookmakers() string {
	return strings.TrimSpace(c.OddsAPIBookmakers)
}

// ArchiveEnabled reports whether run snapshots should be written to object storage
func (c *Config) ArchiveEnabled() bool {
	return c.S3Bucket != ""
}

// MustLoad loads configuration or panics on error
// Use this in main() where we want to fail fast
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	return cfg
}
