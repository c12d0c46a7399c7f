package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"nba_altprops/ingestion/internal/api"
	"nba_altprops/ingestion/internal/app"
	"nba_altprops/ingestion/internal/config"
	"nba_altprops/ingestion/internal/metrics"
	"nba_altprops/ingestion/internal/scheduler"
)

func main() {
	// Setup logger
	setupLogger()

	log.Info().Msg("Starting NBA alt props ingestion worker")

	// Load configuration
	cfg := config.MustLoad()
	log.Info().
		Str("env", cfg.AppEnv).
		Str("log_level", cfg.LogLevel).
		Str("side_policy", cfg.LineSidePolicy).
		Msg("Configuration loaded")

	// Cancelled on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize worker")
	}
	defer a.Close()

	g, ctx := errgroup.WithContext(ctx)

	if cfg.EnableMetrics {
		g.Go(func() error {
			return runMetricsServer(ctx, cfg.MetricsPort)
		})
		g.Go(func() error {
			trackUptime(ctx, a)
			return nil
		})
	}

	// Dashboard API
	var latest api.LatestCache
	if a.Cache != nil {
		latest = a.Cache
	}
	handler := api.NewHandler(a.DB.Lines, latest, cfg.EventsLookahead())
	server := api.NewServer(cfg.HTTPPort, api.NewRouter(handler, cfg.CORSAllowedOrigins))
	g.Go(func() error {
		return server.Run(ctx)
	})

	if cfg.EnableScheduler {
		sched := scheduler.NewScheduler(cfg.FetchCron, cfg.RunOnStart, a.Ingester)
		if err := sched.Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to start scheduler")
		}
		g.Go(func() error {
			<-ctx.Done()
			sched.Stop()
			return nil
		})
	} else {
		log.Info().Msg("Scheduler disabled; runs must be triggered by cmd/fetchodds")
	}

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Worker stopped with error")
		a.Close()
		os.Exit(1)
	}

	log.Info().Msg("Worker shutdown complete")
}

// setupLogger configures the zerolog logger
func setupLogger() {
	// Pretty console logging in development
	if os.Getenv("APP_ENV") == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
	}

	// Set log level
	level := zerolog.InfoLevel
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		parsedLevel, err := zerolog.ParseLevel(lvl)
		if err == nil {
			level = parsedLevel
		}
	}
	zerolog.SetGlobalLevel(level)

	log.Info().
		Str("level", level.String()).
		Msg("Logger initialized")
}

// trackUptime refreshes the uptime and pool gauges until ctx is done
func trackUptime(ctx context.Context, a *app.App) {
	startTime := time.Now()
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			metrics.SystemUptime.Set(time.Since(startTime).Seconds())
			a.DB.RefreshPoolMetrics()
		case <-ctx.Done():
			return
		}
	}
}

// runMetricsServer serves Prometheus metrics until ctx is done
func runMetricsServer(ctx context.Context, port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info().Int("port", port).Msg("Starting metrics server")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server failed: %w", err)
	}
	return nil
}
