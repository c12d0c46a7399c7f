// Command fetchodds runs a single ingest cycle and prints its summary as JSON.
// It is meant to be invoked by an external scheduler when the worker's cron is disabled.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"nba_altprops/ingestion/internal/app"
	"nba_altprops/ingestion/internal/config"
)

func main() {
	timeout := flag.Duration("timeout", 10*time.Minute, "abort the run after this long")
	flag.Parse()

	os.Exit(run(*timeout))
}

// run returns the process exit code so deferred cleanup always happens
func run(timeout time.Duration) int {
	cfg := config.MustLoad()

	// Logs go to stderr so stdout carries only the summary
	setupLogger(os.Stderr, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize")
		return 1
	}
	defer a.Close()

	// 1. Validate database connectivity
	if err := a.DB.Health(ctx); err != nil {
		log.Error().Err(err).Msg("Database health check failed")
		return 1
	}

	// 2. Run one cycle; the summary is printed even when the run fails
	summary, runErr := a.Ingester.Run(ctx)

	if err := writeSummary(os.Stdout, summary); err != nil {
		log.Error().Err(err).Msg("Failed to encode run summary")
	}

	if runErr != nil {
		log.Error().Err(runErr).Msg("Ingest run failed")
		return 1
	}
	return 0
}

// setupLogger writes JSON logs to w at level, falling back to info
func setupLogger(w io.Writer, level string) {
	log.Logger = zerolog.New(w).With().Timestamp().Logger()

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

func writeSummary(w io.Writer, summary any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}
