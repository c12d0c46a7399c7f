package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"nba_altprops/ingestion/internal/metrics"
	"nba_altprops/ingestion/internal/models"
)

// Runner performs one ingest cycle
type Runner interface {
	Run(ctx context.Context) (*models.RunSummary, error)
}

// Scheduler triggers ingest runs on a cron schedule.
// A tick that fires while a run is still in progress is skipped.
type Scheduler struct {
	spec       string
	runOnStart bool
	runner     Runner
	cron       *cron.Cron
	running    atomic.Bool
	wg         sync.WaitGroup
}

// NewScheduler creates a new scheduler instance
func NewScheduler(spec string, runOnStart bool, runner Runner) *Scheduler {
	return &Scheduler{
		spec:       spec,
		runOnStart: runOnStart,
		runner:     runner,
		cron:       cron.New(),
	}
}

// Start registers the ingest job and starts the cron scheduler
func (s *Scheduler) Start(ctx context.Context) error {
	log.Info().Msg("Scheduler starting...")

	if _, err := s.cron.AddFunc(s.spec, func() {
		s.Trigger(ctx)
	}); err != nil {
		return fmt.Errorf("failed to schedule ingest run: %w", err)
	}

	s.cron.Start()
	log.Info().
		Str("schedule", s.spec).
		Msg("Ingest run scheduled")

	if s.runOnStart {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.Trigger(ctx)
		}()
	}

	return nil
}

// Trigger runs one ingest cycle unless one is already in progress.
// It reports whether a run was started.
func (s *Scheduler) Trigger(ctx context.Context) bool {
	if !s.running.CompareAndSwap(false, true) {
		metrics.RecordSkippedTick()
		log.Warn().Msg("Previous ingest run still in progress, skipping tick")
		return false
	}
	defer s.running.Store(false)

	if ctx.Err() != nil {
		return false
	}

	start := time.Now()
	summary, err := s.runner.Run(ctx)
	if err != nil {
		log.Error().Err(err).Dur("duration", time.Since(start)).Msg("Scheduled ingest run failed")
		return true
	}

	log.Info().
		Str("run_id", summary.RunID).
		Int("rows", summary.Rows).
		Dur("duration", time.Since(start)).
		Msg("Scheduled ingest run complete")
	return true
}

// Running reports whether an ingest run is in progress
func (s *Scheduler) Running() bool {
	return s.running.Load()
}

// Stop stops the scheduler and waits for an in-flight run to return
func (s *Scheduler) Stop() {
	log.Info().Msg("Stopping scheduler...")

	<-s.cron.Stop().Done()
	s.wg.Wait()

	log.Info().Msg("Scheduler stopped")
}
