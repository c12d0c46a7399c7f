package ingest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"nba_altprops/ingestion/internal/client"
	"nba_altprops/ingestion/internal/metrics"
	"nba_altprops/ingestion/internal/models"
	"nba_altprops/ingestion/internal/normalize"
)

const (
	// DefaultLookback keeps games that tipped off recently in the window
	DefaultLookback = 2 * time.Hour

	postRunTimeout = 30 * time.Second
)

// Fetcher retrieves events and per-event odds from the odds provider
type Fetcher interface {
	FetchEvents(ctx context.Context) ([]models.Event, client.RateLimit, error)
	FetchEventOdds(ctx context.Context, eventID string) ([]byte, client.RateLimit, error)
}

// Store reads and writes persisted odds lines
type Store interface {
	GetByKeys(ctx context.Context, keys []models.NaturalKey) (map[models.NaturalKey]*models.OddsLine, error)
	UpsertLines(ctx context.Context, lines []models.OddsLine) (int, error)
}

// Cache is told about completed runs
type Cache interface {
	InvalidateLatest(ctx context.Context) error
	SetLastRun(ctx context.Context, summary *models.RunSummary) error
}

// Archiver stores a snapshot of the lines written by a run
type Archiver interface {
	ArchiveRun(ctx context.Context, runID string, at time.Time, lines []models.OddsLine) error
}

// Config controls event selection and line filtering
type Config struct {
	Lookahead  time.Duration
	Lookback   time.Duration
	MaxEvents  int
	Markets    []string
	SidePolicy normalize.SidePolicy
}

// Option customizes an Ingester
type Option func(*Ingester)

// WithCache notifies c after every run
func WithCache(c Cache) Option {
	return func(i *Ingester) { i.cache = c }
}

// WithArchiver archives every run's lines through a
func WithArchiver(a Archiver) Option {
	return func(i *Ingester) { i.archiver = a }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(i *Ingester) { i.now = now }
}

// Ingester runs one fetch → normalize → persist cycle per call to Run
type Ingester struct {
	cfg      Config
	fetcher  Fetcher
	store    Store
	cache    Cache
	archiver Archiver
	now      func() time.Time
}

// NewIngester creates an Ingester
func NewIngester(cfg Config, fetcher Fetcher, store Store, opts ...Option) *Ingester {
	if cfg.Lookback <= 0 {
		cfg.Lookback = DefaultLookback
	}
	if cfg.SidePolicy == "" {
		cfg.SidePolicy = normalize.TwoSided
	}
	if len(cfg.Markets) == 0 {
		cfg.Markets = models.AltMarkets
	}

	i := &Ingester{
		cfg:     cfg,
		fetcher: fetcher,
		store:   store,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Run performs one ingest cycle.
//
// A failed event fetch is recorded in the summary and the run moves on; the
// returned error then joins every event failure. A persistence failure stops
// the run immediately. The summary is returned in every case.
func (i *Ingester) Run(ctx context.Context) (*models.RunSummary, error) {
	started := i.now()
	summary := &models.RunSummary{
		RunID:     uuid.NewString(),
		StartedAt: started,
		Summary:   []models.EventRunSummary{},
	}
	logger := log.With().Str("run_id", summary.RunID).Logger()
	logger.Info().Msg("Starting ingest run")

	var written []models.OddsLine
	runErr := i.run(ctx, logger, started, summary, &written)

	i.finish(ctx, logger, summary, written, runErr)
	return summary, runErr
}

func (i *Ingester) run(ctx context.Context, logger zerolog.Logger, started time.Time, summary *models.RunSummary, written *[]models.OddsLine) error {
	events, _, err := i.fetcher.FetchEvents(ctx)
	if err != nil {
		return fmt.Errorf("failed to list events: %w", err)
	}

	selected := SelectEvents(events, started, i.cfg.Lookback, i.cfg.Lookahead, i.cfg.MaxEvents)
	summary.Events = len(selected)
	logger.Info().
		Int("listed", len(events)).
		Int("selected", len(selected)).
		Msg("Events selected")

	var fetchErrs []error
	for _, ev := range selected {
		if err := ctx.Err(); err != nil {
			return err
		}

		es := models.EventRunSummary{
			EventID: ev.ID,
			Game:    models.GameLabel(ev.AwayTeam, ev.HomeTeam),
		}

		lines, rl, err := i.fetchLines(ctx, ev.ID, i.now())
		es.Remaining, es.Used, es.Last = rl.Remaining, rl.Used, rl.Last
		if err != nil {
			es.Error = err.Error()
			summary.Summary = append(summary.Summary, es)
			summary.Failed++
			fetchErrs = append(fetchErrs, fmt.Errorf("event %s: %w", ev.ID, err))

			metrics.RecordError("ingest", "event_fetch")
			logger.Warn().
				Str("event_id", ev.ID).
				Err(err).
				Msg("Skipping event after fetch failure")
			continue
		}

		n, err := i.persist(ctx, lines)
		if err != nil {
			es.Error = err.Error()
			summary.Summary = append(summary.Summary, es)
			summary.Failed++
			metrics.RecordError("ingest", "persist")
			return fmt.Errorf("event %s: %w", ev.ID, err)
		}

		es.Rows = n
		summary.Rows += n
		summary.Summary = append(summary.Summary, es)
		*written = append(*written, lines...)

		logger.Debug().
			Str("event_id", ev.ID).
			Str("game", es.Game).
			Int("rows", n).
			Msg("Event ingested")
	}

	if len(fetchErrs) > 0 {
		return fmt.Errorf("%d of %d events failed: %w", len(fetchErrs), len(selected), errors.Join(fetchErrs...))
	}
	return nil
}

// fetchLines fetches one event and returns its grouped, filtered lines
func (i *Ingester) fetchLines(ctx context.Context, eventID string, fetchedAt time.Time) ([]models.OddsLine, client.RateLimit, error) {
	body, rl, err := i.fetcher.FetchEventOdds(ctx, eventID)
	if err != nil {
		return nil, rl, err
	}

	ev, err := normalize.ParseEventOdds(body)
	if err != nil {
		return nil, rl, err
	}

	raw, err := normalize.FlattenEventOdds(ev, i.cfg.Markets)
	if err != nil {
		return nil, rl, err
	}

	grouped := normalize.GroupOutcomes(raw, fetchedAt)
	return normalize.FilterLines(grouped, i.cfg.SidePolicy), rl, nil
}

// persist merges first-seen prices from stored rows and upserts lines in place
func (i *Ingester) persist(ctx context.Context, lines []models.OddsLine) (int, error) {
	if len(lines) == 0 {
		return 0, nil
	}

	keys := make([]models.NaturalKey, len(lines))
	for j := range lines {
		keys[j] = lines[j].Key()
	}

	previous, err := i.store.GetByKeys(ctx, keys)
	if err != nil {
		return 0, fmt.Errorf("failed to read previous lines: %w", err)
	}

	for j := range lines {
		lines[j] = normalize.PreserveFirstSeen(lines[j], previous[keys[j]])
	}

	n, err := i.store.UpsertLines(ctx, lines)
	if err != nil {
		return n, fmt.Errorf("failed to upsert lines: %w", err)
	}

	metrics.RecordLinesUpserted(n)
	return n, nil
}

// finish stamps the summary, records metrics and runs post-run side effects.
// Side-effect failures are logged only.
func (i *Ingester) finish(ctx context.Context, logger zerolog.Logger, summary *models.RunSummary, written []models.OddsLine, runErr error) {
	summary.FinishedAt = i.now()
	took := summary.FinishedAt.Sub(summary.StartedAt)
	summary.TookMS = took.Milliseconds()

	status := "success"
	switch {
	case runErr != nil && summary.Rows > 0:
		status = "partial"
	case runErr != nil:
		status = "error"
	}
	if runErr != nil {
		summary.Error = runErr.Error()
	}
	metrics.RecordIngestRun(status, took.Seconds())

	postCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), postRunTimeout)
	defer cancel()

	if i.cache != nil {
		if summary.Rows > 0 {
			if err := i.cache.InvalidateLatest(postCtx); err != nil {
				metrics.RecordError("cache", "invalidate")
				logger.Warn().Err(err).Msg("Failed to invalidate latest rows cache")
			}
		}
		if err := i.cache.SetLastRun(postCtx, summary); err != nil {
			metrics.RecordError("cache", "set_last_run")
			logger.Warn().Err(err).Msg("Failed to store run summary")
		}
	}

	if i.archiver != nil && len(written) > 0 {
		if err := i.archiver.ArchiveRun(postCtx, summary.RunID, summary.StartedAt, written); err != nil {
			metrics.RecordError("archive", "put")
			logger.Warn().Err(err).Msg("Failed to archive run snapshot")
		}
	}

	evt := logger.Info()
	if runErr != nil {
		evt = logger.Error().Err(runErr)
	}
	evt.
		Str("status", status).
		Int("events", summary.Events).
		Int("failed", summary.Failed).
		Int("rows", summary.Rows).
		Dur("took", took).
		Msg("Ingest run finished")
}

// SelectEvents returns events commencing within [now-lookback, now+lookahead],
// earliest first, capped at limit (limit <= 0 means no cap). Events without a
// commence time are skipped.
func SelectEvents(events []models.Event, now time.Time, lookback, lookahead time.Duration, limit int) []models.Event {
	from := now.Add(-lookback)
	to := now.Add(lookahead)

	selected := make([]models.Event, 0, len(events))
	for _, ev := range events {
		if ev.CommenceTime.IsZero() {
			log.Debug().
				Str("event_id", ev.ID).
				Str("commence_time", ev.CommenceTime.Raw).
				Msg("Skipping event without a usable commence_time")
			continue
		}
		if ev.CommenceTime.Before(from) || ev.CommenceTime.After(to) {
			continue
		}
		selected = append(selected, ev)
	}

	sort.SliceStable(selected, func(a, b int) bool {
		return selected[a].CommenceTime.Before(selected[b].CommenceTime.Time)
	})

	if limit > 0 && len(selected) > limit {
		selected = selected[:limit]
	}
	return selected
}
