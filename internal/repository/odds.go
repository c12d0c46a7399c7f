package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"nba_altprops/ingestion/internal/metrics"
	"nba_altprops/ingestion/internal/models"
)

const (
	linesTable = "odds_lines_current"

	// UpsertBatchSize bounds the rows sent in one pgx batch
	UpsertBatchSize = 500

	// ListPageSize is the page size used by ListAll
	ListPageSize = 1000
)

const lineColumns = `
	event_id, bookmaker_key, market_key, player, line,
	sport_key, commence_time, home_team, away_team, game, bookmaker_title, market_name,
	over_price, under_price, first_over_price, first_under_price,
	last_update, fetched_at`

const upsertLineQuery = `
	INSERT INTO odds_lines_current (` + lineColumns + `
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	ON CONFLICT (event_id, bookmaker_key, market_key, player, line) DO UPDATE SET
		sport_key         = EXCLUDED.sport_key,
		commence_time     = EXCLUDED.commence_time,
		home_team         = EXCLUDED.home_team,
		away_team         = EXCLUDED.away_team,
		game              = EXCLUDED.game,
		bookmaker_title   = EXCLUDED.bookmaker_title,
		market_name       = EXCLUDED.market_name,
		over_price        = EXCLUDED.over_price,
		under_price       = EXCLUDED.under_price,
		first_over_price  = EXCLUDED.first_over_price,
		first_under_price = EXCLUDED.first_under_price,
		last_update       = EXCLUDED.last_update,
		fetched_at        = EXCLUDED.fetched_at`

const getLineQuery = `
	SELECT` + lineColumns + `
	FROM odds_lines_current
	WHERE event_id = $1 AND bookmaker_key = $2 AND market_key = $3 AND player = $4 AND line = $5`

// OddsLineRepository handles odds_lines_current database operations
type OddsLineRepository struct {
	db *Database
}

// LineFilters narrows List results. Zero values mean "no filter".
type LineFilters struct {
	Since      *time.Time
	Until      *time.Time
	Market     string
	Bookmaker  string
	Player     string
	Game       string
	EventID    string
	OverPrice  *int
	UnderPrice *int

	Limit  int
	Offset int
}

// Health checks the database backing the repository
func (r *OddsLineRepository) Health(ctx context.Context) error {
	return r.db.Health(ctx)
}

// GetByKey returns the stored line for a natural key, or nil when absent
func (r *OddsLineRepository) GetByKey(ctx context.Context, key models.NaturalKey) (*models.OddsLine, error) {
	start := time.Now()

	line, err := scanLine(r.db.Pool.QueryRow(ctx, getLineQuery,
		key.EventID, key.BookmakerKey, key.MarketKey, key.Player, key.Line))
	if errors.Is(err, pgx.ErrNoRows) {
		metrics.RecordDBQuery("select", linesTable, "success", time.Since(start).Seconds())
		return nil, nil // first sighting of this key
	}
	if err != nil {
		metrics.RecordDBQuery("select", linesTable, "error", time.Since(start).Seconds())
		return nil, fmt.Errorf("failed to get odds line: %w", err)
	}

	metrics.RecordDBQuery("select", linesTable, "success", time.Since(start).Seconds())
	return line, nil
}

// GetByKeys performs one point lookup per key in a single batch round trip.
// Keys without a stored row are absent from the result.
func (r *OddsLineRepository) GetByKeys(ctx context.Context, keys []models.NaturalKey) (map[models.NaturalKey]*models.OddsLine, error) {
	found := make(map[models.NaturalKey]*models.OddsLine, len(keys))
	if len(keys) == 0 {
		return found, nil
	}

	start := time.Now()
	batch := &pgx.Batch{}
	for _, k := range keys {
		batch.Queue(getLineQuery, k.EventID, k.BookmakerKey, k.MarketKey, k.Player, k.Line)
	}

	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()

	for i, k := range keys {
		line, err := scanLine(br.QueryRow())
		if errors.Is(err, pgx.ErrNoRows) {
			continue
		}
		if err != nil {
			metrics.RecordDBQuery("select_batch", linesTable, "error", time.Since(start).Seconds())
			return nil, fmt.Errorf("failed to get odds line batch item %d: %w", i, err)
		}
		found[k] = line
	}

	metrics.RecordDBQuery("select_batch", linesTable, "success", time.Since(start).Seconds())
	return found, nil
}

// Upsert inserts or replaces a single line
func (r *OddsLineRepository) Upsert(ctx context.Context, line *models.OddsLine) error {
	start := time.Now()

	if _, err := r.db.Pool.Exec(ctx, upsertLineQuery, upsertArgs(line)...); err != nil {
		metrics.RecordDBQuery("upsert", linesTable, "error", time.Since(start).Seconds())
		return fmt.Errorf("failed to upsert odds line: %w", err)
	}

	metrics.RecordDBQuery("upsert", linesTable, "success", time.Since(start).Seconds())
	return nil
}

// UpsertLines inserts or replaces lines in batches of UpsertBatchSize.
// Batches already sent stay committed when a later batch fails.
func (r *OddsLineRepository) UpsertLines(ctx context.Context, lines []models.OddsLine) (int, error) {
	written := 0
	for from := 0; from < len(lines); from += UpsertBatchSize {
		to := min(from+UpsertBatchSize, len(lines))
		if err := r.upsertBatch(ctx, lines[from:to]); err != nil {
			return written, err
		}
		written += to - from
	}

	log.Debug().
		Int("rows", written).
		Msg("Odds lines upserted")

	return written, nil
}

func (r *OddsLineRepository) upsertBatch(ctx context.Context, lines []models.OddsLine) error {
	start := time.Now()

	batch := &pgx.Batch{}
	for i := range lines {
		batch.Queue(upsertLineQuery, upsertArgs(&lines[i])...)
	}

	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range lines {
		if _, err := br.Exec(); err != nil {
			metrics.RecordDBQuery("upsert_batch", linesTable, "error", time.Since(start).Seconds())
			return fmt.Errorf("failed to upsert odds line batch item %d: %w", i, err)
		}
	}

	metrics.RecordDBQuery("upsert_batch", linesTable, "success", time.Since(start).Seconds())
	return nil
}

// List returns lines matching filters ordered by game, player, market and line (highest first)
func (r *OddsLineRepository) List(ctx context.Context, f LineFilters) ([]models.OddsLine, error) {
	start := time.Now()

	query, args := buildListQuery(f)
	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		metrics.RecordDBQuery("list", linesTable, "error", time.Since(start).Seconds())
		return nil, fmt.Errorf("failed to list odds lines: %w", err)
	}
	defer rows.Close()

	var lines []models.OddsLine
	for rows.Next() {
		line, err := scanLine(rows)
		if err != nil {
			metrics.RecordDBQuery("list", linesTable, "error", time.Since(start).Seconds())
			return nil, fmt.Errorf("failed to scan odds line: %w", err)
		}
		lines = append(lines, *line)
	}
	if err := rows.Err(); err != nil {
		metrics.RecordDBQuery("list", linesTable, "error", time.Since(start).Seconds())
		return nil, fmt.Errorf("failed to iterate odds lines: %w", err)
	}

	metrics.RecordDBQuery("list", linesTable, "success", time.Since(start).Seconds())
	return lines, nil
}

// ListAll pages through every matching line ListPageSize rows at a time.
// Limit and Offset in f are ignored.
func (r *OddsLineRepository) ListAll(ctx context.Context, f LineFilters) ([]models.OddsLine, error) {
	var all []models.OddsLine
	f.Limit = ListPageSize
	f.Offset = 0

	for {
		page, err := r.List(ctx, f)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < ListPageSize {
			return all, nil
		}
		f.Offset += ListPageSize
	}
}

// buildListQuery renders the SELECT for f with positional arguments
func buildListQuery(f LineFilters) (string, []any) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, strings.Replace(cond, "?", "$"+strconv.Itoa(len(args)), 1))
	}

	if f.Since != nil {
		add("commence_time >= ?", *f.Since)
	}
	if f.Until != nil {
		add("commence_time <= ?", *f.Until)
	}
	if f.Market != "" {
		add("market_key = ?", f.Market)
	}
	if f.Bookmaker != "" {
		add("bookmaker_key = ?", f.Bookmaker)
	}
	if f.Player != "" {
		add("player = ?", f.Player)
	}
	if f.Game != "" {
		add("game = ?", f.Game)
	}
	if f.EventID != "" {
		add("event_id = ?", f.EventID)
	}
	if f.OverPrice != nil {
		add("over_price = ?", *f.OverPrice)
	}
	if f.UnderPrice != nil {
		add("under_price = ?", *f.UnderPrice)
	}

	var sb strings.Builder
	sb.WriteString("SELECT")
	sb.WriteString(lineColumns)
	sb.WriteString("\n\tFROM odds_lines_current")
	if len(where) > 0 {
		sb.WriteString("\n\tWHERE ")
		sb.WriteString(strings.Join(where, " AND "))
	}
	sb.WriteString("\n\tORDER BY game ASC, player ASC, market_key ASC, line DESC, bookmaker_key ASC")

	if f.Limit > 0 {
		args = append(args, f.Limit)
		sb.WriteString(" LIMIT $" + strconv.Itoa(len(args)))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		sb.WriteString(" OFFSET $" + strconv.Itoa(len(args)))
	}

	return sb.String(), args
}

func upsertArgs(l *models.OddsLine) []any {
	return []any{
		l.EventID, l.BookmakerKey, l.MarketKey, l.Player, l.Line,
		l.SportKey, l.CommenceTime, l.HomeTeam, l.AwayTeam, l.Game, l.BookmakerTitle, l.MarketName,
		l.OverPrice, l.UnderPrice, l.FirstOverPrice, l.FirstUnderPrice,
		l.LastUpdate, l.FetchedAt,
	}
}

func scanLine(row pgx.Row) (*models.OddsLine, error) {
	var l models.OddsLine
	err := row.Scan(
		&l.EventID, &l.BookmakerKey, &l.MarketKey, &l.Player, &l.Line,
		&l.SportKey, &l.CommenceTime, &l.HomeTeam, &l.AwayTeam, &l.Game, &l.BookmakerTitle, &l.MarketName,
		&l.OverPrice, &l.UnderPrice, &l.FirstOverPrice, &l.FirstUnderPrice,
		&l.LastUpdate, &l.FetchedAt,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}
