package export

import (
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"nba_altprops/ingestion/internal/models"
)

// Header is the column order of exported snapshots
var Header = []string{
	"game",
	"player",
	"market_key",
	"market_name",
	"line",
	"over_price",
	"under_price",
	"first_over_price",
	"first_under_price",
	"bookmaker_title",
	"commence_time",
	"last_update",
	"fetched_at",
	"event_id",
}

// ContentType of exported snapshots
const ContentType = "text/csv; charset=utf-8"

// Filename returns the download name for a snapshot taken at t
func Filename(t time.Time) string {
	return fmt.Sprintf("alt-nba-props-%s.csv", t.UTC().Format("2006-01-02-15-04"))
}

// WriteCSV writes lines, preceded by Header, in the given order
func WriteCSV(w io.Writer, lines []models.OddsLine) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	for i := range lines {
		if err := cw.Write(record(&lines[i])); err != nil {
			return fmt.Errorf("failed to write csv row %d: %w", i, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}
	return nil
}

func record(l *models.OddsLine) []string {
	return []string{
		l.Game,
		l.Player,
		l.MarketKey,
		l.MarketName.String,
		strconv.FormatFloat(l.Line, 'f', -1, 64),
		price(l.OverPrice),
		price(l.UnderPrice),
		price(l.FirstOverPrice),
		price(l.FirstUnderPrice),
		l.BookmakerTitle,
		timestamp(l.CommenceTime),
		nullTimestamp(l.LastUpdate),
		timestamp(l.FetchedAt),
		l.EventID,
	}
}

func price(p sql.NullInt32) string {
	if !p.Valid {
		return ""
	}
	return strconv.Itoa(int(p.Int32))
}

func timestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func nullTimestamp(t sql.NullTime) string {
	if !t.Valid {
		return ""
	}
	return timestamp(t.Time)
}
