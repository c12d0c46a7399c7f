package normalize

import (
	"database/sql"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"nba_altprops/ingestion/internal/metrics"
	"nba_altprops/ingestion/internal/models"
)

// Reasons an outcome is dropped during grouping
const (
	DropBlankPlayer = "blank_player"
	DropMissingLine = "missing_line"
	DropBadPrice    = "bad_price"
	DropUnknownSide = "unknown_side"
)

// GroupOutcomes merges raw Over/Under outcomes into one OddsLine per natural key.
//
// Outcomes with a blank player, a missing line, a missing price or an
// unrecognized side label are skipped. Within a key the last Over sets the
// over price and the last Under sets the under price; descriptive fields come
// from the first outcome of the group. Lines are returned in first-seen order
// and may have neither price set.
func GroupOutcomes(outcomes []models.RawOutcome, fetchedAt time.Time) []models.OddsLine {
	index := make(map[models.NaturalKey]int)
	var lines []models.OddsLine

	for _, o := range outcomes {
		player := strings.TrimSpace(o.Player)
		if player == "" {
			drop(o, DropBlankPlayer)
			continue
		}
		if o.Line == nil || math.IsNaN(*o.Line) || math.IsInf(*o.Line, 0) {
			drop(o, DropMissingLine)
			continue
		}
		if o.Price == nil || *o.Price == 0 {
			drop(o, DropBadPrice)
			continue
		}

		side := classifySide(o.Side)
		if side == "" {
			drop(o, DropUnknownSide)
			continue
		}

		key := models.NaturalKey{
			EventID:      o.EventID,
			BookmakerKey: o.BookmakerKey,
			MarketKey:    o.MarketKey,
			Player:       player,
			Line:         *o.Line,
		}

		i, ok := index[key]
		if !ok {
			lines = append(lines, newLine(o, key, fetchedAt))
			i = len(lines) - 1
			index[key] = i
		}

		switch side {
		case models.SideOver:
			lines[i].OverPrice = models.NullPrice(o.Price)
		case models.SideUnder:
			lines[i].UnderPrice = models.NullPrice(o.Price)
		}
	}

	return lines
}

func newLine(o models.RawOutcome, key models.NaturalKey, fetchedAt time.Time) models.OddsLine {
	line := models.OddsLine{
		EventID:        key.EventID,
		BookmakerKey:   key.BookmakerKey,
		MarketKey:      key.MarketKey,
		Player:         key.Player,
		Line:           key.Line,
		SportKey:       o.SportKey,
		CommenceTime:   o.CommenceTime,
		HomeTeam:       o.HomeTeam,
		AwayTeam:       o.AwayTeam,
		Game:           models.GameLabel(o.AwayTeam, o.HomeTeam),
		BookmakerTitle: o.BookmakerTitle,
		FetchedAt:      fetchedAt,
	}
	if label := models.MarketLabel(o.MarketKey); label != "" {
		line.MarketName = sql.NullString{String: label, Valid: true}
	}
	if o.LastUpdate != nil {
		line.LastUpdate = sql.NullTime{Time: *o.LastUpdate, Valid: true}
	}
	return line
}

// classifySide maps a side label to SideOver or SideUnder, "" when unrecognized
func classifySide(label string) string {
	l := strings.ToLower(strings.TrimSpace(label))
	switch {
	case strings.HasPrefix(l, "over"):
		return models.SideOver
	case strings.HasPrefix(l, "under"):
		return models.SideUnder
	default:
		return ""
	}
}

func drop(o models.RawOutcome, reason string) {
	metrics.RecordOutcomeDropped(reason)

	evt := log.Debug()
	if reason == DropUnknownSide {
		evt = log.Warn()
	}
	evt.
		Str("event_id", o.EventID).
		Str("bookmaker", o.BookmakerKey).
		Str("market", o.MarketKey).
		Str("player", o.Player).
		Str("side", o.Side).
		Str("reason", reason).
		Msg("Dropped outcome")
}
