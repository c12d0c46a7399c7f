package models

import (
	"database/sql"
	"time"
)

// Side labels for an alternate line outcome
const (
	SideOver  = "Over"
	SideUnder = "Under"
)

// RawOutcome is one side of a player-prop line from one bookmaker for one event and market
type RawOutcome struct {
	EventID        string
	SportKey       string
	CommenceTime   time.Time
	HomeTeam       string
	AwayTeam       string
	BookmakerKey   string
	BookmakerTitle string
	MarketKey      string
	Player         string
	Line           *float64
	Side           string
	Price          *int
	LastUpdate     *time.Time
}

// NaturalKey identifies one alternate line
type NaturalKey struct {
	EventID      string  `json:"event_id"`
	BookmakerKey string  `json:"bookmaker_key"`
	MarketKey    string  `json:"market_key"`
	Player       string  `json:"player"`
	Line         float64 `json:"line"`
}

// OddsLine is the persisted row for one alternate line (table odds_lines_current)
type OddsLine struct {
	// Natural key
	EventID      string  `db:"event_id"`
	BookmakerKey string  `db:"bookmaker_key"`
	MarketKey    string  `db:"market_key"`
	Player       string  `db:"player"`
	Line         float64 `db:"line"`

	// Descriptive fields
	SportKey       string         `db:"sport_key"`
	CommenceTime   time.Time      `db:"commence_time"`
	HomeTeam       string         `db:"home_team"`
	AwayTeam       string         `db:"away_team"`
	Game           string         `db:"game"`
	BookmakerTitle string         `db:"bookmaker_title"`
	MarketName     sql.NullString `db:"market_name"`

	// Current prices (American odds)
	OverPrice  sql.NullInt32 `db:"over_price"`
	UnderPrice sql.NullInt32 `db:"under_price"`

	// Prices observed the first time this key was persisted
	FirstOverPrice  sql.NullInt32 `db:"first_over_price"`
	FirstUnderPrice sql.NullInt32 `db:"first_under_price"`

	LastUpdate sql.NullTime `db:"last_update"`
	FetchedAt  time.Time    `db:"fetched_at"`
}

// Key returns the natural key of the line
func (l *OddsLine) Key() NaturalKey {
	return NaturalKey{
		EventID:      l.EventID,
		BookmakerKey: l.BookmakerKey,
		MarketKey:    l.MarketKey,
		Player:       l.Player,
		Line:         l.Line,
	}
}

// HasBothSides reports whether both the over and under price are present
func (l *OddsLine) HasBothSides() bool {
	return l.OverPrice.Valid && l.UnderPrice.Valid
}

// HasAnySide reports whether at least one price is present
func (l *OddsLine) HasAnySide() bool {
	return l.OverPrice.Valid || l.UnderPrice.Valid
}

// Outcomes expands the line back into its raw per-side records.
// Sides without a current price are omitted.
func (l *OddsLine) Outcomes() []RawOutcome {
	base := RawOutcome{
		EventID:        l.EventID,
		SportKey:       l.SportKey,
		CommenceTime:   l.CommenceTime,
		HomeTeam:       l.HomeTeam,
		AwayTeam:       l.AwayTeam,
		BookmakerKey:   l.BookmakerKey,
		BookmakerTitle: l.BookmakerTitle,
		MarketKey:      l.MarketKey,
		Player:         l.Player,
	}
	line := l.Line
	base.Line = &line
	if l.LastUpdate.Valid {
		ts := l.LastUpdate.Time
		base.LastUpdate = &ts
	}

	var out []RawOutcome
	if l.OverPrice.Valid {
		o := base
		price := int(l.OverPrice.Int32)
		o.Side = SideOver
		o.Price = &price
		out = append(out, o)
	}
	if l.UnderPrice.Valid {
		u := base
		price := int(l.UnderPrice.Int32)
		u.Side = SideUnder
		u.Price = &price
		out = append(out, u)
	}
	return out
}

// NullPrice wraps an optional American price for storage
func NullPrice(price *int) sql.NullInt32 {
	if price == nil {
		return sql.NullInt32{}
	}
	return sql.NullInt32{Int32: int32(*price), Valid: true}
}

// PricePtr unwraps a stored price, nil when absent
func PricePtr(price sql.NullInt32) *int {
	if !price.Valid {
		return nil
	}
	v := int(price.Int32)
	return &v
}
