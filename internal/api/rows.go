package api

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

	"nba_altprops/ingestion/internal/models"
	"nba_altprops/ingestion/internal/oddsmath"
)

// Row is the dashboard view of one stored line
type Row struct {
	EventID         string     `json:"event_id"`
	Game            string     `json:"game"`
	CommenceTime    time.Time  `json:"commence_time"`
	BookmakerKey    string     `json:"bookmaker_key"`
	BookmakerTitle  string     `json:"bookmaker_title"`
	MarketKey       string     `json:"market_key"`
	MarketName      *string    `json:"market_name"`
	Player          string     `json:"player"`
	Line            float64    `json:"line"`
	OverPrice       *int       `json:"over_price"`
	UnderPrice      *int       `json:"under_price"`
	FirstOverPrice  *int       `json:"first_over_price"`
	FirstUnderPrice *int       `json:"first_under_price"`
	LastUpdate      *time.Time `json:"last_update"`
	FetchedAt       time.Time  `json:"fetched_at"`

	// current minus first-seen, in cents
	OverMovement  *int `json:"over_movement"`
	UnderMovement *int `json:"under_movement"`

	OverImplied  *decimal.Decimal `json:"over_implied,omitempty"`
	UnderImplied *decimal.Decimal `json:"under_implied,omitempty"`
	Hold         *decimal.Decimal `json:"hold,omitempty"`
}

// NewRow builds the dashboard view of l
func NewRow(l *models.OddsLine) Row {
	row := Row{
		EventID:         l.EventID,
		Game:            l.Game,
		CommenceTime:    l.CommenceTime,
		BookmakerKey:    l.BookmakerKey,
		BookmakerTitle:  l.BookmakerTitle,
		MarketKey:       l.MarketKey,
		Player:          l.Player,
		Line:            l.Line,
		OverPrice:       models.PricePtr(l.OverPrice),
		UnderPrice:      models.PricePtr(l.UnderPrice),
		FirstOverPrice:  models.PricePtr(l.FirstOverPrice),
		FirstUnderPrice: models.PricePtr(l.FirstUnderPrice),
		FetchedAt:       l.FetchedAt,
	}
	if l.MarketName.Valid {
		name := l.MarketName.String
		row.MarketName = &name
	}
	if l.LastUpdate.Valid {
		at := l.LastUpdate.Time
		row.LastUpdate = &at
	}

	row.OverMovement = movement(l.FirstOverPrice, l.OverPrice)
	row.UnderMovement = movement(l.FirstUnderPrice, l.UnderPrice)
	row.OverImplied = implied(l.OverPrice)
	row.UnderImplied = implied(l.UnderPrice)

	if l.HasBothSides() {
		if hold, err := oddsmath.Hold(int(l.OverPrice.Int32), int(l.UnderPrice.Int32)); err == nil {
			row.Hold = &hold
		}
	}
	return row
}

// NewRows builds the dashboard view of lines, never returning nil
func NewRows(lines []models.OddsLine) []Row {
	rows := make([]Row, len(lines))
	for i := range lines {
		rows[i] = NewRow(&lines[i])
	}
	return rows
}

func movement(first, current sql.NullInt32) *int {
	if !first.Valid || !current.Valid {
		return nil
	}
	m, err := oddsmath.Movement(int(first.Int32), int(current.Int32))
	if err != nil {
		return nil
	}
	return &m
}

func implied(price sql.NullInt32) *decimal.Decimal {
	if !price.Valid {
		return nil
	}
	p, err := oddsmath.ImpliedProbability(int(price.Int32))
	if err != nil {
		return nil
	}
	return &p
}
