package normalize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"github.com/rs/zerolog/log"

	"nba_altprops/ingestion/internal/models"
)

// InputShapeError is returned when a provider response is not shaped like an event odds document
type InputShapeError struct {
	Reason string
	Err    error
}

func (e *InputShapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("unexpected input shape: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("unexpected input shape: %s", e.Reason)
}

func (e *InputShapeError) Unwrap() error {
	return e.Err
}

// ParseEventOdds decodes a per-event odds response body
func ParseEventOdds(body []byte) (*models.EventOdds, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, &InputShapeError{Reason: "expected a JSON object"}
	}

	var ev models.EventOdds
	if err := json.Unmarshal(trimmed, &ev); err != nil {
		return nil, &InputShapeError{Reason: "decode event odds", Err: err}
	}

	if ev.ID == "" {
		return nil, &InputShapeError{Reason: "event id missing"}
	}
	if ev.CommenceTime.Invalid() {
		log.Debug().
			Str("event_id", ev.ID).
			Str("commence_time", ev.CommenceTime.Raw).
			Msg("Unparseable commence_time treated as absent")
	}

	return &ev, nil
}

// FlattenEventOdds walks bookmakers, markets and outcomes of an event and
// returns one RawOutcome per outcome. Only markets in the allow-list are kept;
// an empty allow-list keeps every market.
//
// Price and point values that cannot be parsed are left nil so the grouper
// drops the outcome.
func FlattenEventOdds(ev *models.EventOdds, markets []string) ([]models.RawOutcome, error) {
	if ev == nil {
		return nil, &InputShapeError{Reason: "nil event odds"}
	}

	var allowed map[string]struct{}
	if len(markets) > 0 {
		allowed = make(map[string]struct{}, len(markets))
		for _, m := range markets {
			allowed[m] = struct{}{}
		}
	}

	var out []models.RawOutcome
	for _, book := range ev.Bookmakers {
		for _, market := range book.Markets {
			if allowed != nil {
				if _, ok := allowed[market.Key]; !ok {
					continue
				}
			}

			if market.LastUpdate.Invalid() || book.LastUpdate.Invalid() {
				log.Debug().
					Str("event_id", ev.ID).
					Str("bookmaker", book.Key).
					Str("market", market.Key).
					Str("market_last_update", market.LastUpdate.Raw).
					Str("bookmaker_last_update", book.LastUpdate.Raw).
					Msg("Unparseable last_update treated as absent")
			}
			lastUpdate := market.LastUpdate.Ptr()
			if lastUpdate == nil {
				lastUpdate = book.LastUpdate.Ptr()
			}

			for _, o := range market.Outcomes {
				price, err := parsePrice(o.Price)
				if err != nil {
					log.Debug().
						Str("event_id", ev.ID).
						Str("bookmaker", book.Key).
						Str("market", market.Key).
						Err(err).
						Msg("Unparseable outcome price")
				}

				line, err := parsePoint(o.Point)
				if err != nil {
					log.Debug().
						Str("event_id", ev.ID).
						Str("bookmaker", book.Key).
						Str("market", market.Key).
						Err(err).
						Msg("Unparseable outcome point")
				}

				out = append(out, models.RawOutcome{
					EventID:        ev.ID,
					SportKey:       ev.SportKey,
					CommenceTime:   ev.CommenceTime.Time,
					HomeTeam:       ev.HomeTeam,
					AwayTeam:       ev.AwayTeam,
					BookmakerKey:   book.Key,
					BookmakerTitle: book.Title,
					MarketKey:      market.Key,
					Player:         o.Description,
					Line:           line,
					Side:           o.Name,
					Price:          price,
					LastUpdate:     lastUpdate,
				})
			}
		}
	}

	return out, nil
}

// parsePrice accepts a finite, integral, non-zero JSON number.
// Absent or null values return (nil, nil).
func parsePrice(raw json.RawMessage) (*int, error) {
	v, err := parseNumber(raw)
	if err != nil || v == nil {
		return nil, err
	}
	f := *v
	if f != math.Trunc(f) {
		return nil, fmt.Errorf("price %v is not an integer", f)
	}
	if f == 0 {
		return nil, fmt.Errorf("price is zero")
	}
	if f > math.MaxInt32 || f < math.MinInt32 {
		return nil, fmt.Errorf("price %v out of range", f)
	}
	p := int(f)
	return &p, nil
}

// parsePoint accepts a finite JSON number. Absent or null values return (nil, nil).
func parsePoint(raw json.RawMessage) (*float64, error) {
	return parseNumber(raw)
}

func parseNumber(raw json.RawMessage) (*float64, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	var f float64
	if err := json.Unmarshal(trimmed, &f); err != nil {
		return nil, fmt.Errorf("not a number: %w", err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("not finite")
	}
	return &f, nil
}
