package normalize

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nba_altprops/ingestion/internal/models"
)

var (
	commence  = time.Date(2025, 1, 10, 0, 30, 0, 0, time.UTC)
	fetchedAt = time.Date(2025, 1, 9, 21, 0, 0, 0, time.UTC)
)

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func timePtr(v time.Time) *time.Time { return &v }

func outcome(player string, line *float64, side string, price *int) models.RawOutcome {
	return models.RawOutcome{
		EventID:        "evt1",
		SportKey:       "basketball_nba",
		CommenceTime:   commence,
		HomeTeam:       "Los Angeles Lakers",
		AwayTeam:       "Boston Celtics",
		BookmakerKey:   "draftkings",
		BookmakerTitle: "DraftKings",
		MarketKey:      "player_points_alternate",
		Player:         player,
		Line:           line,
		Side:           side,
		Price:          price,
	}
}

func TestGroupOutcomes_MergesOppositeSides(t *testing.T) {
	lines := GroupOutcomes([]models.RawOutcome{
		outcome("LeBron James", floatPtr(24.5), "Over", intPtr(-115)),
		outcome("LeBron James", floatPtr(24.5), "Under", intPtr(-105)),
	}, fetchedAt)

	require.Len(t, lines, 1)
	l := lines[0]
	assert.Equal(t, "LeBron James", l.Player)
	assert.Equal(t, 24.5, l.Line)
	assert.Equal(t, sql.NullInt32{Int32: -115, Valid: true}, l.OverPrice)
	assert.Equal(t, sql.NullInt32{Int32: -105, Valid: true}, l.UnderPrice)
	assert.Equal(t, "BOS@LAL", l.Game)
	assert.Equal(t, "Alternate Points (O/U)", l.MarketName.String)
	assert.Equal(t, fetchedAt, l.FetchedAt)
	assert.False(t, l.FirstOverPrice.Valid)
}

func TestGroupOutcomes_DistinctKeys(t *testing.T) {
	lines := GroupOutcomes([]models.RawOutcome{
		outcome("LeBron James", floatPtr(24.5), "Over", intPtr(-115)),
		outcome("LeBron James", floatPtr(25.5), "Over", intPtr(110)),
		outcome("lebron james", floatPtr(24.5), "Under", intPtr(-105)),
	}, fetchedAt)

	require.Len(t, lines, 3)
	assert.Equal(t, 24.5, lines[0].Line)
	assert.Equal(t, 25.5, lines[1].Line)
	assert.Equal(t, "lebron james", lines[2].Player)
}

func TestGroupOutcomes_TrimsPlayer(t *testing.T) {
	lines := GroupOutcomes([]models.RawOutcome{
		outcome("  Jayson Tatum ", floatPtr(29.5), "Over", intPtr(150)),
		outcome("Jayson Tatum", floatPtr(29.5), "Under", intPtr(-190)),
	}, fetchedAt)

	require.Len(t, lines, 1)
	assert.Equal(t, "Jayson Tatum", lines[0].Player)
	assert.True(t, lines[0].HasBothSides())
}

func TestGroupOutcomes_DropsBadRecords(t *testing.T) {
	lines := GroupOutcomes([]models.RawOutcome{
		outcome("   ", floatPtr(10.5), "Over", intPtr(-110)),
		outcome("Anthony Davis", nil, "Over", intPtr(-110)),
		outcome("Anthony Davis", floatPtr(11.5), "Over", nil),
		outcome("Anthony Davis", floatPtr(11.5), "Over", intPtr(0)),
		outcome("Anthony Davis", floatPtr(12.5), "Yes", intPtr(-110)),
	}, fetchedAt)

	assert.Empty(t, lines)
}

func TestGroupOutcomes_LastWriteWins(t *testing.T) {
	lines := GroupOutcomes([]models.RawOutcome{
		outcome("Derrick White", floatPtr(2.5), "Over", intPtr(-130)),
		outcome("Derrick White", floatPtr(2.5), "over", intPtr(-125)),
		outcome("Derrick White", floatPtr(2.5), "UNDER 2.5", intPtr(100)),
	}, fetchedAt)

	require.Len(t, lines, 1)
	assert.Equal(t, int32(-125), lines[0].OverPrice.Int32)
	assert.Equal(t, int32(100), lines[0].UnderPrice.Int32)
}

func TestGroupOutcomes_DescriptiveFieldsFromFirstRecord(t *testing.T) {
	first := outcome("Jrue Holiday", floatPtr(4.5), "Over", intPtr(-110))
	first.LastUpdate = timePtr(fetchedAt.Add(-time.Minute))
	second := outcome("Jrue Holiday", floatPtr(4.5), "Under", intPtr(-110))
	second.BookmakerTitle = "DK renamed"
	second.LastUpdate = timePtr(fetchedAt)

	lines := GroupOutcomes([]models.RawOutcome{first, second}, fetchedAt)

	require.Len(t, lines, 1)
	assert.Equal(t, "DraftKings", lines[0].BookmakerTitle)
	assert.Equal(t, fetchedAt.Add(-time.Minute), lines[0].LastUpdate.Time)
}

func TestGroupOutcomes_RoundTrip(t *testing.T) {
	first := GroupOutcomes([]models.RawOutcome{
		outcome("LeBron James", floatPtr(24.5), "Over", intPtr(-115)),
		outcome("LeBron James", floatPtr(24.5), "Under", intPtr(-105)),
		outcome("Austin Reaves", floatPtr(14.5), "Over", intPtr(120)),
		outcome("Austin Reaves", floatPtr(14.5), "Under", intPtr(-150)),
	}, fetchedAt)

	var raw []models.RawOutcome
	for i := range first {
		raw = append(raw, first[i].Outcomes()...)
	}
	second := GroupOutcomes(raw, fetchedAt)

	assert.Equal(t, first, second)
}

func TestFilterLines(t *testing.T) {
	both := models.OddsLine{Player: "a", OverPrice: models.NullPrice(intPtr(-110)), UnderPrice: models.NullPrice(intPtr(-110))}
	overOnly := models.OddsLine{Player: "b", OverPrice: models.NullPrice(intPtr(-110))}
	empty := models.OddsLine{Player: "c"}
	lines := []models.OddsLine{both, overOnly, empty}

	assert.Len(t, FilterLines(lines, KeepAll), 3)
	assert.Equal(t, []models.OddsLine{both, overOnly}, FilterLines(lines, DropEmpty))
	assert.Equal(t, []models.OddsLine{both}, FilterLines(lines, TwoSided))
}

func TestParseSidePolicy(t *testing.T) {
	p, err := ParseSidePolicy("")
	require.NoError(t, err)
	assert.Equal(t, TwoSided, p)

	p, err = ParseSidePolicy("drop_empty")
	require.NoError(t, err)
	assert.Equal(t, DropEmpty, p)

	_, err = ParseSidePolicy("one_sided")
	assert.Error(t, err)
}

func TestPreserveFirstSeen(t *testing.T) {
	tests := []struct {
		name          string
		candidate     models.OddsLine
		previous      *models.OddsLine
		wantOver      *int
		wantUnder     *int
		wantFirstOver *int
		wantFirstUnd  *int
	}{
		{
			name: "keeps stored first prices",
			candidate: models.OddsLine{
				OverPrice:  models.NullPrice(intPtr(-115)),
				UnderPrice: models.NullPrice(intPtr(-140)),
			},
			previous: &models.OddsLine{
				FirstOverPrice:  models.NullPrice(intPtr(-120)),
				FirstUnderPrice: models.NullPrice(intPtr(-130)),
			},
			wantOver:      intPtr(-115),
			wantUnder:     intPtr(-140),
			wantFirstOver: intPtr(-120),
			wantFirstUnd:  intPtr(-130),
		},
		{
			name: "no previous row",
			candidate: models.OddsLine{
				OverPrice:  models.NullPrice(intPtr(-110)),
				UnderPrice: models.NullPrice(intPtr(-110)),
			},
			wantOver:      intPtr(-110),
			wantUnder:     intPtr(-110),
			wantFirstOver: intPtr(-110),
			wantFirstUnd:  intPtr(-110),
		},
		{
			name: "legacy row without first prices",
			candidate: models.OddsLine{
				OverPrice:  models.NullPrice(intPtr(150)),
				UnderPrice: models.NullPrice(intPtr(-180)),
			},
			previous: &models.OddsLine{
				OverPrice:       models.NullPrice(intPtr(140)),
				FirstUnderPrice: models.NullPrice(intPtr(-170)),
			},
			wantOver:      intPtr(150),
			wantUnder:     intPtr(-180),
			wantFirstOver: intPtr(150),
			wantFirstUnd:  intPtr(-170),
		},
		{
			name:      "candidate missing a side",
			candidate: models.OddsLine{OverPrice: models.NullPrice(intPtr(-105))},
			previous: &models.OddsLine{
				FirstOverPrice:  models.NullPrice(intPtr(-100)),
				FirstUnderPrice: models.NullPrice(intPtr(-120)),
			},
			wantOver:      intPtr(-105),
			wantFirstOver: intPtr(-100),
			wantFirstUnd:  intPtr(-120),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PreserveFirstSeen(tt.candidate, tt.previous)
			assert.Equal(t, tt.wantOver, models.PricePtr(got.OverPrice))
			assert.Equal(t, tt.wantUnder, models.PricePtr(got.UnderPrice))
			assert.Equal(t, tt.wantFirstOver, models.PricePtr(got.FirstOverPrice))
			assert.Equal(t, tt.wantFirstUnd, models.PricePtr(got.FirstUnderPrice))
		})
	}
}

func TestPreserveFirstSeen_Idempotent(t *testing.T) {
	candidate := models.OddsLine{
		OverPrice:  models.NullPrice(intPtr(-115)),
		UnderPrice: models.NullPrice(intPtr(-140)),
	}
	prev := PreserveFirstSeen(models.OddsLine{
		OverPrice:  models.NullPrice(intPtr(-120)),
		UnderPrice: models.NullPrice(intPtr(-130)),
	}, nil)

	once := PreserveFirstSeen(candidate, &prev)
	twice := PreserveFirstSeen(candidate, &once)
	assert.Equal(t, once, twice)
	assert.Equal(t, int32(-120), twice.FirstOverPrice.Int32)
}

const eventOddsBody = `{
	"id": "evt1",
	"sport_key": "basketball_nba",
	"commence_time": "2025-01-10T00:30:00Z",
	"home_team": "Los Angeles Lakers",
	"away_team": "Boston Celtics",
	"bookmakers": [
		{
			"key": "draftkings",
			"title": "DraftKings",
			"last_update": "2025-01-09T20:00:00Z",
			"markets": [
				{
					"key": "player_points_alternate",
					"last_update": "2025-01-09T20:05:00Z",
					"outcomes": [
						{"name": "Over", "description": "LeBron James", "price": -115, "point": 24.5},
						{"name": "Under", "description": "LeBron James", "price": -105, "point": 24.5},
						{"name": "Over", "description": "Austin Reaves", "price": "abc", "point": 14.5},
						{"name": "Over", "description": "Austin Reaves", "price": -110.5, "point": 15.5},
						{"name": "Over", "description": "Austin Reaves", "price": -110, "point": null}
					]
				},
				{
					"key": "player_points",
					"outcomes": [
						{"name": "Over", "description": "LeBron James", "price": -110, "point": 25.5}
					]
				}
			]
		},
		{
			"key": "fanduel",
			"title": "FanDuel",
			"last_update": "2025-01-09T20:01:00Z",
			"markets": [
				{
					"key": "player_rebounds_alternate",
					"outcomes": [
						{"name": "Over", "description": "Anthony Davis", "price": 120, "point": 11.5}
					]
				}
			]
		}
	]
}`

func TestParseAndFlatten(t *testing.T) {
	ev, err := ParseEventOdds([]byte(eventOddsBody))
	require.NoError(t, err)

	raw, err := FlattenEventOdds(ev, models.AltMarkets)
	require.NoError(t, err)
	require.Len(t, raw, 6)

	assert.Equal(t, time.Date(2025, 1, 9, 20, 5, 0, 0, time.UTC), *raw[0].LastUpdate)
	assert.Equal(t, time.Date(2025, 1, 9, 20, 1, 0, 0, time.UTC), *raw[5].LastUpdate)
	assert.Nil(t, raw[2].Price)
	assert.Nil(t, raw[3].Price)
	assert.Nil(t, raw[4].Line)

	lines := GroupOutcomes(raw, fetchedAt)
	require.Len(t, lines, 2)
	assert.True(t, lines[0].HasBothSides())
	assert.Equal(t, "fanduel", lines[1].BookmakerKey)
	assert.False(t, lines[1].UnderPrice.Valid)

	assert.Len(t, FilterLines(lines, TwoSided), 1)
}

func TestFlattenEventOdds_AllMarketsWhenNoAllowList(t *testing.T) {
	ev, err := ParseEventOdds([]byte(eventOddsBody))
	require.NoError(t, err)

	raw, err := FlattenEventOdds(ev, nil)
	require.NoError(t, err)
	assert.Len(t, raw, 7)
}

func TestParseEventOdds_BadTimestampsAreAbsent(t *testing.T) {
	body := `{
		"id": "evt2",
		"commence_time": "TBD",
		"home_team": "Los Angeles Lakers",
		"away_team": "Boston Celtics",
		"bookmakers": [
			{
				"key": "draftkings",
				"title": "DraftKings",
				"last_update": "2025-01-09T20:00:00Z",
				"markets": [{
					"key": "player_points_alternate",
					"last_update": "",
					"outcomes": [
						{"name": "Over", "description": "LeBron James", "price": -115, "point": 24.5},
						{"name": "Under", "description": "LeBron James", "price": -105, "point": 24.5}
					]
				}]
			},
			{
				"key": "fanduel",
				"title": "FanDuel",
				"last_update": "yesterday",
				"markets": [{
					"key": "player_points_alternate",
					"last_update": 17,
					"outcomes": [
						{"name": "Over", "description": "LeBron James", "price": -120, "point": 24.5},
						{"name": "Under", "description": "LeBron James", "price": -110, "point": 24.5}
					]
				}]
			}
		]
	}`

	ev, err := ParseEventOdds([]byte(body))
	require.NoError(t, err)
	assert.True(t, ev.CommenceTime.IsZero())

	raw, err := FlattenEventOdds(ev, models.AltMarkets)
	require.NoError(t, err)
	require.Len(t, raw, 4)

	// empty market timestamp falls back to the bookmaker's
	require.NotNil(t, raw[0].LastUpdate)
	assert.Equal(t, time.Date(2025, 1, 9, 20, 0, 0, 0, time.UTC), *raw[0].LastUpdate)
	assert.Nil(t, raw[2].LastUpdate)

	lines := GroupOutcomes(raw, fetchedAt)
	require.Len(t, lines, 2)
	assert.True(t, lines[0].HasBothSides())
	assert.True(t, lines[1].HasBothSides())
	assert.False(t, lines[1].LastUpdate.Valid)
}

func TestParseEventOdds_ShapeErrors(t *testing.T) {
	for _, body := range []string{"", "[]", "null", `{"id": 5}`, `{"sport_key": "basketball_nba"}`} {
		_, err := ParseEventOdds([]byte(body))
		var shapeErr *InputShapeError
		assert.True(t, errors.As(err, &shapeErr), "body %q", body)
	}

	_, err := FlattenEventOdds(nil, nil)
	var shapeErr *InputShapeError
	assert.True(t, errors.As(err, &shapeErr))
}
