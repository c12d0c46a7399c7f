package models

import (
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGameLabel(t *testing.T) {
	assert.Equal(t, "BOS@LAL", GameLabel("Boston Celtics", "Los Angeles Lakers"))
	assert.Equal(t, "LAC@GSW", GameLabel("LA Clippers", "Golden State Warriors"))
	assert.Equal(t, "Team Nowhere@NYK", GameLabel("Team Nowhere", "New York Knicks"))
}

func TestMarketLabel(t *testing.T) {
	assert.Equal(t, "Alternate Points (O/U)", MarketLabel("player_points_alternate"))
	assert.Equal(t, "Alternate Points + Rebounds + Assists (O/U)", MarketLabel("player_points_rebounds_assists_alternate"))
	assert.Equal(t, "", MarketLabel("player_points"))

	assert.Len(t, AltMarkets, 11)
	for _, m := range AltMarkets {
		assert.True(t, IsAltMarket(m), m)
		assert.NotEmpty(t, MarketLabel(m), m)
	}
}

func TestOddsLineOutcomes(t *testing.T) {
	ts := time.Date(2025, 1, 10, 18, 0, 0, 0, time.UTC)
	line := OddsLine{
		EventID:      "evt1",
		BookmakerKey: "draftkings",
		MarketKey:    "player_points_alternate",
		Player:       "Jayson Tatum",
		Line:         24.5,
		OverPrice:    sql.NullInt32{Int32: -120, Valid: true},
		LastUpdate:   sql.NullTime{Time: ts, Valid: true},
	}

	out := line.Outcomes()
	require.Len(t, out, 1)
	assert.Equal(t, SideOver, out[0].Side)
	require.NotNil(t, out[0].Price)
	assert.Equal(t, -120, *out[0].Price)
	require.NotNil(t, out[0].Line)
	assert.Equal(t, 24.5, *out[0].Line)
	require.NotNil(t, out[0].LastUpdate)
	assert.True(t, ts.Equal(*out[0].LastUpdate))

	line.UnderPrice = sql.NullInt32{Int32: 100, Valid: true}
	assert.Len(t, line.Outcomes(), 2)
	assert.True(t, line.HasBothSides())
}

func TestPriceHelpers(t *testing.T) {
	assert.False(t, NullPrice(nil).Valid)
	p := -115
	np := NullPrice(&p)
	assert.True(t, np.Valid)
	assert.Equal(t, int32(-115), np.Int32)
	assert.Equal(t, -115, *PricePtr(np))
	assert.Nil(t, PricePtr(sql.NullInt32{}))
}

func TestEventOddsDecode(t *testing.T) {
	body := `{
		"id": "evt1",
		"sport_key": "basketball_nba",
		"commence_time": "2025-01-10T00:30:00Z",
		"home_team": "Los Angeles Lakers",
		"away_team": "Boston Celtics",
		"bookmakers": [{
			"key": "fanduel",
			"title": "FanDuel",
			"last_update": "2025-01-09T20:00:00Z",
			"markets": [{
				"key": "player_points_alternate",
				"outcomes": [{"name": "Over", "description": "LeBron James", "price": -110, "point": 24.5}]
			}]
		}]
	}`

	var ev EventOdds
	require.NoError(t, json.Unmarshal([]byte(body), &ev))
	assert.Equal(t, "evt1", ev.ID)
	require.Len(t, ev.Bookmakers, 1)
	assert.Nil(t, ev.Bookmakers[0].Markets[0].LastUpdate.Ptr())
	require.NotNil(t, ev.Bookmakers[0].LastUpdate.Ptr())
	assert.Equal(t, time.Date(2025, 1, 9, 20, 0, 0, 0, time.UTC), *ev.Bookmakers[0].LastUpdate.Ptr())
	assert.Equal(t, "-110", string(ev.Bookmakers[0].Markets[0].Outcomes[0].Price))
}

func TestTimestampDecode(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Time
		invalid bool
	}{
		{"rfc3339", `"2025-01-10T00:30:00Z"`, time.Date(2025, 1, 10, 0, 30, 0, 0, time.UTC), false},
		{"fractional seconds", `"2025-01-10T00:30:00.5Z"`, time.Date(2025, 1, 10, 0, 30, 0, 500000000, time.UTC), false},
		{"null", `null`, time.Time{}, false},
		{"empty string", `""`, time.Time{}, false},
		{"not a time", `"TBD"`, time.Time{}, true},
		{"number", `1736469000`, time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ts Timestamp
			require.NoError(t, json.Unmarshal([]byte(tt.input), &ts))
			assert.True(t, tt.want.Equal(ts.Time), "got %v", ts.Time)
			assert.Equal(t, tt.invalid, ts.Invalid())
			if tt.want.IsZero() {
				assert.Nil(t, ts.Ptr())
			}
		})
	}
}

func TestTimestampEncode(t *testing.T) {
	out, err := json.Marshal(struct {
		Set   Timestamp `json:"set"`
		Unset Timestamp `json:"unset"`
	}{Set: NewTimestamp(time.Date(2025, 1, 10, 0, 30, 0, 0, time.UTC))})
	require.NoError(t, err)
	assert.JSONEq(t, `{"set":"2025-01-10T00:30:00Z","unset":null}`, string(out))
}
