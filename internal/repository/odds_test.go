//go:build integration

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nba_altprops/ingestion/internal/models"
)

func testLine(eventID, player string, line float64, over, under int32) models.OddsLine {
	return models.OddsLine{
		EventID:         eventID,
		BookmakerKey:    "draftkings",
		MarketKey:       "player_points_alternate",
		Player:          player,
		Line:            line,
		SportKey:        "basketball_nba",
		CommenceTime:    time.Now().Add(6 * time.Hour).UTC().Truncate(time.Second),
		HomeTeam:        "Los Angeles Lakers",
		AwayTeam:        "Boston Celtics",
		Game:            "BOS@LAL",
		BookmakerTitle:  "DraftKings",
		MarketName:      sql.NullString{String: "Alternate Points (O/U)", Valid: true},
		OverPrice:       sql.NullInt32{Int32: over, Valid: true},
		UnderPrice:      sql.NullInt32{Int32: under, Valid: true},
		FirstOverPrice:  sql.NullInt32{Int32: over, Valid: true},
		FirstUnderPrice: sql.NullInt32{Int32: under, Valid: true},
		FetchedAt:       time.Now().UTC().Truncate(time.Second),
	}
}

func cleanupEvent(t *testing.T, db *Database, eventID string) {
	t.Cleanup(func() {
		_, _ = db.Pool.Exec(context.Background(), "DELETE FROM odds_lines_current WHERE event_id = $1", eventID)
	})
}

func TestOddsLineRepository_UpsertAndGet(t *testing.T) {
	db, ctx := setupTestDB(t)
	defer teardownTestDB(t, db)

	eventID := "test-" + uuid.NewString()
	cleanupEvent(t, db, eventID)

	line := testLine(eventID, "LeBron James", 24.5, -115, -105)
	require.NoError(t, db.Lines.Upsert(ctx, &line))

	got, err := db.Lines.GetByKey(ctx, line.Key())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int32(-115), got.OverPrice.Int32)
	assert.Equal(t, "BOS@LAL", got.Game)
	assert.False(t, got.LastUpdate.Valid)

	// Replace semantics: the upsert overwrites every non-key column
	line.OverPrice = sql.NullInt32{Int32: -125, Valid: true}
	line.FirstOverPrice = sql.NullInt32{}
	require.NoError(t, db.Lines.Upsert(ctx, &line))

	got, err = db.Lines.GetByKey(ctx, line.Key())
	require.NoError(t, err)
	assert.Equal(t, int32(-125), got.OverPrice.Int32)
	assert.False(t, got.FirstOverPrice.Valid)
}

func TestOddsLineRepository_GetByKeyMissing(t *testing.T) {
	db, ctx := setupTestDB(t)
	defer teardownTestDB(t, db)

	got, err := db.Lines.GetByKey(ctx, models.NaturalKey{EventID: "missing-" + uuid.NewString(), Player: "x", Line: 1.5})
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestOddsLineRepository_UpsertLinesAndGetByKeys(t *testing.T) {
	db, ctx := setupTestDB(t)
	defer teardownTestDB(t, db)

	eventID := "test-" + uuid.NewString()
	cleanupEvent(t, db, eventID)

	// More than one batch
	var lines []models.OddsLine
	for i := 0; i < UpsertBatchSize+20; i++ {
		lines = append(lines, testLine(eventID, fmt.Sprintf("Player %03d", i), 10.5, -110, -110))
	}

	n, err := db.Lines.UpsertLines(ctx, lines)
	require.NoError(t, err)
	assert.Equal(t, len(lines), n)

	keys := []models.NaturalKey{lines[0].Key(), lines[len(lines)-1].Key(), {EventID: eventID, Player: "nobody", Line: 1}}
	found, err := db.Lines.GetByKeys(ctx, keys)
	require.NoError(t, err)
	assert.Len(t, found, 2)
	assert.Contains(t, found, lines[0].Key())

	all, err := db.Lines.ListAll(ctx, LineFilters{EventID: eventID})
	require.NoError(t, err)
	assert.Len(t, all, len(lines))
}

func TestOddsLineRepository_ListFiltersAndOrdering(t *testing.T) {
	db, ctx := setupTestDB(t)
	defer teardownTestDB(t, db)

	eventID := "test-" + uuid.NewString()
	cleanupEvent(t, db, eventID)

	_, err := db.Lines.UpsertLines(ctx, []models.OddsLine{
		testLine(eventID, "LeBron James", 24.5, -114, -114),
		testLine(eventID, "LeBron James", 29.5, 150, -190),
		testLine(eventID, "Anthony Davis", 24.5, -110, -110),
	})
	require.NoError(t, err)

	rows, err := db.Lines.List(ctx, LineFilters{EventID: eventID})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Anthony Davis", rows[0].Player)
	assert.Equal(t, 29.5, rows[1].Line)
	assert.Equal(t, 24.5, rows[2].Line)

	price := -114
	matched, err := db.Lines.List(ctx, LineFilters{EventID: eventID, OverPrice: &price, UnderPrice: &price})
	require.NoError(t, err)
	require.Len(t, matched, 1)
	assert.Equal(t, "LeBron James", matched[0].Player)

	page, err := db.Lines.List(ctx, LineFilters{EventID: eventID, Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, 29.5, page[0].Line)
}
