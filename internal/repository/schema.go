package repository

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS odds_lines_current (
	event_id          TEXT             NOT NULL,
	bookmaker_key     TEXT             NOT NULL,
	market_key        TEXT             NOT NULL,
	player            TEXT             NOT NULL,
	line              DOUBLE PRECISION NOT NULL,

	sport_key         TEXT             NOT NULL DEFAULT 'basketball_nba',
	commence_time     TIMESTAMPTZ      NOT NULL,
	home_team         TEXT             NOT NULL DEFAULT '',
	away_team         TEXT             NOT NULL DEFAULT '',
	game              TEXT             NOT NULL DEFAULT '',
	bookmaker_title   TEXT             NOT NULL DEFAULT '',
	market_name       TEXT,

	over_price        INTEGER,
	under_price       INTEGER,
	first_over_price  INTEGER,
	first_under_price INTEGER,

	last_update       TIMESTAMPTZ,
	fetched_at        TIMESTAMPTZ      NOT NULL DEFAULT NOW(),

	PRIMARY KEY (event_id, bookmaker_key, market_key, player, line)
);

CREATE INDEX IF NOT EXISTS idx_odds_lines_current_commence_time
	ON odds_lines_current (commence_time);
`

// EnsureSchema creates the odds_lines_current table when it does not exist
func (db *Database) EnsureSchema(ctx context.Context) error {
	if _, err := db.Pool.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}

	log.Debug().Msg("Database schema ensured")
	return nil
}
