package models

import "encoding/json"

// Event is an entry of the provider events listing
type Event struct {
	ID           string    `json:"id"`
	SportKey     string    `json:"sport_key"`
	SportTitle   string    `json:"sport_title"`
	CommenceTime Timestamp `json:"commence_time"`
	HomeTeam     string    `json:"home_team"`
	AwayTeam     string    `json:"away_team"`
}

// EventOdds is the provider response for a single event's odds
type EventOdds struct {
	Event
	Bookmakers []Bookmaker `json:"bookmakers"`
}

// Bookmaker groups the markets offered by one sportsbook
type Bookmaker struct {
	Key        string    `json:"key"`
	Title      string    `json:"title"`
	LastUpdate Timestamp `json:"last_update"`
	Markets    []Market  `json:"markets"`
}

// Market groups the outcomes of one market at one sportsbook
type Market struct {
	Key        string    `json:"key"`
	LastUpdate Timestamp `json:"last_update"`
	Outcomes   []Outcome `json:"outcomes"`
}

// Outcome is a single priced side.
// Price and Point are kept raw so one malformed value only drops that outcome.
type Outcome struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       json.RawMessage `json:"price"`
	Point       json.RawMessage `json:"point"`
}
