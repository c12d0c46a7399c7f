package models

import "time"

// EventRunSummary reports the outcome of one event within an ingest run
type EventRunSummary struct {
	EventID   string `json:"event_id"`
	Game      string `json:"game,omitempty"`
	Rows      int    `json:"rows"`
	Remaining *int   `json:"remaining,omitempty"`
	Used      *int   `json:"used,omitempty"`
	Last      *int   `json:"last,omitempty"`
	Error     string `json:"error,omitempty"`
}

// RunSummary reports the outcome of an ingest run
type RunSummary struct {
	RunID      string            `json:"run_id"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	TookMS     int64             `json:"took_ms"`
	Events     int               `json:"events"`
	Rows       int               `json:"rows"`
	Failed     int               `json:"failed"`
	Error      string            `json:"error,omitempty"`
	Summary    []EventRunSummary `json:"summary"`
}
