package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"nba_altprops/ingestion/internal/export"
	"nba_altprops/ingestion/internal/metrics"
	"nba_altprops/ingestion/internal/models"
	"nba_altprops/ingestion/internal/repository"
)

const (
	// DefaultMatchedPrice is the price both sides must carry in the matched view
	DefaultMatchedPrice = -114

	csvLookback = 2 * time.Hour
)

// LineReader reads persisted odds lines
type LineReader interface {
	ListAll(ctx context.Context, f repository.LineFilters) ([]models.OddsLine, error)
	Health(ctx context.Context) error
}

// LatestCache caches the unfiltered latest rows and the last run summary
type LatestCache interface {
	GetLatest(ctx context.Context) ([]models.OddsLine, bool, error)
	SetLatest(ctx context.Context, lines []models.OddsLine) error
	GetLastRun(ctx context.Context) (*models.RunSummary, error)
}

// ErrorResponse is the body of every non-2xx JSON response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// Handler contains dependencies for HTTP handlers
type Handler struct {
	lines     LineReader
	cache     LatestCache
	lookahead time.Duration
	now       func() time.Time
}

// NewHandler creates a new handler. cache may be nil.
func NewHandler(lines LineReader, cache LatestCache, lookahead time.Duration) *Handler {
	return &Handler{
		lines:     lines,
		cache:     cache,
		lookahead: lookahead,
		now:       time.Now,
	}
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.lines.Health(ctx); err != nil {
		respondError(w, http.StatusServiceUnavailable, "database unhealthy", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": h.now().UTC(),
		"service":   "altprops-ingestion",
	})
}

// GetLatest returns every stored line matching the filters
// Query params: since, until (RFC3339), market, book, player, game
func (h *Handler) GetLatest(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	f, err := parseLineFilters(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	unfiltered := f == (repository.LineFilters{})
	if unfiltered && h.cache != nil {
		cached, ok, err := h.cache.GetLatest(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("Latest rows cache read failed")
		}
		if ok {
			respondRows(w, cached)
			return
		}
	}

	lines, err := h.lines.ListAll(ctx, f)
	if err != nil {
		metrics.RecordError("api", "list")
		respondError(w, http.StatusInternalServerError, "failed to retrieve odds", err)
		return
	}

	if unfiltered && h.cache != nil {
		if err := h.cache.SetLatest(ctx, lines); err != nil {
			log.Warn().Err(err).Msg("Latest rows cache write failed")
		}
	}

	respondRows(w, lines)
}

// ExportCSV streams lines commencing in [now-2h, now+lookahead] as a CSV attachment
func (h *Handler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	now := h.now()
	since := now.Add(-csvLookback)
	until := now.Add(h.lookahead)

	lines, err := h.lines.ListAll(ctx, repository.LineFilters{Since: &since, Until: &until})
	if err != nil {
		metrics.RecordError("api", "export")
		respondError(w, http.StatusInternalServerError, "failed to retrieve odds", err)
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename(now)+`"`)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)

	if err := export.WriteCSV(w, lines); err != nil {
		// headers are already out
		log.Error().Err(err).Msg("Failed to write CSV export")
	}
}

// GetMatched returns lines whose over and under price both equal price
// Query params: price (default -114)
func (h *Handler) GetMatched(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	price := parseIntParam(r, "price", DefaultMatchedPrice)
	if price == 0 {
		respondError(w, http.StatusBadRequest, "price must be non-zero American odds", nil)
		return
	}

	lines, err := h.lines.ListAll(ctx, repository.LineFilters{OverPrice: &price, UnderPrice: &price})
	if err != nil {
		metrics.RecordError("api", "matched")
		respondError(w, http.StatusInternalServerError, "failed to retrieve odds", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"ok":    true,
		"price": price,
		"rows":  NewRows(lines),
		"count": len(lines),
	})
}

// GetStatus returns the last ingest run summary
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if h.cache == nil {
		respondError(w, http.StatusServiceUnavailable, "run status requires redis", nil)
		return
	}

	last, err := h.cache.GetLastRun(ctx)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to retrieve run status", err)
		return
	}
	if last == nil {
		respondError(w, http.StatusNotFound, "no run recorded yet", nil)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"ok":       true,
		"last_run": last,
	})
}

// Helper functions

type filterError string

func (e filterError) Error() string { return string(e) }

func parseLineFilters(r *http.Request) (repository.LineFilters, error) {
	q := r.URL.Query()
	f := repository.LineFilters{
		Market:    q.Get("market"),
		Bookmaker: q.Get("book"),
		Player:    q.Get("player"),
		Game:      q.Get("game"),
	}

	if s := q.Get("since"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return f, filterError("since must be an RFC3339 timestamp")
		}
		f.Since = &t
	}
	if s := q.Get("until"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return f, filterError("until must be an RFC3339 timestamp")
		}
		f.Until = &t
	}
	return f, nil
}

func parseIntParam(r *http.Request, param string, defaultValue int) int {
	valueStr := r.URL.Query().Get(param)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func respondRows(w http.ResponseWriter, lines []models.OddsLine) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"ok":    true,
		"rows":  NewRows(lines),
		"count": len(lines),
	})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Error encoding response")
	}
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	errResp := ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Code:    status,
	}

	if err != nil {
		log.Error().Err(err).Int("status", status).Msg(message)
	}

	if err := json.NewEncoder(w).Encode(errResp); err != nil {
		log.Error().Err(err).Msg("Error encoding error response")
	}
}
