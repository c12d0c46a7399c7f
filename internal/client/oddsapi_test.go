package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder captures backoff waits without sleeping
type recorder struct {
	delays []time.Duration
}

func (r *recorder) sleep(_ context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return nil
}

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) (*Client, *recorder) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	rec := &recorder{}
	opts = append([]Option{WithSleep(rec.sleep)}, opts...)
	c := NewClient(Config{
		BaseURL: srv.URL,
		APIKey:  "test-key",
		Timeout: 5 * time.Second,
		Regions: "us",
	}, opts...)
	return c, rec
}

func TestGet_RetriesRateLimitThenSucceeds(t *testing.T) {
	var calls int32
	c, rec := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("x-requests-remaining", "480")
		w.Header().Set("x-requests-used", "20")
		w.Header().Set("x-requests-last", "11")
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	body, rl, err := c.get(context.Background(), endpointEvents, "sports/basketball_nba/events", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))

	require.Len(t, rec.delays, 2)
	assert.LessOrEqual(t, rec.delays[0], rec.delays[1])
	assert.GreaterOrEqual(t, rec.delays[0], 500*time.Millisecond)
	assert.Less(t, rec.delays[0], 750*time.Millisecond)
	assert.GreaterOrEqual(t, rec.delays[1], time.Second)
	assert.Less(t, rec.delays[1], 1250*time.Millisecond)

	require.NotNil(t, rl.Remaining)
	assert.Equal(t, 480, *rl.Remaining)
	assert.Equal(t, 20, *rl.Used)
	assert.Equal(t, 11, *rl.Last)
}

func TestGet_NotFoundFailsImmediately(t *testing.T) {
	var calls int32
	c, rec := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(strings.Repeat("x", 400)))
	})

	_, _, err := c.get(context.Background(), endpointEvents, "sports/basketball_nba/events", nil)
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Empty(t, rec.delays)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Len(t, apiErr.Body, maxErrorBody)
	assert.False(t, apiErr.Retryable())
}

func TestGet_ExhaustsAttemptsOnServerError(t *testing.T) {
	var calls int32
	c, rec := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	}, WithJitter(func(time.Duration) time.Duration { return 0 }))

	_, _, err := c.get(context.Background(), endpointEvents, "sports/basketball_nba/events", nil)
	require.Error(t, err)
	assert.Equal(t, int32(4), atomic.LoadInt32(&calls))
	assert.Equal(t, []time.Duration{500 * time.Millisecond, time.Second, 2 * time.Second}, rec.delays)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "upstream down", apiErr.Body)
}

func TestGet_RetriesNetworkErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	baseURL := srv.URL
	srv.Close()

	rec := &recorder{}
	c := NewClient(Config{BaseURL: baseURL, APIKey: "k", Timeout: time.Second}, WithSleep(rec.sleep))

	_, _, err := c.get(context.Background(), endpointEvents, "sports/basketball_nba/events", nil)
	require.Error(t, err)
	assert.Len(t, rec.delays, 3)

	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr))
}

func TestGet_CancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}, WithSleep(func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}))

	_, _, err := c.get(ctx, endpointEvents, "sports/basketball_nba/events", nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestFetchEvents(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sports/basketball_nba/events", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("apiKey"))
		_, _ = w.Write([]byte(`[
			{"id":"e1","sport_key":"basketball_nba","commence_time":"2025-01-10T00:30:00Z","home_team":"Los Angeles Lakers","away_team":"Boston Celtics"},
			{"id":"e2","sport_key":"basketball_nba","commence_time":"2025-01-10T03:00:00Z","home_team":"Phoenix Suns","away_team":"Utah Jazz"}
		]`))
	})

	events, _, err := c.FetchEvents(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "e1", events[0].ID)
	assert.Equal(t, time.Date(2025, 1, 10, 0, 30, 0, 0, time.UTC), events[0].CommenceTime.UTC())
}

func TestFetchEvents_UnparseableCommenceTimeKeepsListing(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[
			{"id":"e1","commence_time":"2025-01-10T00:30:00Z","home_team":"Los Angeles Lakers","away_team":"Boston Celtics"},
			{"id":"e2","commence_time":"TBD","home_team":"Phoenix Suns","away_team":"Utah Jazz"}
		]`))
	})

	events, _, err := c.FetchEvents(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.False(t, events[0].CommenceTime.IsZero())
	assert.True(t, events[1].CommenceTime.IsZero())
	assert.Equal(t, "TBD", events[1].CommenceTime.Raw)
}

func TestFetchEventOdds_QueryParameters(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sports/basketball_nba/events/e1/odds", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "us", q.Get("regions"))
		assert.Equal(t, "american", q.Get("oddsFormat"))
		assert.Equal(t, "iso", q.Get("dateFormat"))
		assert.Equal(t, "draftkings,fanduel", q.Get("bookmakers"))
		assert.Contains(t, q.Get("markets"), "player_points_alternate")
		assert.Contains(t, q.Get("markets"), "player_points_rebounds_assists_alternate")
		w.Header().Set("x-requests-remaining", "100.0")
		_, _ = w.Write([]byte(`{"id":"e1"}`))
	})
	c.bookmakers = "draftkings,fanduel"

	body, rl, err := c.FetchEventOdds(context.Background(), "e1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"e1"}`, string(body))
	require.NotNil(t, rl.Remaining)
	assert.Equal(t, 100, *rl.Remaining)
	assert.Nil(t, rl.Last)
}
