package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"nba_altprops/ingestion/internal/metrics"
	"nba_altprops/ingestion/internal/models"
)

const (
	// SportKey is the provider key for NBA basketball
	SportKey = "basketball_nba"

	defaultMaxAttempts = 4
	defaultBaseDelay   = 500 * time.Millisecond
	defaultMaxJitter   = 250 * time.Millisecond

	// maxErrorBody bounds the response body carried in an APIError
	maxErrorBody = 250
)

// Metric endpoint labels
const (
	endpointEvents    = "events"
	endpointEventOdds = "event_odds"
)

// APIError is a non-2xx response from the odds API
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("odds api returned status %d: %s", e.StatusCode, e.Body)
}

// Retryable reports whether the status is worth another attempt
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// RateLimit carries the provider quota headers of a response
type RateLimit struct {
	Remaining *int `json:"remaining,omitempty"`
	Used      *int `json:"used,omitempty"`
	Last      *int `json:"last,omitempty"`
}

// Config configures the odds API client
type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	Regions    string
	Markets    []string
	Bookmakers string
}

// Option customizes a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithSleep replaces the backoff wait, e.g. to record delays in tests
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) { c.sleep = sleep }
}

// WithJitter replaces the jitter source
func WithJitter(jitter func(limit time.Duration) time.Duration) Option {
	return func(c *Client) { c.jitter = jitter }
}

// Client is The Odds API v4 client
type Client struct {
	baseURL    string
	apiKey     string
	regions    string
	markets    []string
	bookmakers string
	httpClient *http.Client

	maxAttempts int
	baseDelay   time.Duration
	maxJitter   time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
	jitter      func(limit time.Duration) time.Duration
}

// NewClient creates a new odds API client
func NewClient(cfg Config, opts ...Option) *Client {
	markets := cfg.Markets
	if len(markets) == 0 {
		markets = models.AltMarkets
	}
	regions := cfg.Regions
	if regions == "" {
		regions = "us"
	}

	c := &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		regions:     regions,
		markets:     markets,
		bookmakers:  cfg.Bookmakers,
		maxAttempts: defaultMaxAttempts,
		baseDelay:   defaultBaseDelay,
		maxJitter:   defaultMaxJitter,
		sleep:       sleepContext,
		jitter:      randomJitter,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// backoff returns the wait before the attempt following attempt (0-based)
func (c *Client) backoff(attempt int) time.Duration {
	return c.baseDelay*time.Duration(1<<uint(attempt)) + c.jitter(c.maxJitter)
}

// get performs a GET request against the odds API.
// 429, 5xx and network failures are retried with exponential backoff and
// jitter; any other non-2xx status fails immediately with an *APIError.
func (c *Client) get(ctx context.Context, endpoint, path string, params url.Values) ([]byte, RateLimit, error) {
	if params == nil {
		params = url.Values{}
	}
	params.Set("apiKey", c.apiKey)
	reqURL := fmt.Sprintf("%s/%s?%s", c.baseURL, strings.TrimLeft(path, "/"), params.Encode())

	var lastErr error
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := c.backoff(attempt - 1)
			metrics.RecordAPIRetry(endpoint)
			log.Info().
				Str("path", path).
				Int("attempt", attempt+1).
				Dur("backoff", delay).
				Err(lastErr).
				Msg("Retrying API request after backoff")

			if err := c.sleep(ctx, delay); err != nil {
				return nil, RateLimit{}, err
			}
		}

		body, rl, err := c.do(ctx, endpoint, path, reqURL, attempt)
		if err == nil {
			return body, rl, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, RateLimit{}, ctx.Err()
		}

		var apiErr *APIError
		if errors.As(err, &apiErr) && !apiErr.Retryable() {
			return nil, RateLimit{}, err
		}

		log.Warn().
			Str("path", path).
			Int("attempt", attempt+1).
			Err(err).
			Msg("Received retryable error")
	}

	return nil, RateLimit{}, lastErr
}

// do performs a single attempt
func (c *Client) do(ctx context.Context, endpoint, path, reqURL string, attempt int) ([]byte, RateLimit, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, RateLimit{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "nba-altprops-ingestion/1.0")

	log.Debug().
		Str("path", path).
		Int("attempt", attempt+1).
		Msg("Making API request")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordAPICall(endpoint, "error", time.Since(start).Seconds())
		return nil, RateLimit{}, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	metrics.RecordAPICall(endpoint, strconv.Itoa(resp.StatusCode), time.Since(start).Seconds())
	if err != nil {
		return nil, RateLimit{}, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return nil, RateLimit{}, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	rl := parseRateLimit(resp.Header)
	if rl.Remaining != nil {
		metrics.RecordRequestsRemaining(*rl.Remaining)
	}

	log.Debug().
		Str("path", path).
		Int("status", resp.StatusCode).
		Int("size", len(body)).
		Msg("API request successful")

	return body, rl, nil
}

// FetchEvents fetches upcoming NBA events
func (c *Client) FetchEvents(ctx context.Context) ([]models.Event, RateLimit, error) {
	path := fmt.Sprintf("sports/%s/events", SportKey)
	params := url.Values{}
	params.Set("dateFormat", "iso")

	body, rl, err := c.get(ctx, endpointEvents, path, params)
	if err != nil {
		return nil, rl, fmt.Errorf("failed to fetch events: %w", err)
	}

	var events []models.Event
	if err := json.Unmarshal(body, &events); err != nil {
		return nil, rl, fmt.Errorf("failed to unmarshal events: %w", err)
	}

	return events, rl, nil
}

// FetchEventOdds fetches the alternate prop odds of one event and returns the raw body
func (c *Client) FetchEventOdds(ctx context.Context, eventID string) ([]byte, RateLimit, error) {
	path := fmt.Sprintf("sports/%s/events/%s/odds", SportKey, url.PathEscape(eventID))
	params := url.Values{}
	params.Set("regions", c.regions)
	params.Set("markets", strings.Join(c.markets, ","))
	params.Set("oddsFormat", "american")
	params.Set("dateFormat", "iso")
	if c.bookmakers != "" {
		params.Set("bookmakers", c.bookmakers)
	}

	body, rl, err := c.get(ctx, endpointEventOdds, path, params)
	if err != nil {
		return nil, rl, fmt.Errorf("failed to fetch odds for event %s: %w", eventID, err)
	}

	return body, rl, nil
}

func parseRateLimit(h http.Header) RateLimit {
	return RateLimit{
		Remaining: headerInt(h, "x-requests-remaining"),
		Used:      headerInt(h, "x-requests-used"),
		Last:      headerInt(h, "x-requests-last"),
	}
}

func headerInt(h http.Header, name string) *int {
	v := strings.TrimSpace(h.Get(name))
	if v == "" {
		return nil
	}
	// quota headers may be sent as decimals
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil
	}
	n := int(f)
	return &n
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	return rand.N(limit)
}
