// Package yelp provides a client for the Yelp Fusion business search API.
//
// Yelp enforces a strict daily quota, so the client carries adaptive pacing
// state: a minimum inter-request interval, Retry-After aware 429 cooldowns,
// and a consecutive-429 threshold after which the source is abandoned for
// the run. All pacing state is instance-local, scoped to one pipeline run.
package yelp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/trinacria-data/vendorscan/internal/resilience"
)

// ErrRateLimited signals that the consecutive-429 threshold was reached and
// the caller should stop querying Yelp for the remainder of the run.
var ErrRateLimited = errors.New("yelp: too many consecutive rate-limit rejections")

// ErrQuotaExhausted signals that the RateLimit-Remaining header reported
// zero quota; the caller should stop querying Yelp for the run.
var ErrQuotaExhausted = errors.New("yelp: daily quota exhausted")

// maxHeaderCooldown caps how long a Retry-After/Reset header can make us wait.
const maxHeaderCooldown = 30 * time.Minute

// SearchParams are the query parameters for one business search page.
type SearchParams struct {
	Latitude  float64
	Longitude float64
	RadiusM   int
	Category  string
	Limit     int
	Offset    int
	SortBy    string
	Locale    string
}

// Business is one business object in a search response.
type Business struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Phone       string      `json:"phone"`
	ImageURL    string      `json:"image_url"`
	URL         string      `json:"url"`
	Coordinates Coordinates `json:"coordinates"`
	Location    Location    `json:"location"`
}

// Coordinates may be partially absent in Yelp payloads.
type Coordinates struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// Location is the address block of a business.
type Location struct {
	DisplayAddress []string `json:"display_address"`
	City           string   `json:"city"`
	ZipCode        string   `json:"zip_code"`
	State          string   `json:"state"`
	Country        string   `json:"country"`
}

// SearchResponse is the parsed search response body.
type SearchResponse struct {
	Businesses []Business `json:"businesses"`
	Total      int        `json:"total"`
}

// Option configures the client.
type Option func(*Client)

// WithBaseURL sets a custom API base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithRequestDelay sets the minimum interval between requests.
func WithRequestDelay(d time.Duration) Option {
	return func(c *Client) { c.delay = d }
}

// WithCooldown sets the default 429 cooldown.
func WithCooldown(d time.Duration) Option {
	return func(c *Client) { c.cooldown = d }
}

// WithMaxConsecutive429 sets the abandon threshold.
func WithMaxConsecutive429(n int) Option {
	return func(c *Client) { c.max429 = n }
}

// WithSleep overrides the sleep function (for testing).
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) { c.sleep = fn }
}

// WithClock overrides the time source (for testing).
func WithClock(fn func() time.Time) Option {
	return func(c *Client) { c.now = fn }
}

// Client queries the Yelp Fusion API.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client

	delay    time.Duration
	cooldown time.Duration
	max429   int

	// per-run adaptive state
	lastRequest    time.Time
	consecutive429 int

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// NewClient creates a Yelp client with instance-local pacing state.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:   apiKey,
		baseURL:  "https://api.yelp.com/v3",
		http:     &http.Client{Timeout: 15 * time.Second},
		delay:    1800 * time.Millisecond,
		cooldown: 60 * time.Second,
		max429:   6,
		sleep:    timerSleep,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func timerSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// pace enforces the minimum inter-request interval.
func (c *Client) pace(ctx context.Context) error {
	if !c.lastRequest.IsZero() {
		if wait := c.delay - c.now().Sub(c.lastRequest); wait > 0 {
			if err := c.sleep(ctx, wait); err != nil {
				return err
			}
		}
	}
	c.lastRequest = c.now()
	return nil
}

// Search fetches one page of business results with adaptive 429 handling.
// A 200 with zero remaining quota returns the parsed page alongside
// ErrQuotaExhausted. Reaching the consecutive-429 threshold returns
// ErrRateLimited. Non-429 failures surface as StatusError for the shared
// retry wrapper to classify.
func (c *Client) Search(ctx context.Context, p SearchParams) (*SearchResponse, error) {
	for {
		if err := c.pace(ctx); err != nil {
			return nil, err
		}

		resp, err := c.get(ctx, p)
		if err != nil {
			return nil, err
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return nil, eris.Wrap(readErr, "yelp: read response")
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			c.consecutive429 = 0

			var parsed SearchResponse
			if err := json.Unmarshal(body, &parsed); err != nil {
				return nil, eris.Wrap(err, "yelp: decode response")
			}
			if remainingZero(resp.Header) {
				zap.L().Warn("yelp quota exhausted, stopping source for this run")
				return &parsed, ErrQuotaExhausted
			}
			return &parsed, nil

		case resp.StatusCode == http.StatusTooManyRequests:
			c.consecutive429++

			cooldown := resilience.ParseRetryAfter(
				resp.Header.Get("Retry-After"),
				firstHeader(resp.Header, "RateLimit-ResetTime", "X-RateLimit-Reset"),
				c.cooldown, maxHeaderCooldown, c.now(),
			)
			if cooldown == 0 {
				cooldown = c.cooldown
			}
			zap.L().Warn("yelp 429, cooling down",
				zap.Duration("cooldown", cooldown),
				zap.Int("consecutive_429", c.consecutive429),
				zap.String("category", p.Category),
			)
			if err := c.sleep(ctx, cooldown); err != nil {
				return nil, err
			}
			if c.consecutive429 >= c.max429 {
				return nil, ErrRateLimited
			}

		default:
			return nil, resilience.NewStatusError("yelp", resp.StatusCode, body)
		}
	}
}

func (c *Client) get(ctx context.Context, p SearchParams) (*http.Response, error) {
	q := url.Values{}
	q.Set("latitude", fmt.Sprintf("%.6f", p.Latitude))
	q.Set("longitude", fmt.Sprintf("%.6f", p.Longitude))
	q.Set("radius", fmt.Sprintf("%d", p.RadiusM))
	q.Set("categories", p.Category)
	q.Set("limit", fmt.Sprintf("%d", p.Limit))
	q.Set("offset", fmt.Sprintf("%d", p.Offset))
	if p.SortBy != "" {
		q.Set("sort_by", p.SortBy)
	}
	if p.Locale != "" {
		q.Set("locale", p.Locale)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/businesses/search?"+q.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "yelp: build request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "yelp: execute request")
	}
	return resp, nil
}

// remainingZero reports whether a quota header is present and at zero.
func remainingZero(h http.Header) bool {
	v := firstHeader(h, "RateLimit-Remaining", "X-RateLimit-Remaining")
	if v == "" {
		return false
	}
	var n float64
	if _, err := fmt.Sscanf(v, "%f", &n); err != nil {
		return false
	}
	return n <= 0
}

func firstHeader(h http.Header, keys ...string) string {
	for _, k := range keys {
		if v := h.Get(k); v != "" {
			return v
		}
	}
	return ""
}
