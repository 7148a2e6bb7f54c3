// Package opencage provides a client for the OpenCage geocoding API,
// covering both forward and reverse lookups.
package opencage

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
	"golang.org/x/time/rate"

	"github.com/trinacria-data/vendorscan/internal/resilience"
)

// ErrBadKey signals a rejected API key (401/403).
var ErrBadKey = errors.New("opencage: api key rejected")

// ErrQuotaExceeded signals the daily quota is spent (402).
var ErrQuotaExceeded = errors.New("opencage: quota exceeded")

// Result is one candidate location for a query.
type Result struct {
	Formatted  string     `json:"formatted"`
	Components Components `json:"components"`
	Geometry   Geometry   `json:"geometry"`
	Confidence int        `json:"confidence"`
}

// Components holds a result's address components. The API mixes value types
// in this map (strings alongside arrays such as ISO_3166-2 and category
// metadata); only the string values are kept, the rest are dropped on
// decode.
type Components map[string]string

func (c *Components) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Components, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	*c = out
	return nil
}

// Geometry is the coordinate pair of a result.
type Geometry struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type response struct {
	Results []Result `json:"results"`
	Status  struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"status"`
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

// WithRequestDelay sets the fixed inter-request delay. Zero disables pacing.
func WithRequestDelay(d time.Duration) Option {
	return func(c *Client) {
		if d <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

// WithCountryCode restricts forward results to a country (for example "it").
func WithCountryCode(code string) Option {
	return func(c *Client) { c.countryCode = code }
}

// WithLanguage sets the preferred result language.
func WithLanguage(lang string) Option {
	return func(c *Client) { c.language = lang }
}

// WithBounds biases forward results toward a bounding box,
// given as "west,south,east,north".
func WithBounds(bounds string) Option {
	return func(c *Client) { c.bounds = bounds }
}

// Client queries the OpenCage geocoding API with paced requests.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter

	countryCode string
	language    string
	bounds      string
}

// NewClient creates an OpenCage client.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:  apiKey,
		baseURL: "https://api.opencagedata.com/geocode/v1",
		http:    &http.Client{Timeout: 15 * time.Second},
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Forward geocodes a free-text query to candidate locations.
func (c *Client) Forward(ctx context.Context, query string) ([]Result, error) {
	q := c.baseParams()
	q.Set("q", query)
	if c.countryCode != "" {
		q.Set("countrycode", c.countryCode)
	}
	if c.bounds != "" {
		q.Set("bounds", c.bounds)
	}
	return c.geocode(ctx, q)
}

// Reverse geocodes a coordinate pair to candidate locations.
func (c *Client) Reverse(ctx context.Context, lat, lon float64) ([]Result, error) {
	q := c.baseParams()
	q.Set("q", fmt.Sprintf("%.7f,%.7f", lat, lon))
	return c.geocode(ctx, q)
}

func (c *Client) baseParams() url.Values {
	q := url.Values{}
	q.Set("key", c.apiKey)
	q.Set("no_annotations", "1")
	if c.language != "" {
		q.Set("language", c.language)
	}
	return q
}

func (c *Client) geocode(ctx context.Context, q url.Values) ([]Result, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/json?"+q.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "opencage: build request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "opencage: execute request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "opencage: read response")
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, ErrBadKey
	case http.StatusPaymentRequired:
		return nil, quotaError(body)
	default:
		return nil, resilience.NewStatusError("opencage", resp.StatusCode, body)
	}

	var parsed response
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, eris.Wrap(err, "opencage: decode response")
	}
	return parsed.Results, nil
}

// quotaError attaches the response body to the quota sentinel so callers can
// still match with errors.Is.
func quotaError(body []byte) error {
	snippet := string(body)
	if len(snippet) > 200 {
		snippet = snippet[:200]
	}
	return fmt.Errorf("%w: %s", ErrQuotaExceeded, snippet)
}

// BestResult picks the highest-confidence result, or nil when there are none.
func BestResult(results []Result) *Result {
	var best *Result
	for i := range results {
		if best == nil || results[i].Confidence > best.Confidence {
			best = &results[i]
		}
	}
	return best
}
