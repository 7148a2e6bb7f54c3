// Package foursquare provides a client for the Foursquare Places search API.
package foursquare

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/trinacria-data/vendorscan/internal/resilience"
)

// apiVersion is the dated Places API version header value.
const apiVersion = "2024-08-01"

// SearchParams are the query parameters for one place-search page.
type SearchParams struct {
	Latitude  float64
	Longitude float64
	RadiusM   int
	Query     string
	Limit     int
	Sort      string
	// Cursor continues a previous page; empty starts a new scan.
	Cursor string
}

// Place is one place object in a search response.
type Place struct {
	FsqID    string    `json:"fsq_id"`
	Name     string    `json:"name"`
	Location Location  `json:"location"`
	Geocodes *Geocodes `json:"geocodes,omitempty"`
}

// Location is the address block of a place.
type Location struct {
	FormattedAddress string `json:"formatted_address"`
	Address          string `json:"address"`
	Locality         string `json:"locality"`
	Postcode         string `json:"postcode"`
	Region           string `json:"region"`
	Country          string `json:"country"`
}

// Geocodes holds the coordinate blocks of a place.
type Geocodes struct {
	Main *LatLon `json:"main,omitempty"`
}

// LatLon is a coordinate pair.
type LatLon struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// SearchResponse is the parsed search response body. NextCursor is empty on
// the last page.
type SearchResponse struct {
	Results    []Place `json:"results"`
	NextCursor string  `json:"next_cursor"`
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

// Client queries the Foursquare Places API.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a Foursquare client. Pacing state is instance-local.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:  apiKey,
		baseURL: "https://places-api.foursquare.com",
		http:    &http.Client{Timeout: 15 * time.Second},
		limiter: rate.NewLimiter(rate.Every(400*time.Millisecond), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search fetches one page of place results. Transient failures (429/5xx)
// surface as StatusError so the shared retry wrapper can back off and retry.
func (c *Client) Search(ctx context.Context, p SearchParams) (*SearchResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("ll", fmt.Sprintf("%.6f,%.6f", p.Latitude, p.Longitude))
	q.Set("radius", fmt.Sprintf("%d", p.RadiusM))
	q.Set("query", p.Query)
	q.Set("limit", fmt.Sprintf("%d", p.Limit))
	if p.Sort != "" {
		q.Set("sort", p.Sort)
	}
	if p.Cursor != "" {
		q.Set("cursor", p.Cursor)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/places/search?"+q.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "foursquare: build request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Places-Api-Version", apiVersion)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "foursquare: execute request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "foursquare: read response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, resilience.NewStatusError("foursquare", resp.StatusCode, body)
	}

	var parsed SearchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, eris.Wrap(err, "foursquare: decode response")
	}
	return &parsed, nil
}

// Coords returns the place's main geocode coordinates when present.
func (p *Place) Coords() (lat, lon float64, ok bool) {
	if p.Geocodes != nil && p.Geocodes.Main != nil {
		return p.Geocodes.Main.Latitude, p.Geocodes.Main.Longitude, true
	}
	return 0, 0, false
}
