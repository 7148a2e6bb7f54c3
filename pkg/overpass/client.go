// Package overpass provides a client for the Overpass API, the query
// endpoint for OpenStreetMap data.
package overpass

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/trinacria-data/vendorscan/internal/resilience"
)

// TagFilter selects OSM elements whose key matches a value regex.
type TagFilter struct {
	Key    string
	Values string // regex alternation, e.g. "florist|photo|hairdresser"
}

// Element is one node/way/relation returned by Overpass. Ways and relations
// carry a computed Center instead of direct coordinates.
type Element struct {
	Type   string            `json:"type"`
	ID     int64             `json:"id"`
	Lat    *float64          `json:"lat,omitempty"`
	Lon    *float64          `json:"lon,omitempty"`
	Center *Center           `json:"center,omitempty"`
	Tags   map[string]string `json:"tags,omitempty"`
}

// Center holds the computed centroid of a way or relation.
type Center struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Response is the parsed Overpass response body.
type Response struct {
	Elements []Element `json:"elements"`
}

// Option configures the client.
type Option func(*Client)

// WithBaseURL sets a custom interpreter endpoint (for testing).
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithCooldown sets the sleep applied before the single 429 retry.
func WithCooldown(d time.Duration) Option {
	return func(c *Client) { c.cooldown = d }
}

// WithSleep overrides the sleep function (for testing).
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) { c.sleep = fn }
}

// Client issues Overpass QL queries.
type Client struct {
	baseURL  string
	http     *http.Client
	cooldown time.Duration
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewClient creates an Overpass client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:  "https://overpass-api.de/api/interpreter",
		http:     &http.Client{Timeout: 180 * time.Second},
		cooldown: 30 * time.Second,
		sleep: func(ctx context.Context, d time.Duration) error {
			t := time.NewTimer(d)
			defer t.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-t.C:
				return nil
			}
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BuildAreaQuery assembles an Overpass QL query selecting nodes, ways, and
// relations inside the named area that match any tag filter, plus a
// case-insensitive name-keyword regex fallback for listings untagged by
// category. Extended element types request their geometric center.
func BuildAreaQuery(areaName string, tags []TagFilter, nameKeywords []string, timeoutSec int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[out:json][timeout:%d];\n", timeoutSec)
	fmt.Fprintf(&b, "area[\"name\"=%q]->.searchArea;\n(\n", areaName)

	for _, t := range tags {
		fmt.Fprintf(&b, "  node[%q~%q](area.searchArea);\n", t.Key, t.Values)
		fmt.Fprintf(&b, "  way[%q~%q](area.searchArea);\n", t.Key, t.Values)
		fmt.Fprintf(&b, "  relation[%q~%q](area.searchArea);\n", t.Key, t.Values)
	}
	if len(nameKeywords) > 0 {
		re := strings.Join(nameKeywords, "|")
		fmt.Fprintf(&b, "  node[\"name\"~%q,i](area.searchArea);\n", re)
		fmt.Fprintf(&b, "  way[\"name\"~%q,i](area.searchArea);\n", re)
	}

	b.WriteString(");\nout center body;\n")
	return b.String()
}

// Query executes an Overpass QL query. On a 429 it sleeps the configured
// cooldown once and retries exactly once more; any other failure propagates.
func (c *Client) Query(ctx context.Context, ql string) (*Response, error) {
	resp, err := c.post(ctx, ql)
	if err == nil {
		return resp, nil
	}

	var se *resilience.StatusError
	if errors.As(err, &se) && se.StatusCode == http.StatusTooManyRequests {
		zap.L().Warn("overpass rate limited, cooling down once",
			zap.Duration("cooldown", c.cooldown),
		)
		if sleepErr := c.sleep(ctx, c.cooldown); sleepErr != nil {
			return nil, sleepErr
		}
		return c.post(ctx, ql)
	}
	return nil, err
}

func (c *Client) post(ctx context.Context, ql string) (*Response, error) {
	form := url.Values{"data": {ql}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, eris.Wrap(err, "overpass: build request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "overpass: execute query")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "overpass: read response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, resilience.NewStatusError("overpass", resp.StatusCode, body)
	}

	var parsed Response
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, eris.Wrap(err, "overpass: decode response")
	}
	return &parsed, nil
}

// Coords returns the element's coordinates, preferring direct node
// coordinates over the computed center.
func (e *Element) Coords() (lat, lon float64, ok bool) {
	if e.Lat != nil && e.Lon != nil {
		return *e.Lat, *e.Lon, true
	}
	if e.Center != nil {
		return e.Center.Lat, e.Center.Lon, true
	}
	return 0, 0, false
}

// SourceID returns the stable per-source identifier, e.g. "node/123".
func (e *Element) SourceID() string {
	return fmt.Sprintf("%s/%d", e.Type, e.ID)
}
