package overpass

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBuildAreaQuery(t *testing.T) {
	ql := BuildAreaQuery("Sicilia", []TagFilter{
		{Key: "shop", Values: "florist|photo"},
		{Key: "amenity", Values: "restaurant"},
	}, []string{"wedding", "matrimonio"}, 180)

	require.True(t, strings.HasPrefix(ql, "[out:json][timeout:180];"))
	require.Contains(t, ql, `area["name"="Sicilia"]->.searchArea;`)
	require.Contains(t, ql, `node["shop"~"florist|photo"](area.searchArea);`)
	require.Contains(t, ql, `way["shop"~"florist|photo"](area.searchArea);`)
	require.Contains(t, ql, `relation["amenity"~"restaurant"](area.searchArea);`)
	require.Contains(t, ql, `node["name"~"wedding|matrimonio",i](area.searchArea);`)
	require.True(t, strings.HasSuffix(strings.TrimSpace(ql), "out center body;"))
}

func TestQuery_ParsesElements(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotBody = r.PostForm.Get("data")
		w.Write([]byte(`{"elements": [
			{"type": "node", "id": 101, "lat": 37.5, "lon": 15.1,
			 "tags": {"name": "Fioreria Etna", "shop": "florist"}},
			{"type": "way", "id": 202,
			 "center": {"lat": 38.11, "lon": 13.36},
			 "tags": {"name": "Villa Palermo"}}]}`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	resp, err := c.Query(context.Background(), "[out:json];node(1);out;")
	require.NoError(t, err)
	require.Equal(t, "[out:json];node(1);out;", gotBody)
	require.Len(t, resp.Elements, 2)

	lat, lon, ok := resp.Elements[0].Coords()
	require.True(t, ok)
	require.InDelta(t, 37.5, lat, 1e-9)
	require.InDelta(t, 15.1, lon, 1e-9)
	require.Equal(t, "node/101", resp.Elements[0].SourceID())

	lat, lon, ok = resp.Elements[1].Coords()
	require.True(t, ok)
	require.InDelta(t, 38.11, lat, 1e-9)
	require.InDelta(t, 13.36, lon, 1e-9)
	require.Equal(t, "way/202", resp.Elements[1].SourceID())
}

func TestQuery_RetriesOnceAfter429(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"elements": []}`))
	}))
	defer srv.Close()

	var sleeps []time.Duration
	c := NewClient(
		WithBaseURL(srv.URL),
		WithCooldown(30*time.Second),
		WithSleep(func(_ context.Context, d time.Duration) error {
			sleeps = append(sleeps, d)
			return nil
		}),
	)
	resp, err := c.Query(context.Background(), "q")
	require.NoError(t, err)
	require.Empty(t, resp.Elements)
	require.Equal(t, 2, calls)
	require.Equal(t, []time.Duration{30 * time.Second}, sleeps)
}

func TestQuery_SecondRateLimitPropagates(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(
		WithBaseURL(srv.URL),
		WithSleep(func(context.Context, time.Duration) error { return nil }),
	)
	_, err := c.Query(context.Background(), "q")
	require.Error(t, err)
	require.Equal(t, 2, calls)
}

func TestElement_CoordsPrefersNode(t *testing.T) {
	lat, lon := 37.0, 15.0
	e := Element{Type: "node", ID: 1, Lat: &lat, Lon: &lon,
		Center: &Center{Lat: 99, Lon: 99}}
	gotLat, gotLon, ok := e.Coords()
	require.True(t, ok)
	require.Equal(t, 37.0, gotLat)
	require.Equal(t, 15.0, gotLon)

	empty := Element{Type: "node", ID: 2}
	_, _, ok = empty.Coords()
	require.False(t, ok)
}
