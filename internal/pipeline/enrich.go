package pipeline

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/trinacria-data/vendorscan/internal/model"
	"github.com/trinacria-data/vendorscan/pkg/opencage"
)

// cityComponents are probed in order for a city-like value in a geocoding
// result's components map.
var cityComponents = []string{"city", "town", "village", "municipality", "county"}

// Geocoder is the slice of the OpenCage client the enricher needs.
type Geocoder interface {
	Forward(ctx context.Context, query string) ([]opencage.Result, error)
	Reverse(ctx context.Context, lat, lon float64) ([]opencage.Result, error)
}

// EnrichStats counts lookup outcomes for observability. The counters never
// drive control flow.
type EnrichStats struct {
	ReverseOK     int
	ReverseFailed int
	ForwardOK     int
	ForwardFailed int
	CacheHits     int
}

// Enricher fills address fields via geocoding. The result cache and all
// counters are scoped to the instance, so one Enricher serves one run.
type Enricher struct {
	Geocoder Geocoder
	// RegionHint is appended to forward queries to bias results.
	RegionHint string

	cache map[string]*opencage.Result
	stats EnrichStats
}

// NewEnricher creates a per-run enricher.
func NewEnricher(gc Geocoder, regionHint string) *Enricher {
	return &Enricher{
		Geocoder:   gc,
		RegionHint: regionHint,
		cache:      make(map[string]*opencage.Result),
	}
}

// Enrich mutates records in place, best-effort. Records with coordinates are
// reverse geocoded; the rest are forward geocoded from address+city or name,
// each with the region hint. A lookup miss or error leaves the record
// unchanged and is only counted.
func (e *Enricher) Enrich(ctx context.Context, records []model.VendorRecord) (EnrichStats, error) {
	log := zap.L().With(zap.String("stage", "enrich"))

	for i := range records {
		if err := ctx.Err(); err != nil {
			return e.stats, err
		}
		v := &records[i]
		if v.HasCoords() {
			e.reverse(ctx, v)
		} else {
			e.forward(ctx, v)
		}
	}

	log.Info("enrichment complete",
		zap.Int("records", len(records)),
		zap.Int("reverse_ok", e.stats.ReverseOK),
		zap.Int("reverse_failed", e.stats.ReverseFailed),
		zap.Int("forward_ok", e.stats.ForwardOK),
		zap.Int("forward_failed", e.stats.ForwardFailed),
		zap.Int("cache_hits", e.stats.CacheHits),
	)
	return e.stats, nil
}

// Stats returns the running counters.
func (e *Enricher) Stats() EnrichStats {
	return e.stats
}

func (e *Enricher) reverse(ctx context.Context, v *model.VendorRecord) {
	key := fmt.Sprintf("rev:%.4f,%.4f", *v.Lat, *v.Lon)

	result, cached := e.cache[key]
	if !cached {
		results, err := e.Geocoder.Reverse(ctx, *v.Lat, *v.Lon)
		if err != nil {
			e.stats.ReverseFailed++
			zap.L().Debug("reverse geocode failed", zap.String("name", v.Name), zap.Error(err))
			return
		}
		result = opencage.BestResult(results)
		e.cache[key] = result
	} else {
		e.stats.CacheHits++
	}

	if result == nil {
		e.stats.ReverseFailed++
		return
	}
	e.stats.ReverseOK++
	mergeResult(v, result, false)
}

func (e *Enricher) forward(ctx context.Context, v *model.VendorRecord) {
	query := e.forwardQuery(v)
	key := "fwd:" + query

	result, cached := e.cache[key]
	if !cached {
		results, err := e.Geocoder.Forward(ctx, query)
		if err != nil {
			e.stats.ForwardFailed++
			zap.L().Debug("forward geocode failed", zap.String("query", query), zap.Error(err))
			return
		}
		result = opencage.BestResult(results)
		e.cache[key] = result
	} else {
		e.stats.CacheHits++
	}

	if result == nil {
		e.stats.ForwardFailed++
		return
	}
	e.stats.ForwardOK++
	mergeResult(v, result, true)
}

// forwardQuery builds the lookup string: address and city when either
// exists, else the vendor name, always with the region hint appended.
func (e *Enricher) forwardQuery(v *model.VendorRecord) string {
	var parts []string
	if v.Address != "" {
		parts = append(parts, v.Address)
	}
	if v.City != "" {
		parts = append(parts, v.City)
	}
	if len(parts) == 0 {
		parts = append(parts, v.Name)
	}
	if e.RegionHint != "" {
		parts = append(parts, e.RegionHint)
	}
	return strings.Join(parts, ", ")
}

// mergeResult copies address fields from a geocoding result into the record.
// Coordinates are set only when fillCoords is requested and the record has
// none; existing coordinates are never touched.
func mergeResult(v *model.VendorRecord, r *opencage.Result, fillCoords bool) {
	if r.Formatted != "" {
		v.Address = r.Formatted
	}
	for _, key := range cityComponents {
		if city := r.Components[key]; city != "" {
			v.City = city
			break
		}
	}
	if postcode := r.Components["postcode"]; postcode != "" {
		v.Postcode = postcode
	}
	if state := r.Components["state"]; state != "" {
		v.State = state
	}
	if country := r.Components["country"]; country != "" {
		v.Country = country
	}
	if fillCoords && !v.HasCoords() {
		v.SetCoords(r.Geometry.Lat, r.Geometry.Lng)
	}
}
