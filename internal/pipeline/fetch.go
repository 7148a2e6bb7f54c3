package pipeline

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/trinacria-data/vendorscan/internal/model"
	"github.com/trinacria-data/vendorscan/internal/resilience"
	"github.com/trinacria-data/vendorscan/internal/tiling"
	"github.com/trinacria-data/vendorscan/pkg/foursquare"
	"github.com/trinacria-data/vendorscan/pkg/overpass"
	"github.com/trinacria-data/vendorscan/pkg/yelp"
)

// yelpMaxRadiusM is the radius cap Yelp enforces on searches.
const yelpMaxRadiusM = 40000

// OSMFetcher pulls vendor candidates from OpenStreetMap with one areal
// Overpass query against the configured region.
type OSMFetcher struct {
	Client       *overpass.Client
	AreaName     string
	Tags         []overpass.TagFilter
	NameKeywords []string
	TimeoutSec   int

	BBox      tiling.BBox
	Tolerance float64
}

// Fetch runs the areal query and normalizes the result. Elements tagged into
// multiple filters are deduplicated by OSM id; records outside the expanded
// bbox are dropped, records without coordinates pass through.
func (f *OSMFetcher) Fetch(ctx context.Context) ([]model.VendorRecord, error) {
	log := zap.L().With(zap.String("source", "osm"))

	ql := overpass.BuildAreaQuery(f.AreaName, f.Tags, f.NameKeywords, f.TimeoutSec)
	log.Info("querying overpass", zap.String("area", f.AreaName), zap.Int("tag_filters", len(f.Tags)))

	resp, err := f.Client.Query(ctx, ql)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var records []model.VendorRecord
	for i := range resp.Elements {
		e := &resp.Elements[i]
		id := e.SourceID()
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		rec := NormalizeOSM(e)
		if !insideBBox(&rec, f.BBox, f.Tolerance) {
			continue
		}
		records = append(records, rec)
	}

	log.Info("osm fetch complete",
		zap.Int("elements", len(resp.Elements)),
		zap.Int("records", len(records)),
	)
	return records, nil
}

// insideBBox keeps records without coordinates; only a coordinate pair
// outside the expanded bbox excludes a record.
func insideBBox(v *model.VendorRecord, bbox tiling.BBox, tolerance float64) bool {
	if !v.HasCoords() {
		return true
	}
	return bbox.Contains(*v.Lat, *v.Lon, tolerance)
}

// YelpFetcher scans the tile lattice per category with offset pagination.
type YelpFetcher struct {
	Client     *yelp.Client
	Categories []string
	Centers    []tiling.Center
	RadiusM    int
	PageSize   int
	MaxOffset  int
	Retry      resilience.RetryConfig

	BBox      tiling.BBox
	Tolerance float64

	// Now is the progress clock; nil means time.Now.
	Now func() time.Time
}

// Fetch walks categories and tiles, paging each tile by offset until a short
// page or the offset cap. Quota exhaustion or too many consecutive 429s stop
// the whole source; any other failure abandons only the current tile.
func (f *YelpFetcher) Fetch(ctx context.Context) ([]model.VendorRecord, error) {
	log := zap.L().With(zap.String("source", "yelp"))

	radius := f.RadiusM
	if radius > yelpMaxRadiusM {
		radius = yelpMaxRadiusM
	}

	// A non-positive page size would stall the offset walk.
	pageSize := f.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	retry := f.Retry
	if retry.OnRetry == nil {
		retry.OnRetry = resilience.RetryLogger("yelp", "search")
	}

	prog := newProgress(f.Now)
	seen := make(map[string]struct{})
	var records []model.VendorRecord

	totalUnits := len(f.Categories) * len(f.Centers)
	log.Info("starting tiled scan",
		zap.Int("categories", len(f.Categories)),
		zap.Int("tiles", len(f.Centers)),
		zap.Int("total_units", totalUnits),
	)

	for ci, category := range f.Categories {
		for ti, center := range f.Centers {
			if err := ctx.Err(); err != nil {
				return records, err
			}

			addedTile := 0
			for offset := 0; offset < f.MaxOffset; offset += pageSize {
				params := yelp.SearchParams{
					Latitude:  center.Lat,
					Longitude: center.Lon,
					RadiusM:   radius,
					Category:  category,
					Limit:     pageSize,
					Offset:    offset,
					SortBy:    "best_match",
					Locale:    "it_IT",
				}

				var quotaPage *yelp.SearchResponse
				resp, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (*yelp.SearchResponse, error) {
					page, searchErr := f.Client.Search(ctx, params)
					if errors.Is(searchErr, yelp.ErrQuotaExhausted) {
						quotaPage = page
					}
					return page, searchErr
				})
				prog.tick()

				if errors.Is(err, yelp.ErrQuotaExhausted) {
					addedTile += f.collect(quotaPage, category, seen, &records)
					log.Warn("yelp quota exhausted, stopping source", zap.Int("records", len(records)))
					return records, nil
				}
				if errors.Is(err, yelp.ErrRateLimited) {
					log.Warn("yelp rate limited, stopping source", zap.Int("records", len(records)))
					return records, nil
				}
				if err != nil {
					log.Warn("tile failed, skipping",
						zap.String("category", category),
						zap.Int("tile", ti+1),
						zap.Error(err),
					)
					break
				}

				addedTile += f.collect(resp, category, seen, &records)
				if len(resp.Businesses) < pageSize {
					break
				}
			}

			done := ci*len(f.Centers) + ti + 1
			log.Info("tile scanned",
				zap.String("category", category),
				zap.Int("tile", ti+1),
				zap.Int("tiles_total", len(f.Centers)),
				zap.Int("added_tile", addedTile),
				zap.Int("total", len(records)),
				zap.Int("units_done", done),
				zap.Int("units_total", totalUnits),
				zap.Float64("req_per_sec", prog.rate()),
				zap.Duration("eta", prog.eta(done, totalUnits)),
			)
		}
	}

	log.Info("yelp fetch complete", zap.Int("records", len(records)))
	return records, nil
}

func (f *YelpFetcher) collect(resp *yelp.SearchResponse, category string, seen map[string]struct{}, out *[]model.VendorRecord) int {
	if resp == nil {
		return 0
	}
	added := 0
	for i := range resp.Businesses {
		b := &resp.Businesses[i]
		if b.ID == "" {
			continue
		}
		if _, dup := seen[b.ID]; dup {
			continue
		}
		seen[b.ID] = struct{}{}

		rec := NormalizeYelp(b, category)
		if !insideBBox(&rec, f.BBox, f.Tolerance) {
			continue
		}
		*out = append(*out, rec)
		added++
	}
	return added
}

// FoursquareFetcher scans the tile lattice per free-text query with cursor
// pagination.
type FoursquareFetcher struct {
	Client   *foursquare.Client
	Queries  []string
	Centers  []tiling.Center
	RadiusM  int
	PageSize int
	MaxPages int
	Retry    resilience.RetryConfig

	BBox      tiling.BBox
	Tolerance float64

	Now func() time.Time
}

// Fetch walks queries and tiles, following the next-cursor token up to the
// page cap. A failed unit is skipped; the scan continues.
func (f *FoursquareFetcher) Fetch(ctx context.Context) ([]model.VendorRecord, error) {
	log := zap.L().With(zap.String("source", "foursquare"))

	retry := f.Retry
	if retry.OnRetry == nil {
		retry.OnRetry = resilience.RetryLogger("foursquare", "search")
	}

	prog := newProgress(f.Now)
	seen := make(map[string]struct{})
	var records []model.VendorRecord

	totalUnits := len(f.Queries) * len(f.Centers)
	log.Info("starting tiled scan",
		zap.Int("queries", len(f.Queries)),
		zap.Int("tiles", len(f.Centers)),
		zap.Int("total_units", totalUnits),
	)

	for qi, query := range f.Queries {
		for ti, center := range f.Centers {
			if err := ctx.Err(); err != nil {
				return records, err
			}

			addedTile := 0
			cursor := ""
			for page := 0; page < f.MaxPages; page++ {
				params := foursquare.SearchParams{
					Latitude:  center.Lat,
					Longitude: center.Lon,
					RadiusM:   f.RadiusM,
					Query:     query,
					Limit:     f.PageSize,
					Sort:      "RELEVANCE",
					Cursor:    cursor,
				}

				resp, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (*foursquare.SearchResponse, error) {
					return f.Client.Search(ctx, params)
				})
				prog.tick()
				if err != nil {
					log.Warn("tile failed, skipping",
						zap.String("query", query),
						zap.Int("tile", ti+1),
						zap.Int("page", page+1),
						zap.Error(err),
					)
					break
				}

				for i := range resp.Results {
					p := &resp.Results[i]
					if p.FsqID == "" {
						continue
					}
					if _, dup := seen[p.FsqID]; dup {
						continue
					}
					seen[p.FsqID] = struct{}{}

					rec := NormalizeFoursquare(p, query)
					if !insideBBox(&rec, f.BBox, f.Tolerance) {
						continue
					}
					records = append(records, rec)
					addedTile++
				}

				cursor = resp.NextCursor
				if cursor == "" || len(resp.Results) == 0 {
					break
				}
			}

			done := qi*len(f.Centers) + ti + 1
			log.Info("tile scanned",
				zap.String("query", query),
				zap.Int("tile", ti+1),
				zap.Int("tiles_total", len(f.Centers)),
				zap.Int("added_tile", addedTile),
				zap.Int("total", len(records)),
				zap.Int("units_done", done),
				zap.Int("units_total", totalUnits),
				zap.Float64("req_per_sec", prog.rate()),
				zap.Duration("eta", prog.eta(done, totalUnits)),
			)
		}
	}

	log.Info("foursquare fetch complete", zap.Int("records", len(records)))
	return records, nil
}
