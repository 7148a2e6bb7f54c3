package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"

	"github.com/trinacria-data/vendorscan/internal/config"
	"github.com/trinacria-data/vendorscan/internal/pipeline"
	"github.com/trinacria-data/vendorscan/internal/resilience"
	"github.com/trinacria-data/vendorscan/internal/store"
	"github.com/trinacria-data/vendorscan/internal/tiling"
	"github.com/trinacria-data/vendorscan/pkg/foursquare"
	"github.com/trinacria-data/vendorscan/pkg/opencage"
	"github.com/trinacria-data/vendorscan/pkg/overpass"
	"github.com/trinacria-data/vendorscan/pkg/yelp"
)

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func retryConfig(c *config.Config) resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts: c.Retry.MaxAttempts,
		BackoffBase: seconds(c.Retry.BackoffBaseSec),
	}
}

func regionBBox(c *config.Config) (tiling.BBox, error) {
	bbox, err := tiling.ParseBBox(c.Region.BBox)
	if err != nil {
		return tiling.BBox{}, eris.Wrap(err, "region.bbox")
	}
	return bbox, nil
}

func tileCenters(c *config.Config) (tiling.BBox, []tiling.Center, error) {
	bbox, err := regionBBox(c)
	if err != nil {
		return tiling.BBox{}, nil, err
	}
	centers, err := tiling.Centers(bbox, c.Tiling.RadiusM, c.Tiling.StepFraction, c.Quick.MaxTiles)
	if err != nil {
		return tiling.BBox{}, nil, err
	}
	return bbox, centers, nil
}

func limited[T any](items []T, max int) []T {
	if max > 0 && len(items) > max {
		return items[:max]
	}
	return items
}

func newOSMFetcher(c *config.Config) (*pipeline.OSMFetcher, error) {
	bbox, err := regionBBox(c)
	if err != nil {
		return nil, err
	}

	tags := make([]overpass.TagFilter, 0, len(c.Overpass.Tags))
	for _, t := range c.Overpass.Tags {
		tags = append(tags, overpass.TagFilter{Key: t.Key, Values: t.Values})
	}

	return &pipeline.OSMFetcher{
		Client: overpass.NewClient(
			overpass.WithBaseURL(c.Overpass.BaseURL),
			overpass.WithCooldown(seconds(c.Overpass.CooldownSec)),
		),
		AreaName:     c.Region.AreaName,
		Tags:         tags,
		NameKeywords: c.Overpass.NameKeywords,
		TimeoutSec:   c.Overpass.TimeoutSec,
		BBox:         bbox,
		Tolerance:    c.Region.BBoxTolerance,
	}, nil
}

func newYelpFetcher(c *config.Config) (*pipeline.YelpFetcher, error) {
	if err := c.Validate("yelp"); err != nil {
		return nil, err
	}
	bbox, centers, err := tileCenters(c)
	if err != nil {
		return nil, err
	}

	return &pipeline.YelpFetcher{
		Client: yelp.NewClient(c.Yelp.APIKey,
			yelp.WithBaseURL(c.Yelp.BaseURL),
			yelp.WithRequestDelay(seconds(c.Yelp.RequestDelaySec)),
			yelp.WithCooldown(seconds(c.Yelp.CooldownSec)),
			yelp.WithMaxConsecutive429(c.Yelp.MaxConsecutive429),
		),
		Categories: limited(c.Yelp.Categories, c.Quick.MaxCategories),
		Centers:    centers,
		RadiusM:    int(c.Tiling.RadiusM),
		PageSize:   c.Yelp.PageSize,
		MaxOffset:  c.Yelp.MaxOffset,
		Retry:      retryConfig(c),
		BBox:       bbox,
		Tolerance:  c.Region.BBoxTolerance,
	}, nil
}

func newFoursquareFetcher(c *config.Config) (*pipeline.FoursquareFetcher, error) {
	if err := c.Validate("foursquare"); err != nil {
		return nil, err
	}
	bbox, centers, err := tileCenters(c)
	if err != nil {
		return nil, err
	}

	return &pipeline.FoursquareFetcher{
		Client: foursquare.NewClient(c.Foursquare.APIKey,
			foursquare.WithBaseURL(c.Foursquare.BaseURL),
			foursquare.WithRequestDelay(seconds(c.Foursquare.RequestDelaySec)),
		),
		Queries:   limited(c.Foursquare.Queries, c.Quick.MaxQueries),
		Centers:   centers,
		RadiusM:   int(c.Tiling.RadiusM),
		PageSize:  c.Foursquare.PageSize,
		MaxPages:  c.Foursquare.MaxPages,
		Retry:     retryConfig(c),
		BBox:      bbox,
		Tolerance: c.Region.BBoxTolerance,
	}, nil
}

// opencageBounds converts the region bbox to the bounds parameter format,
// "min_lon,min_lat,max_lon,max_lat".
func opencageBounds(bbox tiling.BBox) string {
	return fmt.Sprintf("%g,%g,%g,%g", bbox.West, bbox.South, bbox.East, bbox.North)
}

func newEnricher(c *config.Config) (*pipeline.Enricher, error) {
	if err := c.Validate("opencage"); err != nil {
		return nil, err
	}
	bbox, err := regionBBox(c)
	if err != nil {
		return nil, err
	}

	gc := opencage.NewClient(c.OpenCage.APIKey,
		opencage.WithBaseURL(c.OpenCage.BaseURL),
		opencage.WithRequestDelay(seconds(c.OpenCage.RequestDelaySec)),
		opencage.WithCountryCode("it"),
		opencage.WithLanguage("it"),
		opencage.WithBounds(opencageBounds(bbox)),
	)
	return pipeline.NewEnricher(gc, c.Region.Hint), nil
}

func openStore(ctx context.Context, c *config.Config) (store.Store, error) {
	if err := c.Validate("store"); err != nil {
		return nil, err
	}
	switch c.Store.Driver {
	case "postgres":
		return store.NewPostgres(ctx, c.Store.DatabaseURL, nil)
	default:
		return store.NewSQLite(c.Store.DatabaseURL)
	}
}
