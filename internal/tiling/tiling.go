// Package tiling generates the lattice of query centers used to page the
// search APIs across a region too large for a single areal call.
package tiling

import (
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// MetersPerDegreeLat is the approximate meter length of one degree of
// latitude, constant across the latitudes this pipeline targets.
const MetersPerDegreeLat = 111320.0

// cosLatFloor prevents the longitude step from blowing up near the poles.
const cosLatFloor = 0.15

// BBox is a geographic bounding box in degrees.
type BBox struct {
	South float64
	West  float64
	North float64
	East  float64
}

// ParseBBox parses a "south,west,north,east" string.
func ParseBBox(s string) (BBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return BBox{}, eris.Errorf("tiling: bbox %q must have 4 comma-separated values", s)
	}
	vals := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return BBox{}, eris.Wrapf(err, "tiling: bbox component %q", p)
		}
		vals[i] = v
	}
	b := BBox{South: vals[0], West: vals[1], North: vals[2], East: vals[3]}
	if b.South >= b.North || b.West >= b.East {
		return BBox{}, eris.Errorf("tiling: degenerate bbox %q", s)
	}
	return b, nil
}

// Contains reports whether the point lies within the bbox expanded by
// tolerance degrees on every side.
func (b BBox) Contains(lat, lon, tolerance float64) bool {
	return lat >= b.South-tolerance && lat <= b.North+tolerance &&
		lon >= b.West-tolerance && lon <= b.East+tolerance
}

// Center is one tile center of the query lattice.
type Center struct {
	Lat float64
	Lon float64
}

// LatStep returns the latitude step in degrees for a tile radius in meters.
func LatStep(radiusM float64) float64 {
	return radiusM / MetersPerDegreeLat
}

// LonStep returns the longitude step in degrees at the given latitude.
func LonStep(radiusM, latDeg float64) float64 {
	return radiusM / (MetersPerDegreeLat * math.Max(cosLatFloor, math.Cos(latDeg*math.Pi/180)))
}

// Centers produces tile centers covering bbox in row-major order (latitude
// ascending, longitude ascending within each row). Centers start one step
// inside each bound and stop one step before the opposite bound, so each
// tile's footprint stays inside or only marginally exceeds the bbox.
// stepFraction below 1.0 overlaps adjacent tiles to avoid edge gaps. A
// nonzero maxTiles caps generation for quick-mode runs.
func Centers(bbox BBox, radiusM, stepFraction float64, maxTiles int) ([]Center, error) {
	latStep := LatStep(radiusM) * stepFraction
	if latStep <= 0 {
		return nil, eris.Errorf("tiling: computed lat step %.6f <= 0 (radius=%.0f, fraction=%.2f)",
			latStep, radiusM, stepFraction)
	}

	var centers []Center
	for lat := bbox.South + latStep; lat < bbox.North-latStep; lat += latStep {
		lonStep := LonStep(radiusM, lat) * stepFraction
		if lonStep <= 0 {
			return nil, eris.Errorf("tiling: computed lon step %.6f <= 0 at lat %.4f", lonStep, lat)
		}
		for lon := bbox.West + lonStep; lon < bbox.East-lonStep; lon += lonStep {
			centers = append(centers, Center{
				Lat: math.Round(lat*1e6) / 1e6,
				Lon: math.Round(lon*1e6) / 1e6,
			})
			if maxTiles > 0 && len(centers) >= maxTiles {
				return centers, nil
			}
		}
	}
	return centers, nil
}
