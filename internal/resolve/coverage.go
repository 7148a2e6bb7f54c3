package resolve

import (
	"os"
	"path/filepath"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/trinacria-data/vendorscan/internal/model"
)

// CoverageStats summarizes how the three sources overlap across identity
// groups.
type CoverageStats struct {
	UniqueOSM        int
	UniqueYelp       int
	UniqueFoursquare int

	TotalGroups int
	// MultiSource counts groups seen by at least two sources.
	MultiSource int

	YelpOSM        int
	FoursquareOSM  int
	YelpFoursquare int
	Triple         int
}

// Coverage groups the combined record set and computes per-source unique
// counts plus pairwise and triple overlaps.
func Coverage(records []model.VendorRecord) ([]*Group, CoverageStats) {
	groups := GroupRecords(records)

	stats := CoverageStats{
		UniqueOSM:        UniqueBySource(records, model.SourceOSM),
		UniqueYelp:       UniqueBySource(records, model.SourceYelp),
		UniqueFoursquare: UniqueBySource(records, model.SourceFoursquare),
		TotalGroups:      len(groups),
	}

	for _, g := range groups {
		osm := g.HasSource(model.SourceOSM)
		yelp := g.HasSource(model.SourceYelp)
		fsq := g.HasSource(model.SourceFoursquare)

		if len(g.Sources) >= 2 {
			stats.MultiSource++
		}
		if yelp && osm {
			stats.YelpOSM++
		}
		if fsq && osm {
			stats.FoursquareOSM++
		}
		if yelp && fsq {
			stats.YelpFoursquare++
		}
		if yelp && fsq && osm {
			stats.Triple++
		}
	}

	return groups, stats
}

// Log emits the coverage summary as structured log lines.
func (s CoverageStats) Log() {
	zap.L().Info("unique vendors per source",
		zap.Int("osm", s.UniqueOSM),
		zap.Int("yelp", s.UniqueYelp),
		zap.Int("foursquare", s.UniqueFoursquare),
	)
	zap.L().Info("source overlap",
		zap.Int("total_groups", s.TotalGroups),
		zap.Int("multi_source", s.MultiSource),
		zap.Int("yelp_osm", s.YelpOSM),
		zap.Int("foursquare_osm", s.FoursquareOSM),
		zap.Int("yelp_foursquare", s.YelpFoursquare),
		zap.Int("triple", s.Triple),
	)
}

// PresenceRow is one line of the presence matrix: a representative vendor
// name and a boolean flag per source.
type PresenceRow struct {
	Vendor     string `csv:"vendor"`
	Yelp       int    `csv:"yelp"`
	Foursquare int    `csv:"foursquare"`
	OSM        int    `csv:"osm"`
}

func boolCol(b bool) int {
	if b {
		return 1
	}
	return 0
}

// PresenceMatrix builds one row per identity group.
func PresenceMatrix(groups []*Group) []PresenceRow {
	rows := make([]PresenceRow, 0, len(groups))
	for _, g := range groups {
		rows = append(rows, PresenceRow{
			Vendor:     g.RepresentativeName(),
			Yelp:       boolCol(g.HasSource(model.SourceYelp)),
			Foursquare: boolCol(g.HasSource(model.SourceFoursquare)),
			OSM:        boolCol(g.HasSource(model.SourceOSM)),
		})
	}
	return rows
}

// WritePresenceCSV writes the presence matrix to path as CSV with a header
// row. Parent directories are created as needed.
func WritePresenceCSV(path string, rows []PresenceRow) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "resolve: create output dir for %s", path)
	}
	data, err := csvutil.Marshal(rows)
	if err != nil {
		return eris.Wrap(err, "resolve: marshal presence matrix")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "resolve: write %s", path)
	}
	return nil
}
