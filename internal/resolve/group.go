package resolve

import (
	"fmt"
	"math"

	"github.com/trinacria-data/vendorscan/internal/model"
)

// geoDecimals is the coordinate rounding applied inside geo keys. Three
// decimal places is roughly a 111 m cell at the equator.
const geoDecimals = 3

// KeyKind discriminates the three key shapes.
type KeyKind string

const (
	// KindGeo keys by rounded coordinates plus normalized name.
	KindGeo KeyKind = "geo"
	// KindNameCity keys by normalized name plus normalized city.
	KindNameCity KeyKind = "namecity"
	// KindSingleton marks a record whose fuzzy key would be fully empty.
	// Such records never merge with anything; each forms its own group.
	KindSingleton KeyKind = "singleton"
)

// Key is the comparable fuzzy grouping key of one vendor record.
type Key struct {
	Kind KeyKind
	Lat  float64
	Lon  float64
	Name string
	City string
	// ID distinguishes singleton keys; unset for the other kinds.
	ID string
}

func roundCoord(v float64) float64 {
	scale := math.Pow10(geoDecimals)
	return math.Round(v*scale) / scale
}

// KeyFor computes the fuzzy grouping key of a record. Records with
// coordinates key geographically by rounded position plus normalized name
// (which may be empty); records without coordinates but with any name or
// city signal key by namecity; records with neither become singletons so
// that unrelated empty records never collapse together.
func KeyFor(v *model.VendorRecord) Key {
	name := NormalizeName(v.Name)
	city := NormalizeCity(v.City)

	if v.HasCoords() {
		return Key{Kind: KindGeo, Lat: roundCoord(*v.Lat), Lon: roundCoord(*v.Lon), Name: name}
	}
	if name != "" || city != "" {
		return Key{Kind: KindNameCity, Name: name, City: city}
	}
	return Key{Kind: KindSingleton, ID: fmt.Sprintf("%s/%s", v.Source, v.SourceID)}
}

// Group is one resolved identity: the records that share a fuzzy key and the
// set of sources they came from.
type Group struct {
	Key     Key
	Members []model.VendorRecord
	Sources map[model.Source]struct{}
}

// HasSource reports whether any member came from the given source.
func (g *Group) HasSource(s model.Source) bool {
	_, ok := g.Sources[s]
	return ok
}

// RepresentativeName picks the most frequent non-empty member name, breaking
// ties by first appearance. Empty groups report "Unknown".
func (g *Group) RepresentativeName() string {
	counts := make(map[string]int)
	var order []string
	for i := range g.Members {
		name := g.Members[i].Name
		if name == "" || name == model.UnknownName {
			continue
		}
		if counts[name] == 0 {
			order = append(order, name)
		}
		counts[name]++
	}
	best := ""
	for _, name := range order {
		if best == "" || counts[name] > counts[best] {
			best = name
		}
	}
	if best == "" {
		return "Unknown"
	}
	return best
}

// GroupRecords groups records by fuzzy key, preserving the first-seen order
// of groups.
func GroupRecords(records []model.VendorRecord) []*Group {
	index := make(map[Key]*Group)
	var groups []*Group
	for i := range records {
		key := KeyFor(&records[i])
		g, ok := index[key]
		if !ok {
			g = &Group{Key: key, Sources: make(map[model.Source]struct{})}
			index[key] = g
			groups = append(groups, g)
		}
		g.Members = append(g.Members, records[i])
		g.Sources[records[i].Source] = struct{}{}
	}
	return groups
}

// UniqueBySource counts distinct identities among one source's records only.
func UniqueBySource(records []model.VendorRecord, source model.Source) int {
	var subset []model.VendorRecord
	for _, v := range records {
		if v.Source == source {
			subset = append(subset, v)
		}
	}
	return len(GroupRecords(subset))
}
