// Package pipeline orchestrates the vendor ingestion run: tiled fetching
// from the three sources, geocoding enrichment, coverage comparison, and the
// database load.
package pipeline

import (
	"strings"

	"github.com/trinacria-data/vendorscan/internal/model"
	"github.com/trinacria-data/vendorscan/pkg/foursquare"
	"github.com/trinacria-data/vendorscan/pkg/overpass"
	"github.com/trinacria-data/vendorscan/pkg/yelp"
)

// osmServiceTags are probed in order for a service-type value.
var osmServiceTags = []string{"shop", "amenity", "tourism", "craft"}

// osmCityTags are probed in order for a city-like value.
var osmCityTags = []string{"addr:city", "addr:town", "addr:village", "addr:municipality"}

// osmSocialTags maps OSM contact tags onto record social fields.
var osmSocialTags = map[string]func(*model.VendorRecord, string){
	"instagram": func(v *model.VendorRecord, s string) { v.Instagram = s },
	"facebook":  func(v *model.VendorRecord, s string) { v.Facebook = s },
	"twitter":   func(v *model.VendorRecord, s string) { v.Twitter = s },
	"linkedin":  func(v *model.VendorRecord, s string) { v.LinkedIn = s },
	"youtube":   func(v *model.VendorRecord, s string) { v.YouTube = s },
	"tiktok":    func(v *model.VendorRecord, s string) { v.TikTok = s },
	"pinterest": func(v *model.VendorRecord, s string) { v.Pinterest = s },
}

// osmTag resolves one logical field from OSM tags, preferring the
// contact:-namespaced variant over the bare tag when both exist.
func osmTag(tags map[string]string, key string) string {
	if v := tags["contact:"+key]; v != "" {
		return v
	}
	return tags[key]
}

func firstTag(tags map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := tags[k]; v != "" {
			return v
		}
	}
	return ""
}

// NormalizeOSM maps one Overpass element to the canonical record shape.
func NormalizeOSM(e *overpass.Element) model.VendorRecord {
	tags := e.Tags

	v := model.VendorRecord{
		SourceID:    e.SourceID(),
		Source:      model.SourceOSM,
		Name:        tags["name"],
		ServiceType: firstTag(tags, osmServiceTags...),
		Address:     osmAddress(tags),
		City:        firstTag(tags, osmCityTags...),
		Postcode:    tags["addr:postcode"],
		Country:     tags["addr:country"],
		Contact:     osmTag(tags, "phone"),
		Email:       osmTag(tags, "email"),
		Website:     osmTag(tags, "website"),
		Hours:       tags["opening_hours"],
		PictureURL:  tags["image"],
		RawTags:     tags,
	}
	if v.Name == "" {
		v.Name = model.UnknownName
	}
	if v.ServiceType == "" {
		v.ServiceType = "unknown"
	}
	for key, set := range osmSocialTags {
		if s := osmTag(tags, key); s != "" {
			set(&v, s)
		}
	}
	if lat, lon, ok := e.Coords(); ok {
		v.SetCoords(lat, lon)
	}
	return v
}

// osmAddress builds a single address line: addr:full when present, else
// street and housenumber joined, else whichever of the two exists.
func osmAddress(tags map[string]string) string {
	if full := tags["addr:full"]; full != "" {
		return full
	}
	street := tags["addr:street"]
	number := tags["addr:housenumber"]
	switch {
	case street != "" && number != "":
		return street + " " + number
	case street != "":
		return street
	default:
		return number
	}
}

// NormalizeYelp maps one Yelp business to the canonical record shape. The
// category that matched becomes the service type, passed through unchanged.
func NormalizeYelp(b *yelp.Business, category string) model.VendorRecord {
	v := model.VendorRecord{
		SourceID:    b.ID,
		Source:      model.SourceYelp,
		Name:        b.Name,
		ServiceType: category,
		Address:     strings.Join(b.Location.DisplayAddress, " "),
		City:        b.Location.City,
		Postcode:    b.Location.ZipCode,
		State:       b.Location.State,
		Country:     b.Location.Country,
		Contact:     b.Phone,
		PictureURL:  b.ImageURL,
		Website:     b.URL,
	}
	if v.Name == "" {
		v.Name = model.UnknownName
	}
	if b.Coordinates.Latitude != nil && b.Coordinates.Longitude != nil {
		v.SetCoords(*b.Coordinates.Latitude, *b.Coordinates.Longitude)
	}
	return v
}

// NormalizeFoursquare maps one Foursquare place to the canonical record
// shape. The free-text query that matched becomes the service type.
func NormalizeFoursquare(p *foursquare.Place, query string) model.VendorRecord {
	address := p.Location.FormattedAddress
	if address == "" {
		address = strings.TrimSpace(p.Location.Address + " " + p.Location.Locality)
	}

	v := model.VendorRecord{
		SourceID:    p.FsqID,
		Source:      model.SourceFoursquare,
		Name:        p.Name,
		ServiceType: query,
		Address:     address,
		City:        p.Location.Locality,
		Postcode:    p.Location.Postcode,
		State:       p.Location.Region,
		Country:     p.Location.Country,
	}
	if v.Name == "" {
		v.Name = model.UnknownName
	}
	if lat, lon, ok := p.Coords(); ok {
		v.SetCoords(lat, lon)
	}
	return v
}
