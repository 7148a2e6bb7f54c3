// Package model defines the canonical vendor record that flows through the
// ingestion pipeline, from source fetch to enrichment to storage.
package model

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// Source identifies the upstream provider a record was fetched from.
type Source string

const (
	SourceOSM        Source = "osm"
	SourceYelp       Source = "yelp"
	SourceFoursquare Source = "foursquare"
	// SourceDB tags records read back out of the vendor store.
	SourceDB Source = "db"
)

// UnknownName is the sentinel used when a source record carries no name.
const UnknownName = "N/A"

// DefaultCountry is applied when a source provides no country field.
const DefaultCountry = "Italy"

// VendorRecord is the canonical unit flowing through the pipeline. Scalar
// fields are always present (empty string when unknown) so downstream stages
// never probe for missing keys. Lat/Lon form a nullable pair: both nil or
// both set.
type VendorRecord struct {
	SourceID    string `json:"source_id"`
	Source      Source `json:"source"`
	Name        string `json:"name"`
	ServiceType string `json:"service_type"`

	Address  string `json:"address"`
	City     string `json:"city"`
	Postcode string `json:"postcode"`
	State    string `json:"state"`
	Country  string `json:"country"`

	Lat *float64 `json:"lat"`
	Lon *float64 `json:"lon"`

	Contact    string `json:"contact"`
	Email      string `json:"email"`
	Website    string `json:"website"`
	PictureURL string `json:"picture_url"`
	Hours      string `json:"hours"`

	Instagram string `json:"instagram"`
	Facebook  string `json:"facebook"`
	Twitter   string `json:"twitter"`
	LinkedIn  string `json:"linkedin"`
	YouTube   string `json:"youtube"`
	TikTok    string `json:"tiktok"`
	Pinterest string `json:"pinterest"`

	// RawTags carries the source-native key/value tags. Only the OSM fetcher
	// populates it; values are flattened to strings so the record stays
	// JSON-serializable.
	RawTags map[string]string `json:"raw_tags,omitempty"`
}

// HasCoords reports whether the record carries a complete coordinate pair.
func (v *VendorRecord) HasCoords() bool {
	return v.Lat != nil && v.Lon != nil
}

// SetCoords sets both coordinates at once, preserving the pairing invariant.
func (v *VendorRecord) SetCoords(lat, lon float64) {
	v.Lat = &lat
	v.Lon = &lon
}

// Validate checks the invariants the normalizer must guarantee: a non-empty
// name and a consistent coordinate pair.
func (v *VendorRecord) Validate() error {
	if v.Name == "" {
		return eris.New("model: vendor name is empty")
	}
	if (v.Lat == nil) != (v.Lon == nil) {
		return eris.Errorf("model: inconsistent coordinate pair for %q (source %s)", v.Name, v.Source)
	}
	return nil
}

// WriteRecords writes records to path as pretty-printed UTF-8 JSON with
// non-ASCII characters preserved. Parent directories are created as needed.
func WriteRecords(path string, records []VendorRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "model: create output dir for %s", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "model: create %s", path)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(records); err != nil {
		return eris.Wrapf(err, "model: encode %s", path)
	}
	return nil
}

// ReadRecords loads a records file previously written by WriteRecords.
func ReadRecords(path string) ([]VendorRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "model: read %s", path)
	}
	var records []VendorRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, eris.Wrapf(err, "model: decode %s", path)
	}
	return records, nil
}
