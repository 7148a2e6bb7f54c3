// Package store persists vendors into a relational database, with Postgres
// and SQLite backends behind one interface.
package store

import (
	"context"
	"errors"
	"strings"

	"github.com/trinacria-data/vendorscan/internal/model"
)

// ErrDuplicate signals a uniqueness violation on (name, address). Callers
// treat it as "already present", not as a failure.
var ErrDuplicate = errors.New("store: vendor already present")

// ErrNotFound signals a lookup miss.
var ErrNotFound = errors.New("store: vendor not found")

// DefaultPriceRange is the sentinel stored when a source provides no price
// information.
const DefaultPriceRange = "Unknown"

// Vendor is one persisted vendor row.
type Vendor struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	ServiceType string `json:"service_type"`
	PriceRange  string `json:"price_range"`
	Address     string `json:"address"`
	City        string `json:"city"`
	Country     string `json:"country"`
	Contact     string `json:"contact"`
	Hours       string `json:"hours"`
	PictureURL  string `json:"picture_url"`
	Website     string `json:"website"`

	Instagram string `json:"instagram,omitempty"`
	Facebook  string `json:"facebook,omitempty"`
	Twitter   string `json:"twitter,omitempty"`
	LinkedIn  string `json:"linkedin,omitempty"`
	YouTube   string `json:"youtube,omitempty"`
	TikTok    string `json:"tiktok,omitempty"`
	Pinterest string `json:"pinterest,omitempty"`

	Source   string `json:"source,omitempty"`
	SourceID string `json:"source_id,omitempty"`

	Lat *float64 `json:"lat,omitempty"`
	Lon *float64 `json:"lon,omitempty"`
}

// FromRecord projects a pipeline record onto the persisted shape, applying
// the country and price-range defaults.
func FromRecord(v *model.VendorRecord) Vendor {
	row := Vendor{
		Name:        v.Name,
		ServiceType: v.ServiceType,
		PriceRange:  DefaultPriceRange,
		Address:     v.Address,
		City:        v.City,
		Country:     v.Country,
		Contact:     v.Contact,
		Hours:       v.Hours,
		PictureURL:  v.PictureURL,
		Website:     v.Website,
		Instagram:   v.Instagram,
		Facebook:    v.Facebook,
		Twitter:     v.Twitter,
		LinkedIn:    v.LinkedIn,
		YouTube:     v.YouTube,
		TikTok:      v.TikTok,
		Pinterest:   v.Pinterest,
		Source:      string(v.Source),
		SourceID:    v.SourceID,
		Lat:         v.Lat,
		Lon:         v.Lon,
	}
	if row.Country == "" {
		row.Country = model.DefaultCountry
	}
	return row
}

// DedupKey is the exact-match key guarding the store against over-merging:
// lowercased name plus lowercased address.
func (v *Vendor) DedupKey() string {
	return strings.ToLower(v.Name) + "\x00" + strings.ToLower(v.Address)
}

// SearchFilter narrows a vendor search. Empty fields match everything;
// string fields match as case-insensitive substrings.
type SearchFilter struct {
	Name        string
	ServiceType string
	City        string
	Limit       int
	Offset      int
}

// Store is the persistence interface for vendors.
type Store interface {
	// Migrate creates the schema if it does not exist.
	Migrate(ctx context.Context) error

	// InsertVendor inserts one vendor and sets its ID. A uniqueness
	// violation on (name, address) returns ErrDuplicate.
	InsertVendor(ctx context.Context, v *Vendor) error

	// GetVendor fetches one vendor by id, or ErrNotFound.
	GetVendor(ctx context.Context, id int64) (*Vendor, error)

	// SearchVendors lists vendors matching the filter, newest first.
	SearchVendors(ctx context.Context, f SearchFilter) ([]Vendor, error)

	Close() error
}
