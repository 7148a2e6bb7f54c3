package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "vendors.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestSQLiteStore_InsertAndGet(t *testing.T) {
	s := newTestSQLiteStore(t)

	lat, lon := 38.1431, 13.3651
	v := Vendor{
		Name: "Villa Igiea", ServiceType: "venues", PriceRange: "Unknown",
		Address: "Via Belmonte 43", City: "Palermo", Country: "Italy",
		Instagram: "https://instagram.com/villaigiea",
		Source:    "yelp", SourceID: "villa-igiea",
		Lat: &lat, Lon: &lon,
	}
	require.NoError(t, s.InsertVendor(context.Background(), &v))
	require.NotZero(t, v.ID)

	got, err := s.GetVendor(context.Background(), v.ID)
	require.NoError(t, err)
	assert.Equal(t, "Villa Igiea", got.Name)
	assert.Equal(t, "Palermo", got.City)
	assert.Equal(t, "https://instagram.com/villaigiea", got.Instagram)
	assert.Equal(t, "yelp", got.Source)
	require.NotNil(t, got.Lat)
	assert.InDelta(t, 38.1431, *got.Lat, 1e-9)
}

func TestSQLiteStore_GetVendor_NotFound(t *testing.T) {
	s := newTestSQLiteStore(t)
	_, err := s.GetVendor(context.Background(), 99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_DuplicateIsCaseInsensitive(t *testing.T) {
	s := newTestSQLiteStore(t)

	a := Vendor{Name: "Bella Vista Venue", ServiceType: "venues", Address: "Via Roma 1"}
	require.NoError(t, s.InsertVendor(context.Background(), &a))

	// Same name+address modulo case must hit the unique index.
	b := Vendor{Name: "bella vista venue", ServiceType: "venues", Address: "via roma 1"}
	err := s.InsertVendor(context.Background(), &b)
	assert.ErrorIs(t, err, ErrDuplicate)

	// A different address is a different vendor.
	c := Vendor{Name: "Bella Vista Venue", ServiceType: "venues", Address: "Via Roma 2"}
	assert.NoError(t, s.InsertVendor(context.Background(), &c))
}

func TestSQLiteStore_SearchVendors(t *testing.T) {
	s := newTestSQLiteStore(t)

	vendors := []Vendor{
		{Name: "Fioreria Etna", ServiceType: "florists", City: "Catania"},
		{Name: "Fioreria Bella", ServiceType: "florists", City: "Palermo"},
		{Name: "Studio Foto Nozze", ServiceType: "photographers", City: "Palermo"},
	}
	for i := range vendors {
		require.NoError(t, s.InsertVendor(context.Background(), &vendors[i]))
	}

	byName, err := s.SearchVendors(context.Background(), SearchFilter{Name: "fioreria"})
	require.NoError(t, err)
	assert.Len(t, byName, 2)

	byCity, err := s.SearchVendors(context.Background(), SearchFilter{City: "palermo"})
	require.NoError(t, err)
	assert.Len(t, byCity, 2)

	both, err := s.SearchVendors(context.Background(), SearchFilter{
		ServiceType: "florists", City: "palermo",
	})
	require.NoError(t, err)
	require.Len(t, both, 1)
	assert.Equal(t, "Fioreria Bella", both[0].Name)

	limited, err := s.SearchVendors(context.Background(), SearchFilter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	// Newest first.
	assert.Equal(t, "Studio Foto Nozze", limited[0].Name)
}
