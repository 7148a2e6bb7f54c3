package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trinacria-data/vendorscan/pkg/foursquare"
	"github.com/trinacria-data/vendorscan/pkg/overpass"
	"github.com/trinacria-data/vendorscan/pkg/yelp"
)

func f64(v float64) *float64 { return &v }

func TestNormalizeOSM_FullElement(t *testing.T) {
	e := overpass.Element{
		Type: "node",
		ID:   42,
		Lat:  f64(38.1157),
		Lon:  f64(13.3615),
		Tags: map[string]string{
			"name":              "Fioreria Rosalia",
			"shop":              "florist",
			"addr:street":       "Via Maqueda",
			"addr:housenumber":  "12",
			"addr:city":         "Palermo",
			"addr:postcode":     "90133",
			"addr:country":      "IT",
			"phone":             "+39 091 000000",
			"contact:phone":     "+39 091 111111",
			"website":           "https://fioreriarosalia.it",
			"contact:instagram": "https://instagram.com/fioreriarosalia",
			"opening_hours":     "Mo-Sa 09:00-19:00",
		},
	}

	v := NormalizeOSM(&e)

	assert.Equal(t, "node/42", v.SourceID)
	assert.Equal(t, "osm", string(v.Source))
	assert.Equal(t, "Fioreria Rosalia", v.Name)
	assert.Equal(t, "florist", v.ServiceType)
	assert.Equal(t, "Via Maqueda 12", v.Address)
	assert.Equal(t, "Palermo", v.City)
	assert.Equal(t, "90133", v.Postcode)
	assert.Equal(t, "IT", v.Country)
	// contact:-namespaced tags win over bare ones.
	assert.Equal(t, "+39 091 111111", v.Contact)
	assert.Equal(t, "https://fioreriarosalia.it", v.Website)
	assert.Equal(t, "https://instagram.com/fioreriarosalia", v.Instagram)
	assert.Equal(t, "Mo-Sa 09:00-19:00", v.Hours)
	require.True(t, v.HasCoords())
	assert.InDelta(t, 38.1157, *v.Lat, 1e-9)
	assert.InDelta(t, 13.3615, *v.Lon, 1e-9)
	assert.Equal(t, e.Tags, v.RawTags)
}

func TestNormalizeOSM_Defaults(t *testing.T) {
	e := overpass.Element{Type: "way", ID: 7, Tags: map[string]string{}}
	v := NormalizeOSM(&e)

	assert.Equal(t, "N/A", v.Name)
	assert.Equal(t, "unknown", v.ServiceType)
	assert.False(t, v.HasCoords())
}

func TestNormalizeOSM_CityFallsBackThroughTags(t *testing.T) {
	e := overpass.Element{
		Type: "node", ID: 9,
		Tags: map[string]string{
			"name":          "Tenuta del Gelso",
			"amenity":       "events_venue",
			"addr:village":  "Pedara",
			"addr:full":     "Contrada Gelso snc, Pedara",
			"addr:street":   "Contrada Gelso",
			"opening_hours": "",
		},
	}
	v := NormalizeOSM(&e)

	assert.Equal(t, "events_venue", v.ServiceType)
	assert.Equal(t, "Pedara", v.City)
	// addr:full wins over the street join.
	assert.Equal(t, "Contrada Gelso snc, Pedara", v.Address)
}

func TestNormalizeYelp(t *testing.T) {
	b := yelp.Business{
		ID:       "taormina-flowers",
		Name:     "Taormina Flowers",
		Phone:    "+390942123456",
		ImageURL: "https://img.yelp.com/x.jpg",
		URL:      "https://yelp.com/biz/taormina-flowers",
		Coordinates: yelp.Coordinates{
			Latitude:  f64(37.8516),
			Longitude: f64(15.2853),
		},
		Location: yelp.Location{
			DisplayAddress: []string{"Corso Umberto 1", "98039 Taormina"},
			City:           "Taormina",
			ZipCode:        "98039",
			State:          "ME",
			Country:        "IT",
		},
	}

	v := NormalizeYelp(&b, "florists")

	assert.Equal(t, "taormina-flowers", v.SourceID)
	assert.Equal(t, "yelp", string(v.Source))
	assert.Equal(t, "florists", v.ServiceType)
	assert.Equal(t, "Corso Umberto 1 98039 Taormina", v.Address)
	assert.Equal(t, "Taormina", v.City)
	assert.Equal(t, "ME", v.State)
	assert.Equal(t, "+390942123456", v.Contact)
	require.True(t, v.HasCoords())
	assert.InDelta(t, 37.8516, *v.Lat, 1e-9)
}

func TestNormalizeYelp_PartialCoordinatesDropped(t *testing.T) {
	b := yelp.Business{
		ID:          "x",
		Name:        "X",
		Coordinates: yelp.Coordinates{Latitude: f64(37.5)},
	}
	v := NormalizeYelp(&b, "venues")
	assert.False(t, v.HasCoords())
}

func TestNormalizeFoursquare(t *testing.T) {
	p := foursquare.Place{
		FsqID: "fsq123",
		Name:  "Villa dei Limoni",
		Location: foursquare.Location{
			FormattedAddress: "Via delle Zagare 3, 95024 Acireale CT",
			Address:          "Via delle Zagare 3",
			Locality:         "Acireale",
			Postcode:         "95024",
			Region:           "CT",
			Country:          "IT",
		},
		Geocodes: &foursquare.Geocodes{
			Main: &foursquare.LatLon{Latitude: 37.6126, Longitude: 15.1656},
		},
	}

	v := NormalizeFoursquare(&p, "wedding venue")

	assert.Equal(t, "fsq123", v.SourceID)
	assert.Equal(t, "foursquare", string(v.Source))
	assert.Equal(t, "wedding venue", v.ServiceType)
	assert.Equal(t, "Via delle Zagare 3, 95024 Acireale CT", v.Address)
	assert.Equal(t, "Acireale", v.City)
	require.True(t, v.HasCoords())
	assert.InDelta(t, 15.1656, *v.Lon, 1e-9)
}

func TestNormalizeFoursquare_AddressFallback(t *testing.T) {
	p := foursquare.Place{
		FsqID: "fsq9",
		Name:  "Studio Foto Sicilia",
		Location: foursquare.Location{
			Address:  "Via Etnea 100",
			Locality: "Catania",
		},
	}
	v := NormalizeFoursquare(&p, "wedding photographer")

	assert.Equal(t, "Via Etnea 100 Catania", v.Address)
	assert.False(t, v.HasCoords())
}
