package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trinacria-data/vendorscan/internal/model"
)

func rec(name, address, city string) model.VendorRecord {
	return model.VendorRecord{
		Source: model.SourceYelp, SourceID: name,
		Name: name, ServiceType: "venues",
		Address: address, City: city,
	}
}

func TestLoader_CollapsesExactDuplicatesInBatch(t *testing.T) {
	s := newTestSQLiteStore(t)
	loader := Loader{Store: s}

	recs := []model.VendorRecord{
		rec("Bella Vista Venue", "Via Roma 1", "Palermo"),
		rec("bella vista venue", "via roma 1", "Palermo"),
		rec("Bella Vista Venue", "Via Roma 2", "Palermo"),
	}

	res, err := loader.Load(context.Background(), recs)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Stored)
	assert.Equal(t, 1, res.BatchDupes)
	assert.Equal(t, 0, res.StoreDupes)

	got, err := s.SearchVendors(context.Background(), SearchFilter{Name: "bella vista"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	// First-seen casing wins within the batch.
	assert.Equal(t, "Bella Vista Venue", got[1].Name)
}

func TestLoader_SkipsRowsAlreadyStored(t *testing.T) {
	s := newTestSQLiteStore(t)
	loader := Loader{Store: s}

	first, err := loader.Load(context.Background(), []model.VendorRecord{
		rec("Fioreria Etna", "Via Garibaldi 5", "Catania"),
	})
	require.NoError(t, err)
	require.Equal(t, 1, first.Stored)

	second, err := loader.Load(context.Background(), []model.VendorRecord{
		rec("FIORERIA ETNA", "via garibaldi 5", "Catania"),
		rec("Studio Foto Nozze", "Corso Umberto 12", "Taormina"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, second.Stored)
	assert.Equal(t, 0, second.BatchDupes)
	assert.Equal(t, 1, second.StoreDupes)
}

func TestLoader_AppliesDefaults(t *testing.T) {
	s := newTestSQLiteStore(t)
	loader := Loader{Store: s}

	r := rec("Pasticceria Savia", "Via Etnea 300", "Catania")
	r.Country = ""
	_, err := loader.Load(context.Background(), []model.VendorRecord{r})
	require.NoError(t, err)

	got, err := s.SearchVendors(context.Background(), SearchFilter{Name: "savia"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Italy", got[0].Country)
	assert.Equal(t, "Unknown", got[0].PriceRange)
}
