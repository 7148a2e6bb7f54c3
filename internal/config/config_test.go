package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir()) // no config.yaml present

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "36.65,12.42,38.22,15.65", cfg.Region.BBox)
	assert.Equal(t, "Sicily, Italy", cfg.Region.Hint)
	assert.InDelta(t, 35000.0, cfg.Tiling.RadiusM, 0.01)
	assert.InDelta(t, 0.9, cfg.Tiling.StepFraction, 0.001)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 6, cfg.Yelp.MaxConsecutive429)
	assert.Equal(t, 1000, cfg.Yelp.MaxOffset)
	assert.Equal(t, 3, cfg.Foursquare.MaxPages)
	assert.NotEmpty(t, cfg.Yelp.Categories)
	assert.NotEmpty(t, cfg.Foursquare.Queries)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Zero(t, cfg.Quick.MaxTiles)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("VENDORSCAN_TILING_RADIUS_M", "15000")
	t.Setenv("VENDORSCAN_YELP_API_KEY", "test-key")

	cfg, err := Load()
	require.NoError(t, err)

	assert.InDelta(t, 15000.0, cfg.Tiling.RadiusM, 0.01)
	assert.Equal(t, "test-key", cfg.Yelp.APIKey)
}

func TestValidate_MissingCredential(t *testing.T) {
	cfg := &Config{Store: StoreConfig{Driver: "sqlite", DatabaseURL: "vendors.db"}}

	assert.Error(t, cfg.Validate("yelp"))
	assert.Error(t, cfg.Validate("foursquare"))
	assert.Error(t, cfg.Validate("opencage"))
	assert.NoError(t, cfg.Validate("osm"))
	assert.NoError(t, cfg.Validate("store"))

	cfg.Yelp.APIKey = "k"
	assert.NoError(t, cfg.Validate("yelp"))

	cfg.Store.Driver = "mysql"
	assert.Error(t, cfg.Validate("store"))

	assert.Error(t, cfg.Validate("nonsense"))
}
