// Package config loads the pipeline configuration from config.yaml and the
// environment, and initializes the global logger.
package config

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Region     RegionConfig     `yaml:"region" mapstructure:"region"`
	Tiling     TilingConfig     `yaml:"tiling" mapstructure:"tiling"`
	Retry      RetryConfig      `yaml:"retry" mapstructure:"retry"`
	Quick      QuickConfig      `yaml:"quick" mapstructure:"quick"`
	Overpass   OverpassConfig   `yaml:"overpass" mapstructure:"overpass"`
	Yelp       YelpConfig       `yaml:"yelp" mapstructure:"yelp"`
	Foursquare FoursquareConfig `yaml:"foursquare" mapstructure:"foursquare"`
	OpenCage   OpenCageConfig   `yaml:"opencage" mapstructure:"opencage"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Output     OutputConfig     `yaml:"output" mapstructure:"output"`
	Serve      ServeConfig      `yaml:"serve" mapstructure:"serve"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// RegionConfig pins the pipeline to its target region.
type RegionConfig struct {
	// BBox is "south,west,north,east" in degrees.
	BBox string `yaml:"bbox" mapstructure:"bbox"`
	// Hint is appended to forward-geocode queries to bias results.
	Hint string `yaml:"hint" mapstructure:"hint"`
	// AreaName selects the Overpass search area.
	AreaName string `yaml:"area_name" mapstructure:"area_name"`
	// BBoxTolerance expands the bbox when filtering fetched results, in
	// degrees.
	BBoxTolerance float64 `yaml:"bbox_tolerance" mapstructure:"bbox_tolerance"`
}

// TilingConfig controls the query lattice.
type TilingConfig struct {
	RadiusM      float64 `yaml:"radius_m" mapstructure:"radius_m"`
	StepFraction float64 `yaml:"step_fraction" mapstructure:"step_fraction"`
}

// RetryConfig holds the shared transient-retry tunables.
type RetryConfig struct {
	MaxAttempts    int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	BackoffBaseSec float64 `yaml:"backoff_base_sec" mapstructure:"backoff_base_sec"`
}

// QuickConfig truncates the scan for low-cost development runs. Zero means
// no limit.
type QuickConfig struct {
	MaxTiles      int `yaml:"max_tiles" mapstructure:"max_tiles"`
	MaxCategories int `yaml:"max_categories" mapstructure:"max_categories"`
	MaxQueries    int `yaml:"max_queries" mapstructure:"max_queries"`
}

// TagFilter is one OSM key~value-regex filter in the Overpass query.
type TagFilter struct {
	Key    string `yaml:"key" mapstructure:"key"`
	Values string `yaml:"values" mapstructure:"values"`
}

// OverpassConfig configures the OSM fetcher.
type OverpassConfig struct {
	BaseURL        string      `yaml:"base_url" mapstructure:"base_url"`
	Tags           []TagFilter `yaml:"tags" mapstructure:"tags"`
	NameKeywords   []string    `yaml:"name_keywords" mapstructure:"name_keywords"`
	CooldownSec    float64     `yaml:"cooldown_sec" mapstructure:"cooldown_sec"`
	TimeoutSec     int         `yaml:"timeout_sec" mapstructure:"timeout_sec"`
}

// YelpConfig configures the Yelp Fusion fetcher.
type YelpConfig struct {
	APIKey            string   `yaml:"api_key" mapstructure:"api_key"`
	BaseURL           string   `yaml:"base_url" mapstructure:"base_url"`
	Categories        []string `yaml:"categories" mapstructure:"categories"`
	RequestDelaySec   float64  `yaml:"request_delay_sec" mapstructure:"request_delay_sec"`
	CooldownSec       float64  `yaml:"cooldown_sec" mapstructure:"cooldown_sec"`
	MaxConsecutive429 int      `yaml:"max_consecutive_429" mapstructure:"max_consecutive_429"`
	PageSize          int      `yaml:"page_size" mapstructure:"page_size"`
	MaxOffset         int      `yaml:"max_offset" mapstructure:"max_offset"`
}

// FoursquareConfig configures the Foursquare Places fetcher.
type FoursquareConfig struct {
	APIKey          string   `yaml:"api_key" mapstructure:"api_key"`
	BaseURL         string   `yaml:"base_url" mapstructure:"base_url"`
	Queries         []string `yaml:"queries" mapstructure:"queries"`
	RequestDelaySec float64  `yaml:"request_delay_sec" mapstructure:"request_delay_sec"`
	PageSize        int      `yaml:"page_size" mapstructure:"page_size"`
	MaxPages        int      `yaml:"max_pages" mapstructure:"max_pages"`
}

// OpenCageConfig configures the geocoding enrichment stage.
type OpenCageConfig struct {
	APIKey          string  `yaml:"api_key" mapstructure:"api_key"`
	BaseURL         string  `yaml:"base_url" mapstructure:"base_url"`
	RequestDelaySec float64 `yaml:"request_delay_sec" mapstructure:"request_delay_sec"`
}

// StoreConfig configures the vendor store backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// OutputConfig controls where intermediate files land.
type OutputConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// ServeConfig configures the vendor search API.
type ServeConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env, config.yaml, and the environment.
func Load() (*Config, error) {
	// Credentials conventionally live in a local .env file.
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("VENDORSCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Sicily bbox (south, west, north, east).
	v.SetDefault("region.bbox", "36.65,12.42,38.22,15.65")
	v.SetDefault("region.hint", "Sicily, Italy")
	v.SetDefault("region.area_name", "Sicilia")
	v.SetDefault("region.bbox_tolerance", 0.05)

	v.SetDefault("tiling.radius_m", 35000)
	v.SetDefault("tiling.step_fraction", 0.9)

	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.backoff_base_sec", 1.2)

	v.SetDefault("quick.max_tiles", 0)
	v.SetDefault("quick.max_categories", 0)
	v.SetDefault("quick.max_queries", 0)

	v.SetDefault("overpass.base_url", "https://overpass-api.de/api/interpreter")
	v.SetDefault("overpass.cooldown_sec", 30)
	v.SetDefault("overpass.timeout_sec", 120)
	v.SetDefault("overpass.name_keywords", []string{
		"matrimoni", "sposa", "sposi", "wedding", "nozze",
	})

	// Empty-string defaults make the credential keys visible to viper so
	// AutomaticEnv can populate them without a config file.
	v.SetDefault("yelp.api_key", "")
	v.SetDefault("foursquare.api_key", "")
	v.SetDefault("opencage.api_key", "")

	v.SetDefault("yelp.base_url", "https://api.yelp.com/v3")
	v.SetDefault("yelp.request_delay_sec", 1.8)
	v.SetDefault("yelp.cooldown_sec", 60)
	v.SetDefault("yelp.max_consecutive_429", 6)
	v.SetDefault("yelp.page_size", 50)
	v.SetDefault("yelp.max_offset", 1000) // Yelp hard cap
	v.SetDefault("yelp.categories", []string{
		"wedding_planning", "photographers", "videographers", "florists",
		"bridal", "venues", "caterers", "hair", "barbers", "makeupartists",
	})

	v.SetDefault("foursquare.base_url", "https://places-api.foursquare.com")
	v.SetDefault("foursquare.request_delay_sec", 0.4)
	v.SetDefault("foursquare.page_size", 50)
	v.SetDefault("foursquare.max_pages", 3)
	v.SetDefault("foursquare.queries", []string{
		"wedding planner", "wedding planning", "matrimonio", "fotografo",
		"photographer", "videographer", "florist", "fioraio", "bridal",
		"abiti da sposa", "venue", "event venue", "location matrimoni",
		"catering", "caterer", "hairdresser", "parrucchiere", "barber",
		"barbiere", "make up", "trucco sposa",
	})

	v.SetDefault("opencage.base_url", "https://api.opencagedata.com/geocode/v1")
	v.SetDefault("opencage.request_delay_sec", 1.0)

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "vendors.db")

	v.SetDefault("output.dir", "outputs")
	v.SetDefault("serve.port", 8080)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Validate checks that the credentials and parameters a component needs are
// present. Missing credentials are fatal before any network call is made.
func (c *Config) Validate(components ...string) error {
	for _, comp := range components {
		switch comp {
		case "yelp":
			if c.Yelp.APIKey == "" {
				return eris.New("config: yelp.api_key is required (set VENDORSCAN_YELP_API_KEY)")
			}
		case "foursquare":
			if c.Foursquare.APIKey == "" {
				return eris.New("config: foursquare.api_key is required (set VENDORSCAN_FOURSQUARE_API_KEY)")
			}
		case "opencage":
			if c.OpenCage.APIKey == "" {
				return eris.New("config: opencage.api_key is required (set VENDORSCAN_OPENCAGE_API_KEY)")
			}
		case "store":
			if c.Store.DatabaseURL == "" {
				return eris.New("config: store.database_url is required")
			}
			if c.Store.Driver != "postgres" && c.Store.Driver != "sqlite" {
				return eris.Errorf("config: unknown store driver %q", c.Store.Driver)
			}
		case "osm":
			// Overpass needs no credential.
		default:
			return eris.Errorf("config: unknown component %q", comp)
		}
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)
	return nil
}
