package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Search    SearchConfig    `mapstructure:"search"`
	Geocoder  GeocoderConfig  `mapstructure:"geocoder"`
	Routing   RoutingConfig   `mapstructure:"routing"`
	Tracker   TrackerConfig   `mapstructure:"tracker"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

type ServerConfig struct {
	Port           int `mapstructure:"port"`
	ReadTimeout    int `mapstructure:"read_timeout"`
	WriteTimeout   int `mapstructure:"write_timeout"`
	RequestTimeout int `mapstructure:"request_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type DatabaseConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
}

type ValkeyConfig struct {
	Addr string `mapstructure:"addr"`
}

// CacheConfig selects the cache backend shared by place and route lookups.
// Driver is one of "memory", "valkey", "sqlite" or "none".
type CacheConfig struct {
	Driver          string `mapstructure:"driver"`
	Size            int    `mapstructure:"size"`
	SQLitePath      string `mapstructure:"sqlite_path"`
	SearchTTL       int    `mapstructure:"search_ttl"`
	RouteTTL        int    `mapstructure:"route_ttl"`
	CleanupInterval int    `mapstructure:"cleanup_interval"`
}

type SearchConfig struct {
	DebounceMS     int    `mapstructure:"debounce_ms"`
	MinQueryLength int    `mapstructure:"min_query_length"`
	Limit          int    `mapstructure:"limit"`
	PlacesURL      string `mapstructure:"places_url"`
}

// Debounce returns the debounce delay as a duration.
func (s SearchConfig) Debounce() time.Duration {
	return time.Duration(s.DebounceMS) * time.Millisecond
}

type GeocoderConfig struct {
	PhotonURL     string  `mapstructure:"photon_url"`
	PhotonBBox    string  `mapstructure:"photon_bbox"`
	PhotonLang    string  `mapstructure:"photon_lang"`
	NominatimURL  string  `mapstructure:"nominatim_url"`
	NominatimRate float64 `mapstructure:"nominatim_rate"`
	Country       string  `mapstructure:"country"`
	UserAgent     string  `mapstructure:"user_agent"`
	Timeout       int     `mapstructure:"timeout"`
}

// RoutingConfig points at the routing backend.
// Style is "query" (/route?from=&to=) or "osrm" (/route/v1/<profile>/...).
type RoutingConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Style   string `mapstructure:"style"`
	Profile string `mapstructure:"profile"`
	Timeout int    `mapstructure:"timeout"`
}

// TrackerConfig drives cmd/tracker, which forwards GeoClue fixes to NATS.
type TrackerConfig struct {
	Device    string `mapstructure:"device"`
	DesktopID string `mapstructure:"desktop_id"`
	Accuracy  uint32 `mapstructure:"accuracy"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

// Load reads configuration from file and environment variables.
// A .env file in the working directory, if present, is loaded first.
func Load(service string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("server.request_timeout", 15)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "miniguide")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "miniguide")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("cache.driver", "memory")
	v.SetDefault("cache.size", 1024)
	v.SetDefault("cache.sqlite_path", "miniguide-cache.db")
	v.SetDefault("cache.search_ttl", 300)
	v.SetDefault("cache.route_ttl", 60)
	v.SetDefault("cache.cleanup_interval", 600)
	v.SetDefault("search.debounce_ms", 200)
	v.SetDefault("search.min_query_length", 2)
	v.SetDefault("search.limit", 8)
	v.SetDefault("search.places_url", "")
	v.SetDefault("geocoder.photon_url", "https://photon.komoot.io/api/")
	v.SetDefault("geocoder.photon_bbox", "68.0,6.0,98.0,36.0")
	v.SetDefault("geocoder.photon_lang", "en")
	v.SetDefault("geocoder.nominatim_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocoder.nominatim_rate", 1.0)
	v.SetDefault("geocoder.country", "India")
	v.SetDefault("geocoder.user_agent", "miniguide/1.0")
	v.SetDefault("geocoder.timeout", 5)
	v.SetDefault("routing.base_url", "https://router.project-osrm.org")
	v.SetDefault("routing.style", "osrm")
	v.SetDefault("routing.profile", "driving")
	v.SetDefault("routing.timeout", 10)
	v.SetDefault("tracker.device", "")
	v.SetDefault("tracker.desktop_id", "miniguide")
	v.SetDefault("tracker.accuracy", 8)
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", false)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: MINIGUIDE_ROUTING_BASE_URL → routing.base_url
	v.SetEnvPrefix("MINIGUIDE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Database.Enabled {
		if c.Database.Host == "" {
			errs = append(errs, "database.host is required")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.User == "" {
			errs = append(errs, "database.user is required")
		}
		if c.Database.DBName == "" {
			errs = append(errs, "database.dbname is required")
		}
	}
	if c.NATS.Enabled && c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}

	switch c.Cache.Driver {
	case "memory", "sqlite", "none":
	case "valkey":
		if c.Valkey.Addr == "" {
			errs = append(errs, "valkey.addr is required for cache.driver=valkey")
		}
	default:
		errs = append(errs, fmt.Sprintf("cache.driver must be memory, valkey, sqlite or none, got %q", c.Cache.Driver))
	}
	if c.Cache.Driver == "memory" && c.Cache.Size <= 0 {
		errs = append(errs, "cache.size must be positive")
	}
	if c.Cache.Driver == "sqlite" && c.Cache.SQLitePath == "" {
		errs = append(errs, "cache.sqlite_path is required for cache.driver=sqlite")
	}

	if c.Search.DebounceMS <= 0 {
		errs = append(errs, "search.debounce_ms must be positive")
	}
	if c.Search.MinQueryLength < 1 {
		errs = append(errs, "search.min_query_length must be at least 1")
	}
	if c.Search.Limit <= 0 || c.Search.Limit > 50 {
		errs = append(errs, fmt.Sprintf("search.limit must be 1-50, got %d", c.Search.Limit))
	}
	if c.Geocoder.NominatimRate <= 0 {
		errs = append(errs, "geocoder.nominatim_rate must be positive")
	}

	if c.Routing.BaseURL == "" {
		errs = append(errs, "routing.base_url is required")
	}
	if c.Routing.Style != "query" && c.Routing.Style != "osrm" {
		errs = append(errs, fmt.Sprintf("routing.style must be query or osrm, got %q", c.Routing.Style))
	}
	if c.Routing.Timeout <= 0 {
		errs = append(errs, "routing.timeout must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
