// Package config loads engine configuration from an optional YAML file,
// a .env file and the process environment, in that order of precedence
// (environment wins).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	"trip-route-engine/internal/domain"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Log      LogConfig      `yaml:"log"`
	HTTP     HTTPConfig     `yaml:"http"`
	Geocode  GeocodeConfig  `yaml:"geocode"`
	Route    RouteConfig    `yaml:"route"`
	POI      POIConfig      `yaml:"poi"`
	Fly      FlyConfig      `yaml:"fly"`
	Store    StoreConfig    `yaml:"store"`
	Outbound OutboundConfig `yaml:"outbound"`
}

type LogConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=trace debug info warn error"`
	Pretty bool   `yaml:"pretty"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr" validate:"required"`
}

type GeocodeConfig struct {
	Provider    string `yaml:"provider" validate:"oneof=nominatim ors"`
	BaseURL     string `yaml:"base_url" validate:"required,url"`
	Concurrency int    `yaml:"concurrency" validate:"min=1,max=8"`
	CountryCode string `yaml:"country_code"`
	// Minimum spacing between requests to the provider. Public Nominatim
	// allows one request per second.
	MinInterval time.Duration `yaml:"min_interval" validate:"min=0"`
}

type RouteConfig struct {
	Provider      string        `yaml:"provider" validate:"oneof=osrm ors"`
	BaseURL       string        `yaml:"base_url" validate:"required,url"`
	Profile       string        `yaml:"profile" validate:"required"`
	Concurrency   int           `yaml:"concurrency" validate:"min=1,max=8"`
	SegmentMaxAge time.Duration `yaml:"segment_max_age" validate:"min=0"`
}

type POIConfig struct {
	BaseURL  string        `yaml:"base_url" validate:"required,url"`
	MinZoom  float64       `yaml:"min_zoom" validate:"min=0,max=22"`
	Debounce time.Duration `yaml:"debounce" validate:"min=0"`
	Limit    int           `yaml:"limit" validate:"min=1,max=2000"`
	Timeout  time.Duration `yaml:"timeout" validate:"min=0"`
}

type FlyConfig struct {
	Tick          time.Duration               `yaml:"tick" validate:"gt=0"`
	Timeout       time.Duration               `yaml:"timeout" validate:"gt=0"`
	MinZoomByType map[domain.StopType]float64 `yaml:"min_zoom_by_type"`
}

type StoreConfig struct {
	// Durable segment store backend: none, sqlite, postgres, redis.
	Backend     string `yaml:"backend" validate:"oneof=none sqlite postgres redis"`
	SqlitePath  string `yaml:"sqlite_path" validate:"required_if=Backend sqlite"`
	DatabaseURL string `yaml:"database_url" validate:"required_if=Backend postgres"`
	RedisURL    string `yaml:"redis_url" validate:"required_if=Backend redis"`
	// Persist geocode results next to segments (sqlite/postgres only).
	PersistGeocodes bool `yaml:"persist_geocodes"`
}

type OutboundConfig struct {
	Timeout     time.Duration `yaml:"timeout" validate:"gt=0"`
	MaxAttempts int           `yaml:"max_attempts" validate:"min=1,max=5"`
	Backoff     time.Duration `yaml:"backoff" validate:"gt=0"`
	UserAgent   string        `yaml:"user_agent" validate:"required"`
	ORSAPIKey   string        `yaml:"-"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Log:  LogConfig{Level: "info"},
		HTTP: HTTPConfig{Addr: ":8080"},
		Geocode: GeocodeConfig{
			Provider:    "nominatim",
			BaseURL:     "https://nominatim.openstreetmap.org",
			Concurrency: 1,
			MinInterval: time.Second,
		},
		Route: RouteConfig{
			Provider:    "osrm",
			BaseURL:     "https://router.project-osrm.org",
			Profile:     "driving",
			Concurrency: 2,
		},
		POI: POIConfig{
			BaseURL:  "https://overpass-api.de/api/interpreter",
			MinZoom:  11,
			Debounce: 400 * time.Millisecond,
			Limit:    300,
			Timeout:  25 * time.Second,
		},
		Fly: FlyConfig{
			Tick:          50 * time.Millisecond,
			Timeout:       2 * time.Second,
			MinZoomByType: map[domain.StopType]float64{domain.StopEnroute: 12},
		},
		Store: StoreConfig{Backend: "none"},
		Outbound: OutboundConfig{
			Timeout:     10 * time.Second,
			MaxAttempts: 2,
			Backoff:     300 * time.Millisecond,
			UserAgent:   "trip-route-engine/1.0",
		},
	}
}

// Load reads path (if non-empty), applies environment overrides and validates.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load config: read .env: %w", err)
	}

	cfg := Default()

	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("load config: read %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("load config: parse %q: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	return &cfg, nil
}

func Validate(cfg *Config) error {
	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return fmt.Errorf("validate: %w", err)
	}

	for t, z := range cfg.Fly.MinZoomByType {
		if !t.Valid() {
			return fmt.Errorf("validate: fly.min_zoom_by_type: unknown stop type %q", t)
		}
		if z < 0 || z > 22 {
			return fmt.Errorf("validate: fly.min_zoom_by_type[%s]: zoom %v out of range", t, z)
		}
	}

	if (cfg.Geocode.Provider == "ors" || cfg.Route.Provider == "ors") && strings.TrimSpace(cfg.Outbound.ORSAPIKey) == "" {
		return errors.New("validate: ORS_API_KEY is required when an ors provider is selected")
	}

	return nil
}

func applyEnv(cfg *Config) error {
	cfg.Log.Level = Get("TRIP_LOG_LEVEL", cfg.Log.Level)
	cfg.HTTP.Addr = Get("TRIP_HTTP_ADDR", cfg.HTTP.Addr)
	cfg.Geocode.Provider = Get("TRIP_GEOCODE_PROVIDER", cfg.Geocode.Provider)
	cfg.Geocode.BaseURL = Get("TRIP_GEOCODE_URL", cfg.Geocode.BaseURL)
	cfg.Route.Provider = Get("TRIP_ROUTE_PROVIDER", cfg.Route.Provider)
	cfg.Route.BaseURL = Get("TRIP_ROUTE_URL", cfg.Route.BaseURL)
	cfg.POI.BaseURL = Get("TRIP_OVERPASS_URL", cfg.POI.BaseURL)
	cfg.Store.Backend = Get("TRIP_STORE_BACKEND", cfg.Store.Backend)
	cfg.Store.SqlitePath = Get("TRIP_SQLITE_PATH", cfg.Store.SqlitePath)
	cfg.Store.DatabaseURL = Get("DATABASE_URL", cfg.Store.DatabaseURL)
	cfg.Store.RedisURL = Get("REDIS_URL", cfg.Store.RedisURL)
	cfg.Outbound.ORSAPIKey = Get("ORS_API_KEY", cfg.Outbound.ORSAPIKey)

	if v := os.Getenv("TRIP_SEGMENT_MAX_AGE"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse TRIP_SEGMENT_MAX_AGE %q: %w", v, err)
		}
		cfg.Route.SegmentMaxAge = d
	}

	if v := os.Getenv("TRIP_GEOCODE_MIN_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse TRIP_GEOCODE_MIN_INTERVAL %q: %w", v, err)
		}
		cfg.Geocode.MinInterval = d
	}

	if v := os.Getenv("TRIP_POI_MIN_ZOOM"); v != "" {
		z, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("parse TRIP_POI_MIN_ZOOM %q: %w", v, err)
		}
		cfg.POI.MinZoom = z
	}

	return nil
}

// Get returns the environment value for key, or fallback when unset or blank.
func Get(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
