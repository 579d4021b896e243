package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
	"trip-route-engine/internal/domain"
)

func TestLoadAppliesFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	yml := `
poi:
  base_url: https://overpass.example.org/api/interpreter
  min_zoom: 9
  debounce: 250ms
  limit: 100
fly:
  tick: 20ms
  timeout: 1s
  min_zoom_by_type:
    enroute: 13
    ferry: 10
route:
  segment_max_age: 720h
`
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("TRIP_POI_MIN_ZOOM", "10")
	t.Setenv("TRIP_HTTP_ADDR", ":9090")
	t.Setenv("TRIP_GEOCODE_MIN_INTERVAL", "1500ms")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.POI.MinZoom != 10 {
		t.Fatalf("poi.min_zoom = %v, want 10 (env wins)", cfg.POI.MinZoom)
	}
	if cfg.POI.Debounce != 250*time.Millisecond {
		t.Fatalf("poi.debounce = %v, want 250ms", cfg.POI.Debounce)
	}
	if cfg.HTTP.Addr != ":9090" {
		t.Fatalf("http.addr = %q, want :9090", cfg.HTTP.Addr)
	}
	if got := cfg.Fly.MinZoomByType[domain.StopEnroute]; got != 13 {
		t.Fatalf("min zoom enroute = %v, want 13", got)
	}
	if cfg.Route.SegmentMaxAge != 720*time.Hour {
		t.Fatalf("segment_max_age = %v, want 720h", cfg.Route.SegmentMaxAge)
	}
	if cfg.Geocode.MinInterval != 1500*time.Millisecond {
		t.Fatalf("geocode.min_interval = %v, want 1.5s", cfg.Geocode.MinInterval)
	}
	if cfg.Route.Provider != "osrm" {
		t.Fatalf("route.provider = %q, want default osrm", cfg.Route.Provider)
	}
}

func TestValidateRejectsUnknownStopType(t *testing.T) {
	cfg := Default()
	cfg.Fly.MinZoomByType = map[domain.StopType]float64{"boat": 10}

	if err := Validate(&cfg); err == nil {
		t.Fatal("expected error for unknown stop type")
	}
}

func TestValidateRequiresORSKey(t *testing.T) {
	cfg := Default()
	cfg.Route.Provider = "ors"
	cfg.Route.BaseURL = "https://api.openrouteservice.org"

	if err := Validate(&cfg); err == nil {
		t.Fatal("expected error without ORS api key")
	}

	cfg.Outbound.ORSAPIKey = "secret"
	if err := Validate(&cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateRequiresBackendSettings(t *testing.T) {
	cfg := Default()
	cfg.Store.Backend = "redis"

	if err := Validate(&cfg); err == nil {
		t.Fatal("expected error for redis backend without redis_url")
	}
}
