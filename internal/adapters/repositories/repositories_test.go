package repositories

import (
	"os"
	"path/filepath"
	"testing"
	"trip-route-engine/internal/domain"
	"trip-route-engine/internal/platform/db"
)

func TestInitSchemaIsIdempotent(t *testing.T) {
	conn, err := db.OpenSqlite(":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer conn.Close()

	for i := 0; i < 2; i++ {
		if err := InitSchema(conn); err != nil {
			t.Fatalf("InitSchema run %d: %v", i+1, err)
		}
	}

	var n int
	row := conn.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN ('route_segments', 'geocode_cache')`)
	if err := row.Scan(&n); err != nil {
		t.Fatalf("count tables: %v", err)
	}
	if n != 2 {
		t.Fatalf("tables = %d, want 2", n)
	}
}

func TestLoadTripJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trip.json")
	body := `{"trip_id":"alps-2026","stops":[
		{"id":"s1","date":"2026-07-01","location":"Grenoble","type":"roofed","order":0},
		{"id":"s2","date":"2026-07-02T09:00:00Z","location":"Col du Galibier","type":"Enroute","order":1}
	]}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write trip: %v", err)
	}

	tripID, stops, err := LoadTripJSON(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tripID != "alps-2026" {
		t.Fatalf("tripID = %q, want alps-2026", tripID)
	}
	if len(stops) != 2 {
		t.Fatalf("len(stops) = %d, want 2", len(stops))
	}
	if stops[1].Type != domain.StopEnroute {
		t.Fatalf("stops[1].Type = %q, want enroute", stops[1].Type)
	}
}

func TestLoadTripJSONRejectsDuplicateIDs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trip.json")
	body := `{"stops":[
		{"id":"s1","date":"2026-07-01","location":"A","type":"camp"},
		{"id":"s1","date":"2026-07-02","location":"B","type":"camp"}
	]}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write trip: %v", err)
	}

	if _, _, err := LoadTripJSON(path); err == nil {
		t.Fatal("expected duplicate id error")
	}
}
