package services

import (
	"context"
	"errors"
	"testing"
	"time"
	"trip-route-engine/internal/adapters/cache"
	"trip-route-engine/internal/domain"
	"trip-route-engine/internal/ports"

	"github.com/paulmach/orb"
)

func day(d int) time.Time { return time.Date(2026, 6, d, 0, 0, 0, 0, time.UTC) }

func TestTripRendererRender(t *testing.T) {
	geo := &stubGeocoder{answers: map[string]domain.Coordinates{
		"Lyon":     pt(45.76, 4.83),
		"Annecy":   pt(45.90, 6.12),
		"Chamonix": pt(45.92, 6.87),
	}}
	router := &stubRouter{routes: map[routeCall]*ports.RouteResult{
		{from: pt(45.76, 4.83), to: pt(45.90, 6.12)}: {
			Geometry: []domain.Coordinates{pt(45.76, 4.83), pt(45.90, 6.12)},
			Legs:     []ports.RouteLeg{{DurationSeconds: 5400, DistanceMeters: 140000}},
		},
	}}
	session := cache.NewSession()
	r := NewTripRenderer(NewGeocoder(geo, session), NewRouteAssembler(router, session))

	// Declared out of order; Atlantis never resolves.
	stops := []domain.Stop{
		{ID: "s3", Date: day(3), LocationText: "Atlantis", Type: domain.StopCamp},
		{ID: "s1", Date: day(1), LocationText: "Lyon", Type: domain.StopRoofed},
		{ID: "s2", Date: day(2), LocationText: "Annecy", Type: domain.StopEnroute},
	}

	view, err := r.Render(context.Background(), "alps", stops)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(view.Stops) != 3 {
		t.Fatalf("stops = %d, want 3", len(view.Stops))
	}
	if view.Stops[0].ID != "s1" || view.Stops[1].ID != "s2" || view.Stops[2].ID != "s3" {
		t.Fatalf("order = %s %s %s", view.Stops[0].ID, view.Stops[1].ID, view.Stops[2].ID)
	}
	if view.Stops[2].Plotted || view.Stops[2].Coord != nil {
		t.Fatalf("unresolved stop plotted: %+v", view.Stops[2])
	}
	if view.Stops[0].Leg != nil {
		t.Fatalf("first stop has a leg")
	}
	if leg := view.Stops[1].Leg; leg == nil || leg.DurationSeconds != 5400 {
		t.Fatalf("leg to s2 = %+v", leg)
	}
	if view.TotalDistanceMeters != 140000 {
		t.Fatalf("total distance = %v", view.TotalDistanceMeters)
	}
	if len(view.Runs) != 1 || len(view.Runs[0]) != 2 {
		t.Fatalf("runs = %+v", view.Runs)
	}

	fc := TripGeoJSON(view)
	if len(fc.Features) != 3 {
		t.Fatalf("features = %d, want 2 stops + route", len(fc.Features))
	}
	if p, ok := fc.Features[0].Geometry.(orb.Point); !ok || p.Lon() != 4.83 || p.Lat() != 45.76 {
		t.Fatalf("first feature geometry = %#v", fc.Features[0].Geometry)
	}
	if mls, ok := fc.Features[2].Geometry.(orb.MultiLineString); !ok || len(mls) != 1 {
		t.Fatalf("route geometry = %#v", fc.Features[2].Geometry)
	}
}

func TestTripRendererRejectsDuplicateIDs(t *testing.T) {
	r := NewTripRenderer(NewGeocoder(&stubGeocoder{}, nil), NewRouteAssembler(&stubRouter{}, cache.NewSession()))

	_, err := r.Render(context.Background(), "", []domain.Stop{
		{ID: "a", LocationText: "x"},
		{ID: "a", LocationText: "y"},
	})
	if !errors.Is(err, ErrDuplicateStopID) {
		t.Fatalf("err = %v, want ErrDuplicateStopID", err)
	}
}
