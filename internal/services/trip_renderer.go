package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"trip-route-engine/internal/domain"
	"trip-route-engine/internal/platform/obs"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

var ErrDuplicateStopID = errors.New("duplicate stop id")

// TripRenderer runs the stop list through the geocoder and route assembler
// and folds the results back onto the stops.
type TripRenderer struct {
	geocoder  *Geocoder
	assembler *RouteAssembler
}

func NewTripRenderer(geocoder *Geocoder, assembler *RouteAssembler) *TripRenderer {
	return &TripRenderer{geocoder: geocoder, assembler: assembler}
}

func (r *TripRenderer) Render(ctx context.Context, tripID string, stops []domain.Stop) (_ domain.TripView, err error) {
	defer obs.Time(ctx, "trip.Render")(&err)

	seen := make(map[string]struct{}, len(stops))
	for _, s := range stops {
		id := strings.TrimSpace(s.ID)
		if id == "" {
			return domain.TripView{}, fmt.Errorf("render trip %q: stop with empty id", tripID)
		}
		if _, ok := seen[id]; ok {
			return domain.TripView{}, fmt.Errorf("render trip %q: %w: %s", tripID, ErrDuplicateStopID, id)
		}
		seen[id] = struct{}{}
	}

	sorted := domain.SortStops(stops)
	plotted := r.geocoder.ResolveAll(ctx, sorted)
	route := r.assembler.Assemble(ctx, tripID, plotted)

	view := domain.TripView{
		TripID: tripID,
		Stops:  make([]domain.AnnotatedStop, 0, len(plotted)),
		Runs:   route.Runs,
	}
	if view.Runs == nil {
		view.Runs = [][]domain.Coordinates{}
	}

	for _, p := range plotted {
		as := domain.AnnotatedStop{Stop: p.Stop, Plotted: p.Resolved}
		if p.Resolved {
			c := p.Coord
			as.Coord = &c
		}
		if ann, ok := route.LegAnnotations[p.ID]; ok {
			as.Leg = &ann
			view.TotalDurationSeconds += ann.DurationSeconds
			view.TotalDistanceMeters += ann.DistanceMeters
		}
		view.Stops = append(view.Stops, as)
	}

	return view, nil
}

// TripGeoJSON renders plotted stops as Point features and the route runs as a
// single MultiLineString feature.
func TripGeoJSON(view domain.TripView) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	for _, s := range view.Stops {
		if s.Coord == nil {
			continue
		}
		f := geojson.NewFeature(orb.Point{s.Coord.Lng, s.Coord.Lat})
		f.ID = s.ID
		f.Properties["kind"] = "stop"
		f.Properties["id"] = s.ID
		f.Properties["type"] = string(s.Type)
		f.Properties["location"] = s.LocationText
		f.Properties["order"] = s.Order
		if !s.Date.IsZero() {
			f.Properties["date"] = s.Date.Format("2006-01-02")
		}
		if s.Leg != nil {
			f.Properties["leg_duration_seconds"] = s.Leg.DurationSeconds
			f.Properties["leg_distance_meters"] = s.Leg.DistanceMeters
		}
		fc.Append(f)
	}

	if len(view.Runs) > 0 {
		mls := make(orb.MultiLineString, 0, len(view.Runs))
		for _, run := range view.Runs {
			ls := make(orb.LineString, 0, len(run))
			for _, c := range run {
				ls = append(ls, orb.Point{c.Lng, c.Lat})
			}
			mls = append(mls, ls)
		}
		f := geojson.NewFeature(mls)
		f.Properties["kind"] = "route"
		f.Properties["trip_id"] = view.TripID
		f.Properties["duration_seconds"] = view.TotalDurationSeconds
		f.Properties["distance_meters"] = view.TotalDistanceMeters
		fc.Append(f)
	}

	return fc
}
