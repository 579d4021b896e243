package dto

import (
	"fmt"
	"strings"
	"trip-route-engine/internal/domain"
)

type StopRequest struct {
	ID       string `json:"id"`
	Date     string `json:"date"`
	Location string `json:"location"`
	Type     string `json:"type"`
	Order    int    `json:"order"`
}

type TripRequest struct {
	Stops []StopRequest `json:"stops"`
}

// ToDomain validates the request stops and converts them.
func (r TripRequest) ToDomain() ([]domain.Stop, error) {
	stops := make([]domain.Stop, 0, len(r.Stops))
	for i, s := range r.Stops {
		id := strings.TrimSpace(s.ID)
		if id == "" {
			return nil, fmt.Errorf("stops[%d]: id is required", i)
		}

		date, err := domain.ParseStopDate(s.Date)
		if err != nil {
			return nil, fmt.Errorf("stops[%d]: %w", i, err)
		}

		t, err := domain.ParseStopType(s.Type)
		if err != nil {
			return nil, fmt.Errorf("stops[%d]: %w", i, err)
		}

		stops = append(stops, domain.Stop{
			ID:           id,
			Date:         date,
			LocationText: s.Location,
			Type:         t,
			Order:        s.Order,
		})
	}
	return stops, nil
}

type LegResponse struct {
	DurationSeconds float64 `json:"duration_seconds"`
	DistanceMeters  float64 `json:"distance_meters"`
}

type StopResponse struct {
	ID       string       `json:"id"`
	Date     string       `json:"date"`
	Location string       `json:"location"`
	Type     string       `json:"type"`
	Order    int          `json:"order"`
	Plotted  bool         `json:"plotted"`
	Lat      *float64     `json:"lat"`
	Lng      *float64     `json:"lng"`
	Leg      *LegResponse `json:"leg"`
}

type RouteResponse struct {
	TripID               string         `json:"trip_id"`
	Stops                []StopResponse `json:"stops"`
	Runs                 [][][]float64  `json:"runs"`
	TotalDurationSeconds float64        `json:"total_duration_seconds"`
	TotalDistanceMeters  float64        `json:"total_distance_meters"`
}

// NewRouteResponse flattens a trip view; run coordinates are [lng, lat] pairs.
func NewRouteResponse(v domain.TripView) RouteResponse {
	res := RouteResponse{
		TripID:               v.TripID,
		Stops:                make([]StopResponse, 0, len(v.Stops)),
		Runs:                 make([][][]float64, 0, len(v.Runs)),
		TotalDurationSeconds: v.TotalDurationSeconds,
		TotalDistanceMeters:  v.TotalDistanceMeters,
	}

	for _, s := range v.Stops {
		sr := StopResponse{
			ID:       s.ID,
			Date:     s.Date.Format("2006-01-02"),
			Location: s.LocationText,
			Type:     string(s.Type),
			Order:    s.Order,
			Plotted:  s.Plotted,
		}
		if s.Coord != nil {
			lat, lng := s.Coord.Lat, s.Coord.Lng
			sr.Lat, sr.Lng = &lat, &lng
		}
		if s.Leg != nil {
			sr.Leg = &LegResponse{DurationSeconds: s.Leg.DurationSeconds, DistanceMeters: s.Leg.DistanceMeters}
		}
		res.Stops = append(res.Stops, sr)
	}

	for _, run := range v.Runs {
		coords := make([][]float64, 0, len(run))
		for _, c := range run {
			coords = append(coords, c.CoordsToList())
		}
		res.Runs = append(res.Runs, coords)
	}

	return res
}
