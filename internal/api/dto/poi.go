package dto

import (
	"time"
	"trip-route-engine/internal/domain"
)

type ViewportRequest struct {
	Bounds   domain.Bounds       `json:"bounds"`
	Zoom     float64             `json:"zoom"`
	Overlays []string            `json:"overlays"`
	Subtypes map[string][]string `json:"subtypes"`
}

type POIResponse struct {
	ID       string  `json:"id"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Name     string  `json:"name"`
	Category string  `json:"category"`
}

type ListPOIsResponse struct {
	Status    string        `json:"status"`
	UpdatedAt *time.Time    `json:"updated_at"`
	POIs      []POIResponse `json:"pois"`
}

func NewListPOIsResponse(set domain.POISet) ListPOIsResponse {
	res := ListPOIsResponse{
		Status: set.Status,
		POIs:   make([]POIResponse, 0, len(set.POIs)),
	}
	if !set.UpdatedAt.IsZero() {
		t := set.UpdatedAt
		res.UpdatedAt = &t
	}
	for _, p := range set.POIs {
		res.POIs = append(res.POIs, POIResponse{
			ID:       p.ID,
			Lat:      p.Lat,
			Lng:      p.Lng,
			Name:     p.Name,
			Category: p.Category,
		})
	}
	return res
}
