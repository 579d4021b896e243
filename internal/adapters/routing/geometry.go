package routing

import (
	"fmt"
	"trip-route-engine/internal/domain"
)

// lngLatToCoordinates converts GeoJSON [lng, lat] pairs, rejecting
// malformed or out-of-range points.
func lngLatToCoordinates(pairs [][]float64) ([]domain.Coordinates, error) {
	out := make([]domain.Coordinates, 0, len(pairs))
	for i, p := range pairs {
		if len(p) < 2 {
			return nil, fmt.Errorf("geometry point %d: expected [lng, lat], got %d values", i, len(p))
		}
		c := domain.Coordinates{Lat: p[1], Lng: p[0]}
		if !c.Valid() {
			return nil, fmt.Errorf("geometry point %d: invalid coordinate %v", i, p)
		}
		out = append(out, c)
	}
	return out, nil
}
