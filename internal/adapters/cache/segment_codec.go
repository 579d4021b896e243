package cache

import (
	"encoding/json"
	"fmt"
	"trip-route-engine/internal/domain"
)

// Geometry is stored as a JSON array of [lng, lat] pairs in every backend.
func encodeGeometry(g []domain.Coordinates) (string, error) {
	pairs := make([][]float64, 0, len(g))
	for _, c := range g {
		pairs = append(pairs, c.CoordsToList())
	}
	b, err := json.Marshal(pairs)
	if err != nil {
		return "", fmt.Errorf("encode geometry: %w", err)
	}
	return string(b), nil
}

func decodeGeometry(s string) ([]domain.Coordinates, error) {
	var pairs [][]float64
	if err := json.Unmarshal([]byte(s), &pairs); err != nil {
		return nil, fmt.Errorf("decode geometry: %w", err)
	}
	out := make([]domain.Coordinates, 0, len(pairs))
	for i, p := range pairs {
		if len(p) != 2 {
			return nil, fmt.Errorf("decode geometry: point %d has %d values", i, len(p))
		}
		out = append(out, domain.Coordinates{Lat: p[1], Lng: p[0]})
	}
	return out, nil
}

func validKey(key domain.SegmentKey) error {
	if key.TripID == "" || key.From == "" || key.To == "" {
		return fmt.Errorf("segment key %q: trip, from and to must be non-empty", key.String())
	}
	return nil
}
