package ports

import "context"

// A single geocoding hit.
type GeocodeResult struct {
	Lat         float64
	Lng         float64
	DisplayName string
}

// Contract for resolving free text into coordinates.
type GeocodingService interface {
	// Return at most limit results for text; an empty slice means no match.
	Search(ctx context.Context, text string, limit int) ([]GeocodeResult, error)
}
