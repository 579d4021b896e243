package ports

import (
	"context"
	"trip-route-engine/internal/domain"
)

// Travel time and distance of a routing leg.
type RouteLeg struct {
	DurationSeconds float64
	DistanceMeters  float64
}

// Routed path between two points.
type RouteResult struct {
	Geometry        []domain.Coordinates
	Legs            []RouteLeg
	DurationSeconds float64
	DistanceMeters  float64
}

// Contract for two-point routing. A nil result with a nil error means the
// service answered but found no route.
type RoutingService interface {
	Route(ctx context.Context, from, to domain.Coordinates) (*RouteResult, error)
}
