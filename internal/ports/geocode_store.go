package ports

import (
	"context"
	"trip-route-engine/internal/domain"
)

// Persistent text -> coordinate cache layered behind the session cache.
type GeocodeStore interface {
	GetMany(ctx context.Context, keys []string) (map[string]domain.Coordinates, error)
	PutMany(ctx context.Context, results map[string]domain.Coordinates) error
}
