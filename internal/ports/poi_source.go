package ports

import (
	"context"
	"trip-route-engine/internal/domain"
)

// Category predicate for a POI query: the tag key and the accepted values.
type POIClause struct {
	Category string
	Key      string
	Values   []string
}

type POIQuery struct {
	Bounds  domain.Bounds
	Clauses []POIClause
	Limit   int
}

// Raw element returned by a POI source. Point elements carry Point; ways and
// relations may carry Center and/or their Geometry instead.
type POIElement struct {
	ID       string
	Kind     string
	Point    *domain.Coordinates
	Center   *domain.Coordinates
	Geometry []domain.Coordinates
	Tags     map[string]string
}

// Contract for bounding-box POI lookups.
type POISource interface {
	Query(ctx context.Context, q POIQuery) ([]POIElement, error)
}
