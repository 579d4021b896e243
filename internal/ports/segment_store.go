package ports

import (
	"context"
	"trip-route-engine/internal/domain"
)

// Keyed storage for routed segments.
type SegmentStore interface {
	// Return the stored segment; ok is false on a miss.
	Get(ctx context.Context, key domain.SegmentKey) (seg domain.RouteSegment, ok bool, err error)
	// Store or overwrite a segment.
	Put(ctx context.Context, key domain.SegmentKey, seg domain.RouteSegment) error
}
