package ports

import "trip-route-engine/internal/domain"

// Opaque handle on the hosting map view.
type MapView interface {
	// Move to center at zoom without animation.
	SetView(center domain.Coordinates, zoom float64) error
	// Animate to center at zoom; completion is signalled via OnMoveEnd.
	FlyTo(center domain.Coordinates, zoom float64) error
	Bounds() domain.Bounds
	Zoom() float64
	// Subscribe to move-end events; the returned func unsubscribes.
	OnMoveEnd(fn func()) (unsubscribe func())
	// Re-measure the container size.
	InvalidateSize()
}
