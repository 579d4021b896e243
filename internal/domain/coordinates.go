package domain

import "math"

// Immutable geographic coordinates (WGS84 degrees).
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Return coordinates as [lng, lat] for external API compatibility.
func (c Coordinates) CoordsToList() []float64 { return []float64{c.Lng, c.Lat} }

// Valid reports whether both components are finite and inside WGS84 range.
func (c Coordinates) Valid() bool {
	if math.IsNaN(c.Lat) || math.IsInf(c.Lat, 0) || math.IsNaN(c.Lng) || math.IsInf(c.Lng, 0) {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

// Near reports whether c and o are within tol degrees on both axes.
func (c Coordinates) Near(o Coordinates, tol float64) bool {
	return math.Abs(c.Lat-o.Lat) <= tol && math.Abs(c.Lng-o.Lng) <= tol
}

// Geographic rectangle currently visible in a map viewport.
type Bounds struct {
	South float64 `json:"south"`
	West  float64 `json:"west"`
	North float64 `json:"north"`
	East  float64 `json:"east"`
}

func (b Bounds) Valid() bool {
	sw := Coordinates{Lat: b.South, Lng: b.West}
	ne := Coordinates{Lat: b.North, Lng: b.East}
	return sw.Valid() && ne.Valid() && b.South <= b.North
}
