package domain

import "time"

// Point of interest near the current viewport. Fully replaced on every fetch.
type POI struct {
	ID       string  `json:"id"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Name     string  `json:"name"`
	Category string  `json:"category"`
}

// Viewport state reported when the map settles after a pan or zoom.
type Viewport struct {
	Bounds Bounds  `json:"bounds"`
	Zoom   float64 `json:"zoom"`
}

// Snapshot of the current POI set and why it looks the way it does.
type POISet struct {
	POIs      []POI     `json:"pois"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}
