package domain

// Stop as rendered: its coordinate when geocoding succeeded and the leg that
// reaches it when routing succeeded.
type AnnotatedStop struct {
	Stop
	Coord   *Coordinates   `json:"coord,omitempty"`
	Plotted bool           `json:"plotted"`
	Leg     *LegAnnotation `json:"leg,omitempty"`
}

// Everything the host needs to draw one trip.
type TripView struct {
	TripID               string          `json:"trip_id"`
	Stops                []AnnotatedStop `json:"stops"`
	Runs                 [][]Coordinates `json:"runs"`
	TotalDurationSeconds float64         `json:"total_duration_seconds"`
	TotalDistanceMeters  float64         `json:"total_distance_meters"`
}
