package domain

import (
	"fmt"
	"time"
)

// LocalTripID keys the local fallback store when no trip identity exists.
const LocalTripID = "local"

// Identifies a routed segment between two consecutive stops of a trip.
type SegmentKey struct {
	TripID string
	From   string
	To     string
}

// Local returns the key used by the session-scoped fallback store.
func (k SegmentKey) Local() SegmentKey {
	if k.TripID == "" {
		k.TripID = LocalTripID
	}
	return k
}

func (k SegmentKey) String() string {
	return fmt.Sprintf("%s:%s:%s", k.TripID, k.From, k.To)
}

// Routed path and timing between two consecutive stops.
// A segment is immutable once written; only a re-fetch overwrites it.
type RouteSegment struct {
	FromStopID         string        `json:"from"`
	ToStopID           string        `json:"to"`
	Geometry           []Coordinates `json:"geometry"`
	LegDurationSeconds float64       `json:"leg_duration_seconds"`
	LegDistanceMeters  float64       `json:"leg_distance_meters"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// Output of a route assembly pass.
//
// Runs holds contiguous stitched geometry. A pair whose segment could not be
// resolved ends the current run; the next resolved pair starts a new one.
type AssembledRoute struct {
	Runs           [][]Coordinates
	LegAnnotations map[string]LegAnnotation
}

// Path flattens all runs into a single coordinate list.
func (r AssembledRoute) Path() []Coordinates {
	n := 0
	for _, run := range r.Runs {
		n += len(run)
	}
	out := make([]Coordinates, 0, n)
	for _, run := range r.Runs {
		out = append(out, run...)
	}
	return out
}
