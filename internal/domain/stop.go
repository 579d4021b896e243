package domain

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

type StopType string

const (
	StopRoofed  StopType = "roofed"
	StopCamp    StopType = "camp"
	StopEnroute StopType = "enroute"
	StopNote    StopType = "note"
	StopFerry   StopType = "ferry"
)

func (t StopType) Valid() bool {
	switch t {
	case StopRoofed, StopCamp, StopEnroute, StopNote, StopFerry:
		return true
	}
	return false
}

// Represents a single dated entry in a trip itinerary.
// Stops are owned by the itinerary editor; the engine only reads them.
type Stop struct {
	ID           string    `json:"id"`
	Date         time.Time `json:"date"`
	LocationText string    `json:"location"`
	Type         StopType  `json:"type"`
	Order        int       `json:"order"`
}

// SortStops returns a copy of stops ordered by date, ties broken by declared order.
func SortStops(stops []Stop) []Stop {
	out := slices.Clone(stops)
	slices.SortStableFunc(out, func(a, b Stop) int {
		if c := a.Date.Compare(b.Date); c != 0 {
			return c
		}
		return a.Order - b.Order
	})
	return out
}

// A stop paired with the outcome of geocoding its location text.
// Unresolved stops stay in the list for other consumers but are never plotted.
type PlottedStop struct {
	Stop
	Coord    Coordinates
	Resolved bool
}

// Travel time and distance to reach a stop from the previous visible stop.
type LegAnnotation struct {
	DurationSeconds float64 `json:"duration_seconds"`
	DistanceMeters  float64 `json:"distance_meters"`
}

// ParseStopType accepts a stop type in any letter case.
func ParseStopType(s string) (StopType, error) {
	t := StopType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown stop type %q", s)
	}
	return t, nil
}

// ParseStopDate accepts an RFC3339 timestamp or a plain YYYY-MM-DD date.
func ParseStopDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return t, nil
}

// GeocodeKey is the cache identity of a location text: surrounding and
// repeated whitespace are insignificant, everything else is kept verbatim.
func GeocodeKey(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
