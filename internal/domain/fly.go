package domain

type FlyState string

const (
	FlyQueued   FlyState = "queued"
	FlyInFlight FlyState = "in-flight"
	FlyResolved FlyState = "resolved"
	FlyTimedOut FlyState = "timed-out"
	FlyRejected FlyState = "rejected"
)

// Request to animate the map view onto a stop.
// Zoom is optional; nil means keep the current zoom subject to the type floor.
type FlyRequest struct {
	TargetID string
	StopType StopType
	Lat      float64
	Lng      float64
	Zoom     *float64
}

// Outcome of a fly request. TimedOut marks a soft success where the
// move-end event never arrived before the deadline.
type FlyResult struct {
	OK       bool
	TargetID string
	Lat      float64
	Lng      float64
	Zoom     float64
	TimedOut bool
}
