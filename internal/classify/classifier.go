// Package classify decides whether a flight is worth watching and whether it
// is closing on the observer.
package classify

import (
	"github.com/yegors/overhead/internal/flight"
	"github.com/yegors/overhead/internal/geo"
)

// Observer is the fixed watch point and its thresholds
type Observer struct {
	Location             geo.Point
	InterestingRadiusNM  float64
	InterestingCeilingFt float64
	AlertRadiusNM        float64
	Announce             bool
}

// State is the classifier state of a flight after an update
type State int

const (
	// Unknown means the flight had no previous entry, so no trend can be judged
	Unknown State = iota
	// Tracked means the flight is interesting but not closing inside the alert radius
	Tracked
	// Alerting means the flight is interesting, closing, and inside the alert radius
	Alerting
	// Ignored means the flight is outside the watch radius or above the ceiling
	Ignored
)

func (s State) String() string {
	switch s {
	case Tracked:
		return "tracked"
	case Alerting:
		return "alerting"
	case Ignored:
		return "ignored"
	default:
		return "unknown"
	}
}

// Decision is the result of classifying one update
type Decision struct {
	State        State
	Interesting  bool
	DistanceNM   float64
	PrevDistance *float64
	BearingDeg   float64
}

// Classifier applies the observer thresholds to positions
type Classifier struct {
	observer Observer
}

// New creates a classifier for the given observer
func New(observer Observer) *Classifier {
	return &Classifier{observer: observer}
}

// Observer returns the observer this classifier judges against
func (c *Classifier) Observer() Observer {
	return c.observer
}

// Distance returns the distance from the observer to pos in nautical miles
func (c *Classifier) Distance(pos *flight.Position) float64 {
	return geo.DistanceNM(c.observer.Location, pos.Point)
}

// IsInteresting reports whether pos is inside the watch radius and at or below
// the ceiling. A position with no altitude passes the ceiling check.
func (c *Classifier) IsInteresting(pos *flight.Position) bool {
	if c.Distance(pos) > c.observer.InterestingRadiusNM {
		return false
	}
	if pos.Altitude != nil && *pos.Altitude > c.observer.InterestingCeilingFt {
		return false
	}
	return true
}

// IsAlert reports whether curr is interesting, strictly closer than prev, and
// within the alert radius. A nil prev never alerts.
func (c *Classifier) IsAlert(prev, curr *flight.Position) bool {
	if prev == nil || !c.IsInteresting(curr) {
		return false
	}
	dist := c.Distance(curr)
	return dist < c.Distance(prev) && dist <= c.observer.AlertRadiusNM
}

// Classify evaluates curr against the previous stored position for the same flight
func (c *Classifier) Classify(prev, curr *flight.Position) Decision {
	d := Decision{
		DistanceNM: c.Distance(curr),
		BearingDeg: geo.InitialBearing(c.observer.Location, curr.Point),
	}
	d.Interesting = c.IsInteresting(curr)
	if prev != nil {
		pd := c.Distance(prev)
		d.PrevDistance = &pd
	}

	switch {
	case !d.Interesting:
		d.State = Ignored
	case prev == nil:
		d.State = Unknown
	case c.IsAlert(prev, curr):
		d.State = Alerting
	default:
		d.State = Tracked
	}
	return d
}
