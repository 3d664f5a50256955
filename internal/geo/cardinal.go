package geo

import "math"

// Cardinal is one of the eight compass points, or Unknown
type Cardinal int

const (
	Unknown Cardinal = iota
	North
	NorthEast
	East
	SouthEast
	South
	SouthWest
	West
	NorthWest
)

var cardinalNames = [...]string{
	Unknown:   "unknown",
	North:     "north",
	NorthEast: "northeast",
	East:      "east",
	SouthEast: "southeast",
	South:     "south",
	SouthWest: "southwest",
	West:      "west",
	NorthWest: "northwest",
}

func (c Cardinal) String() string {
	if c < Unknown || int(c) >= len(cardinalNames) {
		return cardinalNames[Unknown]
	}
	return cardinalNames[c]
}

// CardinalOf buckets a bearing into a 45 degree sector centred on each compass
// point. Sectors include their upper bound: north is (337.5,360] plus [0,22.5],
// northeast is (22.5,67.5], and so on. Bearings that are not finite or fall
// outside [0,360] yield Unknown.
func CardinalOf(bearing float64) Cardinal {
	if math.IsNaN(bearing) || math.IsInf(bearing, 0) || bearing < 0 || bearing > 360 {
		return Unknown
	}
	if bearing > 337.5 || bearing <= 22.5 {
		return North
	}
	// (22.5,67.5] -> 1, (67.5,112.5] -> 2, ...
	sector := int(math.Ceil((bearing - 22.5) / 45))
	return Cardinal(int(North) + sector)
}
