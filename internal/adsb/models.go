package adsb

// Snapshot is one poll of an aircraft.json style endpoint. Local tar1090 and
// readsb feeds list targets under "aircraft"; ADSBExchange-like APIs use "ac".
type Snapshot struct {
	Now      float64  `json:"now"`
	Messages int      `json:"messages"`
	Aircraft []Target `json:"aircraft"`
	AC       []Target `json:"ac"`
}

// Targets returns the targets from whichever list the source filled
func (s *Snapshot) Targets() []Target {
	if len(s.Aircraft) > 0 {
		return s.Aircraft
	}
	return s.AC
}

// Target is a single aircraft in a snapshot. Only the fields the tracker uses
// are decoded; every telemetry field keeps track of whether it was reported.
type Target struct {
	Hex          string        `json:"hex"`
	Type         string        `json:"type"`
	Flight       string        `json:"flight"`
	Registration string        `json:"r"`
	AircraftType string        `json:"t"`
	Squawk       string        `json:"squawk"`
	AltBaro      FlexibleField `json:"alt_baro"`
	AltGeom      FlexibleField `json:"alt_geom"`
	GS           FlexibleField `json:"gs"`
	Track        FlexibleField `json:"track"`
	MagHeading   FlexibleField `json:"mag_heading"`
	TrueHeading  FlexibleField `json:"true_heading"`
	Lat          FlexibleField `json:"lat"`
	Lon          FlexibleField `json:"lon"`
	SeenPos      FlexibleField `json:"seen_pos"`
	Seen         FlexibleField `json:"seen"`
}
