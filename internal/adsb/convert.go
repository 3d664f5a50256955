package adsb

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/yegors/overhead/internal/flight"
	"github.com/yegors/overhead/internal/geo"
)

// SkipReason explains why a target produced no position message
type SkipReason string

const (
	SkipNone       SkipReason = ""
	SkipNoHex      SkipReason = "no_hex"
	SkipNoPosition SkipReason = "no_position"
	SkipOnGround   SkipReason = "on_ground"
)

// Converter turns ADS-B targets into position messages
type Converter struct {
	// CorrectMagnetic derives a true heading from mag_heading via the World
	// Magnetic Model when the feed has no true_heading
	CorrectMagnetic bool
	// IncludeGround keeps targets reporting alt_baro "ground", at 0 ft
	IncludeGround bool

	variation func(p geo.Point, altFt float64, date time.Time) (float64, bool)
}

// Convert builds the position message for t. now is the snapshot time in
// Unix seconds; the position clock is now minus the target's seen_pos age.
func (c Converter) Convert(t *Target, now float64) (flight.RawPositionMessage, SkipReason) {
	hex := strings.ToLower(strings.TrimSpace(t.Hex))
	if hex == "" {
		return flight.RawPositionMessage{}, SkipNoHex
	}
	if !t.Lat.Present() || !t.Lon.Present() {
		return flight.RawPositionMessage{}, SkipNoPosition
	}

	alt := t.AltBaro.Text()
	if t.AltBaro.IsGround() {
		if !c.IncludeGround {
			return flight.RawPositionMessage{}, SkipOnGround
		}
		alt = "0"
	}
	if alt == "" {
		alt = t.AltGeom.Text()
	}

	age := t.SeenPos.Float64()
	if !t.SeenPos.Present() {
		age = t.Seen.Float64()
	}
	clock := int64(math.Round(now - age))

	msg := flight.RawPositionMessage{
		ID:           hex,
		Lat:          t.Lat.Text(),
		Lon:          t.Lon.Text(),
		Alt:          alt,
		GS:           t.GS.Text(),
		Heading:      t.Track.Text(),
		HeadingTrue:  t.TrueHeading.Text(),
		Ident:        identOf(t, hex),
		Reg:          strings.TrimSpace(t.Registration),
		AircraftType: strings.TrimSpace(t.AircraftType),
		Clock:        strconv.FormatInt(clock, 10),
	}

	if msg.HeadingTrue == "" && c.CorrectMagnetic && t.MagHeading.Present() {
		if hdg, ok := c.trueFromMagnetic(t, clock); ok {
			msg.HeadingTrue = strconv.FormatFloat(hdg, 'f', 1, 64)
		}
	}
	return msg, SkipNone
}

func (c Converter) trueFromMagnetic(t *Target, clock int64) (float64, bool) {
	p := geo.Point{Lat: t.Lat.Float64(), Lon: t.Lon.Float64()}
	if !p.Valid() {
		return 0, false
	}
	variation := c.variation
	if variation == nil {
		variation = geo.MagneticVariation
	}
	decl, ok := variation(p, t.AltBaro.Float64(), time.Unix(clock, 0).UTC())
	if !ok {
		return 0, false
	}
	return geo.MagneticToTrue(t.MagHeading.Float64(), decl), true
}

// identOf prefers the broadcast callsign, then the registration, then the hex code
func identOf(t *Target, hex string) string {
	if ident := strings.TrimSpace(t.Flight); ident != "" {
		return strings.ToUpper(ident)
	}
	if reg := strings.TrimSpace(t.Registration); reg != "" {
		return strings.ToUpper(reg)
	}
	return strings.ToUpper(strings.TrimPrefix(hex, "~"))
}
