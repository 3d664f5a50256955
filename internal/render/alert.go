// Package render turns an alerting position into the text shown on the
// console, the words handed to the speech synthesizer, and the two lines of
// the remote display panel.
package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/yegors/overhead/internal/flight"
	"github.com/yegors/overhead/internal/geo"
)

// TrackURLFormat links an alert to the flight's live track page
const TrackURLFormat = "https://www.flightaware.com/live/flight/id/%s"

// Alert is a fully rendered alert. It is immutable once built and safe to hand
// to any number of sinks concurrently.
type Alert struct {
	Position   *flight.Position `json:"position"`
	DistanceNM float64          `json:"distance_nm"`
	BearingDeg float64          `json:"bearing_deg"`
	Direction  geo.Cardinal     `json:"-"`
	Display    string           `json:"display"`
	Script     []string         `json:"script"`
	Panel      [2]string        `json:"panel"`
	TrackURL   string           `json:"track_url"`
	RenderedAt time.Time        `json:"rendered_at"`
}

// Speech returns the phonetic script joined into a single utterance
func (a *Alert) Speech() string {
	return strings.Join(a.Script, " ")
}

// Renderer formats alerts relative to a fixed observer
type Renderer struct {
	observer  geo.Point
	callsigns *Callsigns
	now       func() time.Time
}

// NewRenderer creates a renderer. A nil callsign table selects the built-in names.
func NewRenderer(observer geo.Point, callsigns *Callsigns) *Renderer {
	if callsigns == nil {
		callsigns = NewCallsigns()
	}
	return &Renderer{observer: observer, callsigns: callsigns, now: time.Now}
}

// Render builds the alert for pos. It never fails; missing telemetry only
// drops the matching clause.
func (r *Renderer) Render(pos *flight.Position) *Alert {
	dist := geo.DistanceNM(r.observer, pos.Point)
	bearing := geo.InitialBearing(r.observer, pos.Point)
	dir := geo.CardinalOf(bearing)

	return &Alert{
		Position:   pos,
		DistanceNM: dist,
		BearingDeg: bearing,
		Direction:  dir,
		Display:    displayLine(pos, dist, dir),
		Script:     r.script(pos, dist, dir),
		Panel:      PanelLines(pos),
		TrackURL:   fmt.Sprintf(TrackURLFormat, pos.FlightID),
		RenderedAt: r.now().UTC(),
	}
}

func displayLine(pos *flight.Position, dist float64, dir geo.Cardinal) string {
	var b strings.Builder

	fmt.Fprintf(&b, "[%s] ", pos.Timestamp.UTC().Format("15:04:05"))
	b.WriteString(pos.Ident)
	if pos.AircraftType != "" {
		b.WriteString(" (" + pos.AircraftType + ")")
	}
	if pos.Origin != "" {
		b.WriteString(" from " + pos.Origin)
	}
	if pos.Destination != "" {
		b.WriteString(" to " + pos.Destination)
	}
	fmt.Fprintf(&b, " is %.1fnm to the %s", dist, dir)
	if pos.Altitude != nil {
		fmt.Fprintf(&b, " at %.0fft", *pos.Altitude)
	}

	travel := "travelling"
	if pos.Heading != nil {
		travel = geo.CardinalOf(*pos.Heading).String() + "bound"
	}
	switch {
	case pos.Speed != nil:
		fmt.Fprintf(&b, " %s at %.0fkts", travel, *pos.Speed)
	case pos.Heading != nil:
		b.WriteString(" " + travel)
	}
	return b.String()
}

func (r *Renderer) script(pos *flight.Position, dist float64, dir geo.Cardinal) []string {
	var words []string
	words = append(words, r.callsigns.IdentWords(pos.Ident)...)
	words = append(words, "is")
	words = append(words, Spell(fmt.Sprintf("%.1f", dist))...)
	words = append(words, "nautical miles", "to the", dir.String(), ",")

	if pos.Altitude != nil {
		if alt := AltitudeWords(*pos.Altitude); len(alt) > 0 {
			words = append(words, "at")
			words = append(words, alt...)
			words = append(words, ",")
		}
	}
	if pos.Heading != nil {
		words = append(words, geo.CardinalOf(*pos.Heading).String(), "bound", ",")
	}
	if pos.Speed != nil {
		words = append(words, Spell(fmt.Sprintf("%.0f", *pos.Speed))...)
		words = append(words, "knots")
	}
	return words
}

// PanelLines returns the two rows shown on the remote character display:
// "IDENT (TYPE)" and origin and destination separated by a NUL, which the
// panel draws as a custom arrow glyph.
func PanelLines(pos *flight.Position) [2]string {
	return [2]string{
		fmt.Sprintf("%s (%s)", pos.Ident, pos.AircraftType),
		pos.Origin + "\x00" + pos.Destination,
	}
}
