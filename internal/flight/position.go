package flight

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/yegors/overhead/internal/geo"
)

// ErrMalformed is wrapped by every normalization failure
var ErrMalformed = errors.New("malformed position message")

// RawPositionMessage is a position report as delivered by a stream adapter.
// Numeric fields are carried as text the way the firehose feed sends them; an
// empty string means the field was not reported.
type RawPositionMessage struct {
	ID           string `json:"id"`
	Lat          string `json:"lat"`
	Lon          string `json:"lon"`
	Alt          string `json:"alt"`
	GS           string `json:"gs"`
	Heading      string `json:"heading"`
	HeadingTrue  string `json:"heading_true"`
	Orig         string `json:"orig"`
	Dest         string `json:"dest"`
	AircraftType string `json:"aircraft_type"`
	Ident        string `json:"ident"`
	Reg          string `json:"reg"`
	Clock        string `json:"clock"`
}

// Position is a normalized, immutable position report. Optional telemetry is
// nil when it was not reported.
type Position struct {
	FlightID     string    `json:"flight_id"`
	Point        geo.Point `json:"point"`
	Altitude     *float64  `json:"altitude,omitempty"` // feet
	Speed        *float64  `json:"speed,omitempty"`    // knots
	Heading      *float64  `json:"heading,omitempty"`  // degrees
	Ident        string    `json:"ident"`
	Registration string    `json:"registration,omitempty"`
	Origin       string    `json:"origin"`
	Destination  string    `json:"destination"`
	AircraftType string    `json:"aircraft_type"`
	Timestamp    time.Time `json:"timestamp"`
}

// Result is the outcome of normalizing a raw message: either a position or the
// reason it was rejected.
type Result struct {
	Position *Position
	Err      error
}

// OK reports whether normalization produced a position
func (r Result) OK() bool { return r.Err == nil && r.Position != nil }

// Normalize validates a raw message and converts it into a Position
func Normalize(msg RawPositionMessage) Result {
	pos, err := normalize(msg)
	if err != nil {
		return Result{Err: fmt.Errorf("%w: flight %q: %w", ErrMalformed, msg.ID, err)}
	}
	return Result{Position: pos}
}

func normalize(msg RawPositionMessage) (*Position, error) {
	if strings.TrimSpace(msg.ID) == "" {
		return nil, errors.New("id: missing")
	}
	lat, err := parseRequired(msg.Lat)
	if err != nil {
		return nil, fmt.Errorf("lat: %w", err)
	}
	lon, err := parseRequired(msg.Lon)
	if err != nil {
		return nil, fmt.Errorf("lon: %w", err)
	}
	point := geo.Point{Lat: lat, Lon: lon}
	if !point.Valid() {
		return nil, fmt.Errorf("lat/lon out of range: %v,%v", lat, lon)
	}

	clock, err := strconv.ParseInt(strings.TrimSpace(msg.Clock), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("clock: %w", err)
	}

	alt, err := parseOptional(msg.Alt)
	if err != nil {
		return nil, fmt.Errorf("alt: %w", err)
	}
	gs, err := parseOptional(msg.GS)
	if err != nil {
		return nil, fmt.Errorf("gs: %w", err)
	}

	// True heading wins over the generic heading field
	headingText := msg.Heading
	if strings.TrimSpace(msg.HeadingTrue) != "" {
		headingText = msg.HeadingTrue
	}
	hdg, err := parseOptional(headingText)
	if err != nil {
		return nil, fmt.Errorf("heading: %w", err)
	}

	return &Position{
		FlightID:     msg.ID,
		Point:        point,
		Altitude:     alt,
		Speed:        gs,
		Heading:      hdg,
		Ident:        strings.TrimSpace(msg.Ident),
		Registration: strings.TrimSpace(msg.Reg),
		Origin:       strings.TrimSpace(msg.Orig),
		Destination:  strings.TrimSpace(msg.Dest),
		AircraftType: strings.TrimSpace(msg.AircraftType),
		Timestamp:    time.Unix(clock, 0).UTC(),
	}, nil
}

func parseRequired(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("not finite: %q", s)
	}
	return v, nil
}

// parseOptional returns nil for empty text so a missing reading never turns into zero
func parseOptional(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v, err := parseRequired(s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
