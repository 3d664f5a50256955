package render

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/yegors/overhead/internal/flight"
	"github.com/yegors/overhead/internal/geo"
)

func TestAltitudeWords(t *testing.T) {
	tests := []struct {
		alt  float64
		want string
	}{
		{100, "one hundred"},
		{900, "niner hundred"},
		{1000, "one thousand"},
		{1100, "one thousand one hundred"},
		{4000, "four thousand"},
		{4500, "four thousand five hundred"},
		{9999, "niner thousand niner hundred"},
		{10000, "one zero thousand"},
		{11000, "one one thousand"},
		{11220, "one one thousand two hundred"},
		{50, ""},
	}
	for _, tt := range tests {
		t.Run(strconv.FormatFloat(tt.alt, 'f', 0, 64), func(t *testing.T) {
			got := strings.Join(AltitudeWords(tt.alt), " ")
			if got != tt.want {
				t.Errorf("AltitudeWords(%v) = %q, want %q", tt.alt, got, tt.want)
			}
		})
	}
}

func TestIdentWords(t *testing.T) {
	c := NewCallsigns()
	tests := []struct {
		ident string
		want  string
	}{
		{"UAL1234", "united 12 34"},
		{"FDX7123", "fedex 71 23"},
		{"FDX1", "fedex one"},
		{"FDX12", "fedex 12"},
		{"FDX123", "fedex 1 23"},
		{"FDX12345", "fedex one two three four five"},
		{"UAL12A", "united one two alpha"},
		{"N12345", "november one two three four five"},
		{"ZZZ10", "zulu zulu zulu one zero"},
		{"BAW9", "speed bird niner"},
	}
	for _, tt := range tests {
		t.Run(tt.ident, func(t *testing.T) {
			got := strings.Join(c.IdentWords(tt.ident), " ")
			if got != tt.want {
				t.Errorf("IdentWords(%q) = %q, want %q", tt.ident, got, tt.want)
			}
		})
	}
}

func TestSpell(t *testing.T) {
	got := Spell("4.5-x")
	want := []string{"four", "point", "five", "-", "x-ray"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Spell mismatch (-want +got):\n%s", diff)
	}
}

func TestCallsignsMerge(t *testing.T) {
	c := NewCallsigns()
	base := c.Len()

	added := c.Merge([]Airline{
		{ICAO: "KLM", Callsign: "KLM"},
		{ICAO: "UAL", Callsign: "UNITED AIRLINES"},
		{ICAO: "N/A", Callsign: "nobody"},
		{ICAO: "XY", Callsign: "short"},
		{ICAO: "QQQ", Callsign: ""},
	})
	if added != 1 {
		t.Errorf("added = %d, want 1", added)
	}
	if c.Len() != base+1 {
		t.Errorf("Len = %d, want %d", c.Len(), base+1)
	}
	if got := c.Lookup("KLM"); got != "klm" {
		t.Errorf("KLM = %q, want klm", got)
	}
	if got := c.Lookup("UAL"); got != "united" {
		t.Errorf("built-in UAL was overwritten: %q", got)
	}
}

func TestCallsignsLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "airlines.json")
	data := `[{"id":"1","name":"Aer Test","icao":"ATX","iata":"AT","callsign":"Testair","active":"Y"}]`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	c := NewCallsigns()
	n, err := c.LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if n != 1 {
		t.Errorf("loaded %d, want 1", n)
	}
	if got := strings.Join(c.IdentWords("ATX321"), " "); got != "testair 3 21" {
		t.Errorf("IdentWords = %q", got)
	}

	if _, err := c.LoadFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func num(v float64) *float64 { return &v }

func testPosition() *flight.Position {
	return &flight.Position{
		FlightID:     "UAL1234-1700000000-airline-0001",
		Point:        geo.Destination(geo.Point{}, 0, 3),
		Altitude:     num(4500),
		Speed:        num(210),
		Heading:      num(90),
		Ident:        "UAL1234",
		Origin:       "KSFO",
		Destination:  "KLAX",
		AircraftType: "B738",
		Timestamp:    time.Date(2024, 5, 1, 14, 3, 9, 0, time.UTC),
	}
}

func TestRenderAllFields(t *testing.T) {
	r := NewRenderer(geo.Point{}, nil)
	a := r.Render(testPosition())

	wantLine := "[14:03:09] UAL1234 (B738) from KSFO to KLAX is 3.0nm to the north at 4500ft eastbound at 210kts"
	if a.Display != wantLine {
		t.Errorf("Display =\n%q\nwant\n%q", a.Display, wantLine)
	}

	wantScript := "united 12 34 is three point zero nautical miles to the north , at four thousand five hundred , east bound , two one zero knots"
	if got := a.Speech(); got != wantScript {
		t.Errorf("Speech =\n%q\nwant\n%q", got, wantScript)
	}

	wantPanel := [2]string{"UAL1234 (B738)", "KSFO\x00KLAX"}
	if a.Panel != wantPanel {
		t.Errorf("Panel = %q, want %q", a.Panel, wantPanel)
	}
	if a.TrackURL != "https://www.flightaware.com/live/flight/id/UAL1234-1700000000-airline-0001" {
		t.Errorf("TrackURL = %q", a.TrackURL)
	}
	if a.Direction != geo.North {
		t.Errorf("Direction = %v, want north", a.Direction)
	}
}

func TestRenderMissingFields(t *testing.T) {
	r := NewRenderer(geo.Point{}, nil)

	tests := []struct {
		name       string
		mutate     func(p *flight.Position)
		wantLine   string
		wantSpeech string
	}{
		{
			name: "no telemetry",
			mutate: func(p *flight.Position) {
				p.Altitude, p.Speed, p.Heading = nil, nil, nil
				p.AircraftType, p.Destination = "", ""
			},
			wantLine:   "[14:03:09] UAL1234 from KSFO is 3.0nm to the north",
			wantSpeech: "united 12 34 is three point zero nautical miles to the north ,",
		},
		{
			name:       "speed without heading",
			mutate:     func(p *flight.Position) { p.Heading = nil },
			wantLine:   "[14:03:09] UAL1234 (B738) from KSFO to KLAX is 3.0nm to the north at 4500ft travelling at 210kts",
			wantSpeech: "united 12 34 is three point zero nautical miles to the north , at four thousand five hundred , two one zero knots",
		},
		{
			name:       "heading without speed",
			mutate:     func(p *flight.Position) { p.Speed = nil; p.Heading = num(200) },
			wantLine:   "[14:03:09] UAL1234 (B738) from KSFO to KLAX is 3.0nm to the north at 4500ft southbound",
			wantSpeech: "united 12 34 is three point zero nautical miles to the north , at four thousand five hundred , south bound ,",
		},
		{
			name:       "altitude below one hundred feet",
			mutate:     func(p *flight.Position) { p.Altitude = num(50); p.Speed, p.Heading = nil, nil },
			wantLine:   "[14:03:09] UAL1234 (B738) from KSFO to KLAX is 3.0nm to the north at 50ft",
			wantSpeech: "united 12 34 is three point zero nautical miles to the north ,",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testPosition()
			tt.mutate(p)
			a := r.Render(p)
			if a.Display != tt.wantLine {
				t.Errorf("Display =\n%q\nwant\n%q", a.Display, tt.wantLine)
			}
			if got := a.Speech(); got != tt.wantSpeech {
				t.Errorf("Speech =\n%q\nwant\n%q", got, tt.wantSpeech)
			}
		})
	}
}

func TestPanelLinesWithBlankFields(t *testing.T) {
	got := PanelLines(&flight.Position{Ident: "N12345"})
	want := [2]string{"N12345 ()", "\x00"}
	if got != want {
		t.Errorf("PanelLines = %q, want %q", got, want)
	}
}
