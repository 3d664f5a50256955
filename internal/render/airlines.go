package render

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
)

// builtinCallsigns are hand-tuned telephony names that read well through a
// speech synthesizer. They take precedence over anything loaded from a file.
var builtinCallsigns = map[string]string{
	"UAL": "united",
	"FDX": "fedex",
	"DAL": "delta",
	"KAP": "cair",
	"NKS": "spirit",
	"RPA": "brickyard",
	"ACA": "air canada",
	"POE": "porter",
	"SWA": "southwest",
	"JBU": "jet blue",
	"EIN": "shamrock",
	"AAL": "american",
	"ASA": "alaska",
	"FFT": "frontier flight",
	"JAL": "japan air",
	"JZA": "jazz",
	"AFR": "air france",
	"FPY": "player",
	"WUP": "up jet",
	"BAW": "speed bird",
	"VJA": "vista am",
}

// Airline is one entry of an OpenFlights style airlines.json file
type Airline struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Alias    string `json:"alias"`
	IATA     string `json:"iata"`
	ICAO     string `json:"icao"`
	Callsign string `json:"callsign"`
	Country  string `json:"country"`
	Active   string `json:"active"`
}

// Callsigns maps three letter ICAO airline designators to spoken telephony names
type Callsigns struct {
	mu    sync.RWMutex
	names map[string]string
}

// NewCallsigns returns a table holding the built-in names
func NewCallsigns() *Callsigns {
	c := &Callsigns{names: make(map[string]string, len(builtinCallsigns))}
	for k, v := range builtinCallsigns {
		c.names[k] = v
	}
	return c
}

// Lookup returns the spoken name for an ICAO designator, or "" when unknown
func (c *Callsigns) Lookup(icao string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.names[icao]
}

// Len returns the number of known designators
func (c *Callsigns) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.names)
}

// Merge adds airlines that have an ICAO designator and a callsign. Built-in
// names are never overwritten. It returns the number of entries added.
func (c *Callsigns) Merge(airlines []Airline) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	added := 0
	for _, a := range airlines {
		icao := strings.ToUpper(strings.TrimSpace(a.ICAO))
		callsign := strings.ToLower(strings.TrimSpace(a.Callsign))
		if len(icao) != 3 || icao == "N/A" || callsign == "" {
			continue
		}
		if _, builtin := builtinCallsigns[icao]; builtin {
			continue
		}
		if _, exists := c.names[icao]; !exists {
			added++
		}
		c.names[icao] = callsign
	}
	return added
}

// LoadFile merges the airlines listed in a JSON file
func (c *Callsigns) LoadFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read airline db: %w", err)
	}
	var airlines []Airline
	if err := json.Unmarshal(data, &airlines); err != nil {
		return 0, fmt.Errorf("parse airline db %s: %w", path, err)
	}
	return c.Merge(airlines), nil
}
