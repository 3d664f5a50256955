package render

import (
	"regexp"
	"strconv"
	"strings"
)

var spoken = map[rune]string{
	'A': "alpha",
	'B': "bravo",
	'C': "charlie",
	'D': "delta",
	'E': "echo",
	'F': "foxtrot",
	'G': "golf",
	'H': "hotel",
	'I': "india",
	'J': "juliet",
	'K': "kilo",
	'L': "lima",
	'M': "mike",
	'N': "november",
	'O': "oscar",
	'P': "papa",
	'Q': "quebec",
	'R': "romeo",
	'S': "sierra",
	'T': "tango",
	'U': "uniform",
	'V': "victor",
	'W': "whiskey",
	'X': "x-ray",
	'Y': "yankee",
	'Z': "zulu",
	'0': "zero",
	'1': "one",
	'2': "two",
	'3': "three",
	'4': "four",
	'5': "five",
	'6': "six",
	'7': "seven",
	'8': "eight",
	'9': "niner",
	'.': "point",
}

var (
	airlinePrefix = regexp.MustCompile(`^[A-Z]{3}`)
	flightNumber  = regexp.MustCompile(`^[0-9]{2,4}$`)
)

// Spell returns the word-by-word spoken form of plain. Letters use the ICAO
// alphabet, digits their radiotelephony names; anything else passes through.
func Spell(plain string) []string {
	words := make([]string, 0, len(plain))
	for _, r := range strings.ToUpper(plain) {
		if word, ok := spoken[r]; ok {
			words = append(words, word)
		} else {
			words = append(words, string(r))
		}
	}
	return words
}

// IdentWords turns a callsign into words. A known three letter airline prefix
// is spoken as the airline's telephony name and a two to four digit flight
// number is grouped the way controllers say it (12, 1 23, 12 34). Anything
// else is spelled out.
func (c *Callsigns) IdentWords(ident string) []string {
	prefix := airlinePrefix.FindString(ident)
	if prefix == "" {
		return Spell(ident)
	}
	name := c.Lookup(prefix)
	if name == "" {
		return Spell(ident)
	}

	words := []string{name}
	suffix := ident[len(prefix):]
	if !flightNumber.MatchString(suffix) {
		return append(words, Spell(suffix)...)
	}
	switch len(suffix) {
	case 2:
		words = append(words, suffix)
	case 3:
		words = append(words, suffix[:1], suffix[1:])
	case 4:
		words = append(words, suffix[:2], suffix[2:])
	}
	return words
}

// AltitudeWords speaks an altitude in feet as thousands and hundreds, each
// spelled digit by digit, e.g. 11200 -> one one thousand two hundred. Parts
// that are zero are left out.
func AltitudeWords(altitude float64) []string {
	var words []string
	alt := int(altitude)
	thousands := alt / 1000
	if thousands > 0 {
		words = append(words, Spell(strconv.Itoa(thousands))...)
		words = append(words, "thousand")
	}
	hundreds := (alt - thousands*1000) / 100
	if hundreds > 0 {
		words = append(words, Spell(strconv.Itoa(hundreds))...)
		words = append(words, "hundred")
	}
	return words
}
