package adsb

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// FlexibleField can hold either a string or a number, and remembers whether
// the feed reported it at all
type FlexibleField struct {
	value any
	set   bool
}

// UnmarshalJSON implements custom JSON unmarshaling for FlexibleField. A JSON
// null leaves the field unset.
func (f *FlexibleField) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}

	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		f.value, f.set = num, true
		return nil
	}

	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		f.value, f.set = str, true
		return nil
	}

	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		f.value, f.set = b, true
		return nil
	}

	return fmt.Errorf("cannot unmarshal %s into FlexibleField", data)
}

// Present reports whether the field carried a value
func (f *FlexibleField) Present() bool {
	if !f.set {
		return false
	}
	if s, ok := f.value.(string); ok {
		return strings.TrimSpace(s) != ""
	}
	return true
}

// IsGround reports the tar1090 "ground" marker used in place of an altitude
func (f *FlexibleField) IsGround() bool {
	s, ok := f.value.(string)
	return ok && strings.EqualFold(strings.TrimSpace(s), "ground")
}

// Float64 returns the value as a float64, or 0 when it is absent or not numeric
func (f *FlexibleField) Float64() float64 {
	switch v := f.value.(type) {
	case float64:
		return v
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0
		}
		return parsed
	default:
		return 0
	}
}

// Text returns the value in the text form position messages carry. An absent
// field yields "". Strings pass through untouched so a garbled value is
// rejected downstream instead of silently becoming zero.
func (f *FlexibleField) Text() string {
	if !f.Present() {
		return ""
	}
	switch v := f.value.(type) {
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case string:
		return strings.TrimSpace(v)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}
