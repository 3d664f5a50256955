package geo

import (
	"math"
	"time"

	"github.com/westphae/geomag/pkg/egm96"
	"github.com/westphae/geomag/pkg/wmm"
)

const feetToMeters = 0.3048

// MagneticVariation returns the magnetic declination in degrees (+East, -West)
// at p for the given altitude and date, using the World Magnetic Model.
// ok is false when the model cannot be evaluated (e.g. a date outside the
// model epoch).
func MagneticVariation(p Point, altFt float64, date time.Time) (decl float64, ok bool) {
	loc := egm96.NewLocationGeodetic(p.Lat, p.Lon, altFt*feetToMeters)

	mag, err := wmm.CalculateWMMMagneticField(loc, date)
	if err != nil {
		return 0, false
	}
	d := mag.D()
	if math.IsNaN(d) {
		return 0, false
	}
	return d, true
}

// MagneticToTrue converts a magnetic heading to a true heading in [0,360)
func MagneticToTrue(magHeading, declination float64) float64 {
	h := math.Mod(magHeading+declination, 360)
	if h < 0 {
		h += 360
	}
	return h
}
