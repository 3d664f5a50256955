// Package geo holds the great-circle helpers used to relate aircraft positions
// to the observer.
package geo

import (
	"math"
)

// EarthRadiusNM is the mean earth radius in nautical miles (6371 km / 1.852 km/nm)
const EarthRadiusNM = 3440.065

// Point is a latitude/longitude pair in decimal degrees
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether both coordinates are finite and in range
func (p Point) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsInf(p.Lat, 0) || math.IsNaN(p.Lon) || math.IsInf(p.Lon, 0) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

func toRadians(deg float64) float64 { return deg * math.Pi / 180 }
func toDegrees(rad float64) float64 { return rad * 180 / math.Pi }

// DistanceNM returns the great-circle distance between a and b in nautical miles
func DistanceNM(a, b Point) float64 {
	lat1, lat2 := toRadians(a.Lat), toRadians(b.Lat)
	dLat := lat2 - lat1
	dLon := toRadians(b.Lon - a.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	// Rounding can push h a hair past 1 for antipodal points
	h = math.Min(1, h)
	return 2 * EarthRadiusNM * math.Asin(math.Sqrt(h))
}

// InitialBearing returns the initial bearing from a towards b in [0,360)
func InitialBearing(a, b Point) float64 {
	lat1, lat2 := toRadians(a.Lat), toRadians(b.Lat)
	dLon := toRadians(b.Lon - a.Lon)

	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)
	bearing := toDegrees(math.Atan2(y, x))

	bearing = math.Mod(math.Mod(bearing, 360)+360, 360)
	if bearing >= 360 {
		bearing = 0
	}
	return bearing
}

// Destination projects origin along bearing (degrees) for distanceNM nautical miles
func Destination(origin Point, bearing, distanceNM float64) Point {
	lat := toRadians(origin.Lat)
	lon := toRadians(origin.Lon)
	brg := toRadians(bearing)
	ratio := distanceNM / EarthRadiusNM

	lat2 := math.Asin(math.Sin(lat)*math.Cos(ratio) + math.Cos(lat)*math.Sin(ratio)*math.Cos(brg))
	lon2 := lon + math.Atan2(
		math.Sin(brg)*math.Sin(ratio)*math.Cos(lat),
		math.Cos(ratio)-math.Sin(lat)*math.Sin(lat2),
	)

	// Normalize longitude to [-180,180)
	lonDeg := math.Mod(toDegrees(lon2)+540, 360) - 180
	return Point{Lat: toDegrees(lat2), Lon: lonDeg}
}

// Box is a latitude/longitude aligned rectangle
type Box struct {
	LowLat float64 `json:"low_lat"`
	LowLon float64 `json:"low_lon"`
	HiLat  float64 `json:"hi_lat"`
	HiLon  float64 `json:"hi_lon"`
}

// Contains reports whether p lies inside the box (edges inclusive)
func (b Box) Contains(p Point) bool {
	return p.Lat >= b.LowLat && p.Lat <= b.HiLat && p.Lon >= b.LowLon && p.Lon <= b.HiLon
}

// ObservationBox returns the rectangle enclosing a circle of radiusNM around center,
// built from projections due south, north, west and east.
func ObservationBox(center Point, radiusNM float64) Box {
	south := Destination(center, 180, radiusNM)
	north := Destination(center, 0, radiusNM)
	west := Destination(center, 270, radiusNM)
	east := Destination(center, 90, radiusNM)
	return Box{
		LowLat: south.Lat,
		LowLon: west.Lon,
		HiLat:  north.Lat,
		HiLon:  east.Lon,
	}
}
