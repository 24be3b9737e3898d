// Package geo provides great-circle geometry on a spherical Earth.
//
// All angles are exchanged in radians. Distances are in kilometres on a
// sphere of radius EarthRadius. Functions in this package are stateless and
// safe for concurrent use.
package geo

import (
	"math"

	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// EarthRadius is the mean Earth radius used throughout the model (km).
	EarthRadius = 6371.0

	// R2D converts radians to degrees.
	R2D = 180.0 / math.Pi

	// D2R converts degrees to radians.
	D2R = math.Pi / 180.0

	// TwoPi is a full turn in radians.
	TwoPi = 2.0 * math.Pi

	// antipodeTolerance is the separation (radians) from an exact antipode
	// below which the forward azimuth is considered undefined.
	antipodeTolerance = 1e-9
)

// =============================================================================
// Location
// =============================================================================

// Location is a point on the sphere. Lat is in [-pi/2, pi/2] and Lng in
// (-pi, pi]; negative values are south and west.
type Location struct {
	Lat float64
	Lng float64
}

// FromDegrees builds a Location from decimal degrees.
func FromDegrees(latDeg, lngDeg float64) Location {
	return Location{Lat: latDeg * D2R, Lng: NormalizeLongitude(lngDeg * D2R)}
}

// LatLng converts the location to an s2.LatLng.
func (l Location) LatLng() s2.LatLng {
	return s2.LatLng{Lat: s1.Angle(l.Lat), Lng: s1.Angle(l.Lng)}
}

// Degrees returns latitude and longitude in decimal degrees.
func (l Location) Degrees() (latDeg, lngDeg float64) {
	ll := l.LatLng()
	return ll.Lat.Degrees(), ll.Lng.Degrees()
}

// Valid reports whether the coordinates are finite and in range.
func (l Location) Valid() bool {
	if math.IsNaN(l.Lat) || math.IsNaN(l.Lng) || math.IsInf(l.Lat, 0) || math.IsInf(l.Lng, 0) {
		return false
	}
	return l.Lat >= -math.Pi/2 && l.Lat <= math.Pi/2 && l.Lng > -math.Pi-1e-12 && l.Lng <= math.Pi+1e-12
}

// NormalizeLongitude wraps a longitude into (-pi, pi].
func NormalizeLongitude(lng float64) float64 {
	lng = math.Mod(lng+math.Pi, TwoPi)
	if lng <= 0 {
		lng += TwoPi
	}
	return lng - math.Pi
}

// NormalizeAzimuth wraps an azimuth into [0, 2pi).
func NormalizeAzimuth(az float64) float64 {
	az = math.Mod(az, TwoPi)
	if az < 0 {
		az += TwoPi
	}
	if az >= TwoPi {
		az = 0
	}
	return az
}

// =============================================================================
// Great-circle operations
// =============================================================================

// GreatCircle returns the great-circle distance in km between a and b using
// the haversine formula.
func GreatCircle(a, b Location) float64 {
	return EarthRadius * CentralAngle(a, b)
}

// CentralAngle returns the angle subtended at the Earth's centre by a and b.
func CentralAngle(a, b Location) float64 {
	sdLat := math.Sin((b.Lat - a.Lat) / 2)
	sdLng := math.Sin((b.Lng - a.Lng) / 2)
	h := sdLat*sdLat + math.Cos(a.Lat)*math.Cos(b.Lat)*sdLng*sdLng
	if h > 1 {
		h = 1
	}
	if h < 0 {
		h = 0
	}
	return 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// sinCentralAngle returns |sin| of the central angle from the cross product
// of the two unit vectors, which stays accurate near 0 and near pi.
func sinCentralAngle(a, b Location) float64 {
	dLng := b.Lng - a.Lng
	y := math.Cos(b.Lat) * math.Sin(dLng)
	x := math.Cos(a.Lat)*math.Sin(b.Lat) - math.Sin(a.Lat)*math.Cos(b.Lat)*math.Cos(dLng)
	return math.Hypot(x, y)
}

// Bearing returns the forward azimuth at a toward b in [0, 2pi).
//
// Coincident and antipodal pairs have no defined azimuth; Bearing returns 0
// for them. Use Degenerate to detect the case.
func Bearing(a, b Location) float64 {
	if Degenerate(a, b) {
		return 0
	}
	dLng := b.Lng - a.Lng
	y := math.Sin(dLng) * math.Cos(b.Lat)
	x := math.Cos(a.Lat)*math.Sin(b.Lat) - math.Sin(a.Lat)*math.Cos(b.Lat)*math.Cos(dLng)
	return NormalizeAzimuth(math.Atan2(y, x))
}

// Degenerate reports whether a and b are coincident or antipodal.
func Degenerate(a, b Location) bool {
	return sinCentralAngle(a, b) < antipodeTolerance
}

// Waypoint returns the location reached by travelling distance km from a
// along the great circle with initial azimuth bearing.
func Waypoint(a Location, bearing, distance float64) Location {
	delta := distance / EarthRadius
	sinLat := math.Sin(a.Lat)*math.Cos(delta) + math.Cos(a.Lat)*math.Sin(delta)*math.Cos(bearing)
	if sinLat > 1 {
		sinLat = 1
	}
	if sinLat < -1 {
		sinLat = -1
	}
	lat := math.Asin(sinLat)
	y := math.Sin(bearing) * math.Sin(delta) * math.Cos(a.Lat)
	x := math.Cos(delta) - math.Sin(a.Lat)*sinLat
	lng := a.Lng + math.Atan2(y, x)
	return Location{Lat: lat, Lng: NormalizeLongitude(lng)}
}

// =============================================================================
// Paths
// =============================================================================

// Path describes the great-circle route from a transmitter to a receiver.
// For a long path the route leaves the transmitter on the reciprocal azimuth
// and covers the complementary arc.
type Path struct {
	Tx       Location
	Rx       Location
	Long     bool
	Distance float64 // km along the route
	Azimuth  float64 // radians at Tx
	Back     float64 // radians at Rx toward Tx along the route
}

// NewPath builds the route between tx and rx.
func NewPath(tx, rx Location, long bool) Path {
	d := GreatCircle(tx, rx)
	az := Bearing(tx, rx)
	back := Bearing(rx, tx)
	if long {
		d = math.Pi*EarthRadius*2 - d
		az = NormalizeAzimuth(az + math.Pi)
		back = NormalizeAzimuth(back + math.Pi)
	}
	return Path{Tx: tx, Rx: rx, Long: long, Distance: d, Azimuth: az, Back: back}
}

// PointAt returns the point d km from the transmitter along the route.
func (p Path) PointAt(d float64) Location {
	return Waypoint(p.Tx, p.Azimuth, d)
}

// Midpoint returns the point halfway along the route.
func (p Path) Midpoint() Location {
	return p.PointAt(p.Distance / 2)
}
