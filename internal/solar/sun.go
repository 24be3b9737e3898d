package solar

import (
	"math"
	"time"

	"github.com/KI7MT/ki7mt-hf-predict/internal/geo"
)

// =============================================================================
// Sun position
// =============================================================================

// NoEvent marks a sunrise or sunset that does not occur on the day (polar
// day or polar night). Real event times are always in [0, 24).
const NoEvent = -1.0

// refractedHorizon is the zenith angle of the sun's upper limb at the
// horizon including mean refraction (90.833 degrees).
const refractedHorizon = 90.833 * geo.D2R

// Polar classifies the day at a location.
type Polar int

const (
	// Normal days have both a sunrise and a sunset.
	Normal Polar = iota
	// PolarDay means the sun never sets.
	PolarDay
	// PolarNight means the sun never rises.
	PolarNight
)

func (p Polar) String() string {
	switch p {
	case PolarDay:
		return "polar day"
	case PolarNight:
		return "polar night"
	default:
		return "normal"
	}
}

// Sun holds the solar parameters at one location and instant. Angles are
// radians; times are fractional UTC hours unless stated otherwise.
type Sun struct {
	Declination float64 // radians
	EoT         float64 // equation of time, minutes
	HourAngle   float64 // radians in (-pi, pi], zero at local apparent noon
	Zenith      float64 // radians in [0, pi]
	Sunrise     float64 // UTC hours or NoEvent
	Noon        float64 // UTC hours
	Sunset      float64 // UTC hours or NoEvent
	LocalTime   float64 // zone clock time, hours in [0, 24)
	State       Polar
}

// Day reports whether the sun is above the geometric horizon.
func (s Sun) Day() bool {
	return s.Zenith < math.Pi/2
}

// DayOfYear returns the day of year for the middle (15th) of month, where
// month is 0-11 as stored in a path configuration.
func DayOfYear(year, month int) int {
	return time.Date(year, time.Month(month+1), 15, 0, 0, 0, 0, time.UTC).YearDay()
}

// declination returns the Spencer (1971) solar declination in radians for
// the year angle gamma.
func declination(gamma float64) float64 {
	return 0.006918 -
		0.399912*math.Cos(gamma) + 0.070257*math.Sin(gamma) -
		0.006758*math.Cos(2*gamma) + 0.000907*math.Sin(2*gamma) -
		0.002697*math.Cos(3*gamma) + 0.00148*math.Sin(3*gamma)
}

// equationOfTime returns the Spencer equation of time in minutes.
func equationOfTime(gamma float64) float64 {
	return 229.18 * (0.000075 +
		0.001868*math.Cos(gamma) - 0.032077*math.Sin(gamma) -
		0.014615*math.Cos(2*gamma) - 0.040849*math.Sin(2*gamma))
}

// fractionalYear returns the Spencer year angle for a day of year and a
// UTC hour.
func fractionalYear(year, doy int, utc float64) float64 {
	days := 365.0
	if time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC).YearDay() == 366 {
		days = 366.0
	}
	return 2 * math.Pi / days * (float64(doy-1) + (utc-12)/24)
}

// Compute returns the sun seen from loc on the 15th of month (0-11) of year
// at utc fractional hours.
//
// Thread-safety: pure function.
func Compute(loc geo.Location, year, month int, utc float64) Sun {
	gamma := fractionalYear(year, DayOfYear(year, month), utc)
	decl := declination(gamma)
	eot := equationOfTime(gamma)
	lngDeg := loc.Lng * geo.R2D

	s := Sun{Declination: decl, EoT: eot}

	// Hour angle is measured from local apparent noon, positive westward.
	ha := (utc*15 + lngDeg - 180 + eot/4) * geo.D2R
	s.HourAngle = geo.NormalizeLongitude(ha)

	cosZ := math.Sin(loc.Lat)*math.Sin(decl) + math.Cos(loc.Lat)*math.Cos(decl)*math.Cos(s.HourAngle)
	s.Zenith = math.Acos(clamp(cosZ, -1, 1))

	s.Noon = wrapHours(12 - lngDeg/15 - eot/60)
	s.LocalTime = wrapHours(utc + math.Trunc(lngDeg/15))

	s.Sunrise, s.Sunset, s.State = riseSet(loc.Lat, decl, s.Noon)
	return s
}

// riseSet finds the UTC hours at which the zenith angle crosses the
// refracted horizon.
func riseSet(lat, decl, noon float64) (rise, set float64, state Polar) {
	den := math.Cos(lat) * math.Cos(decl)
	if math.Abs(den) < 1e-12 {
		// At the pole the sun circles at a constant altitude.
		if math.Sin(lat)*math.Sin(decl) > math.Cos(refractedHorizon) {
			return NoEvent, NoEvent, PolarDay
		}
		return NoEvent, NoEvent, PolarNight
	}
	cosH := (math.Cos(refractedHorizon) - math.Sin(lat)*math.Sin(decl)) / den
	switch {
	case cosH > 1:
		return NoEvent, NoEvent, PolarNight
	case cosH < -1:
		return NoEvent, NoEvent, PolarDay
	}
	h := math.Acos(cosH) * geo.R2D / 15
	return wrapHours(noon - h), wrapHours(noon + h), Normal
}

func wrapHours(h float64) float64 {
	h = math.Mod(h, 24)
	if h < 0 {
		h += 24
	}
	if h >= 24 {
		h = 0
	}
	return h
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
