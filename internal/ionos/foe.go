package ionos

import (
	"math"

	"github.com/KI7MT/ki7mt-hf-predict/internal/geo"
	"github.com/KI7MT/ki7mt-hf-predict/internal/solar"
)

// ClimatologyYear is the non-leap year used when a monthly-median lookup
// needs a sun position but carries no year of its own.
const ClimatologyYear = 2001

// Flux converts a 12-month smoothed sunspot number to the 10.7 cm solar
// flux (sfu).
func Flux(ssn float64) float64 {
	return 63.7 + 0.728*ssn + 0.00089*ssn*ssn
}

// FoEAt returns foE in MHz at loc for the 15th of month at utc hours.
func FoEAt(loc geo.Location, month int, utc, ssn float64) float64 {
	return FoEFromSun(loc.Lat, solar.Compute(loc, ClimatologyYear, month, utc), ssn)
}

// FoEFromSun returns the monthly median foE in MHz per ITU-R P.1239 for a
// geographic latitude (radians) and the sun seen from it.
//
// foE^4 = A*B*C*D, never below the night-time floor 0.004*(1+0.021*Phi)^2.
func FoEFromSun(lat float64, sun solar.Sun, ssn float64) float64 {
	phi := Flux(ssn)
	latDeg := math.Abs(lat * geo.R2D)

	a := 1 + 0.0094*(phi-66)

	n := math.Abs(lat-sun.Declination) * geo.R2D
	if n > 80 {
		n = 80
	}
	var m, x, y float64
	if latDeg < 32 {
		m = -1.93 + 1.92*math.Cos(lat)
		x, y = 23, 116
	} else {
		m = 0.11 - 0.49*math.Cos(lat)
		x, y = 92, 35
	}
	b := math.Pow(math.Cos(n*geo.D2R), m)
	c := x + y*math.Cos(lat)

	p := 1.20
	if latDeg <= 12 {
		p = 1.31
	}
	chi := sun.Zenith * geo.R2D
	var d float64
	switch {
	case chi <= 73:
		d = math.Pow(math.Cos(chi*geo.D2R), p)
	case chi < 90:
		dc := 6.27e-13 * math.Pow(chi-50, 8)
		d = math.Pow(math.Cos((chi-dc)*geo.D2R), p)
	default:
		d = math.Pow(0.072, p) * math.Exp(25.2-0.28*chi)
	}

	foe4 := a * b * c * d
	floor := 0.004 * math.Pow(1+0.021*phi, 2)
	if foe4 < floor {
		foe4 = floor
	}
	return math.Pow(foe4, 0.25)
}

// FoENight returns the night-time floor of foE in MHz.
func FoENight(ssn float64) float64 {
	return math.Pow(0.004*math.Pow(1+0.021*Flux(ssn), 2), 0.25)
}
