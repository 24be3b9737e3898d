package p533

import (
	"math"

	"github.com/KI7MT/ki7mt-hf-predict/internal/geo"
)

// Path-length regimes and hop limits, km.
const (
	BlendStart = 7000.0 // long-path method starts
	ShortLimit = 9000.0 // per-mode method stops
	EPathMax   = 4000.0 // E modes are considered up to this distance
	EHopMax    = 2000.0
	F2HopMax   = 4000.0 // cap on dmax and the long-path hop length
	F2HopMin   = 2500.0 // floor on dmax

	HeightEReflect = 110.0 // E-mode reflection height
	HeightMaxF2    = 500.0 // cap on the F2 reflection height
)

const r0 = geo.EarthRadius

// =============================================================================
// Hop geometry
// =============================================================================

// elevation returns the ray elevation angle for a hop of d km reflected at
// height h km. Hops too long for the height give a negative angle.
func elevation(d, h float64) float64 {
	theta := d / (2 * r0)
	return math.Atan((math.Cos(theta) - r0/(r0+h)) / math.Sin(theta))
}

// slantRange returns the ground-to-reflection distance of half a hop.
func slantRange(d, elev float64) float64 {
	theta := d / (2 * r0)
	return r0 * math.Sin(theta) / math.Cos(elev+theta)
}

// secIncidence returns sec(i) for a ray of elevation elev at height h.
func secIncidence(elev, h float64) float64 {
	s := r0 * math.Cos(elev) / (r0 + h)
	return 1 / math.Sqrt(math.Max(1-s*s, 1e-6))
}

// groundOffset returns the ground distance from a hop end to the point
// where the ray crosses height h.
func groundOffset(elev, h float64) float64 {
	return r0 * (math.Acos(r0*math.Cos(elev)/(r0+h)) - elev)
}

// reflectionHeight returns the F2 mirror height from M(3000)F2.
func reflectionHeight(m3k float64) float64 {
	return math.Min(HeightMaxF2, 1490/m3k-176)
}

// =============================================================================
// Basic MUF
// =============================================================================

func bParam(m3k, x float64) float64 {
	return m3k - 0.124 + (m3k*m3k-4)*(0.0215+0.005*math.Sin(7.854/x-1.9635))
}

func ratioX(foF2, foE float64) float64 {
	if foE <= 0 {
		return 2
	}
	return math.Max(2, foF2/foE)
}

// dmax returns the maximum F2 hop length at a control point, km.
func dmax(cp *ControlPoint) float64 {
	x := ratioX(cp.FoF2, cp.FoE)
	b := bParam(cp.M3kF2, x)
	x2 := x * x
	d := 4780 + (12610+2140/x2-49720/(x2*x2)+688900/(x2*x2*x2))*(1/b-0.303)
	return clamp(d, F2HopMin, F2HopMax)
}

func cd(d, dm float64) float64 {
	z := 1 - 2*d/dm
	return 0.74 - 0.591*z - 0.424*z*z - 0.09*z*z*z + 0.088*z*z*z*z +
		0.181*z*z*z*z*z + 0.096*z*z*z*z*z*z
}

// f2BMUF returns the F2 basic MUF for a hop of d km at a control point.
func f2BMUF(cp *ControlPoint, d float64) float64 {
	dm := dmax(cp)
	d = math.Min(d, dm)
	b := bParam(cp.M3kF2, ratioX(cp.FoF2, cp.FoE))
	c3000 := cd(3000, dm)
	return (1+cd(d, dm)/c3000*(b-1))*cp.FoF2 + cp.Fh300/2*(1-d/dm)
}

// eBMUF returns the E basic MUF for a hop of d km.
func eBMUF(foE, d float64) float64 {
	return foE * secIncidence(elevation(d, HeightEReflect), HeightEReflect)
}

// =============================================================================
// MUF variability
// =============================================================================

type deciles struct{ lower, upper float64 }

// F2 MUF decile ratios to the median by season, then day and night.
var f2Deciles = [3][2]deciles{
	Winter:  {{0.86, 1.14}, {0.80, 1.22}},
	Equinox: {{0.88, 1.12}, {0.82, 1.18}},
	Summer:  {{0.90, 1.10}, {0.85, 1.15}},
}

var eDeciles = deciles{0.95, 1.05}

// Operational to basic MUF ratio for F2 modes by season, then day and night.
var opFactors = [3][2]float64{
	Winter:  {1.20, 1.30},
	Equinox: {1.15, 1.25},
	Summer:  {1.10, 1.20},
}

func f2Variability(s Season, day bool, geomag float64) deciles {
	v := f2Deciles[s][dayIndex(day)]
	if math.Abs(geomag) >= 60*geo.D2R {
		v.lower -= 0.03
		v.upper += 0.03
	}
	return v
}

func opFactor(s Season, day bool, distance float64) float64 {
	f := opFactors[s][dayIndex(day)]
	if !day && distance > F2HopMax {
		f += 0.05
	}
	return math.Min(f, 1.35)
}

func dayIndex(day bool) int {
	if day {
		return 0
	}
	return 1
}

// setMUFs fills the MUF deciles of a mode from its basic MUF.
func setMUFs(m *ModeRecord, bmuf float64, v deciles, op float64) {
	m.BMUF = bmuf
	m.MUF50 = bmuf
	m.MUF10 = bmuf * v.upper
	m.MUF90 = bmuf * v.lower
	m.OPMUF = bmuf * op
	m.OPMUF10 = m.OPMUF * v.upper
	m.OPMUF90 = m.OPMUF * v.lower
}
