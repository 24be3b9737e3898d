package ionos

import (
	"math"

	"github.com/KI7MT/ki7mt-hf-predict/internal/geo"
	"github.com/KI7MT/ki7mt-hf-predict/internal/solar"
)

// Model is a smooth analytic climatology of foF2 and M(3000)F2 used when no
// CCIR/URSI coefficient files are configured. It follows the sun (diurnal
// and seasonal), sunspot number and geomagnetic latitude so that MUFs have
// realistic magnitudes; it is not a substitute for the numerical maps.
type Model struct {
	Field MagneticField
}

// dayWeight is 1 with the sun overhead, falling to 0 shortly after sunset.
func dayWeight(zenith float64) float64 {
	// Twilight extends the day ionosphere about 6 degrees past the horizon.
	c := math.Cos(zenith) + math.Sin(6*geo.D2R)
	if c <= 0 {
		return 0
	}
	return math.Min(1, math.Sqrt(c/(1+math.Sin(6*geo.D2R))))
}

func (m Model) geomagLat(loc geo.Location) float64 {
	if m.Field == nil {
		return loc.Lat
	}
	return math.Atan(math.Tan(m.Field.Magnetic(loc, HeightF2).Dip) / 2)
}

// FoF2 returns the model foF2 in MHz. The sunspot dependence saturates at
// R12 = 160 as the numerical maps do.
func (m Model) FoF2(loc geo.Location, month int, utc, ssn float64) float64 {
	r := math.Min(ssn, 160)
	sun := solar.Compute(loc, ClimatologyYear, month, utc)
	w := dayWeight(sun.Zenith)

	lm := m.geomagLat(loc)
	// Equatorial anomaly crests near +-15 degrees, polar trough poleward of 60.
	crest := 1 + 0.25*math.Exp(-math.Pow((math.Abs(lm)*geo.R2D-15)/10, 2))
	trough := 1 - 0.3*math.Max(0, math.Abs(lm)*geo.R2D-60)/30

	day := (5.5 + 0.05*r) * crest * trough
	night := (2.8 + 0.02*r) * trough
	return night + (day-night)*w
}

// M3kF2 returns the model M(3000)F2 factor.
func (m Model) M3kF2(loc geo.Location, month int, utc, ssn float64) float64 {
	r := math.Min(ssn, 160)
	sun := solar.Compute(loc, ClimatologyYear, month, utc)
	w := dayWeight(sun.Zenith)
	return 2.85 - 0.0015*r + 0.35*w
}
