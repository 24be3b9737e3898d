package ionos

import (
	"fmt"
	"math"

	"github.com/KI7MT/ki7mt-hf-predict/internal/geo"
)

// =============================================================================
// Centred dipole
// =============================================================================

// WMM2025 degree-1 Gauss coefficients (nT) and their secular variation
// (nT/year).
const (
	DipoleEpoch = 2025.0
	g10Base     = -29351.8
	g11Base     = -1410.8
	h11Base     = 4545.4
	g10Dot      = 12.0
	g11Dot      = 9.7
	h11Dot      = -21.5
)

// gyroPerNanotesla is the electron gyrofrequency per unit field (MHz/nT).
const gyroPerNanotesla = 2.8e-5

// Dipole is a centred geomagnetic dipole built from the degree-1 Gauss
// coefficients. It stands in for the gridded IGRF maps when none are
// loaded.
type Dipole struct {
	axis [3]float64 // unit vector toward the north geomagnetic pole
	b0   float64    // equatorial surface field, nT
}

// NewDipole returns the dipole for a decimal year.
func NewDipole(year float64) Dipole {
	dt := year - DipoleEpoch
	g10 := g10Base + g10Dot*dt
	g11 := g11Base + g11Dot*dt
	h11 := h11Base + h11Dot*dt
	b0 := math.Sqrt(g10*g10 + g11*g11 + h11*h11)
	return Dipole{
		axis: [3]float64{-g11 / b0, -h11 / b0, -g10 / b0},
		b0:   b0,
	}
}

// Pole returns the north geomagnetic pole.
func (d Dipole) Pole() geo.Location {
	return geo.Location{
		Lat: math.Asin(d.axis[2]),
		Lng: math.Atan2(d.axis[1], d.axis[0]),
	}
}

// GeomagneticLatitude returns the dipole latitude of loc in radians.
func (d Dipole) GeomagneticLatitude(loc geo.Location) float64 {
	x := math.Cos(loc.Lat) * math.Cos(loc.Lng)
	y := math.Cos(loc.Lat) * math.Sin(loc.Lng)
	z := math.Sin(loc.Lat)
	s := x*d.axis[0] + y*d.axis[1] + z*d.axis[2]
	return math.Asin(math.Max(-1, math.Min(1, s)))
}

// Magnetic returns dip and gyrofrequency at height km above loc.
func (d Dipole) Magnetic(loc geo.Location, height float64) Magnetic {
	lm := d.GeomagneticLatitude(loc)
	scale := math.Pow(geo.EarthRadius/(geo.EarthRadius+height), 3)
	sin := math.Sin(lm)
	b := d.b0 * scale * math.Sqrt(1+3*sin*sin)
	return Magnetic{
		Dip:  math.Atan(2 * math.Tan(lm)),
		Gyro: b * gyroPerNanotesla,
	}
}

// =============================================================================
// Gridded maps
// =============================================================================

// Magnetic grids are 2.5 degree global maps. Row 0 is latitude -90, row 72
// is +90; column 0 is longitude -180, column 144 is +180.
const (
	GridStep = 2.5
	GridRows = 73
	GridCols = 145
)

// Grid is one 73 x 145 world map stored row-major.
type Grid []float64

// At returns the bilinear interpolation of the grid at loc.
func (g Grid) At(loc geo.Location) float64 {
	latDeg := loc.Lat*geo.R2D + 90
	lngDeg := geo.NormalizeLongitude(loc.Lng)*geo.R2D + 180

	r := latDeg / GridStep
	c := lngDeg / GridStep
	r0 := int(math.Floor(r))
	c0 := int(math.Floor(c))
	if r0 >= GridRows-1 {
		r0 = GridRows - 2
	}
	if r0 < 0 {
		r0 = 0
	}
	if c0 >= GridCols-1 {
		c0 = GridCols - 2
	}
	if c0 < 0 {
		c0 = 0
	}
	fr := r - float64(r0)
	fc := c - float64(c0)

	v00 := g[r0*GridCols+c0]
	v01 := g[r0*GridCols+c0+1]
	v10 := g[(r0+1)*GridCols+c0]
	v11 := g[(r0+1)*GridCols+c0+1]
	return v00*(1-fr)*(1-fc) + v01*(1-fr)*fc + v10*fr*(1-fc) + v11*fr*fc
}

// MagneticGrid holds gridded dip (degrees) and gyrofrequency (MHz) maps at
// 100 km and 300 km.
type MagneticGrid struct {
	Dip100 Grid
	Dip300 Grid
	Fh100  Grid
	Fh300  Grid
}

// Validate checks grid sizes.
func (m *MagneticGrid) Validate() error {
	for name, g := range map[string]Grid{"dip100": m.Dip100, "dip300": m.Dip300, "fh100": m.Fh100, "fh300": m.Fh300} {
		if len(g) != GridRows*GridCols {
			return fmt.Errorf("%s: %d values, want %d: %w", name, len(g), GridRows*GridCols, ErrBadCoefficientFile)
		}
	}
	return nil
}

// Magnetic returns the grid values nearest in height: the 100 km maps
// below 200 km, the 300 km maps otherwise.
func (m *MagneticGrid) Magnetic(loc geo.Location, height float64) Magnetic {
	if height < (HeightE+HeightF2)/2 {
		return Magnetic{Dip: m.Dip100.At(loc) * geo.D2R, Gyro: m.Fh100.At(loc)}
	}
	return Magnetic{Dip: m.Dip300.At(loc) * geo.D2R, Gyro: m.Fh300.At(loc)}
}
