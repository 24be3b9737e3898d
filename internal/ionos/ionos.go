// Package ionos is the ionospheric environment provider.
//
// It answers the monthly-median lookups the path analysis needs at a control
// point: foF2 and M(3000)F2 from CCIR/URSI numerical maps, foE from the
// ITU-R P.1239 solar-zenith formula, and the geomagnetic dip and electron
// gyrofrequency at the E and F2 reflection heights.
//
// Coefficient files are read once when an Environment is built. After that
// an Environment holds no mutable state and may be shared by any number of
// goroutines.
package ionos

import (
	"errors"
	"fmt"
	"math"

	"github.com/KI7MT/ki7mt-hf-predict/internal/geo"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrCoefficientMissing is returned when a month or sunspot number
	// falls outside the loaded tables.
	ErrCoefficientMissing = errors.New("ionos: coefficient missing")

	// ErrBadCoefficientFile is returned when a coefficient or grid file has
	// the wrong size or holds non-finite values.
	ErrBadCoefficientFile = errors.New("ionos: bad coefficient file")
)

// =============================================================================
// Types
// =============================================================================

// Standard reflection heights (km) at which magnetic parameters are sampled.
const (
	HeightE  = 100.0
	HeightF2 = 300.0
)

// MaxSSN is the largest smoothed sunspot number accepted by the provider.
const MaxSSN = 400.0

// Magnetic is the geomagnetic field seen at one location and height.
type Magnetic struct {
	Dip  float64 // radians, positive in the northern magnetic hemisphere
	Gyro float64 // electron gyrofrequency, MHz
}

// MagneticField returns dip and gyrofrequency at a height in km.
type MagneticField interface {
	Magnetic(loc geo.Location, height float64) Magnetic
}

// Provider is the environment seen by the path analysis. month is 0-11 and
// utc is fractional hours.
type Provider interface {
	FoF2(loc geo.Location, month int, utc, ssn float64) (float64, error)
	M3kF2(loc geo.Location, month int, utc, ssn float64) (float64, error)
	FoE(loc geo.Location, month int, utc, ssn float64) (float64, error)
	Magnetic(loc geo.Location, height float64) Magnetic
}

// =============================================================================
// Environment
// =============================================================================

// Environment combines F2 maps with a magnetic field source. When no
// coefficient set is attached the analytic Model stands in for the maps.
type Environment struct {
	coeffs *CoefficientSet
	field  MagneticField
	model  Model
}

// Option configures an Environment.
type Option func(*Environment)

// WithCoefficients attaches CCIR/URSI numerical maps.
func WithCoefficients(c *CoefficientSet) Option {
	return func(e *Environment) { e.coeffs = c }
}

// WithMagneticField replaces the default dipole field.
func WithMagneticField(f MagneticField) Option {
	return func(e *Environment) {
		if f != nil {
			e.field = f
		}
	}
}

// NewEnvironment builds an environment. With no options it uses the
// analytic Model and the centred Dipole.
func NewEnvironment(opts ...Option) *Environment {
	e := &Environment{field: NewDipole(DipoleEpoch)}
	for _, opt := range opts {
		opt(e)
	}
	e.model = Model{Field: e.field}
	return e
}

// Analytic reports whether the environment runs on the analytic Model.
func (e *Environment) Analytic() bool {
	return e.coeffs == nil
}

func checkQuery(month int, ssn float64) error {
	if month < 0 || month > 11 {
		return fmt.Errorf("month %d: %w", month, ErrCoefficientMissing)
	}
	if math.IsNaN(ssn) || ssn < 0 || ssn > MaxSSN {
		return fmt.Errorf("ssn %.1f: %w", ssn, ErrCoefficientMissing)
	}
	return nil
}

// FoF2 returns the monthly median F2 critical frequency in MHz.
func (e *Environment) FoF2(loc geo.Location, month int, utc, ssn float64) (float64, error) {
	if err := checkQuery(month, ssn); err != nil {
		return 0, err
	}
	if e.coeffs == nil {
		return e.model.FoF2(loc, month, utc, ssn), nil
	}
	return e.coeffs.FoF2(loc, e.modip(loc), month, utc, ssn)
}

// M3kF2 returns the monthly median M(3000)F2 propagation factor.
func (e *Environment) M3kF2(loc geo.Location, month int, utc, ssn float64) (float64, error) {
	if err := checkQuery(month, ssn); err != nil {
		return 0, err
	}
	if e.coeffs == nil {
		return e.model.M3kF2(loc, month, utc, ssn), nil
	}
	return e.coeffs.M3kF2(loc, e.modip(loc), month, utc, ssn)
}

// FoE returns the monthly median E-layer critical frequency in MHz.
func (e *Environment) FoE(loc geo.Location, month int, utc, ssn float64) (float64, error) {
	if err := checkQuery(month, ssn); err != nil {
		return 0, err
	}
	return FoEAt(loc, month, utc, ssn), nil
}

// Magnetic returns dip and gyrofrequency at height km.
func (e *Environment) Magnetic(loc geo.Location, height float64) Magnetic {
	return e.field.Magnetic(loc, height)
}

// modip returns the modified dip latitude used by the numerical maps:
// atan(I / sqrt(cos lat)) with I the dip at the F2 height.
func (e *Environment) modip(loc geo.Location) float64 {
	return Modip(e.field.Magnetic(loc, HeightF2).Dip, loc.Lat)
}

// Modip returns the modified dip latitude for a dip angle and geographic
// latitude, both radians.
func Modip(dip, lat float64) float64 {
	c := math.Cos(lat)
	if c < 1e-9 {
		c = 1e-9
	}
	return math.Atan(dip / math.Sqrt(c))
}
