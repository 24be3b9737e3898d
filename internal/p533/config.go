package p533

import (
	"errors"
	"fmt"
	"math"

	"github.com/KI7MT/ki7mt-hf-predict/internal/antenna"
	"github.com/KI7MT/ki7mt-hf-predict/internal/band"
	"github.com/KI7MT/ki7mt-hf-predict/internal/geo"
	"github.com/KI7MT/ki7mt-hf-predict/internal/ionos"
	"github.com/KI7MT/ki7mt-hf-predict/internal/noise"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrConfigInvalid is returned for out-of-range input, a missing antenna
	// or an unknown enumeration value.
	ErrConfigInvalid = errors.New("p533: invalid configuration")

	// ErrCoefficientMissing is returned when the environment has no
	// coefficients for the requested month or sunspot number.
	ErrCoefficientMissing = ionos.ErrCoefficientMissing
)

// ConfigError names the first configuration field that failed validation.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("p533: invalid %s: %s", e.Field, e.Reason)
}

// Is makes errors.Is(err, ErrConfigInvalid) true for every ConfigError.
func (e *ConfigError) Is(target error) bool {
	return target == ErrConfigInvalid
}

func invalid(field, format string, args ...any) error {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// =============================================================================
// Enumerations
// =============================================================================

// Modulation selects the reliability method.
type Modulation int

const (
	Analog Modulation = iota
	Digital
)

func (m Modulation) String() string {
	switch m {
	case Analog:
		return "ANALOG"
	case Digital:
		return "DIGITAL"
	default:
		return fmt.Sprintf("Modulation(%d)", int(m))
	}
}

// PathKind selects the short or long great-circle route.
type PathKind int

const (
	ShortPath PathKind = iota
	LongPath
)

func (k PathKind) String() string {
	switch k {
	case ShortPath:
		return "SHORT"
	case LongPath:
		return "LONG"
	default:
		return fmt.Sprintf("PathKind(%d)", int(k))
	}
}

// =============================================================================
// PathConfig
// =============================================================================

// DigitalParams are the digital-modulation tolerances.
type DigitalParams struct {
	F0 float64 // frequency spread tolerance, Hz
	T0 float64 // time spread tolerance, ms
	A  float64 // amplitude window below the dominant mode, dB
	TW float64 // time window, ms
	FW float64 // frequency window, Hz
}

// PathConfig is the immutable input of one analysis. Angles are radians.
// Hour is the stored hour index 0-23; the model is evaluated at UTC
// Hour+1 and reports use the same Hour+1.
type PathConfig struct {
	Name  string
	Year  int
	Month int // 0-11
	Hour  int // 0-23
	SSN   float64

	TxPower   float64 // dBkW
	TxName    string
	Tx        geo.Location
	RxName    string
	Rx        geo.Location
	Frequency float64 // MHz
	Bandwidth float64 // Hz

	SNRr        float64 // required SNR, dB
	Reliability int     // required reliability percentile 1-99
	SIRr        float64 // required SIR, dB

	Modulation Modulation
	Digital    *DigitalParams // set iff Modulation is Digital

	Kind    PathKind
	ManMade noise.ManMade

	TxAntenna antenna.Descriptor
	RxAntenna antenna.Descriptor
}

// UTC returns the hour at which the model is evaluated.
func (c PathConfig) UTC() float64 {
	return float64(c.Hour + 1)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Validate returns a *ConfigError for the first invalid field.
func (c PathConfig) Validate() error {
	switch {
	case c.Year < 1900 || c.Year > 2100:
		return invalid("year", "%d outside 1900-2100", c.Year)
	case c.Month < 0 || c.Month > 11:
		return invalid("month", "%d outside 0-11", c.Month)
	case c.Hour < 0 || c.Hour > 23:
		return invalid("hour", "%d outside 0-23", c.Hour)
	case !finite(c.SSN) || c.SSN < 0 || c.SSN > ionos.MaxSSN:
		return invalid("ssn", "%.1f outside 0-%.0f", c.SSN, ionos.MaxSSN)
	case !finite(c.TxPower) || c.TxPower < -60 || c.TxPower > 60:
		return invalid("tx power", "%.2f dBkW outside -60..60", c.TxPower)
	case !c.Tx.Valid():
		return invalid("tx location", "out of range")
	case !c.Rx.Valid():
		return invalid("rx location", "out of range")
	case geo.GreatCircle(c.Tx, c.Rx) < 1:
		return invalid("rx location", "within 1 km of the transmitter")
	case !finite(c.Bandwidth) || c.Bandwidth <= 0:
		return invalid("bandwidth", "%.1f Hz must be positive", c.Bandwidth)
	case !finite(c.SNRr):
		return invalid("required snr", "not finite")
	case c.Reliability < 1 || c.Reliability > 99:
		return invalid("required reliability", "%d outside 1-99", c.Reliability)
	case !finite(c.SIRr):
		return invalid("required sir", "not finite")
	case c.Kind != ShortPath && c.Kind != LongPath:
		return invalid("path kind", "%v", c.Kind)
	case !c.ManMade.Valid():
		return invalid("man-made noise", "%v", c.ManMade)
	case c.TxAntenna.Pattern == nil:
		return invalid("tx antenna", "missing")
	case c.RxAntenna.Pattern == nil:
		return invalid("rx antenna", "missing")
	case !validOrientation(c.TxAntenna.Orientation):
		return invalid("tx antenna", "orientation %v", c.TxAntenna.Orientation)
	case !validOrientation(c.RxAntenna.Orientation):
		return invalid("rx antenna", "orientation %v", c.RxAntenna.Orientation)
	}
	if err := band.ValidateHF(c.Frequency); err != nil {
		return invalid("frequency", "%v", err)
	}
	return c.validateModulation()
}

func validOrientation(o antenna.Orientation) bool {
	return o == antenna.TX2RX || o == antenna.Manual
}

func (c PathConfig) validateModulation() error {
	switch c.Modulation {
	case Analog:
		if c.Digital != nil {
			return invalid("digital params", "set for analog modulation")
		}
		return nil
	case Digital:
		d := c.Digital
		if d == nil {
			return invalid("digital params", "missing for digital modulation")
		}
		for name, v := range map[string]float64{"F0": d.F0, "T0": d.T0, "A": d.A, "TW": d.TW, "FW": d.FW} {
			if !finite(v) || v < 0 {
				return invalid("digital params", "%s = %v", name, v)
			}
		}
		return nil
	default:
		return invalid("modulation", "%v", c.Modulation)
	}
}
