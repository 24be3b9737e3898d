// Package noise computes the external radio noise budget at a receiver per
// ITU-R P.372: atmospheric, man-made and galactic noise figures with their
// upper and lower deciles, and their combination into a total.
//
// Noise figures Fa are in dB above kTB at 290 K. Deciles Du and Dl are in dB
// above and below the median.
package noise

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Version identifies the noise recommendation implemented.
const Version = "P.372-16"

// ErrUnknownCategory is returned for an unrecognised man-made noise name.
var ErrUnknownCategory = errors.New("noise: unknown man-made noise category")

// decileZ is the standard-normal quantile of the 90th percentile.
const decileZ = 1.2816

// =============================================================================
// Components
// =============================================================================

// Component is one noise source at the operating frequency.
type Component struct {
	Fa float64 // median, dB above kTB
	Du float64 // upper decile deviation, dB
	Dl float64 // lower decile deviation, dB
}

// Combine returns the combined noise of the components. The median is the
// power sum of the component medians; the deciles follow the P.372
// lognormal variance-sum method applied separately to the upper and lower
// halves of each distribution.
func Combine(parts ...Component) Component {
	if len(parts) == 0 {
		return Component{Fa: math.Inf(-1)}
	}
	var sum float64
	for _, p := range parts {
		sum += math.Pow(10, p.Fa/10)
	}
	total := Component{Fa: 10 * math.Log10(sum)}

	upper := make([]float64, len(parts))
	lower := make([]float64, len(parts))
	for i, p := range parts {
		upper[i] = p.Du
		lower[i] = p.Dl
	}
	total.Du = decileZ * combinedSigma(parts, upper)
	total.Dl = decileZ * combinedSigma(parts, lower)
	return total
}

// combinedSigma returns the standard deviation (dB) of a sum of lognormal
// powers with medians parts[i].Fa and decile deviations dec[i].
func combinedSigma(parts []Component, dec []float64) float64 {
	c := 10 / math.Ln10
	var alpha, beta float64
	for i, p := range parts {
		s := dec[i] / decileZ
		a := math.Exp(p.Fa/c + s*s/(2*c*c))
		alpha += a
		beta += a * a * (math.Exp(s*s/(c*c)) - 1)
	}
	if alpha == 0 {
		return 0
	}
	return c * math.Sqrt(math.Log(1+beta/(alpha*alpha)))
}

// =============================================================================
// Man-made noise
// =============================================================================

// Category is a P.372 man-made noise environment.
type Category int

const (
	City Category = iota
	Residential
	Rural
	QuietRural
	Noisy
	Quiet
	// Numeric means the user supplied Fam at 3 MHz directly.
	Numeric
)

var categoryNames = map[Category]string{
	City:        "CITY",
	Residential: "RESIDENTIAL",
	Rural:       "RURAL",
	QuietRural:  "QUIETRURAL",
	Noisy:       "NOISY",
	Quiet:       "QUIET",
	Numeric:     "NUMERIC",
}

func (c Category) String() string {
	if s, ok := categoryNames[c]; ok {
		return s
	}
	return fmt.Sprintf("Category(%d)", int(c))
}

// curve holds Fam = c - d*log10(f) and the decile deviations of a category.
type curve struct {
	c, d   float64
	du, dl float64
}

// NOISY and QUIET use the CITY and QUIETRURAL curves.
var curves = map[Category]curve{
	City:        {76.8, 27.7, 11.0, 6.7},
	Residential: {72.5, 27.7, 10.6, 5.3},
	Rural:       {67.2, 27.7, 9.2, 4.6},
	QuietRural:  {53.6, 28.6, 9.2, 4.6},
	Noisy:       {76.8, 27.7, 11.0, 6.7},
	Quiet:       {53.6, 28.6, 9.2, 4.6},
}

// ManMade selects the man-made noise environment at the receiver.
type ManMade struct {
	Category Category
	// At3MHz is Fam at 3 MHz, used only when Category is Numeric.
	At3MHz float64
}

// ParseManMade accepts a category name (any case) or a number giving Fam
// at 3 MHz.
func ParseManMade(s string) (ManMade, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for c, n := range categoryNames {
		if c != Numeric && n == name {
			return ManMade{Category: c}, nil
		}
	}
	v, err := strconv.ParseFloat(name, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return ManMade{}, fmt.Errorf("%q: %w", s, ErrUnknownCategory)
	}
	return ManMade{Category: Numeric, At3MHz: v}, nil
}

// Valid reports whether the category is known.
func (m ManMade) Valid() bool {
	if m.Category == Numeric {
		return !math.IsNaN(m.At3MHz) && !math.IsInf(m.At3MHz, 0)
	}
	_, ok := curves[m.Category]
	return ok
}

func (m ManMade) String() string {
	if m.Category == Numeric {
		return strconv.FormatFloat(m.At3MHz, 'f', 1, 64)
	}
	return m.Category.String()
}

// Noise returns man-made noise at f MHz. A numeric value is scaled with
// the residential slope and deciles.
func (m ManMade) Noise(f float64) Component {
	if m.Category == Numeric {
		r := curves[Residential]
		return Component{Fa: m.At3MHz - r.d*math.Log10(f/3), Du: r.du, Dl: r.dl}
	}
	k := curves[m.Category]
	return Component{Fa: k.c - k.d*math.Log10(f), Du: k.du, Dl: k.dl}
}

// =============================================================================
// Galactic noise
// =============================================================================

// Galactic returns cosmic noise at f MHz, and false when the ionosphere
// screens it (f at or below foF2 overhead).
func Galactic(f, foF2 float64) (Component, bool) {
	if f <= foF2 {
		return Component{}, false
	}
	return Component{Fa: 52.0 - 23.0*math.Log10(f), Du: 2, Dl: 2}, true
}
