package ionos

import (
	"fmt"
	"math"

	"github.com/KI7MT/ki7mt-hf-predict/internal/geo"
)

// =============================================================================
// CCIR/URSI numerical maps
// =============================================================================

// Map dimensions. Each month holds two sets of coefficients, for R12 = 0 and
// R12 = 100; values are interpolated linearly in R12 and saturate at 160.
const (
	FoF2Geo    = 76 // geographic functions, foF2 map
	FoF2Time   = 13 // time harmonics, foF2 map (H = 6)
	M3000Geo   = 49
	M3000Time  = 9 // H = 4
	ssnLevels  = 2
	ssnRefHigh = 100.0
	ssnCeiling = 160.0

	// MonthValues is the number of float64 values in one month file.
	MonthValues = ssnLevels*FoF2Geo*FoF2Time + ssnLevels*M3000Geo*M3000Time
)

// Highest sin(modip) power for each longitude order m of the two maps.
var (
	fof2Orders  = []int{11, 11, 8, 4, 1, 0, 0, 0, 0}
	m3000Orders = []int{6, 7, 5, 2, 1, 0, 0}
)

// MonthMaps holds one month of coefficients laid out [ssn][k][j].
type MonthMaps struct {
	FoF2  []float64
	M3000 []float64
}

// CoefficientSet holds the twelve monthly maps. A nil entry is a month for
// which no file was loaded.
type CoefficientSet struct {
	Months [12]*MonthMaps
}

// NewMonthMaps splits a month file's values into the two maps.
func NewMonthMaps(values []float64) (*MonthMaps, error) {
	if len(values) != MonthValues {
		return nil, fmt.Errorf("%d values, want %d: %w", len(values), MonthValues, ErrBadCoefficientFile)
	}
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("value %d is not finite: %w", i, ErrBadCoefficientFile)
		}
	}
	n := ssnLevels * FoF2Geo * FoF2Time
	return &MonthMaps{FoF2: values[:n], M3000: values[n:]}, nil
}

func (c *CoefficientSet) month(month int) (*MonthMaps, error) {
	if c == nil || month < 0 || month > 11 || c.Months[month] == nil {
		return nil, fmt.Errorf("month %d not loaded: %w", month+1, ErrCoefficientMissing)
	}
	return c.Months[month], nil
}

// FoF2 evaluates the foF2 map at loc with modified dip latitude modip.
func (c *CoefficientSet) FoF2(loc geo.Location, modip float64, month int, utc, ssn float64) (float64, error) {
	mm, err := c.month(month)
	if err != nil {
		return 0, err
	}
	g := geographic(modip, loc.Lng, fof2Orders)
	v := evalMap(mm.FoF2, g, FoF2Geo, FoF2Time, utc, ssn)
	return math.Max(v, 0.1), nil
}

// M3kF2 evaluates the M(3000)F2 map.
func (c *CoefficientSet) M3kF2(loc geo.Location, modip float64, month int, utc, ssn float64) (float64, error) {
	mm, err := c.month(month)
	if err != nil {
		return 0, err
	}
	g := geographic(modip, loc.Lng, m3000Orders)
	v := evalMap(mm.M3000, g, M3000Geo, M3000Time, utc, ssn)
	return math.Max(v, 1.0), nil
}

// geographic returns the geographic function values in map order: the m = 0
// terms sin^k(x) for k = 0..q0, then for each m >= 1 and k = 0..q(m) the pair
// cos^m(x) sin^k(x) cos(m lng), cos^m(x) sin^k(x) sin(m lng).
func geographic(modip, lng float64, orders []int) []float64 {
	sx, cx := math.Sincos(modip)
	out := make([]float64, 0, 76)

	p := 1.0
	for k := 0; k <= orders[0]; k++ {
		out = append(out, p)
		p *= sx
	}
	cm := 1.0
	for m := 1; m < len(orders); m++ {
		cm *= cx
		sl, cl := math.Sincos(float64(m) * lng)
		p := cm
		for k := 0; k <= orders[m]; k++ {
			out = append(out, p*cl, p*sl)
			p *= sx
		}
	}
	return out
}

// evalMap sums the Fourier series in universal time whose coefficients are
// themselves expansions in the geographic functions, then interpolates in
// R12 between the two coefficient sets.
func evalMap(coeffs, g []float64, nGeo, nTime int, utc, ssn float64) float64 {
	t := (15*utc - 180) * geo.D2R
	harm := make([]float64, nTime)
	harm[0] = 1
	for j := 1; 2*j < nTime; j++ {
		s, c := math.Sincos(float64(j) * t)
		harm[2*j-1] = c
		harm[2*j] = s
	}

	var level [ssnLevels]float64
	for s := 0; s < ssnLevels; s++ {
		base := s * nGeo * nTime
		var sum float64
		for k := 0; k < nGeo; k++ {
			row := coeffs[base+k*nTime : base+(k+1)*nTime]
			var a float64
			for j, h := range harm {
				a += row[j] * h
			}
			sum += a * g[k]
		}
		level[s] = sum
	}

	r := math.Min(ssn, ssnCeiling)
	return level[0] + (level[1]-level[0])*r/ssnRefHigh
}
