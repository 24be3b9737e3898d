// Package p533 predicts HF sky-wave circuit performance for one path,
// month, hour and frequency following ITU-R P.533.
//
// Implementation: Analyze selects control points along the great circle,
// evaluates the ionosphere at each through an ionos.Provider, runs the
// per-mode method below 9000 km and the composite long-path method from
// 7000 km, then derives noise, signal-to-noise and reliability figures.
// Thread-safety: an Analyzer holds no mutable state; Analyze may run
// concurrently when the provider and noise source are safe for concurrent
// use.
package p533

import (
	"fmt"
	"math"

	"github.com/KI7MT/ki7mt-hf-predict/internal/antenna"
	"github.com/KI7MT/ki7mt-hf-predict/internal/geo"
	"github.com/KI7MT/ki7mt-hf-predict/internal/ionos"
	"github.com/KI7MT/ki7mt-hf-predict/internal/noise"
	"github.com/KI7MT/ki7mt-hf-predict/internal/solar"
)

// FieldFloor is the field strength (dB(uV/m)) and power (dBW) reported
// when no mode carries the signal.
const FieldFloor = -200.0

// Analyzer runs path analyses against one ionospheric environment.
type Analyzer struct {
	env ionos.Provider
	atm noise.Atmospheric
}

// NewAnalyzer returns an Analyzer. A nil atm uses the analytic atmospheric
// noise model.
func NewAnalyzer(env ionos.Provider, atm noise.Atmospheric) *Analyzer {
	if atm == nil {
		atm = noise.Analytic{}
	}
	return &Analyzer{env: env, atm: atm}
}

// run carries the state of one analysis.
type run struct {
	a    *Analyzer
	cfg  PathConfig
	path geo.Path
	utc  float64
	tx   antenna.Descriptor
	rx   antenna.Descriptor
	rec  *PathRecord
}

// Analyze computes the PathRecord for cfg. It returns a *ConfigError for
// invalid input and wraps ErrCoefficientMissing when the environment
// cannot serve the month or sunspot number.
func (a *Analyzer) Analyze(cfg PathConfig) (*PathRecord, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	path := geo.NewPath(cfg.Tx, cfg.Rx, cfg.Kind == LongPath)
	r := &run{
		a:    a,
		cfg:  cfg,
		path: path,
		utc:  cfg.UTC(),
		tx:   cfg.TxAntenna.Orient(path.Azimuth),
		rx:   cfg.RxAntenna.Orient(path.Back),
		rec: &PathRecord{
			Config:     cfg,
			Distance:   path.Distance,
			Azimuth:    path.Azimuth,
			Back:       path.Back,
			Degenerate: geo.Degenerate(cfg.Tx, cfg.Rx),
			Dominant:   NoMode,
		},
	}

	if err := r.controlPoints(); err != nil {
		return nil, err
	}
	rec := r.rec
	mid := &rec.CP[MidPath]
	rec.Season = SeasonAt(cfg.Month, mid.Location.Lat)

	var short *shortResult
	if rec.Distance < ShortLimit {
		s, err := r.shortPath()
		if err != nil {
			return nil, err
		}
		short = s
	}
	var long *LongField
	if rec.Distance >= BlendStart {
		l, err := r.longPath()
		if err != nil {
			return nil, err
		}
		long = l
	}
	r.combine(short, long)

	if err := r.noise(); err != nil {
		return nil, err
	}
	r.reliability(short, long)
	return rec, nil
}

// =============================================================================
// Control points
// =============================================================================

// sample evaluates the ionosphere and sun at d km along the path.
func (r *run) sample(d float64) (ControlPoint, error) {
	loc := r.path.PointAt(d)
	cfg := r.cfg
	cp := ControlPoint{Present: true, Location: loc, Distance: d}

	m100 := r.a.env.Magnetic(loc, ionos.HeightE)
	m300 := r.a.env.Magnetic(loc, ionos.HeightF2)
	cp.Dip100, cp.Fh100 = m100.Dip, m100.Gyro
	cp.Dip300, cp.Fh300 = m300.Dip, m300.Gyro
	cp.GeoMagL = math.Atan(math.Tan(cp.Dip300) / 2)

	cp.Sun = solar.Compute(loc, cfg.Year, cfg.Month, r.utc)
	cp.FoE = ionos.FoEFromSun(loc.Lat, cp.Sun, cfg.SSN)

	var err error
	if cp.FoF2, err = r.a.env.FoF2(loc, cfg.Month, r.utc, cfg.SSN); err != nil {
		return cp, fmt.Errorf("foF2 at %.0f km: %w", d, err)
	}
	if cp.M3kF2, err = r.a.env.M3kF2(loc, cfg.Month, r.utc, cfg.SSN); err != nil {
		return cp, fmt.Errorf("M(3000)F2 at %.0f km: %w", d, err)
	}
	return cp, nil
}

// longHop returns the hop count and hop length of the long-path method.
func longHop(distance float64) (int, float64) {
	n := int(math.Ceil(distance / F2HopMax))
	return n, distance / float64(n)
}

// longPoints returns the five control points of the composite method:
// T+1000, T+dM/2, mid-path, R-dM/2 and R-1000.
func (r *run) longPoints() ([NumControlPoints]ControlPoint, error) {
	var cps [NumControlPoints]ControlPoint
	D := r.rec.Distance
	_, dM := longHop(D)
	dist := [NumControlPoints]float64{1000, dM / 2, D / 2, D - dM/2, D - 1000}
	for i, d := range dist {
		cp, err := r.sample(d)
		if err != nil {
			return cps, err
		}
		cps[i] = cp
	}
	return cps, nil
}

// controlPoints populates rec.CP. Below 9000 km the set is T+d0/2,
// mid-path and R-d0/2 where d0 is the lowest-order F2 hop; from 9000 km
// all five long-path points are used.
func (r *run) controlPoints() error {
	rec := r.rec
	D := rec.Distance

	if D >= ShortLimit {
		cps, err := r.longPoints()
		if err != nil {
			return err
		}
		rec.CP = cps
	} else {
		mid, err := r.sample(D / 2)
		if err != nil {
			return err
		}
		rec.CP[MidPath] = mid
		rec.Dmax = dmax(&mid)
		n0 := int(math.Ceil(D / rec.Dmax))
		if n0 <= MaxF2Modes {
			rec.LowestF2 = n0
		}
		d0 := D / float64(n0)
		if rec.CP[TD02], err = r.sample(d0 / 2); err != nil {
			return err
		}
		if rec.CP[RD02], err = r.sample(D - d0/2); err != nil {
			return err
		}
	}

	mid := &rec.CP[MidPath]
	if rec.Dmax == 0 {
		rec.Dmax = dmax(mid)
	}
	mid.Hr = reflectionHeight(mid.M3kF2)
	return nil
}
