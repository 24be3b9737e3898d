package p533

import (
	"math"

	"github.com/KI7MT/ki7mt-hf-predict/internal/geo"
	"github.com/KI7MT/ki7mt-hf-predict/internal/ionos"
	"github.com/KI7MT/ki7mt-hf-predict/internal/solar"
)

// Composite-method constants.
const (
	longHeight = 300.0 // reflection height of the composite method, km
	maxGap     = 15.0  // cap on the antipodal focusing gain, dB
	lowAngle   = 8 * geo.D2R

	kW = 0.1 // weights of the upper reference frequency correction
	kX = 0.5
	kY = 0.4
)

// Ly is the long-path correction term, dB.
const Ly = 0.0

// referenceMUF returns the basic MUF for a hop of dM km at loc and utc.
func (r *run) referenceMUF(loc geo.Location, utc, dM float64) (float64, error) {
	cfg := r.cfg
	sun := solar.Compute(loc, cfg.Year, cfg.Month, utc)
	cp := ControlPoint{
		Location: loc,
		Fh300:    r.a.env.Magnetic(loc, ionos.HeightF2).Gyro,
		FoE:      ionos.FoEFromSun(loc.Lat, sun, cfg.SSN),
	}
	var err error
	if cp.FoF2, err = r.a.env.FoF2(loc, cfg.Month, utc, cfg.SSN); err != nil {
		return 0, err
	}
	if cp.M3kF2, err = r.a.env.M3kF2(loc, cfg.Month, utc, cfg.SSN); err != nil {
		return 0, err
	}
	return f2BMUF(&cp, dM), nil
}

// correction returns K for the control point cp: the ratio of the upper
// reference frequency to the basic MUF, driven by the diurnal variation of
// the MUF at that point.
func (r *run) correction(cp *ControlPoint, fd, dM float64) (float64, error) {
	noon, err := r.referenceMUF(cp.Location, cp.Sun.Noon, dM)
	if err != nil {
		return 0, err
	}
	low := noon
	for h := 0; h < 24; h++ {
		v, err := r.referenceMUF(cp.Location, float64(h), dM)
		if err != nil {
			return 0, err
		}
		low = math.Min(low, v)
	}
	if noon <= 0 || fd <= 0 {
		return 1, nil
	}
	k := 1.2 + kW*(fd/noon) + kX*(math.Cbrt(noon/fd)-1) + kY*math.Pow(low/noon, 2)
	return clamp(k, 1, 2), nil
}

// antipodalGain is the focusing gain near the antipode, dB.
func antipodalGain(distance float64) float64 {
	s := math.Abs(math.Sin(distance / r0))
	if s < 1e-9 {
		return maxGap
	}
	return clamp(10*math.Log10(distance/(r0*s)), 0, maxGap)
}

// winterAnomaly returns Aw for the mid-path latitude.
func winterAnomaly(s Season, lat float64) float64 {
	l := math.Abs(lat) * geo.R2D
	if s != Winter || l < 30 {
		return 0
	}
	return 0.1 * math.Min(1, (l-30)/30)
}

// lowerReference returns fL, the lower reference frequency in MHz, from
// the solar zenith angle where each hop crosses 90 km.
func (r *run) lowerReference(hops int, dM, elev, pPrime, fh float64, season Season) float64 {
	const h90 = 90.0
	x := groundOffset(elev, h90)
	var sum float64
	for k := 0; k < hops; k++ {
		for _, d := range []float64{float64(k)*dM + x, float64(k+1)*dM - x} {
			loc := r.path.PointAt(d)
			sun := solar.Compute(loc, r.cfg.Year, r.cfg.Month, r.utc)
			if c := math.Cos(sun.Zenith); c > 0 {
				sum += math.Sqrt(c)
			}
		}
	}
	cosI := 1 / secIncidence(elev, h90)
	v := (1 + 0.009*r.cfg.SSN) * sum / (cosI * math.Log(9.5e6/pPrime))
	aw := winterAnomaly(season, r.rec.CP[MidPath].Location.Lat)
	return math.Max(0, 5.3*math.Sqrt(v)-fh) * (aw + 1)
}

// longPath runs the composite-mode method.
func (r *run) longPath() (*LongField, error) {
	rec := r.rec
	cfg := r.cfg
	f := cfg.Frequency

	cps := rec.CP
	if rec.Distance < ShortLimit {
		var err error
		if cps, err = r.longPoints(); err != nil {
			return nil, err
		}
	}

	lf := &LongField{Ly: Ly}
	lf.Hops, lf.DM = longHop(rec.Distance)

	var fh float64
	for i := range cps {
		fh += cps[i].Fh300
	}
	lf.FH = fh / float64(len(cps))

	lf.FM = math.Inf(1)
	for i, slot := range []int{TD02, RD02} {
		cp := &cps[slot]
		lf.FD[i] = f2BMUF(cp, lf.DM)
		k, err := r.correction(cp, lf.FD[i], lf.DM)
		if err != nil {
			return nil, err
		}
		lf.K[i] = k
		lf.FM = math.Min(lf.FM, k*lf.FD[i])
	}

	elev := math.Max(elevation(lf.DM, longHeight), 0)
	pPrime := 2 * float64(lf.Hops) * slantRange(lf.DM, elev)
	lf.E0 = 139.6 - 20*math.Log10(pPrime)
	lf.Gap = antipodalGain(rec.Distance)
	lf.FL = r.lowerReference(lf.Hops, lf.DM, elev, pPrime, lf.FH, rec.Season)

	fm2 := math.Pow(lf.FM+lf.FH, 2)
	fl2 := math.Pow(lf.FL+lf.FH, 2)
	ff2 := math.Pow(f+lf.FH, 2)
	lf.F = fm2 / (fm2 + fl2) * (fl2/ff2 + ff2/fm2)

	lf.Gtl = r.tx.MeanGain(r.path.Azimuth, 0, lowAngle)
	lf.Grw = r.rx.MeanGain(r.path.Back, 0, lowAngle)
	lf.Field = lf.E0*(1-lf.F) - 36.4 + cfg.TxPower + lf.Gtl + lf.Gap - lf.Ly

	if rec.Distance >= ShortLimit {
		rec.RxElevation = elev
	}
	return lf, nil
}

// longPower returns the median received power of the composite method.
func (r *run) longPower(lf *LongField) float64 {
	f := r.cfg.Frequency
	return lf.Field + lf.Grw - 20*math.Log10(f) - 107.2
}
