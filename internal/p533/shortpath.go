package p533

import (
	"math"

	"github.com/KI7MT/ki7mt-hf-predict/internal/geo"
	"github.com/KI7MT/ki7mt-hf-predict/internal/ionos"
	"github.com/KI7MT/ki7mt-hf-predict/internal/solar"
)

// Lz is the loss term not otherwise included in the per-mode method, dB.
const Lz = 8.72

// maxAboveMUF caps the above-MUF loss, dB.
const maxAboveMUF = 150.0

// velocity of light, km/s
const lightKmPerSec = 299792.458

// shortResult summarises the per-mode method.
type shortResult struct {
	field ShortField
	pr    float64
	any   bool // at least one mode present
}

// absorption holds the path terms of the non-deviative absorption.
type absorption struct {
	factor float64 // mean of ATnoon * F(chi) / F(chi_noon)
	fl     float64 // mean longitudinal gyrofrequency at 100 km, MHz
}

// chiFactor is F(chi), the diurnal variation of absorption.
func chiFactor(chi float64) float64 {
	c := math.Cos(0.881 * chi)
	if c <= 0 {
		return 0.02
	}
	return math.Max(math.Pow(c, 1.2), 0.02)
}

// noonAbsorption is ATnoon in dB MHz^2 for the sun's noon zenith angle.
func noonAbsorption(noonZenith float64) float64 {
	c := math.Cos(noonZenith)
	if c <= 0 {
		return 60
	}
	return 60 + 200*math.Pow(c, 1.5)
}

// phiN is the absorption factor for the ratio of the equivalent vertical
// frequency to foE.
func phiN(x float64) float64 {
	if x <= 1 {
		return 0.3 + 0.9*x*x
	}
	return 1 + 0.2/(x*x)
}

// absorptionPoints returns the distances along the path where absorption
// is sampled.
func (r *run) absorptionPoints() []float64 {
	D := r.rec.Distance
	switch {
	case D <= EHopMax:
		return []float64{D / 2}
	case D <= EPathMax:
		return []float64{1000, D - 1000}
	default:
		return []float64{1000, r.rec.CP[TD02].Distance, D / 2, r.rec.CP[RD02].Distance, D - 1000}
	}
}

func (r *run) absorption() absorption {
	var ab absorption
	points := r.absorptionPoints()
	for _, d := range points {
		loc := r.path.PointAt(d)
		sun := solar.Compute(loc, r.cfg.Year, r.cfg.Month, r.utc)
		noon := math.Abs(loc.Lat - sun.Declination)
		ab.factor += noonAbsorption(noon) * chiFactor(sun.Zenith) / chiFactor(noon)
		m := r.a.env.Magnetic(loc, ionos.HeightE)
		ab.fl += m.Gyro * math.Abs(math.Sin(m.Dip))
	}
	n := float64(len(points))
	ab.factor /= n
	ab.fl /= n
	return ab
}

// auroralLoss is the excess loss at high geomagnetic latitude, dB.
func auroralLoss(cp *ControlPoint, s Season) float64 {
	gm := math.Abs(cp.GeoMagL) * geo.R2D
	if gm < 42.5 {
		return 0
	}
	l := 9 * math.Exp(-math.Pow((gm-65)/10, 2))
	if cp.Sun.Day() {
		l *= 0.6
	}
	switch s {
	case Winter:
		l *= 1.2
	case Summer:
		l *= 0.8
	}
	return l
}

// signalDeciles returns the upper and lower decile deviations of the
// field strength: within-the-hour fading combined with day-to-day
// variation, widened above the median MUF.
func signalDeciles(geomag, fRatio float64) (du, dl float64) {
	dduu, ddl := 3.0, 5.0
	if math.Abs(geomag) >= 60*geo.D2R {
		dduu, ddl = 6, 9
	}
	if fRatio > 1 {
		ddl += 8 * math.Min(1, fRatio-1)
	}
	return math.Hypot(5, dduu), math.Hypot(8, ddl)
}

// frequencySpread returns the Doppler spread of an n-hop mode, Hz.
func frequencySpread(hops int, mid *ControlPoint) float64 {
	s := 0.1 * float64(hops)
	gm := math.Abs(mid.GeoMagL) * geo.R2D
	switch {
	case gm >= 60:
		s *= 5
	case gm <= 20 && !mid.Sun.Day():
		s *= 3
	}
	return s
}

// governing returns the control points that limit F2 modes.
func (r *run) governing() []*ControlPoint {
	rec := r.rec
	if rec.Distance <= rec.Dmax {
		return []*ControlPoint{&rec.CP[MidPath]}
	}
	return []*ControlPoint{&rec.CP[TD02], &rec.CP[RD02]}
}

// eLayerFoE returns the foE governing E modes.
func (r *run) eLayerFoE() float64 {
	D := r.rec.Distance
	if D <= EHopMax {
		return r.rec.CP[MidPath].FoE
	}
	foE := math.Inf(1)
	for _, d := range []float64{1000, D - 1000} {
		loc := r.path.PointAt(d)
		sun := solar.Compute(loc, r.cfg.Year, r.cfg.Month, r.utc)
		foE = math.Min(foE, ionos.FoEFromSun(loc.Lat, sun, r.cfg.SSN))
	}
	return foE
}

// shortPath runs the per-mode method for E and F2 modes.
func (r *run) shortPath() (*shortResult, error) {
	rec := r.rec
	D := rec.Distance
	mid := &rec.CP[MidPath]
	day := mid.Sun.Day()

	ab := r.absorption()
	var lh float64
	for i := range rec.CP {
		if rec.CP[i].Present {
			lh = math.Max(lh, auroralLoss(&rec.CP[i], rec.Season))
		}
	}

	// E modes
	if D <= EPathMax {
		foE := r.eLayerFoE()
		rec.LowestE = int(math.Ceil(D / EHopMax))
		for i := range rec.ModesE {
			n := i + 1
			m := &rec.ModesE[i]
			d := D / float64(n)
			m.Active = d <= EHopMax
			if !m.Active {
				continue
			}
			m.Hr = HeightEReflect
			m.Elevation = elevation(d, HeightEReflect)
			m.Present = m.Elevation > 0
			setMUFs(m, eBMUF(foE, d), eDeciles, 1)
			r.modeLosses(m, n, d, LayerE, foE, ab, lh)
		}
	}

	// F2 modes
	if rec.LowestF2 > 0 {
		gov := r.governing()
		foE := 0.0
		for _, cp := range gov {
			foE = math.Max(foE, cp.FoE)
		}
		v := f2Variability(rec.Season, day, mid.GeoMagL)
		op := opFactor(rec.Season, day, D)
		for i := range rec.ModesF2 {
			n := i + 1
			m := &rec.ModesF2[i]
			d := D / float64(n)
			m.Active = n >= rec.LowestF2
			if !m.Active {
				continue
			}
			bmuf := math.Inf(1)
			for _, cp := range gov {
				bmuf = math.Min(bmuf, f2BMUF(cp, d))
			}
			m.Hr = mid.Hr
			m.Elevation = elevation(d, m.Hr)
			m.Fs = 1.05 * foE * secIncidence(m.Elevation, HeightEReflect)
			setMUFs(m, bmuf, v, op)
			m.Present = m.Elevation > 0 && m.BMUF >= m.Fs
			r.modeLosses(m, n, d, LayerF2, foE, ab, lh)
		}
	}

	res := &shortResult{field: ShortField{Lz: Lz, Field: FieldFloor}, pr: FieldFloor}
	var ew, prw []float64
	best := math.Inf(-1)
	rec.Modes(func(idx ModeIndex, m *ModeRecord) {
		ew = append(ew, m.Ew)
		prw = append(prw, m.Prw)
		if m.Prw > best {
			best = m.Prw
			rec.Dominant = idx
		}
	})
	if len(ew) > 0 {
		res.any = true
		res.field.Field = powerSum(ew...)
		res.pr = powerSum(prw...)
	}

	if dm := rec.Mode(rec.Dominant); dm != nil {
		rec.RxElevation = dm.Elevation
	} else if rec.LowestF2 > 0 {
		rec.RxElevation = math.Max(0, rec.ModesF2[rec.LowestF2-1].Elevation)
	}
	return res, nil
}

// modeLosses fills the loss, field strength and timing of an active mode.
func (r *run) modeLosses(m *ModeRecord, n int, d float64, layer Layer, foE float64, ab absorption, lh float64) {
	cfg := r.cfg
	f := cfg.Frequency
	mid := &r.rec.CP[MidPath]

	m.PPrime = 2 * float64(n) * slantRange(d, m.Elevation)
	sec := secIncidence(m.Elevation, HeightEReflect)
	fv := f / sec
	x := 0.0
	if foE > 0 {
		x = fv / foE
	}
	m.Li = float64(n) * (1 + 0.0067*cfg.SSN) * sec / math.Pow(f+ab.fl, 2) * ab.factor * phiN(x)

	if f > m.BMUF && m.BMUF > 0 {
		ratio := f/m.BMUF - 1
		if layer == LayerE {
			m.Lm = 130 * ratio * ratio
		} else {
			m.Lm = 36 * math.Sqrt(ratio)
		}
		m.Lm = math.Min(m.Lm, maxAboveMUF)
	}
	lg := 2 * float64(n-1)

	m.Lb = 32.45 + 20*math.Log10(f) + 20*math.Log10(m.PPrime) + m.Li + m.Lm + lg + lh + Lz

	gt := r.tx.Gain(r.path.Azimuth, m.Elevation)
	m.Grw = r.rx.Gain(r.path.Back, m.Elevation)
	m.Ew = 136.6 + cfg.TxPower + gt - m.Lb + 20*math.Log10(f)
	m.Prw = m.Ew + m.Grw - 20*math.Log10(f) - 107.2
	m.Tau = m.PPrime / lightKmPerSec

	m.Deltau, m.Deltal = signalDeciles(mid.GeoMagL, f/m.MUF50)
	m.Fprob = exceed(m.MUF50, m.MUF10-m.MUF50, m.MUF50-m.MUF90, f)
	m.Spread = frequencySpread(n, mid)
}
