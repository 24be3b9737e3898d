package p533

import (
	"fmt"
	"math"

	"github.com/KI7MT/ki7mt-hf-predict/internal/geo"
	"github.com/KI7MT/ki7mt-hf-predict/internal/noise"
)

// MaxSIR is reported when a single mode or the composite method carries
// the signal.
const MaxSIR = 99.0

// =============================================================================
// Field strength and MUF
// =============================================================================

// combine selects the field-strength method by distance and sets the
// path MUFs and received power.
func (r *run) combine(short *shortResult, long *LongField) {
	rec := r.rec
	D := rec.Distance

	switch {
	case D < BlendStart:
		f := short.field
		rec.Field = &f
		rec.Pr = short.pr
	case D < ShortLimit:
		w := (D - BlendStart) / (ShortLimit - BlendStart)
		rec.Field = &BlendField{
			Short: short.field,
			Long:  *long,
			Field: (1-w)*short.field.Field + w*long.Field,
		}
		rec.Pr = (1-w)*short.pr + w*r.longPower(long)
	default:
		if D == ShortLimit {
			ei := long.Field
			long.Interp = &ei
		}
		rec.Field = long
		rec.Pr = r.longPower(long)
	}

	if short != nil && (r.modeMUFs(true) || r.modeMUFs(false)) {
		return
	}
	if long != nil {
		mid := &rec.CP[MidPath]
		v := f2Variability(rec.Season, mid.Sun.Day(), mid.GeoMagL)
		var m ModeRecord
		bmuf := math.Min(long.FD[0], long.FD[1])
		setMUFs(&m, bmuf, v, long.FM/bmuf)
		r.setPathMUFs(&m)
	}
}

// modeMUFs sets the path MUFs to the largest over present modes, or over
// active modes when presentOnly is false. It reports whether any mode
// contributed.
func (r *run) modeMUFs(presentOnly bool) bool {
	var best ModeRecord
	found := false
	take := func(m *ModeRecord) {
		if !m.Active || presentOnly && !m.Present {
			return
		}
		found = true
		best.BMUF = math.Max(best.BMUF, m.BMUF)
		best.MUF10 = math.Max(best.MUF10, m.MUF10)
		best.MUF50 = math.Max(best.MUF50, m.MUF50)
		best.MUF90 = math.Max(best.MUF90, m.MUF90)
		best.OPMUF = math.Max(best.OPMUF, m.OPMUF)
		best.OPMUF10 = math.Max(best.OPMUF10, m.OPMUF10)
		best.OPMUF90 = math.Max(best.OPMUF90, m.OPMUF90)
	}
	for i := range r.rec.ModesE {
		take(&r.rec.ModesE[i])
	}
	for i := range r.rec.ModesF2 {
		take(&r.rec.ModesF2[i])
	}
	if found {
		r.setPathMUFs(&best)
	}
	return found
}

func (r *run) setPathMUFs(m *ModeRecord) {
	rec := r.rec
	rec.BMUF = m.BMUF
	rec.MUF10 = m.MUF10
	rec.MUF50 = m.MUF50
	rec.MUF90 = m.MUF90
	rec.OPMUF = m.OPMUF
	rec.OPMUF10 = m.OPMUF10
	rec.OPMUF90 = m.OPMUF90
}

// =============================================================================
// Noise
// =============================================================================

func (r *run) noise() error {
	cfg := r.cfg
	foF2, err := r.a.env.FoF2(cfg.Rx, cfg.Month, r.utc, cfg.SSN)
	if err != nil {
		return fmt.Errorf("foF2 at receiver: %w", err)
	}
	b := noise.Compute(r.a.atm, noise.Receiver{
		Location: cfg.Rx,
		ManMade:  cfg.ManMade,
		FoF2:     foF2,
	}, cfg.Month, r.utc, cfg.Frequency)

	r.rec.Noise = NoiseStats{
		FaA: b.Atmospheric.Fa, DuA: b.Atmospheric.Du, DlA: b.Atmospheric.Dl,
		FaM: b.ManMade.Fa, DuM: b.ManMade.Du, DlM: b.ManMade.Dl,
		FaG: b.Galactic.Fa, DuG: b.Galactic.Du, DlG: b.Galactic.Dl,
		FamT: b.Total.Fa, DuT: b.Total.Du, DlT: b.Total.Dl,
		Screened: b.GalacticScreened,
		Power:    b.PowerDBW(cfg.Bandwidth),
	}
	return nil
}

// =============================================================================
// Reliability
// =============================================================================

// spreadFOccurrence returns the probability of spread-F scattering at the
// mid-path point.
func spreadFOccurrence(mid *ControlPoint, ssn float64) float64 {
	gm := math.Abs(mid.GeoMagL) * geo.R2D
	lt := mid.Sun.LocalTime
	night := lt >= 19 || lt < 5
	switch {
	case gm <= 20:
		if night {
			return 0.3 + 0.3*math.Min(ssn, 150)/150
		}
		return 0.02
	case gm >= 60:
		if night {
			return 0.4
		}
		return 0.3
	default:
		if night {
			return 0.05
		}
		return 0.01
	}
}

// snrAt returns the SNR exceeded for xx percent of days.
func snrAt(s SNRStats, xx int) float64 {
	p := float64(xx) / 100
	if xx >= 50 {
		return s.SNR - normalQuantile(p)/decileZ*s.DlSN
	}
	return s.SNR + normalQuantile(1-p)/decileZ*s.DuSN
}

// interferers returns the modes that interfere with the dominant one.
// Analog: every other present mode. Digital: modes within A dB of the
// dominant that arrive outside the time or frequency window.
func (r *run) interferers(dom *ModeRecord) []*ModeRecord {
	var out []*ModeRecord
	d := r.cfg.Digital
	r.rec.Modes(func(_ ModeIndex, m *ModeRecord) {
		if m == dom {
			return
		}
		if d != nil {
			if m.Prw < dom.Prw-d.A {
				return
			}
			if delayMs(m, dom) <= d.TW && math.Abs(m.Spread-dom.Spread) <= d.FW {
				return
			}
		}
		out = append(out, m)
	})
	return out
}

// delayMs is the differential delay of m behind dom, ms.
func delayMs(m, dom *ModeRecord) float64 {
	return 1000 * math.Abs(m.Tau-dom.Tau)
}

// significance is the probability that m is within A dB of dom.
func significance(m, dom *ModeRecord, a float64) float64 {
	return exceed(m.Prw-dom.Prw, math.Hypot(m.Deltau, dom.Deltal), math.Hypot(m.Deltal, dom.Deltau), -a)
}

func (r *run) reliability(short *shortResult, long *LongField) {
	rec := r.rec
	cfg := r.cfg
	mid := &rec.CP[MidPath]
	rel := &rec.Reliability
	rel.ProbOcc = spreadFOccurrence(mid, cfg.SSN)

	dom := rec.Mode(rec.Dominant)
	s := &rec.SNR
	switch {
	case dom != nil:
		s.DuS, s.DlS = dom.Deltau, dom.Deltal
	case long != nil:
		s.DuS, s.DlS = signalDeciles(mid.GeoMagL, cfg.Frequency/long.FM)
	default:
		s.DuS, s.DlS = signalDeciles(mid.GeoMagL, 1)
	}
	s.SNR = rec.Pr - rec.Noise.Power
	s.DuSN = math.Hypot(s.DuS, rec.Noise.DlT)
	s.DlSN = math.Hypot(s.DlS, rec.Noise.DuT)
	s.SNRXX = snrAt(*s, cfg.Reliability)

	rec.SIR = SIRStats{SIR: MaxSIR}
	if rec.Distance < ShortLimit && (short == nil || !short.any) {
		rel.RT, rel.RF = 0, 0
		return
	}

	rel.RSN = 100 * exceed(s.SNR, s.DuSN, s.DlSN, cfg.SNRr)
	rel.BCR = rel.RSN
	rel.MIR, rel.RT, rel.RF = 100, 100, 100

	if dom != nil {
		if others := r.interferers(dom); len(others) > 0 {
			strongest := others[0]
			prw := make([]float64, 0, len(others))
			for _, m := range others {
				prw = append(prw, m.Prw)
				if m.Prw > strongest.Prw {
					strongest = m
				}
			}
			rec.SIR = SIRStats{
				SIR:  dom.Prw - powerSum(prw...),
				DuSI: math.Hypot(dom.Deltau, strongest.Deltal),
				DlSI: math.Hypot(dom.Deltal, strongest.Deltau),
			}
			rel.MIR = 100 * exceed(rec.SIR.SIR, rec.SIR.DuSI, rec.SIR.DlSI, cfg.SIRr)
		}
		if d := cfg.Digital; d != nil {
			rel.RT, rel.RF = r.spreads(dom, d)
			rel.MIR = rel.MIR * rel.RT * rel.RF / 1e4
		}
	}

	rel.OCR = rel.BCR * rel.MIR / 100
	rel.OCRs = rel.OCR * (1 - rel.ProbOcc)
}

// spreads returns the probabilities (percent) that the time and frequency
// spread of the significant modes stay within T0 and F0.
func (r *run) spreads(dom *ModeRecord, d *DigitalParams) (rt, rf float64) {
	rt, rf = 1, 1
	if dom.Spread > d.F0 {
		rf = 0
	}
	r.rec.Modes(func(_ ModeIndex, m *ModeRecord) {
		if m == dom {
			return
		}
		p := significance(m, dom, d.A)
		if delayMs(m, dom) > d.T0 {
			rt *= 1 - p
		}
		if m.Spread > d.F0 {
			rf *= 1 - p
		}
	})
	return 100 * rt, 100 * rf
}
