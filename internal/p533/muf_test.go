package p533

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"github.com/KI7MT/ki7mt-hf-predict/internal/geo"
)

func TestElevation(t *testing.T) {
	assert.InDelta(t, 6.716, elevation(2682.5, 312)*geo.R2D, 1e-3)
	assert.InDelta(t, 15.831, elevation(696, 110)*geo.R2D, 1e-3)
	assert.Less(t, elevation(4000, 300), 0.0)
	assert.InDelta(t, math.Pi/2, elevation(1e-3, 300), 1e-3)
}

func TestSlantRange_LawOfCosines(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		d := rapid.Float64Range(50, 3500).Draw(t, "d")
		h := rapid.Float64Range(90, 500).Draw(t, "h")
		e := elevation(d, h)
		if e <= 0 {
			return
		}
		theta := d / (2 * r0)
		want := math.Sqrt(r0*r0 + (r0+h)*(r0+h) - 2*r0*(r0+h)*math.Cos(theta))
		assert.InDelta(t, want, slantRange(d, e), 1e-6*want)
	})
}

func TestSecIncidence(t *testing.T) {
	assert.InDelta(t, 1, secIncidence(math.Pi/2, 110), 1e-9)
	// Grazing rays at 110 km: sin(i) = R/(R+110).
	s := r0 / (r0 + 110)
	assert.InDelta(t, 1/math.Sqrt(1-s*s), secIncidence(0, 110), 1e-9)
}

func TestGroundOffset(t *testing.T) {
	// A vertical ray crosses every height straight above the hop end.
	assert.InDelta(t, 0, groundOffset(math.Pi/2, 90), 1e-6)
	assert.Greater(t, groundOffset(0.05, 90), groundOffset(0.5, 90))
}

func TestReflectionHeight(t *testing.T) {
	assert.InDelta(t, 1490/3.0-176, reflectionHeight(3.0), 1e-12)
	assert.Equal(t, HeightMaxF2, reflectionHeight(1.0))
}

func TestCd(t *testing.T) {
	assert.InDelta(t, 0.9421, cd(3000, 4000), 1e-4)
	assert.InDelta(t, 1, cd(4000, 4000), 1e-12)
	// Vertical incidence: Cd vanishes and the MUF falls to foF2 + fH/2.
	assert.InDelta(t, 0, cd(0, 4000), 1e-12)
}

func TestDmax_Clamped(t *testing.T) {
	cp := ControlPoint{FoF2: 10, FoE: 3.5, M3kF2: 3.0}
	assert.Equal(t, F2HopMax, dmax(&cp))

	rapid.Check(t, func(t *rapid.T) {
		cp := ControlPoint{
			FoF2:  rapid.Float64Range(1, 20).Draw(t, "foF2"),
			FoE:   rapid.Float64Range(0.3, 4.5).Draw(t, "foE"),
			M3kF2: rapid.Float64Range(1.5, 4.5).Draw(t, "m3k"),
		}
		d := dmax(&cp)
		assert.GreaterOrEqual(t, d, F2HopMin)
		assert.LessOrEqual(t, d, F2HopMax)
	})
}

func TestF2BMUF(t *testing.T) {
	cp := ControlPoint{FoF2: 10, FoE: 3.5, M3kF2: 3.0, Fh300: 1.2}
	dm := dmax(&cp)

	// At 3000 km Cd/C3000 is one, so the MUF is B*foF2 plus the gyro term.
	b := bParam(cp.M3kF2, ratioX(cp.FoF2, cp.FoE))
	assert.InDelta(t, b*cp.FoF2+0.6*(1-3000/dm), f2BMUF(&cp, 3000), 1e-9)

	// Longer hops see the layer at more oblique incidence.
	assert.Greater(t, f2BMUF(&cp, 3500), f2BMUF(&cp, 1500))

	assert.InDelta(t, cp.FoF2+0.6, f2BMUF(&cp, 0), 1e-12)

	// Hops beyond dmax are evaluated at dmax.
	assert.InDelta(t, f2BMUF(&cp, dm), f2BMUF(&cp, dm+500), 1e-12)
}

func TestEBMUF(t *testing.T) {
	assert.Greater(t, eBMUF(3, 2000), eBMUF(3, 500))
	assert.InDelta(t, 3*secIncidence(elevation(1000, 110), 110), eBMUF(3, 1000), 1e-12)
}

func TestMUFVariability(t *testing.T) {
	for _, s := range []Season{Winter, Equinox, Summer} {
		for _, day := range []bool{true, false} {
			v := f2Variability(s, day, 0)
			assert.Less(t, v.lower, 1.0)
			assert.Greater(t, v.upper, 1.0)
			hi := f2Variability(s, day, 70*geo.D2R)
			assert.Less(t, hi.lower, v.lower)

			op := opFactor(s, day, 8000)
			assert.GreaterOrEqual(t, op, 1.10)
			assert.LessOrEqual(t, op, 1.35)
		}
	}

	var m ModeRecord
	setMUFs(&m, 20, deciles{0.85, 1.15}, 1.2)
	assert.Equal(t, 20.0, m.MUF50)
	assert.InDelta(t, 23, m.MUF10, 1e-12)
	assert.InDelta(t, 17, m.MUF90, 1e-12)
	assert.InDelta(t, 24, m.OPMUF, 1e-12)
	assert.InDelta(t, 24*0.85, m.OPMUF90, 1e-12)
}

func TestStats(t *testing.T) {
	assert.InDelta(t, 0.5, exceed(10, 5, 8, 10), 1e-12)
	assert.InDelta(t, 0.9, exceed(10, 5, 8, 2), 1e-4)
	assert.InDelta(t, 0.1, exceed(10, 5, 8, 15), 1e-4)
	assert.Equal(t, 1.0, exceed(10, 0, 0, 9))
	assert.Equal(t, 0.0, exceed(10, 0, 0, 11))

	assert.InDelta(t, 0, normalQuantile(0.5), 1e-12)
	assert.InDelta(t, decileZ, normalQuantile(0.9), 1e-3)

	assert.InDelta(t, 10*math.Log10(2), powerSum(0, 0), 1e-12)
	assert.Equal(t, FieldFloor, powerSum())
}

func TestSNRAt(t *testing.T) {
	s := SNRStats{SNR: 10, DuSN: 5, DlSN: 8}
	assert.InDelta(t, 2, snrAt(s, 90), 0.01)
	assert.InDelta(t, 15, snrAt(s, 10), 0.01)
	assert.InDelta(t, 10, snrAt(s, 50), 1e-9)

	rapid.Check(t, func(t *rapid.T) {
		a := rapid.IntRange(1, 98).Draw(t, "a")
		b := rapid.IntRange(a+1, 99).Draw(t, "b")
		assert.GreaterOrEqual(t, snrAt(s, a), snrAt(s, b))
	})
}

func TestSeasonAt(t *testing.T) {
	north := 45 * geo.D2R
	assert.Equal(t, Winter, SeasonAt(0, north))
	assert.Equal(t, Equinox, SeasonAt(2, north))
	assert.Equal(t, Summer, SeasonAt(5, north))
	assert.Equal(t, Equinox, SeasonAt(9, north))
	assert.Equal(t, Winter, SeasonAt(10, north))

	swap := map[Season]Season{Winter: Summer, Summer: Winter, Equinox: Equinox}
	for m := 0; m < 12; m++ {
		// Flipping the hemisphere or shifting by six months swaps
		// winter and summer; doing both leaves the season unchanged.
		assert.Equal(t, swap[SeasonAt(m, north)], SeasonAt(m, -north), "month %d", m)
		assert.Equal(t, swap[SeasonAt(m, north)], SeasonAt((m+6)%12, north), "month %d", m)
		assert.Equal(t, SeasonAt(m, north), SeasonAt((m+6)%12, -north), "month %d", m)
	}
	assert.Equal(t, "EQUINOX", Equinox.String())
}

func TestModeIndex(t *testing.T) {
	assert.True(t, NoMode.None())
	assert.Equal(t, "none", NoMode.String())
	assert.Equal(t, "2F2", F2Mode(2).String())
	assert.Equal(t, "1E", EMode(1).String())
	assert.Equal(t, LayerF2, F2Mode(3).Layer())
	assert.Equal(t, 3, F2Mode(3).Hops())

	var rec PathRecord
	assert.Same(t, &rec.ModesF2[1], rec.Mode(F2Mode(2)))
	assert.Same(t, &rec.ModesE[0], rec.Mode(EMode(1)))
	assert.Nil(t, rec.Mode(NoMode))
	assert.Nil(t, rec.Mode(F2Mode(7)))
}
