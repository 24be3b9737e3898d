package ionos

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/KI7MT/ki7mt-hf-predict/internal/geo"
	"github.com/KI7MT/ki7mt-hf-predict/internal/solar"
)

// flatMonth returns month values whose foF2 map is lo at R12=0 and hi at
// R12=100 everywhere, with M(3000)F2 fixed at 3.
func flatMonth(lo, hi float64) []float64 {
	v := make([]float64, MonthValues)
	v[0] = lo
	v[FoF2Geo*FoF2Time] = hi
	m := ssnLevels * FoF2Geo * FoF2Time
	v[m] = 3
	v[m+M3000Geo*M3000Time] = 3
	return v
}

func TestFoE_NoonEquator(t *testing.T) {
	loc := geo.FromDegrees(0, 0)
	sun := solar.Compute(loc, 2001, 2, 12)
	sun.Zenith = 0
	sun.Declination = 0

	// A = 1.746, B = 1, C = 139, D = 1.
	assert.InDelta(t, 3.95, FoEFromSun(loc.Lat, sun, 100), 0.01)
}

func TestFoE_NightFloor(t *testing.T) {
	loc := geo.FromDegrees(80, 0)
	sun := solar.Compute(loc, 2024, 11, 1)
	require.Equal(t, solar.PolarNight, sun.State)

	assert.InDelta(t, FoENight(100), FoEFromSun(loc.Lat, sun, 100), 1e-12)
	assert.InDelta(t, 0.506, FoENight(100), 0.01)
}

func TestFoE_ContinuousAtHorizon(t *testing.T) {
	loc := geo.FromDegrees(40, 0)
	sun := solar.Compute(loc, 2001, 5, 12)

	sun.Zenith = (90 - 1e-6) * geo.D2R
	below := FoEFromSun(loc.Lat, sun, 50)
	sun.Zenith = (90 + 1e-6) * geo.D2R
	above := FoEFromSun(loc.Lat, sun, 50)

	assert.InDelta(t, below, above, 0.01)
}

func TestFoE_MonotonicInSSN(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		lat := rapid.Float64Range(-85, 85).Draw(t, "lat")
		utc := rapid.Float64Range(0, 24).Draw(t, "utc")
		month := rapid.IntRange(0, 11).Draw(t, "month")
		r := rapid.Float64Range(0, 300).Draw(t, "ssn")
		loc := geo.FromDegrees(lat, 10)

		low := FoEAt(loc, month, utc, r)
		high := FoEAt(loc, month, utc, r+20)
		assert.GreaterOrEqual(t, high, low)
		assert.GreaterOrEqual(t, low, FoENight(r)-1e-12)
	})
}

func TestDipole_Pole(t *testing.T) {
	d := NewDipole(DipoleEpoch)
	lat, lng := d.Pole().Degrees()

	assert.InDelta(t, 80.8, lat, 0.3)
	assert.InDelta(t, -72.7, lng, 0.3)
	assert.InDelta(t, math.Pi/2, d.GeomagneticLatitude(d.Pole()), 1e-9)
}

func TestDipole_Field(t *testing.T) {
	d := NewDipole(DipoleEpoch)

	north := d.Magnetic(geo.FromDegrees(50, -90), HeightF2)
	south := d.Magnetic(geo.FromDegrees(-50, 90), HeightF2)
	assert.Greater(t, north.Dip, 0.0)
	assert.Less(t, south.Dip, 0.0)

	for _, m := range []Magnetic{north, south} {
		assert.Greater(t, m.Gyro, 0.6)
		assert.Less(t, m.Gyro, 1.7)
	}

	// The field weakens with height.
	low := d.Magnetic(geo.FromDegrees(50, -90), HeightE)
	assert.Greater(t, low.Gyro, north.Gyro)
	assert.InDelta(t, low.Dip, north.Dip, 1e-12)
}

func TestGrid_Bilinear(t *testing.T) {
	g := make(Grid, GridRows*GridCols)
	for r := 0; r < GridRows; r++ {
		for c := 0; c < GridCols; c++ {
			g[r*GridCols+c] = float64(r)*GridStep - 90 + 0.1*(float64(c)*GridStep-180)
		}
	}

	rapid.Check(t, func(t *rapid.T) {
		lat := rapid.Float64Range(-90, 90).Draw(t, "lat")
		lng := rapid.Float64Range(-179.99, 180).Draw(t, "lng")
		got := g.At(geo.FromDegrees(lat, lng))
		// Bilinear interpolation reproduces a plane exactly.
		assert.InDelta(t, lat+0.1*lng, got, 1e-9)
	})
}

func TestMagneticGrid(t *testing.T) {
	n := GridRows * GridCols
	fill := func(v float64) Grid {
		g := make(Grid, n)
		for i := range g {
			g[i] = v
		}
		return g
	}
	m := &MagneticGrid{Dip100: fill(60), Dip300: fill(61), Fh100: fill(1.3), Fh300: fill(1.1)}
	require.NoError(t, m.Validate())

	loc := geo.FromDegrees(45, 10)
	assert.InDelta(t, 60*geo.D2R, m.Magnetic(loc, HeightE).Dip, 1e-12)
	assert.InDelta(t, 1.1, m.Magnetic(loc, HeightF2).Gyro, 1e-12)

	m.Fh300 = m.Fh300[:10]
	assert.ErrorIs(t, m.Validate(), ErrBadCoefficientFile)
}

func TestCoefficientSet_SSNInterpolation(t *testing.T) {
	maps, err := NewMonthMaps(flatMonth(5, 10))
	require.NoError(t, err)
	set := &CoefficientSet{}
	set.Months[5] = maps
	loc := geo.FromDegrees(30, 30)

	got, err := set.FoF2(loc, 0.5, 5, 12, 50)
	require.NoError(t, err)
	assert.InDelta(t, 7.5, got, 1e-12)

	// Saturation at R12 = 160.
	hi, err := set.FoF2(loc, 0.5, 5, 12, 250)
	require.NoError(t, err)
	assert.InDelta(t, 13, hi, 1e-12)

	m, err := set.M3kF2(loc, 0.5, 5, 12, 80)
	require.NoError(t, err)
	assert.InDelta(t, 3, m, 1e-12)

	_, err = set.FoF2(loc, 0.5, 6, 12, 50)
	assert.ErrorIs(t, err, ErrCoefficientMissing)
}

func TestCoefficientSet_TimeHarmonic(t *testing.T) {
	v := flatMonth(5, 5)
	// First cosine harmonic in time of the constant geographic function.
	v[1] = 1
	v[FoF2Geo*FoF2Time+1] = 1
	maps, err := NewMonthMaps(v)
	require.NoError(t, err)
	set := &CoefficientSet{}
	set.Months[0] = maps
	loc := geo.FromDegrees(0, 0)

	noon, _ := set.FoF2(loc, 0, 0, 12, 0)
	midnight, _ := set.FoF2(loc, 0, 0, 0, 0)
	assert.InDelta(t, 6, noon, 1e-12)
	assert.InDelta(t, 4, midnight, 1e-12)
}

func TestGeographic_Count(t *testing.T) {
	assert.Len(t, geographic(0.3, 1.2, fof2Orders), FoF2Geo)
	assert.Len(t, geographic(0.3, 1.2, m3000Orders), M3000Geo)
}

func TestNewMonthMaps_Rejects(t *testing.T) {
	_, err := NewMonthMaps(make([]float64, 10))
	assert.ErrorIs(t, err, ErrBadCoefficientFile)

	v := flatMonth(1, 2)
	v[7] = math.NaN()
	_, err = NewMonthMaps(v)
	assert.ErrorIs(t, err, ErrBadCoefficientFile)
}

func writeCompressed(t *testing.T, path string, raw []byte) {
	t.Helper()
	var buf bytes.Buffer
	switch filepath.Ext(path) {
	case ".gz":
		w := gzip.NewWriter(&buf)
		_, err := w.Write(raw)
		require.NoError(t, err)
		require.NoError(t, w.Close())
	case ".zst":
		w, err := zstd.NewWriter(&buf)
		require.NoError(t, err)
		_, err = w.Write(raw)
		require.NoError(t, err)
		require.NoError(t, w.Close())
	default:
		buf.Write(raw)
	}
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func TestLoadCoefficients_Formats(t *testing.T) {
	dir := t.TempDir()
	raw := EncodeFloats(flatMonth(4, 8))
	writeCompressed(t, filepath.Join(dir, "ionos01.bin"), raw)
	writeCompressed(t, filepath.Join(dir, "ionos02.bin.gz"), raw)
	writeCompressed(t, filepath.Join(dir, "ionos03.bin.zst"), raw)

	set, err := LoadCoefficients(dir, nil)
	require.NoError(t, err)
	for m := 0; m < 3; m++ {
		require.NotNil(t, set.Months[m], "month %d", m+1)
		got, err := set.FoF2(geo.FromDegrees(10, 10), 0.2, m, 6, 100)
		require.NoError(t, err)
		assert.InDelta(t, 8, got, 1e-12)
	}
	assert.Nil(t, set.Months[3])
}

func TestLoadCoefficients_Empty(t *testing.T) {
	_, err := LoadCoefficients(t.TempDir(), nil)
	assert.ErrorIs(t, err, ErrCoefficientMissing)
}

func TestLoadCoefficients_BadSize(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ionos01.bin"), []byte{1, 2, 3}, 0o644))

	_, err := LoadCoefficients(dir, nil)
	assert.ErrorIs(t, err, ErrBadCoefficientFile)
}

func TestLoad(t *testing.T) {
	env, err := Load("", nil)
	require.NoError(t, err)
	assert.True(t, env.Analytic())

	dir := t.TempDir()
	writeCompressed(t, filepath.Join(dir, "ionos07.bin"), EncodeFloats(flatMonth(6, 9)))
	env, err = Load(dir, nil)
	require.NoError(t, err)
	assert.False(t, env.Analytic())

	got, err := env.FoF2(geo.FromDegrees(0, 0), 6, 12, 100)
	require.NoError(t, err)
	assert.InDelta(t, 9, got, 1e-12)

	_, err = env.FoF2(geo.FromDegrees(0, 0), 0, 12, 100)
	assert.ErrorIs(t, err, ErrCoefficientMissing)
}

func TestEnvironment_QueryRange(t *testing.T) {
	env := NewEnvironment()
	loc := geo.FromDegrees(20, 20)

	_, err := env.FoF2(loc, 12, 0, 50)
	assert.ErrorIs(t, err, ErrCoefficientMissing)
	_, err = env.M3kF2(loc, 0, 0, 401)
	assert.ErrorIs(t, err, ErrCoefficientMissing)
	_, err = env.FoE(loc, -1, 0, 50)
	assert.ErrorIs(t, err, ErrCoefficientMissing)
}

func TestModel_Plausible(t *testing.T) {
	env := NewEnvironment()

	rapid.Check(t, func(t *rapid.T) {
		lat := rapid.Float64Range(-89, 89).Draw(t, "lat")
		lng := rapid.Float64Range(-180, 180).Draw(t, "lng")
		month := rapid.IntRange(0, 11).Draw(t, "month")
		utc := rapid.Float64Range(0, 24).Draw(t, "utc")
		r := rapid.Float64Range(0, 400).Draw(t, "ssn")
		loc := geo.FromDegrees(lat, lng)

		fo, err := env.FoF2(loc, month, utc, r)
		require.NoError(t, err)
		m, err := env.M3kF2(loc, month, utc, r)
		require.NoError(t, err)

		assert.Greater(t, fo, 1.5)
		assert.Less(t, fo, 20.0)
		assert.Greater(t, m, 2.3)
		assert.Less(t, m, 3.6)

		// Same query, same answer.
		again, _ := env.FoF2(loc, month, utc, r)
		assert.Equal(t, fo, again)
	})
}

func TestModel_DayExceedsNight(t *testing.T) {
	env := NewEnvironment()
	loc := geo.FromDegrees(45, 0)

	day, _ := env.FoF2(loc, 5, 12, 100)
	night, _ := env.FoF2(loc, 5, 0, 100)
	assert.Greater(t, day, night)

	quiet, _ := env.FoF2(loc, 5, 12, 50)
	active, _ := env.FoF2(loc, 5, 12, 180)
	assert.Greater(t, active, quiet)
}

func TestModip(t *testing.T) {
	assert.InDelta(t, 0, Modip(0, 0.5), 1e-12)
	assert.InDelta(t, math.Pi/4, Modip(math.Pi/4, 0), 1e-12)
	assert.False(t, math.IsNaN(Modip(1.2, math.Pi/2)))
}
