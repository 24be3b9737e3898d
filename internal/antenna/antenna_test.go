package antenna

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/KI7MT/ki7mt-hf-predict/internal/ionos"
)

const deg = math.Pi / 180

// beamTable has gain 10 dBi minus 0.05 dB per degree off boresight, plus
// 0.1 dB per degree of elevation.
func beamTable() []float64 {
	v := make([]float64, TableValues)
	for r := 0; r < AzimuthRows; r++ {
		az := float64(r) * AzimuthStep
		off := math.Min(az, 360-az)
		for c := 0; c < ElevationCols; c++ {
			v[r*ElevationCols+c] = 10 - 0.05*off + 0.1*float64(c)
		}
	}
	return v
}

func TestIsotropic(t *testing.T) {
	d := Descriptor{Pattern: Isotropic{}, GainOffset: 2.5}
	assert.Equal(t, 2.5, d.Gain(1, 0.2))
	assert.InDelta(t, 2.5, d.MeanGain(1, 0, 8*deg), 1e-12)
	assert.InDelta(t, 2.5, d.MaxGain(1, 0, 8*deg), 1e-12)
}

func TestTable_Interpolation(t *testing.T) {
	tab, err := NewTable("beam", beamTable())
	require.NoError(t, err)

	assert.InDelta(t, 10, tab.Gain(0, 0), 1e-12)
	assert.InDelta(t, 10-0.05*90+1, tab.Gain(90*deg, 10*deg), 1e-9)
	assert.InDelta(t, 10+0.1*12.5, tab.Gain(0, 12.5*deg), 1e-9)
	// Elevations are clamped to the table.
	assert.InDelta(t, tab.Gain(0, 90*deg), tab.Gain(0, 120*deg), 1e-12)
	assert.InDelta(t, tab.Gain(0, 0), tab.Gain(0, -5*deg), 1e-12)
}

func TestTable_Wraps(t *testing.T) {
	tab, err := NewTable("beam", beamTable())
	require.NoError(t, err)

	rapid.Check(t, func(t *rapid.T) {
		az := rapid.Float64Range(0, 2*math.Pi).Draw(t, "az")
		el := rapid.Float64Range(0, math.Pi/2).Draw(t, "el")
		assert.InDelta(t, tab.Gain(az, el), tab.Gain(az+2*math.Pi, el), 1e-9)
		assert.InDelta(t, tab.Gain(az, el), tab.Gain(az-2*math.Pi, el), 1e-9)
	})
}

func TestDescriptor_Orient(t *testing.T) {
	tab, err := NewTable("beam", beamTable())
	require.NoError(t, err)

	auto := Descriptor{Pattern: tab, Orientation: TX2RX}.Orient(45 * deg)
	assert.InDelta(t, 45*deg, auto.Bearing, 1e-12)
	assert.InDelta(t, 10, auto.Gain(45*deg, 0), 1e-9)

	manual := Descriptor{Pattern: tab, Orientation: Manual, Bearing: 90 * deg}.Orient(45 * deg)
	assert.InDelta(t, 90*deg, manual.Bearing, 1e-12)
	assert.InDelta(t, 10-0.05*45, manual.Gain(45*deg, 0), 1e-9)
}

func TestDescriptor_MeanBelowMax(t *testing.T) {
	tab, err := NewTable("beam", beamTable())
	require.NoError(t, err)
	d := Descriptor{Pattern: tab}

	mean := d.MeanGain(0, 0, 8*deg)
	assert.Less(t, mean, d.MaxGain(0, 0, 8*deg))
	assert.Greater(t, mean, d.Gain(0, 0))
	assert.InDelta(t, 10.8, d.MaxGain(0, 0, 8*deg), 1e-9)
}

func TestParseOrientation(t *testing.T) {
	o, err := ParseOrientation("manual")
	require.NoError(t, err)
	assert.Equal(t, Manual, o)

	o, err = ParseOrientation("")
	require.NoError(t, err)
	assert.Equal(t, TX2RX, o)
	assert.Equal(t, "TX2RX", o.String())

	_, err = ParseOrientation("sideways")
	assert.Error(t, err)
}

func TestLoadTable_Text(t *testing.T) {
	var b strings.Builder
	b.WriteString("# 5 deg azimuth rows, 1 deg elevation columns\n")
	for i, g := range beamTable() {
		fmt.Fprintf(&b, "%.3f", g)
		if (i+1)%ElevationCols == 0 {
			b.WriteString("\n")
		} else {
			b.WriteString(" ")
		}
	}
	path := filepath.Join(t.TempDir(), "beam.txt")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))

	tab, err := LoadTable(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "beam.txt", tab.Name)
	assert.InDelta(t, 10, tab.Gain(0, 0), 1e-9)
}

func TestLoadTable_Binary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "beam.bin")
	require.NoError(t, os.WriteFile(path, ionos.EncodeFloats(beamTable()), 0o644))

	tab, err := LoadTable(path, nil)
	require.NoError(t, err)
	assert.InDelta(t, 10-0.05*90, tab.Gain(90*deg, 0), 1e-9)
}

func TestLoadTable_Bad(t *testing.T) {
	dir := t.TempDir()
	short := filepath.Join(dir, "short.txt")
	require.NoError(t, os.WriteFile(short, []byte("1 2 3\n"), 0o644))
	_, err := LoadTable(short, nil)
	assert.ErrorIs(t, err, ErrBadPattern)

	junk := filepath.Join(dir, "junk.txt")
	require.NoError(t, os.WriteFile(junk, []byte("1 two 3\n"), 0o644))
	_, err = LoadTable(junk, nil)
	assert.ErrorIs(t, err, ErrBadPattern)
}
