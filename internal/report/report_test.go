package report

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/klauspost/pgzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KI7MT/ki7mt-hf-predict/internal/antenna"
	"github.com/KI7MT/ki7mt-hf-predict/internal/geo"
	"github.com/KI7MT/ki7mt-hf-predict/internal/ionos"
	"github.com/KI7MT/ki7mt-hf-predict/internal/noise"
	"github.com/KI7MT/ki7mt-hf-predict/internal/p533"
)

var (
	ottawa    = geo.FromDegrees(45.4, -75.7)
	cambridge = geo.FromDegrees(52.2, 0.1)
	boulder   = geo.FromDegrees(40.0, -105.3)
	sydney    = geo.FromDegrees(-33.9, 151.2)
	perth     = geo.FromDegrees(-31.95, 115.86)
)

var stamp = time.Date(2026, time.March, 7, 14, 5, 9, 0, time.UTC)

func record(t *testing.T, tx, rx geo.Location) *p533.PathRecord {
	t.Helper()
	iso := antenna.Descriptor{Name: "isotropic", Pattern: antenna.Isotropic{}}
	cfg := p533.PathConfig{
		Name:        "report test",
		Year:        2024,
		Month:       5,
		Hour:        11,
		SSN:         100,
		TxName:      "TX",
		Tx:          tx,
		RxName:      "RX",
		Rx:          rx,
		Frequency:   14.1,
		Bandwidth:   3000,
		SNRr:        10,
		Reliability: 90,
		SIRr:        3,
		ManMade:     noise.ManMade{Category: noise.Rural},
		TxAntenna:   iso,
		RxAntenna:   iso,
	}
	rec, err := p533.NewAnalyzer(ionos.NewEnvironment(), nil).Analyze(cfg)
	require.NoError(t, err)
	return rec
}

func dump(t *testing.T, rec *p533.PathRecord) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Dump(&buf, rec))
	return buf.String()
}

func TestCoordinateHelpers(t *testing.T) {
	// 10 + 33/128 degrees is exact in binary: 15' 28.125".
	assert.Equal(t, 10, Degrees(10.2578125))
	assert.Equal(t, 15, Minutes(10.2578125))
	assert.Equal(t, 28, Seconds(10.2578125))

	assert.Equal(t, -33, Degrees(-33.75))
	assert.Equal(t, 45, Minutes(-33.75))
	assert.Equal(t, 0, Seconds(-33.75))

	assert.Equal(t, 13, Hrs(13.25))
	assert.Equal(t, 15, Mns(13.25))
	assert.Equal(t, 1, Hrs(25.5))
	assert.Equal(t, 30, Mns(25.5))
}

func TestFileName(t *testing.T) {
	name, err := FileName(stamp)
	require.NoError(t, err)
	assert.Equal(t, "PDD070326-140509.txt", name)
}

func TestHeaderTail(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Header(&buf, stamp))
	require.NoError(t, Tail(&buf))
	out := buf.String()
	assert.Contains(t, out, "HF Model (P533)    Ver "+p533.Version)
	assert.Contains(t, out, "Noise Model (P372) Ver "+noise.Version)
	assert.Contains(t, out, "Analysis Prepared  Sat Mar  7 14:05:09 2026")
	assert.True(t, strings.HasSuffix(out, "All rights reserved.\n"))
}

func TestDump_ShortPath(t *testing.T) {
	rec := record(t, ottawa, cambridge)
	out := dump(t, rec)

	assert.Contains(t, out, "\tMonth = June\n")
	assert.Contains(t, out, "\tHour  = 12 (hour UTC)\n")
	assert.Contains(t, out, "\tShort or Long Path = Short\n")
	assert.Contains(t, out, "\tModulation = ANALOG\n")
	assert.Contains(t, out, "\tMan-made noise = RURAL\n")
	assert.Contains(t, out, "\tseason = Summer\n")
	assert.Contains(t, out, "Short Path Parameters")
	assert.NotContains(t, out, "Long Path Parameters")
	assert.Contains(t, out, "Field Strength (7000 km < D < 9000 km) = n/a\n")
	assert.Contains(t, out, "Field Strength           (D > 9000 km) = n/a\n")
	assert.Contains(t, out, "Dominant mode: F2 layer mode")
	assert.Contains(t, out, "F2 Mode 6")
	assert.Contains(t, out, "E Mode 3")
	assert.Contains(t, out, "T + d0/2")
	assert.NotContains(t, out, "Nearest Transmitter")
	assert.Equal(t, 1, strings.Count(out, "reflection height  ="))

	dom := rec.Mode(rec.Dominant)
	require.NotNil(t, dom)
	assert.Contains(t, out, fmt.Sprintf("\tDelay                     = % 5.3f (mS)\n", dom.Tau*1000))
	assert.Greater(t, dom.Tau*1000, 10.0)

	// Sections appear in a fixed order.
	order := []string{
		"Input Parameters", "Distances (km)", "Maximum Usable Frequencies",
		"Lowest Order and Dominant Mode", "Season", "Field Strength", "Rx Elevation",
		"Noise Parameters", "SNR Parameters", "SIR Parameters", "Reliability Parameters",
		"F2 Mode 1", "E Mode 1", "MidPath", "End DumpPathData()",
	}
	last := -1
	for _, s := range order {
		i := strings.Index(out, s)
		require.Greater(t, i, last, s)
		last = i
	}
}

func TestDump_LongPath(t *testing.T) {
	rec := record(t, boulder, sydney)
	require.Greater(t, rec.Distance, p533.ShortLimit)
	out := dump(t, rec)

	assert.Contains(t, out, "Long Path Parameters")
	assert.NotContains(t, out, "Short Path Parameters")
	assert.NotContains(t, out, "F2 Mode 1")
	assert.Contains(t, out, "No Dominant mode for this path length")
	assert.Contains(t, out, "lowest order F2 layer mode = No Mode")
	assert.Contains(t, out, "Field Strength (7000 km > D)           = n/a\n")
	assert.Contains(t, out, "Penetration Point - Nearest Transmitter")
	assert.Contains(t, out, "Penetration Point -  Nearest Receiver")
}

func TestDump_SouthernSeason(t *testing.T) {
	rec := record(t, sydney, perth)
	require.Less(t, rec.CP[p533.MidPath].Location.Lat, 0.0)
	assert.Contains(t, dump(t, rec), "\tseason = Winter\n")
}

type failWriter struct{}

func (failWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestDump_WriteError(t *testing.T) {
	rec := record(t, ottawa, cambridge)
	assert.EqualError(t, Dump(failWriter{}, rec), "disk full")
}

func TestWriter(t *testing.T) {
	dir := t.TempDir()
	clk := clockwork.NewFakeClockAt(stamp)

	w, err := Open(Options{Dir: dir, Clock: clk})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "PDD070326-140509.txt"), w.Path())

	require.NoError(t, w.Write(record(t, ottawa, cambridge)))
	require.NoError(t, w.Write(record(t, boulder, sydney)))
	require.NoError(t, w.Close())

	raw, err := os.ReadFile(w.Path())
	require.NoError(t, err)
	out := string(raw)
	assert.Equal(t, 1, strings.Count(out, "Analysis Prepared"))
	assert.Equal(t, 2, strings.Count(out, "End DumpPathData()"))
	assert.True(t, strings.HasPrefix(out, rule))
	assert.True(t, strings.HasSuffix(out, "All rights reserved.\n"))
}

func TestWriter_Gzip(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(Options{Dir: dir, Gzip: true, Clock: clockwork.NewFakeClockAt(stamp)})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(w.Path(), ".txt.gz"))
	require.NoError(t, w.Write(record(t, ottawa, cambridge)))
	require.NoError(t, w.Close())

	f, err := os.Open(w.Path())
	require.NoError(t, err)
	defer f.Close()
	zr, err := pgzip.NewReader(f)
	require.NoError(t, err)
	raw, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Input Parameters")
}
