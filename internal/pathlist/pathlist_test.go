package pathlist

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/klauspost/pgzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KI7MT/ki7mt-hf-predict/internal/antenna"
	"github.com/KI7MT/ki7mt-hf-predict/internal/geo"
	"github.com/KI7MT/ki7mt-hf-predict/internal/noise"
	"github.com/KI7MT/ki7mt-hf-predict/internal/p533"
)

const ottawaCambridge = `
name: Ottawa to Cambridge
year: 2024
month: 6
hours: [1, 13, 24]
ssn: 85
frequencies: [7.1, 14.1]
tx:
  name: Ottawa
  lat: 45.4
  lon: -75.7
rx:
  name: Cambridge
  lat: 52.2
  lon: 0.1
tx_power_dbkw: -10
snr_required_db: 13
sir_required_db: 5
man_made_noise: residential
`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadFile_Empty(t *testing.T) {
	doc, err := LoadFile("")
	require.NoError(t, err)
	assert.Equal(t, DefaultDocument(), doc)
}

func TestLoadFile(t *testing.T) {
	doc, err := LoadFile(writeFile(t, "path.yaml", ottawaCambridge))
	require.NoError(t, err)

	assert.Equal(t, "Ottawa to Cambridge", doc.Name)
	assert.Equal(t, 6, doc.Month)
	assert.Equal(t, []int{1, 13, 24}, doc.Hours)
	assert.Equal(t, 45.4, doc.Tx.Lat)
	assert.Equal(t, -10.0, doc.TxPower)

	// Absent fields keep their defaults.
	def := DefaultDocument()
	assert.Equal(t, def.Bandwidth, doc.Bandwidth)
	assert.Equal(t, def.Reliability, doc.Reliability)
	assert.Equal(t, "analog", doc.Modulation)
	assert.Equal(t, "short", doc.Path)
	assert.Equal(t, "TX2RX", doc.Orientation)
}

func TestLoadFile_Errors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = LoadFile(writeFile(t, "bad.yaml", "hours: [1, 2\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.yaml")
}

func TestConfigs(t *testing.T) {
	doc, err := LoadFile(writeFile(t, "path.yaml", ottawaCambridge))
	require.NoError(t, err)

	cfgs, err := NewConverter(t.TempDir(), nil).Configs(doc)
	require.NoError(t, err)
	require.Len(t, cfgs, 6)

	// Hours outermost, frequencies inner; hour stored as UTC-1.
	wantHour := []int{0, 0, 12, 12, 23, 23}
	wantFreq := []float64{7.1, 14.1, 7.1, 14.1, 7.1, 14.1}
	for i, cfg := range cfgs {
		assert.Equal(t, wantHour[i], cfg.Hour, i)
		assert.Equal(t, wantFreq[i], cfg.Frequency, i)
	}

	cfg := cfgs[0]
	assert.Equal(t, 5, cfg.Month)
	assert.Equal(t, 2024, cfg.Year)
	assert.Equal(t, "Ottawa", cfg.TxName)
	assert.Equal(t, "Cambridge", cfg.RxName)
	assert.InDelta(t, 45.4*geo.D2R, cfg.Tx.Lat, 1e-12)
	assert.InDelta(t, -75.7*geo.D2R, cfg.Tx.Lng, 1e-12)
	assert.Equal(t, noise.ManMade{Category: noise.Residential}, cfg.ManMade)
	assert.Equal(t, p533.Analog, cfg.Modulation)
	assert.Nil(t, cfg.Digital)
	assert.Equal(t, p533.ShortPath, cfg.Kind)
	assert.Equal(t, "isotropic", cfg.TxAntenna.Name)
	assert.Equal(t, antenna.Isotropic{}, cfg.RxAntenna.Pattern)
}

func TestConfigs_DigitalLong(t *testing.T) {
	doc := DefaultDocument()
	doc.Year = 2025
	doc.Tx = Site{Name: "Boulder", Lat: 40.0, Lon: -105.3}
	doc.Rx = Site{Name: "Sydney", Lat: -33.9, Lon: 151.2}
	doc.Modulation = "Digital"
	doc.Digital = Digital{F0: 3, T0: 0.1, A: 10, TW: 5, FW: 30}
	doc.Path = "LONG"
	doc.ManMade = "-140"
	doc.Orientation = "manual"
	doc.Tx.Antenna.Bearing = 90

	cfgs, err := NewConverter("", nil).Configs(doc)
	require.NoError(t, err)
	require.Len(t, cfgs, 1)
	cfg := cfgs[0]
	assert.Equal(t, p533.Digital, cfg.Modulation)
	require.NotNil(t, cfg.Digital)
	assert.Equal(t, 30.0, cfg.Digital.FW)
	assert.Equal(t, p533.LongPath, cfg.Kind)
	assert.Equal(t, noise.ManMade{Category: noise.Numeric, At3MHz: -140}, cfg.ManMade)
	assert.Equal(t, antenna.Manual, cfg.TxAntenna.Orientation)
	assert.InDelta(t, 90*geo.D2R, cfg.TxAntenna.Bearing, 1e-12)
}

func TestConfigs_Invalid(t *testing.T) {
	base := func() Document {
		d := DefaultDocument()
		d.Year = 2024
		d.Tx = Site{Lat: 45.4, Lon: -75.7}
		d.Rx = Site{Lat: 52.2, Lon: 0.1}
		return d
	}
	tests := []struct {
		name   string
		mutate func(*Document)
		target error
	}{
		{"hour zero", func(d *Document) { d.Hours = []int{0} }, ErrBadDocument},
		{"hour 25", func(d *Document) { d.Hours = []int{25} }, ErrBadDocument},
		{"modulation", func(d *Document) { d.Modulation = "fm" }, ErrBadDocument},
		{"path", func(d *Document) { d.Path = "sideways" }, ErrBadDocument},
		{"man-made", func(d *Document) { d.ManMade = "urban jungle" }, ErrBadDocument},
		{"orientation", func(d *Document) { d.Orientation = "up" }, ErrBadDocument},
		{"year", func(d *Document) { d.Year = 0 }, p533.ErrConfigInvalid},
		{"frequency", func(d *Document) { d.Frequencies = []float64{45} }, p533.ErrConfigInvalid},
		{"co-located", func(d *Document) { d.Rx = d.Tx }, p533.ErrConfigInvalid},
		{"reliability", func(d *Document) { d.Reliability = 100 }, p533.ErrConfigInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := base()
			tt.mutate(&d)
			_, err := NewConverter("", nil).Configs(d)
			assert.ErrorIs(t, err, tt.target)
		})
	}
}

func TestConfigs_SanitizesNames(t *testing.T) {
	doc := DefaultDocument()
	doc.Year = 2024
	doc.Name = `"Quoted" path`
	doc.Tx = Site{Name: "Tx\tSite", Lat: 45.4, Lon: -75.7}
	doc.Rx = Site{Name: `Rx\\Site`, Lat: 52.2, Lon: 0.1}

	cfgs, err := NewConverter("", nil).Configs(doc)
	require.NoError(t, err)
	assert.Equal(t, "Quoted path", cfgs[0].Name)
	assert.Equal(t, "Tx Site", cfgs[0].TxName)
	assert.Equal(t, "Rx/Site", cfgs[0].RxName)
}

func beamFile(t *testing.T, dir, name string) {
	t.Helper()
	var b strings.Builder
	for az := 0; az < antenna.AzimuthRows; az++ {
		for el := 0; el < antenna.ElevationCols; el++ {
			if el > 0 {
				b.WriteString(" ")
			}
			fmt.Fprintf(&b, "%.1f", 12-0.1*float64(el))
		}
		b.WriteString("\n")
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(b.String()), 0o644))
}

func TestConfigs_AntennaTable(t *testing.T) {
	dir := t.TempDir()
	beamFile(t, dir, "yagi.txt")

	doc := DefaultDocument()
	doc.Year = 2024
	doc.Hours = []int{6, 18}
	doc.Tx = Site{Lat: 45.4, Lon: -75.7, Antenna: SiteAntenna{File: "yagi.txt", GainOffset: 1.5}}
	doc.Rx = Site{Lat: 52.2, Lon: 0.1, Antenna: SiteAntenna{File: "Isotropic"}}

	c := NewConverter(dir, nil)
	cfgs, err := c.Configs(doc)
	require.NoError(t, err)
	require.Len(t, cfgs, 2)

	tx := cfgs[0].TxAntenna
	assert.Equal(t, "yagi.txt", tx.Name)
	assert.Equal(t, 1.5, tx.GainOffset)
	assert.InDelta(t, 12, tx.Pattern.Gain(0, 0), 1e-9)
	assert.Same(t, tx.Pattern, cfgs[1].TxAntenna.Pattern, "table loaded once")
	assert.Len(t, c.tables, 1)
	assert.Equal(t, "isotropic", cfgs[0].RxAntenna.Name)

	doc.Tx.Antenna.File = "missing.txt"
	_, err = c.Configs(doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "antenna missing.txt")
}

// =============================================================================
// CSV
// =============================================================================

func csvBase() Document {
	d := DefaultDocument()
	d.Year = 2024
	d.Month = 3
	d.Hours = []int{12, 18}
	return d
}

const pathsCSV = `name,tx_name,tx_lat,tx_lon,rx_name,rx_lat,rx_lon,frequency_mhz,hour
# lab paths
NA-EU,Ottawa,45.4,-75.7,Cambridge,52.2,0.1,14.1,
NA-AU,Boulder,40.0,-105.3,Sydney,-33.9,151.2,21.1,6

broken,Nowhere,north,0,Somewhere,10,10,14.1
short,A,1,2
out-of-band,Ottawa,45.4,-75.7,Cambridge,52.2,0.1,50.1,
`

func TestParseCSVRecord(t *testing.T) {
	doc, err := ParseCSVRecord([]string{"EU", "Cambridge", "52.2", "0.1", "Munich", "48.1", "11.6", "7.05", "3"}, csvBase())
	require.NoError(t, err)
	assert.Equal(t, "EU", doc.Name)
	assert.Equal(t, "Munich", doc.Rx.Name)
	assert.Equal(t, 11.6, doc.Rx.Lon)
	assert.Equal(t, []float64{7.05}, doc.Frequencies)
	assert.Equal(t, []int{3}, doc.Hours)

	_, err = ParseCSVRecord([]string{"a", "b", "1", "2"}, csvBase())
	assert.ErrorContains(t, err, "insufficient columns")

	_, err = ParseCSVRecord([]string{"a", "b", "1", "2", "c", "3", "4", ""}, csvBase())
	assert.ErrorContains(t, err, "invalid frequency")
}

func TestReadCSV(t *testing.T) {
	var logs bytes.Buffer
	c := NewConverter("", log.New(&logs))
	var stats ParseStats
	cfgs, err := c.ReadCSV(strings.NewReader(pathsCSV), csvBase(), &stats)
	require.NoError(t, err)

	// NA-EU expands over the base hours; NA-AU has its own.
	require.Len(t, cfgs, 3)
	assert.Equal(t, "NA-EU", cfgs[0].Name)
	assert.Equal(t, 11, cfgs[0].Hour)
	assert.Equal(t, 17, cfgs[1].Hour)
	assert.Equal(t, "NA-AU", cfgs[2].Name)
	assert.Equal(t, 5, cfgs[2].Hour)
	assert.Equal(t, "Sydney", cfgs[2].RxName)
	assert.Equal(t, 2, cfgs[2].Month)

	assert.Equal(t, 2, stats.SuccessfullyParsed)
	assert.Equal(t, 3, stats.FailedRows)
	assert.Contains(t, logs.String(), "Parse error")
	assert.Contains(t, logs.String(), "invalid tx latitude")
}

func TestReadCSV_ThrottlesErrors(t *testing.T) {
	var b strings.Builder
	for i := 0; i < MaxErrorsToLog+5; i++ {
		fmt.Fprintf(&b, "bad%d,x\n", i)
	}
	var logs bytes.Buffer
	var stats ParseStats
	cfgs, err := NewConverter("", log.New(&logs)).ReadCSV(strings.NewReader(b.String()), csvBase(), &stats)
	require.NoError(t, err)
	assert.Empty(t, cfgs)
	assert.Equal(t, MaxErrorsToLog+5, stats.FailedRows)
	assert.Equal(t, MaxErrorsToLog, strings.Count(logs.String(), "Parse error"))
	assert.Contains(t, logs.String(), "5 more parse errors (suppressed)")
}

func TestReadCSVFile_Gzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "paths.csv.gz")
	var buf bytes.Buffer
	gz := pgzip.NewWriter(&buf)
	_, err := gz.Write([]byte(pathsCSV))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	cfgs, err := NewConverter("", nil).ReadCSVFile(path, csvBase(), nil)
	require.NoError(t, err)
	assert.Len(t, cfgs, 3)

	_, err = NewConverter("", nil).ReadCSVFile(filepath.Join(t.TempDir(), "none.csv"), csvBase(), nil)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}
