package antenna

import (
	"bufio"
	"bytes"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"

	"github.com/KI7MT/ki7mt-hf-predict/internal/ionos"
)

// Table dimensions: azimuth 0..360 degrees in 5 degree steps by elevation
// 0..90 degrees in 1 degree steps.
const (
	AzimuthStep   = 5.0
	ElevationStep = 1.0
	AzimuthRows   = 73
	ElevationCols = 91
	TableValues   = AzimuthRows * ElevationCols
)

// Table is a gridded gain pattern, row-major by azimuth.
type Table struct {
	Name  string
	gains []float64
}

// NewTable wraps TableValues gains in dBi.
func NewTable(name string, gains []float64) (*Table, error) {
	if len(gains) != TableValues {
		return nil, fmt.Errorf("%s: %d gains, want %d: %w", name, len(gains), TableValues, ErrBadPattern)
	}
	for i, g := range gains {
		if math.IsNaN(g) || math.IsInf(g, 0) {
			return nil, fmt.Errorf("%s: gain %d not finite: %w", name, i, ErrBadPattern)
		}
	}
	return &Table{Name: name, gains: gains}, nil
}

// Gain implements Pattern with bilinear interpolation. Elevations outside
// 0..90 degrees are clamped.
func (t *Table) Gain(azimuth, elevation float64) float64 {
	az := math.Mod(azimuth*180/math.Pi, 360)
	if az < 0 {
		az += 360
	}
	el := math.Max(0, math.Min(90, elevation*180/math.Pi))

	r := az / AzimuthStep
	c := el / ElevationStep
	r0 := int(r)
	c0 := int(c)
	if r0 >= AzimuthRows-1 {
		r0 = AzimuthRows - 2
	}
	if c0 >= ElevationCols-1 {
		c0 = ElevationCols - 2
	}
	fr := r - float64(r0)
	fc := c - float64(c0)

	g := func(i, j int) float64 { return t.gains[i*ElevationCols+j] }
	return g(r0, c0)*(1-fr)*(1-fc) + g(r0, c0+1)*(1-fr)*fc +
		g(r0+1, c0)*fr*(1-fc) + g(r0+1, c0+1)*fr*fc
}

// LoadTable reads a gain table. Files ending in .bin (optionally .gz or
// .zst compressed) hold float64 little-endian values; anything else is
// text with whitespace-separated gains, '#' starting a comment.
func LoadTable(path string, logger *log.Logger) (*Table, error) {
	name := filepath.Base(path)
	trimmed := strings.TrimSuffix(strings.TrimSuffix(path, ".gz"), ".zst")
	if strings.HasSuffix(trimmed, ".bin") {
		values, err := ionos.ReadFloats(path, logger)
		if err != nil {
			return nil, err
		}
		return NewTable(name, values)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if logger != nil {
		logger.Debug("read antenna table", "file", name, "size", humanize.Bytes(uint64(len(raw))))
	}
	values, err := parseText(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return NewTable(name, values)
}

func parseText(raw []byte) ([]float64, error) {
	values := make([]float64, 0, TableValues)
	sc := bufio.NewScanner(bytes.NewReader(raw))
	line := 0
	for sc.Scan() {
		line++
		text := sc.Text()
		if i := strings.IndexByte(text, '#'); i >= 0 {
			text = text[:i]
		}
		for _, field := range strings.Fields(text) {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: %q: %w", line, field, ErrBadPattern)
			}
			values = append(values, v)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return values, nil
}
