package noise

import (
	"errors"
	"fmt"
	"io/fs"
	"math"

	"github.com/charmbracelet/log"

	"github.com/KI7MT/ki7mt-hf-predict/internal/geo"
	"github.com/KI7MT/ki7mt-hf-predict/internal/ionos"
)

// =============================================================================
// Atmospheric noise
// =============================================================================

// Atmospheric returns atmospheric noise at loc for month (0-11), utc hours
// and f MHz.
type Atmospheric interface {
	Atmospheric(loc geo.Location, month int, utc, f float64) Component
}

// Season is a P.372 noise season (three months each, hemisphere adjusted).
type Season int

const (
	NoiseWinter Season = iota
	NoiseSpring
	NoiseSummer
	NoiseAutumn
)

// NoiseSeason returns the P.372 season for month (0-11) at latitude lat.
func NoiseSeason(month int, lat float64) Season {
	s := Season(((month + 1) % 12) / 3)
	if lat < 0 {
		s = (s + 2) % 4
	}
	return s
}

// TimeBlock returns the four-hour local-time block (0-5) for utc at lng.
func TimeBlock(utc, lng float64) int {
	lt := math.Mod(utc+lng*geo.R2D/15, 24)
	if lt < 0 {
		lt += 24
	}
	b := int(lt / 4)
	if b > 5 {
		b = 5
	}
	return b
}

// atFrequency converts a 1 MHz atmospheric noise figure to f MHz.
func atFrequency(fa1, f float64) Component {
	fa := fa1 - (15+0.35*fa1)*math.Log10(f)
	du := math.Max(6, math.Min(12, 8+0.04*(fa1-40)))
	return Component{Fa: fa, Du: du, Dl: 0.75 * du}
}

// Analytic is a smooth stand-in for the P.372 atmospheric noise maps:
// strongest in the tropics at night and in local summer.
type Analytic struct{}

// Atmospheric implements Atmospheric.
func (Analytic) Atmospheric(loc geo.Location, month int, utc, f float64) Component {
	lt := math.Mod(utc+loc.Lng*geo.R2D/15+24, 24)
	night := 0.5 * (1 + math.Cos(2*math.Pi*lt/24))
	c := math.Cos(loc.Lat)
	fa1 := 25 + 55*c*c*(0.6+0.4*night)
	if NoiseSeason(month, loc.Lat) == NoiseSummer {
		fa1 += 5
	}
	return atFrequency(fa1, f)
}

// MapValues is the number of float64 values in atmos.bin: four seasons by
// six time blocks of 73 x 145 grids of Fa at 1 MHz.
const MapValues = 4 * 6 * ionos.GridRows * ionos.GridCols

// AtmosphericMap holds gridded 1 MHz atmospheric noise for every season and
// time block.
type AtmosphericMap struct {
	grids [4][6]ionos.Grid
}

// NewAtmosphericMap wraps the values of an atmos.bin file.
func NewAtmosphericMap(values []float64) (*AtmosphericMap, error) {
	if len(values) != MapValues {
		return nil, fmt.Errorf("atmospheric map: %d values, want %d: %w", len(values), MapValues, ionos.ErrBadCoefficientFile)
	}
	m := &AtmosphericMap{}
	n := ionos.GridRows * ionos.GridCols
	for s := 0; s < 4; s++ {
		for b := 0; b < 6; b++ {
			off := (s*6 + b) * n
			m.grids[s][b] = ionos.Grid(values[off : off+n])
		}
	}
	return m, nil
}

// LoadAtmosphericMap reads atmos.bin (plain, .gz or .zst) from dir.
func LoadAtmosphericMap(dir string, logger *log.Logger) (*AtmosphericMap, error) {
	path, err := ionos.FindFile(dir, "atmos.bin")
	if err != nil {
		return nil, err
	}
	values, err := ionos.ReadFloats(path, logger)
	if err != nil {
		return nil, err
	}
	return NewAtmosphericMap(values)
}

// LoadAtmospheric returns the gridded map from dir, or Analytic when dir is
// empty or holds no atmos.bin.
func LoadAtmospheric(dir string, logger *log.Logger) (Atmospheric, error) {
	if dir == "" {
		return Analytic{}, nil
	}
	m, err := LoadAtmosphericMap(dir, logger)
	if errors.Is(err, fs.ErrNotExist) {
		if logger != nil {
			logger.Warn("no atmospheric noise map, using analytic model", "dir", dir)
		}
		return Analytic{}, nil
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Atmospheric implements Atmospheric.
func (m *AtmosphericMap) Atmospheric(loc geo.Location, month int, utc, f float64) Component {
	g := m.grids[NoiseSeason(month, loc.Lat)][TimeBlock(utc, loc.Lng)]
	return atFrequency(g.At(loc), f)
}
