package ionos

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// =============================================================================
// File Operations
// =============================================================================

// Suffixes tried, in order, for every coefficient file name.
var fileSuffixes = []string{"", ".gz", ".zst"}

// MmapFile memory-maps a file for zero-copy reading.
// Returns the mapped data and file handle (must call UnmapFile when done).
func MmapFile(path string) ([]byte, *os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	if info.Size() == 0 {
		f.Close()
		return nil, nil, fmt.Errorf("%s: empty file: %w", path, ErrBadCoefficientFile)
	}
	data, err := syscall.Mmap(int(f.Fd()), 0, int(info.Size()), syscall.PROT_READ, syscall.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("mmap failed: %w", err)
	}
	return data, f, nil
}

// UnmapFile releases mmap resources.
func UnmapFile(data []byte, f *os.File) {
	syscall.Munmap(data)
	if f != nil {
		f.Close()
	}
}

// FindFile returns the first existing variant of base (plain, .gz, .zst).
func FindFile(dir, base string) (string, error) {
	for _, suffix := range fileSuffixes {
		p := filepath.Join(dir, base+suffix)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("%s: %w", filepath.Join(dir, base), fs.ErrNotExist)
}

// readRaw returns the decompressed bytes of path. Plain files are mapped,
// copied out and unmapped.
func readRaw(path string) ([]byte, error) {
	switch {
	case strings.HasSuffix(path, ".gz"):
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		gz, err := gzip.NewReader(bufio.NewReader(f))
		if err != nil {
			return nil, fmt.Errorf("%s: gzip: %w", path, err)
		}
		defer gz.Close()
		return io.ReadAll(gz)
	case strings.HasSuffix(path, ".zst"):
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		zr, err := zstd.NewReader(bufio.NewReader(f), zstd.WithDecoderConcurrency(0))
		if err != nil {
			return nil, fmt.Errorf("%s: zstd: %w", path, err)
		}
		defer zr.Close()
		return io.ReadAll(zr)
	default:
		data, f, err := MmapFile(path)
		if err != nil {
			return nil, err
		}
		defer UnmapFile(data, f)
		out := make([]byte, len(data))
		copy(out, data)
		return out, nil
	}
}

// DecodeFloats decodes little-endian IEEE-754 float64 values.
func DecodeFloats(raw []byte) ([]float64, error) {
	if len(raw)%8 != 0 {
		return nil, fmt.Errorf("%d bytes is not a whole number of float64: %w", len(raw), ErrBadCoefficientFile)
	}
	out := make([]float64, len(raw)/8)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[i*8:]))
	}
	return out, nil
}

// EncodeFloats is the inverse of DecodeFloats.
func EncodeFloats(values []float64) []byte {
	out := make([]byte, len(values)*8)
	for i, v := range values {
		binary.LittleEndian.PutUint64(out[i*8:], math.Float64bits(v))
	}
	return out
}

// ReadFloats reads a float64 file (plain, .gz or .zst).
func ReadFloats(path string, logger *log.Logger) ([]float64, error) {
	raw, err := readRaw(path)
	if err != nil {
		return nil, err
	}
	if logger != nil {
		logger.Debug("read coefficient file", "file", filepath.Base(path), "size", humanize.Bytes(uint64(len(raw))))
	}
	values, err := DecodeFloats(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return values, nil
}

// =============================================================================
// Loaders
// =============================================================================

// MonthFileName returns the base name of the coefficient file for month
// (0-11).
func MonthFileName(month int) string {
	return fmt.Sprintf("ionos%02d.bin", month+1)
}

// LoadCoefficients reads ionos01.bin .. ionos12.bin from dir. Missing months
// are left empty and reported as ErrCoefficientMissing when queried; a
// directory with no month files at all is an error.
func LoadCoefficients(dir string, logger *log.Logger) (*CoefficientSet, error) {
	set := &CoefficientSet{}
	loaded := 0
	for m := 0; m < 12; m++ {
		path, err := FindFile(dir, MonthFileName(m))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		values, err := ReadFloats(path, logger)
		if err != nil {
			return nil, err
		}
		maps, err := NewMonthMaps(values)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		set.Months[m] = maps
		loaded++
	}
	if loaded == 0 {
		return nil, fmt.Errorf("no month files in %s: %w", dir, ErrCoefficientMissing)
	}
	if logger != nil {
		logger.Info("loaded foF2/M(3000)F2 maps", "dir", dir, "months", loaded)
	}
	return set, nil
}

// LoadMagneticGrid reads dip100.bin, dip300.bin, fh100.bin and fh300.bin
// from dir.
func LoadMagneticGrid(dir string, logger *log.Logger) (*MagneticGrid, error) {
	grid := &MagneticGrid{}
	targets := []struct {
		name string
		dst  *Grid
	}{
		{"dip100.bin", &grid.Dip100},
		{"dip300.bin", &grid.Dip300},
		{"fh100.bin", &grid.Fh100},
		{"fh300.bin", &grid.Fh300},
	}
	for _, t := range targets {
		path, err := FindFile(dir, t.name)
		if err != nil {
			return nil, err
		}
		values, err := ReadFloats(path, logger)
		if err != nil {
			return nil, err
		}
		*t.dst = Grid(values)
	}
	if err := grid.Validate(); err != nil {
		return nil, err
	}
	if logger != nil {
		logger.Info("loaded magnetic grids", "dir", dir)
	}
	return grid, nil
}

// Load builds an Environment from dir. An empty dir, or one without
// coefficient files, yields the analytic environment; files that exist but
// cannot be read are errors.
func Load(dir string, logger *log.Logger) (*Environment, error) {
	if dir == "" {
		return NewEnvironment(), nil
	}
	var opts []Option

	coeffs, err := LoadCoefficients(dir, logger)
	switch {
	case err == nil:
		opts = append(opts, WithCoefficients(coeffs))
	case errors.Is(err, ErrCoefficientMissing):
		if logger != nil {
			logger.Warn("no coefficient files, using analytic F2 model", "dir", dir)
		}
	default:
		return nil, err
	}

	grid, err := LoadMagneticGrid(dir, logger)
	switch {
	case err == nil:
		opts = append(opts, WithMagneticField(grid))
	case errors.Is(err, fs.ErrNotExist):
		if logger != nil {
			logger.Warn("no magnetic grids, using centred dipole", "dir", dir)
		}
	default:
		return nil, err
	}
	return NewEnvironment(opts...), nil
}
