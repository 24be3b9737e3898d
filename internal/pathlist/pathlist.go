// Package pathlist reads path analysis inputs: YAML documents in degrees
// and human units, and CSV lists of paths sharing one document's system
// parameters. Both produce radian p533.PathConfig values.
package pathlist

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"

	"github.com/KI7MT/ki7mt-hf-predict/internal/antenna"
	"github.com/KI7MT/ki7mt-hf-predict/internal/common"
	"github.com/KI7MT/ki7mt-hf-predict/internal/geo"
	"github.com/KI7MT/ki7mt-hf-predict/internal/noise"
	"github.com/KI7MT/ki7mt-hf-predict/internal/p533"
)

// ErrBadDocument is returned for documents that cannot be converted.
var ErrBadDocument = errors.New("pathlist: bad document")

// Document is one YAML path description.
type Document struct {
	Name        string    `yaml:"name"`
	Year        int       `yaml:"year"`
	Month       int       `yaml:"month"` // 1-12
	Hours       []int     `yaml:"hours"` // UTC 1-24
	SSN         float64   `yaml:"ssn"`
	Frequencies []float64 `yaml:"frequencies"` // MHz

	Tx Site `yaml:"tx"`
	Rx Site `yaml:"rx"`

	TxPower     float64 `yaml:"tx_power_dbkw"`
	Bandwidth   float64 `yaml:"bandwidth_hz"`
	SNRr        float64 `yaml:"snr_required_db"`
	Reliability int     `yaml:"reliability_percent"`
	SIRr        float64 `yaml:"sir_required_db"`
	Modulation  string  `yaml:"modulation"` // analog or digital
	Digital     Digital `yaml:"digital"`
	Path        string  `yaml:"path"`           // short or long
	ManMade     string  `yaml:"man_made_noise"` // category name or Fam at 3 MHz
	Orientation string  `yaml:"antenna_orientation"`
}

// Site is one end of the path.
type Site struct {
	Name    string      `yaml:"name"`
	Lat     float64     `yaml:"lat"`
	Lon     float64     `yaml:"lon"`
	Antenna SiteAntenna `yaml:"antenna"`
}

// SiteAntenna names a gain table file; empty or "isotropic" is 0 dBi.
type SiteAntenna struct {
	File       string  `yaml:"file"`
	Bearing    float64 `yaml:"bearing_deg"` // used with MANUAL orientation
	GainOffset float64 `yaml:"gain_offset_db"`
}

// Digital holds the digital modulation parameters.
type Digital struct {
	F0 float64 `yaml:"f0_hz"`
	T0 float64 `yaml:"t0_ms"`
	A  float64 `yaml:"a_db"`
	TW float64 `yaml:"tw_ms"`
	FW float64 `yaml:"fw_hz"`
}

// DefaultDocument returns the defaults filled in for absent fields.
func DefaultDocument() Document {
	return Document{
		Month:       1,
		Hours:       []int{12},
		SSN:         100,
		Frequencies: []float64{14.1},
		Bandwidth:   3000,
		SNRr:        10,
		Reliability: 90,
		SIRr:        3,
		Modulation:  "analog",
		Path:        "short",
		ManMade:     "RURAL",
		Orientation: "TX2RX",
	}
}

func (d *Document) normalize() {
	def := DefaultDocument()
	if d.Month == 0 {
		d.Month = def.Month
	}
	if len(d.Hours) == 0 {
		d.Hours = def.Hours
	}
	if len(d.Frequencies) == 0 {
		d.Frequencies = def.Frequencies
	}
	if d.Bandwidth <= 0 {
		d.Bandwidth = def.Bandwidth
	}
	if d.Reliability == 0 {
		d.Reliability = def.Reliability
	}
	if strings.TrimSpace(d.Modulation) == "" {
		d.Modulation = def.Modulation
	}
	if strings.TrimSpace(d.Path) == "" {
		d.Path = def.Path
	}
	if strings.TrimSpace(d.ManMade) == "" {
		d.ManMade = def.ManMade
	}
	if strings.TrimSpace(d.Orientation) == "" {
		d.Orientation = def.Orientation
	}
	d.Modulation = strings.ToLower(strings.TrimSpace(d.Modulation))
	d.Path = strings.ToLower(strings.TrimSpace(d.Path))
}

// LoadFile reads a YAML document; an empty path returns the defaults.
func LoadFile(path string) (Document, error) {
	doc := DefaultDocument()
	if strings.TrimSpace(path) == "" {
		return doc, nil
	}
	bs, err := os.ReadFile(path)
	if err != nil {
		return doc, err
	}
	if err := yaml.Unmarshal(bs, &doc); err != nil {
		return doc, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	doc.normalize()
	return doc, nil
}

// =============================================================================
// Conversion
// =============================================================================

// Converter turns documents into PathConfigs, loading antenna tables from
// Dir once each.
type Converter struct {
	Dir    string
	Logger *log.Logger

	tables map[string]antenna.Pattern
}

// NewConverter returns a Converter resolving antenna files under dir.
func NewConverter(dir string, logger *log.Logger) *Converter {
	return &Converter{Dir: dir, Logger: logger, tables: make(map[string]antenna.Pattern)}
}

// Configs expands d into one PathConfig per hour and frequency, hours
// outermost. Each config is validated.
func (c *Converter) Configs(d Document) ([]p533.PathConfig, error) {
	d.normalize()
	base, err := c.base(d)
	if err != nil {
		return nil, err
	}
	out := make([]p533.PathConfig, 0, len(d.Hours)*len(d.Frequencies))
	for _, h := range d.Hours {
		if h < 1 || h > 24 {
			return nil, fmt.Errorf("%w: hour %d outside 1-24", ErrBadDocument, h)
		}
		for _, f := range d.Frequencies {
			cfg := base
			cfg.Hour = h - 1
			cfg.Frequency = f
			if err := cfg.Validate(); err != nil {
				return nil, fmt.Errorf("%s %02d UTC %.3f MHz: %w", cfg.Name, h, f, err)
			}
			out = append(out, cfg)
		}
	}
	return out, nil
}

func (c *Converter) base(d Document) (p533.PathConfig, error) {
	cfg := p533.PathConfig{
		Name:        common.SanitizeName(d.Name, "name", c.Logger),
		Year:        d.Year,
		Month:       d.Month - 1,
		SSN:         d.SSN,
		TxPower:     d.TxPower,
		TxName:      common.SanitizeName(d.Tx.Name, "tx.name", c.Logger),
		Tx:          geo.FromDegrees(d.Tx.Lat, d.Tx.Lon),
		RxName:      common.SanitizeName(d.Rx.Name, "rx.name", c.Logger),
		Rx:          geo.FromDegrees(d.Rx.Lat, d.Rx.Lon),
		Bandwidth:   d.Bandwidth,
		SNRr:        d.SNRr,
		Reliability: d.Reliability,
		SIRr:        d.SIRr,
	}

	switch d.Modulation {
	case "analog":
		cfg.Modulation = p533.Analog
	case "digital":
		cfg.Modulation = p533.Digital
		dp := p533.DigitalParams(d.Digital)
		cfg.Digital = &dp
	default:
		return cfg, fmt.Errorf("%w: modulation %q", ErrBadDocument, d.Modulation)
	}

	switch d.Path {
	case "short":
		cfg.Kind = p533.ShortPath
	case "long":
		cfg.Kind = p533.LongPath
	default:
		return cfg, fmt.Errorf("%w: path %q", ErrBadDocument, d.Path)
	}

	mm, err := noise.ParseManMade(d.ManMade)
	if err != nil {
		return cfg, fmt.Errorf("%w: man_made_noise: %v", ErrBadDocument, err)
	}
	cfg.ManMade = mm

	orient, err := antenna.ParseOrientation(d.Orientation)
	if err != nil {
		return cfg, fmt.Errorf("%w: %v", ErrBadDocument, err)
	}
	if cfg.TxAntenna, err = c.loadAntenna(d.Tx.Antenna, orient); err != nil {
		return cfg, err
	}
	if cfg.RxAntenna, err = c.loadAntenna(d.Rx.Antenna, orient); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Converter) loadAntenna(a SiteAntenna, orient antenna.Orientation) (antenna.Descriptor, error) {
	desc := antenna.Descriptor{
		Name:        "isotropic",
		Pattern:     antenna.Isotropic{},
		Orientation: orient,
		Bearing:     a.Bearing * geo.D2R,
		GainOffset:  a.GainOffset,
	}
	file := strings.TrimSpace(a.File)
	if file == "" || strings.EqualFold(file, "isotropic") {
		return desc, nil
	}
	path := file
	if !filepath.IsAbs(path) {
		path = filepath.Join(c.Dir, file)
	}
	p, ok := c.tables[path]
	if !ok {
		t, err := antenna.LoadTable(path, c.Logger)
		if err != nil {
			return desc, fmt.Errorf("antenna %s: %w", file, err)
		}
		if c.tables == nil {
			c.tables = make(map[string]antenna.Pattern)
		}
		c.tables[path] = t
		p = t
	}
	desc.Name = filepath.Base(file)
	desc.Pattern = p
	return desc, nil
}
