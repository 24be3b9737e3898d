// Package antenna provides antenna gain lookups for transmit and receive
// sites.
//
// A Pattern gives gain in dBi for an azimuth relative to the antenna's
// boresight and an elevation angle, both in radians. A Descriptor places a
// pattern on a site: it fixes the boresight bearing and adds a gain offset.
package antenna

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrBadPattern is returned for malformed antenna pattern files.
var ErrBadPattern = errors.New("antenna: bad pattern")

// Pattern returns gain in dBi.
type Pattern interface {
	Gain(azimuth, elevation float64) float64
}

// Isotropic is a 0 dBi antenna.
type Isotropic struct{}

// Gain implements Pattern.
func (Isotropic) Gain(_, _ float64) float64 { return 0 }

// =============================================================================
// Orientation
// =============================================================================

// Orientation selects how the boresight bearing is chosen.
type Orientation int

const (
	// TX2RX points each antenna along the great-circle bearing toward the
	// other end of the path.
	TX2RX Orientation = iota
	// Manual uses the descriptor's Bearing as given.
	Manual
)

func (o Orientation) String() string {
	switch o {
	case TX2RX:
		return "TX2RX"
	case Manual:
		return "MANUAL"
	default:
		return fmt.Sprintf("Orientation(%d)", int(o))
	}
}

// ParseOrientation accepts TX2RX or MANUAL in any case.
func ParseOrientation(s string) (Orientation, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "TX2RX":
		return TX2RX, nil
	case "MANUAL":
		return Manual, nil
	}
	return 0, fmt.Errorf("unknown orientation %q", s)
}

// Descriptor is an antenna installed at a site.
type Descriptor struct {
	Name        string
	Pattern     Pattern
	Orientation Orientation
	Bearing     float64 // boresight, radians from north
	GainOffset  float64 // dB added to every lookup
}

// Orient returns a copy whose boresight is toward when the orientation is
// TX2RX; a Manual descriptor is returned unchanged.
func (d Descriptor) Orient(toward float64) Descriptor {
	if d.Orientation == TX2RX {
		d.Bearing = toward
	}
	return d
}

// Gain returns the gain in dBi toward a true azimuth and an elevation.
func (d Descriptor) Gain(azimuth, elevation float64) float64 {
	rel := math.Mod(azimuth-d.Bearing, 2*math.Pi)
	if rel < 0 {
		rel += 2 * math.Pi
	}
	return d.Pattern.Gain(rel, elevation) + d.GainOffset
}

// MeanGain returns the gain averaged in power over elevations lo..hi
// (radians) at a true azimuth, sampled at one-degree steps.
func (d Descriptor) MeanGain(azimuth, lo, hi float64) float64 {
	step := math.Pi / 180
	var sum float64
	n := 0
	for el := lo; el <= hi+1e-12; el += step {
		sum += math.Pow(10, d.Gain(azimuth, el)/10)
		n++
	}
	if n == 0 {
		return d.Gain(azimuth, lo)
	}
	return 10 * math.Log10(sum/float64(n))
}

// MaxGain returns the largest gain over elevations lo..hi at a true azimuth.
func (d Descriptor) MaxGain(azimuth, lo, hi float64) float64 {
	step := math.Pi / 180
	best := math.Inf(-1)
	for el := lo; el <= hi+1e-12; el += step {
		best = math.Max(best, d.Gain(azimuth, el))
	}
	return best
}
