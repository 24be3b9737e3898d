// Package solar provides solar inputs to the propagation model: the
// sunspot indices written by the lab's solar ingest tools, the 12-month
// smoothed sunspot number derived from them, and the sun's position seen
// from a control point.
package solar

import (
	"errors"
	"time"
)

// ErrInsufficientData is returned when the 13-month smoothing window is not
// fully covered by monthly indices.
var ErrInsufficientData = errors.New("solar: insufficient monthly indices for smoothing")

// Index represents one row of solar.indices_raw.
type Index struct {
	Date         time.Time `ch:"date"`
	ObservedFlux float32   `ch:"observed_flux"` // F10.7 observed (sfu)
	AdjustedFlux float32   `ch:"adjusted_flux"` // F10.7 adjusted to 1 AU
	SSN          float32   `ch:"ssn"`           // Sunspot number
	KpIndex      float32   `ch:"kp_index"`      // Planetary K-index
	ApIndex      float32   `ch:"ap_index"`      // Planetary A-index
}

// SchemaVersion is the current solar schema version.
const SchemaVersion = 2

// MaxSSN is the largest smoothed sunspot number the model accepts.
const MaxSSN = 400.0

// SmoothedSSN returns the 12-month smoothed sunspot number R12 centred on
// year/month (month is 1-12). indices may hold daily or monthly rows; they
// are first averaged per calendar month. The classic 13-month running mean
// is used, with the two end months weighted by one half.
func SmoothedSSN(indices []Index, year int, month time.Month) (float64, error) {
	type acc struct {
		sum float64
		n   int
	}
	monthly := make(map[int]*acc)
	for _, ix := range indices {
		d := ix.Date.UTC()
		k := d.Year()*12 + int(d.Month()) - 1
		a, ok := monthly[k]
		if !ok {
			a = &acc{}
			monthly[k] = a
		}
		a.sum += float64(ix.SSN)
		a.n++
	}

	centre := year*12 + int(month) - 1
	var total float64
	for off := -6; off <= 6; off++ {
		a, ok := monthly[centre+off]
		if !ok || a.n == 0 {
			return 0, ErrInsufficientData
		}
		w := 1.0
		if off == -6 || off == 6 {
			w = 0.5
		}
		total += w * a.sum / float64(a.n)
	}
	r12 := total / 12
	if r12 < 0 {
		r12 = 0
	}
	if r12 > MaxSSN {
		r12 = MaxSSN
	}
	return r12, nil
}
