package noise

import (
	"math"

	"github.com/KI7MT/ki7mt-hf-predict/internal/geo"
)

// Budget is the receiver noise breakdown at the operating frequency.
type Budget struct {
	Atmospheric Component
	ManMade     Component
	Galactic    Component
	// GalacticScreened is true when the ionosphere above the receiver
	// blocks cosmic noise; Galactic is then zero and left out of Total.
	GalacticScreened bool
	Total            Component
}

// Receiver describes the noise environment at the receiver.
type Receiver struct {
	Location geo.Location
	ManMade  ManMade
	// FoF2 overhead the receiver (MHz), used to screen galactic noise.
	FoF2 float64
}

// Compute returns the noise budget for month (0-11), utc hours and f MHz.
//
// Thread-safety: safe for concurrent use if atm is.
func Compute(atm Atmospheric, rx Receiver, month int, utc, f float64) Budget {
	b := Budget{
		Atmospheric: atm.Atmospheric(rx.Location, month, utc, f),
		ManMade:     rx.ManMade.Noise(f),
	}
	parts := []Component{b.Atmospheric, b.ManMade}
	if g, ok := Galactic(f, rx.FoF2); ok {
		b.Galactic = g
		parts = append(parts, g)
	} else {
		b.GalacticScreened = true
	}
	b.Total = Combine(parts...)
	return b
}

// PowerDBW returns the total noise power in dBW for a bandwidth in Hz:
// FamT + 10*log10(B) - 204.
func (b Budget) PowerDBW(bandwidth float64) float64 {
	return b.Total.Fa + 10*math.Log10(bandwidth) - 204
}
