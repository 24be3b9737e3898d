// Package band classifies operating frequencies for HF path predictions.
//
// Implementation: stateless tiered lookup (WSPR segments, amateur
// allocations, shortwave broadcast bands, then ITU frequency class).
// Thread-safety: no shared mutable state, fully reentrant.
package band

import (
	"errors"
	"fmt"
	"math"
)

// Predictable frequency range (MHz) of the sky-wave model.
const (
	MinHF = 2.0
	MaxHF = 30.0
)

// ErrNotHF is returned for frequencies outside MinHF..MaxHF.
var ErrNotHF = errors.New("band: frequency outside 2-30 MHz")

// Band IDs. Frequency classes are 1-11, amateur bands 100+, broadcast
// bands 500+.
const (
	Unknown int32 = 0
	MF      int32 = 4 // 300 kHz - 3 MHz
	HF      int32 = 5 // 3-30 MHz
	VHF     int32 = 6 // 30-300 MHz

	Amateur160m int32 = 102
	Amateur80m  int32 = 103
	Amateur60m  int32 = 104
	Amateur40m  int32 = 105
	Amateur30m  int32 = 106
	Amateur20m  int32 = 107
	Amateur17m  int32 = 108
	Amateur15m  int32 = 109
	Amateur12m  int32 = 110
	Amateur10m  int32 = 111

	Broadcast120m int32 = 500
	Broadcast90m  int32 = 501
	Broadcast75m  int32 = 502
	Broadcast60m  int32 = 503
	Broadcast49m  int32 = 504
	Broadcast41m  int32 = 505
	Broadcast31m  int32 = 506
	Broadcast25m  int32 = 507
	Broadcast22m  int32 = 508
	Broadcast19m  int32 = 509
	Broadcast16m  int32 = 510
	Broadcast15m  int32 = 511
	Broadcast13m  int32 = 512
	Broadcast11m  int32 = 513
)

// Info describes one band.
type Info struct {
	ID         int32   // stored as 'band' in ClickHouse
	Name       string  // stored as 'band_name' in ClickHouse
	Service    string  // "amateur", "broadcast" or the ITU class
	MinFreqMHz float64 // lower edge
	MaxFreqMHz float64 // upper edge
	IsWSPR     bool    // WSPR 200 Hz segment
}

// WSPR segments within the HF amateur bands. Checked first.
var wsprBands = []Info{
	{ID: Amateur160m, Name: "160m", Service: "amateur", MinFreqMHz: 1.8366, MaxFreqMHz: 1.8380, IsWSPR: true},
	{ID: Amateur80m, Name: "80m", Service: "amateur", MinFreqMHz: 3.5926, MaxFreqMHz: 3.5941, IsWSPR: true},
	{ID: Amateur60m, Name: "60m", Service: "amateur", MinFreqMHz: 5.2872, MaxFreqMHz: 5.3662, IsWSPR: true},
	{ID: Amateur40m, Name: "40m", Service: "amateur", MinFreqMHz: 7.0386, MaxFreqMHz: 7.0400, IsWSPR: true},
	{ID: Amateur30m, Name: "30m", Service: "amateur", MinFreqMHz: 10.1387, MaxFreqMHz: 10.1402, IsWSPR: true},
	{ID: Amateur20m, Name: "20m", Service: "amateur", MinFreqMHz: 14.0956, MaxFreqMHz: 14.0972, IsWSPR: true},
	{ID: Amateur17m, Name: "17m", Service: "amateur", MinFreqMHz: 18.1046, MaxFreqMHz: 18.1061, IsWSPR: true},
	{ID: Amateur15m, Name: "15m", Service: "amateur", MinFreqMHz: 21.0946, MaxFreqMHz: 21.0961, IsWSPR: true},
	{ID: Amateur12m, Name: "12m", Service: "amateur", MinFreqMHz: 24.9246, MaxFreqMHz: 24.9261, IsWSPR: true},
	{ID: Amateur10m, Name: "10m", Service: "amateur", MinFreqMHz: 28.1246, MaxFreqMHz: 28.1261, IsWSPR: true},
}

// Full amateur allocations, sorted.
var amateurBands = []Info{
	{ID: Amateur160m, Name: "160m", Service: "amateur", MinFreqMHz: 1.800, MaxFreqMHz: 2.000},
	{ID: Amateur80m, Name: "80m", Service: "amateur", MinFreqMHz: 3.500, MaxFreqMHz: 4.000},
	{ID: Amateur60m, Name: "60m", Service: "amateur", MinFreqMHz: 5.300, MaxFreqMHz: 5.405},
	{ID: Amateur40m, Name: "40m", Service: "amateur", MinFreqMHz: 7.000, MaxFreqMHz: 7.300},
	{ID: Amateur30m, Name: "30m", Service: "amateur", MinFreqMHz: 10.100, MaxFreqMHz: 10.150},
	{ID: Amateur20m, Name: "20m", Service: "amateur", MinFreqMHz: 14.000, MaxFreqMHz: 14.350},
	{ID: Amateur17m, Name: "17m", Service: "amateur", MinFreqMHz: 18.068, MaxFreqMHz: 18.168},
	{ID: Amateur15m, Name: "15m", Service: "amateur", MinFreqMHz: 21.000, MaxFreqMHz: 21.450},
	{ID: Amateur12m, Name: "12m", Service: "amateur", MinFreqMHz: 24.890, MaxFreqMHz: 24.990},
	{ID: Amateur10m, Name: "10m", Service: "amateur", MinFreqMHz: 28.000, MaxFreqMHz: 29.700},
}

// Shortwave broadcast bands (ITU Radio Regulations), sorted.
var broadcastBands = []Info{
	{ID: Broadcast120m, Name: "120m BC", Service: "broadcast", MinFreqMHz: 2.300, MaxFreqMHz: 2.495},
	{ID: Broadcast90m, Name: "90m BC", Service: "broadcast", MinFreqMHz: 3.200, MaxFreqMHz: 3.400},
	{ID: Broadcast75m, Name: "75m BC", Service: "broadcast", MinFreqMHz: 3.900, MaxFreqMHz: 4.000},
	{ID: Broadcast60m, Name: "60m BC", Service: "broadcast", MinFreqMHz: 4.750, MaxFreqMHz: 5.060},
	{ID: Broadcast49m, Name: "49m BC", Service: "broadcast", MinFreqMHz: 5.900, MaxFreqMHz: 6.200},
	{ID: Broadcast41m, Name: "41m BC", Service: "broadcast", MinFreqMHz: 7.200, MaxFreqMHz: 7.450},
	{ID: Broadcast31m, Name: "31m BC", Service: "broadcast", MinFreqMHz: 9.400, MaxFreqMHz: 9.900},
	{ID: Broadcast25m, Name: "25m BC", Service: "broadcast", MinFreqMHz: 11.600, MaxFreqMHz: 12.100},
	{ID: Broadcast22m, Name: "22m BC", Service: "broadcast", MinFreqMHz: 13.570, MaxFreqMHz: 13.870},
	{ID: Broadcast19m, Name: "19m BC", Service: "broadcast", MinFreqMHz: 15.100, MaxFreqMHz: 15.800},
	{ID: Broadcast16m, Name: "16m BC", Service: "broadcast", MinFreqMHz: 17.480, MaxFreqMHz: 17.900},
	{ID: Broadcast15m, Name: "15m BC", Service: "broadcast", MinFreqMHz: 18.900, MaxFreqMHz: 19.020},
	{ID: Broadcast13m, Name: "13m BC", Service: "broadcast", MinFreqMHz: 21.450, MaxFreqMHz: 21.850},
	{ID: Broadcast11m, Name: "11m BC", Service: "broadcast", MinFreqMHz: 25.670, MaxFreqMHz: 26.100},
}

// Lookup returns the band containing freq (MHz).
//
// Tiers: WSPR segments, amateur allocations, broadcast bands, then the
// ITU frequency class. Amateur allocations win where they overlap a
// broadcast band edge.
func Lookup(freq float64) Info {
	for _, table := range [][]Info{wsprBands, amateurBands, broadcastBands} {
		if b, ok := search(freq, table); ok {
			return b
		}
	}
	return classify(freq)
}

// Get returns the band id and name for ClickHouse storage.
func Get(freq float64) (int32, string) {
	b := Lookup(freq)
	return b.ID, b.Name
}

// ValidateHF returns ErrNotHF when freq is outside the predictable range.
func ValidateHF(freq float64) error {
	if math.IsNaN(freq) || freq < MinHF || freq > MaxHF {
		return fmt.Errorf("%.4f MHz: %w", freq, ErrNotHF)
	}
	return nil
}

// IsWSPRFrequency reports whether freq falls within a WSPR segment.
func IsWSPRFrequency(freq float64) bool {
	_, ok := search(freq, wsprBands)
	return ok
}

// search performs a binary search on a sorted, non-overlapping table.
func search(freq float64, bands []Info) (Info, bool) {
	left, right := 0, len(bands)-1
	for left <= right {
		mid := (left + right) / 2
		b := bands[mid]
		if freq >= b.MinFreqMHz && freq <= b.MaxFreqMHz {
			return b, true
		}
		if freq < b.MinFreqMHz {
			right = mid - 1
		} else {
			left = mid + 1
		}
	}
	return Info{}, false
}

func classify(freq float64) Info {
	switch {
	case freq >= 0.3 && freq < 3.0:
		return Info{ID: MF, Name: "MF", Service: "MF", MinFreqMHz: 0.3, MaxFreqMHz: 3.0}
	case freq >= 3.0 && freq < 30.0:
		return Info{ID: HF, Name: "HF", Service: "HF", MinFreqMHz: 3.0, MaxFreqMHz: 30.0}
	case freq >= 30.0 && freq < 300.0:
		return Info{ID: VHF, Name: "VHF", Service: "VHF", MinFreqMHz: 30.0, MaxFreqMHz: 300.0}
	default:
		return Info{ID: Unknown, Name: "Unknown"}
	}
}
