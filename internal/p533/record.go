package p533

import (
	"fmt"

	"github.com/KI7MT/ki7mt-hf-predict/internal/geo"
	"github.com/KI7MT/ki7mt-hf-predict/internal/solar"
)

// Version identifies the propagation method implemented by this package.
const Version = "P.533-14"

// Mode table sizes.
const (
	MaxEModes  = 3
	MaxF2Modes = 6
)

// =============================================================================
// Seasons
// =============================================================================

// Season is the local season at the path mid-point.
type Season int

const (
	Winter Season = iota
	Equinox
	Summer
)

func (s Season) String() string {
	switch s {
	case Winter:
		return "WINTER"
	case Equinox:
		return "EQUINOX"
	case Summer:
		return "SUMMER"
	default:
		return fmt.Sprintf("Season(%d)", int(s))
	}
}

// SeasonAt returns the local season for month 0-11 at a latitude in
// radians. Northern winter is November to February, summer May to August;
// the southern hemisphere swaps winter and summer.
func SeasonAt(month int, lat float64) Season {
	var s Season
	switch month {
	case 10, 11, 0, 1:
		s = Winter
	case 4, 5, 6, 7:
		s = Summer
	default:
		s = Equinox
	}
	if lat < 0 {
		s = Summer - s
	}
	return s
}

// =============================================================================
// Modes
// =============================================================================

// Layer is the reflecting layer of a mode.
type Layer int

const (
	NoLayer Layer = iota
	LayerE
	LayerF2
)

func (l Layer) String() string {
	switch l {
	case LayerE:
		return "E"
	case LayerF2:
		return "F2"
	default:
		return "none"
	}
}

// ModeIndex names one propagation mode. The zero value is NoMode.
type ModeIndex struct {
	layer Layer
	hops  int
}

// NoMode is the mode index when no mode is present or the path is long.
var NoMode = ModeIndex{}

// EMode returns the index of the hops-hop E mode (1..MaxEModes).
func EMode(hops int) ModeIndex { return ModeIndex{layer: LayerE, hops: hops} }

// F2Mode returns the index of the hops-hop F2 mode (1..MaxF2Modes).
func F2Mode(hops int) ModeIndex { return ModeIndex{layer: LayerF2, hops: hops} }

func (m ModeIndex) Layer() Layer { return m.layer }
func (m ModeIndex) Hops() int    { return m.hops }
func (m ModeIndex) None() bool   { return m.layer == NoLayer }

func (m ModeIndex) String() string {
	if m.None() {
		return "none"
	}
	return fmt.Sprintf("%d%s", m.hops, m.layer)
}

// ModeRecord holds the analysis of one mode. MUFs are MHz, losses dB,
// field strength dB(uV/m), power dBW, angles radians, delay s.
type ModeRecord struct {
	Active  bool // hop length within the layer's maximum
	Present bool // geometrically possible and not screened

	BMUF    float64
	MUF10   float64
	MUF50   float64
	MUF90   float64
	OPMUF   float64
	OPMUF10 float64
	OPMUF90 float64
	Fprob   float64 // probability the mode is supported at the operating frequency
	Fs      float64 // E-layer screening frequency, F2 modes only

	Hr        float64 // reflection height, km
	Elevation float64
	PPrime    float64 // virtual slant range, km

	Li float64 // absorption
	Lm float64 // above-MUF loss
	Lb float64 // basic transmission loss

	Ew     float64
	Prw    float64
	Deltau float64
	Deltal float64
	Tau    float64 // group delay, s
	Grw    float64 // receive antenna gain at the mode elevation
	Spread float64 // frequency spread, Hz
}

// =============================================================================
// Control points
// =============================================================================

// Control-point slots.
const (
	T1000 = iota // 1000 km from the transmitter
	TD02         // half a hop from the transmitter
	MidPath
	RD02 // half a hop from the receiver
	R1000
	NumControlPoints
)

// ControlPoint is the ionosphere and sun at one point along the path.
type ControlPoint struct {
	Present  bool
	Location geo.Location
	Distance float64 // km from the transmitter

	Dip100  float64 // radians
	Fh100   float64 // MHz
	Dip300  float64
	Fh300   float64
	FoE     float64
	FoF2    float64
	M3kF2   float64
	Hr      float64 // F2 reflection height, km; MidPath only
	Sun     solar.Sun
	GeoMagL float64 // geomagnetic latitude, radians
}

// =============================================================================
// Field strength
// =============================================================================

// FieldStrength is the path-level median field strength. Exactly one of
// *ShortField, *LongField and *BlendField.
type FieldStrength interface {
	// Es returns the short-path field strength when computed.
	Es() (float64, bool)
	// El returns the long-path composite field strength when computed.
	El() (float64, bool)
	// Ei returns the interpolated field strength for 7000-9000 km.
	Ei() (float64, bool)
	// Value returns the field strength that drives the received power.
	Value() float64
	isFieldStrength()
}

// ShortField is used below 7000 km.
type ShortField struct {
	Lz    float64 // loss not otherwise included, dB
	Field float64 // Es
}

// LongField is the composite-mode method used from 9000 km.
type LongField struct {
	E0    float64
	Gap   float64 // antipodal focusing gain, dB
	Ly    float64
	FM    float64 // upper reference frequency, MHz
	FL    float64 // lower reference frequency, MHz
	K     [2]float64
	FD    [2]float64 // reference MUFs at T+dM/2 and R-dM/2
	FH    float64    // mean gyrofrequency, MHz
	F     float64    // frequency-dependent attenuation term
	Gtl   float64    // tx gain averaged over 0-8 degrees elevation
	Grw   float64    // rx gain averaged over 0-8 degrees elevation
	DM    float64    // hop length, km
	Hops  int
	Field float64 // El
	// Interp is set only at exactly 9000 km where Ei equals El.
	Interp *float64
}

// BlendField interpolates between the two methods for 7000-9000 km.
type BlendField struct {
	Short ShortField
	Long  LongField
	Field float64 // Ei
}

func (s *ShortField) Es() (float64, bool) { return s.Field, true }
func (s *ShortField) El() (float64, bool) { return 0, false }
func (s *ShortField) Ei() (float64, bool) { return 0, false }
func (s *ShortField) Value() float64      { return s.Field }
func (*ShortField) isFieldStrength()      {}

func (l *LongField) Es() (float64, bool) { return 0, false }
func (l *LongField) El() (float64, bool) { return l.Field, true }
func (l *LongField) Ei() (float64, bool) {
	if l.Interp == nil {
		return 0, false
	}
	return *l.Interp, true
}
func (l *LongField) Value() float64 { return l.Field }
func (*LongField) isFieldStrength() {}

func (b *BlendField) Es() (float64, bool) { return b.Short.Field, true }
func (b *BlendField) El() (float64, bool) { return b.Long.Field, true }
func (b *BlendField) Ei() (float64, bool) { return b.Field, true }
func (b *BlendField) Value() float64      { return b.Field }
func (*BlendField) isFieldStrength()      {}

// =============================================================================
// Statistics
// =============================================================================

// NoiseStats is the receiver noise in dB above kT0b at the operating
// frequency with upper and lower decile deviations.
type NoiseStats struct {
	FaA, DuA, DlA  float64 // atmospheric
	FaM, DuM, DlM  float64 // man-made
	FaG, DuG, DlG  float64 // galactic
	FamT, DuT, DlT float64
	Screened       bool // galactic noise screened by the ionosphere
	Power          float64
}

// SNRStats holds the signal-to-noise ratio in dB.
type SNRStats struct {
	SNR   float64
	DuSN  float64
	DlSN  float64
	SNRXX float64 // SNR exceeded for the required percentage of days
	DuS   float64 // signal upper decile deviation
	DlS   float64
}

// SIRStats holds the signal-to-interference ratio between the dominant
// mode and the other modes.
type SIRStats struct {
	SIR  float64
	DuSI float64
	DlSI float64
}

// Reliability holds percentages 0-100 except ProbOcc which is 0-1.
type Reliability struct {
	BCR     float64 // basic circuit reliability
	RSN     float64 // probability the SNR requirement is met
	RT      float64 // probability the time spread is tolerated
	RF      float64 // probability the frequency spread is tolerated
	MIR     float64 // multimode interference reliability
	OCR     float64 // overall circuit reliability
	OCRs    float64 // overall circuit reliability with scattering
	ProbOcc float64 // probability of spread-F scattering
}

// =============================================================================
// PathRecord
// =============================================================================

// PathRecord is the result of one analysis.
type PathRecord struct {
	Config PathConfig

	Distance   float64 // km along the route
	Azimuth    float64 // radians at Tx
	Back       float64 // radians at Rx
	Degenerate bool    // antipodal or coincident endpoints
	Season     Season

	Dmax     float64 // maximum F2 hop length at mid-path, km
	LowestE  int     // hops of the lowest-order E mode, 0 when none
	LowestF2 int     // hops of the lowest-order F2 mode, 0 when none

	BMUF    float64
	MUF10   float64
	MUF50   float64
	MUF90   float64
	OPMUF   float64
	OPMUF10 float64
	OPMUF90 float64

	CP      [NumControlPoints]ControlPoint
	ModesE  [MaxEModes]ModeRecord
	ModesF2 [MaxF2Modes]ModeRecord

	Dominant    ModeIndex
	Field       FieldStrength
	Pr          float64 // median received power, dBW
	RxElevation float64 // radians

	Noise       NoiseStats
	SNR         SNRStats
	SIR         SIRStats
	Reliability Reliability
}

// Mode returns the record for a mode index, or nil for NoMode.
func (r *PathRecord) Mode(m ModeIndex) *ModeRecord {
	switch {
	case m.layer == LayerE && m.hops >= 1 && m.hops <= MaxEModes:
		return &r.ModesE[m.hops-1]
	case m.layer == LayerF2 && m.hops >= 1 && m.hops <= MaxF2Modes:
		return &r.ModesF2[m.hops-1]
	}
	return nil
}

// Modes calls fn for every present mode, E modes first.
func (r *PathRecord) Modes(fn func(ModeIndex, *ModeRecord)) {
	for i := range r.ModesE {
		if r.ModesE[i].Present {
			fn(EMode(i+1), &r.ModesE[i])
		}
	}
	for i := range r.ModesF2 {
		if r.ModesF2[i].Present {
			fn(F2Mode(i+1), &r.ModesF2[i])
		}
	}
}

// ShortMethod reports whether the per-mode analysis was run.
func (r *PathRecord) ShortMethod() bool { return r.Distance < ShortLimit }

// LongMethod reports whether the composite long-path method was run.
func (r *PathRecord) LongMethod() bool { return r.Distance >= BlendStart }
