// Package report renders PathRecords as the plain-text path data dump.
//
// Implementation: Dump writes one record in a fixed section order
// (inputs, distances, MUFs, modes, season, field strength, method
// parameters, noise, SNR, SIR, reliability, per-mode tables, control
// points). Header and Tail bracket a report file; Writer manages the file.
// Thread-safety: Dump, Header and Tail are stateless; a Writer is not safe
// for concurrent use.
package report

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/golang/geo/s1"

	"github.com/KI7MT/ki7mt-hf-predict/internal/antenna"
	"github.com/KI7MT/ki7mt-hf-predict/internal/noise"
	"github.com/KI7MT/ki7mt-hf-predict/internal/p533"
	"github.com/KI7MT/ki7mt-hf-predict/internal/solar"
)

// ToolVersion is printed in the report header. Commands set it from their
// own build version.
var ToolVersion = "dev"

const (
	stars   = "**********************************************************\n"
	rule    = "---------------------------------------------------------------------------\n"
	noValue = "n/a"
)

var months = [12]string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

var seasons = map[p533.Season]string{
	p533.Winter:  "Winter",
	p533.Equinox: "Equinox",
	p533.Summer:  "Summer",
}

// Control point names and titles. The second half is used above 9000 km
// where the slots hold the long-path points.
var (
	cpNames = [2][p533.NumControlPoints]string{
		{"     T + 1000      ", "     T + d0/2      ", "      MidPath      ", "     R - d0/2      ", "    R - 1000       "},
		{"Nearest Transmitter", "     T + dM/2      ", "      MidPath      ", "      R - dM/2     ", " Nearest Receiver  "},
	}
	cpTitles = [2][p533.NumControlPoints]string{
		{"  Control Point  ", "  Control Point  ", "  Control Point  ", "  Control Point  ", "  Control Point  "},
		{"Penetration Point", "  Control Point  ", "  Control Point  ", "  Control Point  ", "Penetration Point"},
	}
)

// =============================================================================
// Coordinate and time helpers
// =============================================================================

// Degrees returns the whole degrees of a coordinate in degrees.
func Degrees(coord float64) int {
	return int(coord)
}

// Minutes returns the unsigned arc minutes of a coordinate in degrees.
func Minutes(coord float64) int {
	return abs(int((coord - math.Trunc(coord)) * 60))
}

// Seconds returns the unsigned arc seconds of a coordinate in degrees.
func Seconds(coord float64) int {
	m := (coord - math.Trunc(coord)) * 60
	return abs(int((m - math.Trunc(m)) * 60))
}

// Hrs returns the hour of a fractional time of day.
func Hrs(t float64) int {
	return int(t) % 24
}

// Mns returns the minutes of a fractional time of day.
func Mns(t float64) int {
	return abs(int((t - math.Trunc(t)) * 60))
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func deg(rad float64) float64 {
	return s1.Angle(rad).Degrees()
}

// zone returns the whole-hour time zone of a longitude in radians.
func zone(lng float64) int {
	return int(deg(lng) / 15)
}

// =============================================================================
// Header and tail
// =============================================================================

// Header writes the block printed once at the top of a report file.
func Header(w io.Writer, prepared time.Time) error {
	_, err := fmt.Fprintf(w, "%s"+
		" International Telecommunications Union - Radiocommunication Sector (ITU-R)\n"+
		"     ki7mt-hf-predict   Ver %s\n"+
		"     HF Model (P533)    Ver %s\n"+
		"     Noise Model (P372) Ver %s\n"+
		"     Analysis Prepared  %s\n"+
		"%s\n",
		rule, ToolVersion, p533.Version, noise.Version, prepared.Format(time.ANSIC), rule)
	return err
}

// Tail writes the closing copyright block.
func Tail(w io.Writer) error {
	_, err := io.WriteString(w, "Copyright  International Telecommunication Union (ITU) 2019\n"+
		"All rights reserved.\n")
	return err
}

// =============================================================================
// Dump
// =============================================================================

// printer accumulates the first write error.
type printer struct {
	w   *bufio.Writer
	err error
}

func (p *printer) f(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

func (p *printer) banner(title string) {
	p.f(stars)
	p.f("*%-56s*\n", centre(title, 56))
	p.f(stars)
}

func centre(s string, width int) string {
	pad := (width - len(s)) / 2
	if pad <= 0 {
		return s
	}
	return fmt.Sprintf("%*s%s", pad, "", s)
}

// optional formats a value or n/a.
func optional(v float64, ok bool) string {
	if !ok {
		return noValue
	}
	return fmt.Sprintf("% 5.3f", v)
}

// Dump writes rec in the path data dump layout.
func Dump(w io.Writer, rec *p533.PathRecord) error {
	p := &printer{w: bufio.NewWriter(w)}
	cfg := &rec.Config

	p.banner("DumpPathData - p533() Path data structure")
	inputs(p, rec)

	p.banner("Calculated Parameters")
	p.f("****************** Distances (km) ************************\n")
	p.f("\tdistance = % 5.3f\n", rec.Distance)
	var slant float64
	if dom := rec.Mode(rec.Dominant); dom != nil {
		slant = dom.PPrime
	}
	p.f("\tslant range = % 5.3f\n", slant)
	p.f("\tdmax     = % 5.3f\n", rec.Dmax)

	p.f("************ Maximum Usable Frequencies (MHz) ************\n")
	p.f("\tbasic MUF       = % 5.3f\n", rec.BMUF)
	p.f("\t10%% MUF         = % 5.3f\n", rec.MUF10)
	p.f("\t50%% MUF         = % 5.3f\n", rec.MUF50)
	p.f("\t90%% MUF         = % 5.3f\n", rec.MUF90)
	p.f("\tOperational MUF = % 5.3f\n", rec.OPMUF)
	p.f("\t10%% OPMUF       = % 5.3f\n", rec.OPMUF10)
	p.f("\t90%% OPMUF       = % 5.3f\n", rec.OPMUF90)

	p.f("********* Lowest Order and Dominant Mode *****************\n")
	p.f("\tlowest order F2 layer mode = %s\n", lowest(rec.LowestF2))
	p.f("\tlowest order E layer mode = %s\n", lowest(rec.LowestE))
	switch rec.Dominant.Layer() {
	case p533.LayerE:
		p.f("\tDominant mode: E layer mode %d\n", rec.Dominant.Hops())
	case p533.LayerF2:
		p.f("\tDominant mode: F2 layer mode %d\n", rec.Dominant.Hops())
	default:
		p.f("\tNo Dominant mode for this path length\n")
	}

	p.f("************************ Season ***************************\n")
	p.f("\tseason = %s\n", seasons[rec.Season])

	p.f("****** Field Strength (dB(1 uV/m)) and Rx Power (dBW) *****\n")
	var es, ei, el string
	if rec.Field != nil {
		es = optional(rec.Field.Es())
		ei = optional(rec.Field.Ei())
		el = optional(rec.Field.El())
	} else {
		es, ei, el = noValue, noValue, noValue
	}
	p.f("\tField Strength (7000 km > D)           = %s\n", es)
	p.f("\tField Strength (7000 km < D < 9000 km) = %s\n", ei)
	p.f("\tField Strength           (D > 9000 km) = %s\n", el)
	p.f("\tMedian Rx power = % 5.3f\n", rec.Pr)
	p.f("**************** Rx Elevation Angle (degs)****************\n")
	p.f("\tRx Elevation angle = % 5.3f\n", deg(rec.RxElevation))

	if rec.Distance < p533.ShortLimit {
		p.f("***************** Short Path Parameters *******************\n")
		p.f("\t\"Not otherwise included loss\" (dB) = % 5.3f\n", p533.Lz)
	}
	if lf := longField(rec.Field); rec.Distance > p533.BlendStart && lf != nil {
		longBlock(p, lf)
	}

	n := &rec.Noise
	p.f("***************** Noise Parameters (dB) *******************\n")
	p.f("\tAtmospheric noise upper decile = % 5.3f\n", n.DuA)
	p.f("\tAtmospheric noise lower decile = % 5.3f\n", n.DlA)
	p.f("\tAtmospheric noise              = % 5.3f\n", n.FaA)
	p.f("\tMan made noise upper decile    = % 5.3f\n", n.DuM)
	p.f("\tMan made noise lower decile    = % 5.3f\n", n.DlM)
	p.f("\tMan made noise                 = % 5.3f\n", n.FaM)
	p.f("\tGalactic noise upper decile    = % 5.3f\n", n.DuG)
	p.f("\tGalactic noise lower decile    = % 5.3f\n", n.DlG)
	p.f("\tGalactic noise                 = % 5.3f\n", n.FaG)
	p.f("\tTotal noise upper decile       = % 5.3f\n", n.DuT)
	p.f("\tTotal noise lower decile       = % 5.3f\n", n.DlT)
	p.f("\tTotal noise                    = % 5.3f\n", n.FamT)

	s := &rec.SNR
	p.f("********************** SNR Parameters (dB) *************************************\n")
	p.f("\tMonthly median resultant signal-to-noise ratio = % 5.3f\n", s.SNR)
	p.f("\tUpper decile deviation signal-to-noise ratio   = % 5.3f\n", s.DuSN)
	p.f("\tLower decile deviation signal-to-noise ratio   = % 5.3f\n", s.DlSN)
	p.f("\tSignal-to-noise exceeded for %d%% of the month  = % 5.3f\n", cfg.Reliability, s.SNRXX)

	p.f("********************** SIR Parameters (dB) *************************************\n")
	p.f("\tSignal-to-interference ratio = % 5.3f\n", rec.SIR.SIR)
	p.f("\tUpper decile deviation of the signal-to-interference ratio = % 5.3f\n", rec.SIR.DuSI)
	p.f("\tLower decile deviation of the signal-to-interference ratio = % 5.3f\n", rec.SIR.DlSI)

	r := &rec.Reliability
	p.f("******************** Reliability Parameters (%%) *******************************\n")
	p.f("\tBasic Circuit Reliability                      = % 5.3f\n", r.BCR)
	p.f("\tMultimode Interference                         = % 5.3f\n", r.MIR)
	p.f("\tOverall Circuit Reliability without scattering = % 5.3f\n", r.OCR)
	p.f("\tOverall Circuit Reliability with scattering    = % 5.3f\n", r.OCRs)
	p.f("\tProbability of scattering                      = % 5.3f\n", r.ProbOcc)
	p.f("\tProbability required SNR is achieved                      = % 5.3f\n", r.RSN)
	p.f("\tProbability required time spread T0 is not exceeded       = % 5.3f\n", r.RT)
	p.f("\tProbability required frequency spread f0 is not exceeded  = % 5.3f\n", r.RF)

	if rec.Distance < p533.ShortLimit {
		for i := range rec.ModesF2 {
			modeBlock(p, fmt.Sprintf("F2 Mode %d", i+1), &rec.ModesF2[i], true)
		}
		for i := range rec.ModesE {
			modeBlock(p, fmt.Sprintf("E Mode %d", i+1), &rec.ModesE[i], false)
		}
	}

	names := 0
	if rec.Distance > p533.ShortLimit {
		names = 1
	}
	for i := range rec.CP {
		controlPoint(p, rec, i, names)
	}

	p.banner("End DumpPathData()")
	if p.err != nil {
		return p.err
	}
	return p.w.Flush()
}

func inputs(p *printer, rec *p533.PathRecord) {
	cfg := &rec.Config
	p.banner("Input Parameters")
	p.f("\t%s\n", cfg.Name)
	p.f("\tYear = %d\n", cfg.Year)
	p.f("\tMonth = %s\n", months[cfg.Month])
	p.f("\tHour  = %d (hour UTC)\n", cfg.Hour+1)
	p.f("\tSSN (R12) = %d\n", int(cfg.SSN))
	p.f("\tTx power = % 5.3f (dB(1kW))\n", cfg.TxPower)
	p.f("\tTx Location %s\n", cfg.TxName)
	coord(p, "Tx latitude ", cfg.Tx.Lat)
	coord(p, "Tx longitude", cfg.Tx.Lng)
	p.f("\tRx Location %s\n", cfg.RxName)
	coord(p, "Rx latitude ", cfg.Rx.Lat)
	coord(p, "Rx longitude", cfg.Rx.Lng)
	p.f("\tlocal time Rx   = %02d (hour UTC)\n", cfg.Hour+1+zone(cfg.Rx.Lng))
	p.f("\tlocal time Tx   = %02d (hour UTC)\n", cfg.Hour+1+zone(cfg.Tx.Lng))
	p.f("\tFrequency = % 5.3f (MHz)\n", cfg.Frequency)
	p.f("\tBandwidth = % 5.3f (Hz)\n", cfg.Bandwidth)
	if cfg.Kind == p533.LongPath {
		p.f("\tShort or Long Path = Long\n")
	} else {
		p.f("\tShort or Long Path = Short\n")
	}
	p.f("\tModulation = %s\n", cfg.Modulation)
	p.f("\tRequired signal-to-noise ratio = % 5.3f\n", cfg.SNRr)
	p.f("\tRequired Reliability (%%) = % d\n", cfg.Reliability)
	p.f("\tRequired signal-to-interference ratio = % 5.3f\n", cfg.SIRr)
	if cfg.ManMade.Category == noise.Numeric {
		p.f("\tMan-made noise = % 5.3f (dB)\n", cfg.ManMade.At3MHz)
	} else {
		p.f("\tMan-made noise = %s\n", cfg.ManMade)
	}

	if d := cfg.Digital; d != nil {
		p.f("\tFrequency dispersion for simple BCR (F0) = % 5.3f (Hz)\n", d.F0)
		p.f("\tTime spread for simple BCR (T0)          = % 5.3f (mS)\n", d.T0)
		p.f("\tRequired Amplitude ratio (A)             = % 5.3f (dB)\n", d.A)
		p.f("\tTime window                              = % 5.3f (mS)\n", d.TW)
		p.f("\tFrequency window                         = % 5.3f (Hz)\n", d.FW)
	}

	switch cfg.TxAntenna.Orientation {
	case antenna.TX2RX:
		p.f("\tAntenna configuration: Transmitter main beam to receiver main beam\n")
	case antenna.Manual:
		p.f("\tAntenna configuration: User determined\n")
	default:
		p.f("\tAntenna configuration: UNKNOWN\n")
	}
	tx := cfg.TxAntenna.Orient(rec.Azimuth)
	rx := cfg.RxAntenna.Orient(rec.Back)
	p.f("\tTransmit antenna %.40s\n", tx.Name)
	p.f("\tTransmit antenna bearing = %f\n", deg(tx.Bearing))
	p.f("\tTransmit antenna gain offset = %f\n", tx.GainOffset)
	p.f("\tReceive antenna  %.40s\n", rx.Name)
	p.f("\tReceive antenna bearing = %f\n", deg(rx.Bearing))
	p.f("\tReceive antenna gain offset = %f\n", rx.GainOffset)
}

func coord(p *printer, label string, rad float64) {
	d := deg(rad)
	p.f("\t%s = % 5.3f (% 5.3f) [% d %d %d]\n", label, rad, d, Degrees(d), Minutes(d), Seconds(d))
}

func lowest(hops int) string {
	if hops == 0 {
		return "No Mode"
	}
	return fmt.Sprintf("%2d", hops)
}

func longField(f p533.FieldStrength) *p533.LongField {
	switch v := f.(type) {
	case *p533.LongField:
		return v
	case *p533.BlendField:
		return &v.Long
	}
	return nil
}

func longBlock(p *printer, lf *p533.LongField) {
	p.f("***************** Long Path Parameters *******************\n")
	p.f("\tFree-space Field Strength 3 MW e.i.r.p. (dB(1uV/m) = % 5.3f\n", lf.E0)
	p.f("\tIncreased Long Distance Field Strength due to Focusing (dB) = % 5.3f\n", lf.Gap)
	p.f("\t\"Not otherwise included loss\" (dB) = % 5.3f\n", lf.Ly)
	p.f("\tUpper Reference Frequency (MHz)      = % 5.3f\n", lf.FM)
	p.f("\tLower Reference Frequency (MHz)      = % 5.3f\n", lf.FL)
	p.f("\tCorrection Factor at T + dM/2        = % 5.3f\n", lf.K[0])
	p.f("\tCorrection Factor at R - dM/2        = % 5.3f\n", lf.K[1])
	p.f("\tMax Antenna Gain G_tl (0 to 8 deg)   = % 5.3f\n", lf.Gtl)
	p.f("\tMax Antenna Gain G_w (0 to 8 deg)    = % 5.3f\n", lf.Grw)
	p.f("\tMean gyrofrequency (T + dM/2 & R - dM/2) = % 5.3f\n", lf.FH)
	p.f("\tScale factor f(f ,fL, fM, fH)        = % 5.3f\n", lf.F)
}

func modeBlock(p *printer, title string, m *p533.ModeRecord, f2 bool) {
	p.banner(title)
	p.f("\tbasic MUF  = % 5.3f (MHz)\n", m.BMUF)
	p.f("\t10%% MUF    = % 5.3f (MHz)\n", m.MUF10)
	p.f("\t50%% MUF    = % 5.3f (MHz)\n", m.MUF50)
	p.f("\t90%% MUF    = % 5.3f (MHz)\n", m.MUF90)
	p.f("\tOPMUF      = % 5.3f (MHz)\n", m.OPMUF)
	p.f("\t10%% OPMUF  = % 5.3f (MHz)\n", m.OPMUF10)
	p.f("\t90%% OPMUF  = % 5.3f (MHz)\n", m.OPMUF90)
	p.f("\tFprob        = % 5.3f (%%)\n", m.Fprob)
	p.f("\tLower decile = % 5.3f\n", m.Deltal)
	p.f("\tUpper decile = % 5.3f\n", m.Deltau)
	if f2 {
		p.f("\tE Layer Screen Frequency  = % 5.3f (MHz)\n", m.Fs)
	}
	p.f("\tBasic Loss (< 7000 km)    = % 5.3f (dB)\n", m.Lb)
	p.f("\tMedian Field Strength     = % 5.3f (dB(1 uV/m))\n", m.Ew)
	p.f("\tReceiver Power            = % 5.3f (dBW)\n", m.Prw)
	p.f("\tDelay                     = % 5.3f (mS)\n", m.Tau*1000)
	p.f("\tElevation angle   = % 5.3f (degs)\n", deg(m.Elevation))
	p.f("\tReflection height = % 5.3f (km)\n", m.Hr)
	p.f("\tReceiver Gain = % 5.3f (dBi)\n", m.Grw)
}

func controlPoint(p *printer, rec *p533.PathRecord, i, names int) {
	cp := &rec.CP[i]
	p.f(stars)
	p.f("*          %s - %s       *\n", cpTitles[names][i], cpNames[names][i])
	p.f(stars)
	if !cp.Present {
		p.f("\tnot used for this path length\n")
		return
	}
	for _, c := range []struct {
		label string
		rad   float64
	}{{"Latitude", cp.Location.Lat}, {"Longitude", cp.Location.Lng}} {
		d := deg(c.rad)
		p.f("\t%s\t=\t% 5.3f\t(% 5.3f)\t[%d %d %d]\n", c.label, c.rad, d, Degrees(d), Minutes(d), Seconds(d))
	}
	p.f("\tdistance = % 5.3f\n", cp.Distance)
	p.f("\tMagnetic dip (100 km)  = % 5.3f (deg)\n", deg(cp.Dip100))
	p.f("\tGyrofrequency (100 km) = % 5.3f (MHz)\n", cp.Fh100)
	p.f("\tMagnetic dip (300 km)  = % 5.3f (deg)\n", deg(cp.Dip300))
	p.f("\tGyrofrequency (300 km) = % 5.3f (MHz)\n", cp.Fh300)
	p.f("\tM(3000)F2 = % 5.3f\n", cp.M3kF2)
	p.f("\tfoE   = % 5.3f (MHz)\n", cp.FoE)
	p.f("\tfoF2  = % 5.3f (MHz)\n", cp.FoF2)
	if i == p533.MidPath {
		p.f("\treflection height  = % 5.3f (km)\n", cp.Hr)
	}
	sun := &cp.Sun
	p.f("\tsolar zenith angle = % 5.3f (deg)\n", deg(sun.Zenith))
	p.f("\tsolar declination  = % 5.3f (deg)\n", deg(sun.Declination))
	p.f("\tsolar hour angle   = % 5.3f (deg)\n", deg(sun.HourAngle))
	p.f("\tequation of time   = % 5.3f (minutes)\n", sun.EoT)

	tz := zone(cp.Location.Lng)
	p.f("\tlocal sunrise      = %s\n", clock(sun.Sunrise, tz, sun.State))
	p.f("\tlocal solar noon   = %s\n", clock(sun.Noon, tz, solar.Normal))
	p.f("\tlocal sunset       = %s\n", clock(sun.Sunset, tz, sun.State))
	p.f("\tlocal time         = %s\n", clock(rec.Config.UTC(), tz, solar.Normal))
}

// clock formats a UTC hour and its zone clock time. Polar days and nights
// have no rise or set event.
func clock(utc float64, tz int, state solar.Polar) string {
	if utc == solar.NoEvent {
		return fmt.Sprintf("none (%s)", state)
	}
	local := math.Mod(utc+float64(tz)+24, 24)
	return fmt.Sprintf("%02d:%02d (UTC) %02d:%02d (Local)", Hrs(utc), Mns(utc), Hrs(local), Mns(local))
}
