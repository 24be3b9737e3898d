// p533 - ITU-R P.533 point-to-point HF path analysis
//
// Reads a YAML path document (and/or a CSV path list), applies command-line
// overrides, runs the P.533 analysis for every hour and frequency, and
// writes the path dump report to a timestamped PDDddmmyy-hhnnss.txt file.
//
// The ionosphere comes from CCIR/URSI coefficient files when present, the
// analytic model otherwise. The sunspot number is taken from the document,
// --ssn, or looked up as R12 in ClickHouse solar.indices_raw (--ssn-db).
//
// Build: CGO_ENABLED=0 go build -ldflags="-s -w -X main.Version=1.0.0" -o build/p533 ./cmd/p533

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"

	"github.com/KI7MT/ki7mt-hf-predict/internal/common"
	"github.com/KI7MT/ki7mt-hf-predict/internal/ionos"
	"github.com/KI7MT/ki7mt-hf-predict/internal/noise"
	"github.com/KI7MT/ki7mt-hf-predict/internal/p533"
	"github.com/KI7MT/ki7mt-hf-predict/internal/pathlist"
	"github.com/KI7MT/ki7mt-hf-predict/internal/report"
	"github.com/KI7MT/ki7mt-hf-predict/internal/store"
)

var Version = "dev"

// options holds the command-line flags that override the YAML document.
type options struct {
	configFile string
	pathsFile  string

	name        string
	year        int
	month       int
	hours       []int
	ssn         float64
	ssnDB       bool
	freqs       []float64
	tx          string
	rx          string
	txName      string
	rxName      string
	power       float64
	bandwidth   float64
	snr         float64
	reliability int
	sir         float64
	path        string
	manMade     string
	modulation  string

	coeffDir   string
	noiseDir   string
	antennaDir string
	outDir     string
	gzip       bool
	stdout     bool
	logLevel   string
	version    bool
}

func newFlagSet(o *options) *pflag.FlagSet {
	fs := pflag.NewFlagSet("p533", pflag.ContinueOnError)

	fs.StringVarP(&o.configFile, "config", "c", "", "YAML path document")
	fs.StringVarP(&o.pathsFile, "paths", "p", "", "CSV path list (.csv or .csv.gz) using the document's system parameters")

	fs.StringVarP(&o.name, "name", "n", "", "Path name")
	fs.IntVarP(&o.year, "year", "y", 0, "Year")
	fs.IntVarP(&o.month, "month", "m", 0, "Month (1-12)")
	fs.IntSliceVarP(&o.hours, "hour", "H", nil, "UTC hour(s) 1-24, comma separated")
	fs.Float64VarP(&o.ssn, "ssn", "s", 0, "12-month smoothed sunspot number")
	fs.BoolVar(&o.ssnDB, "ssn-db", false, "Look up R12 in ClickHouse solar.indices_raw")
	fs.Float64SliceVarP(&o.freqs, "freq", "f", nil, "Frequency(ies) in MHz, comma separated")
	fs.StringVarP(&o.tx, "tx", "t", "", "Transmitter lat,lon in degrees")
	fs.StringVarP(&o.rx, "rx", "r", "", "Receiver lat,lon in degrees")
	fs.StringVar(&o.txName, "tx-name", "", "Transmitter name")
	fs.StringVar(&o.rxName, "rx-name", "", "Receiver name")
	fs.Float64Var(&o.power, "power", 0, "Transmitter power (dBkW)")
	fs.Float64VarP(&o.bandwidth, "bandwidth", "b", 0, "Receiver bandwidth (Hz)")
	fs.Float64Var(&o.snr, "snr", 0, "Required SNR (dB)")
	fs.IntVar(&o.reliability, "reliability", 0, "Required reliability (%)")
	fs.Float64Var(&o.sir, "sir", 0, "Required SIR (dB)")
	fs.StringVar(&o.path, "path", "", "Path kind: short or long")
	fs.StringVar(&o.manMade, "noise", "", "Man-made noise: CITY, RESIDENTIAL, RURAL, QUIETRURAL, NOISY, QUIET or Fam at 3 MHz")
	fs.StringVar(&o.modulation, "modulation", "", "analog or digital")

	fs.StringVar(&o.coeffDir, "coeff-dir", "", "Coefficient directory (default $P533_COEFF_DIR or $KI7MT_DATA_DIR/p533/coeff)")
	fs.StringVar(&o.noiseDir, "noise-dir", "", "Atmospheric noise directory (default $P533_NOISE_DIR or $KI7MT_DATA_DIR/p533/noise)")
	fs.StringVar(&o.antennaDir, "antenna-dir", "", "Antenna table directory (default $KI7MT_DATA_DIR/p533/antennas)")
	fs.StringVarP(&o.outDir, "out", "o", "", "Report directory (default $KI7MT_DATA_DIR/p533/reports)")
	fs.BoolVarP(&o.gzip, "gzip", "z", false, "Write the report gzip compressed")
	fs.BoolVar(&o.stdout, "stdout", false, "Print the report to stdout instead of a file")
	fs.StringVarP(&o.logLevel, "log-level", "l", "", "Log level (debug, info, warn, error)")
	fs.BoolVarP(&o.version, "version", "v", false, "Print version and exit")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "p533 v%s - ITU-R P.533 HF Path Analysis\n\n", Version)
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -c ottawa-cambridge.yaml\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -y 2024 -m 6 -H 1,13 -s 85 -f 7.1,14.1 -t 45.4,-75.7 -r 52.2,0.1\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -c defaults.yaml -p paths.csv.gz -z\n", os.Args[0])
	}
	return fs
}

// parseLatLon parses "lat,lon" in degrees.
func parseLatLon(s string) (lat, lon float64, err error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%q: want lat,lon", s)
	}
	if lat, err = strconv.ParseFloat(strings.TrimSpace(parts[0]), 64); err != nil {
		return 0, 0, fmt.Errorf("%q: latitude: %w", s, err)
	}
	if lon, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64); err != nil {
		return 0, 0, fmt.Errorf("%q: longitude: %w", s, err)
	}
	return lat, lon, nil
}

// apply overwrites the document fields whose flags were set.
func (o *options) apply(fs *pflag.FlagSet, doc *pathlist.Document) error {
	set := fs.Changed
	if set("name") {
		doc.Name = o.name
	}
	if set("year") {
		doc.Year = o.year
	}
	if set("month") {
		doc.Month = o.month
	}
	if set("hour") {
		doc.Hours = o.hours
	}
	if set("ssn") {
		doc.SSN = o.ssn
	}
	if set("freq") {
		doc.Frequencies = o.freqs
	}
	if set("tx") {
		lat, lon, err := parseLatLon(o.tx)
		if err != nil {
			return fmt.Errorf("--tx %w", err)
		}
		doc.Tx.Lat, doc.Tx.Lon = lat, lon
	}
	if set("rx") {
		lat, lon, err := parseLatLon(o.rx)
		if err != nil {
			return fmt.Errorf("--rx %w", err)
		}
		doc.Rx.Lat, doc.Rx.Lon = lat, lon
	}
	if set("tx-name") {
		doc.Tx.Name = o.txName
	}
	if set("rx-name") {
		doc.Rx.Name = o.rxName
	}
	if set("power") {
		doc.TxPower = o.power
	}
	if set("bandwidth") {
		doc.Bandwidth = o.bandwidth
	}
	if set("snr") {
		doc.SNRr = o.snr
	}
	if set("reliability") {
		doc.Reliability = o.reliability
	}
	if set("sir") {
		doc.SIRr = o.sir
	}
	if set("path") {
		doc.Path = o.path
	}
	if set("noise") {
		doc.ManMade = o.manMade
	}
	if set("modulation") {
		doc.Modulation = o.modulation
	}
	return nil
}

// lookupSSN replaces the document SSN with R12 from ClickHouse.
func lookupSSN(ctx context.Context, cfg *common.Config, doc *pathlist.Document, logger *log.Logger) error {
	logger.Infof("Looking up R12 for %d-%02d at %s...", doc.Year, doc.Month, cfg.ClickHouseAddr())
	conn, err := store.OpenSSN(ctx, cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	r12, err := store.NewSSNSource(conn, "").Smoothed(ctx, doc.Year, time.Month(doc.Month))
	if err != nil {
		return err
	}
	logger.Infof("  R12 = %.1f", r12)
	doc.SSN = r12
	return nil
}

func main() {
	var o options
	fs := newFlagSet(&o)
	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		os.Exit(2)
	}
	if o.version {
		fmt.Printf("p533 v%s\n", Version)
		return
	}
	report.ToolVersion = Version

	cfg := common.DefaultConfig()
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	if o.coeffDir != "" {
		cfg.P533CoeffDir = o.coeffDir
	}
	if o.noiseDir != "" {
		cfg.P533NoiseDir = o.noiseDir
	}
	antennaDir := cfg.AntennaDir()
	if o.antennaDir != "" {
		antennaDir = o.antennaDir
	}
	outDir := cfg.ReportDir()
	if o.outDir != "" {
		outDir = o.outDir
	}
	logger := cfg.NewLogger(os.Stderr, "p533")

	logger.Info("=========================================================")
	logger.Infof("p533 v%s - ITU-R P.533 HF Path Analysis", Version)
	logger.Info("=========================================================")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Warn("Shutdown requested...")
		cancel()
	}()

	doc, err := pathlist.LoadFile(o.configFile)
	if err != nil {
		logger.Fatal("Cannot load path document", "err", err)
	}
	if err := o.apply(fs, &doc); err != nil {
		logger.Fatal("Invalid flag", "err", err)
	}
	if o.ssnDB {
		if err := lookupSSN(ctx, cfg, &doc, logger); err != nil {
			logger.Fatal("SSN lookup failed", "err", err)
		}
	}

	conv := pathlist.NewConverter(antennaDir, logger)
	var paths []p533.PathConfig
	if o.pathsFile != "" {
		var stats pathlist.ParseStats
		paths, err = conv.ReadCSVFile(o.pathsFile, doc, &stats)
		if err != nil {
			logger.Fatal("Cannot read path list", "err", err)
		}
		logger.Infof("Path list: %d rows, %d paths, %d failed", stats.TotalRowsRead, stats.SuccessfullyParsed, stats.FailedRows)
	} else {
		paths, err = conv.Configs(doc)
		if err != nil {
			logger.Fatal("Invalid path", "err", err)
		}
	}
	if len(paths) == 0 {
		logger.Fatal("No paths to analyze")
	}

	env, err := ionos.Load(cfg.CoefficientDir(), logger)
	if err != nil {
		logger.Fatal("Cannot load coefficients", "err", err)
	}
	atm, err := noise.LoadAtmospheric(cfg.NoiseDir(), logger)
	if err != nil {
		logger.Fatal("Cannot load atmospheric noise", "err", err)
	}
	if env.Analytic() {
		logger.Info("Ionosphere: analytic model")
	} else {
		logger.Infof("Ionosphere: %s", cfg.CoefficientDir())
	}
	an := p533.NewAnalyzer(env, atm)

	sink, closeSink, err := openSink(o, outDir, logger)
	if err != nil {
		logger.Fatal("Cannot open report", "err", err)
	}

	t0 := time.Now()
	var analyzed, failed int
	for _, pc := range paths {
		if ctx.Err() != nil {
			logger.Warnf("Interrupted after %d analyses", analyzed)
			break
		}
		rec, err := an.Analyze(pc)
		if err != nil {
			failed++
			logger.Error("Analysis failed", "path", pc.Name, "hour", pc.Hour+1, "freq", pc.Frequency, "err", err)
			continue
		}
		analyzed++
		logger.Debug("analyzed", "path", pc.Name, "hour", pc.Hour+1, "freq", pc.Frequency,
			"mode", rec.Dominant, "snr", fmt.Sprintf("%.1f", rec.SNR.SNR), "ocr", fmt.Sprintf("%.1f", rec.Reliability.OCR))
		if err := sink(rec); err != nil {
			logger.Fatal("Report write failed", "err", err)
		}
	}
	if err := closeSink(); err != nil {
		logger.Fatal("Report close failed", "err", err)
	}

	elapsed := time.Since(t0)
	logger.Info("=========================================================")
	logger.Info("Final Statistics")
	logger.Info("=========================================================")
	logger.Infof("Paths:    %s", humanize.Comma(int64(len(paths))))
	logger.Infof("Analyzed: %s", humanize.Comma(int64(analyzed)))
	logger.Infof("Failed:   %s", humanize.Comma(int64(failed)))
	logger.Infof("Elapsed:  %v", elapsed.Round(time.Millisecond))
	logger.Info("=========================================================")
	if failed > 0 {
		os.Exit(1)
	}
}

// openSink returns the record writer and its closer: a report file, or
// stdout with --stdout.
func openSink(o options, dir string, logger *log.Logger) (func(*p533.PathRecord) error, func() error, error) {
	if o.stdout {
		return stdoutSink(os.Stdout)
	}
	w, err := report.Open(report.Options{Dir: dir, Gzip: o.gzip, Logger: logger})
	if err != nil {
		return nil, nil, err
	}
	logger.Infof("Report: %s", w.Path())
	return w.Write, w.Close, nil
}

func stdoutSink(out io.Writer) (func(*p533.PathRecord) error, func() error, error) {
	if err := report.Header(out, time.Now()); err != nil {
		return nil, nil, err
	}
	write := func(rec *p533.PathRecord) error { return report.Dump(out, rec) }
	done := func() error { return report.Tail(out) }
	return write, done, nil
}
