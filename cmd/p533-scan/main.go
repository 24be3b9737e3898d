// p533-scan - ITU-R P.533 area scan
//
// Runs one transmitter against a rectangular grid of receive locations for
// every hour and frequency of a YAML path document. Analyses run on a
// worker pool; results arrive in grid order and stream to a zstd Parquet
// file and/or ClickHouse p533.predictions via native insert.
//
// Progress is logged periodically and exported as Prometheus metrics on
// --metrics-addr (/metrics).
//
// Build: CGO_ENABLED=0 go build -ldflags="-s -w -X main.Version=1.0.0" -o build/p533-scan ./cmd/p533-scan

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/ClickHouse/ch-go"
	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"github.com/KI7MT/ki7mt-hf-predict/internal/common"
	"github.com/KI7MT/ki7mt-hf-predict/internal/ionos"
	"github.com/KI7MT/ki7mt-hf-predict/internal/noise"
	"github.com/KI7MT/ki7mt-hf-predict/internal/p533"
	"github.com/KI7MT/ki7mt-hf-predict/internal/pathlist"
	"github.com/KI7MT/ki7mt-hf-predict/internal/scan"
	"github.com/KI7MT/ki7mt-hf-predict/internal/store"
)

var Version = "dev"

type options struct {
	configFile string
	grid       scan.Grid
	hours      []int
	freqs      []float64
	ssn        float64
	ssnDB      bool
	tx         string

	workers     int
	parquetPath string
	clickhouse  bool
	table       string
	batchSize   int
	metricsAddr string
	progress    time.Duration

	coeffDir string
	noiseDir string
	logLevel string
	version  bool
}

func newFlagSet(o *options) *pflag.FlagSet {
	fs := pflag.NewFlagSet("p533-scan", pflag.ContinueOnError)

	fs.StringVarP(&o.configFile, "config", "c", "", "YAML path document (transmitter and system parameters)")
	fs.Float64Var(&o.grid.LatMin, "lat-min", -60, "Grid south edge (degrees)")
	fs.Float64Var(&o.grid.LatMax, "lat-max", 70, "Grid north edge (degrees)")
	fs.Float64Var(&o.grid.LngMin, "lng-min", -180, "Grid west edge (degrees)")
	fs.Float64Var(&o.grid.LngMax, "lng-max", 180, "Grid east edge (degrees)")
	fs.Float64VarP(&o.grid.Step, "step", "g", 5, "Grid step (degrees)")
	fs.IntSliceVarP(&o.hours, "hour", "H", nil, "UTC hour(s) 1-24, comma separated")
	fs.Float64SliceVarP(&o.freqs, "freq", "f", nil, "Frequency(ies) in MHz, comma separated")
	fs.Float64VarP(&o.ssn, "ssn", "s", 0, "12-month smoothed sunspot number")
	fs.BoolVar(&o.ssnDB, "ssn-db", false, "Look up R12 in ClickHouse solar.indices_raw")
	fs.StringVarP(&o.tx, "tx", "t", "", "Transmitter lat,lon in degrees")

	fs.IntVarP(&o.workers, "workers", "w", runtime.NumCPU(), "Analysis workers")
	fs.StringVarP(&o.parquetPath, "parquet", "o", "", "Write results to this Parquet file")
	fs.BoolVar(&o.clickhouse, "clickhouse", false, "Insert results into ClickHouse")
	fs.StringVar(&o.table, "table", store.DefaultTable, "ClickHouse predictions table")
	fs.IntVar(&o.batchSize, "batch", store.DefaultBatchSize, "Rows per ClickHouse insert")
	fs.StringVar(&o.metricsAddr, "metrics-addr", ":9533", "Prometheus listen address (empty disables)")
	fs.DurationVar(&o.progress, "progress", 10*time.Second, "Progress report interval")

	fs.StringVar(&o.coeffDir, "coeff-dir", "", "Coefficient directory (default $P533_COEFF_DIR or $KI7MT_DATA_DIR/p533/coeff)")
	fs.StringVar(&o.noiseDir, "noise-dir", "", "Atmospheric noise directory (default $P533_NOISE_DIR or $KI7MT_DATA_DIR/p533/noise)")
	fs.StringVarP(&o.logLevel, "log-level", "l", "", "Log level (debug, info, warn, error)")
	fs.BoolVarP(&o.version, "version", "v", false, "Print version and exit")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "p533-scan v%s - ITU-R P.533 HF Area Scan\n\n", Version)
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -c boulder.yaml -H 1,7,13,19 -f 14.1 -o /tmp/boulder-20m.parquet\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -c boulder.yaml --ssn-db --clickhouse -g 2.5 -w 32\n", os.Args[0])
	}
	return fs
}

// apply overwrites the document fields whose flags were set.
func (o *options) apply(fs *pflag.FlagSet, doc *pathlist.Document) error {
	if fs.Changed("hour") {
		doc.Hours = o.hours
	}
	if fs.Changed("freq") {
		doc.Frequencies = o.freqs
	}
	if fs.Changed("ssn") {
		doc.SSN = o.ssn
	}
	if fs.Changed("tx") {
		parts := strings.Split(o.tx, ",")
		if len(parts) != 2 {
			return fmt.Errorf("--tx %q: want lat,lon", o.tx)
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		if err != nil {
			return fmt.Errorf("--tx %q: %w", o.tx, err)
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return fmt.Errorf("--tx %q: %w", o.tx, err)
		}
		doc.Tx.Lat, doc.Tx.Lon = lat, lon
	}
	// The receiver is replaced at every grid point; park it at the
	// transmitter's antipode so the base config validates.
	doc.Rx = pathlist.Site{Name: "grid", Lat: -doc.Tx.Lat, Lon: antipodeLon(doc.Tx.Lon), Antenna: doc.Rx.Antenna}
	return nil
}

func antipodeLon(lon float64) float64 {
	if lon > 0 {
		return lon - 180
	}
	return lon + 180
}

// =============================================================================
// Sinks
// =============================================================================

// sinks fans successful results out to the configured outputs.
type sinks struct {
	parquet *store.ParquetWriter
	ch      *store.Writer
	conn    *ch.Client
	logger  *log.Logger

	written uint64
	failed  uint64
}

func (s *sinks) write(ctx context.Context, r scan.Result) error {
	if r.Err != nil {
		s.failed++
		s.logger.Debug("analysis failed", "index", r.Index, "err", r.Err)
		return nil
	}
	if s.parquet != nil {
		if err := s.parquet.Write(r.Record); err != nil {
			return err
		}
	}
	if s.ch != nil {
		if err := s.ch.Write(ctx, r.Record); err != nil {
			return err
		}
	}
	s.written++
	return nil
}

func (s *sinks) close(ctx context.Context) error {
	var errs []error
	if s.parquet != nil {
		errs = append(errs, s.parquet.Close())
	}
	if s.ch != nil {
		errs = append(errs, s.ch.Close(ctx))
	}
	if s.conn != nil {
		errs = append(errs, s.conn.Close())
	}
	return errors.Join(errs...)
}

func openSinks(ctx context.Context, o options, cfg *common.Config, logger *log.Logger) (*sinks, error) {
	s := &sinks{logger: logger}
	if o.parquetPath != "" {
		pw, err := store.CreateParquet(o.parquetPath)
		if err != nil {
			return nil, err
		}
		s.parquet = pw
		logger.Infof("Parquet: %s", o.parquetPath)
	}
	if o.clickhouse {
		logger.Infof("Connecting to ClickHouse at %s...", cfg.ClickHouseAddr())
		conn, err := store.Dial(ctx, cfg)
		if err != nil {
			s.close(ctx)
			return nil, err
		}
		s.conn = conn
		s.ch = store.NewWriter(conn, o.table, o.batchSize, nil, logger)
		if err := s.ch.EnsureTable(ctx); err != nil {
			s.close(ctx)
			return nil, err
		}
		logger.Infof("Table: %s", o.table)
	}
	return s, nil
}

// =============================================================================
// Metrics endpoint
// =============================================================================

func newMetricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
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
		fmt.Printf("p533-scan v%s\n", Version)
		return
	}

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
	logger := cfg.NewLogger(os.Stderr, "p533-scan")

	logger.Info("=========================================================")
	logger.Infof("p533-scan v%s - ITU-R P.533 HF Area Scan", Version)
	logger.Info("=========================================================")

	if err := o.grid.Validate(); err != nil {
		logger.Fatal("Invalid grid", "err", err)
	}
	if o.parquetPath == "" && !o.clickhouse {
		logger.Warn("No output selected (--parquet or --clickhouse); results are discarded")
	}

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
		conn, err := store.OpenSSN(ctx, cfg)
		if err != nil {
			logger.Fatal("SSN lookup failed", "err", err)
		}
		doc.SSN, err = store.NewSSNSource(conn, "").Smoothed(ctx, doc.Year, time.Month(doc.Month))
		conn.Close()
		if err != nil {
			logger.Fatal("SSN lookup failed", "err", err)
		}
		logger.Infof("R12 %d-%02d = %.1f", doc.Year, doc.Month, doc.SSN)
	}

	bases, err := pathlist.NewConverter(cfg.AntennaDir(), logger).Configs(doc)
	if err != nil {
		logger.Fatal("Invalid path", "err", err)
	}

	env, err := ionos.Load(cfg.CoefficientDir(), logger)
	if err != nil {
		logger.Fatal("Cannot load coefficients", "err", err)
	}
	atm, err := noise.LoadAtmospheric(cfg.NoiseDir(), logger)
	if err != nil {
		logger.Fatal("Cannot load atmospheric noise", "err", err)
	}

	out, err := openSinks(ctx, o, cfg, logger)
	if err != nil {
		logger.Fatal("Cannot open output", "err", err)
	}

	metrics := scan.NewMetrics()
	if o.metricsAddr != "" {
		srv := newMetricsServer(o.metricsAddr)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server", "err", err)
			}
		}()
		defer func() {
			sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer scancel()
			srv.Shutdown(sctx)
		}()
		logger.Infof("Metrics: http://%s/metrics", o.metricsAddr)
	}

	points := o.grid.Len()
	total := uint64(points * len(bases))
	stats := common.NewStats(total)
	stats.StartReporter(logger, o.progress)

	logger.Infof("Grid:    %s points (%.1f..%.1f, %.1f..%.1f step %.2f)", humanize.Comma(int64(points)),
		o.grid.LatMin, o.grid.LatMax, o.grid.LngMin, o.grid.LngMax, o.grid.Step)
	logger.Infof("Scans:   %d (hours x frequencies)", len(bases))
	logger.Infof("Workers: %d", o.workers)

	scanner := scan.New(p533.NewAnalyzer(env, atm), scan.Options{
		Workers: o.workers,
		Metrics: metrics,
		Stats:   stats,
		Logger:  logger,
	})

	t0 := time.Now()
	var runErr error
	for _, base := range bases {
		sum, err := scanner.Run(ctx, base, o.grid, func(r scan.Result) error {
			return out.write(ctx, r)
		})
		logger.Info("scan done", "hour", base.Hour+1, "freq", base.Frequency,
			"analyzed", sum.Analyzed, "failed", sum.Failed, "elapsed", sum.Elapsed.Round(time.Millisecond))
		if err != nil {
			runErr = err
			break
		}
	}
	stats.StopReporter()
	if err := out.close(context.Background()); err != nil {
		logger.Error("Output close failed", "err", err)
		if runErr == nil {
			runErr = err
		}
	}

	elapsed := time.Since(t0)
	done := stats.Done()
	rate := 0.0
	if elapsed > 0 {
		rate = float64(done) / elapsed.Seconds()
	}
	logger.Info("=========================================================")
	logger.Info("Final Statistics")
	logger.Info("=========================================================")
	logger.Infof("Analyses: %s / %s", humanize.Comma(int64(done)), humanize.Comma(int64(total)))
	logger.Infof("Failed:   %s", humanize.Comma(int64(stats.Failed())))
	logger.Infof("Written:  %s", humanize.Comma(int64(out.written)))
	logger.Infof("Elapsed:  %v", elapsed.Round(time.Millisecond))
	logger.Infof("Rate:     %.0f analyses/sec", rate)
	logger.Info("=========================================================")

	if runErr != nil {
		logger.Error("Scan stopped", "err", runErr)
		os.Exit(1)
	}
}
