// p533-ssn - Sunspot index backfill and R12 table for the P.533 tools
//
// Downloads the definitive Kp/ap/Ap/SN/F10.7 dataset from GFZ Potsdam (or
// reads a local GFZ file or SILSO daily CSV) and inserts it into ClickHouse
// solar.indices_raw, the table p533 --ssn-db reads R12 from. GFZ days are
// written as eight 3-hour buckets; SILSO days as one row.
//
// With --r12 the 12-month smoothed sunspot number is printed for every
// month whose 13-month window is covered.
//
// Source: https://kp.gfz-potsdam.de (Helmholtz Centre Potsdam, GFZ)
//
// Build: CGO_ENABLED=0 go build -ldflags="-s -w -X main.Version=1.0.0" -o build/p533-ssn ./cmd/p533-ssn

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"

	"github.com/KI7MT/ki7mt-hf-predict/internal/common"
	"github.com/KI7MT/ki7mt-hf-predict/internal/solar"
	"github.com/KI7MT/ki7mt-hf-predict/internal/store"
)

var Version = "dev"

const (
	gfzURL    = "https://kp.gfz-potsdam.de/app/files/Kp_ap_Ap_SN_F107_since_1932.txt"
	sourceTag = "gfz-kp-backfill"
)

type options struct {
	file     string
	url      string
	start    string
	end      string
	table    string
	batch    int
	timeout  time.Duration
	dryRun   bool
	r12      bool
	logLevel string
	version  bool
}

func newFlagSet(o *options) *pflag.FlagSet {
	fs := pflag.NewFlagSet("p533-ssn", pflag.ContinueOnError)
	fs.StringVarP(&o.file, "file", "f", "", "Local GFZ file or SILSO .csv (skip download)")
	fs.StringVar(&o.url, "url", gfzURL, "GFZ download URL")
	fs.StringVarP(&o.start, "start", "s", "2000-01-01", "Start date (YYYY-MM-DD)")
	fs.StringVarP(&o.end, "end", "e", "", "End date (default: today)")
	fs.StringVar(&o.table, "table", store.DefaultIndicesTable, "ClickHouse table")
	fs.IntVar(&o.batch, "batch", store.DefaultBatchSize, "Rows per insert")
	fs.DurationVar(&o.timeout, "timeout", 120*time.Second, "HTTP download timeout")
	fs.BoolVarP(&o.dryRun, "dry-run", "n", false, "Parse only, no ClickHouse insert")
	fs.BoolVar(&o.r12, "r12", false, "Print the monthly R12 table")
	fs.StringVarP(&o.logLevel, "log-level", "l", "", "Log level (debug, info, warn, error)")
	fs.BoolVarP(&o.version, "version", "v", false, "Print version and exit")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "p533-ssn v%s - Sunspot Index Backfill (GFZ Potsdam / SILSO)\n\n", Version)
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s --start 2015-01-01\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -f /tmp/Kp_ap_Ap_SN_F107_since_1932.txt --dry-run --r12\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -f SN_d_tot_V2.0.csv\n", os.Args[0])
	}
	return fs
}

// dateRange parses the start and end flags; an empty end is today.
func (o *options) dateRange(now time.Time) (time.Time, time.Time, error) {
	start, err := time.Parse("2006-01-02", o.start)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start date: %w", err)
	}
	end := now.UTC().Truncate(24 * time.Hour)
	if o.end != "" {
		if end, err = time.Parse("2006-01-02", o.end); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end date: %w", err)
		}
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("end %s before start %s", end.Format("2006-01-02"), start.Format("2006-01-02"))
	}
	return start, end, nil
}

// isSIDC reports whether path is a SILSO CSV rather than a GFZ file.
func isSIDC(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".csv")
}

// indices holds the parsed input in either shape.
type indices struct {
	days  []solar.Day   // GFZ
	daily []solar.Index // SILSO
}

func (ix indices) Len() int { return len(ix.days) + len(ix.daily) }

func (ix indices) all() []solar.Index {
	out := make([]solar.Index, 0, ix.Len())
	for _, d := range ix.days {
		out = append(out, d.Index)
	}
	return append(out, ix.daily...)
}

func parse(r io.Reader, sidc bool, start, end time.Time) (indices, error) {
	if !sidc {
		days, err := solar.ParseGFZ(r, start, end)
		return indices{days: days}, err
	}
	rows, err := solar.ParseSIDC(r)
	if err != nil {
		return indices{}, err
	}
	var kept []solar.Index
	for _, ix := range rows {
		if !ix.Date.Before(start) && !ix.Date.After(end) {
			kept = append(kept, ix)
		}
	}
	return indices{daily: kept}, nil
}

// writeR12 prints the monthly R12 table in month order.
func writeR12(w io.Writer, rows []solar.Index) int {
	r12 := solar.MonthlyR12(rows)
	months := make([]time.Time, 0, len(r12))
	for m := range r12 {
		months = append(months, m)
	}
	sort.Slice(months, func(i, j int) bool { return months[i].Before(months[j]) })
	fmt.Fprintln(w, "Month     R12")
	for _, m := range months {
		fmt.Fprintf(w, "%s  %5.1f\n", m.Format("2006-01"), r12[m])
	}
	return len(months)
}

func open(ctx context.Context, o options, logger *log.Logger) (io.ReadCloser, error) {
	if o.file != "" {
		logger.Infof("Reading local file: %s", o.file)
		return os.Open(o.file)
	}
	logger.Infof("Downloading from GFZ Potsdam...")
	logger.Infof("  URL: %s", o.url)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := (&http.Client{Timeout: o.timeout}).Do(req)
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("HTTP %d from GFZ", resp.StatusCode)
	}
	if resp.ContentLength > 0 {
		logger.Infof("  HTTP 200 OK, %s", humanize.Bytes(uint64(resp.ContentLength)))
	}
	return resp.Body, nil
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
		fmt.Printf("p533-ssn v%s\n", Version)
		return
	}

	cfg := common.DefaultConfig()
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	logger := cfg.NewLogger(os.Stderr, "p533-ssn")

	logger.Info("=========================================================")
	logger.Infof("p533-ssn v%s - Sunspot Index Backfill", Version)
	logger.Info("=========================================================")

	start, end, err := o.dateRange(time.Now())
	if err != nil {
		logger.Fatal(err)
	}
	logger.Infof("Date range: %s to %s", start.Format("2006-01-02"), end.Format("2006-01-02"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Warn("Shutdown requested...")
		cancel()
	}()

	in, err := open(ctx, o, logger)
	if err != nil {
		logger.Fatal("Cannot read input", "err", err)
	}
	t0 := time.Now()
	sidc := o.file != "" && isSIDC(o.file)
	data, err := parse(in, sidc, start, end)
	in.Close()
	if err != nil {
		logger.Fatal("Parse error", "err", err)
	}
	logger.Infof("Parsed %s days in %v", humanize.Comma(int64(data.Len())), time.Since(t0).Round(time.Millisecond))
	if data.Len() == 0 {
		logger.Fatal("No data found in date range")
	}

	if o.r12 {
		n := writeR12(os.Stdout, data.all())
		logger.Infof("R12 available for %d months", n)
	}

	source := sourceTag
	if o.file != "" {
		source = filepath.Base(o.file)
	}
	totalRows := len(data.days)*solar.Buckets + len(data.daily)
	logger.Infof("Will insert: %s rows", humanize.Comma(int64(totalRows)))

	if o.dryRun {
		logger.Info("Dry run - skipping ClickHouse insert")
		return
	}

	logger.Infof("Connecting to ClickHouse at %s...", cfg.ClickHouseAddr())
	conn, err := store.Dial(ctx, cfg)
	if err != nil {
		logger.Fatal("ClickHouse connection failed", "err", err)
	}
	defer conn.Close()
	logger.Infof("Table: %s", o.table)

	t0 = time.Now()
	w := store.NewIndexWriter(conn, o.table, o.batch, logger)
	for _, d := range data.days {
		if ctx.Err() != nil {
			logger.Warnf("Interrupted after %d rows", w.Rows())
			return
		}
		if err := w.WriteDay(ctx, d, source); err != nil {
			logger.Fatal("Insert error", "err", err)
		}
	}
	for _, ix := range data.daily {
		if ctx.Err() != nil {
			logger.Warnf("Interrupted after %d rows", w.Rows())
			return
		}
		if err := w.WriteIndex(ctx, ix, source); err != nil {
			logger.Fatal("Insert error", "err", err)
		}
	}
	if err := w.Flush(ctx); err != nil {
		logger.Fatal("Final insert error", "err", err)
	}

	elapsed := time.Since(t0)
	rps := float64(w.Rows()) / elapsed.Seconds()

	logger.Info("=========================================================")
	logger.Info("Backfill Complete")
	logger.Info("=========================================================")
	logger.Infof("Days:    %s", humanize.Comma(int64(data.Len())))
	logger.Infof("Rows:    %s", humanize.Comma(int64(w.Rows())))
	logger.Infof("Elapsed: %v", elapsed.Round(time.Millisecond))
	logger.Infof("Rate:    %.0f rows/sec", rps)
	logger.Infof("Source:  %s", source)
	logger.Info("=========================================================")
	logger.Infof("Run OPTIMIZE TABLE %s FINAL to merge duplicates.", o.table)
}
