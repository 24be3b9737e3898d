// Package scan runs one transmitter against a grid of receive locations.
//
// Implementation: a fixed pool of workers pulls grid indices from a
// channel and runs independent analyses; results are reordered so the
// callback sees them in grid order regardless of completion order.
// Thread-safety: a Scanner may run several scans concurrently when its
// Analyzer is safe for concurrent use. The callback is never called
// concurrently.
package scan

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jonboulle/clockwork"

	"github.com/KI7MT/ki7mt-hf-predict/internal/common"
	"github.com/KI7MT/ki7mt-hf-predict/internal/geo"
	"github.com/KI7MT/ki7mt-hf-predict/internal/p533"
)

// ErrBadGrid is returned for an empty or out-of-range grid.
var ErrBadGrid = errors.New("scan: bad grid")

// =============================================================================
// Grid
// =============================================================================

// Grid is a rectangle of receive points in degrees, inclusive of both
// edges, stepped by Step degrees in latitude and longitude.
type Grid struct {
	LatMin, LatMax float64
	LngMin, LngMax float64
	Step           float64
}

// Validate checks bounds and step.
func (g Grid) Validate() error {
	switch {
	case !(g.Step > 0):
		return fmt.Errorf("%w: step %v", ErrBadGrid, g.Step)
	case g.LatMin < -90 || g.LatMax > 90 || g.LatMin > g.LatMax:
		return fmt.Errorf("%w: latitude %v..%v", ErrBadGrid, g.LatMin, g.LatMax)
	case g.LngMin < -180 || g.LngMax > 180 || g.LngMin > g.LngMax:
		return fmt.Errorf("%w: longitude %v..%v", ErrBadGrid, g.LngMin, g.LngMax)
	}
	return nil
}

// Size returns the number of rows (latitudes) and columns (longitudes).
func (g Grid) Size() (rows, cols int) {
	steps := func(lo, hi float64) int {
		return int(math.Floor((hi-lo)/g.Step+1e-9)) + 1
	}
	return steps(g.LatMin, g.LatMax), steps(g.LngMin, g.LngMax)
}

// Point returns the location of index i in row-major order from the
// south-west corner.
func (g Grid) Point(i int) geo.Location {
	_, cols := g.Size()
	return geo.FromDegrees(g.LatMin+float64(i/cols)*g.Step, g.LngMin+float64(i%cols)*g.Step)
}

// Len returns the number of points.
func (g Grid) Len() int {
	rows, cols := g.Size()
	return rows * cols
}

// =============================================================================
// Scanner
// =============================================================================

// Analyzer runs one path analysis.
type Analyzer interface {
	Analyze(cfg p533.PathConfig) (*p533.PathRecord, error)
}

// Result is the outcome at one grid point. Exactly one of Record and Err
// is set.
type Result struct {
	Index  int
	Rx     geo.Location
	Record *p533.PathRecord
	Err    error
}

// Summary reports a finished or cancelled scan.
type Summary struct {
	Points   int
	Analyzed int
	Failed   int
	Elapsed  time.Duration
}

// Options configures a Scanner. Zero values are valid.
type Options struct {
	Workers int // 0 = runtime.NumCPU()
	Metrics *Metrics
	Stats   *common.Stats
	Logger  *log.Logger
	Clock   clockwork.Clock
}

// Scanner runs area scans.
type Scanner struct {
	an      Analyzer
	workers int
	metrics *Metrics
	stats   *common.Stats
	logger  *log.Logger
	clock   clockwork.Clock
}

// New returns a Scanner.
func New(an Analyzer, opts Options) *Scanner {
	s := &Scanner{
		an:      an,
		workers: opts.Workers,
		metrics: opts.Metrics,
		stats:   opts.Stats,
		logger:  opts.Logger,
		clock:   opts.Clock,
	}
	if s.workers <= 0 {
		s.workers = runtime.NumCPU()
	}
	if s.metrics == nil {
		s.metrics = NewMetricsForTesting()
	}
	if s.clock == nil {
		s.clock = clockwork.NewRealClock()
	}
	return s
}

// Run analyzes base with Rx set to every grid point and calls fn with each
// result in grid order. Failed analyses are passed to fn with Err set and
// do not stop the scan; an error from fn or a cancelled ctx does.
func (s *Scanner) Run(ctx context.Context, base p533.PathConfig, grid Grid, fn func(Result) error) (Summary, error) {
	if err := grid.Validate(); err != nil {
		return Summary{}, err
	}
	n := grid.Len()
	sum := Summary{Points: n}
	start := s.clock.Now()

	s.metrics.ScanRunning.Set(1)
	s.metrics.PointsPending.Set(float64(n))
	defer s.metrics.ScanRunning.Set(0)

	if s.logger != nil {
		rows, cols := grid.Size()
		s.logger.Info("scan starting", "name", base.Name, "points", n, "rows", rows, "cols", cols, "workers", s.workers)
	}

	work, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan int)
	results := make(chan Result, s.workers)

	var wg sync.WaitGroup
	for w := 0; w < s.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.worker(work, base, grid, jobs, results)
		}()
	}
	go func() {
		defer close(jobs)
		for i := 0; i < n; i++ {
			select {
			case jobs <- i:
			case <-work.Done():
				return
			}
		}
	}()
	go func() {
		wg.Wait()
		close(results)
	}()

	// Reorder into grid order.
	pending := make(map[int]Result)
	next := 0
	var emitErr error
	for res := range results {
		pending[res.Index] = res
		for {
			r, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			next++
			s.metrics.PointsPending.Dec()
			if r.Err != nil {
				sum.Failed++
			} else {
				sum.Analyzed++
			}
			if emitErr != nil {
				continue
			}
			if err := fn(r); err != nil {
				emitErr = err
				cancel()
			}
		}
	}
	sum.Elapsed = s.clock.Since(start)

	if s.logger != nil {
		s.logger.Info("scan finished", "name", base.Name, "analyzed", sum.Analyzed, "failed", sum.Failed,
			"elapsed", sum.Elapsed.Round(time.Millisecond))
	}
	if emitErr != nil {
		return sum, emitErr
	}
	if next < n {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
	}
	return sum, nil
}

func (s *Scanner) worker(ctx context.Context, base p533.PathConfig, grid Grid, jobs <-chan int, results chan<- Result) {
	for i := range jobs {
		if ctx.Err() != nil {
			return
		}
		rx := grid.Point(i)
		cfg := base
		cfg.Rx = rx
		lat, lng := rx.Degrees()
		cfg.RxName = fmt.Sprintf("%.3f,%.3f", lat, lng)

		s.metrics.WorkersBusy.Inc()
		t0 := s.clock.Now()
		rec, err := s.an.Analyze(cfg)
		d := s.clock.Since(t0)
		s.metrics.WorkersBusy.Dec()

		s.metrics.Analyses.Inc()
		s.metrics.AnalysisDuration.Observe(d.Seconds())
		if err != nil {
			s.metrics.AnalysisErrors.Inc()
			err = fmt.Errorf("rx %s: %w", cfg.RxName, err)
		}
		if s.stats != nil {
			s.stats.AddAnalysis(d, err != nil)
		}

		select {
		case results <- Result{Index: i, Rx: rx, Record: rec, Err: err}:
		case <-ctx.Done():
			return
		}
	}
}
