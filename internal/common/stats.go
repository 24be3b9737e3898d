package common

import (
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
)

// Stats holds atomic counters for progress tracking
type Stats struct {
	Analyses     uint64 // Atomic counter for completed analyses
	Failures     uint64 // Atomic counter for analyses that returned an error
	LastDuration uint64 // Atomic: duration of the latest analysis in nanoseconds

	// Internal state for reporter
	running  atomic.Bool
	stopCh   chan struct{}
	logger   *log.Logger
	interval time.Duration
	total    uint64
	lastDone uint64
	lastTime time.Time

	// Moving average window for the analyses/s rate
	rateWindow     []float64
	rateWindowSize int
	rateIndex      int
}

// NewStats creates a new Stats instance. total is the expected number of
// analyses, 0 when unknown.
func NewStats(total uint64) *Stats {
	return &Stats{
		stopCh:         make(chan struct{}),
		interval:       time.Second,
		total:          total,
		rateWindow:     make([]float64, 10), // 10-sample moving average
		rateWindowSize: 10,
	}
}

// AddAnalysis records one completed analysis
func (s *Stats) AddAnalysis(d time.Duration, failed bool) {
	atomic.AddUint64(&s.Analyses, 1)
	if failed {
		atomic.AddUint64(&s.Failures, 1)
	}
	atomic.StoreUint64(&s.LastDuration, uint64(d))
}

// Done atomically reads the completed analyses
func (s *Stats) Done() uint64 {
	return atomic.LoadUint64(&s.Analyses)
}

// Failed atomically reads the failed analyses
func (s *Stats) Failed() uint64 {
	return atomic.LoadUint64(&s.Failures)
}

// StartReporter starts a background goroutine that logs progress every
// interval. A non-positive interval keeps the default of one second.
func (s *Stats) StartReporter(logger *log.Logger, interval time.Duration) {
	if logger == nil || s.running.Load() {
		return
	}
	if interval > 0 {
		s.interval = interval
	}
	s.logger = logger
	s.running.Store(true)
	s.lastTime = time.Now()
	s.lastDone = s.Done()

	go s.reporterLoop()
}

// StopReporter stops the background reporter goroutine
func (s *Stats) StopReporter() {
	if !s.running.Load() {
		return
	}
	s.running.Store(false)
	close(s.stopCh)
}

func (s *Stats) reporterLoop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.printStatus()
		}
	}
}

// rate returns the smoothed analyses per second after recording a sample
// of done analyses over elapsed.
func (s *Stats) rate(done uint64, elapsed time.Duration) float64 {
	s.rateWindow[s.rateIndex] = float64(done-s.lastDone) / elapsed.Seconds()
	s.rateIndex = (s.rateIndex + 1) % s.rateWindowSize

	var sum float64
	var count int
	for _, v := range s.rateWindow {
		if v > 0 {
			sum += v
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

func (s *Stats) printStatus() {
	now := time.Now()
	elapsed := now.Sub(s.lastTime)
	if elapsed < time.Millisecond {
		return
	}

	done := s.Done()
	rate := s.rate(done, elapsed)
	kv := []any{
		"done", humanize.Comma(int64(done)),
		"failed", s.Failed(),
		"rate", humanize.FtoaWithDigits(rate, 1) + "/s",
		"last", time.Duration(atomic.LoadUint64(&s.LastDuration)).Round(time.Microsecond),
	}
	if s.total > 0 {
		kv = append(kv, "progress", humanize.FtoaWithDigits(100*float64(done)/float64(s.total), 1)+"%")
	}
	s.logger.Info("[Progress]", kv...)

	s.lastDone = done
	s.lastTime = now
}

// Reset resets all counters
func (s *Stats) Reset() {
	atomic.StoreUint64(&s.Analyses, 0)
	atomic.StoreUint64(&s.Failures, 0)
	atomic.StoreUint64(&s.LastDuration, 0)
	s.lastDone = 0
	s.lastTime = time.Now()
	for i := range s.rateWindow {
		s.rateWindow[i] = 0
	}
	s.rateIndex = 0
}
