package scan

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms and gauges of an area
// scan.
type Metrics struct {
	Analyses         prometheus.Counter
	AnalysisErrors   prometheus.Counter
	AnalysisDuration prometheus.Histogram
	WorkersBusy      prometheus.Gauge
	ScanRunning      prometheus.Gauge
	PointsPending    prometheus.Gauge
}

const namespace = "p533_scan"

// NewMetrics creates and registers the scan metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		Analyses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Total path analyses completed.",
		}),
		AnalysisErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_errors_total",
			Help:      "Total path analyses that returned an error.",
		}),
		AnalysisDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "Duration of one path analysis.",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}),
		WorkersBusy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "workers_busy",
			Help:      "Workers currently running an analysis.",
		}),
		ScanRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "running",
			Help:      "1 while a scan is active, 0 otherwise.",
		}),
		PointsPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "points_pending",
			Help:      "Grid points not yet emitted.",
		}),
	}

	prometheus.MustRegister(
		m.Analyses,
		m.AnalysisErrors,
		m.AnalysisDuration,
		m.WorkersBusy,
		m.ScanRunning,
		m.PointsPending,
	)

	return m
}

// NewMetricsForTesting creates Metrics without registering them so tests
// can build as many as they need.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		Analyses:         prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "analyses_total"}),
		AnalysisErrors:   prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "analysis_errors_total"}),
		AnalysisDuration: prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "analysis_duration_seconds"}),
		WorkersBusy:      prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "workers_busy"}),
		ScanRunning:      prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "running"}),
		PointsPending:    prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "points_pending"}),
	}
}
