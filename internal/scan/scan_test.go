package scan

import (
	"context"
	"errors"
	"math/rand"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/KI7MT/ki7mt-hf-predict/internal/antenna"
	"github.com/KI7MT/ki7mt-hf-predict/internal/common"
	"github.com/KI7MT/ki7mt-hf-predict/internal/geo"
	"github.com/KI7MT/ki7mt-hf-predict/internal/ionos"
	"github.com/KI7MT/ki7mt-hf-predict/internal/noise"
	"github.com/KI7MT/ki7mt-hf-predict/internal/p533"
)

func baseConfig() p533.PathConfig {
	iso := antenna.Descriptor{Name: "isotropic", Pattern: antenna.Isotropic{}}
	return p533.PathConfig{
		Name:        "scan",
		Year:        2024,
		Month:       2,
		Hour:        14,
		SSN:         80,
		TxName:      "Boulder",
		Tx:          geo.FromDegrees(40.0, -105.3),
		Frequency:   10.1,
		Bandwidth:   2500,
		SNRr:        3,
		Reliability: 90,
		SIRr:        3,
		ManMade:     noise.ManMade{Category: noise.Residential},
		TxAntenna:   iso,
		RxAntenna:   iso,
	}
}

// jitter returns records out of order and fails every failEvery-th point.
type jitter struct {
	calls     atomic.Int64
	failEvery int
}

func (j *jitter) Analyze(cfg p533.PathConfig) (*p533.PathRecord, error) {
	n := j.calls.Add(1)
	time.Sleep(time.Duration(rand.Intn(300)) * time.Microsecond)
	if j.failEvery > 0 && n%int64(j.failEvery) == 0 {
		return nil, p533.ErrConfigInvalid
	}
	return &p533.PathRecord{Config: cfg}, nil
}

func TestGrid(t *testing.T) {
	g := Grid{LatMin: 30, LatMax: 50, LngMin: -10, LngMax: 10, Step: 5}
	require.NoError(t, g.Validate())
	rows, cols := g.Size()
	assert.Equal(t, 5, rows)
	assert.Equal(t, 5, cols)
	assert.Equal(t, 25, g.Len())

	lat, lng := g.Point(0).Degrees()
	assert.InDelta(t, 30, lat, 1e-9)
	assert.InDelta(t, -10, lng, 1e-9)
	lat, lng = g.Point(7).Degrees()
	assert.InDelta(t, 35, lat, 1e-9)
	assert.InDelta(t, -5, lng, 1e-9)

	for _, bad := range []Grid{
		{LatMin: 0, LatMax: 10, LngMin: 0, LngMax: 10},
		{LatMin: 10, LatMax: 0, LngMin: 0, LngMax: 10, Step: 1},
		{LatMin: -95, LatMax: 0, LngMin: 0, LngMax: 10, Step: 1},
		{LatMin: 0, LatMax: 10, LngMin: 0, LngMax: 190, Step: 1},
	} {
		assert.ErrorIs(t, bad.Validate(), ErrBadGrid)
	}
}

func TestGrid_PointsInside(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		lo := rapid.Float64Range(-80, 70).Draw(t, "lat")
		w := rapid.Float64Range(-170, 160).Draw(t, "lng")
		step := rapid.Float64Range(0.5, 5).Draw(t, "step")
		g := Grid{LatMin: lo, LatMax: lo + 10, LngMin: w, LngMax: w + 10, Step: step}
		for i := 0; i < g.Len(); i++ {
			lat, lng := g.Point(i).Degrees()
			assert.GreaterOrEqual(t, lat, g.LatMin-1e-9)
			assert.LessOrEqual(t, lat, g.LatMax+1e-9)
			assert.GreaterOrEqual(t, lng, g.LngMin-1e-9)
			assert.LessOrEqual(t, lng, g.LngMax+1e-9)
		}
	})
}

func TestRun_Order(t *testing.T) {
	g := Grid{LatMin: -20, LatMax: 20, LngMin: 0, LngMax: 40, Step: 4}
	m := NewMetricsForTesting()
	stats := common.NewStats(uint64(g.Len()))
	s := New(&jitter{failEvery: 7}, Options{Workers: 8, Metrics: m, Stats: stats})

	var got []int
	sum, err := s.Run(context.Background(), baseConfig(), g, func(r Result) error {
		got = append(got, r.Index)
		if r.Err != nil {
			assert.ErrorIs(t, r.Err, p533.ErrConfigInvalid)
			assert.Nil(t, r.Record)
		} else {
			assert.Equal(t, g.Point(r.Index), r.Record.Config.Rx)
		}
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, g.Len())
	for i, idx := range got {
		require.Equal(t, i, idx)
	}
	assert.Equal(t, g.Len(), sum.Analyzed+sum.Failed)
	assert.Equal(t, g.Len()/7, sum.Failed)
	assert.Equal(t, float64(g.Len()), testutil.ToFloat64(m.Analyses))
	assert.Equal(t, float64(sum.Failed), testutil.ToFloat64(m.AnalysisErrors))
	assert.Zero(t, testutil.ToFloat64(m.WorkersBusy))
	assert.Zero(t, testutil.ToFloat64(m.PointsPending))
	assert.Zero(t, testutil.ToFloat64(m.ScanRunning))
	assert.Equal(t, uint64(g.Len()), stats.Done())
}

func TestRun_CallbackError(t *testing.T) {
	g := Grid{LatMin: 0, LatMax: 30, LngMin: 0, LngMax: 30, Step: 1}
	stop := errors.New("sink full")
	var calls int
	sum, err := New(&jitter{}, Options{Workers: 4}).Run(context.Background(), baseConfig(), g, func(Result) error {
		calls++
		if calls == 10 {
			return stop
		}
		return nil
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 10, calls)
	assert.Less(t, sum.Analyzed, g.Len())
}

func TestRun_Cancelled(t *testing.T) {
	g := Grid{LatMin: -60, LatMax: 60, LngMin: -120, LngMax: 120, Step: 1}
	ctx, cancel := context.WithCancel(context.Background())
	var calls int
	_, err := New(&jitter{}, Options{Workers: 4}).Run(ctx, baseConfig(), g, func(Result) error {
		calls++
		if calls == 5 {
			cancel()
		}
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, calls, g.Len())
}

func TestRun_BadGrid(t *testing.T) {
	_, err := New(&jitter{}, Options{}).Run(context.Background(), baseConfig(), Grid{}, func(Result) error { return nil })
	assert.ErrorIs(t, err, ErrBadGrid)
}

func TestRun_Deterministic(t *testing.T) {
	an := p533.NewAnalyzer(ionos.NewEnvironment(), nil)
	g := Grid{LatMin: 20, LatMax: 60, LngMin: -40, LngMax: 20, Step: 20}

	collect := func(workers int) []float64 {
		var out []float64
		_, err := New(an, Options{Workers: workers}).Run(context.Background(), baseConfig(), g, func(r Result) error {
			require.NoError(t, r.Err)
			out = append(out, r.Record.Pr, r.Record.Reliability.BCR, r.Record.MUF50)
			return nil
		})
		require.NoError(t, err)
		return out
	}
	assert.Equal(t, collect(1), collect(6))
}
