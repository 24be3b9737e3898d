package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KI7MT/ki7mt-hf-predict/internal/common"
	"github.com/KI7MT/ki7mt-hf-predict/internal/ionos"
	"github.com/KI7MT/ki7mt-hf-predict/internal/p533"
	"github.com/KI7MT/ki7mt-hf-predict/internal/pathlist"
	"github.com/KI7MT/ki7mt-hf-predict/internal/scan"
	"github.com/KI7MT/ki7mt-hf-predict/internal/store"
)

func TestApply_ParksReceiverAtAntipode(t *testing.T) {
	doc := pathlist.DefaultDocument()
	doc.Year = 2024

	var o options
	fs := newFlagSet(&o)
	require.NoError(t, fs.Parse([]string{"-t", "40.0,-105.3", "-H", "7,19", "-f", "14.1"}))
	require.NoError(t, o.apply(fs, &doc))

	assert.Equal(t, 40.0, doc.Tx.Lat)
	assert.Equal(t, -40.0, doc.Rx.Lat)
	assert.InDelta(t, 74.7, doc.Rx.Lon, 1e-9)
	assert.Equal(t, []int{7, 19}, doc.Hours)

	cfgs, err := pathlist.NewConverter("", nil).Configs(doc)
	require.NoError(t, err)
	assert.Len(t, cfgs, 2)
}

func TestApply_BadTx(t *testing.T) {
	doc := pathlist.DefaultDocument()
	var o options
	fs := newFlagSet(&o)
	require.NoError(t, fs.Parse([]string{"--tx", "a,b"}))
	assert.Error(t, o.apply(fs, &doc))
}

func TestAntipodeLon(t *testing.T) {
	assert.Equal(t, 0.0, antipodeLon(180))
	assert.Equal(t, -30.0, antipodeLon(150))
	assert.Equal(t, 180.0, antipodeLon(0))
	assert.Equal(t, 75.0, antipodeLon(-105))
}

func TestDefaultGridValid(t *testing.T) {
	var o options
	fs := newFlagSet(&o)
	require.NoError(t, fs.Parse(nil))
	require.NoError(t, o.grid.Validate())
	rows, cols := o.grid.Size()
	assert.Equal(t, 27, rows)
	assert.Equal(t, 73, cols)
}

func TestSinks_Parquet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan.parquet")
	s, err := openSinks(context.Background(), options{parquetPath: path}, common.DefaultConfig(), log.New(io.Discard))
	require.NoError(t, err)

	doc := pathlist.DefaultDocument()
	doc.Year = 2024
	doc.Tx = pathlist.Site{Lat: 40.0, Lon: -105.3}
	doc.Rx = pathlist.Site{Lat: 52.2, Lon: 0.1}
	cfgs, err := pathlist.NewConverter("", nil).Configs(doc)
	require.NoError(t, err)

	sc := scan.New(p533.NewAnalyzer(ionos.NewEnvironment(), nil), scan.Options{Workers: 4})
	grid := scan.Grid{LatMin: 30, LatMax: 50, LngMin: -110, LngMax: -90, Step: 10}
	sum, err := sc.Run(context.Background(), cfgs[0], grid, func(r scan.Result) error {
		return s.write(context.Background(), r)
	})
	require.NoError(t, err)
	require.NoError(t, s.close(context.Background()))

	rows, err := store.ReadParquet(path)
	require.NoError(t, err)
	assert.Len(t, rows, sum.Analyzed)
	assert.Equal(t, uint64(sum.Analyzed), s.written)
	assert.Equal(t, uint64(sum.Failed), s.failed)
	assert.Equal(t, 9, sum.Analyzed+sum.Failed)
}

func TestSinks_FailuresAreCounted(t *testing.T) {
	s := &sinks{logger: log.New(io.Discard)}
	require.NoError(t, s.write(context.Background(), scan.Result{Index: 3, Err: errors.New("too close")}))
	assert.Equal(t, uint64(1), s.failed)
	assert.Zero(t, s.written)
	assert.NoError(t, s.close(context.Background()))
}

func TestMetricsServer(t *testing.T) {
	srv := newMetricsServer(":0")

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
