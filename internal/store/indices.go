package store

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/ch-go"
	"github.com/ClickHouse/ch-go/proto"
	"github.com/charmbracelet/log"

	"github.com/KI7MT/ki7mt-hf-predict/internal/solar"
)

// IndexBatch holds columnar data for native insert into solar.indices_raw
// (date, time, observed_flux, adjusted_flux, ssn, kp_index, ap_index,
// xray_short, xray_long, source_file).
type IndexBatch struct {
	Date         *proto.ColDate32
	Time         *proto.ColDateTime
	ObservedFlux *proto.ColFloat32
	AdjustedFlux *proto.ColFloat32
	SSN          *proto.ColFloat32
	KpIndex      *proto.ColFloat32
	ApIndex      *proto.ColFloat32
	XrayShort    *proto.ColFloat32
	XrayLong     *proto.ColFloat32
	SourceFile   *proto.ColStr
}

func NewIndexBatch() *IndexBatch {
	return &IndexBatch{
		Date:         new(proto.ColDate32),
		Time:         new(proto.ColDateTime),
		ObservedFlux: new(proto.ColFloat32),
		AdjustedFlux: new(proto.ColFloat32),
		SSN:          new(proto.ColFloat32),
		KpIndex:      new(proto.ColFloat32),
		ApIndex:      new(proto.ColFloat32),
		XrayShort:    new(proto.ColFloat32),
		XrayLong:     new(proto.ColFloat32),
		SourceFile:   new(proto.ColStr),
	}
}

func (b *IndexBatch) Reset() {
	for _, c := range b.Input() {
		c.Data.(proto.Column).Reset()
	}
}

func (b *IndexBatch) Len() int {
	return b.Date.Rows()
}

func (b *IndexBatch) Input() proto.Input {
	return proto.Input{
		{Name: "date", Data: b.Date},
		{Name: "time", Data: b.Time},
		{Name: "observed_flux", Data: b.ObservedFlux},
		{Name: "adjusted_flux", Data: b.AdjustedFlux},
		{Name: "ssn", Data: b.SSN},
		{Name: "kp_index", Data: b.KpIndex},
		{Name: "ap_index", Data: b.ApIndex},
		{Name: "xray_short", Data: b.XrayShort},
		{Name: "xray_long", Data: b.XrayLong},
		{Name: "source_file", Data: b.SourceFile},
	}
}

func (b *IndexBatch) addRow(ix solar.Index, ts time.Time, kp, ap float32, source string) {
	b.Date.Append(ix.Date)
	b.Time.Append(ts)
	b.ObservedFlux.Append(ix.ObservedFlux)
	b.AdjustedFlux.Append(ix.AdjustedFlux)
	b.SSN.Append(ix.SSN)
	b.KpIndex.Append(kp)
	b.ApIndex.Append(ap)
	b.XrayShort.Append(0)
	b.XrayLong.Append(0)
	b.SourceFile.Append(source)
}

// AddIndex appends one daily row stamped at midnight.
func (b *IndexBatch) AddIndex(ix solar.Index, source string) {
	b.addRow(ix, ix.Date, ix.KpIndex, ix.ApIndex, source)
}

// AddDay appends one row per 3-hour bucket. SSN and flux repeat across
// the buckets; Kp and ap are bucket-specific.
func (b *IndexBatch) AddDay(d solar.Day, source string) {
	for i := 0; i < solar.Buckets; i++ {
		b.addRow(d.Index, d.BucketTime(i), d.Kp[i], d.Ap[i], source)
	}
}

// IndexWriter batches solar index rows into native inserts.
type IndexWriter struct {
	conn   Doer
	table  string
	size   int
	batch  *IndexBatch
	logger *log.Logger
	rows   uint64
}

// NewIndexWriter returns an IndexWriter inserting into table,
// DefaultIndicesTable when empty.
func NewIndexWriter(conn Doer, table string, size int, logger *log.Logger) *IndexWriter {
	if table == "" {
		table = DefaultIndicesTable
	}
	if size <= 0 {
		size = DefaultBatchSize
	}
	return &IndexWriter{conn: conn, table: table, size: size, batch: NewIndexBatch(), logger: logger}
}

// WriteDay appends the bucket rows of d.
func (w *IndexWriter) WriteDay(ctx context.Context, d solar.Day, source string) error {
	w.batch.AddDay(d, source)
	return w.maybeFlush(ctx)
}

// WriteIndex appends one daily row.
func (w *IndexWriter) WriteIndex(ctx context.Context, ix solar.Index, source string) error {
	w.batch.AddIndex(ix, source)
	return w.maybeFlush(ctx)
}

func (w *IndexWriter) maybeFlush(ctx context.Context) error {
	if w.batch.Len() >= w.size {
		return w.Flush(ctx)
	}
	return nil
}

// Flush inserts the pending rows.
func (w *IndexWriter) Flush(ctx context.Context) error {
	n := w.batch.Len()
	if n == 0 {
		return nil
	}
	query := fmt.Sprintf("INSERT INTO %s (date, time, observed_flux, adjusted_flux, ssn, kp_index, ap_index, xray_short, xray_long, source_file) VALUES", w.table)
	if err := w.conn.Do(ctx, ch.Query{Body: query, Input: w.batch.Input()}); err != nil {
		return fmt.Errorf("insert %d rows into %s: %w", n, w.table, err)
	}
	w.rows += uint64(n)
	if w.logger != nil {
		w.logger.Infof("  Inserted %d rows into %s (%d total)", n, w.table, w.rows)
	}
	w.batch.Reset()
	return nil
}

// Rows returns the number of rows inserted so far.
func (w *IndexWriter) Rows() uint64 { return w.rows }
