package store

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/ch-go"
	"github.com/ClickHouse/ch-go/proto"
	"github.com/charmbracelet/log"
	"github.com/jonboulle/clockwork"

	"github.com/KI7MT/ki7mt-hf-predict/internal/common"
	"github.com/KI7MT/ki7mt-hf-predict/internal/p533"
)

// DefaultTable is the predictions table.
const DefaultTable = "p533.predictions"

// DefaultBatchSize is the number of rows per native insert.
const DefaultBatchSize = 50_000

const predictionsDDL = `CREATE TABLE IF NOT EXISTS %s (
	id          UInt64,
	name        String,
	year        UInt16,
	month       UInt8,
	hour        UInt8,
	ssn         Float32,
	tx_lat      Float32,
	tx_lon      Float32,
	rx_lat      Float32,
	rx_lon      Float32,
	rx_name     String,
	frequency   Float64,
	band        Int32,
	band_name   LowCardinality(String),
	kind        LowCardinality(String),
	distance    Float32,
	azimuth     Float32,
	season      LowCardinality(String),
	mode        LowCardinality(String),
	bmuf        Float32,
	muf50       Float32,
	opmuf       Float32,
	field       Float32,
	pr          Float32,
	noise       Float32,
	snr         Float32,
	snr_xx      Float32,
	bcr         Float32,
	mir         Float32,
	ocr         Float32,
	ocr_s       Float32,
	fingerprint UInt64,
	created_at  DateTime
) ENGINE = ReplacingMergeTree(created_at)
ORDER BY (band, year, month, hour, id)`

// =============================================================================
// Native column batch
// =============================================================================

// PredictionBatch holds column data for native insert
type PredictionBatch struct {
	ID        *proto.ColUInt64
	Name      *proto.ColStr
	Year      *proto.ColUInt16
	Month     *proto.ColUInt8
	Hour      *proto.ColUInt8
	SSN       *proto.ColFloat32
	TxLat     *proto.ColFloat32
	TxLon     *proto.ColFloat32
	RxLat     *proto.ColFloat32
	RxLon     *proto.ColFloat32
	RxName    *proto.ColStr
	Freq      *proto.ColFloat64
	Band      *proto.ColInt32
	BandName  *proto.ColLowCardinality[string]
	Kind      *proto.ColLowCardinality[string]
	Distance  *proto.ColFloat32
	Azimuth   *proto.ColFloat32
	Season    *proto.ColLowCardinality[string]
	Mode      *proto.ColLowCardinality[string]
	BMUF      *proto.ColFloat32
	MUF50     *proto.ColFloat32
	OPMUF     *proto.ColFloat32
	Field     *proto.ColFloat32
	Pr        *proto.ColFloat32
	Noise     *proto.ColFloat32
	SNR       *proto.ColFloat32
	SNRXX     *proto.ColFloat32
	BCR       *proto.ColFloat32
	MIR       *proto.ColFloat32
	OCR       *proto.ColFloat32
	OCRs      *proto.ColFloat32
	Hash      *proto.ColUInt64
	CreatedAt *proto.ColDateTime
}

func lowCard() *proto.ColLowCardinality[string] {
	return new(proto.ColStr).LowCardinality()
}

// NewPredictionBatch returns an empty batch.
func NewPredictionBatch() *PredictionBatch {
	return &PredictionBatch{
		ID:        new(proto.ColUInt64),
		Name:      new(proto.ColStr),
		Year:      new(proto.ColUInt16),
		Month:     new(proto.ColUInt8),
		Hour:      new(proto.ColUInt8),
		SSN:       new(proto.ColFloat32),
		TxLat:     new(proto.ColFloat32),
		TxLon:     new(proto.ColFloat32),
		RxLat:     new(proto.ColFloat32),
		RxLon:     new(proto.ColFloat32),
		RxName:    new(proto.ColStr),
		Freq:      new(proto.ColFloat64),
		Band:      new(proto.ColInt32),
		BandName:  lowCard(),
		Kind:      lowCard(),
		Distance:  new(proto.ColFloat32),
		Azimuth:   new(proto.ColFloat32),
		Season:    lowCard(),
		Mode:      lowCard(),
		BMUF:      new(proto.ColFloat32),
		MUF50:     new(proto.ColFloat32),
		OPMUF:     new(proto.ColFloat32),
		Field:     new(proto.ColFloat32),
		Pr:        new(proto.ColFloat32),
		Noise:     new(proto.ColFloat32),
		SNR:       new(proto.ColFloat32),
		SNRXX:     new(proto.ColFloat32),
		BCR:       new(proto.ColFloat32),
		MIR:       new(proto.ColFloat32),
		OCR:       new(proto.ColFloat32),
		OCRs:      new(proto.ColFloat32),
		Hash:      new(proto.ColUInt64),
		CreatedAt: new(proto.ColDateTime),
	}
}

// Reset clears all columns.
func (b *PredictionBatch) Reset() {
	for _, c := range b.Input() {
		c.Data.(proto.Column).Reset()
	}
}

// Len returns the number of rows.
func (b *PredictionBatch) Len() int {
	return b.ID.Rows()
}

// Input returns the columns in table order.
func (b *PredictionBatch) Input() proto.Input {
	return proto.Input{
		{Name: "id", Data: b.ID},
		{Name: "name", Data: b.Name},
		{Name: "year", Data: b.Year},
		{Name: "month", Data: b.Month},
		{Name: "hour", Data: b.Hour},
		{Name: "ssn", Data: b.SSN},
		{Name: "tx_lat", Data: b.TxLat},
		{Name: "tx_lon", Data: b.TxLon},
		{Name: "rx_lat", Data: b.RxLat},
		{Name: "rx_lon", Data: b.RxLon},
		{Name: "rx_name", Data: b.RxName},
		{Name: "frequency", Data: b.Freq},
		{Name: "band", Data: b.Band},
		{Name: "band_name", Data: b.BandName},
		{Name: "kind", Data: b.Kind},
		{Name: "distance", Data: b.Distance},
		{Name: "azimuth", Data: b.Azimuth},
		{Name: "season", Data: b.Season},
		{Name: "mode", Data: b.Mode},
		{Name: "bmuf", Data: b.BMUF},
		{Name: "muf50", Data: b.MUF50},
		{Name: "opmuf", Data: b.OPMUF},
		{Name: "field", Data: b.Field},
		{Name: "pr", Data: b.Pr},
		{Name: "noise", Data: b.Noise},
		{Name: "snr", Data: b.SNR},
		{Name: "snr_xx", Data: b.SNRXX},
		{Name: "bcr", Data: b.BCR},
		{Name: "mir", Data: b.MIR},
		{Name: "ocr", Data: b.OCR},
		{Name: "ocr_s", Data: b.OCRs},
		{Name: "fingerprint", Data: b.Hash},
		{Name: "created_at", Data: b.CreatedAt},
	}
}

// Append adds one row.
func (b *PredictionBatch) Append(r PredictionRow, at time.Time) {
	b.ID.Append(r.ID)
	b.Name.Append(r.Name)
	b.Year.Append(r.Year)
	b.Month.Append(r.Month)
	b.Hour.Append(r.Hour)
	b.SSN.Append(r.SSN)
	b.TxLat.Append(r.TxLat)
	b.TxLon.Append(r.TxLon)
	b.RxLat.Append(r.RxLat)
	b.RxLon.Append(r.RxLon)
	b.RxName.Append(r.RxName)
	b.Freq.Append(r.Freq)
	b.Band.Append(r.Band)
	b.BandName.Append(r.BandName)
	b.Kind.Append(r.Kind)
	b.Distance.Append(r.Distance)
	b.Azimuth.Append(r.Azimuth)
	b.Season.Append(r.Season)
	b.Mode.Append(r.Mode)
	b.BMUF.Append(r.BMUF)
	b.MUF50.Append(r.MUF50)
	b.OPMUF.Append(r.OPMUF)
	b.Field.Append(r.Field)
	b.Pr.Append(r.Pr)
	b.Noise.Append(r.Noise)
	b.SNR.Append(r.SNR)
	b.SNRXX.Append(r.SNRXX)
	b.BCR.Append(r.BCR)
	b.MIR.Append(r.MIR)
	b.OCR.Append(r.OCR)
	b.OCRs.Append(r.OCRs)
	b.Hash.Append(r.Hash)
	b.CreatedAt.Append(at)
}

// =============================================================================
// Writer
// =============================================================================

// Doer runs a native query. *ch.Client implements it.
type Doer interface {
	Do(ctx context.Context, q ch.Query) error
}

// Dial connects to ClickHouse over the native protocol.
func Dial(ctx context.Context, cfg *common.Config) (*ch.Client, error) {
	conn, err := ch.Dial(ctx, ch.Options{
		Address:     cfg.ClickHouseAddr(),
		Database:    cfg.ClickHouseDatabase,
		User:        cfg.ClickHouseUser,
		Password:    cfg.ClickHousePassword,
		Compression: ch.CompressionLZ4,
	})
	if err != nil {
		return nil, fmt.Errorf("clickhouse dial %s: %w", cfg.ClickHouseAddr(), err)
	}
	return conn, nil
}

// Writer batches records into native inserts.
type Writer struct {
	conn   Doer
	table  string
	size   int
	batch  *PredictionBatch
	clock  clockwork.Clock
	logger *log.Logger
	rows   uint64
}

// NewWriter returns a Writer inserting into table (database.table). A
// non-positive size uses DefaultBatchSize; a nil clock the real clock.
func NewWriter(conn Doer, table string, size int, clock clockwork.Clock, logger *log.Logger) *Writer {
	if table == "" {
		table = DefaultTable
	}
	if size <= 0 {
		size = DefaultBatchSize
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Writer{conn: conn, table: table, size: size, batch: NewPredictionBatch(), clock: clock, logger: logger}
}

// EnsureTable creates the predictions table when missing.
func (w *Writer) EnsureTable(ctx context.Context) error {
	if err := w.conn.Do(ctx, ch.Query{Body: fmt.Sprintf(predictionsDDL, w.table)}); err != nil {
		return fmt.Errorf("create %s: %w", w.table, err)
	}
	return nil
}

// Write appends rec and flushes a full batch.
func (w *Writer) Write(ctx context.Context, rec *p533.PathRecord) error {
	w.batch.Append(NewRow(rec), w.clock.Now())
	if w.batch.Len() >= w.size {
		return w.Flush(ctx)
	}
	return nil
}

// Flush inserts the pending rows.
func (w *Writer) Flush(ctx context.Context) error {
	n := w.batch.Len()
	if n == 0 {
		return nil
	}
	query := fmt.Sprintf("INSERT INTO %s VALUES", w.table)
	if err := w.conn.Do(ctx, ch.Query{Body: query, Input: w.batch.Input()}); err != nil {
		return fmt.Errorf("insert %d rows into %s: %w", n, w.table, err)
	}
	w.rows += uint64(n)
	if w.logger != nil {
		w.logger.Debug("flushed", "table", w.table, "rows", n, "total", w.rows)
	}
	w.batch.Reset()
	return nil
}

// Rows returns the number of rows inserted so far.
func (w *Writer) Rows() uint64 { return w.rows }

// Close flushes the pending rows.
func (w *Writer) Close(ctx context.Context) error {
	return w.Flush(ctx)
}
