package store

import (
	"fmt"
	"io"
	"os"

	"github.com/parquet-go/parquet-go"

	"github.com/KI7MT/ki7mt-hf-predict/internal/p533"
)

// ParquetWriter streams PredictionRows to a zstd-compressed Parquet file.
type ParquetWriter struct {
	w      *parquet.GenericWriter[PredictionRow]
	closer io.Closer
	buf    []PredictionRow
	rows   int
}

const parquetBuffer = 4096

// NewParquetWriter writes to out. Close does not close out.
func NewParquetWriter(out io.Writer) *ParquetWriter {
	return &ParquetWriter{
		w:   parquet.NewGenericWriter[PredictionRow](out, parquet.Compression(&parquet.Zstd)),
		buf: make([]PredictionRow, 0, parquetBuffer),
	}
}

// CreateParquet creates path and returns a writer that closes it.
func CreateParquet(path string) (*ParquetWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create parquet: %w", err)
	}
	pw := NewParquetWriter(f)
	pw.closer = f
	return pw, nil
}

// Write appends rec.
func (p *ParquetWriter) Write(rec *p533.PathRecord) error {
	p.buf = append(p.buf, NewRow(rec))
	if len(p.buf) == cap(p.buf) {
		return p.flush()
	}
	return nil
}

func (p *ParquetWriter) flush() error {
	if len(p.buf) == 0 {
		return nil
	}
	n, err := p.w.Write(p.buf)
	p.rows += n
	p.buf = p.buf[:0]
	if err != nil {
		return fmt.Errorf("parquet write: %w", err)
	}
	return nil
}

// Rows returns the number of rows written.
func (p *ParquetWriter) Rows() int { return p.rows + len(p.buf) }

// Close flushes the footer and closes the file when owned.
func (p *ParquetWriter) Close() error {
	err := p.flush()
	if cerr := p.w.Close(); err == nil {
		err = cerr
	}
	if p.closer != nil {
		if cerr := p.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// ReadParquet reads every row of a predictions file.
func ReadParquet(path string) ([]PredictionRow, error) {
	rows, err := parquet.ReadFile[PredictionRow](path)
	if err != nil {
		return nil, fmt.Errorf("read parquet %s: %w", path, err)
	}
	return rows, nil
}
