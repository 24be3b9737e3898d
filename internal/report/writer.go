package report

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/jonboulle/clockwork"
	"github.com/klauspost/pgzip"
	"github.com/lestrrat-go/strftime"

	"github.com/KI7MT/ki7mt-hf-predict/internal/p533"
)

// FilePattern is the strftime layout of dump file names.
const FilePattern = "PDD%d%m%y-%H%M%S.txt"

// FileName returns the dump file name for a timestamp.
func FileName(t time.Time) (string, error) {
	return strftime.Format(FilePattern, t)
}

// Options configures a report Writer.
type Options struct {
	Dir    string
	Gzip   bool            // write name.txt.gz through pgzip
	Clock  clockwork.Clock // defaults to the real clock
	Logger *log.Logger     // optional
}

// Writer appends dumps to one timestamped report file. The header is
// written before the first record and the tail on Close.
type Writer struct {
	path    string
	clock   clockwork.Clock
	logger  *log.Logger
	file    *os.File
	gz      *pgzip.Writer
	buf     *bufio.Writer
	started bool
	records int
}

// Open creates the report file in opts.Dir.
func Open(opts Options) (*Writer, error) {
	clk := opts.Clock
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	name, err := FileName(clk.Now())
	if err != nil {
		return nil, fmt.Errorf("report file name: %w", err)
	}
	if opts.Gzip {
		name += ".gz"
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("report dir: %w", err)
	}
	path := filepath.Join(opts.Dir, name)
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create report: %w", err)
	}

	w := &Writer{path: path, clock: clk, logger: opts.Logger, file: f}
	var dst io.Writer = f
	if opts.Gzip {
		w.gz = pgzip.NewWriter(f)
		dst = w.gz
	}
	w.buf = bufio.NewWriterSize(dst, 64*1024)
	return w, nil
}

// Path returns the file being written.
func (w *Writer) Path() string { return w.path }

// Write appends the dump of rec.
func (w *Writer) Write(rec *p533.PathRecord) error {
	if !w.started {
		if err := Header(w.buf, w.clock.Now()); err != nil {
			return err
		}
		w.started = true
	}
	if err := Dump(w.buf, rec); err != nil {
		return fmt.Errorf("dump %s: %w", rec.Config.Name, err)
	}
	w.records++
	return nil
}

// Close writes the tail and closes the file.
func (w *Writer) Close() error {
	err := Tail(w.buf)
	if ferr := w.buf.Flush(); err == nil {
		err = ferr
	}
	if w.gz != nil {
		if gerr := w.gz.Close(); err == nil {
			err = gerr
		}
	}
	if w.logger != nil {
		if info, serr := w.file.Stat(); serr == nil {
			w.logger.Info("report written", "file", w.path, "records", w.records,
				"size", humanize.Bytes(uint64(info.Size())))
		}
	}
	if cerr := w.file.Close(); err == nil {
		err = cerr
	}
	return err
}
