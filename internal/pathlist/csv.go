package pathlist

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/pgzip"

	"github.com/KI7MT/ki7mt-hf-predict/internal/p533"
)

// =============================================================================
// CSV Path List Constants
// =============================================================================

const (
	// Error throttling: don't spam logs with parse errors
	MaxErrorsToLog = 10

	// CSV column indices
	ColName      = 0
	ColTxName    = 1
	ColTxLat     = 2
	ColTxLon     = 3
	ColRxName    = 4
	ColRxLat     = 5
	ColRxLon     = 6
	ColFrequency = 7
	ColHour      = 8 // optional, UTC 1-24

	// Minimum columns for a valid path row
	MinColumns = 8
)

// ParseStats counts rows seen by ReadCSV.
type ParseStats struct {
	TotalRowsRead      int
	SkippedEmptyRows   int
	FailedRows         int
	SuccessfullyParsed int
}

// =============================================================================
// CSV Parsing
// =============================================================================

// ReadCSV reads one path per row. Rows take their system parameters from
// base and override the name, both sites and the frequency; the optional
// hour column replaces base's hours. Bad rows are counted, logged (first
// MaxErrorsToLog) and skipped. Lines starting with '#' and a header row
// whose first field is "name" are ignored.
func (c *Converter) ReadCSV(r io.Reader, base Document, stats *ParseStats) ([]p533.PathConfig, error) {
	if stats == nil {
		stats = &ParseStats{}
	}
	csvReader := csv.NewReader(r)
	csvReader.LazyQuotes = true
	csvReader.FieldsPerRecord = -1
	csvReader.Comment = '#'

	errorCount := 0
	logError := func(format string, args ...any) {
		stats.FailedRows++
		errorCount++
		if errorCount <= MaxErrorsToLog && c.Logger != nil {
			c.Logger.Warn(fmt.Sprintf(format, args...))
		}
	}

	var out []p533.PathConfig
	for {
		record, err := csvReader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			logError("CSV read error (row %d): %v", stats.TotalRowsRead, err)
			continue
		}

		stats.TotalRowsRead++

		if len(record) == 0 || (len(record) == 1 && strings.TrimSpace(record[0]) == "") {
			stats.SkippedEmptyRows++
			continue
		}
		if stats.TotalRowsRead == 1 && strings.EqualFold(strings.TrimSpace(record[0]), "name") {
			continue
		}

		doc, err := ParseCSVRecord(record, base)
		if err != nil {
			logError("Parse error (row %d): %v", stats.TotalRowsRead, err)
			continue
		}
		cfgs, err := c.Configs(doc)
		if err != nil {
			logError("Parse error (row %d): %v", stats.TotalRowsRead, err)
			continue
		}

		stats.SuccessfullyParsed++
		out = append(out, cfgs...)
	}

	if errorCount > MaxErrorsToLog && c.Logger != nil {
		c.Logger.Warn(fmt.Sprintf("... and %d more parse errors (suppressed)", errorCount-MaxErrorsToLog))
	}
	return out, nil
}

// ReadCSVFile opens path, gunzipping when it ends in .gz, and calls ReadCSV.
func (c *Converter) ReadCSVFile(path string, base Document, stats *ParseStats) ([]p533.PathConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("gzip %s: %w", path, err)
		}
		defer gz.Close()
		r = gz
	}
	return c.ReadCSV(r, base, stats)
}

// ParseCSVRecord applies one row to a copy of base.
func ParseCSVRecord(record []string, base Document) (Document, error) {
	if len(record) < MinColumns {
		return base, fmt.Errorf("insufficient columns: got %d, need %d", len(record), MinColumns)
	}

	doc := base
	doc.Name = strings.TrimSpace(record[ColName])
	doc.Tx.Name = strings.TrimSpace(record[ColTxName])
	doc.Rx.Name = strings.TrimSpace(record[ColRxName])

	var err error
	if doc.Tx.Lat, err = parseFloat64(record[ColTxLat]); err != nil {
		return base, fmt.Errorf("invalid tx latitude: %w", err)
	}
	if doc.Tx.Lon, err = parseFloat64(record[ColTxLon]); err != nil {
		return base, fmt.Errorf("invalid tx longitude: %w", err)
	}
	if doc.Rx.Lat, err = parseFloat64(record[ColRxLat]); err != nil {
		return base, fmt.Errorf("invalid rx latitude: %w", err)
	}
	if doc.Rx.Lon, err = parseFloat64(record[ColRxLon]); err != nil {
		return base, fmt.Errorf("invalid rx longitude: %w", err)
	}

	freq, err := parseFloat64(record[ColFrequency])
	if err != nil {
		return base, fmt.Errorf("invalid frequency: %w", err)
	}
	doc.Frequencies = []float64{freq}

	if len(record) > ColHour && strings.TrimSpace(record[ColHour]) != "" {
		hour, err := strconv.Atoi(strings.TrimSpace(record[ColHour]))
		if err != nil {
			return base, fmt.Errorf("invalid hour: %w", err)
		}
		doc.Hours = []int{hour}
	}
	return doc, nil
}

func parseFloat64(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty")
	}
	return strconv.ParseFloat(s, 64)
}
