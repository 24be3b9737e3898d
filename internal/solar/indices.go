package solar

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"time"
)

// Buckets is the number of 3-hour Kp/ap buckets per day.
const Buckets = 8

// Day is one day of the GFZ Potsdam Kp/ap/SN/F10.7 file. The embedded
// Index carries the daily values, with KpIndex the mean of the buckets and
// ApIndex the daily Ap.
type Day struct {
	Index
	Kp [Buckets]float32 // 3-hourly Kp (0-9 scale)
	Ap [Buckets]float32 // 3-hourly ap
}

// BucketTime returns the start of bucket i (00, 03, ..., 21 UTC).
func (d Day) BucketTime(i int) time.Time {
	return d.Date.Add(time.Duration(3*i) * time.Hour)
}

// ParseGFZLine parses one data line of the GFZ Kp file.
// Format (whitespace-delimited):
//
//	Col  0-2: Year Month Day
//	Col  3-6: day of year, modified Julian day, Bartels rotation, day in rotation
//	Col  7-14: Kp1..Kp8
//	Col 15-22: ap1..ap8
//	Col 23: Ap (daily)
//	Col 24: SN
//	Col 25: F10.7obs
//	Col 26: F10.7adj
//
// Missing values are -1 and are stored as 0.
func ParseGFZLine(line string) (Day, bool) {
	fields := strings.Fields(line)
	if len(fields) < 27 {
		return Day{}, false
	}

	year, err := strconv.Atoi(fields[0])
	if err != nil || year < 1900 || year > 2100 {
		return Day{}, false
	}
	month, _ := strconv.Atoi(fields[1])
	day, _ := strconv.Atoi(fields[2])
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return Day{}, false
	}

	d := Day{}
	d.Date = time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)

	var kpSum float32
	for i := 0; i < Buckets; i++ {
		d.Kp[i] = nonNegative(fields[7+i])
		d.Ap[i] = nonNegative(fields[15+i])
		kpSum += d.Kp[i]
	}
	d.KpIndex = kpSum / Buckets
	d.ApIndex = nonNegative(fields[23])
	d.SSN = nonNegative(fields[24])
	d.ObservedFlux = nonNegative(fields[25])
	d.AdjustedFlux = nonNegative(fields[26])
	return d, true
}

func nonNegative(s string) float32 {
	v, err := strconv.ParseFloat(s, 32)
	if err != nil || v < 0 {
		return 0
	}
	return float32(v)
}

// ParseGFZ reads the GFZ file and returns the days within [from, to].
func ParseGFZ(r io.Reader, from, to time.Time) ([]Day, error) {
	var days []Day
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		d, ok := ParseGFZLine(line)
		if !ok {
			continue
		}
		if d.Date.Before(from) || d.Date.After(to) {
			continue
		}
		days = append(days, d)
	}
	return days, scanner.Err()
}

// ParseSIDC reads the SILSO daily sunspot CSV (year;month;day;fraction;
// SN;...). Days with a missing SN (-1) are skipped.
func ParseSIDC(r io.Reader) ([]Index, error) {
	var out []Index
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, ";")
		if len(fields) < 5 {
			continue
		}

		year, _ := strconv.Atoi(strings.TrimSpace(fields[0]))
		month, _ := strconv.Atoi(strings.TrimSpace(fields[1]))
		day, _ := strconv.Atoi(strings.TrimSpace(fields[2]))
		if year < 1900 || year > 2100 || month < 1 || month > 12 || day < 1 || day > 31 {
			continue
		}
		ssn, err := strconv.ParseFloat(strings.TrimSpace(fields[4]), 32)
		if err != nil || ssn < 0 {
			continue
		}
		out = append(out, Index{
			Date: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC),
			SSN:  float32(ssn),
		})
	}
	return out, scanner.Err()
}

// MonthlyR12 returns R12 for every month of indices whose 13-month window
// is covered, keyed by the first of the month.
func MonthlyR12(indices []Index) map[time.Time]float64 {
	seen := make(map[time.Time]bool)
	for _, ix := range indices {
		d := ix.Date.UTC()
		seen[time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC)] = true
	}
	out := make(map[time.Time]float64)
	for m := range seen {
		if r12, err := SmoothedSSN(indices, m.Year(), m.Month()); err == nil {
			out[m] = r12
		}
	}
	return out
}
