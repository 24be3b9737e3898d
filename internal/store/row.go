// Package store persists path predictions: native ClickHouse inserts,
// Parquet export, and the smoothed sunspot lookup from the lab's solar
// tables.
package store

import (
	"encoding/binary"
	"math"

	"github.com/zeebo/xxh3"

	"github.com/KI7MT/ki7mt-hf-predict/internal/band"
	"github.com/KI7MT/ki7mt-hf-predict/internal/geo"
	"github.com/KI7MT/ki7mt-hf-predict/internal/p533"
)

// PredictionRow is one stored prediction in human units: degrees, km,
// MHz, dB. Month is 1-12 and Hour is the UTC hour 1-24 as reported.
type PredictionRow struct {
	ID       uint64  `parquet:"id"`
	Name     string  `parquet:"name"`
	Year     uint16  `parquet:"year"`
	Month    uint8   `parquet:"month"`
	Hour     uint8   `parquet:"hour"`
	SSN      float32 `parquet:"ssn"`
	TxLat    float32 `parquet:"tx_lat"`
	TxLon    float32 `parquet:"tx_lon"`
	RxLat    float32 `parquet:"rx_lat"`
	RxLon    float32 `parquet:"rx_lon"`
	RxName   string  `parquet:"rx_name"`
	Freq     float64 `parquet:"frequency"`
	Band     int32   `parquet:"band"`
	BandName string  `parquet:"band_name"`
	Kind     string  `parquet:"kind"`
	Distance float32 `parquet:"distance"`
	Azimuth  float32 `parquet:"azimuth"`
	Season   string  `parquet:"season"`
	Mode     string  `parquet:"mode"`
	BMUF     float32 `parquet:"bmuf"`
	MUF50    float32 `parquet:"muf50"`
	OPMUF    float32 `parquet:"opmuf"`
	Field    float32 `parquet:"field"`
	Pr       float32 `parquet:"pr"`
	Noise    float32 `parquet:"noise"`
	SNR      float32 `parquet:"snr"`
	SNRXX    float32 `parquet:"snr_xx"`
	BCR      float32 `parquet:"bcr"`
	MIR      float32 `parquet:"mir"`
	OCR      float32 `parquet:"ocr"`
	OCRs     float32 `parquet:"ocr_s"`
	Hash     uint64  `parquet:"fingerprint"`
}

// NewRow flattens rec.
func NewRow(rec *p533.PathRecord) PredictionRow {
	cfg := &rec.Config
	txLat, txLon := cfg.Tx.Degrees()
	rxLat, rxLon := cfg.Rx.Degrees()
	b := band.Lookup(cfg.Frequency)
	var field float64
	if rec.Field != nil {
		field = rec.Field.Value()
	}
	return PredictionRow{
		ID:       Key(cfg),
		Name:     cfg.Name,
		Year:     uint16(cfg.Year),
		Month:    uint8(cfg.Month + 1),
		Hour:     uint8(cfg.Hour + 1),
		SSN:      float32(cfg.SSN),
		TxLat:    float32(txLat),
		TxLon:    float32(txLon),
		RxLat:    float32(rxLat),
		RxLon:    float32(rxLon),
		RxName:   cfg.RxName,
		Freq:     cfg.Frequency,
		Band:     b.ID,
		BandName: b.Name,
		Kind:     cfg.Kind.String(),
		Distance: float32(rec.Distance),
		Azimuth:  float32(rec.Azimuth * geo.R2D),
		Season:   rec.Season.String(),
		Mode:     rec.Dominant.String(),
		BMUF:     float32(rec.BMUF),
		MUF50:    float32(rec.MUF50),
		OPMUF:    float32(rec.OPMUF),
		Field:    float32(field),
		Pr:       float32(rec.Pr),
		Noise:    float32(rec.Noise.Power),
		SNR:      float32(rec.SNR.SNR),
		SNRXX:    float32(rec.SNR.SNRXX),
		BCR:      float32(rec.Reliability.BCR),
		MIR:      float32(rec.Reliability.MIR),
		OCR:      float32(rec.Reliability.OCR),
		OCRs:     float32(rec.Reliability.OCRs),
		Hash:     Fingerprint(rec),
	}
}

// =============================================================================
// Hashing
// =============================================================================

type hashBuf []byte

func (b hashBuf) f(v float64) hashBuf {
	return binary.LittleEndian.AppendUint64(b, math.Float64bits(v))
}

func (b hashBuf) i(v int) hashBuf {
	return binary.LittleEndian.AppendUint64(b, uint64(int64(v)))
}

// Key identifies a prediction by its inputs: the same path, time,
// frequency and system parameters always give the same key. It is the
// row id in ClickHouse.
func Key(cfg *p533.PathConfig) uint64 {
	b := make(hashBuf, 0, 160)
	b = b.i(cfg.Year).i(cfg.Month).i(cfg.Hour).f(cfg.SSN)
	b = b.f(cfg.Tx.Lat).f(cfg.Tx.Lng).f(cfg.Rx.Lat).f(cfg.Rx.Lng)
	b = b.f(cfg.Frequency).f(cfg.Bandwidth).f(cfg.TxPower)
	b = b.f(cfg.SNRr).i(cfg.Reliability).f(cfg.SIRr)
	b = b.i(int(cfg.Kind)).i(int(cfg.Modulation)).i(int(cfg.ManMade.Category)).f(cfg.ManMade.At3MHz)
	if d := cfg.Digital; d != nil {
		b = b.f(d.F0).f(d.T0).f(d.A).f(d.TW).f(d.FW)
	}
	b = append(b, cfg.TxAntenna.Name...)
	b = append(b, 0)
	b = append(b, cfg.RxAntenna.Name...)
	return xxh3.Hash(b)
}

// Fingerprint hashes the computed results of rec. Two runs of the same
// input must give the same fingerprint.
func Fingerprint(rec *p533.PathRecord) uint64 {
	b := make(hashBuf, 0, 512)
	b = b.f(rec.Distance).f(rec.Azimuth).f(rec.Dmax)
	b = b.f(rec.BMUF).f(rec.MUF10).f(rec.MUF50).f(rec.MUF90).f(rec.OPMUF)
	b = b.i(rec.LowestE).i(rec.LowestF2).i(int(rec.Dominant.Layer())).i(rec.Dominant.Hops())
	rec.Modes(func(_ p533.ModeIndex, m *p533.ModeRecord) {
		b = b.f(m.BMUF).f(m.Prw).f(m.Tau)
	})
	if rec.Field != nil {
		b = b.f(rec.Field.Value())
	}
	b = b.f(rec.Pr).f(rec.Noise.Power).f(rec.SNR.SNR).f(rec.SNR.SNRXX).f(rec.SIR.SIR)
	r := &rec.Reliability
	b = b.f(r.BCR).f(r.MIR).f(r.OCR).f(r.OCRs)
	return xxh3.Hash(b)
}
