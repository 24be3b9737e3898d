package store

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/KI7MT/ki7mt-hf-predict/internal/common"
	"github.com/KI7MT/ki7mt-hf-predict/internal/solar"
)

// DefaultIndicesTable is the table written by the lab's solar ingest tools.
const DefaultIndicesTable = "solar.indices_raw"

// Selecter runs a query and scans all rows into dest. driver.Conn
// implements it.
type Selecter interface {
	Select(ctx context.Context, dest any, query string, args ...any) error
}

// OpenSSN opens a clickhouse-go connection for index lookups.
func OpenSSN(ctx context.Context, cfg *common.Config) (driver.Conn, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.ClickHouseAddr()},
		Auth: clickhouse.Auth{
			Database: cfg.ClickHouseDatabase,
			Username: cfg.ClickHouseUser,
			Password: cfg.ClickHousePassword,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
		MaxOpenConns:    2,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Hour,
	})
	if err != nil {
		return nil, fmt.Errorf("clickhouse open: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}
	return conn, nil
}

// SSNSource derives R12 from the stored sunspot indices.
type SSNSource struct {
	conn  Selecter
	table string
}

// NewSSNSource returns a source reading table, DefaultIndicesTable when
// empty.
func NewSSNSource(conn Selecter, table string) *SSNSource {
	if table == "" {
		table = DefaultIndicesTable
	}
	return &SSNSource{conn: conn, table: table}
}

// Smoothed returns the 12-month smoothed sunspot number for year/month
// (month 1-12). It reads the thirteen months centred on the target.
func (s *SSNSource) Smoothed(ctx context.Context, year int, month time.Month) (float64, error) {
	centre := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	from := centre.AddDate(0, -6, 0)
	to := centre.AddDate(0, 7, 0)

	var rows []solar.Index
	query := fmt.Sprintf(`SELECT date, observed_flux, adjusted_flux, ssn, kp_index, ap_index
FROM %s
WHERE date >= ? AND date < ?
ORDER BY date`, s.table)
	if err := s.conn.Select(ctx, &rows, query, from, to); err != nil {
		return 0, fmt.Errorf("select %s: %w", s.table, err)
	}
	r12, err := solar.SmoothedSSN(rows, year, month)
	if err != nil {
		return 0, fmt.Errorf("R12 %d-%02d from %d rows: %w", year, int(month), len(rows), err)
	}
	return r12, nil
}
