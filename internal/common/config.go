// Package common provides shared configuration, logging and progress
// reporting for the ki7mt-hf-predict tools.
package common

import (
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
)

// Config holds common configuration for all applications.
type Config struct {
	ClickHouseHost     string
	ClickHousePort     int
	ClickHouseDatabase string
	ClickHouseUser     string
	ClickHousePassword string
	DataDir            string
	P533CoeffDir       string // overrides DataDir/p533/coeff
	P533NoiseDir       string // overrides DataDir/p533/noise
	LogLevel           string
}

// DefaultConfig returns configuration from the environment with defaults.
func DefaultConfig() *Config {
	return &Config{
		ClickHouseHost:     getEnv("CLICKHOUSE_HOST", "localhost"),
		ClickHousePort:     getEnvInt("CLICKHOUSE_PORT", 9000),
		ClickHouseDatabase: getEnv("CLICKHOUSE_DATABASE", "p533"),
		ClickHouseUser:     getEnv("CLICKHOUSE_USER", "default"),
		ClickHousePassword: getEnv("CLICKHOUSE_PASSWORD", ""),
		DataDir:            getEnv("KI7MT_DATA_DIR", "/var/lib/ki7mt-ai-lab"),
		P533CoeffDir:       getEnv("P533_COEFF_DIR", ""),
		P533NoiseDir:       getEnv("P533_NOISE_DIR", ""),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
	}
}

// ClickHouseAddr returns host:port for the native protocol.
func (c *Config) ClickHouseAddr() string {
	return c.ClickHouseHost + ":" + strconv.Itoa(c.ClickHousePort)
}

// CoefficientDir returns the ionospheric coefficient directory.
func (c *Config) CoefficientDir() string {
	if c.P533CoeffDir != "" {
		return c.P533CoeffDir
	}
	return filepath.Join(c.DataDir, "p533", "coeff")
}

// NoiseDir returns the atmospheric noise data directory.
func (c *Config) NoiseDir() string {
	if c.P533NoiseDir != "" {
		return c.P533NoiseDir
	}
	return filepath.Join(c.DataDir, "p533", "noise")
}

// AntennaDir returns the antenna pattern directory.
func (c *Config) AntennaDir() string {
	return filepath.Join(c.DataDir, "p533", "antennas")
}

// ReportDir returns the directory for dump reports.
func (c *Config) ReportDir() string {
	return filepath.Join(c.DataDir, "p533", "reports")
}

// NewLogger returns a logger writing to w at the configured level. An
// unknown level falls back to info.
func (c *Config) NewLogger(w io.Writer, prefix string) *log.Logger {
	level, err := log.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil {
		level = log.InfoLevel
	}
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		Prefix:          prefix,
		Level:           level,
	})
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
