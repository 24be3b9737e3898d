package common

import (
	"strings"
	"sync/atomic"

	"github.com/charmbracelet/log"
)

// Path and site names end up in report lines and ClickHouse string
// columns, so they are cleaned once at the input boundary.
//
// Rules:
//   - Replace: double backslashes (\\) with forward slash (/)
//   - Strip: double quotes ("), single quotes ('), single backslashes (\)
//   - Replace: control characters (tab, newline, ...) with a space
//   - Preserve: forward slashes for names such as "W1AW/VK2"
//   - Thread-safe: stateless, atomic counters only

var (
	sanitizedCount atomic.Int64 // Total names sanitized
	modifiedCount  atomic.Int64 // Names that required changes
)

const (
	charDoubleQuote = '"'
	charSingleQuote = '\''
	charBackslash   = '\\'
)

// MaxNameLength bounds a sanitized name.
const MaxNameLength = 64

// SanitizeName cleans a path or site name. When logger is non-nil changed
// names are logged at debug level under field.
func SanitizeName(name, field string, logger *log.Logger) string {
	sanitizedCount.Add(1)

	// Fast path: no allocation for clean names
	if !needsSanitization(name) {
		return name
	}

	sanitized := sanitizeBytes(name)
	if sanitized != name {
		modifiedCount.Add(1)
		if logger != nil {
			logger.Debug("[SANITIZE]", "field", field, "from", name, "to", sanitized)
		}
	}
	return sanitized
}

func needsSanitization(s string) bool {
	if len(s) > MaxNameLength {
		return true
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == charDoubleQuote || c == charSingleQuote || c == charBackslash || c < 0x20 || c == 0x7f {
			return true
		}
	}
	return false
}

func sanitizeBytes(s string) string {
	buf := make([]byte, 0, len(s))

	for i := 0; i < len(s) && len(buf) < MaxNameLength; i++ {
		c := s[i]

		// \\ becomes /
		if c == charBackslash && i+1 < len(s) && s[i+1] == charBackslash {
			buf = append(buf, '/')
			i++
			continue
		}
		if c == charDoubleQuote || c == charSingleQuote || c == charBackslash {
			continue
		}
		if c < 0x20 || c == 0x7f {
			buf = append(buf, ' ')
			continue
		}
		buf = append(buf, c)
	}

	// Truncation may split a multi-byte rune.
	return strings.ToValidUTF8(string(buf), "")
}

// SanitizerStats returns (total processed, total modified).
func SanitizerStats() (total, modified int64) {
	return sanitizedCount.Load(), modifiedCount.Load()
}

// ResetSanitizerStats resets the counters (for testing)
func ResetSanitizerStats() {
	sanitizedCount.Store(0)
	modifiedCount.Store(0)
}
