package source

import (
	"log/slog"
	"strings"
	"time"
)

// MaxPages bounds a paginated fetch so it terminates even when the vendor
// never stops returning a next-page token.
func MaxPages(limit, pageSize int) int {
	if limit <= 0 || pageSize <= 0 {
		return 0
	}
	return (limit + pageSize - 1) / pageSize
}

// PageSize caps the vendor maximum at limit.
func PageSize(limit, vendorMax int) int {
	if limit < vendorMax {
		return limit
	}
	return vendorMax
}

// ParseDate tries each layout in order. Unparseable values fall back to now
// with a warning; a bad date never drops a record.
func ParseDate(logger *slog.Logger, value string, now time.Time, layouts ...string) time.Time {
	v := strings.TrimSpace(value)
	for _, layout := range layouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC()
		}
	}
	logger.Warn("could not parse date, using fetch time", "date", value)
	return now.UTC()
}

// Truncate returns at most n runes of s.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
