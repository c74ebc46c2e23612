// Package formatting provides byte-size formatting and tolerant JSON parsing
// for payloads that may arrive wrapped in prose or markdown.
package formatting

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"unicode"
)

// Base-1024 units. Upload limits and document sizes never approach EB.
var units = []string{"B", "KB", "MB", "GB", "TB", "PB"}

// FormatBytes renders n with the largest unit that keeps the value at or
// above 1, using precision decimals. Negative precision is treated as 0.
func FormatBytes(n int64, precision int) string {
	if n <= 0 {
		return "0 B"
	}
	precision = max(precision, 0)

	size := float64(n)
	i := 0
	for size >= 1024 && i < len(units)-1 {
		size /= 1024
		i++
	}

	return strconv.FormatFloat(size, 'f', precision, 64) + " " + units[i]
}

// ParseBytes parses sizes such as "20MB", "20 MiB", "1.5kb" or "512".
// Units are case-insensitive and always base-1024; a bare number is bytes.
func ParseBytes(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty byte size string")
	}

	split := strings.IndexFunc(s, func(r rune) bool {
		return !unicode.IsDigit(r) && r != '.'
	})
	number, unit := s, ""
	if split >= 0 {
		number, unit = s[:split], strings.TrimSpace(s[split:])
	}
	if number == "" {
		return 0, fmt.Errorf("invalid byte size: %q", s)
	}

	value, err := strconv.ParseFloat(number, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid byte size number: %w", err)
	}

	unit = strings.Replace(strings.ToUpper(unit), "IB", "B", 1)
	if unit == "" {
		return int64(value), nil
	}

	idx := slices.Index(units, unit)
	if idx == -1 {
		return 0, fmt.Errorf("unknown byte size unit: %q", unit)
	}

	for range idx {
		value *= 1024
	}
	return int64(value), nil
}
