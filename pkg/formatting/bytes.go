// Package formatting converts byte sizes between human-readable strings and counts.
package formatting

import (
	"fmt"
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// Units are base-1024 and ordered by exponent.
var units = []string{"B", "KB", "MB", "GB", "TB", "PB"}

var sizePattern = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s*([A-Za-z]*)$`)

// ParseBytes parses a size such as "1MB", "512 kb", or "2048" into a byte count.
// A bare number is bytes.
func ParseBytes(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty byte size string")
	}

	m := sizePattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid byte size: %q", s)
	}

	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid byte size number: %w", err)
	}

	exp := 0
	if m[2] != "" {
		exp = slices.Index(units, strings.ToUpper(m[2]))
		if exp < 0 {
			return 0, fmt.Errorf("unknown byte size unit: %q", m[2])
		}
	}

	return int64(value * math.Pow(1024, float64(exp))), nil
}

// FormatBytes renders n with the largest unit that keeps the value at or above one.
func FormatBytes(n int64) string {
	if n < 1024 {
		return fmt.Sprintf("%d B", n)
	}

	value := float64(n)
	exp := 0
	for value >= 1024 && exp < len(units)-1 {
		value /= 1024
		exp++
	}

	return strconv.FormatFloat(value, 'f', -1, 64) + " " + units[exp]
}
