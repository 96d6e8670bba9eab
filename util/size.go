package util

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	KB int64 = 1024
	MB       = 1024 * KB
	GB       = 1024 * MB
)

var sizeUnits = []struct {
	suffix string
	mult   int64
}{
	{"GB", GB},
	{"MB", MB},
	{"KB", KB},
	{"B", 1},
}

// ParseSize parses a human-readable size string (e.g. "200MB", "512KB", "1GB")
// into bytes. Returns defaultBytes if the string is empty or malformed.
func ParseSize(s string, defaultBytes int64) int64 {
	n, err := ParseSizeStrict(s)
	if err != nil {
		return defaultBytes
	}
	return n
}

// ParseSizeStrict is ParseSize with an error for empty or malformed input.
func ParseSizeStrict(s string) (int64, error) {
	v := strings.ToUpper(strings.TrimSpace(s))
	if v == "" {
		return 0, fmt.Errorf("empty size")
	}
	mult := int64(1)
	for _, u := range sizeUnits {
		if strings.HasSuffix(v, u.suffix) {
			mult = u.mult
			v = strings.TrimSpace(strings.TrimSuffix(v, u.suffix))
			break
		}
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid size %q", s)
	}
	return n * mult, nil
}

// FormatSize renders bytes with the largest unit that divides it evenly.
func FormatSize(n int64) string {
	for _, u := range sizeUnits {
		if n >= u.mult && n%u.mult == 0 {
			return strconv.FormatInt(n/u.mult, 10) + u.suffix
		}
	}
	return strconv.FormatInt(n, 10) + "B"
}
