package gig

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the canonical calendar-day form stored on every gig. Dates
// are compared lexicographically, which matches chronology only when every
// component is zero-padded, so canonicalization happens at write time.
const DateLayout = "2006-01-02"

// CanonicalDate normalizes an ISO-ish calendar date ("2024-1-2" or
// "2024-01-02") to the zero-padded canonical form, validating that the
// day actually exists.
func CanonicalDate(value string) (string, error) {
	parts := strings.Split(strings.TrimSpace(value), "-")
	if len(parts) != 3 {
		return "", fmt.Errorf("%w: %q", ErrInvalidDate, value)
	}
	return canonicalYMD(parts[0], parts[1], parts[2], value)
}

// ParseFlexibleDate is the import-side parser: day/month/year slash order is
// tried first, then ISO order. The result is always canonical.
func ParseFlexibleDate(value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if parts := strings.Split(trimmed, "/"); len(parts) == 3 {
		return canonicalYMD(parts[2], parts[1], parts[0], value)
	}
	return CanonicalDate(trimmed)
}

func canonicalYMD(year, month, day, original string) (string, error) {
	y, errY := strconv.Atoi(strings.TrimSpace(year))
	m, errM := strconv.Atoi(strings.TrimSpace(month))
	d, errD := strconv.Atoi(strings.TrimSpace(day))
	if errY != nil || errM != nil || errD != nil || len(strings.TrimSpace(year)) != 4 {
		return "", fmt.Errorf("%w: %q", ErrInvalidDate, original)
	}

	canonical := fmt.Sprintf("%04d-%02d-%02d", y, m, d)
	parsed, err := time.Parse(DateLayout, canonical)
	if err != nil || parsed.Year() != y || int(parsed.Month()) != m || parsed.Day() != d {
		return "", fmt.Errorf("%w: %q", ErrInvalidDate, original)
	}
	return canonical, nil
}
