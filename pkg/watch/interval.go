package watch

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const day = 24 * time.Hour

// ParseInterval accepts Go durations plus a leading day count ("1d", "2d6h")
func ParseInterval(s string) (time.Duration, error) {
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	days, rest, found := strings.Cut(s, "d")
	if !found {
		return 0, fmt.Errorf("invalid interval %q (examples: 30m, 1h, 24h, 1d)", s)
	}
	n, err := strconv.Atoi(days)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid day count in interval %q", s)
	}
	d := time.Duration(n) * day
	if rest != "" {
		extra, err := time.ParseDuration(rest)
		if err != nil {
			return 0, fmt.Errorf("invalid interval %q: %w", s, err)
		}
		d += extra
	}
	return d, nil
}

// FormatInterval renders d with its two largest units, e.g. "1h30m" or "2d6h"
func FormatInterval(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", d/time.Second)
	case d < time.Hour:
		return fmt.Sprintf("%dm", d/time.Minute)
	}

	major, minor, unit, sub := d/time.Hour, d%time.Hour/time.Minute, "h", "m"
	if d >= day {
		major, minor, unit, sub = d/day, d%day/time.Hour, "d", "h"
	}
	if minor == 0 {
		return fmt.Sprintf("%d%s", major, unit)
	}
	return fmt.Sprintf("%d%s%d%s", major, unit, minor, sub)
}
