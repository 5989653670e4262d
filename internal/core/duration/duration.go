// Package duration parses free-form duration strings like "1h30m", "2d3h"
// or "1w" into whole seconds.
//
// Bare numbers carry no unit, and call sites disagree on what the natural
// unit is, so there are two entry points: ParseSeconds treats a bare
// number as seconds (flag-style input), ParseHoursDefault treats it as
// hours (interactive "how long?" input). Neither returns an error for
// malformed input; the caller decides whether an invalid duration is fatal.
package duration

import (
	"strings"
)

const (
	Second int64 = 1
	Minute int64 = 60
	Hour   int64 = 3600
	Day    int64 = 86400
	Week   int64 = 604800
)

// ParseSeconds parses s into whole seconds. A bare number is seconds.
// Returns (0, false) for empty, negative, decimal or malformed input.
func ParseSeconds(s string) (int64, bool) {
	return parse(s, Second)
}

// ParseHoursDefault parses s into whole seconds. A bare number is hours.
// Returns (0, false) for empty, negative, decimal or malformed input.
func ParseHoursDefault(s string) (int64, bool) {
	return parse(s, Hour)
}

func parse(s string, bareUnit int64) (int64, bool) {
	// Underscores are digit-group separators and whitespace is allowed
	// between components: "1_000" == "1000", "1h 30m" == "1h30m".
	cleaned := strings.Map(func(r rune) rune {
		if r == '_' || r == ' ' || r == '\t' {
			return -1
		}
		return r
	}, s)
	if cleaned == "" {
		return 0, false
	}

	var total int64
	var sawUnit bool
	i := 0
	for i < len(cleaned) {
		start := i
		for i < len(cleaned) && cleaned[i] >= '0' && cleaned[i] <= '9' {
			i++
		}
		if i == start {
			// component must begin with digits
			return 0, false
		}
		n, ok := parseDigits(cleaned[start:i])
		if !ok {
			return 0, false
		}

		if i == len(cleaned) {
			// trailing bare number: only valid when it is the whole
			// input, otherwise "1h30" is ambiguous and rejected
			if sawUnit {
				return 0, false
			}
			return n * bareUnit, true
		}

		unit, ok := unitSeconds(cleaned[i])
		if !ok {
			return 0, false
		}
		i++
		sawUnit = true
		total += n * unit
	}
	return total, true
}

func parseDigits(s string) (int64, bool) {
	var n int64
	for i := 0; i < len(s); i++ {
		d := int64(s[i] - '0')
		if n > (1<<62)/10 {
			return 0, false
		}
		n = n*10 + d
	}
	return n, true
}

func unitSeconds(c byte) (int64, bool) {
	switch c {
	case 's', 'S':
		return Second, true
	case 'm', 'M':
		return Minute, true
	case 'h', 'H':
		return Hour, true
	case 'd', 'D':
		return Day, true
	case 'w', 'W':
		return Week, true
	default:
		return 0, false
	}
}
