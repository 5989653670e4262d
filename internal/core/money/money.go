// Package money converts between display dollars and the platform's
// integer minor currency unit.
//
// The scale (minor units per dollar) is injected by the caller — the
// platform transacts in centicents (1/100 of a cent, scale 10_000) but
// nothing here depends on that. Every amount handed to the marketplace
// is a non-negative whole number of minor units; fractional per-unit
// rates exist only for display.
package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParsePrice converts a user-supplied dollar string into minor units.
// Currency symbols, quote marks and whitespace are stripped first.
// Returns (0, false) for negative, non-numeric, or sub-minor-unit input.
func ParsePrice(input string, scale int64) (int64, bool) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '$', '"', '\'', ' ', '\t', ',':
			return -1
		}
		return r
	}, input)
	if cleaned == "" {
		return 0, false
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return 0, false
	}
	if d.IsNegative() {
		return 0, false
	}

	scaled := d.Mul(decimal.NewFromInt(scale))
	if !scaled.IsInteger() {
		// finer than the smallest tradeable increment
		return 0, false
	}
	return scaled.IntPart(), true
}

// FormatAmount renders minor units as "$X.YY" with exactly two fractional
// digits, half-up. Rounding happens here and only here — the stored
// amount is never mutated.
func FormatAmount(amount int64, scale int64) string {
	d := decimal.NewFromInt(amount).Div(decimal.NewFromInt(scale))
	return "$" + d.StringFixed(2)
}

// TotalPrice computes the whole-window total in minor units:
//
//	ceil(perGPUHour × nodes × gpusPerNode × hours)
//
// The ceiling is mandatory: the submitted total must never undercut the
// per-unit rate shown to the user.
func TotalPrice(perGPUHour decimal.Decimal, nodes, gpusPerNode, durationSeconds int64) int64 {
	hours := decimal.NewFromInt(durationSeconds).Div(decimal.NewFromInt(3600))
	total := perGPUHour.
		Mul(decimal.NewFromInt(nodes)).
		Mul(decimal.NewFromInt(gpusPerNode)).
		Mul(hours)
	return total.Ceil().IntPart()
}

// PerGPUHour divides a whole-window total back into a per-GPU-hour rate.
// The result may be fractional; it is display-only.
func PerGPUHour(total int64, nodes, gpusPerNode, durationSeconds int64) decimal.Decimal {
	if nodes <= 0 || gpusPerNode <= 0 || durationSeconds <= 0 {
		return decimal.Zero
	}
	hours := decimal.NewFromInt(durationSeconds).Div(decimal.NewFromInt(3600))
	denom := decimal.NewFromInt(nodes).Mul(decimal.NewFromInt(gpusPerNode)).Mul(hours)
	return decimal.NewFromInt(total).Div(denom)
}
