package ledger

import (
	"math"
	"strconv"
)

// Epsilon is the currency tolerance below which a balance counts as settled.
// Guarani amounts are whole units in practice, but successive float
// subtractions can leave sub-cent residue.
const Epsilon = 0.01

// Round2 rounds to 2 decimal places, half away from zero.
func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}

// Round0 rounds to whole currency units, half away from zero.
func Round0(x float64) float64 {
	return math.Round(x)
}

// Settled reports whether a balance is within Epsilon of zero.
func Settled(balance float64) bool {
	return balance <= Epsilon
}

// FormatGs renders an amount the way the cashier screens show guaranies:
// whole units with dot thousand separators, e.g. 1234567 -> "1.234.567".
func FormatGs(amount float64) string {
	raw := strconv.FormatFloat(Round0(amount), 'f', 0, 64)
	neg := false
	if len(raw) > 0 && raw[0] == '-' {
		neg = true
		raw = raw[1:]
	}
	n := len(raw)
	if n <= 3 {
		if neg {
			return "-" + raw
		}
		return raw
	}
	var out []byte
	first := n % 3
	if first > 0 {
		out = append(out, raw[:first]...)
	}
	for i := first; i < n; i += 3 {
		if len(out) > 0 {
			out = append(out, '.')
		}
		out = append(out, raw[i:i+3]...)
	}
	if neg {
		return "-" + string(out)
	}
	return string(out)
}
