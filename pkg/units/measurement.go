package units

import (
	"math"
	"strconv"
	"strings"
)

// Measurement is a value paired with a canonical unit name.
type Measurement struct {
	Value float64
	Unit  string
}

// String renders the measurement as "<value> <unit>", e.g. "12.0 centimetre".
func (m Measurement) String() string {
	return FormatValue(m.Value) + " " + m.Unit
}

// FormatValue renders v with the shortest representation that round-trips,
// always carrying a fractional part ("12.0", "2.5"). Very large and very
// small magnitudes use exponent form ("1e+16", "5e-05").
func FormatValue(v float64) string {
	switch {
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	case math.IsNaN(v):
		return "nan"
	}
	abs := math.Abs(v)
	if abs != 0 && (abs >= 1e16 || abs < 1e-4) {
		return strconv.FormatFloat(v, 'e', -1, 64)
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsRune(s, '.') {
		s += ".0"
	}
	return s
}
