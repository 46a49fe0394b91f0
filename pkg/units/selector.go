package units

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

var unitPatterns = buildUnitPatterns()

func buildUnitPatterns() map[string]*regexp.Regexp {
	out := map[string]*regexp.Regexp{}
	for _, us := range entityUnits {
		for _, u := range us {
			if _, ok := out[u]; !ok {
				out[u] = UnitPattern(u)
			}
		}
	}
	return out
}

// UnitPattern builds the expression matching an integer or decimal number,
// optional whitespace and unit with an optional plural "s", not followed by
// a letter, digit or underscore. The number is group 1.
func UnitPattern(unit string) *regexp.Regexp {
	return regexp.MustCompile(`(\p{Nd}+(?:\.\p{Nd}+)?)\s*` + quoteUnit(unit) + `s?` + wordEnd)
}

// SelectMax returns the largest measurement in text whose unit is permitted
// for entity. Equal values keep the earliest unit in declared order.
func SelectMax(text, entity string) (Measurement, error) {
	us, ok := UnitsFor(entity)
	if !ok {
		return Measurement{}, ErrUnknownEntity
	}
	best := Measurement{Value: math.Inf(-1)}
	for _, u := range us {
		re, ok := unitPatterns[u]
		if !ok {
			re = UnitPattern(u)
		}
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			v, err := strconv.ParseFloat(asciiDigits(m[1]), 64)
			if err != nil {
				// out of float64 range
				continue
			}
			if v > best.Value {
				best = Measurement{Value: v, Unit: u}
			}
		}
	}
	if best.Unit == "" {
		return Measurement{}, ErrNoMeasurement
	}
	return best, nil
}

// asciiDigits rewrites decimal digits of any script ("٣", "१२") to ASCII.
func asciiDigits(s string) string {
	return strings.Map(func(r rune) rune {
		if r < utf8.RuneSelf || !unicode.IsDigit(r) {
			return r
		}
		return '0' + digitValue(r)
	}, s)
}

// digitValue relies on Unicode laying out each script's decimal digits as
// consecutive runs of ten starting at zero.
func digitValue(r rune) rune {
	zero := r
	for unicode.IsDigit(zero - 1) {
		zero--
	}
	return (r - zero) % 10
}
