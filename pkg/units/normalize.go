package units

import (
	"regexp"
	"strings"
)

// Go regexp's \b and \d are ASCII-only. Patterns here use \p{Nd} for digits
// and end in wordEnd, which is consumed and put back by the replacement.
const (
	digits  = `(\p{Nd}+)`
	wordEnd = `([^\pL\pN_]|$)`
)

type abbrRule struct {
	re   *regexp.Regexp
	repl string
}

var abbrRules = buildAbbrRules()

func buildAbbrRules() []abbrRule {
	rules := make([]abbrRule, 0, len(abbreviations))
	for _, a := range abbreviations {
		rules = append(rules, abbrRule{re: AbbreviationPattern(a.Short), repl: "${1} " + a.Full + "${2}"})
	}
	return rules
}

// AbbreviationPattern builds the expression matching digits, optional
// whitespace and abbr not followed by a letter, digit or underscore. The
// digits are group 1, the character after abbr (if any) group 2.
func AbbreviationPattern(abbr string) *regexp.Regexp {
	return regexp.MustCompile(digits + `\s*` + quoteUnit(abbr) + wordEnd)
}

// quoteUnit escapes s for use in an expression. The micro sign also matches
// Greek mu since NFKC folds one into the other.
func quoteUnit(s string) string {
	q := regexp.QuoteMeta(s)
	return strings.ReplaceAll(q, "µ", "[µμ]")
}

// Normalize rewrites abbreviated units that follow a number into their
// canonical full form, e.g. "12cm" becomes "12 centimetre".
func Normalize(text string) string {
	for _, r := range abbrRules {
		text = r.re.ReplaceAllString(text, r.repl)
	}
	return text
}
