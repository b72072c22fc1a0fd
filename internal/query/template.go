// Package query renders parameterized query text for the analytics backend.
//
// The backend takes the query as a raw text body with no bind protocol, so
// substitution here is the only injection boundary: numbers are rendered as
// plain decimals, strings are single-quoted with embedded quotes doubled, and
// only a closed list of interval literals passes through untouched.
package query

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	placeholderPattern = regexp.MustCompile(`\{\{([^{}]*)\}\}`)

	// intervalPattern is a pre-quoted numeral followed by one of seven time units.
	intervalPattern = regexp.MustCompile(`(?i)^'\d+' (SECOND|MINUTE|HOUR|DAY|WEEK|MONTH|YEAR)$`)
)

// Kind distinguishes parameter value types
type Kind int

const (
	KindString Kind = iota
	KindNumber
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	default:
		return "unknown"
	}
}

// Value is a typed query parameter: either a string or a number
type Value struct {
	kind Kind
	str  string
	num  decimal.Decimal
}

// String returns a string parameter
func String(s string) Value {
	return Value{kind: KindString, str: s}
}

// Number returns a numeric parameter
func Number(d decimal.Decimal) Value {
	return Value{kind: KindNumber, num: d}
}

// Int returns an integer parameter
func Int(i int64) Value {
	return Number(decimal.NewFromInt(i))
}

// Float returns a numeric parameter; NaN and infinities have no literal form
func Float(f float64) (Value, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{}, fmt.Errorf("number %v has no SQL literal form", f)
	}

	return Number(decimal.NewFromFloat(f)), nil
}

// Kind reports the parameter type
func (v Value) Kind() Kind {
	return v.kind
}

// Literal renders the value as it is spliced into query text
func (v Value) Literal() string {
	if v.kind == KindNumber {
		return v.num.String()
	}

	if IsIntervalLiteral(v.str) {
		return v.str
	}

	return QuoteString(v.str)
}

func (v Value) GoString() string {
	return fmt.Sprintf("query.Value{%s: %s}", v.kind, v.Literal())
}

// Params maps placeholder names to values
type Params map[string]Value

// IsIntervalLiteral reports whether s is a pre-formatted interval such as '7' DAY
func IsIntervalLiteral(s string) bool {
	return intervalPattern.MatchString(s)
}

// QuoteString wraps s in single quotes, doubling any embedded single quote
func QuoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// Substitute replaces every {{name}} in text with the literal of params[name].
// The text is scanned once, so placeholders inside substituted values are never
// expanded. Placeholders without a parameter are left as they are.
func Substitute(text string, params Params) string {
	if len(params) == 0 {
		return text
	}

	return placeholderPattern.ReplaceAllStringFunc(text, func(match string) string {
		name := match[2 : len(match)-2]

		value, ok := params[name]
		if !ok {
			return match
		}

		return value.Literal()
	})
}

// Placeholders lists the distinct placeholder names in text in order of first appearance
func Placeholders(text string) []string {
	var names []string

	seen := make(map[string]struct{})

	for _, m := range placeholderPattern.FindAllStringSubmatch(text, -1) {
		if _, dup := seen[m[1]]; dup {
			continue
		}

		seen[m[1]] = struct{}{}
		names = append(names, m[1])
	}

	return names
}

// Missing lists placeholders in text that params does not supply
func Missing(text string, params Params) []string {
	var missing []string

	for _, name := range Placeholders(text) {
		if _, ok := params[name]; !ok {
			missing = append(missing, name)
		}
	}

	return missing
}
