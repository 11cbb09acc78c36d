package parser

import "strconv"

// parseStrictInt accepts only plain decimal integers (optionally signed),
// rejecting the radix prefixes and underscore separators that
// FieldValue.ToIntOr tolerates elsewhere — here we're inferring a type from
// an untyped text token, not coercing an already-typed value.
func parseStrictInt(s string) (int64, bool) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// parseStrictFloat accepts standard decimal/exponent float syntax only.
func parseStrictFloat(s string) (float64, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
