// Package phrase normalizes inbound text before it is matched against configured phrases and keys.
package phrase

import (
	"strings"

	"golang.org/x/text/cases"
)

// Normalize trims surrounding whitespace and case-folds s.
// A Caser is stateful, so a fresh one is built per call.
func Normalize(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

// Match reports whether input equals the configured phrase after normalization.
// An empty phrase never matches.
func Match(input, configured string) bool {
	want := Normalize(configured)
	if want == "" {
		return false
	}
	return Normalize(input) == want
}
