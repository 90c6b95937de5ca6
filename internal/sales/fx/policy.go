package fx

import (
	"math"
	"strings"
	"unicode"

	"golang.org/x/text/width"
)

// FallbackRate is the reporting-currency price of one foreign unit used when no
// live quote is available.
const FallbackRate = 32.5

// Policy describes which currency labels count as the reporting currency.
type Policy struct {
	ReportingCurrency string
	LocalTokens       []string
}

// DefaultPolicy returns the New Taiwan Dollar reporting policy.
func DefaultPolicy() Policy {
	return Policy{
		ReportingCurrency: "TWD",
		LocalTokens:       []string{"TWD", "NT", "臺幣", "台幣"},
	}
}

// Canonical folds full-width characters, upper-cases the label and removes
// all whitespace.
func Canonical(label string) string {
	folded := strings.ToUpper(width.Fold.String(label))
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, folded)
}

// IsLocal reports whether the label denotes the reporting currency. A missing
// label is treated as local.
func (p Policy) IsLocal(label string) bool {
	code := Canonical(label)
	if code == "" {
		return true
	}
	for _, token := range p.LocalTokens {
		if strings.Contains(code, Canonical(token)) {
			return true
		}
	}
	return false
}

// EffectiveRate returns rate when it is usable and FallbackRate otherwise.
func EffectiveRate(rate float64) float64 {
	if rate <= 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		return FallbackRate
	}
	return rate
}
