// Package format renders amounts and percentages for human-facing
// report cells, using Italian number conventions.
package format

import (
	"fmt"
	"math"
	"strings"
)

// Euro formats an amount as euros with dot thousands separators and a
// comma decimal separator, e.g. 1234.5 -> "1.234,50 €".
func Euro(v float64) string {
	neg := math.Signbit(v)
	v = math.Abs(v)

	whole := int64(v)
	cents := int64(math.Round((v - float64(whole)) * 100))
	if cents == 100 {
		whole++
		cents = 0
	}

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	b.WriteString(group(whole))
	fmt.Fprintf(&b, ",%02d €", cents)
	return b.String()
}

// Percent formats a percentage rounded to a whole number, e.g. 57.4 -> "57%".
func Percent(v float64) string {
	return fmt.Sprintf("%d%%", int64(math.Round(v)))
}

func group(n int64) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var parts []string
	for len(s) > 3 {
		parts = append([]string{s[len(s)-3:]}, parts...)
		s = s[:len(s)-3]
	}
	return s + "." + strings.Join(parts, ".")
}
