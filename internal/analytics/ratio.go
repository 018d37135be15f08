package analytics

// Not-demonstrable reason codes. Consumers must be able to tell "zero"
// apart from "unknown", so a missing ratio always carries one of these.
const (
	ReasonInsufficientClosedYears = "insufficient_closed_years"
	ReasonZeroBaseline            = "zero_baseline"
	ReasonNoMatchingPayments      = "no_matching_payments"
)

// Ratio is a derived figure that may be impossible to compute from the
// available data. When Demonstrable is false, Value is meaningless and
// Reason explains why.
type Ratio struct {
	Value        float64 `json:"value"`
	Demonstrable bool    `json:"demonstrable"`
	Reason       string  `json:"reason,omitempty"`
}

// Demonstrable wraps a computed value.
func Demonstrable(v float64) Ratio {
	return Ratio{Value: v, Demonstrable: true}
}

// NotDemonstrable marks a figure as unknown with a reason code.
func NotDemonstrable(reason string) Ratio {
	return Ratio{Reason: reason}
}

// pct returns part/total*100, or 0 when total is 0. Division by zero in
// a ratio never produces NaN or a panic.
func pct(part, total float64) float64 {
	if total == 0 {
		return 0
	}
	return part / total * 100
}

// frac returns part/total, or 0 when total is 0.
func frac(part, total float64) float64 {
	if total == 0 {
		return 0
	}
	return part / total
}
