package services

import (
	"time"

	"gestionale/internal/analytics"
	"gestionale/internal/core"
)

// Aging bucket labels, ordered from least to most overdue.
const (
	BucketCurrent = "current"
	BucketDays30  = "1_30"
	BucketDays60  = "31_60"
	BucketDays90  = "61_90"
	BucketOver90  = "over_90"
)

// agingBucket classifies a day count of lateness. MaxDays is inclusive.
type agingBucket struct {
	Label   string
	MaxDays int
}

// agingBuckets is the classification ladder: the first bucket whose
// MaxDays covers the lateness wins. The last entry is the catch-all.
var agingBuckets = []agingBucket{
	{BucketCurrent, 0},
	{BucketDays30, 30},
	{BucketDays60, 60},
	{BucketDays90, 90},
	{BucketOver90, 1<<31 - 1},
}

// AgingLine is one bucket of the accounts-receivable aging report.
type AgingLine struct {
	Bucket string  `json:"bucket"`
	Count  int     `json:"count"`
	Amount float64 `json:"amount"`
}

// BuildPaymentAging buckets the open payments of a year by how many days
// past due they are as of today. Refunds and received payments never
// appear; a payment without a due date counts as current.
func BuildPaymentAging(in analytics.Inputs, year int, clock core.Clock) []AgingLine {
	if clock == nil {
		clock = core.SystemClock{}
	}
	now := clock.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	lines := make([]AgingLine, len(agingBuckets))
	for i, b := range agingBuckets {
		lines[i].Bucket = b.Label
	}

	for _, p := range in.Payments {
		if p.Type == core.TypeRefund || p.Status == core.PaymentReceived {
			continue
		}
		if agingYear(p) != year {
			continue
		}

		late := 0
		if !p.DueDate.IsZero() {
			late = int(today.Sub(time.Date(p.DueDate.Year(), p.DueDate.Month(), p.DueDate.Day(), 0, 0, 0, 0, time.UTC)) / (24 * time.Hour))
		}
		idx := classifyLateness(late)
		lines[idx].Count++
		lines[idx].Amount += float64(p.Amount)
	}

	return lines
}

func classifyLateness(late int) int {
	for i, b := range agingBuckets {
		if late <= b.MaxDays {
			return i
		}
	}
	return len(agingBuckets) - 1
}

// agingYear attributes a payment to a year: due date first, payment
// date otherwise.
func agingYear(p core.Payment) int {
	if !p.DueDate.IsZero() {
		return p.DueDate.Year()
	}
	if !p.Date.IsZero() {
		return p.Date.Year()
	}
	return 0
}
