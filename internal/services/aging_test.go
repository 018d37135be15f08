package services

import (
	"testing"

	"gestionale/internal/analytics"
	"gestionale/internal/core"
)

func TestBuildPaymentAging(t *testing.T) {
	in := analytics.Inputs{
		Payments: []core.Payment{
			{ID: "p1", DueDate: core.NewDate(2026, 7, 1), Amount: 100, Status: core.PaymentPending, Type: core.TypePayment},
			{ID: "p2", DueDate: core.NewDate(2026, 5, 20), Amount: 200, Status: core.PaymentOverdue, Type: core.TypePayment},
			{ID: "p3", DueDate: core.NewDate(2026, 4, 10), Amount: 300, Status: core.PaymentOverdue, Type: core.TypePayment},
			{ID: "p4", DueDate: core.NewDate(2026, 2, 1), Amount: 400, Status: core.PaymentOverdue, Type: core.TypePayment},
			{ID: "p5", DueDate: core.NewDate(2025, 11, 1), Amount: 500, Status: core.PaymentOverdue, Type: core.TypePayment},
			{ID: "received", DueDate: core.NewDate(2026, 5, 1), Amount: 999, Status: core.PaymentReceived, Type: core.TypePayment},
			{ID: "refund", DueDate: core.NewDate(2026, 5, 1), Amount: 999, Status: core.PaymentPending, Type: core.TypeRefund},
			{ID: "undated", Date: core.NewDate(2026, 3, 1), Amount: 50, Status: core.PaymentPending, Type: core.TypePayment},
		},
	}
	lines := BuildPaymentAging(in, 2026, core.FixedAt(2026, 6, 15))

	if len(lines) != 5 {
		t.Fatalf("got %d buckets, want 5", len(lines))
	}

	want := map[string]AgingLine{
		// p1 is not yet due; the undated payment also counts as current
		BucketCurrent: {Bucket: BucketCurrent, Count: 2, Amount: 150},
		// p2 is 26 days late
		BucketDays30: {Bucket: BucketDays30, Count: 1, Amount: 200},
		// p3 is 66 days late
		BucketDays90: {Bucket: BucketDays90, Count: 1, Amount: 300},
		// p4 is 134 days late
		BucketOver90: {Bucket: BucketOver90, Count: 1, Amount: 400},
		BucketDays60: {Bucket: BucketDays60},
	}
	for _, line := range lines {
		w, ok := want[line.Bucket]
		if !ok {
			t.Fatalf("unexpected bucket %q", line.Bucket)
		}
		if line != w {
			t.Errorf("bucket %s = %+v, want %+v", line.Bucket, line, w)
		}
	}
}

func TestClassifyLateness(t *testing.T) {
	tests := []struct {
		late int
		want string
	}{
		{-10, BucketCurrent},
		{0, BucketCurrent},
		{1, BucketDays30},
		{30, BucketDays30},
		{31, BucketDays60},
		{60, BucketDays60},
		{61, BucketDays90},
		{90, BucketDays90},
		{91, BucketOver90},
		{1000, BucketOver90},
	}
	for _, tt := range tests {
		if got := agingBuckets[classifyLateness(tt.late)].Label; got != tt.want {
			t.Errorf("classifyLateness(%d) = %s, want %s", tt.late, got, tt.want)
		}
	}
}
