package analytics

import (
	"encoding/json"
	"testing"

	"gestionale/internal/core"
)

func sampleInputs() Inputs {
	return Inputs{
		Clients: []core.Client{
			{ID: "c1", Name: "Rossi SRL"},
			{ID: "c2", Name: "Bianchi"},
		},
		Projects: []core.Project{
			{ID: "p1", ClientID: "c1", Name: "Matrimonio Rossi", Category: core.CategoryWedding},
			{ID: "p2", ClientID: "c2", Name: "Sito Bianchi", Category: core.CategoryWebDev},
		},
		Services: []core.Service{
			{ID: "s1", ProjectID: "p1", Date: core.NewDate(2026, 1, 10), FeeShooting: 1000, Discount: 100, TravelKm: 10, KmRate: 0.5},
			{ID: "s2", ProjectID: "p2", Date: core.NewDate(2026, 2, 12), FeeEditing: 500},
			{ID: "s3", ProjectID: "p1", Date: core.NewDate(2026, 3, 10), FeeShooting: 700},
		},
	}
}

func TestBuildAnnualModelCurrentYearPartial(t *testing.T) {
	// Services in January and February, a third one in March, with today
	// pinned to February 28: the March service must not contribute
	// anywhere and must raise the future-services flag.
	in := sampleInputs()
	m := BuildAnnualModel(in, AnnualOptions{Year: 2026, Clock: core.FixedAt(2026, 2, 28)})

	if m.KPIs.TotalRevenue != 1400 {
		t.Errorf("TotalRevenue = %v, want 1400", m.KPIs.TotalRevenue)
	}
	if len(m.MonthlyTrend) != 2 {
		t.Fatalf("MonthlyTrend has %d points, want 2", len(m.MonthlyTrend))
	}
	if m.MonthlyTrend[0].Revenue != 900 {
		t.Errorf("January revenue = %v, want 900", m.MonthlyTrend[0].Revenue)
	}
	if m.MonthlyTrend[1].Revenue != 500 {
		t.Errorf("February revenue = %v, want 500", m.MonthlyTrend[1].Revenue)
	}
	if m.KPIs.TravelKm != 10 || m.KPIs.TravelCost != 5 {
		t.Errorf("travel = (%v km, %v), want (10 km, 5)", m.KPIs.TravelKm, m.KPIs.TravelCost)
	}
	if !hasFlag(m.Flags, FlagFutureServicesExcluded) {
		t.Error("future_services_excluded flag missing")
	}
	if m.KPIs.MonthDelta == nil {
		t.Fatal("MonthDelta is nil, want -400")
	}
	if *m.KPIs.MonthDelta != -400 {
		t.Errorf("MonthDelta = %v, want -400", *m.KPIs.MonthDelta)
	}
	if !m.Meta.IsCurrentYear {
		t.Error("IsCurrentYear = false, want true")
	}
}

func TestBuildAnnualModelInternalConsistency(t *testing.T) {
	// Total revenue must equal both the category breakdown sum and the
	// monthly trend sum: no double counting, no omission.
	in := sampleInputs()
	m := BuildAnnualModel(in, AnnualOptions{Year: 2026, Clock: core.FixedAt(2026, 12, 31)})

	var byCategory, byMonth float64
	for _, c := range m.Categories {
		byCategory += c.Revenue
	}
	for _, p := range m.MonthlyTrend {
		byMonth += p.Revenue
	}
	if byCategory != m.KPIs.TotalRevenue {
		t.Errorf("category sum %v != total %v", byCategory, m.KPIs.TotalRevenue)
	}
	if byMonth != m.KPIs.TotalRevenue {
		t.Errorf("trend sum %v != total %v", byMonth, m.KPIs.TotalRevenue)
	}
}

func TestBuildAnnualModelPastYear(t *testing.T) {
	in := sampleInputs()
	m := BuildAnnualModel(in, AnnualOptions{Year: 2026, Clock: core.FixedAt(2027, 5, 1)})

	if m.Meta.IsCurrentYear {
		t.Error("IsCurrentYear = true for past year")
	}
	if len(m.MonthlyTrend) != 12 {
		t.Errorf("past year trend has %d points, want 12", len(m.MonthlyTrend))
	}
	// All three services visible: nothing is "future" in a closed year.
	if m.KPIs.TotalRevenue != 2100 {
		t.Errorf("TotalRevenue = %v, want 2100", m.KPIs.TotalRevenue)
	}
	if hasFlag(m.Flags, FlagFutureServicesExcluded) {
		t.Error("future_services_excluded must not be set for a past year")
	}
}

func TestBuildAnnualModelJanuaryDeltaUnavailable(t *testing.T) {
	in := Inputs{Services: []core.Service{
		{ID: "s1", Date: core.NewDate(2026, 1, 5), FeeOther: 100},
	}}
	m := BuildAnnualModel(in, AnnualOptions{Year: 2026, Clock: core.FixedAt(2026, 1, 20)})
	if m.KPIs.MonthDelta != nil {
		t.Errorf("MonthDelta in January = %v, want nil", *m.KPIs.MonthDelta)
	}
}

func TestBuildAnnualModelYearClamping(t *testing.T) {
	tests := []struct {
		name string
		year int
		want int
	}{
		{"zero defaults to current", 0, 2026},
		{"below range clamps to current", 1999, 2026},
		{"future clamps to current", 2031, 2026},
		{"valid past year kept", 2024, 2024},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := BuildAnnualModel(Inputs{}, AnnualOptions{Year: tt.year, Clock: core.FixedAt(2026, 6, 1)})
			if m.Meta.Year != tt.want {
				t.Errorf("Meta.Year = %d, want %d", m.Meta.Year, tt.want)
			}
		})
	}
}

func TestPendingPaymentsAndOpenQuotes(t *testing.T) {
	in := Inputs{
		Clients: []core.Client{{ID: "c1", Name: "Rossi SRL"}},
		Payments: []core.Payment{
			{ID: "pay1", ClientID: "c1", DueDate: core.NewDate(2026, 4, 10), Amount: 300, Status: core.PaymentPending, Type: core.TypePayment},
			{ID: "pay2", ClientID: "c1", DueDate: core.NewDate(2026, 3, 1), Amount: 200, Status: core.PaymentOverdue, Type: core.TypePayment},
			{ID: "pay3", ClientID: "c1", DueDate: core.NewDate(2026, 4, 12), Amount: 150, Status: core.PaymentPending, Type: core.TypeRefund},
			{ID: "pay4", ClientID: "c1", Date: core.NewDate(2026, 2, 1), Amount: 500, Status: core.PaymentReceived, Type: core.TypePayment},
			{ID: "pay5", ClientID: "c1", DueDate: core.NewDate(2025, 4, 10), Amount: 999, Status: core.PaymentPending, Type: core.TypePayment},
		},
		Quotes: []core.Quote{
			{ID: "q1", ClientID: "c1", Amount: 1000, Status: core.QuoteSent, SentAt: core.NewDate(2026, 1, 5)},
			{ID: "q2", ClientID: "c1", Amount: 2000, Status: core.QuoteSettled, SentAt: core.NewDate(2026, 1, 6)},
			{ID: "q3", ClientID: "c1", Amount: 3000, Status: core.QuoteCompleted, SentAt: core.NewDate(2026, 1, 7)},
			{ID: "q4", ClientID: "c1", Amount: 400, Status: core.QuoteNegotiating, SentAt: core.NewDate(2026, 1, 8)},
		},
	}
	m := BuildAnnualModel(in, AnnualOptions{Year: 2026, Clock: core.FixedAt(2026, 4, 1)})

	if m.KPIs.PendingCount != 2 {
		t.Errorf("PendingCount = %d, want 2 (refunds, received and other years excluded)", m.KPIs.PendingCount)
	}
	if m.KPIs.PendingAmount != 500 {
		t.Errorf("PendingAmount = %v, want 500", m.KPIs.PendingAmount)
	}
	if m.KPIs.PaymentsReceived != 500 {
		t.Errorf("PaymentsReceived = %v, want 500", m.KPIs.PaymentsReceived)
	}
	// completed and settled are closed for the open-quote KPI.
	if m.KPIs.OpenQuotesCount != 2 {
		t.Errorf("OpenQuotesCount = %d, want 2", m.KPIs.OpenQuotesCount)
	}
	if m.KPIs.OpenQuotesAmount != 1400 {
		t.Errorf("OpenQuotesAmount = %v, want 1400", m.KPIs.OpenQuotesAmount)
	}
	// The histogram still counts every status.
	var histogramCount int
	for _, b := range m.Pipeline {
		histogramCount += b.Count
	}
	if histogramCount != 4 {
		t.Errorf("pipeline counts %d quotes, want 4", histogramCount)
	}
}

func TestAlertsAgainstToday(t *testing.T) {
	// Alerts ignore the selected year: they always measure against now.
	in := Inputs{
		Clients:  []core.Client{{ID: "c1", Name: "Rossi SRL"}},
		Projects: []core.Project{{ID: "p1", ClientID: "c1", Name: "Spot Rossi", Category: core.CategorySpot}},
		Payments: []core.Payment{
			{ID: "late", ClientID: "c1", DueDate: core.NewDate(2026, 5, 20), Amount: 100, Status: core.PaymentOverdue, Type: core.TypePayment},
			{ID: "soon", ClientID: "c1", DueDate: core.NewDate(2026, 6, 5), Amount: 100, Status: core.PaymentPending, Type: core.TypePayment},
			{ID: "far", ClientID: "c1", DueDate: core.NewDate(2026, 8, 1), Amount: 100, Status: core.PaymentPending, Type: core.TypePayment},
		},
		Services: []core.Service{
			{ID: "next", ProjectID: "p1", Date: core.NewDate(2026, 6, 10), FeeShooting: 800},
			{ID: "distant", ProjectID: "p1", Date: core.NewDate(2026, 7, 15), FeeShooting: 900},
		},
		Quotes: []core.Quote{
			{ID: "stale", ClientID: "c1", Amount: 500, Status: core.QuoteSent, SentAt: core.NewDate(2026, 5, 10)},
			{ID: "fresh", ClientID: "c1", Amount: 500, Status: core.QuoteSent, SentAt: core.NewDate(2026, 5, 30)},
			{ID: "answered", ClientID: "c1", Amount: 500, Status: core.QuoteNegotiating, SentAt: core.NewDate(2026, 5, 1), RespondedAt: core.NewDate(2026, 5, 3)},
		},
	}
	m := BuildAnnualModel(in, AnnualOptions{Year: 2025, Clock: core.FixedAt(2026, 6, 1)})

	if len(m.Alerts.PaymentsDue) != 2 {
		t.Fatalf("PaymentsDue has %d entries, want 2", len(m.Alerts.PaymentsDue))
	}
	if m.Alerts.PaymentsDue[0].ID != "late" || !m.Alerts.PaymentsDue[0].Overdue {
		t.Errorf("first payment alert = %+v, want overdue 'late' first", m.Alerts.PaymentsDue[0])
	}
	if len(m.Alerts.UpcomingServices) != 1 || m.Alerts.UpcomingServices[0].ID != "next" {
		t.Errorf("UpcomingServices = %+v, want only 'next'", m.Alerts.UpcomingServices)
	}
	if m.Alerts.UpcomingServices[0].DaysUntil != 9 {
		t.Errorf("DaysUntil = %d, want 9", m.Alerts.UpcomingServices[0].DaysUntil)
	}
	if len(m.Alerts.StaleQuotes) != 1 || m.Alerts.StaleQuotes[0].ID != "stale" {
		t.Errorf("StaleQuotes = %+v, want only 'stale'", m.Alerts.StaleQuotes)
	}
	if m.Alerts.StaleQuotes[0].DaysWaiting != 22 {
		t.Errorf("DaysWaiting = %d, want 22", m.Alerts.StaleQuotes[0].DaysWaiting)
	}
	if !hasFlag(m.Flags, FlagAlertsSnapshot) {
		t.Error("alerts_snapshot flag missing")
	}
}

func TestTopClientsJoin(t *testing.T) {
	in := sampleInputs()
	m := BuildAnnualModel(in, AnnualOptions{Year: 2026, Clock: core.FixedAt(2026, 12, 31)})

	if len(m.TopClients) != 2 {
		t.Fatalf("TopClients has %d entries, want 2", len(m.TopClients))
	}
	if m.TopClients[0].Name != "Rossi SRL" || m.TopClients[0].Revenue != 1600 {
		t.Errorf("top client = %+v, want Rossi SRL with 1600", m.TopClients[0])
	}
}

func TestBuildAnnualModelIdempotent(t *testing.T) {
	in := sampleInputs()
	opts := AnnualOptions{Year: 2026, Clock: core.FixedAt(2026, 2, 28)}

	a, err := json.Marshal(BuildAnnualModel(in, opts))
	if err != nil {
		t.Fatalf("marshal first build: %v", err)
	}
	b, err := json.Marshal(BuildAnnualModel(in, opts))
	if err != nil {
		t.Fatalf("marshal second build: %v", err)
	}
	if string(a) != string(b) {
		t.Error("two builds with identical inputs differ")
	}
}

func TestBuildAnnualModelEmbedsFiscal(t *testing.T) {
	cfg := core.FiscalConfig{
		Profiles:            []core.TaxProfile{{ATECOCode: "74.20.19", CoefficientPct: 78, Categories: []core.ProjectCategory{core.CategoryWedding}}},
		ContributionRatePct: 26.23,
		BusinessStartYear:   2021,
	}
	m := BuildAnnualModel(sampleInputs(), AnnualOptions{Year: 2026, Fiscal: &cfg, Clock: core.FixedAt(2026, 2, 28)})

	if m.Fiscal == nil {
		t.Fatal("Fiscal model not embedded")
	}
	if m.Fiscal.Year != 2026 {
		t.Errorf("embedded fiscal year = %d, want 2026", m.Fiscal.Year)
	}
	if !hasFlag(m.Flags, FlagFiscalSimulation) {
		t.Error("fiscal_simulation flag missing")
	}
}

func hasFlag(flags []string, flag string) bool {
	for _, f := range flags {
		if f == flag {
			return true
		}
	}
	return false
}
