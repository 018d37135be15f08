package export

import (
	"testing"
	"time"

	"gestionale/internal/analytics"
	"gestionale/internal/core"
)

func TestAnnualReport(t *testing.T) {
	m := &analytics.AnnualModel{
		Meta: analytics.AnnualMeta{Year: 2026},
		KPIs: analytics.AnnualKPIs{
			TotalRevenue:     1400,
			ServicesCount:    2,
			PaymentsReceived: 500,
			PendingAmount:    500,
			PendingCount:     2,
		},
		MonthlyTrend: []analytics.MonthPoint{
			{Month: 1, Revenue: 900, ServicesCount: 1},
			{Month: 2, Revenue: 500, ServicesCount: 1},
		},
		Categories: []analytics.CategoryRevenue{
			{Category: core.CategoryWedding, Revenue: 900, ServicesCount: 1},
		},
		TopClients: []analytics.ClientRevenue{
			{ClientID: "c1", Name: "Rossi SRL", Revenue: 1400},
		},
	}
	builtAt := time.Date(2026, 2, 28, 10, 0, 0, 0, time.UTC)

	r := AnnualReport(m, builtAt)

	if r.Model != "annual" || r.Year != 2026 || !r.BuiltAt.Equal(builtAt) {
		t.Fatalf("report meta = %s/%d/%v", r.Model, r.Year, r.BuiltAt)
	}
	// 6 KPI rows, 2 months, 1 category, 1 client
	if len(r.Rows) != 10 {
		t.Fatalf("got %d rows, want 10", len(r.Rows))
	}
	if got := r.Rows[0]; got[0] != "kpi" || got[1] != "total_revenue" || got[2] != 1400.0 || got[3] != "1.400,00 €" {
		t.Errorf("first row = %v", got)
	}
	month := r.Rows[6]
	if month[0] != "month" || month[1] != "2026-01" || month[2] != 900.0 {
		t.Errorf("month row = %v", month)
	}
	client := r.Rows[9]
	if client[0] != "client" || client[1] != "Rossi SRL" || client[3] != "c1" {
		t.Errorf("client row = %v", client)
	}
}

func TestHistoricalReportRedactsClients(t *testing.T) {
	m := &analytics.HistoricalModel{
		Meta: analytics.HistoryMeta{CurrentYear: 2026, LatestClosedYear: 2025},
		YoYGrowth: analytics.Ratio{
			Reason: analytics.ReasonInsufficientClosedYears,
		},
		Years: []analytics.YearPoint{
			{Year: 2025, Revenue: 8000, Closed: true},
			{Year: 2026, Revenue: 1000},
		},
		TopClients: []analytics.ClientRevenue{
			{ClientID: "c1", Name: "Rossi SRL", Revenue: 6000},
			{ClientID: "c2", Name: "Bianchi", Revenue: 3000},
		},
	}

	r := HistoricalReport(m, time.Now())

	var shares int
	for _, row := range r.Rows {
		for _, cell := range row {
			if cell == "Rossi SRL" || cell == "c1" {
				t.Fatalf("client identity leaked into row %v", row)
			}
		}
		if row[0] == "client_share" {
			shares++
		}
	}
	if shares != 2 {
		t.Errorf("got %d client_share rows, want 2", shares)
	}

	for _, row := range r.Rows {
		if row[0] != "growth" {
			continue
		}
		if row[2] != "" {
			t.Errorf("non-demonstrable growth carried value %v", row[2])
		}
		if row[3] != analytics.ReasonInsufficientClosedYears {
			t.Errorf("growth reason = %v", row[3])
		}
	}
}
