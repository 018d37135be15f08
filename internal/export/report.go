package export

import (
	"fmt"
	"time"

	"gestionale/internal/analytics"
	"gestionale/internal/format"
)

// Section labels used in the first report column.
const (
	sectionKPI      = "kpi"
	sectionMonth    = "month"
	sectionCategory = "category"
	sectionClient   = "client"
	sectionYear     = "year"
	sectionGrowth   = "growth"
	sectionShare    = "client_share"
)

var reportHeader = []string{"section", "key", "value", "detail"}

// AnnualReport flattens an annual model into one tabular report.
func AnnualReport(m *analytics.AnnualModel, builtAt time.Time) Report {
	rows := [][]any{
		{sectionKPI, "total_revenue", m.KPIs.TotalRevenue, format.Euro(m.KPIs.TotalRevenue)},
		{sectionKPI, "services_count", m.KPIs.ServicesCount, ""},
		{sectionKPI, "payments_received", m.KPIs.PaymentsReceived, format.Euro(m.KPIs.PaymentsReceived)},
		{sectionKPI, "pending_amount", m.KPIs.PendingAmount, m.KPIs.PendingCount},
		{sectionKPI, "open_quotes_amount", m.KPIs.OpenQuotesAmount, m.KPIs.OpenQuotesCount},
		{sectionKPI, "travel_km", m.KPIs.TravelKm, m.KPIs.TravelCost},
	}
	for _, p := range m.MonthlyTrend {
		key := fmt.Sprintf("%04d-%02d", m.Meta.Year, p.Month)
		rows = append(rows, []any{sectionMonth, key, p.Revenue, p.ServicesCount})
	}
	for _, c := range m.Categories {
		rows = append(rows, []any{sectionCategory, string(c.Category), c.Revenue, c.ServicesCount})
	}
	for _, c := range m.TopClients {
		rows = append(rows, []any{sectionClient, c.Name, c.Revenue, c.ClientID})
	}

	return Report{
		Model:   "annual",
		Year:    m.Meta.Year,
		BuiltAt: builtAt,
		Header:  reportHeader,
		Rows:    rows,
	}
}

// HistoricalReport flattens a historical model. Client rows carry revenue
// shares only, never names or identifiers.
func HistoricalReport(m *analytics.HistoricalModel, builtAt time.Time) Report {
	proj := m.Projection()

	var rows [][]any
	for _, y := range proj.Years {
		rows = append(rows, []any{sectionYear, y.Year, y.Revenue, y.Closed})
	}
	growth := any("")
	if proj.YoYGrowth.Demonstrable {
		growth = proj.YoYGrowth.Value
	}
	rows = append(rows, []any{sectionGrowth, "yoy_pct", growth, proj.YoYGrowth.Reason})
	for _, s := range proj.CategoryMix {
		rows = append(rows, []any{sectionCategory, string(s.Category), s.Total, len(s.Points)})
	}
	for i, share := range proj.TopClientShares {
		rows = append(rows, []any{sectionShare, i + 1, share, format.Percent(share)})
	}

	return Report{
		Model:   "historical",
		Year:    m.Meta.CurrentYear,
		BuiltAt: builtAt,
		Header:  reportHeader,
		Rows:    rows,
	}
}
