package analytics

import (
	"math"
	"sort"

	"gestionale/internal/core"
)

type (
	// HistoryMeta is the caller-supplied descriptor of the historical
	// window. The builder trusts it: closed-year flags in particular are
	// never re-derived here.
	HistoryMeta struct {
		CurrentYear       int       `json:"current_year"`
		LatestClosedYear  int       `json:"latest_closed_year"`
		FirstYear         int       `json:"first_year"`
		LastYear          int       `json:"last_year"`
		AsOf              core.Date `json:"as_of"`
		HasFutureServices bool      `json:"has_future_services"`
	}

	// YearlyRevenueRow is one pre-aggregated revenue row per year.
	YearlyRevenueRow struct {
		Year          int     `json:"year"`
		Revenue       float64 `json:"revenue"`
		ServicesCount int     `json:"services_count"`
		Closed        bool    `json:"closed"`
	}

	// YearlyCategoryRow is one pre-aggregated row per year and category.
	YearlyCategoryRow struct {
		Year     int                  `json:"year"`
		Category core.ProjectCategory `json:"category"`
		Revenue  float64              `json:"revenue"`
	}

	// ClientLifetimeRow is one pre-aggregated lifetime-revenue row per
	// client.
	ClientLifetimeRow struct {
		ClientID string  `json:"client_id"`
		Name     string  `json:"name"`
		Revenue  float64 `json:"revenue"`
	}

	YearPoint struct {
		Year          int     `json:"year"`
		Revenue       float64 `json:"revenue"`
		ServicesCount int     `json:"services_count"`
		Closed        bool    `json:"closed"`
	}

	YearValue struct {
		Year    int     `json:"year"`
		Revenue float64 `json:"revenue"`
	}

	// CategorySeries is a dense per-year series for one category: every
	// year of the window has a point, absent cells filled with 0.
	CategorySeries struct {
		Category core.ProjectCategory `json:"category"`
		Total    float64              `json:"total"`
		Points   []YearValue          `json:"points"`
	}

	// HistoricalModel is the longitudinal view over all recorded years.
	HistoricalModel struct {
		Meta        HistoryMeta      `json:"meta"`
		YoYGrowth   Ratio            `json:"yoy_growth"`
		Years       []YearPoint      `json:"years"`
		CategoryMix []CategorySeries `json:"category_mix"`
		TopClients  []ClientRevenue  `json:"top_clients"`
		IsEmpty     bool             `json:"is_empty"`
		Flags       []string         `json:"flags"`
	}

	// HistoricalProjection is the redacted view handed to the external
	// report summarizer. Field naming is a contract: renaming a field
	// here breaks the downstream consumer.
	HistoricalProjection struct {
		CurrentYear      int              `json:"current_year"`
		LatestClosedYear int              `json:"latest_closed_year"`
		YoYGrowth        Ratio            `json:"yoy_growth"`
		Years            []YearPoint      `json:"years"`
		CategoryMix      []CategorySeries `json:"category_mix"`
		TopClientShares  []float64        `json:"top_client_shares"`
		Flags            []string         `json:"flags"`
	}
)

// BuildHistoricalModel produces the multi-year model from rows the
// persistence layer pre-aggregated. Year-over-year growth compares the
// two most recent closed years only; the in-progress year never takes
// part in the comparison.
func BuildHistoricalModel(meta HistoryMeta, yearly []YearlyRevenueRow, byCategory []YearlyCategoryRow, clients []ClientLifetimeRow) *HistoricalModel {
	m := &HistoricalModel{Meta: meta}

	years := make([]YearPoint, 0, len(yearly))
	var totalRevenue float64
	hasCurrentData := false
	for _, r := range yearly {
		years = append(years, YearPoint{
			Year:          r.Year,
			Revenue:       r.Revenue,
			ServicesCount: r.ServicesCount,
			Closed:        r.Closed,
		})
		totalRevenue += r.Revenue
		if r.Year == meta.CurrentYear && (r.Revenue != 0 || r.ServicesCount > 0) {
			hasCurrentData = true
		}
	}
	sort.Slice(years, func(i, j int) bool { return years[i].Year < years[j].Year })
	m.Years = years

	m.YoYGrowth = yoyGrowth(years)
	m.CategoryMix = categoryMix(years, byCategory)
	m.TopClients = topLifetimeClients(clients, maxTopClients)

	m.IsEmpty = totalRevenue == 0 && !hasCurrentData && meta.FirstYear == 0 && meta.LastYear == 0

	for _, y := range years {
		if y.Year == meta.CurrentYear && !y.Closed {
			m.Flags = addFlag(m.Flags, FlagYTDPartial)
		}
	}
	if meta.HasFutureServices {
		m.Flags = addFlag(m.Flags, FlagFutureServicesExcluded)
	}

	return m
}

// yoyGrowth compares the two most recent closed years, rounded to a
// whole percent. Fewer than two closed years, or a zero baseline, make
// the figure not demonstrable rather than 0%.
func yoyGrowth(years []YearPoint) Ratio {
	var closed []YearPoint
	for _, y := range years {
		if y.Closed {
			closed = append(closed, y)
		}
	}
	if len(closed) < 2 {
		return NotDemonstrable(ReasonInsufficientClosedYears)
	}
	latest := closed[len(closed)-1]
	previous := closed[len(closed)-2]
	if previous.Revenue == 0 {
		return NotDemonstrable(ReasonZeroBaseline)
	}
	growth := (latest.Revenue - previous.Revenue) / previous.Revenue * 100
	return Demonstrable(math.Round(growth))
}

// categoryMix builds the dense year-by-category matrix. Only categories
// with positive cumulative revenue survive, sorted by total descending;
// every kept category has a point for every year of the window.
func categoryMix(years []YearPoint, rows []YearlyCategoryRow) []CategorySeries {
	if len(years) == 0 {
		return nil
	}
	totals := map[core.ProjectCategory]float64{}
	cells := map[core.ProjectCategory]map[int]float64{}
	for _, r := range rows {
		totals[r.Category] += r.Revenue
		if cells[r.Category] == nil {
			cells[r.Category] = map[int]float64{}
		}
		cells[r.Category][r.Year] += r.Revenue
	}

	var out []CategorySeries
	for cat, total := range totals {
		if total <= 0 {
			continue
		}
		series := CategorySeries{Category: cat, Total: total}
		for _, y := range years {
			series.Points = append(series.Points, YearValue{Year: y.Year, Revenue: cells[cat][y.Year]})
		}
		out = append(out, series)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Category < out[j].Category
	})
	return out
}

func topLifetimeClients(rows []ClientLifetimeRow, cap int) []ClientRevenue {
	out := make([]ClientRevenue, 0, len(rows))
	for _, r := range rows {
		out = append(out, ClientRevenue{ClientID: r.ClientID, Name: r.Name, Revenue: r.Revenue})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Revenue != out[j].Revenue {
			return out[i].Revenue > out[j].Revenue
		}
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ClientID < out[j].ClientID
	})
	if len(out) > cap {
		out = out[:cap]
	}
	return out
}

// Projection redacts the model for the external summarizer: client
// identities become anonymous revenue shares of the historical total.
func (m *HistoricalModel) Projection() HistoricalProjection {
	var total float64
	for _, y := range m.Years {
		total += y.Revenue
	}
	shares := make([]float64, 0, len(m.TopClients))
	for _, c := range m.TopClients {
		shares = append(shares, pct(c.Revenue, total))
	}
	return HistoricalProjection{
		CurrentYear:      m.Meta.CurrentYear,
		LatestClosedYear: m.Meta.LatestClosedYear,
		YoYGrowth:        m.YoYGrowth,
		Years:            m.Years,
		CategoryMix:      m.CategoryMix,
		TopClientShares:  shares,
		Flags:            m.Flags,
	}
}
