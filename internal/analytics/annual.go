// Package analytics turns raw transactional rows into the operational,
// fiscal and historical models consumed by the dashboard and by the
// report generator.
//
// The three builders (annual, fiscal, historical) are pure functions:
// same inputs plus the same wall-clock day give byte-identical output.
// They perform no I/O, never mutate their inputs and allocate fresh
// output on every call, so they are safe to invoke concurrently.
package analytics

import (
	"sort"
	"time"

	"gestionale/internal/core"
)

// Quality flags attached to built models. Additive and deduplicated.
const (
	FlagAlertsSnapshot         = "alerts_snapshot"
	FlagFiscalSimulation       = "fiscal_simulation"
	FlagFutureServicesExcluded = "future_services_excluded"
	FlagYTDPartial             = "ytd_partial"
)

// Alert caps and windows.
const (
	minSelectableYear = 2000

	paymentAlertWindowDays = 14
	serviceAlertWindowDays = 14
	staleQuoteAfterDays    = 7

	maxPaymentAlerts = 10
	maxServiceAlerts = 6
	maxQuoteAlerts   = 6

	maxTopClients = 5
)

type (
	// AnnualOptions selects the year and optionally enables the embedded
	// fiscal simulation. A zero Year means the current calendar year.
	AnnualOptions struct {
		Year   int
		Fiscal *core.FiscalConfig
		Clock  core.Clock
	}

	AnnualMeta struct {
		Year          int       `json:"year"`
		IsCurrentYear bool      `json:"is_current_year"`
		AsOf          core.Date `json:"as_of"`
	}

	AnnualKPIs struct {
		TotalRevenue     float64  `json:"total_revenue"`
		ServicesCount    int      `json:"services_count"`
		PaymentsReceived float64  `json:"payments_received"`
		PendingAmount    float64  `json:"pending_amount"`
		PendingCount     int      `json:"pending_count"`
		OpenQuotesAmount float64  `json:"open_quotes_amount"`
		OpenQuotesCount  int      `json:"open_quotes_count"`
		TravelKm         float64  `json:"travel_km"`
		TravelCost       float64  `json:"travel_cost"`
		MonthRevenue     float64  `json:"month_revenue"`
		MonthDelta       *float64 `json:"month_delta"`
	}

	MonthPoint struct {
		Month         int     `json:"month"`
		Revenue       float64 `json:"revenue"`
		TravelKm      float64 `json:"travel_km"`
		TravelCost    float64 `json:"travel_cost"`
		ServicesCount int     `json:"services_count"`
	}

	CategoryRevenue struct {
		Category      core.ProjectCategory `json:"category"`
		Revenue       float64              `json:"revenue"`
		ServicesCount int                  `json:"services_count"`
	}

	PipelineBucket struct {
		Status core.QuoteStatus `json:"status"`
		Count  int              `json:"count"`
		Amount float64          `json:"amount"`
	}

	ClientRevenue struct {
		ClientID string  `json:"client_id"`
		Name     string  `json:"name"`
		Revenue  float64 `json:"revenue"`
	}

	PaymentDue struct {
		ID         string             `json:"id"`
		ClientName string             `json:"client_name"`
		Amount     float64            `json:"amount"`
		DueDate    core.Date          `json:"due_date"`
		Status     core.PaymentStatus `json:"status"`
	}

	OpenQuote struct {
		ID         string           `json:"id"`
		Title      string           `json:"title"`
		ClientName string           `json:"client_name"`
		Amount     float64          `json:"amount"`
		Status     core.QuoteStatus `json:"status"`
		SentAt     core.Date        `json:"sent_at"`
	}

	PaymentAlert struct {
		ID         string    `json:"id"`
		ClientName string    `json:"client_name"`
		Amount     float64   `json:"amount"`
		DueDate    core.Date `json:"due_date"`
		DaysUntil  int       `json:"days_until"`
		Overdue    bool      `json:"overdue"`
	}

	ServiceAlert struct {
		ID          string    `json:"id"`
		ProjectName string    `json:"project_name"`
		Date        core.Date `json:"date"`
		DaysUntil   int       `json:"days_until"`
		Revenue     float64   `json:"revenue"`
	}

	QuoteAlert struct {
		ID          string    `json:"id"`
		Title       string    `json:"title"`
		ClientName  string    `json:"client_name"`
		Amount      float64   `json:"amount"`
		SentAt      core.Date `json:"sent_at"`
		DaysWaiting int       `json:"days_waiting"`
	}

	Alerts struct {
		PaymentsDue      []PaymentAlert `json:"payments_due"`
		UpcomingServices []ServiceAlert `json:"upcoming_services"`
		StaleQuotes      []QuoteAlert   `json:"stale_quotes"`
	}

	// AnnualModel is the operational snapshot for one selected year.
	AnnualModel struct {
		Meta            AnnualMeta        `json:"meta"`
		KPIs            AnnualKPIs        `json:"kpis"`
		MonthlyTrend    []MonthPoint      `json:"monthly_trend"`
		Categories      []CategoryRevenue `json:"categories"`
		Pipeline        []PipelineBucket  `json:"pipeline"`
		TopClients      []ClientRevenue   `json:"top_clients"`
		PendingPayments []PaymentDue      `json:"pending_payments"`
		OpenQuotes      []OpenQuote       `json:"open_quotes"`
		Alerts          Alerts            `json:"alerts"`
		Fiscal          *FiscalModel      `json:"fiscal,omitempty"`
		Flags           []string          `json:"flags"`
	}
)

// pipelineOrder fixes the bucket ordering of the quote histogram.
var pipelineOrder = []core.QuoteStatus{
	core.QuoteFirstContact,
	core.QuoteSent,
	core.QuoteNegotiating,
	core.QuoteAccepted,
	core.QuoteDepositReceived,
	core.QuoteInProgress,
	core.QuoteCompleted,
	core.QuoteSettled,
	core.QuoteRejected,
	core.QuoteLost,
	core.QuoteUnknown,
}

// BuildAnnualModel produces the operational snapshot for the selected
// year. For the current year the aggregation boundary is today and
// future-dated services are excluded; for a past year all twelve months
// are visible. Alerts are always computed against today, regardless of
// the selected year.
func BuildAnnualModel(in Inputs, opts AnnualOptions) *AnnualModel {
	clock := opts.Clock
	if clock == nil {
		clock = core.SystemClock{}
	}
	now := clock.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	year := opts.Year
	if year == 0 || year < minSelectableYear || year > now.Year() {
		year = now.Year()
	}
	isCurrent := year == now.Year()
	lastVisibleMonth := 12
	if isCurrent {
		lastVisibleMonth = int(now.Month())
	}

	lk := buildLookups(in)

	months := make([]MonthPoint, 12)
	for i := range months {
		months[i].Month = i + 1
	}
	catRevenue := map[core.ProjectCategory]*CategoryRevenue{}
	clientRevenue := map[string]float64{}
	clientNames := map[string]string{}

	kpis := AnnualKPIs{}
	futureExcluded := 0

	for _, s := range in.Services {
		if !s.Date.InYear(year) {
			continue
		}
		if isCurrent && s.Date.Time.After(today) {
			futureExcluded++
			continue
		}
		rev := s.NetRevenue()
		m := &months[int(s.Date.Month())-1]
		m.Revenue += rev
		m.TravelKm += float64(s.TravelKm)
		m.TravelCost += s.TravelCost()
		m.ServicesCount++

		kpis.TotalRevenue += rev
		kpis.ServicesCount++
		kpis.TravelKm += float64(s.TravelKm)
		kpis.TravelCost += s.TravelCost()

		cat := lk.categoryOf(s.ProjectID)
		cr, ok := catRevenue[cat]
		if !ok {
			cr = &CategoryRevenue{Category: cat}
			catRevenue[cat] = cr
		}
		cr.Revenue += rev
		cr.ServicesCount++

		if cl, ok := lk.clientOf(s.ProjectID); ok {
			clientRevenue[cl.ID] += rev
			clientNames[cl.ID] = cl.Name
		}
	}

	trend := months[:lastVisibleMonth]
	kpis.MonthRevenue = trend[lastVisibleMonth-1].Revenue
	// The delta needs the previous calendar month inside the same target
	// year; in January it is unavailable, not zero.
	if lastVisibleMonth >= 2 {
		delta := trend[lastVisibleMonth-1].Revenue - trend[lastVisibleMonth-2].Revenue
		kpis.MonthDelta = &delta
	}

	// Payments received are tracked in parallel with revenue and never
	// summed into it: revenue stays on a competence basis.
	for _, p := range in.Payments {
		if p.Status == core.PaymentReceived && p.Date.InYear(year) {
			kpis.PaymentsReceived += p.Signed()
		}
	}

	model := &AnnualModel{
		Meta: AnnualMeta{
			Year:          year,
			IsCurrentYear: isCurrent,
			AsOf:          core.Date{Time: today},
		},
		MonthlyTrend: append([]MonthPoint(nil), trend...),
		Categories:   sortedCategories(catRevenue),
		TopClients:   topClients(clientRevenue, clientNames, maxTopClients),
	}

	model.PendingPayments, kpis.PendingAmount = pendingPayments(in, lk, year)
	kpis.PendingCount = len(model.PendingPayments)

	model.OpenQuotes, model.Pipeline, kpis.OpenQuotesAmount = quoteBook(in, lk, year, isCurrent)
	kpis.OpenQuotesCount = len(model.OpenQuotes)
	model.KPIs = kpis

	model.Alerts = buildAlerts(in, lk, today)
	model.Flags = addFlag(model.Flags, FlagAlertsSnapshot)
	if futureExcluded > 0 {
		model.Flags = addFlag(model.Flags, FlagFutureServicesExcluded)
	}

	if opts.Fiscal != nil {
		model.Fiscal = BuildFiscalModel(in, *opts.Fiscal, year, clock)
		model.Flags = addFlag(model.Flags, FlagFiscalSimulation)
	}

	return model
}

func sortedCategories(byCat map[core.ProjectCategory]*CategoryRevenue) []CategoryRevenue {
	out := make([]CategoryRevenue, 0, len(byCat))
	for _, cr := range byCat {
		out = append(out, *cr)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Revenue != out[j].Revenue {
			return out[i].Revenue > out[j].Revenue
		}
		return out[i].Category < out[j].Category
	})
	return out
}

func topClients(revenue map[string]float64, names map[string]string, cap int) []ClientRevenue {
	out := make([]ClientRevenue, 0, len(revenue))
	for id, rev := range revenue {
		out = append(out, ClientRevenue{ClientID: id, Name: names[id], Revenue: rev})
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

// pendingPayments lists pending and overdue payments attributed to the
// target year, refunds excluded. Their sum never mixes into revenue.
func pendingPayments(in Inputs, lk lookups, year int) ([]PaymentDue, float64) {
	var out []PaymentDue
	var total float64
	for _, p := range in.Payments {
		if p.Type == core.TypeRefund {
			continue
		}
		if p.Status != core.PaymentPending && p.Status != core.PaymentOverdue {
			continue
		}
		if paymentYear(p) != year {
			continue
		}
		name := ""
		if c, ok := lk.clientByID(p.ClientID); ok {
			name = c.Name
		}
		out = append(out, PaymentDue{
			ID:         p.ID,
			ClientName: name,
			Amount:     float64(p.Amount),
			DueDate:    p.DueDate,
			Status:     p.Status,
		})
		total += float64(p.Amount)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DueDate.Equal(out[j].DueDate.Time) {
			return out[i].DueDate.Before(out[j].DueDate.Time)
		}
		return out[i].ID < out[j].ID
	})
	return out, total
}

// quoteBook builds the open-quote drill-down, the full pipeline
// histogram and the open amount for the target year. Closed statuses
// (completed, settled, rejected, lost) drop out of the open set but
// still appear in the histogram.
func quoteBook(in Inputs, lk lookups, year int, isCurrent bool) ([]OpenQuote, []PipelineBucket, float64) {
	buckets := map[core.QuoteStatus]*PipelineBucket{}
	var open []OpenQuote
	var openAmount float64

	for _, q := range in.Quotes {
		if !quoteInYear(q, year, isCurrent) {
			continue
		}
		b, ok := buckets[q.Status]
		if !ok {
			b = &PipelineBucket{Status: q.Status}
			buckets[q.Status] = b
		}
		b.Count++
		b.Amount += float64(q.Amount)

		if q.Status.Closed() {
			continue
		}
		name := ""
		if c, ok := lk.clientByID(q.ClientID); ok {
			name = c.Name
		}
		open = append(open, OpenQuote{
			ID:         q.ID,
			Title:      q.Title,
			ClientName: name,
			Amount:     float64(q.Amount),
			Status:     q.Status,
			SentAt:     q.SentAt,
		})
		openAmount += float64(q.Amount)
	}

	sort.Slice(open, func(i, j int) bool {
		if open[i].Amount != open[j].Amount {
			return open[i].Amount > open[j].Amount
		}
		return open[i].ID < open[j].ID
	})

	pipeline := make([]PipelineBucket, 0, len(buckets))
	for _, st := range pipelineOrder {
		if b, ok := buckets[st]; ok {
			pipeline = append(pipeline, *b)
		}
	}
	return open, pipeline, openAmount
}

// buildAlerts computes the time-bounded alert lists against today,
// independent of the selected year. The lists are a snapshot: they age
// the moment they are built.
func buildAlerts(in Inputs, lk lookups, today time.Time) Alerts {
	var al Alerts

	for _, p := range in.Payments {
		if p.Type == core.TypeRefund || p.Status == core.PaymentReceived {
			continue
		}
		if p.DueDate.IsZero() {
			continue
		}
		days := daysBetween(today, p.DueDate.Time)
		overdue := p.Status == core.PaymentOverdue || days < 0
		if !overdue && days > paymentAlertWindowDays {
			continue
		}
		name := ""
		if c, ok := lk.clientByID(p.ClientID); ok {
			name = c.Name
		}
		al.PaymentsDue = append(al.PaymentsDue, PaymentAlert{
			ID:         p.ID,
			ClientName: name,
			Amount:     float64(p.Amount),
			DueDate:    p.DueDate,
			DaysUntil:  days,
			Overdue:    overdue,
		})
	}
	// Urgency first, proximity second.
	sort.Slice(al.PaymentsDue, func(i, j int) bool {
		a, b := al.PaymentsDue[i], al.PaymentsDue[j]
		if a.Overdue != b.Overdue {
			return a.Overdue
		}
		if a.DaysUntil != b.DaysUntil {
			return a.DaysUntil < b.DaysUntil
		}
		return a.ID < b.ID
	})
	if len(al.PaymentsDue) > maxPaymentAlerts {
		al.PaymentsDue = al.PaymentsDue[:maxPaymentAlerts]
	}

	horizon := today.AddDate(0, 0, serviceAlertWindowDays)
	for _, s := range in.Services {
		if s.Date.IsZero() || !s.Date.After(today) || s.Date.After(horizon) {
			continue
		}
		al.UpcomingServices = append(al.UpcomingServices, ServiceAlert{
			ID:          s.ID,
			ProjectName: lk.projectName(s.ProjectID),
			Date:        s.Date,
			DaysUntil:   daysBetween(today, s.Date.Time),
			Revenue:     s.NetRevenue(),
		})
	}
	sort.Slice(al.UpcomingServices, func(i, j int) bool {
		a, b := al.UpcomingServices[i], al.UpcomingServices[j]
		if a.DaysUntil != b.DaysUntil {
			return a.DaysUntil < b.DaysUntil
		}
		return a.ID < b.ID
	})
	if len(al.UpcomingServices) > maxServiceAlerts {
		al.UpcomingServices = al.UpcomingServices[:maxServiceAlerts]
	}

	for _, q := range in.Quotes {
		if q.SentAt.IsZero() || !q.RespondedAt.IsZero() || q.Status.Closed() {
			continue
		}
		waiting := daysBetween(q.SentAt.Time, today)
		if waiting <= staleQuoteAfterDays {
			continue
		}
		name := ""
		if c, ok := lk.clientByID(q.ClientID); ok {
			name = c.Name
		}
		al.StaleQuotes = append(al.StaleQuotes, QuoteAlert{
			ID:          q.ID,
			Title:       q.Title,
			ClientName:  name,
			Amount:      float64(q.Amount),
			SentAt:      q.SentAt,
			DaysWaiting: waiting,
		})
	}
	sort.Slice(al.StaleQuotes, func(i, j int) bool {
		a, b := al.StaleQuotes[i], al.StaleQuotes[j]
		if a.DaysWaiting != b.DaysWaiting {
			return a.DaysWaiting > b.DaysWaiting
		}
		return a.ID < b.ID
	})
	if len(al.StaleQuotes) > maxQuoteAlerts {
		al.StaleQuotes = al.StaleQuotes[:maxQuoteAlerts]
	}

	return al
}

// daysBetween counts whole days from a to b, negative when b precedes a.
func daysBetween(a, b time.Time) int {
	a = time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	b = time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a) / (24 * time.Hour))
}

// addFlag appends a quality flag, keeping the list free of duplicates.
func addFlag(flags []string, flag string) []string {
	for _, f := range flags {
		if f == flag {
			return flags
		}
	}
	return append(flags, flag)
}
