package analytics

import (
	"sort"
	"time"

	"gestionale/internal/core"
)

// Warnings emitted by the fiscal simulation. Like quality flags they are
// additive and never block computation.
const (
	WarnUnclassifiedRevenue = "unclassified_revenue"
	WarnCeilingExceeded     = "ceiling_exceeded"
	WarnCeilingCritical     = "ceiling_critical"
)

// Forfait regime constants. Amounts in euro.
const (
	defaultRevenueCeiling = 85000.0
	regimeExitThreshold   = 100000.0

	// Advance-payment thresholds for the substitute tax: no advance at
	// all below the minimum, a single November advance up to the double
	// threshold, a June+November split above it.
	minTaxAdvance          = 51.65
	doubleAdvanceThreshold = 257.52

	reducedTaxRatePct  = 5.0
	standardTaxRatePct = 15.0
	reducedRateYears   = 5

	contributionBalancePct = 0.20
	contributionAdvancePct = 0.40
)

type (
	FiscalKPIs struct {
		GrossRevenue         float64 `json:"gross_revenue"`
		ForfaitIncome        float64 `json:"forfait_income"`
		ContributionEstimate float64 `json:"contribution_estimate"`
		TaxableIncome        float64 `json:"taxable_income"`
		TaxRatePct           float64 `json:"tax_rate_pct"`
		TaxEstimate          float64 `json:"tax_estimate"`
		NetIncome            float64 `json:"net_income"`
		MonthlySetAside      float64 `json:"monthly_set_aside"`
		Ceiling              float64 `json:"ceiling"`
		DistanceToCeiling    float64 `json:"distance_to_ceiling"`
	}

	// ProfileBreakdown is the per-ATECO share of revenue and forfait
	// taxable income.
	ProfileBreakdown struct {
		ATECOCode      string                 `json:"ateco_code"`
		CoefficientPct float64                `json:"coefficient_pct"`
		Categories     []core.ProjectCategory `json:"categories"`
		Revenue        float64                `json:"revenue"`
		ForfaitIncome  float64                `json:"forfait_income"`
	}

	// DeadlineItem is one payment obligation with its composition and
	// position relative to today.
	DeadlineItem struct {
		Date                core.Date `json:"date"`
		Label               string    `json:"label"`
		TaxBalance          float64   `json:"tax_balance"`
		TaxAdvance          float64   `json:"tax_advance"`
		ContributionBalance float64   `json:"contribution_balance"`
		ContributionAdvance float64   `json:"contribution_advance"`
		Total               float64   `json:"total"`
		Past                bool      `json:"past"`
		Days                int       `json:"days"`
	}

	CategoryMargin struct {
		Category  core.ProjectCategory `json:"category"`
		Revenue   float64              `json:"revenue"`
		Expenses  float64              `json:"expenses"`
		MarginPct float64              `json:"margin_pct"`
	}

	BusinessHealth struct {
		Margins              []CategoryMargin `json:"margins"`
		QuoteConversionPct   float64          `json:"quote_conversion_pct"`
		DSO                  Ratio            `json:"dso"`
		ClientConcentration  float64          `json:"client_concentration_pct"`
		WeightedPipeline     float64          `json:"weighted_pipeline"`
	}

	// FiscalModel is the forfait-regime simulation for one year.
	FiscalModel struct {
		Year                int                `json:"year"`
		KPIs                FiscalKPIs         `json:"kpis"`
		Profiles            []ProfileBreakdown `json:"profiles"`
		UnclassifiedRevenue float64            `json:"unclassified_revenue"`
		Deadlines           []DeadlineItem     `json:"deadlines"`
		Health              BusinessHealth     `json:"health"`
		Warnings            []string           `json:"warnings"`
	}
)

// BuildFiscalModel simulates the Italian regime forfettario for the
// given year from raw entities and the fiscal configuration. It is a
// simulation, not tax advice: estimates follow the statutory formulas
// but ignore anything outside the supplied rows.
func BuildFiscalModel(in Inputs, cfg core.FiscalConfig, year int, clock core.Clock) *FiscalModel {
	if clock == nil {
		clock = core.SystemClock{}
	}
	now := clock.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	isCurrent := year == now.Year()

	lk := buildLookups(in)

	// Flatten each profile's linked categories into a category->profile
	// index; later profiles never steal categories from earlier ones.
	profileByCategory := map[core.ProjectCategory]int{}
	profiles := make([]ProfileBreakdown, len(cfg.Profiles))
	for i, p := range cfg.Profiles {
		profiles[i] = ProfileBreakdown{
			ATECOCode:      p.ATECOCode,
			CoefficientPct: p.CoefficientPct,
			Categories:     append([]core.ProjectCategory(nil), p.Categories...),
		}
		for _, cat := range p.Categories {
			if _, taken := profileByCategory[cat]; !taken {
				profileByCategory[cat] = i
			}
		}
	}

	// Net revenue per category for the target year, competence basis.
	// Independent of the annual builder on purpose.
	revenueByCategory := map[core.ProjectCategory]float64{}
	clientRevenue := map[string]float64{}
	var gross float64
	for _, s := range in.Services {
		if !s.Date.InYear(year) {
			continue
		}
		if isCurrent && s.Date.Time.After(today) {
			continue
		}
		rev := s.NetRevenue()
		gross += rev
		revenueByCategory[lk.categoryOf(s.ProjectID)] += rev
		if cl, ok := lk.clientOf(s.ProjectID); ok {
			clientRevenue[cl.ID] += rev
		}
	}

	m := &FiscalModel{Year: year}

	var unclassified float64
	for cat, rev := range revenueByCategory {
		if i, ok := profileByCategory[cat]; ok {
			profiles[i].Revenue += rev
			profiles[i].ForfaitIncome += rev * profiles[i].CoefficientPct / 100
		} else {
			unclassified += rev
		}
	}
	m.Profiles = profiles
	m.UnclassifiedRevenue = unclassified
	if unclassified > 0 {
		m.Warnings = addFlag(m.Warnings, WarnUnclassifiedRevenue)
	}

	var forfait float64
	for _, p := range profiles {
		forfait += p.ForfaitIncome
	}

	contribution := forfait * cfg.ContributionRatePct / 100
	taxable := forfait - contribution
	if taxable < 0 {
		taxable = 0
	}
	ratePct := standardTaxRatePct
	if year-cfg.BusinessStartYear < reducedRateYears {
		ratePct = reducedTaxRatePct
	}
	if cfg.TaxRateOverridePct != nil {
		ratePct = *cfg.TaxRateOverridePct
	}
	tax := taxable * ratePct / 100

	ceiling := cfg.RevenueCeiling
	if ceiling <= 0 {
		ceiling = defaultRevenueCeiling
	}

	m.KPIs = FiscalKPIs{
		GrossRevenue:         gross,
		ForfaitIncome:        forfait,
		ContributionEstimate: contribution,
		TaxableIncome:        taxable,
		TaxRatePct:           ratePct,
		TaxEstimate:          tax,
		NetIncome:            gross - contribution - tax,
		MonthlySetAside:      (contribution + tax) / 12,
		Ceiling:              ceiling,
		DistanceToCeiling:    ceiling - gross,
	}

	if gross >= regimeExitThreshold {
		m.Warnings = addFlag(m.Warnings, WarnCeilingCritical)
	} else if gross > ceiling {
		m.Warnings = addFlag(m.Warnings, WarnCeilingExceeded)
	}

	m.Deadlines = buildDeadlines(cfg, year, tax, contribution, today)
	m.Health = buildHealth(in, lk, year, isCurrent, revenueByCategory, clientRevenue, gross)

	return m
}

// buildDeadlines lays out the June 30 and November 30 obligations. The
// first operating year has none: balances and advances start with the
// first tax return. Single-year simulation uses the year's own
// estimates as proxy for the prior-year balances.
func buildDeadlines(cfg core.FiscalConfig, year int, tax, contribution float64, today time.Time) []DeadlineItem {
	if year == cfg.BusinessStartYear {
		return nil
	}

	june := core.NewDate(year, 6, 30)
	nov := core.NewDate(year, 11, 30)

	var juneTaxAdvance, novTaxAdvance float64
	switch {
	case tax > doubleAdvanceThreshold:
		juneTaxAdvance = tax * 0.5
		novTaxAdvance = tax * 0.5
	case tax > minTaxAdvance:
		novTaxAdvance = tax
	}

	items := []DeadlineItem{
		{
			Date:                june,
			Label:               "saldo e primo acconto",
			TaxBalance:          tax,
			TaxAdvance:          juneTaxAdvance,
			ContributionBalance: contribution * contributionBalancePct,
			ContributionAdvance: contribution * contributionAdvancePct,
		},
		{
			Date:                nov,
			Label:               "secondo acconto",
			TaxAdvance:          novTaxAdvance,
			ContributionAdvance: contribution * contributionAdvancePct,
		},
	}
	for i := range items {
		it := &items[i]
		it.Total = it.TaxBalance + it.TaxAdvance + it.ContributionBalance + it.ContributionAdvance
		days := daysBetween(today, it.Date.Time)
		if days < 0 {
			it.Past = true
			it.Days = -days
		} else {
			it.Days = days
		}
	}
	return items
}

// buildHealth derives the business-health KPIs. Every ratio degrades to
// 0 on a zero denominator; DSO degrades to not-demonstrable instead,
// because "no payments to measure" is not the same as "paid same day".
func buildHealth(in Inputs, lk lookups, year int, isCurrent bool, revenueByCategory map[core.ProjectCategory]float64, clientRevenue map[string]float64, gross float64) BusinessHealth {
	h := BusinessHealth{}

	expensesByCategory := map[core.ProjectCategory]float64{}
	for _, e := range in.Expenses {
		if !e.Date.InYear(year) || e.ProjectID == "" {
			continue
		}
		expensesByCategory[lk.categoryOf(e.ProjectID)] += e.Cost()
	}
	seen := map[core.ProjectCategory]bool{}
	for cat := range revenueByCategory {
		seen[cat] = true
	}
	for cat := range expensesByCategory {
		seen[cat] = true
	}
	for cat := range seen {
		rev := revenueByCategory[cat]
		exp := expensesByCategory[cat]
		h.Margins = append(h.Margins, CategoryMargin{
			Category:  cat,
			Revenue:   rev,
			Expenses:  exp,
			MarginPct: pct(rev-exp, rev),
		})
	}
	sort.Slice(h.Margins, func(i, j int) bool {
		if h.Margins[i].Revenue != h.Margins[j].Revenue {
			return h.Margins[i].Revenue > h.Margins[j].Revenue
		}
		return h.Margins[i].Category < h.Margins[j].Category
	})

	var quotesTotal, quotesAccepted int
	var openAmount float64
	for _, q := range in.Quotes {
		if !quoteInYear(q, year, isCurrent) {
			continue
		}
		quotesTotal++
		if q.Status.AcceptedOrFurther() {
			quotesAccepted++
		}
		if !q.Status.Closed() {
			openAmount += float64(q.Amount)
		}
	}
	h.QuoteConversionPct = pct(float64(quotesAccepted), float64(quotesTotal))
	h.WeightedPipeline = openAmount * frac(float64(quotesAccepted), float64(quotesTotal))

	h.DSO = daysSalesOutstanding(in, year)

	top3 := 0.0
	ranked := topClients(clientRevenue, map[string]string{}, 3)
	for _, c := range ranked {
		top3 += c.Revenue
	}
	h.ClientConcentration = pct(top3, gross)

	return h
}

// daysSalesOutstanding averages the day gap between a project's earliest
// service and each received payment on that project. Payments with no
// matching service pair are excluded from the average, never counted as
// zero days; negative gaps (payment before work) are discarded too.
func daysSalesOutstanding(in Inputs, year int) Ratio {
	earliest := map[string]time.Time{}
	for _, s := range in.Services {
		if s.Date.IsZero() || s.ProjectID == "" {
			continue
		}
		if cur, ok := earliest[s.ProjectID]; !ok || s.Date.Before(cur) {
			earliest[s.ProjectID] = s.Date.Time
		}
	}

	var sum float64
	var n int
	for _, p := range in.Payments {
		if p.Status != core.PaymentReceived || p.Type == core.TypeRefund {
			continue
		}
		if p.Date.IsZero() || !p.Date.InYear(year) {
			continue
		}
		start, ok := earliest[p.ProjectID]
		if !ok {
			continue
		}
		gap := daysBetween(start, p.Date.Time)
		if gap < 0 {
			continue
		}
		sum += float64(gap)
		n++
	}
	if n == 0 {
		return NotDemonstrable(ReasonNoMatchingPayments)
	}
	return Demonstrable(sum / float64(n))
}
