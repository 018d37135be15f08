package analytics

import (
	"testing"

	"gestionale/internal/core"
)

func historyMeta() HistoryMeta {
	return HistoryMeta{
		CurrentYear:      2026,
		LatestClosedYear: 2025,
		FirstYear:        2023,
		LastYear:         2026,
		AsOf:             core.NewDate(2026, 6, 1),
	}
}

func TestYoYGrowth(t *testing.T) {
	tests := []struct {
		name       string
		yearly     []YearlyRevenueRow
		wantValue  float64
		wantReason string
	}{
		{
			name: "two closed years",
			yearly: []YearlyRevenueRow{
				{Year: 2024, Revenue: 10000, Closed: true},
				{Year: 2025, Revenue: 12000, Closed: true},
				{Year: 2026, Revenue: 3000},
			},
			wantValue: 20,
		},
		{
			name: "rounded to whole percent",
			yearly: []YearlyRevenueRow{
				{Year: 2024, Revenue: 9000, Closed: true},
				{Year: 2025, Revenue: 10000, Closed: true},
			},
			wantValue: 11,
		},
		{
			name: "single closed year",
			yearly: []YearlyRevenueRow{
				{Year: 2025, Revenue: 12000, Closed: true},
				{Year: 2026, Revenue: 9000},
			},
			wantReason: ReasonInsufficientClosedYears,
		},
		{
			name: "current year never compared",
			yearly: []YearlyRevenueRow{
				{Year: 2025, Revenue: 12000, Closed: true},
				{Year: 2026, Revenue: 24000},
			},
			wantReason: ReasonInsufficientClosedYears,
		},
		{
			name: "zero baseline",
			yearly: []YearlyRevenueRow{
				{Year: 2024, Revenue: 0, Closed: true},
				{Year: 2025, Revenue: 5000, Closed: true},
			},
			wantReason: ReasonZeroBaseline,
		},
		{
			name:       "no data",
			yearly:     nil,
			wantReason: ReasonInsufficientClosedYears,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := BuildHistoricalModel(historyMeta(), tt.yearly, nil, nil)
			g := m.YoYGrowth
			if tt.wantReason != "" {
				if g.Demonstrable {
					t.Fatalf("growth demonstrable (%v), want reason %q", g.Value, tt.wantReason)
				}
				if g.Reason != tt.wantReason {
					t.Errorf("reason = %q, want %q", g.Reason, tt.wantReason)
				}
				return
			}
			if !g.Demonstrable {
				t.Fatalf("growth not demonstrable: %s", g.Reason)
			}
			if g.Value != tt.wantValue {
				t.Errorf("growth = %v, want %v", g.Value, tt.wantValue)
			}
		})
	}
}

func TestCategoryMixIsDense(t *testing.T) {
	yearly := []YearlyRevenueRow{
		{Year: 2024, Revenue: 5000, Closed: true},
		{Year: 2025, Revenue: 8000, Closed: true},
		{Year: 2026, Revenue: 2000},
	}
	rows := []YearlyCategoryRow{
		{Year: 2024, Category: core.CategoryWedding, Revenue: 5000},
		{Year: 2025, Category: core.CategoryWedding, Revenue: 6000},
		{Year: 2025, Category: core.CategorySpot, Revenue: 2000},
		{Year: 2026, Category: core.CategorySpot, Revenue: 2000},
		{Year: 2024, Category: core.CategoryWebDev, Revenue: 0},
	}
	m := BuildHistoricalModel(historyMeta(), yearly, rows, nil)

	// web_development never earned anything and must not survive.
	if len(m.CategoryMix) != 2 {
		t.Fatalf("got %d category series, want 2", len(m.CategoryMix))
	}
	if m.CategoryMix[0].Category != core.CategoryWedding {
		t.Errorf("first series = %s, want wedding (largest total)", m.CategoryMix[0].Category)
	}
	for _, s := range m.CategoryMix {
		if len(s.Points) != 3 {
			t.Fatalf("series %s has %d points, want one per year", s.Category, len(s.Points))
		}
		for i, p := range s.Points {
			if p.Year != 2024+i {
				t.Errorf("series %s point %d year = %d, want %d", s.Category, i, p.Year, 2024+i)
			}
		}
	}
	// The spot series has a zero cell for 2024, not a missing one.
	spot := m.CategoryMix[1]
	if spot.Points[0].Revenue != 0 {
		t.Errorf("spot 2024 = %v, want 0", spot.Points[0].Revenue)
	}
}

func TestTopLifetimeClientsCapped(t *testing.T) {
	clients := []ClientLifetimeRow{
		{ClientID: "c1", Name: "A", Revenue: 100},
		{ClientID: "c2", Name: "B", Revenue: 600},
		{ClientID: "c3", Name: "C", Revenue: 300},
		{ClientID: "c4", Name: "D", Revenue: 400},
		{ClientID: "c5", Name: "E", Revenue: 500},
		{ClientID: "c6", Name: "F", Revenue: 200},
	}
	m := BuildHistoricalModel(historyMeta(), nil, nil, clients)

	if len(m.TopClients) != 5 {
		t.Fatalf("got %d clients, want 5", len(m.TopClients))
	}
	if m.TopClients[0].ClientID != "c2" {
		t.Errorf("top client = %s, want c2", m.TopClients[0].ClientID)
	}
	for _, c := range m.TopClients {
		if c.ClientID == "c1" {
			t.Error("smallest client survived the cap")
		}
	}
}

func TestHistoricalModelEmptiness(t *testing.T) {
	tests := []struct {
		name   string
		meta   HistoryMeta
		yearly []YearlyRevenueRow
		want   bool
	}{
		{
			name: "truly empty",
			meta: HistoryMeta{CurrentYear: 2026},
			want: true,
		},
		{
			name:   "current year activity only",
			meta:   HistoryMeta{CurrentYear: 2026},
			yearly: []YearlyRevenueRow{{Year: 2026, Revenue: 0, ServicesCount: 3}},
			want:   false,
		},
		{
			name:   "historical revenue",
			meta:   HistoryMeta{CurrentYear: 2026, FirstYear: 2024, LastYear: 2025},
			yearly: []YearlyRevenueRow{{Year: 2024, Revenue: 100, Closed: true}},
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := BuildHistoricalModel(tt.meta, tt.yearly, nil, nil)
			if m.IsEmpty != tt.want {
				t.Errorf("IsEmpty = %v, want %v", m.IsEmpty, tt.want)
			}
		})
	}
}

func TestHistoricalFlags(t *testing.T) {
	meta := historyMeta()
	meta.HasFutureServices = true
	yearly := []YearlyRevenueRow{
		{Year: 2025, Revenue: 8000, Closed: true},
		{Year: 2026, Revenue: 2000},
	}
	m := BuildHistoricalModel(meta, yearly, nil, nil)

	if !hasFlag(m.Flags, FlagYTDPartial) {
		t.Error("ytd_partial flag missing for an open current year")
	}
	if !hasFlag(m.Flags, FlagFutureServicesExcluded) {
		t.Error("future_services_excluded flag missing")
	}
}

func TestProjectionRedactsClients(t *testing.T) {
	yearly := []YearlyRevenueRow{
		{Year: 2024, Revenue: 6000, Closed: true},
		{Year: 2025, Revenue: 4000, Closed: true},
	}
	clients := []ClientLifetimeRow{
		{ClientID: "c1", Name: "Rossi SRL", Revenue: 5000},
		{ClientID: "c2", Name: "Bianchi", Revenue: 2500},
	}
	p := BuildHistoricalModel(historyMeta(), yearly, nil, clients).Projection()

	if len(p.TopClientShares) != 2 {
		t.Fatalf("got %d shares, want 2", len(p.TopClientShares))
	}
	if p.TopClientShares[0] != 50 || p.TopClientShares[1] != 25 {
		t.Errorf("shares = %v, want [50 25]", p.TopClientShares)
	}
	if p.CurrentYear != 2026 || p.LatestClosedYear != 2025 {
		t.Errorf("years = (%d, %d), want (2026, 2025)", p.CurrentYear, p.LatestClosedYear)
	}
}
