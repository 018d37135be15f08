package google

import (
	"context"
	"testing"

	"gestionale/internal/export"
)

func TestSheetName(t *testing.T) {
	tests := []struct {
		base  string
		model string
		year  int
		want  string
	}{
		{"Report", "annual", 2026, "Report annual 2026"},
		{"Gestionale", "historical", 2025, "Gestionale historical 2025"},
	}
	for _, tt := range tests {
		if got := sheetName(tt.base, tt.model, tt.year); got != tt.want {
			t.Errorf("sheetName(%q, %q, %d) = %q, want %q", tt.base, tt.model, tt.year, got, tt.want)
		}
	}
}

func TestReportValues(t *testing.T) {
	r := export.Report{
		Header: []string{"section", "key", "value", "detail"},
		Rows: [][]any{
			{"kpi", "total_revenue", 1400.0, ""},
			{"month", "2026-01", 900.0, 1},
		},
	}

	values := reportValues(r)

	if len(values) != 3 {
		t.Fatalf("got %d value rows, want 3 (header + 2)", len(values))
	}
	if values[0][0] != "section" {
		t.Errorf("header row = %v", values[0])
	}
	if values[2][1] != "2026-01" {
		t.Errorf("data row = %v", values[2])
	}
}

func TestNewRequiresSpreadsheetID(t *testing.T) {
	if _, err := New(context.Background(), Options{}); err == nil {
		t.Fatal("expected error for missing spreadsheet ID")
	}
}
