package format

import "testing"

func TestEuro(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want string
	}{
		{"zero", 0, "0,00 €"},
		{"cents", 12.3, "12,30 €"},
		{"thousands", 1234.5, "1.234,50 €"},
		{"millions", 1234567.89, "1.234.567,89 €"},
		{"negative", -850.25, "-850,25 €"},
		{"rounds up", 9.999, "10,00 €"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Euro(tt.in); got != tt.want {
				t.Errorf("Euro(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestPercent(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0%"},
		{57.4, "57%"},
		{57.5, "58%"},
		{100, "100%"},
		{-12.3, "-12%"},
	}
	for _, tt := range tests {
		if got := Percent(tt.in); got != tt.want {
			t.Errorf("Percent(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
