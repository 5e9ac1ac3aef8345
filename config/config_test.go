package config

import (
	"testing"
	"time"
)

func TestParseDomainBudgets(t *testing.T) {
	got := parseDomainBudgets("www.property24.com=1:8000:15000, api.example.com=4:500:1500")

	if len(got) != 2 {
		t.Fatalf("parsed %d budgets; want 2", len(got))
	}
	grid := got["www.property24.com"]
	if grid.MaxConcurrent != 1 || grid.DelayMin != 8*time.Second || grid.DelayMax != 15*time.Second {
		t.Errorf("property24 budget = %+v", grid)
	}
	api := got["api.example.com"]
	if api.MaxConcurrent != 4 || api.DelayMin != 500*time.Millisecond || api.DelayMax != 1500*time.Millisecond {
		t.Errorf("api budget = %+v", api)
	}
}

func TestParseDomainBudgetsSkipsMalformed(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want int
	}{
		{"empty", "", 0},
		{"missing value", "example.com", 0},
		{"wrong arity", "example.com=1:2000", 0},
		{"non-numeric", "example.com=fast:1:2", 0},
		{"zero concurrency", "example.com=0:1000:2000", 0},
		{"good among bad", "bad,example.com=2:1000:2000", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseDomainBudgets(tt.in)
			if len(got) != tt.want {
				t.Errorf("parseDomainBudgets(%q) kept %d entries; want %d", tt.in, len(got), tt.want)
			}
		})
	}
}
