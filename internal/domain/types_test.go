package domain

import (
	"testing"
)

func TestConditionOrder(t *testing.T) {
	got := Conditions()
	want := []Condition{Preeclampsia, GestationalDiabetes, PretermBirth}

	if len(got) != len(want) {
		t.Fatalf("Expected %d conditions, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Position %d: expected %s, got %s", i, want[i], got[i])
		}
		if !got[i].IsValid() {
			t.Errorf("Condition %s should be valid", got[i])
		}
	}

	if Condition("eclampsia").IsValid() {
		t.Error("Unknown condition should be invalid")
	}
}

func TestRiskLevelRank(t *testing.T) {
	tests := []struct {
		name     string
		level    RiskLevel
		rank     int
		alerting bool
	}{
		{"Low", RiskLow, 0, false},
		{"Moderate", RiskModerate, 1, false},
		{"High", RiskHigh, 2, true},
		{"Critical", RiskCritical, 3, true},
		{"Unknown", RiskLevel("severe"), -1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.level.Rank() != tt.rank {
				t.Errorf("Expected rank %d, got %d", tt.rank, tt.level.Rank())
			}
			if tt.level.IsValid() != (tt.rank >= 0) {
				t.Errorf("IsValid mismatch for %s", tt.level)
			}
			if tt.level.RequiresAlert() != tt.alerting {
				t.Errorf("RequiresAlert mismatch for %s", tt.level)
			}
		})
	}

	levels := RiskLevels()
	for i := 1; i < len(levels); i++ {
		if levels[i-1].Rank() >= levels[i].Rank() {
			t.Errorf("RiskLevels not ascending at %d", i)
		}
	}
}

func TestEnumValidity(t *testing.T) {
	for _, tr := range []Trend{TrendImproving, TrendStable, TrendWorsening} {
		if !tr.IsValid() {
			t.Errorf("Trend %s should be valid", tr)
		}
	}
	if Trend("volatile").IsValid() {
		t.Error("Unknown trend should be invalid")
	}

	for _, p := range []Priority{PriorityLow, PriorityMedium, PriorityHigh} {
		if !p.IsValid() {
			t.Errorf("Priority %s should be valid", p)
		}
	}
	if Priority("urgent").IsValid() {
		t.Error("Unknown priority should be invalid")
	}

	for _, e := range []EvidenceLevel{EvidenceA, EvidenceB, EvidenceC} {
		if !e.IsValid() {
			t.Errorf("Evidence level %s should be valid", e)
		}
	}
	if EvidenceLevel("D").IsValid() {
		t.Error("Unknown evidence level should be invalid")
	}
}
