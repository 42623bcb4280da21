package scoring

import (
	"math"
	"testing"
)

func TestComposite_WeightedSum(t *testing.T) {
	scores := map[string]float64{"SN": 10, "FA": 10, "EC": 10, "TG": 10, "CE": 10}
	got := Composite(scores, TransformationWeights)
	if got != 100 {
		t.Errorf("all-10 composite = %v, want 100", got)
	}

	scores = map[string]float64{"SN": 1, "FA": 1, "EC": 1, "TG": 1, "CE": 1}
	got = Composite(scores, TransformationWeights)
	if got != 10 {
		t.Errorf("all-1 composite = %v, want 10", got)
	}
}

func TestComposite_Rounding(t *testing.T) {
	// 3.33 on every axis: sum = 3.33*100 = 333, /10 = 33.3
	scores := map[string]float64{"MO": 3.33, "MA": 3.33, "VD": 3.33, "DV": 3.33}
	got := Composite(scores, OpportunityWeights)
	if got != 33.3 {
		t.Errorf("composite = %v, want 33.3", got)
	}
}

func TestComposite_UnevenWeights(t *testing.T) {
	// MO=8*30 + MA=4*30 + VD=6*20 + DV=2*20 = 240+120+120+40 = 520 -> 52
	scores := map[string]float64{"MO": 8, "MA": 4, "VD": 6, "DV": 2}
	got := Composite(scores, OpportunityWeights)
	if got != 52 {
		t.Errorf("composite = %v, want 52", got)
	}
}

func TestWeightTables_SumTo100(t *testing.T) {
	tables := map[string]map[string]float64{
		"transformation": TransformationWeights,
		"opportunity":    OpportunityWeights,
		"return":         ReturnWeights,
		"narrative":      NarrativeWeights,
	}
	for name, table := range tables {
		var sum float64
		for _, w := range table {
			sum += w
		}
		if sum != 100 {
			t.Errorf("%s weights sum to %v, want 100", name, sum)
		}
	}
}

func TestCategory_Boundaries(t *testing.T) {
	tests := []struct {
		composite float64
		tiers     []Tier
		want      string
	}{
		{75, ReturnTiers, "fund_returner"}, // inclusive lower bound
		{74.99, ReturnTiers, "outsized"},
		{60, ReturnTiers, "outsized"},
		{45, OpportunityTiers, "contested"},
		{29.99, OpportunityTiers, "closed"},
		{80, NarrativeTiers, "dominant"},
		{79.99, NarrativeTiers, "powerful"},
		{35, NarrativeTiers, "emerging"},
		{10, NarrativeTiers, "fringe"},
	}
	for _, tt := range tests {
		if got := Category(tt.composite, tt.tiers); got != tt.want {
			t.Errorf("Category(%v) = %q, want %q", tt.composite, got, tt.want)
		}
	}
}

func TestCategory_NonOverlapping(t *testing.T) {
	// Every composite on the full range maps to exactly one tier.
	for c := 0.0; c <= 100.0; c += 0.5 {
		name := Category(c, OpportunityTiers)
		if name == "" {
			t.Fatalf("Category(%v) returned empty tier", c)
		}
	}
}

func TestClamp(t *testing.T) {
	tests := []struct{ in, want float64 }{
		{0, 1}, {-5, 1}, {1, 1}, {5.5, 5.5}, {10, 10}, {11.2, 10},
	}
	for _, tt := range tests {
		if got := Clamp(tt.in); got != tt.want {
			t.Errorf("Clamp(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestBacksolveAxis_RecoversTarget(t *testing.T) {
	scores := map[string]float64{"MO": 8, "MA": 4, "VD": 6, "DV": 2}
	// Pull MA so that composite hits 48 instead of 52.
	v, err := BacksolveAxis(scores, OpportunityWeights, "MA", 48)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	scores["MA"] = v
	got := Composite(scores, OpportunityWeights)
	if math.Abs(got-48) > 0.05 {
		t.Errorf("composite after backsolve = %v, want ~48", got)
	}
}

func TestBacksolveAxis_ClampsToAxisRange(t *testing.T) {
	scores := map[string]float64{"MO": 2, "MA": 2, "VD": 2, "DV": 2}
	// Target 100 is unreachable by moving MA alone; result clamps at 10.
	v, err := BacksolveAxis(scores, OpportunityWeights, "MA", 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 10 {
		t.Errorf("backsolved axis = %v, want clamped 10", v)
	}
}

func TestBacksolveAxis_UnknownAxis(t *testing.T) {
	if _, err := BacksolveAxis(map[string]float64{}, OpportunityWeights, "XX", 50); err == nil {
		t.Error("expected error for unknown axis")
	}
}
