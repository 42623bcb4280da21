package models

import "testing"

func TestParseForce_Aliases(t *testing.T) {
	tests := []struct {
		in   string
		want Force
	}{
		{"ai", "artificial_intelligence"},
		{"AI", "artificial_intelligence"},
		{"artificial_intelligence", "artificial_intelligence"},
		{"artificial intelligence", "artificial_intelligence"},
		{"Artificial-Intelligence", "artificial_intelligence"},
		{"climate", "climate_transition"},
		{"climate_transition", "climate_transition"},
		{"  energy ", "energy_transition"},
		{"compute", "compute_cost_collapse"},
	}
	for _, tt := range tests {
		if got := ParseForce(tt.in); got != tt.want {
			t.Errorf("ParseForce(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseForce_UnknownPassesThroughNormalized(t *testing.T) {
	if got := ParseForce("Quantum Leap"); got != "quantum_leap" {
		t.Errorf("ParseForce(unknown) = %q, want quantum_leap", got)
	}
}

func TestParseForce_ShortAndLongSpellingsConverge(t *testing.T) {
	pairs := [][2]string{
		{"ai", "artificial intelligence"},
		{"climate", "Climate-Transition"},
		{"demographics", "demographic shift"},
		{"bio", "biotech acceleration"},
	}
	for _, p := range pairs {
		if ParseForce(p[0]) != ParseForce(p[1]) {
			t.Errorf("spellings %q and %q normalize differently: %q vs %q",
				p[0], p[1], ParseForce(p[0]), ParseForce(p[1]))
		}
	}
}
