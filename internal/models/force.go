package models

import "strings"

// Force is the canonical identifier for a macro force. Upstream data
// carries a mix of short and long spellings; ParseForce is the single
// normalization point used at every ingestion boundary.
type Force string

// forceAliases maps known short spellings onto canonical identifiers.
var forceAliases = map[string]Force{
	"ai":           "artificial_intelligence",
	"climate":      "climate_transition",
	"demographics": "demographic_shift",
	"energy":       "energy_transition",
	"compute":      "compute_cost_collapse",
	"capital":      "capital_abundance",
	"bio":          "biotech_acceleration",
	"deglobal":     "deglobalization",
}

// ParseForce normalizes a raw force tag to its canonical form:
// lowercased, whitespace and hyphens folded to underscores, short
// spellings resolved through the alias table.
func ParseForce(raw string) Force {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, "-", "_")
	if canonical, ok := forceAliases[s]; ok {
		return canonical
	}
	return Force(s)
}

func (f Force) String() string { return string(f) }
