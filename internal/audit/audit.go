// Package audit validates score integrity: every axis in range and
// every composite/category consistent with its axes. It runs as the
// propagator's post-pass and standalone against any persisted corpus.
package audit

import (
	"fmt"
	"sort"

	"github.com/driftlab/driftline/internal/corpus"
	"github.com/driftlab/driftline/internal/models"
	"github.com/driftlab/driftline/internal/scoring"
)

// Violation is one integrity finding. Violations are reported, never
// raised as errors; a violation after propagation indicates a rule
// defect rather than a data defect.
type Violation struct {
	EntityKind string  `json:"entity_kind"`
	EntityID   string  `json:"entity_id"`
	System     string  `json:"system"`
	Field      string  `json:"field"`
	Value      float64 `json:"value"`
	Expected   float64 `json:"expected,omitempty"`
	Detail     string  `json:"detail"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s %s %s.%s: %s", v.EntityKind, v.EntityID, v.System, v.Field, v.Detail)
}

// Report is the standalone audit output document.
type Report struct {
	CycleID    string      `json:"cycle_id"`
	Entities   int         `json:"entities"`
	Violations []Violation `json:"violations"`
	Clean      bool        `json:"clean"`
}

// CheckBounds scans every axis of every entity for values outside
// [1,10].
func CheckBounds(c *corpus.Corpus) []Violation {
	var out []Violation
	for _, m := range c.Models {
		out = append(out, boundsOf("model", m.ID, string(models.SystemTransformation), m.Transformation.AxisMap())...)
		out = append(out, boundsOf("model", m.ID, string(models.SystemOpportunity), m.Opportunity.AxisMap())...)
		out = append(out, boundsOf("model", m.ID, string(models.SystemReturn), m.Return.AxisMap())...)
	}
	for _, n := range c.Narratives {
		out = append(out, boundsOf("narrative", n.ID, string(models.SystemNarrative), n.Scores.AxisMap())...)
	}
	return out
}

func boundsOf(kind, id, system string, axes map[string]float64) []Violation {
	var out []Violation
	for _, name := range sortedKeys(axes) {
		v := axes[name]
		if v < scoring.AxisMin || v > scoring.AxisMax {
			out = append(out, Violation{
				EntityKind: kind, EntityID: id, System: system, Field: name, Value: v,
				Detail: fmt.Sprintf("axis %.4f outside [%v,%v]", v, scoring.AxisMin, scoring.AxisMax),
			})
		}
	}
	return out
}

// CheckComposites verifies every stored composite and category against
// the deterministic formulas.
func CheckComposites(c *corpus.Corpus) []Violation {
	var out []Violation
	for _, m := range c.Models {
		out = append(out, compositeOf("model", m.ID, string(models.SystemTransformation),
			m.Transformation.Composite, "", scoring.Composite(m.Transformation.AxisMap(), scoring.TransformationWeights), "")...)
		out = append(out, compositeOf("model", m.ID, string(models.SystemOpportunity),
			m.Opportunity.Composite, m.Opportunity.Category,
			scoring.Composite(m.Opportunity.AxisMap(), scoring.OpportunityWeights),
			scoring.Category(scoring.Composite(m.Opportunity.AxisMap(), scoring.OpportunityWeights), scoring.OpportunityTiers))...)
		out = append(out, compositeOf("model", m.ID, string(models.SystemReturn),
			m.Return.Composite, m.Return.Category,
			scoring.Composite(m.Return.AxisMap(), scoring.ReturnWeights),
			scoring.Category(scoring.Composite(m.Return.AxisMap(), scoring.ReturnWeights), scoring.ReturnTiers))...)
	}
	for _, n := range c.Narratives {
		want := scoring.Composite(n.Scores.AxisMap(), scoring.NarrativeWeights)
		out = append(out, compositeOf("narrative", n.ID, string(models.SystemNarrative),
			n.Scores.Composite, n.Scores.Category, want, scoring.Category(want, scoring.NarrativeTiers))...)
	}
	return out
}

func compositeOf(kind, id, system string, gotComp float64, gotCat string, wantComp float64, wantCat string) []Violation {
	var out []Violation
	if gotComp != wantComp {
		out = append(out, Violation{
			EntityKind: kind, EntityID: id, System: system, Field: "composite",
			Value: gotComp, Expected: wantComp,
			Detail: fmt.Sprintf("stored composite %.2f, formula yields %.2f", gotComp, wantComp),
		})
	}
	if wantCat != "" && gotCat != wantCat {
		out = append(out, Violation{
			EntityKind: kind, EntityID: id, System: system, Field: "category",
			Value: gotComp,
			Detail: fmt.Sprintf("stored category %q, threshold table yields %q", gotCat, wantCat),
		})
	}
	return out
}

// Run performs the full integrity scan and assembles the report.
func Run(c *corpus.Corpus, cycleID string) Report {
	violations := CheckBounds(c)
	violations = append(violations, CheckComposites(c)...)
	return Report{
		CycleID:    cycleID,
		Entities:   len(c.Models) + len(c.Narratives),
		Violations: violations,
		Clean:      len(violations) == 0,
	}
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
