package propagate

import (
	"fmt"
	"testing"

	"github.com/driftlab/driftline/internal/corpus"
	"github.com/driftlab/driftline/internal/models"
)

func TestPhaseTimingSkipsManualModels(t *testing.T) {
	n := testNarrative("n1", models.PhaseAccelerating)
	m := link(testModel("m1", 4, 5, 5), n.ID)
	m.Provenance = models.ProvenanceManual
	c := corpus.New([]*models.Model{m}, []*models.Narrative{n}, nil)

	if got := (phaseTiming{damping: phaseTimingDamping}).Propose(c); len(got) != 0 {
		t.Fatalf("proposals = %d, want none for manually-scored models", len(got))
	}
}

func TestPhaseTimingPreDisruptionPullsDown(t *testing.T) {
	n := testNarrative("n1", models.PhasePreDisruption)
	m := link(testModel("m1", 9, 5, 5), n.ID)
	c := corpus.New([]*models.Model{m}, []*models.Narrative{n}, nil)

	got := (phaseTiming{damping: phaseTimingDamping}).Propose(c)
	if len(got) != 1 {
		t.Fatalf("proposals = %d, want 1", len(got))
	}
	if !approx(got[0].Delta, phaseTimingDamping*(phaseTimingAnchor-9)) {
		t.Errorf("delta = %v, want damped pull toward %v", got[0].Delta, phaseTimingAnchor)
	}
	if got[0].Delta >= 0 {
		t.Errorf("delta = %v, want negative", got[0].Delta)
	}
}

func TestEvidenceStrengthDirections(t *testing.T) {
	cases := []struct {
		name    string
		retAxis float64
		want    float64
	}{
		{"strong returns bump ES", 8, evidenceStrengthDamping * evidenceStrengthStep},
		{"weak returns decrement ES", 3, -evidenceStrengthDamping * evidenceStrengthStep},
		{"neutral band holds", 5, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			n := testNarrative("n1", models.PhasePeak)
			var ms []*models.Model
			for i := 0; i < 3; i++ {
				ms = append(ms, link(testModel(fmt.Sprintf("m%d", i+1), 5, 5, tc.retAxis), n.ID))
			}
			c := corpus.New(ms, []*models.Narrative{n}, nil)

			got := (evidenceStrength{damping: evidenceStrengthDamping}).Propose(c)
			if tc.want == 0 {
				if len(got) != 0 {
					t.Fatalf("proposals = %d, want none in the neutral band", len(got))
				}
				return
			}
			if len(got) != 1 {
				t.Fatalf("proposals = %d, want 1", len(got))
			}
			if !approx(got[0].Delta, tc.want) {
				t.Errorf("delta = %v, want %v", got[0].Delta, tc.want)
			}
			if got[0].EntityID != "n1" || got[0].Axis != "ES" {
				t.Errorf("target = %s.%s, want n1.ES", got[0].EntityID, got[0].Axis)
			}
		})
	}
}

func TestEvidenceStrengthBelowMinSample(t *testing.T) {
	n := testNarrative("n1", models.PhasePeak)
	ms := []*models.Model{
		link(testModel("m1", 5, 5, 8), n.ID),
		link(testModel("m2", 5, 5, 8), n.ID),
	}
	c := corpus.New(ms, []*models.Narrative{n}, nil)

	if got := (evidenceStrength{damping: evidenceStrengthDamping}).Propose(c); len(got) != 0 {
		t.Fatalf("proposals = %d, want none below min sample", len(got))
	}
}

func TestMoatChallenge(t *testing.T) {
	overconfident := testModel("m1", 5, 5, 5)
	overconfident.Opportunity.MA = 8
	overconfident.Return.ROI = 1.5
	overconfident.Recompute()

	dismissed := testModel("m2", 5, 5, 5)
	dismissed.Opportunity.MA = 3
	dismissed.Return.ROI = 12
	dismissed.Recompute()

	noEstimate := testModel("m3", 5, 5, 5)
	noEstimate.Opportunity.MA = 8 // ROI zero: skipped, not an error

	c := corpus.New([]*models.Model{overconfident, dismissed, noEstimate}, nil, nil)

	got := (moatChallenge{damping: moatDamping}).Propose(c)
	if len(got) != 2 {
		t.Fatalf("proposals = %d, want 2", len(got))
	}
	byID := map[string]Adjustment{}
	for _, a := range got {
		byID[a.EntityID] = a
	}
	if d := byID["m1"].Delta; !approx(d, moatDamping*(moatDownAnchor-8)) {
		t.Errorf("m1 delta = %v, want damped pull toward %v", d, moatDownAnchor)
	}
	if d := byID["m2"].Delta; !approx(d, moatDamping*(moatUpAnchor-3)) {
		t.Errorf("m2 delta = %v, want damped lift toward %v", d, moatUpAnchor)
	}
	if _, ok := byID["m3"]; ok {
		t.Error("model without ROI estimate must be skipped")
	}
}

func TestArchSpreadNeedsCorroboration(t *testing.T) {
	n1, n2 := testNarrative("n1", models.PhasePeak), testNarrative("n2", models.PhasePeak)
	best := []*models.Model{
		link(testModel("b1", 5, 8, 5), n1.ID),
		link(testModel("b2", 5, 8, 5), n1.ID),
	}
	worst := link(testModel("w1", 5, 5, 5), n2.ID)
	c := corpus.New(append(best, worst), []*models.Narrative{n1, n2}, nil)

	// Two corroborating models are not enough.
	if got := (archSpread{damping: archSpreadDamping}).Propose(c); len(got) != 0 {
		t.Fatalf("proposals = %d, want none below corroboration minimum", len(got))
	}

	b3 := link(testModel("b3", 5, 8, 5), n1.ID)
	c = corpus.New(append(append([]*models.Model{}, best...), b3, worst), []*models.Narrative{n1, n2}, nil)

	got := (archSpread{damping: archSpreadDamping}).Propose(c)
	if len(got) != 1 {
		t.Fatalf("proposals = %d, want 1 for the worst-narrative model", len(got))
	}
	a := got[0]
	if a.EntityID != "w1" || a.Axis != "MO" {
		t.Errorf("target = %s.%s, want w1.MO", a.EntityID, a.Axis)
	}
	// Spread 30 caps the raw signal at 2.0 before damping.
	if !approx(a.Delta, archSpreadDamping*archRawDeltaCap) {
		t.Errorf("delta = %v, want %v", a.Delta, archSpreadDamping*archRawDeltaCap)
	}
}

func TestAdvisoriesNeverMutate(t *testing.T) {
	var ms []*models.Model
	for i := 0; i < 20; i++ {
		m := testModel(fmt.Sprintf("m%d", i+1), 7, 5, 5)
		m.Forces = []models.Force{"ai"}
		ms = append(ms, m)
	}
	c := corpus.New(ms, nil, nil)
	before := ms[0].Transformation.Composite

	got := Advisories(c)
	if len(got) != 1 {
		t.Fatalf("advisories = %d, want 1", len(got))
	}
	a := got[0]
	if a.Force != "artificial_intelligence" || a.Signal != SignalForceConfirmed {
		t.Errorf("advisory = %+v, want ai confirmed", a)
	}
	if a.Models != 20 || a.AvgT != 70 {
		t.Errorf("advisory stats = %+v", a)
	}
	if ms[0].Transformation.Composite != before {
		t.Error("advisory computation mutated a score")
	}
}

func TestAdvisoriesWeakeningAndQuietBands(t *testing.T) {
	var ms []*models.Model
	for i := 0; i < 20; i++ {
		m := testModel(fmt.Sprintf("w%d", i+1), 4, 5, 5)
		m.Forces = []models.Force{"climate"}
		ms = append(ms, m)
	}
	for i := 0; i < 20; i++ {
		m := testModel(fmt.Sprintf("q%d", i+1), 5.5, 5, 5)
		m.Forces = []models.Force{"energy"}
		ms = append(ms, m)
	}
	c := corpus.New(ms, nil, nil)

	got := Advisories(c)
	if len(got) != 1 {
		t.Fatalf("advisories = %d, want only the weakening force", len(got))
	}
	if got[0].Force != "climate_transition" || got[0].Signal != SignalForceWeakening {
		t.Errorf("advisory = %+v", got[0])
	}
}

func TestRulesWithFillsZeroFieldsFromDefaults(t *testing.T) {
	rules := RulesWith(Dampings{EvidenceStrength: 0.5})

	pt, ok := rules[0].(phaseTiming)
	if !ok {
		t.Fatalf("rules[0] = %T, want phaseTiming", rules[0])
	}
	if pt.damping != phaseTimingDamping {
		t.Errorf("phase timing damping = %v, want default %v", pt.damping, phaseTimingDamping)
	}
	es, ok := rules[1].(evidenceStrength)
	if !ok {
		t.Fatalf("rules[1] = %T, want evidenceStrength", rules[1])
	}
	if es.damping != 0.5 {
		t.Errorf("evidence strength damping = %v, want 0.5", es.damping)
	}
}

func TestConfiguredDampingScalesDeltas(t *testing.T) {
	n := testNarrative("n1", models.PhasePeak)
	var ms []*models.Model
	for i := 0; i < 3; i++ {
		ms = append(ms, link(testModel(fmt.Sprintf("m%d", i+1), 5, 5, 8), n.ID))
	}
	c := corpus.New(ms, []*models.Narrative{n}, nil)

	got := (evidenceStrength{damping: 0.5}).Propose(c)
	if len(got) != 1 {
		t.Fatalf("proposals = %d, want 1", len(got))
	}
	if !approx(got[0].Delta, 0.5*evidenceStrengthStep) {
		t.Errorf("delta = %v, want %v", got[0].Delta, 0.5*evidenceStrengthStep)
	}
}
