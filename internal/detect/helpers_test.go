package detect

import (
	"fmt"
	"testing"

	"github.com/driftlab/driftline/internal/corpus"
	"github.com/driftlab/driftline/internal/models"
)

// newModel builds a model whose composites land exactly on the given
// values by setting every axis uniformly (axis = composite/10).
func newModel(id string, tComp, oppComp, retComp float64) *models.Model {
	t, o, r := tComp/10, oppComp/10, retComp/10
	m := &models.Model{
		ID:           id,
		Name:         id,
		Architecture: "agent",
		Sector:       "software",
		Transformation: models.TransformationScores{SN: t, FA: t, EC: t, TG: t, CE: t},
		Opportunity:    models.OpportunityScores{MO: o, MA: o, VD: o, DV: o},
		Return:         models.ReturnScores{MKT: r, CAP: r, ECO: r, VEL: r, MOA: r},
		Provenance:     models.ProvenanceHeuristic,
	}
	m.Recompute()
	return m
}

// linkModel attaches a narrative link with the given role.
func linkModel(m *models.Model, narrID string, role models.NarrativeRole) *models.Model {
	m.Narratives = append(m.Narratives, models.NarrativeLink{NarrativeID: narrID, Role: role})
	return m
}

// newNarrative builds a narrative whose composite lands exactly on the
// given value.
func newNarrative(id string, composite float64) *models.Narrative {
	v := composite / 10
	n := &models.Narrative{
		ID:         id,
		Name:       id,
		Scores:     models.NarrativeScores{EM: v, FC: v, ES: v, TC: v, IR: v},
		Phase:      models.PhaseAccelerating,
		Provenance: models.ProvenanceHeuristic,
	}
	n.Scores.Recompute()
	return n
}

// tensionsOfKind filters a report down to one kind.
func tensionsOfKind(r Report, kind models.TensionKind) []models.Tension {
	var out []models.Tension
	for _, t := range r.Tensions {
		if t.Kind == kind {
			out = append(out, t)
		}
	}
	return out
}

// buildCorpus assembles and indexes a corpus for a scanner test.
func buildCorpus(t *testing.T, ms []*models.Model, ns []*models.Narrative, cs []*models.Collision) *corpus.Corpus {
	t.Helper()
	return corpus.New(ms, ns, cs)
}

// narrativeWithModels wires count models (opportunity composite oppComp)
// into a fresh narrative of the given composite.
func narrativeWithModels(narrComp float64, count int, oppComp float64) ([]*models.Model, *models.Narrative) {
	n := newNarrative("n1", narrComp)
	ms := make([]*models.Model, count)
	for i := range ms {
		ms[i] = linkModel(newModel(fmt.Sprintf("m%d", i+1), 50, oppComp, 50), n.ID, models.RoleWhatWorks)
	}
	return ms, n
}
