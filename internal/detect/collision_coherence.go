package detect

import (
	"fmt"

	"github.com/driftlab/driftline/internal/corpus"
	"github.com/driftlab/driftline/internal/models"
	"github.com/driftlab/driftline/internal/scoring"
)

// collisionCoherence flags collisions whose transitively linked models
// scatter too widely on transformation composite: a coherent collision
// story should not contain both near-certain and near-impossible
// models. Strict threshold on population standard deviation.
func (d *Detector) collisionCoherence(c *corpus.Corpus) []models.Tension {
	var out []models.Tension
	for _, col := range c.Collisions {
		ms := c.ModelsForCollision(col.ID)
		if len(ms) < d.cfg.CollisionMinModels {
			continue
		}

		comps := make([]float64, len(ms))
		lo, hi := ms[0], ms[0]
		for i, m := range ms {
			comps[i] = m.Transformation.Composite
			if m.Transformation.Composite < lo.Transformation.Composite {
				lo = m
			}
			if m.Transformation.Composite > hi.Transformation.Composite {
				hi = m
			}
		}
		sd := scoring.Round2(popStdDev(comps))
		if sd <= d.cfg.CollisionMaxStdDev {
			continue
		}

		out = append(out, models.Tension{
			Kind:      models.TensionCollisionCoherence,
			Magnitude: sd,
			Severity:  severityFor(sd, 25, 20),
			Entities:  append([]string{col.ID}, modelIDs(ms)...),
			Question: fmt.Sprintf(
				"Collision %q spans models from %.0f (%q) to %.0f (%q) transformation (stddev %.1f over %d) — do these models really share one collision story?",
				col.Name, lo.Transformation.Composite, lo.Name, hi.Transformation.Composite, hi.Name, sd, len(ms)),
			Metrics: map[string]float64{
				"stddev":      sd,
				"sample":      float64(len(ms)),
				"low_extreme": lo.Transformation.Composite,
				"high_extreme": hi.Transformation.Composite,
			},
			Labels: map[string]string{
				"low_extreme_model":  lo.ID,
				"high_extreme_model": hi.ID,
			},
		})
	}
	return out
}
