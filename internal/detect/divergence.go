package detect

import (
	"fmt"

	"github.com/driftlab/driftline/internal/corpus"
	"github.com/driftlab/driftline/internal/models"
	"github.com/driftlab/driftline/internal/scoring"
)

// transformationOpportunity flags models whose transformation and
// opportunity composites disagree by more than the gap threshold
// (strict): transformation near-certain but the market door closed, or
// the market wide open while the transformation case is weak.
func (d *Detector) transformationOpportunity(c *corpus.Corpus) []models.Tension {
	var out []models.Tension
	for _, m := range c.Models {
		gap := scoring.Round2(abs(m.Transformation.Composite - m.Opportunity.Composite))
		if gap <= d.cfg.TransformationOpportunityGap {
			continue
		}

		var dir models.TensionDirection
		var question string
		if m.Transformation.Composite > m.Opportunity.Composite {
			dir = models.DirTransformationCertainDoorClosed
			question = fmt.Sprintf(
				"Model %q is near-certain on transformation (%.0f) but the opportunity door reads closed (%.0f) — is entry genuinely blocked, or is the opportunity pass stale?",
				m.Name, m.Transformation.Composite, m.Opportunity.Composite)
		} else {
			dir = models.DirMarketOpenTransformationUncertain
			question = fmt.Sprintf(
				"Model %q faces an open market (%.0f) while its transformation case is weak (%.0f) — what would make the transformation thesis concrete?",
				m.Name, m.Opportunity.Composite, m.Transformation.Composite)
		}

		out = append(out, models.Tension{
			Kind:      models.TensionTransformationOpportunity,
			Direction: dir,
			Magnitude: gap,
			Severity:  severityFor(gap, 50, 40),
			Entities:  []string{m.ID},
			Question:  question,
			Metrics: map[string]float64{
				"transformation_composite": m.Transformation.Composite,
				"opportunity_composite":    m.Opportunity.Composite,
			},
		})
	}
	return out
}
