package detect

import (
	"fmt"

	"github.com/driftlab/driftline/internal/corpus"
	"github.com/driftlab/driftline/internal/models"
	"github.com/driftlab/driftline/internal/scoring"
)

// roleScoreParadox flags narratives where the supporting infrastructure
// (role whats_needed) out-scores the product it exists to support
// (role what_works) by more than the paradox gap. Strict comparison;
// each role has its own minimum sample.
func (d *Detector) roleScoreParadox(c *corpus.Corpus) []models.Tension {
	var out []models.Tension
	for _, n := range c.Narratives {
		var needed, works []float64
		var neededIDs, workIDs []string
		for _, m := range c.ModelsForNarrative(n.ID) {
			for _, link := range m.Narratives {
				if link.NarrativeID != n.ID {
					continue
				}
				switch link.Role {
				case models.RoleWhatsNeeded:
					needed = append(needed, m.Transformation.Composite)
					neededIDs = append(neededIDs, m.ID)
				case models.RoleWhatWorks:
					works = append(works, m.Transformation.Composite)
					workIDs = append(workIDs, m.ID)
				}
			}
		}
		if len(needed) < d.cfg.RoleNeededMin || len(works) < d.cfg.RoleWorksMin {
			continue
		}

		neededAvg := mean(needed)
		worksAvg := mean(works)
		gap := scoring.Round2(neededAvg - worksAvg)
		if gap <= d.cfg.RoleParadoxGap {
			continue
		}

		out = append(out, models.Tension{
			Kind:      models.TensionRoleScoreParadox,
			Magnitude: gap,
			Severity:  severityFor(gap, 10, 5),
			Entities:  append(append([]string{n.ID}, neededIDs...), workIDs...),
			Question: fmt.Sprintf(
				"In narrative %q the needed infrastructure averages %.1f transformation vs %.1f for the products it supports — is the infrastructure the real story, or are the products under-scored?",
				n.Name, neededAvg, worksAvg),
			Metrics: map[string]float64{
				"needed_avg":   scoring.Round2(neededAvg),
				"works_avg":    scoring.Round2(worksAvg),
				"needed_count": float64(len(needed)),
				"works_count":  float64(len(works)),
			},
		})
	}
	return out
}
