package detect

import (
	"fmt"

	"github.com/driftlab/driftline/internal/corpus"
	"github.com/driftlab/driftline/internal/models"
	"github.com/driftlab/driftline/internal/scoring"
)

// narrativeTopTier is the narrative category expected to come with open
// markets; the bottom two tiers are the "weak" band.
const narrativeTopTier = "dominant"

var narrativeWeakTiers = map[string]bool{"emerging": true, "fringe": true}

// narrativeOpportunity flags narratives whose strength diverges from
// the market opportunity of their linked models: a dominant narrative
// whose models face closed markets, or a weak narrative whose models
// somehow score wide open. At most one tension per narrative.
func (d *Detector) narrativeOpportunity(c *corpus.Corpus) []models.Tension {
	var out []models.Tension
	for _, n := range c.Narratives {
		ms := c.ModelsForNarrative(n.ID)
		if len(ms) < d.cfg.NarrativeMinModels {
			continue
		}

		var composites []float64
		closed := 0
		for _, m := range ms {
			composites = append(composites, m.Opportunity.Composite)
			if m.Opportunity.Category == scoring.OpportunityTiers[len(scoring.OpportunityTiers)-1].Name {
				closed++
			}
		}
		avg := scoring.Round2(mean(composites))
		closedFrac := float64(closed) / float64(len(ms))
		magnitude := scoring.Round2(abs(n.Scores.Composite - avg))

		switch {
		case n.Scores.Category == narrativeTopTier &&
			(avg < d.cfg.TopNarrativeMinAvgOpportunity || closedFrac > d.cfg.TopNarrativeMaxClosedFraction):
			out = append(out, models.Tension{
				Kind:      models.TensionNarrativeOpportunity,
				Direction: models.DirStrongNarrativeClosedMarket,
				Magnitude: magnitude,
				Severity:  severityFor(magnitude, 30, 15),
				Entities:  append([]string{n.ID}, modelIDs(ms)...),
				Question: fmt.Sprintf(
					"Narrative %q scores %s (%.0f) yet its %d models average only %.0f opportunity — is the market actually addressable?",
					n.Name, n.Scores.Category, n.Scores.Composite, len(ms), avg),
				Metrics: map[string]float64{
					"narrative_composite": n.Scores.Composite,
					"avg_opportunity":     avg,
					"closed_fraction":     scoring.Round2(closedFrac),
					"model_count":         float64(len(ms)),
				},
			})

		case narrativeWeakTiers[n.Scores.Category] && avg >= d.cfg.WeakNarrativeMaxAvgOpportunity:
			out = append(out, models.Tension{
				Kind:      models.TensionNarrativeOpportunity,
				Direction: models.DirWeakNarrativeOpenMarket,
				Magnitude: magnitude,
				Severity:  severityFor(magnitude, 30, 15),
				Entities:  append([]string{n.ID}, modelIDs(ms)...),
				Question: fmt.Sprintf(
					"Narrative %q scores only %s (%.0f) yet its models average %.0f opportunity — is the narrative underrated or the openness overstated?",
					n.Name, n.Scores.Category, n.Scores.Composite, avg),
				Metrics: map[string]float64{
					"narrative_composite": n.Scores.Composite,
					"avg_opportunity":     avg,
					"model_count":         float64(len(ms)),
				},
			})
		}
	}
	return out
}

func modelIDs(ms []*models.Model) []string {
	ids := make([]string, len(ms))
	for i, m := range ms {
		ids[i] = m.ID
	}
	return ids
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
