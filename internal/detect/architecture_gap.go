package detect

import (
	"fmt"
	"sort"

	"github.com/driftlab/driftline/internal/corpus"
	"github.com/driftlab/driftline/internal/models"
	"github.com/driftlab/driftline/internal/scoring"
)

// architectureGap flags architectures whose opportunity scoring differs
// sharply between narratives: the same architecture averaging high in
// one narrative and low in another suggests one of the two passes is
// wrong. Requires the architecture in at least two narratives; the
// spread threshold is inclusive.
func (d *Detector) architectureGap(c *corpus.Corpus) []models.Tension {
	// architecture -> narrative -> models of that architecture
	byArch := make(map[string]map[string][]*models.Model)
	for _, m := range c.Models {
		if m.Architecture == "" {
			continue
		}
		for _, link := range m.Narratives {
			if c.Narrative(link.NarrativeID) == nil {
				continue
			}
			if byArch[m.Architecture] == nil {
				byArch[m.Architecture] = make(map[string][]*models.Model)
			}
			byArch[m.Architecture][link.NarrativeID] = append(byArch[m.Architecture][link.NarrativeID], m)
		}
	}

	archs := make([]string, 0, len(byArch))
	for a := range byArch {
		archs = append(archs, a)
	}
	sort.Strings(archs)

	var out []models.Tension
	for _, arch := range archs {
		perNarr := byArch[arch]
		if len(perNarr) < 2 {
			continue
		}

		type narrAvg struct {
			id  string
			avg float64
			n   int
		}
		var avgs []narrAvg
		for nid, ms := range perNarr {
			var comps []float64
			for _, m := range ms {
				comps = append(comps, m.Opportunity.Composite)
			}
			avgs = append(avgs, narrAvg{id: nid, avg: mean(comps), n: len(ms)})
		}
		sort.Slice(avgs, func(i, j int) bool {
			if avgs[i].avg != avgs[j].avg {
				return avgs[i].avg > avgs[j].avg
			}
			return avgs[i].id < avgs[j].id
		})

		best, worst := avgs[0], avgs[len(avgs)-1]
		spread := scoring.Round2(best.avg - worst.avg)
		if spread < d.cfg.ArchitectureGapSpread {
			continue
		}

		bestName, worstName := best.id, worst.id
		if n := c.Narrative(best.id); n != nil {
			bestName = n.Name
		}
		if n := c.Narrative(worst.id); n != nil {
			worstName = n.Name
		}

		entities := []string{best.id, worst.id}
		entities = append(entities, modelIDs(perNarr[worst.id])...)

		out = append(out, models.Tension{
			Kind:      models.TensionArchitectureGap,
			Magnitude: spread,
			Severity:  severityFor(spread, 35, 25),
			Entities:  entities,
			Question: fmt.Sprintf(
				"Architecture %q averages %.0f opportunity in %q but only %.0f in %q — what does the stronger narrative see that the weaker one lacks?",
				arch, best.avg, bestName, worst.avg, worstName),
			Metrics: map[string]float64{
				"spread":          spread,
				"best_avg":        scoring.Round2(best.avg),
				"worst_avg":       scoring.Round2(worst.avg),
				"affected_models": float64(worst.n),
			},
			Labels: map[string]string{
				"architecture":    arch,
				"best_narrative":  bestName,
				"worst_narrative": worstName,
			},
		})
	}
	return out
}
