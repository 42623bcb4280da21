package detect

import (
	"fmt"
	"sort"

	"github.com/driftlab/driftline/internal/corpus"
	"github.com/driftlab/driftline/internal/models"
	"github.com/driftlab/driftline/internal/scoring"
)

// returnTopTier is the venture-return category whose hit rate the
// inversion scan compares against the corpus baseline.
const returnTopTier = "fund_returner"

// forceReturnInversion compares, per canonical force, the fraction of
// models reaching the top return tier against the corpus-wide baseline.
// Forces below the minimum population are skipped; the deviation
// threshold tightens at larger sample sizes. The comparison is strict.
func (d *Detector) forceReturnInversion(c *corpus.Corpus) []models.Tension {
	if len(c.Models) == 0 {
		return nil
	}

	baselineHits := 0
	byForce := make(map[models.Force][]*models.Model)
	for _, m := range c.Models {
		if m.Return.Category == returnTopTier {
			baselineHits++
		}
		seen := make(map[models.Force]bool)
		for _, f := range m.Forces {
			f = models.ParseForce(string(f)) // tolerate un-normalized input
			if !seen[f] {
				seen[f] = true
				byForce[f] = append(byForce[f], m)
			}
		}
	}
	baseline := float64(baselineHits) / float64(len(c.Models))

	forces := make([]models.Force, 0, len(byForce))
	for f := range byForce {
		forces = append(forces, f)
	}
	sort.Slice(forces, func(i, j int) bool { return forces[i] < forces[j] })

	var out []models.Tension
	for _, f := range forces {
		ms := byForce[f]
		if len(ms) < d.cfg.ForceMinModels {
			continue
		}

		hits := 0
		for _, m := range ms {
			if m.Return.Category == returnTopTier {
				hits++
			}
		}
		rate := float64(hits) / float64(len(ms))
		dev := rate - baseline

		threshold := d.cfg.ForceDeviationSmall
		if len(ms) >= d.cfg.ForceLargeSample {
			threshold = d.cfg.ForceDeviationLarge
		}
		if abs(dev) <= threshold {
			continue
		}

		dir := models.DirForceOverperforming
		verb := "over-represents"
		if dev < 0 {
			dir = models.DirForceUnderperforming
			verb = "under-represents"
		}
		magnitude := scoring.Round2(abs(dev) * 100) // percentage points

		out = append(out, models.Tension{
			Kind:      models.TensionForceReturnInversion,
			Direction: dir,
			Magnitude: magnitude,
			Severity:  severityFor(magnitude, 25, 18),
			Entities:  modelIDs(ms),
			Question: fmt.Sprintf(
				"Force %q %s top-tier returns (%.0f%% vs %.0f%% baseline over %d models) — is the force genuinely predictive, or are its models scored by a different hand?",
				f, verb, rate*100, baseline*100, len(ms)),
			Metrics: map[string]float64{
				"top_tier_rate": scoring.Round2(rate),
				"baseline_rate": scoring.Round2(baseline),
				"sample":        float64(len(ms)),
			},
			Labels: map[string]string{"force": string(f)},
		})
	}
	return out
}
