package propagate

import (
	"fmt"
	"sort"

	"github.com/driftlab/driftline/internal/corpus"
	"github.com/driftlab/driftline/internal/models"
	"github.com/driftlab/driftline/internal/scoring"
)

// EvidenceSource declares one scoring system a rule reads from, and
// whether the reading crosses entity boundaries. The engine enforces
// the anti-circularity contract over these declarations: a rule may
// never read same-entity evidence from the system it writes.
type EvidenceSource struct {
	System      models.ScoringSystem
	CrossEntity bool
}

// Target declares the single axis family a rule writes.
type Target struct {
	EntityKind string
	System     models.ScoringSystem
	Axis       string
}

// Adjustment is one proposed axis delta with its justifying evidence.
type Adjustment struct {
	EntityKind string
	EntityID   string
	System     models.ScoringSystem
	Axis       string
	Delta      float64
	Evidence   string
}

// Rule proposes damped adjustments from evidence outside the scoring
// system it writes. Rules never mutate the corpus themselves; the
// engine applies proposals under cap and clamp discipline.
type Rule interface {
	Name() string
	Reads() []EvidenceSource
	Writes() Target
	Propose(c *corpus.Corpus) []Adjustment
}

// Default damping factors, per rule.
const (
	phaseTimingDamping      = 0.25
	evidenceStrengthDamping = 0.20
	moatDamping             = 0.25
	archSpreadDamping       = 0.30
)

// Anchors and thresholds, per rule.
const (
	phaseTimingAnchor         = 7.0
	evidenceStrengthStep      = 1.0
	evidenceStrengthHighAvg   = 70.0
	evidenceStrengthLowAvg    = 35.0
	evidenceStrengthMinModels = 3
	moatLowROI                = 2.0
	moatHighROI               = 10.0
	moatHighMA                = 7.0
	moatLowMA                 = 4.0
	moatDownAnchor            = 6.0
	moatUpAnchor              = 5.0
	archSpreadMin             = 20.0
	archBestMinModels         = 3
	archRawDeltaCap           = 2.0
)

// Dampings holds the per-rule damping factors. A zero field falls back
// to the rule's default; every effective factor must sit in (0, 1).
type Dampings struct {
	PhaseTiming        float64 `json:"phase_timing"`
	EvidenceStrength   float64 `json:"evidence_strength"`
	MoatChallenge      float64 `json:"moat_challenge"`
	ArchitectureSpread float64 `json:"architecture_spread"`
}

// DefaultDampings returns the standard per-rule factors.
func DefaultDampings() Dampings {
	return Dampings{
		PhaseTiming:        phaseTimingDamping,
		EvidenceStrength:   evidenceStrengthDamping,
		MoatChallenge:      moatDamping,
		ArchitectureSpread: archSpreadDamping,
	}
}

// withDefaults fills zero fields from the defaults.
func (d Dampings) withDefaults() Dampings {
	def := DefaultDampings()
	if d.PhaseTiming == 0 {
		d.PhaseTiming = def.PhaseTiming
	}
	if d.EvidenceStrength == 0 {
		d.EvidenceStrength = def.EvidenceStrength
	}
	if d.MoatChallenge == 0 {
		d.MoatChallenge = def.MoatChallenge
	}
	if d.ArchitectureSpread == 0 {
		d.ArchitectureSpread = def.ArchitectureSpread
	}
	return d
}

// validate rejects factors outside (0, 1). A factor of 1 or more would
// overshoot the anchor instead of converging toward it.
func (d Dampings) validate() error {
	for _, f := range []struct {
		rule  string
		value float64
	}{
		{"phase_timing", d.PhaseTiming},
		{"evidence_strength", d.EvidenceStrength},
		{"moat_challenge", d.MoatChallenge},
		{"arch_spread", d.ArchitectureSpread},
	} {
		if f.value <= 0 || f.value >= 1 {
			return fmt.Errorf("damping for %s must be in (0, 1), got %g", f.rule, f.value)
		}
	}
	return nil
}

// Rules returns the four mutating rules with default damping, in
// application order.
func Rules() []Rule {
	return RulesWith(DefaultDampings())
}

// RulesWith returns the four mutating rules with the given damping
// factors, in application order. Zero fields use the defaults.
func RulesWith(d Dampings) []Rule {
	d = d.withDefaults()
	return []Rule{
		phaseTiming{damping: d.PhaseTiming},
		evidenceStrength{damping: d.EvidenceStrength},
		moatChallenge{damping: d.MoatChallenge},
		archSpread{damping: d.ArchitectureSpread},
	}
}

// phaseTiming nudges a heuristic-scored model's timing axis toward the
// anchor when a linked narrative's phase says the transformation is
// accelerating, and back down past the anchor when the narrative is
// pre-disruption. The first eligible narrative link wins.
type phaseTiming struct {
	damping float64
}

func (phaseTiming) Name() string { return "phase_timing" }

func (phaseTiming) Reads() []EvidenceSource {
	return []EvidenceSource{{System: models.SystemNarrative, CrossEntity: true}}
}

func (phaseTiming) Writes() Target {
	return Target{EntityKind: "model", System: models.SystemTransformation, Axis: "TG"}
}

func (r phaseTiming) Propose(c *corpus.Corpus) []Adjustment {
	var out []Adjustment
	for _, m := range c.Models {
		if m.Provenance != models.ProvenanceHeuristic {
			continue
		}
		for _, link := range m.Narratives {
			n := c.Narrative(link.NarrativeID)
			if n == nil {
				continue
			}
			var delta float64
			switch n.Phase {
			case models.PhaseAccelerating:
				if m.Transformation.TG >= phaseTimingAnchor {
					continue
				}
				delta = r.damping * (phaseTimingAnchor - m.Transformation.TG)
			case models.PhasePreDisruption:
				if m.Transformation.TG <= phaseTimingAnchor {
					continue
				}
				delta = r.damping * (phaseTimingAnchor - m.Transformation.TG)
			default:
				continue
			}
			out = append(out, Adjustment{
				EntityKind: "model",
				EntityID:   m.ID,
				System:     models.SystemTransformation,
				Axis:       "TG",
				Delta:      delta,
				Evidence:   fmt.Sprintf("narrative %q phase %s implies timing near %.0f", n.Name, n.Phase, phaseTimingAnchor),
			})
			break
		}
	}
	return out
}

// evidenceStrength moves a narrative's ES axis by a small damped step
// when its linked models' average return composite sits clearly above
// or below the neutral band. Requires a minimum model sample.
type evidenceStrength struct {
	damping float64
}

func (evidenceStrength) Name() string { return "evidence_strength" }

func (evidenceStrength) Reads() []EvidenceSource {
	return []EvidenceSource{{System: models.SystemReturn, CrossEntity: true}}
}

func (evidenceStrength) Writes() Target {
	return Target{EntityKind: "narrative", System: models.SystemNarrative, Axis: "ES"}
}

func (r evidenceStrength) Propose(c *corpus.Corpus) []Adjustment {
	var out []Adjustment
	for _, n := range c.Narratives {
		ms := c.ModelsForNarrative(n.ID)
		if len(ms) < evidenceStrengthMinModels {
			continue
		}
		var sum float64
		for _, m := range ms {
			sum += m.Return.Composite
		}
		avg := sum / float64(len(ms))

		var delta float64
		switch {
		case avg >= evidenceStrengthHighAvg:
			delta = r.damping * evidenceStrengthStep
		case avg <= evidenceStrengthLowAvg:
			delta = -r.damping * evidenceStrengthStep
		default:
			continue
		}
		out = append(out, Adjustment{
			EntityKind: "narrative",
			EntityID:   n.ID,
			System:     models.SystemNarrative,
			Axis:       "ES",
			Delta:      delta,
			Evidence:   fmt.Sprintf("%d linked models average %.1f return composite", len(ms), avg),
		})
	}
	return out
}

// moatChallenge reconciles a heuristic model's moat-assessment axis
// with its ROI estimate: a high moat claim on a low-multiple model is
// pulled down toward the anchor, and a dismissed moat on a
// high-multiple model is lifted. Models without an ROI estimate are
// skipped.
type moatChallenge struct {
	damping float64
}

func (moatChallenge) Name() string { return "moat_challenge" }

func (moatChallenge) Reads() []EvidenceSource {
	return []EvidenceSource{{System: models.SystemReturn, CrossEntity: false}}
}

func (moatChallenge) Writes() Target {
	return Target{EntityKind: "model", System: models.SystemOpportunity, Axis: "MA"}
}

func (r moatChallenge) Propose(c *corpus.Corpus) []Adjustment {
	var out []Adjustment
	for _, m := range c.Models {
		if m.Provenance != models.ProvenanceHeuristic || m.Return.ROI == 0 {
			continue
		}
		var delta float64
		var evidence string
		switch {
		case m.Return.ROI < moatLowROI && m.Opportunity.MA >= moatHighMA:
			delta = r.damping * (moatDownAnchor - m.Opportunity.MA)
			evidence = fmt.Sprintf("ROI estimate %.1fx contradicts moat assessment %.1f", m.Return.ROI, m.Opportunity.MA)
		case m.Return.ROI >= moatHighROI && m.Opportunity.MA <= moatLowMA:
			delta = r.damping * (moatUpAnchor - m.Opportunity.MA)
			evidence = fmt.Sprintf("ROI estimate %.1fx exceeds what moat assessment %.1f implies", m.Return.ROI, m.Opportunity.MA)
		default:
			continue
		}
		out = append(out, Adjustment{
			EntityKind: "model",
			EntityID:   m.ID,
			System:     models.SystemOpportunity,
			Axis:       "MA",
			Delta:      delta,
			Evidence:   evidence,
		})
	}
	return out
}

// archSpread lifts the market-openness axis of models stuck in the
// worst narrative of a wide-spread architecture, provided the best
// narrative corroborates the architecture with enough examples. The
// raw spread signal is capped before damping.
type archSpread struct {
	damping float64
}

func (archSpread) Name() string { return "arch_spread" }

func (archSpread) Reads() []EvidenceSource {
	return []EvidenceSource{{System: models.SystemOpportunity, CrossEntity: true}}
}

func (archSpread) Writes() Target {
	return Target{EntityKind: "model", System: models.SystemOpportunity, Axis: "MO"}
}

func (r archSpread) Propose(c *corpus.Corpus) []Adjustment {
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

	var out []Adjustment
	for _, arch := range archs {
		perNarr := byArch[arch]
		if len(perNarr) < 2 {
			continue
		}
		type narrAvg struct {
			id  string
			avg float64
		}
		var avgs []narrAvg
		for nid, ms := range perNarr {
			var sum float64
			for _, m := range ms {
				sum += m.Opportunity.Composite
			}
			avgs = append(avgs, narrAvg{id: nid, avg: sum / float64(len(ms))})
		}
		sort.Slice(avgs, func(i, j int) bool {
			if avgs[i].avg != avgs[j].avg {
				return avgs[i].avg > avgs[j].avg
			}
			return avgs[i].id < avgs[j].id
		})

		best, worst := avgs[0], avgs[len(avgs)-1]
		spread := best.avg - worst.avg
		if spread < archSpreadMin || len(perNarr[best.id]) < archBestMinModels {
			continue
		}

		raw := spread / 10
		if raw > archRawDeltaCap {
			raw = archRawDeltaCap
		}
		delta := scoring.Round2(r.damping * raw)

		bestName := best.id
		if n := c.Narrative(best.id); n != nil {
			bestName = n.Name
		}
		for _, m := range perNarr[worst.id] {
			out = append(out, Adjustment{
				EntityKind: "model",
				EntityID:   m.ID,
				System:     models.SystemOpportunity,
				Axis:       "MO",
				Delta:      delta,
				Evidence: fmt.Sprintf("architecture %q averages %.1f opportunity in %q (%d corroborating models, spread %.1f)",
					arch, best.avg, bestName, len(perNarr[best.id]), spread),
			})
		}
	}
	return out
}

// Advisory thresholds for the force-cluster signal.
const (
	advisoryMinModels  = 20
	advisoryConfirmAvg = 65.0
	advisoryWeakenAvg  = 40.0
)

// Advisory signal values.
const (
	SignalForceConfirmed = "force_confirmed"
	SignalForceWeakening = "force_weakening"
)

// Advisory is the non-mutating force-cluster output: a judgment on
// whether a force's model cluster confirms or undercuts the force. It
// never adjusts a score.
type Advisory struct {
	Force    models.Force `json:"force"`
	Signal   string       `json:"signal"`
	AvgT     float64      `json:"avg_transformation"`
	Models   int          `json:"models"`
	Evidence string       `json:"evidence"`
}

// Advisories computes the force-cluster signals for forces with a
// large enough model population.
func Advisories(c *corpus.Corpus) []Advisory {
	byForce := make(map[models.Force][]*models.Model)
	for _, m := range c.Models {
		seen := make(map[models.Force]bool)
		for _, f := range m.Forces {
			f = models.ParseForce(string(f))
			if !seen[f] {
				seen[f] = true
				byForce[f] = append(byForce[f], m)
			}
		}
	}

	forces := make([]models.Force, 0, len(byForce))
	for f := range byForce {
		forces = append(forces, f)
	}
	sort.Slice(forces, func(i, j int) bool { return forces[i] < forces[j] })

	var out []Advisory
	for _, f := range forces {
		ms := byForce[f]
		if len(ms) < advisoryMinModels {
			continue
		}
		var sum float64
		for _, m := range ms {
			sum += m.Transformation.Composite
		}
		avg := scoring.Round2(sum / float64(len(ms)))

		var signal string
		switch {
		case avg >= advisoryConfirmAvg:
			signal = SignalForceConfirmed
		case avg <= advisoryWeakenAvg:
			signal = SignalForceWeakening
		default:
			continue
		}
		out = append(out, Advisory{
			Force:    f,
			Signal:   signal,
			AvgT:     avg,
			Models:   len(ms),
			Evidence: fmt.Sprintf("%d models average %.1f transformation composite", len(ms), avg),
		})
	}
	return out
}
