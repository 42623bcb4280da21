package detect

import (
	"fmt"

	"github.com/driftlab/driftline/internal/corpus"
	"github.com/driftlab/driftline/internal/models"
	"github.com/driftlab/driftline/internal/scoring"
)

// CorrelationClass classifies a Pearson coefficient between two
// scoring layers.
type CorrelationClass string

const (
	ClassCircular          CorrelationClass = "CIRCULAR"           // r > 0.7: the layers are measuring each other
	ClassStructuralInverse CorrelationClass = "STRUCTURAL_INVERSE" // r < -0.7: a legitimate inverse structure
	ClassHighOverlap       CorrelationClass = "HIGH_OVERLAP"       // |r| > 0.5
	ClassHealthy           CorrelationClass = "HEALTHY"            // 0.2 < |r| <= 0.5
	ClassLowOverlap        CorrelationClass = "LOW_OVERLAP"        // 0.1 < |r| <= 0.2
	ClassDisconnected      CorrelationClass = "DISCONNECTED"       // |r| <= 0.1: the layers share no signal
)

// classify maps r onto its band. Band edges follow the same strict
// semantics as the detector thresholds.
func classify(r float64) CorrelationClass {
	switch {
	case r > 0.7:
		return ClassCircular
	case r < -0.7:
		return ClassStructuralInverse
	case abs(r) > 0.5:
		return ClassHighOverlap
	case abs(r) > 0.2:
		return ClassHealthy
	case abs(r) > 0.1:
		return ClassLowOverlap
	default:
		return ClassDisconnected
	}
}

// flaggedClasses are the classifications that indicate a scoring
// defect. STRUCTURAL_INVERSE is deliberately absent: a strong inverse
// relationship is reported as a structural finding, not a flaw.
var flaggedClasses = map[CorrelationClass]bool{
	ClassCircular:     true,
	ClassHighOverlap:  true,
	ClassDisconnected: true,
}

// CorrelationFinding is one audited layer pair.
type CorrelationFinding struct {
	Pair    string           `json:"pair"`
	R       float64          `json:"r"`
	Samples int              `json:"samples"`
	Class   CorrelationClass `json:"class"`
	Flagged bool             `json:"flagged"`
}

// SelfFulfillmentAudit reports whether the scoring layers are
// redundant (circular), uninformative (disconnected), or healthy.
type SelfFulfillmentAudit struct {
	Findings   []CorrelationFinding `json:"findings"`
	Structural []CorrelationFinding `json:"structural,omitempty"`
	Flagged    bool                 `json:"flagged"`
	Circular   bool                 `json:"circular"`
}

// selfFulfillment computes Pearson r for four aggregate layer pairs,
// one data point per narrative with linked models. Below the minimum
// narrative count the audit reports no findings.
func (d *Detector) selfFulfillment(c *corpus.Corpus) SelfFulfillmentAudit {
	var narrComp, avgT, avgOpp, avgRet []float64
	for _, n := range c.Narratives {
		ms := c.ModelsForNarrative(n.ID)
		if len(ms) == 0 {
			continue
		}
		var ts, os, rs []float64
		for _, m := range ms {
			ts = append(ts, m.Transformation.Composite)
			os = append(os, m.Opportunity.Composite)
			rs = append(rs, m.Return.Composite)
		}
		narrComp = append(narrComp, n.Scores.Composite)
		avgT = append(avgT, mean(ts))
		avgOpp = append(avgOpp, mean(os))
		avgRet = append(avgRet, mean(rs))
	}

	var audit SelfFulfillmentAudit
	if len(narrComp) < d.cfg.AuditMinNarratives {
		return audit
	}

	pairs := []struct {
		name string
		x, y []float64
	}{
		{"narrative_vs_transformation", narrComp, avgT},
		{"narrative_vs_opportunity", narrComp, avgOpp},
		{"narrative_vs_return", narrComp, avgRet},
		{"transformation_vs_opportunity", avgT, avgOpp},
	}

	for _, p := range pairs {
		r, ok := pearson(p.x, p.y)
		if !ok {
			continue
		}
		f := CorrelationFinding{
			Pair:    p.name,
			R:       scoring.Round2(r),
			Samples: len(p.x),
			Class:   classify(r),
		}
		f.Flagged = flaggedClasses[f.Class]

		if f.Class == ClassStructuralInverse {
			audit.Structural = append(audit.Structural, f)
			continue
		}
		audit.Findings = append(audit.Findings, f)
		if f.Flagged {
			audit.Flagged = true
		}
		if f.Class == ClassCircular {
			audit.Circular = true
		}
	}
	return audit
}

// tensions converts the flagged findings into tension records so the
// requirement generator covers all seven kinds uniformly.
func (a SelfFulfillmentAudit) tensions() []models.Tension {
	var out []models.Tension
	for _, f := range a.Findings {
		if !f.Flagged {
			continue
		}
		var question string
		switch f.Class {
		case ClassCircular:
			question = fmt.Sprintf(
				"Layer pair %s correlates at r=%.2f — are these two scoring passes independent evidence or one pass counted twice?", f.Pair, f.R)
		case ClassHighOverlap:
			question = fmt.Sprintf(
				"Layer pair %s overlaps heavily (r=%.2f) — how much independent signal does the second layer add?", f.Pair, f.R)
		default: // ClassDisconnected
			question = fmt.Sprintf(
				"Layer pair %s is disconnected (r=%.2f) — is either layer measuring anything about the other's domain?", f.Pair, f.R)
		}
		out = append(out, models.Tension{
			Kind:      models.TensionSelfFulfillmentCorrelation,
			Magnitude: scoring.Round2(abs(f.R) * 100),
			Severity:  severityFor(abs(f.R)*100, 70, 50),
			Entities:  []string{f.Pair},
			Question:  question,
			Metrics:   map[string]float64{"r": f.R, "samples": float64(f.Samples)},
			Labels:    map[string]string{"class": string(f.Class)},
		})
	}
	return out
}
