// Package detect implements the seven tension scanners and the
// self-fulfillment audit. Each scanner is pure over the corpus and
// degrades gracefully: below its minimum sample size it emits nothing
// rather than erroring.
package detect

import (
	"sort"
	"time"

	"github.com/driftlab/driftline/internal/corpus"
	"github.com/driftlab/driftline/internal/models"
)

// Config holds the detector thresholds. Where the threshold is strict
// the comparison uses >, so a value exactly at the threshold does not
// flag.
type Config struct {
	// Narrative-opportunity divergence.
	TopNarrativeMinAvgOpportunity  float64 // dominant narratives expect avg opportunity at or above this
	TopNarrativeMaxClosedFraction  float64 // ...or at most this fraction of closed-category models
	WeakNarrativeMaxAvgOpportunity float64 // weak narratives flagged when avg opportunity reaches this
	NarrativeMinModels             int

	// Architecture cross-sector gap. Inclusive: spread at the threshold flags.
	ArchitectureGapSpread float64

	// Transformation-opportunity divergence. Strict.
	TransformationOpportunityGap float64

	// Force-return inversion. Deviation thresholds are absolute
	// percentage points; the large-sample threshold is tighter.
	ForceMinModels      int
	ForceLargeSample    int
	ForceDeviationSmall float64
	ForceDeviationLarge float64

	// Role-score paradox. Strict gap in composite points.
	RoleParadoxGap float64
	RoleNeededMin  int
	RoleWorksMin   int

	// Collision coherence. Strict.
	CollisionMaxStdDev float64
	CollisionMinModels int

	// Self-fulfillment audit.
	AuditMinNarratives int
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		TopNarrativeMinAvgOpportunity:  50,
		TopNarrativeMaxClosedFraction:  0.5,
		WeakNarrativeMaxAvgOpportunity: 65,
		NarrativeMinModels:             3,
		ArchitectureGapSpread:          20,
		TransformationOpportunityGap:   30,
		ForceMinModels:                 10,
		ForceLargeSample:               25,
		ForceDeviationSmall:            0.15,
		ForceDeviationLarge:            0.10,
		RoleParadoxGap:                 2.0,
		RoleNeededMin:                  2,
		RoleWorksMin:                   3,
		CollisionMaxStdDev:             15,
		CollisionMinModels:             3,
		AuditMinNarratives:             3,
	}
}

// Status values for the report summary.
const (
	StatusClean           = "CLEAN"
	StatusCircularWarning = "CIRCULAR_WARNING"
)

// Summary carries aggregate counts for cheap inspection of a report.
type Summary struct {
	Total        int                        `json:"total"`
	CountsByKind map[models.TensionKind]int `json:"counts_by_kind"`
	Status       string                     `json:"status"`
}

// Report is the detection output document for one run.
type Report struct {
	CycleID     string               `json:"cycle_id"`
	GeneratedAt time.Time            `json:"generated_at"`
	Tensions    []models.Tension     `json:"tensions"`
	Audit       SelfFulfillmentAudit `json:"audit"`
	Summary     Summary              `json:"summary"`
}

// Detector runs the seven scanners over a corpus.
type Detector struct {
	cfg Config
}

// New creates a detector with the given thresholds.
func New(cfg Config) *Detector {
	return &Detector{cfg: cfg}
}

// Run executes every scanner and assembles the ordered report.
// Tensions are sorted by kind, then magnitude descending, then first
// entity id so repeated runs over the same corpus are byte-identical.
func (d *Detector) Run(c *corpus.Corpus, cycleID string) Report {
	var tensions []models.Tension
	tensions = append(tensions, d.narrativeOpportunity(c)...)
	tensions = append(tensions, d.architectureGap(c)...)
	tensions = append(tensions, d.transformationOpportunity(c)...)
	tensions = append(tensions, d.forceReturnInversion(c)...)
	tensions = append(tensions, d.roleScoreParadox(c)...)
	tensions = append(tensions, d.collisionCoherence(c)...)

	audit := d.selfFulfillment(c)
	tensions = append(tensions, audit.tensions()...)

	orderTensions(tensions)

	summary := Summary{
		Total:        len(tensions),
		CountsByKind: make(map[models.TensionKind]int),
		Status:       StatusClean,
	}
	for _, t := range tensions {
		summary.CountsByKind[t.Kind]++
	}
	if audit.Circular {
		summary.Status = StatusCircularWarning
	}

	return Report{
		CycleID:     cycleID,
		GeneratedAt: time.Now().UTC(),
		Tensions:    tensions,
		Audit:       audit,
		Summary:     summary,
	}
}

// kindOrder maps each tension kind to its report position.
var kindOrder = func() map[models.TensionKind]int {
	m := make(map[models.TensionKind]int, len(models.TensionKinds))
	for i, k := range models.TensionKinds {
		m[k] = i
	}
	return m
}()

func orderTensions(ts []models.Tension) {
	sort.SliceStable(ts, func(i, j int) bool {
		if ki, kj := kindOrder[ts[i].Kind], kindOrder[ts[j].Kind]; ki != kj {
			return ki < kj
		}
		if ts[i].Magnitude != ts[j].Magnitude {
			return ts[i].Magnitude > ts[j].Magnitude
		}
		return firstEntity(ts[i]) < firstEntity(ts[j])
	})
}

func firstEntity(t models.Tension) string {
	if len(t.Entities) == 0 {
		return ""
	}
	return t.Entities[0]
}

// severityFor buckets a magnitude against per-kind breakpoints.
func severityFor(magnitude, high, moderate float64) models.Severity {
	switch {
	case magnitude >= high:
		return models.SeverityHigh
	case magnitude >= moderate:
		return models.SeverityModerate
	default:
		return models.SeverityLow
	}
}
