// Package propagate implements the bounded score-adjustment engine:
// damped rules proposing axis deltas, a cumulative per-axis cap, an
// iteration loop with a convergence threshold, and a composite-capping
// correction pass.
package propagate

import (
	"fmt"
	"sort"
	"time"

	"github.com/driftlab/driftline/internal/audit"
	"github.com/driftlab/driftline/internal/corpus"
	"github.com/driftlab/driftline/internal/models"
	"github.com/driftlab/driftline/internal/scoring"
)

// State is the engine's run state.
type State string

const (
	StateIdle            State = "idle"
	StateIterating       State = "iterating"
	StateConverged       State = "converged"
	StateBudgetExhausted State = "budget_exhausted"
)

// Config holds the engine bounds and per-rule damping factors.
type Config struct {
	MaxIterations         int      `json:"max_iterations"`
	ConvergenceThreshold  float64  `json:"convergence_threshold"`
	AxisCap               float64  `json:"axis_cap"`
	CompositeIterationCap float64  `json:"composite_iteration_cap"`
	Dampings              Dampings `json:"damping"`
}

// DefaultConfig returns the standard bounds and damping factors.
func DefaultConfig() Config {
	return Config{
		MaxIterations:         3,
		ConvergenceThreshold:  0.5,
		AxisCap:               3.0,
		CompositeIterationCap: 6.0,
		Dampings:              DefaultDampings(),
	}
}

// capRuleName marks composite-capping corrections in the log.
const capRuleName = "composite_cap"

// Change is one applied adjustment or capping correction.
type Change struct {
	Iteration  int                  `json:"iteration"`
	Rule       string               `json:"rule"`
	EntityKind string               `json:"entity_kind"`
	EntityID   string               `json:"entity_id"`
	System     models.ScoringSystem `json:"system"`
	Axis       string               `json:"axis"`
	Old        float64              `json:"old"`
	New        float64              `json:"new"`
	Delta      float64              `json:"delta"`
	Cumulative float64              `json:"cumulative"`
	Clipped    bool                 `json:"clipped,omitempty"`
	Evidence   string               `json:"evidence"`
}

// CompositeChange is one before/after row in the run summary.
type CompositeChange struct {
	EntityKind string               `json:"entity_kind"`
	EntityID   string               `json:"entity_id"`
	System     models.ScoringSystem `json:"system"`
	Before     float64              `json:"before"`
	After      float64              `json:"after"`
}

// Log is the propagation output document. It is emitted every run,
// even when no adjustments occurred: an empty change list is a
// meaningful result, not an omission.
type Log struct {
	CycleID         string            `json:"cycle_id"`
	GeneratedAt     time.Time         `json:"generated_at"`
	DryRun          bool              `json:"dry_run"`
	State           State             `json:"state"`
	Converged       bool              `json:"converged"`
	Iterations      int               `json:"iterations_run"`
	Changes         []Change          `json:"changes"`
	Advisories      []Advisory        `json:"advisories,omitempty"`
	EntitiesChanged int               `json:"entities_changed"`
	BeforeAfter     []CompositeChange `json:"before_after,omitempty"`
	BoundViolations []audit.Violation `json:"bound_violations,omitempty"`
}

// Engine runs the propagation rules over a corpus.
type Engine struct {
	cfg   Config
	rules []Rule
}

// New builds an engine, verifying every rule's evidence declarations
// against the anti-circularity contract. No rules means the standard
// set with the config's damping factors.
func New(cfg Config, rules ...Rule) (*Engine, error) {
	if len(rules) == 0 {
		d := cfg.Dampings.withDefaults()
		if err := d.validate(); err != nil {
			return nil, err
		}
		rules = RulesWith(d)
	}
	for _, r := range rules {
		if err := checkRule(r); err != nil {
			return nil, err
		}
	}
	return &Engine{cfg: cfg, rules: rules}, nil
}

// checkRule rejects rules whose justifying evidence comes from the
// same scoring system on the same entity as the axis they write.
func checkRule(r Rule) error {
	w := r.Writes()
	for _, src := range r.Reads() {
		if !src.CrossEntity && src.System == w.System {
			return fmt.Errorf("rule %q reads same-entity evidence from system %q it writes", r.Name(), w.System)
		}
	}
	return nil
}

// compKey identifies one composite for snapshotting.
type compKey struct {
	Kind   string
	ID     string
	System models.ScoringSystem
}

// Run executes the iteration loop. Under dryRun the engine computes
// over a clone and the caller's corpus is untouched; the log is
// produced either way.
func (e *Engine) Run(c *corpus.Corpus, cycleID string, dryRun bool) *Log {
	if dryRun {
		c = c.Clone()
	}

	before := snapshotComposites(c)
	tracker := newDeltaTracker(e.cfg.AxisCap)
	changes := []Change{}
	state := StateIterating
	iterations := 0

	for iter := 1; iter <= e.cfg.MaxIterations; iter++ {
		iterations = iter
		iterStart := snapshotComposites(c)
		iterDeltas := make(map[axisKey]float64)
		maxDelta := 0.0

		for _, r := range e.rules {
			for _, adj := range r.Propose(c) {
				ch, applied, ok := e.apply(c, tracker, iterDeltas, iter, r.Name(), adj)
				if !ok {
					continue
				}
				changes = append(changes, ch)
				if abs(applied) > maxDelta {
					maxDelta = abs(applied)
				}
			}
		}

		changes = append(changes, e.capComposites(c, tracker, iterStart, iterDeltas, iter)...)

		if maxDelta < e.cfg.ConvergenceThreshold {
			state = StateConverged
			break
		}
	}
	if state != StateConverged {
		state = StateBudgetExhausted
	}

	log := &Log{
		CycleID:         cycleID,
		GeneratedAt:     time.Now().UTC(),
		DryRun:          dryRun,
		State:           state,
		Converged:       state == StateConverged,
		Iterations:      iterations,
		Changes:         changes,
		Advisories:      Advisories(c),
		BeforeAfter:     diffComposites(before, snapshotComposites(c)),
		BoundViolations: audit.CheckBounds(c),
	}

	touched := make(map[string]bool)
	for _, k := range tracker.Touched() {
		touched[k.EntityID] = true
	}
	log.EntitiesChanged = len(touched)
	return log
}

// apply clips a proposed delta to the remaining cap headroom, clamps
// the result to the axis range, writes it, and recomputes the entity's
// dependent composite immediately. A delta fully absorbed by clipping
// is still logged, so cap exhaustion is visible in the run record.
func (e *Engine) apply(c *corpus.Corpus, tracker *deltaTracker, iterDeltas map[axisKey]float64, iter int, rule string, adj Adjustment) (Change, float64, bool) {
	k := axisKey{EntityID: adj.EntityID, System: adj.System, Axis: adj.Axis}
	delta, clipped := tracker.Clip(k, adj.Delta)

	old, err := axisValue(c, adj)
	if err != nil {
		return Change{}, 0, false
	}
	applied := scoring.Clamp(old+delta) - old
	if applied == 0 && !clipped {
		return Change{}, 0, false
	}

	if applied != 0 {
		if err := setAxis(c, adj, old+applied); err != nil {
			return Change{}, 0, false
		}
		tracker.Record(k, applied)
		iterDeltas[k] += applied
	}

	return Change{
		Iteration:  iter,
		Rule:       rule,
		EntityKind: adj.EntityKind,
		EntityID:   adj.EntityID,
		System:     adj.System,
		Axis:       adj.Axis,
		Old:        old,
		New:        old + applied,
		Delta:      applied,
		Cumulative: tracker.Cumulative(k),
		Clipped:    clipped,
		Evidence:   adj.Evidence,
	}, applied, true
}

// capComposites corrects models whose transformation or opportunity
// composite moved past the per-iteration cap through rule interaction.
// The correction backsolves the single most-changed axis of that
// system (lexicographic tie-break) to bring the composite back to the
// cap boundary; it is a localized overwrite, not a rescale.
func (e *Engine) capComposites(c *corpus.Corpus, tracker *deltaTracker, iterStart map[compKey]float64, iterDeltas map[axisKey]float64, iter int) []Change {
	var out []Change
	for _, m := range c.Models {
		for _, system := range []models.ScoringSystem{models.SystemTransformation, models.SystemOpportunity} {
			start, ok := iterStart[compKey{Kind: "model", ID: m.ID, System: system}]
			if !ok {
				continue
			}
			var cur float64
			if system == models.SystemTransformation {
				cur = m.Transformation.Composite
			} else {
				cur = m.Opportunity.Composite
			}
			moved := cur - start
			if abs(moved) <= e.cfg.CompositeIterationCap {
				continue
			}

			axis := mostChangedAxis(iterDeltas, m.ID, system)
			if axis == "" {
				continue
			}
			target := start + e.cfg.CompositeIterationCap
			if moved < 0 {
				target = start - e.cfg.CompositeIterationCap
			}

			adj := Adjustment{EntityKind: "model", EntityID: m.ID, System: system, Axis: axis}
			old, err := axisValue(c, adj)
			if err != nil {
				continue
			}
			var newV float64
			if system == models.SystemTransformation {
				newV, err = scoring.BacksolveAxis(m.Transformation.AxisMap(), scoring.TransformationWeights, axis, target)
			} else {
				newV, err = scoring.BacksolveAxis(m.Opportunity.AxisMap(), scoring.OpportunityWeights, axis, target)
			}
			if err != nil {
				continue
			}
			correction := newV - old
			if correction == 0 {
				continue
			}
			if err := setAxis(c, adj, newV); err != nil {
				continue
			}

			k := axisKey{EntityID: m.ID, System: system, Axis: axis}
			tracker.Unwind(k, correction)
			iterDeltas[k] += correction

			out = append(out, Change{
				Iteration:  iter,
				Rule:       capRuleName,
				EntityKind: "model",
				EntityID:   m.ID,
				System:     system,
				Axis:       axis,
				Old:        old,
				New:        newV,
				Delta:      correction,
				Cumulative: tracker.Cumulative(k),
				Evidence:   fmt.Sprintf("composite moved %.2f in one iteration, past the %.1f cap", moved, e.cfg.CompositeIterationCap),
			})
		}
	}
	return out
}

// mostChangedAxis picks the axis of one entity's system with the
// largest absolute per-iteration delta, breaking ties lexicographically
// by axis name.
func mostChangedAxis(iterDeltas map[axisKey]float64, entityID string, system models.ScoringSystem) string {
	var names []string
	for k := range iterDeltas {
		if k.EntityID == entityID && k.System == system {
			names = append(names, k.Axis)
		}
	}
	sort.Strings(names)

	best := ""
	bestAbs := 0.0
	for _, name := range names {
		d := abs(iterDeltas[axisKey{EntityID: entityID, System: system, Axis: name}])
		if d > bestAbs {
			best, bestAbs = name, d
		}
	}
	return best
}

func axisValue(c *corpus.Corpus, adj Adjustment) (float64, error) {
	switch adj.EntityKind {
	case "model":
		m := c.Model(adj.EntityID)
		if m == nil {
			return 0, fmt.Errorf("unknown model %q", adj.EntityID)
		}
		switch adj.System {
		case models.SystemTransformation:
			return m.Transformation.Axis(adj.Axis)
		case models.SystemOpportunity:
			return m.Opportunity.Axis(adj.Axis)
		case models.SystemReturn:
			return m.Return.Axis(adj.Axis)
		}
	case "narrative":
		n := c.Narrative(adj.EntityID)
		if n == nil {
			return 0, fmt.Errorf("unknown narrative %q", adj.EntityID)
		}
		return n.Scores.Axis(adj.Axis)
	}
	return 0, fmt.Errorf("unaddressable axis %s/%s/%s", adj.EntityKind, adj.System, adj.Axis)
}

func setAxis(c *corpus.Corpus, adj Adjustment, v float64) error {
	switch adj.EntityKind {
	case "model":
		m := c.Model(adj.EntityID)
		if m == nil {
			return fmt.Errorf("unknown model %q", adj.EntityID)
		}
		switch adj.System {
		case models.SystemTransformation:
			return m.Transformation.SetAxis(adj.Axis, v)
		case models.SystemOpportunity:
			return m.Opportunity.SetAxis(adj.Axis, v)
		case models.SystemReturn:
			return m.Return.SetAxis(adj.Axis, v)
		}
	case "narrative":
		n := c.Narrative(adj.EntityID)
		if n == nil {
			return fmt.Errorf("unknown narrative %q", adj.EntityID)
		}
		return n.Scores.SetAxis(adj.Axis, v)
	}
	return fmt.Errorf("unaddressable axis %s/%s/%s", adj.EntityKind, adj.System, adj.Axis)
}

func snapshotComposites(c *corpus.Corpus) map[compKey]float64 {
	snap := make(map[compKey]float64)
	for _, m := range c.Models {
		snap[compKey{Kind: "model", ID: m.ID, System: models.SystemTransformation}] = m.Transformation.Composite
		snap[compKey{Kind: "model", ID: m.ID, System: models.SystemOpportunity}] = m.Opportunity.Composite
		snap[compKey{Kind: "model", ID: m.ID, System: models.SystemReturn}] = m.Return.Composite
	}
	for _, n := range c.Narratives {
		snap[compKey{Kind: "narrative", ID: n.ID, System: models.SystemNarrative}] = n.Scores.Composite
	}
	return snap
}

// diffComposites builds the before/after rows for composites that
// moved, in deterministic order.
func diffComposites(before, after map[compKey]float64) []CompositeChange {
	var keys []compKey
	for k, b := range before {
		if a, ok := after[k]; ok && a != b {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Kind != keys[j].Kind {
			return keys[i].Kind < keys[j].Kind
		}
		if keys[i].ID != keys[j].ID {
			return keys[i].ID < keys[j].ID
		}
		return keys[i].System < keys[j].System
	})

	var out []CompositeChange
	for _, k := range keys {
		out = append(out, CompositeChange{
			EntityKind: k.Kind,
			EntityID:   k.ID,
			System:     k.System,
			Before:     before[k],
			After:      after[k],
		})
	}
	return out
}
