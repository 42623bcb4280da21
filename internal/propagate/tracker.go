package propagate

import (
	"sort"

	"github.com/driftlab/driftline/internal/models"
)

// axisKey identifies one adjustable axis on one entity.
type axisKey struct {
	EntityID string
	System   models.ScoringSystem
	Axis     string
}

// deltaTracker enforces the per-run cumulative cap on each
// (entity, axis): the sum of absolute applied deltas never exceeds the
// cap, no matter how many rules target the axis.
type deltaTracker struct {
	cap      float64
	signed   map[axisKey]float64
	absTotal map[axisKey]float64
}

func newDeltaTracker(cap float64) *deltaTracker {
	return &deltaTracker{
		cap:      cap,
		signed:   make(map[axisKey]float64),
		absTotal: make(map[axisKey]float64),
	}
}

// Headroom reports how much absolute adjustment the axis can still
// absorb this run.
func (t *deltaTracker) Headroom(k axisKey) float64 {
	h := t.cap - t.absTotal[k]
	if h < 0 {
		return 0
	}
	return h
}

// Clip shrinks a requested delta to the remaining headroom, preserving
// sign. The second return reports whether clipping occurred.
func (t *deltaTracker) Clip(k axisKey, delta float64) (float64, bool) {
	h := t.Headroom(k)
	if abs(delta) <= h {
		return delta, false
	}
	if delta < 0 {
		return -h, true
	}
	return h, true
}

// Record books an applied delta against the axis.
func (t *deltaTracker) Record(k axisKey, delta float64) {
	t.signed[k] += delta
	t.absTotal[k] += abs(delta)
}

// Unwind books a capping correction that moves the axis back toward
// its pre-iteration value. The correction reduces the net change, so
// the absolute total shrinks with it, floored at the signed residual.
func (t *deltaTracker) Unwind(k axisKey, correction float64) {
	t.signed[k] += correction
	t.absTotal[k] -= abs(correction)
	if t.absTotal[k] < abs(t.signed[k]) {
		t.absTotal[k] = abs(t.signed[k])
	}
	if t.absTotal[k] < 0 {
		t.absTotal[k] = 0
	}
}

// Cumulative returns the signed total applied to the axis so far.
func (t *deltaTracker) Cumulative(k axisKey) float64 {
	return t.signed[k]
}

// Touched returns every adjusted axis in deterministic order.
func (t *deltaTracker) Touched() []axisKey {
	keys := make([]axisKey, 0, len(t.signed))
	for k := range t.signed {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].EntityID != keys[j].EntityID {
			return keys[i].EntityID < keys[j].EntityID
		}
		if keys[i].System != keys[j].System {
			return keys[i].System < keys[j].System
		}
		return keys[i].Axis < keys[j].Axis
	})
	return keys
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
