// Package scoring provides the pure score arithmetic shared by every
// other component: weighted composites, category lookup, axis clamping,
// and the backward solve used by the composite-capping pass.
package scoring

import (
	"fmt"
	"math"
)

// Axis bounds. Every per-axis score lives on this scale.
const (
	AxisMin = 1.0
	AxisMax = 10.0
)

// Composite computes the weighted composite for one scoring system:
// sum(score_i * weight_i) / 10, rounded to 2 decimals. With axes on
// [1,10] and weights summing to 100 the result lands on [10,100].
// Axes missing from the weight table contribute nothing.
func Composite(scores, weights map[string]float64) float64 {
	var sum float64
	for axis, w := range weights {
		sum += scores[axis] * w
	}
	return Round2(sum / 10)
}

// Category maps a composite onto the first tier whose Min it meets or
// exceeds. Tables are ordered descending, so the lookup is a simple
// scan.
func Category(composite float64, tiers []Tier) string {
	for _, t := range tiers {
		if composite >= t.Min {
			return t.Name
		}
	}
	if len(tiers) == 0 {
		return ""
	}
	return tiers[len(tiers)-1].Name
}

// Clamp restricts a score to the [AxisMin, AxisMax] axis range.
func Clamp(v float64) float64 {
	if v < AxisMin {
		return AxisMin
	}
	if v > AxisMax {
		return AxisMax
	}
	return v
}

// Round2 rounds to 2 decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// BacksolveAxis recovers the value one axis must take for the weighted
// composite to hit target, holding every other axis fixed:
//
//	value = (target*10 - sum(other_i * weight_i)) / weight_axis
//
// The result is clamped to the axis range, so the achieved composite
// may fall short of target when the correction runs out of axis. Used
// by the composite-capping pass to pull a single axis back after an
// interaction effect moved a composite more than the per-iteration cap.
func BacksolveAxis(scores, weights map[string]float64, axis string, target float64) (float64, error) {
	w, ok := weights[axis]
	if !ok || w == 0 {
		return 0, fmt.Errorf("backsolve: axis %q has no weight", axis)
	}
	var rest float64
	for a, aw := range weights {
		if a == axis {
			continue
		}
		rest += scores[a] * aw
	}
	return Clamp((target*10 - rest) / w), nil
}
