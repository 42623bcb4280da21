package corpus

import (
	"fmt"

	"github.com/driftlab/driftline/internal/scoring"
)

// DataShapeError is the fatal load-time error: a loaded entity is
// missing a required field or carries an axis outside [1,10]. It is
// surfaced immediately and never silently coerced.
type DataShapeError struct {
	EntityKind string
	EntityID   string
	Field      string
	Detail     string
}

func (e *DataShapeError) Error() string {
	return fmt.Sprintf("data shape: %s %q field %s: %s", e.EntityKind, e.EntityID, e.Field, e.Detail)
}

// Validate checks every loaded entity for shape violations. The first
// violation is returned as a *DataShapeError. Dangling references are
// not shape errors; CheckReferences reports those as warnings.
func Validate(c *Corpus) error {
	for _, m := range c.Models {
		if m.ID == "" {
			return &DataShapeError{EntityKind: "model", EntityID: m.Name, Field: "id", Detail: "missing"}
		}
		if !m.Provenance.Valid() {
			return &DataShapeError{EntityKind: "model", EntityID: m.ID, Field: "provenance",
				Detail: fmt.Sprintf("unknown tag %q", m.Provenance)}
		}
		if err := checkAxes("model", m.ID, "transformation", m.Transformation.AxisMap()); err != nil {
			return err
		}
		if err := checkAxes("model", m.ID, "opportunity", m.Opportunity.AxisMap()); err != nil {
			return err
		}
		if err := checkAxes("model", m.ID, "return", m.Return.AxisMap()); err != nil {
			return err
		}
	}
	for _, n := range c.Narratives {
		if n.ID == "" {
			return &DataShapeError{EntityKind: "narrative", EntityID: n.Name, Field: "id", Detail: "missing"}
		}
		if err := checkAxes("narrative", n.ID, "scores", n.Scores.AxisMap()); err != nil {
			return err
		}
	}
	for _, col := range c.Collisions {
		if col.ID == "" {
			return &DataShapeError{EntityKind: "collision", EntityID: col.Name, Field: "id", Detail: "missing"}
		}
		if col.Forces[0] == "" || col.Forces[1] == "" {
			return &DataShapeError{EntityKind: "collision", EntityID: col.ID, Field: "forces", Detail: "missing force tag"}
		}
	}
	return nil
}

func checkAxes(kind, id, system string, axes map[string]float64) error {
	for axis, v := range axes {
		if v < scoring.AxisMin || v > scoring.AxisMax {
			return &DataShapeError{
				EntityKind: kind,
				EntityID:   id,
				Field:      system + "." + axis,
				Detail:     fmt.Sprintf("value %v outside [1,10]", v),
			}
		}
	}
	return nil
}

// CheckReferences scans for dangling links between entities. These are
// reported as warnings, not errors: a model pointing at a missing
// narrative degrades that model's participation, nothing more.
func CheckReferences(c *Corpus) []string {
	var warnings []string
	for _, m := range c.Models {
		for _, link := range m.Narratives {
			if c.Narrative(link.NarrativeID) == nil {
				warnings = append(warnings,
					fmt.Sprintf("model %s links missing narrative %s", m.ID, link.NarrativeID))
			}
		}
	}
	for _, n := range c.Narratives {
		for _, colID := range n.Collisions {
			if c.Collision(colID) == nil {
				warnings = append(warnings,
					fmt.Sprintf("narrative %s links missing collision %s", n.ID, colID))
			}
		}
	}
	return warnings
}
