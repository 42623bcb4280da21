package models

import (
	"fmt"

	"github.com/driftlab/driftline/internal/scoring"
)

// ScoringSystem identifies one of the four independent scoring systems.
// Propagation rules declare which systems they read and write so the
// engine can enforce the anti-circularity contract.
type ScoringSystem string

const (
	SystemTransformation ScoringSystem = "transformation"
	SystemOpportunity    ScoringSystem = "opportunity"
	SystemReturn         ScoringSystem = "return"
	SystemNarrative      ScoringSystem = "narrative"
)

// TransformationScores holds the five transformation axes and their
// composite. Axes are on [1,10]; the composite on [10,100].
type TransformationScores struct {
	SN        float64 `json:"sn"`
	FA        float64 `json:"fa"`
	EC        float64 `json:"ec"`
	TG        float64 `json:"tg"`
	CE        float64 `json:"ce"`
	Composite float64 `json:"composite"`
}

// AxisMap returns the axes keyed by name, for the weighted-sum helpers.
func (s *TransformationScores) AxisMap() map[string]float64 {
	return map[string]float64{"SN": s.SN, "FA": s.FA, "EC": s.EC, "TG": s.TG, "CE": s.CE}
}

// Axis returns one axis value by name.
func (s *TransformationScores) Axis(name string) (float64, error) {
	v, ok := s.AxisMap()[name]
	if !ok {
		return 0, fmt.Errorf("transformation: unknown axis %q", name)
	}
	return v, nil
}

// SetAxis overwrites one axis by name and recomputes the composite.
func (s *TransformationScores) SetAxis(name string, v float64) error {
	switch name {
	case "SN":
		s.SN = v
	case "FA":
		s.FA = v
	case "EC":
		s.EC = v
	case "TG":
		s.TG = v
	case "CE":
		s.CE = v
	default:
		return fmt.Errorf("transformation: unknown axis %q", name)
	}
	s.Recompute()
	return nil
}

// Recompute refreshes the composite from the current axes.
func (s *TransformationScores) Recompute() {
	s.Composite = scoring.Composite(s.AxisMap(), scoring.TransformationWeights)
}

// OpportunityScores holds the four market-opportunity axes, their
// composite, and the derived category tier.
type OpportunityScores struct {
	MO        float64 `json:"mo"`
	MA        float64 `json:"ma"`
	VD        float64 `json:"vd"`
	DV        float64 `json:"dv"`
	Composite float64 `json:"composite"`
	Category  string  `json:"category"`
}

func (s *OpportunityScores) AxisMap() map[string]float64 {
	return map[string]float64{"MO": s.MO, "MA": s.MA, "VD": s.VD, "DV": s.DV}
}

func (s *OpportunityScores) Axis(name string) (float64, error) {
	v, ok := s.AxisMap()[name]
	if !ok {
		return 0, fmt.Errorf("opportunity: unknown axis %q", name)
	}
	return v, nil
}

func (s *OpportunityScores) SetAxis(name string, v float64) error {
	switch name {
	case "MO":
		s.MO = v
	case "MA":
		s.MA = v
	case "VD":
		s.VD = v
	case "DV":
		s.DV = v
	default:
		return fmt.Errorf("opportunity: unknown axis %q", name)
	}
	s.Recompute()
	return nil
}

// Recompute refreshes the composite and category from the current axes.
func (s *OpportunityScores) Recompute() {
	s.Composite = scoring.Composite(s.AxisMap(), scoring.OpportunityWeights)
	s.Category = scoring.Category(s.Composite, scoring.OpportunityTiers)
}

// ReturnScores holds the five venture-return axes, composite, category,
// and the builder's ROI estimate (a multiple; 0 means not estimated).
type ReturnScores struct {
	MKT       float64 `json:"mkt"`
	CAP       float64 `json:"cap"`
	ECO       float64 `json:"eco"`
	VEL       float64 `json:"vel"`
	MOA       float64 `json:"moa"`
	Composite float64 `json:"composite"`
	Category  string  `json:"category"`
	ROI       float64 `json:"roi,omitempty"`
}

func (s *ReturnScores) AxisMap() map[string]float64 {
	return map[string]float64{"MKT": s.MKT, "CAP": s.CAP, "ECO": s.ECO, "VEL": s.VEL, "MOA": s.MOA}
}

func (s *ReturnScores) Axis(name string) (float64, error) {
	v, ok := s.AxisMap()[name]
	if !ok {
		return 0, fmt.Errorf("return: unknown axis %q", name)
	}
	return v, nil
}

func (s *ReturnScores) SetAxis(name string, v float64) error {
	switch name {
	case "MKT":
		s.MKT = v
	case "CAP":
		s.CAP = v
	case "ECO":
		s.ECO = v
	case "VEL":
		s.VEL = v
	case "MOA":
		s.MOA = v
	default:
		return fmt.Errorf("return: unknown axis %q", name)
	}
	s.Recompute()
	return nil
}

func (s *ReturnScores) Recompute() {
	s.Composite = scoring.Composite(s.AxisMap(), scoring.ReturnWeights)
	s.Category = scoring.Category(s.Composite, scoring.ReturnTiers)
}

// NarrativeScores holds the five narrative axes, composite, and category.
type NarrativeScores struct {
	EM        float64 `json:"em"`
	FC        float64 `json:"fc"`
	ES        float64 `json:"es"`
	TC        float64 `json:"tc"`
	IR        float64 `json:"ir"`
	Composite float64 `json:"composite"`
	Category  string  `json:"category"`
}

func (s *NarrativeScores) AxisMap() map[string]float64 {
	return map[string]float64{"EM": s.EM, "FC": s.FC, "ES": s.ES, "TC": s.TC, "IR": s.IR}
}

func (s *NarrativeScores) Axis(name string) (float64, error) {
	v, ok := s.AxisMap()[name]
	if !ok {
		return 0, fmt.Errorf("narrative: unknown axis %q", name)
	}
	return v, nil
}

func (s *NarrativeScores) SetAxis(name string, v float64) error {
	switch name {
	case "EM":
		s.EM = v
	case "FC":
		s.FC = v
	case "ES":
		s.ES = v
	case "TC":
		s.TC = v
	case "IR":
		s.IR = v
	default:
		return fmt.Errorf("narrative: unknown axis %q", name)
	}
	s.Recompute()
	return nil
}

func (s *NarrativeScores) Recompute() {
	s.Composite = scoring.Composite(s.AxisMap(), scoring.NarrativeWeights)
	s.Category = scoring.Category(s.Composite, scoring.NarrativeTiers)
}
