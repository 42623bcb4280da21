package models

// Requirement is a falsifiable external-evidence request derived from
// a tension. Requirements are consumed by a downstream research
// process; this core only generates them.
type Requirement struct {
	ID          string      `json:"id"`
	TensionKind TensionKind `json:"tension_kind"`
	Priority    Severity    `json:"priority"`

	// Question is the evidence question, templated from the tension.
	Question string `json:"question"`

	// EvidenceCategories names the external evidence classes that could
	// answer the question. They are suggestions only; nothing here
	// retrieves them.
	EvidenceCategories []string `json:"evidence_categories"`

	// ValidateIf / FalsifyIf are machine-checkable threshold statements
	// the downstream process evaluates against retrieved evidence.
	ValidateIf string `json:"validate_if"`
	FalsifyIf  string `json:"falsify_if"`

	// Entities lists affected entity ids; for batched requirements
	// EntityCount may exceed len(Entities).
	Entities    []string `json:"entities"`
	EntityCount int      `json:"entity_count"`

	// Predicted score impact under each outcome.
	ImpactIfValidated string `json:"impact_if_validated"`
	ImpactIfFalsified string `json:"impact_if_falsified"`
}
