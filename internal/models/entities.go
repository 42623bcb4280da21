// Package models defines the scored entity graph: transformation
// models, narratives, and force collisions, plus the ephemeral tension
// and requirement records derived from them each cycle.
package models

// NarrativeRole tags how a model participates in a narrative.
type NarrativeRole string

const (
	RoleWhatWorks   NarrativeRole = "what_works"   // the product the narrative is about
	RoleWhatsNeeded NarrativeRole = "whats_needed" // supporting infrastructure
	RoleWhatDies    NarrativeRole = "what_dies"    // incumbent displaced by the narrative
)

// NarrativeLink ties a model to a narrative with a role.
type NarrativeLink struct {
	NarrativeID string        `json:"narrative_id"`
	Role        NarrativeRole `json:"role"`
}

// Model is one scored transformation model.
type Model struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Architecture string `json:"architecture"`
	Sector       string `json:"sector"`

	Transformation TransformationScores `json:"transformation"`
	Opportunity    OpportunityScores    `json:"opportunity"`
	Return         ReturnScores         `json:"return"`

	Narratives []NarrativeLink `json:"narratives,omitempty"`
	Forces     []Force         `json:"forces,omitempty"`

	// Rank fields from the builder's global sorts. Informational only;
	// nothing in this core reads them back.
	TransformationRank int `json:"transformation_rank,omitempty"`
	OpportunityRank    int `json:"opportunity_rank,omitempty"`
	ReturnRank         int `json:"return_rank,omitempty"`

	Provenance Provenance `json:"provenance"`
}

// Recompute refreshes every composite and category on the model.
func (m *Model) Recompute() {
	m.Transformation.Recompute()
	m.Opportunity.Recompute()
	m.Return.Recompute()
}

// TransformationPhase marks where a narrative sits on its arc.
type TransformationPhase string

const (
	PhaseEmerging      TransformationPhase = "emerging"
	PhaseAccelerating  TransformationPhase = "accelerating"
	PhasePeak          TransformationPhase = "peak"
	PhasePreDisruption TransformationPhase = "pre_disruption"
	PhaseUnwinding     TransformationPhase = "unwinding"
)

// Narrative is one scored transformation narrative.
type Narrative struct {
	ID         string              `json:"id"`
	Name       string              `json:"name"`
	Collisions []string            `json:"collisions,omitempty"`
	Sectors    []string            `json:"sectors,omitempty"`
	Scores     NarrativeScores     `json:"scores"`
	Phase      TransformationPhase `json:"phase"`
	Provenance Provenance          `json:"provenance"`
}

// CollisionType classifies how two forces interact.
type CollisionType string

const (
	CollisionAmplifying  CollisionType = "amplifying"
	CollisionOpposing    CollisionType = "opposing"
	CollisionSequential  CollisionType = "sequential"
	CollisionConditional CollisionType = "conditional"
)

// Collision is a pairwise force interaction. Collisions link to
// narratives explicitly; models are reached only transitively through
// narratives that reference the collision.
type Collision struct {
	ID      string        `json:"id"`
	Name    string        `json:"name"`
	Forces  [2]Force      `json:"forces"`
	Type    CollisionType `json:"type"`
	Sectors []string      `json:"sectors,omitempty"`
}
