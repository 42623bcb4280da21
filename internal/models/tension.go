package models

// TensionKind enumerates the seven classes of internal inconsistency
// the detector scans for.
type TensionKind string

const (
	TensionNarrativeOpportunity       TensionKind = "narrative_opportunity_divergence"
	TensionArchitectureGap            TensionKind = "architecture_cross_sector_gap"
	TensionTransformationOpportunity  TensionKind = "transformation_opportunity_divergence"
	TensionForceReturnInversion       TensionKind = "force_return_inversion"
	TensionRoleScoreParadox           TensionKind = "role_score_paradox"
	TensionCollisionCoherence         TensionKind = "collision_coherence"
	TensionSelfFulfillmentCorrelation TensionKind = "self_fulfillment_correlation"
)

// TensionKinds lists all kinds in report order.
var TensionKinds = []TensionKind{
	TensionNarrativeOpportunity,
	TensionArchitectureGap,
	TensionTransformationOpportunity,
	TensionForceReturnInversion,
	TensionRoleScoreParadox,
	TensionCollisionCoherence,
	TensionSelfFulfillmentCorrelation,
}

// TensionDirection refines a kind where the inconsistency is signed.
type TensionDirection string

const (
	DirStrongNarrativeClosedMarket        TensionDirection = "strong_narrative_closed_market"
	DirWeakNarrativeOpenMarket            TensionDirection = "weak_narrative_open_market"
	DirTransformationCertainDoorClosed    TensionDirection = "transformation_certain_door_closed"
	DirMarketOpenTransformationUncertain  TensionDirection = "market_open_transformation_uncertain"
	DirForceOverperforming                TensionDirection = "force_overperforming"
	DirForceUnderperforming               TensionDirection = "force_underperforming"
)

// Severity buckets a tension magnitude for triage.
type Severity string

const (
	SeverityHigh     Severity = "high"
	SeverityModerate Severity = "moderate"
	SeverityLow      Severity = "low"
)

// Tension is one detected inconsistency between scores that domain
// logic expects to move together. Tensions are regenerated each run
// and never persisted into the corpus.
type Tension struct {
	Kind      TensionKind      `json:"kind"`
	Direction TensionDirection `json:"direction,omitempty"`
	Magnitude float64          `json:"magnitude"`
	Severity  Severity         `json:"severity"`

	// Entities lists the implicated entity ids, the primary subject first.
	Entities []string `json:"entities"`

	// Question is the diagnostic question the tension raises.
	Question string `json:"question"`

	// Metrics carries type-specific numeric detail.
	Metrics map[string]float64 `json:"metrics,omitempty"`

	// Labels carries type-specific string detail (e.g. best/worst
	// narrative names for an architecture gap).
	Labels map[string]string `json:"labels,omitempty"`
}
