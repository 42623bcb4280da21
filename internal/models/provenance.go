package models

// Provenance distinguishes heuristic-derived scores from manual
// overrides. It is set once by the corpus builder; propagation rules
// that rewrite scores only touch heuristic entities.
type Provenance string

const (
	ProvenanceHeuristic Provenance = "heuristic"
	ProvenanceManual    Provenance = "manual"
)

// Valid reports whether p is one of the two known provenance tags.
func (p Provenance) Valid() bool {
	return p == ProvenanceHeuristic || p == ProvenanceManual
}
