package scoring

// Axis weight tables for the four scoring systems. Weights are supplied
// by the upstream corpus builder and consumed here as data; each table
// sums to 100 so that a composite lands on the 10-100 scale.

// TransformationWeights weights the five transformation axes.
var TransformationWeights = map[string]float64{
	"SN": 25, // structural necessity
	"FA": 20, // force alignment
	"EC": 20, // ecosystem convergence
	"TG": 20, // timing
	"CE": 15, // capability evidence
}

// OpportunityWeights weights the four market-opportunity axes.
var OpportunityWeights = map[string]float64{
	"MO": 30, // market openness
	"MA": 30, // moat attainability
	"VD": 20, // value-chain disruption
	"DV": 20, // demand visibility
}

// ReturnWeights weights the five venture-return axes.
var ReturnWeights = map[string]float64{
	"MKT": 25, // market size
	"CAP": 20, // capital efficiency
	"ECO": 20, // unit economics
	"VEL": 15, // velocity to scale
	"MOA": 20, // durable moat
}

// NarrativeWeights weights the five narrative axes.
var NarrativeWeights = map[string]float64{
	"EM": 25, // evidence momentum
	"FC": 20, // force coherence
	"ES": 25, // evidence strength
	"TC": 15, // timing confidence
	"IR": 15, // irreversibility
}

// Tier is one row of an ordered category threshold table. A composite
// maps to the first tier whose Min it meets or exceeds.
type Tier struct {
	Min  float64
	Name string
}

// Category tables. Tables must be ordered by descending Min and the
// final tier must have Min 0 so every composite lands somewhere.

// TransformationTiers categorizes transformation composites.
var TransformationTiers = []Tier{
	{75, "inevitable"},
	{60, "likely"},
	{45, "plausible"},
	{30, "speculative"},
	{0, "unlikely"},
}

// OpportunityTiers categorizes opportunity composites. The bottom tier
// "closed" marks markets the scorer considers effectively shut.
var OpportunityTiers = []Tier{
	{75, "wide_open"},
	{60, "open"},
	{45, "contested"},
	{30, "narrow"},
	{0, "closed"},
}

// ReturnTiers categorizes venture-return composites. The top tier
// "fund_returner" is the reference class for force-inversion analysis.
var ReturnTiers = []Tier{
	{75, "fund_returner"},
	{60, "outsized"},
	{45, "solid"},
	{30, "modest"},
	{0, "subscale"},
}

// NarrativeTiers categorizes narrative composites. Breakpoints sit
// higher than the model tables because narrative scores cluster high.
var NarrativeTiers = []Tier{
	{80, "dominant"},
	{65, "powerful"},
	{50, "credible"},
	{35, "emerging"},
	{0, "fringe"},
}
