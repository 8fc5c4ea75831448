// Package config parses and validates the directive-based configuration
// language that drives a linkage-analysis run: file names, boolean
// switches, integer knobs, range-valued lists, and the structural
// directives that select two-point, multipoint, or marker-to-marker
// analysis.
package config

// TraitMode distinguishes the dichotomous-trait model from the two
// quantitative-trait variants.
type TraitMode int

const (
	TraitModeDichotomous TraitMode = iota
	TraitModeQTNormal
	TraitModeQTChiSq
)

// MarkerToMarkerMode selects whether a marker-to-marker run considers
// every marker pair or only adjacent pairs.
type MarkerToMarkerMode int

const (
	MarkerToMarkerNone MarkerToMarkerMode = iota
	MarkerToMarkerAll
	MarkerToMarkerAdjacent
)

// Constraint is a parsed Constraint directive: a relational comparison
// between two penetrance/mean/dof parameters, optionally scoped to a
// liability class.
type Constraint struct {
	Param1          string
	LiabilityClass1 int
	Op              string // one of "<", ">", "<=", ">=", "=", "!="
	Param2          string
	LiabilityClass2 int
	Disjunction     bool // true if this constraint is joined to the previous one by "or" rather than implicitly anded
}

// Model is the validated, pre-defaults configuration. FillDefaults
// mutates it in place to fill in canonical values left unset by the
// directive text.
type Model struct {
	// File-name options.
	FrequencyFile  string
	MapFile        string
	PedigreeFile   string
	LocusFile      string
	BayesRatioFile string
	PPLFile        string
	CountFile      string
	MODFile        string
	SurfaceFile    string
	NIDetailFile   string

	// Boolean switches.
	NonPolynomial bool
	Imprinting    bool
	SexLinked     bool
	DryRun        bool
	ExtraMODs     bool
	ForceBRFile   bool

	// Integer knobs.
	PolynomialScale  int
	LiabilityClasses int
	DiseaseAlleles   int
	MaxIterations    int

	// Structural.
	Multipoint         bool
	MultipointN        int
	MarkerToMarker     bool
	MarkerToMarkerMode MarkerToMarkerMode
	SexSpecific        bool
	LD                 bool
	Trait              TraitMode
	DynamicIntegration bool

	// Range-valued lists.
	TraitPositions        *RangeSet
	MarkerAlleleFrequency *RangeSet
	DiseaseGeneFrequency  *RangeSet
	DPrime                *RangeSet
	Theta                 *RangeSet
	Alpha                 *RangeSet
	Penetrance            *RangeSet
	Mean                  *RangeSet
	StandardDev           *RangeSet
	DegreesOfFreedom      *RangeSet
	Threshold             *RangeSet
	Truncate              *RangeSet
	PhenoCodes            *RangeSet

	Constraints []Constraint

	// SurfacesPath is the output directory or s3:// prefix for surface
	// files, distinct from the single named SurfaceFile above.
	SurfacesPath string
}

func newModel() *Model {
	return &Model{
		TraitPositions:        NewRangeSet(),
		MarkerAlleleFrequency: NewRangeSet(),
		DiseaseGeneFrequency:  NewRangeSet(),
		DPrime:                NewRangeSet(),
		Theta:                 NewRangeSet(),
		Alpha:                 NewRangeSet(),
		Penetrance:            NewRangeSet(),
		Mean:                  NewRangeSet(),
		StandardDev:           NewRangeSet(),
		DegreesOfFreedom:      NewRangeSet(),
		Threshold:             NewRangeSet(),
		Truncate:              NewRangeSet(),
		PhenoCodes:            NewRangeSet(),
	}
}
