// Package pedigree implements the core data model: the person/nuclear
// family/pedigree forest, the locus and sub-locus lists, trait loci, and
// per-person conditional-likelihood tables.
//
// Persons, families, and pedigrees are arena-indexed by integer ID
// rather than linked by pointer, since the person graph is cyclic in
// the presence of marriage loops (loop-breaker duplicates share an
// original ID but are themselves distinct records).
package pedigree

import "github.com/mathmed/kelvin/allele"

// Inheritance is the 2-bit "which parental allele may have been
// transmitted" flag carried by a phased genotype.
type Inheritance uint8

const (
	// InheritNone is never produced by elimination; during traversal it
	// is treated as InheritEither for symmetry.
	InheritNone    Inheritance = 0
	InheritPaternal Inheritance = 1
	InheritMaternal Inheritance = 2
	InheritEither   Inheritance = 3
)

// Sex of a person.
type Sex int

const (
	SexUnknown Sex = iota
	SexMale
	SexFemale
)

// Genotype is an ordered, phased pair of alleles at one locus.
type Genotype struct {
	// Paternal and Maternal are original allele numbers (1..N).
	Paternal, Maternal int
	// PaternalMask and MaternalMask are the allele-set bitmasks of the
	// (possibly recoded) alleles on each homolog.
	PaternalMask, MaternalMask []uint64
	// InheritFromFather/InheritFromMother record, for each parental
	// homolog, which of *that parent's* two alleles may have produced
	// this genotype's allele on this side.
	InheritFromFather Inheritance
	InheritFromMother Inheritance

	// Weight is the product of allele frequencies for founders, 1
	// otherwise.
	Weight float64
	// Penetrance is set only at trait loci.
	Penetrance float64

	// Next links the singly-linked per-person, per-locus genotype list.
	Next *Genotype
	// Shadow is the companion link used by parental-pair construction
	// (C3) to build per-child compatible-genotype lists without
	// mutating the primary list.
	Shadow *Genotype
	// Dual links an unphased genotype to its phase-swapped partner; nil
	// for genotypes known to be phased.
	Dual *Genotype
}

// LiabilityClass is a 1-based index selecting a per-class penetrance
// table; 0 means "not set" (single liability class).
type LiabilityClass int

// Person is one pedigree member. Loop-breaker duplicates are distinct
// Person records that share OriginalID.
type Person struct {
	ID   int
	Name string
	Sex  Sex

	// FatherID/MotherID are 0 for founders.
	FatherID, MotherID int
	// FirstChildID and NextSibID let the pedigree be traversed as a
	// forest without per-parent child slices.
	FirstChildID int
	NextSibID    int

	// LoopBreaker is 0 for a regular person, or k>=1 if this record is
	// one of the duplicates standing in for original individual k.
	LoopBreaker int
	// OriginalID is set on every duplicate (LoopBreaker != 0) and
	// refers back to the Person holding the real ancestry/genotype
	// list; 0 otherwise.
	OriginalID int

	// Per-locus fields, indexed in locus-list order.
	Phenotype      []PhenotypePair
	Typed          []bool
	Phased         []bool
	TraitKnown     []bool
	TraitValue     []float64
	Liability      []LiabilityClass
	Genotypes      []*Genotype
	GenotypeCount  []int
	savedGenotypes []*Genotype // snapshot for loop-breaker restore
	savedCount     []int

	// CondTable is the multi-locus conditional-likelihood table for the
	// current analysis sub-list; recomputed in place, not reallocated,
	// once per pedigree per sub-list.
	CondTable CondTable
	// Touched records whether this person's founder weight/penetrance
	// has already been absorbed into CondTable during the current peel.
	Touched bool
}

// PhenotypePair is the observed (possibly unordered) phenotype.
type PhenotypePair struct {
	A, B int
}

// SnapshotGenotypes saves the current per-locus genotype lists so they
// can be restored between loop-breaker configurations.
func (p *Person) SnapshotGenotypes() {
	p.savedGenotypes = append([]*Genotype(nil), p.Genotypes...)
	p.savedCount = append([]int(nil), p.GenotypeCount...)
}

// RestoreGenotypes undoes any destructive elimination since the last
// SnapshotGenotypes call.
func (p *Person) RestoreGenotypes() {
	p.Genotypes = append([]*Genotype(nil), p.savedGenotypes...)
	p.GenotypeCount = append([]int(nil), p.savedCount...)
}

// Connector names a person who belongs to a second nuclear family,
// tagging that family as encountered going "up" (this family's parent
// is a child there) or "down" (this family's child is a parent there).
type ConnectorDir int

const (
	DirUp ConnectorDir = iota
	DirDown
)

type Connector struct {
	PersonID int
	FamilyID int
	Dir      ConnectorDir
}

// NuclearFamily is two parents, their children, and the connectors
// that link this family to the rest of the pedigree.
type NuclearFamily struct {
	ID int
	// Head and Spouse are person IDs; Head is the peeling proband when
	// the proband is a parent.
	Head, Spouse int
	Children     []int
	Connectors   []Connector
	// Peeled records whether this family has already contributed in
	// the current traversal (each family peels at most once).
	Peeled bool
}

// Pedigree is a forest of nuclear families over an indexed set of
// persons.
type Pedigree struct {
	ID        string
	Persons   map[int]*Person
	Families  []*NuclearFamily
	Founders  []int
	LoopCount int

	// ProbandID and ProbandFamilyID designate the peeling fixed point.
	ProbandID       int
	ProbandFamilyID int
	// Direction is DirDown when the traversal starts by descending from
	// ProbandFamilyID toward ProbandID.
	Direction ConnectorDir

	// Likelihood is the per-sub-locus scalar result of the most recent
	// peel (or loop-breaker total).
	Likelihood float64
}

// FamilyByID returns the family with the given ID, or nil.
func (p *Pedigree) FamilyByID(id int) *NuclearFamily {
	for _, f := range p.Families {
		if f.ID == id {
			return f
		}
	}
	return nil
}

// Locus describes one entry of the original locus list: its allele
// table and whether it is a trait or a marker.
type LocusType int

const (
	LocusMarker LocusType = iota
	LocusTrait
)

type Locus struct {
	Name  string
	Type  LocusType
	Table *allele.Locus
	Trait *TraitLocus // non-nil iff Type == LocusTrait
}

// DiseqBlock is the linkage-disequilibrium parameter block between a
// pair of loci: the D-prime matrix and the haplotype-frequency matrix,
// both indexed [allele_i][allele_j].
type DiseqBlock struct {
	LocusA, LocusB int
	DPrime         [][]float64
	HaploFreq      [][]float64
}

// LocusList is the original, as-read list of loci plus pairwise LD
// blocks between them.
type LocusList struct {
	Loci   []*Locus
	Diseq  map[[2]int]*DiseqBlock
}

func NewLocusList() *LocusList {
	return &LocusList{Diseq: make(map[[2]int]*DiseqBlock)}
}

func (l *LocusList) AddDiseq(b *DiseqBlock) {
	l.Diseq[[2]int{b.LocusA, b.LocusB}] = b
}

func (l *LocusList) Lookup(a, b int) *DiseqBlock {
	return l.Diseq[[2]int{a, b}]
}

// SubLocusEntry is one entry of an analysis sub-list: the locus index
// into LocusList.Loci, plus recombination distances to the previous
// and next entry (sex-averaged, male, female).
type SubLocusEntry struct {
	LocusIndex int
	// ThetaPrev/ThetaNext are [3]float64 indexed by MapFlavor
	// (sex-averaged=0, male=1, female=2); the first entry's ThetaPrev
	// and the last entry's ThetaNext are unused.
	ThetaPrev [3]float64
	ThetaNext [3]float64
}

// SubLocusList is an analysis-time ordered selection of loci; the
// transmission tensor (C4) is built against one of these.
type SubLocusList struct {
	Parent  *LocusList
	Entries []SubLocusEntry
}

func (s *SubLocusList) Len() int { return len(s.Entries) }

// TraitType distinguishes dichotomous, quantitative, and combined
// trait models.
type TraitType int

const (
	TraitDichotomous TraitType = iota
	TraitQuantitative
	TraitCombined
)

// QuantitativeDistribution selects the density used for a QT trait.
type QuantitativeDistribution int

const (
	DistNormal QuantitativeDistribution = iota
	DistNonCentralT
)

// TraitLocus carries one or more traits at a locus.
type TraitLocus struct {
	Traits []Trait
}

type Trait struct {
	Type             TraitType
	LiabilityClasses int

	// Dichotomous: Penetrance[status][class][alleleA][alleleB], symmetric
	// in the two alleles.
	Penetrance [][][][]float64

	// Quantitative: Mean/StdDev[class][genotypeClass] plus distribution
	// parameters.
	Mean, StdDev     [][]float64
	Distribution     QuantitativeDistribution
	DegreesOfFreedom float64
	LeftCensor       *float64
	RightCensor      *float64
}

// CondTable is a flattened multi-dimensional conditional-likelihood
// table: one entry per multi-locus genotype combination (the product
// of per-locus genotype counts across the current sub-list).
type CondTable struct {
	Entries []CondEntry
	// Strides holds the per-sub-locus stride, computed once per
	// pedigree per sub-list and cached here to avoid recomputing on
	// every indexed access.
	Strides []int
}

type CondEntry struct {
	Likelihood     float64
	Weight         float64
	Touched        bool
	TempLikelihood float64
	TempTouched    bool
}

// Reset grows Entries to at least n and clears every slot, without
// ever shrinking the backing array.
func (c *CondTable) Reset(n int) {
	if cap(c.Entries) < n {
		c.Entries = make([]CondEntry, n)
		return
	}
	c.Entries = c.Entries[:n]
	for i := range c.Entries {
		c.Entries[i] = CondEntry{}
	}
}

// ComputeStrides sets Strides from a slice of per-locus genotype counts,
// using the standard row-major flattening (last locus varies fastest).
func (c *CondTable) ComputeStrides(counts []int) {
	c.Strides = make([]int, len(counts))
	stride := 1
	for i := len(counts) - 1; i >= 0; i-- {
		c.Strides[i] = stride
		stride *= counts[i]
	}
}

// Index flattens a per-locus genotype-index tuple using Strides.
func (c *CondTable) Index(idx []int) int {
	sum := 0
	for i, v := range idx {
		sum += v * c.Strides[i]
	}
	return sum
}
