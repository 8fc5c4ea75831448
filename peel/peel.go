// Package peel implements the peeling engine: it drives a depth-first
// traversal of a pedigree's nuclear families toward a designated
// proband, accumulating conditional likelihoods over multi-locus
// genotypes in each person's conditional-likelihood table.
package peel

import (
	"sync"

	"github.com/grailbio/base/log"
	"github.com/pkg/errors"

	"github.com/mathmed/kelvin/parentalpair"
	"github.com/mathmed/kelvin/pedigree"
	"github.com/mathmed/kelvin/transmission"
)

// ErrNoProbandFamily is returned when the pedigree's ProbandFamilyID
// does not name a family in the pedigree.
var ErrNoProbandFamily = errors.New("peel: pedigree has no proband family")

const noFamily = -1

type context struct {
	ped     *pedigree.Pedigree
	subList *pedigree.SubLocusList
	tensor  *transmission.Tensor
	pos     map[int]map[int]map[*pedigree.Genotype]int // personID -> locus -> genotype -> position
	// infeasibleOnce guards the single infeasibility warning logged per
	// Peel call, no matter how many families hit an empty parental-pair
	// list.
	infeasibleOnce sync.Once
}

// Peel computes the pedigree's likelihood for the given sub-list.
// Fathers transmit using tensor's male-map column, mothers its
// female-map column (identical columns for an analysis with no
// sex-specific map). It mutates every person's Touched flag and
// CondTable.
func Peel(ped *pedigree.Pedigree, subList *pedigree.SubLocusList, tensor *transmission.Tensor) (float64, error) {
	fam := ped.FamilyByID(ped.ProbandFamilyID)
	if fam == nil {
		return 0, ErrNoProbandFamily
	}
	c := &context{ped: ped, subList: subList, tensor: tensor}
	c.reset()
	if err := c.peelFamily(fam, ped.ProbandID, noFamily); err != nil {
		return 0, err
	}
	proband := ped.Persons[ped.ProbandID]
	total := 0.0
	for _, e := range proband.CondTable.Entries {
		w := e.Weight
		if w == 0 {
			w = 1
		}
		total += e.Likelihood * w
	}
	ped.Likelihood = total
	return total, nil
}

// reset zeroes every person's Touched flag and conditional table
// (sized to that person's own genotype-count product over subList),
// every family's Peeled flag, and rebuilds the genotype-position
// index used to flatten multi-locus choices into CondTable indices.
func (c *context) reset() {
	c.pos = make(map[int]map[int]map[*pedigree.Genotype]int, len(c.ped.Persons))
	for id, p := range c.ped.Persons {
		p.Touched = false
		counts := make([]int, len(c.subList.Entries))
		locusPos := make(map[int]map[*pedigree.Genotype]int, len(c.subList.Entries))
		for i, e := range c.subList.Entries {
			counts[i] = p.GenotypeCount[e.LocusIndex]
			m := make(map[*pedigree.Genotype]int, counts[i])
			j := 0
			for g := p.Genotypes[e.LocusIndex]; g != nil; g = g.Next {
				m[g] = j
				j++
			}
			locusPos[e.LocusIndex] = m
		}
		c.pos[id] = locusPos
		total := 1
		for _, n := range counts {
			total *= n
		}
		p.CondTable.ComputeStrides(counts)
		p.CondTable.Reset(total)
	}
	for _, f := range c.ped.Families {
		f.Peeled = false
	}
}

func isFounder(ped *pedigree.Pedigree, personID int) bool {
	p := ped.Persons[personID]
	return p.FatherID == 0 && p.MotherID == 0
}

// peelFamily marks fam visited, recurses into every not-yet-visited
// connector family before computing fam's own contribution, and
// reports fam's open person's value into openID's conditional table.
// cameFromFamilyID prevents recursing back the way we arrived.
func (c *context) peelFamily(fam *pedigree.NuclearFamily, openID, cameFromFamilyID int) error {
	fam.Peeled = true
	for _, conn := range fam.Connectors {
		if conn.FamilyID == cameFromFamilyID {
			continue
		}
		neighbor := c.ped.FamilyByID(conn.FamilyID)
		if neighbor == nil || neighbor.Peeled {
			continue
		}
		if err := c.peelFamily(neighbor, conn.PersonID, fam.ID); err != nil {
			return err
		}
	}
	return c.computeFamily(fam, openID)
}

// computeFamily enumerates, per locus in the sub-list, the compatible
// parental pairs of fam, combines them across loci, and folds each
// combination's contribution into openID's conditional table.
func (c *context) computeFamily(fam *pedigree.NuclearFamily, openID int) error {
	entries := c.subList.Entries
	perLocus := make([][]parentalpair.Pair, len(entries))
	for i, e := range entries {
		perLocus[i] = parentalpair.BuildPairs(c.ped, fam, e.LocusIndex)
		if len(perLocus[i]) == 0 {
			// Infeasible at this locus: no parental pair survives, so
			// this family contributes nothing; its entries stay at
			// their reset zero value.
			c.infeasibleOnce.Do(func() {
				log.Error.Printf("peel: pedigree %s family %d locus %d has no compatible parental pair", c.ped.ID, fam.ID, e.LocusIndex)
			})
			return nil
		}
	}

	head := c.ped.Persons[fam.Head]
	spouse := c.ped.Persons[fam.Spouse]
	wasHeadTouched := head.Touched
	wasSpouseTouched := spouse.Touched

	combo := make([]parentalpair.Pair, len(entries))
	var rec func(locus int) error
	rec = func(locus int) error {
		if locus == len(entries) {
			return c.foldCombo(fam, openID, head, spouse, combo)
		}
		for _, pair := range perLocus[locus] {
			combo[locus] = pair
			if err := rec(locus + 1); err != nil {
				return err
			}
		}
		return nil
	}
	if err := rec(0); err != nil {
		return err
	}

	if !wasHeadTouched {
		head.Touched = true
	}
	if !wasSpouseTouched {
		spouse.Touched = true
	}
	return nil
}

// foldCombo computes one fully-resolved per-locus parental pair
// combination's contribution and adds it into openID's conditional
// table at the index implied by its role (head, spouse, or one child).
func (c *context) foldCombo(fam *pedigree.NuclearFamily, openID int, head, spouse *pedigree.Person, combo []parentalpair.Pair) error {
	headGenos := make([]*pedigree.Genotype, len(combo))
	spouseGenos := make([]*pedigree.Genotype, len(combo))
	for i, p := range combo {
		headGenos[i] = p.Head
		spouseGenos[i] = p.Spouse
	}
	parentFactor := c.personFactor(head, headGenos) * c.personFactor(spouse, spouseGenos)
	if parentFactor == 0 {
		return nil
	}

	openChildIdx := -1
	for i, childID := range fam.Children {
		if childID == openID {
			openChildIdx = i
			break
		}
	}

	total := parentFactor
	for i, childID := range fam.Children {
		if i == openChildIdx {
			continue
		}
		candidates := perChildCandidates(combo, i)
		total *= c.childSum(c.ped.Persons[childID], candidates)
	}

	switch {
	case openID == head.ID:
		idx := c.flatIndex(head, headGenos)
		head.CondTable.Entries[idx].Likelihood += total
	case openID == spouse.ID:
		idx := c.flatIndex(spouse, spouseGenos)
		spouse.CondTable.Entries[idx].Likelihood += total
	case openChildIdx >= 0:
		child := c.ped.Persons[fam.Children[openChildIdx]]
		candidates := perChildCandidates(combo, openChildIdx)
		c.distributeChildCombos(child, candidates, total)
	}
	return nil
}

func perChildCandidates(combo []parentalpair.Pair, childIdx int) [][]parentalpair.ChildEntry {
	out := make([][]parentalpair.ChildEntry, len(combo))
	for i, p := range combo {
		out[i] = p.Children[childIdx]
	}
	return out
}

// personFactor is the founder-weight/penetrance factor for a parent
// not yet touched this peel, or its already-stored conditional value
// if it has been touched (by an earlier visit where it was the open
// person of its own sub-family).
func (c *context) personFactor(p *pedigree.Person, genotypes []*pedigree.Genotype) float64 {
	idx := c.flatIndex(p, genotypes)
	if p.Touched {
		e := p.CondTable.Entries[idx]
		w := e.Weight
		if w == 0 {
			w = 1
		}
		return e.Likelihood * w
	}
	weight := 1.0
	if isFounder(c.ped, p.ID) {
		weight = c.founderWeight(genotypes)
	}
	pen := 1.0
	for _, g := range genotypes {
		if g.Penetrance != 0 {
			pen *= g.Penetrance
		}
	}
	if p.ID == c.ped.ProbandID {
		p.CondTable.Entries[idx].Weight = weight
	}
	return weight * pen
}

// founderWeight is a founder's probability of carrying genotypes, one
// per sub-list locus in order. For a pair of adjacent loci carrying a
// linkage-disequilibrium block on the parent locus list, the pair's
// two-locus haplotype frequency (one factor per homolog) replaces the
// independent per-locus allele-frequency product; every other locus
// falls back to its own Weight.
func (c *context) founderWeight(genotypes []*pedigree.Genotype) float64 {
	loci := c.subList.Parent
	weight := 1.0
	consumed := make([]bool, len(genotypes))
	if loci != nil {
		entries := c.subList.Entries
		for i := 0; i+1 < len(genotypes); i++ {
			if consumed[i] {
				continue
			}
			block := loci.Lookup(entries[i].LocusIndex, entries[i+1].LocusIndex)
			if block == nil {
				continue
			}
			g0, g1 := genotypes[i], genotypes[i+1]
			weight *= haploFreq(block, g0.Paternal, g1.Paternal) * haploFreq(block, g0.Maternal, g1.Maternal)
			consumed[i], consumed[i+1] = true, true
		}
	}
	for i, g := range genotypes {
		if !consumed[i] {
			weight *= g.Weight
		}
	}
	return weight
}

// haploFreq returns block's frequency for the haplotype carrying
// allele a at LocusA and allele b at LocusB; out-of-range alleles
// contribute zero rather than panicking.
func haploFreq(block *pedigree.DiseqBlock, a, b int) float64 {
	i, j := a-1, b-1
	if i < 0 || i >= len(block.HaploFreq) || j < 0 || j >= len(block.HaploFreq[i]) {
		return 0
	}
	return block.HaploFreq[i][j]
}

// childSum sums transmission-weighted factors across every compatible
// multi-locus genotype of an un-open child.
func (c *context) childSum(child *pedigree.Person, candidates [][]parentalpair.ChildEntry) float64 {
	total := 0.0
	c.walkChildCombos(child, candidates, func(genotypes []*pedigree.Genotype, term float64) {
		total += term
	})
	return total
}

// distributeChildCombos adds multiplier*term into the open child's
// conditional table at each of its compatible multi-locus genotypes.
func (c *context) distributeChildCombos(child *pedigree.Person, candidates [][]parentalpair.ChildEntry, multiplier float64) {
	c.walkChildCombos(child, candidates, func(genotypes []*pedigree.Genotype, term float64) {
		idx := c.flatIndex(child, genotypes)
		child.CondTable.Entries[idx].Likelihood += multiplier * term
	})
}

// walkChildCombos enumerates every combination of per-locus compatible
// genotypes for a child and invokes visit with that combination's
// transmission-weighted factor.
func (c *context) walkChildCombos(child *pedigree.Person, candidates [][]parentalpair.ChildEntry, visit func(genotypes []*pedigree.Genotype, term float64)) {
	L := len(candidates)
	genotypes := make([]*pedigree.Genotype, L)
	fatherPatterns := make([]pedigree.Inheritance, L)
	motherPatterns := make([]pedigree.Inheritance, L)

	var rec func(i int)
	rec = func(i int) {
		if i == L {
			term := c.transmissionProb(fatherPatterns, motherPatterns) * c.childOwnFactor(child, genotypes)
			visit(genotypes, term)
			return
		}
		for _, ce := range candidates[i] {
			genotypes[i] = ce.Genotype
			fatherPatterns[i] = ce.Pattern.FromFather
			motherPatterns[i] = ce.Pattern.FromMother
			rec(i + 1)
		}
	}
	rec(0)
}

// childOwnFactor is the stored conditional value if the child has
// already been touched (as the open person of its own downstream
// family), or its per-locus trait penetrance otherwise.
func (c *context) childOwnFactor(child *pedigree.Person, genotypes []*pedigree.Genotype) float64 {
	if child.Touched {
		idx := c.flatIndex(child, genotypes)
		return child.CondTable.Entries[idx].Likelihood
	}
	pen := 1.0
	for _, g := range genotypes {
		if g.Penetrance != 0 {
			pen *= g.Penetrance
		}
	}
	return pen
}

// transmissionProb packs each side's per-locus inheritance pattern
// into a 2-bit-per-locus code and looks it up in the tensor's
// matching map-flavor column: male for the father's transmission,
// female for the mother's.
func (c *context) transmissionProb(fatherPatterns, motherPatterns []pedigree.Inheritance) float64 {
	fatherProb := c.tensor.LookupFlavor(packCode(fatherPatterns), transmission.FlavorMale)
	motherProb := c.tensor.LookupFlavor(packCode(motherPatterns), transmission.FlavorFemale)
	return fatherProb * motherProb
}

func packCode(patterns []pedigree.Inheritance) uint64 {
	code := uint64(0)
	for _, p := range patterns {
		var bits uint64
		switch p {
		case pedigree.InheritPaternal:
			bits = uint64(transmission.PatternPaternal)
		case pedigree.InheritMaternal:
			bits = uint64(transmission.PatternMaternal)
		default:
			bits = uint64(transmission.PatternBoth)
		}
		code = (code << 2) | bits
	}
	return code
}

func (c *context) flatIndex(p *pedigree.Person, genotypes []*pedigree.Genotype) int {
	idx := make([]int, len(genotypes))
	for i, g := range genotypes {
		locus := c.subList.Entries[i].LocusIndex
		idx[i] = c.pos[p.ID][locus][g]
	}
	return p.CondTable.Index(idx)
}
