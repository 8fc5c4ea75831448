package pedigree

import "github.com/mathmed/kelvin/allele"

// recodeState accumulates the transmitted/non-transmitted masks built
// up during the depth-first descent of Recode.
type recodeState struct {
	transmitted    map[int][]uint64 // personID -> mask
	nonTransmitted map[int][]uint64
	nAlleles       int
}

// Recode runs the allele-set recoding pass for a single locus (locusIdx
// into ped's per-person Genotypes slices): it partitions each person's
// never-transmitted alleles into a single super-allele so that marker
// loci with many rare alleles collapse to a tractable set. Transmission
// to every child is counted, sons included; no locus is treated as
// X-linked. Recode mutates genotype masks in
// place and may create new super-allele sets in locusTable; a caller
// working with loop-breakers is expected to re-run it once the
// loop-breaker genotypes have been fixed.
func Recode(ped *Pedigree, locusTable *allele.Locus, locusIdx int) error {
	st := &recodeState{
		transmitted:    make(map[int][]uint64),
		nonTransmitted: make(map[int][]uint64),
		nAlleles:       locusTable.NAlleles,
	}
	chunks := (locusTable.NAlleles + 63) / 64
	for id, p := range ped.Persons {
		st.transmitted[id] = make([]uint64, chunks)
		nt := make([]uint64, chunks)
		for g := p.Genotypes[locusIdx]; g != nil; g = g.Next {
			nt = allele.Union(nt, allele.Union(g.PaternalMask, g.MaternalMask))
		}
		st.nonTransmitted[id] = nt
	}

	visited := make(map[int]bool)
	for _, id := range ped.Founders {
		visitRecode(ped, st, id, locusIdx, visited)
	}
	for id, p := range ped.Persons {
		if !visited[id] && isUntyped(p, locusIdx) {
			visitRecode(ped, st, id, locusIdx, visited)
		}
	}

	// For every person whose non-transmitted mask carries more than one
	// bit, locate or create a super-allele set and rewrite matching
	// genotypes.
	for id, p := range ped.Persons {
		mask := st.nonTransmitted[id]
		if allele.Count(mask) <= 1 {
			continue
		}
		set, _ := locusTable.FindOrCreate(mask)
		rewriteGenotypes(p, locusIdx, mask, set)
		dedupGenotypes(p, locusIdx)
	}
	return nil
}

func isUntyped(p *Person, locusIdx int) bool {
	return locusIdx >= len(p.Typed) || !p.Typed[locusIdx]
}

// visitRecode performs the depth-first descent that accumulates the
// transmitted/non-transmitted masks contributed by the subtree rooted
// at personID.
func visitRecode(ped *Pedigree, st *recodeState, personID, locusIdx int, visited map[int]bool) {
	visited[personID] = true
	person := ped.Persons[personID]
	childID := person.FirstChildID
	for childID != 0 {
		child := ped.Persons[childID]
		if isUntyped(child, locusIdx) {
			visitRecode(ped, st, childID, locusIdx, visited)
			childTransmitted := st.transmitted[childID]
			childNonTransmitted := st.nonTransmitted[childID]
			st.nonTransmitted[personID] = allele.Intersect(st.nonTransmitted[personID], childNonTransmitted)
			st.transmitted[personID] = allele.Union(st.transmitted[personID], childTransmitted)
		} else {
			side := parentOfOriginMask(ped, personID, childID, child, locusIdx)
			st.transmitted[personID] = allele.Union(st.transmitted[personID], side)
			comp := allele.Complement(side, st.nAlleles)
			st.nonTransmitted[personID] = allele.Intersect(st.nonTransmitted[personID], comp)
		}
		childID = sibOf(ped, childID)
	}
}

func isFather(ped *Pedigree, personID, childID int) bool {
	child := ped.Persons[childID]
	return child.FatherID == personID
}

func sibOf(ped *Pedigree, personID int) int {
	return ped.Persons[personID].NextSibID
}

// parentOfOriginMask returns the bitmask of the allele child received
// from the given parent at locusIdx, derived from the child's phased
// genotype.
func parentOfOriginMask(ped *Pedigree, parentID, childID int, child *Person, locusIdx int) []uint64 {
	g := child.Genotypes[locusIdx]
	if g == nil {
		return nil
	}
	if child.FatherID == parentID {
		return g.PaternalMask
	}
	return g.MaternalMask
}

func rewriteGenotypes(p *Person, locusIdx int, mask []uint64, set *allele.Set) {
	for g := p.Genotypes[locusIdx]; g != nil; g = g.Next {
		if allele.Equal(g.PaternalMask, mask) {
			g.PaternalMask = set.Mask
		}
		if allele.Equal(g.MaternalMask, mask) {
			g.MaternalMask = set.Mask
		}
	}
}

func dedupGenotypes(p *Person, locusIdx int) {
	var kept []*Genotype
	seen := make(map[[2]int]bool)
	for g := p.Genotypes[locusIdx]; g != nil; g = g.Next {
		key := [2]int{g.Paternal, g.Maternal}
		if seen[key] {
			continue
		}
		seen[key] = true
		kept = append(kept, g)
	}
	for i := 0; i < len(kept); i++ {
		if i+1 < len(kept) {
			kept[i].Next = kept[i+1]
		} else {
			kept[i].Next = nil
		}
	}
	if len(kept) > 0 {
		p.Genotypes[locusIdx] = kept[0]
		p.GenotypeCount[locusIdx] = len(kept)
	}
}
