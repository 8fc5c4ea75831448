// Package parentalpair enumerates, per nuclear family and locus, the
// parent-genotype pairs compatible with every child, together with
// each child's shadow list of compatible genotypes and the per-genotype
// parent-of-origin inheritance pattern.
package parentalpair

import (
	"github.com/mathmed/kelvin/allele"
	"github.com/mathmed/kelvin/pedigree"
)

// Pattern packs a child genotype's two 2-bit inheritance flags (father
// side, mother side) as produced by match.
type Pattern struct {
	FromFather pedigree.Inheritance
	FromMother pedigree.Inheritance
}

// ChildEntry is one compatible genotype for a child under a fixed
// parental pair, plus the inheritance pattern it was admitted under.
type ChildEntry struct {
	Genotype *pedigree.Genotype
	Pattern  Pattern
}

// Pair is one parental-pair candidate: a head genotype, a spouse
// genotype, and the per-child shadow lists they admit.
type Pair struct {
	Head, Spouse *pedigree.Genotype
	// Children[i] holds family.Children[i]'s compatible genotypes under
	// this pair.
	Children [][]ChildEntry
	// Phase records which side(s) were phase-swapped relative to the
	// first pair in GroupID: bit 0 = head swapped, bit 1 = spouse
	// swapped.
	Phase int
	// GroupID is shared by every phase variant of the same underlying
	// (head, spouse) dual-pair combination; related pairs are
	// contiguous in BuildPairs's output.
	GroupID int
}

// BuildPairs enumerates parental pairs for one nuclear family and
// locus, iterating outer over the family's head parent and inner over
// the spouse, in list order. A pair is emitted only if every child has
// at least one compatible genotype; phase variants of the same pair
// (head and/or spouse unphased with a Dual partner) are emitted as a
// contiguous run sharing GroupID.
func BuildPairs(ped *pedigree.Pedigree, family *pedigree.NuclearFamily, locus int) []Pair {
	head := ped.Persons[family.Head]
	spouse := ped.Persons[family.Spouse]
	headIsFather := head.Sex == pedigree.SexMale

	var pairs []Pair
	groupID := 0
	for hg := head.Genotypes[locus]; hg != nil; hg = hg.Next {
		for sg := spouse.Genotypes[locus]; sg != nil; sg = sg.Next {
			variants := phaseVariants(hg, sg)
			emittedAny := false
			for _, v := range variants {
				children, ok := shadowChildren(ped, family, locus, v.head, v.spouse, headIsFather)
				if !ok {
					continue
				}
				pairs = append(pairs, Pair{
					Head:     v.head,
					Spouse:   v.spouse,
					Children: children,
					Phase:    v.phase,
					GroupID:  groupID,
				})
				emittedAny = true
			}
			if emittedAny {
				groupID++
			}
		}
	}
	return pairs
}

type phaseVariant struct {
	head, spouse *pedigree.Genotype
	phase        int
}

// phaseVariants returns every phase combination of hg and sg: each
// genotype contributes itself, plus its Dual partner if one exists.
func phaseVariants(hg, sg *pedigree.Genotype) []phaseVariant {
	heads := []struct {
		g    *pedigree.Genotype
		flag int
	}{{hg, 0}}
	if hg.Dual != nil {
		heads = append(heads, struct {
			g    *pedigree.Genotype
			flag int
		}{hg.Dual, 1})
	}
	spouses := []struct {
		g    *pedigree.Genotype
		flag int
	}{{sg, 0}}
	if sg.Dual != nil {
		spouses = append(spouses, struct {
			g    *pedigree.Genotype
			flag int
		}{sg.Dual, 2})
	}
	var out []phaseVariant
	for _, h := range heads {
		for _, s := range spouses {
			out = append(out, phaseVariant{head: h.g, spouse: s.g, phase: h.flag | s.flag})
		}
	}
	return out
}

// shadowChildren builds, for every child, the list of genotypes
// compatible with the fixed (headG, spouseG) pair. ok is false if any
// child's shadow list would be empty, in which case the pair must be
// discarded.
func shadowChildren(ped *pedigree.Pedigree, family *pedigree.NuclearFamily, locus int, headG, spouseG *pedigree.Genotype, headIsFather bool) ([][]ChildEntry, bool) {
	fatherG, motherG := headG, spouseG
	if !headIsFather {
		fatherG, motherG = spouseG, headG
	}
	children := make([][]ChildEntry, len(family.Children))
	for i, childID := range family.Children {
		child := ped.Persons[childID]
		childIsMale := child.Sex == pedigree.SexMale
		var entries []ChildEntry
		for cg := child.Genotypes[locus]; cg != nil; cg = cg.Next {
			fatherPattern, fatherOK := match(fatherG, cg.PaternalMask, true, childIsMale)
			motherPattern, motherOK := match(motherG, cg.MaternalMask, false, childIsMale)
			if fatherOK && motherOK {
				entries = append(entries, ChildEntry{
					Genotype: cg,
					Pattern:  Pattern{FromFather: fatherPattern, FromMother: motherPattern},
				})
			}
		}
		if len(entries) == 0 {
			return nil, false
		}
		children[i] = entries
	}
	return children, true
}

// match reports whether the parent genotype could have produced side
// (the child's allele mask inherited from this parent) and, if so,
// which of the parent's two homologs is consistent. Father-to-son
// transmission is matched like any other; no locus is treated as
// X-linked.
func match(parentG *pedigree.Genotype, side []uint64, parentIsFather, childIsMale bool) (pedigree.Inheritance, bool) {
	fromPaternal := allele.Subset(parentG.PaternalMask, side)
	fromMaternal := allele.Subset(parentG.MaternalMask, side)
	switch {
	case fromPaternal && fromMaternal:
		return pedigree.InheritEither, true
	case fromPaternal:
		return pedigree.InheritPaternal, true
	case fromMaternal:
		return pedigree.InheritMaternal, true
	default:
		return pedigree.InheritNone, false
	}
}
