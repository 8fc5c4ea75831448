// Package elim implements genotype elimination: four Mendelian-consistency
// filters run to a fixed point per locus per nuclear family, removing any
// genotype that cannot be part of a jointly consistent assignment across
// a nuclear family.
package elim

import (
	"github.com/pkg/errors"

	"github.com/mathmed/kelvin/allele"
	"github.com/mathmed/kelvin/pedigree"
)

// ErrInfeasible is returned (wrapped with person/locus context via
// errors.Wrapf) when a genotype list empties during elimination.
// Callers recover the sentinel with errors.Cause.
var ErrInfeasible = errors.New("elim: locus is infeasible")

// compatible reports whether parentG could have transmitted the allele
// set in childMask to a child: one of parentG's two homologs must be a
// subset of childMask, i.e. every allele that homolog carries is also
// present in the child's set. Father-to-son transmission is tested the
// same way as every other parent-child pair; no locus is treated as
// X-linked.
func compatible(parentIsFather bool, childIsMale bool, parentG *pedigree.Genotype, childMask []uint64) bool {
	return allele.Subset(parentG.PaternalMask, childMask) ||
		allele.Subset(parentG.MaternalMask, childMask)
}

// childSide returns the bitmask the child inherits from the side
// matching parentIsFather: paternal mask if parentIsFather, else
// maternal mask.
func childSide(g *pedigree.Genotype, parentIsFather bool) []uint64 {
	if parentIsFather {
		return g.PaternalMask
	}
	return g.MaternalMask
}

// Eliminate runs the four consistency filters to a fixed point for a
// single (family, locus) pair. It mutates the person
// genotype lists referenced by fam and ped. changed reports whether any
// pass removed a genotype (used by the loop-breaker driver and by the
// idempotence property test).
func Eliminate(ped *pedigree.Pedigree, fam *pedigree.NuclearFamily, locus int) (changed bool, err error) {
	for {
		pass := false
		var did bool
		if did, err = parentToChildren(ped, fam, locus); err != nil {
			return changed, err
		}
		pass = pass || did
		if did, err = childToParents(ped, fam, locus); err != nil {
			return changed, err
		}
		pass = pass || did
		if did, err = parentToSpouseChildren(ped, fam, locus); err != nil {
			return changed, err
		}
		pass = pass || did
		if did, err = childToSiblingsParents(ped, fam, locus); err != nil {
			return changed, err
		}
		pass = pass || did
		changed = changed || pass
		if !pass {
			return changed, nil
		}
	}
}

func genotypes(ped *pedigree.Pedigree, personID, locus int) []*pedigree.Genotype {
	p := ped.Persons[personID]
	var out []*pedigree.Genotype
	for g := p.Genotypes[locus]; g != nil; g = g.Next {
		out = append(out, g)
	}
	return out
}

func setGenotypes(ped *pedigree.Pedigree, personID, locus int, list []*pedigree.Genotype) error {
	p := ped.Persons[personID]
	if len(list) == 0 {
		return errors.Wrapf(ErrInfeasible, "person %d locus %d", personID, locus)
	}
	for i := 0; i+1 < len(list); i++ {
		list[i].Next = list[i+1]
	}
	list[len(list)-1].Next = nil
	p.Genotypes[locus] = list[0]
	p.GenotypeCount[locus] = len(list)
	return nil
}

// filter 1: parent -> children. Drop a parent genotype if some child
// has no genotype compatible with it.
func parentToChildren(ped *pedigree.Pedigree, fam *pedigree.NuclearFamily, locus int) (bool, error) {
	changed := false
	for _, parentID := range []int{fam.Head, fam.Spouse} {
		isFather := ped.Persons[parentID].Sex == pedigree.SexMale
		var kept []*pedigree.Genotype
		for _, pg := range genotypes(ped, parentID, locus) {
			ok := true
			for _, childID := range fam.Children {
				childIsMale := ped.Persons[childID].Sex == pedigree.SexMale
				any := false
				for _, cg := range genotypes(ped, childID, locus) {
					if compatible(isFather, childIsMale, pg, childSide(cg, isFather)) {
						any = true
						break
					}
				}
				if !any {
					ok = false
					break
				}
			}
			if ok {
				kept = append(kept, pg)
			} else {
				changed = true
			}
		}
		if changed {
			if err := setGenotypes(ped, parentID, locus, kept); err != nil {
				return changed, err
			}
		}
	}
	return changed, nil
}

// filter 2: child -> both parents. Drop a child genotype if no pair of
// parent genotypes is jointly compatible.
func childToParents(ped *pedigree.Pedigree, fam *pedigree.NuclearFamily, locus int) (bool, error) {
	changed := false
	fatherID, motherID := fam.Head, fam.Spouse
	if ped.Persons[motherID].Sex == pedigree.SexMale {
		fatherID, motherID = motherID, fatherID
	}
	fatherGs := genotypes(ped, fatherID, locus)
	motherGs := genotypes(ped, motherID, locus)
	for _, childID := range fam.Children {
		childIsMale := ped.Persons[childID].Sex == pedigree.SexMale
		var kept []*pedigree.Genotype
		for _, cg := range genotypes(ped, childID, locus) {
			ok := false
			for _, fg := range fatherGs {
				if !compatible(true, childIsMale, fg, childSide(cg, true)) {
					continue
				}
				for _, mg := range motherGs {
					if compatible(false, childIsMale, mg, childSide(cg, false)) {
						ok = true
						break
					}
				}
				if ok {
					break
				}
			}
			if ok {
				kept = append(kept, cg)
			} else {
				changed = true
			}
		}
		if changed {
			if err := setGenotypes(ped, childID, locus, kept); err != nil {
				return changed, err
			}
		}
	}
	return changed, nil
}

// filter 3: parent -> spouse x children. Drop a parent genotype if no
// spouse genotype exists such that the pair satisfies every child.
func parentToSpouseChildren(ped *pedigree.Pedigree, fam *pedigree.NuclearFamily, locus int) (bool, error) {
	changed := false
	for _, side := range []struct{ self, spouse int }{{fam.Head, fam.Spouse}, {fam.Spouse, fam.Head}} {
		selfIsFather := ped.Persons[side.self].Sex == pedigree.SexMale
		spouseGs := genotypes(ped, side.spouse, locus)
		var kept []*pedigree.Genotype
		for _, sg := range genotypes(ped, side.self, locus) {
			ok := false
			for _, opg := range spouseGs {
				if satisfiesAllChildren(ped, fam, locus, side.self, sg, side.spouse, opg, selfIsFather) {
					ok = true
					break
				}
			}
			if ok {
				kept = append(kept, sg)
			} else {
				changed = true
			}
		}
		if changed {
			if err := setGenotypes(ped, side.self, locus, kept); err != nil {
				return changed, err
			}
		}
	}
	return changed, nil
}

func satisfiesAllChildren(ped *pedigree.Pedigree, fam *pedigree.NuclearFamily, locus, selfID int, selfG *pedigree.Genotype, spouseID int, spouseG *pedigree.Genotype, selfIsFather bool) bool {
	fatherG, motherG := selfG, spouseG
	if !selfIsFather {
		fatherG, motherG = spouseG, selfG
	}
	for _, childID := range fam.Children {
		childIsMale := ped.Persons[childID].Sex == pedigree.SexMale
		any := false
		for _, cg := range genotypes(ped, childID, locus) {
			if compatible(true, childIsMale, fatherG, childSide(cg, true)) &&
				compatible(false, childIsMale, motherG, childSide(cg, false)) {
				any = true
				break
			}
		}
		if !any {
			return false
		}
	}
	return true
}

// filter 4: child -> siblings x parents. Drop a child genotype if no
// parent pair exists that satisfies both this child and every sibling.
func childToSiblingsParents(ped *pedigree.Pedigree, fam *pedigree.NuclearFamily, locus int) (bool, error) {
	changed := false
	fatherID, motherID := fam.Head, fam.Spouse
	if ped.Persons[motherID].Sex == pedigree.SexMale {
		fatherID, motherID = motherID, fatherID
	}
	fatherGs := genotypes(ped, fatherID, locus)
	motherGs := genotypes(ped, motherID, locus)

	for _, childID := range fam.Children {
		childIsMale := ped.Persons[childID].Sex == pedigree.SexMale
		var kept []*pedigree.Genotype
		for _, cg := range genotypes(ped, childID, locus) {
			ok := false
			for _, fg := range fatherGs {
				if !compatible(true, childIsMale, fg, childSide(cg, true)) {
					continue
				}
				for _, mg := range motherGs {
					if !compatible(false, childIsMale, mg, childSide(cg, false)) {
						continue
					}
					if allSiblingsSatisfied(ped, fam, locus, childID, fg, mg) {
						ok = true
						break
					}
				}
				if ok {
					break
				}
			}
			if ok {
				kept = append(kept, cg)
			} else {
				changed = true
			}
		}
		if changed {
			if err := setGenotypes(ped, childID, locus, kept); err != nil {
				return changed, err
			}
		}
	}
	return changed, nil
}

func allSiblingsSatisfied(ped *pedigree.Pedigree, fam *pedigree.NuclearFamily, locus, excludeID int, fatherG, motherG *pedigree.Genotype) bool {
	for _, sibID := range fam.Children {
		if sibID == excludeID {
			continue
		}
		sibIsMale := ped.Persons[sibID].Sex == pedigree.SexMale
		any := false
		for _, sg := range genotypes(ped, sibID, locus) {
			if compatible(true, sibIsMale, fatherG, childSide(sg, true)) &&
				compatible(false, sibIsMale, motherG, childSide(sg, false)) {
				any = true
				break
			}
		}
		if !any {
			return false
		}
	}
	return true
}
