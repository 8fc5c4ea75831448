// Package loopbreaker drives the combinatorial re-evaluation a
// pedigree with marriage loops requires: each loop-breaker's owning
// individual is duplicated into a second person record so the pedigree
// reduces to a forest, and the true likelihood is the sum, over every
// joint assignment of genotypes to the loop-breakers, of the
// likelihood computed with those genotypes pinned.
package loopbreaker

import (
	"encoding/binary"
	"sort"
	"sync"

	"github.com/grailbio/base/log"
	"github.com/pkg/errors"
	"github.com/spaolacci/murmur3"

	"github.com/mathmed/kelvin/elim"
	"github.com/mathmed/kelvin/peel"
	"github.com/mathmed/kelvin/pedigree"
	"github.com/mathmed/kelvin/transmission"
)

// Resolve computes the pedigree's likelihood for subList. When the
// pedigree has no loop breakers it runs peel.Peel directly; otherwise
// it enumerates every joint multi-locus genotype assignment of the
// loop-breaker originals, pinning each assignment onto every duplicate
// sharing that original before re-running elimination and peeling, and
// sums the resulting likelihoods. Genotype lists are restored to their
// pre-Resolve state between configurations and on return.
func Resolve(ped *pedigree.Pedigree, subList *pedigree.SubLocusList, tensor *transmission.Tensor) (float64, error) {
	if ped.LoopCount == 0 {
		return peel.Peel(ped, subList, tensor)
	}

	originals, duplicates := loopBreakerGroups(ped)
	for _, p := range ped.Persons {
		p.SnapshotGenotypes()
	}

	seen := make(map[uint64]bool)
	var infeasibleOnce sync.Once
	total := 0.0
	err := walkConfigurations(ped, subList, originals, func(config map[int][]*pedigree.Genotype) error {
		key := configKey(originals, config)
		if seen[key] {
			return nil
		}
		seen[key] = true

		pin(ped, subList, originals, duplicates, config)
		contribution, err := evaluateCombo(ped, subList, tensor, &infeasibleOnce)
		for _, p := range ped.Persons {
			p.RestoreGenotypes()
		}
		if err != nil {
			return err
		}
		total += contribution
		return nil
	})
	if err != nil {
		return 0, err
	}
	ped.Likelihood = total
	return total, nil
}

// evaluateCombo runs elimination to a pedigree-wide fixed point per
// locus under the currently pinned genotypes, then peels. A change in
// one family can alter a shared person's compatibility in another, so
// every family is re-tried until a full pass changes nothing. An
// infeasible configuration contributes zero rather than failing the
// whole resolve; once logs only the first infeasible configuration
// for this Resolve call, since a loop-breaker sweep can hit it many
// times.
func evaluateCombo(ped *pedigree.Pedigree, subList *pedigree.SubLocusList, tensor *transmission.Tensor, once *sync.Once) (float64, error) {
	for _, e := range subList.Entries {
		for {
			anyChanged := false
			for _, fam := range ped.Families {
				changed, err := elim.Eliminate(ped, fam, e.LocusIndex)
				if err != nil {
					if errors.Cause(err) == elim.ErrInfeasible {
						once.Do(func() {
							log.Error.Printf("loopbreaker: pedigree %s infeasible under a loop-breaker configuration: %v", ped.ID, err)
						})
						return 0, nil
					}
					return 0, err
				}
				anyChanged = anyChanged || changed
			}
			if !anyChanged {
				break
			}
		}
	}
	return peel.Peel(ped, subList, tensor)
}

// loopBreakerGroups returns the sorted IDs of every loop-breaker
// original (the person holding the real genotype list) and, for each,
// the sorted IDs of the duplicate records standing in for it
// elsewhere in the pedigree.
func loopBreakerGroups(ped *pedigree.Pedigree) ([]int, map[int][]int) {
	seen := make(map[int]bool)
	var originals []int
	duplicates := make(map[int][]int)
	for id, p := range ped.Persons {
		if p.LoopBreaker == 0 {
			continue
		}
		duplicates[p.OriginalID] = append(duplicates[p.OriginalID], id)
		if !seen[p.OriginalID] {
			seen[p.OriginalID] = true
			originals = append(originals, p.OriginalID)
		}
	}
	sort.Ints(originals)
	for k := range duplicates {
		sort.Ints(duplicates[k])
	}
	return originals, duplicates
}

// perPersonMultiLocusChoices enumerates every combination of p's
// per-locus genotypes across subList, one []Genotype per combination
// ordered to match subList.Entries.
func perPersonMultiLocusChoices(p *pedigree.Person, subList *pedigree.SubLocusList) [][]*pedigree.Genotype {
	lists := make([][]*pedigree.Genotype, len(subList.Entries))
	for i, e := range subList.Entries {
		for g := p.Genotypes[e.LocusIndex]; g != nil; g = g.Next {
			lists[i] = append(lists[i], g)
		}
	}
	var out [][]*pedigree.Genotype
	cur := make([]*pedigree.Genotype, len(lists))
	var rec func(i int)
	rec = func(i int) {
		if i == len(lists) {
			out = append(out, append([]*pedigree.Genotype(nil), cur...))
			return
		}
		for _, g := range lists[i] {
			cur[i] = g
			rec(i + 1)
		}
	}
	rec(0)
	return out
}

// walkConfigurations visits every joint assignment of multi-locus
// genotypes to the loop-breaker originals.
func walkConfigurations(ped *pedigree.Pedigree, subList *pedigree.SubLocusList, originals []int, visit func(config map[int][]*pedigree.Genotype) error) error {
	choices := make([][][]*pedigree.Genotype, len(originals))
	for i, id := range originals {
		choices[i] = perPersonMultiLocusChoices(ped.Persons[id], subList)
		if len(choices[i]) == 0 {
			return nil
		}
	}
	config := make(map[int][]*pedigree.Genotype, len(originals))
	var rec func(i int) error
	rec = func(i int) error {
		if i == len(originals) {
			return visit(config)
		}
		for _, choice := range choices[i] {
			config[originals[i]] = choice
			if err := rec(i + 1); err != nil {
				return err
			}
		}
		return nil
	}
	return rec(0)
}

// configKey hashes a configuration's content (not pointer identity) so
// that a genotype and its phase-swapped Dual, which represent the same
// unordered loop-breaker genotype, collapse to the same key instead of
// being evaluated twice.
func configKey(originals []int, config map[int][]*pedigree.Genotype) uint64 {
	buf := make([]byte, 0, 12*len(originals))
	var field [4]byte
	putInt32 := func(v int) {
		binary.BigEndian.PutUint32(field[:], uint32(v))
		buf = append(buf, field[:]...)
	}
	for _, id := range originals {
		for _, g := range config[id] {
			a, b := g.Paternal, g.Maternal
			if a > b {
				a, b = b, a
			}
			putInt32(id)
			putInt32(a)
			putInt32(b)
		}
	}
	return murmur3.Sum64(buf)
}

// pin writes config's chosen genotype onto every original and its
// duplicates, as a freshly allocated singleton list per locus so that
// no shared Next pointer leaks neighbors from the pre-pin list.
func pin(ped *pedigree.Pedigree, subList *pedigree.SubLocusList, originals []int, duplicates map[int][]int, config map[int][]*pedigree.Genotype) {
	for _, id := range originals {
		choice := config[id]
		for i, g := range choice {
			locus := subList.Entries[i].LocusIndex
			pinned := &pedigree.Genotype{
				Paternal:          g.Paternal,
				Maternal:          g.Maternal,
				PaternalMask:      g.PaternalMask,
				MaternalMask:      g.MaternalMask,
				Weight:            g.Weight,
				Penetrance:        g.Penetrance,
				InheritFromFather: g.InheritFromFather,
				InheritFromMother: g.InheritFromMother,
			}
			applyPin(ped.Persons[id], locus, pinned)
			for _, dupID := range duplicates[id] {
				applyPin(ped.Persons[dupID], locus, pinned)
			}
		}
	}
}

func applyPin(p *pedigree.Person, locus int, g *pedigree.Genotype) {
	p.Genotypes[locus] = g
	p.GenotypeCount[locus] = 1
}
