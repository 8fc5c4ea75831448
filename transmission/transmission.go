// Package transmission builds the transmission-probability tensor: a
// dense table over multi-locus inheritance patterns giving, for each of
// the three map flavors (sex-averaged, male, female), the probability
// that a parent transmits that pattern, given the recombination
// fractions between consecutive heterozygous loci.
package transmission

import "github.com/mathmed/kelvin/pedigree"

// Pattern values for a single locus's axis. Zero and "both" are
// treated identically during traversal.
const (
	PatternBoth     = 0
	PatternPaternal = 1
	PatternMaternal = 2
	PatternBothAlt  = 3
)

// MapFlavor selects which recombination-fraction column of a
// SubLocusEntry to use, and which column of a Tensor lookup to read.
type MapFlavor int

const (
	FlavorSexAveraged MapFlavor = iota
	FlavorMale
	FlavorFemale
)

// Tensor is an immutable dense table of 4^L entries, each holding the
// transmission probability under all three map flavors for the
// pattern encoded by that entry's index.
type Tensor struct {
	loci    int
	entries [][3]float64
}

// packedSize returns 4^loci.
func packedSize(loci int) int {
	n := 1
	for i := 0; i < loci; i++ {
		n *= 4
	}
	return n
}

// Build constructs the tensor for subList, populating all three map
// flavors in one pass. The sub-list's ThetaPrev entries (indexed by
// flavor) supply the recombination fractions between consecutive loci;
// an analysis with no sex-specific map simply carries the same value
// in all three columns.
func Build(subList *pedigree.SubLocusList) *Tensor {
	loci := subList.Len()
	t := &Tensor{loci: loci, entries: make([][3]float64, packedSize(loci))}
	if loci == 0 {
		return t
	}
	for flavor := MapFlavor(0); flavor < 3; flavor++ {
		populate(t, subList, flavor, 0, 0, 0.5, 0.5, false, PatternBoth)
	}
	return t
}

// populate recurses left-to-right over loci for one map flavor,
// maintaining two accumulators:
//   - prob: probability of the phase matching the most recently seen
//     heterozygous locus's pattern
//   - prob2: probability of the opposite phase
//
// A run of homozygous loci before the first heterozygous locus carries
// no phase information at all (everHet stays false); once the first
// heterozygous locus is reached, prob and prob2 reset to the 0.5/0.5
// "undecided" split regardless of any leading homozygous loci's
// thetas, and each later het/homo transition mixes them by theta.
func populate(t *Tensor, subList *pedigree.SubLocusList, flavor MapFlavor, locusIdx, index int, prob, prob2 float64, everHet bool, prevPattern int) {
	if locusIdx == t.loci {
		var v float64
		switch {
		case !everHet:
			v = 1
		case prevPattern == PatternPaternal || prevPattern == PatternMaternal:
			v = prob
		default:
			v = prob + prob2
		}
		t.entries[index][flavor] = v
		return
	}
	theta := 0.0
	if locusIdx > 0 {
		theta = subList.Entries[locusIdx].ThetaPrev[flavor]
	}
	prevHet := everHet && (prevPattern == PatternPaternal || prevPattern == PatternMaternal)

	for _, pattern := range []int{PatternBoth, PatternPaternal, PatternMaternal, PatternBothAlt} {
		newIndex := (index << 2) | pattern
		het := pattern == PatternPaternal || pattern == PatternMaternal
		var newProb, newProb2 float64
		newEverHet := everHet || het
		switch {
		case !everHet && het:
			// First heterozygous locus on this path: phase is freshly
			// 50/50, independent of any leading homozygous thetas.
			newProb, newProb2 = 0.5, 0.5
		case !everHet && !het:
			newProb, newProb2 = prob, prob2
		case prevHet && het:
			if pattern == prevPattern {
				newProb, newProb2 = prob*(1-theta), prob2*(1-theta)
			} else {
				newProb, newProb2 = prob*theta, prob2*theta
			}
		case prevHet && !het:
			// het -> homo: the two accumulators swap roles.
			newProb = prob2*theta + prob*(1-theta)
			newProb2 = prob*theta + prob2*(1-theta)
		case !prevHet && het:
			// homo -> het: both sides of the prior uncertainty
			// contribute, split by theta.
			newProb = prob*(1-theta) + prob2*theta
			newProb2 = prob*theta + prob2*(1-theta)
		default:
			// homo -> homo: carry through unchanged.
			newProb, newProb2 = prob, prob2
		}
		populate(t, subList, flavor, locusIdx+1, newIndex, newProb, newProb2, newEverHet, pattern)
	}
}

// Lookup returns the transmission probability for the packed
// 2-bit-per-locus pattern index, one value per map flavor.
func (t *Tensor) Lookup(pattern uint64) [3]float64 {
	return t.entries[pattern]
}

// LookupFlavor is a convenience accessor for a single map flavor's
// column of Lookup.
func (t *Tensor) LookupFlavor(pattern uint64, flavor MapFlavor) float64 {
	return t.entries[pattern][flavor]
}

// Loci returns the sub-list length the tensor was built for.
func (t *Tensor) Loci() int { return t.loci }
