package transmission

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mathmed/kelvin/pedigree"
)

func twoLocusSubList(theta float64) *pedigree.SubLocusList {
	return &pedigree.SubLocusList{
		Entries: []pedigree.SubLocusEntry{
			{LocusIndex: 0},
			{LocusIndex: 1, ThetaPrev: [3]float64{theta, theta, theta}},
		},
	}
}

func TestBuildSingleLocus(t *testing.T) {
	s := &pedigree.SubLocusList{Entries: []pedigree.SubLocusEntry{{LocusIndex: 0}}}
	tensor := Build(s)
	require.Equal(t, 1, tensor.Loci())
	// Homozygous patterns are certain (no phase to resolve); the two
	// heterozygous patterns split the probability mass evenly. A
	// single-locus tensor carries no theta at all, so every flavor
	// agrees.
	for _, flavor := range []MapFlavor{FlavorSexAveraged, FlavorMale, FlavorFemale} {
		assert.InDelta(t, 1.0, tensor.LookupFlavor(PatternBoth, flavor), 1e-12)
		assert.InDelta(t, 1.0, tensor.LookupFlavor(PatternBothAlt, flavor), 1e-12)
		assert.InDelta(t, 0.5, tensor.LookupFlavor(PatternPaternal, flavor), 1e-12)
		assert.InDelta(t, 0.5, tensor.LookupFlavor(PatternMaternal, flavor), 1e-12)
	}
}

func TestBuildTwoLocusNoRecombinationSameSideFavored(t *testing.T) {
	tensor := Build(twoLocusSubList(0.0))
	// pattern (paternal, paternal) = index 0b0101 = 5: no recombination
	// allowed with theta=0, so the same-side continuation keeps all the
	// probability mass.
	same := tensor.LookupFlavor(0b0101, FlavorSexAveraged)
	opposite := tensor.LookupFlavor(0b0110, FlavorSexAveraged)
	assert.InDelta(t, 0.5, same, 1e-9)
	assert.InDelta(t, 0.0, opposite, 1e-9)
}

func TestBuildTwoLocusFreeRecombinationIsUniform(t *testing.T) {
	tensor := Build(twoLocusSubList(0.5))
	for _, p := range []uint64{0b0101, 0b0110, 0b1001} {
		assert.InDelta(t, 0.25, tensor.LookupFlavor(p, FlavorSexAveraged), 1e-9)
	}
}

func TestLookupReturnsAllThreeFlavors(t *testing.T) {
	s := &pedigree.SubLocusList{
		Entries: []pedigree.SubLocusEntry{
			{LocusIndex: 0},
			{LocusIndex: 1, ThetaPrev: [3]float64{0.1, 0.0, 0.5}},
		},
	}
	tensor := Build(s)
	v := tensor.Lookup(0b0101)
	assert.InDelta(t, 0.45, v[FlavorSexAveraged], 1e-9)
	assert.InDelta(t, 0.5, v[FlavorMale], 1e-9)
	assert.InDelta(t, 0.25, v[FlavorFemale], 1e-9)
}
