package eval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mathmed/kelvin/allele"
	"github.com/mathmed/kelvin/pedigree"
	"github.com/mathmed/kelvin/transmission"
)

func maskFor(a int) []uint64 {
	m := make([]uint64, 1)
	allele.SetBit(m, a)
	return m
}

func buildTrio(id string, probandHomozygous bool) *pedigree.Pedigree {
	m1, m2 := maskFor(1), maskFor(2)
	father := &pedigree.Person{
		ID: 1, Sex: pedigree.SexMale,
		Genotypes:     []*pedigree.Genotype{{Paternal: 1, Maternal: 2, PaternalMask: m1, MaternalMask: m2, Weight: 1}},
		GenotypeCount: []int{1},
	}
	mother := &pedigree.Person{
		ID: 2, Sex: pedigree.SexFemale,
		Genotypes:     []*pedigree.Genotype{{Paternal: 1, Maternal: 2, PaternalMask: m1, MaternalMask: m2, Weight: 1}},
		GenotypeCount: []int{1},
	}
	// An unphased heterozygous child is listed in both phases, 1|2 and 2|1.
	childGeno := &pedigree.Genotype{Paternal: 1, Maternal: 2, PaternalMask: m1, MaternalMask: m2}
	childGeno.Next = &pedigree.Genotype{Paternal: 2, Maternal: 1, PaternalMask: m2, MaternalMask: m1}
	childCount := 2
	if probandHomozygous {
		childGeno = &pedigree.Genotype{Paternal: 1, Maternal: 1, PaternalMask: m1, MaternalMask: m1}
		childCount = 1
	}
	child := &pedigree.Person{
		ID: 3, Sex: pedigree.SexMale, FatherID: 1, MotherID: 2,
		Genotypes:     []*pedigree.Genotype{childGeno},
		GenotypeCount: []int{childCount},
	}
	ped := &pedigree.Pedigree{
		ID:              id,
		Persons:         map[int]*pedigree.Person{1: father, 2: mother, 3: child},
		ProbandID:       3,
		ProbandFamilyID: 1,
	}
	fam := &pedigree.NuclearFamily{ID: 1, Head: 1, Spouse: 2, Children: []int{3}}
	ped.Families = []*pedigree.NuclearFamily{fam}
	return ped
}

func singleLocusSubList() *pedigree.SubLocusList {
	return &pedigree.SubLocusList{Entries: []pedigree.SubLocusEntry{{LocusIndex: 0}}}
}

func TestEvaluateAllComputesEveryPedigreeIndependently(t *testing.T) {
	subList := singleLocusSubList()
	tensor := transmission.Build(subList)

	peds := []*pedigree.Pedigree{
		buildTrio("homozygous-proband", true),
		buildTrio("heterozygous-proband", false),
	}

	results, err := EvaluateAll(context.Background(), peds, subList, tensor, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		require.NoError(t, r.Err)
		assert.Greater(t, r.Likelihood, 0.0)
	}
	// A homozygous 1/1 child from two 1/2 founders is half as likely as
	// a heterozygous 1/2 child (1/4 vs 1/2 of Mendelian outcomes).
	assert.InDelta(t, results[0].Likelihood*2, results[1].Likelihood, 1e-9)
}

func TestEvaluateAllRespectsConcurrencyBound(t *testing.T) {
	subList := singleLocusSubList()
	tensor := transmission.Build(subList)

	var peds []*pedigree.Pedigree
	for i := 0; i < 20; i++ {
		peds = append(peds, buildTrio("trio", i%2 == 0))
	}
	results, err := EvaluateAll(context.Background(), peds, subList, tensor, 3)
	require.NoError(t, err)
	require.Len(t, results, 20)
	for _, r := range results {
		require.NoError(t, r.Err)
	}
}

func TestEvaluateAllDefaultsConcurrencyWhenNonPositive(t *testing.T) {
	subList := singleLocusSubList()
	tensor := transmission.Build(subList)
	peds := []*pedigree.Pedigree{buildTrio("trio", true)}
	results, err := EvaluateAll(context.Background(), peds, subList, tensor, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
}

func TestCombinedLikelihoodSkipsFailedPedigreesWithoutZeroingProduct(t *testing.T) {
	results := []Result{
		{Likelihood: 0.5},
		{Err: assertErr{"infeasible"}},
		{Likelihood: 0.25},
	}
	product, failed := CombinedLikelihood(results)
	assert.InDelta(t, 0.125, product, 1e-12)
	assert.Len(t, failed, 1)
}

type assertErr struct{ msg string }

func (e assertErr) Error() string { return e.msg }
