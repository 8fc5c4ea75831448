package loopbreaker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mathmed/kelvin/allele"
	"github.com/mathmed/kelvin/pedigree"
	"github.com/mathmed/kelvin/peel"
	"github.com/mathmed/kelvin/transmission"
)

func maskFor(a int) []uint64 {
	m := make([]uint64, 1)
	allele.SetBit(m, a)
	return m
}

func singleLocusSubList() *pedigree.SubLocusList {
	return &pedigree.SubLocusList{Entries: []pedigree.SubLocusEntry{{LocusIndex: 0}}}
}

func TestResolveWithoutLoopsDelegatesToPeel(t *testing.T) {
	m1 := maskFor(1)
	father := &pedigree.Person{ID: 1, Sex: pedigree.SexMale,
		Genotypes:     []*pedigree.Genotype{{Paternal: 1, Maternal: 1, PaternalMask: m1, MaternalMask: m1, Weight: 1}},
		GenotypeCount: []int{1}}
	mother := &pedigree.Person{ID: 2, Sex: pedigree.SexFemale,
		Genotypes:     []*pedigree.Genotype{{Paternal: 1, Maternal: 1, PaternalMask: m1, MaternalMask: m1, Weight: 1}},
		GenotypeCount: []int{1}}
	child := &pedigree.Person{ID: 3, Sex: pedigree.SexFemale, FatherID: 1, MotherID: 2,
		Genotypes:     []*pedigree.Genotype{{Paternal: 1, Maternal: 1, PaternalMask: m1, MaternalMask: m1}},
		GenotypeCount: []int{1}}
	fam := &pedigree.NuclearFamily{ID: 1, Head: 1, Spouse: 2, Children: []int{3}}
	ped := &pedigree.Pedigree{
		ID: "trio", Persons: map[int]*pedigree.Person{1: father, 2: mother, 3: child},
		Families: []*pedigree.NuclearFamily{fam}, ProbandID: 3, ProbandFamilyID: 1,
	}
	subList := singleLocusSubList()
	tensor := transmission.Build(subList)

	direct, err := peel.Peel(ped, subList, tensor)
	require.NoError(t, err)

	total, err := Resolve(ped, subList, tensor)
	require.NoError(t, err)
	assert.Equal(t, direct, total)
}

// buildTrioWithLoopBreaker returns a homozygous-1/1 mother and child,
// a father with two candidate genotypes (hom 1/1, compatible; hom 2/2,
// incompatible), and an unconnected duplicate of the father (OriginalID
// 1) to exercise loop-breaker genotype enumeration.
func buildTrioWithLoopBreaker() *pedigree.Pedigree {
	m1, m2 := maskFor(1), maskFor(2)
	okGeno := &pedigree.Genotype{Paternal: 1, Maternal: 1, PaternalMask: m1, MaternalMask: m1, Weight: 1}
	badGeno := &pedigree.Genotype{Paternal: 2, Maternal: 2, PaternalMask: m2, MaternalMask: m2, Weight: 1}
	okGeno.Next = badGeno

	father := &pedigree.Person{ID: 1, Sex: pedigree.SexMale,
		Genotypes: []*pedigree.Genotype{okGeno}, GenotypeCount: []int{2}}
	mother := &pedigree.Person{ID: 2, Sex: pedigree.SexFemale,
		Genotypes:     []*pedigree.Genotype{{Paternal: 1, Maternal: 1, PaternalMask: m1, MaternalMask: m1, Weight: 1}},
		GenotypeCount: []int{1}}
	child := &pedigree.Person{ID: 3, Sex: pedigree.SexFemale, FatherID: 1, MotherID: 2,
		Genotypes:     []*pedigree.Genotype{{Paternal: 1, Maternal: 1, PaternalMask: m1, MaternalMask: m1}},
		GenotypeCount: []int{1}}
	duplicate := &pedigree.Person{ID: 4, Sex: pedigree.SexMale, LoopBreaker: 1, OriginalID: 1,
		Genotypes: []*pedigree.Genotype{nil}, GenotypeCount: []int{0}}

	fam := &pedigree.NuclearFamily{ID: 1, Head: 1, Spouse: 2, Children: []int{3}}
	ped := &pedigree.Pedigree{
		ID:      "trio-loop",
		Persons: map[int]*pedigree.Person{1: father, 2: mother, 3: child, 4: duplicate},
		Families: []*pedigree.NuclearFamily{fam},
		ProbandID: 3, ProbandFamilyID: 1, LoopCount: 1,
	}
	return ped
}

func TestResolveSumsOverFeasibleLoopBreakerGenotypesOnly(t *testing.T) {
	ped := buildTrioWithLoopBreaker()
	subList := singleLocusSubList()
	tensor := transmission.Build(subList)

	total, err := Resolve(ped, subList, tensor)
	require.NoError(t, err)
	// Father hom(2,2) cannot produce a hom(1,1) child; only the
	// hom(1,1) father configuration is feasible, and that one is
	// deterministic (no heterozygosity anywhere).
	assert.InDelta(t, 1.0, total, 1e-9)
}

func TestResolveRestoresGenotypesAfterward(t *testing.T) {
	ped := buildTrioWithLoopBreaker()
	subList := singleLocusSubList()
	tensor := transmission.Build(subList)
	originalCount := ped.Persons[1].GenotypeCount[0]

	_, err := Resolve(ped, subList, tensor)
	require.NoError(t, err)
	assert.Equal(t, originalCount, ped.Persons[1].GenotypeCount[0])
}
