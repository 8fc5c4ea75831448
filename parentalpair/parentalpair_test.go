package parentalpair

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mathmed/kelvin/allele"
	"github.com/mathmed/kelvin/pedigree"
)

func maskFor(a int) []uint64 {
	m := make([]uint64, 1)
	allele.SetBit(m, a)
	return m
}

func buildTrio() (*pedigree.Pedigree, *pedigree.NuclearFamily) {
	m1, m2 := maskFor(1), maskFor(2)
	father := &pedigree.Person{
		ID: 1, Sex: pedigree.SexMale,
		Genotypes:     []*pedigree.Genotype{{Paternal: 1, Maternal: 2, PaternalMask: m1, MaternalMask: m2}},
		GenotypeCount: []int{1},
	}
	mother := &pedigree.Person{
		ID: 2, Sex: pedigree.SexFemale,
		Genotypes:     []*pedigree.Genotype{{Paternal: 1, Maternal: 2, PaternalMask: m1, MaternalMask: m2}},
		GenotypeCount: []int{1},
	}
	child := &pedigree.Person{
		ID: 3, Sex: pedigree.SexMale, FatherID: 1, MotherID: 2,
		Genotypes:     []*pedigree.Genotype{{Paternal: 1, Maternal: 1, PaternalMask: m1, MaternalMask: m1}},
		GenotypeCount: []int{1},
	}
	ped := &pedigree.Pedigree{ID: "trio", Persons: map[int]*pedigree.Person{1: father, 2: mother, 3: child}}
	fam := &pedigree.NuclearFamily{ID: 1, Head: 1, Spouse: 2, Children: []int{3}}
	ped.Families = []*pedigree.NuclearFamily{fam}
	return ped, fam
}

func TestBuildPairsAdmitsCompatiblePair(t *testing.T) {
	ped, fam := buildTrio()
	pairs := BuildPairs(ped, fam, 0)
	require.Len(t, pairs, 1)
	require.Len(t, pairs[0].Children, 1)
	require.Len(t, pairs[0].Children[0], 1)
	assert.Equal(t, pedigree.InheritPaternal, pairs[0].Children[0][0].Pattern.FromFather)
	assert.Equal(t, pedigree.InheritPaternal, pairs[0].Children[0][0].Pattern.FromMother)
}

func TestBuildPairsRejectsIncompatibleChild(t *testing.T) {
	ped, fam := buildTrio()
	// Child homozygous for an allele neither parent carries.
	m3 := maskFor(3)
	ped.Persons[3].Genotypes[0] = &pedigree.Genotype{Paternal: 3, Maternal: 3, PaternalMask: m3, MaternalMask: m3}
	pairs := BuildPairs(ped, fam, 0)
	assert.Empty(t, pairs)
}

func TestBuildPairsEmitsPhaseVariantsContiguously(t *testing.T) {
	ped, fam := buildTrio()
	dual := &pedigree.Genotype{Paternal: 2, Maternal: 1, PaternalMask: maskFor(2), MaternalMask: maskFor(1)}
	ped.Persons[1].Genotypes[0].Dual = dual
	dual.Dual = ped.Persons[1].Genotypes[0]

	pairs := BuildPairs(ped, fam, 0)
	require.Len(t, pairs, 2)
	assert.Equal(t, pairs[0].GroupID, pairs[1].GroupID)
	assert.Equal(t, 0, pairs[0].Phase)
	assert.Equal(t, 1, pairs[1].Phase)
}
