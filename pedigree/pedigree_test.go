package pedigree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mathmed/kelvin/allele"
)

// trio builds father(1)/mother(2)/child(3) with one empty genotype slot
// each at a single locus.
func trio() *Pedigree {
	ped := &Pedigree{
		ID:       "trio",
		Persons:  make(map[int]*Person),
		Founders: []int{1, 2},
	}
	father := &Person{ID: 1, Sex: SexMale, FirstChildID: 3, Typed: []bool{true}, Genotypes: make([]*Genotype, 1), GenotypeCount: []int{1}}
	mother := &Person{ID: 2, Sex: SexFemale, Typed: []bool{true}, Genotypes: make([]*Genotype, 1), GenotypeCount: []int{1}}
	child := &Person{ID: 3, Sex: SexMale, FatherID: 1, MotherID: 2, Typed: []bool{true}, Genotypes: make([]*Genotype, 1), GenotypeCount: []int{1}}
	ped.Persons[1] = father
	ped.Persons[2] = mother
	ped.Persons[3] = child
	ped.Families = []*NuclearFamily{{ID: 1, Head: 1, Spouse: 2, Children: []int{3}}}
	return ped
}

func maskFor(a int) []uint64 {
	m := make([]uint64, 1)
	allele.SetBit(m, a)
	return m
}

func TestCondTableStridesRowMajor(t *testing.T) {
	var c CondTable
	c.ComputeStrides([]int{2, 3, 4})
	assert.Equal(t, []int{12, 4, 1}, c.Strides)
	assert.Equal(t, 1*12+2*4+3*1, c.Index([]int{1, 2, 3}))
}

func TestResetDoesNotShrinkBackingArray(t *testing.T) {
	var c CondTable
	c.Reset(10)
	backing := c.Entries
	c.Entries[3].Likelihood = 42
	c.Reset(4)
	assert.Equal(t, 4, len(c.Entries))
	assert.Equal(t, 0.0, c.Entries[3].Likelihood)
	assert.Same(t, &backing[0], &c.Entries[0])
}

func TestSnapshotRestoreGenotypes(t *testing.T) {
	p := &Person{Genotypes: []*Genotype{{Paternal: 1, Maternal: 1}}, GenotypeCount: []int{1}}
	p.SnapshotGenotypes()
	p.Genotypes[0] = &Genotype{Paternal: 2, Maternal: 2}
	p.RestoreGenotypes()
	require.Equal(t, 1, p.Genotypes[0].Paternal)
}
