package allele

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLocusSingletons(t *testing.T) {
	l := NewLocus([]float64{0.1, 0.2, 0.7})
	require.Len(t, l.Sets, 3)
	for a := 1; a <= 3; a++ {
		assert.Equal(t, a, l.Sets[a-1].ID)
		assert.True(t, TestBit(l.Sets[a-1].Mask, a))
	}
	require.NoError(t, l.Canonical())
}

func TestFindOrCreateSuperAllele(t *testing.T) {
	l := NewLocus([]float64{0.1, 0.2, 0.7})
	m := make([]uint64, 1)
	SetBit(m, 1)
	SetBit(m, 2)

	s, created := l.FindOrCreate(m)
	assert.True(t, created)
	assert.Equal(t, 4, s.ID)
	assert.InDelta(t, 0.3, s.Freq, 1e-12)
	assert.ElementsMatch(t, []int{1, 2}, s.Members)
	require.NoError(t, l.Canonical())

	s2, created2 := l.FindOrCreate(m)
	assert.False(t, created2)
	assert.Same(t, s, s2)
}

func TestSubsetAndUnion(t *testing.T) {
	a := []uint64{0b0011}
	b := []uint64{0b0111}
	assert.True(t, Subset(a, b))
	assert.False(t, Subset(b, a))
	assert.Equal(t, []uint64{0b0111}, Union(a, b))
	assert.Equal(t, []uint64{0b0011}, Intersect(a, b))
}

func TestCanonicalDetectsDuplicateMask(t *testing.T) {
	l := NewLocus([]float64{0.5, 0.5})
	// Corrupt the list by forcing a duplicate mask directly.
	dup := &Set{ID: 99, Mask: append([]uint64(nil), l.Sets[0].Mask...), Freq: 0.5, Members: []int{1}}
	l.Sets = append(l.Sets, dup)
	err := l.Canonical()
	assert.Error(t, err)
}

func TestCountPopcount(t *testing.T) {
	m := []uint64{0b1011}
	assert.Equal(t, 3, Count(m))
}
