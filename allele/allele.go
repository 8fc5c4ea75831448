// Package allele implements the bitset representation of original
// alleles at a locus, and the recoding of non-transmitted alleles into
// super-alleles.
package allele

import (
	"fmt"
	"math/bits"

	farm "github.com/dgryski/go-farm"
)

// wordBits is the number of original-allele bits packed per mask chunk.
const wordBits = 64

// Set is one allele set: either a singleton original allele (ID in
// [1, N]) or a super-allele produced by recoding (ID > N). Mask is
// canonical: no two sets at the same Locus ever carry equal masks.
type Set struct {
	ID      int
	Mask    []uint64
	Freq    float64
	Members []int
}

// numChunks returns the number of uint64 words needed to hold n bits.
func numChunks(n int) int {
	return (n + wordBits - 1) / wordBits
}

func bitMask(allele int) (chunk int, mask uint64) {
	a := allele - 1
	return a / wordBits, uint64(1) << uint(a%wordBits)
}

// SetBit sets the bit for the given original allele (1-based) in m.
func SetBit(m []uint64, allele int) {
	c, bit := bitMask(allele)
	m[c] |= bit
}

// TestBit reports whether the given original allele's bit is set in m.
func TestBit(m []uint64, allele int) bool {
	c, bit := bitMask(allele)
	if c >= len(m) {
		return false
	}
	return m[c]&bit != 0
}

// Count returns the number of set bits (popcount) across all chunks.
func Count(m []uint64) int {
	n := 0
	for _, w := range m {
		n += bits.OnesCount64(w)
	}
	return n
}

// Subset reports whether a is a subset of b: a & b == a.
func Subset(a, b []uint64) bool {
	for i := range a {
		if a[i]&b[i] != a[i] {
			return false
		}
	}
	return true
}

// Equal reports whether a and b carry the same bits.
func Equal(a, b []uint64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Union returns a new mask with the bits of a and b OR-ed together.
func Union(a, b []uint64) []uint64 {
	out := make([]uint64, len(a))
	for i := range a {
		out[i] = a[i] | b[i]
	}
	return out
}

// Intersect returns a new mask with the bits of a and b AND-ed together.
func Intersect(a, b []uint64) []uint64 {
	out := make([]uint64, len(a))
	for i := range a {
		out[i] = a[i] & b[i]
	}
	return out
}

// Complement returns a new mask with the bits of a flipped, restricted
// to the first nAlleles bits.
func Complement(a []uint64, nAlleles int) []uint64 {
	out := make([]uint64, len(a))
	for i := range a {
		out[i] = ^a[i]
	}
	maskLastChunk(out, nAlleles)
	return out
}

func maskLastChunk(m []uint64, nAlleles int) {
	rem := nAlleles % wordBits
	if rem == 0 {
		return
	}
	last := len(m) - 1
	if last >= 0 {
		m[last] &= (uint64(1) << uint(rem)) - 1
	}
}

func maskKey(m []uint64) uint64 {
	// FarmHash64 over the little-endian byte representation of the mask
	// chunks; used only as a lookup accelerator (see allele.Locus).
	buf := make([]byte, 8*len(m))
	for i, w := range m {
		for b := 0; b < 8; b++ {
			buf[i*8+b] = byte(w >> uint(8*b))
		}
	}
	return farm.Hash64(buf)
}

// Locus holds the append-only, per-locus list of allele sets: the
// pre-created singletons for alleles 1..N, plus any super-alleles
// added by Recode. Singleton IDs are 1..N; super-allele IDs are
// strictly greater than N.
type Locus struct {
	NAlleles int
	Sets     []*Set
	// cache accelerates FindByMask's lookup; NewLocus and FindOrCreate
	// add each new set to it as the set is appended, and it is never the
	// source of truth (Sets is).
	cache map[uint64][]*Set
}

// NewLocus creates a Locus with nAlleles pre-created singleton sets,
// given each original allele's population frequency.
func NewLocus(freqs []float64) *Locus {
	n := len(freqs)
	l := &Locus{NAlleles: n, cache: make(map[uint64][]*Set)}
	chunks := numChunks(n)
	for a := 1; a <= n; a++ {
		m := make([]uint64, chunks)
		SetBit(m, a)
		s := &Set{ID: a, Mask: m, Freq: freqs[a-1], Members: []int{a}}
		l.Sets = append(l.Sets, s)
		l.cache[maskKey(m)] = append(l.cache[maskKey(m)], s)
	}
	return l
}

// FindByMask finds an existing set whose mask equals m exactly. The
// farm-hash cache narrows the scan to sets with a matching hash before
// the exact compare, but never changes which set (if any) is returned.
func (l *Locus) FindByMask(m []uint64) *Set {
	for _, cand := range l.cache[maskKey(m)] {
		if Equal(cand.Mask, m) {
			return cand
		}
	}
	return nil
}

// FindOrCreate returns the existing set with mask m, or creates and
// appends a new super-allele set (ID = one more than the largest ID in
// Sets, always > NAlleles) whose frequency is the sum of its members' frequencies
// and whose Members list is exactly the constituent allele numbers.
// The bool result reports whether a new set was created.
func (l *Locus) FindOrCreate(m []uint64) (*Set, bool) {
	if s := l.FindByMask(m); s != nil {
		return s, false
	}
	var members []int
	var freq float64
	for a := 1; a <= l.NAlleles; a++ {
		if TestBit(m, a) {
			members = append(members, a)
			freq += l.Sets[a-1].Freq
		}
	}
	nextID := l.NAlleles + 1
	for _, s := range l.Sets {
		if s.ID >= nextID {
			nextID = s.ID + 1
		}
	}
	s := &Set{ID: nextID, Mask: append([]uint64(nil), m...), Freq: freq, Members: members}
	l.Sets = append(l.Sets, s)
	l.cache[maskKey(m)] = append(l.cache[maskKey(m)], s)
	return s, true
}

// Canonical reports whether no two sets share the same bitmask, and the
// union of all singleton masks equals the full 1..NAlleles range.
func (l *Locus) Canonical() error {
	seen := make(map[string]int)
	chunks := numChunks(l.NAlleles)
	union := make([]uint64, chunks)
	for _, s := range l.Sets {
		key := maskString(s.Mask)
		if prev, ok := seen[key]; ok {
			return fmt.Errorf("allele.Locus.Canonical: sets %d and %d share mask %v", prev, s.ID, s.Mask)
		}
		seen[key] = s.ID
		if s.ID <= l.NAlleles {
			union = Union(union, s.Mask)
		}
	}
	full := Complement(make([]uint64, chunks), l.NAlleles)
	for i := range full {
		full[i] = ^uint64(0)
	}
	maskLastChunk(full, l.NAlleles)
	if !Equal(union, full) {
		return fmt.Errorf("allele.Locus.Canonical: singleton union %v != full range %v", union, full)
	}
	return nil
}

func maskString(m []uint64) string {
	buf := make([]byte, 8*len(m))
	for i, w := range m {
		for b := 0; b < 8; b++ {
			buf[i*8+b] = byte(w >> uint(8*b))
		}
	}
	return string(buf)
}
