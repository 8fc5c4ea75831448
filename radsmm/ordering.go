package radsmm

import "fmt"

// axisCounts holds the per-axis cardinalities used to combine seven
// indices into one logical cell offset.
type axisCounts struct {
	pedigree, marker, theta, gfreq, pen, qmodel, diseq int64
}

// axisPermutation lists the seven axis indices (0=pedigree, 1=marker,
// 2=theta, 3=gfreq, 4=pen, 5=qmodel, 6=diseq) from outermost to
// innermost for a given ordering letter. Pedigree stays outermost in
// every ordering (it is the top-level loop in every analysis driver);
// the other six axes rotate so each letter gives a distinct innermost
// axis: 'A' gives diseq as innermost; 'B' through 'F' are not mere
// swaps of 'A' but each promote a different axis to innermost.
func axisPermutation(o Ordering) ([7]int, error) {
	rotate := 0
	switch o {
	case OrderingA:
		rotate = 0
	case OrderingB:
		rotate = 1
	case OrderingC:
		rotate = 2
	case OrderingD:
		rotate = 3
	case OrderingE:
		rotate = 4
	case OrderingF:
		rotate = 5
	default:
		return [7]int{}, fmt.Errorf("radsmm: unknown ordering %q", byte(o))
	}
	inner := [6]int{1, 2, 3, 4, 5, 6}
	var perm [7]int
	perm[0] = 0
	for i := 0; i < 6; i++ {
		perm[i+1] = inner[(i+rotate)%6]
	}
	return perm, nil
}

// CellIndex is the seven logical axis indices a caller addresses a
// cell by.
type CellIndex struct {
	Pedigree, Marker, Theta, GeneFreq, Penetrance, QModel, Diseq int64
}

func (c axisCounts) values() [7]int64 {
	return [7]int64{c.pedigree, c.marker, c.theta, c.gfreq, c.pen, c.qmodel, c.diseq}
}

func (i CellIndex) values() [7]int64 {
	return [7]int64{i.Pedigree, i.Marker, i.Theta, i.GeneFreq, i.Penetrance, i.QModel, i.Diseq}
}

// seek computes the flat cell offset for idx under ordering o and the
// axis cardinalities in counts. The offset is the mixed-radix value
// of idx's axes visited outermost-to-innermost per axisPermutation.
func seek(o Ordering, counts axisCounts, idx CellIndex) (int64, error) {
	perm, err := axisPermutation(o)
	if err != nil {
		return 0, err
	}
	cv := counts.values()
	iv := idx.values()
	var offset int64
	for _, axis := range perm {
		n := cv[axis]
		v := iv[axis]
		if n > 0 && (v < 0 || v >= n) {
			return 0, fmt.Errorf("radsmm: axis %d index %d out of range [0,%d)", axis, v, n)
		}
		offset = offset*maxInt64(n, 1) + v
	}
	return offset, nil
}

// innermostAxisCount returns the cardinality of the axis that is
// innermost under ordering o — the axis a list read/write's run
// length is range-checked against.
func innermostAxisCount(o Ordering, counts axisCounts) (int64, error) {
	perm, err := axisPermutation(o)
	if err != nil {
		return 0, err
	}
	return counts.values()[perm[6]], nil
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
