package radsmm

import (
	"encoding/binary"
	"math"
)

// Header returns the store's header. The caller must not mutate it.
func (s *Store) Header() *Header { return s.header }

// MarkerLabels returns the label table loaded or written for markers.
func (s *Store) MarkerLabels() []string { return s.index.markerLabels }

// PedigreeLabels returns the label table loaded or written for
// pedigrees.
func (s *Store) PedigreeLabels() []string { return s.index.pedigreeLabels }

// putCellBytes encodes v into buf using et's on-disk width.
func putCellBytes(buf []byte, et ElementType, v float64) {
	if et == ElementDouble {
		binary.LittleEndian.PutUint64(buf, math.Float64bits(v))
		return
	}
	binary.LittleEndian.PutUint32(buf, math.Float32bits(float32(v)))
}

// getCellBytes decodes a cell value from buf using et's on-disk width.
func getCellBytes(buf []byte, et ElementType) float64 {
	if et == ElementDouble {
		return math.Float64frombits(binary.LittleEndian.Uint64(buf))
	}
	return float64(math.Float32frombits(binary.LittleEndian.Uint32(buf)))
}

// cellOffset returns the (shard, byte-offset) pair for a logical cell
// index under the store's configured ordering.
func (s *Store) cellOffset(idx CellIndex) (shard int, byteOffset int64, err error) {
	flat, err := seek(s.header.Ordering, s.counts, idx)
	if err != nil {
		return 0, 0, newErr(BadIndex, "seek", s.path, err)
	}
	elemSize := s.header.ElementType.size()
	sh, inShard := cellLocation(flat, s.header.ChunksPerFile)
	if sh >= len(s.shards) {
		return 0, 0, newErr(OutOfRange, "seek", s.path, nil)
	}
	at := inShard * int64(elemSize)
	if sh == 0 {
		at += s.header.StartOfData
	}
	return sh, at, nil
}

// ReadCell returns the value stored at idx.
func (s *Store) ReadCell(idx CellIndex) (float64, error) {
	if !s.open {
		return 0, newErr(NotOpen, "read", s.path, nil)
	}
	shard, at, err := s.cellOffset(idx)
	if err != nil {
		return 0, err
	}
	elemSize := s.header.ElementType.size()
	buf := make([]byte, elemSize)
	if _, rerr := s.shards[shard].ReadAt(buf, at); rerr != nil {
		return 0, newErr(Reading, "read", s.path, rerr)
	}
	return getCellBytes(buf, s.header.ElementType), nil
}

// WriteOpts controls the overwrite-guard behavior of WriteCell and
// WriteCellList.
type WriteOpts struct {
	// CheckOverwrite rejects a write that would silently replace an
	// already-computed, non-sentinel value with a materially different
	// one (the debug overwrite guard).
	CheckOverwrite bool
}

func overwriteConflict(existing, next float64) bool {
	if IsSentinel(existing) {
		return false
	}
	if existing == 0 {
		return next != 0
	}
	return math.Abs(next-existing)/math.Abs(existing) > overwriteRelTol
}

// WriteCell stores v at idx. When opts.CheckOverwrite is set, a write
// that would replace a non-sentinel value with a materially different
// one is rejected with WriteoverValidData instead of applied.
func (s *Store) WriteCell(idx CellIndex, v float64, opts WriteOpts) error {
	if !s.open {
		return newErr(NotOpen, "write", s.path, nil)
	}
	if s.readOnly {
		return newErr(BadParam, "write", s.path, nil)
	}
	shard, at, err := s.cellOffset(idx)
	if err != nil {
		return err
	}
	elemSize := s.header.ElementType.size()
	if opts.CheckOverwrite {
		existingBuf := make([]byte, elemSize)
		if _, rerr := s.shards[shard].ReadAt(existingBuf, at); rerr != nil {
			return newErr(Reading, "write", s.path, rerr)
		}
		existing := getCellBytes(existingBuf, s.header.ElementType)
		if overwriteConflict(existing, v) {
			return newErr(WriteoverValidData, "write", s.path, nil)
		}
	}
	buf := make([]byte, elemSize)
	putCellBytes(buf, s.header.ElementType, v)
	if _, werr := s.shards[shard].WriteAt(buf, at); werr != nil {
		return newErr(Writing, "write", s.path, werr)
	}
	return nil
}

// ReadCellList reads n consecutive cells starting at idx along the
// innermost axis for the store's ordering. The range is checked
// against that axis's cardinality before any I/O is attempted.
func (s *Store) ReadCellList(idx CellIndex, n int) ([]float64, error) {
	if !s.open {
		return nil, newErr(NotOpen, "read-list", s.path, nil)
	}
	if err := s.checkListRange(idx, n); err != nil {
		return nil, err
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		v, err := s.ReadCell(advanceInner(idx, s.header.Ordering, i))
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// WriteCellList writes vs starting at idx along the innermost axis.
func (s *Store) WriteCellList(idx CellIndex, vs []float64, opts WriteOpts) error {
	if !s.open {
		return newErr(NotOpen, "write-list", s.path, nil)
	}
	if err := s.checkListRange(idx, len(vs)); err != nil {
		return err
	}
	for i, v := range vs {
		if err := s.WriteCell(advanceInner(idx, s.header.Ordering, i), v, opts); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) checkListRange(idx CellIndex, n int) error {
	innerCount, err := innermostAxisCount(s.header.Ordering, s.counts)
	if err != nil {
		return newErr(Internal, "range-check", s.path, err)
	}
	innerStart := innerAxisValue(idx, s.header.Ordering)
	if innerCount > 0 && innerStart+int64(n) > innerCount {
		return newErr(OutOfRange, "range-check", s.path, nil)
	}
	return nil
}

// advanceInner returns idx with its innermost axis (per ordering)
// advanced by delta.
func advanceInner(idx CellIndex, o Ordering, delta int) CellIndex {
	perm, _ := axisPermutation(o)
	axis := perm[6]
	out := idx
	switch axis {
	case 0:
		out.Pedigree += int64(delta)
	case 1:
		out.Marker += int64(delta)
	case 2:
		out.Theta += int64(delta)
	case 3:
		out.GeneFreq += int64(delta)
	case 4:
		out.Penetrance += int64(delta)
	case 5:
		out.QModel += int64(delta)
	case 6:
		out.Diseq += int64(delta)
	}
	return out
}

func innerAxisValue(idx CellIndex, o Ordering) int64 {
	perm, _ := axisPermutation(o)
	return idx.values()[perm[6]]
}
