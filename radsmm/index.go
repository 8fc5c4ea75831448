package radsmm

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
)

func float64bits(v float64) uint64     { return math.Float64bits(v) }
func float64frombits(b uint64) float64 { return math.Float64frombits(b) }

// indexTables holds the in-memory copies of every index table named
// the engine names: marker list, pedigree list, theta list, per-class
// penetrance tables, q-model list, diseq list, gene-frequency list,
// and the two label tables.
type indexTables struct {
	markers         []float64
	pedigrees       []int32
	thetas          []float64
	penetrance      [][]float64
	qmodels         []float64
	diseqs          []float64
	geneFrequencies []float64
	markerLabels    []string
	pedigreeLabels  []string
}

// layoutOffsets assigns every *Offset field of h in the exact order
// the tables are written, so the offsets the writer uses always agree
// with what a reader reconstructs from the header alone.
func layoutOffsets(h *Header, idx *indexTables) {
	off := int64(headerSize)

	h.MarkerOffset = off
	off += int64(len(idx.markers)) * 8

	h.PedigreeOffset = off
	off += int64(len(idx.pedigrees)) * 4

	h.ThetaOffset = off
	off += int64(len(idx.thetas)) * 8

	h.PenetranceOffset = off
	for _, row := range idx.penetrance {
		off += int64(len(row)) * 8
	}

	h.QModelOffset = off
	off += int64(len(idx.qmodels)) * 8

	h.DiseqOffset = off
	off += int64(len(idx.diseqs)) * 8

	h.GeneFrequencyOffset = off
	off += int64(len(idx.geneFrequencies)) * 8

	h.MarkerLabelOffset = off
	markerLabelBytes := labelTableSize(idx.markerLabels)
	h.MarkerLabelSize = int32(markerLabelBytes)
	off += int64(markerLabelBytes)

	h.PedigreeLabelOffset = off
	pedigreeLabelBytes := labelTableSize(idx.pedigreeLabels)
	h.PedigreeLabelSize = int32(pedigreeLabelBytes)
	off += int64(pedigreeLabelBytes)

	h.StartOfData = off
}

// labelTableSize is a 4-byte label count, then a 4-byte length prefix
// per label plus its bytes, so the reader never has to scan for a
// terminator.
func labelTableSize(labels []string) int {
	n := 4
	for _, l := range labels {
		n += 4 + len(l)
	}
	return n
}

func writeFloat64Slice(f *os.File, off int64, vs []float64) error {
	buf := make([]byte, 8*len(vs))
	for i, v := range vs {
		binary.LittleEndian.PutUint64(buf[i*8:i*8+8], float64bits(v))
	}
	_, err := f.WriteAt(buf, off)
	return err
}

func readFloat64Slice(f *os.File, off int64, n int) ([]float64, error) {
	buf := make([]byte, 8*n)
	if _, err := f.ReadAt(buf, off); err != nil {
		return nil, err
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = float64frombits(binary.LittleEndian.Uint64(buf[i*8 : i*8+8]))
	}
	return out, nil
}

func writeInt32Slice(f *os.File, off int64, vs []int32) error {
	buf := make([]byte, 4*len(vs))
	for i, v := range vs {
		binary.LittleEndian.PutUint32(buf[i*4:i*4+4], uint32(v))
	}
	_, err := f.WriteAt(buf, off)
	return err
}

func readInt32Slice(f *os.File, off int64, n int) ([]int32, error) {
	buf := make([]byte, 4*n)
	if _, err := f.ReadAt(buf, off); err != nil {
		return nil, err
	}
	out := make([]int32, n)
	for i := range out {
		out[i] = int32(binary.LittleEndian.Uint32(buf[i*4 : i*4+4]))
	}
	return out, nil
}

func writeLabelTable(f *os.File, off int64, labels []string) error {
	var buf []byte
	var count [4]byte
	binary.LittleEndian.PutUint32(count[:], uint32(len(labels)))
	buf = append(buf, count[:]...)
	for _, l := range labels {
		var lenBuf [4]byte
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(l)))
		buf = append(buf, lenBuf[:]...)
		buf = append(buf, l...)
	}
	_, err := f.WriteAt(buf, off)
	return err
}

func readLabelTable(f *os.File, off int64, size int) ([]string, error) {
	buf := make([]byte, size)
	if _, err := f.ReadAt(buf, off); err != nil {
		return nil, err
	}
	if len(buf) < 4 {
		return nil, fmt.Errorf("truncated label table")
	}
	count := int(binary.LittleEndian.Uint32(buf[:4]))
	labels := make([]string, 0, count)
	p := 4
	for i := 0; i < count; i++ {
		if p+4 > len(buf) {
			return nil, fmt.Errorf("truncated label table")
		}
		l := int(binary.LittleEndian.Uint32(buf[p : p+4]))
		p += 4
		if p+l > len(buf) {
			return nil, fmt.Errorf("truncated label table")
		}
		labels = append(labels, string(buf[p:p+l]))
		p += l
	}
	return labels, nil
}

// writeAllAt writes every table using offsets already computed in h.
func (idx *indexTables) writeAllAt(f *os.File, h *Header) error {
	if err := writeFloat64Slice(f, h.MarkerOffset, idx.markers); err != nil {
		return err
	}
	if err := writeInt32Slice(f, h.PedigreeOffset, idx.pedigrees); err != nil {
		return err
	}
	if err := writeFloat64Slice(f, h.ThetaOffset, idx.thetas); err != nil {
		return err
	}
	penOff := h.PenetranceOffset
	for _, row := range idx.penetrance {
		if err := writeFloat64Slice(f, penOff, row); err != nil {
			return err
		}
		penOff += int64(len(row)) * 8
	}
	if err := writeFloat64Slice(f, h.QModelOffset, idx.qmodels); err != nil {
		return err
	}
	if h.UseDiseq == DiseqUsed {
		if err := writeFloat64Slice(f, h.DiseqOffset, idx.diseqs); err != nil {
			return err
		}
	}
	if err := writeFloat64Slice(f, h.GeneFrequencyOffset, idx.geneFrequencies); err != nil {
		return err
	}
	if err := writeLabelTable(f, h.MarkerLabelOffset, idx.markerLabels); err != nil {
		return err
	}
	if err := writeLabelTable(f, h.PedigreeLabelOffset, idx.pedigreeLabels); err != nil {
		return err
	}
	return nil
}

func readAllIndexes(f *os.File, h *Header) (*indexTables, error) {
	idx := &indexTables{}
	var err error
	if idx.markers, err = readFloat64Slice(f, int64(h.MarkerOffset), int(h.MarkerCount)); err != nil {
		return nil, err
	}
	if idx.pedigrees, err = readInt32Slice(f, int64(h.PedigreeOffset), int(h.PedigreeCount)); err != nil {
		return nil, err
	}
	if idx.thetas, err = readFloat64Slice(f, int64(h.ThetaOffset), int(h.ThetaCount)); err != nil {
		return nil, err
	}
	penOff := h.PenetranceOffset
	classes := int(h.LiabilityClasses)
	if classes == 0 && h.PenetranceCount > 0 {
		classes = 1
	}
	for c := 0; c < classes; c++ {
		row, rerr := readFloat64Slice(f, penOff, int(h.PenetranceCount))
		if rerr != nil {
			return nil, rerr
		}
		idx.penetrance = append(idx.penetrance, row)
		penOff += int64(h.PenetranceCount) * 8
	}
	if idx.qmodels, err = readFloat64Slice(f, h.QModelOffset, int(h.QModelCount)); err != nil {
		return nil, err
	}
	if h.UseDiseq == DiseqUsed {
		if idx.diseqs, err = readFloat64Slice(f, h.DiseqOffset, int(h.DiseqCount)); err != nil {
			return nil, err
		}
	}
	if idx.geneFrequencies, err = readFloat64Slice(f, h.GeneFrequencyOffset, int(h.GeneFrequencyCount)); err != nil {
		return nil, err
	}
	if idx.markerLabels, err = readLabelTable(f, h.MarkerLabelOffset, int(h.MarkerLabelSize)); err != nil {
		return nil, err
	}
	if idx.pedigreeLabels, err = readLabelTable(f, h.PedigreeLabelOffset, int(h.PedigreeLabelSize)); err != nil {
		return nil, err
	}
	return idx, nil
}
