package radsmm

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// cookie is the 4-byte magic every RADSMM file starts with.
var cookie = [4]byte{'R', 'D', 'M', 'M'}

// ElementType selects the on-disk cell representation.
type ElementType byte

const (
	ElementFloat  ElementType = 'F'
	ElementDouble ElementType = 'D'
)

// ModelKind selects dichotomous vs. quantitative scoring.
type ModelKind byte

const (
	ModelDichotomous ModelKind = 'D'
	ModelQuantitative ModelKind = 'Q'
)

// MarkerMode selects two-point vs. multipoint analysis.
type MarkerMode byte

const (
	MarkerTwoPoint   MarkerMode = '2'
	MarkerMultipoint MarkerMode = 'M'
)

// UseDiseq selects whether the diseq axis is meaningful.
type UseDiseq byte

const (
	DiseqNone UseDiseq = 'N'
	DiseqUsed UseDiseq = 'Y'
)

// ThetaMatrixType records whether the theta list is a full male/female
// grid or a single sex-averaged diagonal. It is stored in the header
// only: the theta axis has ThetaCount entries under either type, and a
// grid's male and female values are not indexed separately.
type ThetaMatrixType byte

const (
	ThetaGrid     ThetaMatrixType = 'G'
	ThetaDiagonal ThetaMatrixType = 'D'
)

// Ordering is one of the six axis-nesting permutations used to map
// (pedigree, marker, theta, gfreq, pen, qmodel, diseq) indices to a
// single cell offset. Every letter nests pedigree outermost. 'A' nests
// diseq innermost; each later letter rotates the six remaining axes by
// one more step, so each letter has a different innermost axis (see
// axisPermutation).
type Ordering byte

const (
	OrderingA Ordering = 'A'
	OrderingB Ordering = 'B'
	OrderingC Ordering = 'C'
	OrderingD Ordering = 'D'
	OrderingE Ordering = 'E'
	OrderingF Ordering = 'F'
)

func validOrdering(o Ordering) bool {
	switch o {
	case OrderingA, OrderingB, OrderingC, OrderingD, OrderingE, OrderingF:
		return true
	default:
		return false
	}
}

// Bound limits enforced on load. A header whose counts
// exceed these is a file-header error, not silently accepted.
const (
	maxMarkers            = 200
	maxPedigrees          = 1000
	maxThetas             = 84000
	maxPenetrances        = 176750
	maxQModels            = 80000
	maxDiseqs             = 80000
	maxGeneFrequencies    = 100
	maxLiabilityClasses   = 12
	maxDiseqParameters    = 400
)

// Header is the fixed-layout RADSMM on-disk header, exactly as
// specified: cookie, version, a run of (count, offset) pairs with two
// interleaved mode/pad fields, four model-selector bytes, sharding
// parameters, and fixed-size reserved/date/description blocks.
type Header struct {
	Version    int32
	Subversion int32
	StartOfData int64

	MarkerCount    int32
	MarkerOffset   int64
	PedigreeCount  int32
	PedigreeOffset int64

	ThetaCount      int32
	ThetaOffset     int64
	ThetaMatrixType ThetaMatrixType

	PenetranceCount   int32
	LiabilityClasses  int32
	PenetranceOffset  int64

	QModelCount  int32
	QModelOffset int64

	DiseqCount  int32
	DiseqOffset int64

	GeneFrequencyCount  int32
	GeneFrequencyOffset int64

	MarkerLabelSize    int32
	MarkerLabelOffset  int64
	PedigreeLabelSize   int32
	PedigreeLabelOffset int64

	ElementType ElementType
	ModelKind   ModelKind
	MarkerMode  MarkerMode
	UseDiseq    UseDiseq

	ChunksPerFile  int64
	NumberOfFiles  int32
	Ordering       Ordering

	Checksum [32]byte // reserved digest bytes; written as zero and never filled in or verified (see Store.Checksum)

	Date        [17]byte
	Description [64]byte
}

func (et ElementType) size() int {
	if et == ElementDouble {
		return 8
	}
	return 4
}

// validate checks the bound limits and internal
// consistency of the model-selector bytes.
func (h *Header) validate() error {
	switch {
	case h.MarkerCount < 0 || h.MarkerCount > maxMarkers:
		return fmt.Errorf("marker count %d out of range", h.MarkerCount)
	case h.PedigreeCount < 0 || h.PedigreeCount >= maxPedigrees:
		return fmt.Errorf("pedigree count %d out of range", h.PedigreeCount)
	case h.ThetaCount < 0 || h.ThetaCount >= maxThetas:
		return fmt.Errorf("theta count %d out of range", h.ThetaCount)
	case h.PenetranceCount < 0 || h.PenetranceCount >= maxPenetrances:
		return fmt.Errorf("penetrance count %d out of range", h.PenetranceCount)
	case h.QModelCount < 0 || h.QModelCount >= maxQModels:
		return fmt.Errorf("q-model count %d out of range", h.QModelCount)
	case h.DiseqCount < 0 || h.DiseqCount >= maxDiseqs:
		return fmt.Errorf("diseq count %d out of range", h.DiseqCount)
	case h.GeneFrequencyCount < 0 || h.GeneFrequencyCount >= maxGeneFrequencies:
		return fmt.Errorf("gene-frequency count %d out of range", h.GeneFrequencyCount)
	case h.LiabilityClasses < 0 || h.LiabilityClasses >= maxLiabilityClasses:
		return fmt.Errorf("liability class count %d out of range", h.LiabilityClasses)
	}
	switch h.ElementType {
	case ElementFloat, ElementDouble:
	default:
		return fmt.Errorf("unknown element type %q", byte(h.ElementType))
	}
	switch h.ModelKind {
	case ModelDichotomous, ModelQuantitative:
	default:
		return fmt.Errorf("unknown model kind %q", byte(h.ModelKind))
	}
	switch h.MarkerMode {
	case MarkerTwoPoint, MarkerMultipoint:
	default:
		return fmt.Errorf("unknown marker mode %q", byte(h.MarkerMode))
	}
	if !validOrdering(h.Ordering) {
		return fmt.Errorf("unknown ordering %q", byte(h.Ordering))
	}
	return nil
}

// encodeHeader assembles the on-disk header field by field, matching
// an exact, explicit byte order rather than trusting a whole-
// struct binary.Write (Go struct padding is not guaranteed to match
// the layout the format specifies).
func encodeHeader(h *Header) []byte {
	var buf bytes.Buffer
	buf.Write(cookie[:])
	writeInt32(&buf, h.Version)
	writeInt32(&buf, h.Subversion)
	writeInt64(&buf, h.StartOfData)

	writeInt32(&buf, h.MarkerCount)
	writeInt64(&buf, h.MarkerOffset)
	writeInt32(&buf, h.PedigreeCount)
	writeInt64(&buf, h.PedigreeOffset)

	writeInt32(&buf, h.ThetaCount)
	writeInt64(&buf, h.ThetaOffset)
	buf.WriteByte(byte(h.ThetaMatrixType))
	buf.Write(make([]byte, 3)) // pad

	writeInt32(&buf, h.PenetranceCount)
	writeInt32(&buf, h.LiabilityClasses)
	writeInt64(&buf, h.PenetranceOffset)

	writeInt32(&buf, h.QModelCount)
	writeInt64(&buf, h.QModelOffset)

	writeInt32(&buf, h.DiseqCount)
	writeInt64(&buf, h.DiseqOffset)

	writeInt32(&buf, h.GeneFrequencyCount)
	writeInt64(&buf, h.GeneFrequencyOffset)

	writeInt32(&buf, h.MarkerLabelSize)
	writeInt64(&buf, h.MarkerLabelOffset)
	writeInt32(&buf, h.PedigreeLabelSize)
	writeInt64(&buf, h.PedigreeLabelOffset)

	buf.WriteByte(byte(h.ElementType))
	buf.WriteByte(byte(h.ModelKind))
	buf.WriteByte(byte(h.MarkerMode))
	buf.WriteByte(byte(h.UseDiseq))

	writeInt64(&buf, h.ChunksPerFile)
	writeInt32(&buf, h.NumberOfFiles)
	buf.WriteByte(byte(h.Ordering))

	buf.Write(h.Checksum[:])
	buf.Write(h.Date[:])
	buf.Write(h.Description[:])
	return buf.Bytes()
}

// decodeHeader is the exact inverse of encodeHeader.
func decodeHeader(b []byte) (*Header, error) {
	if len(b) < 4 || !bytes.Equal(b[:4], cookie[:]) {
		return nil, fmt.Errorf("bad cookie")
	}
	r := bytes.NewReader(b[4:])
	h := &Header{}
	h.Version = readInt32(r)
	h.Subversion = readInt32(r)
	h.StartOfData = readInt64(r)

	h.MarkerCount = readInt32(r)
	h.MarkerOffset = readInt64(r)
	h.PedigreeCount = readInt32(r)
	h.PedigreeOffset = readInt64(r)

	h.ThetaCount = readInt32(r)
	h.ThetaOffset = readInt64(r)
	h.ThetaMatrixType = ThetaMatrixType(readByte(r))
	skip(r, 3)

	h.PenetranceCount = readInt32(r)
	h.LiabilityClasses = readInt32(r)
	h.PenetranceOffset = readInt64(r)

	h.QModelCount = readInt32(r)
	h.QModelOffset = readInt64(r)

	h.DiseqCount = readInt32(r)
	h.DiseqOffset = readInt64(r)

	h.GeneFrequencyCount = readInt32(r)
	h.GeneFrequencyOffset = readInt64(r)

	h.MarkerLabelSize = readInt32(r)
	h.MarkerLabelOffset = readInt64(r)
	h.PedigreeLabelSize = readInt32(r)
	h.PedigreeLabelOffset = readInt64(r)

	h.ElementType = ElementType(readByte(r))
	h.ModelKind = ModelKind(readByte(r))
	h.MarkerMode = MarkerMode(readByte(r))
	h.UseDiseq = UseDiseq(readByte(r))

	h.ChunksPerFile = readInt64(r)
	h.NumberOfFiles = readInt32(r)
	h.Ordering = Ordering(readByte(r))

	readFull(r, h.Checksum[:])
	readFull(r, h.Date[:])
	readFull(r, h.Description[:])
	return h, nil
}

const headerSize = 4 /*cookie*/ + 4 + 4 + 8 + /*version,subversion,start*/
	4 + 8 + 4 + 8 + /*marker,pedigree*/
	4 + 8 + 1 + 3 + /*theta+pad*/
	4 + 4 + 8 + /*penetrance*/
	4 + 8 + /*qmodel*/
	4 + 8 + /*diseq*/
	4 + 8 + /*genefreq*/
	4 + 8 + 4 + 8 + /*labels*/
	1 + 1 + 1 + 1 + /*model chars*/
	8 + 4 + 1 + /*sharding*/
	32 + 17 + 64 /*checksum,date,description*/

func writeInt32(buf *bytes.Buffer, v int32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], uint32(v))
	buf.Write(tmp[:])
}

func writeInt64(buf *bytes.Buffer, v int64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], uint64(v))
	buf.Write(tmp[:])
}

func readInt32(r *bytes.Reader) int32 {
	var tmp [4]byte
	readFull(r, tmp[:])
	return int32(binary.LittleEndian.Uint32(tmp[:]))
}

func readInt64(r *bytes.Reader) int64 {
	var tmp [8]byte
	readFull(r, tmp[:])
	return int64(binary.LittleEndian.Uint64(tmp[:]))
}

func readByte(r *bytes.Reader) byte {
	b, _ := r.ReadByte()
	return b
}

func readFull(r *bytes.Reader, dst []byte) {
	_, _ = r.Read(dst)
}

func skip(r *bytes.Reader, n int) {
	buf := make([]byte, n)
	readFull(r, buf)
}
