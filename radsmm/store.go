package radsmm

import (
	"fmt"
	"os"
	"time"

	"blainsmith.com/go/seahash"
	"github.com/grailbio/base/traverse"
	"github.com/minio/highwayhash"
	"golang.org/x/sys/unix"
)

// maxBytesPerFile is the per-shard capacity that forces a split. The
// original used the platform LONG_MAX; this store targets the same
// order of magnitude via a fixed 32-bit-safe bound so sharding kicks
// in well before any real filesystem limit.
const maxBytesPerFile = 1 << 31

// fillBlockSize is the number of cells filled with Empty per write
// during create, in 1000-element blocks.
const fillBlockSize = 1000

// Store is an open RADSMM file, possibly sharded across several
// on-disk files sharing a common base path.
type Store struct {
	path     string
	header   *Header
	shards   []*os.File
	counts   axisCounts
	readOnly bool
	locked   bool
	open     bool

	index *indexTables
}

func shardPath(base string, n int32, shardIndex int) string {
	if n == 0 {
		return base
	}
	return fmt.Sprintf("%s_%02d", base, shardIndex)
}

func shardCount(n int32) int {
	if n == 0 {
		return 1
	}
	return int(n)
}

func axisCountsFromHeader(h *Header) axisCounts {
	c := axisCounts{
		pedigree: int64(h.PedigreeCount),
		marker:   int64(h.MarkerCount),
		theta:    int64(h.ThetaCount),
		gfreq:    int64(h.GeneFrequencyCount),
		pen:      int64(h.PenetranceCount),
		qmodel:   int64(h.QModelCount),
	}
	if h.UseDiseq == DiseqUsed {
		c.diseq = int64(h.DiseqCount)
	}
	return c
}

func totalCells(c axisCounts) int64 {
	total := int64(1)
	for _, n := range c.values() {
		if n > 0 {
			total *= n
		}
	}
	return total
}

// planSharding picks chunks_per_file and number_of_files so that each
// shard's data region stays under maxBytesPerFile.
func planSharding(cells int64, elemSize int) (chunksPerFile int64, numberOfFiles int32) {
	bytesTotal := cells * int64(elemSize)
	if bytesTotal <= maxBytesPerFile {
		return cells, 0
	}
	maxCellsPerFile := maxBytesPerFile / int64(elemSize)
	if maxCellsPerFile < 1 {
		maxCellsPerFile = 1
	}
	n := (cells + maxCellsPerFile - 1) / maxCellsPerFile
	return maxCellsPerFile, int32(n)
}

// cellLocation maps a flat logical cell offset to (shard index,
// in-shard cell offset) via a divmod. Shard 0 is
// the primary shard and additionally carries start-of-data ahead of
// its cell region.
func cellLocation(offset, chunksPerFile int64) (shard int, inShard int64) {
	if chunksPerFile <= 0 {
		return 0, offset
	}
	return int(offset / chunksPerFile), offset % chunksPerFile
}

// CreateOpts configures CreateFile beyond the fixed header layout.
type CreateOpts struct {
	Header      *Header
	MarkerList  []float64
	PedigreeList []int32
	ThetaList   []float64
	Penetrance  [][]float64 // one row per liability class
	QModelList  []float64
	DiseqList   []float64
	GeneFreqList []float64
	MarkerLabels   []string
	PedigreeLabels []string
	Description string
}

// CreateFile refuses if the base path already exists, lays out the
// header and every enabled index table in exact offset order, creates
// the extra shards if sharding is required, and fills every data cell
// with EMPTY.
func CreateFile(path string, opts CreateOpts) (store *Store, err error) {
	h := opts.Header
	if h == nil {
		return nil, newErr(BadParam, "create", path, nil)
	}
	if err := h.validate(); err != nil {
		return nil, newErr(BadParam, "create", path, err)
	}
	if err := checkTableSizes(h, opts); err != nil {
		return nil, newErr(BadParam, "create", path, err)
	}
	counts := axisCountsFromHeader(h)
	cells := totalCells(counts)
	chunksPerFile, numberOfFiles := planSharding(cells, h.ElementType.size())
	h.ChunksPerFile = chunksPerFile
	h.NumberOfFiles = numberOfFiles
	copy(h.Date[:], dateStamp())
	copy(h.Description[:], opts.Description)

	idx := &indexTables{
		markers:         opts.MarkerList,
		pedigrees:       opts.PedigreeList,
		thetas:          opts.ThetaList,
		penetrance:      opts.Penetrance,
		qmodels:         opts.QModelList,
		diseqs:          opts.DiseqList,
		geneFrequencies: opts.GeneFreqList,
		markerLabels:    opts.MarkerLabels,
		pedigreeLabels:  opts.PedigreeLabels,
	}
	layoutOffsets(h, idx)

	n := shardCount(numberOfFiles)
	shards := make([]*os.File, n)
	defer func() {
		if err != nil {
			for _, f := range shards {
				if f != nil {
					_ = f.Close()
				}
			}
		}
	}()

	for i := 0; i < n; i++ {
		p := shardPath(path, numberOfFiles, i)
		f, oerr := os.OpenFile(p, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0644)
		if oerr != nil {
			return nil, newErr(FileOpen, "create", p, oerr)
		}
		shards[i] = f
	}
	if lerr := unix.Flock(int(shards[0].Fd()), unix.LOCK_EX|unix.LOCK_NB); lerr != nil {
		return nil, newErr(Locking, "create", path, lerr)
	}

	headerBytes := encodeHeader(h)
	if _, werr := shards[0].WriteAt(headerBytes, 0); werr != nil {
		return nil, newErr(Writing, "create", path, werr)
	}
	if werr := idx.writeAllAt(shards[0], h); werr != nil {
		return nil, newErr(Writing, "create", path, werr)
	}

	st := &Store{
		path:   path,
		header: h,
		shards: shards,
		counts: counts,
		locked: true,
		open:   true,
		index:  idx,
	}
	if ferr := st.fillEmpty(); ferr != nil {
		return nil, ferr
	}
	return st, nil
}

// checkTableSizes confirms every table's length matches the count the
// header declares for it, so a mismatched caller fails loudly at
// create time rather than producing a header whose offsets disagree
// with its own counts.
func checkTableSizes(h *Header, opts CreateOpts) error {
	switch {
	case len(opts.MarkerList) != int(h.MarkerCount):
		return fmt.Errorf("marker list has %d entries, header declares %d", len(opts.MarkerList), h.MarkerCount)
	case len(opts.PedigreeList) != int(h.PedigreeCount):
		return fmt.Errorf("pedigree list has %d entries, header declares %d", len(opts.PedigreeList), h.PedigreeCount)
	case len(opts.ThetaList) != int(h.ThetaCount):
		return fmt.Errorf("theta list has %d entries, header declares %d", len(opts.ThetaList), h.ThetaCount)
	case len(opts.Penetrance) != int(h.LiabilityClasses):
		return fmt.Errorf("penetrance table has %d rows, header declares %d liability classes", len(opts.Penetrance), h.LiabilityClasses)
	case len(opts.QModelList) != int(h.QModelCount):
		return fmt.Errorf("q-model list has %d entries, header declares %d", len(opts.QModelList), h.QModelCount)
	case h.UseDiseq == DiseqUsed && len(opts.DiseqList) != int(h.DiseqCount):
		return fmt.Errorf("diseq list has %d entries, header declares %d", len(opts.DiseqList), h.DiseqCount)
	case len(opts.GeneFreqList) != int(h.GeneFrequencyCount):
		return fmt.Errorf("gene-frequency list has %d entries, header declares %d", len(opts.GeneFreqList), h.GeneFrequencyCount)
	}
	for _, row := range opts.Penetrance {
		if len(row) != int(h.PenetranceCount) {
			return fmt.Errorf("penetrance row has %d entries, header declares %d", len(row), h.PenetranceCount)
		}
	}
	return nil
}

func (s *Store) fillEmpty() error {
	elemSize := s.header.ElementType.size()
	block := make([]byte, fillBlockSize*elemSize)
	for i := 0; i < fillBlockSize; i++ {
		putCellBytes(block[i*elemSize:(i+1)*elemSize], s.header.ElementType, Empty)
	}
	cells := totalCells(s.counts)
	start := s.header.StartOfData
	remaining := cells
	offset := int64(0)
	for remaining > 0 {
		n := int64(fillBlockSize)
		if n > remaining {
			n = remaining
		}
		shard, inShard := cellLocation(offset, s.header.ChunksPerFile)
		f := s.shards[shard]
		at := inShard * int64(elemSize)
		if shard == 0 {
			at += start
		}
		buf := block[:n*int64(elemSize)]
		if _, err := f.WriteAt(buf, at); err != nil {
			return newErr(Writing, "create", s.path, err)
		}
		offset += n
		remaining -= n
	}
	return nil
}

// OpenFile opens the primary shard and every sibling shard, validates
// the cookie and header, and loads every enabled index table.
func OpenFile(path string, readOnly bool) (store *Store, err error) {
	flag := os.O_RDONLY
	if !readOnly {
		flag = os.O_RDWR
	}
	f0, oerr := os.OpenFile(shardPath(path, 0, 0), flag, 0)
	if oerr != nil {
		// number_of_files > 0: the primary shard carries a _00 suffix.
		f0, oerr = os.OpenFile(path+"_00", flag, 0)
		if oerr != nil {
			return nil, newErr(FileOpen, "open", path, oerr)
		}
	}
	defer func() {
		if err != nil {
			_ = f0.Close()
		}
	}()

	if !readOnly {
		how := unix.LOCK_EX | unix.LOCK_NB
		if lerr := unix.Flock(int(f0.Fd()), how); lerr != nil {
			return nil, newErr(Locking, "open", path, lerr)
		}
	}

	hbuf := make([]byte, headerSize)
	if _, rerr := f0.ReadAt(hbuf, 0); rerr != nil {
		return nil, newErr(Reading, "open", path, rerr)
	}
	h, derr := decodeHeader(hbuf)
	if derr != nil {
		return nil, newErr(FileHeader, "open", path, derr)
	}
	if verr := h.validate(); verr != nil {
		return nil, newErr(FileHeader, "open", path, verr)
	}

	idx, ierr := readAllIndexes(f0, h)
	if ierr != nil {
		return nil, newErr(Reading, "open", path, ierr)
	}

	n := shardCount(h.NumberOfFiles)
	shards := make([]*os.File, n)
	shards[0] = f0
	for i := 1; i < n; i++ {
		p := shardPath(path, h.NumberOfFiles, i)
		f, serr := os.OpenFile(p, flag, 0)
		if serr != nil {
			for j := 0; j < i; j++ {
				_ = shards[j].Close()
			}
			return nil, newErr(FileOpen, "open", p, serr)
		}
		shards[i] = f
	}

	return &Store{
		path:     path,
		header:   h,
		shards:   shards,
		counts:   axisCountsFromHeader(h),
		readOnly: readOnly,
		locked:   !readOnly,
		open:     true,
		index:    idx,
	}, nil
}

// Close releases the lock (if held) and closes every shard.
func (s *Store) Close() error {
	if !s.open {
		return newErr(NotOpen, "close", s.path, nil)
	}
	s.open = false
	if s.locked {
		_ = unix.Flock(int(s.shards[0].Fd()), unix.LOCK_UN)
	}
	errs := make([]error, len(s.shards))
	traverse.Each(len(s.shards), func(i int) error { // nolint: errcheck
		errs[i] = s.shards[i].Close()
		return nil
	})
	for _, e := range errs {
		if e != nil {
			return newErr(Internal, "close", s.path, e)
		}
	}
	return nil
}

// Sync issues a per-shard fsync.
func (s *Store) Sync() error {
	if !s.open {
		return newErr(NotOpen, "sync", s.path, nil)
	}
	for _, f := range s.shards {
		if err := f.Sync(); err != nil {
			return newErr(Writing, "sync", s.path, err)
		}
	}
	return nil
}

// Checksum computes a seahash/highwayhash digest pair over every
// shard's data region and returns it: 8 bytes of SeaHash followed by
// the first 24 bytes of HighwayHash-256. The digest is computed on
// demand only; it is not written into the header's reserved Checksum
// field, and OpenFile does not verify it.
func (s *Store) Checksum() ([32]byte, error) {
	var out [32]byte
	hh, err := highwayhash.New(make([]byte, 32))
	if err != nil {
		return out, newErr(Internal, "checksum", s.path, err)
	}
	var sh uint64
	elemSize := s.header.ElementType.size()
	cells := totalCells(s.counts)
	buf := make([]byte, fillBlockSize*elemSize)
	offset := int64(0)
	for offset < cells {
		n := int64(fillBlockSize)
		if offset+n > cells {
			n = cells - offset
		}
		shard, inShard := cellLocation(offset, s.header.ChunksPerFile)
		at := inShard * int64(elemSize)
		if shard == 0 {
			at += s.header.StartOfData
		}
		chunk := buf[:n*int64(elemSize)]
		if _, rerr := s.shards[shard].ReadAt(chunk, at); rerr != nil {
			return out, newErr(Reading, "checksum", s.path, rerr)
		}
		sh = seahash.Sum64(append(uint64ToBytes(sh), chunk...))
		hh.Write(chunk)
		offset += n
	}
	copy(out[:8], uint64ToBytes(sh))
	copy(out[8:], hh.Sum(nil)[:24])
	return out, nil
}

func uint64ToBytes(v uint64) []byte {
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
	return b
}

// dateStamp formats the current time into the header's fixed 17-byte
// date field, e.g. "01-Aug-2026 15:04".
func dateStamp() string {
	return time.Now().UTC().Format("02-Jan-2006 15:04")
}
