package config

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/golang/snappy"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/recordio"
	"github.com/grailbio/base/recordio/recordiozstd"
)

func init() {
	recordiozstd.Init()
}

// DiseqEntry is one computed disequilibrium-parameter row: the D'
// value it was computed for and the resulting haplotype frequencies,
// cached so a re-run with an unchanged LD directive can skip
// recomputation.
type DiseqEntry struct {
	DPrime  float64
	HapFreq []float64
}

const diseqHeaderKey = "diseq-dprime-digest"

func marshalDiseqEntry(scratch []byte, v interface{}) ([]byte, error) {
	e := v.(*DiseqEntry)
	size := 8 + 4 + 8*len(e.HapFreq)
	buf := scratch
	if cap(buf) < size {
		buf = make([]byte, size)
	}
	buf = buf[:size]
	binary.LittleEndian.PutUint64(buf[0:8], math.Float64bits(e.DPrime))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(len(e.HapFreq)))
	for i, f := range e.HapFreq {
		binary.LittleEndian.PutUint64(buf[12+8*i:20+8*i], math.Float64bits(f))
	}
	return buf, nil
}

func unmarshalDiseqEntry(in []byte) (interface{}, error) {
	if len(in) < 12 {
		return nil, fmt.Errorf("config: truncated disequilibrium cache record")
	}
	n := int(binary.LittleEndian.Uint32(in[8:12]))
	if len(in) < 12+8*n {
		return nil, fmt.Errorf("config: truncated disequilibrium cache record")
	}
	e := &DiseqEntry{
		DPrime:  math.Float64frombits(binary.LittleEndian.Uint64(in[0:8])),
		HapFreq: make([]float64, n),
	}
	for i := range e.HapFreq {
		e.HapFreq[i] = math.Float64frombits(binary.LittleEndian.Uint64(in[12+8*i : 20+8*i]))
	}
	return e, nil
}

// diseqDigest is a snappy-compressed fingerprint of the DPrime grid an
// entry list was computed from, stored as a recordio header so
// LoadDiseqCache can tell a stale cache from a current one without
// decoding every record.
func diseqDigest(rs *RangeSet) string {
	var sb strings.Builder
	for _, p := range rs.Progressions {
		fmt.Fprintf(&sb, "%s;", p.String())
	}
	return string(snappy.Encode(nil, []byte(sb.String())))
}

// SaveDiseqCache persists entries to path as a single zstd-compressed
// recordio block, tagged with a digest of the DPrime grid they were
// computed from.
func SaveDiseqCache(ctx context.Context, path string, dprime *RangeSet, entries []*DiseqEntry) (err error) {
	out, err := file.Create(ctx, path)
	if err != nil {
		return fmt.Errorf("config: creating disequilibrium cache %s: %w", path, err)
	}
	defer func() {
		if e := out.Close(ctx); e != nil && err == nil {
			err = e
		}
	}()

	w := recordio.NewWriter(out.Writer(ctx), recordio.WriterOpts{
		Marshal:      marshalDiseqEntry,
		Transformers: []string{recordiozstd.Name},
	})
	w.AddHeader(diseqHeaderKey, diseqDigest(dprime))
	for _, e := range entries {
		w.Append(e)
	}
	w.SetTrailer([]byte(fmt.Sprintf("%d", len(entries))))
	return w.Finish()
}

// LoadDiseqCache reads back a cache written by SaveDiseqCache. It
// returns ok=false, with no error, when the cache's digest does not
// match dprime's current grid (the cache is stale, not corrupt).
func LoadDiseqCache(ctx context.Context, path string, dprime *RangeSet) (entries []*DiseqEntry, ok bool, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, false, fmt.Errorf("config: opening disequilibrium cache %s: %w", path, err)
	}
	defer func() {
		if e := in.Close(ctx); e != nil && err == nil {
			err = e
		}
	}()

	scanner := recordio.NewScanner(in.Reader(ctx), recordio.ScannerOpts{
		Unmarshal: unmarshalDiseqEntry,
	})
	want := diseqDigest(dprime)
	matched := false
	for _, kv := range scanner.Header() {
		if kv.Key == diseqHeaderKey && kv.Value.(string) == want {
			matched = true
		}
	}
	if !matched {
		return nil, false, nil
	}
	for scanner.Scan() {
		entries = append(entries, scanner.Get().(*DiseqEntry))
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		return nil, false, err
	}
	return entries, true, nil
}
