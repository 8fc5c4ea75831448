package radsmm_test

import (
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/mathmed/kelvin/radsmm"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

func smallHeader() *radsmm.Header {
	return &radsmm.Header{
		Version:            1,
		PedigreeCount:      3,
		MarkerCount:        2,
		ThetaCount:         4,
		ThetaMatrixType:    radsmm.ThetaDiagonal,
		PenetranceCount:    3,
		LiabilityClasses:   1,
		QModelCount:        1,
		GeneFrequencyCount: 2,
		ElementType:        radsmm.ElementDouble,
		ModelKind:          radsmm.ModelDichotomous,
		MarkerMode:         radsmm.MarkerTwoPoint,
		UseDiseq:           radsmm.DiseqNone,
		Ordering:           radsmm.OrderingA,
	}
}

func smallOpts() radsmm.CreateOpts {
	h := smallHeader()
	return radsmm.CreateOpts{
		Header:         h,
		MarkerList:     []float64{1, 2},
		PedigreeList:   []int32{101, 102, 103},
		ThetaList:      []float64{0, 0.1, 0.2, 0.3},
		Penetrance:     [][]float64{{0.01, 0.5, 0.9}},
		QModelList:     []float64{0},
		GeneFreqList:   []float64{0.01, 0.02},
		MarkerLabels:   []string{"D1S1", "D1S2"},
		PedigreeLabels: []string{"fam1", "fam2", "fam3"},
		Description:    "unit test store",
	}
}

func cellValue(p, m, t, g, pen int64) float64 {
	return float64(p) + 100*float64(t) + 1000*float64(pen) + 10000*float64(g) + 0.01*float64(m)
}

func TestRoundTripDensePattern(t *testing.T) {
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	path := filepath.Join(tempDir, "store")

	st, err := radsmm.CreateFile(path, smallOpts())
	assert.NoError(t, err)

	h := smallHeader()
	for p := int64(0); p < int64(h.PedigreeCount); p++ {
		for m := int64(0); m < int64(h.MarkerCount); m++ {
			for th := int64(0); th < int64(h.ThetaCount); th++ {
				for g := int64(0); g < int64(h.GeneFrequencyCount); g++ {
					for pen := int64(0); pen < int64(h.PenetranceCount); pen++ {
						idx := radsmm.CellIndex{Pedigree: p, Marker: m, Theta: th, GeneFreq: g, Penetrance: pen}
						v := cellValue(p, m, th, g, pen)
						assert.NoError(t, st.WriteCell(idx, v, radsmm.WriteOpts{}))
					}
				}
			}
		}
	}
	assert.NoError(t, st.Close())

	st2, err := radsmm.OpenFile(path, false)
	assert.NoError(t, err)
	defer func() { assert.NoError(t, st2.Close()) }()

	var all []radsmm.CellIndex
	for p := int64(0); p < int64(h.PedigreeCount); p++ {
		for m := int64(0); m < int64(h.MarkerCount); m++ {
			for th := int64(0); th < int64(h.ThetaCount); th++ {
				for g := int64(0); g < int64(h.GeneFrequencyCount); g++ {
					for pen := int64(0); pen < int64(h.PenetranceCount); pen++ {
						all = append(all, radsmm.CellIndex{Pedigree: p, Marker: m, Theta: th, GeneFreq: g, Penetrance: pen})
					}
				}
			}
		}
	}
	for _, idx := range all {
		got, err := st2.ReadCell(idx)
		assert.NoError(t, err)
		want := cellValue(idx.Pedigree, idx.Marker, idx.Theta, idx.GeneFreq, idx.Penetrance)
		if math.Abs(got-want) > 1e-9 {
			t.Fatalf("cell %+v: got %v want %v", idx, got, want)
		}
	}

	rnd := rand.New(rand.NewSource(1))
	perm := rnd.Perm(len(all))
	for _, i := range perm {
		idx := all[i]
		got, err := st2.ReadCell(idx)
		assert.NoError(t, err)
		want := cellValue(idx.Pedigree, idx.Marker, idx.Theta, idx.GeneFreq, idx.Penetrance)
		if math.Abs(got-want) > 1e-9 {
			t.Fatalf("random-order cell %+v: got %v want %v", idx, got, want)
		}
	}

	for _, idx := range all {
		v := cellValue(idx.Pedigree, idx.Marker, idx.Theta, idx.GeneFreq, idx.Penetrance)
		err := st2.WriteCell(idx, v, radsmm.WriteOpts{CheckOverwrite: true})
		expect.NoError(t, err)
	}
}

func TestOverwriteGuardRejectsDivergentRewrite(t *testing.T) {
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	path := filepath.Join(tempDir, "store")
	st, err := radsmm.CreateFile(path, smallOpts())
	assert.NoError(t, err)
	defer func() { assert.NoError(t, st.Close()) }()

	idx := radsmm.CellIndex{}
	assert.NoError(t, st.WriteCell(idx, 1.0, radsmm.WriteOpts{}))

	err = st.WriteCell(idx, 2.0, radsmm.WriteOpts{CheckOverwrite: true})
	expect.HasSubstr(t, err.Error(), "writeover-valid-data")

	assert.NoError(t, st.WriteCell(idx, 1.0000001, radsmm.WriteOpts{CheckOverwrite: true}))
}

func TestOpenRejectsBadCookie(t *testing.T) {
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	path := filepath.Join(tempDir, "store")

	buf := make([]byte, 512)
	copy(buf, []byte("XDMM"))
	assert.NoError(t, os.WriteFile(path, buf, 0644))

	_, err := radsmm.OpenFile(path, true)
	if err == nil {
		t.Fatal("expected error opening file with bad cookie")
	}
	var rerr *radsmm.Error
	if !as(err, &rerr) {
		t.Fatalf("expected *radsmm.Error, got %T: %v", err, err)
	}
	if rerr.Code != radsmm.FileHeader {
		t.Fatalf("expected FileHeader code, got %v", rerr.Code)
	}
}

func TestOrderingPermutationsRoundTrip(t *testing.T) {
	orderings := []radsmm.Ordering{
		radsmm.OrderingA, radsmm.OrderingB, radsmm.OrderingC,
		radsmm.OrderingD, radsmm.OrderingE, radsmm.OrderingF,
	}
	for _, o := range orderings {
		tempDir, cleanup := testutil.TempDir(t, "", "")
		path := filepath.Join(tempDir, "store")
		opts := smallOpts()
		opts.Header.Ordering = o
		st, err := radsmm.CreateFile(path, opts)
		assert.NoError(t, err)

		idx := radsmm.CellIndex{Pedigree: 1, Marker: 1, Theta: 2, GeneFreq: 1, Penetrance: 2}
		assert.NoError(t, st.WriteCell(idx, 42.5, radsmm.WriteOpts{}))
		got, err := st.ReadCell(idx)
		assert.NoError(t, err)
		if got != 42.5 {
			t.Fatalf("ordering %c: got %v want 42.5", byte(o), got)
		}
		assert.NoError(t, st.Close())
		cleanup()
	}
}

func as(err error, target **radsmm.Error) bool {
	if e, ok := err.(*radsmm.Error); ok {
		*target = e
		return true
	}
	if e, ok := err.(interface{ Unwrap() error }); ok {
		return as(e.Unwrap(), target)
	}
	return false
}
