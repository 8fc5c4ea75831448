package cmd

import (
	"fmt"

	"github.com/mathmed/kelvin/radsmm"
)

// createOpts mirrors the header fields a caller can size a fresh store
// by; the index tables themselves are filled with an evenly spaced
// placeholder sequence rather than accepted as flags, since a real
// value table comes from a locus/frequency file this tool does not
// parse.
type createOpts struct {
	pedigrees, markers, thetas         int
	penetrances, liabilityClasses      int
	qmodels, geneFreqs                 int
	elementType, modelKind, markerMode string
	ordering                           string
}

func create(path string, o createOpts) error {
	if len(o.elementType) != 1 || len(o.modelKind) != 1 || len(o.markerMode) != 1 || len(o.ordering) != 1 {
		return fmt.Errorf("-element, -model, -marker-mode and -ordering each take exactly one character")
	}
	liabilityClasses := o.liabilityClasses
	if liabilityClasses < 1 {
		liabilityClasses = 1
	}
	h := &radsmm.Header{
		Version:            1,
		PedigreeCount:      int32(o.pedigrees),
		MarkerCount:        int32(o.markers),
		ThetaCount:         int32(o.thetas),
		ThetaMatrixType:    radsmm.ThetaDiagonal,
		PenetranceCount:    int32(o.penetrances),
		LiabilityClasses:   int32(liabilityClasses),
		QModelCount:        int32(o.qmodels),
		GeneFrequencyCount: int32(o.geneFreqs),
		ElementType:        radsmm.ElementType(o.elementType[0]),
		ModelKind:          radsmm.ModelKind(o.modelKind[0]),
		MarkerMode:         radsmm.MarkerMode(o.markerMode[0]),
		UseDiseq:           radsmm.DiseqNone,
		Ordering:           radsmm.Ordering(o.ordering[0]),
	}

	penetrance := make([][]float64, h.LiabilityClasses)
	for c := range penetrance {
		penetrance[c] = sequence(o.penetrances)
	}
	opts := radsmm.CreateOpts{
		Header:       h,
		MarkerList:   sequence(o.markers),
		PedigreeList: sequenceInt32(o.pedigrees),
		ThetaList:    sequence(o.thetas),
		Penetrance:   penetrance,
		QModelList:   sequence(o.qmodels),
		GeneFreqList: sequence(o.geneFreqs),
		Description:  "created by radsmmtool",
	}
	st, err := radsmm.CreateFile(path, opts)
	if err != nil {
		return err
	}
	return st.Close()
}

func sequence(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i)
	}
	return out
}

func sequenceInt32(n int) []int32 {
	out := make([]int32, n)
	for i := range out {
		out[i] = int32(i)
	}
	return out
}
