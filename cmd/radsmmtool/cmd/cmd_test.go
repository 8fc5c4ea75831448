package cmd

import (
	"path/filepath"
	"testing"

	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"

	"github.com/mathmed/kelvin/radsmm"
)

func TestCreateDumpChecksumRoundTrip(t *testing.T) {
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	path := filepath.Join(tempDir, "store")

	err := create(path, createOpts{
		pedigrees: 2, markers: 1, thetas: 3, penetrances: 2, liabilityClasses: 1,
		qmodels: 1, geneFreqs: 1,
		elementType: "D", modelKind: "D", markerMode: "2", ordering: "A",
	})
	assert.NoError(t, err)

	assert.NoError(t, dump(path, true))
	assert.NoError(t, checksum(path))

	st, err := radsmm.OpenFile(path, true)
	assert.NoError(t, err)
	defer func() { assert.NoError(t, st.Close()) }()
	h := st.Header()
	if h.PedigreeCount != 2 || h.MarkerCount != 1 || h.ThetaCount != 3 {
		t.Fatalf("unexpected header after create: %+v", h)
	}
}

func TestCreateRejectsMultiCharacterSelectors(t *testing.T) {
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	path := filepath.Join(tempDir, "store")

	err := create(path, createOpts{elementType: "DD", modelKind: "D", markerMode: "2", ordering: "A"})
	if err == nil {
		t.Fatal("expected error for multi-character -element flag")
	}
}
