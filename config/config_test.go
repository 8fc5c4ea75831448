package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDispatchesByUnambiguousPrefix(t *testing.T) {
	d, errs := Parse("Pedigree myped.pre\nLiabilityClasses 2\n")
	require.Empty(t, errs)
	assert.Equal(t, "myped.pre", d.FileNames["PedigreeFile"])
	assert.Equal(t, 2, d.Integers["LiabilityClasses"])
}

func TestParseStripsCommentsAndSemicolons(t *testing.T) {
	d, errs := Parse("DryRun # enable dry run\nImprinting; SexLinked\n")
	require.Empty(t, errs)
	assert.True(t, d.Flags["DryRun"])
	assert.True(t, d.Flags["Imprinting"])
	assert.True(t, d.Flags["SexLinked"])
}

func TestParseUnrecognizedDirectiveSuggestsNearestNames(t *testing.T) {
	_, errs := Parse("Thta 0.1 0.2\n")
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "did you mean")
}

func TestParseAmbiguousPrefixReportsCandidates(t *testing.T) {
	// "M" is a prefix of MapFile, MODFile, Multipoint, MarkerToMarker, ...
	_, errs := Parse("M foo\n")
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "ambiguous")
}

func TestParseWrongArityIsReported(t *testing.T) {
	_, errs := Parse("DryRun extra-arg\n")
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "DryRun")
}

func TestValidateMultipointRequiresTraitPositions(t *testing.T) {
	d, errs := Parse("Multipoint 2\n")
	require.Empty(t, errs)
	_, verrs := Validate(d)
	require.NotEmpty(t, verrs)
	found := false
	for _, e := range verrs {
		if containsString(e.Error(), "TraitPositions") {
			found = true
		}
	}
	assert.True(t, found)
}

func TestValidateMultipointForbidsLD(t *testing.T) {
	d, errs := Parse("Multipoint 2\nTraitPositions 0-10:1\nLD\n")
	require.Empty(t, errs)
	_, verrs := Validate(d)
	require.NotEmpty(t, verrs)
}

func TestValidateLDDisallowsSexSpecific(t *testing.T) {
	d, errs := Parse("LD\nSexSpecific\nDPrime 0\nTheta 0.1\n")
	require.Empty(t, errs)
	_, verrs := Validate(d)
	require.NotEmpty(t, verrs)
}

func TestValidateQTNormalRequiresMeanAndStandardDev(t *testing.T) {
	d, errs := Parse("QT Normal\n")
	require.Empty(t, errs)
	_, verrs := Validate(d)
	require.NotEmpty(t, verrs)
}

func TestValidateAcceptsWellFormedDichotomousTwoPoint(t *testing.T) {
	d, errs := Parse("NonPolynomial\nTheta 0-0.5:0.1\nPenetrance 0.01 0.5 0.9\nDiseaseGeneFrequency 0.01\nAlpha 1\n")
	require.Empty(t, errs)
	m, verrs := Validate(d)
	require.Empty(t, verrs)
	require.NotNil(t, m)
	FillDefaults(m)
	assert.Equal(t, "pplfile.out", m.PPLFile)
	assert.Equal(t, 3, m.PhenoCodes.Len())
}

func TestFillDefaultsInsertsDPrimeGridUnderLD(t *testing.T) {
	d, errs := Parse("LD\n")
	require.Empty(t, errs)
	m, verrs := Validate(d)
	require.Empty(t, verrs)
	FillDefaults(m)
	assert.Equal(t, dprimeGridSize, m.DPrime.Len())
}

func containsString(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
