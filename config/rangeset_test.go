package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRangeTokensStep(t *testing.T) {
	rs, err := ParseRangeTokens([]string{"0-1:0.25"})
	require.NoError(t, err)
	require.Equal(t, 1, rs.Len())
	p := rs.Progressions[0]
	assert.Equal(t, 0.0, p.Start)
	assert.Equal(t, 1.0, p.End)
	assert.Equal(t, 0.25, p.Step)
	assert.False(t, p.OpenEnded)
}

func TestParseRangeTokensOpenEnded(t *testing.T) {
	rs, err := ParseRangeTokens([]string{"5-end:2"})
	require.NoError(t, err)
	p := rs.Progressions[0]
	assert.True(t, p.OpenEnded)
	assert.Equal(t, 5.0, p.Start)
	assert.Equal(t, 2.0, p.Step)
}

func TestParseRangeTokensMarker(t *testing.T) {
	rs, err := ParseRangeTokens([]string{"Marker"})
	require.NoError(t, err)
	assert.True(t, rs.Progressions[0].IsMarker)
}

func TestParseRangeTokensBareValue(t *testing.T) {
	rs, err := ParseRangeTokens([]string{"0.35"})
	require.NoError(t, err)
	p := rs.Progressions[0]
	assert.Equal(t, 0.35, p.Start)
	assert.Equal(t, 0.35, p.End)
	assert.Equal(t, 0.0, p.Step)
}

func TestParseRangeTokensInvalid(t *testing.T) {
	_, err := ParseRangeTokens([]string{"not-a-number"})
	assert.Error(t, err)
}

func TestRangeSetOverlaps(t *testing.T) {
	rs, err := ParseRangeTokens([]string{"0-10:1", "20-30:1"})
	require.NoError(t, err)
	assert.True(t, rs.Overlaps(5))
	assert.True(t, rs.Overlaps(25))
	assert.False(t, rs.Overlaps(15))
}
