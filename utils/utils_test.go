package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseThreshold(t *testing.T) {
	v, err := ParseThreshold("0")
	require.NoError(t, err)
	assert.Equal(t, 0, v)

	v, err = ParseThreshold("64")
	require.NoError(t, err)
	assert.Equal(t, 64, v)

	for _, bad := range []string{"-1", "65", "ten", "0.5", ""} {
		_, err := ParseThreshold(bad)
		assert.Error(t, err, "threshold %q must be rejected", bad)
	}
}

func TestParseFraction(t *testing.T) {
	v, err := ParseFraction("confidence", "0.25")
	require.NoError(t, err)
	assert.Equal(t, 0.25, v)

	for _, bad := range []string{"-0.1", "1.5", "high", ""} {
		_, err := ParseFraction("confidence", bad)
		assert.Error(t, err)
	}
}

func TestParseInputSize(t *testing.T) {
	w, h, err := ParseInputSize("640x640")
	require.NoError(t, err)
	assert.Equal(t, 640, w)
	assert.Equal(t, 640, h)

	w, h, err = ParseInputSize("1280X720")
	require.NoError(t, err)
	assert.Equal(t, 1280, w)
	assert.Equal(t, 720, h)

	for _, bad := range []string{"640", "640x", "x640", "0x640", "-640x480", "large"} {
		_, _, err := ParseInputSize(bad)
		assert.Error(t, err, "input size %q must be rejected", bad)
	}
}
