package stackalloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRoundsUpAndReleases(t *testing.T) {
	a, err := New(1)
	require.NoError(t, err)
	defer a.Release()

	assert.GreaterOrEqual(t, a.Size(), 1)
	b := a.Bytes()
	b[0] = 0xAB
	assert.Equal(t, byte(0xAB), a.Bytes()[0])
}

func TestNewRejectsNonPositiveSize(t *testing.T) {
	_, err := New(0)
	assert.Error(t, err)
}
