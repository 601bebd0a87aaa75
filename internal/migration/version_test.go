package migration

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLatestVersion(t *testing.T) {
	version, err := LatestVersion()
	require.NoError(t, err)
	require.GreaterOrEqual(t, version, uint(1))
}

func TestChecksumIsStable(t *testing.T) {
	first, err := Checksum()
	require.NoError(t, err)
	require.Len(t, first, 64)

	second, err := Checksum()
	require.NoError(t, err)
	require.Equal(t, first, second)
}
