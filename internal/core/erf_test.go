package core

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStdNormalCDF_KnownPoints(t *testing.T) {
	require.InDelta(t, 0.5, StdNormalCDF(0), 1e-6)
	require.InDelta(t, 0.8413, StdNormalCDF(1), 1e-3)
	require.InDelta(t, 0.1587, StdNormalCDF(-1), 1e-3)
	require.InDelta(t, 0.9772, StdNormalCDF(2), 1e-3)
}

func TestStdNormalCDF_Symmetric(t *testing.T) {
	for _, x := range []float64{0.25, 0.5, 1.5, 3.0} {
		require.InDelta(t, 1.0, StdNormalCDF(x)+StdNormalCDF(-x), 1e-9)
	}
}

func TestStdNormalCDF_Monotonic(t *testing.T) {
	prev := StdNormalCDF(-5)
	for x := -4.0; x <= 5; x += 0.5 {
		cur := StdNormalCDF(x)
		require.GreaterOrEqual(t, cur, prev)
		prev = cur
	}
}
