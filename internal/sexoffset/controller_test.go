package sexoffset

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/henrynw/openrating/internal/core"
	"github.com/henrynw/openrating/internal/store"
)

func TestCrossSexDiffs(t *testing.T) {
	a := core.SexCounts{core.SexM: 2, core.SexF: 0}
	b := core.SexCounts{core.SexM: 0, core.SexF: 1}

	diffs := crossSexDiffs(a, b)
	require.Equal(t, 2, diffs[core.SexM])
	require.Equal(t, -1, diffs[core.SexF])
	require.Equal(t, 0, diffs[core.SexX])
}

func TestClamp(t *testing.T) {
	require.InDelta(t, 5.0, clamp(5, -10, 10), 1e-9)
	require.InDelta(t, 10.0, clamp(50, -10, 10), 1e-9)
	require.InDelta(t, -10.0, clamp(-50, -10, 10), 1e-9)
}

func TestCiWidth(t *testing.T) {
	offsets := map[core.Sex]store.SexOffset{
		core.SexM: {Bias: 10},
		core.SexF: {Bias: -5},
		core.SexX: {Bias: 2},
	}
	require.InDelta(t, 15.0, ciWidth(offsets), 1e-9)
}

func TestRecenter_ShiftsAllSexesSoBaselineIsZero(t *testing.T) {
	now := time.Now()
	offsets := map[core.Sex]store.SexOffset{
		core.SexM: {Bias: 12},
		core.SexF: {Bias: 4},
		core.SexX: {Bias: 0},
		core.SexU: {Bias: 0},
	}

	recenter(offsets, core.SexM, now)

	require.InDelta(t, 0.0, offsets[core.SexM].Bias, 1e-9)
	require.InDelta(t, -8.0, offsets[core.SexF].Bias, 1e-9)
	require.InDelta(t, -12.0, offsets[core.SexX].Bias, 1e-9)
	// U is never touched (§4.3: unknown sex always carries bias 0).
	require.InDelta(t, 0.0, offsets[core.SexU].Bias, 1e-9)
}

func TestRecenter_NoopWhenBaselineAlreadyZero(t *testing.T) {
	now := time.Now()
	offsets := map[core.Sex]store.SexOffset{
		core.SexM: {Bias: 0},
		core.SexF: {Bias: 7},
	}
	recenter(offsets, core.SexM, now)
	require.InDelta(t, 7.0, offsets[core.SexF].Bias, 1e-9)
}

func TestAbs32(t *testing.T) {
	require.Equal(t, int32(3), abs32(3))
	require.Equal(t, int32(3), abs32(-3))
	require.Equal(t, int32(0), abs32(0))
}
