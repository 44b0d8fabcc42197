package stabilize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/henrynw/openrating/internal/core"
	"github.com/henrynw/openrating/internal/store"
)

func TestApplyInactivityDecay_GrowsSigmaPastGracePeriod(t *testing.T) {
	params := core.DefaultParams()
	asOf := time.Now()
	byID := map[string]*store.PlayerRating{
		"p1": {PlayerID: "p1", Sigma: 100, UpdatedAt: asOf.AddDate(0, 0, -60)},
	}

	applyInactivityDecay(params, byID, asOf)

	require.Greater(t, byID["p1"].Sigma, 100.0)
	require.LessOrEqual(t, byID["p1"].Sigma, params.SigmaMax)
}

func TestApplyInactivityDecay_NoopWithinGracePeriod(t *testing.T) {
	params := core.DefaultParams()
	asOf := time.Now()
	byID := map[string]*store.PlayerRating{
		"p1": {PlayerID: "p1", Sigma: 100, UpdatedAt: asOf.AddDate(0, 0, -1)},
	}

	applyInactivityDecay(params, byID, asOf)

	require.InDelta(t, 100.0, byID["p1"].Sigma, 1e-9)
}

func TestClampAbs(t *testing.T) {
	require.InDelta(t, 5.0, clampAbs(5, 10), 1e-9)
	require.InDelta(t, 10.0, clampAbs(50, 10), 1e-9)
	require.InDelta(t, -10.0, clampAbs(-50, 10), 1e-9)
}

func TestDriftControl_PullsOutliersTowardBaseMu(t *testing.T) {
	params := core.DefaultParams()
	params.Drift.MaxDailyDelta = 1000 // p3's pull (about -1096) is still clamped to -1000
	byID := map[string]*store.PlayerRating{
		"p1": {PlayerID: "p1", Mu: 1500},
		"p2": {PlayerID: "p2", Mu: 1500},
		"p3": {PlayerID: "p3", Mu: 3000},
	}

	driftControl(params, byID)

	// p3 is the outlier; z-standardization should pull it toward the target.
	require.Less(t, byID["p3"].Mu, 3000.0)
}

func TestDriftControl_ClampsPerPlayerDelta(t *testing.T) {
	params := core.DefaultParams()
	params.Drift.MaxDailyDelta = 1
	byID := map[string]*store.PlayerRating{
		"p1": {PlayerID: "p1", Mu: 1500},
		"p2": {PlayerID: "p2", Mu: 1500},
		"p3": {PlayerID: "p3", Mu: 5000},
	}

	driftControl(params, byID)

	require.InDelta(t, 4999.0, byID["p3"].Mu, 1e-6)
}

func TestDriftControl_SkipsWhenFewerThanTwoPlayers(t *testing.T) {
	params := core.DefaultParams()
	byID := map[string]*store.PlayerRating{
		"p1": {PlayerID: "p1", Mu: 1500},
	}
	driftControl(params, byID)
	require.InDelta(t, 1500.0, byID["p1"].Mu, 1e-9)
}

func TestJob_RegionMeanCenter_ShiftsNonDefaultRegionTowardGlobalMean(t *testing.T) {
	params := core.DefaultParams()
	params.Region.MaxShiftPerDay = 1000
	j := &Job{params: params}

	byID := map[string]*store.PlayerRating{
		"p1": {PlayerID: "p1", OrgID: "", Mu: 1500},
		"p2": {PlayerID: "p2", OrgID: "", Mu: 1500},
		"p3": {PlayerID: "p3", OrgID: "club-x", Mu: 1700},
		"p4": {PlayerID: "p4", OrgID: "club-x", Mu: 1700},
	}

	err := j.regionMeanCenter(byID)
	require.NoError(t, err)

	require.Less(t, byID["p3"].Mu, 1700.0)
	require.Less(t, byID["p4"].Mu, 1700.0)
	// default-region rows are never shifted.
	require.InDelta(t, 1500.0, byID["p1"].Mu, 1e-9)
}

func TestJob_RegionMeanCenter_ClampsShiftToMaxPerDay(t *testing.T) {
	params := core.DefaultParams()
	params.Region.MaxShiftPerDay = 5
	j := &Job{params: params}

	byID := map[string]*store.PlayerRating{
		"p1": {PlayerID: "p1", OrgID: "", Mu: 1500},
		"p2": {PlayerID: "p2", OrgID: "club-x", Mu: 2000},
	}

	err := j.regionMeanCenter(byID)
	require.NoError(t, err)

	require.InDelta(t, 1995.0, byID["p2"].Mu, 1e-6)
}
