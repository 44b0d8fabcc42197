package stabilize

import (
	"gonum.org/v1/gonum/stat"

	"github.com/henrynw/openrating/internal/core"
	"github.com/henrynw/openrating/internal/store"
)

// driftControl z-standardizes μ to the target (baseMu, targetStd) and
// clamps the per-player delta before applying it (§4.4 step 5).
func driftControl(params core.Params, byID map[string]*store.PlayerRating) {
	if len(byID) < 2 {
		return
	}

	mus := make([]float64, 0, len(byID))
	for _, row := range byID {
		mus = append(mus, row.Mu)
	}
	mean := stat.Mean(mus, nil)
	std := stat.StdDev(mus, nil)
	if std == 0 {
		return
	}

	for _, row := range byID {
		z := (row.Mu - mean) / std
		target := params.BaseMu + z*params.Drift.TargetStd
		delta := clampAbs(target-row.Mu, params.Drift.MaxDailyDelta)
		row.Mu += delta
	}
}
