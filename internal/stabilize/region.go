package stabilize

import (
	"gonum.org/v1/gonum/stat"

	"github.com/henrynw/openrating/internal/store"
)

// regionMeanCenter shifts each non-default region's players toward the
// global mean μ, capped at maxShiftPerDay (§4.4 step 3).
func (j *Job) regionMeanCenter(byID map[string]*store.PlayerRating) error {
	if len(byID) == 0 {
		return nil
	}

	allMu := make([]float64, 0, len(byID))
	byRegion := map[string][]*store.PlayerRating{}
	for _, row := range byID {
		allMu = append(allMu, row.Mu)
		region := row.OrgID
		if region == "" {
			region = defaultRegion
		}
		byRegion[region] = append(byRegion[region], row)
	}
	globalMean := stat.Mean(allMu, nil)

	for region, rows := range byRegion {
		if region == defaultRegion {
			continue
		}
		mus := make([]float64, len(rows))
		for i, r := range rows {
			mus[i] = r.Mu
		}
		regionMean := stat.Mean(mus, nil)
		shift := clampAbs(regionMean-globalMean, j.params.Region.MaxShiftPerDay)
		if shift == 0 {
			continue
		}
		for _, r := range rows {
			r.Mu -= shift
		}
	}
	return nil
}

func clampAbs(v, limit float64) float64 {
	if v > limit {
		return limit
	}
	if v < -limit {
		return -limit
	}
	return v
}
