package stabilize

import (
	"math"
	"time"

	md "go.mongodb.org/mongo-driver/mongo"
)

// stabilizeSynergies decays every pair's γ toward 0 by
// decayRatePerWeek, then applies a flat per-night regularization
// (§4.4 step 2). Rows already stamped with asOf are skipped so repeated
// same-day runs are no-ops.
func (j *Job) stabilizeSynergies(sessCtx md.SessionContext, ladderID string, asOf time.Time) error {
	pairs, err := j.store.Synergies.ListByLadder(sessCtx, ladderID)
	if err != nil {
		return err
	}

	for _, pair := range pairs {
		if !pair.UpdatedAt.Before(asOf) {
			continue
		}
		weeks := asOf.Sub(pair.UpdatedAt).Hours() / (24 * 7)
		if weeks < 0 {
			weeks = 0
		}
		gamma := pair.Gamma * math.Pow(1-j.params.Synergy.DecayRatePerWeek, weeks)
		gamma *= 1 - j.params.Synergy.Regularization
		if gamma < j.params.Synergy.GammaMin {
			gamma = j.params.Synergy.GammaMin
		}
		if gamma > j.params.Synergy.GammaMax {
			gamma = j.params.Synergy.GammaMax
		}

		pair.Gamma = gamma
		pair.UpdatedAt = asOf
		if err := j.store.Synergies.Save(sessCtx, pair); err != nil {
			return err
		}
	}
	return nil
}
