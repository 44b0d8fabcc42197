package stabilize

import (
	"math"
	"time"

	"github.com/henrynw/openrating/internal/core"
	"github.com/henrynw/openrating/internal/store"
)

// applyInactivityDecay grows σ for idle players (§4.4 step 1).
func applyInactivityDecay(params core.Params, byID map[string]*store.PlayerRating, asOf time.Time) {
	grace := params.Idle.ActivationDays / 7
	for _, row := range byID {
		weeks := asOf.Sub(row.UpdatedAt).Hours() / (24 * 7)
		if weeks < 0 {
			weeks = 0
		}
		effectiveWeeks := weeks - grace
		if effectiveWeeks <= 0 {
			continue
		}
		variance := row.Sigma * row.Sigma * math.Pow(1+params.Idle.RatePerWeek, effectiveWeeks)
		sigma := math.Sqrt(variance)
		if sigma > params.SigmaMax {
			sigma = params.SigmaMax
		}
		row.Sigma = sigma
	}
}
