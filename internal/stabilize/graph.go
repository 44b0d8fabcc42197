package stabilize

import (
	"time"

	md "go.mongodb.org/mongo-driver/mongo"

	"github.com/henrynw/openrating/internal/store"
)

// graphSmooth builds an undirected graph of players who shared any match
// in the last horizonDays and pulls each still-provisional player's μ
// toward the mean μ of its neighbors (§4.4 step 4).
func (j *Job) graphSmooth(sessCtx md.SessionContext, ladderID string, byID map[string]*store.PlayerRating, asOf time.Time, horizonDays int) error {
	from := asOf.AddDate(0, 0, -horizonDays)
	matches, err := j.store.Matches.StreamChronological(sessCtx, ladderID, &from)
	if err != nil {
		return err
	}

	neighbors := map[string]map[string]struct{}{}
	addEdge := func(a, b string) {
		if a == b {
			return
		}
		if neighbors[a] == nil {
			neighbors[a] = map[string]struct{}{}
		}
		neighbors[a][b] = struct{}{}
	}

	for _, m := range matches {
		all := append(append([]string(nil), m.SideA.Players...), m.SideB.Players...)
		for i := 0; i < len(all); i++ {
			for k := i + 1; k < len(all); k++ {
				addEdge(all[i], all[k])
				addEdge(all[k], all[i])
			}
		}
	}

	muCache := map[string]float64{}
	muOf := func(playerID string) (float64, bool) {
		if v, ok := muCache[playerID]; ok {
			return v, true
		}
		if row, ok := byID[playerID]; ok {
			muCache[playerID] = row.Mu
			return row.Mu, true
		}
		row, err := j.store.Ratings.Get(sessCtx, playerID, ladderID)
		if err != nil || row == nil {
			return 0, false
		}
		muCache[playerID] = row.Mu
		return row.Mu, true
	}

	for playerID, row := range byID {
		if row.Sigma > j.params.Graph.SigmaProvisional {
			continue
		}
		peers := neighbors[playerID]
		if len(peers) == 0 {
			continue
		}
		var sum float64
		var n int
		for peer := range peers {
			if mu, ok := muOf(peer); ok {
				sum += mu
				n++
			}
		}
		if n == 0 {
			continue
		}
		neighborMean := sum / float64(n)
		row.Mu = row.Mu - j.params.Graph.SmoothingLambda*(row.Mu-neighborMean)
	}

	return nil
}
