package stabilize

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	md "go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/time/rate"

	"github.com/henrynw/openrating/internal/core"
	"github.com/henrynw/openrating/internal/sexoffset"
	"github.com/henrynw/openrating/internal/store"
)

// ladderRateLimit caps how many per-ladder transactions the nightly pass
// opens per second: a tenant with thousands of ladders shouldn't open
// thousands of transactions against Mongo in a tight loop.
const ladderRateLimit = 20

// defaultRegion is the region key used when a player's organization_id
// is empty; region mean-centering (§4.4 step 3) excludes it as a shift
// target since it has no distinguishing region identity. Region is not a
// column the schema defines explicitly (§6); this module uses
// organization_id as the region key, which is the only per-player
// grouping the schema already carries — recorded as a deliberate
// simplification.
const defaultRegion = "DEFAULT"

// Job is the nightly Stabilization Job (C8): inactivity decay, synergy
// decay, region mean-centering, graph smoothing, drift control, and
// offset shrinkage, run once per ladder inside a single transaction.
type Job struct {
	store   *store.Store
	params  core.Params
	offsets *sexoffset.Controller
	limiter *rate.Limiter
}

func New(s *store.Store, params core.Params, offsets *sexoffset.Controller) *Job {
	return &Job{store: s, params: params, offsets: offsets, limiter: rate.NewLimiter(ladderRateLimit, ladderRateLimit)}
}

// Run executes the nightly pass over every ladder with rating rows or
// still-live sex-offset rows (§4.4). asOf defaults to now if zero;
// horizonDays defaults to params.Graph.HorizonDays if zero.
func (j *Job) Run(ctx context.Context, asOf time.Time, horizonDays int) error {
	if asOf.IsZero() {
		asOf = time.Now()
	}
	if horizonDays <= 0 {
		horizonDays = j.params.Graph.HorizonDays
	}

	ladderIDs, err := j.store.Ratings.ListLadderIDs(ctx)
	if err != nil {
		return err
	}
	offsetLadderIDs, err := j.store.Offsets.ListLaddersWithOffsets(ctx)
	if err != nil {
		return err
	}
	ladderIDs = unionLadderIDs(ladderIDs, offsetLadderIDs)

	for _, ladderID := range ladderIDs {
		if j.limiter != nil {
			if err := j.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		if _, err := j.store.WithTransaction(ctx, func(sessCtx md.SessionContext) (interface{}, error) {
			return nil, j.runLadder(sessCtx, ladderID, asOf, horizonDays)
		}); err != nil {
			return err
		}
	}
	return nil
}

func (j *Job) runLadder(sessCtx md.SessionContext, ladderID string, asOf time.Time, horizonDays int) error {
	ratings, err := j.store.Ratings.ListByLadder(sessCtx, ladderID)
	if err != nil {
		return err
	}

	// Idempotence: a row already stamped with this asOf was processed by
	// an earlier run today; leave it untouched (§4.4 idempotence requirement).
	pending := ratings[:0]
	for _, row := range ratings {
		if row.UpdatedAt.Before(asOf) {
			pending = append(pending, row)
		}
	}
	if len(pending) == 0 {
		log.Ctx(sessCtx).Debug().Str("ladder_id", ladderID).Msg("stabilization: nothing pending")
		if err := j.stabilizeSynergies(sessCtx, ladderID, asOf); err != nil {
			return err
		}
		return j.shrinkOffsets(sessCtx, ladderID, asOf)
	}

	byID := make(map[string]*store.PlayerRating, len(pending))
	for i := range pending {
		byID[pending[i].PlayerID] = &pending[i]
	}

	applyInactivityDecay(j.params, byID, asOf)

	if err := j.regionMeanCenter(byID); err != nil {
		return err
	}

	if err := j.graphSmooth(sessCtx, ladderID, byID, asOf, horizonDays); err != nil {
		return err
	}

	driftControl(j.params, byID)

	for _, row := range byID {
		row.UpdatedAt = asOf
		if err := j.store.Ratings.Save(sessCtx, *row); err != nil {
			return err
		}
	}

	if err := j.stabilizeSynergies(sessCtx, ladderID, asOf); err != nil {
		return err
	}

	return j.shrinkOffsets(sessCtx, ladderID, asOf)
}

func (j *Job) shrinkOffsets(sessCtx md.SessionContext, ladderID string, asOf time.Time) error {
	if j.offsets == nil {
		return nil
	}
	return j.offsets.Shrink(sessCtx, ladderID, asOf)
}

// unionLadderIDs merges the rating-bearing and offset-bearing ladder sets
// so a ladder that only has ladder_sex_offsets rows left over (e.g. every
// player on it decayed out or was removed) still gets its offsets shrunk.
func unionLadderIDs(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, id := range a {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	for _, id := range b {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}
