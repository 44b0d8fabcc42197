package sexoffset

import (
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	md "go.mongodb.org/mongo-driver/mongo"

	"github.com/henrynw/openrating/internal/core"
	"github.com/henrynw/openrating/internal/store"
)

// Controller is the Sex-Offset Controller (C7): maintains per-ladder
// bias[M],bias[F],bias[X],bias[U] with eligibility gates, baseline
// centering, and (via Shrink, called by C8) nightly regularization.
//
// The eligibility cache is memoized per-process with a 6h TTL, using
// singleflight so concurrent matches on the same ladder collapse into
// one eligibility recomputation instead of stampeding the edge count
// query (§4.3 step 1, §9: "per-process caches ... memoization, not state").
type Controller struct {
	store  *store.Store
	params core.SexOffsetParams

	mu    sync.Mutex
	cache map[string]cacheEntry
	group singleflight.Group
}

type cacheEntry struct {
	eligible  bool
	expiresAt time.Time
}

const eligibilityCacheTTL = 6 * time.Hour

func New(s *store.Store, params core.SexOffsetParams) *Controller {
	return &Controller{store: s, params: params, cache: map[string]cacheEntry{}}
}

// Apply implements recorder.SexOffsetApplier — it is invoked once per
// rated match with the engine's raw signal (§4.3 steps 1-5).
func (c *Controller) Apply(sessCtx md.SessionContext, ladderID string, signal *core.SexOffsetSignal) error {
	if !c.params.Enabled {
		return nil
	}

	diffs := crossSexDiffs(signal.CountsA, signal.CountsB)
	isEdge := false
	for _, d := range diffs {
		if d != 0 {
			isEdge = true
			break
		}
	}
	if isEdge {
		if err := c.store.Edges.Record(sessCtx, ladderID, time.Now()); err != nil {
			return err
		}
	}

	eligible, err := c.isEligible(sessCtx, ladderID)
	if err != nil {
		return err
	}
	if !eligible {
		return nil
	}

	offsets, err := c.store.Offsets.GetAll(sessCtx, ladderID)
	if err != nil {
		return err
	}
	now := time.Now()

	for sex, diff := range diffs {
		if diff == 0 {
			continue
		}
		row := offsets[sex]
		delta := clamp(c.params.KFactor*signal.Surprise*float64(diff), -c.params.DeltaMax, c.params.DeltaMax)
		row.Bias = clamp(row.Bias+delta, -c.params.MaxAbs, c.params.MaxAbs)
		row.Matches += abs32(diff)
		row.LadderID = ladderID
		row.Sex = string(sex)
		row.UpdatedAt = now
		offsets[sex] = row
	}

	recenter(offsets, c.params.Baseline, now)

	for sex, row := range offsets {
		if sex == core.SexU {
			continue
		}
		if err := c.store.Offsets.Save(sessCtx, row); err != nil {
			return err
		}
	}

	c.invalidate(ladderID)
	return nil
}

// isEligible evaluates §4.3 step 1, memoized per ladder for 6h.
func (c *Controller) isEligible(sessCtx md.SessionContext, ladderID string) (bool, error) {
	c.mu.Lock()
	entry, ok := c.cache[ladderID]
	c.mu.Unlock()
	if ok && time.Now().Before(entry.expiresAt) {
		return entry.eligible, nil
	}

	result, err, _ := c.group.Do(ladderID, func() (interface{}, error) {
		since := time.Now().AddDate(0, 0, -90)
		edges, err := c.store.Edges.CountSince(sessCtx, ladderID, since)
		if err != nil {
			return nil, err
		}
		if edges < int64(c.params.MinEdges90d) {
			return false, nil
		}

		offsets, err := c.store.Offsets.GetAll(sessCtx, ladderID)
		if err != nil {
			return nil, err
		}
		width := ciWidth(offsets)
		return width <= c.params.MaxCIWidth, nil
	})
	if err != nil {
		return false, err
	}
	eligible := result.(bool)

	c.mu.Lock()
	c.cache[ladderID] = cacheEntry{eligible: eligible, expiresAt: time.Now().Add(eligibilityCacheTTL)}
	c.mu.Unlock()

	return eligible, nil
}

func (c *Controller) invalidate(ladderID string) {
	c.mu.Lock()
	delete(c.cache, ladderID)
	c.mu.Unlock()
}

func ciWidth(offsets map[core.Sex]store.SexOffset) float64 {
	keys := []core.Sex{core.SexM, core.SexF, core.SexX}
	min, max := offsets[keys[0]].Bias, offsets[keys[0]].Bias
	for _, k := range keys[1:] {
		b := offsets[k].Bias
		if b < min {
			min = b
		}
		if b > max {
			max = b
		}
	}
	return max - min
}

// crossSexDiffs returns countsA[k]-countsB[k] for k in {M,F,X} (§4.3 step 2).
func crossSexDiffs(a, b core.SexCounts) map[core.Sex]int {
	out := map[core.Sex]int{}
	for _, sex := range []core.Sex{core.SexM, core.SexF, core.SexX} {
		out[sex] = a[sex] - b[sex]
	}
	return out
}

// recenter subtracts bias[baseline] from every sex so the baseline's
// bias becomes exactly 0 (§4.3 step 3).
func recenter(offsets map[core.Sex]store.SexOffset, baseline core.Sex, now time.Time) {
	baseBias := offsets[baseline].Bias
	if baseBias == 0 {
		return
	}
	for sex, row := range offsets {
		if sex == core.SexU {
			continue
		}
		row.Bias -= baseBias
		row.UpdatedAt = now
		offsets[sex] = row
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func abs32(v int) int32 {
	if v < 0 {
		return int32(-v)
	}
	return int32(v)
}
