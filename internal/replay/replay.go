package replay

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	md "go.mongodb.org/mongo-driver/mongo"

	"github.com/henrynw/openrating/internal/core"
	"github.com/henrynw/openrating/internal/sexoffset"
	"github.com/henrynw/openrating/internal/store"
)

// InsightTarget names one touched rating line whose downstream,
// AI-narrated insights (out of scope here, §1) need recomputing after a
// replay changes its ratings.
type InsightTarget struct {
	PlayerID       string
	OrganizationID string
	Sport          string
	Discipline     string
}

// InsightRefresher is the external collaborator notified after a replay
// (§4.5 step 9). Left un-set in tests and standalone runs.
type InsightRefresher interface {
	EnqueueRefresh(ctx context.Context, targets []InsightTarget) error
}

// historyBatchSize bounds transaction size during replay, as required
// by §5: "Replay is chunked (500 matches per batch) to bound transaction
// size."
const historyBatchSize = 500

// Executor is the Replay Executor (C9): resets a ladder from scratch and
// re-runs every match in chronological order.
type Executor struct {
	store    *store.Store
	params   core.Params
	offsets  *sexoffset.Controller
	insights InsightRefresher
}

func New(s *store.Store, params core.Params, offsets *sexoffset.Controller, insights InsightRefresher) *Executor {
	return &Executor{store: s, params: params, offsets: offsets, insights: insights}
}

// Report is replayRatings'/processRatingReplayQueue's return value (§6, §4.5 step 8).
type Report struct {
	LadderID         string
	MatchesProcessed int
	PlayersTouched   []string
	PairUpdates      int
	ReplayFrom       *time.Time
	ReplayTo         *time.Time
	DryRun           bool

	// sport/discipline/orgID are carried from the last processed match
	// purely to address the insight-refresh notification (§4.5 step 9);
	// all matches on a ladder share sport+discipline by construction.
	sport, discipline, orgID string
}

// memPlayerState is the in-memory player/pair state the replay loop
// mutates directly (no per-match DB round trip), matching §4.5 step 3:
// "Build an in-memory playerStates map and pairStates map".
type memPlayerState struct {
	states map[string]*core.PlayerState
	params core.Params
}

func newMemPlayerState(params core.Params) *memPlayerState {
	return &memPlayerState{states: map[string]*core.PlayerState{}, params: params}
}

func (m *memPlayerState) GetPlayerState(playerID string) (*core.PlayerState, error) {
	if s, ok := m.states[playerID]; ok {
		return s, nil
	}
	s := &core.PlayerState{PlayerID: playerID, Mu: m.params.BaseMu, Sigma: m.params.BaseSigma, Sex: core.SexU}
	m.states[playerID] = s
	return s, nil
}

type memPairState struct {
	states map[string]*core.PairState
}

func newMemPairState() *memPairState {
	return &memPairState{states: map[string]*core.PairState{}}
}

func (m *memPairState) GetPairState(pairKey string, players []string) (*core.PairState, error) {
	if s, ok := m.states[pairKey]; ok {
		return s, nil
	}
	s := &core.PairState{PairKey: pairKey, Players: append([]string(nil), players...)}
	m.states[pairKey] = s
	return s, nil
}

// Replay rebuilds a ladder's rating-derived state from its raw matches
// (§4.5 "Replay"). When dryRun is true, nothing is written; the report
// still reflects what would have changed.
func (e *Executor) Replay(ctx context.Context, ladderID string, from *time.Time, dryRun bool) (*Report, error) {
	out, err := e.store.WithTransaction(ctx, func(sessCtx md.SessionContext) (interface{}, error) {
		return e.replayInTransaction(sessCtx, ladderID, from, dryRun)
	})
	if err != nil {
		return nil, err
	}
	report := out.(*Report)

	if !dryRun && e.insights != nil && len(report.PlayersTouched) > 0 {
		targets := make([]InsightTarget, 0, len(report.PlayersTouched))
		for _, playerID := range report.PlayersTouched {
			targets = append(targets, InsightTarget{
				PlayerID: playerID, OrganizationID: report.orgID,
				Sport: report.sport, Discipline: report.discipline,
			})
		}
		if err := e.insights.EnqueueRefresh(ctx, targets); err != nil {
			log.Ctx(ctx).Warn().Err(err).Str("ladder_id", ladderID).Msg("insight refresh enqueue failed")
		}
	}

	return report, nil
}

func (e *Executor) replayInTransaction(sessCtx md.SessionContext, ladderID string, from *time.Time, dryRun bool) (*Report, error) {
	matches, err := e.store.Matches.StreamChronological(sessCtx, ladderID, from)
	if err != nil {
		return nil, err
	}

	report := &Report{LadderID: ladderID, DryRun: dryRun}
	if len(matches) == 0 {
		return report, nil
	}

	if !dryRun {
		if err := e.store.Offsets.DeleteByLadder(sessCtx, ladderID); err != nil {
			return nil, err
		}
	}

	players := newMemPlayerState(e.params)
	pairs := newMemPairState()
	touched := map[string]struct{}{}

	var historyBatch []store.RatingEvent
	var pairHistoryBatch []store.PairSynergyHistory
	truncated := false

	flushHistory := func() error {
		if dryRun {
			historyBatch = historyBatch[:0]
			pairHistoryBatch = pairHistoryBatch[:0]
			return nil
		}
		if !truncated {
			if err := e.store.History.DeleteByLadder(sessCtx, ladderID); err != nil {
				return err
			}
			if err := e.store.SynergyHistory.DeleteByLadder(sessCtx, ladderID); err != nil {
				return err
			}
			if err := e.store.Synergies.DeleteByLadder(sessCtx, ladderID); err != nil {
				return err
			}
			if err := e.store.Ratings.DeleteByLadder(sessCtx, ladderID); err != nil {
				return err
			}
			truncated = true
		}
		if len(historyBatch) > 0 {
			if _, err := e.store.History.InsertMany(sessCtx, historyBatch); err != nil {
				return err
			}
			historyBatch = historyBatch[:0]
		}
		if len(pairHistoryBatch) > 0 {
			if err := e.store.SynergyHistory.InsertMany(sessCtx, pairHistoryBatch); err != nil {
				return err
			}
			pairHistoryBatch = pairHistoryBatch[:0]
		}
		return nil
	}

	orgByPlayer := map[string]string{}
	lastAppliedAtByPlayer := map[string]time.Time{}

	var lastAppliedAt time.Time
	for _, match := range matches {
		input := core.MatchInput{
			Sport:      core.Sport(match.Sport),
			Discipline: match.Discipline,
			Tier:       core.Tier(match.Tier),
			SideA:      match.SideA.Players,
			SideB:      match.SideB.Players,
			Games:      match.EngineGames(),
			MoVWeight:  match.MoVWeight,
			Winner:     match.Winner(),
		}

		result, err := core.UpdateMatch(e.params, input, players, pairs)
		if err != nil {
			return nil, err
		}

		appliedAt := match.AppliedAt()
		lastAppliedAt = appliedAt
		movWeight := 0.0
		if match.MoVWeight != nil {
			movWeight = *match.MoVWeight
		}
		report.sport, report.discipline, report.orgID = match.Sport, match.Discipline, match.OrganizationID
		for _, playerID := range match.SideA.Players {
			orgByPlayer[playerID] = match.OrganizationID
			lastAppliedAtByPlayer[playerID] = appliedAt
		}
		for _, playerID := range match.SideB.Players {
			orgByPlayer[playerID] = match.OrganizationID
			lastAppliedAtByPlayer[playerID] = appliedAt
		}

		if e.offsets != nil && result.SexOffset != nil && !dryRun {
			if err := e.offsets.Apply(sessCtx, ladderID, result.SexOffset); err != nil {
				return nil, err
			}
		}

		for _, pr := range result.PerPlayer {
			touched[pr.PlayerID] = struct{}{}
			historyBatch = append(historyBatch, store.RatingEvent{
				PlayerID: pr.PlayerID, LadderID: ladderID, MatchID: match.MatchID,
				MuBefore: pr.MuBefore, MuAfter: pr.MuAfter,
				SigmaBefore: pr.SigmaBefore, SigmaAfter: pr.SigmaAfter,
				Delta: pr.Delta, WinProbPre: pr.WinProbPre,
				MoVWeight: movWeight,
				CreatedAt: appliedAt,
			})
		}
		for _, pu := range result.PairUpdates {
			report.PairUpdates++
			pairHistoryBatch = append(pairHistoryBatch, store.PairSynergyHistory{
				LadderID: ladderID, PairKey: pu.PairKey, MatchID: match.MatchID,
				GammaBefore: pu.GammaBefore, GammaAfter: pu.GammaAfter, Delta: pu.Delta,
				CreatedAt: appliedAt,
			})
		}

		report.MatchesProcessed++
		if len(historyBatch) >= historyBatchSize {
			if err := flushHistory(); err != nil {
				return nil, err
			}
		}
	}

	if err := flushHistory(); err != nil {
		return nil, err
	}

	if !dryRun {
		replayTimestamp := lastAppliedAt
		if replayTimestamp.IsZero() {
			replayTimestamp = time.Now()
		}
		for id, state := range players.states {
			updatedAt, ok := lastAppliedAtByPlayer[id]
			if !ok {
				updatedAt = replayTimestamp
			}
			row := store.PlayerRating{
				PlayerID: id, LadderID: ladderID, OrgID: orgByPlayer[id], Mu: state.Mu, Sigma: state.Sigma,
				Sex: string(state.Sex), MatchesCount: state.MatchesCount, UpdatedAt: updatedAt,
			}
			if err := e.store.Ratings.Save(sessCtx, row); err != nil {
				return nil, err
			}
		}
		for key, state := range pairs.states {
			row := store.PairSynergy{
				LadderID: ladderID, PairKey: key, Players: state.Players,
				Gamma: state.Gamma, Matches: state.Matches, UpdatedAt: replayTimestamp,
			}
			if err := e.store.Synergies.Save(sessCtx, row); err != nil {
				return nil, err
			}
		}
	}

	for id := range touched {
		report.PlayersTouched = append(report.PlayersTouched, id)
	}
	report.ReplayFrom = from
	if !lastAppliedAt.IsZero() {
		report.ReplayTo = &lastAppliedAt
	}

	log.Ctx(sessCtx).Info().
		Str("ladder_id", ladderID).
		Int("matches_processed", report.MatchesProcessed).
		Bool("dry_run", dryRun).
		Msg("replay complete")

	return report, nil
}
