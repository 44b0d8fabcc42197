package recorder

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	md "go.mongodb.org/mongo-driver/mongo"

	"github.com/henrynw/openrating/internal/core"
	"github.com/henrynw/openrating/internal/store"
)

// SexOffsetApplier is the C7 collaborator the recorder calls after the
// engine runs, kept as an interface to avoid recorder depending on
// sexoffset's internals (§4.5 step 3b: "apply sex-offset signal (C7)").
type SexOffsetApplier interface {
	Apply(sessCtx md.SessionContext, ladderID string, signal *core.SexOffsetSignal) error
}

// Recorder is the Match Recorder (C6): persists a match, invokes the
// engine, writes history atomically, enqueues replay when needed, and
// enforces (providerId, externalRef) idempotency.
type Recorder struct {
	store   *store.Store
	params  core.Params
	offsets SexOffsetApplier
}

func New(s *store.Store, params core.Params, offsets SexOffsetApplier) *Recorder {
	return &Recorder{store: s, params: params, offsets: offsets}
}

// Input is the caller-supplied match submission (§4.5, §6 recordMatch).
type Input struct {
	ProviderID     string
	ExternalRef    string
	OrganizationID string
	Ladder         store.LadderKey
	Tier           core.Tier
	SideA          []string
	SideB          []string
	Games          []core.Game
	Winner         core.WinnerSide
	MoVWeight      *float64
	StartTime      time.Time
	CompletedAt    *time.Time
	RawPayload     []byte
	Unrated        bool
	SkipReason     string
	SexByPlayer    map[string]core.Sex
}

// RatingEventResult is one entry of recordMatch's ordered ratingEvents
// return (§4.5 step 4).
type RatingEventResult struct {
	PlayerID      string
	RatingEventID string
	AppliedAt     time.Time
}

// Result is recordMatch's full return value.
type Result struct {
	MatchID      string
	RatingEvents []RatingEventResult
}

// RecordMatch implements §4.5's recording procedure.
func (r *Recorder) RecordMatch(ctx context.Context, in Input) (*Result, error) {
	if in.StartTime.IsZero() && in.CompletedAt == nil {
		return nil, fmt.Errorf("record match: start time is required when completed time is absent")
	}
	if in.ExternalRef != "" {
		existing, err := r.store.Matches.FindByIdempotencyKey(ctx, in.ProviderID, in.ExternalRef)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			events, err := r.existingRatingEvents(ctx, existing)
			if err != nil {
				return nil, err
			}
			return &Result{MatchID: existing.MatchID, RatingEvents: events}, nil
		}
	}

	matchID := uuid.NewString()
	ladderID := in.Ladder.LadderID()

	out, err := r.store.WithTransaction(ctx, func(sessCtx md.SessionContext) (interface{}, error) {
		return r.recordInTransaction(sessCtx, matchID, ladderID, in)
	})
	if err != nil {
		return nil, err
	}
	return out.(*Result), nil
}

func (r *Recorder) recordInTransaction(sessCtx md.SessionContext, matchID, ladderID string, in Input) (*Result, error) {
	ids := append(append([]string(nil), in.SideA...), in.SideB...)
	if _, _, err := r.store.EnsurePlayers(sessCtx, r.params, in.Ladder, ids, in.OrganizationID, in.SexByPlayer); err != nil {
		return nil, err
	}

	prevMax, err := r.store.Matches.MaxStartTime(sessCtx, ladderID)
	if err != nil {
		return nil, err
	}

	var result *core.MatchResult
	ratingStatus := store.RatingStatusUnrated
	if !in.Unrated {
		ratingStatus = store.RatingStatusRated
		playerFetcher := r.store.Ratings.NewPlayerStateFetcher(sessCtx, r.params, ladderID, in.OrganizationID)
		pairFetcher := r.store.Synergies.NewPairStateFetcher(sessCtx, ladderID)

		matchInput := core.MatchInput{
			Sport:      core.Sport(in.Ladder.Sport),
			Discipline: in.Ladder.Discipline,
			Tier:       in.Tier,
			SideA:      in.SideA,
			SideB:      in.SideB,
			Games:      in.Games,
			MoVWeight:  in.MoVWeight,
			Winner:     in.Winner,
		}

		result, err = core.UpdateMatch(r.params, matchInput, playerFetcher, pairFetcher)
		if err != nil {
			return nil, err
		}

		appliedAt := appliedAtFor(in)
		if r.offsets != nil && result.SexOffset != nil {
			if err := r.offsets.Apply(sessCtx, ladderID, result.SexOffset); err != nil {
				return nil, err
			}
		}
		if err := playerFetcher.Flush(appliedAt); err != nil {
			return nil, err
		}
		if err := pairFetcher.Flush(appliedAt); err != nil {
			return nil, err
		}
	} else {
		ratingStatus = store.RatingStatusSkipped
		if in.SkipReason == "" {
			ratingStatus = store.RatingStatusUnrated
		}
	}

	match := buildMatch(matchID, ladderID, in, ratingStatus)
	if err := r.store.Matches.Insert(sessCtx, match); err != nil {
		return nil, err
	}

	var ratingEvents []RatingEventResult
	if result != nil {
		ratingEvents, err = r.writeHistory(sessCtx, matchID, ladderID, in, result)
		if err != nil {
			return nil, err
		}
	}

	if prevMax != nil && in.StartTime.Before(*prevMax) {
		if err := r.store.ReplayQueue.Enqueue(sessCtx, ladderID, in.StartTime); err != nil {
			return nil, err
		}
		log.Ctx(sessCtx).Info().
			Str("ladder_id", ladderID).
			Str("match_id", matchID).
			Time("start_time", in.StartTime).
			Msg("late match enqueued for replay")
	}

	return &Result{MatchID: matchID, RatingEvents: ratingEvents}, nil
}

func appliedAtFor(in Input) time.Time {
	if in.CompletedAt != nil {
		return *in.CompletedAt
	}
	return in.StartTime
}

func buildMatch(matchID, ladderID string, in Input, status store.RatingStatus) store.Match {
	games := make([]store.MatchGame, 0, len(in.Games))
	for i, g := range in.Games {
		games = append(games, store.MatchGame{GameNo: int32(i + 1), ScoreA: g.ScoreA, ScoreB: g.ScoreB})
	}
	winner := ""
	switch in.Winner {
	case core.WinnerA:
		winner = "A"
	case core.WinnerB:
		winner = "B"
	}
	return store.Match{
		MatchID:          matchID,
		LadderID:         ladderID,
		OrganizationID:   in.OrganizationID,
		ProviderID:       in.ProviderID,
		ExternalRef:      in.ExternalRef,
		Sport:            string(in.Ladder.Sport),
		Discipline:       in.Ladder.Discipline,
		Tier:             string(in.Tier),
		SideA:            store.MatchSide{Players: in.SideA},
		SideB:            store.MatchSide{Players: in.SideB},
		Games:            games,
		Timing:           store.MatchTiming{StartTime: in.StartTime, CompletedAt: in.CompletedAt},
		RatingStatus:     status,
		RatingSkipReason: in.SkipReason,
		WinnerSide:       winner,
		MoVWeight:        in.MoVWeight,
		CreatedAt:        time.Now(),
	}
}

// writeHistory inserts per-player and per-pair history rows, then
// re-fetches each just-inserted row; a still-missing row after a
// successful insert is a fatal integrity violation (§4.5: "if a row is
// missing after write, re-fetch; if still missing, fail the request").
func (r *Recorder) writeHistory(sessCtx md.SessionContext, matchID, ladderID string, in Input, result *core.MatchResult) ([]RatingEventResult, error) {
	events := make([]store.RatingEvent, 0, len(result.PerPlayer))
	appliedAt := appliedAtFor(in)
	movWeight := 0.0
	if in.MoVWeight != nil {
		movWeight = *in.MoVWeight
	}
	for _, pr := range result.PerPlayer {
		events = append(events, store.RatingEvent{
			PlayerID:    pr.PlayerID,
			LadderID:    ladderID,
			MatchID:     matchID,
			MuBefore:    pr.MuBefore,
			MuAfter:     pr.MuAfter,
			SigmaBefore: pr.SigmaBefore,
			SigmaAfter:  pr.SigmaAfter,
			Delta:       pr.Delta,
			WinProbPre:  pr.WinProbPre,
			MoVWeight:   movWeight,
			CreatedAt:   appliedAt,
		})
	}
	ids, err := r.store.History.InsertMany(sessCtx, events)
	if err != nil {
		return nil, err
	}

	out := make([]RatingEventResult, len(ids))
	for i, id := range ids {
		row, err := r.store.History.Get(sessCtx, id)
		if err != nil {
			return nil, err
		}
		if row == nil {
			return nil, &core.ReplayIntegrityError{LadderID: ladderID, MatchID: matchID, PlayerID: events[i].PlayerID}
		}
		out[i] = RatingEventResult{PlayerID: row.PlayerID, RatingEventID: id.Hex(), AppliedAt: row.CreatedAt}
	}

	if len(result.PairUpdates) > 0 {
		pairRows := make([]store.PairSynergyHistory, 0, len(result.PairUpdates))
		for _, pu := range result.PairUpdates {
			pairRows = append(pairRows, store.PairSynergyHistory{
				LadderID:    ladderID,
				PairKey:     pu.PairKey,
				MatchID:     matchID,
				GammaBefore: pu.GammaBefore,
				GammaAfter:  pu.GammaAfter,
				Delta:       pu.Delta,
				CreatedAt:   appliedAt,
			})
		}
		if err := r.store.SynergyHistory.InsertMany(sessCtx, pairRows); err != nil {
			return nil, err
		}
	}

	return out, nil
}

// existingRatingEvents resolves the idempotent-replay branch's return
// value: the previously written events, ordered as the original match's
// side A then side B player order (§4.5 step 1, §8 invariant 4).
func (r *Recorder) existingRatingEvents(ctx context.Context, m *store.Match) ([]RatingEventResult, error) {
	order := append(append([]string(nil), m.SideA.Players...), m.SideB.Players...)

	rows, err := r.store.History.GetByMatch(ctx, m.MatchID)
	if err != nil {
		return nil, err
	}
	byPlayer := make(map[string]store.RatingEvent, len(rows))
	for _, ev := range rows {
		byPlayer[ev.PlayerID] = ev
	}

	out := make([]RatingEventResult, 0, len(order))
	for _, playerID := range order {
		ev, ok := byPlayer[playerID]
		if !ok {
			return nil, fmt.Errorf("idempotent replay: missing history row for player %s on match %s", playerID, m.MatchID)
		}
		out = append(out, RatingEventResult{PlayerID: playerID, RatingEventID: ev.ID.Hex(), AppliedAt: ev.CreatedAt})
	}
	return out, nil
}
