package store

import (
	"context"
	"time"

	md "go.mongodb.org/mongo-driver/mongo"

	"github.com/henrynw/openrating/internal/core"
	rmongo "github.com/henrynw/openrating/internal/mongo"
)

// Store aggregates every collection-backed repo the core relies on and
// exposes the Store API surface from §6 on top of them (C5 Ladder Store).
type Store struct {
	Mongo *rmongo.Client

	Ladders        *LadderRepo
	Ratings        *RatingRepo
	History        *HistoryRepo
	Synergies      *SynergyRepo
	SynergyHistory *SynergyHistoryRepo
	Offsets        *OffsetRepo
	Edges          *EdgeRepo
	Matches        *MatchRepo
	ReplayQueue    *ReplayQueueRepo
}

func New(mongoClient *rmongo.Client) *Store {
	db := mongoClient.DB
	return &Store{
		Mongo:          mongoClient,
		Ladders:        NewLadderRepo(db),
		Ratings:        NewRatingRepo(db),
		History:        NewHistoryRepo(db),
		Synergies:      NewSynergyRepo(db),
		SynergyHistory: NewSynergyHistoryRepo(db),
		Offsets:        NewOffsetRepo(db),
		Edges:          NewEdgeRepo(db),
		Matches:        NewMatchRepo(db),
		ReplayQueue:    NewReplayQueueRepo(db),
	}
}

// PlayerRatingView is the read-facing projection returned by
// GetPlayerRating / GetRatingSnapshot (§6).
type PlayerRatingView struct {
	PlayerID     string
	Mu           float64
	MuRaw        float64
	Sigma        float64
	MatchesCount int32
	Sex          core.Sex
	SexBias      float64
}

// EnsurePlayers resolves the ladder and seeds default-prior rows for any
// player id not yet present on it (§6 ensurePlayers). ids belonging to
// another organization must already have been rejected by the caller
// (organization ownership is an external-collaborator concern, §1); this
// method performs no existence or ownership check and gives every id it
// is given a rating row.
func (s *Store) EnsurePlayers(ctx context.Context, params core.Params, key LadderKey, ids []string, orgID string, sexByPlayer map[string]core.Sex) (string, []PlayerRating, error) {
	ladder, err := s.Ladders.Ensure(ctx, key)
	if err != nil {
		return "", nil, err
	}
	rows, err := s.Ratings.EnsurePlayers(ctx, params, ladder.LadderID, ids, orgID, sexByPlayer)
	if err != nil {
		return "", nil, err
	}
	return ladder.LadderID, rows, nil
}

// PairSpec names a doubles pair to pre-seed, used by EnsurePairSynergies.
type PairSpec struct {
	PairID  string
	Players []string
}

// EnsurePairSynergies lazily creates zero-γ rows for a batch of pairs
// (§6 ensurePairSynergies).
func (s *Store) EnsurePairSynergies(ctx context.Context, ladderID string, pairs []PairSpec) (map[string]PairSynergy, error) {
	out := make(map[string]PairSynergy, len(pairs))
	for _, p := range pairs {
		pairKey := core.PairKey(p.Players)
		row, err := s.Synergies.Ensure(ctx, ladderID, pairKey, p.Players)
		if err != nil {
			return nil, err
		}
		out[p.PairID] = *row
	}
	return out, nil
}

// GetPlayerRating returns a player's effective rating view, applying the
// sex-offset bias on read (§4.3: "Applied on reads as μ_effective = μ + bias[sex]").
func (s *Store) GetPlayerRating(ctx context.Context, playerID string, key LadderKey) (*PlayerRatingView, error) {
	ladderID := key.LadderID()
	row, err := s.Ratings.Get(ctx, playerID, ladderID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}
	return s.effectiveView(ctx, ladderID, *row)
}

// GetRatingSnapshot resolves a player's rating as of a point in time
// from history, falling back to the live rating row when asOf is nil or
// there is no history yet (§6 getRatingSnapshot).
func (s *Store) GetRatingSnapshot(ctx context.Context, playerID string, key LadderKey, asOf *time.Time) (*PlayerRatingView, *RatingEvent, error) {
	ladderID := key.LadderID()
	if asOf == nil {
		view, err := s.GetPlayerRating(ctx, playerID, key)
		return view, nil, err
	}

	ev, err := s.History.GetLatestForPlayer(ctx, playerID, ladderID, asOf)
	if err != nil {
		return nil, nil, err
	}
	if ev == nil {
		view, err := s.GetPlayerRating(ctx, playerID, key)
		return view, nil, err
	}

	row := PlayerRating{PlayerID: playerID, LadderID: ladderID, Mu: ev.MuAfter, Sigma: ev.SigmaAfter}
	live, err := s.Ratings.Get(ctx, playerID, ladderID)
	if err != nil {
		return nil, nil, err
	}
	if live != nil {
		row.Sex = live.Sex
	}
	view, err := s.effectiveView(ctx, ladderID, row)
	if err != nil {
		return nil, nil, err
	}
	return view, ev, nil
}

func (s *Store) effectiveView(ctx context.Context, ladderID string, row PlayerRating) (*PlayerRatingView, error) {
	offsets, err := s.Offsets.GetAll(ctx, ladderID)
	if err != nil {
		return nil, err
	}
	sex := core.Sex(row.Sex)
	bias := offsets[sex].Bias
	return &PlayerRatingView{
		PlayerID:     row.PlayerID,
		Mu:           row.Mu + bias,
		MuRaw:        row.Mu,
		Sigma:        row.Sigma,
		MatchesCount: row.MatchesCount,
		Sex:          sex,
		SexBias:      bias,
	}, nil
}

// ListRatingEvents pages through a ladder's history (§6 listRatingEvents).
func (s *Store) ListRatingEvents(ctx context.Context, key LadderKey, pageSize int32, pageToken string) (*ListPage, error) {
	return s.History.ListByLadder(ctx, key.LadderID(), pageSize, pageToken)
}

// GetRatingEvent is the single-row lookup half of §6's event API.
func (s *Store) GetRatingEvent(ctx context.Context, id any) (*RatingEvent, error) {
	oid, err := toObjectID(id)
	if err != nil {
		return nil, err
	}
	return s.History.Get(ctx, oid)
}

// WithTransaction is a typed pass-through to the underlying Mongo
// session wrapper, used by the recorder, stabilizer, and replay
// executor to get single-writer-per-ladder semantics (§5).
func (s *Store) WithTransaction(ctx context.Context, fn func(sessCtx md.SessionContext) (interface{}, error)) (interface{}, error) {
	return s.Mongo.WithTransaction(ctx, fn)
}
