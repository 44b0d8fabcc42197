package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/henrynw/openrating/internal/core"
)

// PlayerRating is the player_ratings row (§3, §6).
type PlayerRating struct {
	PlayerID     string    `bson:"player_id"`
	LadderID     string    `bson:"ladder_id"`
	OrgID        string    `bson:"organization_id"`
	Mu           float64   `bson:"mu"`
	Sigma        float64   `bson:"sigma"`
	Sex          string    `bson:"sex"`
	MatchesCount int32     `bson:"matches_count"`
	UpdatedAt    time.Time `bson:"updated_at"`
}

// RatingRepo persists player_ratings (§6).
type RatingRepo struct{ c *mongo.Collection }

func NewRatingRepo(db *mongo.Database) *RatingRepo {
	r := &RatingRepo{c: db.Collection("player_ratings")}
	_, _ = r.c.Indexes().CreateOne(context.Background(), mongo.IndexModel{
		Keys:    bson.D{{Key: "player_id", Value: 1}, {Key: "ladder_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return r
}

func ratingFilter(playerID, ladderID string) bson.M {
	return bson.M{"player_id": playerID, "ladder_id": ladderID}
}

// EnsurePlayers upserts the default prior (baseMu, baseSigma, 0 matches)
// for every id that has no existing row on this ladder, returning the
// full set of rows in the same order as ids (§6 ensurePlayers, §3
// PlayerRating invariant: "on first ensure, (μ,σ,matches)=(baseMu,baseSigma,0)").
func (r *RatingRepo) EnsurePlayers(ctx context.Context, params core.Params, ladderID string, ids []string, orgID string, sexByPlayer map[string]core.Sex) ([]PlayerRating, error) {
	now := time.Now()
	out := make([]PlayerRating, 0, len(ids))
	for _, id := range ids {
		sex := sexByPlayer[id]
		if sex == "" {
			sex = core.SexU
		}
		filter := ratingFilter(id, ladderID)
		update := bson.M{
			"$setOnInsert": bson.M{
				"player_id":       id,
				"ladder_id":       ladderID,
				"organization_id": orgID,
				"mu":              params.BaseMu,
				"sigma":           params.BaseSigma,
				"sex":             string(sex),
				"matches_count":   int32(0),
				"updated_at":      now,
			},
		}
		if _, err := r.c.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true)); err != nil {
			return nil, err
		}
		var row PlayerRating
		if err := r.c.FindOne(ctx, filter).Decode(&row); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, nil
}

// Get fetches one player's rating row, or nil if the player has never
// appeared on this ladder (§6 getPlayerRating).
func (r *RatingRepo) Get(ctx context.Context, playerID, ladderID string) (*PlayerRating, error) {
	var row PlayerRating
	err := r.c.FindOne(ctx, ratingFilter(playerID, ladderID)).Decode(&row)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// Save writes a player's post-match rating state (§4.5 step 3b).
func (r *RatingRepo) Save(ctx context.Context, row PlayerRating) error {
	filter := ratingFilter(row.PlayerID, row.LadderID)
	update := bson.M{"$set": bson.M{
		"organization_id": row.OrgID,
		"mu":              row.Mu,
		"sigma":           row.Sigma,
		"sex":             row.Sex,
		"matches_count":   row.MatchesCount,
		"updated_at":      row.UpdatedAt,
	}}
	_, err := r.c.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return err
}

// ListLadderIDs returns every distinct ladder that has at least one
// rating row, used by the stabilization job to enumerate its nightly
// work (§4.4).
func (r *RatingRepo) ListLadderIDs(ctx context.Context) ([]string, error) {
	values, err := r.c.Distinct(ctx, "ladder_id", bson.M{})
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out, nil
}

// ListByLadder streams every rating row for a ladder, used by the
// stabilization job (§4.4).
func (r *RatingRepo) ListByLadder(ctx context.Context, ladderID string) ([]PlayerRating, error) {
	cur, err := r.c.Find(ctx, bson.M{"ladder_id": ladderID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var rows []PlayerRating
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// DeleteByLadder truncates player_ratings for a ladder, step 6 of replay
// (§4.5: "truncate ... playerRatings for this ladder").
func (r *RatingRepo) DeleteByLadder(ctx context.Context, ladderID string) error {
	_, err := r.c.DeleteMany(ctx, bson.M{"ladder_id": ladderID})
	return err
}

// fetcher adapts a loaded rating row into the engine's mutable
// PlayerState and writes it back on Flush (§9 "engine takes fetchers as
// capability objects").
type playerStateFetcher struct {
	ctx      context.Context
	repo     *RatingRepo
	params   core.Params
	ladderID string
	orgID    string
	loaded   map[string]*loadedPlayer
}

type loadedPlayer struct {
	row   PlayerRating
	state *core.PlayerState
}

// NewPlayerStateFetcher builds a core.PlayerStateFetcher backed by this
// repo, scoped to one ladder and transaction context. Callers must have
// already ensured every participating player exists via EnsurePlayers.
func (r *RatingRepo) NewPlayerStateFetcher(ctx context.Context, params core.Params, ladderID, orgID string) *playerStateFetcher {
	return &playerStateFetcher{
		ctx: ctx, repo: r, params: params, ladderID: ladderID, orgID: orgID,
		loaded: map[string]*loadedPlayer{},
	}
}

func (f *playerStateFetcher) GetPlayerState(playerID string) (*core.PlayerState, error) {
	if lp, ok := f.loaded[playerID]; ok {
		return lp.state, nil
	}
	row, err := f.repo.Get(f.ctx, playerID, f.ladderID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		row = &PlayerRating{
			PlayerID: playerID, LadderID: f.ladderID, OrgID: f.orgID,
			Mu: f.params.BaseMu, Sigma: f.params.BaseSigma, Sex: string(core.SexU),
		}
	}
	state := &core.PlayerState{
		PlayerID: playerID, Mu: row.Mu, Sigma: row.Sigma,
		MatchesCount: row.MatchesCount, Sex: core.Sex(row.Sex),
	}
	f.loaded[playerID] = &loadedPlayer{row: *row, state: state}
	return state, nil
}

// Flush persists every player touched by GetPlayerState, reading back the
// mutated state (the engine mutates state in place) and writing updatedAt.
func (f *playerStateFetcher) Flush(appliedAt time.Time) error {
	for id, lp := range f.loaded {
		row := PlayerRating{
			PlayerID: id, LadderID: f.ladderID, OrgID: f.orgID,
			Mu: lp.state.Mu, Sigma: lp.state.Sigma, Sex: string(lp.state.Sex),
			MatchesCount: lp.state.MatchesCount, UpdatedAt: appliedAt,
		}
		if err := f.repo.Save(f.ctx, row); err != nil {
			return err
		}
	}
	return nil
}
