package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/henrynw/openrating/internal/core"
)

// PairSynergy is the pair_synergies row (§3, §6).
type PairSynergy struct {
	LadderID  string    `bson:"ladder_id"`
	PairKey   string    `bson:"pair_key"`
	Players   []string  `bson:"players"`
	Gamma     float64   `bson:"gamma"`
	Matches   int32     `bson:"matches"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// SynergyRepo persists pair_synergies (§6).
type SynergyRepo struct{ c *mongo.Collection }

func NewSynergyRepo(db *mongo.Database) *SynergyRepo {
	r := &SynergyRepo{c: db.Collection("pair_synergies")}
	_, _ = r.c.Indexes().CreateOne(context.Background(), mongo.IndexModel{
		Keys:    bson.D{{Key: "ladder_id", Value: 1}, {Key: "pair_key", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return r
}

func synergyFilter(ladderID, pairKey string) bson.M {
	return bson.M{"ladder_id": ladderID, "pair_key": pairKey}
}

// Ensure lazily creates a zero-γ row the first time a pair is seen
// (§3 PairSynergy: "Created lazily when a doubles side with ≥2 players appears").
func (r *SynergyRepo) Ensure(ctx context.Context, ladderID, pairKey string, players []string) (*PairSynergy, error) {
	now := time.Now()
	filter := synergyFilter(ladderID, pairKey)
	update := bson.M{
		"$setOnInsert": bson.M{
			"ladder_id":  ladderID,
			"pair_key":   pairKey,
			"players":    players,
			"gamma":      0.0,
			"matches":    int32(0),
			"created_at": now,
			"updated_at": now,
		},
	}
	if _, err := r.c.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true)); err != nil {
		return nil, err
	}
	var row PairSynergy
	if err := r.c.FindOne(ctx, filter).Decode(&row); err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *SynergyRepo) Save(ctx context.Context, row PairSynergy) error {
	filter := synergyFilter(row.LadderID, row.PairKey)
	update := bson.M{"$set": bson.M{
		"players":    row.Players,
		"gamma":      row.Gamma,
		"matches":    row.Matches,
		"updated_at": row.UpdatedAt,
	}}
	_, err := r.c.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return err
}

func (r *SynergyRepo) ListByLadder(ctx context.Context, ladderID string) ([]PairSynergy, error) {
	cur, err := r.c.Find(ctx, bson.M{"ladder_id": ladderID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var rows []PairSynergy
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// DeleteByLadder truncates pair_synergies for a ladder, part of replay
// step 6 (§4.5).
func (r *SynergyRepo) DeleteByLadder(ctx context.Context, ladderID string) error {
	_, err := r.c.DeleteMany(ctx, bson.M{"ladder_id": ladderID})
	return err
}

// pairStateFetcher adapts SynergyRepo into core.PairStateFetcher, scoped
// to one ladder and transaction context, mirroring playerStateFetcher.
type pairStateFetcher struct {
	ctx      context.Context
	repo     *SynergyRepo
	ladderID string
	loaded   map[string]*loadedPair
}

type loadedPair struct {
	row   PairSynergy
	state *core.PairState
}

func (r *SynergyRepo) NewPairStateFetcher(ctx context.Context, ladderID string) *pairStateFetcher {
	return &pairStateFetcher{ctx: ctx, repo: r, ladderID: ladderID, loaded: map[string]*loadedPair{}}
}

func (f *pairStateFetcher) GetPairState(pairKey string, players []string) (*core.PairState, error) {
	if lp, ok := f.loaded[pairKey]; ok {
		return lp.state, nil
	}
	row, err := f.repo.Ensure(f.ctx, f.ladderID, pairKey, players)
	if err != nil {
		return nil, err
	}
	state := &core.PairState{PairKey: row.PairKey, Players: row.Players, Gamma: row.Gamma, Matches: row.Matches}
	f.loaded[pairKey] = &loadedPair{row: *row, state: state}
	return state, nil
}

// Flush persists every pair touched by GetPairState.
func (f *pairStateFetcher) Flush(updatedAt time.Time) error {
	for _, lp := range f.loaded {
		row := PairSynergy{
			LadderID: f.ladderID, PairKey: lp.state.PairKey, Players: lp.state.Players,
			Gamma: lp.state.Gamma, Matches: lp.state.Matches, UpdatedAt: updatedAt,
		}
		if err := f.repo.Save(f.ctx, row); err != nil {
			return err
		}
	}
	return nil
}
