package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// PairSynergyHistory is the pair_synergy_history row (§6).
type PairSynergyHistory struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	LadderID    string             `bson:"ladder_id"`
	PairKey     string             `bson:"pair_key"`
	MatchID     string             `bson:"match_id"`
	GammaBefore float64            `bson:"gamma_before"`
	GammaAfter  float64            `bson:"gamma_after"`
	Delta       float64            `bson:"delta"`
	CreatedAt   time.Time          `bson:"created_at"`
}

// SynergyHistoryRepo persists pair_synergy_history (§6).
type SynergyHistoryRepo struct{ c *mongo.Collection }

func NewSynergyHistoryRepo(db *mongo.Database) *SynergyHistoryRepo {
	r := &SynergyHistoryRepo{c: db.Collection("pair_synergy_history")}
	_, _ = r.c.Indexes().CreateOne(context.Background(), mongo.IndexModel{
		Keys: bson.D{{Key: "ladder_id", Value: 1}, {Key: "created_at", Value: 1}},
	})
	return r
}

// InsertMany appends synergy-history rows emitted regardless of whether
// the pair activated, so history always reflects cumulative appearances
// (§4.1: "Emit a PairUpdate regardless").
func (r *SynergyHistoryRepo) InsertMany(ctx context.Context, rows []PairSynergyHistory) error {
	if len(rows) == 0 {
		return nil
	}
	docs := make([]interface{}, len(rows))
	for i := range rows {
		if rows[i].ID.IsZero() {
			rows[i].ID = primitive.NewObjectID()
		}
		docs[i] = rows[i]
	}
	_, err := r.c.InsertMany(ctx, docs)
	return err
}

func (r *SynergyHistoryRepo) ListByLadder(ctx context.Context, ladderID string) ([]PairSynergyHistory, error) {
	cur, err := r.c.Find(ctx, bson.M{"ladder_id": ladderID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var rows []PairSynergyHistory
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// DeleteByLadder truncates pair_synergy_history for a ladder, part of
// replay step 6 (§4.5).
func (r *SynergyHistoryRepo) DeleteByLadder(ctx context.Context, ladderID string) error {
	_, err := r.c.DeleteMany(ctx, bson.M{"ladder_id": ladderID})
	return err
}
