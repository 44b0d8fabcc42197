package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// SexEdge records one inter-sex match on a ladder (two sides whose sex
// composition differs), the raw material for the sex-offset controller's
// eligibility gate (§4.3 step 1: "at least minEdges90d inter-sex matches
// in the prior 90 days").
type SexEdge struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	LadderID   string             `bson:"ladder_id"`
	OccurredAt time.Time          `bson:"occurred_at"`
}

// EdgeRepo persists ladder_sex_edges, a supporting collection the core
// schema in §6 doesn't name explicitly but §4.3's eligibility gate
// requires some durable count of cross-sex matches to evaluate.
type EdgeRepo struct{ c *mongo.Collection }

func NewEdgeRepo(db *mongo.Database) *EdgeRepo {
	r := &EdgeRepo{c: db.Collection("ladder_sex_edges")}
	_, _ = r.c.Indexes().CreateOne(context.Background(), mongo.IndexModel{
		Keys: bson.D{{Key: "ladder_id", Value: 1}, {Key: "occurred_at", Value: 1}},
	})
	return r
}

func (r *EdgeRepo) Record(ctx context.Context, ladderID string, occurredAt time.Time) error {
	_, err := r.c.InsertOne(ctx, SexEdge{LadderID: ladderID, OccurredAt: occurredAt})
	return err
}

// CountSince counts inter-sex matches for a ladder since a cutoff,
// backing the minEdges90d eligibility check.
func (r *EdgeRepo) CountSince(ctx context.Context, ladderID string, since time.Time) (int64, error) {
	return r.c.CountDocuments(ctx, bson.M{"ladder_id": ladderID, "occurred_at": bson.M{"$gte": since}})
}
