package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ReplayQueueEntry is the rating_replay_queue row (§3, §6) — no extra
// columns; claiming is handled by internal/lock against a separate
// collection so this row only ever tracks which ladder needs a rebuild.
type ReplayQueueEntry struct {
	LadderID          string    `bson:"_id"`
	EarliestStartTime time.Time `bson:"earliest_start_time"`
	CreatedAt         time.Time `bson:"created_at"`
	UpdatedAt         time.Time `bson:"updated_at"`
}

// ReplayQueueRepo persists rating_replay_queue (§6).
type ReplayQueueRepo struct{ c *mongo.Collection }

func NewReplayQueueRepo(db *mongo.Database) *ReplayQueueRepo {
	r := &ReplayQueueRepo{c: db.Collection("rating_replay_queue")}
	_, _ = r.c.Indexes().CreateOne(context.Background(), mongo.IndexModel{
		Keys: bson.D{{Key: "earliest_start_time", Value: 1}},
	})
	return r
}

// Enqueue sets earliestStartTime = min(existing, incoming) (§3
// ReplayQueue invariant).
func (r *ReplayQueueRepo) Enqueue(ctx context.Context, ladderID string, startTime time.Time) error {
	now := time.Now()
	filter := bson.M{"_id": ladderID}

	_, err := r.c.UpdateOne(ctx, filter, bson.M{
		"$setOnInsert": bson.M{
			"_id":        ladderID,
			"created_at": now,
		},
		"$min": bson.M{"earliest_start_time": startTime},
		"$set": bson.M{"updated_at": now},
	}, options.Update().SetUpsert(true))
	return err
}

// ListPending returns up to limit queue entries ordered by
// earliestStartTime ASC (§5 "a single worker pulls up to N ladders").
func (r *ReplayQueueRepo) ListPending(ctx context.Context, limit int) ([]ReplayQueueEntry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "earliest_start_time", Value: 1}}).SetLimit(int64(limit))
	cur, err := r.c.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var rows []ReplayQueueEntry
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// Delete removes the queue entry, only called on a successful replay
// (§4.5 step 8, §5 "only on success deletes the queue row").
func (r *ReplayQueueRepo) Delete(ctx context.Context, ladderID string) error {
	_, err := r.c.DeleteOne(ctx, bson.M{"_id": ladderID})
	return err
}
