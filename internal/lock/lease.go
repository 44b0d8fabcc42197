package lock

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// leaseDoc is one distributed_locks row: a named resource held by one
// owner until leaseExpiry, an upsert-based lock generalized with an
// expiry so a crashed holder's lock can be reclaimed (§5 replay queue
// consumer: "failures leave the row for backoff").
type leaseDoc struct {
	Name        string    `bson:"_id"`
	Owner       string    `bson:"owner"`
	LeaseExpiry time.Time `bson:"lease_expiry"`
}

// Leases is a collection of named, expiring locks used by the replay
// queue worker (C11) to claim one ladder at a time without two worker
// processes racing on the same rebuild.
type Leases struct{ c *mongo.Collection }

func NewLeases(db *mongo.Database) *Leases {
	l := &Leases{c: db.Collection("distributed_locks")}
	_, _ = l.c.Indexes().CreateOne(context.Background(), mongo.IndexModel{
		Keys: bson.D{{Key: "lease_expiry", Value: 1}},
	})
	return l
}

// TryAcquire claims name for owner until ttl from now. It succeeds
// either when no lock document exists yet ($setOnInsert + UpsertedCount
// check), or when the existing lease has expired, in which case it is
// stolen atomically via a single conditional update.
func (l *Leases) TryAcquire(ctx context.Context, name, owner string, ttl time.Duration) (bool, error) {
	now := time.Now()
	expiry := now.Add(ttl)

	filter := bson.M{"_id": name}
	update := bson.M{
		"$setOnInsert": bson.M{"_id": name, "owner": owner, "lease_expiry": expiry},
	}
	opts := options.Update().SetUpsert(true)
	res, err := l.c.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		return false, err
	}
	if res.UpsertedCount > 0 {
		return true, nil
	}

	// Existing document: only steal it if its lease already expired.
	stealFilter := bson.M{"_id": name, "lease_expiry": bson.M{"$lt": now}}
	stealUpdate := bson.M{"$set": bson.M{"owner": owner, "lease_expiry": expiry}}
	result, err := l.c.UpdateOne(ctx, stealFilter, stealUpdate)
	if err != nil {
		return false, err
	}
	return result.ModifiedCount > 0, nil
}

// Release drops the lock early on a clean finish so the next poll
// doesn't wait out the full TTL.
func (l *Leases) Release(ctx context.Context, name, owner string) error {
	_, err := l.c.DeleteOne(ctx, bson.M{"_id": name, "owner": owner})
	return err
}
