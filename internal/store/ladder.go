package store

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/henrynw/openrating/internal/core"
)

// LadderKey identifies a ladder's equivalence class before it is
// resolved to a deterministic ladder_id (§3 Ladder, §6 rating_ladders).
type LadderKey struct {
	Sport      core.Sport
	Discipline string
	Segment    string
	ClassCodes []string
}

// LadderID derives the deterministic, human-readable ladder identity:
// lowercase "sport:discipline[:segment][:classCodes joined by '+']".
func (k LadderKey) LadderID() string {
	parts := []string{strings.ToLower(string(k.Sport)), strings.ToLower(k.Discipline)}
	if k.Segment != "" {
		parts = append(parts, strings.ToLower(k.Segment))
	}
	if len(k.ClassCodes) > 0 {
		codes := append([]string(nil), k.ClassCodes...)
		sort.Strings(codes)
		for i, c := range codes {
			codes[i] = strings.ToLower(c)
		}
		parts = append(parts, strings.Join(codes, "+"))
	}
	return strings.Join(parts, ":")
}

// Ladder is the rating_ladders row (§6).
type Ladder struct {
	LadderID         string     `bson:"_id"`
	Sport            string     `bson:"sport"`
	Discipline       string     `bson:"discipline"`
	DefaultAgeCutoff *time.Time `bson:"default_age_cutoff,omitempty"`
	AgeBands         bson.Raw   `bson:"age_bands,omitempty"`
	CreatedAt        time.Time  `bson:"created_at"`
	UpdatedAt        time.Time  `bson:"updated_at"`
}

// LadderRepo persists ladders; created on first reference, never deleted
// (§3 Ladder invariant).
type LadderRepo struct{ c *mongo.Collection }

func NewLadderRepo(db *mongo.Database) *LadderRepo {
	r := &LadderRepo{c: db.Collection("rating_ladders")}
	_, _ = r.c.Indexes().CreateOne(context.Background(), mongo.IndexModel{
		Keys: bson.D{{Key: "sport", Value: 1}, {Key: "discipline", Value: 1}},
	})
	return r
}

// Ensure creates the ladder row on first reference and is a no-op
// afterwards (§3: "Created on first reference; never deleted").
func (r *LadderRepo) Ensure(ctx context.Context, key LadderKey) (*Ladder, error) {
	now := time.Now()
	id := key.LadderID()
	filter := bson.M{"_id": id}
	update := bson.M{
		"$setOnInsert": bson.M{
			"_id":        id,
			"sport":      string(key.Sport),
			"discipline": key.Discipline,
			"created_at": now,
			"updated_at": now,
		},
	}
	_, err := r.c.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return nil, err
	}
	var l Ladder
	if err := r.c.FindOne(ctx, filter).Decode(&l); err != nil {
		return nil, err
	}
	return &l, nil
}
