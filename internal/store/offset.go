package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/henrynw/openrating/internal/core"
)

// SexOffset is the ladder_sex_offsets row (§3, §6).
type SexOffset struct {
	LadderID  string    `bson:"ladder_id"`
	Sex       string    `bson:"sex"`
	Bias      float64   `bson:"bias"`
	Matches   int32     `bson:"matches"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// OffsetRepo persists ladder_sex_offsets (§6).
type OffsetRepo struct{ c *mongo.Collection }

func NewOffsetRepo(db *mongo.Database) *OffsetRepo {
	r := &OffsetRepo{c: db.Collection("ladder_sex_offsets")}
	_, _ = r.c.Indexes().CreateOne(context.Background(), mongo.IndexModel{
		Keys:    bson.D{{Key: "ladder_id", Value: 1}, {Key: "sex", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return r
}

func offsetFilter(ladderID string, sex core.Sex) bson.M {
	return bson.M{"ladder_id": ladderID, "sex": string(sex)}
}

// GetAll fetches the {M,F,X,U} rows for a ladder, defaulting any missing
// sex to bias=0 (§3: "U is always 0").
func (r *OffsetRepo) GetAll(ctx context.Context, ladderID string) (map[core.Sex]SexOffset, error) {
	cur, err := r.c.Find(ctx, bson.M{"ladder_id": ladderID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := map[core.Sex]SexOffset{
		core.SexM: {LadderID: ladderID, Sex: string(core.SexM)},
		core.SexF: {LadderID: ladderID, Sex: string(core.SexF)},
		core.SexX: {LadderID: ladderID, Sex: string(core.SexX)},
		core.SexU: {LadderID: ladderID, Sex: string(core.SexU), Bias: 0},
	}
	var rows []SexOffset
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[core.Sex(row.Sex)] = row
	}
	return out, nil
}

func (r *OffsetRepo) Save(ctx context.Context, row SexOffset) error {
	if row.Sex == string(core.SexU) {
		return nil // U is always 0, never persisted as a mutable row (§3).
	}
	filter := offsetFilter(row.LadderID, core.Sex(row.Sex))
	update := bson.M{"$set": bson.M{
		"bias":       row.Bias,
		"matches":    row.Matches,
		"updated_at": row.UpdatedAt,
	}}
	_, err := r.c.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return err
}

// ListLaddersWithOffsets returns every distinct ladder that has at least
// one ladder_sex_offsets row, used by the stabilization job to include
// ladders whose offsets need shrinking even after their rating rows are
// gone (§4.4 step 6).
func (r *OffsetRepo) ListLaddersWithOffsets(ctx context.Context) ([]string, error) {
	ladderIDs, err := r.c.Distinct(ctx, "ladder_id", bson.M{})
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(ladderIDs))
	for _, v := range ladderIDs {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out, nil
}

// DeleteByLadder clears offsets for a ladder, replay step 1 ("Clear
// offsets (re-seed from defaults)") (§4.5).
func (r *OffsetRepo) DeleteByLadder(ctx context.Context, ladderID string) error {
	_, err := r.c.DeleteMany(ctx, bson.M{"ladder_id": ladderID})
	return err
}
