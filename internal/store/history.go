package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// RatingEvent is the player_rating_history row (§3, §6). Append-only;
// ordering for replay is (createdAt ASC, id ASC).
type RatingEvent struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	PlayerID    string             `bson:"player_id"`
	LadderID    string             `bson:"ladder_id"`
	MatchID     string             `bson:"match_id"`
	MuBefore    float64            `bson:"mu_before"`
	MuAfter     float64            `bson:"mu_after"`
	SigmaBefore float64            `bson:"sigma_before"`
	SigmaAfter  float64            `bson:"sigma_after"`
	Delta       float64            `bson:"delta"`
	WinProbPre  float64            `bson:"win_prob_pre"`
	MoVWeight   float64            `bson:"mov_weight"`
	CreatedAt   time.Time          `bson:"created_at"`
}

// HistoryRepo persists player_rating_history (§6).
type HistoryRepo struct{ c *mongo.Collection }

func NewHistoryRepo(db *mongo.Database) *HistoryRepo {
	r := &HistoryRepo{c: db.Collection("player_rating_history")}
	_, _ = r.c.Indexes().CreateMany(context.Background(), []mongo.IndexModel{
		{Keys: bson.D{{Key: "ladder_id", Value: 1}, {Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}},
		{Keys: bson.D{{Key: "player_id", Value: 1}, {Key: "ladder_id", Value: 1}}},
		{Keys: bson.D{{Key: "match_id", Value: 1}}},
	})
	return r
}

// InsertMany appends history rows for one match, assigning fresh ids
// (§4.5 step 3b: "insert one history row per player").
func (r *HistoryRepo) InsertMany(ctx context.Context, events []RatingEvent) ([]primitive.ObjectID, error) {
	if len(events) == 0 {
		return nil, nil
	}
	docs := make([]interface{}, len(events))
	ids := make([]primitive.ObjectID, len(events))
	for i := range events {
		if events[i].ID.IsZero() {
			events[i].ID = primitive.NewObjectID()
		}
		ids[i] = events[i].ID
		docs[i] = events[i]
	}
	_, err := r.c.InsertMany(ctx, docs)
	return ids, err
}

// Get fetches one event by id, used by the recorder's "re-fetch, then
// fatal-fail if still missing" ordering contract (§4.5, §7 ReplayIntegrityError).
func (r *HistoryRepo) Get(ctx context.Context, id primitive.ObjectID) (*RatingEvent, error) {
	var ev RatingEvent
	err := r.c.FindOne(ctx, bson.M{"_id": id}).Decode(&ev)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

// GetLatestForPlayer returns the most recent event for a player on a
// ladder, optionally as of a given time, used by getRatingSnapshot (§6).
func (r *HistoryRepo) GetLatestForPlayer(ctx context.Context, playerID, ladderID string, asOf *time.Time) (*RatingEvent, error) {
	filter := bson.M{"player_id": playerID, "ladder_id": ladderID}
	if asOf != nil {
		filter["created_at"] = bson.M{"$lte": *asOf}
	}
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	var ev RatingEvent
	err := r.c.FindOne(ctx, filter, opts).Decode(&ev)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

// GetByMatch returns every history row written for a given match,
// in no particular order; callers that need a specific player order
// (the recorder's idempotent-replay branch) reorder by playerId.
func (r *HistoryRepo) GetByMatch(ctx context.Context, matchID string) ([]RatingEvent, error) {
	cur, err := r.c.Find(ctx, bson.M{"match_id": matchID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var rows []RatingEvent
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// ListPage is a cursor-paginated slice of RatingEvent rows (compound
// (createdAt, id) cursor, +1 peek to compute the next page token).
type ListPage struct {
	Events        []RatingEvent
	NextPageToken string
}

// historyCursor encodes the (createdAt, id) pair ListByLadder sorts by.
// A bare _id token can't express this: createdAt is appliedAt, which is
// non-monotonic with ObjectID generation order once late arrivals or
// replays are involved, so the token has to carry both fields.
type historyCursor struct {
	createdAt time.Time
	id        primitive.ObjectID
}

func encodeHistoryCursor(createdAt time.Time, id primitive.ObjectID) string {
	return fmt.Sprintf("%d_%s", createdAt.UnixNano(), id.Hex())
}

func decodeHistoryCursor(token string) (historyCursor, error) {
	parts := strings.SplitN(token, "_", 2)
	if len(parts) != 2 {
		return historyCursor{}, fmt.Errorf("malformed page token")
	}
	nanos, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return historyCursor{}, fmt.Errorf("malformed page token: %w", err)
	}
	id, err := primitive.ObjectIDFromHex(parts[1])
	if err != nil {
		return historyCursor{}, fmt.Errorf("malformed page token: %w", err)
	}
	return historyCursor{createdAt: time.Unix(0, nanos), id: id}, nil
}

// ListByLadder lists events chronologically with cursor pagination (§6
// listRatingEvents).
func (r *HistoryRepo) ListByLadder(ctx context.Context, ladderID string, pageSize int32, pageToken string) (*ListPage, error) {
	filter := bson.M{"ladder_id": ladderID}
	if pageToken != "" {
		c, err := decodeHistoryCursor(pageToken)
		if err != nil {
			return nil, err
		}
		filter["$or"] = []bson.M{
			{"created_at": bson.M{"$gt": c.createdAt}},
			{"created_at": c.createdAt, "_id": bson.M{"$gt": c.id}},
		}
	}
	if pageSize <= 0 {
		pageSize = 50
	}
	opts := options.Find().
		SetLimit(int64(pageSize) + 1).
		SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})

	cur, err := r.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var rows []RatingEvent
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}

	page := &ListPage{}
	if len(rows) > int(pageSize) {
		last := rows[pageSize-1]
		page.NextPageToken = encodeHistoryCursor(last.CreatedAt, last.ID)
		rows = rows[:pageSize]
	}
	page.Events = rows
	return page, nil
}

// DeleteByLadder truncates player_rating_history for a ladder, part of
// replay step 6 (§4.5).
func (r *HistoryRepo) DeleteByLadder(ctx context.Context, ladderID string) error {
	_, err := r.c.DeleteMany(ctx, bson.M{"ladder_id": ladderID})
	return err
}
