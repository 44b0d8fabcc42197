package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/henrynw/openrating/internal/core"
)

// RatingStatus mirrors §3 Match.ratingStatus.
type RatingStatus string

const (
	RatingStatusRated   RatingStatus = "RATED"
	RatingStatusUnrated RatingStatus = "UNRATED"
	RatingStatusSkipped RatingStatus = "SKIPPED"
)

// MatchSide holds one side's ordered player list (§6 match_sides,
// match_side_players; collapsed into a document array — Mongo has no
// join-table idiom, so side membership lives as an embedded array like
// the rest of this schema's one-to-many relations).
type MatchSide struct {
	Players []string `bson:"players"`
}

// MatchGame is one game/set's score (§6 match_games; collapsed into a
// document array for the same reason as MatchSide).
type MatchGame struct {
	GameNo int32 `bson:"game_no"`
	ScoreA int32 `bson:"score_a"`
	ScoreB int32 `bson:"score_b"`
}

// MatchTiming carries the optional completion/start timestamps used to
// derive appliedAt and replay ordering (§4.5 step 3d, §9 Open Questions).
type MatchTiming struct {
	StartTime   time.Time  `bson:"start_time"`
	CompletedAt *time.Time `bson:"completed_at,omitempty"`
}

// Match is the matches row (§3, §6). Idempotency key is
// (provider_id, external_ref) when external_ref is present.
type Match struct {
	MatchID          string       `bson:"_id"`
	LadderID         string       `bson:"ladder_id"`
	OrganizationID   string       `bson:"organization_id"`
	ProviderID       string       `bson:"provider_id"`
	ExternalRef      string       `bson:"external_ref,omitempty"`
	Sport            string       `bson:"sport"`
	Discipline       string       `bson:"discipline"`
	Tier             string       `bson:"tier"`
	SideA            MatchSide    `bson:"side_a"`
	SideB            MatchSide    `bson:"side_b"`
	Games            []MatchGame  `bson:"games"`
	Timing           MatchTiming  `bson:"timing"`
	RawPayload       bson.Raw     `bson:"raw_payload,omitempty"`
	RatingStatus     RatingStatus `bson:"rating_status"`
	RatingSkipReason string       `bson:"rating_skip_reason,omitempty"`
	WinnerSide       string       `bson:"winner_side,omitempty"`
	MoVWeight        *float64     `bson:"mov_weight,omitempty"`
	CreatedAt        time.Time    `bson:"created_at"`
}

// MatchRepo persists matches (§6).
type MatchRepo struct{ c *mongo.Collection }

func NewMatchRepo(db *mongo.Database) *MatchRepo {
	r := &MatchRepo{c: db.Collection("matches")}
	_, _ = r.c.Indexes().CreateMany(context.Background(), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "provider_id", Value: 1}, {Key: "external_ref", Value: 1}},
			Options: options.Index().SetUnique(true).SetPartialFilterExpression(bson.M{"external_ref": bson.M{"$exists": true}}),
		},
		{Keys: bson.D{{Key: "ladder_id", Value: 1}, {Key: "timing.start_time", Value: 1}, {Key: "_id", Value: 1}}},
	})
	return r
}

// FindByIdempotencyKey looks up an existing match by (providerId,
// externalRef), the full-idempotency path of recordMatch (§4.5 step 1).
func (r *MatchRepo) FindByIdempotencyKey(ctx context.Context, providerID, externalRef string) (*Match, error) {
	if externalRef == "" {
		return nil, nil
	}
	var m Match
	err := r.c.FindOne(ctx, bson.M{"provider_id": providerID, "external_ref": externalRef}).Decode(&m)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *MatchRepo) Insert(ctx context.Context, m Match) error {
	_, err := r.c.InsertOne(ctx, m)
	return err
}

func (r *MatchRepo) Get(ctx context.Context, matchID string) (*Match, error) {
	var m Match
	err := r.c.FindOne(ctx, bson.M{"_id": matchID}).Decode(&m)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// MaxStartTime returns the latest timing.start_time recorded on a
// ladder, used to decide whether an incoming match needs a replay
// enqueue (§4.5 step 3e).
func (r *MatchRepo) MaxStartTime(ctx context.Context, ladderID string) (*time.Time, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "timing.start_time", Value: -1}})
	var m Match
	err := r.c.FindOne(ctx, bson.M{"ladder_id": ladderID}, opts).Decode(&m)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m.Timing.StartTime, nil
}

// StreamChronological returns every match for a ladder ordered
// (startTime ASC, matchId ASC), optionally from a given time, for the
// replay executor (§4.5 step 2).
func (r *MatchRepo) StreamChronological(ctx context.Context, ladderID string, from *time.Time) ([]Match, error) {
	filter := bson.M{"ladder_id": ladderID}
	if from != nil {
		filter["timing.start_time"] = bson.M{"$gte": *from}
	}
	opts := options.Find().SetSort(bson.D{{Key: "timing.start_time", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := r.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var rows []Match
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// Winner resolves the engine's WinnerSide from the stored match, used
// when reconstructing MatchInput during replay (§4.5 step 4).
func (m Match) Winner() core.WinnerSide {
	switch m.WinnerSide {
	case "A":
		return core.WinnerA
	case "B":
		return core.WinnerB
	default:
		return core.WinnerUnspecified
	}
}

func (m Match) EngineGames() []core.Game {
	games := make([]core.Game, 0, len(m.Games))
	for _, g := range m.Games {
		games = append(games, core.Game{ScoreA: g.ScoreA, ScoreB: g.ScoreB})
	}
	return games
}

// AppliedAt resolves the event time used for history rows and replay
// ordering: completedAt if present, else startTime (§4.5 step 3d, §9).
func (m Match) AppliedAt() time.Time {
	if m.Timing.CompletedAt != nil {
		return *m.Timing.CompletedAt
	}
	return m.Timing.StartTime
}
