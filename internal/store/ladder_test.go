package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/henrynw/openrating/internal/core"
)

func TestLadderKey_LadderID(t *testing.T) {
	cases := []struct {
		name string
		key  LadderKey
		want string
	}{
		{
			name: "sport and discipline only",
			key:  LadderKey{Sport: core.SportBadminton, Discipline: "Singles"},
			want: "badminton:singles",
		},
		{
			name: "with segment",
			key:  LadderKey{Sport: core.SportBadminton, Discipline: "singles", Segment: "Open"},
			want: "badminton:singles:open",
		},
		{
			name: "class codes sorted and lowercased regardless of input order",
			key:  LadderKey{Sport: core.SportSquash, Discipline: "singles", ClassCodes: []string{"U19", "A"}},
			want: "squash:singles:a+u19",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, tc.key.LadderID())
		})
	}
}

func TestLadderKey_LadderID_IsOrderInvariantOverClassCodes(t *testing.T) {
	a := LadderKey{Sport: core.SportBadminton, Discipline: "doubles", ClassCodes: []string{"x", "y"}}
	b := LadderKey{Sport: core.SportBadminton, Discipline: "doubles", ClassCodes: []string{"y", "x"}}
	require.Equal(t, a.LadderID(), b.LadderID())
}

func TestLadderRepo_Ensure_UpsertsOnFirstReference(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("ensure issues an upsert keyed by the derived ladder id", func(mt *mtest.T) {
		repo := &LadderRepo{c: mt.Coll}

		key := LadderKey{Sport: core.SportBadminton, Discipline: "singles"}
		id := key.LadderID()

		mt.AddMockResponses(mtest.CreateSuccessResponse())
		namespace := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace, mtest.FirstBatch,
			bson.D{{Key: "_id", Value: id}, {Key: "sport", Value: "BADMINTON"}, {Key: "discipline", Value: "singles"}},
		))

		ladder, err := repo.Ensure(context.Background(), key)
		require.NoError(mt, err)
		require.Equal(mt, id, ladder.LadderID)

		started := mt.GetStartedEvent()
		require.NotNil(mt, started)
		require.Equal(mt, "update", started.CommandName)
	})
}
