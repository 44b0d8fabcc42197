package store

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestToObjectID_AcceptsObjectIDPassthrough(t *testing.T) {
	oid := primitive.NewObjectID()
	got, err := toObjectID(oid)
	require.NoError(t, err)
	require.Equal(t, oid, got)
}

func TestToObjectID_AcceptsHexString(t *testing.T) {
	oid := primitive.NewObjectID()
	got, err := toObjectID(oid.Hex())
	require.NoError(t, err)
	require.Equal(t, oid, got)
}

func TestToObjectID_RejectsInvalidHex(t *testing.T) {
	_, err := toObjectID("not-a-hex-id")
	require.Error(t, err)
}

func TestToObjectID_RejectsUnsupportedType(t *testing.T) {
	_, err := toObjectID(42)
	require.Error(t, err)
}
