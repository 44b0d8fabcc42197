package store

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// toObjectID accepts either a primitive.ObjectID or its hex string form,
// the shape a rating-event id arrives in after a JSON round trip
// (GetRatingEvent).
func toObjectID(id any) (primitive.ObjectID, error) {
	switch v := id.(type) {
	case primitive.ObjectID:
		return v, nil
	case string:
		return primitive.ObjectIDFromHex(v)
	default:
		return primitive.ObjectID{}, fmt.Errorf("unsupported id type %T", id)
	}
}
