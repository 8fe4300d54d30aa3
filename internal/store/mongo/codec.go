package mongo

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"chatbackend/internal/domain"
)

// oid parses a domain id string into an ObjectID, mapping malformed input
// to ErrInvalidInput so callers never see driver-level errors.
func oid(id string) (primitive.ObjectID, error) {
	parsed, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: bad object id %q", domain.ErrInvalidInput, id)
	}
	return parsed, nil
}

func toOIDs(ids []string) ([]primitive.ObjectID, error) {
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		parsed, err := oid(id)
		if err != nil {
			return nil, err
		}
		out = append(out, parsed)
	}
	return out, nil
}

func toHexIDs(ids []primitive.ObjectID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.Hex())
	}
	return out
}
