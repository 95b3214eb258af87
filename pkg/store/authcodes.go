package store

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/avionyx/flightd/pkg/models"
)

// AuthCodeStore persists single-use authorization codes.
type AuthCodeStore struct {
	c *mongo.Collection
}

var _ models.AuthCodeStore = (*AuthCodeStore)(nil)

// Put stores the code.
func (s *AuthCodeStore) Put(ctx context.Context, code *models.AuthorizationCode) error {
	_, err := s.c.ReplaceOne(ctx,
		bson.D{{Key: "_id", Value: code.ID}}, code,
		options.Replace().SetUpsert(true))
	return wrapErr("putting authorization code", err)
}

// Get returns the code with the given id.
func (s *AuthCodeStore) Get(ctx context.Context, id string) (*models.AuthorizationCode, error) {
	var code models.AuthorizationCode
	err := s.c.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&code)
	if err != nil {
		return nil, wrapErr("getting authorization code", err)
	}
	return &code, nil
}

// Delete removes the code, reporting whether it existed. The delete is the
// atomic step that keeps redemption single-use: only the caller that saw
// true may mint a token.
func (s *AuthCodeStore) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.c.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return false, wrapErr("deleting authorization code", err)
	}
	return res.DeletedCount > 0, nil
}

// ListForUser returns every code issued for the user.
func (s *AuthCodeStore) ListForUser(ctx context.Context, userID string) ([]*models.AuthorizationCode, error) {
	cur, err := s.c.Find(ctx, bson.D{{Key: "user_id", Value: userID}})
	if err != nil {
		return nil, wrapErr("listing authorization codes", err)
	}
	var codes []*models.AuthorizationCode
	if err := cur.All(ctx, &codes); err != nil {
		return nil, wrapErr("listing authorization codes", err)
	}
	return codes, nil
}
