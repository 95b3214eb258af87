package store

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/avionyx/flightd/pkg/models"
)

// UserStore persists principals. Unique names are enforced by a unique
// index; collisions surface as models.ErrConflict.
type UserStore struct {
	c *mongo.Collection
}

var _ models.UserStore = (*UserStore)(nil)

// Put stores the user, replacing an existing record with the same id.
func (s *UserStore) Put(ctx context.Context, u *models.User) error {
	_, err := s.c.ReplaceOne(ctx,
		bson.D{{Key: "_id", Value: u.ID}}, u,
		options.Replace().SetUpsert(true))
	return wrapErr("putting user", err)
}

// Get returns the user with the given id.
func (s *UserStore) Get(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	err := s.c.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&u)
	if err != nil {
		return nil, wrapErr("getting user", err)
	}
	return &u, nil
}

// GetByUniqueName returns the user with the given login name.
func (s *UserStore) GetByUniqueName(ctx context.Context, uniqueName string) (*models.User, error) {
	var u models.User
	err := s.c.FindOne(ctx, bson.D{{Key: "unique_name", Value: uniqueName}}).Decode(&u)
	if err != nil {
		return nil, wrapErr("getting user by name", err)
	}
	return &u, nil
}
