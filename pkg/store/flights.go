package store

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/avionyx/flightd/pkg/models"
)

// FlightStore persists flights.
type FlightStore struct {
	c *mongo.Collection
}

var _ models.FlightStore = (*FlightStore)(nil)

// Upsert stores the flight by id, reporting whether it was created.
func (s *FlightStore) Upsert(ctx context.Context, f *models.Flight) (bool, error) {
	res, err := s.c.ReplaceOne(ctx,
		bson.D{{Key: "_id", Value: f.ID}}, f,
		options.Replace().SetUpsert(true))
	if err != nil {
		return false, wrapErr("putting flight", err)
	}
	return res.UpsertedCount > 0, nil
}

// Get returns the flight with the given id.
func (s *FlightStore) Get(ctx context.Context, id string) (*models.Flight, error) {
	var f models.Flight
	err := s.c.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&f)
	if err != nil {
		return nil, wrapErr("getting flight", err)
	}
	return &f, nil
}

// List returns every flight.
func (s *FlightStore) List(ctx context.Context) ([]*models.Flight, error) {
	return s.find(ctx, bson.D{})
}

// ListByVessel returns the flights recorded against a vessel.
func (s *FlightStore) ListByVessel(ctx context.Context, vesselID string) ([]*models.Flight, error) {
	return s.find(ctx, bson.D{{Key: "_vessel_id", Value: vesselID}})
}

func (s *FlightStore) find(ctx context.Context, filter bson.D) ([]*models.Flight, error) {
	cur, err := s.c.Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "start", Value: -1}}))
	if err != nil {
		return nil, wrapErr("listing flights", err)
	}
	var flights []*models.Flight
	if err := cur.All(ctx, &flights); err != nil {
		return nil, wrapErr("listing flights", err)
	}
	return flights, nil
}

// Delete removes the flight, reporting whether it existed.
func (s *FlightStore) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.c.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return false, wrapErr("deleting flight", err)
	}
	return res.DeletedCount > 0, nil
}

// DeleteByVessel removes every flight of a vessel and returns the deleted
// flight ids so the caller can cascade telemetry and commands.
func (s *FlightStore) DeleteByVessel(ctx context.Context, vesselID string) ([]string, error) {
	flights, err := s.ListByVessel(ctx, vesselID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(flights))
	for _, f := range flights {
		ids = append(ids, f.ID)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	if _, err := s.c.DeleteMany(ctx,
		bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: ids}}}}); err != nil {
		return nil, wrapErr("deleting flights", err)
	}
	return ids, nil
}
