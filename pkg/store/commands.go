package store

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/avionyx/flightd/pkg/models"
)

// CommandStore persists commands. Commands live in a regular collection
// rather than the time-series one: confirmations replace documents by id,
// which time-series collections do not support.
type CommandStore struct {
	c *mongo.Collection
}

var _ models.CommandStore = (*CommandStore)(nil)

// commandDoc wraps a command with the flight it belongs to.
type commandDoc struct {
	FlightID       string `bson:"flight_id"`
	models.Command `bson:",inline"`
}

// Insert stores fresh commands.
func (s *CommandStore) Insert(ctx context.Context, flightID string, cmds []*models.Command) error {
	if len(cmds) == 0 {
		return nil
	}
	docs := make([]any, len(cmds))
	for i, c := range cmds {
		docs[i] = commandDoc{FlightID: flightID, Command: *c}
	}
	_, err := s.c.InsertMany(ctx, docs)
	return wrapErr("inserting commands", err)
}

// Upsert replaces commands by id, inserting those not yet stored. Vessels
// confirm batches of lifecycle updates through this path.
func (s *CommandStore) Upsert(ctx context.Context, flightID string, cmds []*models.Command) error {
	writes := make([]mongo.WriteModel, len(cmds))
	for i, c := range cmds {
		writes[i] = mongo.NewReplaceOneModel().
			SetFilter(bson.D{
				{Key: "_id", Value: c.ID},
				{Key: "flight_id", Value: flightID},
			}).
			SetReplacement(commandDoc{FlightID: flightID, Command: *c}).
			SetUpsert(true)
	}
	if len(writes) == 0 {
		return nil
	}
	_, err := s.c.BulkWrite(ctx, writes)
	return wrapErr("upserting commands", err)
}

// Range returns commands of a flight with creation time in the filter's
// [Start, End) window, optionally narrowed by part and type. Oldest first,
// capped at the result limit.
func (s *CommandStore) Range(ctx context.Context, flightID string, filter models.CommandFilter) ([]*models.Command, error) {
	query := bson.D{
		{Key: "flight_id", Value: flightID},
		{Key: "create_time", Value: bson.D{
			{Key: "$gte", Value: filter.Start},
			{Key: "$lt", Value: filter.End},
		}},
	}
	if filter.PartID != nil {
		query = append(query, bson.E{Key: "part_id", Value: *filter.PartID})
	}
	if filter.CommandType != "" {
		query = append(query, bson.E{Key: "command_type", Value: filter.CommandType})
	}

	cur, err := s.c.Find(ctx, query,
		options.Find().
			SetSort(bson.D{{Key: "create_time", Value: 1}}).
			SetLimit(resultLimit))
	if err != nil {
		return nil, wrapErr("querying commands", err)
	}
	var cmds []*models.Command
	if err := cur.All(ctx, &cmds); err != nil {
		return nil, wrapErr("querying commands", err)
	}
	return cmds, nil
}

// DeleteByFlights removes all commands of the given flights.
func (s *CommandStore) DeleteByFlights(ctx context.Context, flightIDs []string) error {
	if len(flightIDs) == 0 {
		return nil
	}
	_, err := s.c.DeleteMany(ctx, bson.D{
		{Key: "flight_id", Value: bson.D{{Key: "$in", Value: flightIDs}}},
	})
	return wrapErr("deleting commands", err)
}
